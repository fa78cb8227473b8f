package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"voxelminer.ai/internal/catalogs"
	"voxelminer.ai/internal/logging"
	"voxelminer.ai/internal/protocol"
	"voxelminer.ai/internal/simworld"
	"voxelminer.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		seed       = flag.Int64("seed", 1337, "terrain seed")
		surface    = flag.Int("surface", 80, "base surface height")
		logs       = flag.Int("logs", 5, "oak logs the body starts with")
		obsMS      = flag.Int("obs_ms", 200, "observation interval in milliseconds")
		catalogDir = flag.String("catalogs", "", "catalog override directory (optional)")
		token      = flag.String("token", "", "required HELLO token (or VM_TOKEN)")
		logLevel   = flag.String("log_level", "info", "log level")
		logFormat  = flag.String("log_format", "console", "console or json")
	)
	flag.Parse()

	logger := logging.Component(logging.New(os.Stderr, *logLevel, *logFormat), "server")

	cat, err := catalogs.Default()
	if *catalogDir != "" {
		cat, err = catalogs.Load(*catalogDir)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("load catalogs")
	}
	auth := strings.TrimSpace(*token)
	if auth == "" {
		auth = strings.TrimSpace(os.Getenv("VM_TOKEN"))
	}

	w := simworld.Spawn(simworld.SpawnOptions{Catalog: cat, Seed: *seed, SurfaceY: *surface, Logs: *logs})
	logger.Info().Int64("seed", *seed).Stringer("spawn", w.Position()).Msg("world ready")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           newMux(w, cat, *seed, *obsMS, auth, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info().Str("addr", *addr).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("ListenAndServe")
	}
}

func newMux(w *simworld.World, cat *catalogs.Catalogs, seed int64, obsMS int, token string, logger zerolog.Logger) *http.ServeMux {
	minY, maxY := w.Bounds()
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok\n"))
	})
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(rw, "pos=%s digs=%d lowest_y=%d crafted=%d\n", w.Position(), w.DigCount(), w.LowestY(), len(w.Crafted()))
	})
	mux.HandleFunc("/v1/ws", ws.NewServer(ws.Options{
		Agent:   w.Agent(),
		Catalog: cat,
		Params: protocol.WorldParams{
			MinY:       minY,
			MaxY:       maxY,
			Reach:      w.Reach(),
			Seed:       seed,
			ObsEveryMS: obsMS,
		},
		Token:        token,
		AdvanceClock: true,
		Logger:       logging.Component(logger, "ws"),
	}).Handler())
	return mux
}
