package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"voxelminer.ai/internal/agent"
	"voxelminer.ai/internal/catalogs"
	"voxelminer.ai/internal/config"
	"voxelminer.ai/internal/logging"
	"voxelminer.ai/internal/mining/automine"
	"voxelminer.ai/internal/mining/session"
	"voxelminer.ai/internal/persistence/history"
	"voxelminer.ai/internal/persistence/journal"
	"voxelminer.ai/internal/simworld"
	"voxelminer.ai/internal/telemetry"
	"voxelminer.ai/internal/transport/wsclient"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to miner yaml (optional)")
		sim         = flag.Bool("sim", false, "mine in the in-memory world instead of connecting to a server")
		url         = flag.String("url", "", "world ws url (default from config)")
		name        = flag.String("name", "", "agent name (default from config)")
		token       = flag.String("token", "", "auth token sent in HELLO (or VM_TOKEN)")
		schedule    = flag.String("schedule", "", "cron spec for recurring sessions (default from config)")
		targetDepth = flag.Int("target_depth", 0, "target mining depth for this run")
		budgetSec   = flag.Int("budget_sec", 0, "session time budget in seconds (0 = unlimited)")
		logLevel    = flag.String("log_level", "", "log level (default from config)")
		adminAddr   = flag.String("admin_addr", "127.0.0.1:8091", "loopback admin http address (empty to disable)")
	)
	flag.Parse()
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(2)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *url != "" {
		cfg.ServerURL = *url
	}
	if *name != "" {
		cfg.AgentName = *name
	}
	if *schedule != "" {
		cfg.Schedule = *schedule
	}
	authToken := strings.TrimSpace(*token)
	if authToken == "" {
		authToken = strings.TrimSpace(os.Getenv("VM_TOKEN"))
	}
	var overrides config.Overrides
	if set["target_depth"] {
		overrides.TargetDepth = config.Int(*targetDepth)
	}
	if set["budget_sec"] {
		overrides.SessionBudgetSec = config.Int(*budgetSec)
	}

	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat).With().Str("agent", cfg.AgentName).Logger()
	if err := run(cfg, runFlags{sim: *sim, token: authToken, adminAddr: *adminAddr, overrides: overrides}, logger); err != nil {
		logger.Error().Err(err).Msg("miner exited")
		os.Exit(1)
	}
}

type runFlags struct {
	sim       bool
	token     string
	adminAddr string
	overrides config.Overrides
}

func run(cfg config.AppConfig, fl runFlags, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := loadCatalogs(cfg.CatalogDir)
	if err != nil {
		return fmt.Errorf("load catalogs: %w", err)
	}
	metrics, err := telemetry.New(nil)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	rt := &runner{log: logger}
	if cfg.JournalDir != "" {
		rt.journal = journal.NewWriter(cfg.JournalDir, logger)
		defer rt.journal.Close()
	}
	if cfg.HistoryDB != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.HistoryDB), 0o755); err != nil {
			return err
		}
		store, err := history.Open(cfg.HistoryDB)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer store.Close()
		if err := store.UpsertCatalogs(ctx, cat); err != nil {
			logger.Warn().Err(err).Msg("history: upsert catalogs")
		}
		rt.history = store
	}

	ag, lost, closeWorld, err := connect(ctx, cfg, fl, cat, logger)
	if err != nil {
		return err
	}
	defer closeWorld()

	// A nil *journal.Writer in the interface would not compare equal to nil.
	var sink session.Sink
	if rt.journal != nil {
		sink = rt.journal
	}
	rt.ctrl = automine.New(automine.Options{
		Agent:   ag,
		Config:  cfg.Mining,
		Catalog: cat,
		Logger:  logger,
		Metrics: metrics,
		Sink:    sink,
	})
	go func() {
		select {
		case <-lost:
			logger.Error().Msg("world connection lost")
			rt.ctrl.Stop("disconnected")
			stop()
		case <-ctx.Done():
			rt.ctrl.Stop("shutdown")
		}
	}()

	if fl.adminAddr != "" {
		srv := &http.Server{Addr: fl.adminAddr, Handler: adminMux(rt.ctrl), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn().Err(err).Msg("admin http stopped")
			}
		}()
		defer func() {
			ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx2)
		}()
		logger.Info().Str("addr", fl.adminAddr).Msg("admin http listening")
	}

	if cfg.Schedule == "" {
		_, err := rt.session(ctx, fl.overrides)
		if errors.Is(err, automine.ErrStopped) && ctx.Err() != nil {
			return nil
		}
		return err
	}

	job := &sessionJob{ctx: ctx, run: rt.session, overrides: fl.overrides, log: logging.Component(logger, "schedule")}
	c, err := newScheduler(cfg.Schedule, job, logger)
	if err != nil {
		return err
	}
	c.Start()
	logger.Info().Str("schedule", cfg.Schedule).Msg("waiting for scheduled sessions")
	<-ctx.Done()
	rt.ctrl.Stop("shutdown")
	<-c.Stop().Done()
	logger.Info().Int64("started", job.started.Load()).Int64("skipped", job.skipped.Load()).Msg("scheduler stopped")
	return nil
}

// connect returns the agent for either the in-memory world or a websocket session. lost
// is closed when the connection drops; it is nil for the in-memory world.
func connect(ctx context.Context, cfg config.AppConfig, fl runFlags, cat *catalogs.Catalogs, logger zerolog.Logger) (ag agent.Agent, lost <-chan struct{}, closeFn func(), err error) {
	if fl.sim {
		w := simworld.Spawn(simworld.SpawnOptions{
			Catalog:  cat,
			Seed:     cfg.Sim.Seed,
			SurfaceY: cfg.Sim.SurfaceY,
			Logs:     cfg.Sim.Logs,
		})
		ag = w.Agent()
		logger.Info().Int64("seed", cfg.Sim.Seed).Stringer("pos", w.Position()).Msg("simulated world ready")
		return ag, nil, func() {}, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	client, err := wsclient.Dial(dialCtx, wsclient.Options{
		URL:       cfg.ServerURL,
		AgentName: cfg.AgentName,
		Token:     fl.token,
		Catalog:   cat,
		Logger:    logging.Component(logger, "wsclient"),
	})
	if err != nil {
		return agent.Agent{}, nil, nil, fmt.Errorf("dial %s: %w", cfg.ServerURL, err)
	}
	welcome := client.Welcome()
	logger.Info().Str("session", welcome.SessionID).Str("agent_id", welcome.AgentID).Msg("connected")

	return client.Agent(), client.Done(), func() { _ = client.Close() }, nil
}

func loadCatalogs(dir string) (*catalogs.Catalogs, error) {
	if dir == "" {
		return catalogs.Default()
	}
	return catalogs.Load(dir)
}

// runner owns the controller and the stores that outlive single sessions.
type runner struct {
	log     zerolog.Logger
	ctrl    *automine.Controller
	journal *journal.Writer
	history *history.Store
}

// session runs one auto-mine session and persists its outcome. A start refused because
// another session is running records nothing.
func (rt *runner) session(ctx context.Context, o config.Overrides) (automine.Outcome, error) {
	out, err := rt.ctrl.Run(ctx, o)
	if errors.Is(err, automine.ErrAlreadyRunning) || out.SessionID == "" {
		return out, err
	}
	ev := rt.log.Info()
	if err != nil {
		ev = rt.log.Warn().Err(err)
	}
	ev.Str("session_id", out.SessionID).Str("reason", out.Reason).Bool("success", out.Success).
		Int("cycles", out.Cycles).Str("tier", out.Tier).Msg("session finished")

	// Persistence runs after a shutdown signal too, so it gets its own deadline.
	pctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if rt.history != nil {
		rec, jobs := history.FromOutcome(out, err)
		if herr := rt.history.Record(pctx, rec, jobs); herr != nil {
			rt.log.Error().Err(herr).Msg("history: record session")
		}
	}
	if rt.journal != nil {
		// Closing seals the open zstd frame so the reader sees every event; the next
		// record reopens the hourly file in append mode.
		if jerr := rt.journal.Close(); jerr != nil {
			rt.log.Warn().Err(jerr).Msg("journal: seal")
		}
		if dir, meta, aerr := journal.ArchiveSession(rt.journal.Dir(), out.SessionID); aerr != nil {
			rt.log.Warn().Err(aerr).Msg("journal: archive session")
		} else {
			rt.log.Info().Str("dir", dir).Int("events", meta.Events).Msg("session archived")
		}
	}
	return out, err
}
