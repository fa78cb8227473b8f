package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"voxelminer.ai/internal/agent"
	"voxelminer.ai/internal/catalogs"
	"voxelminer.ai/internal/logging"
	"voxelminer.ai/internal/transport/wsclient"
)

// bot connects once, prints what the world reports about the body and exits. It is the
// quickest check that a server speaks the protocol the miner expects.
func main() {
	var (
		url    = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name   = flag.String("name", "bot", "agent name")
		token  = flag.String("token", "", "auth token (or VM_TOKEN)")
		find   = flag.String("find", "", "comma-separated block names to locate (optional)")
		radius = flag.Int("radius", 16, "search radius for -find")
		say    = flag.String("say", "", "chat line to send (optional)")
	)
	flag.Parse()

	auth := strings.TrimSpace(*token)
	if auth == "" {
		auth = strings.TrimSpace(os.Getenv("VM_TOKEN"))
	}
	logger := logging.Component(logging.New(os.Stderr, "warn", "console"), "bot")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	dialCtx, cancelDial := context.WithTimeout(ctx, 10*time.Second)
	defer cancelDial()
	client, err := wsclient.Dial(dialCtx, wsclient.Options{
		URL:       *url,
		AgentName: *name,
		Token:     auth,
		Catalog:   catalogs.MustDefault(),
		Logger:    logger,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "dial:", err)
		os.Exit(1)
	}
	defer client.Close()

	var names []string
	for _, n := range strings.Split(*find, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	report(os.Stdout, client, names, *radius)
	if *say != "" {
		client.Agent().Announcer.Announce(*say)
	}
}

func report(out io.Writer, client *wsclient.Client, find []string, radius int) {
	w := client.Welcome()
	fmt.Fprintf(out, "WELCOME session=%s agent_id=%s seed=%d y=[%d,%d] reach=%.1f\n",
		w.SessionID, w.AgentID, w.WorldParams.Seed, w.WorldParams.MinY, w.WorldParams.MaxY, w.WorldParams.Reach)

	ag := client.Agent()
	pos := ag.Nav.Position()
	held, _ := ag.Inv.HeldItem()
	fmt.Fprintf(out, "pos=%s facing=%s held=%q empty_slots=%d\n", pos, ag.Nav.Facing(), held.Item, ag.Inv.EmptySlotCount())
	for _, st := range ag.Inv.Items() {
		fmt.Fprintf(out, "  %-20s x%d\n", st.Item, st.Count)
	}
	if below, ok := ag.World.BlockAt(pos.Down()); ok {
		fmt.Fprintf(out, "standing on %s\n", below.Name)
	}
	for _, name := range find {
		want := name
		b, ok := ag.World.FindNearestBlock(pos, func(b agent.Block) bool { return b.Name == want }, radius)
		if !ok {
			fmt.Fprintf(out, "%s: none within %d\n", name, radius)
			continue
		}
		fmt.Fprintf(out, "%s: %s (%.1f away)\n", name, b.Pos, pos.Distance(b.Pos))
	}
}
