package main

import (
	"fmt"
	"os"
)

const usage = `usage: admin <command> [flags]

commands:
  sessions   list recorded sessions, newest first
  session    show one session with its furnace jobs
  jobs       list the furnace jobs of a session
  totals     aggregate counters over every session
  archives   list archived session journals
  status     query a running miner's admin endpoint
  stop       ask a running miner to stop its session`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "sessions":
		err = sessionsCmd(os.Stdout, args)
	case "session":
		err = sessionCmd(os.Stdout, args)
	case "jobs":
		err = jobsCmd(os.Stdout, args)
	case "totals":
		err = totalsCmd(os.Stdout, args)
	case "archives":
		err = archivesCmd(os.Stdout, args)
	case "status":
		err = statusCmd(os.Stdout, args)
	case "stop":
		err = stopCmd(os.Stdout, args)
	default:
		fmt.Fprintln(os.Stderr, "unknown command:", os.Args[1])
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, os.Args[1]+":", err)
		os.Exit(1)
	}
}
