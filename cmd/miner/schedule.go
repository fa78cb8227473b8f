package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"voxelminer.ai/internal/config"
	"voxelminer.ai/internal/mining/automine"
)

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// runFunc starts one session and blocks until it ends.
type runFunc func(ctx context.Context, o config.Overrides) (automine.Outcome, error)

// sessionJob is the cron job that starts a session. A tick that fires while the previous
// session is still mining is skipped rather than queued.
type sessionJob struct {
	ctx       context.Context
	run       runFunc
	overrides config.Overrides
	log       zerolog.Logger

	started atomic.Int64
	skipped atomic.Int64
}

func (j *sessionJob) Run() {
	if j.ctx.Err() != nil {
		return
	}
	out, err := j.run(j.ctx, j.overrides)
	if errors.Is(err, automine.ErrAlreadyRunning) {
		j.skipped.Add(1)
		j.log.Warn().Msg("previous session still running, skipping scheduled start")
		return
	}
	j.started.Add(1)
	ev := j.log.Info()
	if err != nil {
		ev = j.log.Warn().Err(err)
	}
	ev.Str("session_id", out.SessionID).Str("reason", out.Reason).Msg("scheduled session finished")
}

// newScheduler registers job under the cron expression expr. The returned cron is not started.
func newScheduler(expr string, job cron.Job, log zerolog.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithParser(scheduleParser), cron.WithLogger(cronLogger{log}))
	if _, err := c.AddJob(expr, job); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", expr, err)
	}
	return c, nil
}

// cronLogger adapts zerolog to cron's logr-style interface.
type cronLogger struct{ l zerolog.Logger }

func (c cronLogger) Info(msg string, kv ...any) {
	c.l.Debug().Fields(kv).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.l.Error().Err(err).Fields(kv).Msg(msg)
}
