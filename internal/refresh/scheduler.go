package refresh

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	appLog "hktft/internal/log"
)

// Scheduler runs a job on a standard five-field cron schedule.
type Scheduler struct {
	c        *cron.Cron
	schedule string
}

// NewScheduler parses schedule and registers job. Runs never overlap; a run
// still in progress when the next one is due causes that one to be skipped.
func NewScheduler(ctx context.Context, schedule string, job func(context.Context) error) (*Scheduler, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("refresh: schedule %q: %w", schedule, err)
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(schedule, func() {
		if ctx.Err() != nil {
			return
		}
		if err := job(ctx); err != nil {
			appLog.Error("scheduled refresh failed", err, "schedule", schedule)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("refresh: schedule %q: %w", schedule, err)
	}
	return &Scheduler{c: c, schedule: schedule}, nil
}

// Start begins running the schedule in the background.
func (s *Scheduler) Start() {
	appLog.Info("refresh scheduler started", "schedule", s.schedule)
	s.c.Start()
}

// Stop halts the schedule and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
}
