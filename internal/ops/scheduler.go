package ops

import (
	"context"
	"time"

	"admissions-lifecycle/internal/common/logger"

	"github.com/robfig/cron/v3"
)

// Scheduler runs a job on a cron schedule. Runs never overlap; a tick that
// arrives while the previous run is still going is skipped.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler parses schedule (standard five-field or a descriptor such as
// "@daily") and registers run. Each run gets its own context bounded by
// timeout.
func NewScheduler(schedule string, timeout time.Duration, run func(ctx context.Context) error, log logger.Logger) (*Scheduler, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		start := time.Now()
		if err := run(ctx); err != nil {
			log.Error("scheduled run failed", map[string]interface{}{"schedule": schedule, "error": err.Error()})
			return
		}
		log.Debug("scheduled run finished", map[string]interface{}{"schedule": schedule, "took": time.Since(start).String()})
	})
	if err != nil {
		return nil, err
	}
	return &Scheduler{cron: c}, nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop prevents new runs and waits for a running one to return or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
