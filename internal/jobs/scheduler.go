package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler fires jobs on cron expressions. An empty expression leaves the job
// unscheduled; it can still be run on demand.
type Scheduler struct {
	cron    *cron.Cron
	jobs    *Jobs
	timeout time.Duration
	log     *zap.Logger
}

func NewScheduler(jobs *Jobs, loc *time.Location, timeout time.Duration, log *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		jobs:    jobs,
		timeout: timeout,
		log:     log.Named("scheduler"),
	}
}

// Schedule maps job names to cron expressions.
func (s *Scheduler) Schedule(specs map[string]string) error {
	for name, spec := range specs {
		if spec == "" {
			continue
		}
		name := name
		if _, ok := s.jobs.runs[name]; !ok {
			return fmt.Errorf("schedule %q: unknown job", name)
		}
		if _, err := s.cron.AddFunc(spec, func() { s.fire(name) }); err != nil {
			return fmt.Errorf("schedule %q: %w", name, err)
		}
		s.log.Info("job scheduled", zap.String("job", name), zap.String("spec", spec))
	}
	return nil
}

func (s *Scheduler) fire(name string) {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	// Run logs the outcome.
	_, _ = s.jobs.Run(ctx, name)
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running ones.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
