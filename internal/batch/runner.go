// Package batch runs many independent jobs with a cap on how many are in
// flight and a minimum spacing between job starts.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ErrSkipped is returned by a job that found nothing to do.
var ErrSkipped = errors.New("batch: skipped")

type Job func(ctx context.Context) error

// Item is one unit of work. Key identifies it for de-duplication.
type Item struct {
	Key string
	Job Job
}

// Result aggregates one run. ToProcess counts items accepted after
// de-duplication; Processed + Errors + Skipped == ToProcess.
type Result struct {
	ToProcess int `json:"toProcess"`
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
	Skipped   int `json:"skipped"`
}

// SeenSet remembers keys already submitted. It is safe for concurrent use and
// may be shared by overlapping runs that must not repeat work.
type SeenSet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func NewSeenSet() *SeenSet {
	return &SeenSet{keys: make(map[string]struct{})}
}

// Add reports whether key was new.
func (s *SeenSet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

type Options struct {
	// MaxInFlight caps concurrently running jobs. Zero or less means 1.
	MaxInFlight int
	// Spacing is the minimum gap between two job starts. Zero disables it.
	Spacing time.Duration
	Logger  *zap.Logger
}

type Runner struct {
	opts Options
	log  *zap.Logger
}

func NewRunner(opts Options) *Runner {
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = 1
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{opts: opts, log: log}
}

// Run executes every item once and returns after all of them settled. A job
// error or panic is counted, never returned. seen may be nil, in which case
// de-duplication is scoped to this call.
//
// Cancelling ctx stops new starts; items not started are counted as skipped.
func (r *Runner) Run(ctx context.Context, items []Item, seen *SeenSet) Result {
	if seen == nil {
		seen = NewSeenSet()
	}

	var (
		processed atomic.Int64
		failed    atomic.Int64
		skipped   atomic.Int64
		accepted  int
	)

	var limiter *rate.Limiter
	if r.opts.Spacing > 0 {
		limiter = rate.NewLimiter(rate.Every(r.opts.Spacing), 1)
	}

	g := new(errgroup.Group)
	g.SetLimit(r.opts.MaxInFlight)

	for _, item := range items {
		if item.Key != "" && !seen.Add(item.Key) {
			continue
		}
		accepted++

		if ctx.Err() != nil {
			skipped.Add(1)
			continue
		}

		item := item
		g.Go(func() error {
			// The start token is taken inside the slot so starts stay spaced
			// even when slots free up in bursts.
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					skipped.Add(1)
					return nil
				}
			}
			err := r.runOne(ctx, item)
			switch {
			case err == nil:
				processed.Add(1)
			case errors.Is(err, ErrSkipped):
				skipped.Add(1)
			default:
				failed.Add(1)
				r.log.Warn("batch job failed", zap.String("key", item.Key), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	return Result{
		ToProcess: accepted,
		Processed: int(processed.Load()),
		Errors:    int(failed.Load()),
		Skipped:   int(skipped.Load()),
	}
}

func (r *Runner) runOne(ctx context.Context, item Item) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("batch: job %q panicked: %v", item.Key, p)
		}
	}()
	return item.Job(ctx)
}
