// Package jobs holds the bulk booking transitions run on a schedule or on
// demand: same-day processing, confirmation reminders and stale cancellation.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/batch"
	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/models"
	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/repository"
	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/service"
	"go.uber.org/zap"
)

const (
	ProcessToday       = "process-today"
	ConfirmReminders   = "confirm-reminders"
	CancelStalePending = "cancel-stale-pending"

	systemActor = "system"
)

type Deps struct {
	Commerces repository.CommerceRepository
	Bookings  repository.BookingRepository
	Clients   repository.ClientRepository
	Lifecycle service.LifecycleService
	Notifier  service.NotificationGateway
	Runner    *batch.Runner
	Logger    *zap.Logger
}

type Config struct {
	// StalePendingAfter is how old a pending booking must be before it is
	// auto-cancelled.
	StalePendingAfter time.Duration
	Location          *time.Location
	Now               func() time.Time
}

type Jobs struct {
	Deps
	cfg  Config
	log  *zap.Logger
	runs map[string]func(context.Context, *batch.SeenSet) (batch.Result, error)

	mu     sync.Mutex
	active map[string]*sharedSeen
}

// sharedSeen lets overlapping runs of one job skip each other's bookings.
// It lives only while at least one run of that job is in progress.
type sharedSeen struct {
	set  *batch.SeenSet
	refs int
}

func New(deps Deps, cfg Config) *Jobs {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.StalePendingAfter <= 0 {
		cfg.StalePendingAfter = 24 * time.Hour
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	j := &Jobs{Deps: deps, cfg: cfg, log: log.Named("jobs"), active: map[string]*sharedSeen{}}
	j.runs = map[string]func(context.Context, *batch.SeenSet) (batch.Result, error){
		ProcessToday:       j.processToday,
		ConfirmReminders:   j.sendConfirmationReminders,
		CancelStalePending: j.cancelStalePending,
	}
	return j
}

func (j *Jobs) Names() []string {
	names := make([]string, 0, len(j.runs))
	for name := range j.runs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes the named job and waits for the whole batch.
func (j *Jobs) Run(ctx context.Context, name string) (batch.Result, error) {
	run, ok := j.runs[name]
	if !ok {
		return batch.Result{}, fmt.Errorf("%w: %s", service.ErrJobNotFound, name)
	}
	seen := j.acquire(name)
	defer j.release(name)

	started := time.Now()
	res, err := run(ctx, seen)
	if err != nil {
		j.log.Error("job failed", zap.String("job", name), zap.Error(err))
		return res, err
	}
	j.log.Info("job finished",
		zap.String("job", name),
		zap.Int("to_process", res.ToProcess),
		zap.Int("processed", res.Processed),
		zap.Int("errors", res.Errors),
		zap.Int("skipped", res.Skipped),
		zap.Duration("took", time.Since(started)),
	)
	return res, nil
}

func (j *Jobs) ProcessTodayBookings(ctx context.Context) (batch.Result, error) {
	return j.Run(ctx, ProcessToday)
}

func (j *Jobs) SendConfirmationReminders(ctx context.Context) (batch.Result, error) {
	return j.Run(ctx, ConfirmReminders)
}

func (j *Jobs) CancelStalePending(ctx context.Context) (batch.Result, error) {
	return j.Run(ctx, CancelStalePending)
}

func (j *Jobs) acquire(name string) *batch.SeenSet {
	j.mu.Lock()
	defer j.mu.Unlock()
	s, ok := j.active[name]
	if !ok {
		s = &sharedSeen{set: batch.NewSeenSet()}
		j.active[name] = s
	}
	s.refs++
	return s.set
}

func (j *Jobs) release(name string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	s := j.active[name]
	s.refs--
	if s.refs == 0 {
		delete(j.active, name)
	}
}

func (j *Jobs) today(c *models.Commerce) string {
	return models.DayIn(j.cfg.Now(), c.Location(j.cfg.Location))
}

func (j *Jobs) commercesWith(ctx context.Context, feature string) ([]models.Commerce, error) {
	all, err := j.Commerces.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list commerces: %w", err)
	}
	if feature == "" {
		return all, nil
	}
	out := all[:0]
	for _, c := range all {
		if c.HasFeature(feature) {
			out = append(out, c)
		}
	}
	return out, nil
}

// fresh re-reads the booking right before acting on it.
func (j *Jobs) fresh(ctx context.Context, id string) (*models.Booking, error) {
	b, err := j.Bookings.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload booking %s: %w", id, err)
	}
	return b, nil
}

func (j *Jobs) processToday(ctx context.Context, seen *batch.SeenSet) (batch.Result, error) {
	commerces, err := j.commercesWith(ctx, "")
	if err != nil {
		return batch.Result{}, err
	}
	var items []batch.Item
	for i := range commerces {
		c := &commerces[i]
		bookings, err := j.Bookings.FindByCommerceDateStatus(ctx, c.ID, j.today(c), models.StatusConfirmed)
		if err != nil {
			return batch.Result{}, fmt.Errorf("list confirmed bookings for %s: %w", c.ID, err)
		}
		for _, b := range bookings {
			id := b.ID
			items = append(items, batch.Item{Key: id, Job: func(ctx context.Context) error {
				b, err := j.fresh(ctx, id)
				if err != nil {
					return err
				}
				if b.Status != models.StatusConfirmed || b.Processed || b.AttentionID != "" {
					return batch.ErrSkipped
				}
				_, err = j.Lifecycle.Process(ctx, id, systemActor)
				return err
			}})
		}
	}
	return j.Runner.Run(ctx, items, seen), nil
}

func (j *Jobs) sendConfirmationReminders(ctx context.Context, seen *batch.SeenSet) (batch.Result, error) {
	commerces, err := j.commercesWith(ctx, models.FeatureBookingConfirmReminder)
	if err != nil {
		return batch.Result{}, err
	}
	var items []batch.Item
	for i := range commerces {
		c := &commerces[i]
		tomorrow := models.AddDays(j.today(c), 1)
		bookings, err := j.Bookings.FindByCommerceDateStatus(ctx, c.ID, tomorrow, models.StatusPending)
		if err != nil {
			return batch.Result{}, fmt.Errorf("list pending bookings for %s: %w", c.ID, err)
		}
		for _, b := range bookings {
			if b.ConfirmNotifiedAt != nil {
				continue
			}
			id := b.ID
			items = append(items, batch.Item{Key: id, Job: func(ctx context.Context) error {
				return j.remind(ctx, id)
			}})
		}
	}
	return j.Runner.Run(ctx, items, seen), nil
}

func (j *Jobs) remind(ctx context.Context, id string) error {
	b, err := j.fresh(ctx, id)
	if err != nil {
		return err
	}
	if b.Status != models.StatusPending || b.ConfirmNotifiedAt != nil || b.ClientID == "" {
		return batch.ErrSkipped
	}
	client, err := j.Clients.FindByID(ctx, b.ClientID)
	if err != nil {
		return fmt.Errorf("load client %s: %w", b.ClientID, err)
	}

	n := service.BookingNotification{Kind: service.NotifyBookingReminder, Booking: b, Client: client}
	var sent int
	var errs []error
	if client.Email != "" {
		if err := j.Notifier.SendBookingEmail(ctx, n); err != nil {
			errs = append(errs, err)
		} else {
			sent++
		}
	}
	if client.Phone != "" {
		if err := j.Notifier.SendBookingWhatsapp(ctx, n); err != nil {
			errs = append(errs, err)
		} else {
			sent++
		}
	}
	if sent == 0 {
		if len(errs) == 0 {
			return batch.ErrSkipped
		}
		return errors.Join(errs...)
	}

	now := j.cfg.Now().UTC()
	b.ConfirmNotifiedAt = &now
	return j.Bookings.Update(ctx, b)
}

func (j *Jobs) cancelStalePending(ctx context.Context, seen *batch.SeenSet) (batch.Result, error) {
	commerces, err := j.commercesWith(ctx, models.FeatureBookingAutoCancel)
	if err != nil {
		return batch.Result{}, err
	}
	createdBefore := j.cfg.Now().Add(-j.cfg.StalePendingAfter)
	var items []batch.Item
	for i := range commerces {
		c := &commerces[i]
		bookings, err := j.Bookings.FindPendingBefore(ctx, c.ID, j.today(c), createdBefore)
		if err != nil {
			return batch.Result{}, fmt.Errorf("list stale bookings for %s: %w", c.ID, err)
		}
		for _, b := range bookings {
			id := b.ID
			items = append(items, batch.Item{Key: id, Job: func(ctx context.Context) error {
				b, err := j.fresh(ctx, id)
				if err != nil {
					return err
				}
				if b.Status != models.StatusPending {
					return batch.ErrSkipped
				}
				_, err = j.Lifecycle.Cancel(ctx, id, systemActor)
				return err
			}})
		}
	}
	return j.Runner.Run(ctx, items, seen), nil
}
