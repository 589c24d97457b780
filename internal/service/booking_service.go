package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/models"
	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxServiceDuration = 1440
	defaultHoldTTL     = 10 * time.Minute
)

type BookingService interface {
	HoldBlock(ctx context.Context, in HoldInput) (*Hold, error)
	CreateBooking(ctx context.Context, in CreateBookingInput) (*models.Booking, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ListBookings(ctx context.Context, queueID, date string, status *models.BookingStatus) ([]models.Booking, error)
	TakenBlocks(ctx context.Context, queueID, date string) ([]models.BlockUsage, error)
}

// Deps are the stores and collaborators shared by the booking and lifecycle
// services. Side-effect collaborators left nil are skipped; Process needs
// Attentions and fails with an internal error without it.
type Deps struct {
	Bookings  repository.BookingRepository
	Queues    repository.QueueRepository
	Commerces repository.CommerceRepository
	Clients   repository.ClientRepository
	Ledger    repository.BlockUsageLedger

	Notifier     NotificationGateway
	Events       EventBus
	Attentions   AttentionFactory
	Packages     PackageLedger
	Incomes      IncomeLedger
	Telemedicine TelemedicineService
	Waitlist     WaitlistNotifier
	Consent      ConsentRequester

	Logger *zap.Logger
}

type Option func(*options)

type options struct {
	now      func() time.Time
	holdTTL  time.Duration
	location *time.Location
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithHoldTTL sets how long an unbound hold keeps its hour.
func WithHoldTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.holdTTL = ttl
		}
	}
}

// WithLocation sets the timezone used for commerces that have none.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.location = loc
		}
	}
}

// engine carries what both services need.
type engine struct {
	Deps
	opts      options
	log       *zap.Logger
	validator *SlotValidator
	numbers   *NumberAllocator
}

func newEngine(deps Deps, opts ...Option) *engine {
	o := options{now: time.Now, holdTTL: defaultHoldTTL, location: time.UTC}
	for _, opt := range opts {
		opt(&o)
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	validator := NewSlotValidator(deps.Ledger, o.now)
	return &engine{
		Deps:      deps,
		opts:      o,
		log:       log,
		validator: validator,
		numbers:   NewNumberAllocator(deps.Bookings, validator),
	}
}

func (e *engine) now() time.Time {
	return e.opts.now().UTC()
}

func (e *engine) findQueue(ctx context.Context, id string) (*models.Queue, error) {
	queue, err := e.Queues.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrQueueNotFound
	}
	if err != nil {
		return nil, internalError("find queue", err)
	}
	return queue, nil
}

func (e *engine) findBooking(ctx context.Context, id string) (*models.Booking, error) {
	b, err := e.Bookings.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, internalError("find booking", err)
	}
	return b, nil
}

func (e *engine) findCommerce(ctx context.Context, id string) (*models.Commerce, error) {
	c, err := e.Commerces.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCommerceNotFound
	}
	if err != nil {
		return nil, internalError("find commerce", err)
	}
	return c, nil
}

// location resolves the commerce timezone. A commerce not yet synced falls back
// to the default location.
func (e *engine) location(ctx context.Context, commerceID string) (*time.Location, error) {
	c, err := e.findCommerce(ctx, commerceID)
	if errors.Is(err, ErrCommerceNotFound) {
		return e.opts.location, nil
	}
	if err != nil {
		return nil, err
	}
	return c.Location(e.opts.location), nil
}

func (e *engine) checkCapacity(ctx context.Context, queue *models.Queue, date string) error {
	count, err := e.Bookings.CountActive(ctx, queue.ID, date)
	if err != nil {
		return internalError("count bookings", err)
	}
	if int(count) >= queue.Limit {
		return ErrQueueFull
	}
	return nil
}

func validateBlock(block *models.Block) error {
	if err := block.Validate(); err != nil {
		return errors.Join(ErrInvalidBlock, err)
	}
	return nil
}

// validateQueueBlock also rejects sub-blocks the queue does not offer.
func validateQueueBlock(queue *models.Queue, block *models.Block) error {
	if err := validateBlock(block); err != nil {
		return err
	}
	if !queue.Offers(block) {
		return fmt.Errorf("%w: block not offered by queue %s", ErrInvalidBlock, queue.ID)
	}
	return nil
}

// bestEffort runs a side effect whose failure must not reach the caller.
func (e *engine) bestEffort(op string, b *models.Booking, fn func() error) {
	if err := fn(); err != nil {
		e.log.Warn("side effect failed",
			zap.String("op", op),
			zap.String("booking_id", b.ID),
			zap.String("queue_id", b.QueueID),
			zap.Error(err),
		)
	}
}

func (e *engine) publish(ctx context.Context, eventType string, b *models.Booking, data any) {
	if e.Events == nil {
		return
	}
	e.bestEffort("publish "+eventType, b, func() error {
		return e.Events.Publish(ctx, eventType, models.NewBookingEvent(eventType, b, data, e.now()))
	})
}

func (e *engine) notify(ctx context.Context, kind NotificationKind, b *models.Booking, client *models.Client) {
	if e.Notifier == nil || client == nil {
		return
	}
	n := BookingNotification{Kind: kind, Booking: b, Client: client}
	if client.Email != "" {
		e.bestEffort("email "+string(kind), b, func() error {
			return e.Notifier.SendBookingEmail(ctx, n)
		})
	}
	if client.Phone != "" {
		e.bestEffort("whatsapp "+string(kind), b, func() error {
			return e.Notifier.SendBookingWhatsapp(ctx, n)
		})
	}
}

func (e *engine) clientOf(ctx context.Context, b *models.Booking) *models.Client {
	if b.ClientID == "" {
		return nil
	}
	client, err := e.Clients.FindByID(ctx, b.ClientID)
	if err != nil {
		e.log.Warn("client lookup failed", zap.String("booking_id", b.ID), zap.String("client_id", b.ClientID), zap.Error(err))
		return nil
	}
	return client
}

type HoldInput struct {
	QueueID   string
	Date      string
	Block     *models.Block
	SessionID string
}

// Hold is a pre-booking claim. SessionID is the token the client presents when
// it creates the booking.
type Hold struct {
	SessionID string
	ExpiresAt time.Time
	Claims    []models.BlockUsage
}

type CreateBookingInput struct {
	QueueID       string
	Date          string
	Block         *models.Block
	SessionID     string
	TermsAccepted bool

	Client models.Client

	Channel                string
	Type                   string
	ServicesID             []string
	ServicesDetails        []models.ServiceDetail
	ServiceDuration        *int
	ProfessionalID         string
	ProfessionalCommission float64
	CommissionType         string
	PackageID              string
	Telemedicine           *models.TelemedicineConfig
}

func (in CreateBookingInput) validDuration() bool {
	if in.ServiceDuration != nil && (*in.ServiceDuration < 1 || *in.ServiceDuration > maxServiceDuration) {
		return false
	}
	for _, d := range in.ServicesDetails {
		if d.Duration != 0 && (d.Duration < 1 || d.Duration > maxServiceDuration) {
			return false
		}
	}
	return true
}

type bookingService struct {
	*engine
}

func NewBookingService(deps Deps, opts ...Option) BookingService {
	return &bookingService{engine: newEngine(deps, opts...)}
}

func (s *bookingService) HoldBlock(ctx context.Context, in HoldInput) (*Hold, error) {
	if in.Block == nil {
		return nil, ErrMissingInput
	}
	if _, ok := models.ParseDate(in.Date); !ok {
		return nil, ErrInvalidDate
	}
	queue, err := s.findQueue(ctx, in.QueueID)
	if err != nil {
		return nil, err
	}
	if !queue.Bookable() {
		return nil, ErrQueueUnavailable
	}
	if err := validateQueueBlock(queue, in.Block); err != nil {
		return nil, err
	}
	loc, err := s.location(ctx, queue.CommerceID)
	if err != nil {
		return nil, err
	}
	if in.Date < models.DayIn(s.now(), loc) {
		return nil, ErrDateInPast
	}

	sessionID := in.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	ok, err := s.validator.CanReserve(ctx, queue, in.Date, in.Block, sessionID)
	if err != nil {
		return nil, internalError("check block", err)
	}
	if !ok {
		return nil, ErrBlockTaken
	}

	// A new hold replaces whatever the session held before on that day.
	if err := s.Ledger.DeleteSessionHolds(ctx, queue.ID, in.Date, sessionID); err != nil {
		return nil, internalError("release previous holds", err)
	}
	expiresAt := s.now().Add(s.opts.holdTTL)
	claims := models.UsagesFor(queue.ID, in.Date, in.Block, sessionID, "")
	for i := range claims {
		claims[i].ExpiresAt = &expiresAt
	}
	if err := s.Ledger.ClaimBlocks(ctx, claims); err != nil {
		return nil, internalError("claim blocks", err)
	}
	return &Hold{SessionID: sessionID, ExpiresAt: expiresAt, Claims: claims}, nil
}

func (s *bookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (*models.Booking, error) {
	if !in.TermsAccepted {
		return nil, ErrTermsNotAccepted
	}
	if _, ok := models.ParseDate(in.Date); !ok {
		return nil, ErrInvalidDate
	}
	queue, err := s.findQueue(ctx, in.QueueID)
	if err != nil {
		return nil, err
	}
	if !queue.Bookable() {
		return nil, ErrQueueUnavailable
	}
	if !in.validDuration() {
		return nil, ErrInvalidDuration
	}

	if in.Block != nil {
		if err := validateQueueBlock(queue, in.Block); err != nil {
			return nil, err
		}
		ok, err := s.validator.CanReserve(ctx, queue, in.Date, in.Block, in.SessionID)
		if err != nil {
			return nil, internalError("check block", err)
		}
		if !ok {
			if in.SessionID != "" {
				if err := s.Ledger.DeleteSessionHolds(ctx, queue.ID, in.Date, in.SessionID); err != nil {
					s.log.Warn("release stale holds failed", zap.String("queue_id", queue.ID), zap.String("session_id", in.SessionID), zap.Error(err))
				}
			}
			return nil, ErrBlockTaken
		}
	}
	if err := s.checkCapacity(ctx, queue, in.Date); err != nil {
		return nil, err
	}

	client, err := s.upsertClient(ctx, queue.CommerceID, in.Client)
	if err != nil {
		return nil, err
	}

	number, err := s.numbers.Allocate(ctx, queue, in.Date, in.Block, in.SessionID)
	if err != nil {
		return nil, err
	}

	booking := &models.Booking{
		ID:                     uuid.NewString(),
		QueueID:                queue.ID,
		CommerceID:             queue.CommerceID,
		Date:                   in.Date,
		Number:                 number,
		Block:                  in.Block.Clone(),
		Status:                 models.StatusPending,
		SessionID:              in.SessionID,
		Channel:                in.Channel,
		Type:                   in.Type,
		ServicesID:             in.ServicesID,
		ServicesDetails:        in.ServicesDetails,
		ProfessionalID:         in.ProfessionalID,
		ProfessionalCommission: in.ProfessionalCommission,
		CommissionType:         in.CommissionType,
		PackageID:              in.PackageID,
		Telemedicine:           in.Telemedicine,
	}
	if in.ServiceDuration != nil {
		booking.ServiceDuration = *in.ServiceDuration
	}
	if client != nil {
		booking.ClientID = client.ID
	}

	// Narrows the window against concurrent creators; it does not close it.
	if err := s.checkCapacity(ctx, queue, in.Date); err != nil {
		return nil, err
	}

	if err := s.claimFor(ctx, booking); err != nil {
		return nil, internalError("claim blocks", err)
	}
	if err := s.Bookings.Create(ctx, booking); err != nil {
		if booking.Block != nil {
			if rerr := s.Ledger.DeleteTakenBlocksByDate(ctx, booking.QueueID, booking.Date, booking.ID); rerr != nil {
				s.log.Error("release claims after failed create", zap.String("booking_id", booking.ID), zap.Error(rerr))
			}
		}
		return nil, internalError("create booking", err)
	}

	s.log.Info("booking created",
		zap.String("booking_id", booking.ID),
		zap.String("queue_id", booking.QueueID),
		zap.String("date", booking.Date),
		zap.Int("number", booking.Number),
	)

	s.notify(ctx, NotifyBookingCreated, booking, client)
	s.publish(ctx, models.EventBookingCreated, booking, nil)
	if booking.ProfessionalID != "" {
		s.publish(ctx, models.EventProfessionalAssignedToBooking, booking, map[string]any{
			"professional_id":         booking.ProfessionalID,
			"professional_commission": booking.ProfessionalCommission,
			"commission_type":         booking.CommissionType,
		})
	}
	if s.Consent != nil && client != nil {
		s.bestEffort("request consent", booking, func() error {
			return s.Consent.RequestConsent(ctx, booking, client)
		})
	}
	return booking, nil
}

// claimFor binds the session's holds to the booking and claims whatever hours
// the holds did not cover. Holds for other hours of the same session are
// dropped in favour of the booked block.
func (s *bookingService) claimFor(ctx context.Context, b *models.Booking) error {
	if b.Block == nil {
		return nil
	}
	want := models.UsagesFor(b.QueueID, b.Date, b.Block, b.SessionID, b.ID)
	if b.SessionID == "" {
		return s.Ledger.ClaimBlocks(ctx, want)
	}

	bound, err := s.Ledger.BindSession(ctx, b.QueueID, b.Date, b.SessionID, b.ID)
	if err != nil {
		return err
	}
	requested := make(map[string]struct{}, len(want))
	for _, u := range want {
		requested[u.HourFrom] = struct{}{}
	}
	have := make(map[string]struct{}, len(bound))
	for _, u := range bound {
		if _, ok := requested[u.HourFrom]; !ok {
			// Stray hold on another hour: rebuild the booking's claims from scratch.
			if err := s.Ledger.DeleteTakenBlocksByDate(ctx, b.QueueID, b.Date, b.ID); err != nil {
				return err
			}
			return s.Ledger.ClaimBlocks(ctx, want)
		}
		have[u.HourFrom] = struct{}{}
	}

	missing := want[:0:0]
	for _, u := range want {
		if _, ok := have[u.HourFrom]; !ok {
			missing = append(missing, u)
		}
	}
	return s.Ledger.ClaimBlocks(ctx, missing)
}

// upsertClient merges the inbound client with the stored one, if any. An empty
// inbound client yields no client.
func (s *bookingService) upsertClient(ctx context.Context, commerceID string, inbound models.Client) (*models.Client, error) {
	if inbound.ID == "" && inbound.Email == "" && inbound.IDNumber == "" && inbound.Phone == "" && inbound.Name == "" {
		return nil, nil
	}

	var existing *models.Client
	if inbound.ID != "" {
		found, err := s.Clients.FindByID(ctx, inbound.ID)
		switch {
		case err == nil:
			existing = found
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, internalError("find client", err)
		}
	}
	if existing == nil {
		found, err := s.Clients.FindByContact(ctx, commerceID, inbound.Email, inbound.IDNumber)
		if err != nil {
			return nil, internalError("find client", err)
		}
		existing = found
	}

	merged := models.MergeClient(existing, inbound)
	if merged.ID == "" {
		merged.ID = uuid.NewString()
	}
	if merged.CommerceID == "" {
		merged.CommerceID = commerceID
	}
	if merged.UpdatedAt.IsZero() {
		merged.UpdatedAt = s.now()
	}
	if err := s.Clients.Save(ctx, &merged); err != nil {
		return nil, internalError("save client", err)
	}
	return &merged, nil
}

func (s *bookingService) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	return s.findBooking(ctx, id)
}

func (s *bookingService) ListBookings(ctx context.Context, queueID, date string, status *models.BookingStatus) ([]models.Booking, error) {
	if _, ok := models.ParseDate(date); !ok {
		return nil, ErrInvalidDate
	}
	bookings, err := s.Bookings.FindByQueueAndDate(ctx, queueID, date, status)
	if err != nil {
		return nil, internalError("list bookings", err)
	}
	return bookings, nil
}

// TakenBlocks lists the live claims of a queue's day.
func (s *bookingService) TakenBlocks(ctx context.Context, queueID, date string) ([]models.BlockUsage, error) {
	if _, ok := models.ParseDate(date); !ok {
		return nil, ErrInvalidDate
	}
	usages, err := s.Ledger.GetTakenBlocksByDate(ctx, queueID, date)
	if err != nil {
		return nil, internalError("taken blocks", err)
	}
	now := s.now()
	live := make([]models.BlockUsage, 0, len(usages))
	for _, u := range usages {
		if u.Live(now) {
			live = append(live, u)
		}
	}
	return live, nil
}
