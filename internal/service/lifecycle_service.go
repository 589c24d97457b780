package service

import (
	"context"
	"errors"
	"slices"

	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LifecycleService moves a booking through PENDING -> CONFIRMED -> PROCESSED,
// or into RESERVE_CANCELLED, and relocates it between queues, dates and blocks.
type LifecycleService interface {
	Confirm(ctx context.Context, id string, in ConfirmInput) (*models.Booking, error)
	Cancel(ctx context.Context, id, actor string) (*models.Booking, error)
	Process(ctx context.Context, id, actor string) (*models.Booking, error)
	Transfer(ctx context.Context, id string, in TransferInput) (*models.Booking, error)
	Edit(ctx context.Context, id string, in EditInput) (*models.Booking, error)
}

type Payment struct {
	Amount        float64
	Commission    float64
	PaymentMethod string
}

type ConfirmInput struct {
	ConfirmedBy string
	Payment     *Payment
}

type TransferInput struct {
	QueueID      string
	Block        *models.Block
	TransferedBy string
}

type EditInput struct {
	Date     string
	Block    *models.Block
	EditedBy string
}

type lifecycleService struct {
	*engine
}

func NewLifecycleService(deps Deps, opts ...Option) LifecycleService {
	return &lifecycleService{engine: newEngine(deps, opts...)}
}

func (s *lifecycleService) Confirm(ctx context.Context, id string, in ConfirmInput) (*models.Booking, error) {
	b, err := s.findBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	switch b.Status {
	case models.StatusCancelled:
		return nil, ErrBookingCancelled
	case models.StatusProcessed:
		return nil, ErrAlreadyProcessed
	case models.StatusConfirmed:
		return b, nil
	}

	commerce, err := s.findCommerce(ctx, b.CommerceID)
	if err != nil {
		return nil, err
	}
	if !commerce.HasFeature(models.FeatureBookingConfirm) {
		return nil, ErrFeatureDisabled
	}

	if err := s.settlePayment(ctx, b, in.Payment); err != nil {
		return nil, err
	}

	now := s.now()
	b.Status = models.StatusConfirmed
	b.ConfirmedAt = &now
	b.ConfirmedBy = in.ConfirmedBy
	if err := s.Bookings.Update(ctx, b); err != nil {
		return nil, internalError("confirm booking", err)
	}
	s.publish(ctx, models.EventBookingUpdated, b, map[string]any{"status": b.Status})

	if b.Date == models.DayIn(now, commerce.Location(s.opts.location)) {
		processed, err := s.Process(ctx, b.ID, in.ConfirmedBy)
		if err != nil {
			s.log.Warn("process after confirm failed", zap.String("booking_id", b.ID), zap.Error(err))
			return b, nil
		}
		return processed, nil
	}
	return b, nil
}

// settlePayment records income and package linkage once. A booking or package
// already marked paid is never charged again.
func (s *lifecycleService) settlePayment(ctx context.Context, b *models.Booking, p *Payment) error {
	paid := b.Paid
	if !paid && b.PackageID != "" && s.Packages != nil {
		var err error
		paid, err = s.Packages.IsPaid(ctx, b.PackageID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPackageNotFound
		}
		if err != nil {
			return internalError("package status", err)
		}
	}

	if !paid && p != nil && s.Incomes != nil {
		err := s.Incomes.RecordIncome(ctx, models.Income{
			ID:             uuid.NewString(),
			CommerceID:     b.CommerceID,
			BookingID:      b.ID,
			PackageID:      b.PackageID,
			ClientID:       b.ClientID,
			ProfessionalID: b.ProfessionalID,
			Amount:         p.Amount,
			Commission:     p.Commission,
			PaymentMethod:  p.PaymentMethod,
			CreatedAt:      s.now(),
		})
		if err != nil {
			return internalError("record income", err)
		}
		if b.PackageID != "" && s.Packages != nil {
			if err := s.Packages.MarkPaid(ctx, b.PackageID); err != nil {
				return internalError("mark package paid", err)
			}
		}
		paid = true
	}

	if paid && !b.Paid {
		now := s.now()
		b.Paid = true
		b.PaidAt = &now
	}
	if b.PackageID != "" && s.Packages != nil {
		if err := s.Packages.AttachBooking(ctx, b.PackageID, b.ID); err != nil {
			return internalError("attach booking to package", err)
		}
	}
	return nil
}

// Cancel on an already cancelled booking returns it untouched.
func (s *lifecycleService) Cancel(ctx context.Context, id, actor string) (*models.Booking, error) {
	b, err := s.findBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	switch b.Status {
	case models.StatusCancelled:
		return b, nil
	case models.StatusProcessed:
		return nil, ErrAlreadyProcessed
	}

	now := s.now()
	b.Status = models.StatusCancelled
	b.CancelledAt = &now
	b.CancelledBy = actor
	if err := s.Bookings.Update(ctx, b); err != nil {
		return nil, internalError("cancel booking", err)
	}

	if b.Block != nil {
		if err := s.Ledger.DeleteTakenBlocksByDate(ctx, b.QueueID, b.Date, b.ID); err != nil {
			s.log.Error("release claims failed", zap.String("booking_id", b.ID), zap.String("queue_id", b.QueueID), zap.Error(err))
		}
	}
	if s.Telemedicine != nil && b.Telemedicine != nil && b.Telemedicine.SessionID != "" {
		s.bestEffort("cancel telemedicine", b, func() error {
			return s.Telemedicine.CancelSession(ctx, b.Telemedicine.SessionID)
		})
	}
	if s.Waitlist != nil {
		s.bestEffort("notify waitlist", b, func() error {
			return s.Waitlist.NotifyAvailability(ctx, b.QueueID, b.Date, b.Block)
		})
	}
	s.notify(ctx, NotifyBookingCancelled, b, s.clientOf(ctx, b))
	if s.Packages != nil && b.PackageID != "" {
		s.bestEffort("detach from package", b, func() error {
			return s.Packages.DetachBooking(ctx, b.PackageID, b.ID)
		})
	}
	s.publish(ctx, models.EventBookingUpdated, b, map[string]any{"status": b.Status})

	s.log.Info("booking cancelled", zap.String("booking_id", b.ID), zap.String("by", actor))
	return b, nil
}

// Process turns a booking dated today into an attention.
func (s *lifecycleService) Process(ctx context.Context, id, actor string) (*models.Booking, error) {
	b, err := s.findBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case b.Processed || b.Status == models.StatusProcessed:
		return nil, ErrAlreadyProcessed
	case b.AttentionID != "":
		return nil, ErrAttentionExists
	case b.Status == models.StatusCancelled:
		return nil, ErrBookingCancelled
	}

	loc, err := s.location(ctx, b.CommerceID)
	if err != nil {
		return nil, err
	}
	if b.Date != models.DayIn(s.now(), loc) {
		return nil, ErrNotToday
	}

	if s.Attentions == nil {
		return nil, internalError("create attention", errors.New("no attention factory configured"))
	}
	attention, err := s.Attentions.CreateAttention(ctx, b)
	if err != nil {
		return nil, internalError("create attention", err)
	}

	now := s.now()
	b.AttentionID = attention.ID
	b.Processed = true
	b.ProcessedAt = &now
	b.Status = models.StatusProcessed
	if attention.TelemedicineSessionID != "" && b.Telemedicine != nil {
		tm := *b.Telemedicine
		tm.SessionID = attention.TelemedicineSessionID
		b.Telemedicine = &tm
	}
	if err := s.Bookings.Update(ctx, b); err != nil {
		return nil, internalError("process booking", err)
	}
	s.publish(ctx, models.EventBookingUpdated, b, map[string]any{"status": b.Status, "attention_id": b.AttentionID})

	s.log.Info("booking processed",
		zap.String("booking_id", b.ID),
		zap.String("attention_id", b.AttentionID),
		zap.String("by", actor),
	)
	return b, nil
}

func (s *lifecycleService) Transfer(ctx context.Context, id string, in TransferInput) (*models.Booking, error) {
	if in.QueueID == "" {
		return nil, ErrMissingInput
	}
	b, err := s.findBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := movable(b); err != nil {
		return nil, err
	}
	if b.QueueID == in.QueueID {
		return nil, ErrSameQueue
	}

	dest, err := s.findQueue(ctx, in.QueueID)
	if err != nil {
		return nil, err
	}
	if !dest.Bookable() {
		return nil, ErrQueueUnavailable
	}
	if err := s.checkCapacity(ctx, dest, b.Date); err != nil {
		return nil, err
	}

	block := b.Block
	if in.Block != nil {
		if err := validateQueueBlock(dest, in.Block); err != nil {
			return nil, err
		}
		block = in.Block
	}
	ok, err := s.validator.CanTransfer(ctx, dest, b.Date, block)
	if err != nil {
		return nil, internalError("check block", err)
	}
	if !ok {
		return nil, ErrBlockTaken
	}
	number, err := s.numbers.Allocate(ctx, dest, b.Date, block, "")
	if err != nil {
		return nil, err
	}

	prev := *b
	now := s.now()
	b.TransferedFrom = b.QueueID
	b.TransferedOrigin = b.Date
	b.TransferedCount++
	b.TransferedAt = &now
	b.TransferedBy = in.TransferedBy
	b.QueueID = dest.ID
	b.Block = block.Clone()
	b.Number = number

	if err := s.relocate(ctx, &prev, b); err != nil {
		return nil, err
	}

	s.notify(ctx, NotifyBookingTransferred, b, s.clientOf(ctx, b))
	s.publish(ctx, models.EventBookingUpdated, b, map[string]any{
		"transfered_from":  b.TransferedFrom,
		"transfered_count": b.TransferedCount,
	})
	return b, nil
}

func (s *lifecycleService) Edit(ctx context.Context, id string, in EditInput) (*models.Booking, error) {
	if in.Date == "" && in.Block == nil {
		return nil, ErrMissingInput
	}
	b, err := s.findBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := movable(b); err != nil {
		return nil, err
	}

	date := b.Date
	if in.Date != "" {
		if _, ok := models.ParseDate(in.Date); !ok {
			return nil, ErrInvalidDate
		}
		date = in.Date
	}
	block := b.Block
	if in.Block != nil {
		if err := validateBlock(in.Block); err != nil {
			return nil, err
		}
		block = in.Block
	}

	loc, err := s.location(ctx, b.CommerceID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if date < models.DayIn(now, loc) {
		return nil, ErrDateInPast
	}

	queue, err := s.findQueue(ctx, b.QueueID)
	if err != nil {
		return nil, err
	}
	if in.Block != nil {
		if err := validateQueueBlock(queue, in.Block); err != nil {
			return nil, err
		}
	}
	if date != b.Date {
		if err := s.checkCapacity(ctx, queue, date); err != nil {
			return nil, err
		}
	}
	ok, err := s.validator.canReserveFor(ctx, queue, date, block, b.SessionID, b.ID)
	if err != nil {
		return nil, internalError("check block", err)
	}
	if !ok {
		return nil, ErrBlockTaken
	}

	var telemedicine *models.TelemedicineConfig
	if b.Telemedicine != nil {
		tm := *b.Telemedicine
		if first, ok := block.First(); ok && tm.Active {
			at, ok := models.At(date, first.HourFrom, loc)
			if !ok {
				return nil, ErrInvalidBlock
			}
			if at.Before(now) {
				return nil, ErrDateInPast
			}
			at = at.UTC()
			tm.ScheduledAt = &at
		}
		telemedicine = &tm
	}

	number := b.Number
	if first, ok := block.First(); ok && !queue.IsSelectService() {
		number = first.Number
	} else if date != b.Date {
		number, err = s.numbers.Allocate(ctx, queue, date, block, b.SessionID)
		if err != nil {
			return nil, err
		}
	}

	prev := *b
	b.EditedDateOrigin = b.Date
	b.EditedBlockOrigin = b.Block.Clone()
	b.EditedAt = &now
	b.EditedBy = in.EditedBy
	b.Date = date
	b.Block = block.Clone()
	b.Telemedicine = telemedicine
	b.Number = number

	if err := s.relocate(ctx, &prev, b); err != nil {
		return nil, err
	}

	s.notify(ctx, NotifyBookingEdited, b, s.clientOf(ctx, b))
	s.publish(ctx, models.EventBookingUpdated, b, map[string]any{
		"edited_date_origin": b.EditedDateOrigin,
	})
	return b, nil
}

func movable(b *models.Booking) error {
	switch b.Status {
	case models.StatusCancelled:
		return ErrBookingCancelled
	case models.StatusProcessed:
		return ErrAlreadyProcessed
	}
	return nil
}

// relocate saves next and then moves the ledger claims from prev's placement to
// next's. The two writes are a compensating pair: a failed ledger move puts the
// booking back as it was.
func (s *lifecycleService) relocate(ctx context.Context, prev, next *models.Booking) error {
	if err := s.Bookings.Update(ctx, next); err != nil {
		return internalError("update booking", err)
	}
	if err := s.moveClaims(ctx, prev, next); err != nil {
		if rerr := s.Bookings.Update(ctx, prev); rerr != nil {
			s.log.Error("revert booking after ledger failure", zap.String("booking_id", prev.ID), zap.Error(rerr))
		}
		*next = *prev
		return internalError("move claims", err)
	}
	return nil
}

func (s *lifecycleService) moveClaims(ctx context.Context, prev, next *models.Booking) error {
	switch {
	case prev.Block == nil && next.Block == nil:
		return nil
	case prev.Block == nil:
		return s.Ledger.ClaimBlocks(ctx, models.UsagesFor(next.QueueID, next.Date, next.Block, next.SessionID, next.ID))
	case next.Block == nil:
		return s.Ledger.DeleteTakenBlocksByDate(ctx, prev.QueueID, prev.Date, prev.ID)
	}

	queueID := prev.QueueID
	if next.QueueID != prev.QueueID {
		if err := s.Ledger.EditQueueTakenBlocksByDate(ctx, prev.QueueID, prev.Date, prev.ID, next.QueueID); err != nil {
			return err
		}
		queueID = next.QueueID
	}
	if next.Date != prev.Date || !sameBlock(prev.Block, next.Block) {
		err := s.Ledger.EditHourAndDateTakenBlocksByDate(ctx, queueID, prev.Date, prev.ID, next.Date, next.Block)
		if err != nil && queueID != prev.QueueID {
			if rerr := s.Ledger.EditQueueTakenBlocksByDate(ctx, queueID, prev.Date, prev.ID, prev.QueueID); rerr != nil {
				s.log.Error("move claims back failed", zap.String("booking_id", prev.ID), zap.Error(rerr))
			}
		}
		return err
	}
	return nil
}

func sameBlock(a, b *models.Block) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Kind == b.Kind && slices.Equal(a.Blocks, b.Blocks)
}
