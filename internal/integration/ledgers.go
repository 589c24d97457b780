package integration

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/models"
	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/repository"
	"github.com/google/uuid"
)

// Attentions creates the attention a booking turns into. Repeated calls for
// the same booking return the existing attention.
type Attentions struct {
	repo repository.AttentionRepository
	now  func() time.Time
}

func NewAttentions(repo repository.AttentionRepository, now func() time.Time) *Attentions {
	if now == nil {
		now = time.Now
	}
	return &Attentions{repo: repo, now: now}
}

func (a *Attentions) CreateAttention(ctx context.Context, b *models.Booking) (*models.Attention, error) {
	existing, err := a.repo.FindByBookingID(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("find attention for booking %s: %w", b.ID, err)
	}
	if existing != nil {
		return existing, nil
	}

	attention := &models.Attention{
		ID:             uuid.NewString(),
		CommerceID:     b.CommerceID,
		QueueID:        b.QueueID,
		BookingID:      b.ID,
		ClientID:       b.ClientID,
		Number:         b.Number,
		Block:          b.Block,
		ProfessionalID: b.ProfessionalID,
		Status:         models.AttentionPending,
		CreatedAt:      a.now(),
	}
	if b.Telemedicine != nil && b.Telemedicine.Active {
		attention.TelemedicineSessionID = b.Telemedicine.SessionID
		if attention.TelemedicineSessionID == "" {
			attention.TelemedicineSessionID = uuid.NewString()
		}
	}

	if err := a.repo.Create(ctx, attention); err != nil {
		return nil, fmt.Errorf("create attention for booking %s: %w", b.ID, err)
	}
	return attention, nil
}

type Packages struct {
	repo repository.PackageRepository
}

func NewPackages(repo repository.PackageRepository) *Packages {
	return &Packages{repo: repo}
}

// IsPaid passes through gorm.ErrRecordNotFound for unknown packages.
func (p *Packages) IsPaid(ctx context.Context, packageID string) (bool, error) {
	pkg, err := p.repo.FindByID(ctx, packageID)
	if err != nil {
		return false, err
	}
	return pkg.Paid, nil
}

func (p *Packages) MarkPaid(ctx context.Context, packageID string) error {
	pkg, err := p.repo.FindByID(ctx, packageID)
	if err != nil {
		return err
	}
	if pkg.Paid {
		return nil
	}
	pkg.Paid = true
	return p.repo.Update(ctx, pkg)
}

// AttachBooking consumes one procedure of the package for the booking.
func (p *Packages) AttachBooking(ctx context.Context, packageID, bookingID string) error {
	pkg, err := p.repo.FindByID(ctx, packageID)
	if err != nil {
		return err
	}
	if slices.Contains(pkg.BookingIDs, bookingID) {
		return nil
	}
	if pkg.ProceduresAmount > 0 && pkg.ProceduresLeft <= 0 {
		return fmt.Errorf("package %s has no procedures left", packageID)
	}
	pkg.BookingIDs = append(pkg.BookingIDs, bookingID)
	if pkg.ProceduresLeft > 0 {
		pkg.ProceduresLeft--
	}
	return p.repo.Update(ctx, pkg)
}

func (p *Packages) DetachBooking(ctx context.Context, packageID, bookingID string) error {
	pkg, err := p.repo.FindByID(ctx, packageID)
	if err != nil {
		return err
	}
	i := slices.Index(pkg.BookingIDs, bookingID)
	if i < 0 {
		return nil
	}
	pkg.BookingIDs = slices.Delete(pkg.BookingIDs, i, i+1)
	if pkg.ProceduresLeft < pkg.ProceduresAmount {
		pkg.ProceduresLeft++
	}
	return p.repo.Update(ctx, pkg)
}

// Incomes records at most one income per booking.
type Incomes struct {
	repo repository.IncomeRepository
	now  func() time.Time
}

func NewIncomes(repo repository.IncomeRepository, now func() time.Time) *Incomes {
	if now == nil {
		now = time.Now
	}
	return &Incomes{repo: repo, now: now}
}

func (i *Incomes) RecordIncome(ctx context.Context, income models.Income) error {
	if income.BookingID != "" {
		exists, err := i.repo.ExistsForBooking(ctx, income.BookingID)
		if err != nil {
			return fmt.Errorf("check income for booking %s: %w", income.BookingID, err)
		}
		if exists {
			return nil
		}
	}
	if income.ID == "" {
		income.ID = uuid.NewString()
	}
	if income.CreatedAt.IsZero() {
		income.CreatedAt = i.now()
	}
	return i.repo.Create(ctx, &income)
}
