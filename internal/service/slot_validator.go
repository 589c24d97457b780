package service

import (
	"context"
	"time"

	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/models"
	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/repository"
)

// SlotValidator decides whether a block may be claimed on a queue's day, given
// what the block-usage ledger already holds.
type SlotValidator struct {
	ledger repository.BlockUsageLedger
	now    func() time.Time
}

func NewSlotValidator(ledger repository.BlockUsageLedger, now func() time.Time) *SlotValidator {
	if now == nil {
		now = time.Now
	}
	return &SlotValidator{ledger: ledger, now: now}
}

// CanReserve reports whether sessionID may claim every hour of block. Claims
// already held by the same session never count against it, so a retry of the
// same request succeeds.
func (v *SlotValidator) CanReserve(ctx context.Context, queue *models.Queue, date string, block *models.Block, sessionID string) (bool, error) {
	return v.canReserveFor(ctx, queue, date, block, sessionID, "")
}

// CanTransfer is CanReserve without any ownership exemption: the booking is
// moving into a queue where none of the existing claims are its own.
func (v *SlotValidator) CanTransfer(ctx context.Context, queue *models.Queue, date string, block *models.Block) (bool, error) {
	return v.canReserveFor(ctx, queue, date, block, "", "")
}

func (v *SlotValidator) canReserveFor(ctx context.Context, queue *models.Queue, date string, block *models.Block, sessionID, bookingID string) (bool, error) {
	hours := block.Hours()
	if len(hours) == 0 {
		return true, nil
	}
	taken, err := v.ledger.GetTakenBlocksByDate(ctx, queue.ID, date)
	if err != nil {
		return false, err
	}
	return Reservable(queue.EffectiveBlockLimit(), taken, hours, sessionID, bookingID, v.now()), nil
}

// Reservable is the pure decision behind CanReserve. For every requested hour,
// the live claims not owned by the requester must stay below limit.
func Reservable(limit int, taken []models.BlockUsage, hours []string, sessionID, bookingID string, now time.Time) bool {
	if limit < 1 {
		limit = 1
	}
	counts := make(map[string]int, len(taken))
	for _, u := range taken {
		if !u.Live(now) || u.OwnedBy(sessionID, bookingID) {
			continue
		}
		counts[u.HourFrom]++
	}
	for _, h := range hours {
		if counts[h] >= limit {
			return false
		}
	}
	return true
}
