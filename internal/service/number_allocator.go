package service

import (
	"context"

	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/models"
	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/repository"
)

// NumberAllocator picks the ordinal a booking gets inside its queue's day.
type NumberAllocator struct {
	bookings  repository.BookingRepository
	validator *SlotValidator
}

func NewNumberAllocator(bookings repository.BookingRepository, validator *SlotValidator) *NumberAllocator {
	return &NumberAllocator{bookings: bookings, validator: validator}
}

// Allocate returns the block's own number for block-based queues and the next
// sequential position otherwise. When the queue has an explicit block limit,
// every sub-block is re-validated on its own before the number is handed out.
func (a *NumberAllocator) Allocate(ctx context.Context, queue *models.Queue, date string, block *models.Block, sessionID string) (int, error) {
	if block != nil && !queue.IsSelectService() {
		if first, ok := block.First(); ok {
			if queue.ServiceInfo.BlockLimit > 0 {
				for i := range block.Blocks {
					ok, err := a.validator.CanReserve(ctx, queue, date, block.Sub(i), sessionID)
					if err != nil {
						return 0, internalError("validate sub-block", err)
					}
					if !ok {
						return 0, ErrBlockLimitReached
					}
				}
			}
			return first.Number, nil
		}
	}

	count, err := a.bookings.CountActive(ctx, queue.ID, date)
	if err != nil {
		return 0, internalError("count bookings", err)
	}
	return int(count) + 1, nil
}
