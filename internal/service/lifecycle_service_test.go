package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedBooking stores a booking with its ledger claims, as CreateBooking would.
func seedBooking(t *testing.T, env *testEnv, b models.Booking) models.Booking {
	t.Helper()
	if b.CommerceID == "" {
		b.CommerceID = "c1"
	}
	if b.Status == "" {
		b.Status = models.StatusPending
	}
	if b.ID == "" {
		t.Fatal("seedBooking needs an explicit ID")
	}
	env.bookings.put(b)
	require.NoError(t, env.ledger.ClaimBlocks(context.Background(), models.UsagesFor(b.QueueID, b.Date, b.Block, b.SessionID, b.ID)))
	return b
}

func TestConfirm_RequiresFeature(t *testing.T) {
	env := newTestEnv(t)
	env.commerces.items["c2"] = models.Commerce{ID: "c2", Active: true}
	seedBooking(t, env, models.Booking{ID: "b1", QueueID: "q-block", CommerceID: "c2", Date: tomorrow})

	_, err := env.lifecycle.Confirm(context.Background(), "b1", ConfirmInput{ConfirmedBy: "u1"})
	assert.ErrorIs(t, err, ErrFeatureDisabled)
	assert.ErrorIs(t, err, ErrState)
	assert.Equal(t, models.StatusPending, env.bookings.get("b1").Status)
}

func TestConfirm_RecordsPaymentOnce(t *testing.T) {
	env := newTestEnv(t)
	env.packages.paid["p1"] = false
	seedBooking(t, env, models.Booking{ID: "b1", QueueID: "q-block", Date: tomorrow, PackageID: "p1"})
	in := ConfirmInput{ConfirmedBy: "u1", Payment: &Payment{Amount: 100, PaymentMethod: "PIX"}}

	b, err := env.lifecycle.Confirm(context.Background(), "b1", in)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, b.Status)
	assert.True(t, b.Paid)
	assert.NotNil(t, b.ConfirmedAt)
	assert.Equal(t, "u1", b.ConfirmedBy)
	require.Len(t, env.incomes.recorded, 1)
	assert.Equal(t, "b1", env.incomes.recorded[0].BookingID)
	assert.True(t, env.packages.paid["p1"])
	assert.Equal(t, []string{"b1"}, env.packages.attached["p1"])

	again, err := env.lifecycle.Confirm(context.Background(), "b1", in)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, again.Status)
	assert.Len(t, env.incomes.recorded, 1)
}

func TestConfirm_PaidPackageNotCharged(t *testing.T) {
	env := newTestEnv(t)
	env.packages.paid["p1"] = true
	seedBooking(t, env, models.Booking{ID: "b1", QueueID: "q-block", Date: tomorrow, PackageID: "p1"})

	b, err := env.lifecycle.Confirm(context.Background(), "b1", ConfirmInput{Payment: &Payment{Amount: 100}})
	require.NoError(t, err)
	assert.True(t, b.Paid)
	assert.Empty(t, env.incomes.recorded)
}

func TestConfirm_UnknownPackage(t *testing.T) {
	env := newTestEnv(t)
	seedBooking(t, env, models.Booking{ID: "b1", QueueID: "q-block", Date: tomorrow, PackageID: "ghost"})

	_, err := env.lifecycle.Confirm(context.Background(), "b1", ConfirmInput{})
	assert.ErrorIs(t, err, ErrPackageNotFound)
}

func TestConfirm_TodayProcessesImmediately(t *testing.T) {
	env := newTestEnv(t)
	seedBooking(t, env, models.Booking{ID: "b1", QueueID: "q-block", Date: today})

	b, err := env.lifecycle.Confirm(context.Background(), "b1", ConfirmInput{ConfirmedBy: "u1"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessed, b.Status)
	assert.Equal(t, "att-b1", b.AttentionID)
	assert.Equal(t, 1, env.attentions.calls)
}

func TestConfirm_TodayProcessFailureKeepsConfirmation(t *testing.T) {
	env := newTestEnv(t)
	env.attentions.createFn = func(ctx context.Context, b *models.Booking) (*models.Attention, error) {
		return nil, errors.New("attention service down")
	}
	seedBooking(t, env, models.Booking{ID: "b1", QueueID: "q-block", Date: today})

	b, err := env.lifecycle.Confirm(context.Background(), "b1", ConfirmInput{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, b.Status)
	assert.Equal(t, models.StatusConfirmed, env.bookings.get("b1").Status)
}

func TestConfirm_CancelledBooking(t *testing.T) {
	env := newTestEnv(t)
	seedBooking(t, env, models.Booking{ID: "b1", QueueID: "q-block", Date: tomorrow, Status: models.StatusCancelled})

	_, err := env.lifecycle.Confirm(context.Background(), "b1", ConfirmInput{})
	assert.ErrorIs(t, err, ErrBookingCancelled)
}

func TestCancel_ReleasesLedgerAndNotifies(t *testing.T) {
	env := newTestEnv(t)
	env.clients.items["cl-1"] = models.Client{ID: "cl-1", Email: "ana@example.com"}
	env.telemedicine.cancelFn = func(string) error { return errors.New("video provider down") }
	seedBooking(t, env, models.Booking{
		ID: "b1", QueueID: "q-block", Date: tomorrow, SessionID: "s1", ClientID: "cl-1", PackageID: "p1",
		Block:        single(1, "09:00", "09:30"),
		Telemedicine: &models.TelemedicineConfig{Active: true, SessionID: "tm-1"},
	})

	b, err := env.lifecycle.Cancel(context.Background(), "b1", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, b.Status)
	assert.NotNil(t, b.CancelledAt)
	assert.Equal(t, "u1", b.CancelledBy)
	assert.Empty(t, env.ledger.where(func(u models.BlockUsage) bool { return u.BookingID == "b1" }))
	assert.Equal(t, []string{"tm-1"}, env.telemedicine.cancels)
	assert.Equal(t, 1, env.waitlist.calls)
	assert.Len(t, env.notifier.emails, 1)
	assert.Equal(t, NotifyBookingCancelled, env.notifier.emails[0].Kind)
	assert.Equal(t, []string{"b1"}, env.packages.detached)
}

func TestCancel_TwiceIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	seedBooking(t, env, models.Booking{ID: "b1", QueueID: "q-block", Date: tomorrow, SessionID: "s1", Block: single(1, "09:00", "09:30")})

	first, err := env.lifecycle.Cancel(context.Background(), "b1", "u1")
	require.NoError(t, err)
	published := len(env.events.published)

	second, err := env.lifecycle.Cancel(context.Background(), "b1", "u2")
	require.NoError(t, err)
	assert.Equal(t, first.CancelledAt, second.CancelledAt)
	assert.Equal(t, "u1", second.CancelledBy)
	assert.Equal(t, 1, env.waitlist.calls)
	assert.Len(t, env.events.published, published)
}

func TestCancel_ProcessedRejected(t *testing.T) {
	env := newTestEnv(t)
	seedBooking(t, env, models.Booking{ID: "b1", QueueID: "q-block", Date: today, Status: models.StatusProcessed, Processed: true})

	_, err := env.lifecycle.Cancel(context.Background(), "b1", "u1")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestCancel_FreesBlockForOthers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	block := single(1, "09:00", "09:30")
	b, err := env.booking.CreateBooking(ctx, createInput("q-block", tomorrow, block, "s1"))
	require.NoError(t, err)

	_, err = env.lifecycle.Cancel(ctx, b.ID, "u1")
	require.NoError(t, err)

	_, err = env.booking.CreateBooking(ctx, createInput("q-block", tomorrow, block, "s2"))
	assert.NoError(t, err)
}

func TestProcess_Guards(t *testing.T) {
	tests := []struct {
		name    string
		booking models.Booking
		wantErr error
	}{
		{name: "already processed flag", booking: models.Booking{Date: today, Processed: true, Status: models.StatusConfirmed}, wantErr: ErrAlreadyProcessed},
		{name: "attention exists", booking: models.Booking{Date: today, AttentionID: "att-x", Status: models.StatusConfirmed}, wantErr: ErrAttentionExists},
		{name: "cancelled", booking: models.Booking{Date: today, Status: models.StatusCancelled}, wantErr: ErrBookingCancelled},
		{name: "not today", booking: models.Booking{Date: tomorrow, Status: models.StatusConfirmed}, wantErr: ErrNotToday},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			tt.booking.ID = "b1"
			tt.booking.QueueID = "q-block"
			seedBooking(t, env, tt.booking)

			_, err := env.lifecycle.Process(context.Background(), "b1", "u1")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrState)
			assert.Zero(t, env.attentions.calls)
		})
	}
}

func TestProcess_TodayInCommerceTimezone(t *testing.T) {
	env := newTestEnv(t)
	// 12:00 UTC is already the next day in Auckland.
	env.commerces.items["c1"] = models.Commerce{ID: "c1", Timezone: "Pacific/Auckland", Active: true}
	seedBooking(t, env, models.Booking{ID: "b1", QueueID: "q-block", Date: tomorrow, Status: models.StatusConfirmed})

	b, err := env.lifecycle.Process(context.Background(), "b1", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessed, b.Status)
	assert.True(t, b.Processed)
	assert.NotNil(t, b.ProcessedAt)
	assert.Equal(t, "att-b1", env.bookings.get("b1").AttentionID)
}

func TestProcess_WithoutAttentionFactory(t *testing.T) {
	env := newTestEnv(t)
	seedBooking(t, env, models.Booking{ID: "b1", QueueID: "q-block", Date: today, Status: models.StatusConfirmed})
	lifecycle := NewLifecycleService(Deps{
		Bookings:  env.bookings,
		Queues:    env.queues,
		Commerces: env.commerces,
		Clients:   env.clients,
		Ledger:    env.ledger,
	}, WithClock(func() time.Time { return testNow }))

	_, err := lifecycle.Process(context.Background(), "b1", "u1")
	assert.ErrorIs(t, err, ErrInternal)
	assert.False(t, env.bookings.get("b1").Processed)
}

func TestTransfer_MovesLedger(t *testing.T) {
	env := newTestEnv(t)
	seedBooking(t, env, models.Booking{ID: "b1", QueueID: "q-block", Date: tomorrow, SessionID: "s1", Number: 1, Block: single(1, "09:00", "09:30")})

	b, err := env.lifecycle.Transfer(context.Background(), "b1", TransferInput{QueueID: "q-other", TransferedBy: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "q-other", b.QueueID)
	assert.Equal(t, "q-block", b.TransferedFrom)
	assert.Equal(t, tomorrow, b.TransferedOrigin)
	assert.Equal(t, 1, b.TransferedCount)

	moved := env.ledger.where(func(u models.BlockUsage) bool { return u.BookingID == "b1" })
	require.Len(t, moved, 1)
	assert.Equal(t, "q-other", moved[0].QueueID)
}

func TestTransfer_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, env *testEnv)
		in      TransferInput
		wantErr error
	}{
		{name: "missing destination", in: TransferInput{}, wantErr: ErrMissingInput},
		{name: "same queue", in: TransferInput{QueueID: "q-block"}, wantErr: ErrSameQueue},
		{name: "unknown destination", in: TransferInput{QueueID: "nope"}, wantErr: ErrQueueNotFound},
		{name: "unavailable destination", in: TransferInput{QueueID: "q-closed"}, wantErr: ErrQueueUnavailable},
		{name: "destination full", in: TransferInput{QueueID: "q-other"}, wantErr: ErrQueueFull, setup: func(t *testing.T, env *testEnv) {
			for i := 1; i <= 5; i++ {
				env.bookings.put(models.Booking{QueueID: "q-other", Date: tomorrow, Number: i, Status: models.StatusPending})
			}
		}},
		{name: "block taken at destination", in: TransferInput{QueueID: "q-other"}, wantErr: ErrBlockTaken, setup: func(t *testing.T, env *testEnv) {
			seedBooking(t, env, models.Booking{ID: "b2", QueueID: "q-other", Date: tomorrow, SessionID: "s2", Block: single(1, "09:00", "09:30")})
		}},
		{name: "session hold at destination still counts", in: TransferInput{QueueID: "q-other"}, wantErr: ErrBlockTaken, setup: func(t *testing.T, env *testEnv) {
			_ = env.ledger.ClaimBlocks(context.Background(), []models.BlockUsage{{QueueID: "q-other", Date: tomorrow, HourFrom: "09:00", SessionID: "s1"}})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			seedBooking(t, env, models.Booking{ID: "b1", QueueID: "q-block", Date: tomorrow, SessionID: "s1", Block: single(1, "09:00", "09:30")})
			if tt.setup != nil {
				tt.setup(t, env)
			}

			_, err := env.lifecycle.Transfer(context.Background(), "b1", tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, "q-block", env.bookings.get("b1").QueueID)
		})
	}
}

func TestTransfer_LedgerFailureRevertsBooking(t *testing.T) {
	env := newTestEnv(t)
	seedBooking(t, env, models.Booking{ID: "b1", QueueID: "q-block", Date: tomorrow, SessionID: "s1", Block: single(1, "09:00", "09:30")})
	env.ledger.editErr = errors.New("ledger down")

	_, err := env.lifecycle.Transfer(context.Background(), "b1", TransferInput{QueueID: "q-other"})
	assert.ErrorIs(t, err, ErrInternal)

	stored := env.bookings.get("b1")
	assert.Equal(t, "q-block", stored.QueueID)
	assert.Zero(t, stored.TransferedCount)
}

func TestEdit_MovesDateAndBlock(t *testing.T) {
	env := newTestEnv(t)
	seedBooking(t, env, models.Booking{ID: "b1", QueueID: "q-block", Date: tomorrow, SessionID: "s1", Number: 1, Block: single(1, "09:00", "09:30")})

	b, err := env.lifecycle.Edit(context.Background(), "b1", EditInput{Date: "2026-10-21", Block: single(4, "11:00", "11:30"), EditedBy: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "2026-10-21", b.Date)
	assert.Equal(t, 4, b.Number)
	assert.Equal(t, tomorrow, b.EditedDateOrigin)
	assert.Equal(t, "09:00", b.EditedBlockOrigin.Blocks[0].HourFrom)

	claims := env.ledger.where(func(u models.BlockUsage) bool { return u.BookingID == "b1" })
	require.Len(t, claims, 1)
	assert.Equal(t, "2026-10-21", claims[0].Date)
	assert.Equal(t, "11:00", claims[0].HourFrom)
	assert.Equal(t, "s1", claims[0].SessionID)
}

func TestEdit_RenumbersSequentialQueueOnNewDate(t *testing.T) {
	env := newTestEnv(t)
	env.bookings.put(models.Booking{ID: "x1", QueueID: "q-select", CommerceID: "c1", Date: "2026-10-20", Number: 1, Status: models.StatusConfirmed})
	seedBooking(t, env, models.Booking{ID: "b1", QueueID: "q-select", Date: tomorrow, SessionID: "s1", Number: 1})

	b, err := env.lifecycle.Edit(context.Background(), "b1", EditInput{Date: "2026-10-20"})
	require.NoError(t, err)
	assert.Equal(t, "2026-10-20", b.Date)
	assert.Equal(t, 2, b.Number)
	assert.Equal(t, 2, env.bookings.get("b1").Number)
}

func TestEdit_SameDateKeepsSequentialNumber(t *testing.T) {
	env := newTestEnv(t)
	seedBooking(t, env, models.Booking{ID: "b1", QueueID: "q-select", Date: tomorrow, SessionID: "s1", Number: 3})

	b, err := env.lifecycle.Edit(context.Background(), "b1", EditInput{Block: single(2, "10:00", "10:30")})
	require.NoError(t, err)
	assert.Equal(t, 3, b.Number)
}

func TestEdit_ExtendsOwnBlock(t *testing.T) {
	env := newTestEnv(t)
	seedBooking(t, env, models.Booking{ID: "b1", QueueID: "q-block", Date: tomorrow, SessionID: "s1", Block: single(1, "09:00", "09:30")})
	super := models.NewSuperBlock(
		models.TimeBlock{Number: 1, HourFrom: "09:00", HourTo: "09:30"},
		models.TimeBlock{Number: 2, HourFrom: "09:30", HourTo: "10:00"},
	)

	_, err := env.lifecycle.Edit(context.Background(), "b1", EditInput{Block: super})
	require.NoError(t, err)
	assert.Len(t, env.ledger.where(func(u models.BlockUsage) bool { return u.BookingID == "b1" }), 2)
}

func TestEdit_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, env *testEnv)
		in      EditInput
		wantErr error
	}{
		{name: "nothing to change", in: EditInput{}, wantErr: ErrMissingInput},
		{name: "past date", in: EditInput{Date: "2026-10-17"}, wantErr: ErrDateInPast},
		{name: "bad date", in: EditInput{Date: "2026-13-01"}, wantErr: ErrInvalidDate},
		{name: "block taken", in: EditInput{Block: single(2, "10:00", "10:30")}, wantErr: ErrBlockTaken, setup: func(t *testing.T, env *testEnv) {
			seedBooking(t, env, models.Booking{ID: "b2", QueueID: "q-block", Date: tomorrow, SessionID: "s2", Block: single(2, "10:00", "10:30")})
		}},
		{name: "destination date full", in: EditInput{Date: "2026-10-22"}, wantErr: ErrQueueFull, setup: func(t *testing.T, env *testEnv) {
			for i := 1; i <= 5; i++ {
				env.bookings.put(models.Booking{QueueID: "q-block", Date: "2026-10-22", Number: i, Status: models.StatusConfirmed})
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			seedBooking(t, env, models.Booking{ID: "b1", QueueID: "q-block", Date: tomorrow, SessionID: "s1", Block: single(1, "09:00", "09:30")})
			if tt.setup != nil {
				tt.setup(t, env)
			}

			_, err := env.lifecycle.Edit(context.Background(), "b1", tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tomorrow, env.bookings.get("b1").Date)
		})
	}
}

func TestEdit_TelemedicineReschedule(t *testing.T) {
	env := newTestEnv(t)
	scheduled := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	seedBooking(t, env, models.Booking{
		ID: "b1", QueueID: "q-block", Date: tomorrow, SessionID: "s1", Block: single(1, "09:00", "09:30"),
		Telemedicine: &models.TelemedicineConfig{Active: true, ScheduledAt: &scheduled},
	})

	_, err := env.lifecycle.Edit(context.Background(), "b1", EditInput{Date: today, Block: single(1, "09:00", "09:30")})
	assert.ErrorIs(t, err, ErrDateInPast)

	b, err := env.lifecycle.Edit(context.Background(), "b1", EditInput{Date: today, Block: single(9, "15:00", "15:30")})
	require.NoError(t, err)
	require.NotNil(t, b.Telemedicine.ScheduledAt)
	assert.Equal(t, time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC), *b.Telemedicine.ScheduledAt)
	assert.Equal(t, today, env.bookings.get("b1").Date)
}
