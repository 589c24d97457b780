package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisTxRetries = 3

// redisBlockUsageLedger keeps one hash per queue and date: field is the claim
// ID, value its JSON. Keys expire two days after the date they describe.
type redisBlockUsageLedger struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisBlockUsageLedger(rdb *redis.Client, prefix string) BlockUsageLedger {
	if prefix == "" {
		prefix = "booking:blocks"
	}
	return &redisBlockUsageLedger{rdb: rdb, prefix: prefix}
}

func (l *redisBlockUsageLedger) key(queueID, date string) string {
	return fmt.Sprintf("%s:%s:%s", l.prefix, queueID, date)
}

func keyExpiry(date string) time.Time {
	d, ok := models.ParseDate(date)
	if !ok {
		return time.Now().Add(48 * time.Hour)
	}
	return d.AddDate(0, 0, 2)
}

func decodeUsages(raw map[string]string) ([]models.BlockUsage, error) {
	usages := make([]models.BlockUsage, 0, len(raw))
	for _, v := range raw {
		var u models.BlockUsage
		if err := json.Unmarshal([]byte(v), &u); err != nil {
			return nil, err
		}
		usages = append(usages, u)
	}
	sort.Slice(usages, func(i, j int) bool {
		if usages[i].CreatedAt.Equal(usages[j].CreatedAt) {
			return usages[i].ID < usages[j].ID
		}
		return usages[i].CreatedAt.Before(usages[j].CreatedAt)
	})
	return usages, nil
}

func (l *redisBlockUsageLedger) GetTakenBlocksByDate(ctx context.Context, queueID, date string) ([]models.BlockUsage, error) {
	raw, err := l.rdb.HGetAll(ctx, l.key(queueID, date)).Result()
	if err != nil {
		return nil, err
	}
	return decodeUsages(raw)
}

func (l *redisBlockUsageLedger) ClaimBlocks(ctx context.Context, usages []models.BlockUsage) error {
	if len(usages) == 0 {
		return nil
	}
	now := time.Now().UTC()
	byKey := make(map[string][]any)
	expiry := make(map[string]time.Time)
	for i := range usages {
		if usages[i].ID == "" {
			usages[i].ID = uuid.NewString()
		}
		if usages[i].CreatedAt.IsZero() {
			usages[i].CreatedAt = now
		}
		data, err := json.Marshal(usages[i])
		if err != nil {
			return err
		}
		k := l.key(usages[i].QueueID, usages[i].Date)
		byKey[k] = append(byKey[k], usages[i].ID, string(data))
		expiry[k] = keyExpiry(usages[i].Date)
	}

	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, values := range byKey {
			pipe.HSet(ctx, k, values...)
			pipe.ExpireAt(ctx, k, expiry[k])
		}
		return nil
	})
	return err
}

// mutate runs fn under WATCH on the key and applies the returned writes
// atomically. fn returns the fields to set and the fields to delete.
func (l *redisBlockUsageLedger) mutate(ctx context.Context, key string, fn func([]models.BlockUsage) (map[string]models.BlockUsage, []string, error)) error {
	txf := func(tx *redis.Tx) error {
		raw, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		current, err := decodeUsages(raw)
		if err != nil {
			return err
		}
		set, del, err := fn(current)
		if err != nil {
			return err
		}
		if len(set) == 0 && len(del) == 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(del) > 0 {
				pipe.HDel(ctx, key, del...)
			}
			for id, u := range set {
				data, err := json.Marshal(u)
				if err != nil {
					return err
				}
				pipe.HSet(ctx, key, id, string(data))
			}
			return nil
		})
		return err
	}

	for i := 0; i < redisTxRetries; i++ {
		err := l.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("ledger key %s: %w", key, redis.TxFailedErr)
}

func (l *redisBlockUsageLedger) BindSession(ctx context.Context, queueID, date, sessionID, bookingID string) ([]models.BlockUsage, error) {
	var bound []models.BlockUsage
	err := l.mutate(ctx, l.key(queueID, date), func(current []models.BlockUsage) (map[string]models.BlockUsage, []string, error) {
		bound = bound[:0]
		set := make(map[string]models.BlockUsage)
		for _, u := range current {
			switch {
			case u.BookingID == "" && u.SessionID == sessionID:
				u.BookingID = bookingID
				u.ExpiresAt = nil
				set[u.ID] = u
				bound = append(bound, u)
			case u.BookingID == bookingID:
				bound = append(bound, u)
			}
		}
		return set, nil, nil
	})
	if err != nil {
		return nil, err
	}
	return bound, nil
}

func (l *redisBlockUsageLedger) DeleteTakenBlocksByDate(ctx context.Context, queueID, date, bookingID string) error {
	return l.mutate(ctx, l.key(queueID, date), func(current []models.BlockUsage) (map[string]models.BlockUsage, []string, error) {
		var del []string
		for _, u := range current {
			if u.BookingID == bookingID {
				del = append(del, u.ID)
			}
		}
		return nil, del, nil
	})
}

func (l *redisBlockUsageLedger) DeleteSessionHolds(ctx context.Context, queueID, date, sessionID string) error {
	return l.mutate(ctx, l.key(queueID, date), func(current []models.BlockUsage) (map[string]models.BlockUsage, []string, error) {
		var del []string
		for _, u := range current {
			if u.BookingID == "" && u.SessionID == sessionID {
				del = append(del, u.ID)
			}
		}
		return nil, del, nil
	})
}

func (l *redisBlockUsageLedger) takeBooking(ctx context.Context, queueID, date, bookingID string) ([]models.BlockUsage, error) {
	var taken []models.BlockUsage
	err := l.mutate(ctx, l.key(queueID, date), func(current []models.BlockUsage) (map[string]models.BlockUsage, []string, error) {
		taken = taken[:0]
		var del []string
		for _, u := range current {
			if u.BookingID == bookingID {
				taken = append(taken, u)
				del = append(del, u.ID)
			}
		}
		return nil, del, nil
	})
	return taken, err
}

// EditHourAndDateTakenBlocksByDate spans two keys when the date changes, so the
// move is not atomic: old claims are removed first, then the new ones written.
// A failed write restores the removed claims.
func (l *redisBlockUsageLedger) EditHourAndDateTakenBlocksByDate(ctx context.Context, queueID, date, bookingID, newDate string, newBlock *models.Block) error {
	taken, err := l.takeBooking(ctx, queueID, date, bookingID)
	if err != nil {
		return err
	}
	sessionID := ""
	if len(taken) > 0 {
		sessionID = taken[0].SessionID
	}
	usages := models.UsagesFor(queueID, newDate, newBlock, sessionID, bookingID)
	if err := l.ClaimBlocks(ctx, usages); err != nil {
		if rerr := l.ClaimBlocks(ctx, taken); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	return nil
}

func (l *redisBlockUsageLedger) EditQueueTakenBlocksByDate(ctx context.Context, queueID, date, bookingID, newQueueID string) error {
	taken, err := l.takeBooking(ctx, queueID, date, bookingID)
	if err != nil {
		return err
	}
	moved := make([]models.BlockUsage, len(taken))
	for i, u := range taken {
		u.QueueID = newQueueID
		moved[i] = u
	}
	if err := l.ClaimBlocks(ctx, moved); err != nil {
		if rerr := l.ClaimBlocks(ctx, taken); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	return nil
}
