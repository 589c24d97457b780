package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/models"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var errUnknownKind = errors.New("unknown catalog routing key")

type QueueStore interface {
	Upsert(ctx context.Context, queue *models.Queue) error
}

type CommerceStore interface {
	Upsert(ctx context.Context, commerce *models.Commerce) error
}

// CatalogConsumer mirrors queues and commerces published by the commerce
// service into the local booking database.
type CatalogConsumer struct {
	queues    QueueStore
	commerces CommerceStore
	log       *zap.Logger
	timeout   time.Duration
}

func NewCatalogConsumer(queues QueueStore, commerces CommerceStore, log *zap.Logger) *CatalogConsumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogConsumer{queues: queues, commerces: commerces, log: log.Named("catalog"), timeout: 10 * time.Second}
}

// Start handles deliveries until the channel closes.
func (cc *CatalogConsumer) Start(msgs <-chan amqp.Delivery) {
	go func() {
		for msg := range msgs {
			cc.handleMessage(msg)
		}
		cc.log.Info("delivery channel closed, stopping consumer")
	}()
}

func (cc *CatalogConsumer) handleMessage(msg amqp.Delivery) {
	ctx, cancel := context.WithTimeout(context.Background(), cc.timeout)
	defer cancel()

	id, err := cc.apply(ctx, msg.RoutingKey, msg.Body)
	switch {
	case err == nil:
		cc.log.Debug("synced", zap.String("routing_key", msg.RoutingKey), zap.String("id", id))
		_ = msg.Ack(false)
	case errors.Is(err, errUnknownKind), isDecodeError(err):
		cc.log.Warn("dropping catalog message", zap.String("routing_key", msg.RoutingKey), zap.Error(err))
		_ = msg.Nack(false, false)
	default:
		cc.log.Error("catalog upsert failed", zap.String("routing_key", msg.RoutingKey), zap.String("id", id), zap.Error(err))
		_ = msg.Nack(false, true)
	}
}

func (cc *CatalogConsumer) apply(ctx context.Context, routingKey string, body []byte) (string, error) {
	kind, _, _ := strings.Cut(routingKey, ".")
	switch kind {
	case "queue":
		var q models.Queue
		if err := decode(body, &q, &q.ID); err != nil {
			return "", err
		}
		return q.ID, cc.queues.Upsert(ctx, &q)
	case "commerce":
		var c models.Commerce
		if err := decode(body, &c, &c.ID); err != nil {
			return "", err
		}
		return c.ID, cc.commerces.Upsert(ctx, &c)
	default:
		return "", errUnknownKind
	}
}

type decodeError struct{ err error }

func (e decodeError) Error() string { return "decode catalog message: " + e.err.Error() }
func (e decodeError) Unwrap() error { return e.err }

func isDecodeError(err error) bool {
	var de decodeError
	return errors.As(err, &de)
}

func decode(body []byte, v any, id *string) error {
	if err := json.Unmarshal(body, v); err != nil {
		return decodeError{err}
	}
	if *id == "" {
		return decodeError{errors.New("missing id")}
	}
	return nil
}
