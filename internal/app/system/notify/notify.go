// Package notify delivers in-app notifications. The payment and membership
// lifecycles talk to a Sink so tests can capture deliveries without a
// database; the production Sink writes through the notification store.
package notify

import (
	"context"

	notificationstore "github.com/dalemusser/paytrack/internal/app/store/notifications"
	"github.com/dalemusser/paytrack/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Message is one notification to one recipient.
type Message struct {
	UserID    primitive.ObjectID
	OrgID     *primitive.ObjectID
	Title     string
	Body      string
	Type      models.NotificationType
	RelatedID *primitive.ObjectID
}

// Sink accepts notification messages. Delivery failures must not fail the
// operation that produced them; implementations log and move on.
type Sink interface {
	Notify(ctx context.Context, msgs ...Message)
}

// StoreSink writes notifications through the notification store.
type StoreSink struct {
	store *notificationstore.Store
	log   *zap.Logger
}

// NewStoreSink creates the production Sink.
func NewStoreSink(store *notificationstore.Store, logger *zap.Logger) *StoreSink {
	return &StoreSink{store: store, log: logger}
}

// Notify persists the messages. Errors are logged, never returned: a
// payment submission must not fail because its officer notifications
// could not be written.
func (s *StoreSink) Notify(ctx context.Context, msgs ...Message) {
	if len(msgs) == 0 {
		return
	}
	ns := make([]models.Notification, 0, len(msgs))
	for _, m := range msgs {
		ns = append(ns, models.Notification{
			UserID:    m.UserID,
			OrgID:     m.OrgID,
			Title:     m.Title,
			Message:   m.Body,
			Type:      m.Type,
			RelatedID: m.RelatedID,
		})
	}
	if err := s.store.CreateMany(ctx, ns); err != nil {
		s.log.Error("failed to deliver notifications",
			zap.Int("count", len(ns)),
			zap.Error(err))
	}
}

// CaptureSink records messages in memory. For tests.
type CaptureSink struct {
	Messages []Message
}

func (c *CaptureSink) Notify(_ context.Context, msgs ...Message) {
	c.Messages = append(c.Messages, msgs...)
}
