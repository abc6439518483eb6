// internal/domain/models/notification.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationType classifies in-app notifications for badge icons and
// filtering.
type NotificationType string

const (
	NotifyPayment      NotificationType = "payment"
	NotifyAnnouncement NotificationType = "announcement"
	NotifyReminder     NotificationType = "reminder"
	NotifyOther        NotificationType = "other"
)

// Valid reports whether t is a recognized notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotifyPayment, NotifyAnnouncement, NotifyReminder, NotifyOther:
		return true
	}
	return false
}

// Notification is an in-app alert for one user. Lifecycle operations
// create them; the only mutation afterwards is marking read.
type Notification struct {
	ID     primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID primitive.ObjectID  `bson:"user_id" json:"user_id"`
	OrgID  *primitive.ObjectID `bson:"org_id,omitempty" json:"org_id,omitempty"`

	Title   string           `bson:"title" json:"title"`
	Message string           `bson:"message" json:"message"`
	Type    NotificationType `bson:"type" json:"type"`
	IsRead  bool             `bson:"is_read" json:"is_read"`

	// RelatedID points at the entity the notification is about
	// (payment, membership), when there is one.
	RelatedID *primitive.ObjectID `bson:"related_id,omitempty" json:"related_id,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
