// internal/domain/models/category.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Recurrence describes how often a payment category falls due.
type Recurrence string

const (
	RecurrenceOneTime   Recurrence = "one-time"
	RecurrenceMonthly   Recurrence = "monthly"
	RecurrenceSemestral Recurrence = "semestral"
	RecurrenceAnnual    Recurrence = "annual"
)

// Valid reports whether r is a recognized recurrence.
func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceOneTime, RecurrenceMonthly, RecurrenceSemestral, RecurrenceAnnual:
		return true
	}
	return false
}

// PaymentCategory is a named due an organization collects, e.g.
// "Membership Fee" or "Intramurals Shirt".
type PaymentCategory struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrgID       primitive.ObjectID `bson:"org_id" json:"org_id"`
	Name        string             `bson:"name" json:"name"`
	NameCI      string             `bson:"name_ci" json:"name_ci"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Amount      float64            `bson:"amount" json:"amount"`
	DueDate     *time.Time         `bson:"due_date,omitempty" json:"due_date,omitempty"`
	Recurrence  Recurrence         `bson:"recurrence" json:"recurrence"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
