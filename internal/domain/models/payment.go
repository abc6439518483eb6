// internal/domain/models/payment.go
package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PaymentStatus is the lifecycle of a payment claim. A payment starts
// pending. A finance officer moves it to completed or rejected, both of
// which are terminal for the verification flow. Refunded is terminal and
// only reachable through administrative data maintenance.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentRejected  PaymentStatus = "rejected"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Valid reports whether s is a recognized payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentRejected, PaymentRefunded:
		return true
	}
	return false
}

// Terminal reports whether s can no longer transition.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentCompleted || s == PaymentRejected || s == PaymentRefunded
}

// AllPaymentStatuses lists every status in display order. Aggregations
// zero-fill against this list so dashboards always show all four rows.
var AllPaymentStatuses = []PaymentStatus{
	PaymentCompleted, PaymentPending, PaymentRejected, PaymentRefunded,
}

// PaymentMethod is how the student claims to have paid.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodGCash        PaymentMethod = "gcash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodOther        PaymentMethod = "other"
)

// Valid reports whether m is a recognized payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodGCash, MethodBankTransfer, MethodOther:
		return true
	}
	return false
}

// WantsReference reports whether the method conventionally carries a
// reference number. This is a UI hint, not a stored-data invariant.
func (m PaymentMethod) WantsReference() bool {
	return m == MethodGCash || m == MethodBankTransfer
}

// Payment is a student's claim of having paid a category's due, awaiting
// verification by a finance officer of the owning organization.
type Payment struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID `bson:"user_id" json:"user_id"`
	OrgID      primitive.ObjectID `bson:"org_id" json:"org_id"`
	CategoryID primitive.ObjectID `bson:"category_id" json:"category_id"`

	Amount          float64       `bson:"amount" json:"amount"`
	Method          PaymentMethod `bson:"method" json:"method"`
	ReferenceNumber string        `bson:"reference_number,omitempty" json:"reference_number,omitempty"`
	Status          PaymentStatus `bson:"status" json:"status"`
	ProofPath       string        `bson:"proof_path,omitempty" json:"proof_path,omitempty"`
	Notes           string        `bson:"notes,omitempty" json:"notes,omitempty"`

	PaymentDate time.Time           `bson:"payment_date" json:"payment_date"`
	VerifiedBy  *primitive.ObjectID `bson:"verified_by,omitempty" json:"verified_by,omitempty"`
	VerifiedAt  *time.Time          `bson:"verified_at,omitempty" json:"verified_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// FormatAmount renders an amount the way the UI and notification
// messages show money.
func FormatAmount(amount float64) string {
	return fmt.Sprintf("₱ %.2f", amount)
}
