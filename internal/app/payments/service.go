// Package payments implements the payment lifecycle: students submit
// payments against an organization's dues categories, may edit them while
// still pending, and finance officers decide them exactly once.
package payments

import (
	"context"
	"errors"
	"fmt"

	categorystore "github.com/dalemusser/paytrack/internal/app/store/categories"
	membershipstore "github.com/dalemusser/paytrack/internal/app/store/memberships"
	paymentstore "github.com/dalemusser/paytrack/internal/app/store/payments"
	"github.com/dalemusser/paytrack/internal/app/system/notify"
	"github.com/dalemusser/paytrack/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	ErrNotFound        = errors.New("payment not found")
	ErrInvalidCategory = errors.New("payment category does not belong to the organization")
	ErrNotAMember      = errors.New("user has no active membership in the organization")
	ErrInvalidAmount   = errors.New("payment amount must be greater than zero")
	ErrInvalidMethod   = errors.New("unknown payment method")
	ErrMissingRef      = errors.New("reference number is required for this payment method")
	// ErrNotEditable means the guarded update matched no row: the payment
	// is gone, owned by someone else, or already decided.
	ErrNotEditable = errors.New("payment can no longer be edited")
	// ErrNotPending means a verify decision lost the race: the payment
	// was already decided by another officer.
	ErrNotPending = errors.New("payment is not pending")
)

// Service wires the stores and the notification sink for the lifecycle.
type Service struct {
	payments    *paymentstore.Store
	categories  *categorystore.Store
	memberships *membershipstore.Store
	sink        notify.Sink
	log         *zap.Logger
}

func NewService(payments *paymentstore.Store, categories *categorystore.Store, memberships *membershipstore.Store, sink notify.Sink, logger *zap.Logger) *Service {
	return &Service{
		payments:    payments,
		categories:  categories,
		memberships: memberships,
		sink:        sink,
		log:         logger,
	}
}

// SubmitInput carries a new payment submission.
type SubmitInput struct {
	UserID          primitive.ObjectID
	UserName        string
	OrgID           primitive.ObjectID
	CategoryID      primitive.ObjectID
	Amount          float64
	Method          models.PaymentMethod
	ReferenceNumber string
	Notes           string
	ProofPath       string
}

func (in SubmitInput) validate() error {
	if in.Amount <= 0 {
		return ErrInvalidAmount
	}
	if !in.Method.Valid() {
		return ErrInvalidMethod
	}
	if in.Method.WantsReference() && in.ReferenceNumber == "" {
		return ErrMissingRef
	}
	return nil
}

// Submit records a pending payment and notifies the organization's active
// officers. The caller must already be signed in; membership and category
// ownership are checked here.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (models.Payment, error) {
	if err := in.validate(); err != nil {
		return models.Payment{}, err
	}

	cat, err := s.categories.GetByID(ctx, in.CategoryID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Payment{}, ErrInvalidCategory
		}
		return models.Payment{}, err
	}
	if cat.OrgID != in.OrgID {
		return models.Payment{}, ErrInvalidCategory
	}

	if _, err := s.memberships.GetActive(ctx, in.OrgID, in.UserID); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Payment{}, ErrNotAMember
		}
		return models.Payment{}, err
	}

	p, err := s.payments.Create(ctx, models.Payment{
		UserID:          in.UserID,
		OrgID:           in.OrgID,
		CategoryID:      in.CategoryID,
		Amount:          in.Amount,
		Method:          in.Method,
		ReferenceNumber: in.ReferenceNumber,
		Notes:           in.Notes,
		ProofPath:       in.ProofPath,
	})
	if err != nil {
		return models.Payment{}, err
	}

	s.notifyOfficers(ctx, p, in.UserName, cat.Name)
	return p, nil
}

// notifyOfficers fans out a "New Payment Received" notification to every
// active officer-level member of the organization. Delivery failures are
// the sink's problem; submission has already succeeded.
func (s *Service) notifyOfficers(ctx context.Context, p models.Payment, payerName, categoryName string) {
	officers, err := s.memberships.ActiveOfficers(ctx, p.OrgID)
	if err != nil {
		s.log.Warn("officer lookup for payment notification failed",
			zap.String("payment_id", p.ID.Hex()),
			zap.Error(err))
		return
	}

	body := fmt.Sprintf("%s submitted %s for %s.", payerName, models.FormatAmount(p.Amount), categoryName)
	msgs := make([]notify.Message, 0, len(officers))
	for _, off := range officers {
		if off.UserID == p.UserID {
			// Officers paying their own dues don't need to hear about it.
			continue
		}
		msgs = append(msgs, notify.Message{
			UserID:    off.UserID,
			OrgID:     &p.OrgID,
			Title:     "New Payment Received",
			Body:      body,
			Type:      models.NotifyPayment,
			RelatedID: &p.ID,
		})
	}
	s.sink.Notify(ctx, msgs...)
}

// EditInput carries an owner's changes to a pending payment.
type EditInput struct {
	PaymentID       primitive.ObjectID
	UserID          primitive.ObjectID
	Amount          float64
	Method          models.PaymentMethod
	ReferenceNumber string
	Notes           string
	ProofPath       string // empty keeps the existing proof
}

// Edit applies an owner's changes to a still-pending payment. The update
// is a single conditional write; when it matches nothing the payment was
// taken out from under the owner (decided, deleted, or never theirs) and
// ErrNotEditable is returned.
func (s *Service) Edit(ctx context.Context, in EditInput) error {
	if in.Amount <= 0 {
		return ErrInvalidAmount
	}
	if !in.Method.Valid() {
		return ErrInvalidMethod
	}
	if in.Method.WantsReference() && in.ReferenceNumber == "" {
		return ErrMissingRef
	}

	matched, err := s.payments.UpdatePending(ctx, in.PaymentID, in.UserID, paymentstore.PendingUpdate{
		Amount:          in.Amount,
		Method:          in.Method,
		ReferenceNumber: in.ReferenceNumber,
		Notes:           in.Notes,
		ProofPath:       in.ProofPath,
	})
	if err != nil {
		return err
	}
	if matched == 0 {
		return ErrNotEditable
	}
	return nil
}

// Decision is the outcome of a verification.
type Decision struct {
	Approve bool
	Reason  string // shown to the student on rejection
}

// Verify decides a pending payment exactly once. The status transition is
// a conditional write filtered on status=pending, so when two officers
// race, one gets ErrNotPending and no notification is sent twice. On
// success the payment's owner is notified of the outcome. The caller is
// responsible for the finance-officer authorization check.
func (s *Service) Verify(ctx context.Context, paymentID, verifierID primitive.ObjectID, d Decision) (models.Payment, error) {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Payment{}, ErrNotFound
		}
		return models.Payment{}, err
	}

	status := models.PaymentCompleted
	if !d.Approve {
		status = models.PaymentRejected
	}

	matched, err := s.payments.Verify(ctx, paymentID, status, verifierID, d.Reason)
	if err != nil {
		return models.Payment{}, err
	}
	if matched == 0 {
		return models.Payment{}, ErrNotPending
	}

	forCategory := ""
	if cat, err := s.categories.GetByID(ctx, p.CategoryID); err == nil {
		forCategory = " for " + cat.Name
	}

	title := "Payment Approved"
	body := fmt.Sprintf("Your payment of %s%s has been approved.", models.FormatAmount(p.Amount), forCategory)
	if !d.Approve {
		title = "Payment Rejected"
		body = fmt.Sprintf("Your payment of %s%s was rejected.", models.FormatAmount(p.Amount), forCategory)
		if d.Reason != "" {
			body += " Reason: " + d.Reason
		}
	}
	s.sink.Notify(ctx, notify.Message{
		UserID:    p.UserID,
		OrgID:     &p.OrgID,
		Title:     title,
		Body:      body,
		Type:      models.NotifyPayment,
		RelatedID: &p.ID,
	})

	p.Status = status
	return p, nil
}
