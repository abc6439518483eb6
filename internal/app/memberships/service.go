// Package memberships implements the join workflow: students request to
// join an organization, officers approve or remove members and assign
// member roles.
package memberships

import (
	"context"
	"errors"
	"fmt"

	membershipstore "github.com/dalemusser/paytrack/internal/app/store/memberships"
	organizationstore "github.com/dalemusser/paytrack/internal/app/store/organizations"
	"github.com/dalemusser/paytrack/internal/app/system/notify"
	"github.com/dalemusser/paytrack/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	ErrNotFound             = errors.New("membership not found")
	ErrOrganizationGone     = errors.New("organization not found")
	ErrOrganizationInactive = errors.New("organization is not accepting members")
	// ErrAlreadyMember covers both active members and pending requests;
	// the unique (org_id, user_id) index is the backstop.
	ErrAlreadyMember = errors.New("already a member or awaiting approval")
	ErrInvalidRole   = errors.New("unknown member role")
)

// Service wires the stores and the notification sink for the join workflow.
type Service struct {
	memberships *membershipstore.Store
	orgs        *organizationstore.Store
	sink        notify.Sink
	log         *zap.Logger
}

func NewService(memberships *membershipstore.Store, orgs *organizationstore.Store, sink notify.Sink, logger *zap.Logger) *Service {
	return &Service{
		memberships: memberships,
		orgs:        orgs,
		sink:        sink,
		log:         logger,
	}
}

// RequestJoin records a pending membership for the user and notifies the
// organization's active officers. Duplicate requests, whatever their
// current status, are rejected.
func (s *Service) RequestJoin(ctx context.Context, orgID, userID primitive.ObjectID, userName string) (models.Membership, error) {
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Membership{}, ErrOrganizationGone
		}
		return models.Membership{}, err
	}
	if org.Status != models.OrgStatusActive {
		return models.Membership{}, ErrOrganizationInactive
	}

	m, err := s.memberships.Create(ctx, models.Membership{
		OrgID:  orgID,
		UserID: userID,
	})
	if err != nil {
		if errors.Is(err, membershipstore.ErrAlreadyMember) {
			return models.Membership{}, ErrAlreadyMember
		}
		return models.Membership{}, err
	}

	s.notifyOfficers(ctx, org, m, userName)
	return m, nil
}

func (s *Service) notifyOfficers(ctx context.Context, org models.Organization, m models.Membership, userName string) {
	officers, err := s.memberships.ActiveOfficers(ctx, org.ID)
	if err != nil {
		s.log.Warn("officer lookup for join notification failed",
			zap.String("org_id", org.ID.Hex()),
			zap.Error(err))
		return
	}

	body := fmt.Sprintf("%s requested to join %s.", userName, org.DisplayName())
	msgs := make([]notify.Message, 0, len(officers))
	for _, off := range officers {
		msgs = append(msgs, notify.Message{
			UserID:    off.UserID,
			OrgID:     &org.ID,
			Title:     "New Membership Request",
			Body:      body,
			Type:      models.NotifyOther,
			RelatedID: &m.ID,
		})
	}
	s.sink.Notify(ctx, msgs...)
}

// Approve activates a pending membership and tells the student. The
// caller is responsible for the officer authorization check.
func (s *Service) Approve(ctx context.Context, membershipID primitive.ObjectID) (models.Membership, error) {
	m, err := s.memberships.GetByID(ctx, membershipID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Membership{}, ErrNotFound
		}
		return models.Membership{}, err
	}

	matched, err := s.memberships.SetStatus(ctx, membershipID, models.MemberStatusActive)
	if err != nil {
		return models.Membership{}, err
	}
	if matched == 0 {
		return models.Membership{}, ErrNotFound
	}

	org, err := s.orgs.GetByID(ctx, m.OrgID)
	orgName := ""
	if err == nil {
		orgName = org.DisplayName()
	}

	s.sink.Notify(ctx, notify.Message{
		UserID:    m.UserID,
		OrgID:     &m.OrgID,
		Title:     "Membership Approved",
		Body:      fmt.Sprintf("Your membership request for %s has been approved.", orgName),
		Type:      models.NotifyOther,
		RelatedID: &m.ID,
	})

	m.Status = models.MemberStatusActive
	return m, nil
}

// SetRole changes a member's role within the organization.
func (s *Service) SetRole(ctx context.Context, membershipID primitive.ObjectID, role models.MemberRole) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	matched, err := s.memberships.SetRole(ctx, membershipID, role)
	if err != nil {
		return err
	}
	if matched == 0 {
		return ErrNotFound
	}
	return nil
}

// Deactivate marks a membership inactive without deleting its history.
func (s *Service) Deactivate(ctx context.Context, membershipID primitive.ObjectID) error {
	matched, err := s.memberships.SetStatus(ctx, membershipID, models.MemberStatusInactive)
	if err != nil {
		return err
	}
	if matched == 0 {
		return ErrNotFound
	}
	return nil
}

// Remove deletes a membership outright. Used for rejecting pending
// requests; established members should be deactivated instead.
func (s *Service) Remove(ctx context.Context, membershipID primitive.ObjectID) error {
	deleted, err := s.memberships.Delete(ctx, membershipID)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}
