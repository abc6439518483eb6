// internal/app/features/organizations/members.go
//
// Officer actions on membership rows: approving and rejecting join
// requests, changing member roles, and removing members.
package organizations

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/paytrack/internal/app/features/errors"
	memberships "github.com/dalemusser/paytrack/internal/app/memberships"
	"github.com/dalemusser/paytrack/internal/app/policy/orgpolicy"
	"github.com/dalemusser/paytrack/internal/app/system/gates"
	"github.com/dalemusser/paytrack/internal/app/system/normalize"
	"github.com/dalemusser/paytrack/internal/app/system/timeouts"
	"github.com/dalemusser/paytrack/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// requireOfficerForMembership loads the membership row and checks the
// caller is an officer of its organization.
func (h *Handler) requireOfficerForMembership(w http.ResponseWriter, r *http.Request) (models.Membership, gates.Result, bool) {
	res := gates.RequireAuth(w, r, "/login?return=/organizations")
	if !res.OK {
		return models.Membership{}, res, false
	}

	mID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "membershipID"))
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad membership id", err, "Invalid membership.", "/organizations")
		return models.Membership{}, res, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	m, err := h.Memberships.GetByID(ctx, mID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		uierrors.RenderForbidden(w, r, "That membership does not exist.", "/organizations")
		return models.Membership{}, res, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load membership failed", err, "Unable to load the membership.", "/organizations")
		return models.Membership{}, res, false
	}

	allowed, err := orgpolicy.IsOrgOfficer(ctx, h.DB, r, m.OrgID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "officer check failed", err, "Unable to verify your permissions.", "/organizations")
		return models.Membership{}, res, false
	}
	if !allowed {
		uierrors.RenderForbidden(w, r, "Only organization officers can manage members.", "/organizations/"+m.OrgID.Hex())
		return models.Membership{}, res, false
	}

	return m, res, true
}

// HandleApprove handles POST /organizations/members/{membershipID}/approve.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	m, res, ok := h.requireOfficerForMembership(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if _, err := h.MemberSvc.Approve(ctx, m.ID); err != nil {
		if errors.Is(err, memberships.ErrNotFound) {
			uierrors.RenderForbidden(w, r, "That join request no longer exists.", "/organizations/"+m.OrgID.Hex())
			return
		}
		h.ErrLog.LogServerError(w, r, "approve membership failed", err, "Unable to approve the membership.", "/organizations/"+m.OrgID.Hex())
		return
	}

	h.AuditLog.AdminAction(ctx, r, "membership_approved", res.UserID, &m.OrgID, map[string]string{
		"membership_id": m.ID.Hex(),
		"user_id":       m.UserID.Hex(),
	})

	http.Redirect(w, r, "/organizations/"+m.OrgID.Hex()+"?success=approved", http.StatusSeeOther)
}

// HandleReject handles POST /organizations/members/{membershipID}/reject.
// Rejecting deletes the pending row so the student can apply again later.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	m, res, ok := h.requireOfficerForMembership(w, r)
	if !ok {
		return
	}

	if m.Status != models.MemberStatusPending {
		uierrors.RenderForbidden(w, r, "Only pending join requests can be rejected.", "/organizations/"+m.OrgID.Hex())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.MemberSvc.Remove(ctx, m.ID); err != nil && !errors.Is(err, memberships.ErrNotFound) {
		h.ErrLog.LogServerError(w, r, "reject membership failed", err, "Unable to reject the request.", "/organizations/"+m.OrgID.Hex())
		return
	}

	h.AuditLog.AdminAction(ctx, r, "membership_removed", res.UserID, &m.OrgID, map[string]string{
		"membership_id": m.ID.Hex(),
		"user_id":       m.UserID.Hex(),
		"was":           "pending",
	})

	http.Redirect(w, r, "/organizations/"+m.OrgID.Hex()+"?success=rejected", http.StatusSeeOther)
}

// HandleSetRole handles POST /organizations/members/{membershipID}/role.
func (h *Handler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
	m, res, ok := h.requireOfficerForMembership(w, r)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse role form failed", err, "Invalid form data.", "/organizations/"+m.OrgID.Hex())
		return
	}

	role := models.MemberRole(normalize.Role(r.FormValue("role")))

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.MemberSvc.SetRole(ctx, m.ID, role); err != nil {
		if errors.Is(err, memberships.ErrInvalidRole) {
			h.ErrLog.LogBadRequest(w, r, "invalid member role", err, "Unknown member role.", "/organizations/"+m.OrgID.Hex())
			return
		}
		h.ErrLog.LogServerError(w, r, "set member role failed", err, "Unable to change the member's role.", "/organizations/"+m.OrgID.Hex())
		return
	}

	h.AuditLog.AdminAction(ctx, r, "membership_role_changed", res.UserID, &m.OrgID, map[string]string{
		"membership_id": m.ID.Hex(),
		"user_id":       m.UserID.Hex(),
		"role":          string(role),
	})

	http.Redirect(w, r, "/organizations/"+m.OrgID.Hex()+"?success=role", http.StatusSeeOther)
}

// HandleRemove handles POST /organizations/members/{membershipID}/remove.
// Active members are deactivated so payment history keeps its context.
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	m, res, ok := h.requireOfficerForMembership(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.MemberSvc.Deactivate(ctx, m.ID); err != nil {
		if errors.Is(err, memberships.ErrNotFound) {
			uierrors.RenderForbidden(w, r, "That membership no longer exists.", "/organizations/"+m.OrgID.Hex())
			return
		}
		h.ErrLog.LogServerError(w, r, "remove member failed", err, "Unable to remove the member.", "/organizations/"+m.OrgID.Hex())
		return
	}

	h.AuditLog.AdminAction(ctx, r, "membership_removed", res.UserID, &m.OrgID, map[string]string{
		"membership_id": m.ID.Hex(),
		"user_id":       m.UserID.Hex(),
	})

	http.Redirect(w, r, "/organizations/"+m.OrgID.Hex()+"?success=removed", http.StatusSeeOther)
}
