package payment_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	uierrors "github.com/dalemusser/paytrack/internal/app/features/errors"
	"github.com/dalemusser/paytrack/internal/app/features/payment"
	paysvc "github.com/dalemusser/paytrack/internal/app/payments"
	"github.com/dalemusser/paytrack/internal/app/store/audit"
	categorystore "github.com/dalemusser/paytrack/internal/app/store/categories"
	membershipstore "github.com/dalemusser/paytrack/internal/app/store/memberships"
	paymentstore "github.com/dalemusser/paytrack/internal/app/store/payments"
	"github.com/dalemusser/paytrack/internal/app/system/auditlog"
	"github.com/dalemusser/paytrack/internal/app/system/notify"
	"github.com/dalemusser/paytrack/internal/domain/models"
	"github.com/dalemusser/paytrack/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*payment.Handler, *testutil.Fixtures, *mongo.Database) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	errLog := uierrors.NewErrorLogger(logger)
	auditLog := auditlog.New(audit.New(db), logger, auditlog.Config{})
	svc := paysvc.NewService(
		paymentstore.New(db),
		categorystore.New(db),
		membershipstore.New(db),
		&notify.CaptureSink{},
		logger,
	)
	handler := payment.NewHandler(db, svc, nil, errLog, auditLog, logger)
	fixtures := testutil.NewFixtures(t, db)
	return handler, fixtures, db
}

func TestHandleApprove_AsAdmin(t *testing.T) {
	handler, fixtures, db := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	payer := fixtures.CreateUser(ctx, "Payer", "2023-0001", models.RoleStudent)
	cat := fixtures.CreateCategory(ctx, org.ID, "Dues", 150)
	p := fixtures.CreatePayment(ctx, payer.ID, org.ID, cat.ID, 150, models.PaymentPending, time.Now().UTC())

	req := httptest.NewRequest("POST", "/payments/"+p.ID.Hex()+"/approve", nil)
	req = testutil.WithChiURLParam(req, "id", p.ID.Hex())
	req = testutil.WithUser(req, testutil.AdminUser())

	rec := httptest.NewRecorder()
	handler.HandleApprove(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("expected status %d, got %d", http.StatusSeeOther, rec.Code)
	}

	var decided struct {
		Status string `bson:"status"`
	}
	err := db.Collection("payments").FindOne(ctx, bson.M{"_id": p.ID}).Decode(&decided)
	if err != nil {
		t.Fatalf("FindOne failed: %v", err)
	}
	if decided.Status != string(models.PaymentCompleted) {
		t.Errorf("status: got %q, want %q", decided.Status, models.PaymentCompleted)
	}
}

func TestHandleApprove_AsDesignatedTreasurer(t *testing.T) {
	handler, fixtures, db := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	payer := fixtures.CreateUser(ctx, "Payer", "2023-0001", models.RoleStudent)
	treasurer := fixtures.CreateUser(ctx, "Treasurer", "2022-0001", models.RoleStudent)
	cat := fixtures.CreateCategory(ctx, org.ID, "Dues", 150)
	p := fixtures.CreatePayment(ctx, payer.ID, org.ID, cat.ID, 150, models.PaymentPending, time.Now().UTC())

	_, err := db.Collection("organizations").UpdateByID(ctx, org.ID, bson.M{
		"$set": bson.M{"treasurer_id": treasurer.ID},
	})
	if err != nil {
		t.Fatalf("set treasurer failed: %v", err)
	}

	req := httptest.NewRequest("POST", "/payments/"+p.ID.Hex()+"/approve", nil)
	req = testutil.WithChiURLParam(req, "id", p.ID.Hex())
	req = testutil.WithUser(req, testutil.UserFor(treasurer))

	rec := httptest.NewRecorder()
	handler.HandleApprove(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("expected status %d, got %d", http.StatusSeeOther, rec.Code)
	}

	var decided struct {
		Status string `bson:"status"`
	}
	if err := db.Collection("payments").FindOne(ctx, bson.M{"_id": p.ID}).Decode(&decided); err != nil {
		t.Fatalf("FindOne failed: %v", err)
	}
	if decided.Status != string(models.PaymentCompleted) {
		t.Errorf("status: got %q, want %q", decided.Status, models.PaymentCompleted)
	}
}

func TestHandleApprove_OrdinaryOfficerForbidden(t *testing.T) {
	handler, fixtures, db := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	payer := fixtures.CreateUser(ctx, "Payer", "2023-0001", models.RoleStudent)
	officer := fixtures.CreateUser(ctx, "Officer", "2022-0001", models.RoleStudent)
	cat := fixtures.CreateCategory(ctx, org.ID, "Dues", 150)
	p := fixtures.CreatePayment(ctx, payer.ID, org.ID, cat.ID, 150, models.PaymentPending, time.Now().UTC())

	// An officer-level membership alone carries no verification authority.
	fixtures.CreateMembership(ctx, org.ID, officer.ID, models.MemberRoleOfficer, models.MemberStatusActive)

	req := httptest.NewRequest("POST", "/payments/"+p.ID.Hex()+"/approve", nil)
	req = testutil.WithChiURLParam(req, "id", p.ID.Hex())
	req = testutil.WithUser(req, testutil.UserFor(officer))

	rec := httptest.NewRecorder()

	// The forbidden path renders an error page; the template set is not
	// initialized in tests, so tolerate a render panic and check the DB.
	func() {
		defer func() { recover() }()
		handler.HandleApprove(rec, req)
	}()

	var unchanged struct {
		Status string `bson:"status"`
	}
	if err := db.Collection("payments").FindOne(ctx, bson.M{"_id": p.ID}).Decode(&unchanged); err != nil {
		t.Fatalf("FindOne failed: %v", err)
	}
	if unchanged.Status != string(models.PaymentPending) {
		t.Errorf("status should stay pending, got %q", unchanged.Status)
	}
}

func TestHandleReject_CarriesReason(t *testing.T) {
	handler, fixtures, db := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	payer := fixtures.CreateUser(ctx, "Payer", "2023-0001", models.RoleStudent)
	cat := fixtures.CreateCategory(ctx, org.ID, "Dues", 150)
	p := fixtures.CreatePayment(ctx, payer.ID, org.ID, cat.ID, 150, models.PaymentPending, time.Now().UTC())

	form := url.Values{"reason": {"wrong amount"}}
	req := httptest.NewRequest("POST", "/payments/"+p.ID.Hex()+"/reject", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req = testutil.WithChiURLParam(req, "id", p.ID.Hex())
	req = testutil.WithUser(req, testutil.AdminUser())

	rec := httptest.NewRecorder()
	handler.HandleReject(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("expected status %d, got %d", http.StatusSeeOther, rec.Code)
	}

	var decided struct {
		Status string `bson:"status"`
		Notes  string `bson:"notes"`
	}
	if err := db.Collection("payments").FindOne(ctx, bson.M{"_id": p.ID}).Decode(&decided); err != nil {
		t.Fatalf("FindOne failed: %v", err)
	}
	if decided.Status != string(models.PaymentRejected) {
		t.Errorf("status: got %q, want %q", decided.Status, models.PaymentRejected)
	}
	if decided.Notes != "wrong amount" {
		t.Errorf("notes: got %q, want the rejection reason", decided.Notes)
	}
}

func TestHandleApprove_AlreadyDecided(t *testing.T) {
	handler, fixtures, db := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	payer := fixtures.CreateUser(ctx, "Payer", "2023-0001", models.RoleStudent)
	cat := fixtures.CreateCategory(ctx, org.ID, "Dues", 150)
	p := fixtures.CreatePayment(ctx, payer.ID, org.ID, cat.ID, 150, models.PaymentRejected, time.Now().UTC())

	req := httptest.NewRequest("POST", "/payments/"+p.ID.Hex()+"/approve", nil)
	req = testutil.WithChiURLParam(req, "id", p.ID.Hex())
	req = testutil.WithUser(req, testutil.AdminUser())

	rec := httptest.NewRecorder()

	func() {
		defer func() { recover() }()
		handler.HandleApprove(rec, req)
	}()

	var unchanged struct {
		Status string `bson:"status"`
	}
	if err := db.Collection("payments").FindOne(ctx, bson.M{"_id": p.ID}).Decode(&unchanged); err != nil {
		t.Fatalf("FindOne failed: %v", err)
	}
	if unchanged.Status != string(models.PaymentRejected) {
		t.Errorf("a decided payment must not flip, got %q", unchanged.Status)
	}
}
