package payments_test

import (
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/paytrack/internal/app/payments"
	categorystore "github.com/dalemusser/paytrack/internal/app/store/categories"
	membershipstore "github.com/dalemusser/paytrack/internal/app/store/memberships"
	paymentstore "github.com/dalemusser/paytrack/internal/app/store/payments"
	"github.com/dalemusser/paytrack/internal/app/system/notify"
	"github.com/dalemusser/paytrack/internal/domain/models"
	"github.com/dalemusser/paytrack/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newService(t *testing.T, db *mongo.Database) (*payments.Service, *notify.CaptureSink) {
	t.Helper()
	sink := &notify.CaptureSink{}
	svc := payments.NewService(
		paymentstore.New(db),
		categorystore.New(db),
		membershipstore.New(db),
		sink,
		zap.NewNop(),
	)
	return svc, sink
}

func TestService_Submit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, sink := newService(t, db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	payer := fixtures.CreateUser(ctx, "Maria Santos", "2023-0001", models.RoleStudent)
	treasurer := fixtures.CreateUser(ctx, "Treasurer", "2022-0001", models.RoleStudent)
	cat := fixtures.CreateCategory(ctx, org.ID, "Semestral Dues", 150)
	fixtures.CreateMembership(ctx, org.ID, payer.ID, models.MemberRoleMember, models.MemberStatusActive)
	fixtures.CreateMembership(ctx, org.ID, treasurer.ID, models.MemberRoleTreasurer, models.MemberStatusActive)

	p, err := svc.Submit(ctx, payments.SubmitInput{
		UserID:     payer.ID,
		UserName:   payer.FullName,
		OrgID:      org.ID,
		CategoryID: cat.ID,
		Amount:     150,
		Method:     models.MethodCash,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if p.Status != models.PaymentPending {
		t.Errorf("status: got %q, want %q", p.Status, models.PaymentPending)
	}

	// The treasurer hears about it; the payer does not.
	if len(sink.Messages) != 1 {
		t.Fatalf("got %d notifications, want 1", len(sink.Messages))
	}
	msg := sink.Messages[0]
	if msg.UserID != treasurer.ID {
		t.Errorf("notification recipient: got %v, want treasurer", msg.UserID)
	}
	if msg.Title != "New Payment Received" {
		t.Errorf("notification title: got %q", msg.Title)
	}
	if !strings.Contains(msg.Body, "Maria Santos") {
		t.Errorf("notification body should name the payer, got %q", msg.Body)
	}
	if msg.RelatedID == nil || *msg.RelatedID != p.ID {
		t.Error("notification should reference the payment")
	}
}

func TestService_Submit_OfficerPayingOwnDues(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, sink := newService(t, db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	treasurer := fixtures.CreateUser(ctx, "Treasurer", "2022-0001", models.RoleStudent)
	cat := fixtures.CreateCategory(ctx, org.ID, "Dues", 150)
	fixtures.CreateMembership(ctx, org.ID, treasurer.ID, models.MemberRoleTreasurer, models.MemberStatusActive)

	_, err := svc.Submit(ctx, payments.SubmitInput{
		UserID:     treasurer.ID,
		UserName:   treasurer.FullName,
		OrgID:      org.ID,
		CategoryID: cat.ID,
		Amount:     150,
		Method:     models.MethodCash,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if len(sink.Messages) != 0 {
		t.Errorf("the submitting officer should not be notified, got %d messages", len(sink.Messages))
	}
}

func TestService_Submit_Validation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := newService(t, db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	otherOrg := fixtures.CreateOrganization(ctx, "Other Org")
	payer := fixtures.CreateUser(ctx, "Payer", "2023-0001", models.RoleStudent)
	outsider := fixtures.CreateUser(ctx, "Outsider", "2023-0002", models.RoleStudent)
	cat := fixtures.CreateCategory(ctx, org.ID, "Dues", 150)
	fixtures.CreateMembership(ctx, org.ID, payer.ID, models.MemberRoleMember, models.MemberStatusActive)

	base := payments.SubmitInput{
		UserID:     payer.ID,
		UserName:   "Payer",
		OrgID:      org.ID,
		CategoryID: cat.ID,
		Amount:     150,
		Method:     models.MethodCash,
	}

	cases := []struct {
		name   string
		mutate func(*payments.SubmitInput)
		want   error
	}{
		{"zero amount", func(in *payments.SubmitInput) { in.Amount = 0 }, payments.ErrInvalidAmount},
		{"negative amount", func(in *payments.SubmitInput) { in.Amount = -5 }, payments.ErrInvalidAmount},
		{"unknown method", func(in *payments.SubmitInput) { in.Method = "paypal" }, payments.ErrInvalidMethod},
		{"gcash without reference", func(in *payments.SubmitInput) { in.Method = models.MethodGCash }, payments.ErrMissingRef},
		{"bank transfer without reference", func(in *payments.SubmitInput) { in.Method = models.MethodBankTransfer }, payments.ErrMissingRef},
		{"category from another org", func(in *payments.SubmitInput) { in.OrgID = otherOrg.ID }, payments.ErrInvalidCategory},
		{"missing category", func(in *payments.SubmitInput) { in.CategoryID = primitive.NewObjectID() }, payments.ErrInvalidCategory},
		{"not a member", func(in *payments.SubmitInput) { in.UserID = outsider.ID }, payments.ErrNotAMember},
	}
	for _, tc := range cases {
		in := base
		tc.mutate(&in)
		_, err := svc.Submit(ctx, in)
		if err != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestService_Submit_PendingMemberRejected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := newService(t, db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	payer := fixtures.CreateUser(ctx, "Payer", "2023-0001", models.RoleStudent)
	cat := fixtures.CreateCategory(ctx, org.ID, "Dues", 150)
	fixtures.CreateMembership(ctx, org.ID, payer.ID, models.MemberRoleMember, models.MemberStatusPending)

	_, err := svc.Submit(ctx, payments.SubmitInput{
		UserID:     payer.ID,
		UserName:   "Payer",
		OrgID:      org.ID,
		CategoryID: cat.ID,
		Amount:     150,
		Method:     models.MethodCash,
	})
	if err != payments.ErrNotAMember {
		t.Errorf("got %v, want ErrNotAMember for a pending membership", err)
	}
}

func TestService_Edit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := newService(t, db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	payer := fixtures.CreateUser(ctx, "Payer", "2023-0001", models.RoleStudent)
	cat := fixtures.CreateCategory(ctx, org.ID, "Dues", 150)
	p := fixtures.CreatePayment(ctx, payer.ID, org.ID, cat.ID, 150, models.PaymentPending, time.Now().UTC())

	err := svc.Edit(ctx, payments.EditInput{
		PaymentID:       p.ID,
		UserID:          payer.ID,
		Amount:          200,
		Method:          models.MethodGCash,
		ReferenceNumber: "REF-1",
	})
	if err != nil {
		t.Fatalf("Edit failed: %v", err)
	}

	found, err := paymentstore.New(db).GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if found.Amount != 200 || found.Method != models.MethodGCash {
		t.Errorf("edit not applied: %+v", found)
	}
}

func TestService_Edit_AfterDecision(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := newService(t, db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	payer := fixtures.CreateUser(ctx, "Payer", "2023-0001", models.RoleStudent)
	cat := fixtures.CreateCategory(ctx, org.ID, "Dues", 150)
	p := fixtures.CreatePayment(ctx, payer.ID, org.ID, cat.ID, 150, models.PaymentCompleted, time.Now().UTC())

	err := svc.Edit(ctx, payments.EditInput{
		PaymentID: p.ID,
		UserID:    payer.ID,
		Amount:    200,
		Method:    models.MethodCash,
	})
	if err != payments.ErrNotEditable {
		t.Errorf("got %v, want ErrNotEditable", err)
	}
}

func TestService_Verify_Approve(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, sink := newService(t, db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	payer := fixtures.CreateUser(ctx, "Payer", "2023-0001", models.RoleStudent)
	verifier := fixtures.CreateUser(ctx, "Treasurer", "2022-0001", models.RoleStudent)
	cat := fixtures.CreateCategory(ctx, org.ID, "Dues", 150)
	p := fixtures.CreatePayment(ctx, payer.ID, org.ID, cat.ID, 150, models.PaymentPending, time.Now().UTC())

	decided, err := svc.Verify(ctx, p.ID, verifier.ID, payments.Decision{Approve: true})
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if decided.Status != models.PaymentCompleted {
		t.Errorf("status: got %q, want %q", decided.Status, models.PaymentCompleted)
	}

	if len(sink.Messages) != 1 {
		t.Fatalf("got %d notifications, want 1", len(sink.Messages))
	}
	msg := sink.Messages[0]
	if msg.UserID != payer.ID {
		t.Errorf("notification recipient: got %v, want the payer", msg.UserID)
	}
	if msg.Title != "Payment Approved" {
		t.Errorf("notification title: got %q", msg.Title)
	}
	if !strings.Contains(msg.Body, cat.Name) {
		t.Errorf("notification body should name the category, got %q", msg.Body)
	}
}

func TestService_Verify_RejectWithReason(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, sink := newService(t, db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	payer := fixtures.CreateUser(ctx, "Payer", "2023-0001", models.RoleStudent)
	verifier := fixtures.CreateUser(ctx, "Treasurer", "2022-0001", models.RoleStudent)
	cat := fixtures.CreateCategory(ctx, org.ID, "Dues", 150)
	p := fixtures.CreatePayment(ctx, payer.ID, org.ID, cat.ID, 150, models.PaymentPending, time.Now().UTC())

	decided, err := svc.Verify(ctx, p.ID, verifier.ID, payments.Decision{
		Approve: false,
		Reason:  "unreadable receipt",
	})
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if decided.Status != models.PaymentRejected {
		t.Errorf("status: got %q, want %q", decided.Status, models.PaymentRejected)
	}

	if len(sink.Messages) != 1 {
		t.Fatalf("got %d notifications, want 1", len(sink.Messages))
	}
	msg := sink.Messages[0]
	if msg.Title != "Payment Rejected" {
		t.Errorf("notification title: got %q", msg.Title)
	}
	if !strings.Contains(msg.Body, "unreadable receipt") {
		t.Errorf("notification body should carry the reason, got %q", msg.Body)
	}
	if !strings.Contains(msg.Body, cat.Name) {
		t.Errorf("notification body should name the category, got %q", msg.Body)
	}
}

func TestService_Verify_LosesRace(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, sink := newService(t, db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	payer := fixtures.CreateUser(ctx, "Payer", "2023-0001", models.RoleStudent)
	first := fixtures.CreateUser(ctx, "First", "2022-0001", models.RoleStudent)
	second := fixtures.CreateUser(ctx, "Second", "2022-0002", models.RoleStudent)
	cat := fixtures.CreateCategory(ctx, org.ID, "Dues", 150)
	p := fixtures.CreatePayment(ctx, payer.ID, org.ID, cat.ID, 150, models.PaymentPending, time.Now().UTC())

	if _, err := svc.Verify(ctx, p.ID, first.ID, payments.Decision{Approve: true}); err != nil {
		t.Fatalf("first Verify failed: %v", err)
	}

	_, err := svc.Verify(ctx, p.ID, second.ID, payments.Decision{Approve: false, Reason: "late"})
	if err != payments.ErrNotPending {
		t.Errorf("got %v, want ErrNotPending", err)
	}

	// Only the winning decision notifies the payer.
	if len(sink.Messages) != 1 {
		t.Errorf("got %d notifications, want 1", len(sink.Messages))
	}
}

func TestService_Verify_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := newService(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := svc.Verify(ctx, primitive.NewObjectID(), primitive.NewObjectID(), payments.Decision{Approve: true})
	if err != payments.ErrNotFound {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}
