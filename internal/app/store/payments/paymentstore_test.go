package paymentstore_test

import (
	"testing"
	"time"

	paymentstore "github.com/dalemusser/paytrack/internal/app/store/payments"
	"github.com/dalemusser/paytrack/internal/domain/models"
	"github.com/dalemusser/paytrack/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestStore_Create_StartsPending(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := paymentstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	user := fixtures.CreateUser(ctx, "Payer", "2023-0001", models.RoleStudent)
	cat := fixtures.CreateCategory(ctx, org.ID, "Semestral Dues", 150)

	verifier := primitive.NewObjectID()
	now := time.Now().UTC()
	created, err := store.Create(ctx, models.Payment{
		UserID:     user.ID,
		OrgID:      org.ID,
		CategoryID: cat.ID,
		Amount:     150,
		Method:     models.MethodCash,
		// A caller cannot smuggle in a decided payment.
		Status:     models.PaymentCompleted,
		VerifiedBy: &verifier,
		VerifiedAt: &now,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if created.ID == primitive.NilObjectID {
		t.Error("expected ID to be assigned")
	}
	if created.Status != models.PaymentPending {
		t.Errorf("status: got %q, want %q", created.Status, models.PaymentPending)
	}
	if created.VerifiedBy != nil || created.VerifiedAt != nil {
		t.Error("expected verification fields to be cleared on create")
	}
	if created.PaymentDate.IsZero() {
		t.Error("expected PaymentDate to default to now")
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestStore_UpdatePending(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := paymentstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	user := fixtures.CreateUser(ctx, "Payer", "2023-0001", models.RoleStudent)
	cat := fixtures.CreateCategory(ctx, org.ID, "Dues", 150)
	p := fixtures.CreatePayment(ctx, user.ID, org.ID, cat.ID, 150, models.PaymentPending, time.Now().UTC())

	matched, err := store.UpdatePending(ctx, p.ID, user.ID, paymentstore.PendingUpdate{
		Amount:          200,
		Method:          models.MethodGCash,
		ReferenceNumber: "REF-123",
		Notes:           "corrected amount",
	})
	if err != nil {
		t.Fatalf("UpdatePending failed: %v", err)
	}
	if matched != 1 {
		t.Fatalf("matched: got %d, want 1", matched)
	}

	found, err := store.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if found.Amount != 200 {
		t.Errorf("Amount: got %v, want 200", found.Amount)
	}
	if found.Method != models.MethodGCash {
		t.Errorf("Method: got %q, want %q", found.Method, models.MethodGCash)
	}
	if found.ReferenceNumber != "REF-123" {
		t.Errorf("ReferenceNumber: got %q, want %q", found.ReferenceNumber, "REF-123")
	}
	if found.Status != models.PaymentPending {
		t.Errorf("status should stay pending, got %q", found.Status)
	}
}

func TestStore_UpdatePending_WrongOwner(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := paymentstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	owner := fixtures.CreateUser(ctx, "Owner", "2023-0001", models.RoleStudent)
	other := fixtures.CreateUser(ctx, "Other", "2023-0002", models.RoleStudent)
	cat := fixtures.CreateCategory(ctx, org.ID, "Dues", 150)
	p := fixtures.CreatePayment(ctx, owner.ID, org.ID, cat.ID, 150, models.PaymentPending, time.Now().UTC())

	matched, err := store.UpdatePending(ctx, p.ID, other.ID, paymentstore.PendingUpdate{
		Amount: 999,
		Method: models.MethodCash,
	})
	if err != nil {
		t.Fatalf("UpdatePending failed: %v", err)
	}
	if matched != 0 {
		t.Errorf("matched: got %d, want 0 for wrong owner", matched)
	}

	found, err := store.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if found.Amount != 150 {
		t.Errorf("Amount should be unchanged, got %v", found.Amount)
	}
}

func TestStore_UpdatePending_AlreadyDecided(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := paymentstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	user := fixtures.CreateUser(ctx, "Payer", "2023-0001", models.RoleStudent)
	cat := fixtures.CreateCategory(ctx, org.ID, "Dues", 150)
	p := fixtures.CreatePayment(ctx, user.ID, org.ID, cat.ID, 150, models.PaymentCompleted, time.Now().UTC())

	matched, err := store.UpdatePending(ctx, p.ID, user.ID, paymentstore.PendingUpdate{
		Amount: 200,
		Method: models.MethodCash,
	})
	if err != nil {
		t.Fatalf("UpdatePending failed: %v", err)
	}
	if matched != 0 {
		t.Errorf("matched: got %d, want 0 for decided payment", matched)
	}
}

func TestStore_Verify(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := paymentstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	user := fixtures.CreateUser(ctx, "Payer", "2023-0001", models.RoleStudent)
	cat := fixtures.CreateCategory(ctx, org.ID, "Dues", 150)
	p := fixtures.CreatePayment(ctx, user.ID, org.ID, cat.ID, 150, models.PaymentPending, time.Now().UTC())
	verifier := primitive.NewObjectID()

	matched, err := store.Verify(ctx, p.ID, models.PaymentCompleted, verifier, "")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if matched != 1 {
		t.Fatalf("matched: got %d, want 1", matched)
	}

	found, err := store.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if found.Status != models.PaymentCompleted {
		t.Errorf("status: got %q, want %q", found.Status, models.PaymentCompleted)
	}
	if found.VerifiedBy == nil || *found.VerifiedBy != verifier {
		t.Error("expected VerifiedBy to be the verifier")
	}
	if found.VerifiedAt == nil {
		t.Error("expected VerifiedAt to be set")
	}
}

func TestStore_Verify_OnlyOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := paymentstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	user := fixtures.CreateUser(ctx, "Payer", "2023-0001", models.RoleStudent)
	cat := fixtures.CreateCategory(ctx, org.ID, "Dues", 150)
	p := fixtures.CreatePayment(ctx, user.ID, org.ID, cat.ID, 150, models.PaymentPending, time.Now().UTC())

	first := primitive.NewObjectID()
	second := primitive.NewObjectID()

	matched, err := store.Verify(ctx, p.ID, models.PaymentCompleted, first, "")
	if err != nil {
		t.Fatalf("first Verify failed: %v", err)
	}
	if matched != 1 {
		t.Fatalf("first matched: got %d, want 1", matched)
	}

	// A second decision, whatever its direction, must lose.
	matched, err = store.Verify(ctx, p.ID, models.PaymentRejected, second, "late")
	if err != nil {
		t.Fatalf("second Verify failed: %v", err)
	}
	if matched != 0 {
		t.Errorf("second matched: got %d, want 0", matched)
	}

	found, err := store.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if found.Status != models.PaymentCompleted {
		t.Errorf("status: got %q, want %q after losing race", found.Status, models.PaymentCompleted)
	}
	if found.VerifiedBy == nil || *found.VerifiedBy != first {
		t.Error("VerifiedBy should be the first verifier")
	}
}

func TestStore_Verify_RejectionReason(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := paymentstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	user := fixtures.CreateUser(ctx, "Payer", "2023-0001", models.RoleStudent)
	cat := fixtures.CreateCategory(ctx, org.ID, "Dues", 150)
	p := fixtures.CreatePayment(ctx, user.ID, org.ID, cat.ID, 150, models.PaymentPending, time.Now().UTC())

	_, err := store.Verify(ctx, p.ID, models.PaymentRejected, primitive.NewObjectID(), "unreadable receipt")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	found, err := store.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if found.Status != models.PaymentRejected {
		t.Errorf("status: got %q, want %q", found.Status, models.PaymentRejected)
	}
	if found.Notes != "unreadable receipt" {
		t.Errorf("Notes: got %q, want the rejection reason", found.Notes)
	}
}

func TestStore_List_Filters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := paymentstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	otherOrg := fixtures.CreateOrganization(ctx, "Other Org")
	user := fixtures.CreateUser(ctx, "Payer", "2023-0001", models.RoleStudent)
	cat := fixtures.CreateCategory(ctx, org.ID, "Dues", 150)
	otherCat := fixtures.CreateCategory(ctx, otherOrg.ID, "Dues", 100)

	now := time.Now().UTC()
	fixtures.CreatePayment(ctx, user.ID, org.ID, cat.ID, 150, models.PaymentPending, now)
	fixtures.CreatePayment(ctx, user.ID, org.ID, cat.ID, 150, models.PaymentCompleted, now.AddDate(0, 0, -10))
	fixtures.CreatePayment(ctx, user.ID, otherOrg.ID, otherCat.ID, 100, models.PaymentCompleted, now)

	// By org.
	got, err := store.List(ctx, paymentstore.ListFilter{OrgID: &org.ID})
	if err != nil {
		t.Fatalf("List by org failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("by org: got %d payments, want 2", len(got))
	}

	// By org and status.
	got, err = store.List(ctx, paymentstore.ListFilter{OrgID: &org.ID, Status: models.PaymentPending})
	if err != nil {
		t.Fatalf("List by status failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("by status: got %d payments, want 1", len(got))
	}

	// By date window that excludes the ten-day-old payment.
	from := now.AddDate(0, 0, -1)
	got, err = store.List(ctx, paymentstore.ListFilter{OrgID: &org.ID, From: &from})
	if err != nil {
		t.Fatalf("List by date failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("by date: got %d payments, want 1", len(got))
	}

	// Count agrees with List.
	n, err := store.Count(ctx, paymentstore.ListFilter{OrgID: &org.ID})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Count: got %d, want 2", n)
	}
}

func TestStore_List_MostRecentFirst(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := paymentstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	user := fixtures.CreateUser(ctx, "Payer", "2023-0001", models.RoleStudent)
	cat := fixtures.CreateCategory(ctx, org.ID, "Dues", 150)

	now := time.Now().UTC()
	old := fixtures.CreatePayment(ctx, user.ID, org.ID, cat.ID, 100, models.PaymentCompleted, now.AddDate(0, 0, -5))
	recent := fixtures.CreatePayment(ctx, user.ID, org.ID, cat.ID, 200, models.PaymentCompleted, now)

	got, err := store.List(ctx, paymentstore.ListFilter{UserID: &user.ID})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d payments, want 2", len(got))
	}
	if got[0].ID != recent.ID || got[1].ID != old.ID {
		t.Error("expected most recent payment first")
	}
}

func TestStore_HasPaymentFor(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := paymentstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	paid := fixtures.CreateUser(ctx, "Paid", "2023-0001", models.RoleStudent)
	pending := fixtures.CreateUser(ctx, "Pending", "2023-0002", models.RoleStudent)
	rejected := fixtures.CreateUser(ctx, "Rejected", "2023-0003", models.RoleStudent)
	cat := fixtures.CreateCategory(ctx, org.ID, "Dues", 150)

	now := time.Now().UTC()
	fixtures.CreatePayment(ctx, paid.ID, org.ID, cat.ID, 150, models.PaymentCompleted, now)
	fixtures.CreatePayment(ctx, pending.ID, org.ID, cat.ID, 150, models.PaymentPending, now)
	fixtures.CreatePayment(ctx, rejected.ID, org.ID, cat.ID, 150, models.PaymentRejected, now)

	cases := []struct {
		name   string
		userID primitive.ObjectID
		want   bool
	}{
		{"completed counts", paid.ID, true},
		{"pending counts", pending.ID, true},
		{"rejected does not count", rejected.ID, false},
		{"no payment at all", primitive.NewObjectID(), false},
	}
	for _, tc := range cases {
		got, err := store.HasPaymentFor(ctx, tc.userID, cat.ID)
		if err != nil {
			t.Fatalf("%s: HasPaymentFor failed: %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestStore_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := paymentstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.GetByID(ctx, primitive.NewObjectID())
	if err != mongo.ErrNoDocuments {
		t.Errorf("expected mongo.ErrNoDocuments, got %v", err)
	}
}
