package reportqueries_test

import (
	"testing"
	"time"

	"github.com/dalemusser/paytrack/internal/app/store/queries/reportqueries"
	"github.com/dalemusser/paytrack/internal/domain/models"
	"github.com/dalemusser/paytrack/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestQueries_UnpaidMembers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	q := reportqueries.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	cat := fixtures.CreateCategory(ctx, org.ID, "Dues", 150)

	paid := fixtures.CreateUser(ctx, "Paid", "2023-0001", models.RoleStudent)
	pendingPay := fixtures.CreateUser(ctx, "Pending Payment", "2023-0002", models.RoleStudent)
	rejected := fixtures.CreateUser(ctx, "Rejected", "2023-0003", models.RoleStudent)
	never := fixtures.CreateUser(ctx, "Never Paid", "2023-0004", models.RoleStudent)
	inactive := fixtures.CreateUser(ctx, "Inactive", "2023-0005", models.RoleStudent)

	fixtures.CreateMembership(ctx, org.ID, paid.ID, models.MemberRoleMember, models.MemberStatusActive)
	fixtures.CreateMembership(ctx, org.ID, pendingPay.ID, models.MemberRoleMember, models.MemberStatusActive)
	fixtures.CreateMembership(ctx, org.ID, rejected.ID, models.MemberRoleMember, models.MemberStatusActive)
	fixtures.CreateMembership(ctx, org.ID, never.ID, models.MemberRoleMember, models.MemberStatusActive)
	fixtures.CreateMembership(ctx, org.ID, inactive.ID, models.MemberRoleMember, models.MemberStatusInactive)

	now := time.Now().UTC()
	fixtures.CreatePayment(ctx, paid.ID, org.ID, cat.ID, 150, models.PaymentCompleted, now)
	fixtures.CreatePayment(ctx, pendingPay.ID, org.ID, cat.ID, 150, models.PaymentPending, now)
	fixtures.CreatePayment(ctx, rejected.ID, org.ID, cat.ID, 150, models.PaymentRejected, now)

	got, err := q.UnpaidMembers(ctx, org.ID, cat.ID)
	if err != nil {
		t.Fatalf("UnpaidMembers failed: %v", err)
	}

	unpaid := map[primitive.ObjectID]bool{}
	for _, id := range got {
		unpaid[id] = true
	}

	// A rejected payment does not count as paid; a pending one does.
	// Inactive members are out of scope entirely.
	if len(got) != 2 {
		t.Fatalf("got %d unpaid members, want 2", len(got))
	}
	if !unpaid[rejected.ID] {
		t.Error("member with only a rejected payment should be unpaid")
	}
	if !unpaid[never.ID] {
		t.Error("member with no payment should be unpaid")
	}
	if unpaid[pendingPay.ID] {
		t.Error("member with a pending payment should not be unpaid")
	}
	if unpaid[inactive.ID] {
		t.Error("inactive member should not appear")
	}
}

func TestQueries_CountMemberships(t *testing.T) {
	db := testutil.SetupTestDB(t)
	q := reportqueries.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	a := fixtures.CreateUser(ctx, "A", "2023-0001", models.RoleStudent)
	b := fixtures.CreateUser(ctx, "B", "2023-0002", models.RoleStudent)
	c := fixtures.CreateUser(ctx, "C", "2023-0003", models.RoleStudent)
	fixtures.CreateMembership(ctx, org.ID, a.ID, models.MemberRoleMember, models.MemberStatusActive)
	fixtures.CreateMembership(ctx, org.ID, b.ID, models.MemberRoleMember, models.MemberStatusActive)
	fixtures.CreateMembership(ctx, org.ID, c.ID, models.MemberRoleMember, models.MemberStatusPending)

	got, err := q.CountMemberships(ctx, org.ID)
	if err != nil {
		t.Fatalf("CountMemberships failed: %v", err)
	}
	if got.Active != 2 {
		t.Errorf("Active: got %d, want 2", got.Active)
	}
	if got.Pending != 1 {
		t.Errorf("Pending: got %d, want 1", got.Pending)
	}
	if got.Inactive != 0 {
		t.Errorf("Inactive: got %d, want 0 (zero-filled)", got.Inactive)
	}
}

func TestQueries_OrgIDsForUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	q := reportqueries.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	active := fixtures.CreateOrganization(ctx, "Active Org")
	pending := fixtures.CreateOrganization(ctx, "Pending Org")
	user := fixtures.CreateUser(ctx, "Member", "2023-0001", models.RoleStudent)
	fixtures.CreateMembership(ctx, active.ID, user.ID, models.MemberRoleMember, models.MemberStatusActive)
	fixtures.CreateMembership(ctx, pending.ID, user.ID, models.MemberRoleMember, models.MemberStatusPending)

	got, err := q.OrgIDsForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("OrgIDsForUser failed: %v", err)
	}
	if len(got) != 1 || got[0] != active.ID {
		t.Errorf("got %v, want only the active org", got)
	}
}
