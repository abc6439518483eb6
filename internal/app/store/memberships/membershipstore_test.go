package membershipstore_test

import (
	"testing"

	membershipstore "github.com/dalemusser/paytrack/internal/app/store/memberships"
	"github.com/dalemusser/paytrack/internal/domain/models"
	"github.com/dalemusser/paytrack/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestStore_Create_Defaults(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	user := fixtures.CreateUser(ctx, "Member", "2023-0001", models.RoleStudent)

	created, err := store.Create(ctx, models.Membership{
		OrgID:  org.ID,
		UserID: user.ID,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if created.ID == primitive.NilObjectID {
		t.Error("expected ID to be assigned")
	}
	if created.Role != models.MemberRoleMember {
		t.Errorf("role: got %q, want default %q", created.Role, models.MemberRoleMember)
	}
	if created.Status != models.MemberStatusPending {
		t.Errorf("status: got %q, want default %q", created.Status, models.MemberStatusPending)
	}
	if created.JoinedAt.IsZero() {
		t.Error("expected JoinedAt to be set")
	}
}

func TestStore_Create_Duplicate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	user := fixtures.CreateUser(ctx, "Member", "2023-0001", models.RoleStudent)

	_, err := store.Create(ctx, models.Membership{OrgID: org.ID, UserID: user.ID})
	if err != nil {
		t.Fatalf("first Create failed: %v", err)
	}

	_, err = store.Create(ctx, models.Membership{OrgID: org.ID, UserID: user.ID})
	if err != membershipstore.ErrAlreadyMember {
		t.Errorf("expected ErrAlreadyMember, got %v", err)
	}
}

func TestStore_GetActive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	active := fixtures.CreateUser(ctx, "Active", "2023-0001", models.RoleStudent)
	pending := fixtures.CreateUser(ctx, "Pending", "2023-0002", models.RoleStudent)
	fixtures.CreateMembership(ctx, org.ID, active.ID, models.MemberRoleMember, models.MemberStatusActive)
	fixtures.CreateMembership(ctx, org.ID, pending.ID, models.MemberRoleMember, models.MemberStatusPending)

	if _, err := store.GetActive(ctx, org.ID, active.ID); err != nil {
		t.Errorf("GetActive for active member failed: %v", err)
	}
	if _, err := store.GetActive(ctx, org.ID, pending.ID); err != mongo.ErrNoDocuments {
		t.Errorf("expected mongo.ErrNoDocuments for pending member, got %v", err)
	}
}

func TestStore_SetStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	user := fixtures.CreateUser(ctx, "Member", "2023-0001", models.RoleStudent)
	m := fixtures.CreateMembership(ctx, org.ID, user.ID, models.MemberRoleMember, models.MemberStatusPending)

	matched, err := store.SetStatus(ctx, m.ID, models.MemberStatusActive)
	if err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if matched != 1 {
		t.Fatalf("matched: got %d, want 1", matched)
	}

	found, err := store.GetByID(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if found.Status != models.MemberStatusActive {
		t.Errorf("status: got %q, want %q", found.Status, models.MemberStatusActive)
	}

	matched, err = store.SetStatus(ctx, primitive.NewObjectID(), models.MemberStatusActive)
	if err != nil {
		t.Fatalf("SetStatus on missing membership failed: %v", err)
	}
	if matched != 0 {
		t.Errorf("matched: got %d, want 0 for missing membership", matched)
	}
}

func TestStore_SetRole(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	user := fixtures.CreateUser(ctx, "Member", "2023-0001", models.RoleStudent)
	m := fixtures.CreateMembership(ctx, org.ID, user.ID, models.MemberRoleMember, models.MemberStatusActive)

	matched, err := store.SetRole(ctx, m.ID, models.MemberRoleTreasurer)
	if err != nil {
		t.Fatalf("SetRole failed: %v", err)
	}
	if matched != 1 {
		t.Fatalf("matched: got %d, want 1", matched)
	}

	found, err := store.GetByID(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if found.Role != models.MemberRoleTreasurer {
		t.Errorf("role: got %q, want %q", found.Role, models.MemberRoleTreasurer)
	}
}

func TestStore_ActiveOfficers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	president := fixtures.CreateUser(ctx, "President", "2022-0001", models.RoleStudent)
	officer := fixtures.CreateUser(ctx, "Officer", "2022-0002", models.RoleStudent)
	member := fixtures.CreateUser(ctx, "Member", "2023-0001", models.RoleStudent)
	inactive := fixtures.CreateUser(ctx, "Former Treasurer", "2021-0001", models.RoleStudent)

	fixtures.CreateMembership(ctx, org.ID, president.ID, models.MemberRolePresident, models.MemberStatusActive)
	fixtures.CreateMembership(ctx, org.ID, officer.ID, models.MemberRoleOfficer, models.MemberStatusActive)
	fixtures.CreateMembership(ctx, org.ID, member.ID, models.MemberRoleMember, models.MemberStatusActive)
	fixtures.CreateMembership(ctx, org.ID, inactive.ID, models.MemberRoleTreasurer, models.MemberStatusInactive)

	got, err := store.ActiveOfficers(ctx, org.ID)
	if err != nil {
		t.Fatalf("ActiveOfficers failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d officers, want 2", len(got))
	}
	ids := map[primitive.ObjectID]bool{}
	for _, m := range got {
		ids[m.UserID] = true
	}
	if !ids[president.ID] || !ids[officer.ID] {
		t.Error("expected president and officer in the active officer set")
	}
}

func TestStore_ListByOrg_StatusFilter(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	a := fixtures.CreateUser(ctx, "A", "2023-0001", models.RoleStudent)
	b := fixtures.CreateUser(ctx, "B", "2023-0002", models.RoleStudent)
	fixtures.CreateMembership(ctx, org.ID, a.ID, models.MemberRoleMember, models.MemberStatusActive)
	fixtures.CreateMembership(ctx, org.ID, b.ID, models.MemberRoleMember, models.MemberStatusPending)

	got, err := store.ListByOrg(ctx, org.ID, models.MemberStatusPending)
	if err != nil {
		t.Fatalf("ListByOrg failed: %v", err)
	}
	if len(got) != 1 || got[0].UserID != b.ID {
		t.Errorf("expected only the pending membership, got %d", len(got))
	}

	all, err := store.ListByOrg(ctx, org.ID, "")
	if err != nil {
		t.Fatalf("ListByOrg all failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d memberships, want 2", len(all))
	}
}

func TestStore_CountByOrg(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
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

	n, err := store.CountByOrg(ctx, org.ID, models.MemberStatusActive)
	if err != nil {
		t.Fatalf("CountByOrg failed: %v", err)
	}
	if n != 2 {
		t.Errorf("active count: got %d, want 2", n)
	}

	n, err = store.CountByOrg(ctx, org.ID, "")
	if err != nil {
		t.Fatalf("CountByOrg all failed: %v", err)
	}
	if n != 3 {
		t.Errorf("total count: got %d, want 3", n)
	}
}
