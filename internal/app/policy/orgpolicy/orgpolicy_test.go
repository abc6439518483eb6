package orgpolicy_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/paytrack/internal/app/policy/orgpolicy"
	organizationstore "github.com/dalemusser/paytrack/internal/app/store/organizations"
	"github.com/dalemusser/paytrack/internal/domain/models"
	"github.com/dalemusser/paytrack/internal/testutil"
)

func request(user testutil.TestUser) *http.Request {
	return testutil.NewAuthenticatedRequest("GET", "/", user)
}

func TestIsOrgOfficer(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	officer := fixtures.CreateUser(ctx, "Officer", "2022-0001", models.RoleStudent)
	member := fixtures.CreateUser(ctx, "Member", "2023-0001", models.RoleStudent)
	former := fixtures.CreateUser(ctx, "Former Officer", "2021-0001", models.RoleStudent)
	fixtures.CreateMembership(ctx, org.ID, officer.ID, models.MemberRoleOfficer, models.MemberStatusActive)
	fixtures.CreateMembership(ctx, org.ID, member.ID, models.MemberRoleMember, models.MemberStatusActive)
	fixtures.CreateMembership(ctx, org.ID, former.ID, models.MemberRoleOfficer, models.MemberStatusInactive)

	cases := []struct {
		name string
		user testutil.TestUser
		want bool
	}{
		{"admin always qualifies", testutil.AdminUser(), true},
		{"active officer membership", testutil.UserFor(officer), true},
		{"plain member", testutil.UserFor(member), false},
		{"inactive officer membership", testutil.UserFor(former), false},
		{"complete stranger", testutil.StudentUser(), false},
	}
	for _, tc := range cases {
		got, err := orgpolicy.IsOrgOfficer(ctx, db, request(tc.user), org.ID)
		if err != nil {
			t.Fatalf("%s: IsOrgOfficer failed: %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsOrgOfficer_Unauthenticated(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")

	got, err := orgpolicy.IsOrgOfficer(ctx, db, testutil.NewRequest("GET", "/"), org.ID)
	if err != nil {
		t.Fatalf("IsOrgOfficer failed: %v", err)
	}
	if got {
		t.Error("anonymous requests are never officers")
	}
}

func TestIsFinanceOfficer(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	president := fixtures.CreateUser(ctx, "President", "2022-0001", models.RoleStudent)
	treasurer := fixtures.CreateUser(ctx, "Treasurer", "2022-0002", models.RoleStudent)
	adviser := fixtures.CreateUser(ctx, "Adviser", "1990-0001", models.RoleAdviser)
	officer := fixtures.CreateUser(ctx, "Officer", "2022-0003", models.RoleStudent)

	// The designated president and treasurer come from the organization
	// record. An officer-level membership alone carries no money authority.
	err := organizationstore.New(db).SetOfficers(ctx, org.ID, &adviser.ID, &president.ID, &treasurer.ID)
	if err != nil {
		t.Fatalf("SetOfficers failed: %v", err)
	}
	fixtures.CreateMembership(ctx, org.ID, officer.ID, models.MemberRoleOfficer, models.MemberStatusActive)

	cases := []struct {
		name string
		user testutil.TestUser
		want bool
	}{
		{"admin", testutil.AdminUser(), true},
		{"designated president", testutil.UserFor(president), true},
		{"designated treasurer", testutil.UserFor(treasurer), true},
		{"adviser is not a finance officer", testutil.UserFor(adviser), false},
		{"ordinary officer", testutil.UserFor(officer), false},
	}
	for _, tc := range cases {
		got, err := orgpolicy.IsFinanceOfficer(ctx, db, request(tc.user), org.ID)
		if err != nil {
			t.Fatalf("%s: IsFinanceOfficer failed: %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestCanViewPayment(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	owner := fixtures.CreateUser(ctx, "Owner", "2023-0001", models.RoleStudent)
	officer := fixtures.CreateUser(ctx, "Officer", "2022-0001", models.RoleStudent)
	stranger := fixtures.CreateUser(ctx, "Stranger", "2023-0002", models.RoleStudent)
	cat := fixtures.CreateCategory(ctx, org.ID, "Dues", 150)
	fixtures.CreateMembership(ctx, org.ID, officer.ID, models.MemberRoleOfficer, models.MemberStatusActive)

	p := fixtures.CreatePayment(ctx, owner.ID, org.ID, cat.ID, 150, models.PaymentPending, time.Now().UTC())

	cases := []struct {
		name string
		user testutil.TestUser
		want bool
	}{
		{"owner", testutil.UserFor(owner), true},
		{"org officer", testutil.UserFor(officer), true},
		{"admin", testutil.AdminUser(), true},
		{"unrelated student", testutil.UserFor(stranger), false},
	}
	for _, tc := range cases {
		got, err := orgpolicy.CanViewPayment(ctx, db, request(tc.user), p)
		if err != nil {
			t.Fatalf("%s: CanViewPayment failed: %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsOwner(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	owner := fixtures.CreateUser(ctx, "Owner", "2023-0001", models.RoleStudent)
	cat := fixtures.CreateCategory(ctx, org.ID, "Dues", 150)
	p := fixtures.CreatePayment(ctx, owner.ID, org.ID, cat.ID, 150, models.PaymentPending, time.Now().UTC())

	if !orgpolicy.IsOwner(request(testutil.UserFor(owner)), p) {
		t.Error("owner should be recognized")
	}
	if orgpolicy.IsOwner(request(testutil.StudentUser()), p) {
		t.Error("another student is not the owner")
	}
	if orgpolicy.IsOwner(testutil.NewRequest("GET", "/"), p) {
		t.Error("anonymous requests own nothing")
	}
}

func TestIsActiveMember(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	active := fixtures.CreateUser(ctx, "Active", "2023-0001", models.RoleStudent)
	pending := fixtures.CreateUser(ctx, "Pending", "2023-0002", models.RoleStudent)
	fixtures.CreateMembership(ctx, org.ID, active.ID, models.MemberRoleMember, models.MemberStatusActive)
	fixtures.CreateMembership(ctx, org.ID, pending.ID, models.MemberRoleMember, models.MemberStatusPending)

	got, err := orgpolicy.IsActiveMember(ctx, db, org.ID, active.ID)
	if err != nil {
		t.Fatalf("IsActiveMember failed: %v", err)
	}
	if !got {
		t.Error("active member should qualify")
	}

	got, err = orgpolicy.IsActiveMember(ctx, db, org.ID, pending.ID)
	if err != nil {
		t.Fatalf("IsActiveMember failed: %v", err)
	}
	if got {
		t.Error("pending member should not qualify")
	}
}
