// internal/domain/models/membership.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemberRole is a user's role within one organization. It is independent
// of the account-level Role: a user whose account role is "student" can
// still be the treasurer of an organization.
type MemberRole string

const (
	MemberRoleMember    MemberRole = "member"
	MemberRoleOfficer   MemberRole = "officer"
	MemberRolePresident MemberRole = "president"
	MemberRoleTreasurer MemberRole = "treasurer"
)

// Valid reports whether r is a recognized membership role.
func (r MemberRole) Valid() bool {
	switch r {
	case MemberRoleMember, MemberRoleOfficer, MemberRolePresident, MemberRoleTreasurer:
		return true
	}
	return false
}

// IsOfficer reports whether r carries officer authority within the
// organization (notification fan-out, member approval, category edits).
func (r MemberRole) IsOfficer() bool {
	return r == MemberRoleOfficer || r == MemberRolePresident || r == MemberRoleTreasurer
}

// MemberStatus is the lifecycle of a membership row: join requests start
// pending, officers move them to active, removals go inactive.
type MemberStatus string

const (
	MemberStatusPending  MemberStatus = "pending"
	MemberStatusActive   MemberStatus = "active"
	MemberStatusInactive MemberStatus = "inactive"
)

// Valid reports whether s is a recognized membership status.
func (s MemberStatus) Valid() bool {
	switch s {
	case MemberStatusPending, MemberStatusActive, MemberStatusInactive:
		return true
	}
	return false
}

// Membership links a user to an organization. The (org_id, user_id) pair
// is unique: a user has at most one membership row per organization, in
// whatever status.
type Membership struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrgID  primitive.ObjectID `bson:"org_id" json:"org_id"`
	UserID primitive.ObjectID `bson:"user_id" json:"user_id"`
	Role   MemberRole         `bson:"role" json:"role"`
	Status MemberStatus       `bson:"status" json:"status"`

	JoinedAt  time.Time `bson:"joined_at" json:"joined_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
