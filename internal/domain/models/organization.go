// internal/domain/models/organization.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrgStatus reflects whether an organization is accepting members and
// collecting dues.
type OrgStatus string

const (
	OrgStatusActive   OrgStatus = "active"
	OrgStatusInactive OrgStatus = "inactive"
)

// Valid reports whether s is a recognized organization status.
func (s OrgStatus) Valid() bool {
	return s == OrgStatusActive || s == OrgStatusInactive
}

// Organization is a student group that collects dues from its members.
//
// PresidentID and TreasurerID are the canonical source of finance
// authority: only those two users (and admins) may verify payments,
// regardless of what the membership rows say.
type Organization struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	NameCI      string             `bson:"name_ci" json:"name_ci"` // lowercase, diacritics-stripped
	Acronym     string             `bson:"acronym" json:"acronym"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	LogoPath    string             `bson:"logo_path,omitempty" json:"logo_path,omitempty"`

	AdviserID   *primitive.ObjectID `bson:"adviser_id,omitempty" json:"adviser_id,omitempty"`
	PresidentID *primitive.ObjectID `bson:"president_id,omitempty" json:"president_id,omitempty"`
	TreasurerID *primitive.ObjectID `bson:"treasurer_id,omitempty" json:"treasurer_id,omitempty"`

	MembershipFee float64   `bson:"membership_fee" json:"membership_fee"`
	Status        OrgStatus `bson:"status" json:"status"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// DisplayName is the "ACRO - Full Name" form used across lists and
// notification messages.
func (o Organization) DisplayName() string {
	if o.Acronym == "" {
		return o.Name
	}
	return o.Acronym + " - " + o.Name
}
