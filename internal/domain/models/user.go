// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is a user's account-level role. Organization-level authority is
// carried by Membership.Role and the organization's officer references,
// not by this field.
type Role string

const (
	RoleStudent Role = "student"
	RoleOfficer Role = "officer"
	RoleAdviser Role = "adviser"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the recognized roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleOfficer, RoleAdviser, RoleAdmin:
		return true
	}
	return false
}

// User represents a registered account: students, organization officers,
// advisers, and system admins.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	StudentID    string             `bson:"student_id" json:"student_id"`
	FullName     string             `bson:"full_name" json:"full_name"`
	FullNameCI   string             `bson:"full_name_ci" json:"full_name_ci"` // lowercase, diacritics-stripped
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	Role         Role               `bson:"role" json:"role"`
	Department   string             `bson:"department,omitempty" json:"department,omitempty"`
	YearLevel    string             `bson:"year_level,omitempty" json:"year_level,omitempty"`
	ProfileImage string             `bson:"profile_image,omitempty" json:"profile_image,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
