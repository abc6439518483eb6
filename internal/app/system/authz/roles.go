// internal/app/system/authz/roles.go
package authz

import "github.com/dalemusser/paytrack/internal/domain/models"

// RoleOption pairs a role value with its display label for select inputs.
type RoleOption struct {
	Value models.Role
	Label string
}

// AccountRoleOptions lists the roles an admin may assign to an account.
func AccountRoleOptions() []RoleOption {
	return []RoleOption{
		{Value: models.RoleStudent, Label: "Student"},
		{Value: models.RoleOfficer, Label: "Officer"},
		{Value: models.RoleAdviser, Label: "Adviser"},
		{Value: models.RoleAdmin, Label: "Admin"},
	}
}

// MemberRoleOption pairs a membership role with its display label.
type MemberRoleOption struct {
	Value models.MemberRole
	Label string
}

// MemberRoleOptions lists the roles an officer may assign to a member.
func MemberRoleOptions() []MemberRoleOption {
	return []MemberRoleOption{
		{Value: models.MemberRoleMember, Label: "Member"},
		{Value: models.MemberRoleOfficer, Label: "Officer"},
		{Value: models.MemberRolePresident, Label: "President"},
		{Value: models.MemberRoleTreasurer, Label: "Treasurer"},
	}
}
