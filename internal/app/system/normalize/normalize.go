// Package normalize provides canonical forms for user-supplied strings
// before they hit validation or the database. Normalization is applied at
// the edge (form parsing) so stores and queries can assume clean input.
package normalize

import "strings"

// Email trims whitespace and lowercases an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims whitespace but preserves case.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// StudentID trims whitespace and uppercases a student id so lookups are
// case-insensitive ("2023-0001a" and "2023-0001A" are the same student).
func StudentID(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Role trims and lowercases a role value.
func Role(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Status trims and lowercases a status value.
func Status(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Method trims and lowercases a payment method value.
func Method(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// QueryParam trims whitespace from a query parameter, preserving case.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}

// OrgID trims an organization id filter value, converting the sentinel
// "all" (any case) to empty, which filters mean "no org filter".
func OrgID(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "all") {
		return ""
	}
	return s
}
