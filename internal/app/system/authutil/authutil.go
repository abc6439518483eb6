// internal/app/system/authutil/authutil.go
//
// Package authutil provides password hashing and validation for
// local-credential accounts.
package authutil

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 6
	MaxPasswordLength = 128
)

var (
	ErrPasswordTooShort = errors.New("password is too short")
	ErrPasswordTooLong  = errors.New("password is too long")
	ErrPasswordCommon   = errors.New("password is too common")
)

// commonPasswords are rejected outright regardless of length.
// Matching is case-insensitive.
var commonPasswords = map[string]struct{}{
	"123456":    {},
	"12345678":  {},
	"123456789": {},
	"password":  {},
	"password1": {},
	"qwerty":    {},
	"abc123":    {},
	"iloveyou":  {},
	"letmein":   {},
	"football":  {},
	"welcome":   {},
	"monkey":    {},
	"dragon":    {},
	"sunshine":  {},
}

// ValidatePassword checks length bounds and the common-password list.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	if _, found := commonPasswords[strings.ToLower(password)]; found {
		return ErrPasswordCommon
	}
	return nil
}

// PasswordRules returns a human-readable description of the password
// requirements for display on forms.
func PasswordRules() string {
	return fmt.Sprintf("Must be %d-%d characters and not a commonly used password.",
		MinPasswordLength, MaxPasswordLength)
}

// HashPassword hashes a plain-text password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether the plain-text password matches the
// stored bcrypt hash. Invalid hashes simply fail the check.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
