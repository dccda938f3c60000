package utils

import (
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail checks the email shape. Deliverability is not verified
// here; federated providers report their own verification status.
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// ValidatePassword enforces the local password policy: minimum 8
// characters with at least one uppercase letter, one lowercase letter,
// and one digit. Applies to registration and password change alike.
func ValidatePassword(password string) bool {
	if len(password) < 8 {
		return false
	}

	hasUpper := false
	hasLower := false
	hasNumber := false

	for _, char := range password {
		switch {
		case 'A' <= char && char <= 'Z':
			hasUpper = true
		case 'a' <= char && char <= 'z':
			hasLower = true
		case '0' <= char && char <= '9':
			hasNumber = true
		}
	}

	return hasUpper && hasLower && hasNumber
}

// SanitizeEmail normalizes an email for storage and lookup. All account
// email comparisons go through this, so "Alice@Example.COM " and
// "alice@example.com" resolve to the same account.
func SanitizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
