// Package validation provides input validation and sanitization utilities
package validation

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"bazaar/internal/models"

	"github.com/microcosm-cc/bluemonday"
)

// Field bounds shared by the services.
const (
	UsernameMinLen    = 3
	UsernameMaxLen    = 32
	PhoneMinLen       = 7
	PhoneMaxLen       = 32
	PasswordMinLen    = 6
	PasswordMaxLen    = 72
	TitleMinLen       = 3
	TitleMaxLen       = 128
	DescriptionMinLen = 3
	DescriptionMaxLen = 1024
)

var emailRegex = regexp.MustCompile(`^[\w\-.]+@([\w-]+\.)+[\w-]{2,}$`)

// strictPolicy strips every tag and attribute. bluemonday policies are safe
// for concurrent use once built.
var strictPolicy = bluemonday.StrictPolicy()

// SanitizeText removes all markup from s and trims surrounding whitespace.
// Text content survives with HTML special characters entity-escaped, so the
// result never contains a "<script" sequence and sanitizing it again is a no-op.
func SanitizeText(s string) string {
	return strings.TrimSpace(strictPolicy.Sanitize(s))
}

// RuneLenBetween reports whether s has between min and max characters inclusive.
func RuneLenBetween(s string, min, max int) bool {
	n := utf8.RuneCountInString(s)
	return n >= min && n <= max
}

// IsValidEmail checks the address against the accepted email pattern.
func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// IsValidUsername accepts 3 to 32 characters without "@", so a username can
// never be mistaken for an email address at login.
func IsValidUsername(username string) bool {
	return RuneLenBetween(username, UsernameMinLen, UsernameMaxLen) && !strings.Contains(username, "@")
}

// IsValidPhone accepts 7 to 32 characters.
func IsValidPhone(phone string) bool {
	return RuneLenBetween(phone, PhoneMinLen, PhoneMaxLen)
}

func IsValidAdType(t string) bool {
	switch models.AdType(t) {
	case models.AdTypeRequest, models.AdTypeOffer:
		return true
	}
	return false
}

func IsValidPaymentType(t string) bool {
	switch models.PaymentType(t) {
	case models.PaymentOnce, models.PaymentDay, models.PaymentHour, models.PaymentMonth:
		return true
	}
	return false
}

func IsValidRole(r string) bool {
	switch models.Role(r) {
	case models.RoleClient, models.RoleSeller, models.RoleBoth:
		return true
	}
	return false
}

// IsValidAmount accepts finite non-negative numbers.
func IsValidAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// ValidatePassword checks if a password meets length requirements
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < PasswordMinLen {
		return fmt.Errorf("password must be at least %d characters long", PasswordMinLen)
	}
	// bcrypt only accepts up to 72 bytes of input.
	if len(password) > PasswordMaxLen {
		return fmt.Errorf("password must not exceed %d bytes", PasswordMaxLen)
	}
	return nil
}
