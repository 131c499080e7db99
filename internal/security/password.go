package security

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/geocoder89/apextrades/internal/domain/user"
	"golang.org/x/crypto/bcrypt"
)

const (
	// HashCost is the bcrypt work factor used for every stored password.
	HashCost = 10

	MinPasswordLength = 8

	// MaxPasswordBytes is the bcrypt input limit. It counts bytes, not characters.
	MaxPasswordBytes = 72

	// PasswordSymbols is the fixed symbol set the web client checks as well.
	PasswordSymbols = "!@#$%^&*"
)

// Hash password hashes a plain text password with bcrypt.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), HashCost)

	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", user.ErrWeakPassword
		}
		return "", err
	}

	return string(hash), nil
}

// helper that compares a bcrypt hash with a plaintext password.

func CheckPassword(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}

// ValidatePasswordStrength enforces the composite policy: at least
// MinPasswordLength characters, one uppercase letter, one digit and one
// character from PasswordSymbols, and no more than MaxPasswordBytes bytes.
// It returns user.ErrWeakPassword on failure.
func ValidatePasswordStrength(plain string) error {
	if utf8.RuneCountInString(plain) < MinPasswordLength || len(plain) > MaxPasswordBytes {
		return user.ErrWeakPassword
	}

	var hasUpper, hasDigit, hasSymbol bool

	for _, r := range plain {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune(PasswordSymbols, r):
			hasSymbol = true
		}
	}

	if !hasUpper || !hasDigit || !hasSymbol {
		return user.ErrWeakPassword
	}

	return nil
}
