package auth

import (
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 8
	// bcrypt only accepts inputs up to this many bytes.
	maxPasswordBytes = 72
)

// CheckPasswordComposition enforces at least 8 characters and at most 72
// bytes, with one upper case letter, one lower case letter and one digit.
func CheckPasswordComposition(password string) error {
	if len([]rune(password)) < minPasswordLength {
		return fmt.Errorf("Password must have at least %d characters", minPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("Password must be at most %d bytes long", maxPasswordBytes)
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper {
		return fmt.Errorf("Password must have at least one uppercase letter")
	}
	if !lower {
		return fmt.Errorf("Password must have at least one lowercase letter")
	}
	if !digit {
		return fmt.Errorf("Password must have at least one digit")
	}
	return nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// VerifyPassword compares in constant effort.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
