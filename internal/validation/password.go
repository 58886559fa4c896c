package validation

import (
	"errors"
	"unicode/utf8"
)

// Password length bounds.
const (
	MinPasswordLength = 6
	MaxPasswordLength = 128
)

// ValidatePassword checks the signup password rules.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength {
		return errors.New("password must be at least 6 characters long")
	}
	if n > MaxPasswordLength {
		return errors.New("password must not exceed 128 characters")
	}
	return nil
}

// ValidatePasswordConfirmation checks the password rules and that both entries match.
func ValidatePasswordConfirmation(password, confirm string) error {
	if password != confirm {
		return errors.New("passwords do not match")
	}
	return ValidatePassword(password)
}
