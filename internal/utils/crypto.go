package utils

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MIN_PASSWORD_LENGTH is the shortest password accepted on sign-up.
const MIN_PASSWORD_LENGTH = 6

// ErrPasswordMismatch is returned when a password does not match its hash.
var ErrPasswordMismatch = errors.New("password does not match")

// HashPassword hashes a password with bcrypt at the default cost.
func HashPassword(password string) (string, error) {
	if len(password) < MIN_PASSWORD_LENGTH {
		return "", fmt.Errorf("password must be at least %d characters", MIN_PASSWORD_LENGTH)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a password with a hash produced by HashPassword.
func CheckPassword(hash, password string) error {
	if hash == "" {
		return ErrPasswordMismatch
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	if err != nil {
		return fmt.Errorf("compare password: %w", err)
	}
	return nil
}
