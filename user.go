package livewall

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// User is an email identity that can own walls.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`

	// ValidationCode is the 6-digit proof of email ownership.
	ValidationCode string `json:"-"`
	Validated      bool   `json:"validated"`

	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

// NewUser returns an unvalidated user with a fresh id and validation code.
func NewUser(email string) (*User, error) {
	code, err := NewValidationCode()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &User{
		ID:             uuid.NewString(),
		Email:          email,
		ValidationCode: code,
		Created:        now,
		Modified:       now,
	}, nil
}

// NewValidationCode returns a random code in [100000, 999999].
func NewValidationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate validation code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
