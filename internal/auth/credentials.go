package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Credentials is the single administrator account of the site.
type Credentials struct {
	username string
	hash     []byte
}

// NewCredentials builds the administrator account. passwordHash, a bcrypt
// hash, takes precedence over the plain password, which is hashed once at
// startup.
func NewCredentials(username, password, passwordHash string) (*Credentials, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("credentials: username must not be empty")
	}

	if passwordHash != "" {
		if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
			return nil, fmt.Errorf("credentials: invalid bcrypt hash: %w", err)
		}
		return &Credentials{username: username, hash: []byte(passwordHash)}, nil
	}

	if password == "" {
		return nil, errors.New("credentials: password or password hash must be set")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("credentials: hash password: %w", err)
	}
	return &Credentials{username: username, hash: hash}, nil
}

// Username returns the administrator name.
func (c *Credentials) Username() string {
	return c.username
}

// Verify checks a username/password pair. The password hash is always
// compared so both failure modes take the same time, and both return
// the same error.
func (c *Credentials) Verify(username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(c.hash, []byte(password))
	if !userOK || passErr != nil {
		return ErrInvalidCredentials
	}
	return nil
}
