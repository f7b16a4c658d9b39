// Package auth checks login credentials against the configured accounts and
// defines the payload stored in a session.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/papercomputeco/docchat/pkg/config"
)

// ErrInvalidCredentials is returned for an unknown email or a wrong password.
// The two cases are not distinguished.
var ErrInvalidCredentials = errors.New("invalid email or password")

// User identifies the owner of a session.
type User struct {
	ID    string `json:"userId"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// SessionData is the payload the API stores in the session cache.
type SessionData struct {
	User User `json:"user"`
}

// Encode serializes d for the session cache.
func (d SessionData) Encode() ([]byte, error) {
	return json.Marshal(d)
}

// DecodeSessionData parses a payload read from the session cache.
func DecodeSessionData(payload []byte) (*SessionData, error) {
	var d SessionData
	if err := json.Unmarshal(payload, &d); err != nil {
		return nil, fmt.Errorf("decoding session data: %w", err)
	}
	if d.User.ID == "" {
		return nil, errors.New("session data has no user")
	}
	return &d, nil
}

type account struct {
	user User
	hash []byte
}

// Authenticator verifies email and password pairs.
type Authenticator struct {
	accounts map[string]account

	// dummy is compared against when the email is unknown so both failure
	// paths cost one bcrypt comparison.
	dummy []byte
}

// NewAuthenticator indexes users by lowercase email.
func NewAuthenticator(users []config.UserConfig) (*Authenticator, error) {
	a := &Authenticator{accounts: make(map[string]account, len(users))}

	for _, u := range users {
		email := normalizeEmail(u.Email)
		if email == "" || u.ID == "" {
			return nil, fmt.Errorf("user entry requires id and email")
		}
		if _, err := bcrypt.Cost([]byte(u.PasswordHash)); err != nil {
			return nil, fmt.Errorf("user %s has an invalid password hash: %w", email, err)
		}
		if _, dup := a.accounts[email]; dup {
			return nil, fmt.Errorf("duplicate user email %s", email)
		}

		a.accounts[email] = account{
			user: User{ID: u.ID, Email: email, Name: u.Name},
			hash: []byte(u.PasswordHash),
		}
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("docchat"), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("generating comparison hash: %w", err)
	}
	a.dummy = dummy

	return a, nil
}

// Authenticate returns the user for a matching email and password.
func (a *Authenticator) Authenticate(email, password string) (*User, error) {
	acc, ok := a.accounts[normalizeEmail(email)]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(a.dummy, []byte(password))
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	u := acc.user
	return &u, nil
}

// HashPassword returns a bcrypt hash suitable for a user entry's
// password_hash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is empty")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(h), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
