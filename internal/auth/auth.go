// Package auth implements the session holder gating access to the intake
// workflows. Credentials come from a fixed set; the session is a single
// serialized user record in a Store.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"
)

// Session is the persisted user record.
type Session struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
}

type credential struct {
	hash    []byte
	session Session
}

// Holder owns the credential set and the persisted session.
type Holder struct {
	store       Store
	credentials map[string]credential
}

// NewHolder creates a session holder with the built-in credential set.
func NewHolder(store Store) *Holder {
	h := &Holder{
		store:       store,
		credentials: make(map[string]credential),
	}
	h.addCredential("admin", "admin123", Session{
		ID:          "001",
		Username:    "admin",
		Email:       "admin@example.com",
		DisplayName: "Admin User",
		Role:        "admin",
	})
	h.addCredential("inspector", "inspect123", Session{
		ID:          "002",
		Username:    "inspector",
		Email:       "inspector@example.com",
		DisplayName: "Inspector One",
		Role:        "inspector",
	})
	return h
}

func (h *Holder) addCredential(username, password string, session Session) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		// GenerateFromPassword only fails for an out-of-range cost.
		log.Printf("Failed to hash credential for %s: %v", username, err)
		return
	}
	h.credentials[username] = credential{hash: hash, session: session}
}

// Login verifies the credentials and persists a session record on match.
// A wrong username or password returns (false, nil); errors are reserved
// for storage faults.
func (h *Holder) Login(username, password string) (bool, error) {
	cred, ok := h.credentials[username]
	if !ok {
		return false, nil
	}
	if err := bcrypt.CompareHashAndPassword(cred.hash, []byte(password)); err != nil {
		return false, nil
	}

	data, err := json.Marshal(cred.session)
	if err != nil {
		return false, fmt.Errorf("failed to encode session: %w", err)
	}
	if err := h.store.Save(data); err != nil {
		return false, err
	}
	return true, nil
}

// Logout clears the persisted session.
func (h *Holder) Logout() error {
	return h.store.Clear()
}

// Current returns the persisted session, or nil when unauthenticated.
func (h *Holder) Current() (*Session, error) {
	data, err := h.store.Load()
	if errors.Is(err, ErrNoSession) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

// Authenticated reports whether a session record is present.
func (h *Holder) Authenticated() bool {
	session, err := h.Current()
	return err == nil && session != nil
}
