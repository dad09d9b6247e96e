package auth

import (
	"crypto/subtle"
	"sync"

	"github.com/frahmantamala/employee-onboarding/internal"
	"github.com/frahmantamala/employee-onboarding/internal/credential"
)

// SessionManager holds at most one admin session. Starting a session
// replaces the previous one; expiry is checked lazily on access.
type SessionManager struct {
	mu        sync.Mutex
	current   *Session
	tokenizer *credential.Tokenizer
}

func NewSessionManager(tokenizer *credential.Tokenizer) *SessionManager {
	return &SessionManager{tokenizer: tokenizer}
}

// Start mints a token for adminID and makes it the active session, bound
// to the admin's stored password value.
func (m *SessionManager) Start(adminID, storedPassword string) (*Session, error) {
	token, err := m.tokenizer.GenerateSessionToken(adminID)
	if err != nil {
		return nil, err
	}
	_, issued, err := credential.ParseSessionToken(token)
	if err != nil {
		return nil, err
	}

	s := &Session{
		Token:     token,
		AdminID:   adminID,
		IssuedAt:  issued,
		ExpiresAt: m.tokenizer.ExpiresAt(issued),
		password:  storedPassword,
	}

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	return s, nil
}

// Validate returns the active session when token matches it. An expired
// session is cleared and reported as ErrTokenExpired.
func (m *SessionManager) Validate(token string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil || token == "" {
		return nil, internal.ErrInvalidToken
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(m.current.Token)) != 1 {
		return nil, internal.ErrInvalidToken
	}

	valid, err := m.tokenizer.ValidateTokenExpiration(m.current.Token)
	if err != nil {
		m.current = nil
		return nil, internal.ErrInvalidToken.WithCause(err)
	}
	if !valid {
		m.current = nil
		return nil, internal.ErrTokenExpired
	}

	s := *m.current
	return &s, nil
}

// End clears the session if token is the active one.
func (m *SessionManager) End(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil || subtle.ConstantTimeCompare([]byte(token), []byte(m.current.Token)) != 1 {
		return false
	}
	m.current = nil
	return true
}

// Clear drops any active session.
func (m *SessionManager) Clear() {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
}

func (m *SessionManager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil
}
