// Package auth implements the single-admin session: the admin record, the
// one active session token and the middleware that guards the API and the
// HTML pages.
package auth

import (
	"errors"
	"time"

	adminDatamodel "github.com/frahmantamala/employee-onboarding/internal/core/datamodel/admin"
)

// AdminID is the identifier of the only admin account.
const AdminID = "admin"

// ErrNotFound is returned by admin repositories for an unknown id.
var ErrNotFound = errors.New("admin not found")

type Admin struct {
	ID       string
	Password *string
}

// Session is the active admin login.
type Session struct {
	Token     string
	AdminID   string
	IssuedAt  time.Time
	ExpiresAt time.Time

	// stored password value at login
	password string
}

func (s *Session) ToResponse() LoginResponse {
	return LoginResponse{
		Message:   "login successful",
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt.UTC(),
	}
}

func ToDataModel(a *Admin) *adminDatamodel.Admin {
	return &adminDatamodel.Admin{
		ID:       a.ID,
		Password: a.Password,
	}
}

func FromDataModel(a *adminDatamodel.Admin) *Admin {
	return &Admin{
		ID:       a.ID,
		Password: a.Password,
	}
}
