package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/employee-onboarding/internal"
	adminDatamodel "github.com/frahmantamala/employee-onboarding/internal/core/datamodel/admin"
	"github.com/frahmantamala/employee-onboarding/internal/core/events"
	"github.com/frahmantamala/employee-onboarding/internal/credential"
	"github.com/frahmantamala/employee-onboarding/internal/storage"
	"github.com/frahmantamala/employee-onboarding/pkg/logger"
)

type RepositoryAPI interface {
	GetByID(id string) (*adminDatamodel.Admin, error)
	// Save inserts or replaces the admin keyed by id.
	Save(a *adminDatamodel.Admin) error
}

type PasswordManager interface {
	HashPassword(plain string) (string, error)
	VerifyHashedPassword(plain, digest string) (bool, error)
}

type ServiceAPI interface {
	Login(ctx context.Context, dto LoginDTO) (*Session, error)
	Logout(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (*Session, error)
}

// Service is the main auth service with dependencies
type Service struct {
	repo      RepositoryAPI
	passwords PasswordManager
	sessions  *SessionManager
	publisher events.Publisher
	logger    *slog.Logger

	generatePassword func() (string, error)
}

func NewService(repo RepositoryAPI, passwords PasswordManager, sessions *SessionManager, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		repo:             repo,
		passwords:        passwords,
		sessions:         sessions,
		publisher:        publisher,
		logger:           logger,
		generatePassword: credential.GenerateRandomPassword,
	}
}

func (s *Service) log(ctx context.Context) *slog.Logger {
	if l, ok := logger.FromContext(ctx); ok {
		return l
	}
	if s.logger != nil {
		return s.logger
	}
	return logger.From(ctx)
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log(ctx).Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}

func translate(err error) error {
	if errors.Is(err, ErrNotFound) {
		return internal.ErrAdminNotFound.WithCause(err)
	}
	if mapped := storage.ToAppError(err); mapped != err {
		return mapped
	}
	return internal.NewInternalError("admin storage failure", err)
}

// EnsureAdmin creates the admin record when it is missing. With an empty
// password a random one is generated and returned so the caller can show
// it once; otherwise the returned string is empty.
func (s *Service) EnsureAdmin(ctx context.Context, password string) (string, error) {
	_, err := s.repo.GetByID(AdminID)
	if err == nil {
		return "", nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", translate(err)
	}

	generated := ""
	if password == "" {
		if password, err = s.generatePassword(); err != nil {
			return "", internal.NewInternalError("failed to generate admin password", err)
		}
		generated = password
	}

	digest, err := s.passwords.HashPassword(password)
	if err != nil {
		return "", internal.NewInternalError("failed to hash admin password", err)
	}
	if err := s.repo.Save(ToDataModel(&Admin{ID: AdminID, Password: &digest})); err != nil {
		return "", translate(err)
	}

	s.log(ctx).Info("admin account created", "admin_id", AdminID)
	return generated, nil
}

// Login checks the admin credentials and starts a new session, replacing
// any session that was active.
func (s *Service) Login(ctx context.Context, dto LoginDTO) (*Session, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	rec, err := s.repo.GetByID(dto.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.log(ctx).Warn("login for unknown admin", "admin_id", dto.ID)
			return nil, internal.ErrInvalidCredentials
		}
		return nil, translate(err)
	}
	admin := FromDataModel(rec)
	if admin.Password == nil {
		return nil, internal.ErrInvalidCredentials
	}

	ok, stored := s.checkPassword(ctx, admin, dto.Password)
	if !ok {
		s.log(ctx).Warn("admin login failed", "admin_id", admin.ID)
		return nil, internal.ErrInvalidCredentials
	}

	session, err := s.sessions.Start(admin.ID, stored)
	if err != nil {
		return nil, internal.NewInternalError("failed to start session", err)
	}

	s.log(ctx).Info("admin logged in", "admin_id", admin.ID)
	s.publish(ctx, events.NewAdminLoggedInEvent(admin.ID))
	return session, nil
}

// checkPassword verifies against a digest, or against a legacy plaintext
// value which is then replaced by its digest. It returns the password value
// now stored, which the session is bound to.
func (s *Service) checkPassword(ctx context.Context, admin *Admin, plain string) (bool, string) {
	stored := *admin.Password
	if credential.IsDigest(stored) {
		ok, err := s.passwords.VerifyHashedPassword(plain, stored)
		if err == nil {
			return ok, stored
		}
		if !errors.Is(err, credential.ErrInvalidDigest) {
			s.log(ctx).Error("failed to verify admin password", "admin_id", admin.ID, "error", err)
			return false, ""
		}
		// only looks like a digest; treat it as legacy plaintext
	}

	if subtle.ConstantTimeCompare([]byte(plain), []byte(stored)) != 1 {
		return false, ""
	}

	s.log(ctx).Warn("admin password is stored in plaintext, rehashing", "admin_id", admin.ID)
	digest, err := s.storePassword(admin.ID, plain)
	if err != nil {
		s.log(ctx).Error("failed to rehash admin password", "admin_id", admin.ID, "error", err)
		return true, stored
	}
	return true, digest
}

func (s *Service) storePassword(id, plain string) (string, error) {
	digest, err := s.passwords.HashPassword(plain)
	if err != nil {
		return "", fmt.Errorf("hash admin password: %w", err)
	}
	if err := s.repo.Save(ToDataModel(&Admin{ID: id, Password: &digest})); err != nil {
		return "", err
	}
	return digest, nil
}

// Logout ends the session identified by token.
func (s *Service) Logout(ctx context.Context, token string) error {
	if !s.sessions.End(token) {
		return internal.ErrInvalidToken
	}
	adminID, _, _ := credential.ParseSessionToken(token)
	s.log(ctx).Info("admin logged out", "admin_id", adminID)
	s.publish(ctx, events.NewAdminLoggedOutEvent(adminID))
	return nil
}

// Authenticate resolves token to the active session. A session outlives
// neither its admin nor the password it was opened with, so a password set
// by another process (the CLI) ends it here.
func (s *Service) Authenticate(ctx context.Context, token string) (*Session, error) {
	session, err := s.sessions.Validate(token)
	if err != nil {
		if errors.Is(err, internal.ErrTokenExpired) {
			s.log(ctx).Info("admin session expired")
		}
		return nil, err
	}

	rec, err := s.repo.GetByID(session.AdminID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, translate(err)
	}
	if err != nil || rec.Password == nil || subtle.ConstantTimeCompare([]byte(*rec.Password), []byte(session.password)) != 1 {
		s.sessions.End(token)
		s.log(ctx).Info("admin credentials changed, session ended", "admin_id", session.AdminID)
		return nil, internal.ErrInvalidToken
	}
	return session, nil
}

// SetPassword replaces the admin password and ends the active session.
func (s *Service) SetPassword(ctx context.Context, id string, dto SetPasswordDTO) error {
	if err := dto.Validate(); err != nil {
		return err
	}
	if _, err := s.repo.GetByID(id); err != nil {
		return translate(err)
	}
	if _, err := s.storePassword(id, dto.Password); err != nil {
		if errors.Is(err, credential.ErrInvalidInput) {
			return internal.NewValidationFieldError("password", "password is too long", internal.ErrCodeInvalidInput)
		}
		return translate(err)
	}

	s.sessions.Clear()
	s.log(ctx).Info("admin password changed", "admin_id", id)
	return nil
}

// Check reports repository health for the readiness endpoint.
func (s *Service) Check(ctx context.Context) error {
	if c, ok := s.repo.(interface{ Check() error }); ok {
		if err := c.Check(); err != nil {
			return fmt.Errorf("admin repository: %w", err)
		}
	}
	return nil
}
