package employee

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/frahmantamala/employee-onboarding/internal"
	employeeDatamodel "github.com/frahmantamala/employee-onboarding/internal/core/datamodel/employee"
	"github.com/frahmantamala/employee-onboarding/internal/core/events"
	"github.com/frahmantamala/employee-onboarding/internal/credential"
	"github.com/frahmantamala/employee-onboarding/internal/storage"
	"github.com/frahmantamala/employee-onboarding/pkg/logger"
	"github.com/google/uuid"
)

// RepositoryAPI is implemented by the JSON document store and the SQL backend.
type RepositoryAPI interface {
	List() ([]*employeeDatamodel.Employee, error)
	ExistsByName(firstName, lastName string) (bool, error)
	// Save inserts e unless an employee with the same name exists, in
	// which case it returns false and stores nothing.
	Save(e *employeeDatamodel.Employee) (bool, error)
	Update(e *employeeDatamodel.Employee) error
	// Modify loads the employee with id, lets fn change it and stores the
	// result as one atomic step. An error from fn aborts the change and is
	// returned unchanged.
	Modify(id string, fn func(e *employeeDatamodel.Employee, peers Peers) error) (*employeeDatamodel.Employee, error)
	Delete(id string) error
	GetByID(id string) (*employeeDatamodel.Employee, error)
	GetByHandle(handle string) (*employeeDatamodel.Employee, error)
}

// Peers answers uniqueness questions about the other stored employees from
// inside Modify, under the same lock or transaction.
type Peers interface {
	NameTaken(firstName, lastName, exceptID string) (bool, error)
	HandleTaken(handle, exceptID string) (bool, error)
}

type PasswordManager interface {
	HashPassword(plain string) (string, error)
	VerifyHashedPassword(plain, digest string) (bool, error)
}

type Options struct {
	MinimumAge      int
	WorkEmailDomain string
}

type Service struct {
	repo      RepositoryAPI
	passwords PasswordManager
	publisher events.Publisher
	opts      Options
	logger    *slog.Logger

	newID            func() string
	generatePassword func() (string, error)
}

type ServiceOption func(*Service)

// WithPasswordGenerator replaces the temporary password source.
func WithPasswordGenerator(fn func() (string, error)) ServiceOption {
	return func(s *Service) { s.generatePassword = fn }
}

func WithIDGenerator(fn func() string) ServiceOption {
	return func(s *Service) { s.newID = fn }
}

func NewService(repo RepositoryAPI, passwords PasswordManager, publisher events.Publisher, opts Options, logger *slog.Logger, options ...ServiceOption) *Service {
	s := &Service{
		repo:             repo,
		passwords:        passwords,
		publisher:        publisher,
		opts:             opts,
		logger:           logger,
		newID:            uuid.NewString,
		generatePassword: credential.GenerateRandomPassword,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// log prefers the request logger carried by ctx, which holds the trace and
// admin ids.
func (s *Service) log(ctx context.Context) *slog.Logger {
	if l, ok := logger.FromContext(ctx); ok {
		return l
	}
	if s.logger != nil {
		return s.logger
	}
	return logger.From(ctx)
}

// logFailure logs storage trouble at ERROR; domain refusals are the
// caller's business.
func (s *Service) logFailure(ctx context.Context, msg, id string, err error) {
	if _, ok := internal.IsAppError(err); ok || errors.Is(err, ErrNotFound) {
		return
	}
	s.log(ctx).Error(msg, "employee_id", id, "error", err)
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log(ctx).Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}

// translate maps repository failures onto API errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := internal.IsAppError(err); ok {
		return err
	}
	if errors.Is(err, ErrNotFound) {
		return internal.ErrEmployeeNotFound.WithCause(err)
	}
	if mapped := storage.ToAppError(err); mapped != err {
		return mapped
	}
	return internal.NewInternalError("employee storage failure", err)
}

func (s *Service) Create(ctx context.Context, dto CreateEmployeeDTO) (*Employee, error) {
	if err := dto.Validate(s.opts.MinimumAge); err != nil {
		s.log(ctx).Warn("employee validation failed", "error", err.GetDetailedMessage())
		return nil, err
	}

	e := NewEmployee(s.newID(), dto)
	saved, err := s.repo.Save(ToDataModel(e))
	if err != nil {
		s.log(ctx).Error("failed to save employee", "error", err)
		return nil, translate(err)
	}
	if !saved {
		s.log(ctx).Warn("employee already exists", "first_name", e.FirstName, "last_name", e.LastName)
		return nil, internal.ErrEmployeeAlreadyExists
	}

	s.log(ctx).Info("employee created", "employee_id", e.ID)
	s.publish(ctx, events.NewEmployeeCreatedEvent(e.ID, e.FirstName, e.LastName))
	return e, nil
}

// List returns one page of employees ordered by first name, last name, id.
func (s *Service) List(ctx context.Context, q ListQuery) (*Page, error) {
	q, verr := q.Normalize()
	if verr != nil {
		return nil, verr
	}

	records, err := s.repo.List()
	if err != nil {
		s.log(ctx).Error("failed to list employees", "error", err)
		return nil, translate(err)
	}

	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.FirstName != b.FirstName {
			return a.FirstName < b.FirstName
		}
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		return a.ID < b.ID
	})

	page := &Page{Total: len(records), Page: q.Page, Limit: q.Limit, Employees: []*Employee{}}
	start := q.Offset()
	if start >= len(records) {
		return page, nil
	}
	end := min(start+q.Limit, len(records))
	for _, rec := range records[start:end] {
		page.Employees = append(page.Employees, FromDataModel(rec))
	}
	return page, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*Employee, error) {
	rec, err := s.repo.GetByID(id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log(ctx).Error("failed to get employee", "employee_id", id, "error", err)
		}
		return nil, translate(err)
	}
	return FromDataModel(rec), nil
}

func (s *Service) GetByHandle(ctx context.Context, handle string) (*Employee, error) {
	rec, err := s.repo.GetByHandle(handle)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log(ctx).Error("failed to get employee by handle", "handle", handle, "error", err)
		}
		return nil, translate(err)
	}
	return FromDataModel(rec), nil
}

func (s *Service) Update(ctx context.Context, id string, dto UpdateEmployeeDTO) (*Employee, error) {
	if err := dto.Validate(s.opts.MinimumAge); err != nil {
		return nil, err
	}

	rec, err := s.repo.Modify(id, func(rec *employeeDatamodel.Employee, peers Peers) error {
		return edit(rec, func(e *Employee) error {
			e.ApplyUpdate(dto)
			taken, err := peers.NameTaken(e.FirstName, e.LastName, e.ID)
			if err != nil {
				return err
			}
			if taken {
				return internal.ErrEmployeeAlreadyExists
			}
			return nil
		})
	})
	if errors.Is(err, storage.ErrConflict) {
		// the unique name index caught a rename racing another write
		err = internal.ErrEmployeeAlreadyExists.WithCause(err)
	}
	if err != nil {
		s.logFailure(ctx, "failed to update employee", id, err)
		return nil, translate(err)
	}

	s.log(ctx).Info("employee updated", "employee_id", id)
	s.publish(ctx, events.NewEmployeeUpdatedEvent(id))
	return FromDataModel(rec), nil
}

// maxWriteAttempts bounds retries after a write lost a race: a handle
// taken by a concurrent onboarding, or a password changed while hashing.
const maxWriteAttempts = 3

// errStale marks a record that changed between read and write.
var errStale = errors.New("employee changed during update")

// Onboard assigns a unique handle, the matching work email and a fresh
// plaintext temporary password.
func (s *Service) Onboard(ctx context.Context, id string) (*Employee, error) {
	password, err := s.generatePassword()
	if err != nil {
		return nil, internal.NewInternalError("failed to generate password", err)
	}

	var rec *employeeDatamodel.Employee
	for attempt := 1; ; attempt++ {
		rec, err = s.repo.Modify(id, func(rec *employeeDatamodel.Employee, peers Peers) error {
			return edit(rec, func(e *Employee) error {
				if e.Onboarded {
					return internal.ErrAlreadyOnboarded
				}
				handle, err := uniqueHandle(e, peers)
				if err != nil {
					return err
				}
				e.Onboard(handle, handle+"@"+s.opts.WorkEmailDomain, password)
				return nil
			})
		})
		if errors.Is(err, storage.ErrConflict) && attempt < maxWriteAttempts {
			s.log(ctx).Warn("handle taken concurrently, retrying", "employee_id", id, "attempt", attempt)
			continue
		}
		break
	}
	if err != nil {
		s.logFailure(ctx, "failed to onboard employee", id, err)
		return nil, translate(err)
	}

	e := FromDataModel(rec)
	handle := e.HandleValue()
	s.log(ctx).Info("employee onboarded", "employee_id", id, "handle", handle)
	s.publish(ctx, events.NewEmployeeOnboardedEvent(id, handle, *e.WorkEmail, e.PersonalEmail))
	return e, nil
}

// uniqueHandle appends 2, 3, ... to the derived handle until no other
// employee holds it.
func uniqueHandle(e *Employee, peers Peers) (string, error) {
	base, err := credential.GenerateHandle(e.FirstName, e.LastName)
	if err != nil {
		return "", internal.ErrInvalidInput.WithCause(err)
	}

	candidate := base
	for n := 2; ; n++ {
		taken, err := peers.HandleTaken(candidate, e.ID)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + strconv.Itoa(n)
	}
}

// SecurePassword replaces the plaintext temporary password with its digest.
// Hashing happens outside the write; the write only lands if the plaintext
// it hashed is still the stored one.
func (s *Service) SecurePassword(ctx context.Context, id string) (*Employee, error) {
	var (
		rec *employeeDatamodel.Employee
		err error
	)
	for attempt := 1; ; attempt++ {
		rec, err = s.securePassword(ctx, id)
		if errors.Is(err, errStale) && attempt < maxWriteAttempts {
			continue
		}
		break
	}
	if errors.Is(err, errStale) {
		err = internal.ErrStorageConflict.WithCause(err)
	}
	if err != nil {
		s.logFailure(ctx, "failed to secure password", id, err)
		return nil, translate(err)
	}

	s.log(ctx).Info("employee password secured", "employee_id", id)
	s.publish(ctx, events.NewEmployeePasswordSecuredEvent(id))
	return FromDataModel(rec), nil
}

func (s *Service) securePassword(ctx context.Context, id string) (*employeeDatamodel.Employee, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkSecurable(current); err != nil {
		return nil, err
	}

	plain := *current.Password
	digest, err := s.passwords.HashPassword(plain)
	if err != nil {
		return nil, internal.NewInternalError("failed to hash password", err)
	}

	return s.repo.Modify(id, func(rec *employeeDatamodel.Employee, _ Peers) error {
		return edit(rec, func(e *Employee) error {
			if err := checkSecurable(e); err != nil {
				return err
			}
			if *e.Password != plain {
				return errStale
			}
			e.StoreDigest(digest)
			return nil
		})
	})
}

func checkSecurable(e *Employee) error {
	if !e.Onboarded || e.Password == nil {
		return internal.ErrNotOnboarded
	}
	if e.SecurePassword {
		return internal.ErrPasswordAlreadySecure
	}
	return nil
}

// SetPassword stores the digest of a caller-chosen password.
func (s *Service) SetPassword(ctx context.Context, id string, dto SetPasswordDTO) (*Employee, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	digest, err := s.passwords.HashPassword(dto.Password)
	if err != nil {
		if errors.Is(err, credential.ErrInvalidInput) {
			return nil, internal.NewValidationFieldError("password", "password is too long", internal.ErrCodeInvalidInput)
		}
		return nil, internal.NewInternalError("failed to hash password", err)
	}

	rec, err := s.repo.Modify(id, func(rec *employeeDatamodel.Employee, _ Peers) error {
		return edit(rec, func(e *Employee) error {
			if !e.Onboarded {
				return internal.ErrNotOnboarded
			}
			e.StoreDigest(digest)
			return nil
		})
	})
	if err != nil {
		s.logFailure(ctx, "failed to set password", id, err)
		return nil, translate(err)
	}

	s.log(ctx).Info("employee password set", "employee_id", id)
	s.publish(ctx, events.NewEmployeePasswordSecuredEvent(id))
	return FromDataModel(rec), nil
}

// edit runs fn on the domain view of rec and copies the result back,
// keeping the bookkeeping columns the domain type does not carry.
func edit(rec *employeeDatamodel.Employee, fn func(e *Employee) error) error {
	e := FromDataModel(rec)
	if err := fn(e); err != nil {
		return err
	}
	created, updated := rec.CreatedAt, rec.UpdatedAt
	*rec = *ToDataModel(e)
	rec.CreatedAt, rec.UpdatedAt = created, updated
	return nil
}

// Delete removes the employee. Deleting an unknown id is not an error.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(id); err != nil {
		s.log(ctx).Error("failed to delete employee", "employee_id", id, "error", err)
		return translate(err)
	}
	s.log(ctx).Info("employee deleted", "employee_id", id)
	s.publish(ctx, events.NewEmployeeDeletedEvent(id))
	return nil
}

// VerifyCredentials checks an onboarded employee's handle and password.
func (s *Service) VerifyCredentials(ctx context.Context, dto VerifyCredentialsDTO) (*Employee, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	e, err := s.GetByHandle(ctx, strings.TrimSpace(dto.Handle))
	if err != nil {
		if errors.Is(err, internal.ErrEmployeeNotFound) {
			return nil, internal.ErrInvalidCredentials
		}
		return nil, err
	}
	if e.Password == nil {
		return nil, internal.ErrInvalidCredentials
	}

	var ok bool
	if e.SecurePassword {
		ok, err = s.passwords.VerifyHashedPassword(dto.Password, *e.Password)
		if err != nil {
			s.log(ctx).Warn("stored password digest is unusable", "employee_id", e.ID, "error", err)
			return nil, internal.ErrInvalidCredentials
		}
	} else {
		ok = subtle.ConstantTimeCompare([]byte(dto.Password), []byte(*e.Password)) == 1
	}
	if !ok {
		return nil, internal.ErrInvalidCredentials
	}
	return e, nil
}

// Check reports repository health for the readiness endpoint.
func (s *Service) Check(ctx context.Context) error {
	if c, ok := s.repo.(interface{ Check() error }); ok {
		if err := c.Check(); err != nil {
			return fmt.Errorf("employee repository: %w", err)
		}
	}
	return nil
}
