package employee

import (
	"errors"
	"strings"

	employeeDatamodel "github.com/frahmantamala/employee-onboarding/internal/core/datamodel/employee"
)

// ErrNotFound is returned by repositories for an unknown id or handle.
var ErrNotFound = errors.New("employee not found")

type Employee struct {
	ID             string
	FirstName      string
	LastName       string
	PersonalEmail  *string
	WorkEmail      *string
	Age            int
	Diploma        string
	Onboarded      bool
	Handle         *string
	Password       *string
	SecurePassword bool
}

func NewEmployee(id string, dto CreateEmployeeDTO) *Employee {
	return &Employee{
		ID:            id,
		FirstName:     strings.TrimSpace(dto.FirstName),
		LastName:      strings.TrimSpace(dto.LastName),
		PersonalEmail: normalizeOptional(dto.PersonalEmail),
		Age:           dto.Age,
		Diploma:       strings.TrimSpace(dto.Diploma),
	}
}

func (e *Employee) FullName() string {
	return e.FirstName + " " + e.LastName
}

// SameName reports whether e carries the given first and last name.
func (e *Employee) SameName(first, last string) bool {
	return e.FirstName == first && e.LastName == last
}

// Onboard assigns the login identity and a plaintext temporary password.
func (e *Employee) Onboard(handle, workEmail, password string) {
	e.Handle = &handle
	e.WorkEmail = &workEmail
	e.Password = &password
	e.Onboarded = true
	e.SecurePassword = false
}

// StoreDigest replaces the password with a digest.
func (e *Employee) StoreDigest(digest string) {
	e.Password = &digest
	e.SecurePassword = true
}

func (e *Employee) ApplyUpdate(dto UpdateEmployeeDTO) {
	e.FirstName = strings.TrimSpace(dto.FirstName)
	e.LastName = strings.TrimSpace(dto.LastName)
	e.PersonalEmail = normalizeOptional(dto.PersonalEmail)
	e.Age = dto.Age
	e.Diploma = strings.TrimSpace(dto.Diploma)
}

func (e *Employee) HandleValue() string {
	if e.Handle == nil {
		return ""
	}
	return *e.Handle
}

func normalizeOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func ToDataModel(e *Employee) *employeeDatamodel.Employee {
	return &employeeDatamodel.Employee{
		ID:             e.ID,
		FirstName:      e.FirstName,
		LastName:       e.LastName,
		PersonalEmail:  e.PersonalEmail,
		WorkEmail:      e.WorkEmail,
		Age:            e.Age,
		Diploma:        e.Diploma,
		Onboarded:      e.Onboarded,
		Handle:         e.Handle,
		Password:       e.Password,
		SecurePassword: e.SecurePassword,
	}
}

func FromDataModel(e *employeeDatamodel.Employee) *Employee {
	return &Employee{
		ID:             e.ID,
		FirstName:      e.FirstName,
		LastName:       e.LastName,
		PersonalEmail:  e.PersonalEmail,
		WorkEmail:      e.WorkEmail,
		Age:            e.Age,
		Diploma:        e.Diploma,
		Onboarded:      e.Onboarded,
		Handle:         e.Handle,
		Password:       e.Password,
		SecurePassword: e.SecurePassword,
	}
}
