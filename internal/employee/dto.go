package employee

import (
	"github.com/frahmantamala/employee-onboarding/internal"
	"github.com/frahmantamala/employee-onboarding/internal/core/common/validation"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	maxNameLength    = 100
	maxDiplomaLength = 200
	maxAge           = 150
)

// CreateEmployeeDTO is the body of POST /employees and the new-employee form.
type CreateEmployeeDTO struct {
	FirstName     string  `json:"first_name"`
	LastName      string  `json:"last_name"`
	PersonalEmail *string `json:"personal_email,omitempty"`
	Age           int     `json:"age"`
	Diploma       string  `json:"diploma"`
}

func (d CreateEmployeeDTO) Validate(minimumAge int) *internal.AppError {
	return validatePersonalData(d.FirstName, d.LastName, d.PersonalEmail, d.Age, d.Diploma, minimumAge)
}

// UpdateEmployeeDTO replaces the personal data of an existing employee.
type UpdateEmployeeDTO struct {
	FirstName     string  `json:"first_name"`
	LastName      string  `json:"last_name"`
	PersonalEmail *string `json:"personal_email,omitempty"`
	Age           int     `json:"age"`
	Diploma       string  `json:"diploma"`
}

func (d UpdateEmployeeDTO) Validate(minimumAge int) *internal.AppError {
	return validatePersonalData(d.FirstName, d.LastName, d.PersonalEmail, d.Age, d.Diploma, minimumAge)
}

func validatePersonalData(first, last string, personalEmail *string, age int, diploma string, minimumAge int) *internal.AppError {
	v := validation.NewValidator()
	v.Field("first_name", first).Required().MaxLength(maxNameLength)
	v.Field("last_name", last).Required().MaxLength(maxNameLength)
	v.Field("personal_email", personalEmail).Email()
	v.Field("age", age).MinInt(minimumAge, internal.ErrCodeInvalidAge).MaxInt(maxAge, internal.ErrCodeInvalidAge)
	v.Field("diploma", diploma).Required().MaxLength(maxDiplomaLength)
	return v.Validate()
}

type SetPasswordDTO struct {
	Password string `json:"password"`
}

func (d SetPasswordDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("password", d.Password).Required().MinLength(8).MaxLength(72)
	return v.Validate()
}

type VerifyCredentialsDTO struct {
	Handle   string `json:"handle"`
	Password string `json:"password"`
}

func (d VerifyCredentialsDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("handle", d.Handle).Required()
	v.Field("password", d.Password).Required()
	return v.Validate()
}

type ListQuery struct {
	Page  int
	Limit int
}

// Normalize fills defaults and caps the page size. A page or limit below
// one is rejected rather than silently corrected.
func (q ListQuery) Normalize() (ListQuery, *internal.AppError) {
	if q.Page == 0 {
		q.Page = DefaultPage
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	v := validation.NewValidator()
	v.Field("page", q.Page).MinInt(1, internal.ErrCodeInvalidInput)
	v.Field("limit", q.Limit).MinInt(1, internal.ErrCodeInvalidInput)
	if err := v.Validate(); err != nil {
		return q, err
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	return q, nil
}

func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

type Page struct {
	Employees []*Employee
	Total     int
	Page      int
	Limit     int
}

// EmployeeResponse is the public view of a record. The password is only
// shown while it is still the plaintext temporary password.
type EmployeeResponse struct {
	ID             string  `json:"id"`
	FirstName      string  `json:"first_name"`
	LastName       string  `json:"last_name"`
	PersonalEmail  *string `json:"personal_email"`
	WorkEmail      *string `json:"work_email"`
	Age            int     `json:"age"`
	Diploma        string  `json:"diploma"`
	Onboarded      bool    `json:"onboarded"`
	Handle         *string `json:"handle"`
	Password       *string `json:"password,omitempty"`
	SecurePassword bool    `json:"secure_password"`
}

func (e *Employee) ToResponse() EmployeeResponse {
	resp := EmployeeResponse{
		ID:             e.ID,
		FirstName:      e.FirstName,
		LastName:       e.LastName,
		PersonalEmail:  e.PersonalEmail,
		WorkEmail:      e.WorkEmail,
		Age:            e.Age,
		Diploma:        e.Diploma,
		Onboarded:      e.Onboarded,
		Handle:         e.Handle,
		SecurePassword: e.SecurePassword,
	}
	if !e.SecurePassword {
		resp.Password = e.Password
	}
	return resp
}

type ListResponse struct {
	Message   string             `json:"message"`
	Results   int                `json:"results"`
	Total     int                `json:"total"`
	Page      int                `json:"page"`
	Limit     int                `json:"limit"`
	Employees []EmployeeResponse `json:"employees"`
}

type SingleResponse struct {
	Message string           `json:"message"`
	Data    EmployeeResponse `json:"data"`
}

type VerifyResponse struct {
	Message string `json:"message"`
	Valid   bool   `json:"valid"`
	ID      string `json:"id"`
	Handle  string `json:"handle"`
}

func NewListResponse(p *Page) ListResponse {
	items := make([]EmployeeResponse, 0, len(p.Employees))
	for _, e := range p.Employees {
		items = append(items, e.ToResponse())
	}
	return ListResponse{
		Message:   "success",
		Results:   len(items),
		Total:     p.Total,
		Page:      p.Page,
		Limit:     p.Limit,
		Employees: items,
	}
}
