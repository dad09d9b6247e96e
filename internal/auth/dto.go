package auth

import (
	"time"

	"github.com/frahmantamala/employee-onboarding/internal"
	"github.com/frahmantamala/employee-onboarding/internal/core/common/validation"
)

// LoginDTO is the transport shape used by the HTTP handler to accept login requests.
type LoginDTO struct {
	ID       string `json:"id"`
	Password string `json:"password"`
}

func (d LoginDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("id", d.ID).Required()
	v.Field("password", d.Password).Required()
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

type LoginResponse struct {
	Message   string    `json:"message"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
