package employee

import (
	"context"
	"net/http"
	"strconv"

	"github.com/frahmantamala/employee-onboarding/internal"
	"github.com/frahmantamala/employee-onboarding/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	Create(ctx context.Context, dto CreateEmployeeDTO) (*Employee, error)
	List(ctx context.Context, q ListQuery) (*Page, error)
	GetByID(ctx context.Context, id string) (*Employee, error)
	GetByHandle(ctx context.Context, handle string) (*Employee, error)
	Update(ctx context.Context, id string, dto UpdateEmployeeDTO) (*Employee, error)
	Onboard(ctx context.Context, id string) (*Employee, error)
	SecurePassword(ctx context.Context, id string) (*Employee, error)
	SetPassword(ctx context.Context, id string, dto SetPasswordDTO) (*Employee, error)
	Delete(ctx context.Context, id string) error
	VerifyCredentials(ctx context.Context, dto VerifyCredentialsDTO) (*Employee, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

// Routes mounts the employee API on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.CreateEmployee)
	r.Get("/", h.ListEmployees)
	r.Post("/verify", h.VerifyCredentials)
	r.Get("/handle/{handle}", h.GetEmployeeByHandle)
	r.Get("/{id}", h.GetEmployee)
	r.Put("/{id}", h.UpdateEmployee)
	r.Patch("/{id}", h.OnboardEmployee)
	r.Delete("/{id}", h.DeleteEmployee)
	r.Post("/{id}/secure-password", h.SecurePassword)
	r.Put("/{id}/password", h.SetPassword)
}

func (h *Handler) single(w http.ResponseWriter, status int, message string, e *Employee) {
	h.WriteJSON(w, status, SingleResponse{Message: message, Data: e.ToResponse()})
}

func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var dto CreateEmployeeDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	e, err := h.Service.Create(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/employees/"+e.ID)
	h.single(w, http.StatusCreated, "employee created", e)
}

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	page, err := h.Service.List(r.Context(), q)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, NewListResponse(page))
}

func parseListQuery(r *http.Request) (ListQuery, error) {
	var q ListQuery
	for name, dst := range map[string]*int{"page": &q.Page, "limit": &q.Limit} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, internal.NewValidationFieldError(name, name+" must be an integer", internal.ErrCodeInvalidInput)
		}
		if n < 1 {
			return q, internal.NewValidationFieldError(name, name+" must be at least 1", internal.ErrCodeInvalidInput)
		}
		*dst = n
	}
	return q, nil
}

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	e, err := h.Service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.single(w, http.StatusOK, "success", e)
}

func (h *Handler) GetEmployeeByHandle(w http.ResponseWriter, r *http.Request) {
	e, err := h.Service.GetByHandle(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.single(w, http.StatusOK, "success", e)
}

func (h *Handler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	var dto UpdateEmployeeDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	e, err := h.Service.Update(r.Context(), chi.URLParam(r, "id"), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.single(w, http.StatusOK, "employee updated", e)
}

func (h *Handler) OnboardEmployee(w http.ResponseWriter, r *http.Request) {
	e, err := h.Service.Onboard(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.single(w, http.StatusOK, "employee onboarded", e)
}

func (h *Handler) SecurePassword(w http.ResponseWriter, r *http.Request) {
	e, err := h.Service.SecurePassword(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.single(w, http.StatusOK, "password secured", e)
}

func (h *Handler) SetPassword(w http.ResponseWriter, r *http.Request) {
	var dto SetPasswordDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	e, err := h.Service.SetPassword(r.Context(), chi.URLParam(r, "id"), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.single(w, http.StatusOK, "password updated", e)
}

func (h *Handler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) VerifyCredentials(w http.ResponseWriter, r *http.Request) {
	var dto VerifyCredentialsDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	e, err := h.Service.VerifyCredentials(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, VerifyResponse{
		Message: "credentials valid",
		Valid:   true,
		ID:      e.ID,
		Handle:  e.HandleValue(),
	})
}
