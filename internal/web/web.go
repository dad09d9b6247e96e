// Package web serves the server-rendered admin pages.
package web

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/frahmantamala/employee-onboarding/internal"
	"github.com/frahmantamala/employee-onboarding/internal/auth"
	"github.com/frahmantamala/employee-onboarding/internal/employee"
	"github.com/frahmantamala/employee-onboarding/internal/transport"
	"github.com/go-chi/chi"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/styles.css
var staticFS embed.FS

const (
	siteTitle = "Avaya Red Carpet"
	loginPath = "/login"
	// listLimit is the page size of the employee table.
	listLimit = employee.MaxLimit
)

var pages = []string{
	"index.html",
	"login.html",
	"employees.html",
	"new_employee.html",
	"save_result.html",
	"employee.html",
	"edit_form.html",
	"delete_confirm.html",
	"errors.html",
}

var funcs = template.FuncMap{
	"deref": deref,
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type Handler struct {
	*transport.BaseHandler
	Employees     employee.ServiceAPI
	Auth          auth.ServiceAPI
	SecureCookies bool

	templates map[string]*template.Template
}

func NewHandler(baseHandler *transport.BaseHandler, employees employee.ServiceAPI, authService auth.ServiceAPI, secureCookies bool) (*Handler, error) {
	templates := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		t, err := template.New(page).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/fields.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", page, err)
		}
		templates[page] = t
	}

	return &Handler{
		BaseHandler:   baseHandler,
		Employees:     employees,
		Auth:          authService,
		SecureCookies: secureCookies,
		templates:     templates,
	}, nil
}

// Routes mounts the pages on r. requireSession guards everything except
// the landing page, the login form and the stylesheet.
func (h *Handler) Routes(r chi.Router, requireSession func(http.Handler) http.Handler) {
	r.Get("/", h.Index)
	r.Get("/styles.css", h.Styles)
	r.Get(loginPath, h.LoginPage)
	r.Post(loginPath, h.Login)

	r.Group(func(pr chi.Router) {
		pr.Use(requireSession)

		pr.Get("/logout", h.Logout)
		pr.Post("/logout", h.Logout)
		pr.Get("/list/employees", h.ListEmployees)
		pr.Get("/new/employee", h.NewEmployee)
		pr.Post("/save/employee", h.SaveEmployee)
		pr.Get("/select/employee/{id}", h.SelectEmployee)
		pr.Get("/edit/employee/{id}", h.EditEmployee)
		pr.Post("/update/employee", h.UpdateEmployee)
		pr.Post("/onboard/employee", h.OnboardEmployee)
		pr.Post("/securepassword/employee", h.SecurePassword)
		pr.Get("/delete/employee/{id}", h.ConfirmDelete)
		pr.Post("/delete/employee/{id}", h.DeleteEmployee)
	})
}

type pageData struct {
	Title     string
	SiteTitle string
	LoggedIn  bool
	Flash     string
	Error     string
	Errors    map[string]string
	Form      formValues
	Next      string
	Employee  *employee.EmployeeResponse
	Employees []employee.EmployeeResponse
	Total     int
	PrevPage  int
	NextPage  int
}

type formValues struct {
	ID            string
	FirstName     string
	LastName      string
	PersonalEmail string
	Age           string
	Diploma       string
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page string, data pageData) {
	t, ok := h.templates[page]
	if !ok {
		h.Logger.Error("unknown page", "page", page)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	data.SiteTitle = siteTitle
	data.LoggedIn = internal.AdminIDFromContext(r.Context()) != ""

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		h.Logger.Error("failed to render page", "page", page, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderError shows the error page with the status of err.
func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "Something went wrong. Please try again."
	if appErr, ok := internal.IsAppError(err); ok {
		if appErr.StatusCode != 0 {
			status = appErr.StatusCode
		}
		if status < http.StatusInternalServerError {
			message = appErr.GetDetailedMessage()
		}
	}
	if status >= http.StatusInternalServerError {
		h.Logger.Error("page request failed", "path", r.URL.Path, "error", err)
	} else {
		h.Logger.Warn("page request rejected", "path", r.URL.Path, "error", err)
	}
	h.render(w, r, status, "errors.html", pageData{Title: "Error", Error: message})
}

func (h *Handler) Styles(w http.ResponseWriter, r *http.Request) {
	css, err := fs.ReadFile(staticFS, "static/styles.css")
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(css)
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "index.html", pageData{Title: "Welcome to " + siteTitle})
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/list/employees"
	}
	return next
}

func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "login.html", pageData{Title: "Sign in", Next: r.URL.Query().Get("next")})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderError(w, r, internal.ErrInvalidInput.WithCause(err))
		return
	}
	next := r.PostForm.Get("next")

	session, err := h.Auth.Login(r.Context(), auth.LoginDTO{
		ID:       strings.TrimSpace(r.PostForm.Get("id")),
		Password: r.PostForm.Get("password"),
	})
	if err != nil {
		appErr, ok := internal.IsAppError(err)
		if !ok || appErr.StatusCode >= http.StatusInternalServerError {
			h.renderError(w, r, err)
			return
		}
		h.render(w, r, appErr.StatusCode, "login.html", pageData{
			Title: "Sign in",
			Error: "Invalid id or password.",
			Next:  next,
			Form:  formValues{ID: r.PostForm.Get("id")},
		})
		return
	}

	auth.SetSessionCookie(w, session, h.SecureCookies)
	http.Redirect(w, r, safeNext(next), http.StatusSeeOther)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Auth.Logout(r.Context(), auth.TokenFromRequest(r)); err != nil {
		h.Logger.Warn("logout without an active session", "error", err)
	}
	auth.ClearSessionCookie(w, h.SecureCookies)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.renderError(w, r, internal.NewValidationFieldError("page", "page must be a positive integer", internal.ErrCodeInvalidInput))
			return
		}
		page = n
	}

	result, err := h.Employees.List(r.Context(), employee.ListQuery{Page: page, Limit: listLimit})
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	data := pageData{
		Title:     "Employees",
		Flash:     r.URL.Query().Get("flash"),
		Employees: employee.NewListResponse(result).Employees,
		Total:     result.Total,
	}
	if result.Page > 1 {
		data.PrevPage = result.Page - 1
	}
	if result.Page*result.Limit < result.Total {
		data.NextPage = result.Page + 1
	}
	h.render(w, r, http.StatusOK, "employees.html", data)
}

func (h *Handler) NewEmployee(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "new_employee.html", pageData{Title: "Personal Details"})
}

// readForm parses the personal data fields. A non-numeric age is reported
// in errs rather than as a failure.
func readForm(r *http.Request) (formValues, int, map[string]string, error) {
	if err := r.ParseForm(); err != nil {
		return formValues{}, 0, nil, internal.ErrInvalidInput.WithCause(err)
	}
	f := formValues{
		ID:            strings.TrimSpace(r.PostForm.Get("id")),
		FirstName:     r.PostForm.Get("first_name"),
		LastName:      r.PostForm.Get("last_name"),
		PersonalEmail: strings.TrimSpace(r.PostForm.Get("personal_email")),
		Age:           strings.TrimSpace(r.PostForm.Get("age")),
		Diploma:       r.PostForm.Get("diploma"),
	}

	errs := map[string]string{}
	age, err := strconv.Atoi(f.Age)
	if err != nil {
		errs["age"] = "age must be a whole number"
	}
	return f, age, errs, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// fieldErrors flattens validation details for the form templates.
func fieldErrors(err error, into map[string]string) bool {
	appErr, ok := internal.IsAppError(err)
	if !ok || appErr.Type != internal.ErrorTypeValidation {
		return false
	}
	details, ok := appErr.Details.(internal.ValidationErrors)
	if !ok {
		into[""] = appErr.Message
		return true
	}
	for _, d := range details.Errors {
		if _, seen := into[d.Field]; !seen {
			into[d.Field] = d.Message
		}
	}
	return true
}

func (h *Handler) SaveEmployee(w http.ResponseWriter, r *http.Request) {
	f, age, errs, err := readForm(r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	data := pageData{Title: "Personal Details", Form: f, Errors: errs}
	if len(errs) > 0 {
		h.render(w, r, http.StatusBadRequest, "new_employee.html", data)
		return
	}

	created, err := h.Employees.Create(r.Context(), employee.CreateEmployeeDTO{
		FirstName:     f.FirstName,
		LastName:      f.LastName,
		PersonalEmail: optional(f.PersonalEmail),
		Age:           age,
		Diploma:       f.Diploma,
	})
	switch {
	case err == nil:
		resp := created.ToResponse()
		h.render(w, r, http.StatusCreated, "save_result.html", pageData{Title: "Personal Details", Employee: &resp})
	case fieldErrors(err, data.Errors):
		h.render(w, r, http.StatusBadRequest, "new_employee.html", data)
	case errors.Is(err, internal.ErrEmployeeAlreadyExists):
		data.Error = "Personal data already exists!"
		h.render(w, r, http.StatusConflict, "new_employee.html", data)
	default:
		h.renderError(w, r, err)
	}
}

func (h *Handler) SelectEmployee(w http.ResponseWriter, r *http.Request) {
	e, err := h.Employees.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	resp := e.ToResponse()
	h.render(w, r, http.StatusOK, "employee.html", pageData{Title: "Employee", Employee: &resp, Flash: r.URL.Query().Get("flash")})
}

func (h *Handler) EditEmployee(w http.ResponseWriter, r *http.Request) {
	e, err := h.Employees.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	resp := e.ToResponse()
	h.render(w, r, http.StatusOK, "edit_form.html", pageData{
		Title:    "Edit Employee",
		Employee: &resp,
		Form: formValues{
			ID:            e.ID,
			FirstName:     e.FirstName,
			LastName:      e.LastName,
			PersonalEmail: deref(e.PersonalEmail),
			Age:           strconv.Itoa(e.Age),
			Diploma:       e.Diploma,
		},
	})
}

func (h *Handler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	f, age, errs, err := readForm(r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	data := pageData{Title: "Edit Employee", Form: f, Errors: errs}
	if len(errs) > 0 {
		h.render(w, r, http.StatusBadRequest, "edit_form.html", data)
		return
	}

	_, err = h.Employees.Update(r.Context(), f.ID, employee.UpdateEmployeeDTO{
		FirstName:     f.FirstName,
		LastName:      f.LastName,
		PersonalEmail: optional(f.PersonalEmail),
		Age:           age,
		Diploma:       f.Diploma,
	})
	switch {
	case err == nil:
		h.redirectToEmployee(w, r, f.ID, "Employee updated.")
	case fieldErrors(err, data.Errors):
		h.render(w, r, http.StatusBadRequest, "edit_form.html", data)
	case errors.Is(err, internal.ErrEmployeeAlreadyExists):
		data.Error = "Another employee already has this name."
		h.render(w, r, http.StatusConflict, "edit_form.html", data)
	default:
		h.renderError(w, r, err)
	}
}

func (h *Handler) redirectToEmployee(w http.ResponseWriter, r *http.Request, id, flash string) {
	target := "/select/employee/" + url.PathEscape(id) + "?flash=" + url.QueryEscape(flash)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) formID(w http.ResponseWriter, r *http.Request) (string, bool) {
	if err := r.ParseForm(); err != nil {
		h.renderError(w, r, internal.ErrInvalidInput.WithCause(err))
		return "", false
	}
	id := strings.TrimSpace(r.PostForm.Get("id"))
	if id == "" {
		h.renderError(w, r, internal.NewValidationFieldError("id", "id is required", internal.ErrCodeInvalidInput))
		return "", false
	}
	return id, true
}

func (h *Handler) OnboardEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := h.formID(w, r)
	if !ok {
		return
	}
	if _, err := h.Employees.Onboard(r.Context(), id); err != nil {
		h.renderError(w, r, err)
		return
	}
	h.redirectToEmployee(w, r, id, "Employee onboarded.")
}

func (h *Handler) SecurePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := h.formID(w, r)
	if !ok {
		return
	}
	if _, err := h.Employees.SecurePassword(r.Context(), id); err != nil {
		h.renderError(w, r, err)
		return
	}
	h.redirectToEmployee(w, r, id, "Password secured.")
}

func (h *Handler) ConfirmDelete(w http.ResponseWriter, r *http.Request) {
	e, err := h.Employees.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	resp := e.ToResponse()
	h.render(w, r, http.StatusOK, "delete_confirm.html", pageData{Title: "Delete Employee", Employee: &resp})
}

func (h *Handler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	if err := h.Employees.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.renderError(w, r, err)
		return
	}
	http.Redirect(w, r, "/list/employees?flash="+url.QueryEscape("Employee deleted."), http.StatusSeeOther)
}
