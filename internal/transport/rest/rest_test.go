package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/frahmantamala/employee-onboarding/internal/auth"
	adminJSON "github.com/frahmantamala/employee-onboarding/internal/auth/jsonfile"
	"github.com/frahmantamala/employee-onboarding/internal/credential"
	"github.com/frahmantamala/employee-onboarding/internal/employee"
	employeeJSON "github.com/frahmantamala/employee-onboarding/internal/employee/jsonfile"
	"github.com/frahmantamala/employee-onboarding/internal/storage"
	"github.com/frahmantamala/employee-onboarding/internal/transport"
	"github.com/frahmantamala/employee-onboarding/internal/transport/middleware"
	"github.com/frahmantamala/employee-onboarding/internal/transport/rest"
	"github.com/frahmantamala/employee-onboarding/internal/web"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

func TestRest(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "REST Suite")
}

type checkerFunc func(ctx context.Context) error

func (f checkerFunc) Check(ctx context.Context) error { return f(ctx) }

var _ = Describe("Health handler", func() {
	serve := func(checks map[string]rest.Checker) (*httptest.ResponseRecorder, rest.HealthResponse) {
		router := chi.NewMux()
		lg := slog.New(slog.NewTextHandler(GinkgoWriter, nil))
		base := transport.NewBaseHandler(lg)
		rest.RegisterAllRoutes(router, rest.Handlers{
			Auth:     auth.NewHandler(base, nil, false),
			Employee: employee.NewHandler(base, nil),
			Health:   rest.NewHealthHandler(checks),
		}, lg)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/healthchecker", nil))
		var resp rest.HealthResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		return rec, resp
	}

	It("should report healthy when every component passes", func() {
		ok := checkerFunc(func(context.Context) error { return nil })
		rec, resp := serve(map[string]rest.Checker{"employees": ok, "admins": ok})

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(resp.Status).To(Equal(rest.HealthHealthy))
		Expect(resp.Components).To(HaveLen(2))
	})

	It("should answer 503 when a component fails", func() {
		rec, resp := serve(map[string]rest.Checker{
			"employees": checkerFunc(func(context.Context) error { return nil }),
			"admins":    checkerFunc(func(context.Context) error { return errors.New("admins.json: permission denied") }),
		})

		Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
		Expect(resp.Status).To(Equal(rest.HealthUnhealthy))
		Expect(resp.Components["employees"].Status).To(Equal(rest.HealthHealthy))
		Expect(resp.Components["admins"].Message).To(ContainSubstring("permission denied"))
	})
})

var _ = Describe("RegisterAllRoutes", func() {
	var router *chi.Mux

	do := func(req *http.Request) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	login := func() string {
		body, _ := json.Marshal(auth.LoginDTO{ID: auth.AdminID, Password: "correct_password"})
		rec := do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body)))
		Expect(rec.Code).To(Equal(http.StatusOK))
		var resp auth.LoginResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		return resp.Token
	}

	BeforeEach(func() {
		dir := GinkgoT().TempDir()
		lg := slog.New(slog.NewTextHandler(GinkgoWriter, &slog.HandlerOptions{Level: slog.LevelError}))
		hasher := credential.NewHasher(bcrypt.MinCost)

		empRepo, err := employeeJSON.Open(filepath.Join(dir, "employees.json"), storage.UpdateStrict, lg)
		Expect(err).NotTo(HaveOccurred())
		employees := employee.NewService(empRepo, hasher, nil, employee.Options{MinimumAge: 18, WorkEmailDomain: "avaya.com"}, lg)

		adminRepo, err := adminJSON.Open(filepath.Join(dir, "admins.json"), lg)
		Expect(err).NotTo(HaveOccurred())
		authService := auth.NewService(adminRepo, hasher, auth.NewSessionManager(credential.NewTokenizer(time.Hour)), nil, lg)
		_, err = authService.EnsureAdmin(context.Background(), "correct_password")
		Expect(err).NotTo(HaveOccurred())

		base := transport.NewBaseHandler(lg)
		pages, err := web.NewHandler(base, employees, authService, false)
		Expect(err).NotTo(HaveOccurred())

		router = chi.NewMux()
		rest.RegisterAllRoutes(router, rest.Handlers{
			Auth:     auth.NewHandler(base, authService, false),
			Employee: employee.NewHandler(base, employees),
			Web:      pages,
			Health:   rest.NewHealthHandler(map[string]rest.Checker{"employees": employees, "admins": authService}),
		}, lg)
	})

	It("should serve the OpenAPI document and swagger UI", func() {
		rec := do(httptest.NewRequest(http.MethodGet, "/openapi.yml", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("openapi: 3.0.3"))

		rec = do(httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	It("should report both storage components", func() {
		rec := do(httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"employees"`))
		Expect(rec.Body.String()).To(ContainSubstring(`"admins"`))
	})

	It("should require a session for the employee API", func() {
		rec := do(httptest.NewRequest(http.MethodGet, "/api/v1/employees", nil))
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/employees", nil)
		req.Header.Set("Authorization", "Bearer "+login())
		rec = do(req)
		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	It("should redirect pages to the login form", func() {
		rec := do(httptest.NewRequest(http.MethodGet, "/list/employees", nil))
		Expect(rec.Code).To(Equal(http.StatusSeeOther))
		Expect(rec.Header().Get("Location")).To(HavePrefix("/login"))

		rec = do(httptest.NewRequest(http.MethodGet, "/", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	It("should echo the trace id", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
		req.Header.Set(middleware.TraceHeader, "trace-123")
		rec := do(req)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get(middleware.TraceHeader)).To(Equal("trace-123"))
	})
})
