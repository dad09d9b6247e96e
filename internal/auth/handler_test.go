package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/frahmantamala/employee-onboarding/internal"
	"github.com/frahmantamala/employee-onboarding/internal/credential"
	"github.com/frahmantamala/employee-onboarding/internal/transport"
	"github.com/go-chi/chi"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

var _ = ginkgo.Describe("Auth Handler", func() {
	var (
		router  chi.Router
		service *Service
	)

	login := func(password string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(LoginDTO{ID: AdminID, Password: password})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	ginkgo.BeforeEach(func() {
		lg := slog.New(slog.NewTextHandler(io.Discard, nil))
		service = NewService(newMockAdminRepository(), credential.NewHasher(bcrypt.MinCost),
			NewSessionManager(credential.NewTokenizer(time.Hour)), nil, lg)
		_, err := service.EnsureAdmin(context.Background(), "correct_password")
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		handler := NewHandler(transport.NewBaseHandler(lg), service, false)
		router = chi.NewRouter()
		router.Route("/api/v1/auth", handler.Routes)
		router.With(handler.RequireSession).Get("/api/v1/whoami", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(internal.AdminIDFromContext(r.Context())))
		})
		router.With(handler.RequireSessionRedirect("/login")).Get("/list/employees", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	ginkgo.It("should return a token and set the session cookie on login", func() {
		rec := login("correct_password")

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		var resp LoginResponse
		gomega.Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(gomega.Succeed())
		gomega.Expect(resp.Token).To(gomega.HavePrefix("admin:"))
		gomega.Expect(resp.ExpiresAt).To(gomega.BeTemporally(">", time.Now()))

		cookies := rec.Result().Cookies()
		gomega.Expect(cookies).To(gomega.HaveLen(1))
		gomega.Expect(cookies[0].Name).To(gomega.Equal(SessionCookie))
		gomega.Expect(cookies[0].Value).To(gomega.Equal(resp.Token))
		gomega.Expect(cookies[0].HttpOnly).To(gomega.BeTrue())
	})

	ginkgo.It("should answer 401 for bad credentials", func() {
		rec := login("wrong_password")
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
	})

	ginkgo.Describe("RequireSession", func() {
		ginkgo.It("should answer 401 without a token", func() {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil))
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		})

		ginkgo.It("should accept a bearer token and put the admin id in context", func() {
			var resp LoginResponse
			gomega.Expect(json.Unmarshal(login("correct_password").Body.Bytes(), &resp)).To(gomega.Succeed())

			req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
			req.Header.Set("Authorization", "Bearer "+resp.Token)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(rec.Body.String()).To(gomega.Equal(AdminID))
		})

		ginkgo.It("should accept the session cookie", func() {
			cookie := login("correct_password").Result().Cookies()[0]

			req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
			req.AddCookie(cookie)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		})
	})

	ginkgo.Describe("RequireSessionRedirect", func() {
		ginkgo.It("should send browsers to the login page", func() {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/list/employees", nil))

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusSeeOther))
			gomega.Expect(rec.Header().Get("Location")).To(gomega.Equal("/login?next=%2Flist%2Femployees"))
		})

		ginkgo.It("should let a logged in browser through", func() {
			cookie := login("correct_password").Result().Cookies()[0]

			req := httptest.NewRequest(http.MethodGet, "/list/employees", nil)
			req.AddCookie(cookie)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		})
	})

	ginkgo.It("should end the session on logout", func() {
		var resp LoginResponse
		gomega.Expect(json.Unmarshal(login("correct_password").Body.Bytes(), &resp)).To(gomega.Succeed())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
		req.Header.Set("Authorization", "Bearer "+resp.Token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))

		req = httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+resp.Token)
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
	})
})
