package employee_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"

	"github.com/frahmantamala/employee-onboarding/internal/credential"
	"github.com/frahmantamala/employee-onboarding/internal/employee"
	employeeJSON "github.com/frahmantamala/employee-onboarding/internal/employee/jsonfile"
	"github.com/frahmantamala/employee-onboarding/internal/storage"
	"github.com/frahmantamala/employee-onboarding/internal/transport"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

type errorBody struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

var _ = Describe("Employee Handler", func() {
	var router chi.Router

	do := func(method, path string, body interface{}) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	create := func(first, last string) employee.SingleResponse {
		rec := do(http.MethodPost, "/api/v1/employees", map[string]interface{}{
			"first_name":     first,
			"last_name":      last,
			"personal_email": "someone@example.com",
			"age":            29,
			"diploma":        "BA History",
		})
		Expect(rec.Code).To(Equal(http.StatusCreated))
		var resp employee.SingleResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		return resp
	}

	decodeError := func(rec *httptest.ResponseRecorder) errorBody {
		var body errorBody
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		return body
	}

	BeforeEach(func() {
		repo, err := employeeJSON.Open(filepath.Join(GinkgoT().TempDir(), "employees.json"), storage.UpdateStrict, testLogger())
		Expect(err).NotTo(HaveOccurred())

		service := employee.NewService(repo, credential.NewHasher(bcrypt.MinCost), nil,
			employee.Options{MinimumAge: 18, WorkEmailDomain: "avaya.com"}, testLogger())
		handler := employee.NewHandler(transport.NewBaseHandler(testLogger()), service)

		router = chi.NewRouter()
		router.Route("/api/v1/employees", handler.Routes)
	})

	It("should create an employee and expose it under the returned location", func() {
		rec := do(http.MethodPost, "/api/v1/employees", map[string]interface{}{
			"first_name": "John", "last_name": "Doe", "age": 30, "diploma": "BSc",
		})
		Expect(rec.Code).To(Equal(http.StatusCreated))
		location := rec.Header().Get("Location")
		Expect(location).To(HavePrefix("/api/v1/employees/"))

		rec = do(http.MethodGet, location, nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		var resp employee.SingleResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Data.FirstName).To(Equal("John"))
		Expect(resp.Data.PersonalEmail).To(BeNil())
		Expect(resp.Data.Onboarded).To(BeFalse())
	})

	It("should answer 409 for a duplicate name", func() {
		create("John", "Doe")
		rec := do(http.MethodPost, "/api/v1/employees", map[string]interface{}{
			"first_name": "John", "last_name": "Doe", "age": 30, "diploma": "BSc",
		})
		Expect(rec.Code).To(Equal(http.StatusConflict))
		Expect(decodeError(rec).Error.Code).To(Equal("EMPLOYEE_ALREADY_EXISTS"))
	})

	It("should answer 400 for malformed and unknown fields", func() {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/employees", bytes.NewBufferString("{not json"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))

		rec = do(http.MethodPost, "/api/v1/employees", map[string]interface{}{
			"first_name": "John", "last_name": "Doe", "age": 30, "diploma": "BSc", "salary": 1,
		})
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("should answer 400 for an underage employee", func() {
		rec := do(http.MethodPost, "/api/v1/employees", map[string]interface{}{
			"first_name": "Tim", "last_name": "Young", "age": 16, "diploma": "None",
		})
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(decodeError(rec).Error.Code).To(Equal("VALIDATION_FAILED"))
	})

	It("should page the listing", func() {
		create("Carl", "A")
		create("Bea", "B")
		create("Ann", "C")

		rec := do(http.MethodGet, "/api/v1/employees?page=1&limit=2", nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		var resp employee.ListResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Total).To(Equal(3))
		Expect(resp.Results).To(Equal(2))
		Expect(resp.Employees[0].FirstName).To(Equal("Ann"))
		Expect(resp.Employees[1].FirstName).To(Equal("Bea"))

		rec = do(http.MethodGet, "/api/v1/employees?page=0", nil)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		rec = do(http.MethodGet, "/api/v1/employees?limit=abc", nil)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("should answer 404 for unknown ids", func() {
		rec := do(http.MethodGet, "/api/v1/employees/nope", nil)
		Expect(rec.Code).To(Equal(http.StatusNotFound))
		Expect(decodeError(rec).Error.Code).To(Equal("EMPLOYEE_NOT_FOUND"))

		rec = do(http.MethodPatch, "/api/v1/employees/nope", nil)
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("should walk an employee through onboarding and password securing", func() {
		id := create("John", "Doe").Data.ID

		rec := do(http.MethodPatch, "/api/v1/employees/"+id, nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		var onboarded employee.SingleResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &onboarded)).To(Succeed())
		Expect(*onboarded.Data.Handle).To(Equal("jdoe"))
		Expect(*onboarded.Data.WorkEmail).To(Equal("jdoe@avaya.com"))
		Expect(onboarded.Data.Password).NotTo(BeNil())
		temporary := *onboarded.Data.Password
		Expect(temporary).To(HaveLen(credential.PasswordLength))

		rec = do(http.MethodPatch, "/api/v1/employees/"+id, nil)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(decodeError(rec).Error.Code).To(Equal("ALREADY_ONBOARDED"))

		rec = do(http.MethodGet, "/api/v1/employees/handle/jdoe", nil)
		Expect(rec.Code).To(Equal(http.StatusOK))

		rec = do(http.MethodPost, "/api/v1/employees/"+id+"/secure-password", nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		var secured employee.SingleResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &secured)).To(Succeed())
		Expect(secured.Data.SecurePassword).To(BeTrue())
		Expect(secured.Data.Password).To(BeNil())

		rec = do(http.MethodPost, "/api/v1/employees/verify", map[string]string{"handle": "jdoe", "password": temporary})
		Expect(rec.Code).To(Equal(http.StatusOK))
		var verified employee.VerifyResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &verified)).To(Succeed())
		Expect(verified.Valid).To(BeTrue())
		Expect(verified.ID).To(Equal(id))

		rec = do(http.MethodPost, "/api/v1/employees/verify", map[string]string{"handle": "jdoe", "password": "wrong"})
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("should replace personal data on PUT", func() {
		id := create("John", "Doe").Data.ID

		rec := do(http.MethodPut, "/api/v1/employees/"+id, map[string]interface{}{
			"first_name": "Johnny", "last_name": "Doe", "age": 31, "diploma": "MSc",
		})
		Expect(rec.Code).To(Equal(http.StatusOK))
		var resp employee.SingleResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Data.FirstName).To(Equal("Johnny"))
		Expect(resp.Data.Age).To(Equal(31))
	})

	It("should set a chosen password after onboarding", func() {
		id := create("John", "Doe").Data.ID

		rec := do(http.MethodPut, "/api/v1/employees/"+id+"/password", map[string]string{"password": "long enough"})
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(decodeError(rec).Error.Code).To(Equal("NOT_ONBOARDED"))

		Expect(do(http.MethodPatch, "/api/v1/employees/"+id, nil).Code).To(Equal(http.StatusOK))
		rec = do(http.MethodPut, "/api/v1/employees/"+id+"/password", map[string]string{"password": "long enough"})
		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	It("should delete idempotently", func() {
		id := create("John", "Doe").Data.ID

		Expect(do(http.MethodDelete, "/api/v1/employees/"+id, nil).Code).To(Equal(http.StatusNoContent))
		Expect(do(http.MethodDelete, "/api/v1/employees/"+id, nil).Code).To(Equal(http.StatusNoContent))
		Expect(do(http.MethodGet, "/api/v1/employees/"+id, nil).Code).To(Equal(http.StatusNotFound))
	})
})
