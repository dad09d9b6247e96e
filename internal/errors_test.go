package internal_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/frahmantamala/employee-onboarding/internal"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("AppError", func() {
	It("should not mutate sentinels when adding a cause", func() {
		cause := errors.New("disk full")
		err := internal.ErrStorageIO.WithCause(cause)

		Expect(internal.ErrStorageIO.Cause).To(BeNil())
		Expect(errors.Is(err, internal.ErrStorageIO)).To(BeTrue())
		Expect(errors.Is(err, cause)).To(BeTrue())
		Expect(errors.Is(err, internal.ErrStorageParse)).To(BeFalse())
	})

	It("should be found through wrapping", func() {
		wrapped := fmt.Errorf("saving: %w", internal.ErrEmployeeAlreadyExists)

		appErr, ok := internal.IsAppError(wrapped)
		Expect(ok).To(BeTrue())
		Expect(appErr.StatusCode).To(Equal(http.StatusConflict))
	})

	It("should join validation messages", func() {
		err := internal.NewValidationError("Validation failed", internal.ErrCodeValidationFailed).
			WithDetails(internal.ValidationErrors{Errors: []internal.ValidationError{
				{Field: "age", Message: "age must be at least 18"},
				{Field: "diploma", Message: "diploma is required"},
			}})

		Expect(err.Error()).To(Equal("age must be at least 18"))
		Expect(err.GetDetailedMessage()).To(Equal("age must be at least 18; diploma is required"))
	})

	It("should hide the cause from JSON", func() {
		status, body := internal.ErrTokenExpired.WithCause(errors.New("secret")).ToHTTPResponse()
		Expect(status).To(Equal(http.StatusUnauthorized))

		raw, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).To(MatchJSON(`{"error":{"type":"UNAUTHORIZED","code":"TOKEN_EXPIRED","message":"Token has expired"}}`))
	})
})
