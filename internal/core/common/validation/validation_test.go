package validation_test

import (
	"testing"

	"github.com/frahmantamala/employee-onboarding/internal"
	"github.com/frahmantamala/employee-onboarding/internal/core/common/validation"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestValidation(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Validation Suite")
}

func strPtr(s string) *string { return &s }

var _ = Describe("ValidationBuilder", func() {
	It("should pass valid input", func() {
		v := validation.NewValidator()
		v.Field("first_name", "John").Required().MaxLength(100)
		v.Field("age", 30).MinInt(18, internal.ErrCodeInvalidAge)
		v.Field("personal_email", strPtr("john@example.com")).Email()
		v.Field("work_email", (*string)(nil)).Email()

		Expect(v.Validate()).To(BeNil())
	})

	It("should collect every failing field", func() {
		v := validation.NewValidator()
		v.Field("first_name", "  ").Required()
		v.Field("age", 17).MinInt(18, internal.ErrCodeInvalidAge)
		v.Field("personal_email", strPtr("not-an-email")).Email()

		err := v.Validate()
		Expect(err).NotTo(BeNil())
		Expect(err.Code).To(Equal(internal.ErrCodeValidationFailed))

		details, ok := err.Details.(internal.ValidationErrors)
		Expect(ok).To(BeTrue())
		Expect(details.Errors).To(HaveLen(3))
		Expect(details.Errors[0].Field).To(Equal("first_name"))
		Expect(details.Errors[1].Message).To(Equal("age must be at least 18"))
		Expect(details.Errors[1].Code).To(Equal(string(internal.ErrCodeInvalidAge)))
		Expect(details.Errors[2].Code).To(Equal(string(internal.ErrCodeInvalidEmail)))
	})

	It("should reject display-name addresses", func() {
		v := validation.NewValidator()
		v.Field("personal_email", "John <john@example.com>").Email()
		Expect(v.Validate()).NotTo(BeNil())
	})

	It("should reject a separator", func() {
		v := validation.NewValidator()
		v.Field("id", "ad:min").NoSeparator(":")
		Expect(v.Validate().GetDetailedMessage()).To(ContainSubstring("must not contain"))
	})

	It("should count characters rather than bytes", func() {
		v := validation.NewValidator()
		v.Field("last_name", "Müller").MaxLength(6)
		Expect(v.Validate()).To(BeNil())
	})
})
