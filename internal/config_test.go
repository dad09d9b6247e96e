package internal_test

import (
	"time"

	"github.com/frahmantamala/employee-onboarding/internal"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	var cfg internal.Config

	BeforeEach(func() {
		cfg = internal.DefaultConfig()
	})

	It("should accept the defaults", func() {
		Expect(cfg.Validate()).To(Succeed())
		Expect(cfg.Security.SessionTTL).To(Equal(time.Hour))
		Expect(cfg.Storage.UpdateMode).To(Equal(internal.UpdateModeStrict))
		Expect(cfg.Onboarding.MinimumAge).To(Equal(18))
	})

	It("should reject an unknown storage driver", func() {
		cfg.Storage.Driver = "mongo"
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("unknown driver")))
	})

	It("should reject an unknown update mode", func() {
		cfg.Storage.UpdateMode = "merge"
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("update_mode")))
	})

	It("should require a DSN for SQL drivers", func() {
		cfg.Storage.Driver = internal.StorageDriverPostgres
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("source is required")))

		cfg.Database.Source = "postgres://localhost/onboarding"
		Expect(cfg.Validate()).To(Succeed())
	})

	It("should reject a non-positive session ttl", func() {
		cfg.Security.SessionTTL = 0
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("session_ttl")))
	})

	It("should collect multiple failures", func() {
		cfg.Server.Port = 0
		cfg.Onboarding.WorkEmailDomain = ""
		err := cfg.Validate()
		Expect(err).To(MatchError(ContainSubstring("server config")))
		Expect(err).To(MatchError(ContainSubstring("onboarding config")))
	})

	It("should build the listen address", func() {
		Expect(cfg.Server.Addr()).To(Equal("127.0.0.1:8080"))
	})

	Describe("LoadConfigFromEnv", func() {
		It("should read overrides from the environment", func() {
			GinkgoT().Setenv("HTTP_PORT", "9090")
			GinkgoT().Setenv("STORAGE_UPDATE_MODE", "upsert")
			GinkgoT().Setenv("SESSION_TTL", "30m")
			GinkgoT().Setenv("ONBOARDING_WORK_EMAIL_DOMAIN", "example.org")

			loaded := internal.LoadConfigFromEnv()
			Expect(loaded.Server.Port).To(Equal(9090))
			Expect(loaded.Server.Host).To(Equal("0.0.0.0"))
			Expect(loaded.Storage.UpdateMode).To(Equal(internal.UpdateModeUpsert))
			Expect(loaded.Security.SessionTTL).To(Equal(30 * time.Minute))
			Expect(loaded.Onboarding.WorkEmailDomain).To(Equal("example.org"))
			Expect(loaded.Validate()).To(Succeed())
		})

		It("should ignore unparsable numbers", func() {
			GinkgoT().Setenv("HTTP_PORT", "eighty")
			Expect(internal.LoadConfigFromEnv().Server.Port).To(Equal(8080))
		})
	})
})
