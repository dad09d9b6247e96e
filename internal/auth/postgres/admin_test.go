package postgres_test

import (
	"testing"

	"github.com/frahmantamala/employee-onboarding/internal/auth"
	adminPostgres "github.com/frahmantamala/employee-onboarding/internal/auth/postgres"
	adminDatamodel "github.com/frahmantamala/employee-onboarding/internal/core/datamodel/admin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestAdminPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Admin Postgres Suite")
}

var _ = Describe("Admin PostgreSQL Repository", func() {
	var repo *adminPostgres.AdminRepository

	BeforeEach(func() {
		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(&adminDatamodel.Admin{})).To(Succeed())

		repo = adminPostgres.NewAdminRepository(db)
	})

	It("should report a missing admin", func() {
		_, err := repo.GetByID(auth.AdminID)
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("should insert then replace the admin", func() {
		first, second := "$2a$04$first", "$2a$04$second"
		Expect(repo.Save(&adminDatamodel.Admin{ID: auth.AdminID, Password: &first})).To(Succeed())
		Expect(repo.Save(&adminDatamodel.Admin{ID: auth.AdminID, Password: &second})).To(Succeed())

		a, err := repo.GetByID(auth.AdminID)
		Expect(err).NotTo(HaveOccurred())
		Expect(*a.Password).To(Equal(second))
		Expect(repo.Check()).To(Succeed())
	})
})
