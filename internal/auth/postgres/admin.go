package postgres

import (
	"errors"
	"fmt"

	"github.com/frahmantamala/employee-onboarding/internal/auth"
	adminDatamodel "github.com/frahmantamala/employee-onboarding/internal/core/datamodel/admin"
	"github.com/frahmantamala/employee-onboarding/internal/storage"
	"gorm.io/gorm"
)

type AdminRepository struct {
	db *gorm.DB
}

func NewAdminRepository(db *gorm.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

var _ auth.RepositoryAPI = (*AdminRepository)(nil)

func (r *AdminRepository) GetByID(id string) (*adminDatamodel.Admin, error) {
	var a adminDatamodel.Admin
	if err := r.db.Where("id = ?", id).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", storage.ErrIO, err)
	}
	return &a, nil
}

func (r *AdminRepository) Save(a *adminDatamodel.Admin) error {
	if err := r.db.Save(a).Error; err != nil {
		return fmt.Errorf("%w: %w", storage.ErrIO, err)
	}
	return nil
}

func (r *AdminRepository) Check() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrIO, err)
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrIO, err)
	}
	return nil
}
