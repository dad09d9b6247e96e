package jsonfile

import (
	"log/slog"

	"github.com/frahmantamala/employee-onboarding/internal/auth"
	adminDatamodel "github.com/frahmantamala/employee-onboarding/internal/core/datamodel/admin"
	"github.com/frahmantamala/employee-onboarding/internal/store/jsonfile"
)

type AdminRepository struct {
	coll *jsonfile.Collection[adminDatamodel.Admin]
}

// Open loads the admin document at path.
func Open(path string, logger *slog.Logger) (*AdminRepository, error) {
	coll, err := jsonfile.Open[adminDatamodel.Admin](path, logger)
	if err != nil {
		return nil, err
	}
	return &AdminRepository{coll: coll}, nil
}

var _ auth.RepositoryAPI = (*AdminRepository)(nil)

func (r *AdminRepository) GetByID(id string) (*adminDatamodel.Admin, error) {
	a, ok := r.coll.Get(id)
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &a, nil
}

func (r *AdminRepository) Save(a *adminDatamodel.Admin) error {
	return r.coll.Mutate(func(records map[string]adminDatamodel.Admin) (bool, error) {
		records[a.ID] = *a
		return true, nil
	})
}

func (r *AdminRepository) Check() error {
	return r.coll.Check()
}
