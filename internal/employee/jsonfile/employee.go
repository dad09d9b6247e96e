package jsonfile

import (
	"log/slog"

	employeeDatamodel "github.com/frahmantamala/employee-onboarding/internal/core/datamodel/employee"
	"github.com/frahmantamala/employee-onboarding/internal/employee"
	"github.com/frahmantamala/employee-onboarding/internal/storage"
	"github.com/frahmantamala/employee-onboarding/internal/store/jsonfile"
)

type EmployeeRepository struct {
	coll *jsonfile.Collection[employeeDatamodel.Employee]
	mode storage.UpdateMode
}

// Open loads the employee document at path.
func Open(path string, mode storage.UpdateMode, logger *slog.Logger) (*EmployeeRepository, error) {
	coll, err := jsonfile.Open[employeeDatamodel.Employee](path, logger)
	if err != nil {
		return nil, err
	}
	return NewEmployeeRepository(coll, mode), nil
}

func NewEmployeeRepository(coll *jsonfile.Collection[employeeDatamodel.Employee], mode storage.UpdateMode) *EmployeeRepository {
	return &EmployeeRepository{coll: coll, mode: mode}
}

var _ employee.RepositoryAPI = (*EmployeeRepository)(nil)

func (r *EmployeeRepository) List() ([]*employeeDatamodel.Employee, error) {
	values := r.coll.Values()
	out := make([]*employeeDatamodel.Employee, 0, len(values))
	for i := range values {
		out = append(out, &values[i])
	}
	return out, nil
}

func (r *EmployeeRepository) ExistsByName(firstName, lastName string) (bool, error) {
	_, ok := r.coll.Find(func(e employeeDatamodel.Employee) bool {
		return e.FirstName == firstName && e.LastName == lastName
	})
	return ok, nil
}

// Save checks the name and inserts under one lock so two concurrent
// creates of the same name cannot both succeed.
func (r *EmployeeRepository) Save(e *employeeDatamodel.Employee) (bool, error) {
	saved := false
	err := r.coll.Mutate(func(records map[string]employeeDatamodel.Employee) (bool, error) {
		for _, existing := range records {
			if existing.FirstName == e.FirstName && existing.LastName == e.LastName {
				return false, nil
			}
		}
		records[e.ID] = *e
		saved = true
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return saved, nil
}

func (r *EmployeeRepository) Update(e *employeeDatamodel.Employee) error {
	return r.coll.Mutate(func(records map[string]employeeDatamodel.Employee) (bool, error) {
		if _, ok := records[e.ID]; !ok && r.mode == storage.UpdateStrict {
			return false, employee.ErrNotFound
		}
		records[e.ID] = *e
		return true, nil
	})
}

func (r *EmployeeRepository) Modify(id string, fn func(*employeeDatamodel.Employee, employee.Peers) error) (*employeeDatamodel.Employee, error) {
	var out employeeDatamodel.Employee
	err := r.coll.Mutate(func(records map[string]employeeDatamodel.Employee) (bool, error) {
		rec, ok := records[id]
		if !ok {
			return false, employee.ErrNotFound
		}
		if err := fn(&rec, peers(records)); err != nil {
			return false, err
		}
		rec.ID = id
		records[id] = rec
		out = rec
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// peers scans the working copy held by Mutate.
type peers map[string]employeeDatamodel.Employee

func (p peers) NameTaken(firstName, lastName, exceptID string) (bool, error) {
	for id, e := range p {
		if id != exceptID && e.FirstName == firstName && e.LastName == lastName {
			return true, nil
		}
	}
	return false, nil
}

func (p peers) HandleTaken(handle, exceptID string) (bool, error) {
	for id, e := range p {
		if id != exceptID && e.Handle != nil && *e.Handle == handle {
			return true, nil
		}
	}
	return false, nil
}

func (r *EmployeeRepository) Delete(id string) error {
	return r.coll.Mutate(func(records map[string]employeeDatamodel.Employee) (bool, error) {
		if _, ok := records[id]; !ok {
			return false, nil
		}
		delete(records, id)
		return true, nil
	})
}

func (r *EmployeeRepository) GetByID(id string) (*employeeDatamodel.Employee, error) {
	e, ok := r.coll.Get(id)
	if !ok {
		return nil, employee.ErrNotFound
	}
	return &e, nil
}

func (r *EmployeeRepository) GetByHandle(handle string) (*employeeDatamodel.Employee, error) {
	e, ok := r.coll.Find(func(e employeeDatamodel.Employee) bool {
		return e.Handle != nil && *e.Handle == handle
	})
	if !ok {
		return nil, employee.ErrNotFound
	}
	return &e, nil
}

func (r *EmployeeRepository) Check() error {
	return r.coll.Check()
}
