package postgres

import (
	"errors"
	"fmt"

	employeeDatamodel "github.com/frahmantamala/employee-onboarding/internal/core/datamodel/employee"
	"github.com/frahmantamala/employee-onboarding/internal/employee"
	"github.com/frahmantamala/employee-onboarding/internal/storage"
	"gorm.io/gorm"
)

type EmployeeRepository struct {
	db   *gorm.DB
	mode storage.UpdateMode
}

func NewEmployeeRepository(db *gorm.DB, mode storage.UpdateMode) employee.RepositoryAPI {
	return &EmployeeRepository{db: db, mode: mode}
}

func dbError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", storage.ErrIO, err)
}

func (r *EmployeeRepository) List() ([]*employeeDatamodel.Employee, error) {
	var employees []*employeeDatamodel.Employee
	err := r.db.Order("first_name ASC, last_name ASC, id ASC").Find(&employees).Error
	return employees, dbError(err)
}

func (r *EmployeeRepository) ExistsByName(firstName, lastName string) (bool, error) {
	return existsByName(r.db, firstName, lastName)
}

func existsByName(db *gorm.DB, firstName, lastName string) (bool, error) {
	var count int64
	err := db.Model(&employeeDatamodel.Employee{}).
		Where("first_name = ? AND last_name = ?", firstName, lastName).
		Count(&count).Error
	return count > 0, dbError(err)
}

// Save runs the name check and the insert in one transaction. The unique
// name index catches a concurrent insert that passed the same check.
func (r *EmployeeRepository) Save(e *employeeDatamodel.Employee) (bool, error) {
	saved := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		exists, err := existsByName(tx, e.FirstName, e.LastName)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		if err := tx.Create(e).Error; err != nil {
			return storage.WriteError(tx, err)
		}
		saved = true
		return nil
	})
	if errors.Is(err, storage.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return saved, nil
}

func (r *EmployeeRepository) Update(e *employeeDatamodel.Employee) error {
	if r.mode == storage.UpdateUpsert {
		return storage.WriteError(r.db, r.db.Save(e).Error)
	}

	res := r.db.Model(&employeeDatamodel.Employee{}).Where("id = ?", e.ID).Select("*").Omit("created_at").Updates(e)
	if res.Error != nil {
		return storage.WriteError(r.db, res.Error)
	}
	if res.RowsAffected == 0 {
		return employee.ErrNotFound
	}
	return nil
}

// Modify locks the row for the rest of the transaction; the peer queries
// run in the same transaction.
func (r *EmployeeRepository) Modify(id string, fn func(*employeeDatamodel.Employee, employee.Peers) error) (*employeeDatamodel.Employee, error) {
	var out employeeDatamodel.Employee
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := storage.LockRow(tx).Where("id = ?", id).First(&out).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return employee.ErrNotFound
			}
			return dbError(err)
		}
		if err := fn(&out, txPeers{tx}); err != nil {
			return err
		}
		out.ID = id
		err := tx.Model(&employeeDatamodel.Employee{}).Where("id = ?", id).Select("*").Omit("created_at").Updates(&out).Error
		return storage.WriteError(tx, err)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type txPeers struct {
	tx *gorm.DB
}

func (p txPeers) NameTaken(firstName, lastName, exceptID string) (bool, error) {
	var count int64
	err := p.tx.Model(&employeeDatamodel.Employee{}).
		Where("first_name = ? AND last_name = ? AND id <> ?", firstName, lastName, exceptID).
		Count(&count).Error
	return count > 0, dbError(err)
}

func (p txPeers) HandleTaken(handle, exceptID string) (bool, error) {
	var count int64
	err := p.tx.Model(&employeeDatamodel.Employee{}).
		Where("handle = ? AND id <> ?", handle, exceptID).
		Count(&count).Error
	return count > 0, dbError(err)
}

func (r *EmployeeRepository) Delete(id string) error {
	return dbError(r.db.Where("id = ?", id).Delete(&employeeDatamodel.Employee{}).Error)
}

func (r *EmployeeRepository) GetByID(id string) (*employeeDatamodel.Employee, error) {
	var e employeeDatamodel.Employee
	err := r.db.Where("id = ?", id).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, employee.ErrNotFound
		}
		return nil, dbError(err)
	}
	return &e, nil
}

func (r *EmployeeRepository) GetByHandle(handle string) (*employeeDatamodel.Employee, error) {
	var e employeeDatamodel.Employee
	err := r.db.Where("handle = ?", handle).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, employee.ErrNotFound
		}
		return nil, dbError(err)
	}
	return &e, nil
}

func (r *EmployeeRepository) Check() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return dbError(err)
	}
	return dbError(sqlDB.Ping())
}
