package employee

import "time"

// Employee is the stored shape of an employee record. The JSON tags are the
// on-disk document format; the gorm tags map the same record onto the
// employees table.
type Employee struct {
	ID             string    `json:"id" gorm:"column:id;primaryKey;type:varchar(36)"`
	FirstName      string    `json:"first_name" gorm:"column:first_name;not null;uniqueIndex:idx_employees_name,priority:1"`
	LastName       string    `json:"last_name" gorm:"column:last_name;not null;uniqueIndex:idx_employees_name,priority:2"`
	PersonalEmail  *string   `json:"personal_email" gorm:"column:personal_email"`
	WorkEmail      *string   `json:"work_email" gorm:"column:work_email"`
	Age            int       `json:"age" gorm:"column:age;not null"`
	Diploma        string    `json:"diploma" gorm:"column:diploma;not null;default:''"`
	Onboarded      bool      `json:"onboarded" gorm:"column:onboarded;not null;default:false"`
	Handle         *string   `json:"handle" gorm:"column:handle;uniqueIndex:idx_employees_handle"`
	Password       *string   `json:"password" gorm:"column:password"`
	SecurePassword bool      `json:"secure_password" gorm:"column:secure_password;not null;default:false"`
	CreatedAt      time.Time `json:"-" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `json:"-" gorm:"column:updated_at;autoUpdateTime"`
}

func (Employee) TableName() string {
	return "employees"
}
