package admin

import "time"

type Admin struct {
	ID        string    `json:"id" gorm:"column:id;primaryKey;type:varchar(64)"`
	Password  *string   `json:"password" gorm:"column:password"`
	CreatedAt time.Time `json:"-" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `json:"-" gorm:"column:updated_at;autoUpdateTime"`
}

func (Admin) TableName() string {
	return "admins"
}
