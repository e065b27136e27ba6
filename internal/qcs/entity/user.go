package entity

import "time"

// User 系统用户
type User struct {
	ID        string     `json:"id" gorm:"primaryKey;size:32"`
	Username  string     `json:"username" gorm:"size:50;uniqueIndex;not null"`
	Password  string     `json:"-" gorm:"size:100;not null"`
	Role      string     `json:"role" gorm:"size:20;default:user"` // admin/user
	FullName  string     `json:"full_name" gorm:"size:100"`
	Email     string     `json:"email" gorm:"size:200"`
	IsActive  bool       `json:"is_active" gorm:"default:true"`
	LastLogin *time.Time `json:"last_login"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// AllModels 需要迁移的模型
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Supplier{},
		&Product{},
		&Issue{},
		&Photo{},
		&Comment{},
		&AuditTrailEntry{},
	}
}
