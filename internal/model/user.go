package model

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole accepts exactly "user" or "admin".
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

// User represents an account row. The table keeps the legacy name "user".
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:150;not null" json:"name"`
	Email     string    `gorm:"size:150;not null;uniqueIndex" json:"email"`
	Password  string    `gorm:"size:150;not null" json:"-"`
	Role      Role      `gorm:"size:50;not null;default:user" json:"role"`
	CreatedAt time.Time `json:"-"`
}

func (User) TableName() string {
	return "user"
}
