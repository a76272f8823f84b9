package models

import (
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleEmployee     Role = "EMPLOYEE"
	RolePractitioner Role = "PRACTITIONER"
	RoleAdminRH      Role = "ADMIN_RH"
	RoleAdminHuntZen Role = "ADMIN_HUNTZEN"
	RoleSuperAdmin   Role = "SUPER_ADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RolePractitioner, RoleAdminRH, RoleAdminHuntZen, RoleSuperAdmin:
		return true
	}
	return false
}

// IsPlatformAdmin reports whether the role administers every tenant.
func (r Role) IsPlatformAdmin() bool {
	return r == RoleAdminHuntZen || r == RoleSuperAdmin
}

func (r Role) IsAdmin() bool {
	return r == RoleAdminRH || r.IsPlatformAdmin()
}

type User struct {
	gorm.Model
	Email        string `gorm:"not null;uniqueIndex"`
	PasswordHash string `gorm:"not null"`
	FirstName    string `gorm:"not null"`
	LastName     string `gorm:"not null"`
	Role         Role   `gorm:"type:varchar(20);not null;index"`
	CompanyID    *uint  `gorm:"index"`
	Company      *Company
	IsActive     bool `gorm:"not null;default:true"`
	LastLoginAt  *time.Time
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

type Employee struct {
	gorm.Model
	UserID     uint `gorm:"not null;uniqueIndex"`
	User       User
	CompanyID  uint `gorm:"not null;index"`
	Company    Company
	Department string
	Position   string
	Phone      string
}
