package models

import "gorm.io/gorm"

// EmergencyContact with a nil CompanyID is visible to every tenant.
type EmergencyContact struct {
	gorm.Model
	CompanyID    *uint  `gorm:"index"`
	Name         string `gorm:"not null"`
	Phone        string `gorm:"not null"`
	Description  string
	Available24h bool `gorm:"column:available_24h;not null;default:false"`
	Priority     int  `gorm:"not null;default:0"`
	IsActive     bool `gorm:"not null;default:true"`
}

type EmergencyResource struct {
	gorm.Model
	CompanyID   *uint  `gorm:"index"`
	Title       string `gorm:"not null"`
	Description string `gorm:"type:text"`
	URL         string
	Category    string `gorm:"index"`
	IsActive    bool   `gorm:"not null;default:true"`
}
