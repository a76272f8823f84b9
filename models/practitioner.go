package models

import "gorm.io/gorm"

type Practitioner struct {
	gorm.Model
	UserID          uint `gorm:"not null;uniqueIndex"`
	User            User
	Specialty       string `gorm:"not null;index"`
	Bio             string `gorm:"type:text"`
	LicenseNumber   string `gorm:"not null"`
	Languages       string // comma separated
	YearsExperience int
	IsVerified      bool `gorm:"not null;default:false;index"`
	IsAvailable     bool `gorm:"not null;default:true"`
	Availabilities  []Availability
}

// Availability is a weekly recurring slot. Times are "HH:MM" in UTC.
type Availability struct {
	gorm.Model
	PractitionerID uint   `gorm:"not null;index"`
	DayOfWeek      int    `gorm:"not null"` // 0 = Sunday
	StartTime      string `gorm:"type:varchar(5);not null"`
	EndTime        string `gorm:"type:varchar(5);not null"`
	IsActive       bool   `gorm:"not null;default:true"`
}
