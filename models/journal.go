package models

import "gorm.io/gorm"

type JournalEntry struct {
	gorm.Model
	UserID    uint   `gorm:"not null;index"`
	Title     string `gorm:"not null"`
	Content   string `gorm:"type:text;not null"`
	Mood      int    `gorm:"not null"` // 1..10
	Tags      string // comma separated
	IsPrivate bool   `gorm:"not null"`
}

type ActivityLog struct {
	gorm.Model
	UserID     *uint  `gorm:"index"`
	Action     string `gorm:"not null;index"`
	EntityType string `gorm:"index"`
	EntityID   *uint
	Details    string `gorm:"type:text"`
	IPAddress  string
}
