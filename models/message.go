package models

import (
	"time"

	"gorm.io/gorm"
)

type Message struct {
	gorm.Model
	SenderID       uint `gorm:"not null;index"`
	Sender         User
	ReceiverID     uint `gorm:"not null;index"`
	Receiver       User
	ConsultationID *uint
	Content        string `gorm:"type:text;not null"`
	IsRead         bool   `gorm:"not null;default:false"`
	ReadAt         *time.Time
}

type NotificationType string

const (
	NotificationConsultation NotificationType = "CONSULTATION"
	NotificationMessage      NotificationType = "MESSAGE"
	NotificationSystem       NotificationType = "SYSTEM"
	NotificationAccount      NotificationType = "ACCOUNT"
)

type Notification struct {
	gorm.Model
	UserID  uint             `gorm:"not null;index"`
	Type    NotificationType `gorm:"type:varchar(20);not null"`
	Title   string           `gorm:"not null"`
	Message string           `gorm:"type:text"`
	Link    string
	IsRead  bool `gorm:"not null;default:false;index"`
	ReadAt  *time.Time
}
