package models

import (
	"time"

	"gorm.io/gorm"
)

type Company struct {
	gorm.Model
	Name         string `gorm:"not null;uniqueIndex"`
	Domain       string
	Address      string
	Phone        string
	MaxEmployees int  `gorm:"not null;default:0"` // 0 means unlimited
	IsActive     bool `gorm:"not null;default:true"`
}

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationRevoked  InvitationStatus = "REVOKED"
	InvitationExpired  InvitationStatus = "EXPIRED"
)

type Invitation struct {
	gorm.Model
	Email       string           `gorm:"not null;index"`
	CompanyID   uint             `gorm:"not null;index"`
	Company     Company
	Role        Role             `gorm:"type:varchar(20);not null"`
	Token       string           `gorm:"not null;uniqueIndex"`
	InvitedByID uint             `gorm:"not null"`
	Status      InvitationStatus `gorm:"type:varchar(20);not null;index"`
	ExpiresAt   time.Time        `gorm:"not null"`
	AcceptedAt  *time.Time
}
