package models

import (
	"time"

	"gorm.io/gorm"
)

type ConsultationStatus string

const (
	StatusScheduled ConsultationStatus = "SCHEDULED"
	StatusConfirmed ConsultationStatus = "CONFIRMED"
	StatusCompleted ConsultationStatus = "COMPLETED"
	StatusCancelled ConsultationStatus = "CANCELLED"
)

func (s ConsultationStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ActiveStatuses are the statuses that occupy a time slot.
var ActiveStatuses = []ConsultationStatus{StatusScheduled, StatusConfirmed}

type ConsultationType string

const (
	TypeVideo    ConsultationType = "VIDEO"
	TypePhone    ConsultationType = "PHONE"
	TypeInPerson ConsultationType = "IN_PERSON"
)

func (t ConsultationType) Valid() bool {
	switch t {
	case TypeVideo, TypePhone, TypeInPerson:
		return true
	}
	return false
}

type Consultation struct {
	gorm.Model
	EmployeeID     uint `gorm:"not null;index"`
	Employee       Employee
	PractitionerID uint `gorm:"not null;index"`
	Practitioner   Practitioner
	ScheduledAt    time.Time          `gorm:"not null;index"`
	EndAt          time.Time          `gorm:"not null;index"`
	Duration       int                `gorm:"not null"` // minutes
	Type           ConsultationType   `gorm:"type:varchar(20);not null"`
	Status         ConsultationStatus `gorm:"type:varchar(20);not null;index"`
	Reason         string             `gorm:"type:text"`
	Notes          string             `gorm:"type:text"`
	CancelReason   string
	CancelledByID  *uint
	CancelledAt    *time.Time
	CompletedAt    *time.Time
}
