package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"huntzen-care/models"
)

const (
	ActionLogin                 = "LOGIN"
	ActionRegister              = "REGISTER"
	ActionPasswordChanged       = "PASSWORD_CHANGED"
	ActionInvitationCreated     = "INVITATION_CREATED"
	ActionInvitationRevoked     = "INVITATION_REVOKED"
	ActionCompanyCreated        = "COMPANY_CREATED"
	ActionCompanyUpdated        = "COMPANY_UPDATED"
	ActionCompanyStatus         = "COMPANY_STATUS_CHANGED"
	ActionUserStatus            = "USER_STATUS_CHANGED"
	ActionUserRole              = "USER_ROLE_CHANGED"
	ActionPractitionerVerified  = "PRACTITIONER_VERIFICATION"
	ActionPractitionerUpdated   = "PRACTITIONER_UPDATED"
	ActionAvailabilityUpdated   = "AVAILABILITY_UPDATED"
	ActionConsultationBooked    = "CONSULTATION_BOOKED"
	ActionConsultationConfirmed = "CONSULTATION_CONFIRMED"
	ActionConsultationCancelled = "CONSULTATION_CANCELLED"
	ActionConsultationCompleted = "CONSULTATION_COMPLETED"
	ActionConsultationMoved     = "CONSULTATION_RESCHEDULED"
	ActionEmergencyUpdated      = "EMERGENCY_DIRECTORY_UPDATED"
)

type ActivityService struct {
	*core
}

// Log records an audit entry. Zero IDs are stored as NULL. Failures are
// swallowed.
func (s *ActivityService) Log(ctx context.Context, userID uint, action, entityType string, entityID uint, details string) {
	entry := models.ActivityLog{
		Action:     action,
		EntityType: entityType,
		Details:    details,
		IPAddress:  clientIP(ctx),
	}
	if userID != 0 {
		entry.UserID = &userID
	}
	if entityID != 0 {
		entry.EntityID = &entityID
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		s.sideEffectFailed("activity_log", err, "action", action)
	}
}

type ActivityFilter struct {
	UserID     *uint
	Action     string
	EntityType string
	From       *time.Time
	To         *time.Time
	Page       Page
}

// List returns audit entries. HR admins only see entries of users in their
// own company.
func (s *ActivityService) List(ctx context.Context, actor Actor, f ActivityFilter) (PageResult[models.ActivityLog], error) {
	page := f.Page.normalize()
	q := s.db.WithContext(ctx).Model(&models.ActivityLog{})

	switch {
	case actor.Role.IsPlatformAdmin():
	case actor.Role == models.RoleAdminRH && actor.CompanyID != nil:
		companyUsers := s.db.Model(&models.User{}).Select("id").Where("company_id = ?", *actor.CompanyID)
		q = q.Where("user_id IN (?)", companyUsers)
	default:
		return PageResult[models.ActivityLog]{}, forbiddenf("administrator role required")
	}

	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", f.To.UTC())
	}

	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return PageResult[models.ActivityLog]{}, fmt.Errorf("count activity: %w", err)
	}
	var items []models.ActivityLog
	if err := q.Order("created_at DESC").Order("id DESC").Offset(page.offset()).Limit(page.Limit).Find(&items).Error; err != nil {
		return PageResult[models.ActivityLog]{}, fmt.Errorf("list activity: %w", err)
	}
	return newPageResult(items, total, page), nil
}
