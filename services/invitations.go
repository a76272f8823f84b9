package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"huntzen-care/models"
)

type InvitationService struct {
	*core
	ttl      time.Duration
	activity *ActivityService
}

type CreateInvitationInput struct {
	Email     string
	Role      models.Role
	CompanyID *uint
}

func (s *InvitationService) Create(ctx context.Context, actor Actor, in CreateInvitationInput) (*models.Invitation, error) {
	role := in.Role
	if role == "" {
		role = models.RoleEmployee
	}
	if role != models.RoleEmployee && role != models.RoleAdminRH {
		return nil, invalidf("invitations can only grant EMPLOYEE or ADMIN_RH")
	}
	if actor.Role == models.RoleAdminRH && role != models.RoleEmployee {
		return nil, forbiddenf("HR admins can only invite employees")
	}
	companyID, err := actor.scopeCompany(in.CompanyID)
	if err != nil {
		return nil, err
	}
	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, invalidf("email is required")
	}

	var company models.Company
	if err := s.db.WithContext(ctx).First(&company, companyID).Error; err != nil {
		return nil, lookup(err, "company")
	}
	if !company.IsActive {
		return nil, invalidf("company is inactive")
	}

	var existing int64
	if err := s.db.WithContext(ctx).Unscoped().Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if existing > 0 {
		return nil, conflictf("a user with email %s already exists", email)
	}

	now := s.clock()
	var pending int64
	err = s.db.WithContext(ctx).Model(&models.Invitation{}).
		Where("email = ? AND company_id = ? AND status = ? AND expires_at > ?", email, companyID, models.InvitationPending, now).
		Count(&pending).Error
	if err != nil {
		return nil, fmt.Errorf("check pending invitations: %w", err)
	}
	if pending > 0 {
		return nil, conflictf("a pending invitation already exists for %s", email)
	}

	inv := models.Invitation{
		Email:       email,
		CompanyID:   companyID,
		Role:        role,
		Token:       uuid.NewString(),
		InvitedByID: actor.UserID,
		Status:      models.InvitationPending,
		ExpiresAt:   now.Add(s.ttl),
	}
	if err := s.db.WithContext(ctx).Create(&inv).Error; err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}
	inv.Company = company

	s.activity.Log(ctx, actor.UserID, ActionInvitationCreated, "invitation", inv.ID, email)
	s.invalidate(ctx, cachePrefixStats)
	return &inv, nil
}

// expireStale flips past-due pending invitations to EXPIRED.
func (s *InvitationService) expireStale(ctx context.Context) {
	err := s.db.WithContext(ctx).Model(&models.Invitation{}).
		Where("status = ? AND expires_at <= ?", models.InvitationPending, s.clock()).
		Update("status", models.InvitationExpired).Error
	if err != nil {
		s.sideEffectFailed("invitation_expire", err)
	}
}

func (s *InvitationService) List(ctx context.Context, actor Actor, companyID *uint, status models.InvitationStatus, page Page) (PageResult[models.Invitation], error) {
	page = page.normalize()
	s.expireStale(ctx)

	q := s.db.WithContext(ctx).Model(&models.Invitation{})
	switch {
	case actor.Role == models.RoleAdminRH:
		scoped, err := actor.scopeCompany(companyID)
		if err != nil {
			return PageResult[models.Invitation]{}, err
		}
		q = q.Where("company_id = ?", scoped)
	case actor.Role.IsPlatformAdmin():
		if companyID != nil {
			q = q.Where("company_id = ?", *companyID)
		}
	default:
		return PageResult[models.Invitation]{}, forbiddenf("administrator role required")
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}

	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return PageResult[models.Invitation]{}, fmt.Errorf("count invitations: %w", err)
	}
	var items []models.Invitation
	err := q.Preload("Company").Order("created_at DESC").Order("id DESC").Offset(page.offset()).Limit(page.Limit).Find(&items).Error
	if err != nil {
		return PageResult[models.Invitation]{}, fmt.Errorf("list invitations: %w", err)
	}
	return newPageResult(items, total, page), nil
}

func (s *InvitationService) Revoke(ctx context.Context, actor Actor, id uint) (*models.Invitation, error) {
	var inv models.Invitation
	if err := s.db.WithContext(ctx).Preload("Company").First(&inv, id).Error; err != nil {
		return nil, lookup(err, "invitation")
	}
	if !actor.managesCompany(inv.CompanyID) {
		return nil, forbiddenf("cannot manage invitations of another company")
	}
	if inv.Status != models.InvitationPending {
		return nil, conflictf("only pending invitations can be revoked")
	}
	if err := s.db.WithContext(ctx).Model(&models.Invitation{}).Where("id = ?", inv.ID).Update("status", models.InvitationRevoked).Error; err != nil {
		return nil, fmt.Errorf("revoke invitation: %w", err)
	}
	inv.Status = models.InvitationRevoked
	s.activity.Log(ctx, actor.UserID, ActionInvitationRevoked, "invitation", inv.ID, inv.Email)
	s.invalidate(ctx, cachePrefixStats)
	return &inv, nil
}

// Lookup is the public pre-registration check on an invitation token.
func (s *InvitationService) Lookup(ctx context.Context, token string) (*models.Invitation, error) {
	var inv models.Invitation
	if err := s.db.WithContext(ctx).Preload("Company").Where("token = ?", token).First(&inv).Error; err != nil {
		return nil, lookup(err, "invitation")
	}
	if inv.Status != models.InvitationPending || !inv.ExpiresAt.After(s.clock()) {
		return nil, invalidf("invitation is no longer valid")
	}
	if !inv.Company.IsActive {
		return nil, invalidf("company is inactive")
	}
	return &inv, nil
}
