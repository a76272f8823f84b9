package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"huntzen-care/models"
	"huntzen-care/utils"
)

type AuthService struct {
	*core
	tokens        *utils.TokenIssuer
	notifications *NotificationService
	activity      *ActivityService
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      models.User
}

type RegisterEmployeeInput struct {
	Token      string
	Password   string
	FirstName  string
	LastName   string
	Department string
	Position   string
	Phone      string
}

type RegisterPractitionerInput struct {
	Email           string
	Password        string
	FirstName       string
	LastName        string
	Specialty       string
	LicenseNumber   string
	Bio             string
	Languages       string
	YearsExperience int
}

// Profile is the authenticated user with the role-specific record attached.
type Profile struct {
	User         models.User
	Employee     *models.Employee
	Practitioner *models.Practitioner
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var user models.User
	err := s.db.WithContext(ctx).Preload("Company").Where("email = ?", normalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, unauthorizedf("invalid credentials")
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !utils.CheckPassword(user.PasswordHash, password) {
		return nil, unauthorizedf("invalid credentials")
	}
	if !user.IsActive {
		return nil, unauthorizedf("account is disabled")
	}
	if user.Company != nil && !user.Company.IsActive {
		return nil, unauthorizedf("company account is disabled")
	}

	now := s.clock()
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Update("last_login_at", now).Error; err != nil {
		return nil, fmt.Errorf("update last login: %w", err)
	}
	user.LastLoginAt = &now

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	s.activity.Log(ctx, user.ID, ActionLogin, "user", user.ID, "")
	return result, nil
}

func (s *AuthService) issue(user models.User) (*LoginResult, error) {
	token, claims, err := s.tokens.Issue(user.ID, string(user.Role), user.CompanyID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: user}, nil
}

// RegisterEmployee consumes a pending invitation and creates the account it
// describes.
func (s *AuthService) RegisterEmployee(ctx context.Context, in RegisterEmployeeInput) (*LoginResult, error) {
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return nil, invalidf("first and last name are required")
	}

	var inv models.Invitation
	err := s.db.WithContext(ctx).Preload("Company").Where("token = ?", strings.TrimSpace(in.Token)).First(&inv).Error
	if err != nil {
		return nil, lookup(err, "invitation")
	}
	if inv.Status != models.InvitationPending {
		return nil, invalidf("invitation is no longer valid")
	}
	now := s.clock()
	if !inv.ExpiresAt.After(now) {
		if err := s.db.WithContext(ctx).Model(&models.Invitation{}).Where("id = ?", inv.ID).Update("status", models.InvitationExpired).Error; err != nil {
			s.sideEffectFailed("invitation_expire", err, "invitation_id", inv.ID)
		}
		return nil, invalidf("invitation has expired")
	}
	if !inv.Company.IsActive {
		return nil, forbiddenf("company account is disabled")
	}
	if err := s.ensureEmailFree(ctx, inv.Email); err != nil {
		return nil, err
	}
	if inv.Role == models.RoleEmployee && inv.Company.MaxEmployees > 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Employee{}).
			Where("company_id = ? AND user_id IN (?)", inv.CompanyID, employeeUsers(s.db)).
			Count(&count).Error; err != nil {
			return nil, fmt.Errorf("count employees: %w", err)
		}
		if count >= int64(inv.Company.MaxEmployees) {
			return nil, conflictf("company has reached its employee limit")
		}
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, invalidf("%v", err)
	}

	companyID := inv.CompanyID
	user := models.User{
		Email:        inv.Email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Role:         inv.Role,
		CompanyID:    &companyID,
		IsActive:     true,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		if user.Role == models.RoleEmployee {
			employee := models.Employee{
				UserID:     user.ID,
				CompanyID:  companyID,
				Department: in.Department,
				Position:   in.Position,
				Phone:      in.Phone,
			}
			if err := tx.Create(&employee).Error; err != nil {
				return fmt.Errorf("create employee: %w", err)
			}
		}
		return tx.Model(&models.Invitation{}).Where("id = ?", inv.ID).Updates(map[string]interface{}{
			"status":      models.InvitationAccepted,
			"accepted_at": now,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.notifications.Notify(ctx, inv.InvitedByID, models.NotificationAccount,
		"Invitation accepted",
		fmt.Sprintf("%s joined %s", user.FullName(), inv.Company.Name),
		"/hr/employees")
	s.activity.Log(ctx, user.ID, ActionRegister, "user", user.ID, string(user.Role))
	s.invalidate(ctx, cachePrefixStats)

	user.Company = &inv.Company
	return s.issue(user)
}

// RegisterPractitioner creates an unverified practitioner account and asks
// platform admins to review it.
func (s *AuthService) RegisterPractitioner(ctx context.Context, in RegisterPractitionerInput) (*LoginResult, error) {
	email := normalizeEmail(in.Email)
	if email == "" || strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return nil, invalidf("email, first and last name are required")
	}
	if strings.TrimSpace(in.Specialty) == "" || strings.TrimSpace(in.LicenseNumber) == "" {
		return nil, invalidf("specialty and license number are required")
	}
	if in.YearsExperience < 0 {
		return nil, invalidf("years of experience cannot be negative")
	}
	if err := s.ensureEmailFree(ctx, email); err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, invalidf("%v", err)
	}

	user := models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Role:         models.RolePractitioner,
		IsActive:     true,
	}
	var practitioner models.Practitioner
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		practitioner = models.Practitioner{
			UserID:          user.ID,
			Specialty:       strings.TrimSpace(in.Specialty),
			LicenseNumber:   strings.TrimSpace(in.LicenseNumber),
			Bio:             in.Bio,
			Languages:       in.Languages,
			YearsExperience: in.YearsExperience,
			IsAvailable:     true,
		}
		if err := tx.Create(&practitioner).Error; err != nil {
			return fmt.Errorf("create practitioner: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifications.NotifyRoles(ctx,
		[]models.Role{models.RoleAdminHuntZen, models.RoleSuperAdmin},
		models.NotificationSystem,
		"Practitioner awaiting verification",
		fmt.Sprintf("%s (%s) registered and needs verification", user.FullName(), practitioner.Specialty),
		fmt.Sprintf("/admin/practitioners/%d", practitioner.ID))
	s.activity.Log(ctx, user.ID, ActionRegister, "practitioner", practitioner.ID, "")

	return s.issue(user)
}

func (s *AuthService) ensureEmailFree(ctx context.Context, email string) error {
	var count int64
	if err := s.db.WithContext(ctx).Unscoped().Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if count > 0 {
		return conflictf("email %s is already registered", email)
	}
	return nil
}

func (s *AuthService) Me(ctx context.Context, actor Actor) (*Profile, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Preload("Company").First(&user, actor.UserID).Error; err != nil {
		return nil, lookup(err, "user")
	}
	profile := &Profile{User: user}

	switch user.Role {
	case models.RoleEmployee:
		var employee models.Employee
		if err := s.db.WithContext(ctx).Where("user_id = ?", user.ID).First(&employee).Error; err == nil {
			profile.Employee = &employee
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	case models.RolePractitioner:
		var practitioner models.Practitioner
		err := s.db.WithContext(ctx).
			Preload("Availabilities", "is_active = ?", true).
			Where("user_id = ?", user.ID).
			First(&practitioner).Error
		if err == nil {
			profile.Practitioner = &practitioner
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return profile, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, actor Actor, current, next string) error {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, actor.UserID).Error; err != nil {
		return lookup(err, "user")
	}
	if !utils.CheckPassword(user.PasswordHash, current) {
		return invalidf("current password is incorrect")
	}
	if current == next {
		return invalidf("new password must differ from the current one")
	}
	hash, err := utils.HashPassword(next)
	if err != nil {
		return invalidf("%v", err)
	}
	if err := s.db.WithContext(ctx).Model(&user).Update("password_hash", hash).Error; err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.activity.Log(ctx, user.ID, ActionPasswordChanged, "user", user.ID, "")
	return nil
}

// Logout revokes the token until it would have expired anyway. Without a
// cache tokens cannot be revoked and simply run out.
func (s *AuthService) Logout(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if s.cache == nil || tokenID == "" {
		return nil
	}
	ttl := expiresAt.Sub(s.clock())
	if ttl <= 0 {
		return nil
	}
	if err := s.cache.SetToCache(ctx, cachePrefixRevoked+tokenID, "1", ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked fails open when the cache is unreachable.
func (s *AuthService) IsRevoked(ctx context.Context, tokenID string) bool {
	if s.cache == nil || tokenID == "" {
		return false
	}
	_, err := s.cache.GetFromCache(ctx, cachePrefixRevoked+tokenID)
	if err == nil {
		return true
	}
	if !errors.Is(err, utils.ErrCacheMiss) {
		s.sideEffectFailed("cache_read", err, "key", "revoked")
	}
	return false
}

// Authenticate turns a bearer token into an Actor. Role and tenant come from
// the database so changes apply without re-login.
func (s *AuthService) Authenticate(ctx context.Context, token string) (Actor, *utils.TokenClaims, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return Actor{}, nil, unauthorizedf("invalid or expired token")
	}
	if s.IsRevoked(ctx, claims.ID) {
		return Actor{}, nil, unauthorizedf("token has been revoked")
	}
	userID, err := claims.UserID()
	if err != nil {
		return Actor{}, nil, unauthorizedf("invalid token subject")
	}

	var user models.User
	if err := s.db.WithContext(ctx).Preload("Company").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Actor{}, nil, unauthorizedf("account no longer exists")
		}
		return Actor{}, nil, err
	}
	if !user.IsActive {
		return Actor{}, nil, unauthorizedf("account is disabled")
	}
	if user.Company != nil && !user.Company.IsActive {
		return Actor{}, nil, unauthorizedf("company account is disabled")
	}
	return Actor{UserID: user.ID, Role: user.Role, CompanyID: user.CompanyID}, claims, nil
}

type PlatformAdminInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      models.Role
}

// CreatePlatformAdmin provisions an ADMIN_HUNTZEN or SUPER_ADMIN account
// outside of any company. It backs the create-admin command.
func (s *AuthService) CreatePlatformAdmin(ctx context.Context, in PlatformAdminInput) (*models.User, error) {
	if !in.Role.IsPlatformAdmin() {
		return nil, invalidf("role must be ADMIN_HUNTZEN or SUPER_ADMIN")
	}
	email := normalizeEmail(in.Email)
	if email == "" || strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return nil, invalidf("email, first and last name are required")
	}
	if err := s.ensureEmailFree(ctx, email); err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, invalidf("%v", err)
	}
	user := models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Role:         in.Role,
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create admin: %w", err)
	}
	s.activity.Log(ctx, user.ID, ActionRegister, "user", user.ID, "platform admin")
	return &user, nil
}
