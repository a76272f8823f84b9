package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"huntzen-care/models"
)

type AdminService struct {
	*core
	consultations *ConsultationService
	notifications *NotificationService
	activity      *ActivityService
}

type UserFilter struct {
	Role      models.Role
	CompanyID *uint
	Active    *bool
	Search    string
	Page      Page
}

type PlatformStats struct {
	UsersByRole            map[string]int64 `json:"users_by_role"`
	Companies              int64            `json:"companies"`
	ActiveCompanies        int64            `json:"active_companies"`
	VerifiedPractitioners  int64            `json:"verified_practitioners"`
	PendingPractitioners   int64            `json:"pending_practitioners"`
	ConsultationsByStatus  map[string]int64 `json:"consultations_by_status"`
	ConsultationsThisMonth int64            `json:"consultations_this_month"`
	Messages               int64            `json:"messages"`
	JournalEntries         int64            `json:"journal_entries"`
	GeneratedAt            time.Time        `json:"generated_at"`
}

func (s *AdminService) ListUsers(ctx context.Context, actor Actor, f UserFilter) (PageResult[models.User], error) {
	if err := actor.requirePlatformAdmin(); err != nil {
		return PageResult[models.User]{}, err
	}
	page := f.Page.normalize()
	q := s.db.WithContext(ctx).Model(&models.User{})
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if f.CompanyID != nil {
		q = q.Where("company_id = ?", *f.CompanyID)
	}
	if f.Active != nil {
		q = q.Where("is_active = ?", *f.Active)
	}
	if f.Search != "" {
		pattern := likePattern(f.Search)
		q = q.Where("LOWER(first_name) LIKE ? ESCAPE '\\' OR LOWER(last_name) LIKE ? ESCAPE '\\' OR LOWER(email) LIKE ? ESCAPE '\\'", pattern, pattern, pattern)
	}

	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return PageResult[models.User]{}, fmt.Errorf("count users: %w", err)
	}
	var items []models.User
	if err := q.Preload("Company").Order("id ASC").Offset(page.offset()).Limit(page.Limit).Find(&items).Error; err != nil {
		return PageResult[models.User]{}, fmt.Errorf("list users: %w", err)
	}
	return newPageResult(items, total, page), nil
}

func (s *AdminService) loadTarget(ctx context.Context, actor Actor, userID uint) (*models.User, error) {
	if err := actor.requirePlatformAdmin(); err != nil {
		return nil, err
	}
	if userID == actor.UserID {
		return nil, invalidf("cannot modify your own account")
	}
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, lookup(err, "user")
	}
	if user.Role.IsPlatformAdmin() && actor.Role != models.RoleSuperAdmin {
		return nil, forbiddenf("only super admins can modify platform administrators")
	}
	return &user, nil
}

func (s *AdminService) SetUserActive(ctx context.Context, actor Actor, userID uint, active bool) (*models.User, error) {
	user, err := s.loadTarget(ctx, actor, userID)
	if err != nil {
		return nil, err
	}
	if user.IsActive == active {
		return user, nil
	}
	if err := s.db.WithContext(ctx).Model(user).Update("is_active", active).Error; err != nil {
		return nil, fmt.Errorf("update user status: %w", err)
	}
	user.IsActive = active

	s.activity.Log(ctx, actor.UserID, ActionUserStatus, "user", user.ID, fmt.Sprintf("active=%t", active))
	s.invalidate(ctx, cachePrefixStats)
	if !active {
		s.publish(Event{Type: EventUserDeactivated, EntityID: user.ID, UserID: actor.UserID, CompanyID: user.CompanyID})
	}
	if user.Role == models.RolePractitioner {
		var practitioner models.Practitioner
		if err := s.db.WithContext(ctx).Where("user_id = ?", user.ID).First(&practitioner).Error; err == nil {
			s.practitionerChanged(ctx, EventPractitionerUpdated, practitioner.ID, user.ID)
		}
	}
	return user, nil
}

// ChangeRole moves a non-practitioner account between the employee and
// administrative tiers. Company-bound roles require a company.
func (s *AdminService) ChangeRole(ctx context.Context, actor Actor, userID uint, role models.Role) (*models.User, error) {
	if actor.Role != models.RoleSuperAdmin {
		return nil, forbiddenf("only super admins can change roles")
	}
	if !role.Valid() {
		return nil, invalidf("unknown role %q", role)
	}
	user, err := s.loadTarget(ctx, actor, userID)
	if err != nil {
		return nil, err
	}
	if user.Role == models.RolePractitioner || role == models.RolePractitioner {
		return nil, invalidf("practitioner accounts cannot change role")
	}
	if user.Role == role {
		return user, nil
	}
	companyBound := role == models.RoleEmployee || role == models.RoleAdminRH
	if companyBound && user.CompanyID == nil {
		return nil, invalidf("role %s requires the user to belong to a company", role)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		changes := map[string]interface{}{"role": role}
		if role.IsPlatformAdmin() {
			changes["company_id"] = nil
		}
		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(changes).Error; err != nil {
			return err
		}
		if role != models.RoleEmployee {
			return nil
		}
		var existing models.Employee
		err := tx.Where("user_id = ?", user.ID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&models.Employee{UserID: user.ID, CompanyID: *user.CompanyID}).Error
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("change role: %w", err)
	}
	previous := user.Role
	user.Role = role
	if role.IsPlatformAdmin() {
		user.CompanyID = nil
	}

	s.activity.Log(ctx, actor.UserID, ActionUserRole, "user", user.ID, fmt.Sprintf("%s->%s", previous, role))
	s.notifications.Notify(ctx, user.ID, models.NotificationAccount,
		"Your role has changed",
		fmt.Sprintf("Your account role is now %s", role), "")
	s.invalidate(ctx, cachePrefixStats)
	return user, nil
}

func (s *AdminService) VerifyPractitioner(ctx context.Context, actor Actor, practitionerID uint, verified bool) (*models.Practitioner, error) {
	if err := actor.requirePlatformAdmin(); err != nil {
		return nil, err
	}
	var practitioner models.Practitioner
	if err := s.db.WithContext(ctx).Preload("User").First(&practitioner, practitionerID).Error; err != nil {
		return nil, lookup(err, "practitioner")
	}
	if practitioner.IsVerified == verified {
		return &practitioner, nil
	}
	if err := s.db.WithContext(ctx).Model(&models.Practitioner{}).Where("id = ?", practitioner.ID).Update("is_verified", verified).Error; err != nil {
		return nil, fmt.Errorf("update verification: %w", err)
	}
	practitioner.IsVerified = verified

	title, body := "Profile verified", "Your practitioner profile is now visible to employees."
	if !verified {
		title, body = "Verification revoked", "Your practitioner profile is hidden until it is verified again."
	}
	s.notifications.Notify(ctx, practitioner.UserID, models.NotificationAccount, title, body, "/practitioner/profile")
	s.activity.Log(ctx, actor.UserID, ActionPractitionerVerified, "practitioner", practitioner.ID, fmt.Sprintf("verified=%t", verified))
	s.invalidate(ctx, cachePrefixStats)
	s.practitionerChanged(ctx, EventPractitionerVerified, practitioner.ID, practitioner.UserID)
	return &practitioner, nil
}

func (s *AdminService) PlatformStats(ctx context.Context, actor Actor) (*PlatformStats, error) {
	if err := actor.requirePlatformAdmin(); err != nil {
		return nil, err
	}
	s.consultations.autoComplete(ctx)

	var stats PlatformStats
	if err := s.cached(ctx, cachePrefixStats+"platform", &stats, func() error {
		return s.computePlatformStats(ctx, &stats)
	}); err != nil {
		return nil, err
	}
	return &stats, nil
}

type groupCount struct {
	Grp   string
	Count int64
}

func (s *AdminService) computePlatformStats(ctx context.Context, out *PlatformStats) error {
	db := s.db.WithContext(ctx)
	now := s.clock()
	out.GeneratedAt = now
	out.UsersByRole = map[string]int64{}
	out.ConsultationsByStatus = map[string]int64{}

	var rows []groupCount
	if err := db.Model(&models.User{}).Select("role AS grp, COUNT(*) AS count").Group("role").Scan(&rows).Error; err != nil {
		return err
	}
	for _, r := range rows {
		out.UsersByRole[r.Grp] = r.Count
	}

	rows = nil
	if err := db.Model(&models.Consultation{}).Select("status AS grp, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return err
	}
	for _, r := range rows {
		out.ConsultationsByStatus[r.Grp] = r.Count
	}

	counts := []struct {
		dst   *int64
		model interface{}
		where []interface{}
	}{
		{&out.Companies, &models.Company{}, nil},
		{&out.ActiveCompanies, &models.Company{}, []interface{}{"is_active = ?", true}},
		{&out.VerifiedPractitioners, &models.Practitioner{}, []interface{}{"is_verified = ?", true}},
		{&out.PendingPractitioners, &models.Practitioner{}, []interface{}{"is_verified = ?", false}},
		{&out.ConsultationsThisMonth, &models.Consultation{}, []interface{}{"scheduled_at >= ?", time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)}},
		{&out.Messages, &models.Message{}, nil},
		{&out.JournalEntries, &models.JournalEntry{}, nil},
	}
	for _, c := range counts {
		q := db.Model(c.model)
		if len(c.where) > 0 {
			q = q.Where(c.where[0], c.where[1:]...)
		}
		if err := q.Count(c.dst).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *AdminService) ListActivity(ctx context.Context, actor Actor, f ActivityFilter) (PageResult[models.ActivityLog], error) {
	if err := actor.requirePlatformAdmin(); err != nil {
		return PageResult[models.ActivityLog]{}, err
	}
	return s.activity.List(ctx, actor, f)
}
