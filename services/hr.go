package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"huntzen-care/models"
)

type HRService struct {
	*core
	consultations *ConsultationService
	activity      *ActivityService
}

type EmployeeFilter struct {
	CompanyID *uint
	Search    string
	Active    *bool
	Page      Page
}

// CompanyStats is aggregate usage for one tenant. It never carries clinical
// content.
type CompanyStats struct {
	CompanyID              uint             `json:"company_id"`
	TotalEmployees         int64            `json:"total_employees"`
	ActiveEmployees        int64            `json:"active_employees"`
	EmployeesUsingService  int64            `json:"employees_using_service"`
	ConsultationsByStatus  map[string]int64 `json:"consultations_by_status"`
	ConsultationsThisMonth int64            `json:"consultations_this_month"`
	PendingInvitations     int64            `json:"pending_invitations"`
	GeneratedAt            time.Time        `json:"generated_at"`
}

func (s *HRService) ListEmployees(ctx context.Context, actor Actor, f EmployeeFilter) (PageResult[models.Employee], error) {
	companyID, err := actor.scopeCompany(f.CompanyID)
	if err != nil {
		return PageResult[models.Employee]{}, err
	}
	page := f.Page.normalize()

	users := employeeUsers(s.db)
	if f.Search != "" {
		pattern := likePattern(f.Search)
		users = users.Where("LOWER(first_name) LIKE ? ESCAPE '\\' OR LOWER(last_name) LIKE ? ESCAPE '\\' OR LOWER(email) LIKE ? ESCAPE '\\'", pattern, pattern, pattern)
	}
	if f.Active != nil {
		users = users.Where("is_active = ?", *f.Active)
	}
	q := s.db.WithContext(ctx).Model(&models.Employee{}).Where("company_id = ? AND user_id IN (?)", companyID, users)

	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return PageResult[models.Employee]{}, fmt.Errorf("count employees: %w", err)
	}
	var items []models.Employee
	if err := q.Preload("User").Order("id ASC").Offset(page.offset()).Limit(page.Limit).Find(&items).Error; err != nil {
		return PageResult[models.Employee]{}, fmt.Errorf("list employees: %w", err)
	}
	return newPageResult(items, total, page), nil
}

func (s *HRService) GetEmployee(ctx context.Context, actor Actor, id uint) (*models.Employee, error) {
	if !actor.Role.IsAdmin() {
		return nil, forbiddenf("administrator role required")
	}
	var employee models.Employee
	if err := s.db.WithContext(ctx).Preload("User").Preload("Company").First(&employee, id).Error; err != nil {
		return nil, lookup(err, "employee")
	}
	// Accounts promoted out of the employee tier keep their row for history
	// but are no longer managed here.
	if employee.User.Role != models.RoleEmployee {
		return nil, notFoundf("employee not found")
	}
	if !actor.managesCompany(employee.CompanyID) {
		return nil, forbiddenf("employee belongs to another company")
	}
	return &employee, nil
}

func (s *HRService) SetEmployeeActive(ctx context.Context, actor Actor, id uint, active bool) (*models.Employee, error) {
	employee, err := s.GetEmployee(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if employee.UserID == actor.UserID {
		return nil, invalidf("cannot change your own status")
	}
	if employee.User.Role != models.RoleEmployee {
		return nil, forbiddenf("only employee accounts can be managed here")
	}
	if employee.User.IsActive == active {
		return employee, nil
	}
	if err := s.db.WithContext(ctx).Model(&employee.User).Update("is_active", active).Error; err != nil {
		return nil, fmt.Errorf("update employee status: %w", err)
	}
	employee.User.IsActive = active

	s.activity.Log(ctx, actor.UserID, ActionUserStatus, "user", employee.UserID, fmt.Sprintf("active=%t", active))
	s.invalidate(ctx, statsKey(employee.CompanyID), cachePrefixStats+"platform")
	if !active {
		companyID := employee.CompanyID
		s.publish(Event{Type: EventUserDeactivated, EntityID: employee.UserID, UserID: actor.UserID, CompanyID: &companyID})
	}
	return employee, nil
}

// employeeUsers selects the ids of users currently holding the EMPLOYEE role.
func employeeUsers(db *gorm.DB) *gorm.DB {
	return db.Model(&models.User{}).Select("id").Where("role = ?", models.RoleEmployee)
}

func statsKey(companyID uint) string {
	return cachePrefixStats + "company:" + strconv.FormatUint(uint64(companyID), 10)
}

func (s *HRService) CompanyStats(ctx context.Context, actor Actor, companyID *uint) (*CompanyStats, error) {
	id, err := actor.scopeCompany(companyID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).First(&models.Company{}, id).Error; err != nil {
		return nil, lookup(err, "company")
	}
	s.consultations.autoComplete(ctx)

	var stats CompanyStats
	err = s.cached(ctx, statsKey(id), &stats, func() error {
		return s.computeStats(ctx, id, &stats)
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *HRService) computeStats(ctx context.Context, companyID uint, out *CompanyStats) error {
	db := s.db.WithContext(ctx)
	now := s.clock()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	out.CompanyID = companyID
	out.GeneratedAt = now
	out.ConsultationsByStatus = map[string]int64{}

	employees := s.db.Model(&models.Employee{}).Select("id").Where("company_id = ?", companyID)
	activeUsers := employeeUsers(s.db).Where("is_active = ?", true)

	if err := db.Model(&models.Employee{}).
		Where("company_id = ? AND user_id IN (?)", companyID, employeeUsers(s.db)).
		Count(&out.TotalEmployees).Error; err != nil {
		return err
	}
	if err := db.Model(&models.Employee{}).
		Where("company_id = ? AND user_id IN (?)", companyID, activeUsers).
		Count(&out.ActiveEmployees).Error; err != nil {
		return err
	}
	if err := db.Model(&models.Consultation{}).
		Where("employee_id IN (?)", employees).
		Distinct("employee_id").
		Count(&out.EmployeesUsingService).Error; err != nil {
		return err
	}

	var rows []struct {
		Status string
		Count  int64
	}
	if err := db.Model(&models.Consultation{}).
		Select("status, COUNT(*) AS count").
		Where("employee_id IN (?)", employees).
		Group("status").
		Scan(&rows).Error; err != nil {
		return err
	}
	for _, r := range rows {
		out.ConsultationsByStatus[r.Status] = r.Count
	}

	if err := db.Model(&models.Consultation{}).
		Where("employee_id IN (?) AND scheduled_at >= ?", employees, monthStart).
		Count(&out.ConsultationsThisMonth).Error; err != nil {
		return err
	}
	return db.Model(&models.Invitation{}).
		Where("company_id = ? AND status = ? AND expires_at > ?", companyID, models.InvitationPending, now).
		Count(&out.PendingInvitations).Error
}
