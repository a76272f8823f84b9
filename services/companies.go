package services

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"huntzen-care/models"
)

type CompanyService struct {
	*core
	activity *ActivityService
}

type CompanyInput struct {
	Name         string
	Domain       string
	Address      string
	Phone        string
	MaxEmployees int
}

// CompanyUpdate holds optional changes; nil fields are left untouched.
type CompanyUpdate struct {
	Name         *string
	Domain       *string
	Address      *string
	Phone        *string
	MaxEmployees *int
}

type CompanyFilter struct {
	Search string
	Active *bool
	Page   Page
}

func (s *CompanyService) Create(ctx context.Context, actor Actor, in CompanyInput) (*models.Company, error) {
	if err := actor.requirePlatformAdmin(); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalidf("company name is required")
	}
	if in.MaxEmployees < 0 {
		return nil, invalidf("max employees cannot be negative")
	}
	if err := s.ensureNameFree(ctx, name, 0); err != nil {
		return nil, err
	}

	company := models.Company{
		Name:         name,
		Domain:       strings.TrimSpace(in.Domain),
		Address:      in.Address,
		Phone:        in.Phone,
		MaxEmployees: in.MaxEmployees,
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(&company).Error; err != nil {
		return nil, fmt.Errorf("create company: %w", err)
	}
	s.activity.Log(ctx, actor.UserID, ActionCompanyCreated, "company", company.ID, company.Name)
	s.invalidate(ctx, cachePrefixStats)
	return &company, nil
}

func (s *CompanyService) ensureNameFree(ctx context.Context, name string, exceptID uint) error {
	q := s.db.WithContext(ctx).Model(&models.Company{}).Where("LOWER(name) = ?", strings.ToLower(name))
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return fmt.Errorf("check company name: %w", err)
	}
	if count > 0 {
		return conflictf("company %q already exists", name)
	}
	return nil
}

func (s *CompanyService) List(ctx context.Context, actor Actor, f CompanyFilter) (PageResult[models.Company], error) {
	if err := actor.requirePlatformAdmin(); err != nil {
		return PageResult[models.Company]{}, err
	}
	page := f.Page.normalize()
	q := s.db.WithContext(ctx).Model(&models.Company{})
	if f.Search != "" {
		pattern := likePattern(f.Search)
		q = q.Where("LOWER(name) LIKE ? ESCAPE '\\' OR LOWER(domain) LIKE ? ESCAPE '\\'", pattern, pattern)
	}
	if f.Active != nil {
		q = q.Where("is_active = ?", *f.Active)
	}

	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return PageResult[models.Company]{}, fmt.Errorf("count companies: %w", err)
	}
	var items []models.Company
	if err := q.Order("name ASC").Offset(page.offset()).Limit(page.Limit).Find(&items).Error; err != nil {
		return PageResult[models.Company]{}, fmt.Errorf("list companies: %w", err)
	}
	return newPageResult(items, total, page), nil
}

func (s *CompanyService) Get(ctx context.Context, actor Actor, id uint) (*models.Company, error) {
	if !actor.managesCompany(id) {
		return nil, forbiddenf("cannot access this company")
	}
	var company models.Company
	if err := s.db.WithContext(ctx).First(&company, id).Error; err != nil {
		return nil, lookup(err, "company")
	}
	return &company, nil
}

// Update lets platform admins change anything and HR admins edit their own
// company's contact details.
func (s *CompanyService) Update(ctx context.Context, actor Actor, id uint, in CompanyUpdate) (*models.Company, error) {
	company, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsPlatformAdmin() && (in.MaxEmployees != nil || in.Name != nil) {
		return nil, forbiddenf("only platform administrators can change the name or employee limit")
	}

	changes := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, invalidf("company name cannot be empty")
		}
		if err := s.ensureNameFree(ctx, name, company.ID); err != nil {
			return nil, err
		}
		changes["name"] = name
	}
	if in.Domain != nil {
		changes["domain"] = strings.TrimSpace(*in.Domain)
	}
	if in.Address != nil {
		changes["address"] = *in.Address
	}
	if in.Phone != nil {
		changes["phone"] = *in.Phone
	}
	if in.MaxEmployees != nil {
		if *in.MaxEmployees < 0 {
			return nil, invalidf("max employees cannot be negative")
		}
		changes["max_employees"] = *in.MaxEmployees
	}
	if len(changes) == 0 {
		return company, nil
	}

	if err := s.db.WithContext(ctx).Model(company).Updates(changes).Error; err != nil {
		return nil, fmt.Errorf("update company: %w", err)
	}
	if err := s.db.WithContext(ctx).First(company, id).Error; err != nil {
		return nil, err
	}
	s.activity.Log(ctx, actor.UserID, ActionCompanyUpdated, "company", company.ID, "")
	s.publish(Event{Type: EventCompanyUpdated, EntityID: company.ID, UserID: actor.UserID, CompanyID: &company.ID})
	return company, nil
}

func (s *CompanyService) SetActive(ctx context.Context, actor Actor, id uint, active bool) (*models.Company, error) {
	if err := actor.requirePlatformAdmin(); err != nil {
		return nil, err
	}
	var company models.Company
	if err := s.db.WithContext(ctx).First(&company, id).Error; err != nil {
		return nil, lookup(err, "company")
	}
	if company.IsActive == active {
		return &company, nil
	}
	if err := s.db.WithContext(ctx).Model(&company).Update("is_active", active).Error; err != nil {
		return nil, fmt.Errorf("update company status: %w", err)
	}
	company.IsActive = active

	s.activity.Log(ctx, actor.UserID, ActionCompanyStatus, "company", company.ID, fmt.Sprintf("active=%t", active))
	s.invalidate(ctx, cachePrefixStats)
	s.publish(Event{Type: EventCompanyUpdated, EntityID: company.ID, UserID: actor.UserID, CompanyID: &company.ID})
	return &company, nil
}
