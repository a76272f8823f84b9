package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"gorm.io/gorm"

	"huntzen-care/models"
)

type EmergencyService struct {
	*core
	activity *ActivityService
}

type ContactInput struct {
	CompanyID    *uint
	Name         string
	Phone        string
	Description  string
	Available24h bool
	Priority     int
}

type ContactUpdate struct {
	Name         *string
	Phone        *string
	Description  *string
	Available24h *bool
	Priority     *int
}

type ResourceInput struct {
	CompanyID   *uint
	Title       string
	Description string
	URL         string
	Category    string
}

type ResourceUpdate struct {
	Title       *string
	Description *string
	URL         *string
	Category    *string
}

// visibleTo limits a directory query to global entries and the actor's own
// company. Platform admins see every active entry.
func visibleTo(q *gorm.DB, actor Actor) *gorm.DB {
	q = q.Where("is_active = ?", true)
	switch {
	case actor.Role.IsPlatformAdmin():
		return q
	case actor.CompanyID != nil:
		return q.Where("company_id IS NULL OR company_id = ?", *actor.CompanyID)
	default:
		return q.Where("company_id IS NULL")
	}
}

// ownerFor resolves which tenant a new entry belongs to. nil means global.
func (s *EmergencyService) ownerFor(ctx context.Context, actor Actor, requested *uint) (*uint, error) {
	switch {
	case actor.Role == models.RoleAdminRH:
		id, err := actor.scopeCompany(requested)
		if err != nil {
			return nil, err
		}
		return &id, nil
	case actor.Role.IsPlatformAdmin():
		if requested == nil || *requested == 0 {
			return nil, nil
		}
		if err := s.db.WithContext(ctx).First(&models.Company{}, *requested).Error; err != nil {
			return nil, lookup(err, "company")
		}
		return requested, nil
	default:
		return nil, forbiddenf("administrator role required")
	}
}

// canEdit reports whether actor may change an entry owned by companyID.
// Global entries belong to the platform.
func canEdit(actor Actor, companyID *uint) bool {
	if actor.Role.IsPlatformAdmin() {
		return true
	}
	return companyID != nil && actor.managesCompany(*companyID)
}

func (s *EmergencyService) ListContacts(ctx context.Context, actor Actor) ([]models.EmergencyContact, error) {
	var out []models.EmergencyContact
	err := visibleTo(s.db.WithContext(ctx).Model(&models.EmergencyContact{}), actor).
		Order("priority DESC").Order("name ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list emergency contacts: %w", err)
	}
	return out, nil
}

func (s *EmergencyService) CreateContact(ctx context.Context, actor Actor, in ContactInput) (*models.EmergencyContact, error) {
	owner, err := s.ownerFor(ctx, actor, in.CompanyID)
	if err != nil {
		return nil, err
	}
	name, phone := strings.TrimSpace(in.Name), strings.TrimSpace(in.Phone)
	if name == "" || phone == "" {
		return nil, invalidf("name and phone are required")
	}
	contact := models.EmergencyContact{
		CompanyID:    owner,
		Name:         name,
		Phone:        phone,
		Description:  in.Description,
		Available24h: in.Available24h,
		Priority:     in.Priority,
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(&contact).Error; err != nil {
		return nil, fmt.Errorf("create emergency contact: %w", err)
	}
	s.activity.Log(ctx, actor.UserID, ActionEmergencyUpdated, "emergency_contact", contact.ID, "created")
	return &contact, nil
}

func (s *EmergencyService) loadContact(ctx context.Context, actor Actor, id uint) (*models.EmergencyContact, error) {
	var contact models.EmergencyContact
	if err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&contact).Error; err != nil {
		return nil, lookup(err, "emergency contact")
	}
	if !canEdit(actor, contact.CompanyID) {
		return nil, forbiddenf("cannot manage this emergency contact")
	}
	return &contact, nil
}

func (s *EmergencyService) UpdateContact(ctx context.Context, actor Actor, id uint, in ContactUpdate) (*models.EmergencyContact, error) {
	contact, err := s.loadContact(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	changes := map[string]interface{}{}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, invalidf("name cannot be empty")
		}
		changes["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Phone != nil {
		if strings.TrimSpace(*in.Phone) == "" {
			return nil, invalidf("phone cannot be empty")
		}
		changes["phone"] = strings.TrimSpace(*in.Phone)
	}
	if in.Description != nil {
		changes["description"] = *in.Description
	}
	if in.Available24h != nil {
		changes["available_24h"] = *in.Available24h
	}
	if in.Priority != nil {
		changes["priority"] = *in.Priority
	}
	if len(changes) == 0 {
		return contact, nil
	}
	if err := s.db.WithContext(ctx).Model(contact).Updates(changes).Error; err != nil {
		return nil, fmt.Errorf("update emergency contact: %w", err)
	}
	if err := s.db.WithContext(ctx).First(contact, id).Error; err != nil {
		return nil, err
	}
	s.activity.Log(ctx, actor.UserID, ActionEmergencyUpdated, "emergency_contact", contact.ID, "updated")
	return contact, nil
}

// DeleteContact deactivates the contact; the row is kept.
func (s *EmergencyService) DeleteContact(ctx context.Context, actor Actor, id uint) error {
	contact, err := s.loadContact(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(contact).Update("is_active", false).Error; err != nil {
		return fmt.Errorf("deactivate emergency contact: %w", err)
	}
	s.activity.Log(ctx, actor.UserID, ActionEmergencyUpdated, "emergency_contact", contact.ID, "deactivated")
	return nil
}

func (s *EmergencyService) ListResources(ctx context.Context, actor Actor, category string) ([]models.EmergencyResource, error) {
	q := visibleTo(s.db.WithContext(ctx).Model(&models.EmergencyResource{}), actor)
	if category = strings.TrimSpace(category); category != "" {
		q = q.Where("LOWER(category) = ?", strings.ToLower(category))
	}
	var out []models.EmergencyResource
	if err := q.Order("category ASC").Order("title ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list emergency resources: %w", err)
	}
	return out, nil
}

func validateResourceURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalidf("url must be an absolute http(s) address")
	}
	return nil
}

func (s *EmergencyService) CreateResource(ctx context.Context, actor Actor, in ResourceInput) (*models.EmergencyResource, error) {
	owner, err := s.ownerFor(ctx, actor, in.CompanyID)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalidf("title is required")
	}
	link := strings.TrimSpace(in.URL)
	if err := validateResourceURL(link); err != nil {
		return nil, err
	}
	resource := models.EmergencyResource{
		CompanyID:   owner,
		Title:       title,
		Description: in.Description,
		URL:         link,
		Category:    strings.TrimSpace(in.Category),
		IsActive:    true,
	}
	if err := s.db.WithContext(ctx).Create(&resource).Error; err != nil {
		return nil, fmt.Errorf("create emergency resource: %w", err)
	}
	s.activity.Log(ctx, actor.UserID, ActionEmergencyUpdated, "emergency_resource", resource.ID, "created")
	return &resource, nil
}

func (s *EmergencyService) loadResource(ctx context.Context, actor Actor, id uint) (*models.EmergencyResource, error) {
	var resource models.EmergencyResource
	if err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&resource).Error; err != nil {
		return nil, lookup(err, "emergency resource")
	}
	if !canEdit(actor, resource.CompanyID) {
		return nil, forbiddenf("cannot manage this emergency resource")
	}
	return &resource, nil
}

func (s *EmergencyService) UpdateResource(ctx context.Context, actor Actor, id uint, in ResourceUpdate) (*models.EmergencyResource, error) {
	resource, err := s.loadResource(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	changes := map[string]interface{}{}
	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return nil, invalidf("title cannot be empty")
		}
		changes["title"] = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		changes["description"] = *in.Description
	}
	if in.URL != nil {
		link := strings.TrimSpace(*in.URL)
		if err := validateResourceURL(link); err != nil {
			return nil, err
		}
		changes["url"] = link
	}
	if in.Category != nil {
		changes["category"] = strings.TrimSpace(*in.Category)
	}
	if len(changes) == 0 {
		return resource, nil
	}
	if err := s.db.WithContext(ctx).Model(resource).Updates(changes).Error; err != nil {
		return nil, fmt.Errorf("update emergency resource: %w", err)
	}
	if err := s.db.WithContext(ctx).First(resource, id).Error; err != nil {
		return nil, err
	}
	s.activity.Log(ctx, actor.UserID, ActionEmergencyUpdated, "emergency_resource", resource.ID, "updated")
	return resource, nil
}

func (s *EmergencyService) DeleteResource(ctx context.Context, actor Actor, id uint) error {
	resource, err := s.loadResource(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(resource).Update("is_active", false).Error; err != nil {
		return fmt.Errorf("deactivate emergency resource: %w", err)
	}
	s.activity.Log(ctx, actor.UserID, ActionEmergencyUpdated, "emergency_resource", resource.ID, "deactivated")
	return nil
}
