package handlers

import (
	"strings"
	"time"

	"huntzen-care/models"
	"huntzen-care/services"
)

type PageResponse[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

func toPage[M, R any](p services.PageResult[M], conv func(*M) R) PageResponse[R] {
	items := make([]R, 0, len(p.Items))
	for i := range p.Items {
		items = append(items, conv(&p.Items[i]))
	}
	return PageResponse[R]{Items: items, Total: p.Total, Page: p.Page, Limit: p.Limit}
}

func toList[M, R any](in []M, conv func(*M) R) []R {
	out := make([]R, 0, len(in))
	for i := range in {
		out = append(out, conv(&in[i]))
	}
	return out
}

func splitList(v string) []string {
	out := []string{}
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinList(items []string) string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if v := strings.TrimSpace(item); v != "" {
			out = append(out, v)
		}
	}
	return strings.Join(out, ",")
}

type UserResponse struct {
	ID          uint        `json:"id"`
	Email       string      `json:"email"`
	FirstName   string      `json:"first_name"`
	LastName    string      `json:"last_name"`
	Role        models.Role `json:"role"`
	CompanyID   *uint       `json:"company_id,omitempty"`
	IsActive    bool        `json:"is_active"`
	LastLoginAt *time.Time  `json:"last_login_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Role:        u.Role,
		CompanyID:   u.CompanyID,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

// PublicUserResponse is what other users see of an account.
type PublicUserResponse struct {
	ID        uint        `json:"id"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Role      models.Role `json:"role"`
}

func toPublicUser(u *models.User) PublicUserResponse {
	return PublicUserResponse{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Role: u.Role}
}

type CompanyResponse struct {
	ID           uint      `json:"id"`
	Name         string    `json:"name"`
	Domain       string    `json:"domain,omitempty"`
	Address      string    `json:"address,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	MaxEmployees int       `json:"max_employees"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

func toCompanyResponse(c *models.Company) CompanyResponse {
	return CompanyResponse{
		ID:           c.ID,
		Name:         c.Name,
		Domain:       c.Domain,
		Address:      c.Address,
		Phone:        c.Phone,
		MaxEmployees: c.MaxEmployees,
		IsActive:     c.IsActive,
		CreatedAt:    c.CreatedAt,
	}
}

type EmployeeResponse struct {
	ID         uint         `json:"id"`
	CompanyID  uint         `json:"company_id"`
	Department string       `json:"department,omitempty"`
	Position   string       `json:"position,omitempty"`
	Phone      string       `json:"phone,omitempty"`
	User       UserResponse `json:"user"`
}

func toEmployeeResponse(e *models.Employee) EmployeeResponse {
	return EmployeeResponse{
		ID:         e.ID,
		CompanyID:  e.CompanyID,
		Department: e.Department,
		Position:   e.Position,
		Phone:      e.Phone,
		User:       toUserResponse(&e.User),
	}
}

type AvailabilityResponse struct {
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func toAvailabilityResponse(a *models.Availability) AvailabilityResponse {
	return AvailabilityResponse{DayOfWeek: a.DayOfWeek, StartTime: a.StartTime, EndTime: a.EndTime}
}

type PractitionerResponse struct {
	ID              uint                   `json:"id"`
	UserID          uint                   `json:"user_id"`
	FirstName       string                 `json:"first_name"`
	LastName        string                 `json:"last_name"`
	Specialty       string                 `json:"specialty"`
	Bio             string                 `json:"bio,omitempty"`
	Languages       []string               `json:"languages"`
	YearsExperience int                    `json:"years_experience"`
	IsVerified      bool                   `json:"is_verified"`
	IsAvailable     bool                   `json:"is_available"`
	Availability    []AvailabilityResponse `json:"availability,omitempty"`
}

func toPractitionerResponse(p *models.Practitioner) PractitionerResponse {
	return PractitionerResponse{
		ID:              p.ID,
		UserID:          p.UserID,
		FirstName:       p.User.FirstName,
		LastName:        p.User.LastName,
		Specialty:       p.Specialty,
		Bio:             p.Bio,
		Languages:       splitList(p.Languages),
		YearsExperience: p.YearsExperience,
		IsVerified:      p.IsVerified,
		IsAvailable:     p.IsAvailable,
		Availability:    toList(p.Availabilities, toAvailabilityResponse),
	}
}

type ConsultationResponse struct {
	ID               uint                      `json:"id"`
	EmployeeID       uint                      `json:"employee_id"`
	EmployeeName     string                    `json:"employee_name"`
	PractitionerID   uint                      `json:"practitioner_id"`
	PractitionerName string                    `json:"practitioner_name"`
	Specialty        string                    `json:"specialty"`
	ScheduledAt      time.Time                 `json:"scheduled_at"`
	EndAt            time.Time                 `json:"end_at"`
	Duration         int                       `json:"duration"`
	Type             models.ConsultationType   `json:"type"`
	Status           models.ConsultationStatus `json:"status"`
	Reason           string                    `json:"reason,omitempty"`
	Notes            string                    `json:"notes,omitempty"`
	CancelReason     string                    `json:"cancel_reason,omitempty"`
	CancelledAt      *time.Time                `json:"cancelled_at,omitempty"`
	CompletedAt      *time.Time                `json:"completed_at,omitempty"`
	CreatedAt        time.Time                 `json:"created_at"`
}

func toConsultationResponse(c *models.Consultation) ConsultationResponse {
	return ConsultationResponse{
		ID:               c.ID,
		EmployeeID:       c.EmployeeID,
		EmployeeName:     c.Employee.User.FullName(),
		PractitionerID:   c.PractitionerID,
		PractitionerName: c.Practitioner.User.FullName(),
		Specialty:        c.Practitioner.Specialty,
		ScheduledAt:      c.ScheduledAt,
		EndAt:            c.EndAt,
		Duration:         c.Duration,
		Type:             c.Type,
		Status:           c.Status,
		Reason:           c.Reason,
		Notes:            c.Notes,
		CancelReason:     c.CancelReason,
		CancelledAt:      c.CancelledAt,
		CompletedAt:      c.CompletedAt,
		CreatedAt:        c.CreatedAt,
	}
}

type MessageResponse struct {
	ID             uint       `json:"id"`
	SenderID       uint       `json:"sender_id"`
	ReceiverID     uint       `json:"receiver_id"`
	ConsultationID *uint      `json:"consultation_id,omitempty"`
	Content        string     `json:"content"`
	IsRead         bool       `json:"is_read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toMessageResponse(m *models.Message) MessageResponse {
	return MessageResponse{
		ID:             m.ID,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		ConsultationID: m.ConsultationID,
		Content:        m.Content,
		IsRead:         m.IsRead,
		ReadAt:         m.ReadAt,
		CreatedAt:      m.CreatedAt,
	}
}

type ConversationResponse struct {
	User        PublicUserResponse `json:"user"`
	LastMessage MessageResponse    `json:"last_message"`
	UnreadCount int64              `json:"unread_count"`
}

func toConversationResponse(s *services.ConversationSummary) ConversationResponse {
	return ConversationResponse{
		User:        toPublicUser(&s.User),
		LastMessage: toMessageResponse(&s.LastMessage),
		UnreadCount: s.UnreadCount,
	}
}

type NotificationResponse struct {
	ID        uint                    `json:"id"`
	Type      models.NotificationType `json:"type"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	Link      string                  `json:"link,omitempty"`
	IsRead    bool                    `json:"is_read"`
	ReadAt    *time.Time              `json:"read_at,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

func toNotificationResponse(n *models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Link:      n.Link,
		IsRead:    n.IsRead,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}

type JournalEntryResponse struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Mood      int       `json:"mood"`
	Tags      []string  `json:"tags"`
	IsPrivate bool      `json:"is_private"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toJournalEntryResponse(e *models.JournalEntry) JournalEntryResponse {
	return JournalEntryResponse{
		ID:        e.ID,
		Title:     e.Title,
		Content:   e.Content,
		Mood:      e.Mood,
		Tags:      splitList(e.Tags),
		IsPrivate: e.IsPrivate,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

type InvitationResponse struct {
	ID          uint                    `json:"id"`
	Email       string                  `json:"email"`
	CompanyID   uint                    `json:"company_id"`
	CompanyName string                  `json:"company_name,omitempty"`
	Role        models.Role             `json:"role"`
	Status      models.InvitationStatus `json:"status"`
	Token       string                  `json:"token,omitempty"`
	ExpiresAt   time.Time               `json:"expires_at"`
	AcceptedAt  *time.Time              `json:"accepted_at,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
}

// toInvitationResponse leaves the token out; only the creator receives it.
func toInvitationResponse(inv *models.Invitation) InvitationResponse {
	return InvitationResponse{
		ID:          inv.ID,
		Email:       inv.Email,
		CompanyID:   inv.CompanyID,
		CompanyName: inv.Company.Name,
		Role:        inv.Role,
		Status:      inv.Status,
		ExpiresAt:   inv.ExpiresAt,
		AcceptedAt:  inv.AcceptedAt,
		CreatedAt:   inv.CreatedAt,
	}
}

type ContactResponse struct {
	ID           uint   `json:"id"`
	CompanyID    *uint  `json:"company_id,omitempty"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Description  string `json:"description,omitempty"`
	Available24h bool   `json:"available_24h"`
	Priority     int    `json:"priority"`
}

func toContactResponse(c *models.EmergencyContact) ContactResponse {
	return ContactResponse{
		ID:           c.ID,
		CompanyID:    c.CompanyID,
		Name:         c.Name,
		Phone:        c.Phone,
		Description:  c.Description,
		Available24h: c.Available24h,
		Priority:     c.Priority,
	}
}

type ResourceResponse struct {
	ID          uint   `json:"id"`
	CompanyID   *uint  `json:"company_id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Category    string `json:"category,omitempty"`
}

func toResourceResponse(r *models.EmergencyResource) ResourceResponse {
	return ResourceResponse{
		ID:          r.ID,
		CompanyID:   r.CompanyID,
		Title:       r.Title,
		Description: r.Description,
		URL:         r.URL,
		Category:    r.Category,
	}
}

type ActivityResponse struct {
	ID         uint      `json:"id"`
	UserID     *uint     `json:"user_id,omitempty"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type,omitempty"`
	EntityID   *uint     `json:"entity_id,omitempty"`
	Details    string    `json:"details,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func toActivityResponse(a *models.ActivityLog) ActivityResponse {
	return ActivityResponse{
		ID:         a.ID,
		UserID:     a.UserID,
		Action:     a.Action,
		EntityType: a.EntityType,
		EntityID:   a.EntityID,
		Details:    a.Details,
		IPAddress:  a.IPAddress,
		CreatedAt:  a.CreatedAt,
	}
}
