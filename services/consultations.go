package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"huntzen-care/models"
	"huntzen-care/monitoring"
)

const (
	defaultDuration = 60
	minDuration     = 15
	maxDuration     = 180
)

func validateDuration(minutes int) error {
	if minutes < minDuration || minutes > maxDuration {
		return invalidf("duration must be between %d and %d minutes", minDuration, maxDuration)
	}
	return nil
}

type ConsultationService struct {
	*core
	notifications *NotificationService
	activity      *ActivityService
}

type BookInput struct {
	PractitionerID uint
	ScheduledAt    time.Time
	Duration       int
	Type           models.ConsultationType
	Reason         string
}

type ConsultationFilter struct {
	Status    models.ConsultationStatus
	From      *time.Time
	To        *time.Time
	CompanyID *uint
	Page      Page
}

// autoComplete runs AutoCompletePast at the current time. Errors are logged.
func (s *ConsultationService) autoComplete(ctx context.Context) {
	if _, err := s.AutoCompletePast(ctx, s.clock()); err != nil {
		s.sideEffectFailed("auto_complete", err)
	}
}

// AutoCompletePast marks every scheduled or confirmed consultation that ended
// at or before now as completed and returns how many changed.
func (s *ConsultationService) AutoCompletePast(ctx context.Context, now time.Time) (int64, error) {
	now = now.UTC()
	res := s.db.WithContext(ctx).Model(&models.Consultation{}).
		Where("status IN ? AND end_at <= ?", models.ActiveStatuses, now).
		Updates(map[string]interface{}{
			"status":       models.StatusCompleted,
			"completed_at": now,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("auto-complete consultations: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		monitoring.ConsultationTransitions.WithLabelValues(string(models.StatusCompleted)).Add(float64(res.RowsAffected))
		s.invalidate(ctx, cachePrefixStats)
		s.log.Info("auto-completed past consultations", "count", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

func (s *ConsultationService) Book(ctx context.Context, actor Actor, in BookInput) (*models.Consultation, error) {
	if err := actor.require(models.RoleEmployee); err != nil {
		return nil, err
	}
	duration := in.Duration
	if duration == 0 {
		duration = defaultDuration
	}
	if err := validateDuration(duration); err != nil {
		return nil, err
	}
	typ := in.Type
	if typ == "" {
		typ = models.TypeVideo
	}
	if !typ.Valid() {
		return nil, invalidf("unknown consultation type %q", typ)
	}
	start := in.ScheduledAt.UTC().Truncate(time.Minute)
	if !start.After(s.clock()) {
		return nil, invalidf("consultation must be scheduled in the future")
	}
	end := start.Add(time.Duration(duration) * time.Minute)

	var employee models.Employee
	if err := s.db.WithContext(ctx).Preload("User").Where("user_id = ?", actor.UserID).First(&employee).Error; err != nil {
		return nil, lookup(err, "employee profile")
	}

	practitioner, err := s.bookablePractitioner(ctx, in.PractitionerID, true, start, end)
	if err != nil {
		return nil, err
	}

	s.autoComplete(ctx)
	if err := s.checkOverlap(ctx, employee.ID, practitioner.ID, start, end, 0); err != nil {
		return nil, err
	}

	c := models.Consultation{
		EmployeeID:     employee.ID,
		PractitionerID: practitioner.ID,
		ScheduledAt:    start,
		EndAt:          end,
		Duration:       duration,
		Type:           typ,
		Status:         models.StatusScheduled,
		Reason:         strings.TrimSpace(in.Reason),
	}
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, fmt.Errorf("create consultation: %w", err)
	}
	c.Employee = employee
	c.Practitioner = *practitioner

	monitoring.ConsultationTransitions.WithLabelValues(string(models.StatusScheduled)).Inc()
	s.notifications.Notify(ctx, practitioner.UserID, models.NotificationConsultation,
		"New consultation booked",
		fmt.Sprintf("%s booked a %s consultation on %s", employee.User.FullName(), strings.ToLower(string(typ)), start.Format(time.RFC1123)),
		consultationLink(c.ID))
	s.activity.Log(ctx, actor.UserID, ActionConsultationBooked, "consultation", c.ID, start.Format(time.RFC3339))
	s.changed(ctx, EventConsultationBooked, &c, actor)
	return redact(actor, &c), nil
}

// checkOverlap rejects a slot already taken by either participant.
func (s *ConsultationService) checkOverlap(ctx context.Context, employeeID, practitionerID uint, start, end time.Time, exceptID uint) error {
	for _, side := range []struct {
		column string
		id     uint
		msg    string
	}{
		{"practitioner_id", practitionerID, "practitioner already has a consultation at this time"},
		{"employee_id", employeeID, "you already have a consultation at this time"},
	} {
		q := s.db.WithContext(ctx).Model(&models.Consultation{}).
			Where(side.column+" = ? AND status IN ? AND scheduled_at < ? AND end_at > ?", side.id, models.ActiveStatuses, end, start)
		if exceptID != 0 {
			q = q.Where("id <> ?", exceptID)
		}
		var n int64
		if err := q.Count(&n).Error; err != nil {
			return fmt.Errorf("check overlap: %w", err)
		}
		if n > 0 {
			return conflictf("%s", side.msg)
		}
	}
	return nil
}

func (s *ConsultationService) List(ctx context.Context, actor Actor, f ConsultationFilter) (PageResult[models.Consultation], error) {
	page := f.Page.normalize()
	s.autoComplete(ctx)

	q := s.db.WithContext(ctx).Model(&models.Consultation{})
	switch {
	case actor.Role == models.RoleEmployee:
		mine := s.db.Model(&models.Employee{}).Select("id").Where("user_id = ?", actor.UserID)
		q = q.Where("employee_id IN (?)", mine)
	case actor.Role == models.RolePractitioner:
		mine := s.db.Model(&models.Practitioner{}).Select("id").Where("user_id = ?", actor.UserID)
		q = q.Where("practitioner_id IN (?)", mine)
	case actor.Role == models.RoleAdminRH:
		companyID, err := actor.scopeCompany(f.CompanyID)
		if err != nil {
			return PageResult[models.Consultation]{}, err
		}
		staff := s.db.Model(&models.Employee{}).Select("id").Where("company_id = ?", companyID)
		q = q.Where("employee_id IN (?)", staff)
	case actor.Role.IsPlatformAdmin():
		if f.CompanyID != nil {
			staff := s.db.Model(&models.Employee{}).Select("id").Where("company_id = ?", *f.CompanyID)
			q = q.Where("employee_id IN (?)", staff)
		}
	default:
		return PageResult[models.Consultation]{}, forbiddenf("role %s cannot list consultations", actor.Role)
	}

	if f.Status != "" {
		if !f.Status.Valid() {
			return PageResult[models.Consultation]{}, invalidf("unknown status %q", f.Status)
		}
		q = q.Where("status = ?", f.Status)
	}
	if f.From != nil {
		q = q.Where("scheduled_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("scheduled_at <= ?", f.To.UTC())
	}

	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return PageResult[models.Consultation]{}, fmt.Errorf("count consultations: %w", err)
	}
	var items []models.Consultation
	err := q.Preload("Employee.User").Preload("Practitioner.User").
		Order("scheduled_at DESC").Order("id DESC").
		Offset(page.offset()).Limit(page.Limit).
		Find(&items).Error
	if err != nil {
		return PageResult[models.Consultation]{}, fmt.Errorf("list consultations: %w", err)
	}
	for i := range items {
		redact(actor, &items[i])
	}
	return newPageResult(items, total, page), nil
}

func (s *ConsultationService) Get(ctx context.Context, actor Actor, id uint) (*models.Consultation, error) {
	s.autoComplete(ctx)
	c, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return redact(actor, c), nil
}

// load fetches a consultation the actor is allowed to see.
func (s *ConsultationService) load(ctx context.Context, actor Actor, id uint) (*models.Consultation, error) {
	var c models.Consultation
	err := s.db.WithContext(ctx).Preload("Employee.User").Preload("Practitioner.User").First(&c, id).Error
	if err != nil {
		return nil, lookup(err, "consultation")
	}
	if !canView(actor, &c) {
		return nil, notFoundf("consultation not found")
	}
	return &c, nil
}

func canView(actor Actor, c *models.Consultation) bool {
	return isParticipant(actor, c) || actor.managesCompany(c.Employee.CompanyID)
}

func isParticipant(actor Actor, c *models.Consultation) bool {
	return c.Employee.UserID == actor.UserID || c.Practitioner.UserID == actor.UserID
}

// redact strips what the actor may not read: clinical notes are for the
// practitioner only and administrators never see the reason either.
func redact(actor Actor, c *models.Consultation) *models.Consultation {
	c.Employee.User.PasswordHash = ""
	c.Practitioner.User.PasswordHash = ""
	if c.Practitioner.UserID != actor.UserID {
		c.Notes = ""
	}
	if !isParticipant(actor, c) {
		c.Reason = ""
	}
	return c
}

func (s *ConsultationService) requirePractitioner(actor Actor, c *models.Consultation) error {
	if c.Practitioner.UserID != actor.UserID {
		return forbiddenf("only the consultation's practitioner can do this")
	}
	return nil
}

func (s *ConsultationService) requireParticipant(actor Actor, c *models.Consultation) error {
	if !isParticipant(actor, c) {
		return forbiddenf("only participants can change this consultation")
	}
	return nil
}

// update writes changes and reloads c.
func (s *ConsultationService) update(ctx context.Context, c *models.Consultation, changes map[string]interface{}) error {
	err := s.db.WithContext(ctx).Model(&models.Consultation{}).Where("id = ?", c.ID).Updates(changes).Error
	if err != nil {
		return fmt.Errorf("update consultation: %w", err)
	}
	return s.db.WithContext(ctx).Preload("Employee.User").Preload("Practitioner.User").First(c, c.ID).Error
}

// changed fans out the shared side effects of a consultation mutation.
func (s *ConsultationService) changed(ctx context.Context, event string, c *models.Consultation, actor Actor) {
	companyID := c.Employee.CompanyID
	s.invalidate(ctx, statsKey(companyID), cachePrefixStats+"platform")
	s.publish(Event{Type: event, EntityID: c.ID, UserID: actor.UserID, CompanyID: &companyID})
}

// counterpart returns the participant who did not act.
func counterpart(actor Actor, c *models.Consultation) (uint, string) {
	if c.Employee.UserID == actor.UserID {
		return c.Practitioner.UserID, c.Employee.User.FullName()
	}
	return c.Employee.UserID, c.Practitioner.User.FullName()
}

func consultationLink(id uint) string {
	return fmt.Sprintf("/consultations/%d", id)
}

func (s *ConsultationService) Confirm(ctx context.Context, actor Actor, id uint) (*models.Consultation, error) {
	s.autoComplete(ctx)
	c, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.requirePractitioner(actor, c); err != nil {
		return nil, err
	}
	switch c.Status {
	case models.StatusConfirmed:
		return redact(actor, c), nil
	case models.StatusScheduled:
	default:
		return nil, conflictf("cannot confirm a %s consultation", strings.ToLower(string(c.Status)))
	}

	if err := s.update(ctx, c, map[string]interface{}{"status": models.StatusConfirmed}); err != nil {
		return nil, err
	}
	monitoring.ConsultationTransitions.WithLabelValues(string(models.StatusConfirmed)).Inc()
	s.notifications.Notify(ctx, c.Employee.UserID, models.NotificationConsultation,
		"Consultation confirmed",
		fmt.Sprintf("%s confirmed your consultation on %s", c.Practitioner.User.FullName(), c.ScheduledAt.Format(time.RFC1123)),
		consultationLink(c.ID))
	s.activity.Log(ctx, actor.UserID, ActionConsultationConfirmed, "consultation", c.ID, "")
	s.changed(ctx, EventConsultationChanged, c, actor)
	return redact(actor, c), nil
}

// Cancel is idempotent: cancelling a cancelled consultation returns it as is.
func (s *ConsultationService) Cancel(ctx context.Context, actor Actor, id uint, reason string) (*models.Consultation, error) {
	s.autoComplete(ctx)
	c, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(actor, c); err != nil {
		return nil, err
	}
	switch c.Status {
	case models.StatusCancelled:
		return redact(actor, c), nil
	case models.StatusCompleted:
		return nil, conflictf("cannot cancel a completed consultation")
	}

	now := s.clock()
	err = s.update(ctx, c, map[string]interface{}{
		"status":          models.StatusCancelled,
		"cancel_reason":   strings.TrimSpace(reason),
		"cancelled_by_id": actor.UserID,
		"cancelled_at":    now,
	})
	if err != nil {
		return nil, err
	}

	monitoring.ConsultationTransitions.WithLabelValues(string(models.StatusCancelled)).Inc()
	other, name := counterpart(actor, c)
	s.notifications.Notify(ctx, other, models.NotificationConsultation,
		"Consultation cancelled",
		fmt.Sprintf("%s cancelled the consultation on %s", name, c.ScheduledAt.Format(time.RFC1123)),
		consultationLink(c.ID))
	s.activity.Log(ctx, actor.UserID, ActionConsultationCancelled, "consultation", c.ID, c.CancelReason)
	s.changed(ctx, EventConsultationCancelled, c, actor)
	return redact(actor, c), nil
}

// Complete closes a consultation that has started. Completing it twice
// returns the current record.
func (s *ConsultationService) Complete(ctx context.Context, actor Actor, id uint, notes string) (*models.Consultation, error) {
	s.autoComplete(ctx)
	c, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.requirePractitioner(actor, c); err != nil {
		return nil, err
	}
	switch c.Status {
	case models.StatusCompleted:
		return redact(actor, c), nil
	case models.StatusCancelled:
		return nil, conflictf("cannot complete a cancelled consultation")
	}
	now := s.clock()
	if c.ScheduledAt.After(now) {
		return nil, conflictf("consultation has not started yet")
	}

	changes := map[string]interface{}{
		"status":       models.StatusCompleted,
		"completed_at": now,
	}
	if notes = strings.TrimSpace(notes); notes != "" {
		changes["notes"] = notes
	}
	if err := s.update(ctx, c, changes); err != nil {
		return nil, err
	}

	monitoring.ConsultationTransitions.WithLabelValues(string(models.StatusCompleted)).Inc()
	s.notifications.Notify(ctx, c.Employee.UserID, models.NotificationConsultation,
		"Consultation completed",
		fmt.Sprintf("Your consultation with %s is complete", c.Practitioner.User.FullName()),
		consultationLink(c.ID))
	s.activity.Log(ctx, actor.UserID, ActionConsultationCompleted, "consultation", c.ID, "")
	s.changed(ctx, EventConsultationCompleted, c, actor)
	return redact(actor, c), nil
}

// bookablePractitioner loads a verified, active practitioner whose weekly
// availability covers [start, end). requireOpen also demands that the
// practitioner accepts new consultations.
func (s *ConsultationService) bookablePractitioner(ctx context.Context, id uint, requireOpen bool, start, end time.Time) (*models.Practitioner, error) {
	var practitioner models.Practitioner
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Availabilities", "is_active = ?", true).
		First(&practitioner, id).Error
	if err != nil {
		return nil, lookup(err, "practitioner")
	}
	if !practitioner.IsVerified || !practitioner.User.IsActive {
		return nil, notFoundf("practitioner not found")
	}
	if requireOpen && !practitioner.IsAvailable {
		return nil, invalidf("practitioner is not accepting new consultations")
	}
	if !fitsAvailability(practitioner.Availabilities, start, end) {
		return nil, invalidf("requested time is outside the practitioner's availability")
	}
	return &practitioner, nil
}

// Reschedule moves an open consultation. It goes back to SCHEDULED so the
// practitioner confirms the new time.
func (s *ConsultationService) Reschedule(ctx context.Context, actor Actor, id uint, scheduledAt time.Time, duration int) (*models.Consultation, error) {
	s.autoComplete(ctx)
	c, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(actor, c); err != nil {
		return nil, err
	}
	if c.Status != models.StatusScheduled && c.Status != models.StatusConfirmed {
		return nil, conflictf("cannot reschedule a %s consultation", strings.ToLower(string(c.Status)))
	}
	if duration == 0 {
		duration = c.Duration
	}
	if err := validateDuration(duration); err != nil {
		return nil, err
	}
	start := scheduledAt.UTC().Truncate(time.Minute)
	if !start.After(s.clock()) {
		return nil, invalidf("consultation must be scheduled in the future")
	}
	end := start.Add(time.Duration(duration) * time.Minute)

	// A practitioner who paused new bookings may still move their own.
	requireOpen := c.Practitioner.UserID != actor.UserID
	if _, err := s.bookablePractitioner(ctx, c.PractitionerID, requireOpen, start, end); err != nil {
		return nil, err
	}
	if err := s.checkOverlap(ctx, c.EmployeeID, c.PractitionerID, start, end, c.ID); err != nil {
		return nil, err
	}

	previous := c.ScheduledAt
	err = s.update(ctx, c, map[string]interface{}{
		"scheduled_at": start,
		"end_at":       end,
		"duration":     duration,
		"status":       models.StatusScheduled,
	})
	if err != nil {
		return nil, err
	}

	monitoring.ConsultationTransitions.WithLabelValues(string(models.StatusScheduled)).Inc()
	other, name := counterpart(actor, c)
	s.notifications.Notify(ctx, other, models.NotificationConsultation,
		"Consultation rescheduled",
		fmt.Sprintf("%s moved the consultation from %s to %s", name, previous.Format(time.RFC1123), start.Format(time.RFC1123)),
		consultationLink(c.ID))
	s.activity.Log(ctx, actor.UserID, ActionConsultationMoved, "consultation", c.ID,
		previous.Format(time.RFC3339)+" -> "+start.Format(time.RFC3339))
	s.changed(ctx, EventConsultationChanged, c, actor)
	return redact(actor, c), nil
}

func (s *ConsultationService) UpdateNotes(ctx context.Context, actor Actor, id uint, notes string) (*models.Consultation, error) {
	c, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.requirePractitioner(actor, c); err != nil {
		return nil, err
	}
	if c.Status == models.StatusCancelled {
		return nil, conflictf("cannot add notes to a cancelled consultation")
	}
	if err := s.update(ctx, c, map[string]interface{}{"notes": notes}); err != nil {
		return nil, err
	}
	return redact(actor, c), nil
}
