package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huntzen-care/models"
)

func TestBookRejectsOverlappingSlots(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.company(t, "Acme")
	alice, _ := env.employee(t, acme)
	bob, _ := env.employee(t, acme)
	_, drA := env.practitioner(t, "anxiety", true)
	_, drB := env.practitioner(t, "burnout", true)

	first := env.book(t, alice, drA.ID, env.tomorrowAt(10, 0), 60)
	assert.Equal(t, models.StatusScheduled, first.Status)
	assert.WithinDuration(t, env.tomorrowAt(11, 0), first.EndAt, 0)

	_, err := env.svc.Consultations.Book(ctx, bob, BookInput{PractitionerID: drA.ID, ScheduledAt: env.tomorrowAt(10, 30)})
	assert.ErrorIs(t, err, ErrConflict, "practitioner is busy")

	_, err = env.svc.Consultations.Book(ctx, alice, BookInput{PractitionerID: drB.ID, ScheduledAt: env.tomorrowAt(10, 30)})
	assert.ErrorIs(t, err, ErrConflict, "employee is busy")

	adjacent := env.book(t, bob, drA.ID, env.tomorrowAt(11, 0), 30)
	assert.WithinDuration(t, env.tomorrowAt(11, 0), adjacent.ScheduledAt, 0)
}

func TestBookFreesSlotOfCancelledConsultation(t *testing.T) {
	env := newTestEnv(t)
	acme := env.company(t, "Acme")
	alice, _ := env.employee(t, acme)
	bob, _ := env.employee(t, acme)
	_, dr := env.practitioner(t, "anxiety", true)

	c := env.book(t, alice, dr.ID, env.tomorrowAt(10, 0), 60)
	_, err := env.svc.Consultations.Cancel(context.Background(), alice, c.ID, "conflict")
	require.NoError(t, err)

	env.book(t, bob, dr.ID, env.tomorrowAt(10, 0), 60)
}

func TestBookValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.company(t, "Acme")
	alice, _ := env.employee(t, acme)
	drActor, dr := env.practitioner(t, "anxiety", true)
	_, hidden := env.practitioner(t, "grief", false)

	tests := []struct {
		name  string
		actor Actor
		in    BookInput
		want  error
	}{
		{"practitioner cannot book", drActor, BookInput{PractitionerID: dr.ID, ScheduledAt: env.tomorrowAt(9, 0)}, ErrForbidden},
		{"past slot", alice, BookInput{PractitionerID: dr.ID, ScheduledAt: env.now.Add(-time.Hour)}, ErrInvalid},
		{"duration too short", alice, BookInput{PractitionerID: dr.ID, ScheduledAt: env.tomorrowAt(9, 0), Duration: 5}, ErrInvalid},
		{"duration too long", alice, BookInput{PractitionerID: dr.ID, ScheduledAt: env.tomorrowAt(9, 0), Duration: 240}, ErrInvalid},
		{"unknown type", alice, BookInput{PractitionerID: dr.ID, ScheduledAt: env.tomorrowAt(9, 0), Type: "CARRIER_PIGEON"}, ErrInvalid},
		{"unverified practitioner", alice, BookInput{PractitionerID: hidden.ID, ScheduledAt: env.tomorrowAt(9, 0)}, ErrNotFound},
		{"missing practitioner", alice, BookInput{PractitionerID: 999, ScheduledAt: env.tomorrowAt(9, 0)}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Consultations.Book(ctx, tt.actor, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBookRespectsAvailability(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.company(t, "Acme")
	alice, _ := env.employee(t, acme)
	drActor, dr := env.practitioner(t, "anxiety", true)

	_, err := env.svc.Practitioners.SetAvailability(ctx, drActor, []AvailabilitySlot{
		{DayOfWeek: int(time.Tuesday), StartTime: "09:00", EndTime: "12:00"},
	})
	require.NoError(t, err)

	_, err = env.svc.Consultations.Book(ctx, alice, BookInput{PractitionerID: dr.ID, ScheduledAt: env.tomorrowAt(11, 30)})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = env.svc.Consultations.Book(ctx, alice, BookInput{PractitionerID: dr.ID, ScheduledAt: env.tomorrowAt(8, 0)})
	assert.ErrorIs(t, err, ErrInvalid)

	c := env.book(t, alice, dr.ID, env.tomorrowAt(11, 0), 60)
	assert.Equal(t, 60, c.Duration)
}

func TestBookNotifiesPractitioner(t *testing.T) {
	env := newTestEnv(t)
	acme := env.company(t, "Acme")
	alice, _ := env.employee(t, acme)
	_, dr := env.practitioner(t, "anxiety", true)

	c := env.book(t, alice, dr.ID, env.tomorrowAt(10, 0), 45)

	var n models.Notification
	require.NoError(t, env.db.Where("user_id = ?", dr.UserID).First(&n).Error)
	assert.Equal(t, models.NotificationConsultation, n.Type)
	assert.Equal(t, consultationLink(c.ID), n.Link)

	var logs int64
	require.NoError(t, env.db.Model(&models.ActivityLog{}).Where("action = ?", ActionConsultationBooked).Count(&logs).Error)
	assert.Equal(t, int64(1), logs)
}

func TestCancelIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.company(t, "Acme")
	alice, _ := env.employee(t, acme)
	_, dr := env.practitioner(t, "anxiety", true)
	c := env.book(t, alice, dr.ID, env.tomorrowAt(10, 0), 60)

	cancelled, err := env.svc.Consultations.Cancel(ctx, alice, c.ID, "feeling better")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledByID)
	assert.Equal(t, alice.UserID, *cancelled.CancelledByID)
	require.NotNil(t, cancelled.CancelledAt)
	firstCancel := *cancelled.CancelledAt
	notified := env.notificationCount(t, dr.UserID)

	env.advance(time.Minute)
	again, err := env.svc.Consultations.Cancel(ctx, alice, c.ID, "again")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, again.Status)
	assert.Equal(t, "feeling better", again.CancelReason)
	require.NotNil(t, again.CancelledAt)
	assert.True(t, firstCancel.Equal(*again.CancelledAt))
	assert.Equal(t, notified, env.notificationCount(t, dr.UserID))
}

func TestCancelCompletedConsultationConflicts(t *testing.T) {
	env := newTestEnv(t)
	acme := env.company(t, "Acme")
	alice, _ := env.employee(t, acme)
	_, dr := env.practitioner(t, "anxiety", true)
	c := env.book(t, alice, dr.ID, env.tomorrowAt(10, 0), 60)

	env.advance(48 * time.Hour)
	_, err := env.svc.Consultations.Cancel(context.Background(), alice, c.ID, "")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCancelByOutsider(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.company(t, "Acme")
	alice, _ := env.employee(t, acme)
	bob, _ := env.employee(t, acme)
	hr := env.hrAdmin(t, acme)
	_, dr := env.practitioner(t, "anxiety", true)
	c := env.book(t, alice, dr.ID, env.tomorrowAt(10, 0), 60)

	_, err := env.svc.Consultations.Cancel(ctx, bob, c.ID, "")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.svc.Consultations.Cancel(ctx, hr, c.ID, "")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAutoCompletePast(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.company(t, "Acme")
	alice, _ := env.employee(t, acme)
	drActor, dr := env.practitioner(t, "anxiety", true)

	scheduled := env.book(t, alice, dr.ID, env.tomorrowAt(9, 0), 60)
	confirmed := env.book(t, alice, dr.ID, env.tomorrowAt(11, 0), 60)
	later := env.book(t, alice, dr.ID, env.tomorrowAt(15, 0), 60)
	_, err := env.svc.Consultations.Confirm(ctx, drActor, confirmed.ID)
	require.NoError(t, err)

	n, err := env.svc.Consultations.AutoCompletePast(ctx, env.tomorrowAt(12, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for id, want := range map[uint]models.ConsultationStatus{
		scheduled.ID: models.StatusCompleted,
		confirmed.ID: models.StatusCompleted,
		later.ID:     models.StatusScheduled,
	} {
		var c models.Consultation
		require.NoError(t, env.db.First(&c, id).Error)
		assert.Equal(t, want, c.Status, "consultation %d", id)
	}
}

func TestReadsAutoCompleteEndedConsultations(t *testing.T) {
	env := newTestEnv(t)
	acme := env.company(t, "Acme")
	alice, _ := env.employee(t, acme)
	_, dr := env.practitioner(t, "anxiety", true)
	c := env.book(t, alice, dr.ID, env.tomorrowAt(9, 0), 60)

	env.now = env.tomorrowAt(9, 30)
	got, err := env.svc.Consultations.Get(context.Background(), alice, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusScheduled, got.Status, "still in progress")

	env.now = env.now.Add(30 * time.Minute)
	got, err = env.svc.Consultations.Get(context.Background(), alice, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
}

func TestConfirmRequiresPractitionerOfRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.company(t, "Acme")
	alice, _ := env.employee(t, acme)
	drActor, dr := env.practitioner(t, "anxiety", true)
	otherDr, _ := env.practitioner(t, "sleep", true)
	c := env.book(t, alice, dr.ID, env.tomorrowAt(10, 0), 60)

	_, err := env.svc.Consultations.Confirm(ctx, alice, c.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = env.svc.Consultations.Confirm(ctx, otherDr, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	confirmed, err := env.svc.Consultations.Confirm(ctx, drActor, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, confirmed.Status)

	_, err = env.svc.Consultations.Cancel(ctx, drActor, c.ID, "sick")
	require.NoError(t, err)
	_, err = env.svc.Consultations.Confirm(ctx, drActor, c.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCompleteConsultation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.company(t, "Acme")
	alice, _ := env.employee(t, acme)
	drActor, dr := env.practitioner(t, "anxiety", true)
	c := env.book(t, alice, dr.ID, env.tomorrowAt(10, 0), 60)

	_, err := env.svc.Consultations.Complete(ctx, drActor, c.ID, "")
	assert.ErrorIs(t, err, ErrConflict, "not started")

	env.now = env.tomorrowAt(10, 40)
	done, err := env.svc.Consultations.Complete(ctx, drActor, c.ID, "follow up in two weeks")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)
	assert.Equal(t, "follow up in two weeks", done.Notes)

	again, err := env.svc.Consultations.Complete(ctx, drActor, c.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, again.Status)
}

func TestReschedule(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.company(t, "Acme")
	alice, _ := env.employee(t, acme)
	bob, _ := env.employee(t, acme)
	drActor, dr := env.practitioner(t, "anxiety", true)

	c := env.book(t, alice, dr.ID, env.tomorrowAt(10, 0), 60)
	env.book(t, bob, dr.ID, env.tomorrowAt(12, 0), 60)
	_, err := env.svc.Consultations.Confirm(ctx, drActor, c.ID)
	require.NoError(t, err)

	moved, err := env.svc.Consultations.Reschedule(ctx, alice, c.ID, env.tomorrowAt(10, 30), 0)
	require.NoError(t, err, "overlapping only itself is allowed")
	assert.Equal(t, models.StatusScheduled, moved.Status)
	assert.WithinDuration(t, env.tomorrowAt(11, 30), moved.EndAt, 0)

	_, err = env.svc.Consultations.Reschedule(ctx, alice, c.ID, env.tomorrowAt(11, 30), 60)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = env.svc.Consultations.Reschedule(ctx, alice, c.ID, env.now.Add(-time.Hour), 60)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestConsultationRedaction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.company(t, "Acme")
	globex := env.company(t, "Globex")
	alice, _ := env.employee(t, acme)
	hr := env.hrAdmin(t, acme)
	foreignHR := env.hrAdmin(t, globex)
	drActor, dr := env.practitioner(t, "anxiety", true)
	c := env.book(t, alice, dr.ID, env.tomorrowAt(10, 0), 60)

	_, err := env.svc.Consultations.UpdateNotes(ctx, drActor, c.ID, "private clinical notes")
	require.NoError(t, err)
	_, err = env.svc.Consultations.UpdateNotes(ctx, alice, c.ID, "nope")
	assert.ErrorIs(t, err, ErrForbidden)

	asPractitioner, err := env.svc.Consultations.Get(ctx, drActor, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "private clinical notes", asPractitioner.Notes)
	assert.Equal(t, "stress at work", asPractitioner.Reason)
	assert.Empty(t, asPractitioner.Employee.User.PasswordHash)

	asEmployee, err := env.svc.Consultations.Get(ctx, alice, c.ID)
	require.NoError(t, err)
	assert.Empty(t, asEmployee.Notes)
	assert.Equal(t, "stress at work", asEmployee.Reason)

	asHR, err := env.svc.Consultations.Get(ctx, hr, c.ID)
	require.NoError(t, err)
	assert.Empty(t, asHR.Notes)
	assert.Empty(t, asHR.Reason)

	_, err = env.svc.Consultations.Get(ctx, foreignHR, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListConsultationsByRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.company(t, "Acme")
	globex := env.company(t, "Globex")
	alice, _ := env.employee(t, acme)
	gina, _ := env.employee(t, globex)
	drActor, dr := env.practitioner(t, "anxiety", true)
	hr := env.hrAdmin(t, acme)
	admin := env.platformAdmin(t, models.RoleAdminHuntZen)

	env.book(t, alice, dr.ID, env.tomorrowAt(9, 0), 60)
	env.book(t, alice, dr.ID, env.tomorrowAt(11, 0), 60)
	env.book(t, gina, dr.ID, env.tomorrowAt(14, 0), 60)

	count := func(actor Actor, f ConsultationFilter) int64 {
		res, err := env.svc.Consultations.List(ctx, actor, f)
		require.NoError(t, err)
		return res.Total
	}
	assert.Equal(t, int64(2), count(alice, ConsultationFilter{}))
	assert.Equal(t, int64(1), count(gina, ConsultationFilter{}))
	assert.Equal(t, int64(3), count(drActor, ConsultationFilter{}))
	assert.Equal(t, int64(2), count(hr, ConsultationFilter{}))
	assert.Equal(t, int64(3), count(admin, ConsultationFilter{}))
	assert.Equal(t, int64(1), count(admin, ConsultationFilter{CompanyID: &globex.ID}))
	assert.Equal(t, int64(0), count(drActor, ConsultationFilter{Status: models.StatusConfirmed}))

	_, err := env.svc.Consultations.List(ctx, hr, ConsultationFilter{CompanyID: &globex.ID})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = env.svc.Consultations.List(ctx, alice, ConsultationFilter{Status: "LOST"})
	assert.ErrorIs(t, err, ErrInvalid)

	res, err := env.svc.Consultations.List(ctx, hr, ConsultationFilter{})
	require.NoError(t, err)
	for _, c := range res.Items {
		assert.Empty(t, c.Reason)
	}
}

func TestRescheduleRechecksPractitioner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.company(t, "Acme")
	alice, _ := env.employee(t, acme)
	drActor, dr := env.practitioner(t, "anxiety", true)
	c := env.book(t, alice, dr.ID, env.tomorrowAt(10, 0), 60)

	require.NoError(t, env.db.Model(&models.Practitioner{}).Where("id = ?", dr.ID).Update("is_available", false).Error)
	_, err := env.svc.Consultations.Reschedule(ctx, alice, c.ID, env.tomorrowAt(14, 0), 0)
	assert.ErrorIs(t, err, ErrInvalid)
	moved, err := env.svc.Consultations.Reschedule(ctx, drActor, c.ID, env.tomorrowAt(14, 0), 0)
	require.NoError(t, err, "the practitioner may move their own booking while paused")
	assert.WithinDuration(t, env.tomorrowAt(14, 0), moved.ScheduledAt, 0)

	require.NoError(t, env.db.Model(&models.Practitioner{}).Where("id = ?", dr.ID).Updates(map[string]interface{}{
		"is_available": true,
		"is_verified":  false,
	}).Error)
	_, err = env.svc.Consultations.Reschedule(ctx, alice, c.ID, env.tomorrowAt(16, 0), 0)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, env.db.Model(&models.Practitioner{}).Where("id = ?", dr.ID).Update("is_verified", true).Error)
	require.NoError(t, env.db.Model(&models.User{}).Where("id = ?", drActor.UserID).Update("is_active", false).Error)
	_, err = env.svc.Consultations.Reschedule(ctx, alice, c.ID, env.tomorrowAt(16, 0), 0)
	assert.ErrorIs(t, err, ErrNotFound)
}
