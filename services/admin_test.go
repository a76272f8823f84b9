package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huntzen-care/models"
)

func TestRoleAccessDenied(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.company(t, "Acme")
	globex := env.company(t, "Globex")
	alice, emp := env.employee(t, acme)
	drActor, _ := env.practitioner(t, "anxiety", true)
	hr := env.hrAdmin(t, acme)
	foreignHR := env.hrAdmin(t, globex)

	checks := []struct {
		name string
		call func() error
		want error
	}{
		{"employee lists users", func() error { _, err := env.svc.Admin.ListUsers(ctx, alice, UserFilter{}); return err }, ErrForbidden},
		{"HR lists users", func() error { _, err := env.svc.Admin.ListUsers(ctx, hr, UserFilter{}); return err }, ErrForbidden},
		{"practitioner reads platform stats", func() error { _, err := env.svc.Admin.PlatformStats(ctx, drActor); return err }, ErrForbidden},
		{"employee reads company stats", func() error { _, err := env.svc.HR.CompanyStats(ctx, alice, nil); return err }, ErrForbidden},
		{"HR reads another company's stats", func() error { _, err := env.svc.HR.CompanyStats(ctx, hr, &globex.ID); return err }, ErrForbidden},
		{"HR reads foreign employee", func() error { _, err := env.svc.HR.GetEmployee(ctx, foreignHR, emp.ID); return err }, ErrForbidden},
		{"employee lists employees", func() error { _, err := env.svc.HR.ListEmployees(ctx, alice, EmployeeFilter{}); return err }, ErrForbidden},
		{"HR creates company", func() error { _, err := env.svc.Companies.Create(ctx, hr, CompanyInput{Name: "New"}); return err }, ErrForbidden},
		{"HR reads another company", func() error { _, err := env.svc.Companies.Get(ctx, hr, globex.ID); return err }, ErrForbidden},
		{"HR changes employee limit", func() error {
			limit := 10
			_, err := env.svc.Companies.Update(ctx, hr, acme.ID, CompanyUpdate{MaxEmployees: &limit})
			return err
		}, ErrForbidden},
		{"employee reads activity", func() error { _, err := env.svc.Activity.List(ctx, alice, ActivityFilter{}); return err }, ErrForbidden},
		{"practitioner verifies", func() error { _, err := env.svc.Admin.VerifyPractitioner(ctx, drActor, 1, true); return err }, ErrForbidden},
	}
	for _, tt := range checks {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), tt.want)
		})
	}
}

func TestChangeRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.company(t, "Acme")
	alice, _ := env.employee(t, acme)
	drActor, _ := env.practitioner(t, "anxiety", true)
	hr := env.hrAdmin(t, acme)
	staff := env.platformAdmin(t, models.RoleAdminHuntZen)
	root := env.platformAdmin(t, models.RoleSuperAdmin)

	_, err := env.svc.Admin.ChangeRole(ctx, staff, alice.UserID, models.RoleAdminRH)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = env.svc.Admin.ChangeRole(ctx, root, drActor.UserID, models.RoleEmployee)
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = env.svc.Admin.ChangeRole(ctx, root, staff.UserID, models.RoleEmployee)
	assert.ErrorIs(t, err, ErrInvalid, "company-bound role needs a company")
	_, err = env.svc.Admin.ChangeRole(ctx, root, root.UserID, models.RoleEmployee)
	assert.ErrorIs(t, err, ErrInvalid)

	promoted, err := env.svc.Admin.ChangeRole(ctx, root, alice.UserID, models.RoleAdminRH)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdminRH, promoted.Role)

	demoted, err := env.svc.Admin.ChangeRole(ctx, root, hr.UserID, models.RoleEmployee)
	require.NoError(t, err)
	assert.Equal(t, models.RoleEmployee, demoted.Role)
	var employee models.Employee
	require.NoError(t, env.db.Where("user_id = ?", hr.UserID).First(&employee).Error)
	assert.Equal(t, acme.ID, employee.CompanyID)
	assert.Equal(t, int64(1), env.notificationCount(t, hr.UserID))
}

func TestSetUserActive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.company(t, "Acme")
	alice, _ := env.employee(t, acme)
	staff := env.platformAdmin(t, models.RoleAdminHuntZen)
	otherStaff := env.platformAdmin(t, models.RoleAdminHuntZen)

	_, err := env.svc.Admin.SetUserActive(ctx, staff, otherStaff.UserID, false)
	assert.ErrorIs(t, err, ErrForbidden, "only super admins manage platform admins")

	user, err := env.svc.Admin.SetUserActive(ctx, staff, alice.UserID, false)
	require.NoError(t, err)
	assert.False(t, user.IsActive)

	filter := false
	res, err := env.svc.Admin.ListUsers(ctx, staff, UserFilter{Active: &filter})
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Total)
	assert.Equal(t, alice.UserID, res.Items[0].ID)
}

func TestVerifyPractitionerPublishesProfile(t *testing.T) {
	cache := newMemCache()
	env := newTestEnv(t, withCache(cache))
	ctx := context.Background()
	admin := env.platformAdmin(t, models.RoleAdminHuntZen)
	_, dr := env.practitioner(t, "anxiety", false)

	before, err := env.svc.Practitioners.List(ctx, PractitionerFilter{})
	require.NoError(t, err)
	assert.Empty(t, before)
	assert.True(t, cache.has("practitioners:list::false"))

	verified, err := env.svc.Admin.VerifyPractitioner(ctx, admin, dr.ID, true)
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)
	assert.False(t, cache.has("practitioners:list::false"), "list cache invalidated")

	after, err := env.svc.Practitioners.List(ctx, PractitionerFilter{})
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, dr.ID, after[0].ID)
	assert.Empty(t, after[0].User.PasswordHash)
	assert.Equal(t, int64(1), env.notificationCount(t, dr.UserID))
}

func TestCompanyStats(t *testing.T) {
	cache := newMemCache()
	env := newTestEnv(t, withCache(cache))
	ctx := context.Background()
	acme := env.company(t, "Acme")
	alice, _ := env.employee(t, acme)
	env.employee(t, acme)
	hr := env.hrAdmin(t, acme)
	admin := env.platformAdmin(t, models.RoleSuperAdmin)
	_, dr := env.practitioner(t, "anxiety", true)

	env.book(t, alice, dr.ID, env.tomorrowAt(10, 0), 60)
	c := env.book(t, alice, dr.ID, env.tomorrowAt(14, 0), 60)
	_, err := env.svc.Consultations.Cancel(ctx, alice, c.ID, "")
	require.NoError(t, err)
	_, err = env.svc.Invitations.Create(ctx, hr, CreateInvitationInput{Email: "next@example.com"})
	require.NoError(t, err)

	stats, err := env.svc.HR.CompanyStats(ctx, hr, nil)
	require.NoError(t, err)
	assert.Equal(t, acme.ID, stats.CompanyID)
	assert.Equal(t, int64(2), stats.TotalEmployees)
	assert.Equal(t, int64(2), stats.ActiveEmployees)
	assert.Equal(t, int64(1), stats.EmployeesUsingService)
	assert.Equal(t, int64(1), stats.ConsultationsByStatus[string(models.StatusScheduled)])
	assert.Equal(t, int64(1), stats.ConsultationsByStatus[string(models.StatusCancelled)])
	assert.Equal(t, int64(1), stats.PendingInvitations)
	assert.True(t, cache.has(statsKey(acme.ID)))

	_, err = env.svc.HR.CompanyStats(ctx, admin, nil)
	assert.ErrorIs(t, err, ErrInvalid, "platform admins name the company")
	viaAdmin, err := env.svc.HR.CompanyStats(ctx, admin, &acme.ID)
	require.NoError(t, err)
	assert.Equal(t, stats.TotalEmployees, viaAdmin.TotalEmployees)

	env.book(t, alice, dr.ID, env.tomorrowAt(16, 0), 60)
	assert.False(t, cache.has(statsKey(acme.ID)), "booking invalidates company stats")
}

func TestPlatformStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.company(t, "Acme")
	alice, _ := env.employee(t, acme)
	_, dr := env.practitioner(t, "anxiety", true)
	env.practitioner(t, "sleep", false)
	admin := env.platformAdmin(t, models.RoleAdminHuntZen)
	env.book(t, alice, dr.ID, env.tomorrowAt(10, 0), 60)

	stats, err := env.svc.Admin.PlatformStats(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Companies)
	assert.Equal(t, int64(1), stats.VerifiedPractitioners)
	assert.Equal(t, int64(1), stats.PendingPractitioners)
	assert.Equal(t, int64(2), stats.UsersByRole[string(models.RolePractitioner)])
	assert.Equal(t, int64(1), stats.ConsultationsByStatus[string(models.StatusScheduled)])
	assert.Equal(t, int64(1), stats.ConsultationsThisMonth)
}

func TestHREmployeeManagement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.company(t, "Acme")
	globex := env.company(t, "Globex")
	_, emp := env.employee(t, acme)
	env.employee(t, acme)
	env.employee(t, globex)
	hr := env.hrAdmin(t, acme)

	res, err := env.svc.HR.ListEmployees(ctx, hr, EmployeeFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Total)

	res, err = env.svc.HR.ListEmployees(ctx, hr, EmployeeFilter{Search: emp.User.FirstName})
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Total)
	assert.Equal(t, emp.ID, res.Items[0].ID)

	updated, err := env.svc.HR.SetEmployeeActive(ctx, hr, emp.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.User.IsActive)

	inactive := false
	res, err = env.svc.HR.ListEmployees(ctx, hr, EmployeeFilter{Active: &inactive})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Total)

	logs, err := env.svc.Activity.List(ctx, hr, ActivityFilter{Action: ActionUserStatus})
	require.NoError(t, err)
	assert.Equal(t, int64(1), logs.Total)
}

func TestPromotedEmployeeLeavesHRScope(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.company(t, "Acme")
	alice, aliceEmp := env.employee(t, acme)
	bob, bobEmp := env.employee(t, acme)
	hr := env.hrAdmin(t, acme)
	root := env.platformAdmin(t, models.RoleSuperAdmin)

	staff, err := env.svc.Admin.ChangeRole(ctx, root, alice.UserID, models.RoleAdminHuntZen)
	require.NoError(t, err)
	assert.Nil(t, staff.CompanyID)
	var stored models.User
	require.NoError(t, env.db.First(&stored, alice.UserID).Error)
	assert.Nil(t, stored.CompanyID)
	assert.True(t, stored.IsActive)

	_, err = env.svc.HR.SetEmployeeActive(ctx, hr, aliceEmp.ID, false)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, env.db.First(&stored, alice.UserID).Error)
	assert.True(t, stored.IsActive, "HR must not be able to disable a platform admin")

	_, err = env.svc.Admin.ChangeRole(ctx, root, bob.UserID, models.RoleAdminRH)
	require.NoError(t, err)
	_, err = env.svc.HR.GetEmployee(ctx, hr, bobEmp.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	env.employee(t, acme)
	res, err := env.svc.HR.ListEmployees(ctx, hr, EmployeeFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Total)

	stats, err := env.svc.HR.CompanyStats(ctx, hr, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalEmployees)
	assert.Equal(t, int64(1), stats.ActiveEmployees)

	// Demoting back restores the existing employee record.
	_, err = env.svc.Admin.ChangeRole(ctx, root, bob.UserID, models.RoleEmployee)
	require.NoError(t, err)
	got, err := env.svc.HR.GetEmployee(ctx, hr, bobEmp.ID)
	require.NoError(t, err)
	assert.Equal(t, bob.UserID, got.UserID)
}

func TestEmployeeSearchTreatsWildcardsLiterally(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.company(t, "Acme")
	env.employee(t, acme)
	env.employee(t, acme)
	hr := env.hrAdmin(t, acme)

	for _, search := range []string{"_", "%"} {
		res, err := env.svc.HR.ListEmployees(ctx, hr, EmployeeFilter{Search: search})
		require.NoError(t, err)
		assert.Equal(t, int64(0), res.Total, "search %q", search)
	}

	res, err := env.svc.HR.ListEmployees(ctx, hr, EmployeeFilter{Search: "@example.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Total)
}
