package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huntzen-care/models"
)

func TestNotificationInbox(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.company(t, "Acme")
	alice, _ := env.employee(t, acme)
	bob, _ := env.employee(t, acme)

	for _, title := range []string{"first", "second", "third"} {
		env.svc.Notifications.Notify(ctx, alice.UserID, models.NotificationSystem, title, "body", "")
	}
	env.svc.Notifications.Notify(ctx, bob.UserID, models.NotificationSystem, "bob's", "body", "")

	all, err := env.svc.Notifications.List(ctx, alice, false, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].Title, "newest first")

	unread, err := env.svc.Notifications.UnreadCount(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(3), unread)

	read, err := env.svc.Notifications.MarkRead(ctx, alice, all[0].ID)
	require.NoError(t, err)
	assert.True(t, read.IsRead)
	require.NotNil(t, read.ReadAt)
	firstReadAt := *read.ReadAt

	env.advance(time.Hour)
	again, err := env.svc.Notifications.MarkRead(ctx, alice, all[0].ID)
	require.NoError(t, err)
	assert.WithinDuration(t, firstReadAt, *again.ReadAt, 0, "marking twice keeps the first read time")

	onlyUnread, err := env.svc.Notifications.List(ctx, alice, true, 0)
	require.NoError(t, err)
	assert.Len(t, onlyUnread, 2)

	updated, err := env.svc.Notifications.MarkAllRead(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)
	updated, err = env.svc.Notifications.MarkAllRead(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated)

	bobUnread, err := env.svc.Notifications.UnreadCount(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(1), bobUnread, "read-all only touches the caller's inbox")
}

func TestNotificationOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.company(t, "Acme")
	alice, _ := env.employee(t, acme)
	bob, _ := env.employee(t, acme)

	env.svc.Notifications.Notify(ctx, bob.UserID, models.NotificationMessage, "private", "body", "")
	list, err := env.svc.Notifications.List(ctx, bob, false, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	id := list[0].ID

	_, err = env.svc.Notifications.MarkRead(ctx, alice, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, env.svc.Notifications.Delete(ctx, alice, id), ErrNotFound)

	require.NoError(t, env.svc.Notifications.Delete(ctx, bob, id))
	assert.ErrorIs(t, env.svc.Notifications.Delete(ctx, bob, id), ErrNotFound)
	assert.Equal(t, int64(0), env.notificationCount(t, bob.UserID))
}

func TestNotifyRolesSkipsInactiveUsers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	active := env.platformAdmin(t, models.RoleAdminHuntZen)
	disabled := env.platformAdmin(t, models.RoleSuperAdmin)
	require.NoError(t, env.db.Model(&models.User{}).Where("id = ?", disabled.UserID).Update("is_active", false).Error)

	env.svc.Notifications.NotifyRoles(ctx, []models.Role{models.RoleAdminHuntZen, models.RoleSuperAdmin},
		models.NotificationSystem, "review", "body", "/admin")

	assert.Equal(t, int64(1), env.notificationCount(t, active.UserID))
	assert.Equal(t, int64(0), env.notificationCount(t, disabled.UserID))
}
