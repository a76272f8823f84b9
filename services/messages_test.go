package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huntzen-care/models"
)

func TestSendRequiresSharedConsultation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.company(t, "Acme")
	alice, _ := env.employee(t, acme)
	drActor, dr := env.practitioner(t, "anxiety", true)

	_, err := env.svc.Messages.Send(ctx, alice, SendMessageInput{ReceiverID: dr.UserID, Content: "hello"})
	assert.ErrorIs(t, err, ErrForbidden)

	c := env.book(t, alice, dr.ID, env.tomorrowAt(10, 0), 60)
	msg, err := env.svc.Messages.Send(ctx, alice, SendMessageInput{ReceiverID: dr.UserID, Content: "  hello  ", ConsultationID: &c.ID})
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
	assert.False(t, msg.IsRead)

	unread, err := env.svc.Messages.UnreadCount(ctx, drActor)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	var n models.Notification
	require.NoError(t, env.db.Where("user_id = ? AND type = ?", dr.UserID, models.NotificationMessage).First(&n).Error)
	assert.Contains(t, n.Title, "New message from")
}

func TestSendValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.company(t, "Acme")
	globex := env.company(t, "Globex")
	alice, _ := env.employee(t, acme)
	bob, _ := env.employee(t, acme)
	hr := env.hrAdmin(t, acme)
	_, gina := env.employee(t, globex)
	admin := env.platformAdmin(t, models.RoleAdminHuntZen)

	tests := []struct {
		name  string
		actor Actor
		in    SendMessageInput
		want  error
	}{
		{"empty", alice, SendMessageInput{ReceiverID: bob.UserID, Content: "   "}, ErrInvalid},
		{"too long", alice, SendMessageInput{ReceiverID: hr.UserID, Content: strings.Repeat("a", maxMessageLength+1)}, ErrInvalid},
		{"self", alice, SendMessageInput{ReceiverID: alice.UserID, Content: "hi"}, ErrInvalid},
		{"unknown receiver", alice, SendMessageInput{ReceiverID: 9999, Content: "hi"}, ErrNotFound},
		{"employee to employee", alice, SendMessageInput{ReceiverID: bob.UserID, Content: "hi"}, ErrForbidden},
		{"HR to another company", hr, SendMessageInput{ReceiverID: gina.UserID, Content: "hi"}, ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Messages.Send(ctx, tt.actor, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	allowed := []struct {
		name  string
		actor Actor
		to    uint
	}{
		{"employee to own HR", alice, hr.UserID},
		{"HR to own employee", hr, bob.UserID},
		{"platform admin to anyone", admin, gina.UserID},
		{"anyone to platform admin", alice, admin.UserID},
	}
	for _, tt := range allowed {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Messages.Send(ctx, tt.actor, SendMessageInput{ReceiverID: tt.to, Content: "hi"})
			assert.NoError(t, err)
		})
	}
}

func TestSendRejectsInactiveReceiver(t *testing.T) {
	env := newTestEnv(t)
	acme := env.company(t, "Acme")
	alice, _ := env.employee(t, acme)
	hr := env.hrAdmin(t, acme)
	require.NoError(t, env.db.Model(&models.User{}).Where("id = ?", hr.UserID).Update("is_active", false).Error)

	_, err := env.svc.Messages.Send(context.Background(), alice, SendMessageInput{ReceiverID: hr.UserID, Content: "hi"})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestConversationMarksReceivedMessagesRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.company(t, "Acme")
	alice, _ := env.employee(t, acme)
	drActor, dr := env.practitioner(t, "anxiety", true)
	env.book(t, alice, dr.ID, env.tomorrowAt(10, 0), 60)

	for _, text := range []string{"one", "two"} {
		_, err := env.svc.Messages.Send(ctx, alice, SendMessageInput{ReceiverID: dr.UserID, Content: text})
		require.NoError(t, err)
	}
	_, err := env.svc.Messages.Send(ctx, drActor, SendMessageInput{ReceiverID: alice.UserID, Content: "three"})
	require.NoError(t, err)

	thread, err := env.svc.Messages.Conversation(ctx, drActor, alice.UserID, 0)
	require.NoError(t, err)
	require.Len(t, thread, 3)
	assert.Equal(t, "one", thread[0].Content)
	assert.Equal(t, "three", thread[2].Content)
	assert.True(t, thread[0].IsRead)
	assert.False(t, thread[2].IsRead, "own message stays unread until alice opens it")

	unread, err := env.svc.Messages.UnreadCount(ctx, drActor)
	require.NoError(t, err)
	assert.Zero(t, unread)
	unread, err = env.svc.Messages.UnreadCount(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	_, err = env.svc.Messages.Conversation(ctx, drActor, 9999, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConversationsSummaries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.company(t, "Acme")
	alice, _ := env.employee(t, acme)
	bob, _ := env.employee(t, acme)
	drActor, dr := env.practitioner(t, "anxiety", true)
	env.book(t, alice, dr.ID, env.tomorrowAt(10, 0), 60)
	env.book(t, bob, dr.ID, env.tomorrowAt(12, 0), 60)

	_, err := env.svc.Messages.Send(ctx, alice, SendMessageInput{ReceiverID: dr.UserID, Content: "from alice"})
	require.NoError(t, err)
	_, err = env.svc.Messages.Send(ctx, alice, SendMessageInput{ReceiverID: dr.UserID, Content: "alice again"})
	require.NoError(t, err)
	_, err = env.svc.Messages.Send(ctx, bob, SendMessageInput{ReceiverID: dr.UserID, Content: "from bob"})
	require.NoError(t, err)

	convs, err := env.svc.Messages.Conversations(ctx, drActor)
	require.NoError(t, err)
	require.Len(t, convs, 2)

	assert.Equal(t, bob.UserID, convs[0].User.ID)
	assert.Equal(t, "from bob", convs[0].LastMessage.Content)
	assert.Equal(t, int64(1), convs[0].UnreadCount)
	assert.Equal(t, alice.UserID, convs[1].User.ID)
	assert.Equal(t, "alice again", convs[1].LastMessage.Content)
	assert.Equal(t, int64(2), convs[1].UnreadCount)
	assert.Empty(t, convs[1].User.PasswordHash)

	empty, err := env.svc.Messages.Conversations(ctx, env.hrAdmin(t, acme))
	require.NoError(t, err)
	assert.Empty(t, empty)
}
