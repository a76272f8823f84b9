package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"huntzen-care/models"
	"huntzen-care/monitoring"
)

const maxMessageLength = 5000

type MessageService struct {
	*core
	notifications *NotificationService
}

type SendMessageInput struct {
	ReceiverID     uint
	Content        string
	ConsultationID *uint
}

// ConversationSummary is one counterpart in the actor's inbox.
type ConversationSummary struct {
	User        models.User
	LastMessage models.Message
	UnreadCount int64
}

func (s *MessageService) Send(ctx context.Context, actor Actor, in SendMessageInput) (*models.Message, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, invalidf("message content is required")
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return nil, invalidf("message cannot exceed %d characters", maxMessageLength)
	}
	if in.ReceiverID == actor.UserID {
		return nil, invalidf("cannot send a message to yourself")
	}

	var receiver models.User
	if err := s.db.WithContext(ctx).First(&receiver, in.ReceiverID).Error; err != nil {
		return nil, lookup(err, "recipient")
	}
	if !receiver.IsActive {
		return nil, invalidf("recipient account is inactive")
	}
	if err := s.canMessage(ctx, actor, &receiver); err != nil {
		return nil, err
	}
	if in.ConsultationID != nil {
		if err := s.checkThread(ctx, *in.ConsultationID, actor.UserID, receiver.ID); err != nil {
			return nil, err
		}
	}

	msg := models.Message{
		SenderID:       actor.UserID,
		ReceiverID:     receiver.ID,
		ConsultationID: in.ConsultationID,
		Content:        content,
	}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	monitoring.MessagesSent.Inc()

	var sender models.User
	title := "New message"
	if err := s.db.WithContext(ctx).First(&sender, actor.UserID).Error; err == nil {
		title = "New message from " + sender.FullName()
	}
	s.notifications.Notify(ctx, receiver.ID, models.NotificationMessage, title, preview(content), fmt.Sprintf("/messages/%d", actor.UserID))
	return &msg, nil
}

func preview(content string) string {
	const max = 80
	if utf8.RuneCountInString(content) <= max {
		return content
	}
	return string([]rune(content)[:max]) + "..."
}

// canMessage decides whether actor may open a thread with receiver. Employees
// and practitioners talk only when they share a consultation. Administrators
// reach the users they manage, and anyone may write to a platform admin.
func (s *MessageService) canMessage(ctx context.Context, actor Actor, receiver *models.User) error {
	switch {
	case actor.Role.IsPlatformAdmin(), receiver.Role.IsPlatformAdmin():
		return nil
	case actor.Role == models.RoleAdminRH:
		if receiver.CompanyID != nil && actor.managesCompany(*receiver.CompanyID) {
			return nil
		}
		return forbiddenf("recipient belongs to another company")
	case receiver.Role == models.RoleAdminRH:
		if actor.CompanyID != nil && receiver.CompanyID != nil && *actor.CompanyID == *receiver.CompanyID {
			return nil
		}
		return forbiddenf("recipient belongs to another company")
	}

	pair := (actor.Role == models.RoleEmployee && receiver.Role == models.RolePractitioner) ||
		(actor.Role == models.RolePractitioner && receiver.Role == models.RoleEmployee)
	if !pair {
		return forbiddenf("cannot message this user")
	}
	shared, err := s.shareConsultation(ctx, actor.UserID, receiver.ID)
	if err != nil {
		return err
	}
	if !shared {
		return forbiddenf("messaging requires a consultation with this user")
	}
	return nil
}

func (s *MessageService) shareConsultation(ctx context.Context, a, b uint) (bool, error) {
	users := []uint{a, b}
	employees := s.db.Model(&models.Employee{}).Select("id").Where("user_id IN ?", users)
	practitioners := s.db.Model(&models.Practitioner{}).Select("id").Where("user_id IN ?", users)
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Consultation{}).
		Where("employee_id IN (?) AND practitioner_id IN (?)", employees, practitioners).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check consultation: %w", err)
	}
	return n > 0, nil
}

// checkThread ensures a referenced consultation involves both users.
func (s *MessageService) checkThread(ctx context.Context, consultationID, a, b uint) error {
	var c models.Consultation
	err := s.db.WithContext(ctx).Preload("Employee").Preload("Practitioner").First(&c, consultationID).Error
	if err != nil {
		return lookup(err, "consultation")
	}
	involved := map[uint]bool{c.Employee.UserID: true, c.Practitioner.UserID: true}
	if !involved[a] || !involved[b] {
		return invalidf("consultation does not involve both users")
	}
	return nil
}

// Conversations lists one entry per counterpart, most recent first.
func (s *MessageService) Conversations(ctx context.Context, actor Actor) ([]ConversationSummary, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", actor.UserID, actor.UserID).
		Order("created_at DESC").Order("id DESC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	out := []ConversationSummary{}
	index := map[uint]int{}
	for _, m := range msgs {
		other := m.SenderID
		if other == actor.UserID {
			other = m.ReceiverID
		}
		i, ok := index[other]
		if !ok {
			i = len(out)
			index[other] = i
			out = append(out, ConversationSummary{LastMessage: m})
		}
		if m.ReceiverID == actor.UserID && !m.IsRead {
			out[i].UnreadCount++
		}
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]uint, 0, len(index))
	for id := range index {
		ids = append(ids, id)
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	for _, u := range users {
		u.PasswordHash = ""
		out[index[u.ID]].User = u
	}
	return out, nil
}

// Conversation returns the thread with otherUserID oldest first and marks the
// messages the actor received as read.
func (s *MessageService) Conversation(ctx context.Context, actor Actor, otherUserID uint, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if err := s.db.WithContext(ctx).Unscoped().First(&models.User{}, otherUserID).Error; err != nil {
		return nil, lookup(err, "user")
	}

	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			actor.UserID, otherUserID, otherUserID, actor.UserID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	now := s.clock()
	res := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND is_read = ?", otherUserID, actor.UserID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": now})
	if res.Error != nil {
		s.sideEffectFailed("message_read", res.Error, "user_id", actor.UserID)
	} else if res.RowsAffected > 0 {
		for i := range msgs {
			if msgs[i].ReceiverID == actor.UserID && !msgs[i].IsRead {
				msgs[i].IsRead = true
				msgs[i].ReadAt = &now
			}
		}
	}
	return msgs, nil
}

func (s *MessageService) UnreadCount(ctx context.Context, actor Actor) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("receiver_id = ? AND is_read = ?", actor.UserID, false).
		Count(&n).Error
	return n, err
}
