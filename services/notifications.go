package services

import (
	"context"
	"fmt"

	"huntzen-care/models"
	"huntzen-care/monitoring"
)

type NotificationService struct {
	*core
}

// Notify stores a notification for userID. It is best-effort: a failure is
// logged and never returned.
func (s *NotificationService) Notify(ctx context.Context, userID uint, typ models.NotificationType, title, message, link string) {
	n := models.Notification{
		UserID:  userID,
		Type:    typ,
		Title:   title,
		Message: message,
		Link:    link,
	}
	if err := s.db.WithContext(ctx).Create(&n).Error; err != nil {
		s.sideEffectFailed("notification", err, "user_id", userID)
		return
	}
	monitoring.NotificationsCreated.WithLabelValues(string(typ)).Inc()
}

// NotifyRoles notifies every active user holding one of roles.
func (s *NotificationService) NotifyRoles(ctx context.Context, roles []models.Role, typ models.NotificationType, title, message, link string) {
	var ids []uint
	err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("role IN ? AND is_active = ?", roles, true).
		Pluck("id", &ids).Error
	if err != nil {
		s.sideEffectFailed("notification", err, "roles", roles)
		return
	}
	for _, id := range ids {
		s.Notify(ctx, id, typ, title, message, link)
	}
}

func (s *NotificationService) List(ctx context.Context, actor Actor, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = 50
	}
	q := s.db.WithContext(ctx).Where("user_id = ?", actor.UserID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var out []models.Notification
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, actor Actor) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", actor.UserID, false).
		Count(&n).Error
	return n, err
}

func (s *NotificationService) MarkRead(ctx context.Context, actor Actor, id uint) (*models.Notification, error) {
	var n models.Notification
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, actor.UserID).First(&n).Error
	if err != nil {
		return nil, lookup(err, "notification")
	}
	if n.IsRead {
		return &n, nil
	}

	now := s.clock()
	if err := s.db.WithContext(ctx).Model(&n).Updates(map[string]interface{}{
		"is_read": true,
		"read_at": now,
	}).Error; err != nil {
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	n.IsRead = true
	n.ReadAt = &now
	return &n, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, actor Actor) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", actor.UserID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": s.clock()})
	if res.Error != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *NotificationService) Delete(ctx context.Context, actor Actor, id uint) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, actor.UserID).Delete(&models.Notification{})
	if res.Error != nil {
		return fmt.Errorf("delete notification: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFoundf("notification not found")
	}
	return nil
}
