package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"flowbase/internal/apierr"
	"flowbase/internal/models"
	"flowbase/internal/store"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 100
)

// NotificationService serves a user's own notifications
type NotificationService struct {
	store store.NotificationStore
}

// NewNotificationService creates a notification service
func NewNotificationService(s store.NotificationStore) *NotificationService {
	return &NotificationService{store: s}
}

// List returns a page of the user's notifications with total and unread counts
func (s *NotificationService) List(ctx context.Context, userID primitive.ObjectID, filter models.NotificationFilter) (*models.NotificationPage, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultNotificationLimit
	}
	if filter.Limit > maxNotificationLimit {
		filter.Limit = maxNotificationLimit
	}
	if filter.Skip < 0 {
		filter.Skip = 0
	}

	list, total, err := s.store.ListNotifications(ctx, userID, filter)
	if err != nil {
		return nil, apierr.Internal("Failed to list notifications").Wrap(err)
	}
	unread, err := s.store.CountUnreadNotifications(ctx, userID)
	if err != nil {
		return nil, apierr.Internal("Failed to list notifications").Wrap(err)
	}
	if list == nil {
		list = []*models.Notification{}
	}
	return &models.NotificationPage{Notifications: list, TotalCount: total, UnreadCount: unread}, nil
}

// MarkRead marks one notification read. Marking it again is a no-op.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id primitive.ObjectID) (*models.Notification, error) {
	n, err := s.store.MarkNotificationRead(ctx, userID, id)
	if err != nil {
		return nil, notFound(err, "Notification not found")
	}
	return n, nil
}

// MarkAllRead marks every unread notification of the user read
func (s *NotificationService) MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	n, err := s.store.MarkAllNotificationsRead(ctx, userID)
	if err != nil {
		return 0, apierr.Internal("Failed to mark notifications read").Wrap(err)
	}
	return n, nil
}

// Delete removes one notification
func (s *NotificationService) Delete(ctx context.Context, userID, id primitive.ObjectID) error {
	if err := s.store.DeleteNotification(ctx, userID, id); err != nil {
		return notFound(err, "Notification not found")
	}
	return nil
}

// DeleteAll removes every notification of the user
func (s *NotificationService) DeleteAll(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	n, err := s.store.DeleteAllNotifications(ctx, userID)
	if err != nil {
		return 0, apierr.Internal("Failed to delete notifications").Wrap(err)
	}
	return n, nil
}

// PurgeRead deletes read notifications older than retention
func (s *NotificationService) PurgeRead(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := s.store.DeleteReadNotificationsBefore(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("purge read notifications: %w", err)
	}
	return n, nil
}
