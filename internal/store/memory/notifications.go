package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"flowbase/internal/models"
	"flowbase/internal/store"
)

// CreateNotification inserts a notification.
func (d *DB) CreateNotification(_ context.Context, notification *models.Notification) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	newIDIfZero(&notification.ID)
	now := time.Now()
	notification.CreatedAt = now
	notification.UpdatedAt = now
	record := &notificationRecord{
		ID:           notification.ID.Hex(),
		UserID:       notification.UserID.Hex(),
		Notification: cloneNotification(notification),
	}
	if err := txn.Insert(tblNotifications, record); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	txn.Commit()
	return nil
}

func (d *DB) userNotifications(userID primitive.ObjectID) ([]*models.Notification, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	iter, err := txn.Get(tblNotifications, "user_id", userID.Hex())
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	var notifications []*models.Notification
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		notifications = append(notifications, cloneNotification(raw.(*notificationRecord).Notification))
	}
	return notifications, nil
}

// ListNotifications returns a page of the user's notifications, newest first,
// together with the total count matching the filter.
func (d *DB) ListNotifications(
	_ context.Context,
	userID primitive.ObjectID,
	filter models.NotificationFilter,
) ([]*models.Notification, int64, error) {
	all, err := d.userNotifications(userID)
	if err != nil {
		return nil, 0, err
	}

	var matched []*models.Notification
	for _, n := range all {
		if filter.Read != nil && n.Read != *filter.Read {
			continue
		}
		matched = append(matched, n)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.Hex() > matched[j].ID.Hex()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := min(filter.Skip, total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}
	return matched[start:end], total, nil
}

// CountUnreadNotifications counts the user's unread notifications.
func (d *DB) CountUnreadNotifications(_ context.Context, userID primitive.ObjectID) (int64, error) {
	all, err := d.userNotifications(userID)
	if err != nil {
		return 0, err
	}
	var count int64
	for _, n := range all {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

// MarkNotificationRead sets read=true on a notification owned by userID.
func (d *DB) MarkNotificationRead(_ context.Context, userID, id primitive.ObjectID) (*models.Notification, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblNotifications, "id", id.Hex())
	if err != nil {
		return nil, fmt.Errorf("find notification: %w", err)
	}
	if raw == nil || raw.(*notificationRecord).UserID != userID.Hex() {
		return nil, fmt.Errorf("notification %s: %w", id.Hex(), store.ErrNotFound)
	}

	n := cloneNotification(raw.(*notificationRecord).Notification)
	if !n.Read {
		n.Read = true
		n.UpdatedAt = time.Now()
		record := &notificationRecord{ID: n.ID.Hex(), UserID: n.UserID.Hex(), Notification: cloneNotification(n)}
		if err := txn.Insert(tblNotifications, record); err != nil {
			return nil, fmt.Errorf("update notification: %w", err)
		}
	}
	txn.Commit()
	return n, nil
}

// MarkAllNotificationsRead marks every unread notification of the user as read.
func (d *DB) MarkAllNotificationsRead(_ context.Context, userID primitive.ObjectID) (int64, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	iter, err := txn.Get(tblNotifications, "user_id", userID.Hex())
	if err != nil {
		return 0, fmt.Errorf("list notifications: %w", err)
	}

	var unread []*models.Notification
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		n := raw.(*notificationRecord).Notification
		if !n.Read {
			unread = append(unread, cloneNotification(n))
		}
	}

	now := time.Now()
	for _, n := range unread {
		n.Read = true
		n.UpdatedAt = now
		record := &notificationRecord{ID: n.ID.Hex(), UserID: n.UserID.Hex(), Notification: n}
		if err := txn.Insert(tblNotifications, record); err != nil {
			return 0, fmt.Errorf("update notification: %w", err)
		}
	}
	txn.Commit()
	return int64(len(unread)), nil
}

// DeleteNotification removes a notification owned by userID.
func (d *DB) DeleteNotification(_ context.Context, userID, id primitive.ObjectID) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblNotifications, "id", id.Hex())
	if err != nil {
		return fmt.Errorf("find notification: %w", err)
	}
	if raw == nil || raw.(*notificationRecord).UserID != userID.Hex() {
		return fmt.Errorf("notification %s: %w", id.Hex(), store.ErrNotFound)
	}
	if err := txn.Delete(tblNotifications, raw); err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	txn.Commit()
	return nil
}

// DeleteAllNotifications removes every notification of the user.
func (d *DB) DeleteAllNotifications(_ context.Context, userID primitive.ObjectID) (int64, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	count, err := txn.DeleteAll(tblNotifications, "user_id", userID.Hex())
	if err != nil {
		return 0, fmt.Errorf("delete notifications: %w", err)
	}
	txn.Commit()
	return int64(count), nil
}

// DeleteReadNotificationsBefore purges read notifications last updated before cutoff.
func (d *DB) DeleteReadNotificationsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	iter, err := txn.Get(tblNotifications, "id")
	if err != nil {
		return 0, fmt.Errorf("list notifications: %w", err)
	}

	var stale []any
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		n := raw.(*notificationRecord).Notification
		if n.Read && n.UpdatedAt.Before(cutoff) {
			stale = append(stale, raw)
		}
	}
	for _, raw := range stale {
		if err := txn.Delete(tblNotifications, raw); err != nil {
			return 0, fmt.Errorf("delete notification: %w", err)
		}
	}
	txn.Commit()
	return int64(len(stale)), nil
}
