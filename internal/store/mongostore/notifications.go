package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"flowbase/internal/models"
)

// CreateNotification inserts a notification
func (s *Store) CreateNotification(ctx context.Context, notification *models.Notification) error {
	if notification.ID.IsZero() {
		notification.ID = primitive.NewObjectID()
	}
	now := time.Now()
	notification.CreatedAt = now
	notification.UpdatedAt = now

	_, err := s.notifications.InsertOne(ctx, notification)
	return translate(err, "insert notification")
}

// ListNotifications returns a page of the user's notifications, newest first
func (s *Store) ListNotifications(
	ctx context.Context,
	userID primitive.ObjectID,
	filter models.NotificationFilter,
) ([]*models.Notification, int64, error) {
	query := bson.M{"userId": userID}
	if filter.Read != nil {
		query["read"] = *filter.Read
	}

	total, err := s.notifications.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(filter.Skip)
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}

	cursor, err := s.notifications.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer cursor.Close(ctx)

	var notifications []*models.Notification
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, 0, fmt.Errorf("decode notifications: %w", err)
	}
	return notifications, total, nil
}

// CountUnreadNotifications counts the user's unread notifications
func (s *Store) CountUnreadNotifications(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	count, err := s.notifications.CountDocuments(ctx, bson.M{"userId": userID, "read": false})
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkNotificationRead sets read=true on a notification owned by userID. Marking an
// already-read notification leaves it unchanged.
func (s *Store) MarkNotificationRead(ctx context.Context, userID, id primitive.ObjectID) (*models.Notification, error) {
	filter := bson.M{"_id": id, "userId": userID}
	update := bson.M{"$set": bson.M{"read": true, "updatedAt": time.Now()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var notification models.Notification
	err := s.notifications.FindOneAndUpdate(ctx, bson.M{"_id": id, "userId": userID, "read": false}, update, opts).
		Decode(&notification)
	if err == nil {
		return &notification, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, translate(err, "mark notification read")
	}
	// Already read, or absent
	if err := s.notifications.FindOne(ctx, filter).Decode(&notification); err != nil {
		return nil, translate(err, "find notification")
	}
	return &notification, nil
}

// MarkAllNotificationsRead marks every unread notification of the user as read
func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	result, err := s.notifications.UpdateMany(ctx,
		bson.M{"userId": userID, "read": false},
		bson.M{"$set": bson.M{"read": true, "updatedAt": time.Now()}},
	)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return result.ModifiedCount, nil
}

// DeleteNotification removes a notification owned by userID
func (s *Store) DeleteNotification(ctx context.Context, userID, id primitive.ObjectID) error {
	result, err := s.notifications.DeleteOne(ctx, bson.M{"_id": id, "userId": userID})
	if err != nil {
		return translate(err, "delete notification")
	}
	if result.DeletedCount == 0 {
		return translate(errNoMatch, "delete notification")
	}
	return nil
}

// DeleteAllNotifications removes every notification of the user
func (s *Store) DeleteAllNotifications(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	result, err := s.notifications.DeleteMany(ctx, bson.M{"userId": userID})
	if err != nil {
		return 0, fmt.Errorf("delete notifications: %w", err)
	}
	return result.DeletedCount, nil
}

// DeleteReadNotificationsBefore purges read notifications last updated before cutoff
func (s *Store) DeleteReadNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.notifications.DeleteMany(ctx, bson.M{"read": true, "updatedAt": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("purge notifications: %w", err)
	}
	return result.DeletedCount, nil
}
