package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationType classifies a notification for the client
type NotificationType string

const (
	NotificationProjectAdded   NotificationType = "project_added"
	NotificationMemberJoined   NotificationType = "member_joined"
	NotificationTaskAssigned   NotificationType = "task_assigned"
	NotificationTaskCompleted  NotificationType = "task_completed"
	NotificationProjectUpdated NotificationType = "project_updated"
	NotificationMemberRemoved  NotificationType = "member_removed"
)

// Notification is a durable per-recipient record of an activity
type Notification struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	UserID      primitive.ObjectID  `bson:"userId" json:"userId"`
	Type        NotificationType    `bson:"type" json:"type"`
	Message     string              `bson:"message" json:"message"`
	Description string              `bson:"description" json:"description"`
	ProjectID   *primitive.ObjectID `bson:"projectId,omitempty" json:"projectId,omitempty"`
	TaskID      *primitive.ObjectID `bson:"taskId,omitempty" json:"taskId,omitempty"`
	Read        bool                `bson:"read" json:"read"`
	Metadata    map[string]any      `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt   time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// NotificationFilter selects a page of a user's notifications
type NotificationFilter struct {
	Read  *bool
	Limit int64
	Skip  int64
}

// NotificationPage is the response for listing notifications
type NotificationPage struct {
	Notifications []*Notification `json:"notifications"`
	TotalCount    int64           `json:"totalCount"`
	UnreadCount   int64           `json:"unreadCount"`
}

// DashboardStats summarises the caller's workload and owned projects
type DashboardStats struct {
	ActiveTasks   int64 `json:"activeTasks"`
	TeamMembers   int64 `json:"teamMembers"`
	Notes         int64 `json:"notes"`
	TotalProjects int64 `json:"totalProjects"`
}
