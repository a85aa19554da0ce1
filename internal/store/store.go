// Package store defines the persistence boundary for Flowbase entities.
// Implementations live in store/mongostore (production) and store/memory
// (tests and local development).
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"flowbase/internal/models"
)

var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a write violates a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate")

	// ErrVersionConflict is returned when a conditional task update lost the race.
	ErrVersionConflict = errors.New("version conflict")
)

// UserStore persists identities.
type UserStore interface {
	// CreateUser inserts a user. ErrDuplicate when the email or username is taken.
	CreateUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	FindUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*models.User, error)
	// FindUserByVerificationToken matches an unexpired hashed email verification token.
	FindUserByVerificationToken(ctx context.Context, hashed string, now time.Time) (*models.User, error)
	// FindUserByResetToken matches an unexpired hashed forgot-password token.
	FindUserByResetToken(ctx context.Context, hashed string, now time.Time) (*models.User, error)
	// UpdateUser replaces the mutable fields of a user.
	UpdateUser(ctx context.Context, user *models.User) error
	// ClearExpiredUserTokens removes verification and reset tokens that expired before now.
	ClearExpiredUserTokens(ctx context.Context, now time.Time) (int64, error)
}

// ProjectStore persists projects and their memberships.
type ProjectStore interface {
	// CreateProject inserts the project and the creator's membership as one step.
	CreateProject(ctx context.Context, project *models.Project, creator *models.Member) error
	FindProjectByID(ctx context.Context, id primitive.ObjectID) (*models.Project, error)
	FindProjectsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*models.Project, error)
	UpdateProject(ctx context.Context, project *models.Project) error
	// DeleteProject removes the project together with its memberships, tasks, subtasks and notes.
	DeleteProject(ctx context.Context, id primitive.ObjectID) error

	// CreateMember inserts a membership. ErrDuplicate when (project, user) already exists.
	CreateMember(ctx context.Context, member *models.Member) error
	FindMember(ctx context.Context, projectID, userID primitive.ObjectID) (*models.Member, error)
	ListMembersByProject(ctx context.Context, projectID primitive.ObjectID) ([]*models.Member, error)
	ListMembershipsByUser(ctx context.Context, userID primitive.ObjectID) ([]*models.Member, error)
	UpdateMemberRole(ctx context.Context, projectID, userID primitive.ObjectID, role models.Role) (*models.Member, error)
	DeleteMember(ctx context.Context, projectID, userID primitive.ObjectID) (*models.Member, error)
}

// TaskFilter narrows task counts for the dashboard.
type TaskFilter struct {
	ProjectIDs    []primitive.ObjectID
	AssignedTo    *primitive.ObjectID
	ExcludeStatus models.TaskStatus
}

// TaskStore persists tasks and subtasks. Every lookup is scoped by project.
type TaskStore interface {
	CreateTask(ctx context.Context, task *models.Task) error
	FindTask(ctx context.Context, projectID, taskID primitive.ObjectID) (*models.Task, error)
	ListTasksByProject(ctx context.Context, projectID primitive.ObjectID) ([]*models.Task, error)
	// UpdateTask writes the task if its stored version still equals expectedVersion,
	// then bumps task.Version. ErrVersionConflict otherwise.
	UpdateTask(ctx context.Context, task *models.Task, expectedVersion int64) error
	// DeleteTask removes the task and its subtasks.
	DeleteTask(ctx context.Context, projectID, taskID primitive.ObjectID) error
	CountTasks(ctx context.Context, filter TaskFilter) (int64, error)

	CreateSubtask(ctx context.Context, subtask *models.Subtask) error
	FindSubtask(ctx context.Context, projectID, taskID, subtaskID primitive.ObjectID) (*models.Subtask, error)
	ListSubtasksByTask(ctx context.Context, taskID primitive.ObjectID) ([]*models.Subtask, error)
	ListSubtasksByProject(ctx context.Context, projectID primitive.ObjectID) ([]*models.Subtask, error)
	UpdateSubtask(ctx context.Context, subtask *models.Subtask) error
	DeleteSubtask(ctx context.Context, projectID, taskID, subtaskID primitive.ObjectID) error
}

// NoteStore persists project notes.
type NoteStore interface {
	CreateNote(ctx context.Context, note *models.Note) error
	FindNote(ctx context.Context, projectID, noteID primitive.ObjectID) (*models.Note, error)
	ListNotesByProject(ctx context.Context, projectID primitive.ObjectID) ([]*models.Note, error)
	UpdateNote(ctx context.Context, note *models.Note) error
	DeleteNote(ctx context.Context, projectID, noteID primitive.ObjectID) error
	CountNotesByProjects(ctx context.Context, projectIDs []primitive.ObjectID) (int64, error)
}

// NotificationStore persists notifications. Every operation is scoped by recipient.
type NotificationStore interface {
	CreateNotification(ctx context.Context, notification *models.Notification) error
	ListNotifications(ctx context.Context, userID primitive.ObjectID, filter models.NotificationFilter) ([]*models.Notification, int64, error)
	CountUnreadNotifications(ctx context.Context, userID primitive.ObjectID) (int64, error)
	MarkNotificationRead(ctx context.Context, userID, id primitive.ObjectID) (*models.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, userID primitive.ObjectID) (int64, error)
	DeleteNotification(ctx context.Context, userID, id primitive.ObjectID) error
	DeleteAllNotifications(ctx context.Context, userID primitive.ObjectID) (int64, error)
	// DeleteReadNotificationsBefore purges read notifications last updated before cutoff.
	DeleteReadNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store is the full persistence boundary.
type Store interface {
	UserStore
	ProjectStore
	TaskStore
	NoteStore
	NotificationStore

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
