package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"flowbase/internal/models"
	"flowbase/internal/store"
	"flowbase/internal/store/memory"
)

func newDB(t *testing.T) *memory.DB {
	t.Helper()
	db, err := memory.New()
	require.NoError(t, err)
	return db
}

func TestUserUniqueness(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)

	require.NoError(t, db.CreateUser(ctx, &models.User{Username: "alice", Email: "alice@example.com"}))

	err := db.CreateUser(ctx, &models.User{Username: "alice2", Email: "ALICE@example.com"})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	err = db.CreateUser(ctx, &models.User{Username: "alice", Email: "other@example.com"})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	found, err := db.FindUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", found.Username)
}

func TestUserTokens(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	now := time.Now()

	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)
	user := &models.User{
		Username:                "bob",
		Email:                   "bob@example.com",
		EmailVerificationToken:  "verify-hash",
		EmailVerificationExpiry: &future,
		ForgotPasswordToken:     "reset-hash",
		ForgotPasswordExpiry:    &past,
	}
	require.NoError(t, db.CreateUser(ctx, user))

	found, err := db.FindUserByVerificationToken(ctx, "verify-hash", now)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = db.FindUserByResetToken(ctx, "reset-hash", now)
	assert.ErrorIs(t, err, store.ErrNotFound)

	cleared, err := db.ClearExpiredUserTokens(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cleared)

	found, err = db.FindUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, found.ForgotPasswordToken)
	assert.Equal(t, "verify-hash", found.EmailVerificationToken)
}

func TestMembershipUniqueness(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)

	creator := primitive.NewObjectID()
	project := &models.Project{Name: "Launch", CreatedBy: creator}
	require.NoError(t, db.CreateProject(ctx, project, &models.Member{UserID: creator, Role: models.RoleAdmin}))

	other := primitive.NewObjectID()
	require.NoError(t, db.CreateMember(ctx, &models.Member{ProjectID: project.ID, UserID: other, Role: models.RoleMember}))

	err := db.CreateMember(ctx, &models.Member{ProjectID: project.ID, UserID: other, Role: models.RoleAdmin})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	members, err := db.ListMembersByProject(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, creator, members[0].UserID)
	assert.Equal(t, models.RoleAdmin, members[0].Role)
	assert.Equal(t, models.RoleMember, members[1].Role)
}

func TestDeleteProjectCascades(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)

	creator := primitive.NewObjectID()
	project := &models.Project{Name: "Launch", CreatedBy: creator}
	require.NoError(t, db.CreateProject(ctx, project, &models.Member{UserID: creator, Role: models.RoleAdmin}))

	keep := &models.Project{Name: "Other", CreatedBy: creator}
	require.NoError(t, db.CreateProject(ctx, keep, &models.Member{UserID: creator, Role: models.RoleAdmin}))

	task := &models.Task{Title: "t", ProjectID: project.ID, Status: models.TaskStatusTodo}
	require.NoError(t, db.CreateTask(ctx, task))
	subtask := &models.Subtask{Title: "s", ProjectID: project.ID, TaskID: task.ID}
	require.NoError(t, db.CreateSubtask(ctx, subtask))
	note := &models.Note{Content: "n", ProjectID: project.ID}
	require.NoError(t, db.CreateNote(ctx, note))

	require.NoError(t, db.DeleteProject(ctx, project.ID))

	_, err := db.FindProjectByID(ctx, project.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = db.FindMember(ctx, project.ID, creator)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = db.FindTask(ctx, project.ID, task.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = db.FindSubtask(ctx, project.ID, task.ID, subtask.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = db.FindNote(ctx, project.ID, note.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = db.FindMember(ctx, keep.ID, creator)
	assert.NoError(t, err)
}

func TestDeleteTaskCascadesSubtasks(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	projectID := primitive.NewObjectID()

	task := &models.Task{Title: "t", ProjectID: projectID}
	require.NoError(t, db.CreateTask(ctx, task))
	for _, title := range []string{"a", "b"} {
		require.NoError(t, db.CreateSubtask(ctx, &models.Subtask{Title: title, ProjectID: projectID, TaskID: task.ID}))
	}

	require.NoError(t, db.DeleteTask(ctx, projectID, task.ID))

	subtasks, err := db.ListSubtasksByTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, subtasks)
}

func TestTaskScopedByProject(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)

	task := &models.Task{Title: "t", ProjectID: primitive.NewObjectID()}
	require.NoError(t, db.CreateTask(ctx, task))

	_, err := db.FindTask(ctx, primitive.NewObjectID(), task.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateTaskVersion(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)

	task := &models.Task{Title: "t", ProjectID: primitive.NewObjectID()}
	require.NoError(t, db.CreateTask(ctx, task))
	assert.Equal(t, int64(1), task.Version)

	first, err := db.FindTask(ctx, task.ProjectID, task.ID)
	require.NoError(t, err)
	second, err := db.FindTask(ctx, task.ProjectID, task.ID)
	require.NoError(t, err)

	first.Title = "first"
	require.NoError(t, db.UpdateTask(ctx, first, 1))
	assert.Equal(t, int64(2), first.Version)

	second.Title = "second"
	assert.ErrorIs(t, db.UpdateTask(ctx, second, 1), store.ErrVersionConflict)

	stored, err := db.FindTask(ctx, task.ProjectID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", stored.Title)
}

func TestNotifications(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	user := primitive.NewObjectID()
	other := primitive.NewObjectID()

	var ids []primitive.ObjectID
	for i := 0; i < 3; i++ {
		n := &models.Notification{UserID: user, Type: models.NotificationTaskAssigned, Message: "m"}
		require.NoError(t, db.CreateNotification(ctx, n))
		ids = append(ids, n.ID)
	}

	_, err := db.MarkNotificationRead(ctx, other, ids[0])
	assert.ErrorIs(t, err, store.ErrNotFound)

	for i := 0; i < 2; i++ {
		n, err := db.MarkNotificationRead(ctx, user, ids[0])
		require.NoError(t, err)
		assert.True(t, n.Read)
	}

	unread, err := db.CountUnreadNotifications(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	read := false
	page, total, err := db.ListNotifications(ctx, user, models.NotificationFilter{Read: &read, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, page, 1)

	modified, err := db.MarkAllNotificationsRead(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(2), modified)

	purged, err := db.DeleteReadNotificationsBefore(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(3), purged)

	deleted, err := db.DeleteAllNotifications(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
