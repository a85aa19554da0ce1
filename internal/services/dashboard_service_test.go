package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"flowbase/internal/apierr"
	"flowbase/internal/models"
)

func TestDashboardStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.user(t, "ana")
	bob := f.user(t, "bob")
	cleo := f.user(t, "cleo")

	owned := f.project(t, "Launch", ana, map[*models.User]models.Role{bob: models.RoleMember, cleo: models.RoleMember})
	owned2 := f.project(t, "Docs", ana, map[*models.User]models.Role{bob: models.RoleProjectAdmin})
	joined := f.project(t, "Hiring", cleo, map[*models.User]models.Role{ana: models.RoleMember})

	tasks := NewTaskService(f.db, f.fanout, stubPreviewer{})
	notes := NewNoteService(f.db, f.fanout)
	for _, req := range []struct {
		project primitive.ObjectID
		actor   primitive.ObjectID
		status  models.TaskStatus
	}{
		{owned.ID, ana.ID, models.TaskStatusTodo},
		{owned2.ID, ana.ID, models.TaskStatusInProgress},
		{owned2.ID, ana.ID, models.TaskStatusDone},
		{joined.ID, cleo.ID, models.TaskStatusTodo},
	} {
		_, err := tasks.Create(ctx, req.actor, req.project, &models.CreateTaskRequest{
			Title: "Task", AssignedTo: ana.ID.Hex(), Status: req.status,
		})
		require.NoError(t, err)
	}
	_, err := notes.Create(ctx, ana.ID, owned.ID, &models.NoteRequest{Content: "one"})
	require.NoError(t, err)
	_, err = notes.Create(ctx, cleo.ID, joined.ID, &models.NoteRequest{Content: "not counted"})
	require.NoError(t, err)

	stats, err := NewDashboardService(f.db).Stats(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, &models.DashboardStats{
		ActiveTasks:   3,
		TeamMembers:   2,
		Notes:         1,
		TotalProjects: 2,
	}, stats)

	empty, err := NewDashboardService(f.db).Stats(ctx, f.user(t, "zed").ID)
	require.NoError(t, err)
	assert.Equal(t, &models.DashboardStats{}, empty)
}

func TestNotificationService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.user(t, "ana")
	bob := f.user(t, "bob")
	p := f.project(t, "Launch", ana, map[*models.User]models.Role{bob: models.RoleMember})
	svc := NewNotificationService(f.db)

	for i := 0; i < 3; i++ {
		f.fanout.Enqueue(ProjectUpdatedActivity(ana, p))
	}
	f.fanout.Wait()

	page, err := svc.List(ctx, bob.ID, models.NotificationFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Notifications, 2)
	assert.Equal(t, int64(3), page.TotalCount)
	assert.Equal(t, int64(3), page.UnreadCount)

	first := page.Notifications[0]
	read, err := svc.MarkRead(ctx, bob.ID, first.ID)
	require.NoError(t, err)
	assert.True(t, read.Read)
	again, err := svc.MarkRead(ctx, bob.ID, first.ID)
	require.NoError(t, err)
	assert.True(t, again.Read, "marking read twice is idempotent")

	_, err = svc.MarkRead(ctx, ana.ID, first.ID)
	assert.Equal(t, http.StatusNotFound, apierr.StatusOf(err), "notifications are scoped to their recipient")

	modified, err := svc.MarkAllRead(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), modified)

	purged, err := svc.PurgeRead(ctx, -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(3), purged)

	deleted, err := svc.DeleteAll(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}
