package services

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"flowbase/internal/apierr"
	"flowbase/internal/models"
	"flowbase/internal/store"
)

type taskFixture struct {
	*fixture
	svc   *TaskService
	admin *models.User
	bob   *models.User
	cleo  *models.User
	p     *models.Project
}

func newTaskFixture(t *testing.T) *taskFixture {
	f := newFixture(t)
	admin := f.user(t, "ana")
	bob := f.user(t, "bob")
	cleo := f.user(t, "cleo")
	p := f.project(t, "Launch", admin, map[*models.User]models.Role{
		bob:  models.RoleMember,
		cleo: models.RoleMember,
	})
	return &taskFixture{
		fixture: f,
		svc:     NewTaskService(f.db, f.fanout, stubPreviewer{}),
		admin:   admin,
		bob:     bob,
		cleo:    cleo,
		p:       p,
	}
}

func strPtr(s string) *string { return &s }

func TestTaskCreate(t *testing.T) {
	tf := newTaskFixture(t)
	ctx := context.Background()

	task, err := tf.svc.Create(ctx, tf.admin.ID, tf.p.ID, &models.CreateTaskRequest{
		Title:      "Ship",
		AssignedTo: tf.bob.ID.Hex(),
		Links:      []string{"https://example.com/spec"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusTodo, task.Status)
	assert.Equal(t, "bob", task.AssignedTo.Username)
	assert.Equal(t, "ana", task.AssignedBy.Username)
	require.Len(t, task.Links, 1)
	assert.Equal(t, "https://example.com/spec", task.Links[0].URL)
	assert.Equal(t, int64(1), task.Version)

	outsider := tf.user(t, "zed")
	_, err = tf.svc.Create(ctx, tf.admin.ID, tf.p.ID, &models.CreateTaskRequest{Title: "Nope", AssignedTo: outsider.ID.Hex()})
	assert.Equal(t, http.StatusBadRequest, apierr.StatusOf(err))

	tf.fanout.Wait()
	rows := tf.unread(t, tf.bob)
	require.Len(t, rows, 1)
	assert.Equal(t, `You were assigned to "Ship"`, rows[0].Message)
	rows = tf.unread(t, tf.cleo)
	require.Len(t, rows, 1)
	assert.Equal(t, `New task created: "Ship"`, rows[0].Message)
}

func TestTaskMemberRefinement(t *testing.T) {
	tf := newTaskFixture(t)
	ctx := context.Background()

	task, err := tf.svc.Create(ctx, tf.admin.ID, tf.p.ID, &models.CreateTaskRequest{Title: "Ship", AssignedTo: tf.bob.ID.Hex()})
	require.NoError(t, err)

	done := models.TaskStatusDone
	tests := []struct {
		name   string
		actor  *models.User
		req    *models.UpdateTaskRequest
		keys   []string
		status int
	}{
		{
			name:   "member edits title of own task",
			actor:  tf.bob,
			req:    &models.UpdateTaskRequest{Title: strPtr("Renamed")},
			keys:   []string{"title"},
			status: http.StatusForbidden,
		},
		{
			name:   "member sends status with another field",
			actor:  tf.bob,
			req:    &models.UpdateTaskRequest{Status: &done, Description: strPtr("x")},
			keys:   []string{"status", "description"},
			status: http.StatusForbidden,
		},
		{
			name:   "member updates status of someone else's task",
			actor:  tf.cleo,
			req:    &models.UpdateTaskRequest{Status: &done},
			keys:   []string{"status"},
			status: http.StatusForbidden,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tf.svc.Update(ctx, tt.actor.ID, models.RoleMember, tf.p.ID, task.ID, tt.req, tt.keys)
			assert.Equal(t, tt.status, apierr.StatusOf(err))

			stored, err := tf.db.FindTask(ctx, tf.p.ID, task.ID)
			require.NoError(t, err)
			assert.Equal(t, "Ship", stored.Title, "task is unchanged")
			assert.Equal(t, models.TaskStatusTodo, stored.Status)
		})
	}

	updated, err := tf.svc.Update(ctx, tf.bob.ID, models.RoleMember, tf.p.ID, task.ID,
		&models.UpdateTaskRequest{Status: &done}, []string{"status"})
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusDone, updated.Status)
	assert.Equal(t, int64(2), updated.Version)
}

func TestTaskUpdateVersionConflict(t *testing.T) {
	tf := newTaskFixture(t)
	ctx := context.Background()

	task, err := tf.svc.Create(ctx, tf.admin.ID, tf.p.ID, &models.CreateTaskRequest{Title: "Ship"})
	require.NoError(t, err)

	v1 := int64(1)
	_, err = tf.svc.Update(ctx, tf.admin.ID, models.RoleAdmin, tf.p.ID, task.ID,
		&models.UpdateTaskRequest{Title: strPtr("First"), Version: &v1}, []string{"title", "version"})
	require.NoError(t, err)

	_, err = tf.svc.Update(ctx, tf.admin.ID, models.RoleAdmin, tf.p.ID, task.ID,
		&models.UpdateTaskRequest{Title: strPtr("Second"), Version: &v1}, []string{"title", "version"})
	assert.Equal(t, http.StatusConflict, apierr.StatusOf(err))

	stored, err := tf.db.FindTask(ctx, tf.p.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "First", stored.Title)
}

func TestTaskUpdateAssigneeAndLinks(t *testing.T) {
	tf := newTaskFixture(t)
	ctx := context.Background()

	task, err := tf.svc.Create(ctx, tf.admin.ID, tf.p.ID, &models.CreateTaskRequest{
		Title: "Ship", Links: []string{"https://a.example"},
	})
	require.NoError(t, err)

	links := []string{"https://b.example"}
	updated, err := tf.svc.Update(ctx, tf.admin.ID, models.RoleAdmin, tf.p.ID, task.ID,
		&models.UpdateTaskRequest{AssignedTo: strPtr(tf.cleo.ID.Hex()), Links: &links}, []string{"assignedTo", "links"})
	require.NoError(t, err)
	assert.Equal(t, "cleo", updated.AssignedTo.Username)
	require.Len(t, updated.Links, 2)
	assert.Equal(t, "https://a.example", updated.Links[0].URL)
	assert.Equal(t, "https://b.example", updated.Links[1].URL)

	updated, err = tf.svc.Update(ctx, tf.admin.ID, models.RoleAdmin, tf.p.ID, task.ID,
		&models.UpdateTaskRequest{AssignedTo: strPtr("")}, []string{"assignedTo"})
	require.NoError(t, err)
	assert.Nil(t, updated.AssignedTo)

	_, err = tf.svc.Update(ctx, tf.admin.ID, models.RoleAdmin, tf.p.ID, task.ID,
		&models.UpdateTaskRequest{AssignedTo: strPtr("not-an-id")}, []string{"assignedTo"})
	assert.Equal(t, http.StatusBadRequest, apierr.StatusOf(err))

	_, err = tf.svc.Update(ctx, tf.admin.ID, models.RoleAdmin, tf.p.ID, task.ID,
		&models.UpdateTaskRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, apierr.StatusOf(err))
}

func TestTaskLookupIsScopedByProject(t *testing.T) {
	tf := newTaskFixture(t)
	ctx := context.Background()
	other := tf.project(t, "Other", tf.admin, nil)

	task, err := tf.svc.Create(ctx, tf.admin.ID, tf.p.ID, &models.CreateTaskRequest{Title: "Ship"})
	require.NoError(t, err)

	_, err = tf.svc.Get(ctx, other.ID, task.ID)
	assert.Equal(t, http.StatusNotFound, apierr.StatusOf(err))
	err = tf.svc.Delete(ctx, tf.admin.ID, other.ID, task.ID)
	assert.Equal(t, http.StatusNotFound, apierr.StatusOf(err))
}

func TestTaskSubtasksAndDeleteCascade(t *testing.T) {
	tf := newTaskFixture(t)
	ctx := context.Background()

	task, err := tf.svc.Create(ctx, tf.admin.ID, tf.p.ID, &models.CreateTaskRequest{Title: "Ship"})
	require.NoError(t, err)
	sub, err := tf.svc.CreateSubtask(ctx, tf.admin.ID, tf.p.ID, task.ID, &models.CreateSubtaskRequest{Title: "Docs"})
	require.NoError(t, err)

	completed := true
	sub, err = tf.svc.UpdateSubtask(ctx, tf.admin.ID, tf.p.ID, task.ID, sub.ID, &models.UpdateSubtaskRequest{IsCompleted: &completed})
	require.NoError(t, err)
	assert.True(t, sub.IsCompleted)

	got, err := tf.svc.Get(ctx, tf.p.ID, task.ID)
	require.NoError(t, err)
	require.Len(t, got.Subtasks, 1)

	tf.fanout.Wait()
	var completedRows int
	for _, n := range tf.unread(t, tf.bob) {
		if n.Type == models.NotificationTaskCompleted {
			completedRows++
		}
	}
	assert.Equal(t, 1, completedRows)

	require.NoError(t, tf.svc.Delete(ctx, tf.admin.ID, tf.p.ID, task.ID))
	_, err = tf.db.FindSubtask(ctx, tf.p.ID, task.ID, sub.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTaskExport(t *testing.T) {
	tf := newTaskFixture(t)
	ctx := context.Background()

	_, err := tf.svc.Create(ctx, tf.admin.ID, tf.p.ID, &models.CreateTaskRequest{
		Title: "Ship", AssignedTo: tf.bob.ID.Hex(), Links: []string{"https://example.com"},
	})
	require.NoError(t, err)

	data, name, err := tf.svc.Export(ctx, tf.p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Launch-tasks.xlsx", name)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Title", rows[0][0])
	assert.Equal(t, "Ship", rows[1][0])
	assert.Equal(t, "todo", rows[1][1])
	assert.Equal(t, "bob", rows[1][2])
	assert.Equal(t, "0/0", rows[1][4])
}
