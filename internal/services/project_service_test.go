package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowbase/internal/apierr"
	"flowbase/internal/models"
	"flowbase/internal/store"
)

func TestProjectCreateMakesCreatorAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.user(t, "ana")
	svc := NewProjectService(f.db, f.fanout)

	p, err := svc.Create(ctx, ana.ID, &models.CreateProjectRequest{Name: "Launch", Description: "Q3 launch"})
	require.NoError(t, err)
	assert.Equal(t, "ana", p.CreatedBy.Username)

	m, err := f.db.FindMember(ctx, p.ID, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, m.Role)

	list, err := svc.ListForUser(ctx, ana.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.RoleAdmin, list[0].Role)
	assert.Equal(t, 1, list[0].Members)

	_, err = svc.Create(ctx, ana.ID, &models.CreateProjectRequest{Name: "   ", Description: "blank"})
	assert.Equal(t, http.StatusBadRequest, apierr.StatusOf(err))
}

func TestProjectAddMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.user(t, "ana")
	bob := f.user(t, "bob")
	p := f.project(t, "Launch", ana, nil)
	svc := NewProjectService(f.db, f.fanout)

	added, err := svc.AddMember(ctx, ana.ID, p.ID, &models.AddMemberRequest{Email: "BOB@example.com", Role: "member"})
	require.NoError(t, err)
	assert.Equal(t, bob.ID, added.User.ID)

	_, err = svc.AddMember(ctx, ana.ID, p.ID, &models.AddMemberRequest{Email: "bob@example.com", Role: "admin"})
	assert.Equal(t, http.StatusConflict, apierr.StatusOf(err))

	members, err := f.db.ListMembersByProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2, "a duplicate add leaves no extra row")

	_, err = svc.AddMember(ctx, ana.ID, p.ID, &models.AddMemberRequest{Email: "ghost@example.com", Role: "member"})
	assert.Equal(t, http.StatusNotFound, apierr.StatusOf(err))

	_, err = svc.AddMember(ctx, ana.ID, p.ID, &models.AddMemberRequest{Email: "bob@example.com", Role: "owner"})
	assert.Equal(t, http.StatusBadRequest, apierr.StatusOf(err))

	f.fanout.Wait()
	rows := f.unread(t, bob)
	require.Len(t, rows, 1)
	assert.Equal(t, models.NotificationProjectAdded, rows[0].Type)
}

func TestProjectCreatorIsProtected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.user(t, "ana")
	bob := f.user(t, "bob")
	p := f.project(t, "Launch", ana, map[*models.User]models.Role{bob: models.RoleAdmin})
	svc := NewProjectService(f.db, f.fanout)

	_, err := svc.UpdateMemberRole(ctx, bob.ID, p.ID, ana.ID, &models.UpdateMemberRoleRequest{Role: "member"})
	assert.Equal(t, http.StatusForbidden, apierr.StatusOf(err))

	err = svc.RemoveMember(ctx, bob.ID, p.ID, ana.ID)
	assert.Equal(t, http.StatusForbidden, apierr.StatusOf(err))

	updated, err := svc.UpdateMemberRole(ctx, ana.ID, p.ID, bob.ID, &models.UpdateMemberRoleRequest{Role: "project_admin"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleProjectAdmin, updated.Role)

	require.NoError(t, svc.RemoveMember(ctx, ana.ID, p.ID, bob.ID))
	_, err = f.db.FindMember(ctx, p.ID, bob.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = svc.RemoveMember(ctx, ana.ID, p.ID, bob.ID)
	assert.Equal(t, http.StatusNotFound, apierr.StatusOf(err))
}

func TestProjectRemoveMemberLookupFailureKeepsMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.user(t, "ana")
	bob := f.user(t, "bob")
	p := f.project(t, "Launch", ana, map[*models.User]models.Role{bob: models.RoleMember})
	svc := NewProjectService(&flakyStore{DB: f.db, failUser: bob.ID}, f.fanout)

	err := svc.RemoveMember(ctx, ana.ID, p.ID, bob.ID)
	assert.Equal(t, http.StatusInternalServerError, apierr.StatusOf(err))

	_, err = f.db.FindMember(ctx, p.ID, bob.ID)
	assert.NoError(t, err, "a failed removal leaves the membership in place")
}

func TestProjectDeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.user(t, "ana")
	bob := f.user(t, "bob")
	p := f.project(t, "Launch", ana, map[*models.User]models.Role{bob: models.RoleMember})
	projects := NewProjectService(f.db, f.fanout)
	tasks := NewTaskService(f.db, f.fanout, stubPreviewer{})
	notes := NewNoteService(f.db, f.fanout)

	task, err := tasks.Create(ctx, ana.ID, p.ID, &models.CreateTaskRequest{Title: "Ship"})
	require.NoError(t, err)
	_, err = tasks.CreateSubtask(ctx, ana.ID, p.ID, task.ID, &models.CreateSubtaskRequest{Title: "Docs"})
	require.NoError(t, err)
	_, err = notes.Create(ctx, ana.ID, p.ID, &models.NoteRequest{Content: "kickoff"})
	require.NoError(t, err)

	require.NoError(t, projects.Delete(ctx, ana.ID, p.ID))

	_, err = f.db.FindProjectByID(ctx, p.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.db.FindTask(ctx, p.ID, task.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	subtasks, err := f.db.ListSubtasksByProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, subtasks)
	remaining, err := f.db.ListNotesByProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
	memberships, err := f.db.ListMembershipsByUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, memberships)

	f.fanout.Wait()
	var deleted int
	for _, n := range f.unread(t, bob) {
		if n.Message == `Project deleted: "Launch"` {
			deleted++
		}
	}
	assert.Equal(t, 1, deleted)
}

func TestProjectUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.user(t, "ana")
	p := f.project(t, "Launch", ana, nil)
	svc := NewProjectService(f.db, f.fanout)

	_, err := svc.Update(ctx, ana.ID, p.ID, &models.UpdateProjectRequest{})
	assert.Equal(t, http.StatusBadRequest, apierr.StatusOf(err))

	name := "Launch v2"
	updated, err := svc.Update(ctx, ana.ID, p.ID, &models.UpdateProjectRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Launch v2", updated.Name)
	assert.Equal(t, "Launch project", updated.Description)

	detail, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Launch v2", detail.Project.Name)
	assert.Len(t, detail.ProjectMembers, 1)
}
