package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"flowbase/internal/apierr"
	"flowbase/internal/models"
)

func TestNoteLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.user(t, "ana")
	bob := f.user(t, "bob")
	p := f.project(t, "Launch", ana, map[*models.User]models.Role{bob: models.RoleMember})
	svc := NewNoteService(f.db, f.fanout)

	created, err := svc.Create(ctx, ana.ID, p.ID, &models.NoteRequest{Content: "Kickoff on Monday"})
	require.NoError(t, err)
	f.fanout.Wait()
	require.Len(t, f.unread(t, bob), 1)

	got, err := svc.Get(ctx, p.ID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kickoff on Monday", got.Content)
	assert.Equal(t, "ana", got.CreatedBy.Username)

	updated, err := svc.Update(ctx, ana.ID, p.ID, created.ID, &models.NoteRequest{Content: "Kickoff on Tuesday"})
	require.NoError(t, err)
	assert.Equal(t, "Kickoff on Tuesday", updated.Content)

	got, err = svc.Get(ctx, p.ID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kickoff on Tuesday", got.Content)

	_, err = svc.Update(ctx, ana.ID, p.ID, created.ID, &models.NoteRequest{Content: ""})
	assert.Equal(t, http.StatusBadRequest, apierr.StatusOf(err))

	require.NoError(t, svc.Delete(ctx, ana.ID, p.ID, created.ID))
	_, err = svc.Get(ctx, p.ID, created.ID)
	assert.Equal(t, http.StatusNotFound, apierr.StatusOf(err))
	assert.Equal(t, http.StatusNotFound, apierr.StatusOf(svc.Delete(ctx, ana.ID, p.ID, created.ID)))

	f.fanout.Wait()
	rows := f.unread(t, bob)
	messages := make([]string, 0, len(rows))
	for _, n := range rows {
		messages = append(messages, n.Message)
	}
	assert.ElementsMatch(t, []string{
		`Note added in "Launch"`,
		`Note updated in "Launch"`,
		`Note deleted in "Launch"`,
	}, messages)
	assert.Empty(t, f.unread(t, ana), "the actor is never notified")
}

func TestNoteScopedToProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.user(t, "ana")
	launch := f.project(t, "Launch", ana, nil)
	other := f.project(t, "Other", ana, nil)
	svc := NewNoteService(f.db, f.fanout)

	note, err := svc.Create(ctx, ana.ID, launch.ID, &models.NoteRequest{Content: "private to launch"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, other.ID, note.ID)
	assert.Equal(t, http.StatusNotFound, apierr.StatusOf(err))
	_, err = svc.Update(ctx, ana.ID, other.ID, note.ID, &models.NoteRequest{Content: "hijack"})
	assert.Equal(t, http.StatusNotFound, apierr.StatusOf(err))
	assert.Equal(t, http.StatusNotFound, apierr.StatusOf(svc.Delete(ctx, ana.ID, other.ID, note.ID)))
	_, err = svc.Get(ctx, launch.ID, primitive.NewObjectID())
	assert.Equal(t, http.StatusNotFound, apierr.StatusOf(err))

	got, err := svc.Get(ctx, launch.ID, note.ID)
	require.NoError(t, err)
	assert.Equal(t, "private to launch", got.Content)

	list, err := svc.List(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}
