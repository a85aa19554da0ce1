package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"flowbase/internal/models"
)

func TestFanOutWritesOneUnreadRowPerRecipient(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "ana")
	bob := f.user(t, "bob")
	cleo := f.user(t, "cleo")
	dan := f.user(t, "dan")
	p := f.project(t, "Launch", admin, map[*models.User]models.Role{
		bob:  models.RoleMember,
		cleo: models.RoleProjectAdmin,
		dan:  models.RoleMember,
	})

	f.fanout.Enqueue(ProjectUpdatedActivity(admin, p))
	f.fanout.Wait()

	for _, u := range []*models.User{bob, cleo, dan} {
		rows := f.unread(t, u)
		require.Len(t, rows, 1, u.Username)
		assert.Equal(t, models.NotificationProjectUpdated, rows[0].Type)
		assert.Equal(t, `Project updated: "Launch"`, rows[0].Message)
		assert.False(t, rows[0].Read)
		require.NotNil(t, rows[0].ProjectID)
		assert.Equal(t, p.ID, *rows[0].ProjectID)
		assert.Equal(t, "Launch", rows[0].Metadata["projectName"])
	}
	assert.Empty(t, f.unread(t, admin), "actor is never notified")
}

func TestFanOutMemberAddedSplitsTemplates(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "ana")
	bob := f.user(t, "bob")
	cleo := f.user(t, "cleo")
	p := f.project(t, "Launch", admin, map[*models.User]models.Role{
		bob:  models.RoleMember,
		cleo: models.RoleMember,
	})

	f.fanout.Enqueue(MemberAddedActivity(admin, p, cleo, models.RoleMember))
	f.fanout.Wait()

	cleoRows := f.unread(t, cleo)
	require.Len(t, cleoRows, 1)
	assert.Equal(t, models.NotificationProjectAdded, cleoRows[0].Type)
	assert.Equal(t, `You were added to "Launch"`, cleoRows[0].Message)

	bobRows := f.unread(t, bob)
	require.Len(t, bobRows, 1)
	assert.Equal(t, models.NotificationMemberJoined, bobRows[0].Type)
	assert.Equal(t, `cleo joined "Launch"`, bobRows[0].Message)
}

func TestFanOutPublishesLiveEvents(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "ana")
	bob := f.user(t, "bob")
	p := f.project(t, "Launch", admin, map[*models.User]models.Role{bob: models.RoleMember})

	bobConn := f.connect(t, bob)
	require.NoError(t, f.hub.Join(bobConn.ConnID, ProjectRoom(p.ID.Hex())))

	f.fanout.Enqueue(ProjectUpdatedActivity(admin, p))
	f.fanout.Wait()

	msgs := drain(bobConn)
	assert.Equal(t, []string{models.EventNotificationReceived, models.EventProjectDataUpdated}, messageTypes(msgs))

	n, ok := msgs[0].Data.(*models.Notification)
	require.True(t, ok)
	assert.Equal(t, bob.ID, n.UserID)

	changed, ok := msgs[1].Data.(models.DataChanged)
	require.True(t, ok)
	assert.Equal(t, models.DataProject, changed.Type)
	assert.Equal(t, p.ID.Hex(), changed.ProjectID)
}

func TestFanOutTaskUpdatedTemplates(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "ana")
	bob := f.user(t, "bob")
	p := f.project(t, "Launch", admin, map[*models.User]models.Role{bob: models.RoleMember})

	before := &models.Task{ID: primitive.NewObjectID(), Title: "Ship", ProjectID: p.ID, Status: models.TaskStatusTodo}
	after := *before
	after.AssignedTo = &bob.ID
	after.Status = models.TaskStatusDone

	f.fanout.Enqueue(TaskUpdatedActivity(admin, p, before, &after))
	f.fanout.Wait()

	rows := f.unread(t, bob)
	require.Len(t, rows, 2, "assignment and completion are separate notifications")
	types := []models.NotificationType{rows[0].Type, rows[1].Type}
	assert.ElementsMatch(t, []models.NotificationType{models.NotificationTaskAssigned, models.NotificationTaskCompleted}, types)
	for _, r := range rows {
		require.NotNil(t, r.TaskID)
		assert.Equal(t, before.ID, *r.TaskID)
	}
}

func TestFanOutProjectDeletedUsesSnapshot(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "ana")
	bob := f.user(t, "bob")
	p := f.project(t, "Launch", admin, map[*models.User]models.Role{bob: models.RoleMember})

	require.NoError(t, f.db.DeleteProject(t.Context(), p.ID))
	f.fanout.Enqueue(ProjectDeletedActivity(admin, p, []primitive.ObjectID{admin.ID, bob.ID}))
	f.fanout.Wait()

	rows := f.unread(t, bob)
	require.Len(t, rows, 1)
	assert.Equal(t, `Project deleted: "Launch"`, rows[0].Message)
}

func TestResolveRecipients(t *testing.T) {
	a, b, c, d := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()

	got := resolveRecipients([]primitive.ObjectID{a, b, b, c, d}, a, []primitive.ObjectID{d})
	assert.Equal(t, []primitive.ObjectID{b, c}, got)
}

func TestFanOutDropsAfterClose(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "ana")
	bob := f.user(t, "bob")
	p := f.project(t, "Launch", admin, map[*models.User]models.Role{bob: models.RoleMember})

	f.fanout.Close()
	f.fanout.Enqueue(ProjectUpdatedActivity(admin, p))
	f.fanout.Wait()

	assert.Empty(t, f.unread(t, bob))
}

func TestFanOutMemberLookupFailureStillInvalidates(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "ana")
	bob := f.user(t, "bob")
	p := f.project(t, "Launch", admin, map[*models.User]models.Role{bob: models.RoleMember})

	fanout := NewFanOutService(&flakyStore{DB: f.db, failMembers: true}, f.hub, nil, 1, 8)
	t.Cleanup(fanout.Close)

	viewer := f.connect(t, bob)
	require.NoError(t, f.hub.Join(viewer.ConnID, ProjectRoom(p.ID.Hex())))

	fanout.Enqueue(ProjectUpdatedActivity(admin, p))
	fanout.Wait()

	assert.Empty(t, f.unread(t, bob), "member deliveries are skipped")
	msgs := drain(viewer)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.EventProjectDataUpdated, msgs[0].Type)
	assert.Equal(t, ProjectRoom(p.ID.Hex()), msgs[0].Room)
}
