package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"flowbase/internal/models"
	"flowbase/internal/store/memory"
)

type stubPreviewer struct{}

func (stubPreviewer) Preview(_ context.Context, rawURL string) models.TaskLink {
	return models.TaskLink{URL: rawURL, Title: "Preview of " + rawURL}
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

type sentMail struct {
	To, Subject, Body string
}

func (m *recordingMailer) Send(_ context.Context, to, subject, markdown string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: markdown})
	return nil
}

func (m *recordingMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}
	}
	return m.sent[len(m.sent)-1]
}

// flakyStore fails selected lookups and passes everything else to the memory store
type flakyStore struct {
	*memory.DB
	failUser    primitive.ObjectID
	failMembers bool
}

var errStoreDown = errors.New("store unavailable")

func (s *flakyStore) FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	if id == s.failUser {
		return nil, errStoreDown
	}
	return s.DB.FindUserByID(ctx, id)
}

func (s *flakyStore) ListMembersByProject(ctx context.Context, projectID primitive.ObjectID) ([]*models.Member, error) {
	if s.failMembers {
		return nil, errStoreDown
	}
	return s.DB.ListMembersByProject(ctx, projectID)
}

type fixture struct {
	db     *memory.DB
	hub    *LiveHub
	fanout *FanOutService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := memory.New()
	require.NoError(t, err)
	hub := NewLiveHub(nil)
	fanout := NewFanOutService(db, hub, nil, 2, 64)
	t.Cleanup(fanout.Close)
	return &fixture{db: db, hub: hub, fanout: fanout}
}

func (f *fixture) user(t *testing.T, username string) *models.User {
	t.Helper()
	u := &models.User{
		Username:      username,
		Email:         username + "@example.com",
		Fullname:      username,
		EmailVerified: true,
	}
	require.NoError(t, f.db.CreateUser(context.Background(), u))
	return u
}

// project creates a project owned by admin and adds the other members with role
func (f *fixture) project(t *testing.T, name string, admin *models.User, members map[*models.User]models.Role) *models.Project {
	t.Helper()
	ctx := context.Background()
	p := &models.Project{Name: name, Description: name + " project", CreatedBy: admin.ID}
	require.NoError(t, f.db.CreateProject(ctx, p, &models.Member{UserID: admin.ID, Role: models.RoleAdmin}))
	for u, role := range members {
		require.NoError(t, f.db.CreateMember(ctx, &models.Member{ProjectID: p.ID, UserID: u.ID, Role: role}))
	}
	return p
}

func (f *fixture) connect(t *testing.T, u *models.User) *models.LiveConnection {
	t.Helper()
	conn := models.NewLiveConnection(primitive.NewObjectID().Hex(), u.ID.Hex(), nil, 32)
	f.hub.Register(conn)
	t.Cleanup(func() { f.hub.Unregister(conn.ConnID) })
	return conn
}

func (f *fixture) unread(t *testing.T, u *models.User) []*models.Notification {
	t.Helper()
	unread := false
	list, _, err := f.db.ListNotifications(context.Background(), u.ID, models.NotificationFilter{Read: &unread, Limit: 100})
	require.NoError(t, err)
	return list
}

// drain returns the messages already queued on conn
func drain(conn *models.LiveConnection) []models.ServerMessage {
	var out []models.ServerMessage
	for {
		select {
		case msg, ok := <-conn.WriteChan:
			if !ok {
				return out
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func messageTypes(msgs []models.ServerMessage) []string {
	types := make([]string, 0, len(msgs))
	for _, m := range msgs {
		types = append(types, m.Type)
	}
	return types
}
