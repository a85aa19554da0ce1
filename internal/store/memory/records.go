package memory

import (
	"maps"
	"slices"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"flowbase/internal/models"
)

// Records wrap the models with string keys for the memdb indexers.

type userRecord struct {
	ID                string
	Email             string
	Username          string
	VerificationToken string
	ResetToken        string
	User              *models.User
}

func newUserRecord(u *models.User) *userRecord {
	return &userRecord{
		ID:                u.ID.Hex(),
		Email:             u.Email,
		Username:          u.Username,
		VerificationToken: u.EmailVerificationToken,
		ResetToken:        u.ForgotPasswordToken,
		User:              cloneUser(u),
	}
}

type projectRecord struct {
	ID      string
	Project *models.Project
}

type memberRecord struct {
	ID        string
	ProjectID string
	UserID    string
	Member    *models.Member
}

func newMemberRecord(m *models.Member) *memberRecord {
	c := *m
	return &memberRecord{ID: m.ID.Hex(), ProjectID: m.ProjectID.Hex(), UserID: m.UserID.Hex(), Member: &c}
}

type taskRecord struct {
	ID        string
	ProjectID string
	Task      *models.Task
}

type subtaskRecord struct {
	ID        string
	ProjectID string
	TaskID    string
	Subtask   *models.Subtask
}

func newSubtaskRecord(s *models.Subtask) *subtaskRecord {
	c := *s
	return &subtaskRecord{ID: s.ID.Hex(), ProjectID: s.ProjectID.Hex(), TaskID: s.TaskID.Hex(), Subtask: &c}
}

type noteRecord struct {
	ID        string
	ProjectID string
	Note      *models.Note
}

type notificationRecord struct {
	ID           string
	UserID       string
	Notification *models.Notification
}

func cloneUser(u *models.User) *models.User {
	c := *u
	if u.EmailVerificationExpiry != nil {
		t := *u.EmailVerificationExpiry
		c.EmailVerificationExpiry = &t
	}
	if u.ForgotPasswordExpiry != nil {
		t := *u.ForgotPasswordExpiry
		c.ForgotPasswordExpiry = &t
	}
	return &c
}

func cloneTask(t *models.Task) *models.Task {
	c := *t
	if t.AssignedTo != nil {
		id := *t.AssignedTo
		c.AssignedTo = &id
	}
	c.Links = slices.Clone(t.Links)
	if c.Links == nil {
		c.Links = []models.TaskLink{}
	}
	return &c
}

func cloneNotification(n *models.Notification) *models.Notification {
	c := *n
	c.ProjectID = cloneIDPtr(n.ProjectID)
	c.TaskID = cloneIDPtr(n.TaskID)
	c.Metadata = maps.Clone(n.Metadata)
	return &c
}

func cloneIDPtr(id *primitive.ObjectID) *primitive.ObjectID {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
