package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TaskStatus is the Kanban column of a task
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// Validate checks that the status is known
func (s TaskStatus) Validate() error {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone, TaskStatusCancelled:
		return nil
	}
	return fmt.Errorf("invalid task status %q", string(s))
}

// TaskLink is a URL attached to a task, decorated with preview metadata when available
type TaskLink struct {
	URL         string `bson:"url" json:"url"`
	Title       string `bson:"title,omitempty" json:"title,omitempty"`
	SiteName    string `bson:"siteName,omitempty" json:"siteName,omitempty"`
	Description string `bson:"description,omitempty" json:"description,omitempty"`
	Image       string `bson:"image,omitempty" json:"image,omitempty"`
}

// Task is a unit of work inside a project
type Task struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	Title       string              `bson:"title" json:"title"`
	Description string              `bson:"description" json:"description"`
	ProjectID   primitive.ObjectID  `bson:"project" json:"project"`
	AssignedBy  primitive.ObjectID  `bson:"assignedBy" json:"assignedBy"`
	AssignedTo  *primitive.ObjectID `bson:"assignedTo,omitempty" json:"assignedTo,omitempty"`
	Status      TaskStatus          `bson:"status" json:"status"`
	Links       []TaskLink          `bson:"links" json:"links"`
	Version     int64               `bson:"version" json:"version"` // incremented on every update
	CreatedAt   time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// IsAssignedTo reports whether the task is currently assigned to userID
func (t *Task) IsAssignedTo(userID primitive.ObjectID) bool {
	return t.AssignedTo != nil && *t.AssignedTo == userID
}

// TaskResponse is a task with user references populated and subtasks attached
type TaskResponse struct {
	ID          primitive.ObjectID `json:"_id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	ProjectID   primitive.ObjectID `json:"project"`
	AssignedBy  *UserSummary       `json:"assignedBy"`
	AssignedTo  *UserSummary       `json:"assignedTo"`
	Status      TaskStatus         `json:"status"`
	Links       []TaskLink         `json:"links"`
	Subtasks    []*Subtask         `json:"subtasks"`
	Version     int64              `json:"version"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// CreateTaskRequest is the request body for creating a task
type CreateTaskRequest struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=5000"`
	AssignedTo  string     `json:"assignedTo,omitempty" validate:"omitempty,len=24,hexadecimal"`
	Status      TaskStatus `json:"status,omitempty" validate:"omitempty,oneof=todo in_progress done cancelled"`
	Links       []string   `json:"links,omitempty" validate:"omitempty,max=20,dive,required,url"`
}

// UpdateTaskRequest is the request body for updating a task. Nil fields are left unchanged.
type UpdateTaskRequest struct {
	Title       *string     `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string     `json:"description,omitempty" validate:"omitempty,max=5000"`
	AssignedTo  *string     `json:"assignedTo,omitempty"` // empty string unassigns
	Status      *TaskStatus `json:"status,omitempty" validate:"omitempty,oneof=todo in_progress done cancelled"`
	Links       *[]string   `json:"links,omitempty" validate:"omitempty,max=20,dive,required,url"` // appended to existing links
	Version     *int64      `json:"version,omitempty" validate:"omitempty,min=1"`
}

// IsEmpty reports whether no mutable field was supplied
func (r *UpdateTaskRequest) IsEmpty() bool {
	return r.Title == nil && r.Description == nil && r.AssignedTo == nil && r.Status == nil && r.Links == nil
}

// Subtask is a checklist item under a task
type Subtask struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Title       string             `bson:"title" json:"title"`
	ProjectID   primitive.ObjectID `bson:"project" json:"project"`
	TaskID      primitive.ObjectID `bson:"task" json:"task"`
	IsCompleted bool               `bson:"isCompleted" json:"isCompleted"`
	CreatedBy   primitive.ObjectID `bson:"createdBy" json:"createdBy"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// CreateSubtaskRequest is the request body for creating a subtask
type CreateSubtaskRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

// UpdateSubtaskRequest is the request body for updating a subtask
type UpdateSubtaskRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	IsCompleted *bool   `json:"isCompleted,omitempty"`
}

// IsEmpty reports whether no mutable field was supplied
func (r *UpdateSubtaskRequest) IsEmpty() bool {
	return r.Title == nil && r.IsCompleted == nil
}
