package services

import (
	"context"
	"errors"
	"slices"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"flowbase/internal/apierr"
	"flowbase/internal/models"
	"flowbase/internal/store"
)

// Payload keys a member may send when updating a task assigned to them
var memberTaskKeys = []string{"status", "version"}

// TaskService manages tasks and subtasks
type TaskService struct {
	store    store.Store
	fanout   ActivityQueue
	previews LinkPreviewer
}

// NewTaskService creates a task service
func NewTaskService(s store.Store, fanout ActivityQueue, previews LinkPreviewer) *TaskService {
	return &TaskService{store: s, fanout: fanout, previews: previews}
}

func (s *TaskService) loadTask(ctx context.Context, projectID, taskID primitive.ObjectID) (*models.Task, error) {
	task, err := s.store.FindTask(ctx, projectID, taskID)
	if err != nil {
		return nil, notFound(err, "Task not found")
	}
	return task, nil
}

// assignee parses an assignee id and checks that the user belongs to the project
func (s *TaskService) assignee(ctx context.Context, projectID primitive.ObjectID, raw string) (*primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return nil, apierr.Validation("Invalid assignee",
			apierr.FieldError{Field: "assignedTo", Tag: "objectid", Message: "assignedTo must be a valid id"})
	}
	if _, err := s.store.FindMember(ctx, projectID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apierr.Validation("Assignee must be a member of this project",
				apierr.FieldError{Field: "assignedTo", Tag: "member", Message: "assignedTo must be a project member"})
		}
		return nil, apierr.Internal("Failed to check assignee").Wrap(err)
	}
	return &id, nil
}

func (s *TaskService) responses(ctx context.Context, tasks []*models.Task, subtasks []*models.Subtask) ([]models.TaskResponse, error) {
	var ids []primitive.ObjectID
	for _, t := range tasks {
		ids = append(ids, t.AssignedBy)
		if t.AssignedTo != nil {
			ids = append(ids, *t.AssignedTo)
		}
	}
	users, err := userIndex(ctx, s.store, ids...)
	if err != nil {
		return nil, err
	}

	byTask := make(map[primitive.ObjectID][]*models.Subtask)
	for _, st := range subtasks {
		byTask[st.TaskID] = append(byTask[st.TaskID], st)
	}

	out := make([]models.TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		r := models.TaskResponse{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			ProjectID:   t.ProjectID,
			AssignedBy:  users[t.AssignedBy].Summary(),
			Status:      t.Status,
			Links:       t.Links,
			Subtasks:    byTask[t.ID],
			Version:     t.Version,
			CreatedAt:   t.CreatedAt,
			UpdatedAt:   t.UpdatedAt,
		}
		if t.AssignedTo != nil {
			r.AssignedTo = users[*t.AssignedTo].Summary()
		}
		if r.Subtasks == nil {
			r.Subtasks = []*models.Subtask{}
		}
		if r.Links == nil {
			r.Links = []models.TaskLink{}
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *TaskService) response(ctx context.Context, task *models.Task) (models.TaskResponse, error) {
	subtasks, err := s.store.ListSubtasksByTask(ctx, task.ID)
	if err != nil {
		return models.TaskResponse{}, apierr.Internal("Failed to load subtasks").Wrap(err)
	}
	out, err := s.responses(ctx, []*models.Task{task}, subtasks)
	if err != nil {
		return models.TaskResponse{}, apierr.Internal("Failed to load task").Wrap(err)
	}
	return out[0], nil
}

// List returns the project's tasks with users populated and subtasks attached
func (s *TaskService) List(ctx context.Context, projectID primitive.ObjectID) ([]models.TaskResponse, error) {
	tasks, err := s.store.ListTasksByProject(ctx, projectID)
	if err != nil {
		return nil, apierr.Internal("Failed to list tasks").Wrap(err)
	}
	subtasks, err := s.store.ListSubtasksByProject(ctx, projectID)
	if err != nil {
		return nil, apierr.Internal("Failed to list tasks").Wrap(err)
	}
	out, err := s.responses(ctx, tasks, subtasks)
	if err != nil {
		return nil, apierr.Internal("Failed to list tasks").Wrap(err)
	}
	return out, nil
}

// Get returns one task of the project
func (s *TaskService) Get(ctx context.Context, projectID, taskID primitive.ObjectID) (models.TaskResponse, error) {
	task, err := s.loadTask(ctx, projectID, taskID)
	if err != nil {
		return models.TaskResponse{}, err
	}
	return s.response(ctx, task)
}

// Create stores a task, decorating its links with previews
func (s *TaskService) Create(ctx context.Context, actorID, projectID primitive.ObjectID, req *models.CreateTaskRequest) (models.TaskResponse, error) {
	if err := apierr.ValidateStruct(req); err != nil {
		return models.TaskResponse{}, err
	}
	who, project, err := actorAndProject(ctx, s.store, actorID, projectID)
	if err != nil {
		return models.TaskResponse{}, err
	}

	task := &models.Task{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		ProjectID:   projectID,
		AssignedBy:  actorID,
		Status:      req.Status,
	}
	if task.Status == "" {
		task.Status = models.TaskStatusTodo
	}
	if req.AssignedTo != "" {
		if task.AssignedTo, err = s.assignee(ctx, projectID, req.AssignedTo); err != nil {
			return models.TaskResponse{}, err
		}
	}
	task.Links = PreviewAll(ctx, s.previews, req.Links)

	if err := s.store.CreateTask(ctx, task); err != nil {
		return models.TaskResponse{}, apierr.Internal("Failed to create task").Wrap(err)
	}

	s.fanout.Enqueue(TaskCreatedActivity(who, project, task))
	return s.response(ctx, task)
}

// Update applies a partial update. Members may only change the status of
// tasks assigned to them; keys lists the fields present in the raw payload.
func (s *TaskService) Update(
	ctx context.Context,
	actorID primitive.ObjectID,
	role models.Role,
	projectID, taskID primitive.ObjectID,
	req *models.UpdateTaskRequest,
	keys []string,
) (models.TaskResponse, error) {
	if req.IsEmpty() {
		return models.TaskResponse{}, apierr.Validation("At least one field is required to update the task")
	}
	if err := apierr.ValidateStruct(req); err != nil {
		return models.TaskResponse{}, err
	}

	task, err := s.loadTask(ctx, projectID, taskID)
	if err != nil {
		return models.TaskResponse{}, err
	}

	if role == models.RoleMember {
		if !task.IsAssignedTo(actorID) {
			return models.TaskResponse{}, apierr.Forbidden("You can only update tasks assigned to you")
		}
		for _, k := range keys {
			if !slices.Contains(memberTaskKeys, k) {
				return models.TaskResponse{}, apierr.Forbidden("Members can only update task status")
			}
		}
	}

	who, project, err := actorAndProject(ctx, s.store, actorID, projectID)
	if err != nil {
		return models.TaskResponse{}, err
	}

	before := *task
	expected := task.Version
	if req.Version != nil {
		expected = *req.Version
	}

	if req.Title != nil {
		task.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Status != nil {
		task.Status = *req.Status
	}
	if req.AssignedTo != nil {
		if *req.AssignedTo == "" {
			task.AssignedTo = nil
		} else if task.AssignedTo, err = s.assignee(ctx, projectID, *req.AssignedTo); err != nil {
			return models.TaskResponse{}, err
		}
	}
	if req.Links != nil && len(*req.Links) > 0 {
		links := slices.Clone(task.Links)
		task.Links = append(links, PreviewAll(ctx, s.previews, *req.Links)...)
	}

	if err := s.store.UpdateTask(ctx, task, expected); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return models.TaskResponse{}, apierr.Conflict("Task was modified by someone else, reload and try again")
		}
		return models.TaskResponse{}, notFound(err, "Task not found")
	}

	s.fanout.Enqueue(TaskUpdatedActivity(who, project, &before, task))
	return s.response(ctx, task)
}

// Delete removes a task and its subtasks
func (s *TaskService) Delete(ctx context.Context, actorID, projectID, taskID primitive.ObjectID) error {
	task, err := s.loadTask(ctx, projectID, taskID)
	if err != nil {
		return err
	}
	who, project, err := actorAndProject(ctx, s.store, actorID, projectID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteTask(ctx, projectID, taskID); err != nil {
		return notFound(err, "Task not found")
	}

	s.fanout.Enqueue(TaskDeletedActivity(who, project, task))
	return nil
}

// CreateSubtask adds a checklist item to a task
func (s *TaskService) CreateSubtask(ctx context.Context, actorID, projectID, taskID primitive.ObjectID, req *models.CreateSubtaskRequest) (*models.Subtask, error) {
	if err := apierr.ValidateStruct(req); err != nil {
		return nil, err
	}
	task, err := s.loadTask(ctx, projectID, taskID)
	if err != nil {
		return nil, err
	}
	who, project, err := actorAndProject(ctx, s.store, actorID, projectID)
	if err != nil {
		return nil, err
	}

	subtask := &models.Subtask{
		Title:     strings.TrimSpace(req.Title),
		ProjectID: projectID,
		TaskID:    taskID,
		CreatedBy: actorID,
	}
	if err := s.store.CreateSubtask(ctx, subtask); err != nil {
		return nil, apierr.Internal("Failed to create subtask").Wrap(err)
	}

	s.fanout.Enqueue(SubtaskActivity(who, project, task, subtask, ChangeAdded))
	return subtask, nil
}

// UpdateSubtask changes a subtask's title or completion
func (s *TaskService) UpdateSubtask(ctx context.Context, actorID, projectID, taskID, subtaskID primitive.ObjectID, req *models.UpdateSubtaskRequest) (*models.Subtask, error) {
	if req.IsEmpty() {
		return nil, apierr.Validation("At least one field is required to update the subtask")
	}
	if err := apierr.ValidateStruct(req); err != nil {
		return nil, err
	}

	task, err := s.loadTask(ctx, projectID, taskID)
	if err != nil {
		return nil, err
	}
	subtask, err := s.store.FindSubtask(ctx, projectID, taskID, subtaskID)
	if err != nil {
		return nil, notFound(err, "Subtask not found")
	}
	who, project, err := actorAndProject(ctx, s.store, actorID, projectID)
	if err != nil {
		return nil, err
	}

	wasCompleted := subtask.IsCompleted
	if req.Title != nil {
		subtask.Title = strings.TrimSpace(*req.Title)
	}
	if req.IsCompleted != nil {
		subtask.IsCompleted = *req.IsCompleted
	}
	if err := s.store.UpdateSubtask(ctx, subtask); err != nil {
		return nil, notFound(err, "Subtask not found")
	}

	change := ChangeUpdated
	if subtask.IsCompleted && !wasCompleted {
		change = ChangeCompleted
	}
	s.fanout.Enqueue(SubtaskActivity(who, project, task, subtask, change))
	return subtask, nil
}

// DeleteSubtask removes a subtask
func (s *TaskService) DeleteSubtask(ctx context.Context, actorID, projectID, taskID, subtaskID primitive.ObjectID) error {
	task, err := s.loadTask(ctx, projectID, taskID)
	if err != nil {
		return err
	}
	subtask, err := s.store.FindSubtask(ctx, projectID, taskID, subtaskID)
	if err != nil {
		return notFound(err, "Subtask not found")
	}
	who, project, err := actorAndProject(ctx, s.store, actorID, projectID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteSubtask(ctx, projectID, taskID, subtaskID); err != nil {
		return notFound(err, "Subtask not found")
	}

	s.fanout.Enqueue(SubtaskActivity(who, project, task, subtask, ChangeDeleted))
	return nil
}
