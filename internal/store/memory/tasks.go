package memory

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"flowbase/internal/models"
	"flowbase/internal/store"
)

// CreateTask inserts a task at version 1.
func (d *DB) CreateTask(_ context.Context, task *models.Task) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	newIDIfZero(&task.ID)
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now
	task.Version = 1
	if task.Links == nil {
		task.Links = []models.TaskLink{}
	}
	record := &taskRecord{ID: task.ID.Hex(), ProjectID: task.ProjectID.Hex(), Task: cloneTask(task)}
	if err := txn.Insert(tblTasks, record); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	txn.Commit()
	return nil
}

// FindTask finds a task by id within a project.
func (d *DB) FindTask(_ context.Context, projectID, taskID primitive.ObjectID) (*models.Task, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblTasks, "id", taskID.Hex())
	if err != nil {
		return nil, fmt.Errorf("find task: %w", err)
	}
	if raw == nil || raw.(*taskRecord).ProjectID != projectID.Hex() {
		return nil, fmt.Errorf("task %s: %w", taskID.Hex(), store.ErrNotFound)
	}
	return cloneTask(raw.(*taskRecord).Task), nil
}

// ListTasksByProject returns the tasks of a project in creation order.
func (d *DB) ListTasksByProject(_ context.Context, projectID primitive.ObjectID) ([]*models.Task, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	iter, err := txn.Get(tblTasks, "project_id", projectID.Hex())
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	var tasks []*models.Task
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		tasks = append(tasks, cloneTask(raw.(*taskRecord).Task))
	}
	return tasks, nil
}

// UpdateTask writes the task when the stored version matches expectedVersion.
func (d *DB) UpdateTask(_ context.Context, task *models.Task, expectedVersion int64) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblTasks, "id", task.ID.Hex())
	if err != nil {
		return fmt.Errorf("find task: %w", err)
	}
	if raw == nil || raw.(*taskRecord).ProjectID != task.ProjectID.Hex() {
		return fmt.Errorf("task %s: %w", task.ID.Hex(), store.ErrNotFound)
	}
	stored := raw.(*taskRecord).Task
	if stored.Version != expectedVersion {
		return fmt.Errorf("task %s at version %d: %w", task.ID.Hex(), stored.Version, store.ErrVersionConflict)
	}

	task.Version = expectedVersion + 1
	task.CreatedAt = stored.CreatedAt
	task.UpdatedAt = time.Now()
	record := &taskRecord{ID: task.ID.Hex(), ProjectID: task.ProjectID.Hex(), Task: cloneTask(task)}
	if err := txn.Insert(tblTasks, record); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	txn.Commit()
	return nil
}

// DeleteTask removes a task and its subtasks.
func (d *DB) DeleteTask(_ context.Context, projectID, taskID primitive.ObjectID) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblTasks, "id", taskID.Hex())
	if err != nil {
		return fmt.Errorf("find task: %w", err)
	}
	if raw == nil || raw.(*taskRecord).ProjectID != projectID.Hex() {
		return fmt.Errorf("task %s: %w", taskID.Hex(), store.ErrNotFound)
	}
	if err := txn.Delete(tblTasks, raw); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if _, err := txn.DeleteAll(tblSubtasks, "task_id", taskID.Hex()); err != nil {
		return fmt.Errorf("delete subtasks of task: %w", err)
	}
	txn.Commit()
	return nil
}

// CountTasks counts tasks matching the filter.
func (d *DB) CountTasks(_ context.Context, filter store.TaskFilter) (int64, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	var count int64
	for _, projectID := range filter.ProjectIDs {
		iter, err := txn.Get(tblTasks, "project_id", projectID.Hex())
		if err != nil {
			return 0, fmt.Errorf("count tasks: %w", err)
		}
		for raw := iter.Next(); raw != nil; raw = iter.Next() {
			task := raw.(*taskRecord).Task
			if filter.AssignedTo != nil && !task.IsAssignedTo(*filter.AssignedTo) {
				continue
			}
			if filter.ExcludeStatus != "" && task.Status == filter.ExcludeStatus {
				continue
			}
			count++
		}
	}
	return count, nil
}

// CreateSubtask inserts a subtask.
func (d *DB) CreateSubtask(_ context.Context, subtask *models.Subtask) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	newIDIfZero(&subtask.ID)
	now := time.Now()
	subtask.CreatedAt = now
	subtask.UpdatedAt = now
	if err := txn.Insert(tblSubtasks, newSubtaskRecord(subtask)); err != nil {
		return fmt.Errorf("insert subtask: %w", err)
	}
	txn.Commit()
	return nil
}

// FindSubtask finds a subtask under a task of a project.
func (d *DB) FindSubtask(_ context.Context, projectID, taskID, subtaskID primitive.ObjectID) (*models.Subtask, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblSubtasks, "id", subtaskID.Hex())
	if err != nil {
		return nil, fmt.Errorf("find subtask: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("subtask %s: %w", subtaskID.Hex(), store.ErrNotFound)
	}
	record := raw.(*subtaskRecord)
	if record.ProjectID != projectID.Hex() || record.TaskID != taskID.Hex() {
		return nil, fmt.Errorf("subtask %s: %w", subtaskID.Hex(), store.ErrNotFound)
	}
	s := *record.Subtask
	return &s, nil
}

func (d *DB) listSubtasks(index, key string) ([]*models.Subtask, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	iter, err := txn.Get(tblSubtasks, index, key)
	if err != nil {
		return nil, fmt.Errorf("list subtasks: %w", err)
	}

	var subtasks []*models.Subtask
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		s := *raw.(*subtaskRecord).Subtask
		subtasks = append(subtasks, &s)
	}
	return subtasks, nil
}

// ListSubtasksByTask returns the subtasks of a task.
func (d *DB) ListSubtasksByTask(_ context.Context, taskID primitive.ObjectID) ([]*models.Subtask, error) {
	return d.listSubtasks("task_id", taskID.Hex())
}

// ListSubtasksByProject returns every subtask of a project.
func (d *DB) ListSubtasksByProject(_ context.Context, projectID primitive.ObjectID) ([]*models.Subtask, error) {
	return d.listSubtasks("project_id", projectID.Hex())
}

// UpdateSubtask replaces the subtask's title and completion flag.
func (d *DB) UpdateSubtask(_ context.Context, subtask *models.Subtask) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblSubtasks, "id", subtask.ID.Hex())
	if err != nil {
		return fmt.Errorf("find subtask: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("subtask %s: %w", subtask.ID.Hex(), store.ErrNotFound)
	}

	s := *raw.(*subtaskRecord).Subtask
	s.Title = subtask.Title
	s.IsCompleted = subtask.IsCompleted
	s.UpdatedAt = time.Now()
	if err := txn.Insert(tblSubtasks, newSubtaskRecord(&s)); err != nil {
		return fmt.Errorf("update subtask: %w", err)
	}
	txn.Commit()

	*subtask = s
	return nil
}

// DeleteSubtask removes a subtask under a task of a project.
func (d *DB) DeleteSubtask(_ context.Context, projectID, taskID, subtaskID primitive.ObjectID) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblSubtasks, "id", subtaskID.Hex())
	if err != nil {
		return fmt.Errorf("find subtask: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("subtask %s: %w", subtaskID.Hex(), store.ErrNotFound)
	}
	record := raw.(*subtaskRecord)
	if record.ProjectID != projectID.Hex() || record.TaskID != taskID.Hex() {
		return fmt.Errorf("subtask %s: %w", subtaskID.Hex(), store.ErrNotFound)
	}
	if err := txn.Delete(tblSubtasks, raw); err != nil {
		return fmt.Errorf("delete subtask: %w", err)
	}
	txn.Commit()
	return nil
}
