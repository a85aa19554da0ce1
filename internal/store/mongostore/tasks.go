package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"flowbase/internal/models"
	"flowbase/internal/store"
)

// CreateTask inserts a task at version 1
func (s *Store) CreateTask(ctx context.Context, task *models.Task) error {
	if task.ID.IsZero() {
		task.ID = primitive.NewObjectID()
	}
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now
	task.Version = 1
	if task.Links == nil {
		task.Links = []models.TaskLink{}
	}

	_, err := s.tasks.InsertOne(ctx, task)
	return translate(err, "insert task")
}

// FindTask finds a task by id within a project
func (s *Store) FindTask(ctx context.Context, projectID, taskID primitive.ObjectID) (*models.Task, error) {
	var task models.Task
	if err := s.tasks.FindOne(ctx, bson.M{"_id": taskID, "project": projectID}).Decode(&task); err != nil {
		return nil, translate(err, "find task")
	}
	return &task, nil
}

// ListTasksByProject returns the tasks of a project in creation order
func (s *Store) ListTasksByProject(ctx context.Context, projectID primitive.ObjectID) ([]*models.Task, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.tasks.Find(ctx, bson.M{"project": projectID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer cursor.Close(ctx)

	var tasks []*models.Task
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	return tasks, nil
}

// UpdateTask writes the task only when the stored version equals expectedVersion
func (s *Store) UpdateTask(ctx context.Context, task *models.Task, expectedVersion int64) error {
	task.UpdatedAt = time.Now()
	set := bson.M{
		"title":       task.Title,
		"description": task.Description,
		"status":      task.Status,
		"links":       task.Links,
		"updatedAt":   task.UpdatedAt,
	}
	update := bson.M{"$set": set, "$inc": bson.M{"version": 1}}
	if task.AssignedTo != nil {
		set["assignedTo"] = *task.AssignedTo
	} else {
		update["$unset"] = bson.M{"assignedTo": ""}
	}

	filter := bson.M{"_id": task.ID, "project": task.ProjectID, "version": expectedVersion}
	result, err := s.tasks.UpdateOne(ctx, filter, update)
	if err != nil {
		return translate(err, "update task")
	}
	if result.MatchedCount == 0 {
		if _, err := s.FindTask(ctx, task.ProjectID, task.ID); err != nil {
			return err
		}
		return fmt.Errorf("task %s: %w", task.ID.Hex(), store.ErrVersionConflict)
	}

	task.Version = expectedVersion + 1
	return nil
}

// DeleteTask removes a task and its subtasks
func (s *Store) DeleteTask(ctx context.Context, projectID, taskID primitive.ObjectID) error {
	result, err := s.tasks.DeleteOne(ctx, bson.M{"_id": taskID, "project": projectID})
	if err != nil {
		return translate(err, "delete task")
	}
	if result.DeletedCount == 0 {
		return translate(errNoMatch, "delete task")
	}
	if _, err := s.subtasks.DeleteMany(ctx, bson.M{"task": taskID}); err != nil {
		return fmt.Errorf("delete subtasks of task: %w", err)
	}
	return nil
}

// CountTasks counts tasks matching the filter
func (s *Store) CountTasks(ctx context.Context, filter store.TaskFilter) (int64, error) {
	if len(filter.ProjectIDs) == 0 {
		return 0, nil
	}
	query := bson.M{"project": bson.M{"$in": filter.ProjectIDs}}
	if filter.AssignedTo != nil {
		query["assignedTo"] = *filter.AssignedTo
	}
	if filter.ExcludeStatus != "" {
		query["status"] = bson.M{"$ne": filter.ExcludeStatus}
	}
	count, err := s.tasks.CountDocuments(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return count, nil
}

// CreateSubtask inserts a subtask
func (s *Store) CreateSubtask(ctx context.Context, subtask *models.Subtask) error {
	if subtask.ID.IsZero() {
		subtask.ID = primitive.NewObjectID()
	}
	now := time.Now()
	subtask.CreatedAt = now
	subtask.UpdatedAt = now

	_, err := s.subtasks.InsertOne(ctx, subtask)
	return translate(err, "insert subtask")
}

// FindSubtask finds a subtask under a task of a project
func (s *Store) FindSubtask(ctx context.Context, projectID, taskID, subtaskID primitive.ObjectID) (*models.Subtask, error) {
	var subtask models.Subtask
	filter := bson.M{"_id": subtaskID, "task": taskID, "project": projectID}
	if err := s.subtasks.FindOne(ctx, filter).Decode(&subtask); err != nil {
		return nil, translate(err, "find subtask")
	}
	return &subtask, nil
}

func (s *Store) listSubtasks(ctx context.Context, filter bson.M) ([]*models.Subtask, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.subtasks.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list subtasks: %w", err)
	}
	defer cursor.Close(ctx)

	var subtasks []*models.Subtask
	if err := cursor.All(ctx, &subtasks); err != nil {
		return nil, fmt.Errorf("decode subtasks: %w", err)
	}
	return subtasks, nil
}

// ListSubtasksByTask returns the subtasks of a task
func (s *Store) ListSubtasksByTask(ctx context.Context, taskID primitive.ObjectID) ([]*models.Subtask, error) {
	return s.listSubtasks(ctx, bson.M{"task": taskID})
}

// ListSubtasksByProject returns every subtask of a project
func (s *Store) ListSubtasksByProject(ctx context.Context, projectID primitive.ObjectID) ([]*models.Subtask, error) {
	return s.listSubtasks(ctx, bson.M{"project": projectID})
}

// UpdateSubtask sets the subtask's title and completion flag
func (s *Store) UpdateSubtask(ctx context.Context, subtask *models.Subtask) error {
	update := bson.M{"$set": bson.M{
		"title":       subtask.Title,
		"isCompleted": subtask.IsCompleted,
		"updatedAt":   time.Now(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Subtask
	err := s.subtasks.FindOneAndUpdate(ctx, bson.M{"_id": subtask.ID}, update, opts).Decode(&updated)
	if err != nil {
		return translate(err, "update subtask")
	}
	*subtask = updated
	return nil
}

// DeleteSubtask removes a subtask under a task of a project
func (s *Store) DeleteSubtask(ctx context.Context, projectID, taskID, subtaskID primitive.ObjectID) error {
	result, err := s.subtasks.DeleteOne(ctx, bson.M{"_id": subtaskID, "task": taskID, "project": projectID})
	if err != nil {
		return translate(err, "delete subtask")
	}
	if result.DeletedCount == 0 {
		return translate(errNoMatch, "delete subtask")
	}
	return nil
}
