package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"flowbase/internal/apierr"
	"flowbase/internal/middleware"
	"flowbase/internal/models"
	"flowbase/internal/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// TaskHandler handles task and subtask endpoints
type TaskHandler struct {
	tasks *services.TaskService
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(tasks *services.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// callerAndProject returns the authenticated user and the :projectId parameter
func callerAndProject(c *fiber.Ctx) (primitive.ObjectID, primitive.ObjectID, error) {
	userID, err := middleware.UserID(c)
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, err
	}
	projectID, err := middleware.ObjectIDParam(c, "projectId")
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, err
	}
	return userID, projectID, nil
}

// List returns the project's tasks
// GET /api/v1/task/projects/:projectId/tasks
func (h *TaskHandler) List(c *fiber.Ctx) error {
	projectID, err := middleware.ObjectIDParam(c, "projectId")
	if err != nil {
		return err
	}
	tasks, err := h.tasks.List(c.UserContext(), projectID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, tasks, "Tasks fetched successfully")
}

// Create creates a task
// POST /api/v1/task/projects/:projectId/tasks
func (h *TaskHandler) Create(c *fiber.Ctx) error {
	userID, projectID, err := callerAndProject(c)
	if err != nil {
		return err
	}
	var req models.CreateTaskRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	task, err := h.tasks.Create(c.UserContext(), userID, projectID, &req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, task, "Task created successfully")
}

// Export downloads the project's tasks as a spreadsheet
// GET /api/v1/task/projects/:projectId/export
func (h *TaskHandler) Export(c *fiber.Ctx) error {
	projectID, err := middleware.ObjectIDParam(c, "projectId")
	if err != nil {
		return err
	}
	data, filename, err := h.tasks.Export(c.UserContext(), projectID)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(data)
}

// Get returns one task
// GET /api/v1/task/:projectId/n/:taskId
func (h *TaskHandler) Get(c *fiber.Ctx) error {
	projectID, err := middleware.ObjectIDParam(c, "projectId")
	if err != nil {
		return err
	}
	taskID, err := middleware.ObjectIDParam(c, "taskId")
	if err != nil {
		return err
	}
	task, err := h.tasks.Get(c.UserContext(), projectID, taskID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, task, "Task fetched successfully")
}

// Update applies a partial task update. The raw payload keys are passed on
// so member restrictions are checked against what the client actually sent.
// PUT /api/v1/task/:projectId/n/:taskId
func (h *TaskHandler) Update(c *fiber.Ctx) error {
	userID, projectID, err := callerAndProject(c)
	if err != nil {
		return err
	}
	taskID, err := middleware.ObjectIDParam(c, "taskId")
	if err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(c.Body(), &raw); err != nil {
		return apierr.Validation("Invalid request body")
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	var req models.UpdateTaskRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return apierr.Validation("Invalid request body")
	}

	task, err := h.tasks.Update(c.UserContext(), userID, middleware.ProjectRole(c), projectID, taskID, &req, keys)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, task, "Task updated successfully")
}

// Delete removes a task and its subtasks
// DELETE /api/v1/task/:projectId/n/:taskId
func (h *TaskHandler) Delete(c *fiber.Ctx) error {
	userID, projectID, err := callerAndProject(c)
	if err != nil {
		return err
	}
	taskID, err := middleware.ObjectIDParam(c, "taskId")
	if err != nil {
		return err
	}
	if err := h.tasks.Delete(c.UserContext(), userID, projectID, taskID); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, fiber.Map{}, "Task deleted successfully")
}

// CreateSubtask adds a subtask
// POST /api/v1/task/:projectId/n/:taskId/subtasks
func (h *TaskHandler) CreateSubtask(c *fiber.Ctx) error {
	userID, projectID, err := callerAndProject(c)
	if err != nil {
		return err
	}
	taskID, err := middleware.ObjectIDParam(c, "taskId")
	if err != nil {
		return err
	}
	var req models.CreateSubtaskRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	subtask, err := h.tasks.CreateSubtask(c.UserContext(), userID, projectID, taskID, &req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, subtask, "Subtask created successfully")
}

// UpdateSubtask changes a subtask
// PUT /api/v1/task/:projectId/n/:taskId/subtasks/:subtaskId
func (h *TaskHandler) UpdateSubtask(c *fiber.Ctx) error {
	userID, projectID, err := callerAndProject(c)
	if err != nil {
		return err
	}
	taskID, err := middleware.ObjectIDParam(c, "taskId")
	if err != nil {
		return err
	}
	subtaskID, err := middleware.ObjectIDParam(c, "subtaskId")
	if err != nil {
		return err
	}
	var req models.UpdateSubtaskRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	subtask, err := h.tasks.UpdateSubtask(c.UserContext(), userID, projectID, taskID, subtaskID, &req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, subtask, "Subtask updated successfully")
}

// DeleteSubtask removes a subtask
// DELETE /api/v1/task/:projectId/n/:taskId/subtasks/:subtaskId
func (h *TaskHandler) DeleteSubtask(c *fiber.Ctx) error {
	userID, projectID, err := callerAndProject(c)
	if err != nil {
		return err
	}
	taskID, err := middleware.ObjectIDParam(c, "taskId")
	if err != nil {
		return err
	}
	subtaskID, err := middleware.ObjectIDParam(c, "subtaskId")
	if err != nil {
		return err
	}
	if err := h.tasks.DeleteSubtask(c.UserContext(), userID, projectID, taskID, subtaskID); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, fiber.Map{}, "Subtask deleted successfully")
}
