package handlers

import (
	"github.com/gofiber/fiber/v2"

	"flowbase/internal/middleware"
	"flowbase/internal/models"
	"flowbase/internal/services"
)

// ProjectHandler handles project and membership endpoints
type ProjectHandler struct {
	projects *services.ProjectService
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(projects *services.ProjectService) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

// List returns the caller's projects
// GET /api/v1/project
func (h *ProjectHandler) List(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	items, err := h.projects.ListForUser(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, items, "Projects fetched successfully")
}

// Create creates a project owned by the caller
// POST /api/v1/project
func (h *ProjectHandler) Create(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	var req models.CreateProjectRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	project, err := h.projects.Create(c.UserContext(), userID, &req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, project, "Project created successfully")
}

// Get returns a project with its members
// GET /api/v1/project/:projectId
func (h *ProjectHandler) Get(c *fiber.Ctx) error {
	projectID, err := middleware.ObjectIDParam(c, "projectId")
	if err != nil {
		return err
	}
	detail, err := h.projects.Get(c.UserContext(), projectID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, detail, "Project fetched successfully")
}

// Update changes project details
// PUT /api/v1/project/:projectId
func (h *ProjectHandler) Update(c *fiber.Ctx) error {
	userID, projectID, err := callerAndProject(c)
	if err != nil {
		return err
	}
	var req models.UpdateProjectRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	project, err := h.projects.Update(c.UserContext(), userID, projectID, &req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, project, "Project updated successfully")
}

// Delete removes a project and everything in it
// DELETE /api/v1/project/:projectId
func (h *ProjectHandler) Delete(c *fiber.Ctx) error {
	userID, projectID, err := callerAndProject(c)
	if err != nil {
		return err
	}
	if err := h.projects.Delete(c.UserContext(), userID, projectID); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, fiber.Map{}, "Project deleted successfully")
}

// ListMembers returns the project's members
// GET /api/v1/project/:projectId/members
func (h *ProjectHandler) ListMembers(c *fiber.Ctx) error {
	projectID, err := middleware.ObjectIDParam(c, "projectId")
	if err != nil {
		return err
	}
	members, err := h.projects.ListMembers(c.UserContext(), projectID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, members, "Project members fetched")
}

// AddMember adds a registered user by email
// POST /api/v1/project/:projectId/members
func (h *ProjectHandler) AddMember(c *fiber.Ctx) error {
	userID, projectID, err := callerAndProject(c)
	if err != nil {
		return err
	}
	var req models.AddMemberRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	member, err := h.projects.AddMember(c.UserContext(), userID, projectID, &req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, member, "Project member added successfully")
}

// UpdateMemberRole changes a member's role
// PUT /api/v1/project/:projectId/members/:memberId
func (h *ProjectHandler) UpdateMemberRole(c *fiber.Ctx) error {
	userID, projectID, err := callerAndProject(c)
	if err != nil {
		return err
	}
	memberID, err := middleware.ObjectIDParam(c, "memberId")
	if err != nil {
		return err
	}
	var req models.UpdateMemberRoleRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	member, err := h.projects.UpdateMemberRole(c.UserContext(), userID, projectID, memberID, &req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, member, "Project member role updated successfully")
}

// RemoveMember removes a member from the project
// DELETE /api/v1/project/:projectId/members/:memberId
func (h *ProjectHandler) RemoveMember(c *fiber.Ctx) error {
	userID, projectID, err := callerAndProject(c)
	if err != nil {
		return err
	}
	memberID, err := middleware.ObjectIDParam(c, "memberId")
	if err != nil {
		return err
	}
	if err := h.projects.RemoveMember(c.UserContext(), userID, projectID, memberID); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, fiber.Map{}, "Project member removed successfully")
}
