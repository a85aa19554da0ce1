package handlers

import (
	"github.com/gofiber/fiber/v2"

	"flowbase/internal/middleware"
	"flowbase/internal/models"
	"flowbase/internal/services"
)

// NoteHandler handles project note endpoints
type NoteHandler struct {
	notes *services.NoteService
}

// NewNoteHandler creates a new note handler
func NewNoteHandler(notes *services.NoteService) *NoteHandler {
	return &NoteHandler{notes: notes}
}

// List returns the project's notes
// GET /api/v1/project-note/:projectId
func (h *NoteHandler) List(c *fiber.Ctx) error {
	projectID, err := middleware.ObjectIDParam(c, "projectId")
	if err != nil {
		return err
	}
	notes, err := h.notes.List(c.UserContext(), projectID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, notes, "Notes fetched successfully")
}

// Create adds a note
// POST /api/v1/project-note/:projectId
func (h *NoteHandler) Create(c *fiber.Ctx) error {
	userID, projectID, err := callerAndProject(c)
	if err != nil {
		return err
	}
	var req models.NoteRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	note, err := h.notes.Create(c.UserContext(), userID, projectID, &req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, note, "Note created successfully")
}

// Get returns one note
// GET /api/v1/project-note/:projectId/n/:noteId
func (h *NoteHandler) Get(c *fiber.Ctx) error {
	projectID, err := middleware.ObjectIDParam(c, "projectId")
	if err != nil {
		return err
	}
	noteID, err := middleware.ObjectIDParam(c, "noteId")
	if err != nil {
		return err
	}
	note, err := h.notes.Get(c.UserContext(), projectID, noteID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, note, "Note fetched successfully")
}

// Update replaces a note's content
// PUT /api/v1/project-note/:projectId/n/:noteId
func (h *NoteHandler) Update(c *fiber.Ctx) error {
	userID, projectID, err := callerAndProject(c)
	if err != nil {
		return err
	}
	noteID, err := middleware.ObjectIDParam(c, "noteId")
	if err != nil {
		return err
	}
	var req models.NoteRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	note, err := h.notes.Update(c.UserContext(), userID, projectID, noteID, &req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, note, "Note updated successfully")
}

// Delete removes a note
// DELETE /api/v1/project-note/:projectId/n/:noteId
func (h *NoteHandler) Delete(c *fiber.Ctx) error {
	userID, projectID, err := callerAndProject(c)
	if err != nil {
		return err
	}
	noteID, err := middleware.ObjectIDParam(c, "noteId")
	if err != nil {
		return err
	}
	if err := h.notes.Delete(c.UserContext(), userID, projectID, noteID); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, fiber.Map{}, "Note deleted successfully")
}
