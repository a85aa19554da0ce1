package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"flowbase/internal/apierr"
	"flowbase/internal/middleware"
	"flowbase/internal/models"
	"flowbase/internal/services"
)

// NotificationHandler handles the caller's notification endpoints
type NotificationHandler struct {
	notifications *services.NotificationService
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

func queryInt(c *fiber.Ctx, name string) (int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, apierr.Validation("Invalid "+name,
			apierr.FieldError{Field: name, Tag: "min", Message: name + " must be a non-negative integer"})
	}
	return n, nil
}

// List returns a page of notifications
// GET /api/v1/notifications?limit&skip&read
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	var filter models.NotificationFilter
	if filter.Limit, err = queryInt(c, "limit"); err != nil {
		return err
	}
	if filter.Skip, err = queryInt(c, "skip"); err != nil {
		return err
	}
	if raw := c.Query("read"); raw != "" {
		read, err := strconv.ParseBool(raw)
		if err != nil {
			return apierr.Validation("Invalid read",
				apierr.FieldError{Field: "read", Tag: "boolean", Message: "read must be true or false"})
		}
		filter.Read = &read
	}

	page, err := h.notifications.List(c.UserContext(), userID, filter)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, page, "Notifications fetched successfully")
}

// MarkRead marks one notification read
// PATCH /api/v1/notifications/:notificationId
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	id, err := middleware.ObjectIDParam(c, "notificationId")
	if err != nil {
		return err
	}
	n, err := h.notifications.MarkRead(c.UserContext(), userID, id)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, n, "Notification marked as read")
}

// MarkAllRead marks every notification read
// PATCH /api/v1/notifications/mark-all-read
func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	n, err := h.notifications.MarkAllRead(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, fiber.Map{"modifiedCount": n}, "All notifications marked as read")
}

// Delete removes one notification
// DELETE /api/v1/notifications/:notificationId
func (h *NotificationHandler) Delete(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	id, err := middleware.ObjectIDParam(c, "notificationId")
	if err != nil {
		return err
	}
	if err := h.notifications.Delete(c.UserContext(), userID, id); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, fiber.Map{}, "Notification deleted")
}

// DeleteAll removes every notification
// DELETE /api/v1/notifications/delete-all
func (h *NotificationHandler) DeleteAll(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	n, err := h.notifications.DeleteAll(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, fiber.Map{"deletedCount": n}, "All notifications deleted")
}
