package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"flowbase/internal/middleware"
	"flowbase/internal/services"
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	hub   *services.LiveHub
	store Pinger
	relay Pinger // nil when the live relay is disabled
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(hub *services.LiveHub, store Pinger) *HealthHandler {
	return &HealthHandler{hub: hub, store: store}
}

// WithRelay adds the cross-instance relay to the health report.
// A failing relay degrades the report but keeps the instance serving.
func (h *HealthHandler) WithRelay(relay Pinger) *HealthHandler {
	h.relay = relay
	return h
}

// Handle responds with server health status
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status, code := "healthy", fiber.StatusOK
	storeStatus := "ok"
	if err := h.store.Ping(ctx); err != nil {
		status, code = "degraded", fiber.StatusServiceUnavailable
		storeStatus = err.Error()
	}

	relayStatus := "disabled"
	if h.relay != nil {
		relayStatus = "ok"
		if err := h.relay.Ping(ctx); err != nil {
			relayStatus = err.Error()
			status = "degraded"
		}
	}

	return c.Status(code).JSON(fiber.Map{
		"status":      status,
		"store":       storeStatus,
		"relay":       relayStatus,
		"connections": h.hub.Count(),
		"timestamp":   time.Now().Format(time.RFC3339),
	})
}

// DashboardHandler serves the caller's dashboard counters
type DashboardHandler struct {
	dashboard *services.DashboardService
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(dashboard *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Stats returns the dashboard counters
// GET /api/v1/dashboard/stats
func (h *DashboardHandler) Stats(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	stats, err := h.dashboard.Stats(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, stats, "Dashboard stats fetched successfully")
}
