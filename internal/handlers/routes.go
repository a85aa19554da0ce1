package handlers

import (
	"log"
	"strings"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"

	"flowbase/internal/middleware"
	"flowbase/internal/models"
	"flowbase/pkg/auth"
)

// Routes bundles everything RegisterRoutes mounts
type Routes struct {
	Auth          *LocalAuthHandler
	Projects      *ProjectHandler
	Tasks         *TaskHandler
	Notes         *NoteHandler
	Notifications *NotificationHandler
	Dashboard     *DashboardHandler
	Health        *HealthHandler
	Live          *LiveHandler

	JWT            *auth.LocalJWTAuth
	Members        middleware.MemberFinder
	RateLimit      *middleware.RateLimitConfig
	Registry       *prometheus.Registry // nil disables /metrics
	AllowedOrigins []string
}

// RegisterRoutes mounts the REST API under /api/v1 plus /health, /metrics and /ws
func RegisterRoutes(app *fiber.App, r *Routes) {
	if r.Registry != nil {
		prom := fiberprometheus.NewWithRegistry(r.Registry, "flowbase", "http", "", nil)
		prom.RegisterAt(app, "/metrics")
		app.Use(prom.Middleware)
		log.Println("📊 Prometheus metrics endpoint enabled at /metrics")
	}

	app.Get("/health", r.Health.Handle)

	api := app.Group("/api/v1", middleware.GlobalAPIRateLimiter(r.RateLimit))
	requireAuth := middleware.LocalAuthMiddleware(r.JWT)
	gate := func(perm models.Permission) fiber.Handler {
		return middleware.RequirePermission(r.Members, perm)
	}

	// Auth
	authLimiter := middleware.AuthRateLimiter(r.RateLimit)
	user := api.Group("/user")
	user.Post("/register", authLimiter, r.Auth.Register)
	user.Post("/login", authLimiter, r.Auth.Login)
	user.Post("/refresh-access-token", authLimiter, r.Auth.RefreshToken)
	user.Get("/verify-email/:token", r.Auth.VerifyEmail)
	user.Post("/verify-email/:token", r.Auth.VerifyEmail)
	user.Post("/resend-email-verification", authLimiter, r.Auth.ResendEmailVerification)
	user.Post("/forgot-password-request", authLimiter, r.Auth.ForgotPassword)
	user.Post("/reset-password/:token", authLimiter, r.Auth.ResetPassword)
	user.Post("/logout", requireAuth, r.Auth.Logout)
	user.Get("/current-user", requireAuth, r.Auth.GetCurrentUser)
	user.Post("/current-user", requireAuth, r.Auth.GetCurrentUser)
	user.Post("/change-current-password", requireAuth, r.Auth.ChangePassword)

	// Projects and members
	projects := api.Group("/project", requireAuth)
	projects.Get("/", r.Projects.List)
	projects.Post("/", r.Projects.Create)
	projects.Get("/:projectId", gate(models.PermProjectRead), r.Projects.Get)
	projects.Put("/:projectId", gate(models.PermProjectManage), r.Projects.Update)
	projects.Delete("/:projectId", gate(models.PermProjectManage), r.Projects.Delete)
	projects.Get("/:projectId/members", gate(models.PermProjectRead), r.Projects.ListMembers)
	projects.Post("/:projectId/members", gate(models.PermMembersManage), r.Projects.AddMember)
	projects.Put("/:projectId/members/:memberId", gate(models.PermMembersManage), r.Projects.UpdateMemberRole)
	projects.Delete("/:projectId/members/:memberId", gate(models.PermMembersManage), r.Projects.RemoveMember)

	// Tasks and subtasks
	tasks := api.Group("/task", requireAuth)
	tasks.Get("/projects/:projectId/tasks", gate(models.PermTaskRead), r.Tasks.List)
	tasks.Post("/projects/:projectId/tasks", gate(models.PermTaskWrite), r.Tasks.Create)
	tasks.Get("/projects/:projectId/export", gate(models.PermTaskExport), r.Tasks.Export)
	tasks.Get("/:projectId/n/:taskId", gate(models.PermTaskRead), r.Tasks.Get)
	tasks.Put("/:projectId/n/:taskId", gate(models.PermTaskStatus), r.Tasks.Update)
	tasks.Delete("/:projectId/n/:taskId", gate(models.PermTaskWrite), r.Tasks.Delete)
	tasks.Post("/:projectId/n/:taskId/subtasks", gate(models.PermSubtaskWrite), r.Tasks.CreateSubtask)
	tasks.Put("/:projectId/n/:taskId/subtasks/:subtaskId", gate(models.PermSubtaskWrite), r.Tasks.UpdateSubtask)
	tasks.Delete("/:projectId/n/:taskId/subtasks/:subtaskId", gate(models.PermSubtaskWrite), r.Tasks.DeleteSubtask)

	// Notes
	notes := api.Group("/project-note", requireAuth)
	notes.Get("/:projectId", gate(models.PermNoteRead), r.Notes.List)
	notes.Post("/:projectId", gate(models.PermNoteWrite), r.Notes.Create)
	notes.Get("/:projectId/n/:noteId", gate(models.PermNoteRead), r.Notes.Get)
	notes.Put("/:projectId/n/:noteId", gate(models.PermNoteWrite), r.Notes.Update)
	notes.Delete("/:projectId/n/:noteId", gate(models.PermNoteWrite), r.Notes.Delete)

	// Notifications (static paths before :notificationId)
	notifications := api.Group("/notifications", requireAuth)
	notifications.Get("/", r.Notifications.List)
	notifications.Patch("/mark-all-read", r.Notifications.MarkAllRead)
	notifications.Delete("/delete-all", r.Notifications.DeleteAll)
	notifications.Patch("/:notificationId", r.Notifications.MarkRead)
	notifications.Delete("/:notificationId", r.Notifications.Delete)

	api.Get("/dashboard/stats", requireAuth, r.Dashboard.Stats)

	// Live channel
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Use("/ws", middleware.WebSocketRateLimiter(r.RateLimit))
	app.Use("/ws", requireAuth)
	app.Get("/ws", websocket.New(r.Live.Handle, websocket.Config{Origins: wsOrigins(r.AllowedOrigins)}))
}

func wsOrigins(allowed []string) []string {
	origins := make([]string, 0, len(allowed))
	for _, o := range allowed {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
