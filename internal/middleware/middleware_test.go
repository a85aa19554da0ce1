package middleware_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"flowbase/internal/apierr"
	"flowbase/internal/middleware"
	"flowbase/internal/models"
	"flowbase/internal/store"
	"flowbase/pkg/auth"
)

type fakeMembers map[[2]primitive.ObjectID]models.Role

func (f fakeMembers) FindMember(_ context.Context, projectID, userID primitive.ObjectID) (*models.Member, error) {
	role, ok := f[[2]primitive.ObjectID{projectID, userID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &models.Member{ProjectID: projectID, UserID: userID, Role: role}, nil
}

func newApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(apierr.StatusOf(err)).SendString(err.Error())
		},
	})
}

func issue(t *testing.T, jwtAuth *auth.LocalJWTAuth, userID primitive.ObjectID) string {
	t.Helper()
	pair, err := jwtAuth.GenerateTokens(auth.Principal{UserID: userID.Hex(), Email: "u@example.com"})
	require.NoError(t, err)
	return pair.AccessToken
}

func TestLocalAuthMiddleware(t *testing.T) {
	jwtAuth, err := auth.NewLocalJWTAuth("secret", 0, 0)
	require.NoError(t, err)
	userID := primitive.NewObjectID()
	token := issue(t, jwtAuth, userID)

	app := newApp()
	app.Get("/me", middleware.LocalAuthMiddleware(jwtAuth), func(c *fiber.Ctx) error {
		id, err := middleware.UserID(c)
		if err != nil {
			return err
		}
		return c.SendString(id.Hex())
	})

	tests := []struct {
		name   string
		target string
		setup  func(r *http.Request)
		status int
	}{
		{"no token", "/me", func(r *http.Request) {}, fiber.StatusUnauthorized},
		{"garbage token", "/me", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, fiber.StatusUnauthorized},
		{"bearer header", "/me", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, fiber.StatusOK},
		{"cookie", "/me", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: middleware.AccessTokenCookie, Value: token})
		}, fiber.StatusOK},
		{"query", "/me?token=" + token, func(r *http.Request) {}, fiber.StatusOK},
		{"garbage query", "/me?token=nope", func(r *http.Request) {}, fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			tt.setup(req)
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.status == fiber.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				assert.Equal(t, userID.Hex(), string(body))
			}
		})
	}
}

func TestLocalAuthRejectsRefreshToken(t *testing.T) {
	jwtAuth, err := auth.NewLocalJWTAuth("secret", 0, 0)
	require.NoError(t, err)
	pair, err := jwtAuth.GenerateTokens(auth.Principal{UserID: primitive.NewObjectID().Hex()})
	require.NoError(t, err)

	app := newApp()
	app.Get("/me", middleware.LocalAuthMiddleware(jwtAuth), func(c *fiber.Ctx) error { return nil })

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireProjectRole(t *testing.T) {
	jwtAuth, err := auth.NewLocalJWTAuth("secret", 0, 0)
	require.NoError(t, err)

	projectID := primitive.NewObjectID()
	admin := primitive.NewObjectID()
	member := primitive.NewObjectID()
	outsider := primitive.NewObjectID()
	members := fakeMembers{
		{projectID, admin}:  models.RoleAdmin,
		{projectID, member}: models.RoleMember,
	}

	app := newApp()
	authMW := middleware.LocalAuthMiddleware(jwtAuth)
	app.Put("/p/:projectId", authMW, middleware.RequireProjectRole(members, models.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendString(string(middleware.ProjectRole(c)))
	})
	app.Get("/p/:projectId", authMW, middleware.RequirePermission(members, models.PermProjectRead), func(c *fiber.Ctx) error {
		return c.SendString(string(middleware.ProjectRole(c)))
	})

	tests := []struct {
		name    string
		method  string
		project string
		user    primitive.ObjectID
		status  int
		body    string
	}{
		{"admin may update", http.MethodPut, projectID.Hex(), admin, fiber.StatusOK, "admin"},
		{"member may not update", http.MethodPut, projectID.Hex(), member, fiber.StatusForbidden, middleware.MsgNoPermission},
		{"member may read", http.MethodGet, projectID.Hex(), member, fiber.StatusOK, "member"},
		{"outsider is rejected", http.MethodGet, projectID.Hex(), outsider, fiber.StatusForbidden, middleware.MsgNotProjectMember},
		{"malformed project id", http.MethodGet, "not-an-id", admin, fiber.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/p/"+tt.project, nil)
			req.Header.Set("Authorization", "Bearer "+issue(t, jwtAuth, tt.user))
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.body != "" {
				body, _ := io.ReadAll(resp.Body)
				assert.Contains(t, string(body), tt.body)
			}
		})
	}
}

func TestAuthRateLimiter(t *testing.T) {
	cfg := middleware.DefaultRateLimitConfig()
	cfg.AuthMax = 2

	app := newApp()
	app.Post("/login", middleware.AuthRateLimiter(cfg), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	var last int
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/login", nil))
		require.NoError(t, err)
		last = resp.StatusCode
	}
	assert.Equal(t, fiber.StatusTooManyRequests, last)
}
