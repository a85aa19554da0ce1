package middleware

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"flowbase/internal/apierr"
	"flowbase/pkg/auth"
)

// Keys under which request-scoped values are stored in fiber Locals
const (
	LocalUserID        = "user_id"
	LocalUserEmail     = "user_email"
	LocalUsername      = "username"
	LocalProjectRole   = "project_role"
	LocalProjectMember = "project_member"
)

// AccessTokenCookie and RefreshTokenCookie are the cookie names carrying the token pair
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// TokenFromRequest extracts an access token from the cookie, the
// Authorization header or the token query parameter (for WebSocket connections)
func TokenFromRequest(c *fiber.Ctx) string {
	// 1. Cookie set by login/refresh
	if token := c.Cookies(AccessTokenCookie); token != "" {
		return token
	}

	// 2. Authorization header
	if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
		if token, err := auth.ExtractToken(authHeader); err == nil {
			return token
		}
	}

	// 3. Query parameter
	return c.Query("token")
}

// LocalAuthMiddleware verifies local JWT access tokens
func LocalAuthMiddleware(jwtAuth *auth.LocalJWTAuth) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := TokenFromRequest(c)
		if token == "" {
			return apierr.Unauthenticated("Unauthorized request")
		}

		principal, err := jwtAuth.VerifyAccessToken(token)
		if err != nil {
			log.Printf("❌ Auth failed: %v", err)
			return apierr.Unauthenticated("Invalid or expired access token")
		}
		if _, err := primitive.ObjectIDFromHex(principal.UserID); err != nil {
			return apierr.Unauthenticated("Invalid access token subject")
		}

		c.Locals(LocalUserID, principal.UserID)
		c.Locals(LocalUserEmail, principal.Email)
		c.Locals(LocalUsername, principal.Username)
		return c.Next()
	}
}

// UserID returns the authenticated caller's id
func UserID(c *fiber.Ctx) (primitive.ObjectID, error) {
	raw, _ := c.Locals(LocalUserID).(string)
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apierr.Unauthenticated("Unauthorized request")
	}
	return id, nil
}
