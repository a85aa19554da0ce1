package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"flowbase/internal/middleware"
	"flowbase/internal/models"
	"flowbase/internal/services"
	"flowbase/pkg/auth"
)

// LocalAuthHandler handles account and session endpoints
type LocalAuthHandler struct {
	jwtAuth     *auth.LocalJWTAuth
	authService *services.AuthService
}

// NewLocalAuthHandler creates a new local auth handler
func NewLocalAuthHandler(jwtAuth *auth.LocalJWTAuth, authService *services.AuthService) *LocalAuthHandler {
	return &LocalAuthHandler{
		jwtAuth:     jwtAuth,
		authService: authService,
	}
}

// RefreshTokenRequest is the optional body of a refresh when no cookie is sent
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *LocalAuthHandler) setTokenCookies(c *fiber.Ctx, pair *auth.TokenPair) {
	secure := c.Protocol() == "https"
	c.Cookie(&fiber.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    pair.AccessToken,
		Expires:  time.Now().Add(h.jwtAuth.AccessTokenExpiry),
		HTTPOnly: true,
		Secure:   secure,
		SameSite: "Strict",
		Path:     "/",
	})
	c.Cookie(&fiber.Cookie{
		Name:     middleware.RefreshTokenCookie,
		Value:    pair.RefreshToken,
		Expires:  time.Now().Add(h.jwtAuth.RefreshTokenExpiry),
		HTTPOnly: true,
		Secure:   secure,
		SameSite: "Strict",
		Path:     "/",
	})
}

func clearTokenCookies(c *fiber.Ctx) {
	c.ClearCookie(middleware.AccessTokenCookie, middleware.RefreshTokenCookie)
}

// Register creates a new account and mails the verification link
// POST /api/v1/user/register
func (h *LocalAuthHandler) Register(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.authService.Register(c.UserContext(), &req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, fiber.Map{"user": user.ToResponse()},
		"User registered successfully and verification email has been sent on your email")
}

// Login authenticates a user and sets the token cookies
// POST /api/v1/user/login
func (h *LocalAuthHandler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, pair, err := h.authService.Login(c.UserContext(), &req)
	if err != nil {
		return err
	}

	h.setTokenCookies(c, pair)
	return respond(c, fiber.StatusOK, models.AuthResult{
		User:         user.ToResponse(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, "User logged in successfully")
}

// Logout ends the session
// POST /api/v1/user/logout
func (h *LocalAuthHandler) Logout(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	if err := h.authService.Logout(c.UserContext(), userID); err != nil {
		return err
	}

	clearTokenCookies(c)
	return respond(c, fiber.StatusOK, fiber.Map{}, "User logged out")
}

// RefreshToken rotates the token pair
// POST /api/v1/user/refresh-access-token
func (h *LocalAuthHandler) RefreshToken(c *fiber.Ctx) error {
	token := c.Cookies(middleware.RefreshTokenCookie)
	if token == "" && len(c.Body()) > 0 {
		var req RefreshTokenRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		token = req.RefreshToken
	}

	user, pair, err := h.authService.Refresh(c.UserContext(), token)
	if err != nil {
		return err
	}

	h.setTokenCookies(c, pair)
	return respond(c, fiber.StatusOK, models.AuthResult{
		User:         user.ToResponse(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, "Access token refreshed")
}

// VerifyEmail consumes the token from the verification mail
// GET|POST /api/v1/user/verify-email/:token
func (h *LocalAuthHandler) VerifyEmail(c *fiber.Ctx) error {
	if err := h.authService.VerifyEmail(c.UserContext(), c.Params("token")); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, fiber.Map{"isEmailVerified": true}, "Email is verified")
}

// ResendEmailVerification mails a new verification link
// POST /api/v1/user/resend-email-verification
func (h *LocalAuthHandler) ResendEmailVerification(c *fiber.Ctx) error {
	var req models.EmailRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.authService.ResendEmailVerification(c.UserContext(), &req); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, fiber.Map{}, "If the account exists and is unverified, a mail has been sent")
}

// ForgotPassword mails a reset link
// POST /api/v1/user/forgot-password-request
func (h *LocalAuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req models.EmailRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.authService.ForgotPassword(c.UserContext(), &req); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, fiber.Map{}, "Password reset mail has been sent on your mail id")
}

// ResetPassword sets a new password from a reset token
// POST /api/v1/user/reset-password/:token
func (h *LocalAuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req models.ResetPasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.authService.ResetPassword(c.UserContext(), c.Params("token"), &req); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, fiber.Map{}, "Password reset successfully")
}

// ChangePassword replaces the caller's password
// POST /api/v1/user/change-current-password
func (h *LocalAuthHandler) ChangePassword(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	var req models.ChangePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.authService.ChangePassword(c.UserContext(), userID, &req); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, fiber.Map{}, "Password changed successfully")
}

// GetCurrentUser returns the authenticated user
// GET|POST /api/v1/user/current-user
func (h *LocalAuthHandler) GetCurrentUser(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	user, err := h.authService.CurrentUser(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, user.ToResponse(), "Current user fetched successfully")
}
