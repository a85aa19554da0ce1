package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"flowbase/internal/apierr"
	"flowbase/internal/models"
	"flowbase/internal/store"
	"flowbase/pkg/auth"
)

// AuthService manages accounts, credentials and the token pair
type AuthService struct {
	users    store.UserStore
	jwt      *auth.LocalJWTAuth
	mail     *MailService
	tokenTTL time.Duration
}

// NewAuthService creates an auth service. tokenTTL bounds verification and reset tokens.
func NewAuthService(users store.UserStore, jwtAuth *auth.LocalJWTAuth, mail *MailService, tokenTTL time.Duration) *AuthService {
	return &AuthService{users: users, jwt: jwtAuth, mail: mail, tokenTTL: tokenTTL}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func passwordError(err error) error {
	return apierr.Validation(err.Error(), apierr.FieldError{Field: "password", Tag: "password", Message: err.Error()})
}

// Register creates an unverified account and mails the verification link
func (s *AuthService) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	if err := apierr.ValidateStruct(req); err != nil {
		return nil, err
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		return nil, passwordError(err)
	}

	email := normalizeEmail(req.Email)
	username := strings.ToLower(strings.TrimSpace(req.Username))

	if _, err := s.users.FindUserByEmail(ctx, email); err == nil {
		return nil, apierr.Conflict("User with this email already exists")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, apierr.Internal("Failed to register user").Wrap(err)
	}
	if _, err := s.users.FindUserByUsername(ctx, username); err == nil {
		return nil, apierr.Conflict("User with this username already exists")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, apierr.Internal("Failed to register user").Wrap(err)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apierr.Internal("Failed to register user").Wrap(err)
	}
	token, err := auth.NewTemporaryToken(s.tokenTTL)
	if err != nil {
		return nil, apierr.Internal("Failed to register user").Wrap(err)
	}

	user := &models.User{
		Username:                username,
		Email:                   email,
		PasswordHash:            hash,
		Fullname:                strings.TrimSpace(req.Fullname),
		Avatar:                  models.DefaultAvatar,
		EmailVerificationToken:  token.Hashed,
		EmailVerificationExpiry: &token.Expiry,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		// The unique indexes catch a concurrent registration that passed the lookups
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apierr.Conflict("User with this email or username already exists")
		}
		return nil, apierr.Internal("Failed to register user").Wrap(err)
	}

	s.mail.SendEmailVerification(user.Email, user.Username, token.Raw, token.Expiry)
	log.Printf("✅ [AUTH] Registered user %s", user.ID.Hex())
	return user, nil
}

// Login checks credentials and issues a fresh token pair
func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest) (*models.User, *auth.TokenPair, error) {
	if err := apierr.ValidateStruct(req); err != nil {
		return nil, nil, err
	}

	user, err := s.users.FindUserByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, apierr.Unauthenticated("Invalid email or password")
		}
		return nil, nil, apierr.Internal("Failed to log in").Wrap(err)
	}

	ok, err := auth.VerifyPassword(user.PasswordHash, req.Password)
	if err != nil || !ok {
		return nil, nil, apierr.Unauthenticated("Invalid email or password")
	}
	if !user.EmailVerified {
		return nil, nil, apierr.Forbidden("Email not verified")
	}

	pair, err := s.rotate(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// rotate issues a new token pair and stores the hash of its refresh token
func (s *AuthService) rotate(ctx context.Context, user *models.User) (*auth.TokenPair, error) {
	pair, err := s.jwt.GenerateTokens(auth.Principal{
		UserID:   user.ID.Hex(),
		Email:    user.Email,
		Username: user.Username,
	})
	if err != nil {
		return nil, apierr.Internal("Failed to issue tokens").Wrap(err)
	}

	user.RefreshToken = auth.HashToken(pair.RefreshToken)
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, apierr.Internal("Failed to issue tokens").Wrap(err)
	}
	return pair, nil
}

// Refresh exchanges the current refresh token for a new pair. A refresh token
// that is not the latest issued one is rejected.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.User, *auth.TokenPair, error) {
	if refreshToken == "" {
		return nil, nil, apierr.Unauthenticated("Unauthorized request")
	}

	claims, err := s.jwt.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, nil, apierr.Unauthenticated("Invalid refresh token")
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, nil, apierr.Unauthenticated("Invalid refresh token")
	}

	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, apierr.Unauthenticated("Invalid refresh token")
		}
		return nil, nil, apierr.Internal("Failed to refresh tokens").Wrap(err)
	}

	presented := auth.HashToken(refreshToken)
	if user.RefreshToken == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(user.RefreshToken)) != 1 {
		return nil, nil, apierr.Unauthenticated("Refresh token is expired or used")
	}

	pair, err := s.rotate(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Logout clears the stored refresh token
func (s *AuthService) Logout(ctx context.Context, userID primitive.ObjectID) error {
	user, err := actor(ctx, s.users, userID)
	if err != nil {
		return err
	}
	user.RefreshToken = ""
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return apierr.Internal("Failed to log out").Wrap(err)
	}
	return nil
}

// VerifyEmail consumes a verification token
func (s *AuthService) VerifyEmail(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return apierr.NotFound("Invalid or expired token")
	}

	user, err := s.users.FindUserByVerificationToken(ctx, auth.HashToken(rawToken), time.Now())
	if err != nil {
		return notFound(err, "Invalid or expired token")
	}

	user.EmailVerified = true
	user.EmailVerificationToken = ""
	user.EmailVerificationExpiry = nil
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return apierr.Internal("Failed to verify email").Wrap(err)
	}
	return nil
}

// ResendEmailVerification issues a new verification token. Unknown and
// already verified addresses succeed silently.
func (s *AuthService) ResendEmailVerification(ctx context.Context, req *models.EmailRequest) error {
	if err := apierr.ValidateStruct(req); err != nil {
		return err
	}

	user, err := s.users.FindUserByEmail(ctx, normalizeEmail(req.Email))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apierr.Internal("Failed to resend verification").Wrap(err)
	}
	if user.EmailVerified {
		return nil
	}

	token, err := auth.NewTemporaryToken(s.tokenTTL)
	if err != nil {
		return apierr.Internal("Failed to resend verification").Wrap(err)
	}
	user.EmailVerificationToken = token.Hashed
	user.EmailVerificationExpiry = &token.Expiry
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return apierr.Internal("Failed to resend verification").Wrap(err)
	}

	s.mail.SendEmailVerification(user.Email, user.Username, token.Raw, token.Expiry)
	return nil
}

// ForgotPassword mails a reset link. Unknown addresses succeed silently.
func (s *AuthService) ForgotPassword(ctx context.Context, req *models.EmailRequest) error {
	if err := apierr.ValidateStruct(req); err != nil {
		return err
	}

	user, err := s.users.FindUserByEmail(ctx, normalizeEmail(req.Email))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apierr.Internal("Failed to request password reset").Wrap(err)
	}

	token, err := auth.NewTemporaryToken(s.tokenTTL)
	if err != nil {
		return apierr.Internal("Failed to request password reset").Wrap(err)
	}
	user.ForgotPasswordToken = token.Hashed
	user.ForgotPasswordExpiry = &token.Expiry
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return apierr.Internal("Failed to request password reset").Wrap(err)
	}

	s.mail.SendPasswordReset(user.Email, user.Username, token.Raw, token.Expiry)
	return nil
}

// ResetPassword consumes a reset token, sets the new password and ends every session
func (s *AuthService) ResetPassword(ctx context.Context, rawToken string, req *models.ResetPasswordRequest) error {
	if err := apierr.ValidateStruct(req); err != nil {
		return err
	}
	if err := auth.ValidatePassword(req.NewPassword); err != nil {
		return passwordError(err)
	}

	user, err := s.users.FindUserByResetToken(ctx, auth.HashToken(rawToken), time.Now())
	if err != nil {
		return notFound(err, "Invalid or expired token")
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return apierr.Internal("Failed to reset password").Wrap(err)
	}
	user.PasswordHash = hash
	user.ForgotPasswordToken = ""
	user.ForgotPasswordExpiry = nil
	user.RefreshToken = ""
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return apierr.Internal("Failed to reset password").Wrap(err)
	}
	return nil
}

// ChangePassword replaces the password after checking the old one
func (s *AuthService) ChangePassword(ctx context.Context, userID primitive.ObjectID, req *models.ChangePasswordRequest) error {
	if err := apierr.ValidateStruct(req); err != nil {
		return err
	}

	user, err := actor(ctx, s.users, userID)
	if err != nil {
		return err
	}

	ok, err := auth.VerifyPassword(user.PasswordHash, req.OldPassword)
	if err != nil || !ok {
		return apierr.Validation("Invalid old password", apierr.FieldError{
			Field: "oldPassword", Tag: "password", Message: "Invalid old password",
		})
	}
	if err := auth.ValidatePassword(req.NewPassword); err != nil {
		return passwordError(err)
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return apierr.Internal("Failed to change password").Wrap(err)
	}
	user.PasswordHash = hash
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return apierr.Internal("Failed to change password").Wrap(err)
	}
	return nil
}

// CurrentUser returns the caller's account
func (s *AuthService) CurrentUser(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	return actor(ctx, s.users, userID)
}

// CleanupExpiredTokens clears verification and reset tokens past their expiry
func (s *AuthService) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	n, err := s.users.ClearExpiredUserTokens(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("clear expired tokens: %w", err)
	}
	return n, nil
}
