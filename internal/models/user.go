package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Avatar holds the public URL and the local upload path of a user's avatar
type Avatar struct {
	URL       string `bson:"url" json:"url"`
	LocalPath string `bson:"localPath" json:"localPath"`
}

// DefaultAvatar is assigned to new accounts
var DefaultAvatar = Avatar{URL: "https://placehold.co/200x200"}

// User represents an account in the identity store
type User struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Username      string             `bson:"username" json:"username"`
	Email         string             `bson:"email" json:"email"`
	PasswordHash  string             `bson:"password" json:"-"` // Argon2id hash, never exposed in API
	Fullname      string             `bson:"fullname" json:"fullname"`
	Avatar        Avatar             `bson:"avatar" json:"avatar"`
	EmailVerified bool               `bson:"isEmailVerified" json:"isEmailVerified"`

	// Single-use tokens, stored as sha256 hex of the value sent by mail
	EmailVerificationToken  string     `bson:"emailVerificationToken,omitempty" json:"-"`
	EmailVerificationExpiry *time.Time `bson:"emailVerificationExpiry,omitempty" json:"-"`
	ForgotPasswordToken     string     `bson:"forgotPasswordToken,omitempty" json:"-"`
	ForgotPasswordExpiry    *time.Time `bson:"forgotPasswordExpiry,omitempty" json:"-"`

	// sha256 of the refresh JWT currently issued, empty when logged out
	RefreshToken string `bson:"refreshToken,omitempty" json:"-"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// UserSummary is the populated form of a user reference
type UserSummary struct {
	ID       primitive.ObjectID `json:"_id"`
	Username string             `json:"username"`
	Fullname string             `json:"fullname"`
	Avatar   Avatar             `json:"avatar"`
}

// Summary returns the populated reference form of the user
func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID, Username: u.Username, Fullname: u.Fullname, Avatar: u.Avatar}
}

// DisplayName is used when interpolating notification templates
func (u *User) DisplayName() string {
	if u.Fullname != "" {
		return u.Fullname
	}
	return u.Username
}

// UserResponse is the API response for user data
type UserResponse struct {
	ID            string    `json:"_id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	Fullname      string    `json:"fullname"`
	Avatar        Avatar    `json:"avatar"`
	EmailVerified bool      `json:"isEmailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ToResponse converts User to UserResponse
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:            u.ID.Hex(),
		Username:      u.Username,
		Email:         u.Email,
		Fullname:      u.Fullname,
		Avatar:        u.Avatar,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}
