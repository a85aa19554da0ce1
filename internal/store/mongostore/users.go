package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"flowbase/internal/models"
)

// CreateUser inserts a user; the unique indexes reject duplicate email or username.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := s.users.InsertOne(ctx, user)
	return translate(err, "insert user")
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := s.users.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, translate(err, "find user")
	}
	return &user, nil
}

// FindUserByID finds a user by id
func (s *Store) FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

// FindUserByEmail finds a user by email
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

// FindUserByUsername finds a user by username
func (s *Store) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"username": username})
}

// FindUsersByIDs returns the users that exist among ids
func (s *Store) FindUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer cursor.Close(ctx)

	var users []*models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

// FindUserByVerificationToken matches an unexpired hashed verification token
func (s *Store) FindUserByVerificationToken(ctx context.Context, hashed string, now time.Time) (*models.User, error) {
	return s.findUser(ctx, bson.M{
		"emailVerificationToken":  hashed,
		"emailVerificationExpiry": bson.M{"$gt": now},
	})
}

// FindUserByResetToken matches an unexpired hashed forgot-password token
func (s *Store) FindUserByResetToken(ctx context.Context, hashed string, now time.Time) (*models.User, error) {
	return s.findUser(ctx, bson.M{
		"forgotPasswordToken":  hashed,
		"forgotPasswordExpiry": bson.M{"$gt": now},
	})
}

// UpdateUser replaces the user document, clearing token fields that are empty
func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()

	set := bson.M{
		"username":        user.Username,
		"email":           user.Email,
		"password":        user.PasswordHash,
		"fullname":        user.Fullname,
		"avatar":          user.Avatar,
		"isEmailVerified": user.EmailVerified,
		"updatedAt":       user.UpdatedAt,
	}
	unset := bson.M{}
	setOrUnset := func(key string, value any, empty bool) {
		if empty {
			unset[key] = ""
		} else {
			set[key] = value
		}
	}
	setOrUnset("emailVerificationToken", user.EmailVerificationToken, user.EmailVerificationToken == "")
	setOrUnset("emailVerificationExpiry", user.EmailVerificationExpiry, user.EmailVerificationExpiry == nil)
	setOrUnset("forgotPasswordToken", user.ForgotPasswordToken, user.ForgotPasswordToken == "")
	setOrUnset("forgotPasswordExpiry", user.ForgotPasswordExpiry, user.ForgotPasswordExpiry == nil)
	setOrUnset("refreshToken", user.RefreshToken, user.RefreshToken == "")

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	result, err := s.users.UpdateOne(ctx, bson.M{"_id": user.ID}, update)
	if err != nil {
		return translate(err, "update user")
	}
	if result.MatchedCount == 0 {
		return translate(errNoMatch, "update user")
	}
	return nil
}

// ClearExpiredUserTokens unsets verification and reset tokens that expired before now
func (s *Store) ClearExpiredUserTokens(ctx context.Context, now time.Time) (int64, error) {
	verification, err := s.users.UpdateMany(ctx,
		bson.M{"emailVerificationExpiry": bson.M{"$lte": now}},
		bson.M{"$unset": bson.M{"emailVerificationToken": "", "emailVerificationExpiry": ""}},
	)
	if err != nil {
		return 0, fmt.Errorf("clear verification tokens: %w", err)
	}

	reset, err := s.users.UpdateMany(ctx,
		bson.M{"forgotPasswordExpiry": bson.M{"$lte": now}},
		bson.M{"$unset": bson.M{"forgotPasswordToken": "", "forgotPasswordExpiry": ""}},
	)
	if err != nil {
		return 0, fmt.Errorf("clear reset tokens: %w", err)
	}

	return verification.ModifiedCount + reset.ModifiedCount, nil
}
