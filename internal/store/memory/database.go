// Package memory implements store.Store on top of go-memdb. It backs the
// test suites and STORE_DRIVER=memory for local development.
package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-memdb"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"flowbase/internal/models"
	"flowbase/internal/store"
)

// DB is an in-memory database for testing or local development.
type DB struct {
	db *memdb.MemDB
}

var _ store.Store = (*DB)(nil)

// New returns a new in-memory database.
func New() (*DB, error) {
	memDB, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("new memdb: %w", err)
	}

	return &DB{db: memDB}, nil
}

// Ping always succeeds.
func (d *DB) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op.
func (d *DB) Close(_ context.Context) error {
	return nil
}

func newIDIfZero(id *primitive.ObjectID) {
	if id.IsZero() {
		*id = primitive.NewObjectID()
	}
}

// CreateUser inserts a new user after checking email and username uniqueness.
func (d *DB) CreateUser(_ context.Context, user *models.User) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	existing, err := txn.First(tblUsers, "email", user.Email)
	if err != nil {
		return fmt.Errorf("find user by email: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("email %s: %w", user.Email, store.ErrDuplicate)
	}
	existing, err = txn.First(tblUsers, "username", user.Username)
	if err != nil {
		return fmt.Errorf("find user by username: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("username %s: %w", user.Username, store.ErrDuplicate)
	}

	newIDIfZero(&user.ID)
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if err := txn.Insert(tblUsers, newUserRecord(user)); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	txn.Commit()
	return nil
}

func (d *DB) findUser(index string, args ...any) (*models.User, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblUsers, index, args...)
	if err != nil {
		return nil, fmt.Errorf("find user by %s: %w", index, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("user: %w", store.ErrNotFound)
	}
	return cloneUser(raw.(*userRecord).User), nil
}

// FindUserByID finds a user by id.
func (d *DB) FindUserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	return d.findUser("id", id.Hex())
}

// FindUserByEmail finds a user by email, case-insensitively.
func (d *DB) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	return d.findUser("email", email)
}

// FindUserByUsername finds a user by username.
func (d *DB) FindUserByUsername(_ context.Context, username string) (*models.User, error) {
	return d.findUser("username", username)
}

// FindUsersByIDs returns the users that exist among ids.
func (d *DB) FindUsersByIDs(_ context.Context, ids []primitive.ObjectID) ([]*models.User, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	var users []*models.User
	for _, id := range ids {
		raw, err := txn.First(tblUsers, "id", id.Hex())
		if err != nil {
			return nil, fmt.Errorf("find user: %w", err)
		}
		if raw != nil {
			users = append(users, cloneUser(raw.(*userRecord).User))
		}
	}
	return users, nil
}

// FindUserByVerificationToken matches an unexpired email verification token.
func (d *DB) FindUserByVerificationToken(_ context.Context, hashed string, now time.Time) (*models.User, error) {
	user, err := d.findUser("verification_token", hashed)
	if err != nil {
		return nil, err
	}
	if user.EmailVerificationExpiry == nil || !user.EmailVerificationExpiry.After(now) {
		return nil, fmt.Errorf("verification token expired: %w", store.ErrNotFound)
	}
	return user, nil
}

// FindUserByResetToken matches an unexpired forgot-password token.
func (d *DB) FindUserByResetToken(_ context.Context, hashed string, now time.Time) (*models.User, error) {
	user, err := d.findUser("reset_token", hashed)
	if err != nil {
		return nil, err
	}
	if user.ForgotPasswordExpiry == nil || !user.ForgotPasswordExpiry.After(now) {
		return nil, fmt.Errorf("reset token expired: %w", store.ErrNotFound)
	}
	return user, nil
}

// UpdateUser replaces the stored user.
func (d *DB) UpdateUser(_ context.Context, user *models.User) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblUsers, "id", user.ID.Hex())
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("user %s: %w", user.ID.Hex(), store.ErrNotFound)
	}

	user.UpdatedAt = time.Now()
	if err := txn.Insert(tblUsers, newUserRecord(user)); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	txn.Commit()
	return nil
}

// ClearExpiredUserTokens removes expired verification and reset tokens.
func (d *DB) ClearExpiredUserTokens(_ context.Context, now time.Time) (int64, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	iter, err := txn.Get(tblUsers, "id")
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	var expired []*models.User
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		user := raw.(*userRecord).User
		changed := false
		c := cloneUser(user)
		if c.EmailVerificationExpiry != nil && !c.EmailVerificationExpiry.After(now) {
			c.EmailVerificationToken = ""
			c.EmailVerificationExpiry = nil
			changed = true
		}
		if c.ForgotPasswordExpiry != nil && !c.ForgotPasswordExpiry.After(now) {
			c.ForgotPasswordToken = ""
			c.ForgotPasswordExpiry = nil
			changed = true
		}
		if changed {
			expired = append(expired, c)
		}
	}

	for _, user := range expired {
		if err := txn.Insert(tblUsers, newUserRecord(user)); err != nil {
			return 0, fmt.Errorf("clear user tokens: %w", err)
		}
	}
	txn.Commit()
	return int64(len(expired)), nil
}
