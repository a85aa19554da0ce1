// Package mongostore implements store.Store on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"flowbase/internal/database"
	"flowbase/internal/store"
)

// Store persists Flowbase entities in MongoDB collections
type Store struct {
	db            *database.MongoDB
	transactions  bool
	users         *mongo.Collection
	projects      *mongo.Collection
	members       *mongo.Collection
	tasks         *mongo.Collection
	subtasks      *mongo.Collection
	notes         *mongo.Collection
	notifications *mongo.Collection
}

var _ store.Store = (*Store)(nil)

// errNoMatch reports a conditional write that matched no document
var errNoMatch = mongo.ErrNoDocuments

// New creates a store on an initialized MongoDB connection. With transactions
// enabled (replica set deployments) multi-document writes run in a session
// transaction; otherwise they run sequentially with compensation.
func New(db *database.MongoDB, transactions bool) *Store {
	return &Store{
		db:            db,
		transactions:  transactions,
		users:         db.Collection(database.CollectionUsers),
		projects:      db.Collection(database.CollectionProjects),
		members:       db.Collection(database.CollectionProjectMembers),
		tasks:         db.Collection(database.CollectionTasks),
		subtasks:      db.Collection(database.CollectionSubtasks),
		notes:         db.Collection(database.CollectionNotes),
		notifications: db.Collection(database.CollectionNotifications),
	}
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close disconnects the client
func (s *Store) Close(ctx context.Context) error {
	return s.db.Close(ctx)
}

// translate maps driver errors onto the store sentinels
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w", what, store.ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// inTransaction runs fn inside a session transaction when enabled, or directly otherwise.
func (s *Store) inTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.transactions {
		return fn(ctx)
	}
	return s.db.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		return fn(sessCtx)
	})
}
