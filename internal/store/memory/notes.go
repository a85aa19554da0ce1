package memory

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"flowbase/internal/models"
	"flowbase/internal/store"
)

// CreateNote inserts a note.
func (d *DB) CreateNote(_ context.Context, note *models.Note) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	newIDIfZero(&note.ID)
	now := time.Now()
	note.CreatedAt = now
	note.UpdatedAt = now
	n := *note
	if err := txn.Insert(tblNotes, &noteRecord{ID: n.ID.Hex(), ProjectID: n.ProjectID.Hex(), Note: &n}); err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	txn.Commit()
	return nil
}

// FindNote finds a note by id within a project.
func (d *DB) FindNote(_ context.Context, projectID, noteID primitive.ObjectID) (*models.Note, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblNotes, "id", noteID.Hex())
	if err != nil {
		return nil, fmt.Errorf("find note: %w", err)
	}
	if raw == nil || raw.(*noteRecord).ProjectID != projectID.Hex() {
		return nil, fmt.Errorf("note %s: %w", noteID.Hex(), store.ErrNotFound)
	}
	n := *raw.(*noteRecord).Note
	return &n, nil
}

// ListNotesByProject returns the notes of a project in creation order.
func (d *DB) ListNotesByProject(_ context.Context, projectID primitive.ObjectID) ([]*models.Note, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	iter, err := txn.Get(tblNotes, "project_id", projectID.Hex())
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}

	var notes []*models.Note
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		n := *raw.(*noteRecord).Note
		notes = append(notes, &n)
	}
	return notes, nil
}

// UpdateNote replaces the note content.
func (d *DB) UpdateNote(_ context.Context, note *models.Note) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblNotes, "id", note.ID.Hex())
	if err != nil {
		return fmt.Errorf("find note: %w", err)
	}
	if raw == nil || raw.(*noteRecord).ProjectID != note.ProjectID.Hex() {
		return fmt.Errorf("note %s: %w", note.ID.Hex(), store.ErrNotFound)
	}

	n := *raw.(*noteRecord).Note
	n.Content = note.Content
	n.UpdatedAt = time.Now()
	if err := txn.Insert(tblNotes, &noteRecord{ID: n.ID.Hex(), ProjectID: n.ProjectID.Hex(), Note: &n}); err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	txn.Commit()

	*note = n
	return nil
}

// DeleteNote removes a note within a project.
func (d *DB) DeleteNote(_ context.Context, projectID, noteID primitive.ObjectID) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblNotes, "id", noteID.Hex())
	if err != nil {
		return fmt.Errorf("find note: %w", err)
	}
	if raw == nil || raw.(*noteRecord).ProjectID != projectID.Hex() {
		return fmt.Errorf("note %s: %w", noteID.Hex(), store.ErrNotFound)
	}
	if err := txn.Delete(tblNotes, raw); err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	txn.Commit()
	return nil
}

// CountNotesByProjects counts notes across the given projects.
func (d *DB) CountNotesByProjects(_ context.Context, projectIDs []primitive.ObjectID) (int64, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	var count int64
	for _, projectID := range projectIDs {
		iter, err := txn.Get(tblNotes, "project_id", projectID.Hex())
		if err != nil {
			return 0, fmt.Errorf("count notes: %w", err)
		}
		for raw := iter.Next(); raw != nil; raw = iter.Next() {
			count++
		}
	}
	return count, nil
}
