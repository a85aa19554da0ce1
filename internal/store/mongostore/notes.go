package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"flowbase/internal/models"
)

// CreateNote inserts a note
func (s *Store) CreateNote(ctx context.Context, note *models.Note) error {
	if note.ID.IsZero() {
		note.ID = primitive.NewObjectID()
	}
	now := time.Now()
	note.CreatedAt = now
	note.UpdatedAt = now

	_, err := s.notes.InsertOne(ctx, note)
	return translate(err, "insert note")
}

// FindNote finds a note by id within a project
func (s *Store) FindNote(ctx context.Context, projectID, noteID primitive.ObjectID) (*models.Note, error) {
	var note models.Note
	if err := s.notes.FindOne(ctx, bson.M{"_id": noteID, "project": projectID}).Decode(&note); err != nil {
		return nil, translate(err, "find note")
	}
	return &note, nil
}

// ListNotesByProject returns the notes of a project in creation order
func (s *Store) ListNotesByProject(ctx context.Context, projectID primitive.ObjectID) ([]*models.Note, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.notes.Find(ctx, bson.M{"project": projectID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer cursor.Close(ctx)

	var notes []*models.Note
	if err := cursor.All(ctx, &notes); err != nil {
		return nil, fmt.Errorf("decode notes: %w", err)
	}
	return notes, nil
}

// UpdateNote sets the note content
func (s *Store) UpdateNote(ctx context.Context, note *models.Note) error {
	update := bson.M{"$set": bson.M{"content": note.Content, "updatedAt": time.Now()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Note
	filter := bson.M{"_id": note.ID, "project": note.ProjectID}
	if err := s.notes.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated); err != nil {
		return translate(err, "update note")
	}
	*note = updated
	return nil
}

// DeleteNote removes a note within a project
func (s *Store) DeleteNote(ctx context.Context, projectID, noteID primitive.ObjectID) error {
	result, err := s.notes.DeleteOne(ctx, bson.M{"_id": noteID, "project": projectID})
	if err != nil {
		return translate(err, "delete note")
	}
	if result.DeletedCount == 0 {
		return translate(errNoMatch, "delete note")
	}
	return nil
}

// CountNotesByProjects counts notes across the given projects
func (s *Store) CountNotesByProjects(ctx context.Context, projectIDs []primitive.ObjectID) (int64, error) {
	if len(projectIDs) == 0 {
		return 0, nil
	}
	count, err := s.notes.CountDocuments(ctx, bson.M{"project": bson.M{"$in": projectIDs}})
	if err != nil {
		return 0, fmt.Errorf("count notes: %w", err)
	}
	return count, nil
}
