package services

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"flowbase/internal/apierr"
	"flowbase/internal/models"
	"flowbase/internal/store"
)

// NoteService manages project notes
type NoteService struct {
	store  store.Store
	fanout ActivityQueue
}

// NewNoteService creates a note service
func NewNoteService(s store.Store, fanout ActivityQueue) *NoteService {
	return &NoteService{store: s, fanout: fanout}
}

func (s *NoteService) responses(ctx context.Context, notes []*models.Note) ([]models.NoteResponse, error) {
	ids := make([]primitive.ObjectID, 0, len(notes))
	for _, n := range notes {
		ids = append(ids, n.CreatedBy)
	}
	users, err := userIndex(ctx, s.store, ids...)
	if err != nil {
		return nil, apierr.Internal("Failed to load notes").Wrap(err)
	}

	out := make([]models.NoteResponse, 0, len(notes))
	for _, n := range notes {
		out = append(out, models.NoteResponse{
			ID:        n.ID,
			ProjectID: n.ProjectID,
			Content:   n.Content,
			CreatedBy: users[n.CreatedBy].Summary(),
			CreatedAt: n.CreatedAt,
			UpdatedAt: n.UpdatedAt,
		})
	}
	return out, nil
}

// List returns the project's notes
func (s *NoteService) List(ctx context.Context, projectID primitive.ObjectID) ([]models.NoteResponse, error) {
	notes, err := s.store.ListNotesByProject(ctx, projectID)
	if err != nil {
		return nil, apierr.Internal("Failed to list notes").Wrap(err)
	}
	return s.responses(ctx, notes)
}

// Get returns one note of the project
func (s *NoteService) Get(ctx context.Context, projectID, noteID primitive.ObjectID) (models.NoteResponse, error) {
	note, err := s.store.FindNote(ctx, projectID, noteID)
	if err != nil {
		return models.NoteResponse{}, notFound(err, "Note not found")
	}
	out, err := s.responses(ctx, []*models.Note{note})
	if err != nil {
		return models.NoteResponse{}, err
	}
	return out[0], nil
}

// Create adds a note to the project
func (s *NoteService) Create(ctx context.Context, actorID, projectID primitive.ObjectID, req *models.NoteRequest) (models.NoteResponse, error) {
	if err := apierr.ValidateStruct(req); err != nil {
		return models.NoteResponse{}, err
	}
	who, project, err := actorAndProject(ctx, s.store, actorID, projectID)
	if err != nil {
		return models.NoteResponse{}, err
	}

	note := &models.Note{ProjectID: projectID, Content: req.Content, CreatedBy: actorID}
	if err := s.store.CreateNote(ctx, note); err != nil {
		return models.NoteResponse{}, apierr.Internal("Failed to create note").Wrap(err)
	}

	s.fanout.Enqueue(NoteActivity(who, project, ChangeAdded))
	out, err := s.responses(ctx, []*models.Note{note})
	if err != nil {
		return models.NoteResponse{}, err
	}
	return out[0], nil
}

// Update replaces a note's content
func (s *NoteService) Update(ctx context.Context, actorID, projectID, noteID primitive.ObjectID, req *models.NoteRequest) (models.NoteResponse, error) {
	if err := apierr.ValidateStruct(req); err != nil {
		return models.NoteResponse{}, err
	}
	note, err := s.store.FindNote(ctx, projectID, noteID)
	if err != nil {
		return models.NoteResponse{}, notFound(err, "Note not found")
	}
	who, project, err := actorAndProject(ctx, s.store, actorID, projectID)
	if err != nil {
		return models.NoteResponse{}, err
	}

	note.Content = req.Content
	if err := s.store.UpdateNote(ctx, note); err != nil {
		return models.NoteResponse{}, notFound(err, "Note not found")
	}

	s.fanout.Enqueue(NoteActivity(who, project, ChangeUpdated))
	out, err := s.responses(ctx, []*models.Note{note})
	if err != nil {
		return models.NoteResponse{}, err
	}
	return out[0], nil
}

// Delete removes a note
func (s *NoteService) Delete(ctx context.Context, actorID, projectID, noteID primitive.ObjectID) error {
	if _, err := s.store.FindNote(ctx, projectID, noteID); err != nil {
		return notFound(err, "Note not found")
	}
	who, project, err := actorAndProject(ctx, s.store, actorID, projectID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteNote(ctx, projectID, noteID); err != nil {
		return notFound(err, "Note not found")
	}

	s.fanout.Enqueue(NoteActivity(who, project, ChangeDeleted))
	return nil
}
