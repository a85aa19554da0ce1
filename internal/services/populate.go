package services

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"flowbase/internal/apierr"
	"flowbase/internal/models"
	"flowbase/internal/store"
)

// userIndex loads the users behind ids, keyed by id
func userIndex(ctx context.Context, users store.UserStore, ids ...primitive.ObjectID) (map[primitive.ObjectID]*models.User, error) {
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	unique := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if id.IsZero() {
			continue
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			unique = append(unique, id)
		}
	}

	list, err := users.FindUsersByIDs(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	index := make(map[primitive.ObjectID]*models.User, len(list))
	for _, u := range list {
		index[u.ID] = u
	}
	return index, nil
}

func memberResponses(ctx context.Context, users store.UserStore, members []*models.Member) ([]models.MemberResponse, error) {
	ids := make([]primitive.ObjectID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	index, err := userIndex(ctx, users, ids...)
	if err != nil {
		return nil, err
	}

	out := make([]models.MemberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, models.MemberResponse{
			ID:        m.ID,
			ProjectID: m.ProjectID,
			User:      index[m.UserID].Summary(),
			Role:      m.Role,
			CreatedAt: m.CreatedAt,
		})
	}
	return out, nil
}

func projectResponse(p *models.Project, creator *models.User) models.ProjectResponse {
	return models.ProjectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		CreatedBy:   creator.Summary(),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// notFound translates store.ErrNotFound into a 404 and wraps anything else as a 500
func notFound(err error, message string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apierr.NotFound(message)
	}
	return apierr.Internal("Something went wrong").Wrap(err)
}

// actor loads the user performing a mutation
func actor(ctx context.Context, users store.UserStore, id primitive.ObjectID) (*models.User, error) {
	u, err := users.FindUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apierr.Unauthenticated("User no longer exists")
		}
		return nil, apierr.Internal("Something went wrong").Wrap(err)
	}
	return u, nil
}

// actorAndProject loads the caller and the project an activity happens in
func actorAndProject(ctx context.Context, s store.Store, actorID, projectID primitive.ObjectID) (*models.User, *models.Project, error) {
	who, err := actor(ctx, s, actorID)
	if err != nil {
		return nil, nil, err
	}
	project, err := s.FindProjectByID(ctx, projectID)
	if err != nil {
		return nil, nil, notFound(err, "Project not found")
	}
	return who, project, nil
}
