package mongostore

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"flowbase/internal/models"
)

// CreateProject inserts the project and the creator's membership. Without
// transactions the project is removed again when the membership write fails.
func (s *Store) CreateProject(ctx context.Context, project *models.Project, creator *models.Member) error {
	if project.ID.IsZero() {
		project.ID = primitive.NewObjectID()
	}
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now
	creator.ProjectID = project.ID

	return s.inTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.projects.InsertOne(ctx, project); err != nil {
			return translate(err, "insert project")
		}
		if err := s.CreateMember(ctx, creator); err != nil {
			if !s.transactions {
				if _, delErr := s.projects.DeleteOne(ctx, bson.M{"_id": project.ID}); delErr != nil {
					log.Printf("⚠️  Failed to roll back project %s: %v", project.ID.Hex(), delErr)
				}
			}
			return err
		}
		return nil
	})
}

// FindProjectByID finds a project by id
func (s *Store) FindProjectByID(ctx context.Context, id primitive.ObjectID) (*models.Project, error) {
	var project models.Project
	if err := s.projects.FindOne(ctx, bson.M{"_id": id}).Decode(&project); err != nil {
		return nil, translate(err, "find project")
	}
	return &project, nil
}

// FindProjectsByIDs returns the projects that exist among ids
func (s *Store) FindProjectsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*models.Project, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := s.projects.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, fmt.Errorf("find projects: %w", err)
	}
	defer cursor.Close(ctx)

	var projects []*models.Project
	if err := cursor.All(ctx, &projects); err != nil {
		return nil, fmt.Errorf("decode projects: %w", err)
	}
	return projects, nil
}

// UpdateProject sets the project's name and description
func (s *Store) UpdateProject(ctx context.Context, project *models.Project) error {
	update := bson.M{"$set": bson.M{
		"name":        project.Name,
		"description": project.Description,
		"updatedAt":   time.Now(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Project
	if err := s.projects.FindOneAndUpdate(ctx, bson.M{"_id": project.ID}, update, opts).Decode(&updated); err != nil {
		return translate(err, "update project")
	}
	*project = updated
	return nil
}

// DeleteProject removes the project and its memberships, tasks, subtasks and notes
// before returning.
func (s *Store) DeleteProject(ctx context.Context, id primitive.ObjectID) error {
	return s.inTransaction(ctx, func(ctx context.Context) error {
		result, err := s.projects.DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			return translate(err, "delete project")
		}
		if result.DeletedCount == 0 {
			return translate(errNoMatch, "delete project")
		}

		filter := bson.M{"project": id}
		if _, err := s.members.DeleteMany(ctx, filter); err != nil {
			return fmt.Errorf("delete project members: %w", err)
		}
		if _, err := s.subtasks.DeleteMany(ctx, filter); err != nil {
			return fmt.Errorf("delete project subtasks: %w", err)
		}
		if _, err := s.tasks.DeleteMany(ctx, filter); err != nil {
			return fmt.Errorf("delete project tasks: %w", err)
		}
		if _, err := s.notes.DeleteMany(ctx, filter); err != nil {
			return fmt.Errorf("delete project notes: %w", err)
		}
		return nil
	})
}

// CreateMember inserts a membership; the unique (project, user) index rejects duplicates.
func (s *Store) CreateMember(ctx context.Context, member *models.Member) error {
	if member.ID.IsZero() {
		member.ID = primitive.NewObjectID()
	}
	now := time.Now()
	member.CreatedAt = now
	member.UpdatedAt = now

	_, err := s.members.InsertOne(ctx, member)
	return translate(err, "insert project member")
}

// FindMember finds the membership of a user in a project
func (s *Store) FindMember(ctx context.Context, projectID, userID primitive.ObjectID) (*models.Member, error) {
	var member models.Member
	err := s.members.FindOne(ctx, bson.M{"project": projectID, "user": userID}).Decode(&member)
	if err != nil {
		return nil, translate(err, "find project member")
	}
	return &member, nil
}

func (s *Store) listMembers(ctx context.Context, filter bson.M) ([]*models.Member, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.members.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list project members: %w", err)
	}
	defer cursor.Close(ctx)

	var members []*models.Member
	if err := cursor.All(ctx, &members); err != nil {
		return nil, fmt.Errorf("decode project members: %w", err)
	}
	return members, nil
}

// ListMembersByProject returns the memberships of a project in creation order
func (s *Store) ListMembersByProject(ctx context.Context, projectID primitive.ObjectID) ([]*models.Member, error) {
	return s.listMembers(ctx, bson.M{"project": projectID})
}

// ListMembershipsByUser returns every membership of a user
func (s *Store) ListMembershipsByUser(ctx context.Context, userID primitive.ObjectID) ([]*models.Member, error) {
	return s.listMembers(ctx, bson.M{"user": userID})
}

// UpdateMemberRole changes the role of an existing membership
func (s *Store) UpdateMemberRole(
	ctx context.Context,
	projectID, userID primitive.ObjectID,
	role models.Role,
) (*models.Member, error) {
	update := bson.M{"$set": bson.M{"role": role, "updatedAt": time.Now()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var member models.Member
	err := s.members.FindOneAndUpdate(ctx, bson.M{"project": projectID, "user": userID}, update, opts).Decode(&member)
	if err != nil {
		return nil, translate(err, "update project member")
	}
	return &member, nil
}

// DeleteMember removes a membership and returns the removed row
func (s *Store) DeleteMember(ctx context.Context, projectID, userID primitive.ObjectID) (*models.Member, error) {
	var member models.Member
	err := s.members.FindOneAndDelete(ctx, bson.M{"project": projectID, "user": userID}).Decode(&member)
	if err != nil {
		return nil, translate(err, "delete project member")
	}
	return &member, nil
}
