package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"flowbase/internal/apierr"
	"flowbase/internal/models"
	"flowbase/internal/store"
)

// ProjectService manages projects and their memberships
type ProjectService struct {
	store  store.Store
	fanout ActivityQueue
}

// NewProjectService creates a project service
func NewProjectService(s store.Store, fanout ActivityQueue) *ProjectService {
	return &ProjectService{store: s, fanout: fanout}
}

func (s *ProjectService) loadProject(ctx context.Context, id primitive.ObjectID) (*models.Project, error) {
	p, err := s.store.FindProjectByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Project not found")
	}
	return p, nil
}

// ListForUser returns every project the user is a member of, with the user's role
func (s *ProjectService) ListForUser(ctx context.Context, userID primitive.ObjectID) ([]models.ProjectListItem, error) {
	memberships, err := s.store.ListMembershipsByUser(ctx, userID)
	if err != nil {
		return nil, apierr.Internal("Failed to list projects").Wrap(err)
	}

	roles := make(map[primitive.ObjectID]models.Role, len(memberships))
	ids := make([]primitive.ObjectID, 0, len(memberships))
	for _, m := range memberships {
		roles[m.ProjectID] = m.Role
		ids = append(ids, m.ProjectID)
	}

	projects, err := s.store.FindProjectsByIDs(ctx, ids)
	if err != nil {
		return nil, apierr.Internal("Failed to list projects").Wrap(err)
	}

	creatorIDs := make([]primitive.ObjectID, 0, len(projects))
	for _, p := range projects {
		creatorIDs = append(creatorIDs, p.CreatedBy)
	}
	creators, err := userIndex(ctx, s.store, creatorIDs...)
	if err != nil {
		return nil, apierr.Internal("Failed to list projects").Wrap(err)
	}

	items := make([]models.ProjectListItem, 0, len(projects))
	for _, p := range projects {
		members, err := s.store.ListMembersByProject(ctx, p.ID)
		if err != nil {
			return nil, apierr.Internal("Failed to list projects").Wrap(err)
		}
		items = append(items, models.ProjectListItem{
			Project: projectResponse(p, creators[p.CreatedBy]),
			Members: len(members),
			Role:    roles[p.ID],
		})
	}
	return items, nil
}

// Create stores a project and makes the creator its admin
func (s *ProjectService) Create(ctx context.Context, userID primitive.ObjectID, req *models.CreateProjectRequest) (models.ProjectResponse, error) {
	if err := apierr.ValidateStruct(req); err != nil {
		return models.ProjectResponse{}, err
	}
	creator, err := actor(ctx, s.store, userID)
	if err != nil {
		return models.ProjectResponse{}, err
	}

	project := &models.Project{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		CreatedBy:   userID,
	}
	if project.Name == "" {
		return models.ProjectResponse{}, apierr.Validation("Project name is required",
			apierr.FieldError{Field: "name", Tag: "required", Message: "name is required"})
	}
	member := &models.Member{UserID: userID, Role: models.RoleAdmin}
	if err := s.store.CreateProject(ctx, project, member); err != nil {
		return models.ProjectResponse{}, apierr.Internal("Failed to create project").Wrap(err)
	}

	log.Printf("✅ [PROJECT] Created project %s by %s", project.ID.Hex(), userID.Hex())
	return projectResponse(project, creator), nil
}

// Get returns the project with its members populated
func (s *ProjectService) Get(ctx context.Context, projectID primitive.ObjectID) (*models.ProjectDetail, error) {
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	creators, err := userIndex(ctx, s.store, project.CreatedBy)
	if err != nil {
		return nil, apierr.Internal("Failed to load project").Wrap(err)
	}
	members, err := s.ListMembers(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &models.ProjectDetail{
		Project:        projectResponse(project, creators[project.CreatedBy]),
		ProjectMembers: members,
	}, nil
}

// Update changes the project's name or description
func (s *ProjectService) Update(ctx context.Context, actorID, projectID primitive.ObjectID, req *models.UpdateProjectRequest) (models.ProjectResponse, error) {
	if req.IsEmpty() {
		return models.ProjectResponse{}, apierr.Validation("At least one field is required to update the project")
	}
	if err := apierr.ValidateStruct(req); err != nil {
		return models.ProjectResponse{}, err
	}

	who, err := actor(ctx, s.store, actorID)
	if err != nil {
		return models.ProjectResponse{}, err
	}
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return models.ProjectResponse{}, err
	}

	if req.Name != nil {
		project.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	if err := s.store.UpdateProject(ctx, project); err != nil {
		return models.ProjectResponse{}, notFound(err, "Project not found")
	}

	s.fanout.Enqueue(ProjectUpdatedActivity(who, project))

	creators, err := userIndex(ctx, s.store, project.CreatedBy)
	if err != nil {
		return models.ProjectResponse{}, apierr.Internal("Failed to load project").Wrap(err)
	}
	return projectResponse(project, creators[project.CreatedBy]), nil
}

// Delete removes the project with everything in it. Members are captured
// before the cascade so they can still be notified.
func (s *ProjectService) Delete(ctx context.Context, actorID, projectID primitive.ObjectID) error {
	who, err := actor(ctx, s.store, actorID)
	if err != nil {
		return err
	}
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return err
	}

	members, err := s.store.ListMembersByProject(ctx, projectID)
	if err != nil {
		return apierr.Internal("Failed to delete project").Wrap(err)
	}
	memberIDs := make([]primitive.ObjectID, 0, len(members))
	for _, m := range members {
		memberIDs = append(memberIDs, m.UserID)
	}

	if err := s.store.DeleteProject(ctx, projectID); err != nil {
		return notFound(err, "Project not found")
	}

	s.fanout.Enqueue(ProjectDeletedActivity(who, project, memberIDs))
	log.Printf("🗑️  [PROJECT] Deleted project %s by %s", projectID.Hex(), actorID.Hex())
	return nil
}

// ListMembers returns the project's members with users populated
func (s *ProjectService) ListMembers(ctx context.Context, projectID primitive.ObjectID) ([]models.MemberResponse, error) {
	members, err := s.store.ListMembersByProject(ctx, projectID)
	if err != nil {
		return nil, apierr.Internal("Failed to list members").Wrap(err)
	}
	out, err := memberResponses(ctx, s.store, members)
	if err != nil {
		return nil, apierr.Internal("Failed to list members").Wrap(err)
	}
	return out, nil
}

// AddMember adds a registered user to the project by email
func (s *ProjectService) AddMember(ctx context.Context, actorID, projectID primitive.ObjectID, req *models.AddMemberRequest) (models.MemberResponse, error) {
	if err := apierr.ValidateStruct(req); err != nil {
		return models.MemberResponse{}, err
	}
	role, err := models.NewRole(req.Role)
	if err != nil {
		return models.MemberResponse{}, apierr.Validation("Invalid role")
	}

	who, err := actor(ctx, s.store, actorID)
	if err != nil {
		return models.MemberResponse{}, err
	}
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return models.MemberResponse{}, err
	}

	user, err := s.store.FindUserByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		return models.MemberResponse{}, notFound(err, "User does not exist")
	}

	member := &models.Member{ProjectID: projectID, UserID: user.ID, Role: role}
	if err := s.store.CreateMember(ctx, member); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return models.MemberResponse{}, apierr.Conflict("User is already a member of this project")
		}
		return models.MemberResponse{}, apierr.Internal("Failed to add member").Wrap(err)
	}

	s.fanout.Enqueue(MemberAddedActivity(who, project, user, role))
	return models.MemberResponse{
		ID:        member.ID,
		ProjectID: projectID,
		User:      user.Summary(),
		Role:      member.Role,
		CreatedAt: member.CreatedAt,
	}, nil
}

// UpdateMemberRole changes a member's role. The creator's role is fixed.
func (s *ProjectService) UpdateMemberRole(ctx context.Context, actorID, projectID, userID primitive.ObjectID, req *models.UpdateMemberRoleRequest) (models.MemberResponse, error) {
	if err := apierr.ValidateStruct(req); err != nil {
		return models.MemberResponse{}, err
	}
	role, err := models.NewRole(req.Role)
	if err != nil {
		return models.MemberResponse{}, apierr.Validation("Invalid role")
	}

	who, err := actor(ctx, s.store, actorID)
	if err != nil {
		return models.MemberResponse{}, err
	}
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return models.MemberResponse{}, err
	}
	if project.IsCreator(userID) {
		return models.MemberResponse{}, apierr.Forbidden("The project creator's role cannot be changed")
	}

	member, err := s.store.UpdateMemberRole(ctx, projectID, userID, role)
	if err != nil {
		return models.MemberResponse{}, notFound(err, "Member not found")
	}
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		return models.MemberResponse{}, apierr.Internal("Failed to load member").Wrap(err)
	}

	s.fanout.Enqueue(MemberRoleChangedActivity(who, project, user, role))
	return models.MemberResponse{
		ID:        member.ID,
		ProjectID: projectID,
		User:      user.Summary(),
		Role:      member.Role,
		CreatedAt: member.CreatedAt,
	}, nil
}

// RemoveMember deletes a membership. The creator cannot be removed.
func (s *ProjectService) RemoveMember(ctx context.Context, actorID, projectID, userID primitive.ObjectID) error {
	who, err := actor(ctx, s.store, actorID)
	if err != nil {
		return err
	}
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return err
	}
	if project.IsCreator(userID) {
		return apierr.Forbidden("The project creator cannot be removed")
	}

	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		return notFound(err, "Member not found")
	}
	if _, err := s.store.DeleteMember(ctx, projectID, userID); err != nil {
		return notFound(err, "Member not found")
	}

	s.fanout.Enqueue(MemberRemovedActivity(who, project, user))
	return nil
}
