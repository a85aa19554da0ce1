package services

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"flowbase/internal/apierr"
	"flowbase/internal/models"
	"flowbase/internal/store"
)

// DashboardService computes the caller's dashboard counters
type DashboardService struct {
	store store.Store
}

// NewDashboardService creates a dashboard service
func NewDashboardService(s store.Store) *DashboardService {
	return &DashboardService{store: s}
}

// Stats counts the caller's open tasks across all projects, and the members,
// notes and number of the projects the caller administers.
func (s *DashboardService) Stats(ctx context.Context, userID primitive.ObjectID) (*models.DashboardStats, error) {
	memberships, err := s.store.ListMembershipsByUser(ctx, userID)
	if err != nil {
		return nil, apierr.Internal("Failed to load dashboard").Wrap(err)
	}

	var all, owned []primitive.ObjectID
	for _, m := range memberships {
		all = append(all, m.ProjectID)
		if m.Role == models.RoleAdmin {
			owned = append(owned, m.ProjectID)
		}
	}

	stats := &models.DashboardStats{TotalProjects: int64(len(owned))}
	if len(all) > 0 {
		stats.ActiveTasks, err = s.store.CountTasks(ctx, store.TaskFilter{
			ProjectIDs:    all,
			AssignedTo:    &userID,
			ExcludeStatus: models.TaskStatusDone,
		})
		if err != nil {
			return nil, apierr.Internal("Failed to load dashboard").Wrap(err)
		}
	}
	if len(owned) == 0 {
		return stats, nil
	}

	team := make(map[primitive.ObjectID]struct{})
	for _, projectID := range owned {
		members, err := s.store.ListMembersByProject(ctx, projectID)
		if err != nil {
			return nil, apierr.Internal("Failed to load dashboard").Wrap(err)
		}
		for _, m := range members {
			if m.UserID != userID {
				team[m.UserID] = struct{}{}
			}
		}
	}
	stats.TeamMembers = int64(len(team))

	stats.Notes, err = s.store.CountNotesByProjects(ctx, owned)
	if err != nil {
		return nil, apierr.Internal("Failed to load dashboard").Wrap(err)
	}
	return stats, nil
}
