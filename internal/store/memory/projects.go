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

// CreateProject inserts the project and its creator membership in one transaction.
func (d *DB) CreateProject(_ context.Context, project *models.Project, creator *models.Member) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	newIDIfZero(&project.ID)
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now
	p := *project
	if err := txn.Insert(tblProjects, &projectRecord{ID: project.ID.Hex(), Project: &p}); err != nil {
		return fmt.Errorf("insert project: %w", err)
	}

	creator.ProjectID = project.ID
	if err := insertMember(txn, creator); err != nil {
		return err
	}

	txn.Commit()
	return nil
}

// FindProjectByID finds a project by id.
func (d *DB) FindProjectByID(_ context.Context, id primitive.ObjectID) (*models.Project, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblProjects, "id", id.Hex())
	if err != nil {
		return nil, fmt.Errorf("find project: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("project %s: %w", id.Hex(), store.ErrNotFound)
	}
	p := *raw.(*projectRecord).Project
	return &p, nil
}

// FindProjectsByIDs returns the projects that exist among ids.
func (d *DB) FindProjectsByIDs(_ context.Context, ids []primitive.ObjectID) ([]*models.Project, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	var projects []*models.Project
	for _, id := range ids {
		raw, err := txn.First(tblProjects, "id", id.Hex())
		if err != nil {
			return nil, fmt.Errorf("find project: %w", err)
		}
		if raw != nil {
			p := *raw.(*projectRecord).Project
			projects = append(projects, &p)
		}
	}
	return projects, nil
}

// UpdateProject replaces the stored project's name and description.
func (d *DB) UpdateProject(_ context.Context, project *models.Project) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblProjects, "id", project.ID.Hex())
	if err != nil {
		return fmt.Errorf("find project: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("project %s: %w", project.ID.Hex(), store.ErrNotFound)
	}

	p := *raw.(*projectRecord).Project
	p.Name = project.Name
	p.Description = project.Description
	p.UpdatedAt = time.Now()
	if err := txn.Insert(tblProjects, &projectRecord{ID: p.ID.Hex(), Project: &p}); err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	txn.Commit()

	*project = p
	return nil
}

// DeleteProject removes the project and every entity that references it.
func (d *DB) DeleteProject(_ context.Context, id primitive.ObjectID) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblProjects, "id", id.Hex())
	if err != nil {
		return fmt.Errorf("find project: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("project %s: %w", id.Hex(), store.ErrNotFound)
	}
	if err := txn.Delete(tblProjects, raw); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}

	for _, tbl := range []string{tblMembers, tblTasks, tblSubtasks, tblNotes} {
		if _, err := txn.DeleteAll(tbl, "project_id", id.Hex()); err != nil {
			return fmt.Errorf("delete %s of project: %w", tbl, err)
		}
	}

	txn.Commit()
	return nil
}

func insertMember(txn *memdb.Txn, member *models.Member) error {
	existing, err := txn.First(tblMembers, "project_id_user_id", member.ProjectID.Hex(), member.UserID.Hex())
	if err != nil {
		return fmt.Errorf("find project member: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("project member: %w", store.ErrDuplicate)
	}

	newIDIfZero(&member.ID)
	now := time.Now()
	member.CreatedAt = now
	member.UpdatedAt = now
	if err := txn.Insert(tblMembers, newMemberRecord(member)); err != nil {
		return fmt.Errorf("insert project member: %w", err)
	}
	return nil
}

// CreateMember inserts a membership, rejecting a second row for the same (project, user).
func (d *DB) CreateMember(_ context.Context, member *models.Member) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	if err := insertMember(txn, member); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// FindMember finds the membership of a user in a project.
func (d *DB) FindMember(_ context.Context, projectID, userID primitive.ObjectID) (*models.Member, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblMembers, "project_id_user_id", projectID.Hex(), userID.Hex())
	if err != nil {
		return nil, fmt.Errorf("find project member: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("project member: %w", store.ErrNotFound)
	}
	m := *raw.(*memberRecord).Member
	return &m, nil
}

func (d *DB) listMembers(index, key string) ([]*models.Member, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	iter, err := txn.Get(tblMembers, index, key)
	if err != nil {
		return nil, fmt.Errorf("list project members: %w", err)
	}

	var members []*models.Member
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		m := *raw.(*memberRecord).Member
		members = append(members, &m)
	}
	return members, nil
}

// ListMembersByProject returns the memberships of a project in creation order.
func (d *DB) ListMembersByProject(_ context.Context, projectID primitive.ObjectID) ([]*models.Member, error) {
	return d.listMembers("project_id", projectID.Hex())
}

// ListMembershipsByUser returns every membership of a user.
func (d *DB) ListMembershipsByUser(_ context.Context, userID primitive.ObjectID) ([]*models.Member, error) {
	return d.listMembers("user_id", userID.Hex())
}

// UpdateMemberRole changes the role of an existing membership.
func (d *DB) UpdateMemberRole(
	_ context.Context,
	projectID, userID primitive.ObjectID,
	role models.Role,
) (*models.Member, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblMembers, "project_id_user_id", projectID.Hex(), userID.Hex())
	if err != nil {
		return nil, fmt.Errorf("find project member: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("project member: %w", store.ErrNotFound)
	}

	m := *raw.(*memberRecord).Member
	m.Role = role
	m.UpdatedAt = time.Now()
	if err := txn.Insert(tblMembers, newMemberRecord(&m)); err != nil {
		return nil, fmt.Errorf("update project member: %w", err)
	}
	txn.Commit()
	return &m, nil
}

// DeleteMember removes a membership and returns the removed row.
func (d *DB) DeleteMember(_ context.Context, projectID, userID primitive.ObjectID) (*models.Member, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblMembers, "project_id_user_id", projectID.Hex(), userID.Hex())
	if err != nil {
		return nil, fmt.Errorf("find project member: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("project member: %w", store.ErrNotFound)
	}
	if err := txn.Delete(tblMembers, raw); err != nil {
		return nil, fmt.Errorf("delete project member: %w", err)
	}
	txn.Commit()

	m := *raw.(*memberRecord).Member
	return &m, nil
}
