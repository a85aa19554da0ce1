package models

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrInvalidRole is returned when a role string is not one of the known roles
var ErrInvalidRole = errors.New("invalid project role")

// Role is a member's role within a project
type Role string

// Project roles, highest privilege first
const (
	RoleAdmin        Role = "admin"
	RoleProjectAdmin Role = "project_admin"
	RoleMember       Role = "member"
)

// AllRoles lists every role in privilege order
var AllRoles = []Role{RoleAdmin, RoleProjectAdmin, RoleMember}

// NewRole parses a role string
func NewRole(s string) (Role, error) {
	role := Role(s)
	if err := role.Validate(); err != nil {
		return "", err
	}
	return role, nil
}

// Validate checks that the role is known
func (r Role) Validate() error {
	switch r {
	case RoleAdmin, RoleProjectAdmin, RoleMember:
		return nil
	}
	return fmt.Errorf("%s: %w", r, ErrInvalidRole)
}

func (r Role) String() string {
	return string(r)
}

// Permission is an action a role may be granted inside a project
type Permission string

const (
	PermProjectRead   Permission = "project.read"
	PermProjectManage Permission = "project.manage"
	PermMembersManage Permission = "members.manage"
	PermTaskRead      Permission = "task.read"
	PermTaskWrite     Permission = "task.write"
	PermTaskStatus    Permission = "task.status"
	PermSubtaskWrite  Permission = "subtask.write"
	PermNoteRead      Permission = "note.read"
	PermNoteWrite     Permission = "note.write"
	PermTaskExport    Permission = "task.export"
)

// rolePermissions maps each role to the permissions it holds.
// PermTaskStatus is narrowed further for members: only on tasks assigned to them.
var rolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermProjectRead, PermProjectManage, PermMembersManage,
		PermTaskRead, PermTaskWrite, PermTaskStatus, PermSubtaskWrite, PermTaskExport,
		PermNoteRead, PermNoteWrite,
	},
	RoleProjectAdmin: {
		PermProjectRead,
		PermTaskRead, PermTaskWrite, PermTaskStatus, PermSubtaskWrite, PermTaskExport,
		PermNoteRead,
	},
	RoleMember: {
		PermProjectRead,
		PermTaskRead, PermTaskStatus,
		PermNoteRead,
	},
}

// Can reports whether the role holds the permission
func (r Role) Can(p Permission) bool {
	for _, granted := range rolePermissions[r] {
		if granted == p {
			return true
		}
	}
	return false
}

// RolesWith returns the allow-list of roles holding the permission
func RolesWith(p Permission) []Role {
	var roles []Role
	for _, r := range AllRoles {
		if r.Can(p) {
			roles = append(roles, r)
		}
	}
	return roles
}

// Member binds a user to a project with a role
type Member struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	ProjectID primitive.ObjectID `bson:"project" json:"project"`
	UserID    primitive.ObjectID `bson:"user" json:"user"`
	Role      Role               `bson:"role" json:"role"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// MemberResponse is a membership with the user populated
type MemberResponse struct {
	ID        primitive.ObjectID `json:"_id"`
	ProjectID primitive.ObjectID `json:"project"`
	User      *UserSummary       `json:"user"`
	Role      Role               `json:"role"`
	CreatedAt time.Time          `json:"createdAt"`
}

// AddMemberRequest is the request body for adding a member by email
type AddMemberRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=admin project_admin member"`
}

// UpdateMemberRoleRequest is the request body for changing a member's role
type UpdateMemberRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin project_admin member"`
}
