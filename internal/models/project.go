package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Project groups members, tasks and notes
type Project struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	CreatedBy   primitive.ObjectID `bson:"createdBy" json:"createdBy"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// IsCreator reports whether userID created the project
func (p *Project) IsCreator(userID primitive.ObjectID) bool {
	return p.CreatedBy == userID
}

// ProjectResponse is a project with its creator populated
type ProjectResponse struct {
	ID          primitive.ObjectID `json:"_id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	CreatedBy   *UserSummary       `json:"createdBy"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// ProjectDetail is returned by the single-project read
type ProjectDetail struct {
	Project        ProjectResponse  `json:"project"`
	ProjectMembers []MemberResponse `json:"projectMembers"`
}

// CreateProjectRequest is the request body for creating a project
type CreateProjectRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"required,max=2000"`
}

// UpdateProjectRequest is the request body for updating a project
type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
}

// IsEmpty reports whether no mutable field was supplied
func (r *UpdateProjectRequest) IsEmpty() bool {
	return r.Name == nil && r.Description == nil
}

// ProjectListItem is one row of the caller's project list
type ProjectListItem struct {
	Project ProjectResponse `json:"project"`
	Members int             `json:"members"`
	Role    Role            `json:"role"`
}
