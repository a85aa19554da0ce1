package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Note is free-form project documentation
type Note struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	ProjectID primitive.ObjectID `bson:"project" json:"project"`
	Content   string             `bson:"content" json:"content"`
	CreatedBy primitive.ObjectID `bson:"createdBy" json:"createdBy"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// NoteResponse is a note with its author populated
type NoteResponse struct {
	ID        primitive.ObjectID `json:"_id"`
	ProjectID primitive.ObjectID `json:"project"`
	Content   string             `json:"content"`
	CreatedBy *UserSummary       `json:"createdBy"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// NoteRequest is the request body for creating or updating a note
type NoteRequest struct {
	Content string `json:"content" validate:"required,max=20000"`
}
