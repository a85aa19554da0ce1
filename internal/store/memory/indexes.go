package memory

import "github.com/hashicorp/go-memdb"

var (
	tblUsers         = "users"
	tblProjects      = "projects"
	tblMembers       = "members"
	tblTasks         = "tasks"
	tblSubtasks      = "subtasks"
	tblNotes         = "notes"
	tblNotifications = "notifications"
)

func idIndex() *memdb.IndexSchema {
	return &memdb.IndexSchema{
		Name:    "id",
		Unique:  true,
		Indexer: &memdb.StringFieldIndex{Field: "ID"},
	}
}

func fieldIndex(name, field string) *memdb.IndexSchema {
	return &memdb.IndexSchema{
		Name:    name,
		Indexer: &memdb.StringFieldIndex{Field: field},
	}
}

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tblUsers: {
			Name: tblUsers,
			Indexes: map[string]*memdb.IndexSchema{
				"id": idIndex(),
				"email": {
					Name:    "email",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Email", Lowercase: true},
				},
				"username": {
					Name:    "username",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Username"},
				},
				"verification_token": {
					Name:         "verification_token",
					AllowMissing: true,
					Indexer:      &memdb.StringFieldIndex{Field: "VerificationToken"},
				},
				"reset_token": {
					Name:         "reset_token",
					AllowMissing: true,
					Indexer:      &memdb.StringFieldIndex{Field: "ResetToken"},
				},
			},
		},
		tblProjects: {
			Name: tblProjects,
			Indexes: map[string]*memdb.IndexSchema{
				"id": idIndex(),
			},
		},
		tblMembers: {
			Name: tblMembers,
			Indexes: map[string]*memdb.IndexSchema{
				"id":         idIndex(),
				"project_id": fieldIndex("project_id", "ProjectID"),
				"user_id":    fieldIndex("user_id", "UserID"),
				"project_id_user_id": {
					Name:   "project_id_user_id",
					Unique: true,
					Indexer: &memdb.CompoundIndex{
						Indexes: []memdb.Indexer{
							&memdb.StringFieldIndex{Field: "ProjectID"},
							&memdb.StringFieldIndex{Field: "UserID"},
						},
					},
				},
			},
		},
		tblTasks: {
			Name: tblTasks,
			Indexes: map[string]*memdb.IndexSchema{
				"id":         idIndex(),
				"project_id": fieldIndex("project_id", "ProjectID"),
			},
		},
		tblSubtasks: {
			Name: tblSubtasks,
			Indexes: map[string]*memdb.IndexSchema{
				"id":         idIndex(),
				"project_id": fieldIndex("project_id", "ProjectID"),
				"task_id":    fieldIndex("task_id", "TaskID"),
			},
		},
		tblNotes: {
			Name: tblNotes,
			Indexes: map[string]*memdb.IndexSchema{
				"id":         idIndex(),
				"project_id": fieldIndex("project_id", "ProjectID"),
			},
		},
		tblNotifications: {
			Name: tblNotifications,
			Indexes: map[string]*memdb.IndexSchema{
				"id":      idIndex(),
				"user_id": fieldIndex("user_id", "UserID"),
			},
		},
	},
}
