package services

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"flowbase/internal/models"
)

// Activity verbs, used for logging
const (
	VerbMemberAdded    = "member.added"
	VerbMemberRole     = "member.role_changed"
	VerbMemberRemoved  = "member.removed"
	VerbProjectUpdated = "project.updated"
	VerbProjectDeleted = "project.deleted"
	VerbTaskCreated    = "task.created"
	VerbTaskUpdated    = "task.updated"
	VerbTaskDeleted    = "task.deleted"
	VerbSubtask        = "subtask"
	VerbNote           = "note"
)

func activityMetadata(actor *models.User, project *models.Project, extra ...string) map[string]any {
	md := map[string]any{
		"projectName": project.Name,
		"actorName":   actor.DisplayName(),
		"actorId":     actor.ID.Hex(),
	}
	for i := 0; i+1 < len(extra); i += 2 {
		md[extra[i]] = extra[i+1]
	}
	return md
}

// MemberAddedActivity notifies the new member and everyone else separately
func MemberAddedActivity(actor *models.User, project *models.Project, added *models.User, role models.Role) Activity {
	return Activity{
		Verb:      VerbMemberAdded,
		ActorID:   actor.ID,
		ProjectID: project.ID,
		Metadata:  activityMetadata(actor, project),
		Deliveries: []Delivery{
			{
				Recipients: []primitive.ObjectID{added.ID},
				Template: Template{
					Type:        models.NotificationProjectAdded,
					Message:     fmt.Sprintf("You were added to %q", project.Name),
					Description: fmt.Sprintf("%s added you as %s", actor.DisplayName(), role),
				},
			},
			{
				AllMembers: true,
				Exclude:    []primitive.ObjectID{added.ID},
				Template: Template{
					Type:        models.NotificationMemberJoined,
					Message:     fmt.Sprintf("%s joined %q", added.DisplayName(), project.Name),
					Description: fmt.Sprintf("%s added %s as %s", actor.DisplayName(), added.DisplayName(), role),
				},
			},
		},
		DataChanged: models.DataMembers,
	}
}

// MemberRoleChangedActivity notifies the member whose role changed
func MemberRoleChangedActivity(actor *models.User, project *models.Project, member *models.User, role models.Role) Activity {
	return Activity{
		Verb:      VerbMemberRole,
		ActorID:   actor.ID,
		ProjectID: project.ID,
		Metadata:  activityMetadata(actor, project),
		Deliveries: []Delivery{{
			Recipients: []primitive.ObjectID{member.ID},
			Template: Template{
				Type:        models.NotificationProjectUpdated,
				Message:     fmt.Sprintf("Your role in %q changed to %s", project.Name, role),
				Description: fmt.Sprintf("%s changed your role", actor.DisplayName()),
			},
		}},
		DataChanged: models.DataMembers,
	}
}

// MemberRemovedActivity notifies the removed user and the remaining members
func MemberRemovedActivity(actor *models.User, project *models.Project, removed *models.User) Activity {
	return Activity{
		Verb:      VerbMemberRemoved,
		ActorID:   actor.ID,
		ProjectID: project.ID,
		Metadata:  activityMetadata(actor, project),
		Deliveries: []Delivery{
			{
				Recipients: []primitive.ObjectID{removed.ID},
				Template: Template{
					Type:        models.NotificationMemberRemoved,
					Message:     fmt.Sprintf("You were removed from %q", project.Name),
					Description: fmt.Sprintf("%s removed you from the project", actor.DisplayName()),
				},
			},
			{
				AllMembers: true,
				Exclude:    []primitive.ObjectID{removed.ID},
				Template: Template{
					Type:        models.NotificationMemberRemoved,
					Message:     fmt.Sprintf("%s left %q", removed.DisplayName(), project.Name),
					Description: fmt.Sprintf("%s removed %s", actor.DisplayName(), removed.DisplayName()),
				},
			},
		},
		DataChanged: models.DataMembers,
	}
}

// ProjectUpdatedActivity notifies every member
func ProjectUpdatedActivity(actor *models.User, project *models.Project) Activity {
	return Activity{
		Verb:      VerbProjectUpdated,
		ActorID:   actor.ID,
		ProjectID: project.ID,
		Metadata:  activityMetadata(actor, project),
		Deliveries: []Delivery{{
			AllMembers: true,
			Template: Template{
				Type:        models.NotificationProjectUpdated,
				Message:     fmt.Sprintf("Project updated: %q", project.Name),
				Description: fmt.Sprintf("%s updated the project details", actor.DisplayName()),
			},
		}},
		DataChanged: models.DataProject,
	}
}

// ProjectDeletedActivity notifies the members captured before the cascade ran
func ProjectDeletedActivity(actor *models.User, project *models.Project, memberIDs []primitive.ObjectID) Activity {
	return Activity{
		Verb:      VerbProjectDeleted,
		ActorID:   actor.ID,
		ProjectID: project.ID,
		Metadata:  activityMetadata(actor, project),
		Deliveries: []Delivery{{
			Recipients: memberIDs,
			Template: Template{
				Type:        models.NotificationProjectUpdated,
				Message:     fmt.Sprintf("Project deleted: %q", project.Name),
				Description: fmt.Sprintf("%s deleted the project", actor.DisplayName()),
			},
		}},
		DataChanged: models.DataProject,
	}
}

func taskActivity(verb string, actor *models.User, project *models.Project, task *models.Task) Activity {
	taskID := task.ID
	return Activity{
		Verb:        verb,
		ActorID:     actor.ID,
		ProjectID:   project.ID,
		TaskID:      &taskID,
		Metadata:    activityMetadata(actor, project, "taskTitle", task.Title),
		DataChanged: models.DataTasks,
	}
}

func assignedDelivery(actor *models.User, project *models.Project, task *models.Task) Delivery {
	return Delivery{
		Recipients: []primitive.ObjectID{*task.AssignedTo},
		Template: Template{
			Type:        models.NotificationTaskAssigned,
			Message:     fmt.Sprintf("You were assigned to %q", task.Title),
			Description: fmt.Sprintf("%s assigned you a task in %q", actor.DisplayName(), project.Name),
		},
	}
}

// TaskCreatedActivity notifies the assignee and, separately, the other members
func TaskCreatedActivity(actor *models.User, project *models.Project, task *models.Task) Activity {
	a := taskActivity(VerbTaskCreated, actor, project, task)
	var exclude []primitive.ObjectID
	if task.AssignedTo != nil {
		a.Deliveries = append(a.Deliveries, assignedDelivery(actor, project, task))
		exclude = append(exclude, *task.AssignedTo)
	}
	a.Deliveries = append(a.Deliveries, Delivery{
		AllMembers: true,
		Exclude:    exclude,
		Template: Template{
			Type:        models.NotificationTaskAssigned,
			Message:     fmt.Sprintf("New task created: %q", task.Title),
			Description: fmt.Sprintf("%s created a task in %q", actor.DisplayName(), project.Name),
		},
	})
	return a
}

// TaskUpdatedActivity compares the task before and after the update
func TaskUpdatedActivity(actor *models.User, project *models.Project, before, after *models.Task) Activity {
	a := taskActivity(VerbTaskUpdated, actor, project, after)

	if after.AssignedTo != nil && !before.IsAssignedTo(*after.AssignedTo) {
		a.Deliveries = append(a.Deliveries, assignedDelivery(actor, project, after))
	}

	switch {
	case after.Status == models.TaskStatusDone && before.Status != models.TaskStatusDone:
		a.Deliveries = append(a.Deliveries, Delivery{
			AllMembers: true,
			Template: Template{
				Type:        models.NotificationTaskCompleted,
				Message:     fmt.Sprintf("Task completed: %q", after.Title),
				Description: fmt.Sprintf("%s marked the task as done", actor.DisplayName()),
			},
		})
	case after.Status != before.Status || after.Title != before.Title || after.Description != before.Description:
		a.Deliveries = append(a.Deliveries, Delivery{
			AllMembers: true,
			Template: Template{
				Type:        models.NotificationTaskAssigned,
				Message:     fmt.Sprintf("Task updated: %q", after.Title),
				Description: fmt.Sprintf("%s updated a task in %q", actor.DisplayName(), project.Name),
			},
		})
	}
	return a
}

// TaskDeletedActivity notifies every member
func TaskDeletedActivity(actor *models.User, project *models.Project, task *models.Task) Activity {
	a := taskActivity(VerbTaskDeleted, actor, project, task)
	a.Deliveries = []Delivery{{
		AllMembers: true,
		Template: Template{
			Type:        models.NotificationTaskAssigned,
			Message:     fmt.Sprintf("Task deleted: %q", task.Title),
			Description: fmt.Sprintf("%s deleted a task in %q", actor.DisplayName(), project.Name),
		},
	}}
	return a
}

// Change kinds for subtask and note activities
const (
	ChangeAdded     = "added"
	ChangeUpdated   = "updated"
	ChangeCompleted = "completed"
	ChangeDeleted   = "deleted"
)

// SubtaskActivity notifies every member of a subtask change
func SubtaskActivity(actor *models.User, project *models.Project, task *models.Task, subtask *models.Subtask, change string) Activity {
	a := taskActivity(VerbSubtask+"."+change, actor, project, task)
	a.Metadata["subtaskTitle"] = subtask.Title
	a.DataChanged = models.DataSubtasks

	kind := models.NotificationTaskAssigned
	if change == ChangeCompleted {
		kind = models.NotificationTaskCompleted
	}
	a.Deliveries = []Delivery{{
		AllMembers: true,
		Template: Template{
			Type:        kind,
			Message:     fmt.Sprintf("Subtask %s: %q", change, subtask.Title),
			Description: fmt.Sprintf("%s %s a subtask of %q", actor.DisplayName(), change, task.Title),
		},
	}}
	return a
}

// NoteActivity notifies every member of a note change
func NoteActivity(actor *models.User, project *models.Project, change string) Activity {
	return Activity{
		Verb:      VerbNote + "." + change,
		ActorID:   actor.ID,
		ProjectID: project.ID,
		Metadata:  activityMetadata(actor, project),
		Deliveries: []Delivery{{
			AllMembers: true,
			Template: Template{
				Type:        models.NotificationProjectUpdated,
				Message:     fmt.Sprintf("Note %s in %q", change, project.Name),
				Description: fmt.Sprintf("%s %s a project note", actor.DisplayName(), change),
			},
		}},
		DataChanged: models.DataNotes,
	}
}
