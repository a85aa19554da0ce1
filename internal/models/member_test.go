package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRole(t *testing.T) {
	for _, s := range []string{"admin", "project_admin", "member"} {
		role, err := NewRole(s)
		require.NoError(t, err)
		assert.Equal(t, s, role.String())
	}

	_, err := NewRole("owner")
	assert.True(t, errors.Is(err, ErrInvalidRole))

	_, err = NewRole("")
	assert.Error(t, err)
}

func TestRolePermissions(t *testing.T) {
	tests := []struct {
		perm Permission
		want []Role
	}{
		{PermProjectRead, []Role{RoleAdmin, RoleProjectAdmin, RoleMember}},
		{PermProjectManage, []Role{RoleAdmin}},
		{PermMembersManage, []Role{RoleAdmin}},
		{PermTaskRead, []Role{RoleAdmin, RoleProjectAdmin, RoleMember}},
		{PermTaskWrite, []Role{RoleAdmin, RoleProjectAdmin}},
		{PermTaskStatus, []Role{RoleAdmin, RoleProjectAdmin, RoleMember}},
		{PermSubtaskWrite, []Role{RoleAdmin, RoleProjectAdmin}},
		{PermNoteRead, []Role{RoleAdmin, RoleProjectAdmin, RoleMember}},
		{PermNoteWrite, []Role{RoleAdmin}},
		{PermTaskExport, []Role{RoleAdmin, RoleProjectAdmin}},
	}

	for _, tt := range tests {
		t.Run(string(tt.perm), func(t *testing.T) {
			assert.Equal(t, tt.want, RolesWith(tt.perm))
		})
	}
}

func TestUnknownRoleHasNoPermissions(t *testing.T) {
	assert.False(t, Role("owner").Can(PermProjectRead))
}

func TestTaskStatusValidate(t *testing.T) {
	assert.NoError(t, TaskStatusDone.Validate())
	assert.Error(t, TaskStatus("completed").Validate())
}
