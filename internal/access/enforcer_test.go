package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdesk/backend/internal/models"
)

func TestEnforcer_DefaultPolicies(t *testing.T) {
	e, err := NewEnforcer()
	require.NoError(t, err)

	tests := []struct {
		role     models.Role
		resource string
		action   string
		want     bool
	}{
		{models.RoleAdmin, ResourceComplaints, ActionAssign, true},
		{models.RoleAdmin, ResourceComplaints, ActionDelete, true},
		{models.RoleAdmin, ResourceActionLogs, ActionRead, true},
		{models.RoleDepartment, ResourceComplaints, ActionStatus, true},
		{models.RoleDepartment, ResourceComplaints, ActionAssign, false},
		{models.RoleDepartment, ResourceUsers, ActionRead, false},
		{models.RoleCitizen, ResourceComplaints, ActionFeedback, true},
		{models.RoleCitizen, ResourceComplaints, ActionStatus, false},
		{models.RoleCitizen, ResourceAnnouncements, ActionCreate, false},
	}
	for _, tt := range tests {
		got, err := e.Allowed(tt.role, tt.resource, tt.action)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s %s:%s", tt.role, tt.resource, tt.action)
	}
}
