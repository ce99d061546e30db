package access

import (
	"fmt"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/civicdesk/backend/internal/models"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && (r.act == p.act || p.act == "*")
`

// Resources and actions checked by route guards.
const (
	ResourceComplaints    = "complaints"
	ResourceDepartments   = "departments"
	ResourceUsers         = "users"
	ResourceAnnouncements = "announcements"
	ResourceEnquiries     = "enquiries"
	ResourceActionLogs    = "action_logs"

	ActionCreate   = "create"
	ActionRead     = "read"
	ActionUpdate   = "update"
	ActionDelete   = "delete"
	ActionAssign   = "assign"
	ActionStatus   = "status"
	ActionComment  = "comment"
	ActionFeedback = "feedback"
	ActionStaff    = "staff"
	ActionArchive  = "archive"
)

var defaultPolicies = [][]string{
	{string(models.RoleAdmin), ResourceComplaints, "*"},
	{string(models.RoleAdmin), ResourceDepartments, "*"},
	{string(models.RoleAdmin), ResourceUsers, "*"},
	{string(models.RoleAdmin), ResourceAnnouncements, "*"},
	{string(models.RoleAdmin), ResourceEnquiries, "*"},
	{string(models.RoleAdmin), ResourceActionLogs, ActionRead},

	{string(models.RoleDepartment), ResourceComplaints, ActionCreate},
	{string(models.RoleDepartment), ResourceComplaints, ActionRead},
	{string(models.RoleDepartment), ResourceComplaints, ActionStatus},
	{string(models.RoleDepartment), ResourceComplaints, ActionComment},
	{string(models.RoleDepartment), ResourceComplaints, ActionArchive},
	{string(models.RoleDepartment), ResourceDepartments, ActionStaff},
	{string(models.RoleDepartment), ResourceAnnouncements, ActionCreate},
	{string(models.RoleDepartment), ResourceAnnouncements, ActionUpdate},
	{string(models.RoleDepartment), ResourceAnnouncements, ActionDelete},
	{string(models.RoleDepartment), ResourceEnquiries, ActionRead},
	{string(models.RoleDepartment), ResourceEnquiries, ActionUpdate},

	{string(models.RoleCitizen), ResourceComplaints, ActionCreate},
	{string(models.RoleCitizen), ResourceComplaints, ActionRead},
	{string(models.RoleCitizen), ResourceComplaints, ActionComment},
	{string(models.RoleCitizen), ResourceComplaints, ActionFeedback},
}

// Enforcer answers role -> (resource, action) questions from an in-memory
// casbin policy.
type Enforcer struct {
	enforcer *casbin.Enforcer
	mu       sync.RWMutex
}

func NewEnforcer() (*Enforcer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse casbin model: %w", err)
	}

	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	for _, p := range defaultPolicies {
		if _, err := enforcer.AddPolicy(p[0], p[1], p[2]); err != nil {
			return nil, fmt.Errorf("failed to add policy [%s, %s, %s]: %w", p[0], p[1], p[2], err)
		}
	}

	return &Enforcer{enforcer: enforcer}, nil
}

func (e *Enforcer) Allowed(role models.Role, resource, action string) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	allowed, err := e.enforcer.Enforce(string(role), resource, action)
	if err != nil {
		return false, fmt.Errorf("permission check failed: %w", err)
	}
	return allowed, nil
}
