// Package access resolves what an authenticated caller may do.
package access

import (
	"github.com/google/uuid"

	"github.com/civicdesk/backend/internal/apperr"
	"github.com/civicdesk/backend/internal/models"
)

// Caller is the identity attached to a request. A nil *Caller is anonymous.
type Caller struct {
	UserID       uuid.UUID
	Name         string
	Email        string
	Role         models.Role
	DepartmentID *uuid.UUID
}

func CallerFromUser(u *models.User) *Caller {
	return &Caller{
		UserID:       u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         u.Role,
		DepartmentID: u.DepartmentID,
	}
}

func (c *Caller) Is(role models.Role) bool {
	return c != nil && c.Role == role
}

func (c *Caller) IsAdmin() bool { return c.Is(models.RoleAdmin) }

// BelongsTo reports whether c is department staff of departmentID.
func (c *Caller) BelongsTo(departmentID uuid.UUID) bool {
	return c.Is(models.RoleDepartment) && c.DepartmentID != nil && *c.DepartmentID == departmentID
}

// RequireRole fails with Unauthorized for an anonymous caller and Forbidden
// when the caller's role is not allowed.
func RequireRole(c *Caller, allowed ...models.Role) error {
	if c == nil {
		return apperr.Unauthorized("Authentication required")
	}
	for _, r := range allowed {
		if c.Role == r {
			return nil
		}
	}
	return apperr.Forbidden("Access denied")
}

// RequireDepartmentMatch restricts department callers to complaints that are
// unassigned or assigned to their own department. Other roles pass.
func RequireDepartmentMatch(c *Caller, complaintDepartmentID *uuid.UUID) error {
	if c == nil {
		return apperr.Unauthorized("Authentication required")
	}
	if c.Role != models.RoleDepartment || complaintDepartmentID == nil {
		return nil
	}
	if c.DepartmentID == nil || *c.DepartmentID != *complaintDepartmentID {
		return apperr.Forbidden("This complaint belongs to another department")
	}
	return nil
}

// CanView reports whether c may read the complaint.
func CanView(c *Caller, complaint *models.Complaint) bool {
	switch {
	case c == nil:
		return false
	case c.Role == models.RoleAdmin:
		return true
	case c.Role == models.RoleCitizen:
		return complaint.IsOwnedBy(c.UserID)
	case c.Role == models.RoleDepartment:
		return RequireDepartmentMatch(c, complaint.DepartmentID) == nil
	}
	return false
}
