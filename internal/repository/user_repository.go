package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/civicdesk/backend/internal/apperr"
	"github.com/civicdesk/backend/internal/models"
)

const userNotFound = "User not found"

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, user *models.User) error
	UpdatePreferences(ctx context.Context, id uuid.UUID, prefs models.NotificationPreferences) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter *models.UserFilter) ([]models.User, int64, error)
	ListByRole(ctx context.Context, role models.Role) ([]models.User, error)
	ListDepartmentStaff(ctx context.Context, departmentID uuid.UUID) ([]models.User, error)
	CountDepartmentStaff(ctx context.Context, departmentID uuid.UUID) (int64, error)
	// AssignToDepartment makes the user department staff of departmentID.
	AssignToDepartment(ctx context.Context, userID, departmentID uuid.UUID) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if err := conn(ctx, r.db).Omit("Department").Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("User with this email already exists")
		}
		return err
	}
	return nil
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := conn(ctx, r.db).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err, userNotFound)
	}
	return &user, nil
}

func (r *userRepository) FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := conn(ctx, r.db).Preload("Department").First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err, userNotFound)
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := conn(ctx, r.db).First(&user, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if err != nil {
		return nil, notFound(err, userNotFound)
	}
	return &user, nil
}

func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.User{}).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		Count(&count).Error
	return count > 0, err
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	return conn(ctx, r.db).Omit("Department").Save(user).Error
}

func (r *userRepository) UpdatePreferences(ctx context.Context, id uuid.UUID, prefs models.NotificationPreferences) error {
	res := conn(ctx, r.db).Model(&models.User{}).
		Where("id = ?", id).
		Updates(preferenceColumns(prefs))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(userNotFound)
	}
	return nil
}

func preferenceColumns(p models.NotificationPreferences) map[string]interface{} {
	cols := map[string]interface{}{}
	for prefix, c := range map[string]models.ChannelPreferences{"pref_in_app_": p.InApp, "pref_email_": p.Email} {
		cols[prefix+"enabled"] = c.Enabled
		cols[prefix+"status_updates"] = c.StatusUpdates
		cols[prefix+"announcements"] = c.Announcements
		cols[prefix+"comments"] = c.Comments
	}
	return cols
}

func (r *userRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return conn(ctx, r.db).Model(&models.User{}).Where("id = ?", id).UpdateColumn("last_login_at", at).Error
}

// Delete removes the user. Department membership lives on the user row, so
// the staff roster shrinks with it.
func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := conn(ctx, r.db).Delete(&models.User{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(userNotFound)
	}
	return nil
}

func (r *userRepository) List(ctx context.Context, filter *models.UserFilter) ([]models.User, int64, error) {
	var users []models.User
	var total int64

	query := conn(ctx, r.db).Model(&models.User{})
	if filter.Role != nil {
		query = query.Where("role = ?", *filter.Role)
	}
	if filter.DepartmentID != nil {
		query = query.Where("department_id = ?", *filter.DepartmentID)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR email LIKE ?", pattern, pattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := paginate(&filter.Page, &filter.Limit)
	err := query.
		Preload("Department").
		Order("created_at DESC").
		Offset(offset).
		Limit(filter.Limit).
		Find(&users).Error
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *userRepository) ListByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	var users []models.User
	err := conn(ctx, r.db).Where("role = ?", role).Order("created_at ASC").Find(&users).Error
	return users, err
}

func (r *userRepository) ListDepartmentStaff(ctx context.Context, departmentID uuid.UUID) ([]models.User, error) {
	var users []models.User
	err := conn(ctx, r.db).
		Where("role = ? AND department_id = ?", models.RoleDepartment, departmentID).
		Order("name ASC").
		Find(&users).Error
	return users, err
}

func (r *userRepository) CountDepartmentStaff(ctx context.Context, departmentID uuid.UUID) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.User{}).
		Where("role = ? AND department_id = ?", models.RoleDepartment, departmentID).
		Count(&count).Error
	return count, err
}

func (r *userRepository) AssignToDepartment(ctx context.Context, userID, departmentID uuid.UUID) error {
	res := conn(ctx, r.db).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"role":          models.RoleDepartment,
			"department_id": departmentID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(userNotFound)
	}
	return nil
}
