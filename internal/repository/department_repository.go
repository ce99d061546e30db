package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/civicdesk/backend/internal/apperr"
	"github.com/civicdesk/backend/internal/models"
)

const departmentNotFound = "Department not found"

type DepartmentRepository interface {
	Create(ctx context.Context, dept *models.Department, categories []string) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Department, error)
	FindByIDWithStaff(ctx context.Context, id uuid.UUID) (*models.Department, error)
	FindByName(ctx context.Context, name string) (*models.Department, error)
	List(ctx context.Context) ([]models.Department, error)
	// Update saves dept; a non-nil categories slice replaces the category set.
	Update(ctx context.Context, dept *models.Department, categories []string) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListCategories(ctx context.Context) ([]string, error)
}

type departmentRepository struct {
	db *gorm.DB
}

func NewDepartmentRepository(db *gorm.DB) DepartmentRepository {
	return &departmentRepository{db: db}
}

func (r *departmentRepository) Create(ctx context.Context, dept *models.Department, categories []string) error {
	categories = NormalizeCategories(categories)
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := ensureNameFree(tx, dept.Name, uuid.Nil); err != nil {
			return err
		}
		if err := ensureCategoriesFree(tx, categories, uuid.Nil); err != nil {
			return err
		}
		dept.Categories = nil
		if err := tx.Omit("Categories", "Staff").Create(dept).Error; err != nil {
			if isUniqueViolation(err) {
				return apperr.Conflict("Department with this name already exists")
			}
			return err
		}
		return replaceCategories(tx, dept, categories)
	})
}

func (r *departmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Department, error) {
	var dept models.Department
	if err := conn(ctx, r.db).Preload("Categories").First(&dept, "id = ?", id).Error; err != nil {
		return nil, notFound(err, departmentNotFound)
	}
	return &dept, nil
}

func (r *departmentRepository) FindByIDWithStaff(ctx context.Context, id uuid.UUID) (*models.Department, error) {
	var dept models.Department
	err := conn(ctx, r.db).
		Preload("Categories").
		Preload("Staff", "role = ?", models.RoleDepartment).
		First(&dept, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, departmentNotFound)
	}
	return &dept, nil
}

func (r *departmentRepository) FindByName(ctx context.Context, name string) (*models.Department, error) {
	var dept models.Department
	if err := conn(ctx, r.db).Preload("Categories").First(&dept, "name = ?", name).Error; err != nil {
		return nil, notFound(err, departmentNotFound)
	}
	return &dept, nil
}

func (r *departmentRepository) List(ctx context.Context) ([]models.Department, error) {
	var depts []models.Department
	err := conn(ctx, r.db).
		Preload("Categories").
		Order("name ASC").
		Find(&depts).Error
	return depts, err
}

func (r *departmentRepository) Update(ctx context.Context, dept *models.Department, categories []string) error {
	if categories != nil {
		categories = NormalizeCategories(categories)
	}
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := ensureNameFree(tx, dept.Name, dept.ID); err != nil {
			return err
		}
		if categories != nil {
			if err := ensureCategoriesFree(tx, categories, dept.ID); err != nil {
				return err
			}
		}
		if err := tx.Omit("Categories", "Staff").Save(dept).Error; err != nil {
			if isUniqueViolation(err) {
				return apperr.Conflict("Department with this name already exists")
			}
			return err
		}
		if categories == nil {
			return nil
		}
		if err := tx.Where("department_id = ?", dept.ID).Delete(&models.DepartmentCategory{}).Error; err != nil {
			return err
		}
		return replaceCategories(tx, dept, categories)
	})
}

func (r *departmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Department{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound(departmentNotFound)
		}
		return tx.Where("department_id = ?", id).Delete(&models.DepartmentCategory{}).Error
	})
}

func (r *departmentRepository) ListCategories(ctx context.Context) ([]string, error) {
	var names []string
	err := conn(ctx, r.db).
		Model(&models.DepartmentCategory{}).
		Order("name ASC").
		Pluck("name", &names).Error
	return names, err
}

func ensureNameFree(tx *gorm.DB, name string, self uuid.UUID) error {
	var count int64
	q := tx.Model(&models.Department{}).Where("name = ?", name)
	if self != uuid.Nil {
		q = q.Where("id <> ?", self)
	}
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return apperr.Conflict("Department with this name already exists")
	}
	return nil
}

// ensureCategoriesFree rejects categories already routed to another
// department, so routing never has to pick between two owners.
func ensureCategoriesFree(tx *gorm.DB, categories []string, self uuid.UUID) error {
	if len(categories) == 0 {
		return nil
	}
	var taken []string
	q := tx.Model(&models.DepartmentCategory{}).Where("name IN ?", categories)
	if self != uuid.Nil {
		q = q.Where("department_id <> ?", self)
	}
	if err := q.Pluck("name", &taken).Error; err != nil {
		return err
	}
	if len(taken) > 0 {
		return apperr.Conflict(fmt.Sprintf("Categories already belong to another department: %s", strings.Join(taken, ", ")))
	}
	return nil
}

func replaceCategories(tx *gorm.DB, dept *models.Department, categories []string) error {
	dept.Categories = make([]models.DepartmentCategory, 0, len(categories))
	for _, name := range categories {
		dept.Categories = append(dept.Categories, models.DepartmentCategory{DepartmentID: dept.ID, Name: name})
	}
	if len(dept.Categories) == 0 {
		return nil
	}
	if err := tx.Create(&dept.Categories).Error; err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("Category already belongs to another department")
		}
		return err
	}
	return nil
}

// NormalizeCategories trims entries and drops blanks and duplicates, keeping
// first-seen order.
func NormalizeCategories(categories []string) []string {
	seen := make(map[string]struct{}, len(categories))
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
