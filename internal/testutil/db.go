// Package testutil builds in-memory databases and fixtures for package tests.
package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/civicdesk/backend/internal/database"
	"github.com/civicdesk/backend/internal/models"
)

// NewDB opens a private in-memory SQLite database with the full schema. A
// single connection keeps every query on the same in-memory database.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	cfg := database.GormConfig()
	cfg.Logger = gormlogger.Default.LogMode(gormlogger.Silent)

	db, err := gorm.Open(sqlite.Open(":memory:"), cfg)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// CreateDepartment inserts a department owning categories.
func CreateDepartment(t testing.TB, db *gorm.DB, name string, categories ...string) *models.Department {
	t.Helper()

	dept := &models.Department{Name: name, Description: name + " department"}
	for _, c := range categories {
		dept.Categories = append(dept.Categories, models.DepartmentCategory{Name: c})
	}
	require.NoError(t, db.Create(dept).Error)
	return dept
}

// CreateUser inserts a user with default notification preferences.
func CreateUser(t testing.TB, db *gorm.DB, role models.Role, departmentID *uuid.UUID) *models.User {
	t.Helper()

	id := uuid.New()
	user := &models.User{
		ID:                      id,
		Name:                    string(role) + "-" + id.String()[:6],
		Email:                   id.String()[:8] + "@example.com",
		Password:                "x",
		Role:                    role,
		DepartmentID:            departmentID,
		NotificationPreferences: models.DefaultNotificationPreferences(),
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func CountRows(t testing.TB, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()

	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}
