package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/civicdesk/backend/internal/config"
	"github.com/civicdesk/backend/internal/logger"
	"github.com/civicdesk/backend/internal/models"
	"github.com/civicdesk/backend/pkg/utils"
)

// GormConfig is shared by the postgres connection and test databases.
// Foreign key constraints are not created: complaints, archive rows and
// notifications outlive the users and complaints they reference.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Warn),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	}
}

func Connect(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.Host, cfg.User, cfg.Password, cfg.DBName, cfg.Port, cfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), GormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Get().Info("database connected", "host", cfg.Host, "db", cfg.DBName)
	return db, nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Department{},
		&models.DepartmentCategory{},
		&models.User{},
		&models.Complaint{},
		&models.ComplaintStatusUpdate{},
		&models.ComplaintComment{},
		&models.ComplaintAttachment{},
		&models.ResolvedComplaint{},
		&models.Notification{},
		&models.Announcement{},
		&models.Enquiry{},
		&models.OutboxEvent{},
		&models.NotificationLog{},
		&models.ActionLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// DefaultDepartments are the routing targets created by Seed. Category strings
// are unique across departments.
var DefaultDepartments = []struct {
	Name        string
	Description string
	Categories  []string
}{
	{
		Name:        "Sanitation",
		Description: "Garbage collection, drainage and public cleanliness",
		Categories:  []string{"garbage", "drainage", "sewage", "public toilets", "sanitation"},
	},
	{
		Name:        "Roads & Infrastructure",
		Description: "Roads, footpaths, bridges and street furniture",
		Categories:  []string{"potholes", "roads", "footpaths", "bridges", "traffic signals"},
	},
	{
		Name:        "Water Supply",
		Description: "Drinking water supply, leaks and water quality",
		Categories:  []string{"water supply", "water leakage", "water quality", "water billing"},
	},
	{
		Name:        "Power & Electricity",
		Description: "Power outages, street lights and electrical hazards",
		Categories:  []string{"power outage", "street lights", "electrical hazard", "electricity billing"},
	},
	{
		Name:        "Health & Safety",
		Description: "Public health hazards, stray animals and food safety",
		Categories:  []string{"public health", "stray animals", "food safety", "mosquito control"},
	},
}

// Seed creates the default departments and the first admin. It is idempotent.
func Seed(db *gorm.DB, cfg *config.SeedConfig) error {
	log := logger.WithComponent("seed")

	for _, d := range DefaultDepartments {
		var existing models.Department
		err := db.Where("name = ?", d.Name).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to look up department %q: %w", d.Name, err)
		}

		dept := models.Department{Name: d.Name, Description: d.Description}
		for _, c := range d.Categories {
			dept.Categories = append(dept.Categories, models.DepartmentCategory{Name: c})
		}
		if err := db.Create(&dept).Error; err != nil {
			return fmt.Errorf("failed to seed department %q: %w", d.Name, err)
		}
		log.Info("department seeded", "name", d.Name, "categories", len(d.Categories))
	}

	var admins int64
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&admins).Error; err != nil {
		return fmt.Errorf("failed to count admins: %w", err)
	}
	if admins > 0 {
		return nil
	}

	hashed, err := utils.HashPassword(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}
	admin := models.User{
		Name:                    "Administrator",
		Email:                   cfg.AdminEmail,
		Password:                hashed,
		Role:                    models.RoleAdmin,
		NotificationPreferences: models.DefaultNotificationPreferences(),
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}
	log.Info("admin user seeded", "email", admin.Email)
	return nil
}

// Health reports whether each backing store answers within timeout.
func Health(ctx context.Context, db *gorm.DB, pingers map[string]func(context.Context) error, timeout time.Duration) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	status := map[string]string{"database": "up"}
	if err := Ping(ctx, db); err != nil {
		status["database"] = "down"
		slog.Warn("database ping failed", "error", err)
	}
	for name, ping := range pingers {
		status[name] = "up"
		if err := ping(ctx); err != nil {
			status[name] = "down"
			slog.Warn("health ping failed", "dependency", name, "error", err)
		}
	}
	return status
}
