package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/spf13/cobra"

	"github.com/civicdesk/backend/internal/access"
	"github.com/civicdesk/backend/internal/config"
	"github.com/civicdesk/backend/internal/database"
	"github.com/civicdesk/backend/internal/handlers"
	"github.com/civicdesk/backend/internal/logger"
	"github.com/civicdesk/backend/internal/middleware"
	"github.com/civicdesk/backend/internal/repository"
	"github.com/civicdesk/backend/internal/services"
	"github.com/civicdesk/backend/internal/storage"
	"github.com/civicdesk/backend/pkg/utils"
)

var serveOpts struct {
	seed        bool
	skipMigrate bool
	noAudit     bool
}

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and background workers",
		RunE:  runServe,
	}
	addServeFlags(cmd)
	return cmd
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&serveOpts.seed, "seed", true, "seed default departments and the first admin on startup")
	cmd.Flags().BoolVar(&serveOpts.skipMigrate, "skip-migrate", false, "do not run migrations on startup")
	cmd.Flags().BoolVar(&serveOpts.noAudit, "no-audit", false, "disable the action log")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	log := logger.Init(&cfg.Logger)

	db, err := database.Connect(&cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if !serveOpts.skipMigrate {
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	if serveOpts.seed {
		if err := database.Seed(db, &cfg.Seed); err != nil {
			log.Warn("failed to seed database", "error", err)
		}
	}

	redisClient, err := database.ConnectRedis(&cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	sessionStore := database.NewSessionStore(redisClient)

	pingers := map[string]func(context.Context) error{
		"redis": sessionStore.Ping,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var attachments services.AttachmentStore
	minioStorage, err := storage.NewMinIOStorage(ctx, &cfg.MinIO)
	if err != nil {
		log.Warn("attachment storage unavailable, uploads disabled", "error", err)
	} else {
		attachments = minioStorage
		pingers["minio"] = minioStorage.Ping
	}

	jwtManager := utils.NewJWTManager(cfg.JWT.Secret, cfg.JWT.ExpireHour)
	content := services.NewContentPolicy()

	// Initialize repositories
	tx := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	complaintRepo := repository.NewComplaintRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)

	// Notification pipeline
	email := services.NewEmailService(
		services.NewMailer(&cfg.SMTP),
		repository.NewNotificationLogRepository(db),
		content,
		cfg.Notification.PortalBaseURL,
	)
	fanout := services.NewNotificationFanout(complaintRepo, announcementRepo, userRepo, notificationRepo, email)
	dispatcher := services.NewOutboxDispatcher(outboxRepo, fanout, &cfg.Notification)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	// Initialize services
	archiveService := services.NewArchiveService(repository.NewResolvedComplaintRepository(db))
	complaintService := services.NewComplaintService(tx, complaintRepo, departmentRepo, outboxRepo, archiveService, dispatcher, attachments, content)
	departmentService := services.NewDepartmentService(departmentRepo, userRepo)
	userService := services.NewUserService(userRepo, departmentRepo, jwtManager, sessionStore)
	announcementService := services.NewAnnouncementService(tx, announcementRepo, departmentRepo, outboxRepo, dispatcher, content)
	notificationService := services.NewNotificationService(notificationRepo)
	enquiryService := services.NewEnquiryService(repository.NewEnquiryRepository(db), content)
	actionLogService := services.NewActionLogService(repository.NewActionLogRepository(db))

	maintenance := services.NewMaintenance(announcementService, actionLogService, cfg.Notification.ExpirySweep, cfg.Logger.AuditRetentionDays)
	if err := maintenance.Start(); err != nil {
		return fmt.Errorf("failed to schedule maintenance: %w", err)
	}
	defer maintenance.Stop()

	// Initialize middleware
	enforcer, err := access.NewEnforcer()
	if err != nil {
		return fmt.Errorf("failed to load access policy: %w", err)
	}
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, sessionStore, userRepo, enforcer)
	audit := middleware.ActionLogger(middleware.ActionLoggerConfig{
		Enabled:     !serveOpts.noAudit,
		SkipMethods: []string{fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions},
		LogService:  actionLogService,
	})

	app := fiber.New(fiber.Config{
		AppName:      "Civic Desk Backend",
		ErrorHandler: handlers.ErrorHandler,
		BodyLimit:    cfg.Server.BodyLimitMB * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path} ${locals:requestid}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowOrigins,
		AllowMethods: "GET,POST,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	handlers.RegisterRoutes(app, &handlers.Handlers{
		Health:        handlers.NewHealthHandler(db, pingers),
		Users:         handlers.NewUserHandler(userService, jwtManager),
		Complaints:    handlers.NewComplaintHandler(complaintService),
		Departments:   handlers.NewDepartmentHandler(departmentService),
		Announcements: handlers.NewAnnouncementHandler(announcementService),
		Enquiries:     handlers.NewEnquiryHandler(enquiryService),
		Notifications: handlers.NewNotificationHandler(notificationService),
		ActionLogs:    handlers.NewActionLogHandler(actionLogService),
	}, authMiddleware, audit)

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
		log.Info("server starting", "addr", addr, "env", cfg.Server.Env)
		errCh <- app.Listen(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server stopped: %w", err)
	case <-quit:
	}

	log.Info("shutting down server")
	if err := app.Shutdown(); err != nil {
		log.Error("error during shutdown", "error", err)
	}
	log.Info("server stopped")
	return nil
}
