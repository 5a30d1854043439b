package main

import (
	"context"
	"log"

	"github.com/docsense/docsense/internal/config"
	"github.com/docsense/docsense/internal/handlers"
	"github.com/docsense/docsense/internal/logger"
	"github.com/docsense/docsense/internal/middleware"
	"github.com/docsense/docsense/internal/services"
	"github.com/docsense/docsense/internal/storage"
	"github.com/docsense/docsense/internal/store"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	cfg := config.Load()
	logger := logger.New(cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	db, err := store.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatalf("MongoDB connection failed: %v", err)
	}
	if err := store.EnsureIndexes(ctx, db); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}
	logger.Info("connected to MongoDB", "database", cfg.MongoDatabase)

	objects, err := storage.NewMinioStore(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	if err != nil {
		log.Fatalf("Failed to connect to MinIO: %v", err)
	}
	logger.Info("connected to MinIO", "bucket", cfg.MinioBucket)

	stores := store.NewMongoStores(db)

	authService := services.NewAuthService(stores.Users, stores.Roles,
		cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	adminService := services.NewAdminService(stores.Users, stores.Roles)
	roleService := services.NewRoleService(stores.Roles, stores.Users)
	documentService := services.NewDocumentService(stores.Documents, stores.Requests, objects)
	downloadService := services.NewDownloadService(stores.Requests, stores.Documents)

	if err := roleService.SeedSystemRoles(ctx); err != nil {
		log.Fatalf("Failed to seed system roles: %v", err)
	}
	if err := services.SeedSuperuser(ctx, stores.Users, cfg.SuperuserEmail, cfg.SuperuserPassword); err != nil {
		log.Fatalf("Failed to seed superuser: %v", err)
	}

	authHandler := handlers.NewAuthHandler(authService, cfg.RefreshTokenTTL)
	adminHandler := handlers.NewAdminHandler(adminService)
	roleHandler := handlers.NewRoleHandler(roleService)
	documentHandler := handlers.NewDocumentHandler(documentService, downloadService)
	userHandler := handlers.NewUserHandler(adminService, documentService)

	app := fiber.New(fiber.Config{
		BodyLimit: services.MaxUploadSize + 1<<20,
	})
	app.Use(fiberlogger.New())
	app.Use(cors.New())

	protected := middleware.Protected(stores.Users, cfg.JWTAccessSecret)
	adminOnly := middleware.AdminOnly()

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/refresh", authHandler.Refresh)
	auth.Post("/logout", authHandler.Logout)
	auth.Get("/me", protected, authHandler.Me)

	users := api.Group("/users", protected)
	users.Get("/docs", userHandler.MyDocuments)
	users.Put("/personalize", userHandler.Personalize)

	admin := api.Group("/admin", protected, adminOnly)
	admin.Get("/requests", adminHandler.PendingRequests)
	admin.Get("/users", adminHandler.AllUsers)
	admin.Post("/requests/:userId/approve", adminHandler.ApproveUser)
	admin.Post("/requests/:userId/reject", adminHandler.RejectUser)
	admin.Put("/users/:userId/role", adminHandler.UpdateUserRole)
	admin.Put("/users/:userId/toggle-approval", adminHandler.ToggleApproval)
	admin.Delete("/users/:userId", adminHandler.DeleteUser)

	roles := api.Group("/roles")
	roles.Get("/active", roleHandler.Active)
	roles.Get("/", protected, adminOnly, roleHandler.All)
	roles.Get("/stats", protected, adminOnly, roleHandler.Stats)
	roles.Post("/", protected, adminOnly, roleHandler.Create)
	roles.Put("/:roleId", protected, adminOnly, roleHandler.Update)
	roles.Delete("/:roleId", protected, adminOnly, roleHandler.Delete)

	documents := api.Group("/documents", protected)
	documents.Post("/upload", documentHandler.Upload)
	documents.Get("/", documentHandler.List)
	// The token already authorizes the download; route order keeps the
	// literal segments from being captured by :id.
	documents.Get("/download", documentHandler.Download)
	documents.Get("/admin/download-requests", adminOnly, documentHandler.ListRequests)
	documents.Patch("/admin/download-requests/:id", adminOnly, documentHandler.Decide)
	documents.Get("/:id", documentHandler.Get)
	documents.Get("/:id/view", documentHandler.View)
	documents.Get("/:id/download-status", documentHandler.DownloadStatus)
	documents.Post("/:id/request-download", documentHandler.RequestDownload)
	documents.Delete("/:id", documentHandler.Delete)

	logger.Info("starting server", "port", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}
