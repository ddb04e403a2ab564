package main

import (
	"log"
	"net/http"
	"time"

	"gallery-service/internal/chain"
	"gallery-service/internal/config"
	"gallery-service/internal/handlers"
	"gallery-service/internal/live"
	"gallery-service/internal/models"
	"gallery-service/internal/repository"
	"gallery-service/internal/services"
	"gallery-service/internal/services/caches"
	"gallery-service/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/minio/minio-go/v7"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

const holdingsCacheBytes = 64 << 20

func main() {
	cfg := InitConfig()
	db := ConnectDatabase(cfg)
	MigrateDatabase(db)
	minioClient := InitMinIOClient(cfg)

	chainClient := chain.NewClient(chain.Options{
		URL:        cfg.ChainRPCURL,
		PackageID:  cfg.GalleryPackage,
		Timeout:    cfg.ChainTimeout,
		MaxRetries: cfg.ChainMaxRetries,
	})

	holdingsCache := caches.NewMemoryCache(holdingsCacheBytes, cfg.HoldingsCacheTTL)
	defer holdingsCache.Close()
	holdingsService := services.NewHoldingsService(chainClient, holdingsCache)
	sceneManager := services.NewSceneManager(chainClient, chainClient.PackageID(), nil)

	snapshotRepo := repository.NewSnapshotRepository(db)
	snapshotService, err := services.NewSnapshotService(snapshotRepo, storage.NewBlobStore(minioClient, cfg.MinioBucket))
	if err != nil {
		log.Fatalf("Snapshot service initialization failed: %v", err)
	}

	// Live viewers connect on their own listener
	hub := live.NewHub()
	liveServer := live.NewServer(hub, sceneManager, &services.ViewerScene{Manager: sceneManager, Holdings: holdingsService})
	go StartLiveServer(cfg, liveServer)

	app := fiber.New(fiber.Config{
		BodyLimit: int(cfg.MaxImportSize) + 1<<20,
	})

	//Register Prometheus metrics endpoint
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	sceneHandler := handlers.NewSceneHandler(sceneManager, holdingsService, snapshotService, hub, cfg.MaxImportSize)
	cacheHandler := handlers.NewCacheHandler(holdingsService)
	api := app.Group("/api/gallery")
	handlers.RegisterRoutes(api, sceneHandler, cacheHandler)

	api.Get("/swagger/*", swagger.HandlerDefault)

	// Add Health check endpoint
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	routes := app.GetRoutes()
	log.Println("Registered routes:")
	for _, r := range routes {
		log.Printf("  %s %s\n", r.Method, r.Path)
	}

	// Start the Fiber server
	port := cfg.AppPort
	if port == "" {
		port = "8080"
		log.Printf("Defaulting to port %s", port)
	}
	log.Printf("Server listening on port %s", port)
	log.Fatal(app.Listen(":" + port))
}

func InitConfig() *config.Config {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	return cfg
}

func ConnectDatabase(cfg *config.Config) *gorm.DB {
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	return db
}

func MigrateDatabase(db *gorm.DB) {
	err := db.AutoMigrate(&models.SceneSnapshot{})
	if err != nil {
		log.Fatalf("Database migration failed: %v", err)
	}
}

func InitMinIOClient(cfg *config.Config) *minio.Client {
	minioClient, err := storage.NewMinioClient(cfg)
	if err != nil {
		log.Fatalf("MinIO client initialization failed: %v", err)
	}
	return minioClient
}

func StartLiveServer(cfg *config.Config, server *live.Server) {
	mux := http.NewServeMux()
	mux.HandleFunc("/live", server.Handler())
	srv := &http.Server{
		Addr:              ":" + cfg.LivePort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("Live server listening on port %s", cfg.LivePort)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("Live server failed: %v", err)
	}
}
