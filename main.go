package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"stone-progression-system/handlers"
	"stone-progression-system/middleware"
	"stone-progression-system/models"
	"stone-progression-system/services"
	"stone-progression-system/utils"
	"stone-progression-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // 10MB for stone icon uploads
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	// Load allowed origins from environment variable
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Session-Token, X-Service-Token, X-User-ID, X-User-Roles, X-Device-ID",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.StoneType{},
		&models.StoneProgress{},
		&models.StoneAward{},
		&models.DailySnapshot{},
		&models.UserProfile{},
		&models.Task{},
		&models.FocusSession{},
		&models.UserMirror{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	if err := utils.EnsureUploadDir(); err != nil {
		log.Fatal("failed to ensure upload dir:", err)
	}

	loreClient := services.NewLoreServiceClient(os.Getenv("LORE_SERVICE_URL"), os.Getenv("LORE_SERVICE_TOKEN"))
	if loreClient == nil {
		log.Println("⚠️  LORE_SERVICE_URL not set — stones will be granted without lore")
	}

	catalogService := services.NewCatalogService(db)
	if err := catalogService.EnsureCatalog(); err != nil {
		log.Fatal("failed to seed stone catalog:", err)
	}

	awardService := services.NewAwardService(db, loreClient)
	shardService := services.NewShardService(db, awardService)
	engine := services.NewProgressionEngine(db, shardService, awardService)
	claimService := services.NewClaimService(db, awardService)
	taskService := services.NewTaskService(db, engine)
	sessionService := services.NewSessionService(db, engine)
	leaderboardService := services.NewLeaderboardService(db)

	serviceToken := os.Getenv("PROGRESSION_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("PROGRESSION_SERVICE_TOKEN environment variable not set")
	}

	var authClient *services.AuthServiceClient
	if authServiceURL := os.Getenv("AUTH_SERVICE_URL"); authServiceURL != "" {
		authClient = services.NewAuthServiceClient(authServiceURL, serviceToken)
	} else {
		log.Println("⚠️  AUTH_SERVICE_URL not set — live award stream disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Profile mirror sync (names/avatars for the streak leaderboard)
	if syncServiceURL := os.Getenv("SYNC_SERVICE_URL"); syncServiceURL != "" {
		syncWorker := workers.NewUserSyncWorker(db, syncServiceURL, "/api/v1/public/profiles", serviceToken)
		go func() {
			log.Println("Starting User Sync Worker...")
			syncWorker.Start(ctx)
		}()
	} else {
		log.Println("⚠️  SYNC_SERVICE_URL not set — leaderboard will show anonymous entries")
	}

	// Lore backfill: retries awards that committed without flavor text
	loreWorker := workers.NewLoreBackfillWorker(db, loreClient)
	go workers.PollLorelessAwards(ctx, loreWorker, 30*time.Second)

	// Nightly streak rollover; reruns are no-ops for already rolled-over days
	engine.StartRolloverScheduler()

	// ✅ Setup routes — enforced Gateway auth + consistent /s/ prefix
	handlers.SetupProgressionRoutes(app, engine, catalogService, claimService, shardService, awardService, leaderboardService, authClient)
	handlers.SetupBoardRoutes(app, taskService, sessionService)

	app.Static("/uploads", "./uploads")

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Lore backfill polling running (every 30s)")
	log.Println("✅ End-of-day rollover scheduler running (daily 00:05 UTC)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
