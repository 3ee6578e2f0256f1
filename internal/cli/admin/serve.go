package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/henrib/lumen/internal/api/handlers"
	"github.com/henrib/lumen/internal/config"
	"github.com/henrib/lumen/internal/jobs"
	"github.com/henrib/lumen/internal/provider"
	"github.com/henrib/lumen/internal/repository"
	"github.com/henrib/lumen/internal/safety"
	"github.com/henrib/lumen/internal/server"
	"github.com/henrib/lumen/internal/service"
	"github.com/henrib/lumen/internal/storage"
	"github.com/henrib/lumen/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the lumen API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-worker", false, "Disable the background index worker")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	chunkRepo := repository.NewChunkRepository(pool)
	roadmapRepo := repository.NewRoadmapRepository(pool)
	entryRepo := repository.NewEntryRepository(pool)
	documentRepo := repository.NewDocumentRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	providerClient := provider.NewClient(provider.Config{
		EmbeddingAPIKey:   cfg.EmbeddingAPIKey,
		EmbeddingBaseURL:  cfg.EmbeddingBaseURL,
		EmbeddingModel:    cfg.EmbeddingModel,
		Dimensions:        cfg.EmbeddingDimensions,
		RequestsPerSec:    cfg.EmbeddingRPS,
		EmbeddingTimeout:  cfg.EmbeddingTimeout,
		CompletionAPIKey:  cfg.CompletionAPIKey,
		CompletionBaseURL: cfg.CompletionBaseURL,
		CompletionModel:   cfg.CompletionModel,
		CompletionTimeout: cfg.CompletionTimeout,
	})

	var blobs service.BlobStore
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		blobs = s3Client
	}

	var safetyChecker service.SafetyChecker
	if cfg.HasSafetyValidator() {
		safetyChecker = safety.NewValidator(cfg.SafetyValidatorURL, cfg.SafetyTimeout)
		log.Println("safety validator enabled")
	}

	retrievalCfg := service.DefaultRetrievalConfig()
	retrievalCfg.TopK = cfg.RetrievalTopK
	retrievalCfg.KeywordLimit = cfg.KeywordFallbackCap
	retrievalCfg.LowScore = cfg.RetrievalLowScore
	retrievalCfg.VeryLowScore = cfg.RetrievalVeryLow
	retrievalCfg.UpgradeOnKeywordHit = cfg.UpgradeOnKeywordHit

	retrieval := service.NewRetrievalEngine(providerClient, chunkRepo, roadmapRepo, retrievalCfg)
	answers := service.NewAnswerService(retrieval, providerClient, safetyChecker, service.DefaultAnswerConfig())

	site := service.NewStaticSiteContent()
	indexer := service.NewIndexBuilder(providerClient, txRunner, roadmapRepo, entryRepo, documentRepo, site, service.DefaultChunkConfig())

	matchPolicy := service.DefaultMatchPolicy()
	matchPolicy.MinScore = cfg.MatchMinScore
	matchPolicy.LLMThreshold = cfg.MatchLLMThreshold
	matcher := service.NewTaxonomyMatcher(matchPolicy)

	var ingestCompleter service.Completer
	if cfg.HasCompletion() {
		ingestCompleter = providerClient
	}
	ingest := service.NewIngestService(entryRepo, txRunner, roadmapRepo, ingestCompleter, matcher)

	portfolio := service.NewPortfolioService(roadmapRepo, entryRepo, documentRepo, chunkRepo, blobs)

	chatHandler := handlers.NewChatHandler(answers, retrieval, indexer)
	portfolioHandler := handlers.NewPortfolioHandler(portfolio, portfolio)
	automationHandler := handlers.NewAutomationHandler(ingest, cfg.GitHubWebhookSecret)

	var indexWorker *jobs.Worker
	noWorker, _ := cmd.Flags().GetBool("no-worker")
	if !noWorker && cfg.HasEmbedding() {
		task := jobs.NewIndexTask(entryRepo, documentRepo, indexer)
		indexWorker = jobs.NewWorker(task, 30*time.Second)
		go indexWorker.Start(ctx)
		log.Println("index worker started")
	}

	router := server.NewRouter(server.RouterConfig{
		APIKey:            cfg.APIKey,
		ChatHandler:       chatHandler,
		PortfolioHandler:  portfolioHandler,
		AutomationHandler: automationHandler,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if indexWorker != nil {
		indexWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func runMigrations(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
