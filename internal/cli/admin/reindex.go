package admin

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/henrib/lumen/internal/config"
	"github.com/henrib/lumen/internal/provider"
	"github.com/henrib/lumen/internal/repository"
	"github.com/henrib/lumen/internal/service"
)

// ReindexCmd returns the reindex command
func ReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the knowledge index",
		Long:  "Rebuild all knowledge chunks from the roadmap, log entries, site content and documents",
		RunE:  runReindex,
	}
}

func runReindex(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasEmbedding() {
		return fmt.Errorf("reindex requires an embedding provider: set LUMEN_EMBEDDING_API_KEY")
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	providerClient := provider.NewClient(provider.Config{
		EmbeddingAPIKey:  cfg.EmbeddingAPIKey,
		EmbeddingBaseURL: cfg.EmbeddingBaseURL,
		EmbeddingModel:   cfg.EmbeddingModel,
		Dimensions:       cfg.EmbeddingDimensions,
		RequestsPerSec:   cfg.EmbeddingRPS,
		EmbeddingTimeout: cfg.EmbeddingTimeout,
	})

	indexer := service.NewIndexBuilder(
		providerClient,
		repository.NewTxRunner(pool),
		repository.NewRoadmapRepository(pool),
		repository.NewEntryRepository(pool),
		repository.NewDocumentRepository(pool),
		service.NewStaticSiteContent(),
		service.DefaultChunkConfig(),
	)

	report, err := indexer.Reindex(ctx)
	if err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}

	for st, n := range report.Indexed {
		log.Printf("reindex: %s: %d chunks", st, n)
	}
	log.Printf("reindex: %d chunks total, %d skipped", report.Total(), report.SkippedChunks)
	return nil
}
