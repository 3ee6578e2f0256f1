package admin

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/henrib/lumen/internal/config"
	"github.com/henrib/lumen/internal/domain"
	"github.com/henrib/lumen/internal/repository"
)

// SeedCmd returns the seed command
func SeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the default learning roadmap",
		Long:  "Insert the default roadmap sections and items; does nothing if a roadmap already exists",
		RunE:  runSeed,
	}
}

type seedSection struct {
	title       string
	description string
	items       []seedItem
}

type seedItem struct {
	title       string
	description string
	active      bool
}

var defaultRoadmap = []seedSection{
	{
		title:       "AI Fundamentals",
		description: "Core concepts behind modern machine learning systems.",
		items: []seedItem{
			{title: "Neural Networks Basics", description: "Perceptrons, activation functions, backpropagation and gradient descent.", active: true},
			{title: "Transformers and Attention", description: "Self-attention, positional encoding, encoder and decoder stacks."},
			{title: "Evaluation and Metrics", description: "Precision, recall, perplexity and benchmark design."},
		},
	},
	{
		title:       "RAG Systems",
		description: "Retrieval augmented generation from chunking to grounded answers.",
		items: []seedItem{
			{title: "Embeddings and Vector Search", description: "Embedding models, cosine similarity, pgvector and HNSW indexes.", active: true},
			{title: "Chunking Strategies", description: "Fixed windows, overlap, semantic splitting and metadata enrichment.", active: true},
			{title: "Grounded Generation", description: "Context assembly, prompt design, hallucination control and confidence reporting."},
		},
	},
	{
		title:       "Agents and MCP",
		description: "Tool-using agents, orchestration and automation workflows.",
		items: []seedItem{
			{title: "Agent Tooling", description: "Tool schemas, function calling and agent orchestration loops."},
			{title: "Webhook Automation", description: "Event-driven pipelines that turn activity streams into structured records.", active: true},
		},
	},
	{
		title:       "Production AI Engineering",
		description: "Shipping and operating AI systems.",
		items: []seedItem{
			{title: "Observability for LLM Apps", description: "Tracing, error capture and retrieval diagnostics."},
			{title: "Cost and Latency Tuning", description: "Rate limits, caching, batching and model selection."},
		},
	},
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	repo := repository.NewRoadmapRepository(pool)

	count, err := repo.CountSections(ctx)
	if err != nil {
		return fmt.Errorf("failed to check existing roadmap: %w", err)
	}
	if count > 0 {
		log.Printf("seed: roadmap already has %d sections, nothing to do", count)
		return nil
	}

	for i, ss := range defaultRoadmap {
		section := domain.RoadmapSection{
			Title:       ss.title,
			Description: ss.description,
			Order:       i + 1,
		}
		if err := repo.CreateSection(ctx, &section); err != nil {
			return fmt.Errorf("failed to create section %q: %w", ss.title, err)
		}
		for j, si := range ss.items {
			item := domain.RoadmapItem{
				SectionID:   section.ID,
				Title:       si.title,
				Description: si.description,
				Order:       j + 1,
				IsActive:    si.active,
			}
			if err := repo.CreateItem(ctx, &item); err != nil {
				return fmt.Errorf("failed to create item %q: %w", si.title, err)
			}
		}
		log.Printf("seed: created section %d. %s (%d items)", section.Order, section.Title, len(ss.items))
	}

	log.Printf("seed: roadmap created with %d sections", len(defaultRoadmap))
	return nil
}
