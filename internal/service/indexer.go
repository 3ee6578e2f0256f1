package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/henrib/lumen/internal/domain"
)

// EntryLister lists all stored learning entries for indexing.
type EntryLister interface {
	ListAll(ctx context.Context) ([]domain.LogEntry, error)
}

// DocumentLister lists all stored documents for indexing.
type DocumentLister interface {
	ListAll(ctx context.Context) ([]domain.Document, error)
}

// SiteContentSource provides the static pages that describe the portfolio
// itself.
type SiteContentSource interface {
	Pages() []domain.SitePage
}

// IndexReport summarizes one indexing run.
type IndexReport struct {
	Indexed       map[domain.SourceType]int `json:"indexed"`
	SkippedChunks int                       `json:"skipped_chunks"`
}

// Total returns the number of chunks written across all source types.
func (r *IndexReport) Total() int {
	total := 0
	for _, n := range r.Indexed {
		total += n
	}
	return total
}

// IndexBuilder chunks, embeds and stores all knowledge sources.
type IndexBuilder struct {
	embedder  Embedder
	tx        TxRunner
	roadmap   RoadmapReader
	entries   EntryLister
	documents DocumentLister
	site      SiteContentSource
	chunkCfg  ChunkConfig
}

// NewIndexBuilder creates an IndexBuilder. documents and site may be nil
// when those sources are not configured.
func NewIndexBuilder(embedder Embedder, tx TxRunner, roadmap RoadmapReader, entries EntryLister, documents DocumentLister, site SiteContentSource, chunkCfg ChunkConfig) *IndexBuilder {
	if chunkCfg.MaxChars <= 0 {
		chunkCfg = DefaultChunkConfig()
	}
	return &IndexBuilder{
		embedder:  embedder,
		tx:        tx,
		roadmap:   roadmap,
		entries:   entries,
		documents: documents,
		site:      site,
		chunkCfg:  chunkCfg,
	}
}

// Reindex rebuilds the knowledge index from scratch. Each source type is
// swapped inside its own transaction, so a failure partway leaves earlier
// source types fully rebuilt and later ones untouched. Embedding happens
// before the transaction opens.
func (b *IndexBuilder) Reindex(ctx context.Context) (*IndexReport, error) {
	report := &IndexReport{Indexed: make(map[domain.SourceType]int)}

	for _, st := range []domain.SourceType{
		domain.SourceRoadmapItem,
		domain.SourceLearningEntry,
		domain.SourceSiteContent,
		domain.SourceDocument,
	} {
		chunks, err := b.buildSource(ctx, st, report)
		if err != nil {
			return nil, err
		}
		if err := b.swapSource(ctx, st, chunks); err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError,
				fmt.Sprintf("index swap failed for %s", st), err)
		}
		report.Indexed[st] = len(chunks)
		log.Printf("indexer: %s rebuilt with %d chunks", st, len(chunks))
	}

	return report, nil
}

func (b *IndexBuilder) buildSource(ctx context.Context, st domain.SourceType, report *IndexReport) ([]domain.KnowledgeChunk, error) {
	switch st {
	case domain.SourceRoadmapItem:
		return b.buildRoadmapChunks(ctx, report)
	case domain.SourceLearningEntry:
		return b.buildEntryChunks(ctx, report)
	case domain.SourceSiteContent:
		return b.buildSiteChunks(ctx, report), nil
	case domain.SourceDocument:
		return b.buildDocumentChunks(ctx, report)
	}
	return nil, domain.ErrInvalidSourceType
}

func (b *IndexBuilder) buildRoadmapChunks(ctx context.Context, report *IndexReport) ([]domain.KnowledgeChunk, error) {
	sections, err := b.roadmap.ListSections(ctx)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "roadmap load failed", err)
	}

	var chunks []domain.KnowledgeChunk
	for _, section := range sections {
		for _, item := range section.Items {
			text := item.Title
			if item.Description != "" {
				text += "\n\n" + item.Description
			}
			itemID := item.ID
			chunks = append(chunks, b.embedChunks(ctx, report, domain.KnowledgeChunk{
				SourceType:   domain.SourceRoadmapItem,
				SourceID:     &itemID,
				Title:        item.Title,
				SectionTitle: section.Title,
				ItemTitle:    item.Title,
				Tags:         roadmapTags(section, item),
			}, text)...)
		}
	}
	return chunks, nil
}

func (b *IndexBuilder) buildEntryChunks(ctx context.Context, report *IndexReport) ([]domain.KnowledgeChunk, error) {
	entries, err := b.entries.ListAll(ctx)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "entry load failed", err)
	}

	var chunks []domain.KnowledgeChunk
	for _, entry := range entries {
		chunks = append(chunks, b.entryChunks(ctx, report, entry)...)
	}
	return chunks, nil
}

func (b *IndexBuilder) entryChunks(ctx context.Context, report *IndexReport, entry domain.LogEntry) []domain.KnowledgeChunk {
	entryID := entry.ID
	return b.embedChunks(ctx, report, domain.KnowledgeChunk{
		SourceType: domain.SourceLearningEntry,
		SourceID:   &entryID,
		Title:      entry.Title,
	}, entry.Content)
}

func (b *IndexBuilder) buildSiteChunks(ctx context.Context, report *IndexReport) []domain.KnowledgeChunk {
	if b.site == nil {
		return nil
	}
	var chunks []domain.KnowledgeChunk
	for _, page := range b.site.Pages() {
		chunks = append(chunks, b.embedChunks(ctx, report, domain.KnowledgeChunk{
			SourceType: domain.SourceSiteContent,
			Title:      page.Title,
			Tags:       page.Slug,
		}, page.Body)...)
	}
	return chunks
}

func (b *IndexBuilder) buildDocumentChunks(ctx context.Context, report *IndexReport) ([]domain.KnowledgeChunk, error) {
	if b.documents == nil {
		return nil, nil
	}
	docs, err := b.documents.ListAll(ctx)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "document load failed", err)
	}

	var chunks []domain.KnowledgeChunk
	for _, doc := range docs {
		chunks = append(chunks, b.documentChunks(ctx, report, doc)...)
	}
	return chunks, nil
}

func (b *IndexBuilder) documentChunks(ctx context.Context, report *IndexReport, doc domain.Document) []domain.KnowledgeChunk {
	docID := doc.ID
	return b.embedChunks(ctx, report, domain.KnowledgeChunk{
		SourceType: domain.SourceDocument,
		SourceID:   &docID,
		Title:      doc.Title,
	}, doc.Body)
}

// embedChunks splits text, embeds each piece in document mode and returns
// chunks ready for storage. Pieces whose embedding fails are skipped and
// counted rather than aborting the run.
func (b *IndexBuilder) embedChunks(ctx context.Context, report *IndexReport, template domain.KnowledgeChunk, text string) []domain.KnowledgeChunk {
	pieces := chunkWithConfig(text, b.chunkCfg)
	chunks := make([]domain.KnowledgeChunk, 0, len(pieces))
	for _, piece := range pieces {
		embedText := piece
		if template.Title != "" {
			embedText = template.Title + "\n\n" + piece
		}
		vec, err := b.embedder.EmbedDocument(ctx, embedText)
		if err != nil {
			log.Printf("indexer: embedding failed for %s %q, skipping chunk: %v", template.SourceType, template.Title, err)
			report.SkippedChunks++
			continue
		}
		chunk := template
		chunk.Content = piece
		chunk.Vector = vec
		chunks = append(chunks, chunk)
	}
	return chunks
}

func (b *IndexBuilder) swapSource(ctx context.Context, st domain.SourceType, chunks []domain.KnowledgeChunk) error {
	return b.tx.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Chunks().DeleteBySourceType(ctx, st); err != nil {
			return err
		}
		for i := range chunks {
			if err := repos.Chunks().Insert(ctx, &chunks[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// IndexEntry refreshes the chunks for a single learning entry.
func (b *IndexBuilder) IndexEntry(ctx context.Context, entry domain.LogEntry) (int, error) {
	report := &IndexReport{Indexed: make(map[domain.SourceType]int)}
	chunks := b.entryChunks(ctx, report, entry)
	if err := b.swapOne(ctx, domain.SourceLearningEntry, entry.ID, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// IndexDocument refreshes the chunks for a single document.
func (b *IndexBuilder) IndexDocument(ctx context.Context, doc domain.Document) (int, error) {
	report := &IndexReport{Indexed: make(map[domain.SourceType]int)}
	chunks := b.documentChunks(ctx, report, doc)
	if err := b.swapOne(ctx, domain.SourceDocument, doc.ID, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

func (b *IndexBuilder) swapOne(ctx context.Context, st domain.SourceType, sourceID int64, chunks []domain.KnowledgeChunk) error {
	return b.tx.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Chunks().DeleteBySource(ctx, st, sourceID); err != nil {
			return err
		}
		for i := range chunks {
			if err := repos.Chunks().Insert(ctx, &chunks[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func roadmapTags(section *domain.RoadmapSection, item *domain.RoadmapItem) string {
	tags := []string{strings.ToLower(section.Title)}
	if item.IsActive {
		tags = append(tags, "active")
	}
	return strings.Join(tags, ",")
}
