package service

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/henrib/lumen/internal/domain"
)

// EntryStore is the learning entry persistence surface the portfolio
// service needs.
type EntryStore interface {
	Create(ctx context.Context, entry *domain.LogEntry) error
	ListPublic(ctx context.Context, limit int) ([]domain.LogEntry, error)
	ListAll(ctx context.Context) ([]domain.LogEntry, error)
	Count(ctx context.Context) (int, error)
	CountPublic(ctx context.Context) (int, error)
}

// DocumentStore persists uploaded documents.
type DocumentStore interface {
	Create(ctx context.Context, doc *domain.Document) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Document, error)
	ListAll(ctx context.Context) ([]domain.Document, error)
	Delete(ctx context.Context, id int64) error
}

// ChunkIndex exposes index size by source type and cleanup of chunks
// belonging to a removed source row.
type ChunkIndex interface {
	CountBySourceType(ctx context.Context) (map[domain.SourceType]int, error)
	DeleteBySource(ctx context.Context, sourceType domain.SourceType, sourceID int64) error
}

// BlobStore stores raw document bodies outside the database.
type BlobStore interface {
	Put(ctx context.Context, key string, contentType string, body []byte) error
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
	DeleteObject(ctx context.Context, key string) error
}

// ProgressStats is the public learning progress summary.
type ProgressStats struct {
	Sections      int                       `json:"sections"`
	Items         int                       `json:"items"`
	ActiveItems   int                       `json:"active_items"`
	CompletionPct float64                   `json:"completion_pct"`
	Entries       int                       `json:"entries"`
	PublicEntries int                       `json:"public_entries"`
	IndexedChunks map[domain.SourceType]int `json:"indexed_chunks"`
}

// PortfolioService serves the roadmap, entries and documents surface.
type PortfolioService struct {
	roadmap   RoadmapReader
	entries   EntryStore
	documents DocumentStore
	chunks    ChunkIndex
	blobs     BlobStore
}

// NewPortfolioService creates a PortfolioService. blobs may be nil when no
// object storage is configured; document bodies are then stored in the
// database only.
func NewPortfolioService(roadmap RoadmapReader, entries EntryStore, documents DocumentStore, chunks ChunkIndex, blobs BlobStore) *PortfolioService {
	return &PortfolioService{roadmap: roadmap, entries: entries, documents: documents, chunks: chunks, blobs: blobs}
}

// ListSections returns the full roadmap ordered by section and item order.
func (s *PortfolioService) ListSections(ctx context.Context) ([]*domain.RoadmapSection, error) {
	sections, err := s.roadmap.ListSections(ctx)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "roadmap load failed", err)
	}
	return sections, nil
}

// ListEntries returns entries newest first. Public callers only see
// entries marked public.
func (s *PortfolioService) ListEntries(ctx context.Context, includePrivate bool, limit int) ([]domain.LogEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var (
		entries []domain.LogEntry
		err     error
	)
	if includePrivate {
		entries, err = s.entries.ListAll(ctx)
		if err == nil && len(entries) > limit {
			entries = entries[:limit]
		}
	} else {
		entries, err = s.entries.ListPublic(ctx, limit)
	}
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "entry list failed", err)
	}
	return entries, nil
}

// CreateEntry validates and stores a learning entry.
func (s *PortfolioService) CreateEntry(ctx context.Context, entry *domain.LogEntry) (int64, error) {
	if err := entry.Validate(); err != nil {
		return 0, err
	}
	if err := s.entries.Create(ctx, entry); err != nil {
		return 0, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "entry creation failed", err)
	}
	return entry.ID, nil
}

// CreateDocument stores a document. The body is mirrored to object storage
// when configured; a blob failure is logged but does not fail the upload.
func (s *PortfolioService) CreateDocument(ctx context.Context, doc *domain.Document) (int64, error) {
	if doc.Title == "" {
		return 0, domain.ErrMissingTitle
	}
	if doc.Body == "" {
		return 0, domain.ErrMissingContent
	}

	if s.blobs != nil && doc.StorageKey == "" {
		doc.StorageKey = DocumentStorageKey(doc.Title)
	}

	id, err := s.documents.Create(ctx, doc)
	if err != nil {
		return 0, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "document creation failed", err)
	}
	doc.ID = id

	if s.blobs != nil && doc.StorageKey != "" {
		if err := s.blobs.Put(ctx, doc.StorageKey, "text/plain; charset=utf-8", []byte(doc.Body)); err != nil {
			log.Printf("portfolio: blob upload failed for document %d (%s): %v", id, doc.StorageKey, err)
		}
	}
	return id, nil
}

// DocumentDownloadURL returns a presigned URL for a document body stored in
// object storage.
func (s *PortfolioService) DocumentDownloadURL(ctx context.Context, id int64) (string, error) {
	doc, err := s.documents.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if s.blobs == nil || doc.StorageKey == "" {
		return "", domain.NewDomainError(domain.ErrCodeInvalidOperation, "document has no stored file")
	}

	url, err := s.blobs.GenerateDownloadURL(ctx, doc.StorageKey)
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "download url generation failed", err)
	}
	return url, nil
}

// DeleteDocument removes a document, its index chunks and its stored blob.
// Blob removal failures are logged but do not fail the delete.
func (s *PortfolioService) DeleteDocument(ctx context.Context, id int64) error {
	doc, err := s.documents.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.documents.Delete(ctx, id); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "document delete failed", err)
	}
	if s.chunks != nil {
		if err := s.chunks.DeleteBySource(ctx, domain.SourceDocument, id); err != nil {
			return domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "chunk cleanup failed", err)
		}
	}
	if s.blobs != nil && doc.StorageKey != "" {
		if err := s.blobs.DeleteObject(ctx, doc.StorageKey); err != nil {
			log.Printf("portfolio: blob delete failed for document %d (%s): %v", id, doc.StorageKey, err)
		}
	}
	return nil
}

// Progress computes the public learning progress summary.
func (s *PortfolioService) Progress(ctx context.Context) (*ProgressStats, error) {
	sections, err := s.roadmap.ListSections(ctx)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "roadmap load failed", err)
	}

	stats := &ProgressStats{Sections: len(sections)}
	for _, section := range sections {
		stats.Items += len(section.Items)
		for _, item := range section.Items {
			if item.IsActive {
				stats.ActiveItems++
			}
		}
	}
	if stats.Items > 0 {
		stats.CompletionPct = float64(stats.Items-stats.ActiveItems) / float64(stats.Items) * 100
	}

	if stats.Entries, err = s.entries.Count(ctx); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "entry count failed", err)
	}
	if stats.PublicEntries, err = s.entries.CountPublic(ctx); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "entry count failed", err)
	}
	if s.chunks != nil {
		if stats.IndexedChunks, err = s.chunks.CountBySourceType(ctx); err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "chunk count failed", err)
		}
	}
	return stats, nil
}

// DocumentStorageKey builds the object key for an uploaded document body.
func DocumentStorageKey(title string) string {
	return fmt.Sprintf("documents/%s-%s.txt", uuid.NewString()[:8], slugify(title))
}

func slugify(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r == ' ' || r == '-' || r == '_':
			out = append(out, '-')
		}
	}
	if len(out) > 60 {
		out = out[:60]
	}
	return string(out)
}
