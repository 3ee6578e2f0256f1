package jobs

import (
	"context"
	"log"

	"github.com/henrib/lumen/internal/domain"
)

// UnindexedSource lists rows that have not been chunked into the knowledge
// index yet.
type UnindexedSource interface {
	ListUnindexed(ctx context.Context, limit int) ([]domain.LogEntry, error)
}

// UnindexedDocumentSource is the document counterpart of UnindexedSource.
type UnindexedDocumentSource interface {
	ListUnindexed(ctx context.Context, limit int) ([]domain.Document, error)
}

// Indexer writes the chunks for a single entry or document.
type Indexer interface {
	IndexEntry(ctx context.Context, entry domain.LogEntry) (int, error)
	IndexDocument(ctx context.Context, doc domain.Document) (int, error)
}

const indexBatchSize = 20

// IndexTask incrementally indexes entries and documents that arrived since
// the last full rebuild.
type IndexTask struct {
	entries   UnindexedSource
	documents UnindexedDocumentSource
	indexer   Indexer
}

// NewIndexTask creates an IndexTask. documents may be nil.
func NewIndexTask(entries UnindexedSource, documents UnindexedDocumentSource, indexer Indexer) *IndexTask {
	return &IndexTask{entries: entries, documents: documents, indexer: indexer}
}

func (t *IndexTask) Name() string { return "index" }

// Run indexes one batch of unindexed entries and documents. Failures on
// individual rows are logged and skipped; the row is picked up again on the
// next tick.
func (t *IndexTask) Run(ctx context.Context) error {
	entries, err := t.entries.ListUnindexed(ctx, indexBatchSize)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		n, err := t.indexer.IndexEntry(ctx, entry)
		if err != nil {
			log.Printf("index task: entry %d failed: %v", entry.ID, err)
			continue
		}
		log.Printf("index task: entry %d indexed (%d chunks)", entry.ID, n)
	}

	if t.documents == nil {
		return nil
	}

	docs, err := t.documents.ListUnindexed(ctx, indexBatchSize)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		n, err := t.indexer.IndexDocument(ctx, doc)
		if err != nil {
			log.Printf("index task: document %d failed: %v", doc.ID, err)
			continue
		}
		log.Printf("index task: document %d indexed (%d chunks)", doc.ID, n)
	}
	return nil
}
