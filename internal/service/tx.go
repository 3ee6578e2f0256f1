package service

import (
	"context"

	"github.com/henrib/lumen/internal/domain"
)

// ChunkWriter is the write surface of the knowledge store used inside
// transactions. All multi-row chunk writes are all-or-nothing.
type ChunkWriter interface {
	Insert(ctx context.Context, chunk *domain.KnowledgeChunk) error
	DeleteBySourceType(ctx context.Context, sourceType domain.SourceType) error
	DeleteBySource(ctx context.Context, sourceType domain.SourceType, sourceID int64) error
}

// EntryWriter persists log entries inside a transaction.
type EntryWriter interface {
	Create(ctx context.Context, entry *domain.LogEntry) error
}

// TxRepositories provides transaction-bound repositories.
type TxRepositories interface {
	Chunks() ChunkWriter
	Entries() EntryWriter
}

// TxRunner executes a function within a transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
