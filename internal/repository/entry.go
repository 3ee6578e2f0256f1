package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/henrib/lumen/internal/domain"
)

// EntryRepository persists learning log entries.
type EntryRepository struct {
	db dbtx
}

func NewEntryRepository(pool *pgxpool.Pool) *EntryRepository {
	return &EntryRepository{db: pool}
}

func NewEntryRepositoryWithTx(tx dbtx) *EntryRepository {
	return &EntryRepository{db: tx}
}

func (r *EntryRepository) Create(ctx context.Context, e *domain.LogEntry) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO log_entries (title, content, is_public, roadmap_item_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		e.Title, e.Content, e.IsPublic, nullableInt64(e.RoadmapItemID),
	).Scan(&e.ID, &e.CreatedAt)
}

func (r *EntryRepository) GetByID(ctx context.Context, id int64) (*domain.LogEntry, error) {
	var e domain.LogEntry
	err := r.db.QueryRow(ctx,
		`SELECT id, title, content, is_public, roadmap_item_id, created_at
		 FROM log_entries WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.Title, &e.Content, &e.IsPublic, &e.RoadmapItemID, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLogEntryNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *EntryRepository) ListPublic(ctx context.Context, limit int) ([]domain.LogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, title, content, is_public, roadmap_item_id, created_at
		 FROM log_entries WHERE is_public ORDER BY created_at DESC, id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntryRows(rows)
}

func (r *EntryRepository) ListAll(ctx context.Context) ([]domain.LogEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, title, content, is_public, roadmap_item_id, created_at
		 FROM log_entries ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntryRows(rows)
}

// ListUnindexed returns entries that have no chunks in the knowledge index.
func (r *EntryRepository) ListUnindexed(ctx context.Context, limit int) ([]domain.LogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(ctx,
		`SELECT e.id, e.title, e.content, e.is_public, e.roadmap_item_id, e.created_at
		 FROM log_entries e
		 WHERE NOT EXISTS (
		     SELECT 1 FROM knowledge_chunks c
		     WHERE c.source_type = 'learning_entry' AND c.source_id = e.id
		 )
		 ORDER BY e.id ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntryRows(rows)
}

// ContainsMarker reports whether any entry content contains the given
// marker string. Used for webhook delivery deduplication.
func (r *EntryRepository) ContainsMarker(ctx context.Context, marker string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM log_entries WHERE content LIKE '%' || $1 || '%')`,
		marker,
	).Scan(&exists)
	return exists, err
}

func (r *EntryRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM log_entries`).Scan(&count)
	return count, err
}

func (r *EntryRepository) CountPublic(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM log_entries WHERE is_public`).Scan(&count)
	return count, err
}

func scanEntryRows(rows pgx.Rows) ([]domain.LogEntry, error) {
	var entries []domain.LogEntry
	for rows.Next() {
		var e domain.LogEntry
		if err := rows.Scan(&e.ID, &e.Title, &e.Content, &e.IsPublic, &e.RoadmapItemID, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
