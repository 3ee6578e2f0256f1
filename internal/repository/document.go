package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/henrib/lumen/internal/domain"
)

// DocumentRepository persists uploaded documents.
type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) (int64, error) {
	err := r.db.QueryRow(ctx,
		`INSERT INTO documents (title, body, storage_key)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		d.Title, d.Body, d.StorageKey,
	).Scan(&d.ID, &d.CreatedAt)
	return d.ID, err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id int64) (*domain.Document, error) {
	var d domain.Document
	err := r.db.QueryRow(ctx,
		`SELECT id, title, body, storage_key, created_at FROM documents WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.Title, &d.Body, &d.StorageKey, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *DocumentRepository) ListAll(ctx context.Context) ([]domain.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, title, body, storage_key, created_at FROM documents ORDER BY id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Body, &d.StorageKey, &d.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *DocumentRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// ListUnindexed returns documents that have no chunks in the knowledge index.
func (r *DocumentRepository) ListUnindexed(ctx context.Context, limit int) ([]domain.Document, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(ctx,
		`SELECT d.id, d.title, d.body, d.storage_key, d.created_at
		 FROM documents d
		 WHERE NOT EXISTS (
		     SELECT 1 FROM knowledge_chunks c
		     WHERE c.source_type = 'document' AND c.source_id = d.id
		 )
		 ORDER BY d.id ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Body, &d.StorageKey, &d.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
