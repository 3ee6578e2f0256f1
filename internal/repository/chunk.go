package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/henrib/lumen/internal/domain"
)

// ChunkRepository persists and searches knowledge chunks.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx dbtx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

func (r *ChunkRepository) Insert(ctx context.Context, c *domain.KnowledgeChunk) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO knowledge_chunks (source_type, source_id, title, content, section_title, item_title, tags, vector)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		c.SourceType, nullableInt64(c.SourceID), c.Title, c.Content, c.SectionTitle, c.ItemTitle, c.Tags,
		pgvector.NewVector(c.Vector),
	).Scan(&c.ID, &c.CreatedAt)
}

func (r *ChunkRepository) DeleteBySourceType(ctx context.Context, sourceType domain.SourceType) error {
	_, err := r.db.Exec(ctx, `DELETE FROM knowledge_chunks WHERE source_type = $1`, sourceType)
	return err
}

func (r *ChunkRepository) DeleteBySource(ctx context.Context, sourceType domain.SourceType, sourceID int64) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM knowledge_chunks WHERE source_type = $1 AND source_id = $2`,
		sourceType, sourceID,
	)
	return err
}

// Count returns the number of chunks visible under the given filters.
func (r *ChunkRepository) Count(ctx context.Context, filters domain.RetrievalFilters) (int, error) {
	where, args := filterClause(filters, 0)
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM knowledge_chunks`+where, args...).Scan(&count)
	return count, err
}

// Search returns the closest chunks by cosine distance, nearest first.
func (r *ChunkRepository) Search(ctx context.Context, vector []float32, filters domain.RetrievalFilters, limit int) ([]domain.ChunkDistance, error) {
	if limit <= 0 {
		limit = 16
	}

	where, args := filterClause(filters, 2)
	query := fmt.Sprintf(
		`SELECT id, source_type, source_id, title, content, section_title, item_title, tags, created_at,
		        vector <=> $1 AS distance
		 FROM knowledge_chunks%s
		 ORDER BY distance ASC
		 LIMIT $2`, where)

	rows, err := r.db.Query(ctx, query, append([]any{pgvector.NewVector(vector), limit}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.ChunkDistance
	for rows.Next() {
		var cd domain.ChunkDistance
		chunk, err := scanChunk(rows, &cd.Distance)
		if err != nil {
			return nil, err
		}
		cd.Chunk = chunk
		results = append(results, cd)
	}
	return results, rows.Err()
}

// KeywordSearch matches chunks whose title or content contains any of the
// given keywords, most recently indexed first.
func (r *ChunkRepository) KeywordSearch(ctx context.Context, keywords []string, limit int) ([]*domain.KnowledgeChunk, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	patterns := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		patterns = append(patterns, "%"+escapeLike(kw)+"%")
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, source_type, source_id, title, content, section_title, item_title, tags, created_at
		 FROM knowledge_chunks
		 WHERE content ILIKE ANY($1) OR title ILIKE ANY($1)
		 ORDER BY id DESC
		 LIMIT $2`,
		patterns, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.KnowledgeChunk
	for rows.Next() {
		chunk, err := scanChunk(rows, nil)
		if err != nil {
			return nil, err
		}
		results = append(results, chunk)
	}
	return results, rows.Err()
}

// CountBySourceType returns the index size per source type.
func (r *ChunkRepository) CountBySourceType(ctx context.Context) (map[domain.SourceType]int, error) {
	rows, err := r.db.Query(ctx,
		`SELECT source_type, COUNT(*) FROM knowledge_chunks GROUP BY source_type`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.SourceType]int)
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		counts[domain.SourceType(st)] = n
	}
	return counts, rows.Err()
}

type chunkScanner interface {
	Scan(dest ...any) error
}

// scanChunk reads one chunk row. distance, when non-nil, receives the
// trailing distance column.
func scanChunk(row chunkScanner, distance *float64) (*domain.KnowledgeChunk, error) {
	var c domain.KnowledgeChunk
	var sourceID *int64
	dest := []any{&c.ID, &c.SourceType, &sourceID, &c.Title, &c.Content, &c.SectionTitle, &c.ItemTitle, &c.Tags, &c.CreatedAt}
	if distance != nil {
		dest = append(dest, distance)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	c.SourceID = sourceID
	return &c, nil
}

// filterClause renders RetrievalFilters as a WHERE clause. argOffset is the
// number of positional parameters already used by the caller.
func filterClause(filters domain.RetrievalFilters, argOffset int) (string, []any) {
	var conds []string
	var args []any

	if len(filters.SourceTypes) > 0 {
		types := make([]string, 0, len(filters.SourceTypes))
		for _, st := range filters.SourceTypes {
			types = append(types, string(st))
		}
		args = append(args, types)
		conds = append(conds, fmt.Sprintf("source_type = ANY($%d)", argOffset+len(args)))
	}
	if filters.DocumentID != nil {
		args = append(args, *filters.DocumentID)
		conds = append(conds, fmt.Sprintf("(source_type = 'document' AND source_id = $%d)", argOffset+len(args)))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
