package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/henrib/lumen/internal/domain"
)

// RoadmapRepository persists roadmap sections and items.
type RoadmapRepository struct {
	db dbtx
}

func NewRoadmapRepository(pool *pgxpool.Pool) *RoadmapRepository {
	return &RoadmapRepository{db: pool}
}

func NewRoadmapRepositoryWithTx(tx dbtx) *RoadmapRepository {
	return &RoadmapRepository{db: tx}
}

// ListSections returns all sections with their items attached, ordered by
// section and item order.
func (r *RoadmapRepository) ListSections(ctx context.Context) ([]*domain.RoadmapSection, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, title, description, "order" FROM roadmap_sections ORDER BY "order" ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sections []*domain.RoadmapSection
	byID := make(map[int64]*domain.RoadmapSection)
	for rows.Next() {
		var s domain.RoadmapSection
		if err := rows.Scan(&s.ID, &s.Title, &s.Description, &s.Order); err != nil {
			return nil, err
		}
		sections = append(sections, &s)
		byID[s.ID] = &s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	itemRows, err := r.db.Query(ctx,
		`SELECT id, section_id, title, description, "order", is_active
		 FROM roadmap_items ORDER BY section_id ASC, "order" ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item domain.RoadmapItem
		if err := itemRows.Scan(&item.ID, &item.SectionID, &item.Title, &item.Description, &item.Order, &item.IsActive); err != nil {
			return nil, err
		}
		if section, ok := byID[item.SectionID]; ok {
			section.Items = append(section.Items, &item)
		}
	}
	return sections, itemRows.Err()
}

func (r *RoadmapRepository) GetItem(ctx context.Context, id int64) (*domain.RoadmapItem, error) {
	var item domain.RoadmapItem
	err := r.db.QueryRow(ctx,
		`SELECT id, section_id, title, description, "order", is_active
		 FROM roadmap_items WHERE id = $1`,
		id,
	).Scan(&item.ID, &item.SectionID, &item.Title, &item.Description, &item.Order, &item.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRoadmapItemNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *RoadmapRepository) CreateSection(ctx context.Context, s *domain.RoadmapSection) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO roadmap_sections (title, description, "order")
		 VALUES ($1, $2, $3) RETURNING id`,
		s.Title, s.Description, s.Order,
	).Scan(&s.ID)
}

func (r *RoadmapRepository) CreateItem(ctx context.Context, item *domain.RoadmapItem) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO roadmap_items (section_id, title, description, "order", is_active)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		item.SectionID, item.Title, item.Description, item.Order, item.IsActive,
	).Scan(&item.ID)
}

// CountSections is used by the seeder to detect an already-seeded roadmap.
func (r *RoadmapRepository) CountSections(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM roadmap_sections`).Scan(&count)
	return count, err
}
