package domain

import "time"

// RoadmapSection is a top-level area of the learning roadmap. Order is the
// unique display and tie-break key. Deleting a section cascades to its items.
type RoadmapSection struct {
	ID          int64
	Title       string
	Description string
	Order       int
	Items       []*RoadmapItem
}

// RoadmapItem is a single topic within a section.
type RoadmapItem struct {
	ID          int64
	SectionID   int64
	Title       string
	Description string
	Order       int
	IsActive    bool
}

// LogEntry is a recorded learning event. Entries reference at most one
// roadmap item; the reference is cleared when the item is deleted.
type LogEntry struct {
	ID            int64
	Title         string
	Content       string
	IsPublic      bool
	RoadmapItemID *int64
	CreatedAt     time.Time
}

// Validate checks required fields for entry creation.
func (e *LogEntry) Validate() error {
	if e.Title == "" {
		return ErrMissingTitle
	}
	if e.Content == "" {
		return ErrMissingContent
	}
	return nil
}

// Document is an uploaded document with its extracted text. The raw file is
// stored out of band when blob storage is configured.
type Document struct {
	ID         int64
	Title      string
	Body       string
	StorageKey string
	CreatedAt  time.Time
}
