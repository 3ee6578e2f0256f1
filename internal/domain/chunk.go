package domain

import "time"

// SourceType identifies the origin table of a knowledge chunk.
type SourceType string

const (
	SourceLearningEntry SourceType = "learning_entry"
	SourceRoadmapItem   SourceType = "roadmap_item"
	SourceSiteContent   SourceType = "site_content"
	SourceDocument      SourceType = "document"
)

// IsValid checks whether the source type is one of the known values.
func (s SourceType) IsValid() bool {
	switch s {
	case SourceLearningEntry, SourceRoadmapItem, SourceSiteContent, SourceDocument:
		return true
	}
	return false
}

// KnowledgeChunk is the unit of retrievable knowledge. Chunks are created by
// the index builder, never mutated in place, and only persisted with a valid
// embedding vector.
type KnowledgeChunk struct {
	ID           int64
	SourceType   SourceType
	SourceID     *int64
	Title        string
	Content      string
	SectionTitle string
	ItemTitle    string
	Tags         string
	Vector       []float32
	CreatedAt    time.Time
}

// SitePage is a static site page indexed as site_content.
type SitePage struct {
	Slug  string
	Title string
	Body  string
}
