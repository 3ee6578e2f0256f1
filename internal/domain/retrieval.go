package domain

// RetrievalStatus is a coarse confidence bucket derived from the top
// similarity score of a retrieval pass. It is informational only and never
// causes result suppression.
type RetrievalStatus string

const (
	RetrievalOK                RetrievalStatus = "ok"
	RetrievalLowConfidence     RetrievalStatus = "low_confidence"
	RetrievalVeryLowConfidence RetrievalStatus = "very_low_confidence"
	RetrievalNoResults         RetrievalStatus = "no_results"
)

// IsLow reports whether the status should trigger the keyword fallback.
func (s RetrievalStatus) IsLow() bool {
	return s == RetrievalLowConfidence || s == RetrievalVeryLowConfidence || s == RetrievalNoResults
}

// RetrievalFilters narrows the chunk universe for a retrieval pass.
type RetrievalFilters struct {
	SourceTypes []SourceType `json:"source_types,omitempty"`
	DocumentID  *int64       `json:"document_id,omitempty"`
}

// RetrievalCandidate is one ranked chunk from a retrieval pass.
type RetrievalCandidate struct {
	Chunk      *KnowledgeChunk
	Similarity float64
	Rank       int
}

// ChunkDistance pairs a chunk with its cosine distance from a query vector.
type ChunkDistance struct {
	Chunk    *KnowledgeChunk
	Distance float64
}

// RetrievalDiagnostics is populated on every retrieval pass, including the
// zero-result path.
type RetrievalDiagnostics struct {
	Status         RetrievalStatus  `json:"status"`
	Reason         string           `json:"reason,omitempty"`
	Scores         []float64        `json:"scores"`
	MaxScore       float64          `json:"max_score"`
	AvgScore       float64          `json:"avg_score"`
	TopK           int              `json:"top_k"`
	CandidateK     int              `json:"candidate_k"`
	TotalAvailable int              `json:"total_available"`
	Returned       int              `json:"returned"`
	Fallback       bool             `json:"fallback"`
	FallbackReason string           `json:"fallback_reason,omitempty"`
	KeywordMatches int              `json:"keyword_matches"`
	Filters        RetrievalFilters `json:"filters"`
}

// SafetyVerdict is the result of a safety-validation check.
type SafetyVerdict struct {
	IsSafe bool
	Reason string
}
