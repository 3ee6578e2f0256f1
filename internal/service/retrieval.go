package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/henrib/lumen/internal/domain"
)

// Embedder converts text to fixed-dimension vectors. Query and document
// embeddings are asymmetric.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
}

// ChunkSearcher is the read surface of the knowledge store.
type ChunkSearcher interface {
	Count(ctx context.Context, filters domain.RetrievalFilters) (int, error)
	Search(ctx context.Context, vector []float32, filters domain.RetrievalFilters, limit int) ([]domain.ChunkDistance, error)
	KeywordSearch(ctx context.Context, keywords []string, limit int) ([]*domain.KnowledgeChunk, error)
}

// RoadmapReader lists the taxonomy with items attached.
type RoadmapReader interface {
	ListSections(ctx context.Context) ([]*domain.RoadmapSection, error)
}

// RetrievalConfig tunes retrieval behavior. Thresholds are informational
// confidence buckets; they never suppress results.
type RetrievalConfig struct {
	TopK                int
	MinCandidates       int
	KeywordLimit        int
	LowScore            float64
	VeryLowScore        float64
	UpgradeOnKeywordHit bool
}

// DefaultRetrievalConfig returns the standard retrieval tuning.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		TopK:                5,
		MinCandidates:       16,
		KeywordLimit:        10,
		LowScore:            0.4,
		VeryLowScore:        0.2,
		UpgradeOnKeywordHit: true,
	}
}

// RetrievalInput is one retrieval request.
type RetrievalInput struct {
	Query      string
	TopK       int
	CandidateK int
	Filters    domain.RetrievalFilters
}

// RetrievalResult carries the ranked candidates plus diagnostics. Diagnostics
// are populated on every path, including zero-result ones.
type RetrievalResult struct {
	Candidates     []domain.RetrievalCandidate
	Diagnostics    domain.RetrievalDiagnostics
	RoadmapContext string
}

// RetrievalEngine decides how to fetch supporting evidence for a query:
// vector similarity first, keyword search as the degraded-mode fallback.
type RetrievalEngine struct {
	embedder Embedder
	chunks   ChunkSearcher
	roadmap  RoadmapReader
	cfg      RetrievalConfig
}

// NewRetrievalEngine creates a RetrievalEngine.
func NewRetrievalEngine(embedder Embedder, chunks ChunkSearcher, roadmap RoadmapReader, cfg RetrievalConfig) *RetrievalEngine {
	if cfg.TopK <= 0 {
		cfg = DefaultRetrievalConfig()
	}
	return &RetrievalEngine{embedder: embedder, chunks: chunks, roadmap: roadmap, cfg: cfg}
}

// Retrieve runs one retrieval pass. Provider and store failures on the vector
// path degrade to the keyword fallback; an error is returned only when no
// path could be exercised at all.
func (e *RetrievalEngine) Retrieve(ctx context.Context, input RetrievalInput) (*RetrievalResult, error) {
	topK := input.TopK
	if topK <= 0 {
		topK = e.cfg.TopK
	}
	candidateK := input.CandidateK
	if candidateK <= 0 {
		candidateK = maxInt(topK, e.cfg.MinCandidates)
	}

	diag := domain.RetrievalDiagnostics{
		Scores:     []float64{},
		TopK:       topK,
		CandidateK: candidateK,
		Filters:    input.Filters,
	}
	result := &RetrievalResult{Diagnostics: diag}

	fallbackReason := ""

	vector, err := e.embedder.EmbedQuery(ctx, input.Query)
	if err != nil {
		log.Printf("retrieval: query embedding failed, degrading to keyword search: %v", err)
		fallbackReason = "embedding_failed"
	}

	if fallbackReason == "" {
		total, err := e.chunks.Count(ctx, input.Filters)
		switch {
		case err != nil:
			log.Printf("retrieval: chunk count failed, degrading to keyword search: %v", err)
			fallbackReason = "store_error"
		case total == 0:
			// Genuinely nothing indexed after filters. Not a confidence
			// problem, so no fallback pass either.
			result.Diagnostics.Status = domain.RetrievalNoResults
			result.Diagnostics.Reason = "no_rows_after_filters"
			return result, nil
		default:
			result.Diagnostics.TotalAvailable = total
			if candidateK > total {
				candidateK = total
				result.Diagnostics.CandidateK = candidateK
			}

			rows, err := e.chunks.Search(ctx, vector, input.Filters, candidateK)
			if err != nil {
				log.Printf("retrieval: vector query failed, degrading to keyword search: %v", err)
				fallbackReason = "vector_query_failed"
			} else if len(rows) == 0 {
				result.Diagnostics.Status = domain.RetrievalNoResults
				result.Diagnostics.Reason = "vector_query_empty"
				fallbackReason = "no_results"
			} else {
				e.rankCandidates(rows, topK, result)
				if result.Diagnostics.Status.IsLow() {
					fallbackReason = string(result.Diagnostics.Status)
				}
			}
		}
	}

	if fallbackReason != "" {
		e.applyFallback(ctx, input.Query, fallbackReason, result)
	}

	for i := range result.Candidates {
		result.Candidates[i].Rank = i + 1
	}
	result.Diagnostics.Returned = len(result.Candidates)

	return result, nil
}

// rankCandidates maps distances to similarities, orders highest-first and
// truncates to topK. Low similarity never drops candidates.
func (e *RetrievalEngine) rankCandidates(rows []domain.ChunkDistance, topK int, result *RetrievalResult) {
	candidates := make([]domain.RetrievalCandidate, 0, len(rows))
	for _, row := range rows {
		candidates = append(candidates, domain.RetrievalCandidate{
			Chunk:      row.Chunk,
			Similarity: 1.0 - row.Distance,
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	scores := make([]float64, 0, len(candidates))
	maxScore, sum := 0.0, 0.0
	for _, c := range candidates {
		scores = append(scores, c.Similarity)
		sum += c.Similarity
		if c.Similarity > maxScore {
			maxScore = c.Similarity
		}
	}

	result.Candidates = candidates
	result.Diagnostics.Scores = scores
	result.Diagnostics.MaxScore = maxScore
	if len(scores) > 0 {
		result.Diagnostics.AvgScore = sum / float64(len(scores))
	}
	result.Diagnostics.Status = e.classify(maxScore, len(candidates))
}

func (e *RetrievalEngine) classify(maxScore float64, returned int) domain.RetrievalStatus {
	switch {
	case returned == 0:
		return domain.RetrievalNoResults
	case maxScore < e.cfg.VeryLowScore:
		return domain.RetrievalVeryLowConfidence
	case maxScore < e.cfg.LowScore:
		return domain.RetrievalLowConfidence
	default:
		return domain.RetrievalOK
	}
}

// applyFallback runs the keyword path: roadmap status context plus substring
// matching over chunks. A lexical hit is stronger evidence than a weak
// embedding signal, so it upgrades the confidence bucket.
func (e *RetrievalEngine) applyFallback(ctx context.Context, query, reason string, result *RetrievalResult) {
	result.Diagnostics.Fallback = true
	result.Diagnostics.FallbackReason = reason

	if sections, err := e.roadmap.ListSections(ctx); err != nil {
		log.Printf("retrieval: roadmap status unavailable for fallback: %v", err)
	} else {
		result.RoadmapContext = buildRoadmapStatus(sections)
	}

	keywords := ExtractKeywords(query)
	if len(keywords) == 0 {
		e.finalizeFallbackStatus(result, 0)
		return
	}

	hits, err := e.chunks.KeywordSearch(ctx, keywords, e.cfg.KeywordLimit)
	if err != nil {
		log.Printf("retrieval: keyword search failed: %v", err)
		e.finalizeFallbackStatus(result, 0)
		return
	}

	result.Diagnostics.KeywordMatches = len(hits)
	if len(hits) > 0 {
		result.Candidates = mergeKeywordHits(hits, result.Candidates)
	}
	e.finalizeFallbackStatus(result, len(hits))
}

func (e *RetrievalEngine) finalizeFallbackStatus(result *RetrievalResult, hits int) {
	if hits > 0 && e.cfg.UpgradeOnKeywordHit {
		result.Diagnostics.Status = domain.RetrievalOK
		return
	}
	if len(result.Candidates) == 0 {
		result.Diagnostics.Status = domain.RetrievalNoResults
		if result.Diagnostics.Reason == "" {
			result.Diagnostics.Reason = result.Diagnostics.FallbackReason
		}
	}
}

// mergeKeywordHits puts lexical hits ahead of the vector candidates,
// deduplicated by chunk id. Keyword-only hits carry no similarity score.
func mergeKeywordHits(hits []*domain.KnowledgeChunk, existing []domain.RetrievalCandidate) []domain.RetrievalCandidate {
	byID := make(map[int64]float64, len(existing))
	for _, c := range existing {
		byID[c.Chunk.ID] = c.Similarity
	}

	merged := make([]domain.RetrievalCandidate, 0, len(hits)+len(existing))
	seen := make(map[int64]bool, len(hits))
	for _, chunk := range hits {
		merged = append(merged, domain.RetrievalCandidate{
			Chunk:      chunk,
			Similarity: byID[chunk.ID],
		})
		seen[chunk.ID] = true
	}
	for _, c := range existing {
		if !seen[c.Chunk.ID] {
			merged = append(merged, c)
		}
	}
	return merged
}

// stopWords is the fixed set removed from queries before keyword matching.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "about": true, "are": true, "as": true,
	"at": true, "be": true, "but": true, "by": true, "did": true, "do": true,
	"does": true, "for": true, "from": true, "has": true, "have": true,
	"how": true, "i": true, "in": true, "is": true, "it": true, "its": true,
	"me": true, "my": true, "of": true, "on": true, "or": true, "tell": true,
	"that": true, "the": true, "this": true, "to": true, "was": true,
	"we": true, "what": true, "when": true, "where": true, "which": true,
	"who": true, "why": true, "will": true, "with": true, "you": true,
	"your": true,
}

// ExtractKeywords lowercases the query, removes stop words and
// single-character tokens, and deduplicates preserving order.
func ExtractKeywords(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !isWordRune(r)
	})

	keywords := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if len(f) <= 1 || stopWords[f] || seen[f] {
			continue
		}
		seen[f] = true
		keywords = append(keywords, f)
	}
	return keywords
}

func isWordRune(r rune) bool {
	return r == '-' || r == '_' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// buildRoadmapStatus renders active taxonomy items grouped by section as a
// compact context block for degraded-mode answers.
func buildRoadmapStatus(sections []*domain.RoadmapSection) string {
	sorted := make([]*domain.RoadmapSection, len(sections))
	copy(sorted, sections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order < sorted[j].Order
	})

	var b strings.Builder
	b.WriteString("Current roadmap (active items by section):\n")
	wrote := false
	for _, s := range sorted {
		titles := make([]string, 0, len(s.Items))
		for _, item := range s.Items {
			if item.IsActive {
				titles = append(titles, item.Title)
			}
		}
		if len(titles) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%d. %s: %s\n", s.Order, s.Title, strings.Join(titles, ", "))
		wrote = true
	}
	if !wrote {
		return ""
	}
	return strings.TrimRight(b.String(), "\n")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
