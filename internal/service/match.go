package service

import (
	"strings"

	"github.com/henrib/lumen/internal/domain"
)

// MatchPolicy tunes how automation events are matched to roadmap items.
type MatchPolicy struct {
	PhraseWeight float64
	TokenWeight  float64
	SectionBias  float64
	LLMThreshold float64
	BroadPenalty float64
	MinScore     float64
}

// DefaultMatchPolicy returns the standard matching weights.
func DefaultMatchPolicy() MatchPolicy {
	return MatchPolicy{
		PhraseWeight: 1.0,
		TokenWeight:  0.25,
		SectionBias:  6,
		LLMThreshold: 0.6,
		BroadPenalty: 3,
		MinScore:     4,
	}
}

// TaxonomyCandidate is a roadmap suggestion extracted from an LLM summary.
type TaxonomyCandidate struct {
	ItemTitle  string
	Confidence float64
}

// MatchResult is a resolved roadmap assignment for an automation event.
type MatchResult struct {
	Item    domain.RoadmapItem
	Section domain.RoadmapSection
	Score   float64
}

// sectionCluster biases scoring toward a section when the event text is
// saturated with that section's vocabulary. Keeps specialised sections from
// losing ties against broad catch-all ones.
type sectionCluster struct {
	hints    []string
	keywords []string
}

var sectionClusters = []sectionCluster{
	{
		hints:    []string{"rag", "retrieval"},
		keywords: []string{"vector", "embedding", "embeddings", "retrieval", "rag", "chunk", "chunking", "semantic", "index", "pgvector"},
	},
	{
		hints:    []string{"agent", "mcp", "automation", "tool"},
		keywords: []string{"agent", "agents", "mcp", "tooling", "webhook", "automation", "orchestration", "workflow"},
	},
}

var broadSectionWords = []string{"fundamentals", "general", "misc", "basics", "overview"}

// TaxonomyMatcher maps event text onto the roadmap taxonomy.
type TaxonomyMatcher struct {
	policy MatchPolicy
}

// NewTaxonomyMatcher creates a matcher with the given policy.
func NewTaxonomyMatcher(policy MatchPolicy) *TaxonomyMatcher {
	if policy.MinScore <= 0 {
		policy = DefaultMatchPolicy()
	}
	return &TaxonomyMatcher{policy: policy}
}

// Match resolves the best roadmap item for an event. LLM hints above the
// confidence threshold win outright when their title matches a real item;
// otherwise items are scored by phrase and token overlap against the event
// text. Returns nil when nothing clears the minimum score and no naive
// title match exists.
func (m *TaxonomyMatcher) Match(sections []*domain.RoadmapSection, summary, raw string, messages []string, hints []TaxonomyCandidate) *MatchResult {
	if len(sections) == 0 {
		return nil
	}

	text := strings.ToLower(strings.Join(append([]string{summary, raw}, messages...), " "))

	if res := m.matchHints(sections, hints); res != nil {
		return res
	}

	best := m.scoreItems(sections, text)
	if best != nil && best.Score >= m.policy.MinScore {
		return best
	}

	return naiveTitleMatch(sections, text)
}

func (m *TaxonomyMatcher) matchHints(sections []*domain.RoadmapSection, hints []TaxonomyCandidate) *MatchResult {
	for _, hint := range hints {
		if hint.Confidence < m.policy.LLMThreshold {
			continue
		}
		needle := strings.ToLower(strings.TrimSpace(hint.ItemTitle))
		if needle == "" {
			continue
		}
		for _, section := range sections {
			for _, item := range section.Items {
				title := strings.ToLower(item.Title)
				if strings.Contains(title, needle) || strings.Contains(needle, title) {
					return &MatchResult{Item: *item, Section: *section, Score: hint.Confidence * 10}
				}
			}
		}
	}
	return nil
}

func (m *TaxonomyMatcher) scoreItems(sections []*domain.RoadmapSection, text string) *MatchResult {
	var best *MatchResult
	for _, section := range sections {
		bias := m.sectionBias(section, text)
		broad := isBroadSection(section.Title)
		for _, item := range section.Items {
			score, phraseHit := m.scoreItem(section, item, text)
			score += bias
			if broad && !phraseHit && bias == 0 {
				score -= m.policy.BroadPenalty
			}
			if best == nil || score > best.Score {
				best = &MatchResult{Item: *item, Section: *section, Score: score}
			}
		}
	}
	return best
}

// scoreItem rewards full-phrase containment heavily and token overlap
// lightly, both proportional to the matched text length so longer, more
// specific matches beat short generic ones.
func (m *TaxonomyMatcher) scoreItem(section *domain.RoadmapSection, item *domain.RoadmapItem, text string) (float64, bool) {
	var score float64
	phraseHit := false

	title := strings.ToLower(strings.TrimSpace(item.Title))
	if len(title) >= 4 && strings.Contains(text, title) {
		score += m.policy.PhraseWeight * float64(len(title))
		phraseHit = true
	}

	vocab := strings.ToLower(item.Title + " " + item.Description + " " + section.Title)
	seen := make(map[string]bool)
	for _, token := range strings.FieldsFunc(vocab, func(r rune) bool { return !isWordRune(r) }) {
		if len(token) <= 2 || stopWords[token] || seen[token] {
			continue
		}
		seen[token] = true
		if strings.Contains(text, token) {
			score += m.policy.TokenWeight * float64(len(token))
		}
	}
	return score, phraseHit
}

// sectionBias checks whether the section belongs to a vocabulary cluster
// and the text hits at least two distinct keywords from that cluster.
func (m *TaxonomyMatcher) sectionBias(section *domain.RoadmapSection, text string) float64 {
	sectionTitle := strings.ToLower(section.Title)
	for _, cluster := range sectionClusters {
		matched := false
		for _, hint := range cluster.hints {
			if strings.Contains(sectionTitle, hint) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		hits := 0
		for _, kw := range cluster.keywords {
			if strings.Contains(text, kw) {
				hits++
			}
			if hits >= 2 {
				return m.policy.SectionBias
			}
		}
	}
	return 0
}

func isBroadSection(title string) bool {
	lower := strings.ToLower(title)
	for _, w := range broadSectionWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// naiveTitleMatch is the last-resort pass: any item whose full title appears
// verbatim in the text wins, longest title first.
func naiveTitleMatch(sections []*domain.RoadmapSection, text string) *MatchResult {
	var best *MatchResult
	for _, section := range sections {
		for _, item := range section.Items {
			title := strings.ToLower(strings.TrimSpace(item.Title))
			if len(title) < 4 || !strings.Contains(text, title) {
				continue
			}
			if best == nil || len(title) > len(strings.ToLower(best.Item.Title)) {
				best = &MatchResult{Item: *item, Section: *section, Score: float64(len(title))}
			}
		}
	}
	return best
}
