package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/henrib/lumen/internal/domain"
)

// Completer generates text from a system and user prompt.
type Completer interface {
	Complete(ctx context.Context, system, user string, temperature float32, maxTokens int) (string, error)
}

// SafetyChecker validates input text before any retrieval or generation.
type SafetyChecker interface {
	Check(ctx context.Context, text string) (domain.SafetyVerdict, error)
}

// Retriever is the retrieval engine surface the answerer depends on.
type Retriever interface {
	Retrieve(ctx context.Context, input RetrievalInput) (*RetrievalResult, error)
}

// AnswerConfig tunes grounded answer generation.
type AnswerConfig struct {
	TopK                int
	Temperature         float32
	MaxTokens           int
	FollowUpTemperature float32
	MaxFollowUps        int
	MinFollowUpChars    int
}

// DefaultAnswerConfig returns the standard answering tuning.
func DefaultAnswerConfig() AnswerConfig {
	return AnswerConfig{
		TopK:                5,
		Temperature:         0.3,
		MaxTokens:           1024,
		FollowUpTemperature: 0.7,
		MaxFollowUps:        3,
		MinFollowUpChars:    12,
	}
}

// AnswerInput is one question to answer.
type AnswerInput struct {
	Question string
	TopK     int
	Filters  domain.RetrievalFilters
}

// ContextBlock is one retrieved chunk as exposed to the caller.
type ContextBlock struct {
	ID           int64  `json:"id"`
	SourceType   string `json:"source_type"`
	Title        string `json:"title"`
	SectionTitle string `json:"section_title"`
	ItemTitle    string `json:"item_title"`
	Content      string `json:"content"`
	Tags         string `json:"tags"`
}

// AnswerOutput is the grounded answer with its supporting evidence.
type AnswerOutput struct {
	Answer            string
	Question          string
	ContextUsed       []ContextBlock
	Confidence        float64
	FollowUpQuestions []string
	Diagnostics       domain.RetrievalDiagnostics
}

const (
	securityBlockMessage = "This request was blocked by the security policy. Please rephrase your question."

	noKnowledgeMessage = "I don't have any indexed knowledge matching your question yet. " +
		"Try rebuilding the knowledge index, or log a few learning entries first so there is something to search."
)

// AnswerService orchestrates retrieval, prompt assembly and generation.
type AnswerService struct {
	retriever Retriever
	completer Completer
	safety    SafetyChecker
	cfg       AnswerConfig
}

// NewAnswerService creates an AnswerService. The safety checker may be nil,
// which disables the safety gate entirely.
func NewAnswerService(retriever Retriever, completer Completer, safety SafetyChecker, cfg AnswerConfig) *AnswerService {
	if cfg.TopK <= 0 {
		cfg = DefaultAnswerConfig()
	}
	return &AnswerService{retriever: retriever, completer: completer, safety: safety, cfg: cfg}
}

// Answer produces a confidence-annotated answer grounded in retrieved
// context. Completion-provider failure is fatal for the request; everything
// upstream of it degrades.
func (s *AnswerService) Answer(ctx context.Context, input AnswerInput) (*AnswerOutput, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, domain.ErrMissingQuestion
	}

	if s.safety != nil {
		verdict, err := s.safety.Check(ctx, question)
		if err != nil {
			// Fail open: availability over strict enforcement when the
			// validator itself is unreachable.
			log.Printf("answer: safety validation unavailable, proceeding: %v", err)
		} else if !verdict.IsSafe {
			log.Printf("answer: question blocked by safety validator: %s", verdict.Reason)
			return &AnswerOutput{
				Answer:      securityBlockMessage,
				Question:    question,
				ContextUsed: []ContextBlock{},
				Diagnostics: domain.RetrievalDiagnostics{Scores: []float64{}},
			}, nil
		}
	}

	topK := input.TopK
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	ret, err := s.retriever.Retrieve(ctx, RetrievalInput{
		Query:   question,
		TopK:    topK,
		Filters: input.Filters,
	})
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "retrieval failed", err)
	}

	out := &AnswerOutput{
		Question:    question,
		ContextUsed: contextBlocks(ret.Candidates),
		Confidence:  ret.Diagnostics.MaxScore,
		Diagnostics: ret.Diagnostics,
	}

	if len(ret.Candidates) == 0 && ret.Diagnostics.Status == domain.RetrievalNoResults {
		out.Answer = noKnowledgeMessage
		out.FollowUpQuestions = genericFollowUps(nil, s.cfg.MaxFollowUps)
		return out, nil
	}

	system := buildSystemPrompt(ret.Diagnostics)
	user := buildUserPrompt(question, ret)

	answer, err := s.completer.Complete(ctx, system, user, s.cfg.Temperature, s.cfg.MaxTokens)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeProvider, "answer generation failed", err)
	}
	out.Answer = answer

	if ret.Diagnostics.Status.IsLow() || ret.Diagnostics.Fallback {
		out.FollowUpQuestions = s.followUps(ctx, question, ret)
	}

	return out, nil
}

func contextBlocks(candidates []domain.RetrievalCandidate) []ContextBlock {
	blocks := make([]ContextBlock, 0, len(candidates))
	for _, c := range candidates {
		blocks = append(blocks, ContextBlock{
			ID:           c.Chunk.ID,
			SourceType:   string(c.Chunk.SourceType),
			Title:        c.Chunk.Title,
			SectionTitle: c.Chunk.SectionTitle,
			ItemTitle:    c.Chunk.ItemTitle,
			Content:      c.Chunk.Content,
			Tags:         c.Chunk.Tags,
		})
	}
	return blocks
}

// buildContextText renders candidates as numbered, delimited blocks so the
// final prompt is auditable.
func buildContextText(candidates []domain.RetrievalCandidate) string {
	if len(candidates) == 0 {
		return "No prior knowledge chunks matched."
	}

	parts := make([]string, 0, len(candidates))
	for i, c := range candidates {
		header := fmt.Sprintf("[Chunk %d] %s", i+1, c.Chunk.Title)
		meta := make([]string, 0, 2)
		if c.Chunk.SectionTitle != "" {
			meta = append(meta, c.Chunk.SectionTitle)
		}
		if c.Chunk.ItemTitle != "" {
			meta = append(meta, c.Chunk.ItemTitle)
		}
		if len(meta) > 0 {
			header += " (" + strings.Join(meta, " - ") + ")"
		}
		parts = append(parts, header+"\n"+c.Chunk.Content)
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func buildSystemPrompt(diag domain.RetrievalDiagnostics) string {
	var b strings.Builder
	b.WriteString("You are an assistant for a personal AI learning portfolio. ")
	b.WriteString("Use ONLY the provided context from the portfolio's knowledge chunks " +
		"(roadmap items, learning entries, site content, documents) when answering. ")
	b.WriteString("If the context does not contain the answer, say that you don't have " +
		"enough information, and suggest what could be learned or logged next. ")
	b.WriteString("Never invent facts that are not in the context.")

	if diag.Status == domain.RetrievalLowConfidence || diag.Status == domain.RetrievalVeryLowConfidence {
		b.WriteString(" The retrieved context only weakly matches the question; be explicit " +
			"about uncertainty and prefer admitting missing information over guessing.")
	}
	if diag.Fallback {
		b.WriteString(" Note: vector search was unavailable for this request, so the context " +
			"comes from keyword matches and the current roadmap status; treat it as partial.")
	}
	return b.String()
}

func buildUserPrompt(question string, ret *RetrievalResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User question:\n%s\n\n", question)
	fmt.Fprintf(&b, "Relevant learning context:\n%s\n", buildContextText(ret.Candidates))
	if ret.RoadmapContext != "" {
		fmt.Fprintf(&b, "\n%s\n", ret.RoadmapContext)
	}
	b.WriteString("\nNow answer the question as clearly and concretely as possible, " +
		"referencing actual logged work when relevant.")
	return b.String()
}

const followUpSystemPrompt = "You help a learner clarify vague questions about their own " +
	"learning portfolio. Write up to 3 short follow-up questions the learner could ask next, " +
	"phrased in first person from the learner's perspective. One question per line, each a " +
	"single sentence, with no numbering or bullet markers."

// followUps asks the completion provider for clarifying questions, falling
// back to canned ones derived from retrieved topic labels.
func (s *AnswerService) followUps(ctx context.Context, question string, ret *RetrievalResult) []string {
	labels := topicLabels(ret.Candidates)

	user := fmt.Sprintf("Original question: %s", question)
	if len(labels) > 0 {
		user += fmt.Sprintf("\nTopics available in the portfolio: %s", strings.Join(labels, ", "))
	}

	raw, err := s.completer.Complete(ctx, followUpSystemPrompt, user, s.cfg.FollowUpTemperature, 256)
	if err != nil {
		log.Printf("answer: follow-up generation failed, using generic questions: %v", err)
		return genericFollowUps(labels, s.cfg.MaxFollowUps)
	}

	questions := parseFollowUps(raw, s.cfg.MaxFollowUps, s.cfg.MinFollowUpChars)
	if len(questions) == 0 {
		return genericFollowUps(labels, s.cfg.MaxFollowUps)
	}
	return questions
}

func parseFollowUps(raw string, limit, minChars int) []string {
	lines := strings.Split(raw, "\n")
	questions := make([]string, 0, limit)
	for _, line := range lines {
		q := stripEnumeration(line)
		if len(q) < minChars {
			continue
		}
		questions = append(questions, q)
		if len(questions) >= limit {
			break
		}
	}
	return questions
}

// stripEnumeration removes list markers like "1.", "-", "*" from a line.
func stripEnumeration(line string) string {
	trimmed := strings.TrimLeftFunc(line, func(r rune) bool {
		switch {
		case r >= '0' && r <= '9':
			return true
		case r == '.' || r == ')' || r == '-' || r == '*' || r == ':':
			return true
		case r == ' ' || r == '\t' || r == '•':
			return true
		}
		return false
	})
	return strings.TrimSpace(trimmed)
}

func genericFollowUps(labels []string, limit int) []string {
	questions := make([]string, 0, limit)
	for _, label := range labels {
		if len(questions) >= limit {
			break
		}
		questions = append(questions, fmt.Sprintf("Can I get more detail about my work on %s?", label))
	}
	for _, q := range []string{
		"What topics am I actively learning right now?",
		"Which roadmap area should I focus on next?",
		"What have I logged most recently?",
	} {
		if len(questions) >= limit {
			break
		}
		questions = append(questions, q)
	}
	return questions
}

// topicLabels collects distinct taxonomy labels from retrieved chunks.
func topicLabels(candidates []domain.RetrievalCandidate) []string {
	labels := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		label := c.Chunk.ItemTitle
		if label == "" {
			label = c.Chunk.SectionTitle
		}
		if label == "" {
			label = c.Chunk.Title
		}
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		labels = append(labels, label)
	}
	return labels
}
