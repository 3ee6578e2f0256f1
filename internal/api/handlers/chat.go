package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/henrib/lumen/internal/api"
	"github.com/henrib/lumen/internal/domain"
	"github.com/henrib/lumen/internal/service"
)

type AnswerService interface {
	Answer(ctx context.Context, input service.AnswerInput) (*service.AnswerOutput, error)
}

type RetrievalService interface {
	Retrieve(ctx context.Context, input service.RetrievalInput) (*service.RetrievalResult, error)
}

type Reindexer interface {
	Reindex(ctx context.Context) (*service.IndexReport, error)
}

// ChatHandler serves the assistant chat, raw retrieval and reindex endpoints.
type ChatHandler struct {
	answers   AnswerService
	retrieval RetrievalService
	indexer   Reindexer
}

func NewChatHandler(answers AnswerService, retrieval RetrievalService, indexer Reindexer) *ChatHandler {
	return &ChatHandler{answers: answers, retrieval: retrieval, indexer: indexer}
}

type ChatRequest struct {
	Question string   `json:"question"`
	TopK     int      `json:"top_k,omitempty"`
	Sources  []string `json:"sources,omitempty"`
}

type ChatResponse struct {
	Answer            string                      `json:"answer"`
	Question          string                      `json:"question"`
	ContextUsed       []service.ContextBlock      `json:"context_used"`
	Confidence        float64                     `json:"confidence"`
	FollowUpQuestions []string                    `json:"follow_up_questions,omitempty"`
	RetrievalDebug    domain.RetrievalDiagnostics `json:"retrieval_debug"`
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	filters, err := parseSourceFilters(req.Sources)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	out, err := h.answers.Answer(r.Context(), service.AnswerInput{
		Question: req.Question,
		TopK:     req.TopK,
		Filters:  filters,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ChatResponse{
		Answer:            out.Answer,
		Question:          out.Question,
		ContextUsed:       out.ContextUsed,
		Confidence:        out.Confidence,
		FollowUpQuestions: out.FollowUpQuestions,
		RetrievalDebug:    out.Diagnostics,
	})
}

type SearchRequest struct {
	Query      string   `json:"query"`
	TopK       int      `json:"top_k,omitempty"`
	CandidateK int      `json:"candidate_k,omitempty"`
	Sources    []string `json:"sources,omitempty"`
	DocumentID *int64   `json:"document_id,omitempty"`
}

type SearchResultResponse struct {
	ID         int64   `json:"id"`
	SourceType string  `json:"source_type"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
	Rank       int     `json:"rank"`
}

type SearchResponse struct {
	Success bool                        `json:"success"`
	Query   string                      `json:"query"`
	TopK    int                         `json:"top_k"`
	Results []*SearchResultResponse     `json:"results"`
	Debug   domain.RetrievalDiagnostics `json:"debug"`
}

func (h *ChatHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		api.HandleError(w, domain.ErrMissingQuery)
		return
	}

	filters, err := parseSourceFilters(req.Sources)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	filters.DocumentID = req.DocumentID

	// The explicit search endpoint pulls a wider candidate pool than chat.
	candidateK := req.CandidateK
	if candidateK <= 0 && req.TopK > 0 {
		candidateK = req.TopK * 3
		if candidateK < 16 {
			candidateK = 16
		}
	}

	out, err := h.retrieval.Retrieve(r.Context(), service.RetrievalInput{
		Query:      req.Query,
		TopK:       req.TopK,
		CandidateK: candidateK,
		Filters:    filters,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	results := make([]*SearchResultResponse, len(out.Candidates))
	for i, c := range out.Candidates {
		results[i] = &SearchResultResponse{
			ID:         c.Chunk.ID,
			SourceType: string(c.Chunk.SourceType),
			Title:      c.Chunk.Title,
			Content:    c.Chunk.Content,
			Similarity: c.Similarity,
			Rank:       c.Rank,
		}
	}

	api.Success(w, http.StatusOK, SearchResponse{
		Success: true,
		Query:   req.Query,
		TopK:    out.Diagnostics.TopK,
		Results: results,
		Debug:   out.Diagnostics,
	})
}

type ReindexResponse struct {
	Indexed       map[domain.SourceType]int `json:"indexed"`
	Total         int                       `json:"total"`
	SkippedChunks int                       `json:"skipped_chunks"`
}

func (h *ChatHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	report, err := h.indexer.Reindex(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ReindexResponse{
		Indexed:       report.Indexed,
		Total:         report.Total(),
		SkippedChunks: report.SkippedChunks,
	})
}

func parseSourceFilters(sources []string) (domain.RetrievalFilters, error) {
	var filters domain.RetrievalFilters
	for _, s := range sources {
		st := domain.SourceType(s)
		if !st.IsValid() {
			return filters, domain.ErrInvalidSourceType
		}
		filters.SourceTypes = append(filters.SourceTypes, st)
	}
	return filters, nil
}
