package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/henrib/lumen/internal/api"
	"github.com/henrib/lumen/internal/domain"
	"github.com/henrib/lumen/internal/service"
)

type PortfolioReader interface {
	ListSections(ctx context.Context) ([]*domain.RoadmapSection, error)
	ListEntries(ctx context.Context, includePrivate bool, limit int) ([]domain.LogEntry, error)
	Progress(ctx context.Context) (*service.ProgressStats, error)
	DocumentDownloadURL(ctx context.Context, id int64) (string, error)
}

type PortfolioWriter interface {
	CreateEntry(ctx context.Context, entry *domain.LogEntry) (int64, error)
	CreateDocument(ctx context.Context, doc *domain.Document) (int64, error)
	DeleteDocument(ctx context.Context, id int64) error
}

// PortfolioHandler serves the roadmap, entries and documents endpoints.
type PortfolioHandler struct {
	reader PortfolioReader
	writer PortfolioWriter
}

func NewPortfolioHandler(reader PortfolioReader, writer PortfolioWriter) *PortfolioHandler {
	return &PortfolioHandler{reader: reader, writer: writer}
}

type RoadmapItemResponse struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Order       int    `json:"order"`
	IsActive    bool   `json:"is_active"`
}

type RoadmapSectionResponse struct {
	ID          int64                  `json:"id"`
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	Order       int                    `json:"order"`
	Items       []*RoadmapItemResponse `json:"items"`
}

func (h *PortfolioHandler) Sections(w http.ResponseWriter, r *http.Request) {
	sections, err := h.reader.ListSections(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*RoadmapSectionResponse, len(sections))
	for i, section := range sections {
		items := make([]*RoadmapItemResponse, len(section.Items))
		for j, item := range section.Items {
			items[j] = &RoadmapItemResponse{
				ID:          item.ID,
				Title:       item.Title,
				Description: item.Description,
				Order:       item.Order,
				IsActive:    item.IsActive,
			}
		}
		responses[i] = &RoadmapSectionResponse{
			ID:          section.ID,
			Title:       section.Title,
			Description: section.Description,
			Order:       section.Order,
			Items:       items,
		}
	}

	api.Success(w, http.StatusOK, responses)
}

func (h *PortfolioHandler) Progress(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reader.Progress(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, stats)
}

type EntryResponse struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	IsPublic      bool   `json:"is_public"`
	RoadmapItemID *int64 `json:"roadmap_item_id,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// ListEntries returns public entries. The limit query parameter caps the
// page size.
func (h *PortfolioHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := h.reader.ListEntries(r.Context(), false, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		responses[i] = entryResponse(e)
	}
	api.Success(w, http.StatusOK, responses)
}

type CreateEntryRequest struct {
	Title         string `json:"title"`
	Content       string `json:"content"`
	IsPublic      *bool  `json:"is_public,omitempty"`
	RoadmapItemID *int64 `json:"roadmap_item_id,omitempty"`
}

func (h *PortfolioHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry := domain.LogEntry{
		Title:         req.Title,
		Content:       req.Content,
		IsPublic:      true,
		RoadmapItemID: req.RoadmapItemID,
	}
	if req.IsPublic != nil {
		entry.IsPublic = *req.IsPublic
	}

	if _, err := h.writer.CreateEntry(r.Context(), &entry); err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusCreated, entryResponse(entry))
}

type CreateDocumentRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type DocumentResponse struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	StorageKey string `json:"storage_key,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func (h *PortfolioHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doc := domain.Document{Title: req.Title, Body: req.Body}
	if _, err := h.writer.CreateDocument(r.Context(), &doc); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, DocumentResponse{
		ID:         doc.ID,
		Title:      doc.Title,
		StorageKey: doc.StorageKey,
		CreatedAt:  doc.CreatedAt.UTC().Format(time.RFC3339),
	})
}

type DocumentDownloadResponse struct {
	URL string `json:"url"`
}

// DocumentDownload returns a presigned URL for the stored document body.
func (h *PortfolioHandler) DocumentDownload(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid document id")
		return
	}

	url, err := h.reader.DocumentDownloadURL(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, DocumentDownloadResponse{URL: url})
}

func (h *PortfolioHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid document id")
		return
	}

	if err := h.writer.DeleteDocument(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func entryResponse(e domain.LogEntry) *EntryResponse {
	return &EntryResponse{
		ID:            e.ID,
		Title:         e.Title,
		Content:       e.Content,
		IsPublic:      e.IsPublic,
		RoadmapItemID: e.RoadmapItemID,
		CreatedAt:     e.CreatedAt.UTC().Format(time.RFC3339),
	}
}
