package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/henrib/lumen/internal/domain"
	"github.com/henrib/lumen/internal/service"
)

// MockPortfolioReader is a mock implementation of PortfolioReader
type MockPortfolioReader struct {
	mock.Mock
}

func (m *MockPortfolioReader) ListSections(ctx context.Context) ([]*domain.RoadmapSection, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RoadmapSection), args.Error(1)
}

func (m *MockPortfolioReader) ListEntries(ctx context.Context, includePrivate bool, limit int) ([]domain.LogEntry, error) {
	args := m.Called(ctx, includePrivate, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LogEntry), args.Error(1)
}

func (m *MockPortfolioReader) Progress(ctx context.Context) (*service.ProgressStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ProgressStats), args.Error(1)
}

func (m *MockPortfolioReader) DocumentDownloadURL(ctx context.Context, id int64) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

// MockPortfolioWriter is a mock implementation of PortfolioWriter
type MockPortfolioWriter struct {
	mock.Mock
}

func (m *MockPortfolioWriter) CreateEntry(ctx context.Context, entry *domain.LogEntry) (int64, error) {
	args := m.Called(ctx, entry)
	entry.ID = args.Get(0).(int64)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPortfolioWriter) CreateDocument(ctx context.Context, doc *domain.Document) (int64, error) {
	args := m.Called(ctx, doc)
	doc.ID = args.Get(0).(int64)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPortfolioWriter) DeleteDocument(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// withURLParam attaches a chi route parameter to the request context.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestSections_RendersNestedItems(t *testing.T) {
	reader := new(MockPortfolioReader)
	reader.On("ListSections", mock.Anything).Return([]*domain.RoadmapSection{
		{
			ID: 1, Title: "RAG Systems", Order: 2,
			Items: []*domain.RoadmapItem{
				{ID: 3, SectionID: 1, Title: "Chunking Strategies", Order: 1, IsActive: true},
			},
		},
	}, nil)

	h := NewPortfolioHandler(reader, new(MockPortfolioWriter))

	req := httptest.NewRequest(http.MethodGet, "/api/roadmap/sections", nil)
	rec := httptest.NewRecorder()
	h.Sections(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp []*RoadmapSectionResponse
	decodeData(t, rec, &resp)
	require.Len(t, resp, 1)
	assert.Equal(t, "RAG Systems", resp[0].Title)
	require.Len(t, resp[0].Items, 1)
	assert.True(t, resp[0].Items[0].IsActive)
}

func TestListEntries_ParsesLimit(t *testing.T) {
	reader := new(MockPortfolioReader)
	reader.On("ListEntries", mock.Anything, false, 7).Return([]domain.LogEntry{
		{ID: 1, Title: "t", Content: "c", IsPublic: true, CreatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)},
	}, nil)

	h := NewPortfolioHandler(reader, new(MockPortfolioWriter))

	req := httptest.NewRequest(http.MethodGet, "/api/entries?limit=7", nil)
	rec := httptest.NewRecorder()
	h.ListEntries(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp []*EntryResponse
	decodeData(t, rec, &resp)
	require.Len(t, resp, 1)
	assert.Equal(t, "2026-08-01T12:00:00Z", resp[0].CreatedAt)
}

func TestListEntries_InvalidLimit(t *testing.T) {
	h := NewPortfolioHandler(new(MockPortfolioReader), new(MockPortfolioWriter))

	req := httptest.NewRequest(http.MethodGet, "/api/entries?limit=abc", nil)
	rec := httptest.NewRecorder()
	h.ListEntries(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateEntry_DefaultsToPublic(t *testing.T) {
	writer := new(MockPortfolioWriter)
	writer.On("CreateEntry", mock.Anything, mock.MatchedBy(func(e *domain.LogEntry) bool {
		return e.IsPublic && e.Title == "Learned pgvector"
	})).Return(int64(11), nil)

	h := NewPortfolioHandler(new(MockPortfolioReader), writer)

	req := httptest.NewRequest(http.MethodPost, "/api/entries",
		strings.NewReader(`{"title":"Learned pgvector","content":"cosine ops"}`))
	rec := httptest.NewRecorder()
	h.CreateEntry(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var resp EntryResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, int64(11), resp.ID)
	assert.True(t, resp.IsPublic)
}

func TestCreateEntry_ExplicitPrivate(t *testing.T) {
	writer := new(MockPortfolioWriter)
	writer.On("CreateEntry", mock.Anything, mock.MatchedBy(func(e *domain.LogEntry) bool {
		return !e.IsPublic
	})).Return(int64(12), nil)

	h := NewPortfolioHandler(new(MockPortfolioReader), writer)

	req := httptest.NewRequest(http.MethodPost, "/api/entries",
		strings.NewReader(`{"title":"t","content":"c","is_public":false}`))
	rec := httptest.NewRecorder()
	h.CreateEntry(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreateEntry_ValidationErrorIs400(t *testing.T) {
	writer := new(MockPortfolioWriter)
	writer.On("CreateEntry", mock.Anything, mock.Anything).Return(int64(0), domain.ErrMissingTitle)

	h := NewPortfolioHandler(new(MockPortfolioReader), writer)

	req := httptest.NewRequest(http.MethodPost, "/api/entries",
		strings.NewReader(`{"content":"c"}`))
	rec := httptest.NewRecorder()
	h.CreateEntry(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateDocument_ReturnsStorageKey(t *testing.T) {
	writer := new(MockPortfolioWriter)
	writer.On("CreateDocument", mock.Anything, mock.MatchedBy(func(d *domain.Document) bool {
		return d.Title == "RAG paper" && d.Body == "full text"
	})).Run(func(args mock.Arguments) {
		doc := args.Get(1).(*domain.Document)
		doc.StorageKey = "documents/abc12345-rag-paper.txt"
	}).Return(int64(5), nil)

	h := NewPortfolioHandler(new(MockPortfolioReader), writer)

	req := httptest.NewRequest(http.MethodPost, "/api/documents",
		strings.NewReader(`{"title":"RAG paper","body":"full text"}`))
	rec := httptest.NewRecorder()
	h.CreateDocument(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var resp DocumentResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, int64(5), resp.ID)
	assert.Equal(t, "documents/abc12345-rag-paper.txt", resp.StorageKey)
}

func TestDocumentDownload_ReturnsPresignedURL(t *testing.T) {
	reader := new(MockPortfolioReader)
	reader.On("DocumentDownloadURL", mock.Anything, int64(5)).
		Return("http://storage/documents/abc.txt?sig=x", nil)

	h := NewPortfolioHandler(reader, new(MockPortfolioWriter))

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/documents/5/download", nil), "id", "5")
	rec := httptest.NewRecorder()
	h.DocumentDownload(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp DocumentDownloadResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, "http://storage/documents/abc.txt?sig=x", resp.URL)
}

func TestDocumentDownload_InvalidID(t *testing.T) {
	h := NewPortfolioHandler(new(MockPortfolioReader), new(MockPortfolioWriter))

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/documents/abc/download", nil), "id", "abc")
	rec := httptest.NewRecorder()
	h.DocumentDownload(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocumentDownload_NotFound(t *testing.T) {
	reader := new(MockPortfolioReader)
	reader.On("DocumentDownloadURL", mock.Anything, int64(9)).Return("", domain.ErrDocumentNotFound)

	h := NewPortfolioHandler(reader, new(MockPortfolioWriter))

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/documents/9/download", nil), "id", "9")
	rec := httptest.NewRecorder()
	h.DocumentDownload(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteDocument_Deletes(t *testing.T) {
	writer := new(MockPortfolioWriter)
	writer.On("DeleteDocument", mock.Anything, int64(5)).Return(nil)

	h := NewPortfolioHandler(new(MockPortfolioReader), writer)

	req := withURLParam(httptest.NewRequest(http.MethodDelete, "/api/documents/5", nil), "id", "5")
	rec := httptest.NewRecorder()
	h.DeleteDocument(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	writer.AssertExpectations(t)
}

func TestProgress_ReturnsStats(t *testing.T) {
	reader := new(MockPortfolioReader)
	reader.On("Progress", mock.Anything).Return(&service.ProgressStats{
		Sections: 4, Items: 10, ActiveItems: 4, CompletionPct: 60,
		Entries: 20, PublicEntries: 15,
	}, nil)

	h := NewPortfolioHandler(reader, new(MockPortfolioWriter))

	req := httptest.NewRequest(http.MethodGet, "/api/roadmap/progress", nil)
	rec := httptest.NewRecorder()
	h.Progress(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp service.ProgressStats
	decodeData(t, rec, &resp)
	assert.Equal(t, 4, resp.Sections)
	assert.InDelta(t, 60.0, resp.CompletionPct, 1e-9)
}
