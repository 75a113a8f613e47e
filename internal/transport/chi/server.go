// Package chi implements the HTTP transport: routing, request decoding, and
// domain error mapping.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/alex-tgk/searchlight/internal/domain"
	"github.com/alex-tgk/searchlight/internal/domain/analytics"
	"github.com/alex-tgk/searchlight/internal/domain/document"
	"github.com/alex-tgk/searchlight/internal/domain/search/mode"
	"github.com/alex-tgk/searchlight/internal/domain/search/request"
	healthuc "github.com/alex-tgk/searchlight/internal/usecase/health"
	indexinguc "github.com/alex-tgk/searchlight/internal/usecase/indexing"
	searchuc "github.com/alex-tgk/searchlight/internal/usecase/search"
	suggestuc "github.com/alex-tgk/searchlight/internal/usecase/suggest"
)

const maxReindexDocuments = 1000

// clickSink records result click events.
type clickSink interface {
	AppendClick(ctx context.Context, click analytics.ResultClick) error
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server is the HTTP API server.
type Server struct {
	search        *searchuc.Service
	indexing      *indexinguc.Service
	suggest       *suggestuc.Service
	health        *healthuc.Service
	clicks        clickSink
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	indexing *indexinguc.Service,
	suggest *suggestuc.Service,
	health *healthuc.Service,
	clicks clickSink,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:   search,
		indexing: indexing,
		suggest:  suggest,
		health:   health,
		clicks:   clicks,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, CodeDocumentNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrBackendUnavailable, http.StatusServiceUnavailable, CodeBackendUnavailable),
		sentinelHandler(domain.ErrUpstreamTimeout, http.StatusGatewayTimeout, CodeUpstreamTimeout),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProvider),
		sentinelHandler(domain.ErrSemanticDisabled, http.StatusConflict, CodeSemanticDisabled),
	}
	return s
}

// Routes registers the API routes on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/search", s.handleSearch)
	r.Get("/v1/suggestions", s.handleSuggestions)
	r.Post("/v1/documents", s.handleUpsertDocument)
	r.Delete("/v1/documents/{entityType}/{entityId}", s.handleDeleteDocument)
	r.Post("/v1/documents/reindex", s.handleReindex)
	r.Post("/v1/analytics/clicks", s.handleClick)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

// handleSearch handles POST /v1/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var body SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	fuzzy := true
	if body.Fuzzy != nil {
		fuzzy = *body.Fuzzy
	}

	req, err := request.New(
		body.Query,
		body.EntityTypes,
		mode.Mode(body.Mode),
		request.SortOrder(body.Sort),
		body.Page,
		body.Limit,
		fuzzy,
		body.Filters,
		body.UserID,
	)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	page, logID, err := s.search.Search(r.Context(), &req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{Page: page, QueryLogID: logID})
}

// handleSuggestions handles GET /v1/suggestions.
func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	entityType := r.URL.Query().Get("entityType")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	terms, err := s.suggest.GetSuggestions(r.Context(), prefix, entityType, limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	now := time.Now()
	items := make([]SuggestionItem, len(terms))
	for i := range terms {
		items[i] = SuggestionItem{
			Term:       terms[i].Text(),
			EntityType: terms[i].EntityType(),
			Frequency:  terms[i].Frequency(),
			Score:      terms[i].Score(now),
			LastUsed:   terms[i].LastUsed(),
		}
	}
	writeJSON(w, http.StatusOK, SuggestionsResponse{Suggestions: items})
}

// handleUpsertDocument handles POST /v1/documents.
func (s *Server) handleUpsertDocument(w http.ResponseWriter, r *http.Request) {
	var body DocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	doc, err := document.New(body.EntityType, body.EntityID, body.Title, body.Content, body.Metadata, body.Rank, time.Now())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	stored, err := s.indexing.IndexDocument(r.Context(), doc)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, documentToResponse(stored))
}

// handleDeleteDocument handles DELETE /v1/documents/{entityType}/{entityId}.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	entityType := chi.URLParam(r, "entityType")
	entityID := chi.URLParam(r, "entityId")

	removed, err := s.indexing.RemoveFromIndex(r.Context(), entityType, entityID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, CodeDocumentNotFound, domain.ErrDocumentNotFound.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleReindex handles POST /v1/documents/reindex.
func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	var body ReindexRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(body.Documents) == 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "documents list is empty")
		return
	}
	if len(body.Documents) > maxReindexDocuments {
		writeError(w, http.StatusBadRequest, CodeValidationFailed,
			"documents list exceeds maximum of "+strconv.Itoa(maxReindexDocuments))
		return
	}

	now := time.Now()
	docs := make([]document.Document, 0, len(body.Documents))
	for i := range body.Documents {
		d := body.Documents[i]
		doc, err := document.New(d.EntityType, d.EntityID, d.Title, d.Content, d.Metadata, d.Rank, now)
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		docs = append(docs, doc)
	}

	report := s.indexing.Reindex(r.Context(), docs)
	writeJSON(w, http.StatusOK, ReindexResponse{
		Processed:  report.Processed,
		Successful: report.Successful,
		Failed:     report.Failed,
		FailedKeys: report.FailedKeys,
		DurationMS: report.Duration.Milliseconds(),
	})
}

// handleClick handles POST /v1/analytics/clicks.
func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	var body ClickRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if body.QueryLogID == "" || body.EntityType == "" || body.EntityID == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed,
			"queryLogId, entityType, and entityId are required")
		return
	}

	click := analytics.ResultClick{
		ID:         uuid.NewString(),
		QueryLogID: body.QueryLogID,
		EntityType: body.EntityType,
		EntityID:   body.EntityID,
		Position:   body.Position,
		At:         time.Now(),
	}
	if err := s.clicks.AppendClick(r.Context(), click); err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"id": click.ID})
}

// handleHealth handles GET /healthz. The keyword backend being down makes the
// whole service unavailable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	status := http.StatusOK
	if report.Status == healthuc.StatusError {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func documentToResponse(doc document.Document) DocumentResponse {
	return DocumentResponse{
		EntityType: doc.EntityType(),
		EntityID:   doc.EntityID(),
		Title:      doc.Title(),
		Metadata:   doc.Metadata(),
		Rank:       doc.Rank(),
		VectorRef:  doc.VectorRef(),
		CreatedAt:  doc.CreatedAt(),
		UpdatedAt:  doc.UpdatedAt(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidRequest,
		domain.ErrDocumentNotFound,
		domain.ErrNotFound,
		domain.ErrBackendUnavailable,
		domain.ErrUpstreamTimeout,
		domain.ErrEmbeddingProviderError,
		domain.ErrSemanticDisabled,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
