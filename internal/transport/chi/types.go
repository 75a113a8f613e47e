package chi

import (
	"time"

	"github.com/alex-tgk/searchlight/internal/domain"
	"github.com/alex-tgk/searchlight/internal/domain/search/result"
)

// ErrorCode identifies a machine-readable API error class.
type ErrorCode string

// API error codes.
const (
	CodeBadRequest         ErrorCode = "bad_request"
	CodeValidationFailed   ErrorCode = "validation_failed"
	CodeNotFound           ErrorCode = "not_found"
	CodeDocumentNotFound   ErrorCode = "document_not_found"
	CodeBackendUnavailable ErrorCode = "backend_unavailable"
	CodeUpstreamTimeout    ErrorCode = "upstream_timeout"
	CodeEmbeddingProvider  ErrorCode = "embedding_provider_error"
	CodeSemanticDisabled   ErrorCode = "semantic_disabled"
	CodeInternalError      ErrorCode = "internal_error"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// SearchRequest is the POST /v1/search body.
type SearchRequest struct {
	Query       string            `json:"query"`
	EntityTypes []string          `json:"entityTypes,omitempty"`
	Mode        string            `json:"mode,omitempty"`
	Sort        string            `json:"sort,omitempty"`
	Page        int               `json:"page,omitempty"`
	Limit       int               `json:"limit,omitempty"`
	Fuzzy       *bool             `json:"fuzzy,omitempty"`
	Filters     map[string]string `json:"filters,omitempty"`
	UserID      string            `json:"userId,omitempty"`
}

// SearchResponse wraps a result page with the analytics correlation id.
type SearchResponse struct {
	result.Page
	QueryLogID string `json:"queryLogId,omitempty"`
}

// SuggestionItem is one autocomplete candidate. Score is the decayed
// relevance at response time.
type SuggestionItem struct {
	Term       string    `json:"term"`
	EntityType string    `json:"entityType,omitempty"`
	Frequency  int64     `json:"frequency"`
	Score      float64   `json:"score"`
	LastUsed   time.Time `json:"lastUsed"`
}

// SuggestionsResponse is the GET /v1/suggestions body.
type SuggestionsResponse struct {
	Suggestions []SuggestionItem `json:"suggestions"`
}

// DocumentRequest is the POST /v1/documents body.
type DocumentRequest struct {
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Title      string          `json:"title"`
	Content    string          `json:"content,omitempty"`
	Metadata   domain.Metadata `json:"metadata,omitempty"`
	Rank       float64         `json:"rank,omitempty"`
}

// DocumentResponse echoes the stored document state after indexing.
type DocumentResponse struct {
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Title      string          `json:"title"`
	Metadata   domain.Metadata `json:"metadata,omitempty"`
	Rank       float64         `json:"rank"`
	VectorRef  string          `json:"vectorRef,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// ReindexRequest is the POST /v1/documents/reindex body.
type ReindexRequest struct {
	Documents []DocumentRequest `json:"documents"`
}

// ReindexResponse reports the outcome of a bulk reindex run.
type ReindexResponse struct {
	Processed  int      `json:"processed"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	FailedKeys []string `json:"failedKeys,omitempty"`
	DurationMS int64    `json:"durationMs"`
}

// ClickRequest is the POST /v1/analytics/clicks body.
type ClickRequest struct {
	QueryLogID string `json:"queryLogId"`
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
	Position   int    `json:"position"`
}
