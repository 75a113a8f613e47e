// Package domain holds the core types and sentinel errors shared across the
// search engine.
package domain

import "errors"

var (
	// ErrBackendUnavailable signals that the keyword backend cannot be reached.
	ErrBackendUnavailable = errors.New("search backend unavailable")
	// ErrUpstreamTimeout signals a remote call that exceeded its deadline.
	ErrUpstreamTimeout = errors.New("upstream timeout")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrDocumentNotFound signals a missing indexed document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrInvalidRequest signals a malformed search or indexing request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrSemanticDisabled signals that the semantic backend is not configured.
	ErrSemanticDisabled = errors.New("semantic search not configured")
)
