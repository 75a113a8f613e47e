// Package indexing implements the dual-write indexing pipeline: the keyword
// index is authoritative, the semantic index is best effort.
package indexing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/alex-tgk/searchlight/internal/domain"
	"github.com/alex-tgk/searchlight/internal/domain/document"
	"github.com/alex-tgk/searchlight/internal/metrics"
)

// keywordIndex is the authoritative document store contract.
type keywordIndex interface {
	IndexDocument(ctx context.Context, doc document.Document) (document.Document, error)
	GetDocument(ctx context.Context, entityType, entityID string) (document.Document, error)
	RemoveDocument(ctx context.Context, entityType, entityID string) (bool, error)
	SetVectorRef(ctx context.Context, entityType, entityID, vectorRef string) error
	BulkIndex(ctx context.Context, docs []document.Document) map[string]error
}

// semanticIndex is the best-effort vector store contract.
type semanticIndex interface {
	IsEnabled() bool
	IndexDocument(ctx context.Context, doc document.Document) (string, error)
	RemoveVector(ctx context.Context, ref string) (bool, error)
}

// cacheInvalidator orphans cached search pages after index writes.
type cacheInvalidator interface {
	BumpEpoch(ctx context.Context, entityType string) error
}

// Report summarizes a bulk reindex run.
type Report struct {
	Processed  int
	Successful int
	Failed     int
	FailedKeys []string
	Duration   time.Duration
}

// Service is the indexing pipeline.
type Service struct {
	keyword   keywordIndex
	semantic  semanticIndex
	cache     cacheInvalidator
	batchSize int
	logger    *zap.Logger
	now       func() time.Time
}

// New creates an indexing pipeline. batchSize bounds bulk write chunks.
func New(kw keywordIndex, sem semanticIndex, cache cacheInvalidator, batchSize int, logger *zap.Logger) *Service {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Service{
		keyword:   kw,
		semantic:  sem,
		cache:     cache,
		batchSize: batchSize,
		logger:    logger,
		now:       time.Now,
	}
}

// IndexDocument upserts a document into the keyword index and then, best
// effort, into the semantic index. A keyword failure is fatal; a semantic
// failure leaves the document searchable by keyword with no vectorRef, to be
// repaired later by the reconciler.
func (s *Service) IndexDocument(ctx context.Context, doc document.Document) (document.Document, error) {
	stored, err := s.keyword.IndexDocument(ctx, doc)
	if err != nil {
		metrics.IndexedDocumentsTotal.WithLabelValues("error").Inc()
		return document.Document{}, fmt.Errorf("keyword index: %w", err)
	}
	metrics.IndexedDocumentsTotal.WithLabelValues("success").Inc()

	if s.semantic.IsEnabled() {
		stored = s.indexVector(ctx, stored)
	}

	s.invalidate(ctx, stored.EntityType())
	return stored, nil
}

// indexVector embeds and stores the vector, recording the cross-reference.
// All failures are swallowed after a warn log.
func (s *Service) indexVector(ctx context.Context, doc document.Document) document.Document {
	ref, err := s.semantic.IndexDocument(ctx, doc)
	if err != nil {
		s.logger.Warn("semantic index failed, document remains keyword-only",
			zap.String("key", doc.Key()),
			zap.Error(err),
		)
		return doc
	}

	if ref != doc.VectorRef() {
		if err := s.keyword.SetVectorRef(ctx, doc.EntityType(), doc.EntityID(), ref); err != nil {
			s.logger.Warn("vector_ref write failed",
				zap.String("key", doc.Key()),
				zap.Error(err),
			)
			return doc
		}
	}
	return doc.WithVectorRef(ref)
}

// RemoveFromIndex deletes a document. The keyword delete is authoritative;
// vector cleanup is best effort. Returns false when the document was absent.
func (s *Service) RemoveFromIndex(ctx context.Context, entityType, entityID string) (bool, error) {
	var vectorRef string
	doc, err := s.keyword.GetDocument(ctx, entityType, entityID)
	switch {
	case err == nil:
		vectorRef = doc.VectorRef()
	case errors.Is(err, domain.ErrDocumentNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("read before remove: %w", err)
	}

	removed, err := s.keyword.RemoveDocument(ctx, entityType, entityID)
	if err != nil {
		return false, fmt.Errorf("keyword remove: %w", err)
	}

	if removed && vectorRef != "" {
		if _, err := s.semantic.RemoveVector(ctx, vectorRef); err != nil {
			s.logger.Warn("vector cleanup failed",
				zap.String("vector_ref", vectorRef),
				zap.Error(err),
			)
		}
	}

	if removed {
		s.invalidate(ctx, entityType)
	}
	return removed, nil
}

// Reindex bulk-writes documents in fixed-size chunks, continuing past
// per-document failures, and reports counts.
func (s *Service) Reindex(ctx context.Context, docs []document.Document) Report {
	start := s.now()
	report := Report{Processed: len(docs)}
	touched := make(map[string]bool)

	for begin := 0; begin < len(docs); begin += s.batchSize {
		end := begin + s.batchSize
		if end > len(docs) {
			end = len(docs)
		}
		chunk := docs[begin:end]

		failures := s.keyword.BulkIndex(ctx, chunk)
		for key, err := range failures {
			report.FailedKeys = append(report.FailedKeys, key)
			s.logger.Warn("reindex document failed", zap.String("key", key), zap.Error(err))
		}

		for i := range chunk {
			if _, failed := failures[chunk[i].Key()]; failed {
				continue
			}
			report.Successful++
			touched[chunk[i].EntityType()] = true
			if s.semantic.IsEnabled() {
				s.indexVector(ctx, chunk[i])
			}
		}
	}

	report.Failed = len(report.FailedKeys)
	sort.Strings(report.FailedKeys)

	for entityType := range touched {
		s.invalidate(ctx, entityType)
	}

	report.Duration = s.now().Sub(start)
	return report
}

func (s *Service) invalidate(ctx context.Context, entityType string) {
	if err := s.cache.BumpEpoch(ctx, entityType); err != nil {
		s.logger.Warn("cache invalidation failed",
			zap.String("entity_type", entityType),
			zap.Error(err),
		)
	}
}
