// Package document defines the indexed document aggregate.
package document

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/alex-tgk/searchlight/internal/domain"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// MaxContentSize is the maximum document content size in bytes.
const MaxContentSize = 163840 // 160KB

// Document is the indexed document aggregate (immutable value object).
type Document struct {
	entityType string
	entityID   string
	title      string
	content    string
	metadata   domain.Metadata
	rank       float64
	vectorRef  string
	createdAt  time.Time
	updatedAt  time.Time
}

// New validates and creates a Document.
// EntityType/EntityID: ^[a-zA-Z0-9_-]+$, 1-256 chars. Title: non-empty.
// Content: max 160KB. Rank: [0,1].
func New(
	entityType, entityID, title, content string,
	metadata domain.Metadata, rank float64, now time.Time,
) (Document, error) {
	if err := validateIdentifier("entityType", entityType); err != nil {
		return Document{}, err
	}
	if err := validateIdentifier("entityId", entityID); err != nil {
		return Document{}, err
	}
	if strings.TrimSpace(title) == "" {
		return Document{}, fmt.Errorf("%w: title is required", domain.ErrInvalidRequest)
	}
	if len(content) > MaxContentSize {
		return Document{}, fmt.Errorf("%w: content too large (max %d bytes)", domain.ErrInvalidRequest, MaxContentSize)
	}
	if rank < 0 || rank > 1 {
		return Document{}, fmt.Errorf("%w: rank must be in [0,1], got %g", domain.ErrInvalidRequest, rank)
	}

	return Document{
		entityType: entityType,
		entityID:   entityID,
		title:      title,
		content:    content,
		metadata:   metadata,
		rank:       rank,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(
	entityType, entityID, title, content string,
	metadata domain.Metadata, rank float64, vectorRef string,
	createdAt, updatedAt time.Time,
) Document {
	return Document{
		entityType: entityType, entityID: entityID,
		title: title, content: content,
		metadata: metadata, rank: rank, vectorRef: vectorRef,
		createdAt: createdAt, updatedAt: updatedAt,
	}
}

// EntityType returns the document's entity type.
func (d *Document) EntityType() string { return d.entityType }

// EntityID returns the document's entity identifier.
func (d *Document) EntityID() string { return d.entityID }

// Title returns the document title.
func (d *Document) Title() string { return d.title }

// Content returns the searchable text body.
func (d *Document) Content() string { return d.content }

// Metadata returns the opaque metadata payload.
func (d *Document) Metadata() domain.Metadata { return d.metadata }

// Rank returns the popularity boost in [0,1].
func (d *Document) Rank() float64 { return d.rank }

// VectorRef returns the cross-reference to the semantic vector, empty when absent.
func (d *Document) VectorRef() string { return d.vectorRef }

// CreatedAt returns the first-index timestamp.
func (d *Document) CreatedAt() time.Time { return d.createdAt }

// UpdatedAt returns the last-write timestamp.
func (d *Document) UpdatedAt() time.Time { return d.updatedAt }

// Key returns the storage key for this document.
func (d *Document) Key() string {
	return Key(d.entityType, d.entityID)
}

// WithVectorRef returns a copy with the vector cross-reference set.
func (d *Document) WithVectorRef(ref string) Document {
	c := *d
	c.vectorRef = ref
	return c
}

// WithTimestamps returns a copy with the given timestamps (upsert preserves createdAt).
func (d *Document) WithTimestamps(createdAt, updatedAt time.Time) Document {
	c := *d
	c.createdAt = createdAt
	c.updatedAt = updatedAt
	return c
}

// Key builds the storage key for an (entityType, entityID) pair.
func Key(entityType, entityID string) string {
	return domain.KeyPrefixDocument + entityType + ":" + entityID
}

func validateIdentifier(field, v string) error {
	if v == "" {
		return fmt.Errorf("%w: %s is required", domain.ErrInvalidRequest, field)
	}
	if len(v) > 256 {
		return fmt.Errorf("%w: %s too long (max 256)", domain.ErrInvalidRequest, field)
	}
	if !idRegex.MatchString(v) {
		return fmt.Errorf("%w: %s must be alphanumeric with underscores and hyphens", domain.ErrInvalidRequest, field)
	}
	return nil
}
