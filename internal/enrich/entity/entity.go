// Package entity implements the Entity enricher (spec §4.5): named-entity
// extraction over text-bearing blocks. Per spec §4.5, raw entity values are
// never persisted — only a coarse category and a SHA-256 hash of the
// normalized value survive, so downstream consumers can match repeated
// mentions without recovering the underlying PII. The host NLP engine is
// abstracted behind Backend; GCPBackend is one optional concrete
// implementation wired per the domain stack.
package entity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/rivergate/mediareef/internal/domain/content"
	enrichcommon "github.com/rivergate/mediareef/internal/enrich/common"
	"github.com/rivergate/mediareef/internal/jobs/scheduler"
)

const ID = "entity_extract"

// RawEntity is one entity mention as reported by a backend, before hashing.
type RawEntity struct {
	Value    string
	Category string
}

// Backend abstracts the host NLP engine named in the domain stack.
type Backend interface {
	ExtractEntities(ctx context.Context, text string) ([]RawEntity, error)
}

// Enricher extracts named entities from a block's text, storing only a
// normalized-value hash and coarse category per match.
type Enricher struct {
	Backend Backend
	timeout time.Duration
}

func New(backend Backend, timeout time.Duration) *Enricher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Enricher{Backend: backend, timeout: timeout}
}

func (e *Enricher) ID() string                   { return ID }
func (e *Enricher) JobClass() scheduler.JobClass { return scheduler.ClassEntity }
func (e *Enricher) Timeout() time.Duration       { return e.timeout }
func (e *Enricher) AllowedRoles() []content.Role {
	return []content.Role{content.RoleTitle, content.RoleBullet, content.RoleCaption, content.RoleOther}
}

func (e *Enricher) Enrich(ctx context.Context, block *content.Block) (enrichcommon.EnrichmentResult, error) {
	if strings.TrimSpace(block.Text) == "" {
		return enrichcommon.EnrichmentResult{}, nil
	}
	raw, err := e.Backend.ExtractEntities(ctx, block.Text)
	if err != nil {
		return enrichcommon.EnrichmentResult{}, err
	}

	result := enrichcommon.EnrichmentResult{}
	for _, r := range raw {
		normalized := strings.ToLower(strings.TrimSpace(r.Value))
		if normalized == "" {
			continue
		}
		result.Entities = append(result.Entities, enrichcommon.ExtractedEntity{
			Category:  r.Category,
			ValueHash: hashValue(normalized),
		})
	}
	return result, nil
}

func hashValue(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// gcpEntityBackend is grounded on the vision/speech client shape in this
// module: a narrow interface over the concrete SDK client, with the real
// wiring isolated to gcpclient.go so tests can substitute a fake.
type gcpEntityBackend struct {
	client gcpLanguageClient
}

// gcpLanguageClient is the narrow slice of *language.Client this package
// calls.
type gcpLanguageClient interface {
	AnalyzeEntities(ctx context.Context, text string) ([]RawEntity, error)
}

func NewGCPBackend(client gcpLanguageClient) Backend {
	return &gcpEntityBackend{client: client}
}

func (b *gcpEntityBackend) ExtractEntities(ctx context.Context, text string) ([]RawEntity, error) {
	return b.client.AnalyzeEntities(ctx, text)
}
