// Package caption implements the VisualCaption enricher (spec §4.5):
// produces a short natural-language caption and a tag list for Figure
// blocks. The spec explicitly scopes out host-specific captioning models
// (e.g. BLIP) as a Non-goal, specifying only an abstract enricher contract;
// GCPBackend substitutes Vision API label detection, grounded on the same
// vision client this module already wires for OCR, as the domain-stack
// concrete implementation.
package caption

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rivergate/mediareef/internal/domain/content"
	enrichcommon "github.com/rivergate/mediareef/internal/enrich/common"
	"github.com/rivergate/mediareef/internal/jobs/scheduler"
)

const ID = "visual_caption"

// Label is one backend-reported image label with its confidence score.
type Label struct {
	Description string
	Score       float64
}

// Backend abstracts the host visual-captioning engine named in the domain
// stack.
type Backend interface {
	LabelImage(ctx context.Context, imagePath string) ([]Label, error)
}

// Enricher derives a caption and tag set for Figure blocks from an ordered
// label list: the tags are the labels themselves, and the caption is a
// simple natural-language join of the top-scoring ones, since the spec
// Non-goal excludes a dedicated captioning model.
type Enricher struct {
	Backend  Backend
	MaxTags  int
	timeout  time.Duration
}

func New(backend Backend, maxTags int, timeout time.Duration) *Enricher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if maxTags <= 0 {
		maxTags = 5
	}
	return &Enricher{Backend: backend, MaxTags: maxTags, timeout: timeout}
}

func (e *Enricher) ID() string                   { return ID }
func (e *Enricher) JobClass() scheduler.JobClass { return scheduler.ClassVisualCaption }
func (e *Enricher) Timeout() time.Duration       { return e.timeout }
func (e *Enricher) AllowedRoles() []content.Role {
	return []content.Role{content.RoleFigure}
}

func (e *Enricher) Enrich(ctx context.Context, block *content.Block) (enrichcommon.EnrichmentResult, error) {
	labels, err := e.Backend.LabelImage(ctx, block.Text)
	if err != nil {
		return enrichcommon.EnrichmentResult{}, err
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i].Score > labels[j].Score })

	n := e.MaxTags
	if n > len(labels) {
		n = len(labels)
	}
	tags := make([]string, 0, n)
	for _, l := range labels[:n] {
		tags = append(tags, l.Description)
	}

	caption := ""
	if len(tags) > 0 {
		caption = fmt.Sprintf("Image showing %s", strings.Join(tags, ", "))
	}

	return enrichcommon.EnrichmentResult{Caption: caption, Tags: tags}, nil
}

// gcpCaptionBackend is grounded on this module's own vision OCR backend:
// the same ImageAnnotatorClient, a different feature (LABEL_DETECTION)
// instead of DOCUMENT_TEXT_DETECTION.
type gcpCaptionBackend struct {
	client gcpLabelClient
}

// gcpLabelClient is the narrow slice of *vision.ImageAnnotatorClient this
// package calls.
type gcpLabelClient interface {
	DetectLabels(ctx context.Context, imageBytes []byte) ([]Label, error)
}

func NewGCPBackend(client gcpLabelClient) Backend {
	return &gcpCaptionBackend{client: client}
}

func (b *gcpCaptionBackend) LabelImage(ctx context.Context, imagePath string) ([]Label, error) {
	raw, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, err
	}
	return b.client.DetectLabels(ctx, raw)
}
