// Package vision implements the Vision enricher (spec §4.5): OCR and layout
// on image/slide Figure blocks. The concrete host OCR engine is abstracted
// behind OCRBackend (per spec's Non-goals, "host-specific OCR/ASR/visual-
// captioning implementations... specified only as abstract enricher
// contracts"); GCPBackend is one optional concrete implementation wired per
// the domain stack.
package vision

import (
	"context"
	"os"
	"time"

	"github.com/rivergate/mediareef/internal/domain/content"
	enrichcommon "github.com/rivergate/mediareef/internal/enrich/common"
	"github.com/rivergate/mediareef/internal/jobs/scheduler"
)

const ID = "vision_ocr"

// OCRBackend abstracts the host OCR engine named in the domain stack.
type OCRBackend interface {
	RecognizeText(ctx context.Context, imagePath string) (text string, confidence float64, err error)
}

// Enricher runs OCR over Figure/Table blocks whose Text holds an image path.
type Enricher struct {
	Backend OCRBackend
	timeout time.Duration
}

func New(backend OCRBackend, timeout time.Duration) *Enricher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Enricher{Backend: backend, timeout: timeout}
}

func (e *Enricher) ID() string                    { return ID }
func (e *Enricher) JobClass() scheduler.JobClass  { return scheduler.ClassVisionOCR }
func (e *Enricher) Timeout() time.Duration        { return e.timeout }
func (e *Enricher) AllowedRoles() []content.Role {
	return []content.Role{content.RoleFigure, content.RoleTable}
}

func (e *Enricher) Enrich(ctx context.Context, block *content.Block) (enrichcommon.EnrichmentResult, error) {
	text, confidence, err := e.Backend.RecognizeText(ctx, block.Text)
	if err != nil {
		return enrichcommon.EnrichmentResult{}, err
	}
	return enrichcommon.EnrichmentResult{
		OCRConfidence: &confidence,
		ExtractedText: text,
	}, nil
}

// gcpOCRBackend is grounded on the teacher's internal/clients/gcp.Vision
// wrapper (BatchAnnotateImages + FullTextAnnotation), trimmed to local-file
// DOCUMENT_TEXT_DETECTION since ingestors always hand Figure/Table blocks a
// local rendered-bitmap path rather than a GCS URI.
type gcpOCRBackend struct {
	client gcpVisionClient
}

// gcpVisionClient is the narrow slice of *vision.ImageAnnotatorClient this
// package calls, declared as an interface so tests can substitute a fake
// without a live GCP credential.
type gcpVisionClient interface {
	DetectDocumentText(ctx context.Context, imageBytes []byte) (text string, confidence float64, err error)
}

func NewGCPBackend(client gcpVisionClient) OCRBackend {
	return &gcpOCRBackend{client: client}
}

func (b *gcpOCRBackend) RecognizeText(ctx context.Context, imagePath string) (string, float64, error) {
	raw, err := os.ReadFile(imagePath)
	if err != nil {
		return "", 0, err
	}
	return b.client.DetectDocumentText(ctx, raw)
}
