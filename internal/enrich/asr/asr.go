// Package asr implements the ASR enricher (spec §4.5): transcribes Speech
// role blocks into one or more SpeechTurns. The host speech-to-text engine
// is abstracted behind Backend (per spec's Non-goals, ASR implementations
// are specified only as abstract enricher contracts); GCPBackend is one
// optional concrete implementation wired per the domain stack.
package asr

import (
	"context"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rivergate/mediareef/internal/domain/content"
	enrichcommon "github.com/rivergate/mediareef/internal/enrich/common"
	"github.com/rivergate/mediareef/internal/jobs/scheduler"
)

const ID = "asr_transcribe"

// Word is one word-level timing emitted by a transcription backend, using
// seconds-from-clip-start offsets (converted to TimeRange milliseconds by
// the enricher, anchored at the block's own start time).
type Word struct {
	Text       string
	StartSec   float64
	EndSec     float64
	SpeakerTag string
	Confidence float64
}

// Turn is one backend-reported speech turn, already grouped by speaker or
// time window the way the backend prefers.
type Turn struct {
	SpeakerTag string
	StartSec   float64
	EndSec     float64
	Text       string
	Confidence float64
	Words      []Word
}

// Backend abstracts the host ASR engine named in the domain stack.
type Backend interface {
	Transcribe(ctx context.Context, audioPath string) ([]Turn, error)
}

// Enricher transcribes Speech-role blocks whose Text holds an audio file
// path into SpeechTurns anchored inside the block's segment time range.
type Enricher struct {
	Backend Backend
	NewID   func() uuid.UUID
	timeout time.Duration
}

func New(backend Backend, newID func() uuid.UUID, timeout time.Duration) *Enricher {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if newID == nil {
		newID = uuid.New
	}
	return &Enricher{Backend: backend, NewID: newID, timeout: timeout}
}

func (e *Enricher) ID() string                   { return ID }
func (e *Enricher) JobClass() scheduler.JobClass { return scheduler.ClassASR }
func (e *Enricher) Timeout() time.Duration       { return e.timeout }
func (e *Enricher) AllowedRoles() []content.Role {
	return []content.Role{content.RoleSpeech}
}

func (e *Enricher) Enrich(ctx context.Context, block *content.Block) (enrichcommon.EnrichmentResult, error) {
	turns, err := e.Backend.Transcribe(ctx, block.Text)
	if err != nil {
		return enrichcommon.EnrichmentResult{}, err
	}

	var base int64
	if block.Time != nil {
		base = block.Time.T0
	}

	sort.Slice(turns, func(i, j int) bool { return turns[i].StartSec < turns[j].StartSec })

	result := enrichcommon.EnrichmentResult{}
	var full string
	for _, t := range turns {
		tr := content.TimeRange{
			T0: base + int64(t.StartSec*1000),
			T1: base + int64(t.EndSec*1000),
		}
		var words []content.WordTiming
		for _, w := range t.Words {
			words = append(words, content.WordTiming{
				Word: w.Text,
				Time: content.TimeRange{
					T0: base + int64(w.StartSec*1000),
					T1: base + int64(w.EndSec*1000),
				},
				Confidence: w.Confidence,
			})
		}
		speakerID := t.SpeakerTag
		turn, err := content.NewSpeechTurn(e.NewID(), block.SegmentID, speakerID, "asr_backend", tr, t.Text, t.Confidence, words)
		if err != nil {
			continue
		}
		result.SpeechTurns = append(result.SpeechTurns, turn)
		if full != "" {
			full += " "
		}
		full += t.Text
	}
	result.ExtractedText = full
	return result, nil
}

// gcpASRBackend is grounded on the teacher's internal/clients/gcp.Speech
// wrapper (LongRunningRecognize with speaker diarization), trimmed to local
// audio-file bytes since ingestors hand Speech blocks a local extracted
// audio path rather than a GCS URI.
type gcpASRBackend struct {
	client gcpSpeechClient
}

// gcpSpeechClient is the narrow slice of *speech.Client this package calls,
// declared as an interface so tests can substitute a fake without a live
// GCP credential.
type gcpSpeechClient interface {
	Transcribe(ctx context.Context, audio []byte) ([]Turn, error)
}

func NewGCPBackend(client gcpSpeechClient) Backend {
	return &gcpASRBackend{client: client}
}

func (b *gcpASRBackend) Transcribe(ctx context.Context, audioPath string) ([]Turn, error) {
	raw, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, err
	}
	return b.client.Transcribe(ctx, raw)
}
