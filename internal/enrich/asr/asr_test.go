package asr

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rivergate/mediareef/internal/domain/content"
)

type fakeBackend struct {
	turns []Turn
	err   error
}

func (f *fakeBackend) Transcribe(ctx context.Context, audioPath string) ([]Turn, error) {
	return f.turns, f.err
}

func speechBlock(t *testing.T, segmentT0, segmentT1 int64) *content.Block {
	t.Helper()
	tr := &content.TimeRange{T0: segmentT0, T1: segmentT1}
	b, err := content.NewBlock(uuid.New(), uuid.New(), content.RoleSpeech, "/tmp/audio.wav", nil, tr, nil, tr, nil)
	require.NoError(t, err)
	return b
}

func TestEnricher_AllowedRolesIsSpeechOnly(t *testing.T) {
	e := New(&fakeBackend{}, nil, 0)
	require.Equal(t, []content.Role{content.RoleSpeech}, e.AllowedRoles())
}

func TestEnricher_EnrichProducesOrderedSpeechTurns(t *testing.T) {
	backend := &fakeBackend{turns: []Turn{
		{SpeakerTag: "speaker_2", StartSec: 5, EndSec: 8, Text: "second turn", Confidence: 0.8},
		{SpeakerTag: "speaker_1", StartSec: 0, EndSec: 4, Text: "first turn", Confidence: 0.9},
	}}
	e := New(backend, uuid.New, 0)
	block := speechBlock(t, 1000, 10000)

	result, err := e.Enrich(context.Background(), block)

	require.NoError(t, err)
	require.Len(t, result.SpeechTurns, 2)
	require.Equal(t, "first turn", result.SpeechTurns[0].Text)
	require.Equal(t, int64(1000), result.SpeechTurns[0].Time.T0)
	require.Equal(t, int64(5000), result.SpeechTurns[0].Time.T1)
	require.Equal(t, "second turn", result.SpeechTurns[1].Text)
	require.Equal(t, int64(6000), result.SpeechTurns[1].Time.T0)
	require.Equal(t, int64(9000), result.SpeechTurns[1].Time.T1)
	require.Equal(t, "first turn second turn", result.ExtractedText)
}

func TestEnricher_SkipsInvalidTurnsWithoutFailing(t *testing.T) {
	backend := &fakeBackend{turns: []Turn{
		{SpeakerTag: "speaker_1", StartSec: 0, EndSec: 0, Text: "", Confidence: 0},
		{SpeakerTag: "speaker_1", StartSec: 1, EndSec: 2, Text: "valid", Confidence: 0.7},
	}}
	e := New(backend, uuid.New, 0)
	block := speechBlock(t, 0, 10000)

	result, err := e.Enrich(context.Background(), block)

	require.NoError(t, err)
	require.Len(t, result.SpeechTurns, 1)
	require.Equal(t, "valid", result.SpeechTurns[0].Text)
}

func TestEnricher_BackendErrorPropagates(t *testing.T) {
	e := New(&fakeBackend{err: context.DeadlineExceeded}, uuid.New, 0)
	block := speechBlock(t, 0, 1000)

	_, err := e.Enrich(context.Background(), block)

	require.Error(t, err)
}
