package captions

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rivergate/mediareef/internal/domain/content"
)

func deterministicIDs() func() uuid.UUID {
	n := 0
	ids := make([]uuid.UUID, 0, 64)
	for i := 0; i < 64; i++ {
		ids = append(ids, uuid.New())
	}
	return func() uuid.UUID {
		id := ids[n]
		n++
		return id
	}
}

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestIngest_SRT_ProducesSegmentsAndTurns(t *testing.T) {
	srt := "1\n00:00:01,000 --> 00:00:03,500\nHello there.\n\n2\n00:00:04,000 --> 00:00:06,000\nGeneral Kenobi.\n"
	path := writeTemp(t, "talk.srt", srt)

	ig := &Ingestor{NewID: deterministicIDs(), Clock: time.Now}
	res, err := ig.Ingest(context.Background(), path)
	require.NoError(t, err)

	require.Equal(t, content.KindCaptions, res.Document.Kind)
	require.Len(t, res.Segments, 2)
	require.Len(t, res.SpeechTurns, 2)
	require.Len(t, res.Blocks, 2)

	require.Equal(t, int64(1000), res.SpeechTurns[0].Time.T0)
	require.Equal(t, int64(3500), res.SpeechTurns[0].Time.T1)
	require.Equal(t, "Hello there.", res.SpeechTurns[0].Text)
	require.Equal(t, content.UnknownSpeaker, res.SpeechTurns[0].SpeakerID)
}

func TestIngest_VTT_WithInlineWordTimestamps(t *testing.T) {
	vtt := "WEBVTT\n\n00:00:01.000 --> 00:00:03.000\n<00:00:01.500>Hello <00:00:02.200>world\n"
	path := writeTemp(t, "talk.vtt", vtt)

	ig := &Ingestor{NewID: deterministicIDs(), Clock: time.Now}
	res, err := ig.Ingest(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, res.SpeechTurns, 1)

	turn := res.SpeechTurns[0]
	require.Equal(t, "Hello world", turn.Text)
	require.Len(t, turn.WordTimings, 2)
	require.Equal(t, int64(1500), turn.WordTimings[0].Time.T0)
	require.Equal(t, int64(2200), turn.WordTimings[0].Time.T1)
	require.Equal(t, int64(2200), turn.WordTimings[1].Time.T0)
	require.Equal(t, int64(3000), turn.WordTimings[1].Time.T1)
	require.True(t, content.NonOverlapping(res.SpeechTurns))
}

func TestIngest_IsIdempotentOnContentHash(t *testing.T) {
	srt := "1\n00:00:00,000 --> 00:00:01,000\nhi\n"
	path := writeTemp(t, "a.srt", srt)

	ig := New()
	r1, err := ig.Ingest(context.Background(), path)
	require.NoError(t, err)
	r2, err := ig.Ingest(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, r1.Document.SHA256, r2.Document.SHA256)
}

func TestIngest_EmptyFileProducesNoSegments(t *testing.T) {
	path := writeTemp(t, "empty.srt", "")
	ig := New()
	res, err := ig.Ingest(context.Background(), path)
	require.NoError(t, err)
	require.Empty(t, res.Segments)
}
