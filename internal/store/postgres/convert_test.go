package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rivergate/mediareef/internal/domain/content"
)

func TestDocumentRoundTrip(t *testing.T) {
	scope := "proj-1"
	doc, err := content.NewDocument(uuid.New(), "file:///a.mp4", mustHex64(), content.KindVideo, "video/mp4", &scope, time.Now().UTC().Truncate(time.Second))
	require.NoError(t, err)

	row := DocumentToRow(doc)
	back := DocumentFromRow(row)
	assert.Equal(t, doc.ID, back.ID)
	assert.Equal(t, doc.SHA256, back.SHA256)
	assert.Equal(t, doc.Kind, back.Kind)
	assert.Equal(t, *doc.ProjectScope, *back.ProjectScope)
}

func TestSegmentRoundTrip_PreservesTimeAndBbox(t *testing.T) {
	tr := &content.TimeRange{T0: 1000, T1: 5000}
	bbox := &content.BBox{X: 0.1, Y: 0.1, W: 0.2, H: 0.2}
	seg, err := content.NewSegment(uuid.New(), uuid.New(), content.SegmentScene, tr, bbox, 0.9, nil)
	require.NoError(t, err)

	row := SegmentToRow(seg)
	back := SegmentFromRow(row)
	require.NotNil(t, back.Time)
	require.NotNil(t, back.Bbox)
	assert.Equal(t, *tr, *back.Time)
	assert.Equal(t, *bbox, *back.Bbox)
	assert.Equal(t, seg.QualityScore, back.QualityScore)
}

func TestBlockRoundTrip_PreservesContentHash(t *testing.T) {
	segTime := &content.TimeRange{T0: 0, T1: 10000}
	block, err := content.NewBlock(uuid.New(), uuid.New(), content.RoleBullet, "hello world", nil, &content.TimeRange{T0: 100, T1: 200}, nil, segTime, nil)
	require.NoError(t, err)

	row := BlockToRow(block)
	back := BlockFromRow(row)
	assert.Equal(t, block.ContentHash, back.ContentHash)
	assert.Equal(t, block.Text, back.Text)
	require.NotNil(t, back.Time)
	assert.Equal(t, *block.Time, *back.Time)
}

func TestSpeechTurnRoundTrip_PreservesWordTimings(t *testing.T) {
	wt := []content.WordTiming{
		{Word: "hello", Time: content.TimeRange{T0: 0, T1: 100}, Confidence: 0.9},
		{Word: "world", Time: content.TimeRange{T0: 100, T1: 200}, Confidence: 0.95},
	}
	turn, err := content.NewSpeechTurn(uuid.New(), uuid.New(), "speaker-1", "whisper", content.TimeRange{T0: 0, T1: 200}, "hello world", 0.9, wt)
	require.NoError(t, err)

	row, err := SpeechTurnToRow(turn)
	require.NoError(t, err)
	back, err := SpeechTurnFromRow(row)
	require.NoError(t, err)
	require.Len(t, back.WordTimings, 2)
	assert.Equal(t, "hello", back.WordTimings[0].Word)
	assert.Equal(t, turn.Time, back.Time)
}

func TestBlockVectorRoundTrip(t *testing.T) {
	model, err := content.NewEmbeddingModel("e5-small", content.ModalityText, 3, content.MetricCosine, true)
	require.NoError(t, err)
	bv, err := content.NewBlockVector(uuid.New(), model, []float32{0.1, 0.2, 0.3}, content.RoleBullet, time.Now().UTC().Truncate(time.Second))
	require.NoError(t, err)

	row, err := BlockVectorToRow(bv)
	require.NoError(t, err)
	back, err := BlockVectorFromRow(row)
	require.NoError(t, err)
	assert.Equal(t, bv.Vector, back.Vector)
	assert.Equal(t, bv.ModelID, back.ModelID)
}

func TestProvenanceRoundTrip_PreservesChainOrder(t *testing.T) {
	p := content.Provenance{
		BlockID:      uuid.New(),
		IngestorID:   "video_ingestor",
		SourceURI:    "file:///a.mp4",
		SourceSHA256: mustHex64(),
	}
	p = p.Append(content.EnricherStep{EnricherID: "vision", Status: content.EnricherOK})
	p = p.Append(content.EnricherStep{EnricherID: "asr", Status: content.EnricherFailed})

	row, err := ProvenanceToRow(p)
	require.NoError(t, err)
	back, err := ProvenanceFromRow(row)
	require.NoError(t, err)
	require.Len(t, back.EnricherChain, 2)
	assert.Equal(t, "vision", back.EnricherChain[0].EnricherID)
	assert.Equal(t, "asr", back.EnricherChain[1].EnricherID)
}

func mustHex64() string {
	return "abcd1234abcd1234abcd1234abcd1234abcd1234abcd1234abcd1234abcd1234"
}
