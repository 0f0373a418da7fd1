package content

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	errs "github.com/rivergate/mediareef/internal/pkg/errors"
)

func TestNewDocument_RejectsShortHash(t *testing.T) {
	_, err := NewDocument(uuid.New(), "file:///a.pdf", "deadbeef", KindSlides, "application/pdf", nil, time.Now())
	require.Error(t, err)
	var ie *errs.InvalidEntity
	require.ErrorAs(t, err, &ie)
	require.Equal(t, "sha256", ie.Field)
}

func TestNewSegment_RequiresTimeOrBboxForSlides(t *testing.T) {
	_, err := NewSegment(uuid.New(), uuid.New(), SegmentSlide, nil, nil, 0.5, nil)
	require.Error(t, err)
}

func TestNewSegment_TimeOrderInvariant(t *testing.T) {
	bad := &TimeRange{T0: 10, T1: 5}
	_, err := NewSegment(uuid.New(), uuid.New(), SegmentScene, bad, nil, 0.5, nil)
	require.Error(t, err)
}

func TestNewBlock_BboxMustBeContainedInSegment(t *testing.T) {
	segBbox := BBox{X: 0.1, Y: 0.1, W: 0.2, H: 0.2}
	outside := BBox{X: 0.5, Y: 0.5, W: 0.1, H: 0.1}
	_, err := NewBlock(uuid.New(), uuid.New(), RoleTitle, "hi", &outside, nil, nil, nil, &segBbox)
	require.Error(t, err)

	inside := BBox{X: 0.15, Y: 0.15, W: 0.05, H: 0.05}
	b, err := NewBlock(uuid.New(), uuid.New(), RoleTitle, "hi", &inside, nil, nil, nil, &segBbox)
	require.NoError(t, err)
	require.NotEmpty(t, b.ContentHash)
}

func TestContentHash_DeterministicAndFieldSensitive(t *testing.T) {
	h1 := ContentHash(RoleTitle, "Methods", nil, nil)
	h2 := ContentHash(RoleTitle, "Methods", nil, nil)
	require.Equal(t, h1, h2)

	h3 := ContentHash(RoleTitle, "Results", nil, nil)
	require.NotEqual(t, h1, h3)
}

func TestNewSpeechTurn_ZeroDurationRequiresText(t *testing.T) {
	tr := TimeRange{T0: 5000, T1: 5000}
	_, err := NewSpeechTurn(uuid.New(), uuid.New(), "", "gcp_speech", tr, "", 0.9, nil)
	require.Error(t, err)

	turn, err := NewSpeechTurn(uuid.New(), uuid.New(), "", "gcp_speech", tr, "hello", 0.9, nil)
	require.NoError(t, err)
	require.Equal(t, UnknownSpeaker, turn.SpeakerID)
}

func TestNewSpeechTurn_WordTimingsMustNestAndOrder(t *testing.T) {
	tr := TimeRange{T0: 0, T1: 2000}
	words := []WordTiming{
		{Word: "hello", Time: TimeRange{T0: 0, T1: 500}, Confidence: 0.9},
		{Word: "world", Time: TimeRange{T0: 400, T1: 900}, Confidence: 0.9},
	}
	_, err := NewSpeechTurn(uuid.New(), uuid.New(), "spk1", "gcp_speech", tr, "hello world", 0.9, words)
	require.Error(t, err, "overlapping word timings must be rejected")

	words2 := []WordTiming{
		{Word: "hello", Time: TimeRange{T0: 0, T1: 500}, Confidence: 0.9},
		{Word: "world", Time: TimeRange{T0: 500, T1: 900}, Confidence: 0.9},
	}
	turn, err := NewSpeechTurn(uuid.New(), uuid.New(), "spk1", "gcp_speech", tr, "hello world", 0.9, words2)
	require.NoError(t, err)
	require.Len(t, turn.WordTimings, 2)
}

func TestNewDiagramEdge_RequiresEndpointsInSameDocument(t *testing.T) {
	doc := uuid.New()
	otherDoc := uuid.New()
	a, err := NewDiagramEntity(uuid.New(), doc, "Node A", "process", nil)
	require.NoError(t, err)
	b, err := NewDiagramEntity(uuid.New(), otherDoc, "Node B", "process", nil)
	require.NoError(t, err)

	byID := map[uuid.UUID]*DiagramEntity{a.ID: a, b.ID: b}
	_, err = NewDiagramEdge(uuid.New(), doc, a.ID, b.ID, "flows_to", true, byID)
	require.Error(t, err, "edge endpoints must both belong to the edge's document")
}

func TestBlockVector_DimensionAndRoleChecks(t *testing.T) {
	model, err := NewEmbeddingModel("e5-small-v2", ModalityText, 384, MetricCosine, true)
	require.NoError(t, err)

	_, err = NewBlockVector(uuid.New(), model, make([]float32, 10), RoleTitle, time.Now())
	require.Error(t, err, "dimension mismatch must be rejected")

	_, err = NewBlockVector(uuid.New(), model, make([]float32, 384), RoleFigure, time.Now())
	require.Error(t, err, "text model should reject a pure-figure role")

	bv, err := NewBlockVector(uuid.New(), model, make([]float32, 384), RoleTitle, time.Now())
	require.NoError(t, err)
	require.Equal(t, model.ID, bv.ModelID)
}
