package repos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rivergate/mediareef/internal/domain/content"
	"github.com/rivergate/mediareef/internal/pkg/dbctx"
	"github.com/rivergate/mediareef/internal/store/repos/testutil"
)

func newDBC(tb testing.TB) dbctx.Context {
	tb.Helper()
	db := testutil.DB(tb)
	tx := testutil.Tx(tb, db)
	return dbctx.Context{Ctx: context.Background(), Tx: tx}
}

func TestDocumentRepo_CreateAndGetBySHA256(t *testing.T) {
	dbc := newDBC(t)
	log := testutil.Logger(t)
	repo := NewDocumentRepo(dbc.Tx, log)

	sha := "11112222333344445555666677778888999900001111222233334444555566"
	doc, err := content.NewDocument(uuid.New(), "file:///talk.mp4", sha, content.KindVideo, "video/mp4", nil, time.Now().UTC())
	require.NoError(t, err)

	created, err := repo.Create(dbc, doc)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, created.ID)

	found, err := repo.GetBySHA256(dbc, sha)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, found.ID)
}

func TestDocumentRepo_DeleteCascadesToSegmentsAndBlocks(t *testing.T) {
	dbc := newDBC(t)
	log := testutil.Logger(t)
	docRepo := NewDocumentRepo(dbc.Tx, log)
	segRepo := NewSegmentRepo(dbc.Tx, log)
	blockRepo := NewBlockRepo(dbc.Tx, log)

	sha := "aaaa1111bbbb2222cccc3333dddd4444eeee5555ffff6666aaaa7777bbbb8888"
	doc, err := content.NewDocument(uuid.New(), "file:///slides.pdf", sha, content.KindSlides, "application/pdf", nil, time.Now().UTC())
	require.NoError(t, err)
	doc, err = docRepo.Create(dbc, doc)
	require.NoError(t, err)

	segTime := &content.TimeRange{T0: 0, T1: 10000}
	seg, err := content.NewSegment(uuid.New(), doc.ID, content.SegmentSlide, segTime, nil, 1.0, nil)
	require.NoError(t, err)
	segs, err := segRepo.Create(dbc, []*content.Segment{seg})
	require.NoError(t, err)
	require.Len(t, segs, 1)

	block, err := content.NewBlock(uuid.New(), segs[0].ID, content.RoleTitle, "Intro", nil, nil, nil, segTime, nil)
	require.NoError(t, err)
	_, err = blockRepo.Create(dbc, []*content.Block{block})
	require.NoError(t, err)

	require.NoError(t, docRepo.Delete(dbc, doc.ID))

	remaining, err := segRepo.GetByDocumentID(dbc, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestBlockRepo_CreateIsIdempotentOnContentHash(t *testing.T) {
	dbc := newDBC(t)
	log := testutil.Logger(t)
	docRepo := NewDocumentRepo(dbc.Tx, log)
	segRepo := NewSegmentRepo(dbc.Tx, log)
	blockRepo := NewBlockRepo(dbc.Tx, log)

	sha := "0000aaaa1111bbbb2222cccc3333dddd4444eeee5555ffff6666aaaa7777bbbb"
	doc, err := content.NewDocument(uuid.New(), "file:///doc.pdf", sha, content.KindDocument, "application/pdf", nil, time.Now().UTC())
	require.NoError(t, err)
	doc, err = docRepo.Create(dbc, doc)
	require.NoError(t, err)

	seg, err := content.NewSegment(uuid.New(), doc.ID, content.SegmentSpeech, &content.TimeRange{T0: 0, T1: 1000}, nil, 1.0, nil)
	require.NoError(t, err)
	segs, err := segRepo.Create(dbc, []*content.Segment{seg})
	require.NoError(t, err)

	block, err := content.NewBlock(uuid.New(), segs[0].ID, content.RoleBullet, "same text", nil, nil, nil, &content.TimeRange{T0: 0, T1: 1000}, nil)
	require.NoError(t, err)

	_, err = blockRepo.Create(dbc, []*content.Block{block})
	require.NoError(t, err)

	duplicate, err := content.NewBlock(uuid.New(), segs[0].ID, content.RoleBullet, "same text", nil, nil, nil, &content.TimeRange{T0: 0, T1: 1000}, nil)
	require.NoError(t, err)
	_, err = blockRepo.Create(dbc, []*content.Block{duplicate})
	require.NoError(t, err)

	all, err := blockRepo.GetBySegmentID(dbc, segs[0].ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMetaProvider_GetBlocksMeta_ResolvesDocumentAndSegmentFields(t *testing.T) {
	dbc := newDBC(t)
	log := testutil.Logger(t)
	docRepo := NewDocumentRepo(dbc.Tx, log)
	segRepo := NewSegmentRepo(dbc.Tx, log)
	blockRepo := NewBlockRepo(dbc.Tx, log)
	provRepo := NewProvenanceRepo(dbc.Tx, log)

	scope := "proj-x"
	sha := "9999888877776666555544443333222211110000ffffeeeeddddccccbbbbaaaa"
	doc, err := content.NewDocument(uuid.New(), "file:///v.mp4", sha, content.KindVideo, "video/mp4", &scope, time.Now().UTC())
	require.NoError(t, err)
	doc, err = docRepo.Create(dbc, doc)
	require.NoError(t, err)

	seg, err := content.NewSegment(uuid.New(), doc.ID, content.SegmentScene, &content.TimeRange{T0: 0, T1: 5000}, nil, 1.0, &scope)
	require.NoError(t, err)
	segs, err := segRepo.Create(dbc, []*content.Segment{seg})
	require.NoError(t, err)

	block, err := content.NewBlock(uuid.New(), segs[0].ID, content.RoleCaption, "a figure caption", nil, nil, nil, &content.TimeRange{T0: 0, T1: 5000}, nil)
	require.NoError(t, err)
	blocks, err := blockRepo.Create(dbc, []*content.Block{block})
	require.NoError(t, err)

	prov := content.Provenance{BlockID: blocks[0].ID, IngestorID: "video_ingestor", SourceURI: doc.URI, SourceSHA256: doc.SHA256}
	prov = prov.Append(content.EnricherStep{EnricherID: "vision", Status: content.EnricherOK})
	require.NoError(t, provRepo.Upsert(dbc, prov))

	mp := NewMetaProvider(dbc.Tx, log)
	metas, err := mp.GetBlocksMeta(context.Background(), []uuid.UUID{blocks[0].ID})
	require.NoError(t, err)
	require.Contains(t, metas, blocks[0].ID)

	meta := metas[blocks[0].ID]
	assert.Equal(t, scope, *meta.ProjectScope)
	assert.Equal(t, doc.URI, meta.URI)
	assert.Equal(t, content.ModalityImage, meta.Modality)
	require.Len(t, meta.ProviderChain, 1)
	assert.Equal(t, "vision", meta.ProviderChain[0].EnricherID)
}
