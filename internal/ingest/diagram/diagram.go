// Package diagram implements the Diagram ingestor variant (spec §4.3):
// .graphml files become DiagramEntity/DiagramEdge graphs plus a rendered
// overview bitmap; .svg files contribute only label nodes extracted from
// their <text> elements, with the original file referenced directly as the
// visual asset since no SVG rasterizer exists anywhere in the dependency
// stack.
package diagram

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rivergate/mediareef/internal/domain/content"
	"github.com/rivergate/mediareef/internal/ingest/common"
	"github.com/rivergate/mediareef/internal/platform/blobstore"
	"github.com/rivergate/mediareef/internal/platform/logger"
	"github.com/rivergate/mediareef/internal/platform/neo4jdb"
	"github.com/rivergate/mediareef/internal/platform/otelx"
	errs "github.com/rivergate/mediareef/internal/pkg/errors"
	"github.com/rivergate/mediareef/internal/store/graphdb"
)

const IngestorID = "diagram_ingest"

// renderCacheRoot mirrors the slides ingestor's content-addressed render
// cache: rasterized GraphML overviews must stay on disk past this call for
// downstream enrichment/embedding to read them.
const renderCacheRoot = "/tmp/mediareef-render-cache"

// Ingestor parses .svg/.graphml diagram sources.
type Ingestor struct {
	NewID    func() uuid.UUID
	Clock    func() time.Time
	FontPath string          // optional TTF used when rendering GraphML overviews
	Blobs    blobstore.Store // optional; nil skips mirroring the rendered overview to durable storage
	Graph    *neo4jdb.Client // optional; nil skips mirroring GraphML entities/edges into the graph store
	Log      *logger.Logger  // used for the graph mirror's best-effort schema-init warnings
}

func New(fontPath string) *Ingestor {
	return &Ingestor{NewID: uuid.New, Clock: time.Now, FontPath: fontPath}
}

func (ig *Ingestor) Ingest(ctx context.Context, path string) (result *common.Result, err error) {
	docIDForSpan := ig.NewID()
	ctx, span := otelx.StartIngest(ctx, IngestorID, docIDForSpan.String())
	defer func() { otelx.End(span, &err) }()

	sha, err := common.HashFile(path)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &errs.IngestorError{Path: path, Reason: "read diagram source", Err: err}
	}

	started := ig.Clock()
	docID := docIDForSpan
	doc, err := content.NewDocument(docID, path, sha, content.KindDiagram, mimeFor(path), nil, started)
	if err != nil {
		return nil, err
	}
	res := &common.Result{Document: doc, Provenance: map[uuid.UUID]content.Provenance{}}

	seg, err := content.NewSegment(ig.NewID(), docID, content.SegmentDiagram, nil, &content.BBox{X: 0, Y: 0, W: 1, H: 1}, 1.0, nil)
	if err != nil {
		return nil, err
	}
	res.Segments = append(res.Segments, seg)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".graphml":
		ig.ingestGraphML(ctx, raw, path, sha, docID, seg, res)
	case ".svg":
		ig.ingestSVG(raw, path, sha, docID, seg, res)
	default:
		res.Warnings = append(res.Warnings, "unrecognized diagram extension: "+filepath.Ext(path))
	}

	return res, nil
}

func (ig *Ingestor) ingestGraphML(ctx context.Context, raw []byte, path, sha string, docID uuid.UUID, seg *content.Segment, res *common.Result) {
	nodes, edges, err := parseGraphML(raw)
	if err != nil {
		res.Warnings = append(res.Warnings, "graphml parse failed: "+err.Error())
		return
	}
	if len(nodes) == 0 {
		res.Warnings = append(res.Warnings, "graphml contained no nodes")
		return
	}

	layout := circularLayout(nodes)
	entityIDBySourceID := make(map[string]uuid.UUID, len(nodes))
	entitiesByID := make(map[uuid.UUID]*content.DiagramEntity, len(nodes))

	for i, n := range nodes {
		bbox := nodeBbox(layout[i])
		entity, err := content.NewDiagramEntity(ig.NewID(), docID, n.Label, "node", &bbox)
		if err != nil {
			res.Warnings = append(res.Warnings, "dropped diagram node: "+err.Error())
			continue
		}
		entityIDBySourceID[n.SourceID] = entity.ID
		entitiesByID[entity.ID] = entity
		res.DiagramEntities = append(res.DiagramEntities, entity)

		blk, err := content.NewBlock(ig.NewID(), seg.ID, content.RoleOther, entity.Label, &bbox, nil, nil, seg.Time, seg.Bbox)
		if err != nil {
			res.Warnings = append(res.Warnings, "dropped diagram node block: "+err.Error())
			continue
		}
		res.Blocks = append(res.Blocks, blk)
		res.Provenance[blk.ID] = common.SeedProvenance(blk.ID, IngestorID, path, sha)
	}

	for _, e := range edges {
		srcID, ok1 := entityIDBySourceID[e.SourceNodeID]
		dstID, ok2 := entityIDBySourceID[e.TargetNodeID]
		if !ok1 || !ok2 {
			res.Warnings = append(res.Warnings, "dropped diagram edge: endpoint not in node set")
			continue
		}
		edge, err := content.NewDiagramEdge(ig.NewID(), docID, srcID, dstID, e.Label, e.Directed, entitiesByID)
		if err != nil {
			res.Warnings = append(res.Warnings, "dropped diagram edge: "+err.Error())
			continue
		}
		res.DiagramEdges = append(res.DiagramEdges, edge)
	}

	ig.mirrorDiagramGraph(ctx, docID, res)
	ig.attachRenderedOverview(ctx, nodes, edges, path, sha, seg, res)
}

// mirrorDiagramGraph writes this document's parsed entities/edges into the
// graph store when one is configured, the same best-effort discipline as
// the relational DiagramEntityRepo/DiagramEdgeRepo's Create calls but for
// the derived traversal index rather than the source of truth: a mirror
// failure is a warning, not an ingest failure.
func (ig *Ingestor) mirrorDiagramGraph(ctx context.Context, docID uuid.UUID, res *common.Result) {
	if ig.Graph == nil {
		return
	}
	if err := graphdb.UpsertDiagramGraph(ctx, ig.Graph, ig.Log, docID, res.DiagramEntities, res.DiagramEdges); err != nil {
		res.Warnings = append(res.Warnings, "graph mirror: "+err.Error())
	}
}

func (ig *Ingestor) ingestSVG(raw []byte, path, sha string, docID uuid.UUID, seg *content.Segment, res *common.Result) {
	nodes, err := parseSVGLabels(raw)
	if err != nil {
		res.Warnings = append(res.Warnings, "svg parse failed: "+err.Error())
		return
	}

	for _, n := range nodes {
		entity, err := content.NewDiagramEntity(ig.NewID(), docID, n.Label, "label", nil)
		if err != nil {
			res.Warnings = append(res.Warnings, "dropped diagram label: "+err.Error())
			continue
		}
		res.DiagramEntities = append(res.DiagramEntities, entity)

		blk, err := content.NewBlock(ig.NewID(), seg.ID, content.RoleOther, entity.Label, nil, nil, nil, seg.Time, seg.Bbox)
		if err != nil {
			res.Warnings = append(res.Warnings, "dropped diagram label block: "+err.Error())
			continue
		}
		res.Blocks = append(res.Blocks, blk)
		res.Provenance[blk.ID] = common.SeedProvenance(blk.ID, IngestorID, path, sha)
	}

	fullPage := content.BBox{X: 0, Y: 0, W: 1, H: 1}
	blk, err := content.NewBlock(ig.NewID(), seg.ID, content.RoleFigure, path, &fullPage, nil, nil, seg.Time, seg.Bbox)
	if err != nil {
		res.Warnings = append(res.Warnings, "svg figure block: "+err.Error())
		return
	}
	res.Blocks = append(res.Blocks, blk)
	res.Provenance[blk.ID] = common.SeedProvenance(blk.ID, IngestorID, path, sha)
}

// attachRenderedOverview rasterizes the GraphML graph and records it as a
// Figure block, best-effort like the slides ingestor's page bitmaps.
func (ig *Ingestor) attachRenderedOverview(ctx context.Context, nodes []parsedNode, edges []parsedEdge, path, sha string, seg *content.Segment, res *common.Result) {
	png, err := renderGraph(nodes, edges, ig.FontPath)
	if err != nil {
		res.Warnings = append(res.Warnings, "diagram render: "+err.Error())
		return
	}

	outDir := renderCacheRoot + "/" + sha
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		res.Warnings = append(res.Warnings, "diagram render: mkdir cache dir failed")
		return
	}
	outPath := outDir + "/overview.png"
	if err := os.WriteFile(outPath, png, 0o644); err != nil {
		res.Warnings = append(res.Warnings, "diagram render: write overview failed")
		return
	}

	fullPage := content.BBox{X: 0, Y: 0, W: 1, H: 1}
	blk, err := content.NewBlock(ig.NewID(), seg.ID, content.RoleFigure, outPath, &fullPage, nil, nil, seg.Time, seg.Bbox)
	if err != nil {
		res.Warnings = append(res.Warnings, "diagram overview block: "+err.Error())
		return
	}
	res.Blocks = append(res.Blocks, blk)
	res.Provenance[blk.ID] = common.SeedProvenance(blk.ID, IngestorID, path, sha)
	ig.mirrorRenderedOverview(ctx, sha, outPath, res)
}

// mirrorRenderedOverview copies the rasterized GraphML overview to durable
// blob storage when a Store is configured, following the same best-effort
// discipline as video's kept frames and slides' page bitmaps: a mirror
// failure is a warning, not an ingest failure.
func (ig *Ingestor) mirrorRenderedOverview(ctx context.Context, sha, outPath string, res *common.Result) {
	if ig.Blobs == nil {
		return
	}
	f, err := os.Open(outPath)
	if err != nil {
		res.Warnings = append(res.Warnings, "blob mirror: open overview: "+err.Error())
		return
	}
	defer f.Close()
	key := "diagram/" + sha + "/overview.png"
	if err := ig.Blobs.Put(ctx, key, f); err != nil {
		res.Warnings = append(res.Warnings, "blob mirror: put overview: "+err.Error())
	}
}

func nodeBbox(n layoutNode) content.BBox {
	const side = 0.07
	x := clampRange(n.cx/canvasSize-side/2, side)
	y := clampRange(n.cy/canvasSize-side/2, side)
	return content.BBox{X: x, Y: y, W: side, H: side}
}

// clampRange keeps x within [0, 1-side] so x+side never exceeds 1.
func clampRange(x, side float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1-side {
		return 1 - side
	}
	return x
}

func mimeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".svg":
		return "image/svg+xml"
	case ".graphml":
		return "application/graphml+xml"
	default:
		return "application/octet-stream"
	}
}
