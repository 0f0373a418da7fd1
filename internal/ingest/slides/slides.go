// Package slides implements the Slides ingestor variant (spec §4.3): one
// Slide segment per page, one Block per extracted text region in reading
// order, plus a rendered full-page bitmap Block for visual embedding.
package slides

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"github.com/rivergate/mediareef/internal/domain/content"
	"github.com/rivergate/mediareef/internal/ingest/common"
	"github.com/rivergate/mediareef/internal/platform/blobstore"
	"github.com/rivergate/mediareef/internal/platform/media"
	"github.com/rivergate/mediareef/internal/platform/otelx"
	errs "github.com/rivergate/mediareef/internal/pkg/errors"
)

const IngestorID = "slides_ingest"

// Layout is the optional DocumentAI-shaped structured-layout backend. When
// present and it succeeds on a page, its regions take precedence over the
// native PDF text layer; when absent or it errors, the ingestor falls back
// to ledongthuc/pdf extraction (spec's "best-effort native-text fallback").
type Layout interface {
	ExtractPage(ctx context.Context, pdfPath string, page int) ([]LayoutRegion, error)
}

// LayoutRegion is one structured region reported by a Layout backend,
// already classified (DocumentAI's layout parser tags tables directly,
// covering the spec's "Table = extractor-tagged" rule).
type LayoutRegion struct {
	Text string
	Role content.Role
	Bbox content.BBox
}

// Ingestor parses .pdf/.key slide decks.
type Ingestor struct {
	NewID func() uuid.UUID
	Clock func() time.Time
	Tools media.Tools // optional; nil disables page-bitmap rendering
	DocAI Layout      // optional; nil disables structured-layout extraction
	Blobs blobstore.Store // optional; nil skips mirroring rendered page bitmaps to durable storage
}

func New(tools media.Tools, docai Layout) *Ingestor {
	return &Ingestor{NewID: uuid.New, Clock: time.Now, Tools: tools, DocAI: docai}
}

func (ig *Ingestor) Ingest(ctx context.Context, path string) (result *common.Result, err error) {
	docIDForSpan := ig.NewID()
	ctx, span := otelx.StartIngest(ctx, IngestorID, docIDForSpan.String())
	defer func() { otelx.End(span, &err) }()

	sha, err := common.HashFile(path)
	if err != nil {
		return nil, err
	}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, &errs.IngestorError{Path: path, Reason: "open PDF", Err: err}
	}
	defer f.Close()

	started := ig.Clock()
	docID := docIDForSpan
	doc, err := content.NewDocument(docID, path, sha, content.KindSlides, "application/pdf", nil, started)
	if err != nil {
		return nil, err
	}

	res := &common.Result{Document: doc, Provenance: map[uuid.UUID]content.Provenance{}}

	total := reader.NumPage()
	if total == 0 {
		return res, nil
	}

	for p := 1; p <= total; p++ {
		if err := ig.ingestPage(ctx, path, reader, p, docID, sha, res); err != nil {
			res.Warnings = append(res.Warnings, "dropped slide page: "+err.Error())
		}
	}
	return res, nil
}

func (ig *Ingestor) ingestPage(ctx context.Context, path string, reader *pdf.Reader, pageNum int, docID uuid.UUID, sha string, res *common.Result) error {
	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return nil // blank/missing page: no segment emitted
	}

	seg, err := content.NewSegment(ig.NewID(), docID, content.SegmentSlide, nil, &content.BBox{X: 0, Y: 0, W: 1, H: 1}, 1.0, nil)
	if err != nil {
		return err
	}
	res.Segments = append(res.Segments, seg)

	regions := ig.regionsForPage(ctx, path, page, pageNum)

	maxFont := 0.0
	fontSizes := make([]float64, 0, len(regions))
	for _, r := range regions {
		if r.layout == nil && r.native.fontSize > maxFont {
			maxFont = r.native.fontSize
		}
		if r.layout == nil {
			fontSizes = append(fontSizes, r.native.fontSize)
		}
	}
	titleThreshold := percentile(fontSizes, 0.75)

	for _, r := range regions {
		role, text, bbox := classifyRegion(r, maxFont, titleThreshold)
		if text == "" {
			continue
		}
		blk, err := content.NewBlock(ig.NewID(), seg.ID, role, text, &bbox, nil, nil, seg.Time, seg.Bbox)
		if err != nil {
			res.Warnings = append(res.Warnings, "dropped slide block: "+err.Error())
			continue
		}
		res.Blocks = append(res.Blocks, blk)
		res.Provenance[blk.ID] = common.SeedProvenance(blk.ID, IngestorID, path, sha)
	}

	ig.attachPageBitmap(ctx, path, pageNum, seg, sha, res)
	return nil
}

// region is either a structured LayoutRegion or a native textRegion,
// discriminated by which pointer is non-nil.
type region struct {
	layout *LayoutRegion
	native textRegion
	bounds [4]float64 // minX, minY, maxX, maxY of the page the native region came from
}

func (ig *Ingestor) regionsForPage(ctx context.Context, path string, page pdf.Page, pageNum int) []region {
	if ig.DocAI != nil {
		if layoutRegions, err := ig.DocAI.ExtractPage(ctx, path, pageNum); err == nil && len(layoutRegions) > 0 {
			out := make([]region, 0, len(layoutRegions))
			for _, lr := range layoutRegions {
				lr := lr
				out = append(out, region{layout: &lr})
			}
			return out
		}
	}

	native := extractPageTextRegions(page)
	minX, minY, maxX, maxY := pageBounds(native)
	out := make([]region, 0, len(native))
	for _, n := range native {
		out = append(out, region{native: n, bounds: [4]float64{minX, minY, maxX, maxY}})
	}
	return out
}

func classifyRegion(r region, maxFont, titleThreshold float64) (content.Role, string, content.BBox) {
	if r.layout != nil {
		return r.layout.Role, r.layout.Text, r.layout.Bbox
	}

	n := r.native
	minX, minY, maxX, maxY := r.bounds[0], r.bounds[1], r.bounds[2], r.bounds[3]
	bbox := normalizeBBox(n.x, n.y, n.w, minX, minY, maxX, maxY)

	switch {
	case hasBulletPrefix(n.text):
		return content.RoleBullet, n.text, bbox
	case isMonospace(n.fontName):
		return content.RoleCode, n.text, bbox
	case n.fontSize >= maxFont-1e-9 || n.fontSize >= titleThreshold:
		return content.RoleTitle, n.text, bbox
	default:
		return content.RoleOther, n.text, bbox
	}
}

func normalizeBBox(x, y, w, minX, minY, maxX, maxY float64) content.BBox {
	spanX := maxX - minX
	spanY := maxY - minY
	if spanX <= 0 {
		spanX = 1
	}
	if spanY <= 0 {
		spanY = 1
	}
	nx := clamp01((x - minX) / spanX)
	nw := clamp01(w / spanX)
	if nx+nw > 1 {
		nw = 1 - nx
	}
	// PDF Y grows upward from the bottom; segment bbox Y grows downward from
	// the top, so invert around the observed vertical span.
	ny := clamp01((maxY - y) / spanY)
	nh := 0.02
	if ny+nh > 1 {
		nh = 1 - ny
	}
	return content.BBox{X: nx, Y: ny, W: nw, H: nh}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

// renderCacheRoot holds rasterized page/frame bitmaps keyed by document
// sha256, so a Figure block's Text (a filesystem path used as its asset
// reference) stays valid for downstream enrichment/embedding instead of
// being cleaned up as ingestion scratch space. Re-ingesting identical bytes
// reuses the same cache directory, keeping rendering idempotent.
const renderCacheRoot = "/tmp/mediareef-render-cache"

// attachPageBitmap renders the full page to an image and records it as a
// Figure block for downstream visual embedding. Rendering is best-effort:
// a missing Tools implementation or a rendering failure is recorded as a
// warning rather than aborting the page (spec §4.3 "any error in one
// segment does not abort the whole document").
func (ig *Ingestor) attachPageBitmap(ctx context.Context, path string, pageNum int, seg *content.Segment, sha string, res *common.Result) {
	if ig.Tools == nil {
		return
	}
	outDir := renderCacheRoot + "/" + sha
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		res.Warnings = append(res.Warnings, "slide bitmap render: mkdir cache dir failed")
		return
	}

	imgPath, err := ig.Tools.RenderPDFPage(ctx, path, outDir, pageNum, media.PDFRenderOptions{})
	if err != nil {
		res.Warnings = append(res.Warnings, "slide bitmap render: "+err.Error())
		return
	}

	fullPage := content.BBox{X: 0, Y: 0, W: 1, H: 1}
	blk, err := content.NewBlock(ig.NewID(), seg.ID, content.RoleFigure, imgPath, &fullPage, nil, nil, seg.Time, seg.Bbox)
	if err != nil {
		res.Warnings = append(res.Warnings, "slide bitmap block: "+err.Error())
		return
	}
	res.Blocks = append(res.Blocks, blk)
	res.Provenance[blk.ID] = common.SeedProvenance(blk.ID, IngestorID, path, sha)
	ig.mirrorRenderedBitmap(ctx, sha, imgPath, res)
}

// mirrorRenderedBitmap copies a rendered page bitmap to durable blob storage
// when a Store is configured, the same best-effort discipline video.Ingestor
// applies to its kept representative frames: a mirror failure is a warning,
// not an ingest failure, since the local render-cache file still exists for
// downstream enrichment to read directly.
func (ig *Ingestor) mirrorRenderedBitmap(ctx context.Context, sha, imgPath string, res *common.Result) {
	if ig.Blobs == nil {
		return
	}
	f, err := os.Open(imgPath)
	if err != nil {
		res.Warnings = append(res.Warnings, "blob mirror: open page bitmap: "+err.Error())
		return
	}
	defer f.Close()
	key := "slides/" + sha + "/" + filepath.Base(imgPath)
	if err := ig.Blobs.Put(ctx, key, f); err != nil {
		res.Warnings = append(res.Warnings, "blob mirror: put page bitmap: "+err.Error())
	}
}
