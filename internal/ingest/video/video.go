// Package video implements the Video ingestor variant (spec §4.3): frames
// are sampled at target_fps, scene boundaries are detected by dissimilarity
// against the previously kept frame, and the sharpest frame in each scene's
// window is kept as its representative Figure block.
package video

import (
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rivergate/mediareef/internal/domain/content"
	"github.com/rivergate/mediareef/internal/ingest/common"
	"github.com/rivergate/mediareef/internal/platform/blobstore"
	"github.com/rivergate/mediareef/internal/platform/media"
	"github.com/rivergate/mediareef/internal/platform/otelx"
	errs "github.com/rivergate/mediareef/internal/pkg/errors"
)

const IngestorID = "video_ingest"

const renderCacheRoot = "/tmp/mediareef-render-cache"

// Config mirrors spec §6's video.* options.
type Config struct {
	TargetFPS          float64 // default 3
	SceneSSIMThreshold float64 // default 0.55; ssim below this marks a scene boundary
	BestOfWindow       int     // default 5; max frames inspected per scene before forcing a cut
}

func (c Config) withDefaults() Config {
	if c.TargetFPS <= 0 {
		c.TargetFPS = 3
	}
	if c.SceneSSIMThreshold <= 0 {
		c.SceneSSIMThreshold = 0.55
	}
	if c.BestOfWindow <= 0 {
		c.BestOfWindow = 5
	}
	return c
}

// Ingestor parses .mp4/.mov/.avi/.mkv video files.
type Ingestor struct {
	NewID      func() uuid.UUID
	Clock      func() time.Time
	Tools      media.Tools
	Cfg        Config
	ShotAssist ShotAssist     // optional; nil falls back to the local SSIM/hash heuristic
	Blobs      blobstore.Store // optional; nil skips mirroring kept frames to durable storage
}

func New(tools media.Tools, cfg Config, shotAssist ShotAssist) *Ingestor {
	return &Ingestor{NewID: uuid.New, Clock: time.Now, Tools: tools, Cfg: cfg.withDefaults(), ShotAssist: shotAssist}
}

type sampledFrame struct {
	path      string
	t0Ms      int64
	t1Ms      int64
	gray      *image.Gray
	hash      uint64
	laplacian float64
}

func (ig *Ingestor) Ingest(ctx context.Context, path string) (result *common.Result, err error) {
	docIDForSpan := ig.NewID()
	ctx, span := otelx.StartIngest(ctx, IngestorID, docIDForSpan.String())
	defer func() { otelx.End(span, &err) }()

	sha, err := common.HashFile(path)
	if err != nil {
		return nil, err
	}

	started := ig.Clock()
	docID := docIDForSpan
	doc, err := content.NewDocument(docID, path, sha, content.KindVideo, mimeFor(path), nil, started)
	if err != nil {
		return nil, err
	}
	res := &common.Result{Document: doc, Provenance: map[uuid.UUID]content.Provenance{}}

	if ig.Tools == nil {
		res.Warnings = append(res.Warnings, "no media tools configured: frame sampling skipped")
		return res, nil
	}

	outDir := renderCacheRoot + "/" + sha
	framePaths, err := ig.Tools.SampleFrames(ctx, path, outDir, media.FrameSampleOptions{FPS: ig.Cfg.TargetFPS})
	if err != nil {
		res.Warnings = append(res.Warnings, "frame sampling failed: "+err.Error())
		return res, nil // empty file / unreadable video: document with no segments
	}
	if len(framePaths) == 0 {
		return res, nil
	}

	frameDurationMs := int64(1000.0 / ig.Cfg.TargetFPS)

	frames := make([]sampledFrame, 0, len(framePaths))
	for i, fp := range framePaths {
		img, err := decodeImage(fp)
		if err != nil {
			res.Warnings = append(res.Warnings, "dropped unreadable frame: "+err.Error())
			continue
		}
		gray := grayscale(img)
		frames = append(frames, sampledFrame{
			path:      fp,
			t0Ms:      int64(i) * frameDurationMs,
			t1Ms:      int64(i+1) * frameDurationMs,
			gray:      gray,
			hash:      averageHash(img),
			laplacian: laplacianVariance(gray),
		})
	}
	if len(frames) == 0 {
		return res, nil
	}

	scenes := ig.scenesFromShotAssist(ctx, path, frames)
	if scenes == nil {
		scenes = ig.groupScenes(frames)
	}
	for _, scene := range scenes {
		if err := ig.emitScene(ctx, scene, docID, sha, path, res); err != nil {
			res.Warnings = append(res.Warnings, "dropped scene: "+err.Error())
		}
	}
	return res, nil
}

// scenesFromShotAssist splits frames at the shot boundaries reported by the
// optional cloud assist, falling back to nil (triggering the local
// heuristic) when the assist is absent or errors.
func (ig *Ingestor) scenesFromShotAssist(ctx context.Context, path string, frames []sampledFrame) [][]sampledFrame {
	if ig.ShotAssist == nil {
		return nil
	}
	boundsMs, err := ig.ShotAssist.DetectShotBoundariesMs(ctx, path)
	if err != nil || len(boundsMs) == 0 {
		return nil
	}

	boundary := make(map[int]bool, len(boundsMs))
	for _, ms := range boundsMs {
		idx := int(ms / int64(1000.0/ig.Cfg.TargetFPS))
		if idx > 0 && idx < len(frames) {
			boundary[idx] = true
		}
	}

	var scenes [][]sampledFrame
	current := []sampledFrame{frames[0]}
	for i := 1; i < len(frames); i++ {
		if boundary[i] {
			scenes = append(scenes, current)
			current = []sampledFrame{frames[i]}
			continue
		}
		current = append(current, frames[i])
	}
	scenes = append(scenes, current)
	return scenes
}

// groupScenes walks frames in order, starting a new scene whenever the
// current frame's SSIM against the previously kept frame drops below
// SceneSSIMThreshold, its perceptual hash differs from the kept frame's by
// more than 20 bits, or the window cap is reached (spec: "retain per Scene
// the best-of-window frame"). Intervals are constructed half-open and
// contiguous so scenes never overlap.
func (ig *Ingestor) groupScenes(frames []sampledFrame) [][]sampledFrame {
	var scenes [][]sampledFrame
	current := []sampledFrame{frames[0]}
	kept := frames[0]

	for i := 1; i < len(frames); i++ {
		f := frames[i]
		similarity := ssim(kept.gray, f.gray)
		dist := hammingDistance(kept.hash, f.hash)

		boundary := similarity < ig.Cfg.SceneSSIMThreshold || dist > 20 || len(current) >= ig.Cfg.BestOfWindow
		if boundary {
			scenes = append(scenes, current)
			current = []sampledFrame{f}
			kept = f
			continue
		}
		current = append(current, f)
	}
	scenes = append(scenes, current)
	return scenes
}

func (ig *Ingestor) emitScene(ctx context.Context, frames []sampledFrame, docID uuid.UUID, sha, path string, res *common.Result) error {
	tr := content.TimeRange{T0: frames[0].t0Ms, T1: frames[len(frames)-1].t1Ms}
	seg, err := content.NewSegment(ig.NewID(), docID, content.SegmentScene, &tr, nil, 1.0, nil)
	if err != nil {
		return err
	}
	res.Segments = append(res.Segments, seg)

	best := frames[0]
	for _, f := range frames[1:] {
		if f.laplacian > best.laplacian {
			best = f
		}
	}

	blk, err := content.NewBlock(ig.NewID(), seg.ID, content.RoleFigure, best.path, nil, &tr, nil, seg.Time, seg.Bbox)
	if err != nil {
		return err
	}
	res.Blocks = append(res.Blocks, blk)
	res.Provenance[blk.ID] = common.SeedProvenance(blk.ID, IngestorID, path, sha)
	ig.mirrorKeptFrame(ctx, docID, sha, best.path, res)
	return nil
}

// mirrorKeptFrame copies a kept representative frame to durable blob
// storage when a Store is configured, keyed by document sha and frame
// path, so the render cache's kept frames survive past this process the
// same way block_vectors survives past the in-process HNSW graph. A
// mirror failure is a warning, not an ingest failure: the local frame
// file still exists and downstream enrichment reads it directly.
func (ig *Ingestor) mirrorKeptFrame(ctx context.Context, docID uuid.UUID, sha, framePath string, res *common.Result) {
	if ig.Blobs == nil {
		return
	}
	f, err := os.Open(framePath)
	if err != nil {
		res.Warnings = append(res.Warnings, "blob mirror: open frame: "+err.Error())
		return
	}
	defer f.Close()
	key := "video/" + sha + "/" + filepath.Base(framePath)
	if err := ig.Blobs.Put(ctx, key, f); err != nil {
		res.Warnings = append(res.Warnings, "blob mirror: put frame: "+err.Error())
	}
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &errs.IngestorError{Path: path, Reason: "open sampled frame", Err: err}
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &errs.IngestorError{Path: path, Reason: "decode sampled frame", Err: err}
	}
	return img, nil
}

func mimeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mov":
		return "video/quicktime"
	case ".avi":
		return "video/x-msvideo"
	case ".mkv":
		return "video/x-matroska"
	default:
		return "video/mp4"
	}
}
