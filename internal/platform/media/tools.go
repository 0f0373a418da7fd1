// Package media wraps the system binaries (pdftoppm, pdfinfo, ffmpeg) used
// by the Slides and Video ingestors to rasterize pages and sample frames.
// It performs no domain logic; callers interpret the resulting file paths.
package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rivergate/mediareef/internal/platform/logger"
)

// Tools is the glue around system binaries required at ingest time.
//
// REQUIRED BINARIES in the runtime environment:
//   - pdftoppm, pdfinfo (poppler-utils) for PDF page rasterization
//   - ffmpeg for video frame sampling
type Tools interface {
	AssertReady(ctx context.Context) error

	CountPDFPages(ctx context.Context, pdfPath string) (int, error)
	RenderPDFPage(ctx context.Context, pdfPath, outDir string, page int, opts PDFRenderOptions) (string, error)

	SampleFrames(ctx context.Context, videoPath, outDir string, opts FrameSampleOptions) ([]string, error)
}

type PDFRenderOptions struct {
	DPI    int
	Format string // "png" or "jpeg"
}

type FrameSampleOptions struct {
	FPS    float64 // frames per second to sample; default 3 (spec default target_fps)
	Width  int
	Format string // "jpg" or "png"
}

type tools struct {
	log *logger.Logger

	pdftoppmPath string
	pdfinfoPath  string
	ffmpegPath   string

	workRoot       string
	defaultTimeout time.Duration
}

func New(log *logger.Logger) Tools {
	return &tools{
		log:            log.With("component", "media.Tools"),
		pdftoppmPath:   "pdftoppm",
		pdfinfoPath:    "pdfinfo",
		ffmpegPath:     "ffmpeg",
		workRoot:       "/tmp/mediareef-media",
		defaultTimeout: 10 * time.Minute,
	}
}

func (t *tools) AssertReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	for _, bin := range []string{t.pdftoppmPath, t.pdfinfoPath, t.ffmpegPath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("missing required binary %q in PATH: %w", bin, err)
		}
	}
	_ = ctx
	return os.MkdirAll(t.workRoot, 0o755)
}

func (t *tools) CountPDFPages(ctx context.Context, pdfPath string) (int, error) {
	if pdfPath == "" {
		return 0, fmt.Errorf("pdfPath required")
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.pdfinfoPath, pdfPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("pdfinfo failed: %w; out=%s", err, string(out))
	}
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		fields := strings.Fields(line)
		if n, err := strconv.Atoi(fields[len(fields)-1]); err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, fmt.Errorf("pdfinfo output missing Pages field")
}

func (t *tools) RenderPDFPage(ctx context.Context, pdfPath, outDir string, page int, opts PDFRenderOptions) (string, error) {
	if pdfPath == "" {
		return "", fmt.Errorf("pdfPath required")
	}
	if page <= 0 {
		return "", fmt.Errorf("page must be >= 1")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir outDir: %w", err)
	}

	dpi := opts.DPI
	if dpi <= 0 {
		dpi = 200
	}
	format := strings.ToLower(opts.Format)
	if format == "" {
		format = "png"
	}

	ctx, cancel := context.WithTimeout(ctx, t.defaultTimeout)
	defer cancel()

	prefix := filepath.Join(outDir, fmt.Sprintf("page_%04d", page))
	args := []string{"-r", strconv.Itoa(dpi)}
	if format == "png" {
		args = append(args, "-png")
	} else {
		args = append(args, "-jpeg")
	}
	args = append(args, "-f", strconv.Itoa(page), "-l", strconv.Itoa(page), pdfPath, prefix)

	cmd := exec.CommandContext(ctx, t.pdftoppmPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("pdftoppm failed: %w; out=%s", err, string(out))
	}

	paths, _ := globSorted(outDir, fmt.Sprintf("^page_%04d-\\d+\\.(png|jpe?g)$", page))
	if len(paths) == 0 {
		return "", fmt.Errorf("no image produced by pdftoppm for page %d", page)
	}
	return paths[0], nil
}

func (t *tools) SampleFrames(ctx context.Context, videoPath, outDir string, opts FrameSampleOptions) ([]string, error) {
	if videoPath == "" {
		return nil, fmt.Errorf("videoPath required")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir outDir: %w", err)
	}

	fps := opts.FPS
	if fps <= 0 {
		fps = 3
	}
	format := strings.ToLower(opts.Format)
	if format == "" {
		format = "jpg"
	}

	ctx, cancel := context.WithTimeout(ctx, t.defaultTimeout)
	defer cancel()

	vf := fmt.Sprintf("fps=%0.6f", fps)
	if opts.Width > 0 {
		vf = vf + fmt.Sprintf(",scale=%d:-1", opts.Width)
	}
	outPattern := filepath.Join(outDir, "frame_%06d."+format)

	cmd := exec.CommandContext(ctx, t.ffmpegPath, "-y", "-i", videoPath, "-vf", vf, outPattern)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg sample frames failed: %w; out=%s", err, string(out))
	}

	frames, _ := globSorted(outDir, "^frame_\\d+\\.(png|jpe?g)$")
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames produced by ffmpeg; out=%s", string(out))
	}
	return frames, nil
}

func globSorted(dir, pattern string) ([]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if re.MatchString(strings.ToLower(e.Name())) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
