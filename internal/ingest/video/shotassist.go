package video

import (
	"context"
	"fmt"
	"os"

	videointelligence "cloud.google.com/go/videointelligence/apiv1"
	videointelligencepb "cloud.google.com/go/videointelligence/apiv1/videointelligencepb"

	"github.com/rivergate/mediareef/internal/platform/logger"
)

// ShotAssist is the optional cloud shot-change detector named in the domain
// stack: when configured, its shot boundaries (millisecond offsets) take
// precedence over the local SSIM/perceptual-hash heuristic for locating
// scene cuts, the way the Slides ingestor's Layout backend takes precedence
// over native PDF text extraction.
type ShotAssist interface {
	DetectShotBoundariesMs(ctx context.Context, videoPath string) ([]int64, error)
}

type gcpShotAssist struct {
	log    *logger.Logger
	client *videointelligence.Client
}

func NewGCPShotAssist(ctx context.Context, log *logger.Logger) (ShotAssist, error) {
	client, err := videointelligence.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("videointelligence client: %w", err)
	}
	return &gcpShotAssist{log: log.With("component", "video.gcpShotAssist"), client: client}, nil
}

func (g *gcpShotAssist) Close() error { return g.client.Close() }

func (g *gcpShotAssist) DetectShotBoundariesMs(ctx context.Context, videoPath string) ([]int64, error) {
	raw, err := os.ReadFile(videoPath)
	if err != nil {
		return nil, fmt.Errorf("read video for shot detection: %w", err)
	}

	op, err := g.client.AnnotateVideo(ctx, &videointelligencepb.AnnotateVideoRequest{
		InputContent: raw,
		Features:     []videointelligencepb.Feature{videointelligencepb.Feature_SHOT_CHANGE_DETECTION},
	})
	if err != nil {
		return nil, fmt.Errorf("videointelligence AnnotateVideo: %w", err)
	}
	resp, err := op.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("videointelligence operation: %w", err)
	}

	var boundsMs []int64
	for _, result := range resp.GetAnnotationResults() {
		for _, shot := range result.GetShotAnnotations() {
			if start := shot.GetStartTimeOffset(); start != nil {
				boundsMs = append(boundsMs, start.AsDuration().Milliseconds())
			}
		}
	}
	return boundsMs, nil
}
