package vision

import (
	"context"
	"fmt"
	"strings"

	visionapi "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
)

// realVisionClient adapts *visionapi.ImageAnnotatorClient to gcpVisionClient,
// grounded directly on the teacher's OCRImageBytes (BatchAnnotateImages with
// a single DOCUMENT_TEXT_DETECTION request, confidence averaged over block
// annotations).
type realVisionClient struct {
	client *visionapi.ImageAnnotatorClient
}

// NewRealGCPClient dials the Vision API using default application
// credentials, matching the teacher's NewVision construction pattern.
func NewRealGCPClient(ctx context.Context) (OCRBackend, func() error, error) {
	client, err := visionapi.NewImageAnnotatorClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("vision client: %w", err)
	}
	backend := NewGCPBackend(&realVisionClient{client: client})
	return backend, client.Close, nil
}

func (c *realVisionClient) DetectDocumentText(ctx context.Context, imageBytes []byte) (string, float64, error) {
	req := &visionpb.AnnotateImageRequest{
		Image:    &visionpb.Image{Content: imageBytes},
		Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
	}
	resp, err := c.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{req},
	})
	if err != nil {
		return "", 0, fmt.Errorf("vision BatchAnnotateImages: %w", err)
	}
	if len(resp.GetResponses()) == 0 {
		return "", 0, nil
	}
	r0 := resp.GetResponses()[0]
	if r0.GetError() != nil && r0.GetError().GetMessage() != "" {
		return "", 0, fmt.Errorf("vision annotate error: %s", r0.GetError().GetMessage())
	}

	fta := r0.GetFullTextAnnotation()
	if fta == nil || strings.TrimSpace(fta.GetText()) == "" {
		return "", 0, nil
	}

	var confSum float64
	var confN int
	for _, page := range fta.GetPages() {
		for _, blk := range page.GetBlocks() {
			if blk.GetConfidence() > 0 {
				confSum += float64(blk.GetConfidence())
				confN++
			}
		}
	}
	confidence := 0.0
	if confN > 0 {
		confidence = confSum / float64(confN)
	}
	return strings.TrimSpace(fta.GetText()), confidence, nil
}
