package caption

import (
	"context"
	"fmt"

	visionapi "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
)

// realVisionLabelClient adapts *visionapi.ImageAnnotatorClient to
// gcpLabelClient via LABEL_DETECTION, reusing the same client type as the
// OCR backend but a distinct feature.
type realVisionLabelClient struct {
	client *visionapi.ImageAnnotatorClient
}

// NewRealGCPClient dials the Vision API using default application
// credentials.
func NewRealGCPClient(ctx context.Context) (Backend, func() error, error) {
	client, err := visionapi.NewImageAnnotatorClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("vision client: %w", err)
	}
	backend := NewGCPBackend(&realVisionLabelClient{client: client})
	return backend, client.Close, nil
}

func (c *realVisionLabelClient) DetectLabels(ctx context.Context, imageBytes []byte) ([]Label, error) {
	req := &visionpb.AnnotateImageRequest{
		Image:    &visionpb.Image{Content: imageBytes},
		Features: []*visionpb.Feature{{Type: visionpb.Feature_LABEL_DETECTION, MaxResults: 10}},
	}
	resp, err := c.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{req},
	})
	if err != nil {
		return nil, fmt.Errorf("vision BatchAnnotateImages: %w", err)
	}
	if len(resp.GetResponses()) == 0 {
		return nil, nil
	}
	r0 := resp.GetResponses()[0]
	if r0.GetError() != nil && r0.GetError().GetMessage() != "" {
		return nil, fmt.Errorf("vision annotate error: %s", r0.GetError().GetMessage())
	}

	out := make([]Label, 0, len(r0.GetLabelAnnotations()))
	for _, l := range r0.GetLabelAnnotations() {
		out = append(out, Label{Description: l.GetDescription(), Score: float64(l.GetScore())})
	}
	return out, nil
}
