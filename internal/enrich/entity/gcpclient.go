package entity

import (
	"context"
	"fmt"

	language "cloud.google.com/go/language/apiv1"
	languagepb "cloud.google.com/go/language/apiv1/languagepb"
)

// realLanguageClient adapts *language.Client to gcpLanguageClient via
// AnalyzeEntities, the natural-language counterpart to this module's
// vision/speech GCP adapters.
type realLanguageClient struct {
	client *language.Client
}

// NewRealGCPClient dials the Natural Language API using default application
// credentials.
func NewRealGCPClient(ctx context.Context) (Backend, func() error, error) {
	client, err := language.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("language client: %w", err)
	}
	backend := NewGCPBackend(&realLanguageClient{client: client})
	return backend, client.Close, nil
}

func (c *realLanguageClient) AnalyzeEntities(ctx context.Context, text string) ([]RawEntity, error) {
	req := &languagepb.AnalyzeEntitiesRequest{
		Document: &languagepb.Document{
			Source: &languagepb.Document_Content{Content: text},
			Type:   languagepb.Document_PLAIN_TEXT,
		},
		EncodingType: languagepb.EncodingType_UTF8,
	}
	resp, err := c.client.AnalyzeEntities(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("language AnalyzeEntities: %w", err)
	}

	out := make([]RawEntity, 0, len(resp.GetEntities()))
	for _, ent := range resp.GetEntities() {
		out = append(out, RawEntity{
			Value:    ent.GetName(),
			Category: entityTypeLabel(ent.GetType()),
		})
	}
	return out, nil
}

func entityTypeLabel(t languagepb.Entity_Type) string {
	switch t {
	case languagepb.Entity_PERSON:
		return "person"
	case languagepb.Entity_LOCATION:
		return "location"
	case languagepb.Entity_ORGANIZATION:
		return "organization"
	case languagepb.Entity_EVENT:
		return "event"
	case languagepb.Entity_WORK_OF_ART:
		return "work_of_art"
	case languagepb.Entity_CONSUMER_GOOD:
		return "consumer_good"
	case languagepb.Entity_DATE:
		return "date"
	case languagepb.Entity_NUMBER:
		return "number"
	case languagepb.Entity_PRICE:
		return "price"
	default:
		return "other"
	}
}
