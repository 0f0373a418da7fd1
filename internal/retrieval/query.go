package retrieval

import "github.com/rivergate/mediareef/internal/domain/content"

// QueryType selects the routing path per spec §4.10.
type QueryType string

const (
	QueryText         QueryType = "text"
	QueryVisual       QueryType = "visual"
	QueryTimeAnchored QueryType = "time_anchored"
	QueryHybrid       QueryType = "hybrid"
)

// FusionMethod selects the late-fusion algorithm.
type FusionMethod string

const (
	FusionRRF        FusionMethod = "rrf"
	FusionWeightedSum FusionMethod = "weighted_sum"
	FusionCombSUM     FusionMethod = "comb_sum"
)

// Query is the external request shape from spec §6.
type Query struct {
	Text       *string
	ImageBytes []byte
	AudioBytes []byte
	TRange     *content.TimeRange
	K          int
	Scope      *string
	QueryType  QueryType
	Fusion     FusionMethod
	Oversample int
	Weights    map[string]float64 // model_id -> weight, required when Fusion == weighted_sum
}

func (q Query) withDefaults() Query {
	if q.K <= 0 {
		q.K = 10
	}
	if q.Fusion == "" {
		q.Fusion = FusionRRF
	}
	if q.Oversample < 4 {
		q.Oversample = 4
	}
	return q
}
