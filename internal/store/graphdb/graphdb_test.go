package graphdb

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rivergate/mediareef/internal/platform/neo4jdb"
)

// No live Neo4j is available in this environment; these tests exercise the
// nil-client no-op contract that lets callers treat the graph store as
// optional infrastructure without special-casing its absence.

func TestUpsertDiagramGraph_NilClientIsNoop(t *testing.T) {
	err := UpsertDiagramGraph(context.Background(), nil, nil, uuid.New(), nil, nil)
	require.NoError(t, err)
}

func TestUpsertDiagramGraph_UnconfiguredClientIsNoop(t *testing.T) {
	client := &neo4jdb.Client{}
	err := UpsertDiagramGraph(context.Background(), client, nil, uuid.New(), nil, nil)
	require.NoError(t, err)
}

func TestDeleteDocumentGraph_NilClientIsNoop(t *testing.T) {
	require.NoError(t, DeleteDocumentGraph(context.Background(), nil, nil, uuid.New()))
}

func TestNeighbors_NilClientReturnsNil(t *testing.T) {
	neighbors, err := Neighbors(context.Background(), nil, uuid.New())
	require.NoError(t, err)
	require.Nil(t, neighbors)
}
