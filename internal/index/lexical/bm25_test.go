package lexical

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func TestSearch_EmptyIndexReturnsNoMatches(t *testing.T) {
	ix := New(Config{})
	require.Empty(t, ix.Search("anything", 10, nil))
}

func TestSearch_UncommittedAddIsNotSearchable(t *testing.T) {
	ix := New(Config{})
	id := uuid.New()
	ix.Add(id, "hello world", nil)

	require.Empty(t, ix.Search("hello", 10, nil))

	ix.Commit()
	matches := ix.Search("hello", 10, nil)
	require.Len(t, matches, 1)
	require.Equal(t, id, matches[0].BlockID)
}

func TestSearch_ExactTextRanksFirst(t *testing.T) {
	ix := New(Config{})
	target := uuid.New()
	other := uuid.New()
	ix.Add(target, "the quick brown fox jumps over the lazy dog", nil)
	ix.Add(other, "unrelated content about cooking recipes", nil)
	ix.Commit()

	matches := ix.Search("the quick brown fox jumps over the lazy dog", 5, nil)
	require.NotEmpty(t, matches)
	require.Equal(t, target, matches[0].BlockID)
}

func TestDelete_TombstoneHidesDocWithoutCompact(t *testing.T) {
	ix := New(Config{})
	id := uuid.New()
	ix.Add(id, "hello world", nil)
	ix.Commit()
	require.Len(t, ix.Search("hello", 10, nil), 1)

	ix.Delete(id)
	require.Empty(t, ix.Search("hello", 10, nil))

	stats := ix.Stats()
	require.Equal(t, 1, stats.TotalDocs) // still counted until Compact

	ix.Compact()
	stats = ix.Stats()
	require.Equal(t, 0, stats.TotalDocs)
}

func TestSearch_ScopeFilterKeepsMatchingAndGlobal(t *testing.T) {
	ix := New(Config{})
	scoped := uuid.New()
	global := uuid.New()
	otherScope := uuid.New()
	ix.Add(scoped, "widget documentation", strp("alpha"))
	ix.Add(global, "widget documentation", nil)
	ix.Add(otherScope, "widget documentation", strp("beta"))
	ix.Commit()

	matches := ix.Search("widget", 10, strp("alpha"))

	ids := make(map[uuid.UUID]bool)
	for _, m := range matches {
		ids[m.BlockID] = true
	}
	require.True(t, ids[scoped])
	require.True(t, ids[global])
	require.False(t, ids[otherScope])
}

func TestStats_AverageDocLengthTracksCommittedCorpus(t *testing.T) {
	ix := New(Config{})
	ix.Add(uuid.New(), "one two three four", nil)
	ix.Add(uuid.New(), "one two", nil)
	ix.Commit()

	stats := ix.Stats()
	require.Equal(t, 2, stats.TotalDocs)
	require.Equal(t, int64(6), stats.TotalTerms)
	require.InDelta(t, 3.0, stats.AvgDocLength, 1e-9)
}

func TestSearch_KLimitsResultCount(t *testing.T) {
	ix := New(Config{})
	for i := 0; i < 5; i++ {
		ix.Add(uuid.New(), "shared term unique text here", nil)
	}
	ix.Commit()

	matches := ix.Search("shared", 2, nil)
	require.Len(t, matches, 2)
}

func TestAdd_ReplacesPriorContentForSameBlockID(t *testing.T) {
	ix := New(Config{})
	id := uuid.New()
	ix.Add(id, "original content", nil)
	ix.Commit()
	require.Len(t, ix.Search("original", 10, nil), 1)

	ix.Add(id, "replaced content", nil)
	ix.Commit()

	require.Empty(t, ix.Search("original", 10, nil))
	require.Len(t, ix.Search("replaced", 10, nil), 1)
}
