// Filename: store/cache_test.go
package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/lancet-sast/api/schemas"
	"github.com/xkilldash9x/lancet-sast/internal/analysis/core"
	"github.com/xkilldash9x/lancet-sast/internal/analysis/static/javascript"
)

func openTestCache(t *testing.T) *SummaryCache {
	t.Helper()
	cache, err := OpenSummaryCache(filepath.Join(t.TempDir(), "summaries.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, cache.Close())
	})
	return cache
}

func sampleAnalysis(unitID string) *javascript.Analysis {
	summary := core.NewFunctionSummary(unitID, "hash-1")
	summary.ReturnBase = core.DefinitelyTainted
	summary.ParamToReturn[0] = true
	summary.ParamSinks[1] = []core.SinkUse{{
		Unit:     unitID,
		CallPath: "db.query",
		Level:    core.DefinitelyTainted,
		Location: schemas.Location{File: "a.js", Line: 3},
	}}

	return &javascript.Analysis{
		UnitID: unitID,
		File:   "a.js",
		Levels: map[string]core.TaintLevel{"q": core.DefinitelyTainted},
		SinkUses: []core.SinkUse{{
			Unit:     unitID,
			CallPath: "db.query",
			ArgIndex: 0,
			Level:    core.DefinitelyTainted,
			Location: schemas.Location{File: "a.js", Line: 3},
		}},
		Summary: summary,
	}
}

func TestSummaryCache_RoundTrip(t *testing.T) {
	t.Parallel()

	cache := openTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "getData", "hash-1", sampleAnalysis("getData")))

	loaded, ok, err := cache.Get(ctx, "getData", "hash-1")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "getData", loaded.UnitID)
	assert.Equal(t, core.DefinitelyTainted, loaded.Levels["q"])
	require.Len(t, loaded.SinkUses, 1)
	assert.Equal(t, "db.query", loaded.SinkUses[0].CallPath)

	require.NotNil(t, loaded.Summary)
	assert.Equal(t, core.DefinitelyTainted, loaded.Summary.ReturnBase)
	assert.True(t, loaded.Summary.ParamToReturn[0])
	require.Len(t, loaded.Summary.ParamSinks[1], 1)
	assert.Equal(t, 3, loaded.Summary.ParamSinks[1][0].Location.Line)
}

func TestSummaryCache_MissReturnsFalse(t *testing.T) {
	t.Parallel()

	cache := openTestCache(t)

	_, ok, err := cache.Get(context.Background(), "unit", "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

// The same content hash under a different unit id is a miss: the cache key
// is the (unit, content) pair.
func TestSummaryCache_KeyedByUnitAndHash(t *testing.T) {
	t.Parallel()

	cache := openTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "getData", "hash-1", sampleAnalysis("getData")))

	_, ok, err := cache.Get(ctx, "otherUnit", "hash-1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = cache.Get(ctx, "getData", "hash-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSummaryCache_PutReplaces(t *testing.T) {
	t.Parallel()

	cache := openTestCache(t)
	ctx := context.Background()

	first := sampleAnalysis("unit")
	first.Levels["q"] = core.Untainted
	require.NoError(t, cache.Put(ctx, "unit", "hash-x", first))

	second := sampleAnalysis("unit")
	second.Levels["q"] = core.PossiblyTainted
	require.NoError(t, cache.Put(ctx, "unit", "hash-x", second))

	loaded, ok, err := cache.Get(ctx, "unit", "hash-x")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, core.PossiblyTainted, loaded.Levels["q"])

	count, err := cache.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSummaryCache_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	cache := openTestCache(t)
	ctx := context.Background()

	done := make(chan struct{})
	for g := 0; g < 4; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 20; i++ {
				if err := cache.Put(ctx, "unit", "shared", sampleAnalysis("unit")); err != nil {
					t.Error(err)
					return
				}
				if _, _, err := cache.Get(ctx, "unit", "shared"); err != nil {
					t.Error(err)
					return
				}
			}
		}(g)
	}
	for g := 0; g < 4; g++ {
		<-done
	}
}
