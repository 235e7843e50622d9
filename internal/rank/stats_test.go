package rank

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/mythmeta/internal/model"
	"github.com/udisondev/mythmeta/internal/testutil"
)

func TestStatsExporter_Export(t *testing.T) {
	users := testutil.NewMemoryUserStore()
	ctx := context.Background()

	for _, u := range []*model.User{
		{Login: "first", Name: "First Place", Ranked: model.ScoreDatum{Points: 50, GamesPlayed: 20}},
		{Login: "second", Name: "Runner Up", Ranked: model.ScoreDatum{Points: 30, GamesPlayed: 10}},
		{Login: "down", Name: "Down Under", Ranked: model.ScoreDatum{Points: -4, GamesPlayed: 8}},
	} {
		require.NoError(t, users.Insert(ctx, u))
	}

	path := filepath.Join(t.TempDir(), "scoreboard.txt")
	e := NewStatsExporter(users, path, 2)
	require.NoError(t, e.Export(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "First Place")
	assert.Contains(t, text, "Runner Up")
	assert.NotContains(t, text, "Down Under", "capped at top 2")

	// Re-export replaces the file in place.
	require.NoError(t, e.Export(ctx))
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestStatsExporter_ClampsNegativePoints(t *testing.T) {
	users := testutil.NewMemoryUserStore()
	ctx := context.Background()
	require.NoError(t, users.Insert(ctx, &model.User{
		Login: "down", Name: "Down Under",
		Ranked: model.ScoreDatum{Points: -4, GamesPlayed: 8},
	}))

	path := filepath.Join(t.TempDir(), "scoreboard.txt")
	require.NoError(t, NewStatsExporter(users, path, 10).Export(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "-4")
}
