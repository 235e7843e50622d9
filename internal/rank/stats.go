package rank

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/udisondev/mythmeta/internal/model"
	"github.com/udisondev/mythmeta/internal/store"
)

const (
	// StatsExportInterval is how often the scoreboard file is rewritten.
	StatsExportInterval = 4 * time.Hour

	// StatsTopCount is how many players the scoreboard lists.
	StatsTopCount = 100
)

// StatsExporter periodically writes a plain-text scoreboard to disk.
type StatsExporter struct {
	users store.UserStore
	path  string
	topN  int
}

// NewStatsExporter writes scoreboards for the topN players to path.
func NewStatsExporter(users store.UserStore, path string, topN int) *StatsExporter {
	if topN <= 0 {
		topN = StatsTopCount
	}
	return &StatsExporter{users: users, path: path, topN: topN}
}

// Run exports once at startup and then on every tick until ctx is done.
func (e *StatsExporter) Run(ctx context.Context) error {
	if err := e.Export(ctx); err != nil {
		slog.Error("stats export", "err", err)
	}
	ticker := time.NewTicker(StatsExportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := e.Export(ctx); err != nil {
				slog.Error("stats export", "err", err)
			}
		}
	}
}

// Export writes the scoreboard atomically: temp file in the target
// directory, then rename.
func (e *StatsExporter) Export(ctx context.Context) error {
	var rows []rankedRow
	names := make(map[uint32]string)
	err := e.users.IterateAll(ctx, func(u *model.User) bool {
		rows = append(rows, rankedRow{id: u.ID, points: u.Ranked.Points, gamesPlayed: u.Ranked.GamesPlayed})
		names[u.ID] = u.Name
		return true
	})
	if err != nil {
		return fmt.Errorf("loading score rows: %w", err)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].points != rows[j].points {
			return rows[i].points > rows[j].points
		}
		return rows[i].gamesPlayed > rows[j].gamesPlayed
	})
	if len(rows) > e.topN {
		rows = rows[:e.topN]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# scoreboard generated %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "%-5s %-31s %8s %6s\n", "rank", "name", "points", "games")
	for i, row := range rows {
		points := row.points
		if points < 0 {
			points = 0
		}
		fmt.Fprintf(&b, "%-5d %-31s %8d %6d\n", i+1, names[row.id], points, row.gamesPlayed)
	}

	tmp, err := os.CreateTemp(filepath.Dir(e.path), ".scoreboard-*")
	if err != nil {
		return fmt.Errorf("creating temp scoreboard: %w", err)
	}
	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing scoreboard: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing scoreboard: %w", err)
	}
	if err := os.Rename(tmp.Name(), e.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("publishing scoreboard: %w", err)
	}
	slog.Debug("scoreboard exported", "path", e.path, "players", len(rows))
	return nil
}
