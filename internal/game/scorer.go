package game

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/udisondev/mythmeta/internal/model"
	"github.com/udisondev/mythmeta/internal/store"
)

// Scorer applies an authoritative standings report to the persistent
// score records. Application is idempotent per game id: the journal is
// consulted first, and a game already marked scored is a no-op.
type Scorer struct {
	users   store.UserStore
	journal store.ScoreJournal
	audit   store.AuditLog
}

// NewScorer wires the scorer to its stores.
func NewScorer(users store.UserStore, journal store.ScoreJournal, audit store.AuditLog) *Scorer {
	return &Scorer{users: users, journal: journal, audit: audit}
}

// Apply commits the score deltas from standings for the given game.
// Each player is one store transaction; a failure on one player is
// logged and does not undo previously committed players.
func (s *Scorer) Apply(ctx context.Context, gameID uint32, standings *StandingsReport) error {
	fresh, err := s.journal.MarkScored(ctx, gameID)
	if err != nil {
		return fmt.Errorf("marking game %d scored: %w", gameID, err)
	}
	if !fresh {
		slog.Debug("game already scored, skipping", "game", gameID)
		return nil
	}

	// Last place is the worst place actually awarded, so tied losers all
	// take the loss.
	lastPlace := int16(0)
	for _, p := range standings.TeamPlaces {
		if p > lastPlace {
			lastPlace = p
		}
	}
	gameType := standings.GameScoring
	if gameType < 0 || gameType >= model.MaximumGameTypes {
		gameType = 0
	}

	var failed int
	for _, row := range standings.Players {
		if err := s.applyPlayer(ctx, row, standings, lastPlace, gameType); err != nil {
			slog.Error("applying score", "game", gameID, "user", row.UserID, "err", err)
			failed++
		}
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, store.AuditEvent{
			Kind:   "score",
			Detail: fmt.Sprintf("game %d scored, %d players, %d failures", gameID, len(standings.Players), failed),
		})
	}
	if failed > 0 {
		return fmt.Errorf("scoring game %d: %d of %d players failed", gameID, failed, len(standings.Players))
	}
	return nil
}

func (s *Scorer) applyPlayer(ctx context.Context, row PlayerStanding, standings *StandingsReport, lastPlace int16, gameType int16) error {
	u, err := s.users.GetByID(ctx, row.UserID)
	if err != nil {
		return fmt.Errorf("loading user: %w", err)
	}
	if u == nil {
		return fmt.Errorf("user %d not found", row.UserID)
	}

	place := int16(-1)
	if int(row.Team) >= 0 && int(row.Team) < standings.NumberOfTeams() {
		place = standings.TeamPlaces[row.Team]
	}

	applyToDatum(&u.Ranked, row, place, lastPlace)
	applyToDatum(&u.RankedByGameType[gameType], row, place, lastPlace)

	if err := s.users.Update(ctx, u); err != nil {
		return fmt.Errorf("storing user: %w", err)
	}
	return nil
}

func applyToDatum(d *model.ScoreDatum, row PlayerStanding, place, lastPlace int16) {
	d.AddDamage(row.PointsKilled, row.PointsLost)
	switch {
	case place == 0:
		d.RecordWin()
	case place == lastPlace && lastPlace > 0:
		d.RecordLoss()
	default:
		d.RecordPlayed()
	}
}
