package flatfile

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/mythmeta/internal/model"
)

func sampleUser() *model.User {
	u := &model.User{
		Login:          "ares",
		Name:           "God of War",
		PasswordScheme: 3,
		PasswordHash:   "$2a$10$abcdefghijklmnopqrstuv",
		PasswordSalt:   []byte{1, 2, 3, 4},
		Flags:          model.UserFlagAdmin,
		Caste:          model.CasteShield,
		OrderID:        7,
		BannedUntil:    time.Unix(1700000000, 0).UTC(),
		LastLoginAt:    time.Unix(1700000100, 0).UTC(),
		LastLoginIP:    "203.0.113.9",
		Buddies:        []uint32{5, 9, 12},
		PlayerData:     []byte{0xDE, 0xAD, 0xBE, 0xEF},
	}
	u.Ranked = model.ScoreDatum{GamesPlayed: 42, Wins: 20, Losses: 10, Points: 55, HighestPoints: 60, NumericalRank: 3}
	u.RankedByGameType[2] = model.ScoreDatum{GamesPlayed: 7, Points: 12}
	return u
}

func TestUserRecord_RoundTrip(t *testing.T) {
	u := sampleUser()
	u.ID = 11

	rec := packUser(u)
	data, err := encodeRecord(&rec)
	require.NoError(t, err)
	require.Equal(t, userRecordSize, len(data))

	var decoded userRecord
	require.NoError(t, decodeRecord(data, &decoded))
	got := unpackUser(decoded)
	assert.Equal(t, u, got)

	// Byte-stable: re-encoding the decoded record is identical.
	data2, err := encodeRecord(&decoded)
	require.NoError(t, err)
	assert.Equal(t, data, data2)
}

func TestUserFile_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.dat")
	ctx := context.Background()

	f, err := OpenUserFile(path)
	require.NoError(t, err)

	u := sampleUser()
	require.NoError(t, f.Insert(ctx, u))
	require.Equal(t, uint32(1), u.ID)

	other := sampleUser()
	other.Login = "hermes"
	other.Name = "Messenger"
	require.NoError(t, f.Insert(ctx, other))
	require.Equal(t, uint32(2), other.ID)

	// Duplicate login refused, case-insensitively.
	dup := sampleUser()
	dup.Login = "ARES"
	assert.Error(t, f.Insert(ctx, dup))

	u.Ranked.Points = 99
	require.NoError(t, f.Update(ctx, u))

	reopened, err := OpenUserFile(path)
	require.NoError(t, err)

	got, err := reopened.GetByLogin(ctx, "Ares")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int32(99), got.Ranked.Points)
	assert.Equal(t, u.Buddies, got.Buddies)
	assert.Equal(t, u.PlayerData, got.PlayerData)

	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	missing, err := reopened.GetByID(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOrderFile_MarkUnusedFreesSlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.dat")
	ctx := context.Background()

	f, err := OpenOrderFile(path)
	require.NoError(t, err)

	first := &model.Order{Name: "first order", LeaderID: 1, MemberIDs: []uint32{1, 2, 3}, FoundedAt: time.Unix(1600000000, 0).UTC()}
	require.NoError(t, f.Insert(ctx, first))
	require.NoError(t, f.MarkUnused(ctx, first.ID))

	got, err := f.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "unused orders stop resolving")

	// The freed slot is reused, but never the freed id.
	second := &model.Order{Name: "second order", LeaderID: 2, MemberIDs: []uint32{4, 5, 6}}
	require.NoError(t, f.Insert(ctx, second))
	assert.Equal(t, uint32(2), second.ID)

	reopened, err := OpenOrderFile(path)
	require.NoError(t, err)
	got, err = reopened.GetByName(ctx, "SECOND ORDER")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []uint32{4, 5, 6}, got.MemberIDs)

	var count int
	require.NoError(t, reopened.IterateAll(ctx, func(*model.Order) bool {
		count++
		return true
	}))
	assert.Equal(t, 1, count)
}

func TestBanFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bans.txt")
	ctx := context.Background()
	now := time.Now()

	f, err := OpenBanFile(path)
	require.NoError(t, err)

	require.NoError(t, f.Ban(ctx, "198.51.100.1", now.Add(time.Hour)))
	require.NoError(t, f.Ban(ctx, "198.51.100.2", time.Time{})) // permanent

	banned, err := f.IsBanned(ctx, "198.51.100.1", now)
	require.NoError(t, err)
	assert.True(t, banned)

	banned, err = f.IsBanned(ctx, "198.51.100.1", now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, banned, "timed ban expires")

	reopened, err := OpenBanFile(path)
	require.NoError(t, err)
	banned, err = reopened.IsBanned(ctx, "198.51.100.2", now.Add(24*365*time.Hour))
	require.NoError(t, err)
	assert.True(t, banned, "permanent ban survives reopen")

	require.NoError(t, reopened.Unban(ctx, "198.51.100.2"))
	banned, err = reopened.IsBanned(ctx, "198.51.100.2", now)
	require.NoError(t, err)
	assert.False(t, banned)
}

func TestJournalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scored.txt")
	ctx := context.Background()

	j, err := OpenJournalFile(path)
	require.NoError(t, err)

	fresh, err := j.MarkScored(ctx, 42)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = j.MarkScored(ctx, 42)
	require.NoError(t, err)
	assert.False(t, fresh)
	require.NoError(t, j.Close())

	reopened, err := OpenJournalFile(path)
	require.NoError(t, err)
	fresh, err = reopened.MarkScored(ctx, 42)
	require.NoError(t, err)
	assert.False(t, fresh, "journal survives reopen")
}
