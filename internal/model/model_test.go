package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUserBuddyListBounds(t *testing.T) {
	u := &User{}
	for i := 0; i < MaximumBuddies; i++ {
		assert.True(t, u.AddBuddy(uint32(i+1)))
	}
	assert.False(t, u.AddBuddy(99), "list at capacity")
	assert.False(t, u.AddBuddy(1), "duplicate")

	assert.True(t, u.RemoveBuddy(1))
	assert.False(t, u.RemoveBuddy(1))
	assert.True(t, u.AddBuddy(99), "slot freed")
}

func TestUserIsBanned(t *testing.T) {
	now := time.Now()

	u := &User{Flags: UserFlagBanned}
	assert.True(t, u.IsBanned(now))

	timed := &User{BannedUntil: now.Add(time.Hour)}
	assert.True(t, timed.IsBanned(now))
	assert.False(t, timed.IsBanned(now.Add(2*time.Hour)))

	assert.False(t, (&User{}).IsBanned(now))
}

func TestUserDisplayCaste(t *testing.T) {
	u := &User{Caste: CasteShield}
	assert.Equal(t, CasteShield, u.DisplayCaste())

	u.Flags = UserFlagAdmin
	assert.Equal(t, AdministratorCaste, u.DisplayCaste())
}

func TestUserCloneIsDeep(t *testing.T) {
	u := &User{Buddies: []uint32{1, 2}, PlayerData: []byte{9}, PasswordSalt: []byte{7}}
	cp := u.Clone()
	cp.Buddies[0] = 42
	cp.PlayerData[0] = 42
	assert.Equal(t, uint32(1), u.Buddies[0])
	assert.Equal(t, byte(9), u.PlayerData[0])
}

func TestOrderRoster(t *testing.T) {
	o := &Order{}
	assert.True(t, o.AddMember(5))
	assert.False(t, o.AddMember(5))
	assert.True(t, o.HasMember(5))
	assert.True(t, o.RemoveMember(5))
	assert.False(t, o.RemoveMember(5))
}

func TestScoreDatum(t *testing.T) {
	var s ScoreDatum
	s.RecordWin()
	assert.Equal(t, int32(3), s.Points)
	assert.Equal(t, int32(3), s.HighestPoints)

	s.RecordLoss()
	s.RecordLoss()
	s.RecordLoss()
	s.RecordLoss()
	assert.Equal(t, int32(-1), s.Points)
	assert.Equal(t, int32(0), s.DisplayPoints(), "wire never shows negative points")
	assert.Equal(t, int32(3), s.HighestPoints, "high-water mark survives losses")

	s.RecordPlayed()
	assert.Equal(t, int32(6), s.GamesPlayed)
	assert.Equal(t, int32(-1), s.Points, "mid-field finish leaves points alone")
}

func TestCasteString(t *testing.T) {
	assert.Equal(t, "dagger", CasteDagger.String())
	assert.Equal(t, "comet", CasteComet.String())
}
