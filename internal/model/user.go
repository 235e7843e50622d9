package model

import (
	"slices"
	"time"
)

// Field size limits, shared by the wire codecs and the fixed-record
// flat-file store.
const (
	MaximumLoginLength      = 15
	MaximumPasswordLength   = 15
	MaximumPlayerNameLength = 31
	MaximumOrderNameLength  = 31
	MaximumBuddies          = 16
	MaximumPlayerDataLength = 128
)

// UserFlags are account capability/status bits.
type UserFlags uint16

const (
	UserFlagAdmin UserFlags = 1 << iota
	UserFlagEmployee
	UserFlagBanned
	UserFlagKiosk
)

// User is a persistent account record. Mutated only by the owning
// request handler or the ranking batch; never deleted (the banned flag
// is used instead).
type User struct {
	ID    uint32
	Login string // unique, stored lower-case
	Name  string // display name

	PasswordScheme int16
	PasswordHash   string
	PasswordSalt   []byte

	Flags       UserFlags
	Caste       Caste
	OrderID     uint32 // 0 = no order
	BannedUntil time.Time

	LastLoginAt time.Time
	LastLoginIP string

	Buddies []uint32 // at most MaximumBuddies entries

	// PlayerData is the opaque client blob echoed in player-list
	// entries. At most MaximumPlayerDataLength bytes.
	PlayerData []byte

	Ranked           ScoreDatum
	Unranked         ScoreDatum
	RankedByGameType [MaximumGameTypes]ScoreDatum
}

// IsAdmin reports whether the account has the admin bit.
func (u *User) IsAdmin() bool {
	return u.Flags&UserFlagAdmin != 0
}

// IsBanned reports whether the account is unusable at time now, either
// permanently flagged or inside a timed ban.
func (u *User) IsBanned(now time.Time) bool {
	if u.Flags&UserFlagBanned != 0 {
		return true
	}
	return !u.BannedUntil.IsZero() && now.Before(u.BannedUntil)
}

// DisplayCaste returns the caste shown to other players.
func (u *User) DisplayCaste() Caste {
	if u.IsAdmin() {
		return AdministratorCaste
	}
	return u.Caste
}

// AddBuddy appends id to the buddy list. Reports false when the list is
// full or the id is already present.
func (u *User) AddBuddy(id uint32) bool {
	if slices.Contains(u.Buddies, id) {
		return false
	}
	if len(u.Buddies) >= MaximumBuddies {
		return false
	}
	u.Buddies = append(u.Buddies, id)
	return true
}

// RemoveBuddy deletes id from the buddy list. Reports whether it was
// present.
func (u *User) RemoveBuddy(id uint32) bool {
	i := slices.Index(u.Buddies, id)
	if i < 0 {
		return false
	}
	u.Buddies = slices.Delete(u.Buddies, i, i+1)
	return true
}

// Clone returns a deep copy safe to hand to another goroutine.
func (u *User) Clone() *User {
	cp := *u
	cp.PasswordSalt = slices.Clone(u.PasswordSalt)
	cp.Buddies = slices.Clone(u.Buddies)
	cp.PlayerData = slices.Clone(u.PlayerData)
	return &cp
}
