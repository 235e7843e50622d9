// Package flatfile implements the persistent stores on the classic
// fixed-record files: a small header followed by equally sized,
// signature-tagged records. Records are encoded little-endian and
// round-trip byte-stable.
package flatfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/udisondev/mythmeta/internal/model"
)

// Record signatures.
const (
	UserSignature  = 0x504C4159 // 'PLAY'
	OrderSignature = 0x4F524452 // 'ORDR'
)

// UnusedID marks a freed record slot.
const UnusedID = 0xFFFFFFFF

// fileHeader leads every record file.
type fileHeader struct {
	RecordCount uint32
	Reserved    [40]uint32
}

const headerSize = 4 + 40*4

// scoreRecord is the on-disk shape of one model.ScoreDatum.
type scoreRecord struct {
	GamesPlayed     int32
	Wins            int32
	Losses          int32
	Ties            int32
	DamageInflicted int32
	DamageReceived  int32
	Disconnects     int32
	Points          int32
	Rank            int16
	HighestRank     int16
	HighestPoints   int32
	NumericalRank   int32
}

func packScore(s model.ScoreDatum) scoreRecord {
	return scoreRecord{
		GamesPlayed:     s.GamesPlayed,
		Wins:            s.Wins,
		Losses:          s.Losses,
		Ties:            s.Ties,
		DamageInflicted: s.DamageInflicted,
		DamageReceived:  s.DamageReceived,
		Disconnects:     s.Disconnects,
		Points:          s.Points,
		Rank:            s.Rank,
		HighestRank:     s.HighestRank,
		HighestPoints:   s.HighestPoints,
		NumericalRank:   s.NumericalRank,
	}
}

func unpackScore(r scoreRecord) model.ScoreDatum {
	return model.ScoreDatum{
		GamesPlayed:     r.GamesPlayed,
		Wins:            r.Wins,
		Losses:          r.Losses,
		Ties:            r.Ties,
		DamageInflicted: r.DamageInflicted,
		DamageReceived:  r.DamageReceived,
		Disconnects:     r.Disconnects,
		Points:          r.Points,
		Rank:            r.Rank,
		HighestRank:     r.HighestRank,
		HighestPoints:   r.HighestPoints,
		NumericalRank:   r.NumericalRank,
	}
}

// userRecord is the on-disk shape of one model.User.
type userRecord struct {
	Signature      uint32
	ID             uint32
	Login          [model.MaximumLoginLength + 1]byte
	Name           [model.MaximumPlayerNameLength + 1]byte
	PasswordScheme int16
	Flags          uint16
	PasswordSalt   [16]byte
	SaltLength     uint16
	HashLength     uint16
	PasswordHash   [128]byte
	Caste          int16
	BuddyCount     int16
	OrderID        uint32
	BannedUntil    int64 // unix seconds, 0 = never
	LastLoginAt    int64
	LastLoginIP    [48]byte
	Buddies        [model.MaximumBuddies]uint32
	PlayerDataLen  uint16
	_              uint16
	PlayerData     [model.MaximumPlayerDataLength]byte
	Ranked         scoreRecord
	Unranked       scoreRecord
	ByGameType     [model.MaximumGameTypes]scoreRecord
}

// orderRecord is the on-disk shape of one model.Order.
type orderRecord struct {
	Signature           uint32
	ID                  uint32
	Name                [model.MaximumOrderNameLength + 1]byte
	LeaderID            uint32
	FoundedAt           int64
	BelowMinimumSince   int64
	ContactEmail        [64]byte
	URL                 [96]byte
	MOTD                [128]byte
	MaintenancePassword [16]byte
	MemberPassword      [16]byte
	MemberCount         uint16
	_                   uint16
	Members             [64]uint32
	Ranked              scoreRecord
	Unranked            scoreRecord
	ByGameType          [model.MaximumGameTypes]scoreRecord
}

func putString(dst []byte, s string) {
	for i := range dst {
		dst[i] = 0
	}
	n := len(s)
	if n > len(dst)-1 {
		n = len(dst) - 1
	}
	copy(dst, s[:n])
}

func getString(src []byte) string {
	if i := bytes.IndexByte(src, 0); i >= 0 {
		return string(src[:i])
	}
	return string(src)
}

func packTime(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func unpackTime(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0).UTC()
}

func packUser(u *model.User) userRecord {
	var r userRecord
	r.Signature = UserSignature
	r.ID = u.ID
	putString(r.Login[:], u.Login)
	putString(r.Name[:], u.Name)
	r.PasswordScheme = u.PasswordScheme
	r.Flags = uint16(u.Flags)
	n := copy(r.PasswordSalt[:], u.PasswordSalt)
	r.SaltLength = uint16(n)
	h := copy(r.PasswordHash[:], u.PasswordHash)
	r.HashLength = uint16(h)
	r.Caste = int16(u.Caste)
	r.OrderID = u.OrderID
	r.BannedUntil = packTime(u.BannedUntil)
	r.LastLoginAt = packTime(u.LastLoginAt)
	putString(r.LastLoginIP[:], u.LastLoginIP)
	count := len(u.Buddies)
	if count > model.MaximumBuddies {
		count = model.MaximumBuddies
	}
	r.BuddyCount = int16(count)
	copy(r.Buddies[:], u.Buddies[:count])
	dataLen := copy(r.PlayerData[:], u.PlayerData)
	r.PlayerDataLen = uint16(dataLen)
	r.Ranked = packScore(u.Ranked)
	r.Unranked = packScore(u.Unranked)
	for i, s := range u.RankedByGameType {
		r.ByGameType[i] = packScore(s)
	}
	return r
}

func unpackUser(r userRecord) *model.User {
	u := &model.User{
		ID:             r.ID,
		Login:          getString(r.Login[:]),
		Name:           getString(r.Name[:]),
		PasswordScheme: r.PasswordScheme,
		Flags:          model.UserFlags(r.Flags),
		PasswordSalt:   append([]byte(nil), r.PasswordSalt[:r.SaltLength]...),
		PasswordHash:   string(r.PasswordHash[:r.HashLength]),
		Caste:          model.Caste(r.Caste),
		OrderID:        r.OrderID,
		BannedUntil:    unpackTime(r.BannedUntil),
		LastLoginAt:    unpackTime(r.LastLoginAt),
		LastLoginIP:    getString(r.LastLoginIP[:]),
	}
	for i := int16(0); i < r.BuddyCount && int(i) < model.MaximumBuddies; i++ {
		u.Buddies = append(u.Buddies, r.Buddies[i])
	}
	if r.PlayerDataLen > 0 {
		u.PlayerData = append([]byte(nil), r.PlayerData[:r.PlayerDataLen]...)
	}
	u.Ranked = unpackScore(r.Ranked)
	u.Unranked = unpackScore(r.Unranked)
	for i := range u.RankedByGameType {
		u.RankedByGameType[i] = unpackScore(r.ByGameType[i])
	}
	return u
}

func packOrder(o *model.Order) orderRecord {
	var r orderRecord
	r.Signature = OrderSignature
	r.ID = o.ID
	putString(r.Name[:], o.Name)
	r.LeaderID = o.LeaderID
	r.FoundedAt = packTime(o.FoundedAt)
	r.BelowMinimumSince = packTime(o.BelowMinimumSince)
	putString(r.ContactEmail[:], o.ContactEmail)
	putString(r.URL[:], o.URL)
	putString(r.MOTD[:], o.MOTD)
	putString(r.MaintenancePassword[:], o.MaintenancePassword)
	putString(r.MemberPassword[:], o.MemberPassword)
	count := len(o.MemberIDs)
	if count > len(r.Members) {
		count = len(r.Members)
	}
	r.MemberCount = uint16(count)
	copy(r.Members[:], o.MemberIDs[:count])
	r.Ranked = packScore(o.Ranked)
	r.Unranked = packScore(o.Unranked)
	for i, s := range o.RankedByGameType {
		r.ByGameType[i] = packScore(s)
	}
	return r
}

func unpackOrder(r orderRecord) *model.Order {
	o := &model.Order{
		ID:                  r.ID,
		Name:                getString(r.Name[:]),
		LeaderID:            r.LeaderID,
		FoundedAt:           unpackTime(r.FoundedAt),
		BelowMinimumSince:   unpackTime(r.BelowMinimumSince),
		ContactEmail:        getString(r.ContactEmail[:]),
		URL:                 getString(r.URL[:]),
		MOTD:                getString(r.MOTD[:]),
		MaintenancePassword: getString(r.MaintenancePassword[:]),
		MemberPassword:      getString(r.MemberPassword[:]),
	}
	for i := uint16(0); i < r.MemberCount && int(i) < len(r.Members); i++ {
		o.MemberIDs = append(o.MemberIDs, r.Members[i])
	}
	o.Ranked = unpackScore(r.Ranked)
	o.Unranked = unpackScore(r.Unranked)
	for i := range o.RankedByGameType {
		o.RankedByGameType[i] = unpackScore(r.ByGameType[i])
	}
	return o
}

func encodeRecord(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeRecord(data []byte, v any) error {
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, v); err != nil {
		return fmt.Errorf("decoding record: %w", err)
	}
	return nil
}
