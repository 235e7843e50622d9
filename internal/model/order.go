package model

import (
	"slices"
	"time"
)

// UnusedOrderID marks an order record slot as free in the stores.
const UnusedOrderID = 0xFFFFFFFF

// Order maintenance thresholds: an order that stays below the minimum
// member count for the grace period is marked unused by the sweep.
const (
	OrderMinimumMembers    = 3
	OrderBelowMinimumGrace = 10 * 24 * time.Hour
)

// Order is a clan/team owned by a leader user. Marked unused rather
// than physically removed.
type Order struct {
	ID        uint32
	Name      string // unique
	LeaderID  uint32
	FoundedAt time.Time

	ContactEmail string
	URL          string
	MOTD         string

	MaintenancePassword string
	MemberPassword      string

	MemberIDs []uint32

	// BelowMinimumSince is the zero time while membership is healthy;
	// otherwise the moment the roster dropped below the minimum.
	BelowMinimumSince time.Time

	Ranked           ScoreDatum
	Unranked         ScoreDatum
	RankedByGameType [MaximumGameTypes]ScoreDatum
}

// HasMember reports whether id is on the roster.
func (o *Order) HasMember(id uint32) bool {
	return slices.Contains(o.MemberIDs, id)
}

// AddMember appends id to the roster if absent.
func (o *Order) AddMember(id uint32) bool {
	if o.HasMember(id) {
		return false
	}
	o.MemberIDs = append(o.MemberIDs, id)
	return true
}

// RemoveMember deletes id from the roster. Reports whether it was
// present.
func (o *Order) RemoveMember(id uint32) bool {
	i := slices.Index(o.MemberIDs, id)
	if i < 0 {
		return false
	}
	o.MemberIDs = slices.Delete(o.MemberIDs, i, i+1)
	return true
}

// Clone returns a deep copy safe to hand to another goroutine.
func (o *Order) Clone() *Order {
	cp := *o
	cp.MemberIDs = slices.Clone(o.MemberIDs)
	return &cp
}
