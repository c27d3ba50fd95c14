// Package neighbor implements the neighbor table: per-peer FHSS
// schedule, frame-counter, and liveness bookkeeping keyed by EUI-64.
package neighbor

import "time"

// Role is a neighbor's position in the Wi-SUN network hierarchy.
type Role int

const (
	RoleUnknown Role = iota
	RoleFFN
	RoleLFN
	RoleRouter
	RoleHost
)

// Entry is one known peer. FrameCounterFloor is keyed by GTK ring index — a
// received frame carrying a counter at or below the floor for its key index is
// replayed traffic and must be rejected upstream of this table.
type Entry struct {
	EUI64             [8]byte
	Role              Role
	UnsecuredSchedule FHSSSchedule
	FrameCounterFloor map[int]uint32
	lastSeen          time.Time
}

// FHSSSchedule is the unsecured frequency-hopping descriptor advertised by a
// peer, opaque to everything except the transmit path, which hands it to
// the RCP verbatim.
type FHSSSchedule struct {
	BroadcastIntervalMs uint32
	UnicastDwellMs      uint8
	Clock               uint32
}

// Table is the process-wide neighbor table. Not safe for concurrent use,
// matching the single-threaded cooperative model the rest of the core
// shares.
type Table struct {
	ttl     time.Duration
	now     func() time.Time
	entries map[[8]byte]*Entry
}

// New creates an empty table that expires peers idle for longer than ttl.
func New(ttl time.Duration) *Table {
	return newWithClock(ttl, time.Now)
}

func newWithClock(ttl time.Duration, now func() time.Time) *Table {
	return &Table{
		ttl:     ttl,
		now:     now,
		entries: make(map[[8]byte]*Entry),
	}
}

// Observe records activity from eui64, inserting a new entry on first sight.
// Returns the (possibly newly created) entry.
func (t *Table) Observe(eui64 [8]byte, role Role) *Entry {
	e, ok := t.entries[eui64]
	if !ok {
		e = &Entry{
			EUI64:             eui64,
			Role:              role,
			FrameCounterFloor: make(map[int]uint32),
		}
		t.entries[eui64] = e
	}
	e.lastSeen = t.now()
	return e
}

// Lookup returns the live entry for eui64, or false if absent or expired.
// Expiry is evaluated lazily here rather than by a background sweep, in
// keeping with the cooperative single-threaded model; ExpireStale should
// still be called periodically (e.g. from a housekeeping timer) to reclaim memory for
// peers that are never looked up again.
func (t *Table) Lookup(eui64 [8]byte) (*Entry, bool) {
	e, ok := t.entries[eui64]
	if !ok {
		return nil, false
	}
	if t.expired(e) {
		delete(t.entries, eui64)
		return nil, false
	}
	return e, true
}

func (t *Table) expired(e *Entry) bool {
	if t.ttl <= 0 {
		return false
	}
	return t.now().Sub(e.lastSeen) > t.ttl
}

// Remove drops eui64 unconditionally (explicit peer-loss notification from
// the RCP, or cascading key-store cleanup).
func (t *Table) Remove(eui64 [8]byte) {
	delete(t.entries, eui64)
}

// ExpireStale removes every entry whose liveness has exceeded the table's
// TTL and returns their EUI-64s, so callers can cascade removal into the key
// store and any in-flight frame contexts referencing them.
func (t *Table) ExpireStale() [][8]byte {
	if t.ttl <= 0 {
		return nil
	}
	var expired [][8]byte
	for eui64, e := range t.entries {
		if t.expired(e) {
			expired = append(expired, eui64)
			delete(t.entries, eui64)
		}
	}
	return expired
}

// Len reports the number of entries held, including expired ones not yet
// removed by a Lookup or ExpireStale.
func (t *Table) Len() int {
	return len(t.entries)
}

// SetFrameCounterFloor records the highest frame counter already seen for
// eui64 under GTK ring index keyIndex, used to reject replayed frames: the
// floor itself and anything below it are not fresh.
func (e *Entry) SetFrameCounterFloor(keyIndex int, counter uint32) {
	e.FrameCounterFloor[keyIndex] = counter
}

// FrameCounterFresh reports whether counter is strictly above the recorded
// floor for keyIndex (true if no floor has been recorded yet).
func (e *Entry) FrameCounterFresh(keyIndex int, counter uint32) bool {
	floor, ok := e.FrameCounterFloor[keyIndex]
	if !ok {
		return true
	}
	return counter > floor
}
