// Package keystore implements the daemon's key store: GTK ring lifecycle,
// install-order compaction, hash generation/mismatch detection, and the
// PMK/PTK/replay-counter state carried per supplicant. All operations are
// synchronous and atomic with respect to other callers; the single-writer,
// single-threaded cooperative model means no locking is needed here, and
// callers on the EAPOL pipeline are expected to hold the daemon's single
// mutation ticket.
package keystore

import (
	"errors"

	"github.com/wisun-go/wsbrd/pkg/crypto"
)

// Status is a GTK slot's position in the new -> fresh -> active -> old
// lifecycle.
type Status int

const (
	StatusNew Status = iota
	StatusFresh
	StatusActive
	StatusOld
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusFresh:
		return "fresh"
	case StatusActive:
		return "active"
	case StatusOld:
		return "old"
	default:
		return "unknown"
	}
}

// Slot is one entry in a GTK ring.
type Slot struct {
	Key         [16]byte
	Present     bool
	Lifetime    int // seconds remaining
	Status      Status
	InstallOrder int
}

var (
	// ErrZeroKey rejects gtk_set with an all-zero key, which can never be a
	// valid GTK.
	ErrZeroKey = errors.New("keystore: all-zero GTK rejected")
	// ErrSlotNotPresent is returned by operations that need a slot inside
	// the ring (Set for an out-of-range index; StatusActiveSet for an
	// out-of-range or absent slot).
	ErrSlotNotPresent = errors.New("keystore: slot not present")
	// ErrNotFresh is returned by StatusActiveSet when the target slot is
	// present but neither fresh nor already active.
	ErrNotFresh = errors.New("keystore: slot is not fresh")
	// ErrNoFreshSlot reports that no slot in the ring is fresh. No Ring
	// method returns it; StatusActiveSet reports a non-fresh target with
	// ErrNotFresh.
	ErrNoFreshSlot = errors.New("keystore: no fresh slot in ring")
)

// Ring is a fixed-size GTK ring (4 slots for FFN, 3 for LFN).
type Ring struct {
	Slots       []Slot
	Updated     bool
	insertIndex int
	hasInsert   bool
}

// NewRing allocates a ring with n empty slots.
func NewRing(n int) *Ring {
	return &Ring{Slots: make([]Slot, n)}
}

// Set installs key into slot index. If the slot was empty it
// is assigned the next install-order; if already present, its key/lifetime
// are refreshed in place and its status/order are left untouched.
func (r *Ring) Set(index int, key [16]byte, lifetime int) error {
	if key == ([16]byte{}) {
		return ErrZeroKey
	}
	if index < 0 || index >= len(r.Slots) {
		return ErrSlotNotPresent
	}

	slot := &r.Slots[index]
	if !slot.Present {
		// Snapshot the count before flipping Present so the new slot does
		// not count itself: orders stay a dense zero-based permutation.
		order := r.presentCount()
		slot.Present = true
		slot.Status = StatusNew
		slot.InstallOrder = order
	}
	slot.Key = key
	slot.Lifetime = lifetime
	r.Updated = true
	return nil
}

// Clear removes slot index and compacts the install-orders of
// the remaining present slots so they stay a dense permutation of
// {0..n-1}.
func (r *Ring) Clear(index int) {
	if index < 0 || index >= len(r.Slots) {
		return
	}
	slot := &r.Slots[index]
	if !slot.Present {
		return
	}
	removedOrder := slot.InstallOrder
	*slot = Slot{}

	for i := range r.Slots {
		if r.Slots[i].Present && r.Slots[i].InstallOrder > removedOrder {
			r.Slots[i].InstallOrder--
		}
	}
	if r.hasInsert && r.insertIndex == index {
		r.hasInsert = false
	}
	r.Updated = true
}

func (r *Ring) presentCount() int {
	n := 0
	for _, s := range r.Slots {
		if s.Present {
			n++
		}
	}
	return n
}

// StatusFreshSet promotes slot index from new to fresh. Any other current
// status is silently ignored.
func (r *Ring) StatusFreshSet(index int) {
	if index < 0 || index >= len(r.Slots) {
		return
	}
	slot := &r.Slots[index]
	if slot.Present && slot.Status == StatusNew {
		slot.Status = StatusFresh
	}
}

// StatusActiveSet promotes slot index from fresh to active, demoting any
// currently-active slot to old. Requires the target slot to currently be
// fresh.
func (r *Ring) StatusActiveSet(index int) error {
	if index < 0 || index >= len(r.Slots) {
		return ErrSlotNotPresent
	}
	target := &r.Slots[index]
	if !target.Present {
		return ErrSlotNotPresent
	}
	if target.Status != StatusFresh {
		if target.Status == StatusActive {
			return nil
		}
		return ErrNotFresh
	}

	for i := range r.Slots {
		if r.Slots[i].Present && r.Slots[i].Status == StatusActive {
			r.Slots[i].Status = StatusOld
		}
	}
	target.Status = StatusActive
	return nil
}

// InsertIndex returns the GTK slot index to advertise/install next, and
// whether one has been set.
func (r *Ring) InsertIndex() (int, bool) {
	return r.insertIndex, r.hasInsert
}

// SetInsertIndex records the next insertion index.
func (r *Ring) SetInsertIndex(index int) {
	r.insertIndex = index
	r.hasInsert = true
}

// ClearInsertIndex clears any recorded insertion index.
func (r *Ring) ClearInsertIndex() {
	r.hasInsert = false
}

// SelectInsertIndex applies the default policy (install-order first, then
// lifetime) to pick and record the next insertion index among present
// slots, returning false if the ring is empty.
func (r *Ring) SelectInsertIndex() bool {
	best := -1
	for i, s := range r.Slots {
		if !s.Present {
			continue
		}
		if best == -1 {
			best = i
			continue
		}
		bs := r.Slots[best]
		if s.InstallOrder < bs.InstallOrder || (s.InstallOrder == bs.InstallOrder && s.Lifetime < bs.Lifetime) {
			best = i
		}
	}
	if best == -1 {
		return false
	}
	r.SetInsertIndex(best)
	return true
}

// HashGenerate returns SHA-256(key)[0:8] for each present slot and zero
// bytes for absent slots. Pure function of key bytes: identical key
// bytes always yield identical hashes regardless of insertion history.
func (r *Ring) HashGenerate(backend *crypto.Backend) [][8]byte {
	out := make([][8]byte, len(r.Slots))
	for i, s := range r.Slots {
		if s.Present {
			out[i] = backend.GTKHash(s.Key)
		}
	}
	return out
}

// LifetimeDecrement advances slot index's remaining lifetime by -seconds.
// When allowStatusUpdate is set and the lifetime
// reaches zero, the slot is cleared. Returns the new remaining lifetime (0
// if the slot was absent or just cleared).
func (r *Ring) LifetimeDecrement(index int, seconds int, allowStatusUpdate bool) int {
	if index < 0 || index >= len(r.Slots) {
		return 0
	}
	slot := &r.Slots[index]
	if !slot.Present {
		return 0
	}

	slot.Lifetime -= seconds
	if slot.Lifetime < 0 {
		slot.Lifetime = 0
	}
	remaining := slot.Lifetime

	if remaining == 0 && allowStatusUpdate {
		r.Clear(index)
		return 0
	}
	return remaining
}

// ActiveIndex returns the index of the active slot, if any.
func (r *Ring) ActiveIndex() (int, bool) {
	for i, s := range r.Slots {
		if s.Present && s.Status == StatusActive {
			return i, true
		}
	}
	return 0, false
}
