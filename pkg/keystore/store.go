package keystore

import "github.com/wisun-go/wsbrd/pkg/crypto"

// FFNRingSize and LFNRingSize are the two Wi-SUN GTK ring sizes.
const (
	FFNRingSize = 4
	LFNRingSize = 3
)

// Store is the process-wide key store: the FFN and LFN GTK rings plus the
// per-supplicant PMK/PTK state. There is exactly one Store per running
// daemon; it is not safe for concurrent use without external
// synchronization, matching the single-threaded cooperative model the rest
// of the daemon shares.
type Store struct {
	FFN *Ring
	LFN *Ring

	Backend *crypto.Backend

	// NetworkName feeds the GAK derivation exposed over the management
	// property interface.
	NetworkName string

	supplicants map[[8]byte]*Supplicant
}

// New creates an empty key store.
func New(backend *crypto.Backend, networkName string) *Store {
	return &Store{
		FFN:         NewRing(FFNRingSize),
		LFN:         NewRing(LFNRingSize),
		Backend:     backend,
		NetworkName: networkName,
		supplicants: make(map[[8]byte]*Supplicant),
	}
}

// Supplicant returns the existing per-peer state for remoteEUI64, if any.
func (s *Store) Supplicant(remoteEUI64 [8]byte) (*Supplicant, bool) {
	sup, ok := s.supplicants[remoteEUI64]
	return sup, ok
}

// GetOrCreateSupplicant returns the existing state for remoteEUI64, creating
// it if this is the first time this peer is seen.
func (s *Store) GetOrCreateSupplicant(remoteEUI64 [8]byte) *Supplicant {
	sup, ok := s.supplicants[remoteEUI64]
	if !ok {
		sup = NewSupplicant(remoteEUI64)
		s.supplicants[remoteEUI64] = sup
	}
	return sup
}

// Adopt installs a Supplicant built by FromCompact directly into the store,
// used by the persisted-storage restore path to repopulate
// authenticator state without going through GetOrCreateSupplicant.
func (s *Store) Adopt(sup *Supplicant) {
	s.supplicants[sup.RemoteEUI64] = sup
}

// RemoveSupplicant drops all state for remoteEUI64, used when neighbor
// expiry cascades into key-store cleanup.
func (s *Store) RemoveSupplicant(remoteEUI64 [8]byte) {
	delete(s.supplicants, remoteEUI64)
}

// Supplicants returns a snapshot of all known supplicants, used by the
// persisted-storage dump and the daemon's lifetime and GTK-install sweeps.
func (s *Store) Supplicants() []*Supplicant {
	out := make([]*Supplicant, 0, len(s.supplicants))
	for _, sup := range s.supplicants {
		out = append(out, sup)
	}
	return out
}

// Gaks derives the Group AES Key for every present slot in the FFN ring, the
// concrete value behind the management property interface's read-only Gaks
// attribute. Absent slots are simply omitted; the property's array
// length follows the number of present GTKs.
func (s *Store) Gaks() [][16]byte {
	out := make([][16]byte, 0, len(s.FFN.Slots))
	for _, slot := range s.FFN.Slots {
		if slot.Present {
			out = append(out, s.Backend.GAK(s.NetworkName, slot.Key))
		}
	}
	return out
}

// EvaluateMismatch combines a lifetime mismatch observation with a hash
// mismatch observation into the ordered Mismatch discriminant: a hash
// mismatch always shadows a lifetime-only mismatch.
func EvaluateMismatch(lifetimeMismatch, hashMismatch bool) Mismatch {
	m := MismatchNone
	if lifetimeMismatch {
		m = Worse(m, MismatchLifetime)
	}
	if hashMismatch {
		m = Worse(m, MismatchHash)
	}
	return m
}
