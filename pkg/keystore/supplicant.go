package keystore

// replayCntMax is the saturation point for the PMK replay counter: an
// increment past this value fails and forces a PMK rekey.
const replayCntMax = 60000

// ptkLen is the PTK size in bytes (KCK + KEK + temporal key halves).
const ptkLen = 48

// Supplicant holds the per-peer PMK/PTK derivation state the authenticator
// keeps while running the 4-way handshake and servicing GTK updates for one
// remote EUI-64.
type Supplicant struct {
	RemoteEUI64 [8]byte

	hasPMK      bool
	PMK         [32]byte
	PMKLifetime int

	// replayCnt is kept as a full 64-bit counter internally so "never set"
	// (replayCntSet == false) is distinguishable from zero; only the low 16
	// bits are meaningful on the wire.
	replayCnt    uint64
	replayCntSet bool

	hasPTK      bool
	PTK         [ptkLen]byte
	PTKLifetime int

	// GTKL is the GTK-liveness bitmap last advertised by this peer.
	GTKL byte

	PMKMismatch bool
	PTKMismatch bool

	// insertedHash records, per GTK ring index, the hash we most recently
	// told this supplicant we inserted using the current PTK, used to
	// detect the peer reusing a PTK across a GTK change.
	insertedHash map[int][8]byte
}

// NewSupplicant creates per-peer key state for remoteEUI64.
func NewSupplicant(remoteEUI64 [8]byte) *Supplicant {
	return &Supplicant{
		RemoteEUI64:  remoteEUI64,
		insertedHash: make(map[int][8]byte),
	}
}

// SetPMK installs a freshly-derived PMK and its lifetime. Callers derive and
// set the PTK separately once the handshake has the material for it.
func (s *Supplicant) SetPMK(pmk [32]byte, lifetime int) {
	s.PMK = pmk
	s.PMKLifetime = lifetime
	s.hasPMK = true
	s.replayCnt = 0
	s.replayCntSet = true
}

// HasPMK reports whether a PMK is currently installed.
func (s *Supplicant) HasPMK() bool { return s.hasPMK }

// SetPTK installs a derived PTK and its lifetime.
func (s *Supplicant) SetPTK(ptk [ptkLen]byte, lifetime int) {
	s.PTK = ptk
	s.PTKLifetime = lifetime
	s.hasPTK = true
	s.insertedHash = make(map[int][8]byte)
}

// HasPTK reports whether a PTK is currently installed.
func (s *Supplicant) HasPTK() bool { return s.hasPTK }

// KCK and KEK split the PTK into its key-confirmation and key-encryption
// halves, the two portions the 4-way handshake actually uses.
func (s *Supplicant) KCK() []byte { return s.PTK[0:16] }
func (s *Supplicant) KEK() []byte { return s.PTK[16:32] }

// PMKLifetimeDecrement advances the PMK lifetime by -seconds, cascading
// deletion of both PMK and PTK on crossing zero. Returns true if the PMK
// (and therefore PTK) was deleted.
func (s *Supplicant) PMKLifetimeDecrement(seconds int) bool {
	if !s.hasPMK {
		return false
	}
	s.PMKLifetime -= seconds
	if s.PMKLifetime <= 0 {
		s.PMKLifetime = 0
		s.hasPMK = false
		s.hasPTK = false
		s.PTK = [ptkLen]byte{}
		s.insertedHash = make(map[int][8]byte)
		return true
	}
	return false
}

// PTKLifetimeDecrement advances the PTK lifetime by -seconds, deleting only
// the PTK on crossing zero. Returns true if the PTK was deleted.
func (s *Supplicant) PTKLifetimeDecrement(seconds int) bool {
	if !s.hasPTK {
		return false
	}
	s.PTKLifetime -= seconds
	if s.PTKLifetime <= 0 {
		s.PTKLifetime = 0
		s.hasPTK = false
		s.PTK = [ptkLen]byte{}
		s.insertedHash = make(map[int][8]byte)
		return true
	}
	return false
}

// ReplayCntIncrement advances the PMK replay counter by one, refusing to
// cross replayCntMax (returns false, forcing a PMK rekey by the caller).
func (s *Supplicant) ReplayCntIncrement() bool {
	if s.replayCntSet && s.replayCnt >= replayCntMax {
		return false
	}
	s.replayCnt++
	s.replayCntSet = true
	return true
}

// ReplayCnt returns the counter's low 16 bits, the wire-encoded form.
func (s *Supplicant) ReplayCnt() uint16 {
	return uint16(s.replayCnt & 0xffff)
}

// ReplayCntInternal exposes the full internal counter and whether it has
// ever been set, the distinction the 16-bit ReplayCnt cannot carry.
func (s *Supplicant) ReplayCntInternal() (value uint64, set bool) {
	return s.replayCnt, s.replayCntSet
}

// RecordInsertedHash notes that GTK ring index was advertised to this
// supplicant, under the current PTK, with the given hash.
func (s *Supplicant) RecordInsertedHash(index int, hash [8]byte) {
	s.insertedHash[index] = hash
}

// HashMismatchCheck reports whether our current slot-index GTK hash differs
// from what we last recorded as inserted to this supplicant under the
// current PTK. Only the first two bytes are compared — the portion that
// survives the compact storage round trip — so a restored record and a
// freshly recorded one behave identically.
func (s *Supplicant) HashMismatchCheck(index int, currentHash [8]byte) bool {
	recorded, ok := s.insertedHash[index]
	if !ok {
		return true
	}
	return recorded[0] != currentHash[0] || recorded[1] != currentHash[1]
}
