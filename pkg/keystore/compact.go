package keystore

// Compact is the authenticator-side compact storage record: a
// size-minimized version of Supplicant with a 16-bit replay counter and
// short-format lifetimes, sufficient to resume authenticator state across a
// restart. This is the only shape that is ever persisted; the file I/O
// itself lives in pkg/keystorage, which treats this as a plain value type.
//
// The on-air GTK hash is 8 bytes while the stored per-index record is 2.
// Compact only ever carries the 2-byte prefix: ToCompact keeps the first two
// bytes of each recorded hash, and FromCompact restores them zero-padded to
// 8 bytes.
type Compact struct {
	RemoteEUI64 [8]byte

	HasPMK        bool
	PMK           [32]byte
	PMKLifetimeHr uint16 // short format: whole hours remaining

	HasPTK        bool
	PTK           [ptkLen]byte
	PTKLifetimeHr uint16

	ReplayCnt uint16

	// InsertedHash2 is the 2-byte compact form (CompactGTKHash) of the last
	// hash recorded for each GTK ring index, keyed by index, present only
	// for indices that were actually recorded.
	InsertedHash2 map[int][2]byte
}

// ToCompact converts full supplicant state into its persisted form. Exact
// seconds-of-lifetime precision is lost; the short format is whole hours.
func (s *Supplicant) ToCompact() Compact {
	c := Compact{
		RemoteEUI64:   s.RemoteEUI64,
		HasPMK:        s.hasPMK,
		PMK:           s.PMK,
		PMKLifetimeHr: uint16(s.PMKLifetime / 3600),
		HasPTK:        s.hasPTK,
		PTK:           s.PTK,
		PTKLifetimeHr: uint16(s.PTKLifetime / 3600),
		ReplayCnt:     s.ReplayCnt(),
		InsertedHash2: make(map[int][2]byte, len(s.insertedHash)),
	}
	for idx, h := range s.insertedHash {
		c.InsertedHash2[idx] = [2]byte{h[0], h[1]}
	}
	return c
}

// FromCompact reconstructs a Supplicant from its persisted form. The full
// hash per index cannot be recovered (only its 2-byte prefix survived);
// HashMismatchCheck compares only that 2-byte prefix, so a restored
// Supplicant answers it the same way as one whose full hash was recorded
// live.
func FromCompact(c Compact) *Supplicant {
	s := NewSupplicant(c.RemoteEUI64)
	if c.HasPMK {
		s.SetPMK(c.PMK, int(c.PMKLifetimeHr)*3600)
		s.replayCnt = uint64(c.ReplayCnt)
		s.replayCntSet = true
	}
	if c.HasPTK {
		s.SetPTK(c.PTK, int(c.PTKLifetimeHr)*3600)
	}
	for idx, h2 := range c.InsertedHash2 {
		s.insertedHash[idx] = [8]byte{h2[0], h2[1]}
	}
	return s
}
