// Package keystorage persists the authenticator's compact key records, the
// only on-disk state the daemon keeps, written atomically via a
// temp-file-then-rename so a crash mid-write never corrupts the file on
// disk.
package keystorage

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"

	"github.com/wisun-go/wsbrd/pkg/keystore"
)

// Record is the on-disk shape: one compact supplicant record per known peer.
// Nothing else is ever persisted — not the GTK ring, not neighbor state, not
// handshake-in-progress bookkeeping.
type Record struct {
	Supplicants []keystore.Compact
}

// Load reads the persisted supplicant records from path. A missing file is
// not an error — it means the daemon has never persisted anything yet, and
// the authenticator starts with an empty key store.
func Load(path string) ([]keystore.Compact, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("keystorage: read %s: %w", path, err)
	}

	var rec Record
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		return nil, fmt.Errorf("keystorage: decode %s: %w", path, err)
	}
	return rec.Supplicants, nil
}

// Save writes the compact form of every supplicant in store to path,
// replacing any prior contents. The write lands in a sibling temp file first
// and is only renamed into place once it is fully flushed, so a reader never
// observes a partial file.
func Save(path string, store *keystore.Store) error {
	sups := store.Supplicants()
	rec := Record{Supplicants: make([]keystore.Compact, 0, len(sups))}
	for _, sup := range sups {
		rec.Supplicants = append(rec.Supplicants, sup.ToCompact())
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return fmt.Errorf("keystorage: encode: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("keystorage: write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("keystorage: rename into place: %w", err)
	}
	return nil
}

// Restore loads path and installs every recovered supplicant into store,
// used once at startup to resume authenticator state across a restart.
func Restore(path string, store *keystore.Store) error {
	compacts, err := Load(path)
	if err != nil {
		return err
	}
	for _, c := range compacts {
		sup := keystore.FromCompact(c)
		store.Adopt(sup)
	}
	return nil
}
