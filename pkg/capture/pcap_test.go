package capture

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNoPathSinkIsNoop(t *testing.T) {
	s, err := Open("")
	if err != nil {
		t.Fatalf("Open(\"\"): %v", err)
	}
	if err := s.Write(DirectionRx, time.Now(), 11, -40, []byte{1, 2, 3}); err != nil {
		t.Fatalf("Write on no-op sink: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close on no-op sink: %v", err)
	}
}

func TestNilSinkIsNoop(t *testing.T) {
	var s *Sink
	if err := s.Write(DirectionTx, time.Now(), 0, 0, []byte{1}); err != nil {
		t.Fatalf("Write on nil sink: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close on nil sink: %v", err)
	}
}

func TestOpenWritesReadableFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capture.pcapng")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Write(DirectionRx, time.Now(), 11, -40, []byte{0xde, 0xad, 0xbe, 0xef}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Write(DirectionTx, time.Now(), 12, 0, []byte{0x01, 0x02}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("expected non-empty capture file")
	}
}
