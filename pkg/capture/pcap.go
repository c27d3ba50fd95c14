// Package capture is the packet-capture tap: it writes every RCP-bound and
// RCP-sourced 802.15.4 frame to a pcap file via gopacket/pcapgo, stamping
// each record with the RCP-supplied timestamp rather than wall-clock
// capture time. An unconfigured path makes the tap a no-op; the sink
// carries no invariant-bearing state.
package capture

import (
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Direction distinguishes a frame handed to the RCP from one received from it.
type Direction int

const (
	DirectionRx Direction = iota
	DirectionTx
)

// linkTypeIEEE802154 is DLT_IEEE802_15_4_NOFCS (195). gopacket's layers
// package has no named constant for it, so the numeric value is used
// directly, matching the synthetic-linktype note in the design ledger.
const linkTypeIEEE802154 = layers.LinkType(195)

// Sink writes captured 802.15.4 frames to a pcap file in the classic
// libpcap format; it does not write pcap-ng. The zero value
// silently discards every Write call — the "no capture configured" state.
type Sink struct {
	mu     sync.Mutex
	file   *os.File
	writer *pcapgo.Writer
}

// Open creates (or truncates) path and writes the pcap file header. Pass
// an empty path to get a Sink that discards every write.
func Open(path string) (*Sink, error) {
	if path == "" {
		return &Sink{}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65535, linkTypeIEEE802154); err != nil {
		f.Close()
		return nil, err
	}
	return &Sink{file: f, writer: w}, nil
}

// Write records one captured frame. rcpTimestamp is the RCP-supplied capture
// time, threaded through gopacket.CaptureInfo; rssi is meaningful for rx
// frames only, per the Capture record's "RSSI (rx only)" attribute.
func (s *Sink) Write(dir Direction, rcpTimestamp time.Time, channel uint8, rssi int8, frameBytes []byte) error {
	if s == nil || s.writer == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ci := gopacket.CaptureInfo{
		Timestamp:     rcpTimestamp,
		CaptureLength: len(frameBytes),
		Length:        len(frameBytes),
		AncillaryData: []interface{}{Metadata{Direction: dir, Channel: channel, RSSI: rssi}},
	}
	return s.writer.WritePacket(ci, frameBytes)
}

// Metadata rides along in gopacket.CaptureInfo.AncillaryData for any
// downstream in-process consumer — the classic pcap record header has no
// direction/channel/RSSI fields, so these never reach the file itself.
type Metadata struct {
	Direction Direction
	Channel   uint8
	RSSI      int8
}

// Close flushes and closes the underlying file; a no-op for a no-capture Sink.
func (s *Sink) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	return s.file.Close()
}

// WriteRx records one frame received from the RCP.
func (s *Sink) WriteRx(rcpTimestamp time.Time, channel uint8, rssi int8, frameBytes []byte) error {
	return s.Write(DirectionRx, rcpTimestamp, channel, rssi, frameBytes)
}

// WriteTx records one frame handed to the RCP, stamped with the transmit
// time reported in its confirm.
func (s *Sink) WriteTx(rcpTimestamp time.Time, frameBytes []byte) error {
	return s.Write(DirectionTx, rcpTimestamp, 0, 0, frameBytes)
}
