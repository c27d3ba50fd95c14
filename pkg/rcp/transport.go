// Package rcp implements the transport to the RCP: the length-framed
// request/indication channel to the radio co-processor, its version
// handshake, and its connection state machine. The wire framing itself is
// handled by pkg/hif; this package owns the Closed -> Opening ->
// WaitingReset -> WaitingRfList -> Ready progression and the request verbs
// that are only legal once Ready.
package rcp

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/wisun-go/wsbrd/pkg/hif"
)

// State is a position in the transport's connection lifecycle.
type State int

const (
	StateClosed State = iota
	StateOpening
	StateWaitingReset
	StateWaitingRfList
	StateReady
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateWaitingReset:
		return "waiting-reset"
	case StateWaitingRfList:
		return "waiting-rf-list"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// minAPIMajor is the lowest RCP API major version this daemon will talk to;
// anything below 2.0.0 is rejected at handshake.
const minAPIMajor = 2

// Errors returned by Transport methods.
var (
	ErrNotReady          = errors.New("rcp: transmit attempted outside ready state")
	ErrIncompatibleAPI   = errors.New("rcp: RCP API version below minimum supported")
	ErrUnexpectedReset   = errors.New("rcp: unexpected reset indication after ready")
	ErrUnexpectedIndication = errors.New("rcp: indication received out of sequence")
)

// HostAPIVersion is the version this daemon advertises to the RCP via
// set-host-api.
type HostAPIVersion struct {
	Major, Minor, Patch byte
}

// RadioConfig is one entry from the RCP's enumerated radio-config list
// (rf-list), opaque beyond what startup needs to select a regulatory domain.
type RadioConfig struct {
	Index   int
	ChanCount int
}

// Indication is the union of events the transport surfaces to its owner
// (the MAC bridge) once connected. Exactly one of the typed fields is
// populated per value.
type Indication struct {
	Rx   *hif.RxIndicationPayload
	Conf *hif.TxConfirmationPayload
}

// Transport drives one RCP connection. Not safe for concurrent use beyond
// what its internal mutex protects for the read-loop/writer split — the
// core's single-threaded cooperative model still applies to its exported
// operations.
type Transport struct {
	rw   io.ReadWriteCloser
	host HostAPIVersion

	mu          sync.Mutex
	state       State
	eui64       [8]byte
	apiVersion  [3]byte
	radioConfigs []RadioConfig
}

// New wraps rw (typically a *tarm/serial.Port, or a net.Conn for the
// co-located-test IPC fallback) in a closed transport.
func New(rw io.ReadWriteCloser, host HostAPIVersion) *Transport {
	return &Transport{rw: rw, host: host, state: StateClosed}
}

// State returns the transport's current connection state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// EUI64 returns the RCP's hardware address, valid once Ready.
func (t *Transport) EUI64() [8]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.eui64
}

// Open sends the reset request and host API version, and performs the
// handshake up through WaitingRfList; it does not return until a
// RadioConfigList indication arrives or an error occurs. Open only gets the
// transport to the point where it knows what configs exist; the caller then
// applies one (SetRadio, EnableRadio, ...) and calls MarkReady to reach
// Ready.
func (t *Transport) Open() error {
	t.mu.Lock()
	t.state = StateOpening
	t.mu.Unlock()

	if err := t.send(hif.Frame{Opcode: hif.OpReset}); err != nil {
		return err
	}
	t.mu.Lock()
	t.state = StateWaitingReset
	t.mu.Unlock()

	f, err := hif.ReadFrame(t.rw)
	if err != nil {
		return fmt.Errorf("rcp: reading reset indication: %w", err)
	}
	if f.Opcode != hif.OpResetIndication {
		return fmt.Errorf("%w: opcode 0x%02x", ErrUnexpectedIndication, f.Opcode)
	}
	ind, err := hif.DecodeResetIndication(f.Payload)
	if err != nil {
		return err
	}
	if ind.APIMajor < minAPIMajor {
		return fmt.Errorf("%w: got %d.%d.%d", ErrIncompatibleAPI, ind.APIMajor, ind.APIMinor, ind.APIPatch)
	}

	t.mu.Lock()
	t.eui64 = ind.EUI64
	t.apiVersion = [3]byte{ind.APIMajor, ind.APIMinor, ind.APIPatch}
	t.state = StateWaitingRfList
	t.mu.Unlock()

	if err := t.send(hif.Frame{
		Opcode:  hif.OpSetHostAPI,
		Payload: hif.EncodeSetHostAPI(t.host.Major, t.host.Minor, t.host.Patch),
	}); err != nil {
		return err
	}
	if err := t.send(hif.Frame{Opcode: hif.OpListRadioConfigs}); err != nil {
		return err
	}

	f, err = hif.ReadFrame(t.rw)
	if err != nil {
		return fmt.Errorf("rcp: reading radio config list: %w", err)
	}
	if f.Opcode != hif.OpRadioConfigList {
		return fmt.Errorf("%w: opcode 0x%02x", ErrUnexpectedIndication, f.Opcode)
	}
	t.mu.Lock()
	t.radioConfigs = decodeRadioConfigList(f.Payload)
	t.mu.Unlock()
	return nil
}

// RadioConfigs returns the RCP-enumerated radio configurations discovered
// during Open.
func (t *Transport) RadioConfigs() []RadioConfig {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]RadioConfig, len(t.radioConfigs))
	copy(out, t.radioConfigs)
	return out
}

// MarkReady transitions WaitingRfList -> Ready once the caller has selected
// and applied a radio config (set-radio + enable-radio), which this package
// leaves to the caller since the selection policy is config-driven.
func (t *Transport) MarkReady() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = StateReady
}

// Transmit sends a transmit-data request. Forbidden outside Ready.
func (t *Transport) Transmit(p hif.TransmitDataPayload) error {
	if t.State() != StateReady {
		return ErrNotReady
	}
	return t.send(hif.Frame{Opcode: hif.OpTransmitData, Payload: hif.EncodeTransmitData(p)})
}

// Next blocks for the next indication from the RCP once Ready, decoding it
// into the Indication union. An unexpected reset-indication after Ready is
// fatal: reconnect is not a supported transition for this daemon.
func (t *Transport) Next() (Indication, error) {
	f, err := hif.ReadFrame(t.rw)
	if err != nil {
		return Indication{}, err
	}
	switch f.Opcode {
	case hif.OpResetIndication:
		return Indication{}, ErrUnexpectedReset
	case hif.OpRxIndication:
		rx, err := hif.DecodeRxIndication(f.Payload)
		if err != nil {
			return Indication{}, err
		}
		return Indication{Rx: &rx}, nil
	case hif.OpTxConfirmation:
		conf, err := hif.DecodeTxConfirmation(f.Payload)
		if err != nil {
			return Indication{}, err
		}
		return Indication{Conf: &conf}, nil
	default:
		return Indication{}, fmt.Errorf("%w: opcode 0x%02x", ErrUnexpectedIndication, f.Opcode)
	}
}

// Close releases the underlying transport.
func (t *Transport) Close() error {
	t.mu.Lock()
	t.state = StateClosed
	t.mu.Unlock()
	return t.rw.Close()
}

func (t *Transport) send(f hif.Frame) error {
	b, err := hif.Encode(f)
	if err != nil {
		return err
	}
	_, err = t.rw.Write(b)
	return err
}

func decodeRadioConfigList(payload []byte) []RadioConfig {
	out := make([]RadioConfig, 0, len(payload)/2)
	for i := 0; i+1 < len(payload); i += 2 {
		out = append(out, RadioConfig{Index: int(payload[i]), ChanCount: int(payload[i+1])})
	}
	return out
}

// SetRadio applies the radio configuration at index, one of the entries
// enumerated during Open.
func (t *Transport) SetRadio(index int) error {
	return t.send(hif.Frame{Opcode: hif.OpSetRadio, Payload: []byte{byte(index)}})
}

// SetFHSSUnicast publishes the local unicast hopping schedule to the RCP.
func (t *Transport) SetFHSSUnicast(dwellMs uint8) error {
	return t.send(hif.Frame{Opcode: hif.OpSetFHSSUnicast, Payload: []byte{dwellMs}})
}

// SetFHSSAsync publishes the async transmission duration cap to the RCP.
func (t *Transport) SetFHSSAsync(maxDurationMs uint16) error {
	return t.send(hif.Frame{
		Opcode:  hif.OpSetFHSSAsync,
		Payload: []byte{byte(maxDurationMs >> 8), byte(maxDurationMs)},
	})
}

// EnableRadio turns the radio on. The caller marks the transport Ready once
// every startup verb has been issued.
func (t *Transport) EnableRadio() error {
	return t.send(hif.Frame{Opcode: hif.OpEnableRadio})
}

// SetSecurityKey installs a GAK into the RCP's key slot keyIndex so the
// lower MAC can fill MICs and decrypt on the air.
func (t *Transport) SetSecurityKey(keyIndex uint8, key [16]byte) error {
	payload := make([]byte, 17)
	payload[0] = keyIndex
	copy(payload[1:], key[:])
	return t.send(hif.Frame{Opcode: hif.OpSetSecurityKey, Payload: payload})
}
