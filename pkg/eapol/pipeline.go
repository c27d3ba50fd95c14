package eapol

import (
	"errors"
	"time"

	"github.com/wisun-go/wsbrd/pkg/crypto"
	"github.com/wisun-go/wsbrd/pkg/keystore"
	"github.com/wisun-go/wsbrd/pkg/timer"
)

// State is a supplicant's position in the EAP exchange.
type State int

const (
	StateIdle State = iota
	StateIdentityRequested
	StateTlsInProgress
	StateSuccess
	StateFailure
)

// Sender delivers an encoded EAPOL PDU to a remote peer; the concrete
// implementation is the MAC bridge's authenticated send path.
type Sender interface {
	Send(remoteEUI64 [8]byte, pdu []byte) error
}

// RadiusForwarder forwards an EAP payload to an upstream RADIUS server when
// one is configured; its absence means EAP-TLS is handled internally (not
// implemented in this core — Recv drops with a diagnostic in that case).
type RadiusForwarder interface {
	Forward(remoteEUI64 [8]byte, eapPayload []byte) error
}

// Logger is the minimal structured-logging surface the pipeline needs.
type Logger interface {
	Drop(reason string, fields map[string]interface{})
}

// ptkKDFLabel names the PTK derivation's HKDF info string, realized via
// the shared Backend.KDFHashLen256 built on golang.org/x/crypto/hkdf.
var ptkKDFLabel = []byte("wsbrd-ptk-derivation")

// supplicantSession is the pipeline's own per-peer retransmission state,
// distinct from (and referencing) the key store's Supplicant key material.
type supplicantSession struct {
	state       State
	lastID      uint8
	lastMessage []byte
	retries     int
}

// Config bundles the pipeline's policy knobs: retry ceiling and
// interval, and the local protocol version/EUI-64 used to frame outgoing
// PDUs and derive PTKs.
type Config struct {
	ProtocolVersion uint8
	RetryCeiling    int
	RetryInterval   time.Duration
	LocalEUI64      [8]byte
}

// Pipeline is the process-wide EAPOL/EAP pipeline. Not safe for
// concurrent use, matching the single-threaded cooperative model.
type Pipeline struct {
	cfg     Config
	backend *crypto.Backend
	store   *keystore.Store
	timers  *timer.Group
	sender  Sender
	radius  RadiusForwarder
	logger  Logger

	sessions map[[8]byte]*supplicantSession
}

// New builds a pipeline. radius may be nil (no RADIUS passthrough
// configured); logger may be nil.
func New(cfg Config, backend *crypto.Backend, store *keystore.Store, timers *timer.Group, sender Sender, radius RadiusForwarder, logger Logger) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		backend:  backend,
		store:    store,
		timers:   timers,
		sender:   sender,
		radius:   radius,
		logger:   logger,
		sessions: make(map[[8]byte]*supplicantSession),
	}
}

func (p *Pipeline) session(remoteEUI64 [8]byte) *supplicantSession {
	s, ok := p.sessions[remoteEUI64]
	if !ok {
		s = &supplicantSession{}
		p.sessions[remoteEUI64] = s
	}
	return s
}

// retransmitKey names this supplicant's retransmission timer in the shared
// timer group.
type retransmitKey [8]byte

// SendRequestIdentity resets the supplicant's EAP id sequence to 0,
// constructs an EAP Request/Identity with id = lastID + 1, wraps it in an
// EAPOL PDU, hands it to the send path, and arms the retransmission timer.
func (p *Pipeline) SendRequestIdentity(remoteEUI64 [8]byte) error {
	s := p.session(remoteEUI64)
	s.lastID = 0
	id := s.lastID + 1

	msg := EncodeEAP(RequestIdentity(id))
	pdu := WrapEAP(p.cfg.ProtocolVersion, msg)

	s.lastID = id
	s.lastMessage = pdu
	s.retries = 0
	s.state = StateIdentityRequested

	if err := p.sender.Send(remoteEUI64, pdu); err != nil {
		return err
	}
	p.timers.StartRel(retransmitKey(remoteEUI64), p.cfg.RetryInterval)
	return nil
}

// SendFailure constructs an EAP Failure and sends it once, without arming
// retransmission (RFC 3748 §4.2).
func (p *Pipeline) SendFailure(remoteEUI64 [8]byte) error {
	s := p.session(remoteEUI64)
	s.state = StateFailure
	p.timers.Stop(retransmitKey(remoteEUI64))

	msg := EncodeEAP(Failure(s.lastID))
	pdu := WrapEAP(p.cfg.ProtocolVersion, msg)
	return p.sender.Send(remoteEUI64, pdu)
}

// ErrStaleID is the cause attached to the drop diagnostic when Recv sees an
// EAP id that does not match the outstanding request. Recv itself returns
// nil in that case, so the mismatch is never propagated upstream.
var ErrStaleID = errors.New("eapol: stale or mismatched EAP identifier")

// Recv processes an inbound EAPOL PDU from remoteEUI64. A header or
// identifier mismatch is dropped silently, never surfaced to the peer.
func (p *Pipeline) Recv(remoteEUI64 [8]byte, pduBytes []byte) error {
	pdu, err := DecodePDU(pduBytes)
	if err != nil {
		p.drop("malformed-pdu", remoteEUI64, err)
		return nil
	}
	if pdu.Type != PDUTypeEAP {
		p.drop("unexpected-pdu-type", remoteEUI64, nil)
		return nil
	}

	eap, err := DecodeEAP(pdu.Body)
	if err != nil {
		p.drop("malformed-eap", remoteEUI64, err)
		return nil
	}

	s := p.session(remoteEUI64)
	if eap.ID != s.lastID {
		p.drop("eap-id-mismatch", remoteEUI64, ErrStaleID)
		return nil
	}

	p.timers.Stop(retransmitKey(remoteEUI64))

	if p.radius != nil {
		return p.radius.Forward(remoteEUI64, pdu.Body)
	}

	p.drop("eap-tls-not-implemented", remoteEUI64, nil)
	return nil
}

func (p *Pipeline) drop(reason string, remoteEUI64 [8]byte, cause error) {
	if p.logger == nil {
		return
	}
	fields := map[string]interface{}{"remote_eui64": remoteEUI64}
	if cause != nil {
		fields["error"] = cause.Error()
	}
	p.logger.Drop(reason, fields)
}

// HandleRetransmitTimeout is called by the host event loop when the shared
// timer group reports remoteEUI64's retransmission timer has fired. On
// exhausting the retry ceiling, the supplicant transitions to Failure and a
// Failure message is emitted downstream.
func (p *Pipeline) HandleRetransmitTimeout(remoteEUI64 [8]byte) error {
	s := p.session(remoteEUI64)
	s.retries++
	if s.retries >= p.cfg.RetryCeiling {
		return p.SendFailure(remoteEUI64)
	}
	if err := p.sender.Send(remoteEUI64, s.lastMessage); err != nil {
		return err
	}
	p.timers.StartRel(retransmitKey(remoteEUI64), p.cfg.RetryInterval)
	return nil
}

// HandleExpired processes the expired keys drained from the pipeline's
// timer group, driving retransmission for each supplicant whose timer
// fired. Keys not owned by the pipeline are ignored, so the group can be
// shared. Send failures are logged and do not stop the sweep.
func (p *Pipeline) HandleExpired(keys []timer.Timer) {
	for _, k := range keys {
		eui, ok := k.(retransmitKey)
		if !ok {
			continue
		}
		if err := p.HandleRetransmitTimeout([8]byte(eui)); err != nil {
			p.drop("retransmit-send-failed", [8]byte(eui), err)
		}
	}
}

// State reports a supplicant's current pipeline state.
func (p *Pipeline) State(remoteEUI64 [8]byte) State {
	return p.session(remoteEUI64).state
}

// CompleteHandshake installs a fresh PMK for remoteEUI64 and derives its PTK
// from the PMK and both endpoints' EUI-64s. Both are written through the
// key store, the sole owner of PMK/PTK state.
func (p *Pipeline) CompleteHandshake(remoteEUI64 [8]byte, pmk [32]byte, pmkLifetime, ptkLifetime int) error {
	sup := p.store.GetOrCreateSupplicant(remoteEUI64)
	sup.SetPMK(pmk, pmkLifetime)

	context := append(append([]byte{}, p.cfg.LocalEUI64[:]...), remoteEUI64[:]...)
	derived, err := p.backend.KDFHashLen256(pmk[:], ptkKDFLabel, context, 48*8)
	if err != nil {
		return err
	}
	var ptk [48]byte
	copy(ptk[:], derived)
	sup.SetPTK(ptk, ptkLifetime)

	s := p.session(remoteEUI64)
	s.state = StateSuccess
	p.timers.Stop(retransmitKey(remoteEUI64))
	return nil
}

// WrapGTK wraps gtk under remoteEUI64's PTK KEK half for carriage in the
// EAPOL key-data field of message 3 of the 4-way handshake.
func (p *Pipeline) WrapGTK(remoteEUI64 [8]byte, gtk [16]byte) ([]byte, error) {
	sup, ok := p.store.Supplicant(remoteEUI64)
	if !ok || !sup.HasPTK() {
		return nil, errors.New("eapol: no PTK installed for supplicant")
	}
	return p.backend.AESKeyWrap(sup.KEK(), gtk[:])
}
