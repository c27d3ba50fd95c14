// Package macbridge translates upper-MAC data requests into RCP transmits,
// correlates transmit confirmations with their in-flight frame contexts,
// and routes RCP indications back to the LLC, tapping both directions
// through the pcap sink when one is configured.
package macbridge

import (
	"errors"
	"sync"
	"time"

	"github.com/wisun-go/wsbrd/pkg/frame"
	"github.com/wisun-go/wsbrd/pkg/hif"
	"github.com/wisun-go/wsbrd/pkg/neighbor"
	"github.com/wisun-go/wsbrd/pkg/rcp"
)

// FrameKind classifies an outgoing frame for scheduling and bookkeeping.
type FrameKind int

const (
	KindUnicastFFN FrameKind = iota
	KindUnicastLFN
	KindBroadcastFFN
	KindBroadcastLFN
	KindAsync
	KindEAPOL
)

func (k FrameKind) unicast() bool {
	return k == KindUnicastFFN || k == KindUnicastLFN || k == KindEAPOL
}

func (k FrameKind) fhssType() hif.FHSSType {
	switch k {
	case KindUnicastLFN:
		return hif.FHSSTypeLFNUnicast
	case KindBroadcastFFN:
		return hif.FHSSTypeFFNBroadcast
	case KindBroadcastLFN:
		return hif.FHSSTypeLFNBroadcast
	case KindAsync:
		return hif.FHSSTypeAsync
	default:
		return hif.FHSSTypeFFNUnicast
	}
}

// ConfirmStatus is the outcome delivered to the LLC for one Submit call,
// surfaced verbatim from the RCP status except when synthesized locally for
// an unknown unicast destination.
type ConfirmStatus int

const (
	ConfirmSuccess ConfirmStatus = iota
	ConfirmNoAck
	ConfirmCCAFail
	ConfirmTimedOut
)

// DataRequest is the host-to-core submission contract.
type DataRequest struct {
	Kind          FrameKind
	AckRequired   bool
	Dst           [8]byte
	HasDst        bool
	Broadcast     bool
	Security      frame.SecurityLevel
	KeyIndex      uint8
	HasKeyIndex   bool
	HeaderIEs     []byte
	PayloadIEs    [][]byte
	Payload       []byte
	ModeSwitch    hif.ModeSwitchType
	Rates         []byte
	LocalEUI64    [8]byte
	LocalPANID    uint16
	SuppressPANID bool
}

// Confirm is delivered exactly once per accepted Submit call, whether it
// came back from the RCP or was synthesized for a missing neighbor.
type Confirm struct {
	Handle byte
	Status ConfirmStatus
	RxIEs  [][]byte
}

// Indication is delivered to the LLC for every successfully parsed ingress
// frame. A parse failure is a silent drop, never an Indication.
type Indication struct {
	Header     frame.Header
	HeaderIEs  []byte
	PayloadIEs [][]byte
	Payload    []byte
	Channel    uint8
	RSSI       int8
}

// Errors returned by Submit's precondition checks. These are programmer
// errors in the caller, never recoverable conditions.
var (
	ErrAckWithAsync        = errors.New("macbridge: ackRequired is forbidden with async frames")
	ErrAddrModeMismatch    = errors.New("macbridge: broadcast/async frames must have no explicit destination")
	ErrUnicastNeedsDst     = errors.New("macbridge: unicast frames must carry a 64-bit destination")
	ErrUnsupportedSecurity = errors.New("macbridge: only security levels none or MIC-64 are accepted")
	ErrTooManyPayloadIEs   = errors.New("macbridge: at most two payload-IE vectors are accepted")
)

// Logger is the minimal structured-logging surface the bridge needs, kept
// as an interface so macbridge never imports zerolog directly.
type Logger interface {
	Drop(reason string, fields map[string]interface{})
}

// Counters is the health-monitor surface the bridge feeds; nil disables it.
type Counters interface {
	RecordRx()
	RecordTx()
	RecordConfirm()
	RecordDropMalformed()
}

// PcapSink receives one record per frame crossing the bridge in either
// direction, carrying the RCP-supplied timestamp.
type PcapSink interface {
	WriteRx(rcpTimestamp time.Time, channel uint8, rssi int8, frameBytes []byte) error
	WriteTx(rcpTimestamp time.Time, frameBytes []byte) error
}

// frameContext is the transient per-transmit record: exactly one exists per
// in-flight handle, created on transmit-enqueue and removed when the
// matching confirm arrives. The encoded frame is retained so the pcap
// record can be stamped with the RCP's transmit timestamp from the confirm.
type frameContext struct {
	kind    FrameKind
	dst     [8]byte
	hasDst  bool
	created time.Time
	encoded []byte
}

// Bridge ties the frame codec, RCP transport and neighbor table together
// behind the single Submit/confirm/indication contract. Not safe for
// concurrent Submit calls; the single-threaded cooperative model applies.
type Bridge struct {
	transport *rcp.Transport
	neighbors *neighbor.Table
	pcap      PcapSink
	logger    Logger
	counters  Counters

	confirmCb    func(Confirm)
	indicationCb func(Indication)

	mu         sync.Mutex
	nextHandle byte
	inFlight   map[byte]*frameContext
}

// New builds a bridge over an already-Ready transport. pcap, logger and
// counters may each be nil.
func New(transport *rcp.Transport, neighbors *neighbor.Table, pcap PcapSink, logger Logger) *Bridge {
	return &Bridge{
		transport: transport,
		neighbors: neighbors,
		pcap:      pcap,
		logger:    logger,
		inFlight:  make(map[byte]*frameContext),
	}
}

// SetCounters attaches a health monitor to the bridge's rx/tx/drop paths.
func (b *Bridge) SetCounters(c Counters) {
	b.counters = c
}

// SetCallbacks registers the LLC's confirm and indication handlers.
func (b *Bridge) SetCallbacks(onConfirm func(Confirm), onIndication func(Indication)) {
	b.confirmCb = onConfirm
	b.indicationCb = onIndication
}

// InFlight reports the number of outstanding transmit contexts.
func (b *Bridge) InFlight() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.inFlight)
}

// Submit assembles and transmits one data request. A unicast whose
// destination is not in the neighbor table short-circuits with a
// synthesized TIMED_OUT confirm carrying the request's handle; the RCP
// never sees a transmit opcode in that case. Either way the caller gets
// exactly one confirm.
func (b *Bridge) Submit(req DataRequest) error {
	if err := validate(req); err != nil {
		return err
	}

	var schedule hif.FHSSScheduleHint
	if req.Kind.unicast() {
		n, ok := b.neighbors.Lookup(req.Dst)
		if !ok {
			handle := b.allocateContext(req, nil)
			b.releaseContext(handle)
			b.deliverConfirm(Confirm{Handle: handle, Status: ConfirmTimedOut})
			return nil
		}
		schedule = hif.FHSSScheduleHint{
			BroadcastIntervalMs: n.UnsecuredSchedule.BroadcastIntervalMs,
			UnicastDwellMs:      n.UnsecuredSchedule.UnicastDwellMs,
			Clock:               n.UnsecuredSchedule.Clock,
		}
	}

	header := frame.Header{
		Type:          frame.FrameTypeData,
		AckRequired:   req.AckRequired,
		PANID:         req.LocalPANID,
		SuppressPANID: req.SuppressPANID,
		Dst:           req.Dst,
		HasDst:        req.HasDst,
		Broadcast:     req.Broadcast,
		Src:           req.LocalEUI64,
		KeyIndex:      req.KeyIndex,
		HasKeyIndex:   req.HasKeyIndex,
		Security:      req.Security,
	}

	encoded, err := frame.Encode(header, req.HeaderIEs, req.PayloadIEs, req.Payload)
	if err != nil {
		return err
	}

	handle := b.allocateContext(req, encoded)
	err = b.transport.Transmit(hif.TransmitDataPayload{
		Handle:     handle,
		FHSSType:   req.Kind.fhssType(),
		Schedule:   schedule,
		ModeSwitch: req.ModeSwitch,
		Rates:      req.Rates,
		Frame:      encoded,
	})
	if err != nil {
		b.releaseContext(handle)
		return err
	}
	if b.counters != nil {
		b.counters.RecordTx()
	}
	return nil
}

func validate(req DataRequest) error {
	if req.AckRequired && req.Kind == KindAsync {
		return ErrAckWithAsync
	}
	if (req.Kind == KindAsync || req.Broadcast) && req.HasDst {
		return ErrAddrModeMismatch
	}
	if req.Kind.unicast() && !req.HasDst {
		return ErrUnicastNeedsDst
	}
	if req.Security != frame.SecurityNone && req.Security != frame.SecurityMIC64 {
		return ErrUnsupportedSecurity
	}
	if len(req.PayloadIEs) > 2 {
		return ErrTooManyPayloadIEs
	}
	return nil
}

func (b *Bridge) allocateContext(req DataRequest, encoded []byte) byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	// Handle values are recycled only after a confirm or declared loss; skip
	// any still in flight so at most one context exists per value.
	h := b.nextHandle
	for {
		if _, busy := b.inFlight[h]; !busy {
			break
		}
		h++
	}
	b.nextHandle = h + 1
	b.inFlight[h] = &frameContext{
		kind:    req.Kind,
		dst:     req.Dst,
		hasDst:  req.HasDst,
		created: time.Now(),
		encoded: encoded,
	}
	return h
}

func (b *Bridge) releaseContext(h byte) *frameContext {
	b.mu.Lock()
	defer b.mu.Unlock()
	ctx := b.inFlight[h]
	delete(b.inFlight, h)
	return ctx
}

// HandleIndication processes one rcp.Indication, routing it to the
// registered confirm/indication callbacks. localPANID disambiguates a
// suppressed source PAN in the decoded frame.
func (b *Bridge) HandleIndication(ind rcp.Indication, localPANID uint16) {
	switch {
	case ind.Conf != nil:
		b.handleConfirm(ind.Conf, localPANID)
	case ind.Rx != nil:
		b.handleRx(ind.Rx, localPANID)
	}
}

func (b *Bridge) handleConfirm(conf *hif.TxConfirmationPayload, localPANID uint16) {
	ctx := b.releaseContext(conf.Handle)

	rcpTime := time.UnixMicro(int64(conf.TimestampUs))
	if b.pcap != nil && ctx != nil && ctx.encoded != nil {
		b.pcap.WriteTx(rcpTime, ctx.encoded)
	}

	var status ConfirmStatus
	switch conf.Status {
	case hif.TxStatusNoAck:
		status = ConfirmNoAck
	case hif.TxStatusCCAFail:
		status = ConfirmCCAFail
	case hif.TxStatusTimedOut:
		status = ConfirmTimedOut
	default:
		status = ConfirmSuccess
	}

	var rxIEs [][]byte
	if len(conf.AckFrame) > 0 {
		if d, err := frame.Decode(conf.AckFrame, localPANID); err == nil {
			rxIEs = d.PayloadIEs
		}
		if b.pcap != nil {
			b.pcap.WriteRx(rcpTime, 0, 0, conf.AckFrame)
		}
	}

	b.deliverConfirm(Confirm{Handle: conf.Handle, Status: status, RxIEs: rxIEs})
}

func (b *Bridge) handleRx(rx *hif.RxIndicationPayload, localPANID uint16) {
	if b.counters != nil {
		b.counters.RecordRx()
	}
	if b.pcap != nil {
		b.pcap.WriteRx(time.UnixMicro(int64(rx.TimestampUs)), rx.Channel, rx.RSSI, rx.Frame)
	}

	d, err := frame.Decode(rx.Frame, localPANID)
	if err != nil {
		if b.counters != nil {
			b.counters.RecordDropMalformed()
		}
		if b.logger != nil {
			b.logger.Drop("malformed-frame", map[string]interface{}{"error": err.Error()})
		}
		return
	}
	b.deliverIndication(Indication{
		Header:     d.Header,
		HeaderIEs:  d.HeaderIEs,
		PayloadIEs: d.PayloadIEs,
		Payload:    d.Payload,
		Channel:    rx.Channel,
		RSSI:       rx.RSSI,
	})
}

func (b *Bridge) deliverConfirm(c Confirm) {
	if b.counters != nil {
		b.counters.RecordConfirm()
	}
	if b.confirmCb != nil {
		b.confirmCb(c)
	}
}

func (b *Bridge) deliverIndication(i Indication) {
	if b.indicationCb != nil {
		b.indicationCb(i)
	}
}
