package macbridge

import (
	"testing"
	"time"

	"github.com/wisun-go/wsbrd/pkg/hif"
	"github.com/wisun-go/wsbrd/pkg/neighbor"
	"github.com/wisun-go/wsbrd/pkg/rcp"
)

func TestValidateRejectsAckWithAsync(t *testing.T) {
	req := DataRequest{Kind: KindAsync, AckRequired: true}
	if err := validate(req); err != ErrAckWithAsync {
		t.Fatalf("expected ErrAckWithAsync, got %v", err)
	}
}

func TestValidateRejectsExplicitDestOnAsync(t *testing.T) {
	req := DataRequest{Kind: KindAsync, HasDst: true, Dst: [8]byte{1}}
	if err := validate(req); err != ErrAddrModeMismatch {
		t.Fatalf("expected ErrAddrModeMismatch, got %v", err)
	}
}

func TestValidateRejectsExplicitDestOnBroadcast(t *testing.T) {
	req := DataRequest{Kind: KindBroadcastFFN, Broadcast: true, HasDst: true}
	if err := validate(req); err != ErrAddrModeMismatch {
		t.Fatalf("expected ErrAddrModeMismatch, got %v", err)
	}
}

func TestValidateRequiresDestForUnicast(t *testing.T) {
	for _, kind := range []FrameKind{KindUnicastFFN, KindUnicastLFN, KindEAPOL} {
		req := DataRequest{Kind: kind}
		if err := validate(req); err != ErrUnicastNeedsDst {
			t.Fatalf("kind %v: expected ErrUnicastNeedsDst, got %v", kind, err)
		}
	}
}

func TestValidateRejectsTooManyPayloadIEs(t *testing.T) {
	req := DataRequest{
		Kind:       KindUnicastFFN,
		HasDst:     true,
		Dst:        [8]byte{1},
		PayloadIEs: [][]byte{{1}, {2}, {3}},
	}
	if err := validate(req); err != ErrTooManyPayloadIEs {
		t.Fatalf("expected ErrTooManyPayloadIEs, got %v", err)
	}
}

func TestValidateAcceptsWellFormedUnicast(t *testing.T) {
	req := DataRequest{Kind: KindUnicastFFN, HasDst: true, Dst: [8]byte{1}}
	if err := validate(req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSubmitSynthesizesTimedOutForUnknownNeighbor(t *testing.T) {
	neighbors := neighbor.New(time.Minute)
	b := New(nil, neighbors, nil, nil)

	var got []Confirm
	b.SetCallbacks(func(c Confirm) { got = append(got, c) }, nil)

	req := DataRequest{Kind: KindUnicastFFN, HasDst: true, Dst: [8]byte{9, 9}}
	if err := b.Submit(req); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected exactly one synthesized confirm, got %d", len(got))
	}
	if got[0].Status != ConfirmTimedOut {
		t.Fatalf("Status = %v, want ConfirmTimedOut", got[0].Status)
	}
	if b.InFlight() != 0 {
		t.Fatalf("synthesized confirm should leave no in-flight context, got %d", b.InFlight())
	}
}

func TestSubmitRejectsMalformedRequestBeforeNeighborLookup(t *testing.T) {
	neighbors := neighbor.New(time.Minute)
	b := New(nil, neighbors, nil, nil)

	called := false
	b.SetCallbacks(func(Confirm) { called = true }, nil)

	req := DataRequest{Kind: KindAsync, AckRequired: true}
	if err := b.Submit(req); err != ErrAckWithAsync {
		t.Fatalf("expected ErrAckWithAsync, got %v", err)
	}
	if called {
		t.Fatalf("expected no confirm delivered for a rejected request")
	}
	if b.InFlight() != 0 {
		t.Fatalf("rejected request should allocate no context")
	}
}

func TestHandleConfirmMapsStatusesVerbatim(t *testing.T) {
	b := New(nil, neighbor.New(time.Minute), nil, nil)

	cases := []struct {
		rcp  hif.TxStatus
		want ConfirmStatus
	}{
		{hif.TxStatusSuccess, ConfirmSuccess},
		{hif.TxStatusNoAck, ConfirmNoAck},
		{hif.TxStatusCCAFail, ConfirmCCAFail},
		{hif.TxStatusTimedOut, ConfirmTimedOut},
	}
	for _, c := range cases {
		var got *Confirm
		b.SetCallbacks(func(conf Confirm) { got = &conf }, nil)
		b.HandleIndication(rcp.Indication{
			Conf: &hif.TxConfirmationPayload{Handle: 4, Status: c.rcp},
		}, 0x1234)
		if got == nil || got.Status != c.want {
			t.Fatalf("status %v: got %+v, want %v", c.rcp, got, c.want)
		}
		if got.Handle != 4 {
			t.Fatalf("Handle = %d, want 4", got.Handle)
		}
	}
}

type recordingPcap struct {
	rx, tx int
	rxTime time.Time
}

func (p *recordingPcap) WriteRx(ts time.Time, channel uint8, rssi int8, frameBytes []byte) error {
	p.rx++
	p.rxTime = ts
	return nil
}

func (p *recordingPcap) WriteTx(ts time.Time, frameBytes []byte) error {
	p.tx++
	return nil
}

type countingLogger struct{ drops int }

func (l *countingLogger) Drop(string, map[string]interface{}) { l.drops++ }

func TestHandleRxDropsMalformedFrameSilently(t *testing.T) {
	logger := &countingLogger{}
	pcap := &recordingPcap{}
	b := New(nil, neighbor.New(time.Minute), pcap, logger)

	indications := 0
	b.SetCallbacks(nil, func(Indication) { indications++ })

	b.HandleIndication(rcp.Indication{
		Rx: &hif.RxIndicationPayload{TimestampUs: 42, Frame: []byte{0x01}},
	}, 0x1234)

	if indications != 0 {
		t.Fatalf("malformed frame must not reach the LLC")
	}
	if logger.drops != 1 {
		t.Fatalf("expected one drop log, got %d", logger.drops)
	}
	// The tap still sees the raw frame, stamped with the RCP timestamp.
	if pcap.rx != 1 {
		t.Fatalf("expected one pcap rx record, got %d", pcap.rx)
	}
	if !pcap.rxTime.Equal(time.UnixMicro(42)) {
		t.Fatalf("pcap timestamp = %v, want RCP timestamp", pcap.rxTime)
	}
}

func TestFrameKindFHSSMapping(t *testing.T) {
	cases := []struct {
		kind FrameKind
		want hif.FHSSType
	}{
		{KindUnicastFFN, hif.FHSSTypeFFNUnicast},
		{KindUnicastLFN, hif.FHSSTypeLFNUnicast},
		{KindBroadcastFFN, hif.FHSSTypeFFNBroadcast},
		{KindBroadcastLFN, hif.FHSSTypeLFNBroadcast},
		{KindAsync, hif.FHSSTypeAsync},
		{KindEAPOL, hif.FHSSTypeFFNUnicast},
	}
	for _, c := range cases {
		if got := c.kind.fhssType(); got != c.want {
			t.Fatalf("kind %v: fhssType = %v, want %v", c.kind, got, c.want)
		}
	}
}
