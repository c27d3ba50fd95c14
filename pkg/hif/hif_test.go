package hif

import (
	"bytes"
	"testing"
)

func TestEncodeReadFrameRoundTrip(t *testing.T) {
	f := Frame{Opcode: OpTransmitData, Payload: []byte{1, 2, 3, 4}}
	enc, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := ReadFrame(bytes.NewReader(enc))
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got.Opcode != f.Opcode || !bytes.Equal(got.Payload, f.Payload) {
		t.Fatalf("got %+v, want %+v", got, f)
	}
}

func TestEncodeEmptyPayload(t *testing.T) {
	enc, err := Encode(Frame{Opcode: OpReset})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := ReadFrame(bytes.NewReader(enc))
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got.Opcode != OpReset || len(got.Payload) != 0 {
		t.Fatalf("got %+v, want empty-payload OpReset", got)
	}
}

func TestReadFrameTruncated(t *testing.T) {
	if _, err := ReadFrame(bytes.NewReader([]byte{0x00, 0x05, 0x01})); err != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if _, err := ReadFrame(bytes.NewReader([]byte{0x00})); err != ErrTruncated {
		t.Fatalf("expected ErrTruncated on short length prefix, got %v", err)
	}
}

func TestDecodeResetIndication(t *testing.T) {
	payload := []byte{2, 1, 0, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff, 0x11, 0x22}
	ind, err := DecodeResetIndication(payload)
	if err != nil {
		t.Fatalf("DecodeResetIndication: %v", err)
	}
	if ind.APIMajor != 2 || ind.APIMinor != 1 || ind.APIPatch != 0 {
		t.Fatalf("got version %d.%d.%d, want 2.1.0", ind.APIMajor, ind.APIMinor, ind.APIPatch)
	}
	wantEUI := [8]byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff, 0x11, 0x22}
	if ind.EUI64 != wantEUI {
		t.Fatalf("EUI64 = %x, want %x", ind.EUI64, wantEUI)
	}
}

func TestDecodeResetIndicationMalformed(t *testing.T) {
	if _, err := DecodeResetIndication([]byte{1, 2, 3}); err != ErrMalformed {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestDecodeRxIndication(t *testing.T) {
	payload := []byte{0, 0, 0, 0, 0, 0, 0x03, 0xe8, 11, 0xf6, 0xde, 0xad, 0xbe, 0xef}
	rx, err := DecodeRxIndication(payload)
	if err != nil {
		t.Fatalf("DecodeRxIndication: %v", err)
	}
	if rx.TimestampUs != 1000 {
		t.Fatalf("TimestampUs = %d, want 1000", rx.TimestampUs)
	}
	if rx.Channel != 11 {
		t.Fatalf("Channel = %d, want 11", rx.Channel)
	}
	if rx.RSSI != -10 {
		t.Fatalf("RSSI = %d, want -10", rx.RSSI)
	}
	if !bytes.Equal(rx.Frame, []byte{0xde, 0xad, 0xbe, 0xef}) {
		t.Fatalf("Frame = %x", rx.Frame)
	}
}

func TestDecodeTxConfirmation(t *testing.T) {
	payload := []byte{7, byte(TxStatusSuccess), 0, 0, 0, 0, 0, 0, 0x27, 0x10, 0xaa}
	conf, err := DecodeTxConfirmation(payload)
	if err != nil {
		t.Fatalf("DecodeTxConfirmation: %v", err)
	}
	if conf.Handle != 7 || conf.Status != TxStatusSuccess {
		t.Fatalf("got %+v", conf)
	}
	if conf.TimestampUs != 10000 {
		t.Fatalf("TimestampUs = %d, want 10000", conf.TimestampUs)
	}
	if !bytes.Equal(conf.AckFrame, []byte{0xaa}) {
		t.Fatalf("AckFrame = %x, want aa", conf.AckFrame)
	}
}

func TestDecodeTxConfirmationNoAck(t *testing.T) {
	payload := []byte{3, byte(TxStatusNoAck), 0, 0, 0, 0, 0, 0, 0, 1}
	conf, err := DecodeTxConfirmation(payload)
	if err != nil {
		t.Fatalf("DecodeTxConfirmation: %v", err)
	}
	if len(conf.AckFrame) != 0 {
		t.Fatalf("expected empty ack frame, got %x", conf.AckFrame)
	}
}

func TestDecodeTxConfirmationMalformed(t *testing.T) {
	if _, err := DecodeTxConfirmation([]byte{1, 2, 3}); err != ErrMalformed {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestTransmitDataRoundTrip(t *testing.T) {
	p := TransmitDataPayload{
		Handle:   3,
		FHSSType: FHSSTypeFFNUnicast,
		Schedule: FHSSScheduleHint{
			BroadcastIntervalMs: 1020,
			UnicastDwellMs:      255,
			Clock:               0xdeadbeef,
		},
		ModeSwitch: ModeSwitchPHY,
		Rates:      []byte{2, 5},
		Frame:      []byte{1, 2, 3, 4, 5},
	}

	got, err := DecodeTransmitData(EncodeTransmitData(p))
	if err != nil {
		t.Fatalf("DecodeTransmitData: %v", err)
	}
	if got.Handle != p.Handle || got.FHSSType != p.FHSSType {
		t.Fatalf("got %+v", got)
	}
	if got.Schedule != p.Schedule {
		t.Fatalf("Schedule = %+v, want %+v", got.Schedule, p.Schedule)
	}
	if got.ModeSwitch != p.ModeSwitch || !bytes.Equal(got.Rates, p.Rates) {
		t.Fatalf("mode switch / rates = %v %x", got.ModeSwitch, got.Rates)
	}
	if !bytes.Equal(got.Frame, p.Frame) {
		t.Fatalf("Frame = %x, want %x", got.Frame, p.Frame)
	}
}

func TestTransmitDataNoModeSwitch(t *testing.T) {
	p := TransmitDataPayload{
		Handle:   1,
		FHSSType: FHSSTypeAsync,
		Frame:    []byte{0xff},
	}
	got, err := DecodeTransmitData(EncodeTransmitData(p))
	if err != nil {
		t.Fatalf("DecodeTransmitData: %v", err)
	}
	if got.ModeSwitch != ModeSwitchNone || len(got.Rates) != 0 {
		t.Fatalf("expected no mode switch, got %+v", got)
	}
	if !bytes.Equal(got.Frame, p.Frame) {
		t.Fatalf("Frame = %x, want %x", got.Frame, p.Frame)
	}
}
