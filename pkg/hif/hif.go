// Package hif encodes and decodes the length-framed host-interface wire
// protocol used to talk to the radio co-processor (RCP): a 2-byte
// big-endian length prefix, an opcode byte, and an opcode-specific payload.
package hif

import (
	"encoding/binary"
	"errors"
	"io"
)

// Opcode identifies an HIF request (host -> RCP) or indication (RCP -> host).
type Opcode byte

const (
	OpReset            Opcode = 0x01
	OpSetHostAPI       Opcode = 0x02
	OpListRadioConfigs Opcode = 0x03
	OpSetRadio         Opcode = 0x04
	OpSetFHSSUnicast   Opcode = 0x05
	OpSetFHSSAsync     Opcode = 0x06
	OpEnableRadio      Opcode = 0x07
	OpSetSecurityKey   Opcode = 0x08
	OpTransmitData     Opcode = 0x09
	OpResetIndication  Opcode = 0x81
	OpRxIndication     Opcode = 0x82
	OpTxConfirmation   Opcode = 0x83
	OpRadioConfigList  Opcode = 0x84
)

// FHSSType selects the transmit scheduling class carried with each
// transmit-data request.
type FHSSType byte

const (
	FHSSTypeFFNUnicast   FHSSType = 0x00
	FHSSTypeFFNBroadcast FHSSType = 0x01
	FHSSTypeLFNUnicast   FHSSType = 0x02
	FHSSTypeLFNBroadcast FHSSType = 0x03
	FHSSTypeLFNPA        FHSSType = 0x04
	FHSSTypeAsync        FHSSType = 0x05
)

// ModeSwitchType selects which layer performs a rate switch for a frame
// carrying a mode-switch rate list.
type ModeSwitchType byte

const (
	ModeSwitchNone ModeSwitchType = 0x00
	ModeSwitchPHY  ModeSwitchType = 0x01
	ModeSwitchMAC  ModeSwitchType = 0x02
)

// ErrFrameTooLarge is returned by Encode when the opcode byte plus the
// payload exceeds the 16-bit length field.
var ErrFrameTooLarge = errors.New("hif: payload exceeds 65534 bytes")

// ErrTruncated is returned by Decode/ReadFrame when the stream ends before a
// complete frame is available.
var ErrTruncated = errors.New("hif: truncated frame")

// Frame is one decoded HIF message.
type Frame struct {
	Opcode  Opcode
	Payload []byte
}

// Encode serializes f as length(2) | opcode(1) | payload.
func Encode(f Frame) ([]byte, error) {
	if len(f.Payload) > 0xffff-1 {
		return nil, ErrFrameTooLarge
	}
	out := make([]byte, 2+1+len(f.Payload))
	binary.BigEndian.PutUint16(out[0:2], uint16(1+len(f.Payload)))
	out[2] = byte(f.Opcode)
	copy(out[3:], f.Payload)
	return out, nil
}

// ReadFrame reads one length-framed HIF message from r, blocking until a
// full frame (or an error) is available.
func ReadFrame(r io.Reader) (Frame, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return Frame{}, ErrTruncated
		}
		return Frame{}, err
	}
	n := binary.BigEndian.Uint16(lenBuf[:])
	if n == 0 {
		return Frame{}, ErrTruncated
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return Frame{}, ErrTruncated
		}
		return Frame{}, err
	}
	return Frame{Opcode: Opcode(body[0]), Payload: body[1:]}, nil
}

// ResetIndicationPayload decodes an OpResetIndication payload: API version
// triple followed by the RCP's EUI-64.
type ResetIndicationPayload struct {
	APIMajor, APIMinor, APIPatch byte
	EUI64                        [8]byte
}

// ErrMalformed is returned by the typed payload decoders when the payload is
// the wrong length for its opcode.
var ErrMalformed = errors.New("hif: malformed payload")

// DecodeResetIndication parses an OpResetIndication payload.
func DecodeResetIndication(payload []byte) (ResetIndicationPayload, error) {
	if len(payload) != 11 {
		return ResetIndicationPayload{}, ErrMalformed
	}
	var out ResetIndicationPayload
	out.APIMajor, out.APIMinor, out.APIPatch = payload[0], payload[1], payload[2]
	copy(out.EUI64[:], payload[3:11])
	return out, nil
}

// RxIndicationPayload decodes an OpRxIndication payload: receive timestamp
// (microseconds, big-endian u64), channel, RSSI (signed dBm), then the raw
// 802.15.4 frame bytes.
type RxIndicationPayload struct {
	TimestampUs uint64
	Channel     uint8
	RSSI        int8
	Frame       []byte
}

// DecodeRxIndication parses an OpRxIndication payload.
func DecodeRxIndication(payload []byte) (RxIndicationPayload, error) {
	if len(payload) < 10 {
		return RxIndicationPayload{}, ErrMalformed
	}
	return RxIndicationPayload{
		TimestampUs: binary.BigEndian.Uint64(payload[0:8]),
		Channel:     payload[8],
		RSSI:        int8(payload[9]),
		Frame:       payload[10:],
	}, nil
}

// TxConfirmationPayload decodes an OpTxConfirmation payload: the handle
// allocated at transmit time, a status byte, the RCP timestamp of the
// transmission (microseconds, big-endian u64), and an optional trailing ack
// frame (empty when the transmit required no ack).
type TxConfirmationPayload struct {
	Handle      byte
	Status      TxStatus
	TimestampUs uint64
	AckFrame    []byte
}

// TxStatus is the RCP-reported outcome of a transmit request, surfaced
// verbatim in confirms.
type TxStatus byte

const (
	TxStatusSuccess  TxStatus = 0x00
	TxStatusNoAck    TxStatus = 0x01
	TxStatusCCAFail  TxStatus = 0x02
	TxStatusTimedOut TxStatus = 0x03
)

// DecodeTxConfirmation parses an OpTxConfirmation payload.
func DecodeTxConfirmation(payload []byte) (TxConfirmationPayload, error) {
	if len(payload) < 10 {
		return TxConfirmationPayload{}, ErrMalformed
	}
	return TxConfirmationPayload{
		Handle:      payload[0],
		Status:      TxStatus(payload[1]),
		TimestampUs: binary.BigEndian.Uint64(payload[2:10]),
		AckFrame:    payload[10:],
	}, nil
}

// FHSSScheduleHint carries a destination's unsecured hopping schedule with a
// unicast transmit, so the RCP can time the transmission without keeping its
// own copy of the neighbor table.
type FHSSScheduleHint struct {
	BroadcastIntervalMs uint32
	UnicastDwellMs      uint8
	Clock               uint32
}

// TransmitDataPayload is the full payload of an OpTransmitData request:
// handle, scheduling class, the destination's schedule hint, an optional
// mode-switch rate list, and the assembled 802.15.4 frame.
type TransmitDataPayload struct {
	Handle     byte
	FHSSType   FHSSType
	Schedule   FHSSScheduleHint
	ModeSwitch ModeSwitchType
	Rates      []byte
	Frame      []byte
}

// EncodeTransmitData builds the payload for an OpTransmitData request:
// handle(1) | fhssType(1) | bcastInterval(4) | dwell(1) | clock(4) |
// modeSwitch(1) | rateCount(1) | rates | frame.
func EncodeTransmitData(p TransmitDataPayload) []byte {
	out := make([]byte, 0, 13+len(p.Rates)+len(p.Frame))
	out = append(out, p.Handle, byte(p.FHSSType))
	out = binary.BigEndian.AppendUint32(out, p.Schedule.BroadcastIntervalMs)
	out = append(out, p.Schedule.UnicastDwellMs)
	out = binary.BigEndian.AppendUint32(out, p.Schedule.Clock)
	out = append(out, byte(p.ModeSwitch), byte(len(p.Rates)))
	out = append(out, p.Rates...)
	out = append(out, p.Frame...)
	return out
}

// DecodeTransmitData parses an OpTransmitData payload, the inverse of
// EncodeTransmitData.
func DecodeTransmitData(payload []byte) (TransmitDataPayload, error) {
	if len(payload) < 13 {
		return TransmitDataPayload{}, ErrMalformed
	}
	p := TransmitDataPayload{
		Handle:   payload[0],
		FHSSType: FHSSType(payload[1]),
		Schedule: FHSSScheduleHint{
			BroadcastIntervalMs: binary.BigEndian.Uint32(payload[2:6]),
			UnicastDwellMs:      payload[6],
			Clock:               binary.BigEndian.Uint32(payload[7:11]),
		},
		ModeSwitch: ModeSwitchType(payload[11]),
	}
	rateCount := int(payload[12])
	if len(payload) < 13+rateCount {
		return TransmitDataPayload{}, ErrMalformed
	}
	p.Rates = payload[13 : 13+rateCount]
	p.Frame = payload[13+rateCount:]
	return p, nil
}

// EncodeSetHostAPI builds the payload advertising the host's own API version.
func EncodeSetHostAPI(major, minor, patch byte) []byte {
	return []byte{major, minor, patch}
}
