// Package eapol implements the authenticator's EAPOL/EAP pipeline: EAPOL
// PDU framing, EAP Identity/Success/Failure messages, the per-supplicant
// retransmission state machine, and the handshake outputs (PMK install,
// PTK derivation, GTK-over-KEK wrap) that feed the key store via the
// crypto backend.
package eapol

import (
	"encoding/binary"
	"errors"
)

// EAPCode is the EAP header's Code field (RFC 3748 §4).
type EAPCode uint8

const (
	EAPCodeRequest  EAPCode = 1
	EAPCodeResponse EAPCode = 2
	EAPCodeSuccess  EAPCode = 3
	EAPCodeFailure  EAPCode = 4
)

// EAPType is the EAP Type field, present only on Request/Response.
type EAPType uint8

const (
	EAPTypeIdentity EAPType = 1
)

// EAPMessage is a parsed EAP header plus type-data.
type EAPMessage struct {
	Code     EAPCode
	ID       uint8
	Type     EAPType
	HasType  bool
	TypeData []byte
}

// ErrMalformedEAP is returned when a byte slice is too short to be a valid
// EAP message, or its declared length does not match the slice.
var ErrMalformedEAP = errors.New("eapol: malformed EAP message")

// EncodeEAP serializes an EAPMessage per RFC 3748 §4.1.
func EncodeEAP(m EAPMessage) []byte {
	length := 4
	if m.HasType {
		length += 1 + len(m.TypeData)
	}
	out := make([]byte, length)
	out[0] = byte(m.Code)
	out[1] = m.ID
	binary.BigEndian.PutUint16(out[2:4], uint16(length))
	if m.HasType {
		out[4] = byte(m.Type)
		copy(out[5:], m.TypeData)
	}
	return out
}

// DecodeEAP parses an EAP message.
func DecodeEAP(data []byte) (EAPMessage, error) {
	if len(data) < 4 {
		return EAPMessage{}, ErrMalformedEAP
	}
	length := int(binary.BigEndian.Uint16(data[2:4]))
	if length != len(data) {
		return EAPMessage{}, ErrMalformedEAP
	}
	m := EAPMessage{Code: EAPCode(data[0]), ID: data[1]}
	if m.Code == EAPCodeRequest || m.Code == EAPCodeResponse {
		if length < 5 {
			return EAPMessage{}, ErrMalformedEAP
		}
		m.HasType = true
		m.Type = EAPType(data[4])
		m.TypeData = append([]byte(nil), data[5:]...)
	}
	return m, nil
}

// RequestIdentity builds an EAP Request/Identity message with the given id.
func RequestIdentity(id uint8) EAPMessage {
	return EAPMessage{Code: EAPCodeRequest, ID: id, HasType: true, Type: EAPTypeIdentity}
}

// Failure builds an EAP Failure message (RFC 3748 §4.2: never retransmitted).
func Failure(id uint8) EAPMessage {
	return EAPMessage{Code: EAPCodeFailure, ID: id}
}

// Success builds an EAP Success message.
func Success(id uint8) EAPMessage {
	return EAPMessage{Code: EAPCodeSuccess, ID: id}
}
