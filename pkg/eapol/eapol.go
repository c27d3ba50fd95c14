package eapol

import (
	"encoding/binary"
	"errors"
)

// PDUType is the EAPOL header's Type field (IEEE 802.1X-2010 §11.3.2).
type PDUType uint8

const (
	PDUTypeEAP PDUType = 0
	PDUTypeKey PDUType = 3
)

// PDU is a parsed EAPOL header plus body.
type PDU struct {
	ProtocolVersion uint8
	Type            PDUType
	Body            []byte
}

// ErrMalformedPDU is returned when a byte slice is too short to be a valid
// EAPOL PDU, or its declared body length does not match the slice.
var ErrMalformedPDU = errors.New("eapol: malformed EAPOL PDU")

// EncodePDU serializes an EAPOL PDU: version, type, big-endian body length,
// body.
func EncodePDU(p PDU) []byte {
	out := make([]byte, 4+len(p.Body))
	out[0] = p.ProtocolVersion
	out[1] = byte(p.Type)
	binary.BigEndian.PutUint16(out[2:4], uint16(len(p.Body)))
	copy(out[4:], p.Body)
	return out
}

// DecodePDU parses an EAPOL PDU.
func DecodePDU(data []byte) (PDU, error) {
	if len(data) < 4 {
		return PDU{}, ErrMalformedPDU
	}
	bodyLen := int(binary.BigEndian.Uint16(data[2:4]))
	if 4+bodyLen != len(data) {
		return PDU{}, ErrMalformedPDU
	}
	return PDU{
		ProtocolVersion: data[0],
		Type:            PDUType(data[1]),
		Body:            append([]byte(nil), data[4:]...)[:bodyLen],
	}, nil
}

// WrapEAP wraps an encoded EAP message in an EAPOL-EAP PDU.
func WrapEAP(version uint8, eap []byte) []byte {
	return EncodePDU(PDU{ProtocolVersion: version, Type: PDUTypeEAP, Body: eap})
}
