// Package frame implements the IEEE 802.15.4 frame codec: header
// assembly/parsing, information-element list layout, and MIC-64 reservation.
// Layout here is an explicit byte-oriented encode/decode pair rather than a
// packed in-memory struct — the wire layout and the in-memory Header must
// never be tied together (see design note on bitfields).
package frame

import (
	"encoding/binary"
	"errors"
)

// FrameType identifies the MAC frame category.
type FrameType uint8

const (
	FrameTypeData FrameType = iota
	FrameTypeAck
	FrameTypeCommand
	FrameTypeBeacon
)

// SecurityLevel is restricted by the MAC bridge to the two values the
// Wi-SUN core supports.
type SecurityLevel uint8

const (
	SecurityNone SecurityLevel = iota
	SecurityMIC64
)

// micLen is the trailing reservation for a MIC-64 security level; the RCP
// fills these bytes in, the host never computes them.
const micLen = 8

// Broadcast is the sentinel destination address used by broadcast/async
// frames in place of an explicit 64-bit address.
var Broadcast = [8]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// Header is the parsed MHR field set. SuppressPANID/SuppressSeqNum
// mirror the wire's "-1 means suppress" convention so callers don't need a
// second optional type.
type Header struct {
	Type          FrameType
	AckRequired   bool
	PANID         uint16
	SuppressPANID bool // true <=> wire PAN-id field is "-1" (use source PAN only)
	Dst           [8]byte
	HasDst        bool // false for broadcast/async frames with no destination address mode
	Broadcast     bool
	Src           [8]byte
	SeqNum        uint8
	SuppressSeq   bool
	KeyIndex      uint8
	HasKeyIndex   bool
	Security      SecurityLevel
}

// ht2Marker is the synthetic Header-Termination-2 marker emitted between the
// header IE region and the payload IE region whenever at least one payload
// IE vector is present.
var ht2Marker = [2]byte{0x7e, 0x00}

var (
	ErrMalformedHeader    = errors.New("frame: malformed header")
	ErrUnsupportedIELayout = errors.New("frame: unsupported IE layout")
	ErrTruncatedMIC       = errors.New("frame: truncated MIC reservation")
)

const (
	fc0Security   = 1 << 3
	fc0AckReq     = 1 << 4
	fc0PANPresent = 1 << 5
	fc0SeqSuppress = 1 << 6
	fc0IEsPresent = 1 << 7
	fc0TypeMask   = 0x07

	fc1DstModeMask  = 0x03
	fc1DstModeShift = 0
	fc1SrcModeMask  = 0x03
	fc1SrcModeShift = 2
	fc1SecLevMask   = 0x03
	fc1SecLevShift  = 4
	fc1KeyIdxFlag   = 1 << 6

	addrModeNone      = 0
	addrModeBroadcast = 1
	addrModeLong      = 3
)

// Encode assembles a complete frame: MHR, the single header-IE vector, 0-2
// payload-IE vectors (an HT2 separator plus a count byte precede them when
// any are present, so Decode never has to guess where the IE region ends
// and the payload begins), the payload, and — when the security level calls
// for it — 8 trailing bytes reserved for the RCP-filled MIC.
func Encode(h Header, headerIEs []byte, payloadIEs [][]byte, payload []byte) ([]byte, error) {
	if len(payloadIEs) > 2 {
		return nil, ErrUnsupportedIELayout
	}
	if h.HasDst && h.Broadcast {
		return nil, ErrUnsupportedIELayout
	}

	buf := make([]byte, 0, 32+len(headerIEs)+len(payload)+micLen)

	fc0 := byte(h.Type) & fc0TypeMask
	if h.Security != SecurityNone {
		fc0 |= fc0Security
	}
	if h.AckRequired {
		fc0 |= fc0AckReq
	}
	if !h.SuppressPANID {
		fc0 |= fc0PANPresent
	}
	if h.SuppressSeq {
		fc0 |= fc0SeqSuppress
	}
	if len(headerIEs) > 0 || len(payloadIEs) > 0 {
		fc0 |= fc0IEsPresent
	}

	dstMode := addrModeNone
	if h.Broadcast {
		dstMode = addrModeBroadcast
	} else if h.HasDst {
		dstMode = addrModeLong
	}
	srcMode := addrModeLong

	fc1 := byte(dstMode&fc1DstModeMask) << fc1DstModeShift
	fc1 |= byte(srcMode&fc1SrcModeMask) << fc1SrcModeShift
	fc1 |= byte(h.Security&fc1SecLevMask) << fc1SecLevShift
	if h.HasKeyIndex {
		fc1 |= fc1KeyIdxFlag
	}

	buf = append(buf, fc0, fc1)

	if !h.SuppressSeq {
		buf = append(buf, h.SeqNum)
	}
	if !h.SuppressPANID {
		var panBuf [2]byte
		binary.LittleEndian.PutUint16(panBuf[:], h.PANID)
		buf = append(buf, panBuf[:]...)
	}
	if dstMode == addrModeLong {
		buf = append(buf, h.Dst[:]...)
	}
	buf = append(buf, h.Src[:]...)
	if h.HasKeyIndex {
		buf = append(buf, h.KeyIndex)
	}

	if len(headerIEs) > 0 || len(payloadIEs) > 0 {
		buf = appendIEVector(buf, headerIEs)
	}
	if len(payloadIEs) > 0 {
		buf = append(buf, ht2Marker[:]...)
		buf = append(buf, byte(len(payloadIEs)))
		for _, ie := range payloadIEs {
			buf = appendIEVector(buf, ie)
		}
	}

	buf = append(buf, payload...)

	if h.Security == SecurityMIC64 {
		buf = append(buf, make([]byte, micLen)...)
	}

	return buf, nil
}

func appendIEVector(buf, vector []byte) []byte {
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(vector)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, vector...)
}

// Decoded is the result of parsing a frame: the header plus IE cursors into
// the original buffer and the remaining application payload.
type Decoded struct {
	Header     Header
	HeaderIEs  []byte
	PayloadIEs [][]byte
	Payload    []byte
}

// Decode parses bytes produced by Encode. localPANID disambiguates a
// suppressed source PAN (the wire's "-1") back into an explicit value.
func Decode(data []byte, localPANID uint16) (Decoded, error) {
	var d Decoded
	if len(data) < 2 {
		return d, ErrMalformedHeader
	}

	fc0, fc1 := data[0], data[1]
	pos := 2

	d.Header.Type = FrameType(fc0 & fc0TypeMask)
	if fc0&fc0Security != 0 {
		d.Header.Security = SecurityMIC64
	}
	d.Header.AckRequired = fc0&fc0AckReq != 0
	d.Header.SuppressPANID = fc0&fc0PANPresent == 0
	d.Header.SuppressSeq = fc0&fc0SeqSuppress != 0
	iesPresent := fc0&fc0IEsPresent != 0

	dstMode := int(fc1>>fc1DstModeShift) & fc1DstModeMask
	secLevel := SecurityLevel(int(fc1>>fc1SecLevShift) & fc1SecLevMask)
	d.Header.Security = secLevel
	hasKeyIndex := fc1&fc1KeyIdxFlag != 0

	if !d.Header.SuppressSeq {
		if pos >= len(data) {
			return d, ErrMalformedHeader
		}
		d.Header.SeqNum = data[pos]
		pos++
	}
	if !d.Header.SuppressPANID {
		if pos+2 > len(data) {
			return d, ErrMalformedHeader
		}
		d.Header.PANID = binary.LittleEndian.Uint16(data[pos : pos+2])
		pos += 2
	} else {
		d.Header.PANID = localPANID
	}

	switch dstMode {
	case addrModeNone:
		d.Header.HasDst = false
	case addrModeBroadcast:
		d.Header.HasDst = true
		d.Header.Broadcast = true
		d.Header.Dst = Broadcast
	case addrModeLong:
		if pos+8 > len(data) {
			return d, ErrMalformedHeader
		}
		copy(d.Header.Dst[:], data[pos:pos+8])
		d.Header.HasDst = true
		pos += 8
	default:
		return d, ErrMalformedHeader
	}

	if pos+8 > len(data) {
		return d, ErrMalformedHeader
	}
	copy(d.Header.Src[:], data[pos:pos+8])
	pos += 8

	if hasKeyIndex {
		if pos >= len(data) {
			return d, ErrMalformedHeader
		}
		d.Header.KeyIndex = data[pos]
		d.Header.HasKeyIndex = true
		pos++
	}

	if iesPresent {
		headerIEs, next, err := readIEVector(data, pos)
		if err != nil {
			return d, err
		}
		d.HeaderIEs = headerIEs
		pos = next

		if pos+2 <= len(data) && data[pos] == ht2Marker[0] && data[pos+1] == ht2Marker[1] {
			pos += 2
			if pos >= len(data) {
				return d, ErrUnsupportedIELayout
			}
			count := int(data[pos])
			pos++
			if count == 0 || count > 2 {
				return d, ErrUnsupportedIELayout
			}
			for i := 0; i < count; i++ {
				ie, next, err := readIEVector(data, pos)
				if err != nil {
					return d, err
				}
				d.PayloadIEs = append(d.PayloadIEs, ie)
				pos = next
			}
		}
	}

	rest := data[pos:]
	if d.Header.Security == SecurityMIC64 {
		if len(rest) < micLen {
			return d, ErrTruncatedMIC
		}
		d.Payload = rest[:len(rest)-micLen]
	} else {
		d.Payload = rest
	}

	return d, nil
}

func readIEVector(data []byte, pos int) ([]byte, int, error) {
	if pos+2 > len(data) {
		return nil, pos, ErrUnsupportedIELayout
	}
	n := int(binary.LittleEndian.Uint16(data[pos : pos+2]))
	pos += 2
	if pos+n > len(data) {
		return nil, pos, ErrUnsupportedIELayout
	}
	return data[pos : pos+n], pos + n, nil
}
