package dnscodec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrUnknownOpcode indicates a header's opcode field was outside the
// closed enum {QUERY, IQUERY, STATUS} on parse.
var ErrUnknownOpcode = errors.New("dnscodec: unknown opcode")

const headerSize = 12

// Opcode is the closed set of DNS operation codes this codec understands.
type Opcode uint8

const (
	OpcodeQuery  Opcode = 0
	OpcodeIQuery Opcode = 1
	OpcodeStatus Opcode = 2
)

func opcodeValid(o Opcode) bool {
	switch o {
	case OpcodeQuery, OpcodeIQuery, OpcodeStatus:
		return true
	default:
		return false
	}
}

// Header is the 12-byte DNS message header (RFC 1035 §4.1.1), unpacked
// into its thirteen semantic fields. Callers never see the packed 16-bit
// flags word directly; Emit/Parse are the only places that pack/unpack it.
type Header struct {
	ID      uint16
	QR      bool
	Opcode  Opcode
	AA      bool
	TC      bool
	RD      bool
	RA      bool
	Z       uint8 // 3 bits; must be 0 on Emit, preserved-but-untrusted on Parse
	Rcode   uint8 // 4 bits
	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

// Emit serializes the header to its 12-byte big-endian wire form. Z is
// always written as 0 regardless of the Header's Z field (RFC 1035: "Z
// Reserved for future use. Must be zero in all queries and responses").
func (h Header) Emit() []byte {
	buf := make([]byte, headerSize)
	binary.BigEndian.PutUint16(buf[0:2], h.ID)

	var flags uint16
	if h.QR {
		flags |= 1 << 15
	}
	flags |= uint16(h.Opcode&0x0F) << 11
	if h.AA {
		flags |= 1 << 10
	}
	if h.TC {
		flags |= 1 << 9
	}
	if h.RD {
		flags |= 1 << 8
	}
	if h.RA {
		flags |= 1 << 7
	}
	// Z forced to 0 on emit.
	flags |= uint16(h.Rcode & 0x0F)

	binary.BigEndian.PutUint16(buf[2:4], flags)
	binary.BigEndian.PutUint16(buf[4:6], h.QDCount)
	binary.BigEndian.PutUint16(buf[6:8], h.ANCount)
	binary.BigEndian.PutUint16(buf[8:10], h.NSCount)
	binary.BigEndian.PutUint16(buf[10:12], h.ARCount)
	return buf
}

// ParsedHeader is the result of decoding a header: the header itself and
// the number of bytes consumed (always 12 on success).
type ParsedHeader struct {
	Header        Header
	BytesConsumed int
}

// ParseHeader decodes the fixed 12-byte header from the front of buf.
// Opcode is validated against the closed enum; an unrecognized opcode is
// an error. Z is preserved from the wire but is not trusted by callers.
func ParseHeader(buf []byte) (ParsedHeader, error) {
	if len(buf) < headerSize {
		return ParsedHeader{}, ErrBufferUnderrun
	}

	var h Header
	h.ID = binary.BigEndian.Uint16(buf[0:2])

	flags := binary.BigEndian.Uint16(buf[2:4])
	h.QR = flags&(1<<15) != 0
	h.Opcode = Opcode((flags >> 11) & 0x0F)
	h.AA = flags&(1<<10) != 0
	h.TC = flags&(1<<9) != 0
	h.RD = flags&(1<<8) != 0
	h.RA = flags&(1<<7) != 0
	h.Z = uint8((flags >> 4) & 0x07)
	h.Rcode = uint8(flags & 0x0F)

	if !opcodeValid(h.Opcode) {
		return ParsedHeader{}, fmt.Errorf("%w: %d", ErrUnknownOpcode, h.Opcode)
	}

	h.QDCount = binary.BigEndian.Uint16(buf[4:6])
	h.ANCount = binary.BigEndian.Uint16(buf[6:8])
	h.NSCount = binary.BigEndian.Uint16(buf[8:10])
	h.ARCount = binary.BigEndian.Uint16(buf[10:12])

	return ParsedHeader{Header: h, BytesConsumed: headerSize}, nil
}
