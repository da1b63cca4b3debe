package dnscodec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrUnknownType indicates a qtype/rtype outside the closed enum.
	ErrUnknownType = errors.New("dnscodec: unknown record type")
	// ErrUnknownClass indicates a qclass/class outside the closed enum.
	ErrUnknownClass = errors.New("dnscodec: unknown record class")
)

// Type is the closed set of record types this codec understands.
type Type uint16

const (
	TypeA     Type = 1
	TypeNS    Type = 2
	TypeCNAME Type = 5
	TypeSOA   Type = 6
	TypeTXT   Type = 16
)

func typeValid(t Type) bool {
	switch t {
	case TypeA, TypeNS, TypeCNAME, TypeSOA, TypeTXT:
		return true
	default:
		return false
	}
}

// Class is the closed set of record classes this codec understands.
type Class uint16

const (
	ClassIN Class = 1
)

func classValid(c Class) bool {
	return c == ClassIN
}

// Question is a single entry of the question section: (qname, qtype, qclass).
type Question struct {
	QName  Hostname
	QType  Type
	QClass Class
}

// Encode serializes a question: qname | qtype:u16 | qclass:u16, big-endian.
func (q Question) Encode() ([]byte, error) {
	name, err := q.QName.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode qname: %w", err)
	}
	buf := make([]byte, len(name)+4)
	copy(buf, name)
	binary.BigEndian.PutUint16(buf[len(name):], uint16(q.QType))
	binary.BigEndian.PutUint16(buf[len(name)+2:], uint16(q.QClass))
	return buf, nil
}

// ParsedQuestion is the result of decoding a Question plus bytes consumed.
type ParsedQuestion struct {
	Question      Question
	BytesConsumed int
}

// ParseQuestion decodes a question section entry from the front of buf.
// qtype/qclass are validated against their closed enums.
func ParseQuestion(buf []byte) (ParsedQuestion, error) {
	name, err := Decode(buf)
	if err != nil {
		return ParsedQuestion{}, fmt.Errorf("parse qname: %w", err)
	}

	offset := name.BytesConsumed
	if offset+4 > len(buf) {
		return ParsedQuestion{}, ErrBufferUnderrun
	}

	qtype := Type(binary.BigEndian.Uint16(buf[offset : offset+2]))
	qclass := Class(binary.BigEndian.Uint16(buf[offset+2 : offset+4]))

	if !typeValid(qtype) {
		return ParsedQuestion{}, fmt.Errorf("%w: %d", ErrUnknownType, qtype)
	}
	if !classValid(qclass) {
		return ParsedQuestion{}, fmt.Errorf("%w: %d", ErrUnknownClass, qclass)
	}

	return ParsedQuestion{
		Question: Question{
			QName:  name.Hostname,
			QType:  qtype,
			QClass: qclass,
		},
		BytesConsumed: offset + 4,
	}, nil
}

// ResourceRecord is (name, rtype, class, ttl, rdlength, rdata). RData is
// opaque at this layer; higher layers (the response builder) interpret it
// for A and NS records.
type ResourceRecord struct {
	Name  Hostname
	RType Type
	Class Class
	TTL   uint32
	RData []byte
}

// Encode serializes a resource record:
// name | rtype:u16 | class:u16 | ttl:u32 | rdlength:u16 | rdata[rdlength].
func (rr ResourceRecord) Encode() ([]byte, error) {
	name, err := rr.Name.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode name: %w", err)
	}
	if len(rr.RData) > 0xFFFF {
		return nil, fmt.Errorf("dnscodec: rdata length %d exceeds u16 range", len(rr.RData))
	}

	buf := make([]byte, 0, len(name)+10+len(rr.RData))
	buf = append(buf, name...)

	var field [10]byte
	binary.BigEndian.PutUint16(field[0:2], uint16(rr.RType))
	binary.BigEndian.PutUint16(field[2:4], uint16(rr.Class))
	binary.BigEndian.PutUint32(field[4:8], rr.TTL)
	binary.BigEndian.PutUint16(field[8:10], uint16(len(rr.RData)))
	buf = append(buf, field[:]...)
	buf = append(buf, rr.RData...)

	return buf, nil
}

// ParsedResourceRecord is the result of decoding a ResourceRecord plus
// bytes consumed.
type ParsedResourceRecord struct {
	Record        ResourceRecord
	BytesConsumed int
}

// ParseResourceRecord decodes a resource record from the front of buf.
// rtype/class are validated against their closed enums.
func ParseResourceRecord(buf []byte) (ParsedResourceRecord, error) {
	name, err := Decode(buf)
	if err != nil {
		return ParsedResourceRecord{}, fmt.Errorf("parse name: %w", err)
	}

	offset := name.BytesConsumed
	if offset+10 > len(buf) {
		return ParsedResourceRecord{}, ErrBufferUnderrun
	}

	rtype := Type(binary.BigEndian.Uint16(buf[offset : offset+2]))
	class := Class(binary.BigEndian.Uint16(buf[offset+2 : offset+4]))
	ttl := binary.BigEndian.Uint32(buf[offset+4 : offset+8])
	rdlength := binary.BigEndian.Uint16(buf[offset+8 : offset+10])
	offset += 10

	if !typeValid(rtype) {
		return ParsedResourceRecord{}, fmt.Errorf("%w: %d", ErrUnknownType, rtype)
	}
	if !classValid(class) {
		return ParsedResourceRecord{}, fmt.Errorf("%w: %d", ErrUnknownClass, class)
	}

	if offset+int(rdlength) > len(buf) {
		return ParsedResourceRecord{}, ErrBufferUnderrun
	}

	rdata := make([]byte, rdlength)
	copy(rdata, buf[offset:offset+int(rdlength)])
	offset += int(rdlength)

	return ParsedResourceRecord{
		Record: ResourceRecord{
			Name:  name.Hostname,
			RType: rtype,
			Class: class,
			TTL:   ttl,
			RData: rdata,
		},
		BytesConsumed: offset,
	}, nil
}
