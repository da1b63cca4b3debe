package spoof

import (
	"encoding/binary"
	"fmt"
	"net"
)

const (
	ipv4HeaderLen = 20
	udpHeaderLen  = 8
	protoUDP      = 17

	// maxTotalSize is the datagram ceiling this tool targets: 576 bytes
	// in all, which holds a 512-byte RFC 1035 DNS payload plus the 28
	// bytes of IPv4+UDP framing.
	maxTotalSize = 576
)

// ipv4Header holds the fixed template fields of spec §4.7: version=4,
// IHL=5, TOS/DSCP/ECN=0, identification=0, flags=DF, TTL=64, proto=UDP.
// SrcIP and DstIP are the only stored fields and stay fixed for a
// Spoofer; total length and checksum are computed on each build, and the
// rest are constants.
type ipv4Header struct {
	SrcIP net.IP
	DstIP net.IP
}

// build encodes the 20-byte IPv4 header for a payload of the given
// length, computing and inserting the header checksum.
func (h ipv4Header) build(payloadLen int) ([]byte, error) {
	src4 := h.SrcIP.To4()
	dst4 := h.DstIP.To4()
	if src4 == nil || dst4 == nil {
		return nil, fmt.Errorf("spoof: source and destination must be IPv4 addresses")
	}

	totalLen := ipv4HeaderLen + udpHeaderLen + payloadLen
	if totalLen > maxTotalSize {
		return nil, fmt.Errorf("spoof: total packet size %d exceeds %d-byte limit", totalLen, maxTotalSize)
	}

	buf := make([]byte, ipv4HeaderLen)
	buf[0] = 0x45 // version=4, IHL=5
	buf[1] = 0    // TOS/DSCP/ECN
	binary.BigEndian.PutUint16(buf[2:4], uint16(totalLen))
	binary.BigEndian.PutUint16(buf[4:6], 0) // identification
	binary.BigEndian.PutUint16(buf[6:8], 0x4000) // flags=DF, fragment offset=0
	buf[8] = 64 // TTL
	buf[9] = protoUDP
	binary.BigEndian.PutUint16(buf[10:12], 0) // checksum, filled below
	copy(buf[12:16], src4)
	copy(buf[16:20], dst4)

	binary.BigEndian.PutUint16(buf[10:12], checksum(buf))

	return buf, nil
}

// udpHeader holds a fixed source port and destination port: spec §4.7
// fixes src_port=53, but §9's Design Notes flag the destination port as
// parameterizable for realism, so DstPort is a field here rather than a
// constant.
type udpHeader struct {
	SrcPort uint16
	DstPort uint16
}

// build encodes the 8-byte UDP header followed by payload, with the
// pseudo-header checksum (RFC 768) computed over
// (src IP, dst IP, zero, proto, UDP length) ‖ header(checksum=0) ‖ payload.
// A computed checksum of zero is transmitted as 0xFFFF per RFC 768.
func (h udpHeader) build(srcIP, dstIP net.IP, payload []byte) ([]byte, error) {
	src4 := srcIP.To4()
	dst4 := dstIP.To4()
	if src4 == nil || dst4 == nil {
		return nil, fmt.Errorf("spoof: source and destination must be IPv4 addresses")
	}

	udpLen := udpHeaderLen + len(payload)

	segment := make([]byte, udpLen)
	binary.BigEndian.PutUint16(segment[0:2], h.SrcPort)
	binary.BigEndian.PutUint16(segment[2:4], h.DstPort)
	binary.BigEndian.PutUint16(segment[4:6], uint16(udpLen))
	binary.BigEndian.PutUint16(segment[6:8], 0) // checksum, filled below
	copy(segment[8:], payload)

	pseudo := make([]byte, 12+udpLen)
	copy(pseudo[0:4], src4)
	copy(pseudo[4:8], dst4)
	pseudo[8] = 0
	pseudo[9] = protoUDP
	binary.BigEndian.PutUint16(pseudo[10:12], uint16(udpLen))
	copy(pseudo[12:], segment)

	sum := checksum(pseudo)
	if sum == 0 {
		sum = 0xFFFF
	}
	binary.BigEndian.PutUint16(segment[6:8], sum)

	return segment, nil
}
