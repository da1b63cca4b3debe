//go:build linux

package spoof

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// rawSender transmits a pre-built IPv4 packet (including its own IPv4
// header) over a raw socket.
type rawSender interface {
	send(packet []byte, dst net.IP) error
	close() error
}

type linuxRawSender struct {
	fd int
}

// newRawSender opens an AF_INET/SOCK_RAW socket with IP_HDRINCL set, so
// the kernel transmits the IPv4 header this package builds verbatim
// instead of constructing its own (which would overwrite the spoofed
// source address).
func newRawSender() (rawSender, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW, unix.IPPROTO_RAW)
	if err != nil {
		return nil, fmt.Errorf("spoof: open raw socket (requires CAP_NET_RAW): %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_HDRINCL, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("spoof: set IP_HDRINCL: %w", err)
	}

	return &linuxRawSender{fd: fd}, nil
}

func (s *linuxRawSender) send(packet []byte, dst net.IP) error {
	dst4 := dst.To4()
	if dst4 == nil {
		return fmt.Errorf("spoof: destination must be an IPv4 address")
	}

	addr := unix.SockaddrInet4{Port: 0}
	copy(addr.Addr[:], dst4)

	if err := unix.Sendto(s.fd, packet, 0, &addr); err != nil {
		return fmt.Errorf("spoof: sendto: %w", err)
	}
	return nil
}

func (s *linuxRawSender) close() error {
	return unix.Close(s.fd)
}
