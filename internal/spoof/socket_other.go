//go:build !linux

package spoof

import (
	"fmt"
	"net"
)

type rawSender interface {
	send(packet []byte, dst net.IP) error
	close() error
}

func newRawSender() (rawSender, error) {
	return nil, fmt.Errorf("spoof: raw IP_HDRINCL sockets are only implemented for linux")
}
