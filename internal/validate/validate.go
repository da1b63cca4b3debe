// Package validate implements the post-attack "success condition" check
// of spec §4.8: a subsequent clean query to the target resolver for a
// target_domain name, checked for whether the forged NS delegation took
// effect. Spec §5 explicitly calls this "not part of the driver" — unlike
// the attack driver it is not bound by the single-threaded invariant, so
// this package fans confirmation queries out across a bounded worker
// pool instead of running them serially.
package validate

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/dnskaminsky/poisoner/internal/dnscodec"
	"github.com/dnskaminsky/poisoner/internal/eventbus"
	"github.com/dnskaminsky/poisoner/internal/packet"
	"github.com/dnskaminsky/poisoner/internal/query"
	"github.com/dnskaminsky/poisoner/internal/worker"
)

// Config configures a confirmation pass.
type Config struct {
	ResolverIP   net.IP
	ResolverPort uint16 // default 53
	TargetDomain string
	AttackerNS   string
	Probes       []string // FQDNs under TargetDomain to query; defaults to {TargetDomain} if empty
	Timeout      time.Duration
	Workers      int
	Events       *eventbus.Bus // optional; TopicWin published if any probe confirms poisoning
}

// ProbeResult is the outcome of one confirmation query.
type ProbeResult struct {
	Hostname string
	Poisoned bool
	Err      error
}

// Result summarizes a confirmation pass.
type Result struct {
	Probes   []ProbeResult
	Poisoned bool // true if any probe found the forged delegation
}

// Run issues confirmation queries concurrently (bounded by Config.Workers)
// and reports whether any of them observed AttackerNS as an authority for
// TargetDomain — the cache-poisoning "win condition."
func Run(ctx context.Context, cfg Config) (Result, error) {
	probes := cfg.Probes
	if len(probes) == 0 {
		probes = []string{cfg.TargetDomain}
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}

	port := cfg.ResolverPort
	if port == 0 {
		port = 53
	}

	pool := worker.NewPool(worker.Config{Workers: cfg.Workers})
	defer pool.Close()

	results := make([]ProbeResult, len(probes))
	var wg sync.WaitGroup
	for i, host := range probes {
		i, host := i, host
		wg.Add(1)
		go func() {
			defer wg.Done()

			job := worker.JobFunc(func(jobCtx context.Context) error {
				poisoned, err := probe(jobCtx, cfg.ResolverIP, port, host, cfg.AttackerNS, cfg.Timeout)
				results[i] = ProbeResult{Hostname: host, Poisoned: poisoned, Err: err}
				return err
			})

			probeCtx, cancel := context.WithTimeout(ctx, cfg.Timeout+time.Second)
			defer cancel()
			_ = pool.Submit(probeCtx, job)
		}()
	}
	wg.Wait()

	result := Result{Probes: results}
	for _, r := range results {
		if r.Poisoned {
			result.Poisoned = true
			break
		}
	}

	if result.Poisoned && cfg.Events != nil {
		cfg.Events.Publish(ctx, eventbus.TopicWin, map[string]any{
			"target_domain": cfg.TargetDomain,
			"attacker_ns":   cfg.AttackerNS,
		})
	}

	return result, nil
}

// probe sends one clean query for hostname to resolverIP and checks
// whether the response's authority section delegates to attackerNS.
// The response is parsed with the hardened packet.Parser rather than
// dnscodec, since unlike our own constructed messages this buffer comes
// from the network and may be adversarial.
func probe(ctx context.Context, resolverIP net.IP, resolverPort uint16, hostname, attackerNS string, timeout time.Duration) (bool, error) {
	q, err := query.BuildOne(hostname)
	if err != nil {
		return false, err
	}
	reqBytes, err := q.Emit()
	if err != nil {
		return false, err
	}

	conn, err := net.Dial("udp4", net.JoinHostPort(resolverIP.String(), fmt.Sprintf("%d", resolverPort)))
	if err != nil {
		return false, fmt.Errorf("validate: dial resolver: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	conn.SetDeadline(deadline)

	if _, err := conn.Write(reqBytes); err != nil {
		return false, fmt.Errorf("validate: send query: %w", err)
	}

	buf := make([]byte, 65535)
	n, err := conn.Read(buf)
	if err != nil {
		return false, fmt.Errorf("validate: read response: %w", err)
	}

	parser := packet.NewParser(buf[:n])
	msg, err := parser.Parse()
	if err != nil {
		return false, fmt.Errorf("validate: parse response: %w", err)
	}

	nsFQDN := attackerNS
	if nsFQDN != "" && nsFQDN[len(nsFQDN)-1] != '.' {
		nsFQDN += "."
	}

	for _, rr := range msg.Authority {
		if rr.Type != 2 { // NS
			continue
		}
		if name, ok := decodeNSRData(rr.RData); ok && name == nsFQDN {
			return true, nil
		}
	}

	return false, nil
}

// decodeNSRData decodes an uncompressed NS rdata blob (as our own
// response builder always emits, spec §4.1) back into its dotted form
// for comparison.
func decodeNSRData(rdata []byte) (string, bool) {
	name, err := dnscodec.Decode(rdata)
	if err != nil {
		return "", false
	}
	return name.Hostname.String() + ".", true
}
