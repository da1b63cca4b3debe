package random

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/dchest/siphash"
)

const alphanum = "abcdefghijklmnopqrstuvwxyz0123456789"

// Subdomain generates a random lowercase-alphanumeric string of the given
// length, for use as the random subdomain label in a Kaminsky round
// (spec: 7 lowercase-alphanumeric characters, but the length is a
// parameter so callers can tune it).
func Subdomain(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("random: subdomain length must be positive, got %d", length)
	}

	idx := make([]byte, length)
	if _, err := rand.Read(idx); err != nil {
		return "", fmt.Errorf("random: crypto/rand failed: %w", err)
	}

	out := make([]byte, length)
	for i, b := range idx {
		out[i] = alphanum[int(b)%len(alphanum)]
	}
	return string(out), nil
}

// SubdomainTracker remembers which random subdomains a running attack has
// already tried, so a long-running attack never reissues one: reusing a
// subdomain risks hitting a negative-cache entry left over from an
// earlier round, which would short-circuit the race before the forged
// flood ever gets a chance (the same reason each round generates a fresh
// name in the first place). Digests are computed with SipHash-2-4 keyed
// by a process-random secret rather than a plain set of strings, so the
// tracker's memory footprint per entry is fixed regardless of subdomain
// length and two attacks never share a comparable key.
type SubdomainTracker struct {
	mu   sync.Mutex
	k0   uint64
	k1   uint64
	seen map[uint64]struct{}
}

// NewSubdomainTracker creates a tracker keyed with a fresh random SipHash
// secret.
func NewSubdomainTracker() (*SubdomainTracker, error) {
	var keyBytes [16]byte
	if _, err := rand.Read(keyBytes[:]); err != nil {
		return nil, fmt.Errorf("random: crypto/rand failed: %w", err)
	}

	return &SubdomainTracker{
		k0:   binary.LittleEndian.Uint64(keyBytes[0:8]),
		k1:   binary.LittleEndian.Uint64(keyBytes[8:16]),
		seen: make(map[uint64]struct{}),
	}, nil
}

// digest hashes a candidate subdomain under the tracker's secret key.
func (t *SubdomainTracker) digest(candidate string) uint64 {
	return siphash.Hash(t.k0, t.k1, []byte(candidate))
}

// TryMark reports whether candidate is new (and marks it as seen) or has
// already been used in this attack run.
func (t *SubdomainTracker) TryMark(candidate string) (isNew bool) {
	d := t.digest(candidate)

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.seen[d]; ok {
		return false
	}
	t.seen[d] = struct{}{}
	return true
}

// Len reports how many distinct subdomains have been marked so far.
func (t *SubdomainTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}

// FreshSubdomain generates random subdomains of the given length until it
// produces one the tracker hasn't seen before, marks it, and returns it.
func FreshSubdomain(tracker *SubdomainTracker, length int) (string, error) {
	const maxAttempts = 64
	for i := 0; i < maxAttempts; i++ {
		candidate, err := Subdomain(length)
		if err != nil {
			return "", err
		}
		if tracker.TryMark(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("random: could not find a fresh %d-character subdomain after %d attempts", length, maxAttempts)
}
