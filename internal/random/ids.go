// Package random provides the two sources of randomness the Kaminsky
// attack driver needs: transaction IDs for the legitimate query, and
// random subdomains that force the authoritative server to answer
// NXDOMAIN/referral instead of hitting the resolver's cache.
package random

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// TransactionID generates a uniformly random 16-bit DNS transaction ID
// for the real recursive query the driver sends alongside its flood.
// Uses crypto/rand, not math/rand, so the real query's ID can't be
// guessed by anything watching the process — though for this tool it is
// the flood's IDs, not this one, that need to cover the ID space.
func TransactionID() uint16 {
	var buf [2]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(fmt.Sprintf("random: crypto/rand failed: %v", err))
	}
	return binary.BigEndian.Uint16(buf[:])
}
