// Package query builds outbound DNS query messages from a list of
// hostnames, per spec §4.5: randomized transaction ID, caller-selectable
// qtype/opcode/recursion-desired, one question per hostname.
package query

import (
	"fmt"

	"github.com/dnskaminsky/poisoner/internal/dnscodec"
	"github.com/dnskaminsky/poisoner/internal/random"
)

// Options configures a query build. DefaultOptions supplies the defaults
// (QType A, Opcode QUERY, RecursionDesired true); Build uses the fields as
// given, so the zero value means QType 0 and RecursionDesired false.
type Options struct {
	QType            dnscodec.Type
	Opcode           dnscodec.Opcode
	RecursionDesired bool
}

// DefaultOptions returns the builder's default options.
func DefaultOptions() Options {
	return Options{
		QType:            dnscodec.TypeA,
		Opcode:           dnscodec.OpcodeQuery,
		RecursionDesired: true,
	}
}

// Build materializes a query Message for the given hostnames. The
// transaction ID is freshly randomized on every call.
func Build(hostnames []string, opts Options) (dnscodec.Message, error) {
	if len(hostnames) == 0 {
		return dnscodec.Message{}, fmt.Errorf("query: at least one hostname is required")
	}
	if len(hostnames) > 65535 {
		return dnscodec.Message{}, fmt.Errorf("query: %d hostnames exceeds the 65535-question limit", len(hostnames))
	}

	questions := make([]dnscodec.Question, 0, len(hostnames))
	for _, h := range hostnames {
		name, err := dnscodec.FromString(h)
		if err != nil {
			return dnscodec.Message{}, fmt.Errorf("query: invalid hostname %q: %w", h, err)
		}
		questions = append(questions, dnscodec.Question{
			QName:  name,
			QType:  opts.QType,
			QClass: dnscodec.ClassIN,
		})
	}

	header := dnscodec.Header{
		ID:      random.TransactionID(),
		QR:      false,
		Opcode:  opts.Opcode,
		AA:      false,
		TC:      false,
		RD:      opts.RecursionDesired,
		RA:      false,
		Z:       0,
		Rcode:   0,
		QDCount: uint16(len(questions)),
	}

	return dnscodec.Message{Header: header, Questions: questions}, nil
}

// BuildOne is a convenience wrapper for the common single-hostname case
// used by the Kaminsky attack driver (spec §4.8 step 2).
func BuildOne(hostname string) (dnscodec.Message, error) {
	return Build([]string{hostname}, DefaultOptions())
}
