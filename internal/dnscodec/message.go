package dnscodec

import "fmt"

// Message is a full DNS message: header plus the four sections. Emit
// trusts the header's counts to equal the section lengths; Parse trusts
// the header's counts to know how many entries to read out of each
// section.
type Message struct {
	Header      Header
	Questions   []Question
	Answers     []ResourceRecord
	Authorities []ResourceRecord
	Additionals []ResourceRecord
}

// Emit concatenates the header, then each section in order (questions,
// answers, authorities, additionals). The header's four counts must
// already match the section lengths — Emit does not recompute them.
func (m Message) Emit() ([]byte, error) {
	buf := m.Header.Emit()

	for i, q := range m.Questions {
		b, err := q.Encode()
		if err != nil {
			return nil, fmt.Errorf("encode question %d: %w", i, err)
		}
		buf = append(buf, b...)
	}

	for _, section := range [][]ResourceRecord{m.Answers, m.Authorities, m.Additionals} {
		for i, rr := range section {
			b, err := rr.Encode()
			if err != nil {
				return nil, fmt.Errorf("encode record %d: %w", i, err)
			}
			buf = append(buf, b...)
		}
	}

	return buf, nil
}

// Parse decodes a full DNS message. It reads the header, then exactly
// QDCount questions, ANCount answers, NSCount authorities, and ARCount
// additionals, advancing an offset by whatever each child consumed.
// Trailing bytes beyond what the counts consume are discarded, not an
// error. Parse fails if any section's parse fails or the buffer is
// exhausted before the header's counts are satisfied.
func Parse(buf []byte) (Message, error) {
	parsedHeader, err := ParseHeader(buf)
	if err != nil {
		return Message{}, fmt.Errorf("parse header: %w", err)
	}
	offset := parsedHeader.BytesConsumed

	var m Message
	m.Header = parsedHeader.Header

	for i := 0; i < int(m.Header.QDCount); i++ {
		pq, err := ParseQuestion(buf[offset:])
		if err != nil {
			return Message{}, fmt.Errorf("parse question %d: %w", i, err)
		}
		m.Questions = append(m.Questions, pq.Question)
		offset += pq.BytesConsumed
	}

	sections := []struct {
		count int
		dst   *[]ResourceRecord
	}{
		{int(m.Header.ANCount), &m.Answers},
		{int(m.Header.NSCount), &m.Authorities},
		{int(m.Header.ARCount), &m.Additionals},
	}

	for _, s := range sections {
		for i := 0; i < s.count; i++ {
			pr, err := ParseResourceRecord(buf[offset:])
			if err != nil {
				return Message{}, fmt.Errorf("parse record %d: %w", i, err)
			}
			*s.dst = append(*s.dst, pr.Record)
			offset += pr.BytesConsumed
		}
	}

	return m, nil
}
