package packet

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestParseSimpleQuery(t *testing.T) {
	msg := []byte{
		// Header
		0x12, 0x34, // ID
		0x01, 0x00, // Flags: standard query, RD=1
		0x00, 0x01, // QDCOUNT = 1
		0x00, 0x00, // ANCOUNT = 0
		0x00, 0x00, // NSCOUNT = 0
		0x00, 0x00, // ARCOUNT = 0

		// Question: example.com
		0x07, 'e', 'x', 'a', 'm', 'p', 'l', 'e',
		0x03, 'c', 'o', 'm',
		0x00,       // null terminator
		0x00, 0x01, // Type A
		0x00, 0x01, // Class IN
	}

	p := NewParser(msg)
	m, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if m.ID != 0x1234 {
		t.Errorf("ID = %x, want 0x1234", m.ID)
	}

	if len(m.Authority) != 0 {
		t.Fatalf("got %d authority records, want 0", len(m.Authority))
	}
}

func TestParseAuthorityCompressedName(t *testing.T) {
	msg := []byte{
		// Header
		0x12, 0x34, // ID
		0x81, 0x80, // Flags: response, RD=1, RA=1
		0x00, 0x01, // QDCOUNT = 1
		0x00, 0x00, // ANCOUNT = 0
		0x00, 0x01, // NSCOUNT = 1
		0x00, 0x00, // ARCOUNT = 0

		// Question: example.com
		0x07, 'e', 'x', 'a', 'm', 'p', 'l', 'e',
		0x03, 'c', 'o', 'm',
		0x00,       // null terminator
		0x00, 0x01, // Type A
		0x00, 0x01, // Class IN

		// Authority: NS record whose name is a compression pointer to example.com
		0xC0, 0x0C, // Pointer to offset 12 (example.com)
		0x00, 0x02, // Type NS
		0x00, 0x01, // Class IN
		0x00, 0x00, 0x00, 0x3C, // TTL = 60
		0x00, 0x02, // RDLENGTH = 2
		0xC0, 0x0C, // RDATA: another pointer to example.com
	}

	p := NewParser(msg)
	m, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if len(m.Authority) != 1 {
		t.Fatalf("got %d authority records, want 1", len(m.Authority))
	}

	if m.Authority[0].Name != "example.com." {
		t.Errorf("Authority name = %q, want %q", m.Authority[0].Name, "example.com.")
	}
	if m.Authority[0].Type != 2 {
		t.Errorf("Type = %d, want 2 (NS)", m.Authority[0].Type)
	}
}

func TestCompressionBomb_Loop(t *testing.T) {
	msg := []byte{
		// Header
		0x12, 0x34, // ID
		0x01, 0x00, // Flags
		0x00, 0x01, // QDCOUNT = 1
		0x00, 0x00, // ANCOUNT = 0
		0x00, 0x00, // NSCOUNT = 0
		0x00, 0x00, // ARCOUNT = 0

		// Question with pointer loop
		0xC0, 0x0C, // Pointer to itself (offset 12)
		0x00, 0x01, // Type A
		0x00, 0x01, // Class IN
	}

	p := NewParser(msg)
	_, err := p.Parse()
	if !errors.Is(err, ErrCompressionBomb) && !errors.Is(err, ErrInvalidOffset) {
		t.Errorf("expected ErrCompressionBomb or ErrInvalidOffset, got %v", err)
	}
}

func TestCompressionBomb_Depth(t *testing.T) {
	msg := make([]byte, 0, 512)

	header := []byte{
		0x12, 0x34, // ID
		0x01, 0x00, // Flags
		0x00, 0x01, // QDCOUNT = 1
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}
	msg = append(msg, header...)

	// Chain of 25 pointers (exceeds maxCompressionDepth=20)
	startOffset := len(msg)
	for i := 0; i < 25; i++ {
		ptr := make([]byte, 2)
		if i == 0 {
			binary.BigEndian.PutUint16(ptr, uint16(startOffset+25*2)|0xC000)
		} else {
			binary.BigEndian.PutUint16(ptr, uint16(startOffset+(i-1)*2)|0xC000)
		}
		msg = append(msg, ptr...)
	}

	msg = append(msg, 0x07, 'e', 'x', 'a', 'm', 'p', 'l', 'e', 0x00)
	msg = append(msg, 0x00, 0x01, 0x00, 0x01)

	p := NewParser(msg)
	_, err := p.Parse()
	if !errors.Is(err, ErrCompressionBomb) && !errors.Is(err, ErrInvalidOffset) {
		t.Errorf("expected ErrCompressionBomb or ErrInvalidOffset for deep chain, got %v", err)
	}
}

// TestTooManyRRs exercises maxRRsPerSection, scaled down from the
// resolver-grade ceiling a general-purpose server needs to the handful
// of records a single confirmation probe ever legitimately sees.
func TestTooManyRRs(t *testing.T) {
	msg := make([]byte, 0, 4096)

	const tooMany = maxRRsPerSection + 1

	header := []byte{
		0x12, 0x34, // ID
		0x81, 0x80, // Response
		0x00, 0x01, // QDCOUNT = 1
		byte(tooMany >> 8), byte(tooMany), // ANCOUNT
		0x00, 0x00, 0x00, 0x00,
	}
	msg = append(msg, header...)

	msg = append(msg, 0x07, 'e', 'x', 'a', 'm', 'p', 'l', 'e', 0x03, 'c', 'o', 'm', 0x00)
	msg = append(msg, 0x00, 0x01, 0x00, 0x01) // A IN

	for i := 0; i < tooMany; i++ {
		msg = append(msg, 0xC0, 0x0C)             // Compression pointer
		msg = append(msg, 0x00, 0x01, 0x00, 0x01) // A IN
		msg = append(msg, 0x00, 0x00, 0x00, 0x3C) // TTL
		msg = append(msg, 0x00, 0x04)             // RDLENGTH
		msg = append(msg, 192, 0, 2, byte(i))     // IP
	}

	p := NewParser(msg)
	_, err := p.Parse()
	if !errors.Is(err, ErrTooManyRRs) {
		t.Errorf("expected ErrTooManyRRs, got %v", err)
	}
}

// TestRRsetTooLarge exercises maxRRsetSize, scaled down to what a
// delegation-plus-glue answer needs rather than a resolver's full
// zone-transfer-sized tolerance.
func TestRRsetTooLarge(t *testing.T) {
	msg := make([]byte, 0, 16384)

	header := []byte{
		0x12, 0x34, // ID
		0x81, 0x80, // Response
		0x00, 0x01, // QDCOUNT = 1
		0x00, 0x02, // ANCOUNT = 2
		0x00, 0x00, 0x00, 0x00,
	}
	msg = append(msg, header...)

	msg = append(msg, 0x07, 'e', 'x', 'a', 'm', 'p', 'l', 'e', 0x03, 'c', 'o', 'm', 0x00)
	msg = append(msg, 0x00, 0x10, 0x00, 0x01) // TXT IN

	rdlen := maxRRsetSize / 2 // one record fits under the ceiling, a second tips it over
	for i := 0; i < 2; i++ {
		msg = append(msg, 0xC0, 0x0C)             // Compression pointer
		msg = append(msg, 0x00, 0x10, 0x00, 0x01) // TXT IN
		msg = append(msg, 0x00, 0x00, 0x00, 0x3C) // TTL
		msg = append(msg, byte(rdlen>>8), byte(rdlen))

		rdata := make([]byte, rdlen)
		for j := range rdata {
			rdata[j] = 'A'
		}
		msg = append(msg, rdata...)
	}

	p := NewParser(msg)
	_, err := p.Parse()
	if !errors.Is(err, ErrRRsetTooLarge) {
		t.Errorf("expected ErrRRsetTooLarge, got %v", err)
	}
}

func TestInvalidPointer(t *testing.T) {
	msg := []byte{
		// Header
		0x12, 0x34, // ID
		0x01, 0x00, // Flags
		0x00, 0x01, // QDCOUNT = 1
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00,

		// Question with pointer beyond message
		0xC0, 0xFF, // Pointer to offset 255 (beyond end)
		0x00, 0x01, 0x00, 0x01,
	}

	p := NewParser(msg)
	_, err := p.Parse()
	if !errors.Is(err, ErrInvalidOffset) {
		t.Errorf("expected ErrInvalidOffset, got %v", err)
	}
}

func TestLabelTooLong(t *testing.T) {
	msg := make([]byte, 0, 256)

	header := []byte{
		0x12, 0x34, // ID
		0x01, 0x00, // Flags
		0x00, 0x01, // QDCOUNT = 1
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}
	msg = append(msg, header...)

	// Label with length 64 (max is 63)
	msg = append(msg, 64)
	label := make([]byte, 64)
	for i := range label {
		label[i] = 'a'
	}
	msg = append(msg, label...)
	msg = append(msg, 0x00) // null terminator
	msg = append(msg, 0x00, 0x01, 0x00, 0x01)

	p := NewParser(msg)
	_, err := p.Parse()
	if !errors.Is(err, ErrLabelTooLong) {
		t.Errorf("expected ErrLabelTooLong, got %v", err)
	}
}

func TestMessageTooShort(t *testing.T) {
	p := NewParser([]byte{0x12, 0x34, 0x01})
	_, err := p.Parse()
	if !errors.Is(err, ErrMessageTooShort) {
		t.Errorf("expected ErrMessageTooShort, got %v", err)
	}
}

func BenchmarkParseAuthorityRecord(b *testing.B) {
	msg := []byte{
		0x12, 0x34, 0x81, 0x80,
		0x00, 0x01, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00,
		0x07, 'e', 'x', 'a', 'm', 'p', 'l', 'e',
		0x03, 'c', 'o', 'm', 0x00,
		0x00, 0x01, 0x00, 0x01,
		0xC0, 0x0C, 0x00, 0x02, 0x00, 0x01, 0x00, 0x00, 0x00, 0x3C,
		0x00, 0x02, 0xC0, 0x0C,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := NewParser(msg)
		if _, err := p.Parse(); err != nil {
			b.Fatal(err)
		}
	}
}

// FuzzParser ensures the parser never panics on adversarial input: a
// confirmation probe's response comes from whatever the attack run
// actually poisoned, including resolvers that are broken rather than
// merely hostile.
func FuzzParser(f *testing.F) {
	seeds := [][]byte{
		{0x12, 0x34, 0x01, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
			0x07, 'e', 'x', 'a', 'm', 'p', 'l', 'e', 0x03, 'c', 'o', 'm', 0x00,
			0x00, 0x01, 0x00, 0x01},
		{0x12, 0x34, 0x81, 0x80, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00,
			0x07, 'e', 'x', 'a', 'm', 'p', 'l', 'e', 0x03, 'c', 'o', 'm', 0x00,
			0x00, 0x01, 0x00, 0x01,
			0xC0, 0x0C, 0x00, 0x02, 0x00, 0x01, 0x00, 0x00, 0x00, 0x3C,
			0x00, 0x02, 0xC0, 0x0C},
	}

	for _, seed := range seeds {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		p := NewParser(data)
		_, _ = p.Parse()
	})
}
