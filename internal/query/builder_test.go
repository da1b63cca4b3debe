package query

import "testing"

func TestBuildSetsDefaults(t *testing.T) {
	m, err := Build([]string{"www.example.com"}, DefaultOptions())
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if m.Header.QR {
		t.Error("QR should be false for a query")
	}
	if !m.Header.RD {
		t.Error("RD should default to true")
	}
	if m.Header.QDCount != 1 {
		t.Errorf("QDCount = %d, want 1", m.Header.QDCount)
	}
	if len(m.Questions) != 1 {
		t.Fatalf("got %d questions, want 1", len(m.Questions))
	}
	if m.Questions[0].QClass != 1 {
		t.Errorf("QClass = %d, want IN(1)", m.Questions[0].QClass)
	}
}

func TestBuildRejectsInvalidHostname(t *testing.T) {
	if _, err := Build([]string{"-bad.example.com"}, DefaultOptions()); err == nil {
		t.Fatal("expected error for invalid hostname, got nil")
	}
}

func TestBuildRejectsEmptyList(t *testing.T) {
	if _, err := Build(nil, DefaultOptions()); err == nil {
		t.Fatal("expected error for empty hostname list, got nil")
	}
}

func TestBuildRandomizesID(t *testing.T) {
	a, err := BuildOne("example.com")
	if err != nil {
		t.Fatalf("BuildOne() error: %v", err)
	}
	b, err := BuildOne("example.com")
	if err != nil {
		t.Fatalf("BuildOne() error: %v", err)
	}
	if a.Header.ID == b.Header.ID {
		t.Error("two successive builds produced the same transaction ID (acceptable odds 1 in 65536, but worth a look)")
	}
}

func TestBuildMultipleHostnames(t *testing.T) {
	m, err := Build([]string{"a.example.com", "b.example.com", "c.example.com"}, DefaultOptions())
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if int(m.Header.QDCount) != 3 || len(m.Questions) != 3 {
		t.Fatalf("got QDCount=%d len(Questions)=%d, want 3 and 3", m.Header.QDCount, len(m.Questions))
	}
}
