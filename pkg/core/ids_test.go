package core

import (
	"strings"
	"testing"
)

func TestGenerateID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestGenerateName(t *testing.T) {
	name := GenerateName("stream")
	if !strings.HasPrefix(name, "stream-") {
		t.Errorf("GenerateName() = %q, want stream- prefix", name)
	}
	if len(name) != len("stream-")+8 {
		t.Errorf("GenerateName() = %q, unexpected length", name)
	}
	if got := GenerateName(""); len(got) != 8 {
		t.Errorf("GenerateName(\"\") = %q, want 8 chars", got)
	}
}
