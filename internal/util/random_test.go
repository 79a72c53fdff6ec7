package util

import (
	"strings"
	"testing"
)

func TestGenerateRandomID(t *testing.T) {
	id := GenerateRandomID("conv-", 16)
	if !strings.HasPrefix(id, "conv-") {
		t.Errorf("expected prefix conv-, got %q", id)
	}
	if len(id) != len("conv-")+16 {
		t.Errorf("expected length %d, got %d", len("conv-")+16, len(id))
	}
}

func TestGenerateRandomHex(t *testing.T) {
	hex := GenerateRandomHex(32)
	if len(hex) != 32 {
		t.Errorf("expected 32 chars, got %d", len(hex))
	}
	for _, ch := range hex {
		if !strings.ContainsRune("0123456789abcdef", ch) {
			t.Errorf("unexpected character %q in hex string", ch)
		}
	}
	if GenerateRandomHex(0) != "" {
		t.Errorf("expected empty string for zero length")
	}
	if GenerateRandomHex(-5) != "" {
		t.Errorf("expected empty string for negative length")
	}
}
