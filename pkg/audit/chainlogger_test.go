package audit

import (
	"strings"
	"testing"
)

func TestChainLogger(t *testing.T) {
	logger := NewChainLogger()

	first := logger.Append("op=create_account id=1001")
	second := logger.Append("op=deposit id=1001 amount=50.00")

	if first.PreviousHash != strings.Repeat("0", 64) {
		t.Errorf("first entry should anchor at the zero hash, got %s", first.PreviousHash)
	}
	if second.PreviousHash != first.Hash {
		t.Error("second entry does not link to the first")
	}
	if logger.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", logger.Len())
	}
	if !logger.Verify() {
		t.Error("freshly built chain should verify")
	}
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	logger := NewChainLogger()
	logger.Append("op=deposit id=1001 amount=50.00")
	logger.Append("op=withdraw id=1001 amount=20.00")
	logger.Append("op=delete_account id=1001")

	entries := logger.Entries()
	if !VerifyChain(entries) {
		t.Fatal("untampered chain should verify")
	}

	// Rewriting a payload breaks the chain.
	tampered := make([]*Entry, len(entries))
	for i, e := range entries {
		cp := *e
		tampered[i] = &cp
	}
	tampered[1].Payload = "op=withdraw id=1001 amount=2000.00"
	if VerifyChain(tampered) {
		t.Error("tampered payload should fail verification")
	}

	// Dropping an entry breaks the links.
	if VerifyChain([]*Entry{entries[0], entries[2]}) {
		t.Error("chain with a missing entry should fail verification")
	}
}

func TestVerifyChainEmpty(t *testing.T) {
	if !VerifyChain(nil) {
		t.Error("empty chain should verify")
	}
}
