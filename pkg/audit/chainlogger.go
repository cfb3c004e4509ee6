// Package audit provides a tamper-evident operation log: each entry's hash
// covers the previous entry's hash, so any rewrite of history breaks the
// chain.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Entry is a single link in the audit chain.
type Entry struct {
	Timestamp    string `json:"timestamp"`
	PreviousHash string `json:"previous_hash"`
	Payload      string `json:"payload"`
	Hash         string `json:"hash"`
}

// ChainLogger records operation attempts as a hash chain. Unlike the
// transaction ledger, which records committed balance changes, the chain
// also records rejected attempts.
type ChainLogger struct {
	mu      sync.Mutex
	entries []*Entry
	prev    string
}

// NewChainLogger returns a logger anchored at a zero hash.
func NewChainLogger() *ChainLogger {
	return &ChainLogger{prev: strings.Repeat("0", 64)}
}

// Append adds one entry to the chain and returns it.
func (c *ChainLogger) Append(payload string) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &Entry{
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		PreviousHash: c.prev,
		Payload:      payload,
	}
	e.Hash = hashEntry(e.PreviousHash, e.Timestamp, e.Payload)
	c.prev = e.Hash
	c.entries = append(c.entries, e)
	return e
}

// Entries returns a copy of the chain in append order.
func (c *ChainLogger) Entries() []*Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len reports the number of recorded entries.
func (c *ChainLogger) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Verify recomputes every hash and checks the links.
func (c *ChainLogger) Verify() bool {
	return VerifyChain(c.Entries())
}

// VerifyChain checks that a slice of entries forms a valid hash chain.
func VerifyChain(entries []*Entry) bool {
	for i, e := range entries {
		if i > 0 && e.PreviousHash != entries[i-1].Hash {
			return false
		}
		if hashEntry(e.PreviousHash, e.Timestamp, e.Payload) != e.Hash {
			return false
		}
	}
	return true
}

func hashEntry(prev, ts, payload string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", prev, ts, payload)))
	return hex.EncodeToString(sum[:])
}
