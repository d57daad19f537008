// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/hearthstay/rentledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	entries     []ledger.LedgerEntry
	byID        map[string]int
	idempotency map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		byID:        make(map[string]int),
		idempotency: make(map[string]bool),
	}
}

// Append adds a single entry. Append-only; the idempotency check and the
// write happen under one lock, so duplicate keys cannot race in.
func (m *Memory) Append(_ context.Context, entry ledger.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(entry)
}

// AppendBatch adds multiple entries atomically.
func (m *Memory) AppendBatch(_ context.Context, entries []ledger.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check all idempotency keys first (atomic check)
	seen := make(map[string]bool)
	for _, e := range entries {
		if e.IdempotencyKey == "" {
			continue
		}
		if m.idempotency[e.IdempotencyKey] || seen[e.IdempotencyKey] {
			return ledger.ErrDuplicateIdempotencyKey
		}
		seen[e.IdempotencyKey] = true
	}

	for _, e := range entries {
		if err := m.appendLocked(e); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) appendLocked(entry ledger.LedgerEntry) error {
	if entry.IdempotencyKey != "" && m.idempotency[entry.IdempotencyKey] {
		return ledger.ErrDuplicateIdempotencyKey
	}

	// Insert in accounting-date order; equal dates keep insertion order.
	i := sort.Search(len(m.entries), func(i int) bool {
		return m.entries[i].Date.After(entry.Date)
	})
	m.entries = append(m.entries, ledger.LedgerEntry{})
	copy(m.entries[i+1:], m.entries[i:])
	m.entries[i] = entry

	m.byID = make(map[string]int, len(m.entries))
	for idx := range m.entries {
		m.byID[m.entries[idx].ID] = idx
	}
	if entry.IdempotencyKey != "" {
		m.idempotency[entry.IdempotencyKey] = true
	}
	return nil
}

// Query returns entries matching the filter in date order.
func (m *Memory) Query(_ context.Context, f ledger.Filter) ([]ledger.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.LedgerEntry
	for i := range m.entries {
		if f.Matches(&m.entries[i]) {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

// Get returns an entry by ID.
func (m *Memory) Get(_ context.Context, id string) (ledger.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.byID[id]
	if !ok {
		return ledger.LedgerEntry{}, ledger.ErrEntryNotFound
	}
	return m.entries[i], nil
}

// Exists checks if an idempotency key exists.
func (m *Memory) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

var _ ledger.Store = (*Memory)(nil)
