// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/lease-settlement/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	collections map[generic.ContractID][]generic.Collection
	idempotency map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		collections: make(map[generic.ContractID][]generic.Collection),
		idempotency: make(map[string]bool),
	}
}

// Append adds a single collection. Append-only.
func (m *Memory) Append(_ context.Context, c generic.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.IdempotencyKey != "" && m.idempotency[c.IdempotencyKey] {
		return generic.ErrDuplicateIdempotencyKey
	}
	m.appendLocked(c)
	return nil
}

// AppendBatch adds multiple collections atomically.
func (m *Memory) AppendBatch(_ context.Context, cs []generic.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check all idempotency keys first, including duplicates inside the batch
	batch := make(map[string]bool, len(cs))
	for _, c := range cs {
		if c.IdempotencyKey == "" {
			continue
		}
		if m.idempotency[c.IdempotencyKey] || batch[c.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		batch[c.IdempotencyKey] = true
	}

	for _, c := range cs {
		m.appendLocked(c)
	}
	return nil
}

func (m *Memory) appendLocked(c generic.Collection) {
	cs := m.collections[c.ContractID]

	// Insert after every collection paid at or before c, keeping arrival order for ties
	i := sort.Search(len(cs), func(i int) bool {
		return cs[i].PaidAt.After(c.PaidAt)
	})

	cs = append(cs, generic.Collection{})
	copy(cs[i+1:], cs[i:])
	cs[i] = c
	m.collections[c.ContractID] = cs

	if c.IdempotencyKey != "" {
		m.idempotency[c.IdempotencyKey] = true
	}
}

func (m *Memory) Load(_ context.Context, contractID generic.ContractID) ([]generic.Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]generic.Collection, len(m.collections[contractID]))
	copy(result, m.collections[contractID])
	return result, nil
}

func (m *Memory) LoadRange(_ context.Context, contractID generic.ContractID, from, to time.Time) ([]generic.Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.Collection
	for _, c := range m.collections[contractID] {
		if !c.PaidAt.Before(from) && !c.PaidAt.After(to) {
			result = append(result, c)
		}
	}
	return result, nil
}

func (m *Memory) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(_ context.Context, fn func(generic.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	view := &txMemoryView{parent: tm.Memory}

	if err := fn(view); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	collections map[generic.ContractID][]generic.Collection
	idempotency map[string]bool
}

func (tm *TxMemory) snapshot() memorySnapshot {
	cs := make(map[generic.ContractID][]generic.Collection, len(tm.collections))
	for k, v := range tm.collections {
		cs[k] = append([]generic.Collection(nil), v...)
	}
	keys := make(map[string]bool, len(tm.idempotency))
	for k, v := range tm.idempotency {
		keys[k] = v
	}
	return memorySnapshot{collections: cs, idempotency: keys}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.collections = s.collections
	tm.idempotency = s.idempotency
}

// txMemoryView operates on the parent while its lock is already held.
type txMemoryView struct {
	parent *Memory
}

func (v *txMemoryView) Append(_ context.Context, c generic.Collection) error {
	if c.IdempotencyKey != "" && v.parent.idempotency[c.IdempotencyKey] {
		return generic.ErrDuplicateIdempotencyKey
	}
	v.parent.appendLocked(c)
	return nil
}

func (v *txMemoryView) AppendBatch(ctx context.Context, cs []generic.Collection) error {
	for _, c := range cs {
		if err := v.Append(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (v *txMemoryView) Load(_ context.Context, contractID generic.ContractID) ([]generic.Collection, error) {
	return append([]generic.Collection(nil), v.parent.collections[contractID]...), nil
}

func (v *txMemoryView) LoadRange(_ context.Context, contractID generic.ContractID, from, to time.Time) ([]generic.Collection, error) {
	var result []generic.Collection
	for _, c := range v.parent.collections[contractID] {
		if !c.PaidAt.Before(from) && !c.PaidAt.After(to) {
			result = append(result, c)
		}
	}
	return result, nil
}

func (v *txMemoryView) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	return v.parent.idempotency[idempotencyKey], nil
}
