// Package lockslot talks to the external lock-slot manager: a small
// integer-indexed array of access-code assignments that this process may
// read-modify-write but that can also be edited out-of-band between
// refresh cycles.
package lockslot

import (
	"context"
	"sync"
	"time"
)

// Slot is one external access-code assignment.
type Slot struct {
	Name  string    `json:"name"`
	Code  string    `json:"code"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Empty reports whether the slot holds no assignment.
func (s Slot) Empty() bool {
	return s.Name == "" && s.Code == ""
}

// Manager is the narrow interface to the external slot store.
type Manager interface {
	ReadSlot(ctx context.Context, index int) (Slot, error)
	WriteSlot(ctx context.Context, index int, slot Slot) error
	ClearSlot(ctx context.Context, index int) error
}

// MemoryManager is an in-process Manager. It backs the standalone
// daemon's slot store and the test suite; a host integration would
// substitute its own Manager implementation.
type MemoryManager struct {
	mu    sync.RWMutex
	slots map[int]Slot
}

// NewMemoryManager creates an empty in-memory slot store.
func NewMemoryManager() *MemoryManager {
	return &MemoryManager{slots: make(map[int]Slot)}
}

func (m *MemoryManager) ReadSlot(_ context.Context, index int) (Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.slots[index], nil
}

func (m *MemoryManager) WriteSlot(_ context.Context, index int, slot Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[index] = slot
	return nil
}

func (m *MemoryManager) ClearSlot(_ context.Context, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, index)
	return nil
}
