package jimulator

import (
	"fmt"
	"sort"
	"sync"
)

// MaxTraps is the number of usable trap slots (0-254). Slot 255 is never
// handed out.
const MaxTraps = 255

// Trap is one installed trap.
type Trap struct {
	Address uint32
	Slot    uint8
}

// TrapTable maps trap addresses to simulator slots.
// The address map and the slot bitmap only change together, under mu.
type TrapTable struct {
	mu    sync.Mutex
	slots map[uint32]uint8
	used  [MaxTraps]bool
}

// NewTrapTable creates an empty trap table.
func NewTrapTable() *TrapTable {
	return &TrapTable{
		slots: make(map[uint32]uint8),
	}
}

// Define allocates the lowest free slot for addr and calls install with it.
// The slot is recorded only if install succeeds. The table stays locked
// while install runs, so concurrent Defines never share a slot.
//
// Defining an address that already has a trap returns its existing slot
// without calling install.
func (t *TrapTable) Define(addr uint32, install func(slot uint8) error) (uint8, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if slot, ok := t.slots[addr]; ok {
		return slot, nil
	}

	slot, ok := t.lowestFree()
	if !ok {
		return 0, ErrTooManyTraps
	}

	if err := install(slot); err != nil {
		return 0, err
	}

	t.slots[addr] = slot
	t.used[slot] = true

	return slot, nil
}

// Remove frees the slot for addr after uninstall succeeds. If uninstall
// fails the trap stays recorded.
func (t *TrapTable) Remove(addr uint32, uninstall func(slot uint8) error) (uint8, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	slot, ok := t.slots[addr]
	if !ok {
		return 0, fmt.Errorf("0x%08x: %w", addr, ErrNoTrapForAddress)
	}

	if err := uninstall(slot); err != nil {
		return 0, err
	}

	delete(t.slots, addr)
	t.used[slot] = false

	return slot, nil
}

// Lookup returns the slot for addr.
func (t *TrapTable) Lookup(addr uint32) (uint8, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	slot, ok := t.slots[addr]
	return slot, ok
}

// Traps returns the installed traps ordered by slot.
func (t *TrapTable) Traps() []Trap {
	t.mu.Lock()
	defer t.mu.Unlock()

	traps := make([]Trap, 0, len(t.slots))
	for addr, slot := range t.slots {
		traps = append(traps, Trap{Address: addr, Slot: slot})
	}
	sort.Slice(traps, func(i, j int) bool { return traps[i].Slot < traps[j].Slot })

	return traps
}

// Len returns the number of installed traps.
func (t *TrapTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}

// Bitmap returns a copy of the slot usage bitmap.
func (t *TrapTable) Bitmap() [MaxTraps]bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.used
}

// Clear forgets every trap.
func (t *TrapTable) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	clear(t.slots)
	t.used = [MaxTraps]bool{}
}

func (t *TrapTable) lowestFree() (uint8, bool) {
	for i, inUse := range t.used {
		if !inUse {
			return uint8(i), true
		}
	}
	return 0, false
}
