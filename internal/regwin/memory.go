package regwin

import (
	"sync"
)

// Access is one recorded register access.
type Access struct {
	Addr  uint64
	Value uint32
	Write bool
}

// Memory is a Mapper backed by plain process memory. It records every
// register access in order, which makes it usable both as a test double and
// as the dry-run backend.
type Memory struct {
	mu     sync.Mutex
	values map[uint64]uint32
	log    []Access
	open   map[uint64]int
	// Fail makes Map return the given error for an address.
	Fail map[uint64]error
	// NoLog disables the access log. The dry-run daemon sets it.
	NoLog bool
}

// NewMemory returns a Memory whose registers start with the given values.
// Registers not listed read as zero.
func NewMemory(initial map[uint64]uint32) *Memory {
	m := &Memory{
		values: make(map[uint64]uint32, len(initial)),
		open:   make(map[uint64]int),
	}
	for a, v := range initial {
		m.values[a] = v
	}
	return m
}

func (m *Memory) Map(addr uint64) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.Fail[addr]; err != nil {
		return nil, err
	}
	m.open[addr]++
	return &memReg{m: m, addr: addr}, nil
}

// Value returns the current content of the register at addr.
func (m *Memory) Value(addr uint64) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[addr]
}

// Set changes a register without recording an access, as a peripheral or
// another GPIO user would.
func (m *Memory) Set(addr uint64, v uint32) {
	m.mu.Lock()
	m.values[addr] = v
	m.mu.Unlock()
}

// Accesses returns a copy of the access log.
func (m *Memory) Accesses() []Access {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Access(nil), m.log...)
}

// Writes returns only the write accesses, in order.
func (m *Memory) Writes() []Access {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Access
	for _, a := range m.log {
		if a.Write {
			out = append(out, a)
		}
	}
	return out
}

// ResetLog clears the access log.
func (m *Memory) ResetLog() {
	m.mu.Lock()
	m.log = nil
	m.mu.Unlock()
}

// Mapped returns how many live handles exist for addr.
func (m *Memory) Mapped(addr uint64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open[addr]
}

// record appends to the log. m.mu must be held.
func (m *Memory) record(a Access) {
	if !m.NoLog {
		m.log = append(m.log, a)
	}
}

type memReg struct {
	m      *Memory
	addr   uint64
	closed bool
}

func (r *memReg) Read() uint32 {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	v := r.m.values[r.addr]
	r.m.record(Access{Addr: r.addr, Value: v})
	return v
}

func (r *memReg) Write(v uint32) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.values[r.addr] = v
	r.m.record(Access{Addr: r.addr, Value: v, Write: true})
}

func (r *memReg) Close() error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if !r.closed {
		r.closed = true
		r.m.open[r.addr]--
	}
	return nil
}
