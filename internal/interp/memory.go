package interp

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"

	"calyx/internal/errors"
	"calyx/internal/ir"
)

const (
	// address 0 stays invalid so null pointer accesses fail
	memoryBase = 0x1000
	// functions live outside of data memory; their addresses are derived
	// from their names so that they do not depend on layout
	functionBase = 0x7000_0000_0000
	alignment    = 8
)

// memory is a flat little-endian byte array holding the globals followed
// by the stack
type memory struct {
	bytes []byte
	// globalsEnd separates global storage from the stack
	globalsEnd uint64
}

func align(n uint64) uint64 {
	return (n + alignment - 1) &^ (alignment - 1)
}

// alloc reserves zeroed storage at the end of memory and returns its address
func (m *memory) alloc(size uint64) uint64 {
	addr := memoryBase + uint64(len(m.bytes))
	m.bytes = append(m.bytes, make([]byte, align(max(size, 1)))...)
	return addr
}

// mark and release implement stack frames
func (m *memory) mark() int {
	return len(m.bytes)
}

func (m *memory) release(mark int) {
	m.bytes = m.bytes[:mark]
}

func (m *memory) isGlobal(addr uint64) bool {
	return addr >= memoryBase && addr < m.globalsEnd
}

func (m *memory) slice(addr, n uint64) ([]byte, error) {
	if addr < memoryBase || addr-memoryBase+n > uint64(len(m.bytes)) {
		return nil, fmt.Errorf("access of %d bytes at invalid address %#x", n, addr)
	}
	start := addr - memoryBase
	return m.bytes[start : start+n], nil
}

func (m *memory) load(addr uint64, t ir.Type) (ir.Scalar, error) {
	if t == ir.Struct {
		return ir.Scalar{}, errors.Unimplemented("struct loads")
	}
	b, err := m.slice(addr, t.Size())
	if err != nil {
		return ir.Scalar{}, err
	}
	switch t {
	case ir.Float:
		return ir.FloatScalar(t, float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))), nil
	case ir.Double:
		return ir.FloatScalar(t, math.Float64frombits(binary.LittleEndian.Uint64(b))), nil
	}
	var raw uint64
	for i := len(b) - 1; i >= 0; i-- {
		raw = raw<<8 | uint64(b[i])
	}
	return ir.IntScalar(t, int64(raw)), nil
}

func (m *memory) store(addr uint64, t ir.Type, s ir.Scalar) error {
	if t == ir.Struct {
		return errors.Unimplemented("struct stores")
	}
	b, err := m.slice(addr, t.Size())
	if err != nil {
		return err
	}
	s = ir.Convert(s, t)
	switch t {
	case ir.Float:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(s.Float)))
	case ir.Double:
		binary.LittleEndian.PutUint64(b, math.Float64bits(s.Float))
	default:
		raw := s.Uint()
		for i := range b {
			b[i] = byte(raw)
			raw >>= 8
		}
	}
	return nil
}

// functionAddress returns the address a function symbol is called through
func functionAddress(symbol string) uint64 {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return functionBase + uint64(h.Sum32())*alignment
}
