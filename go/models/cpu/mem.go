package cpu

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Mem is the physical memory bus of a vcpu. Reads are offered word by word to
// the read hooks first, so devices can shadow ranges of the backing store.
type Mem struct {
	bits uint
	// methods return an error for addresses that do not fit inside mask
	// calculated by NewMem using ^uint64(0) >> (64 - bits)
	mask uint64
	// Mem.hooks is set when passing *Mem to NewHooks()
	hooks *Hooks
	store Backing

	order binary.ByteOrder
}

func NewMem(bits uint, order binary.ByteOrder) *Mem {
	return NewMemBacked(bits, order, &MemSim{})
}

func NewMemBacked(bits uint, order binary.ByteOrder, store Backing) *Mem {
	return &Mem{
		bits:  bits,
		mask:  ^uint64(0) >> (64 - bits),
		store: store,
		order: order,
	}
}

func (m *Mem) Backing() Backing {
	return m.store
}

func (m *Mem) inRange(addr, size uint64) bool {
	return size == 0 || (addr+size-1)&m.mask == addr+size-1
}

func (m *Mem) sim() (*MemSim, error) {
	if sim, ok := m.store.(*MemSim); ok {
		return sim, nil
	}
	return nil, errors.Errorf("backing store %T does not support mapping", m.store)
}

func (m *Mem) MemMapProt(addr, size uint64, prot int) error {
	if !m.inRange(addr, size) {
		return errors.New("region outside memory range")
	}
	sim, err := m.sim()
	if err != nil {
		return err
	}
	sim.Map(addr, size, prot, "")
	return nil
}

func (m *Mem) MemUnmap(addr, size uint64) error {
	sim, err := m.sim()
	if err != nil {
		return err
	}
	if mapped, _ := sim.RangeValid(addr, size, 0); !mapped {
		return errors.New("range not mapped")
	}
	sim.Unmap(addr, size)
	return nil
}

// ReadProt reads through the hooks, falling back to the backing store with the
// given protection check for every word no device claimed.
func (m *Mem) ReadProt(addr uint64, p []byte, prot int) error {
	if !m.inRange(addr, uint64(len(p))) {
		return &MemError{Addr: addr, Size: len(p), Enum: MEM_READ_UNMAPPED}
	}
	if m.hooks == nil || !m.hooks.hasRead() {
		return m.store.Read(addr, p, prot)
	}
	var word [4]byte
	for len(p) > 0 {
		aligned := addr &^ 3
		off := addr - aligned
		n := 4 - off
		if n > uint64(len(p)) {
			n = uint64(len(p))
		}
		var val uint32
		if m.hooks.OnRead(aligned, &val) {
			m.order.PutUint32(word[:], val)
			copy(p[:n], word[off:])
		} else if err := m.store.Read(addr, p[:n], prot); err != nil {
			return err
		}
		addr, p = addr+n, p[n:]
	}
	return nil
}

func (m *Mem) MemReadInto(p []byte, addr uint64) error {
	return m.ReadProt(addr, p, 0)
}

func (m *Mem) MemRead(addr, size uint64) ([]byte, error) {
	p := make([]byte, size)
	if err := m.MemReadInto(p, addr); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *Mem) MemWrite(addr uint64, p []byte) error {
	if !m.inRange(addr, uint64(len(p))) {
		return &MemError{Addr: addr, Size: len(p), Enum: MEM_WRITE_UNMAPPED}
	}
	return m.store.Write(addr, p, 0)
}

func (m *Mem) ReadUint(addr uint64, size, prot int) (uint64, error) {
	var buf [8]byte
	if size > 8 {
		return 0, errors.Errorf("ReadUint size too large: %d > 8", size)
	}
	if err := m.ReadProt(addr, buf[:size], prot); err != nil {
		return 0, err
	}
	return unpackUint(m.order, size, buf[:size])
}

func (m *Mem) WriteUint(addr uint64, size, prot int, val uint64) error {
	var buf [8]byte
	if err := packUint(m.order, size, buf[:], val); err != nil {
		return err
	}
	if !m.inRange(addr, uint64(size)) {
		return &MemError{Addr: addr, Size: size, Enum: MEM_WRITE_UNMAPPED}
	}
	return m.store.Write(addr, buf[:size], prot)
}

func packUint(order binary.ByteOrder, size int, buf []byte, n uint64) error {
	switch size {
	case 8:
		order.PutUint64(buf, n)
	case 4:
		order.PutUint32(buf, uint32(n))
	case 2:
		order.PutUint16(buf, uint16(n))
	case 1:
		buf[0] = byte(n)
	default:
		return errors.Errorf("unsupported uint size: %d", size)
	}
	return nil
}

func unpackUint(order binary.ByteOrder, size int, buf []byte) (uint64, error) {
	switch size {
	case 8:
		return order.Uint64(buf), nil
	case 4:
		return uint64(order.Uint32(buf)), nil
	case 2:
		return uint64(order.Uint16(buf)), nil
	case 1:
		return uint64(buf[0]), nil
	default:
		return 0, errors.Errorf("unsupported uint size: %d", size)
	}
}
