package cpu

import (
	"bytes"
	"encoding/binary"
	"testing"
)

var asdf = []byte("asdf")

func TestMem8(t *testing.T) {
	mem := NewMem(8, binary.LittleEndian)
	if err := mem.MemMapProt(0x10, 0x10, 0); err != nil {
		t.Fatal("failed to map memory:", err)
	}
	if err := mem.MemMapProt(0x0, 0x1000, 0); err == nil {
		t.Fatal("mapped memory outside range")
	}
	if err := mem.MemWrite(0x1000, asdf); err == nil {
		t.Fatal("write succeeded above mapped memory")
	}
}

func TestMemUint(t *testing.T) {
	rawtest := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	ltable := map[int]uint64{
		1: 0x1,
		2: 0x0201,
		4: 0x04030201,
		8: 0x0807060504030201,
	}
	btable := map[int]uint64{
		1: 0x1,
		2: 0x0102,
		4: 0x01020304,
		8: 0x0102030405060708,
	}

	meml := NewMem(32, binary.LittleEndian)
	memb := NewMem(32, binary.BigEndian)

	if err := meml.MemMapProt(0x1000, 0x1000, PROT_READ|PROT_WRITE); err != nil {
		t.Fatal("failed to map memory:", err)
	}
	if err := memb.MemMapProt(0x1000, 0x1000, PROT_READ|PROT_WRITE); err != nil {
		t.Fatal("failed to map memory:", err)
	}
	if err := meml.MemWrite(0x1000, rawtest); err != nil {
		t.Error("failed to write memory:", err)
	}
	if err := memb.MemWrite(0x1000, rawtest); err != nil {
		t.Error("failed to write memory:", err)
	}
	for size, val := range ltable {
		if n, err := meml.ReadUint(0x1000, size, PROT_READ); err != nil {
			t.Error("failed to read uint:", err)
		} else if n != val {
			t.Error("inconsistent uint value:", n, val)
		}
	}
	for size, val := range btable {
		if n, err := memb.ReadUint(0x1000, size, PROT_READ); err != nil {
			t.Error("failed to read uint:", err)
		} else if n != val {
			t.Error("inconsistent uint value:", n, val)
		}
	}
	for size, val := range ltable {
		if err := meml.WriteUint(0x1000, size, PROT_WRITE, val); err != nil {
			t.Error("failed to write uint:", err)
		}
		if n, err := meml.ReadUint(0x1000, size, PROT_READ); err != nil {
			t.Error("failed to read uint:", err)
		} else if n != val {
			t.Error("inconsistent uint value:", n, val)
		}
	}
	if _, err := meml.ReadUint(0x1000, 3, 0); err == nil {
		t.Error("odd uint size accepted")
	}
}

// a read hook shadowing 0x2000-0x200f with 0x11223344, 0x55667788, ...
func shadow(addr uint64, val *uint32) bool {
	if addr < 0x2000 || addr >= 0x2010 {
		return false
	}
	vals := []uint32{0x11223344, 0x55667788, 0x99aabbcc, 0xddeeff00}
	*val = vals[(addr>>2)&3]
	return true
}

func TestMemReadHook(t *testing.T) {
	mem, h := makeHooks()
	if err := mem.MemMapProt(0x1000, 0x1000, PROT_ALL); err != nil {
		t.Fatal(err)
	}
	if _, err := h.HookAdd(HOOK_MEM_READ, shadow); err != nil {
		t.Fatal(err)
	}
	// unmapped in the backing store, served by the hook
	if n, err := mem.ReadUint(0x2004, 4, PROT_READ); err != nil {
		t.Fatal(err)
	} else if n != 0x55667788 {
		t.Fatalf("bad shadowed word: %#x", n)
	}
	// unaligned reads are assembled from the claimed words
	if n, err := mem.ReadUint(0x2003, 2, PROT_READ); err != nil {
		t.Fatal(err)
	} else if n != 0x8811 {
		t.Fatalf("bad unaligned shadowed read: %#x", n)
	}
	if n, err := mem.ReadUint(0x200f, 1, PROT_EXEC); err != nil {
		t.Fatal(err)
	} else if n != 0xdd {
		t.Fatalf("bad shadowed byte: %#x", n)
	}
	// outside the hook window the backing store answers
	if err := mem.MemWrite(0x1ffc, asdf); err != nil {
		t.Fatal(err)
	}
	if p, err := mem.MemRead(0x1ffc, 4); err != nil {
		t.Fatal(err)
	} else if !bytes.Equal(p, asdf) {
		t.Fatalf("bad backing read: %q", p)
	}
	// reads straddling the backing store and the hook window
	if p, err := mem.MemRead(0x1ffe, 4); err != nil {
		t.Fatal(err)
	} else if !bytes.Equal(p, []byte{'d', 'f', 0x44, 0x33}) {
		t.Fatalf("bad straddling read: %x", p)
	}
	// writes are not shadowed
	if err := mem.MemWrite(0x2000, asdf); err == nil {
		t.Fatal("write to unmapped shadow window succeeded")
	}
	if _, err := mem.ReadUint(0x2010, 4, PROT_READ); err == nil {
		t.Fatal("read past the shadow window succeeded")
	}
}

type nullStore struct{}

func (nullStore) Read(addr uint64, p []byte, prot int) error  { return nil }
func (nullStore) Write(addr uint64, p []byte, prot int) error { return nil }

func TestMemBacked(t *testing.T) {
	mem := NewMemBacked(32, binary.LittleEndian, nullStore{})
	if err := mem.MemMapProt(0x1000, 0x1000, PROT_ALL); err == nil {
		t.Error("mapped memory on a store without mapping support")
	}
	if err := mem.WriteUint(0x1000, 4, 0, 1); err != nil {
		t.Error(err)
	}
	if err := mem.WriteUint(0xfffffffe, 4, 0, 1); err == nil {
		t.Error("write past the address mask succeeded")
	}
}
