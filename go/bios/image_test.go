package bios

import (
	"testing"
)

func TestImage(t *testing.T) {
	img := NewImage()
	want := [16]byte{
		opJmpFar, 0x00, 0x01, 0x00, 0xf0,
		opNop, opNop, opNop, opNop, opNop, opNop, opNop, opNop, opNop, opNop,
		opIret,
	}
	if *img != Image(want) {
		t.Fatalf("bad image: % x", img[:])
	}
	for off, val := range map[int]uint32{0: 0x000100ea, 5: 0x909090f0, 8: 0x90909090, 15: 0xcf909090} {
		if w := img.Word(off); w != val {
			t.Errorf("Word(%d) = %#x, want %#x", off, w, val)
		}
	}
}

func TestShadowOffset(t *testing.T) {
	tests := []struct {
		phys uint64
		off  int
		ok   bool
	}{
		{0xfffffff0, 0, true},
		{0xfffffff7, 4, true},
		{0xffffffff, 12, true},
		{0xffff0, 0, true},
		{0xffffb, 8, true},
		{0xfffef, 0, false},
		{0x100000, 0, false},
		{0xffffffef, 0, false},
	}
	for _, test := range tests {
		off, ok := shadowOffset(test.phys)
		if off != test.off || ok != test.ok {
			t.Errorf("shadowOffset(%#x) = %d, %v", test.phys, off, ok)
		}
	}
}

func TestFarPtr(t *testing.T) {
	if p := farPtr(BiosBase>>4, 0x42); p != 0xf0000042 {
		t.Fatalf("farPtr = %#x", p)
	}
}
