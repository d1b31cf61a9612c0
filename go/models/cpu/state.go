package cpu

import (
	"fmt"
)

type Segment struct {
	Sel   uint16
	Ar    uint16
	Limit uint32
	Base  uint64
}

// LoadReal loads a selector the way real and virtual-8086 mode do: the base
// is the selector shifted by four and the limit stays at 64k.
func (s *Segment) LoadReal(sel uint16) {
	s.Sel = sel
	s.Base = uint64(sel) << 4
	s.Limit = 0xffff
}

func (s Segment) String() string {
	return fmt.Sprintf("%04x[%08x]", s.Sel, s.Base)
}

// State is the register snapshot an executor hands to its devices.
// It is a plain value: copying it copies the whole CPU state.
type State struct {
	EAX, ECX, EDX, EBX uint32
	ESP, EBP, ESI, EDI uint32

	EIP uint32
	EFL uint32
	CR0 uint32

	ES, CS, SS, DS, FS, GS Segment
}

// Reset puts the state at the architectural power-on values.
// The code segment base sits 16 bytes below 4G, so the first fetch happens at 0xfffffff0.
func (s *State) Reset() {
	*s = State{EIP: 0xfff0, EFL: EFL_1}
	for _, seg := range []*Segment{&s.ES, &s.SS, &s.DS, &s.FS, &s.GS} {
		seg.LoadReal(0)
	}
	s.CS = Segment{Sel: 0xf000, Base: 0xffff0000, Limit: 0xffff}
}

func (s *State) PM() bool  { return s.CR0&CR0_PE != 0 }
func (s *State) V86() bool { return s.EFL&EFL_VM != 0 }

// Linear is seg.Base + off truncated to 32 bits.
func (s *State) Linear(seg *Segment, off uint32) uint32 {
	return uint32(seg.Base) + off
}

func (s *State) AH() uint8 { return uint8(s.EAX >> 8) }
func (s *State) AL() uint8 { return uint8(s.EAX) }

func (s *State) SetAH(v uint8) { s.EAX = s.EAX&^0xff00 | uint32(v)<<8 }
func (s *State) SetAL(v uint8) { s.EAX = s.EAX&^0xff | uint32(v) }

// Reg16 returns a pointer to the 32-bit register selected by a 3-bit 8086 register number.
func (s *State) Reg16(n int) *uint32 {
	switch n & 7 {
	case 0:
		return &s.EAX
	case 1:
		return &s.ECX
	case 2:
		return &s.EDX
	case 3:
		return &s.EBX
	case 4:
		return &s.ESP
	case 5:
		return &s.EBP
	case 6:
		return &s.ESI
	default:
		return &s.EDI
	}
}

type RegVal struct {
	Name string
	Val  uint64
}

// RegDump lists registers in a stable order for printing and diffing.
func (s *State) RegDump() []RegVal {
	return []RegVal{
		{"eax", uint64(s.EAX)}, {"ecx", uint64(s.ECX)}, {"edx", uint64(s.EDX)}, {"ebx", uint64(s.EBX)},
		{"esp", uint64(s.ESP)}, {"ebp", uint64(s.EBP)}, {"esi", uint64(s.ESI)}, {"edi", uint64(s.EDI)},
		{"eip", uint64(s.EIP)}, {"efl", uint64(s.EFL)}, {"cr0", uint64(s.CR0)},
		{"es", uint64(s.ES.Sel)}, {"cs", uint64(s.CS.Sel)}, {"ss", uint64(s.SS.Sel)},
		{"ds", uint64(s.DS.Sel)}, {"fs", uint64(s.FS.Sel)}, {"gs", uint64(s.GS.Sel)},
	}
}
