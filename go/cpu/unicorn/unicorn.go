package unicorn

import (
	"github.com/pkg/errors"
	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

	"github.com/vmmkit/vbios/go/models/cpu"
	"github.com/vmmkit/vbios/go/vcpu"
)

var ErrHalted = errors.New("cpu halted")

var _ cpu.Backing = &Cpu{}

const opHlt = 0xf4

// Cpu runs a vcpu on a 16-bit x86 unicorn.
//
// Unicorn memory is the vcpu's backing store: pass the Cpu to vcpu.New. Every
// instruction raises TRAP_SINGLE_STEP on the vcpu and the registers a handler
// changed are written back before the instruction executes. Segment bases are
// derived from selectors, so only real and virtual-8086 mode code is supported.
type Cpu struct {
	uc.Unicorn
	vcpu *vcpu.VCpu
	err  error
}

func New() (*Cpu, error) {
	u, err := uc.NewUnicorn(uc.ARCH_X86, uc.MODE_16)
	if err != nil {
		return nil, errors.Wrap(err, "NewUnicorn() failed")
	}
	return &Cpu{Unicorn: u}, nil
}

func (c *Cpu) Read(addr uint64, p []byte, prot int) error {
	return c.MemReadInto(p, addr)
}

func (c *Cpu) Write(addr uint64, p []byte, prot int) error {
	return c.MemWrite(addr, p)
}

// Map maps guest memory. Unicorn needs addr and size aligned to 4k.
func (c *Cpu) Map(addr, size uint64) error {
	return errors.Wrapf(c.MemMapProt(addr, size, uc.PROT_ALL), "mapping %#x-%#x", addr, addr+size)
}

// Attach raises the vcpu traps from a code hook.
func (c *Cpu) Attach(v *vcpu.VCpu) error {
	c.vcpu = v
	_, err := c.HookAdd(uc.HOOK_CODE, func(_ uc.Unicorn, addr uint64, size uint32) {
		if err := c.step(addr); err != nil {
			c.err = err
			c.Stop()
		}
	}, 1, 0)
	return errors.Wrap(err, "adding code hook")
}

// MirrorROM copies both aliases of the reset area, as the vcpu sees them, into unicorn memory.
// Unicorn fetches from its own memory and never consults the vcpu read hooks.
func (c *Cpu) MirrorROM(v *vcpu.VCpu) error {
	for _, addr := range []uint64{0xfffffff0, 0xffff0} {
		rom, err := v.Mem.MemRead(addr, 16)
		if err != nil {
			return errors.Wrapf(err, "reading rom at %#x", addr)
		}
		page := addr &^ 0xfff
		if _, err := c.MemRead(page, 1); err != nil {
			if err := c.Map(page, 0x1000); err != nil {
				return err
			}
		}
		if err := c.MemWrite(addr, rom); err != nil {
			return errors.Wrapf(err, "writing rom at %#x", addr)
		}
	}
	return nil
}

// Run starts at offset begin of the current code segment and returns the first trap error.
func (c *Cpu) Run(begin, until uint64) error {
	c.err = nil
	if err := c.Start(begin, until); err != nil {
		return errors.Wrap(err, "unicorn")
	}
	return c.err
}

func (c *Cpu) step(addr uint64) error {
	st, err := c.load()
	if err != nil {
		return err
	}
	old := st
	if _, err := c.vcpu.Trap(&cpu.TrapEvent{Kind: cpu.TRAP_SINGLE_STEP, Cpu: &st}); err != nil {
		return err
	}
	if st != old {
		// a handler moved the cpu, the instruction at addr is not the one to run
		return c.store(&st, &old)
	}
	op, err := c.MemRead(addr, 1)
	if err != nil {
		return errors.Wrapf(err, "fetch at %#x", addr)
	}
	if op[0] != opHlt {
		return nil
	}
	claimed, err := c.vcpu.Trap(&cpu.TrapEvent{Kind: cpu.TRAP_HLT, Cpu: &st})
	if err != nil {
		return err
	}
	if !claimed {
		return errors.Wrapf(ErrHalted, "at %#x", addr)
	}
	st.EIP = (st.EIP + 1) & 0xffff
	return c.store(&st, &old)
}

type regMap struct {
	enum int
	reg  func(st *cpu.State) *uint32
}

var gprs = []regMap{
	{uc.X86_REG_EAX, func(st *cpu.State) *uint32 { return &st.EAX }},
	{uc.X86_REG_ECX, func(st *cpu.State) *uint32 { return &st.ECX }},
	{uc.X86_REG_EDX, func(st *cpu.State) *uint32 { return &st.EDX }},
	{uc.X86_REG_EBX, func(st *cpu.State) *uint32 { return &st.EBX }},
	{uc.X86_REG_ESP, func(st *cpu.State) *uint32 { return &st.ESP }},
	{uc.X86_REG_EBP, func(st *cpu.State) *uint32 { return &st.EBP }},
	{uc.X86_REG_ESI, func(st *cpu.State) *uint32 { return &st.ESI }},
	{uc.X86_REG_EDI, func(st *cpu.State) *uint32 { return &st.EDI }},
	{uc.X86_REG_EIP, func(st *cpu.State) *uint32 { return &st.EIP }},
	{uc.X86_REG_EFLAGS, func(st *cpu.State) *uint32 { return &st.EFL }},
	{uc.X86_REG_CR0, func(st *cpu.State) *uint32 { return &st.CR0 }},
}

type segMap struct {
	enum int
	seg  func(st *cpu.State) *cpu.Segment
}

var segs = []segMap{
	{uc.X86_REG_ES, func(st *cpu.State) *cpu.Segment { return &st.ES }},
	{uc.X86_REG_CS, func(st *cpu.State) *cpu.Segment { return &st.CS }},
	{uc.X86_REG_SS, func(st *cpu.State) *cpu.Segment { return &st.SS }},
	{uc.X86_REG_DS, func(st *cpu.State) *cpu.Segment { return &st.DS }},
	{uc.X86_REG_FS, func(st *cpu.State) *cpu.Segment { return &st.FS }},
	{uc.X86_REG_GS, func(st *cpu.State) *cpu.Segment { return &st.GS }},
}

func (c *Cpu) load() (cpu.State, error) {
	var st cpu.State
	for _, r := range gprs {
		val, err := c.RegRead(r.enum)
		if err != nil {
			return st, errors.Wrapf(err, "reading register %d", r.enum)
		}
		*r.reg(&st) = uint32(val)
	}
	for _, s := range segs {
		val, err := c.RegRead(s.enum)
		if err != nil {
			return st, errors.Wrapf(err, "reading segment %d", s.enum)
		}
		s.seg(&st).LoadReal(uint16(val))
	}
	return st, nil
}

// store writes the registers that differ between st and old.
func (c *Cpu) store(st, old *cpu.State) error {
	for _, s := range segs {
		if sel := s.seg(st).Sel; sel != s.seg(old).Sel {
			if err := c.RegWrite(s.enum, uint64(sel)); err != nil {
				return errors.Wrapf(err, "writing segment %d", s.enum)
			}
		}
	}
	for _, r := range gprs {
		if val := *r.reg(st); val != *r.reg(old) {
			if err := c.RegWrite(r.enum, uint64(val)); err != nil {
				return errors.Wrapf(err, "writing register %d", r.enum)
			}
		}
	}
	return nil
}
