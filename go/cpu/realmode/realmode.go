package realmode

import (
	"github.com/pkg/errors"

	"github.com/vmmkit/vbios/go/models/cpu"
	"github.com/vmmkit/vbios/go/vcpu"
)

var (
	ErrHalted      = errors.New("cpu halted")
	ErrUnsupported = errors.New("unsupported instruction")
)

// Cpu interprets a small subset of 8086 code against a vcpu.
//
// Every instruction is preceded by a TRAP_SINGLE_STEP on the vcpu, and all
// fetches and stack accesses go through the vcpu memory bus, so attached
// devices see the guest exactly like a single-stepping hypervisor would.
type Cpu struct {
	State cpu.State

	vcpu        *vcpu.VCpu
	exitRequest bool
}

func New(v *vcpu.VCpu) *Cpu {
	c := &Cpu{vcpu: v}
	c.Reset()
	return c
}

func (c *Cpu) Reset() {
	c.State.Reset()
}

// Stop makes Run return after the current instruction. Trap handlers may call it.
func (c *Cpu) Stop() {
	c.exitRequest = true
}

// Run steps until the guest halts, an error happens, Stop is called or max instructions ran.
// A halt no trap handler claimed returns ErrHalted.
func (c *Cpu) Run(max int) (int, error) {
	c.exitRequest = false
	n := 0
	for ; n < max && !c.exitRequest; n++ {
		if err := c.Step(); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (c *Cpu) trap(kind cpu.TrapKind) (bool, error) {
	return c.vcpu.Trap(&cpu.TrapEvent{Kind: kind, Cpu: &c.State})
}

func (c *Cpu) ip() uint16 {
	return uint16(c.State.EIP)
}

func (c *Cpu) setIP(ip uint16) {
	c.State.EIP = uint32(ip)
}

func (c *Cpu) fetch(size int) (uint16, error) {
	st := &c.State
	ip := c.ip()
	var val uint16
	for i := 0; i < size; i++ {
		addr := st.Linear(&st.CS, uint32(ip))
		b, err := c.vcpu.Mem.ReadUint(uint64(addr), 1, cpu.PROT_EXEC)
		if err != nil {
			return 0, errors.Wrapf(err, "fetch at %04x:%04x", st.CS.Sel, ip)
		}
		val |= uint16(b) << (8 * uint(i))
		ip++
	}
	c.setIP(ip)
	return val, nil
}

func (c *Cpu) sp() uint16 {
	return uint16(c.State.ESP)
}

func (c *Cpu) setSP(sp uint16) {
	c.State.ESP = c.State.ESP&^0xffff | uint32(sp)
}

func (c *Cpu) push(val uint16) error {
	st := &c.State
	sp := c.sp() - 2
	addr := st.Linear(&st.SS, uint32(sp))
	if err := c.vcpu.Mem.WriteUint(uint64(addr), 2, cpu.PROT_WRITE, uint64(val)); err != nil {
		return errors.Wrapf(err, "push at %04x:%04x", st.SS.Sel, sp)
	}
	c.setSP(sp)
	return nil
}

func (c *Cpu) pop() (uint16, error) {
	st := &c.State
	sp := c.sp()
	addr := st.Linear(&st.SS, uint32(sp))
	val, err := c.vcpu.Mem.ReadUint(uint64(addr), 2, cpu.PROT_READ)
	if err != nil {
		return 0, errors.Wrapf(err, "pop at %04x:%04x", st.SS.Sel, sp)
	}
	c.setSP(sp + 2)
	return uint16(val), nil
}

func (c *Cpu) setFlags(fl uint16) {
	c.State.EFL = c.State.EFL&^cpu.EFL_X86 | uint32(fl) | cpu.EFL_1
}

// interrupt enters vector n through the real-mode IVT.
func (c *Cpu) interrupt(n uint8) error {
	st := &c.State
	for _, val := range []uint16{uint16(st.EFL), st.CS.Sel, c.ip()} {
		if err := c.push(val); err != nil {
			return err
		}
	}
	st.EFL &^= cpu.EFL_IF | cpu.EFL_TF
	ptr, err := c.vcpu.ReadWord(uint64(n) * 4)
	if err != nil {
		return errors.Wrapf(err, "reading ivt entry %#x", n)
	}
	st.CS.LoadReal(uint16(ptr >> 16))
	c.setIP(uint16(ptr))
	return nil
}

func (c *Cpu) iret() error {
	var frame [3]uint16
	for i := range frame {
		val, err := c.pop()
		if err != nil {
			return err
		}
		frame[i] = val
	}
	c.setIP(frame[0])
	c.State.CS.LoadReal(frame[1])
	c.setFlags(frame[2])
	return nil
}

// Step executes one instruction.
func (c *Cpu) Step() error {
	if _, err := c.trap(cpu.TRAP_SINGLE_STEP); err != nil {
		return err
	}
	st := &c.State
	cs, ip := st.CS.Sel, c.ip()
	op16, err := c.fetch(1)
	if err != nil {
		return err
	}
	op := byte(op16)
	switch {
	case op == OP_NOP:
	case op&^7 == OP_MOV:
		imm, err := c.fetch(2)
		if err != nil {
			return err
		}
		reg := st.Reg16(int(op & 7))
		*reg = *reg&^0xffff | uint32(imm)
	case op == OP_JMPF:
		off, err := c.fetch(2)
		if err != nil {
			return err
		}
		seg, err := c.fetch(2)
		if err != nil {
			return err
		}
		st.CS.LoadReal(seg)
		c.setIP(off)
	case op == OP_JMPS:
		rel, err := c.fetch(1)
		if err != nil {
			return err
		}
		c.setIP(c.ip() + uint16(int8(rel)))
	case op == OP_INT:
		n, err := c.fetch(1)
		if err != nil {
			return err
		}
		return c.interrupt(uint8(n))
	case op == OP_INT3:
		return c.interrupt(3)
	case op == OP_IRET:
		return c.iret()
	case op == OP_PUSHF:
		return c.push(uint16(st.EFL))
	case op == OP_POPF:
		fl, err := c.pop()
		if err != nil {
			return err
		}
		c.setFlags(fl)
	case op == OP_CLC:
		st.EFL &^= cpu.EFL_CF
	case op == OP_STC:
		st.EFL |= cpu.EFL_CF
	case op == OP_CLI:
		st.EFL &^= cpu.EFL_IF
	case op == OP_STI:
		st.EFL |= cpu.EFL_IF
	case op == OP_HLT:
		claimed, err := c.trap(cpu.TRAP_HLT)
		if err != nil {
			return err
		}
		if !claimed {
			return errors.Wrapf(ErrHalted, "at %04x:%04x", cs, ip)
		}
	default:
		return errors.Wrapf(ErrUnsupported, "%s (%#02x) at %04x:%04x", opName(op), op, cs, ip)
	}
	return nil
}
