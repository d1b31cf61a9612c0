package bios

import (
	"fmt"
	"sync/atomic"

	"github.com/mgutz/ansi"
	"github.com/pkg/errors"

	"github.com/vmmkit/vbios/go/models"
	"github.com/vmmkit/vbios/go/models/cpu"
	"github.com/vmmkit/vbios/go/models/trace"
	"github.com/vmmkit/vbios/go/vcpu"
)

// ErrNoResetHandler means the bus has nobody to bring up the machine. The guest cannot boot.
var ErrNoResetHandler = errors.New("no bios handler claimed the reset vector")

// Result is the outcome of one trap. Cpu is the state the executor should continue with.
type Result struct {
	Claimed bool
	Cpu     cpu.State
	MtrOut  cpu.Mtd
}

// VBios bridges a vcpu to the firmware services on a Bus.
//
// Firmware calls land in the first MaxVector bytes of the BIOS segment. When the
// executor single-steps into that window the call is handed to the bus, and the
// CPU is sent to the IRET at the end of the synthetic reset area, so the
// instruction emulator completes the call like a real interrupt return.
type VBios struct {
	vcpu  *vcpu.VCpu
	bus   *Bus
	image *Image
	trace *trace.TraceWriter

	status     models.StatusDiff
	intercepts uint64
}

// Attach creates a VBios and registers it for traps and memory reads on v.
func Attach(v *vcpu.VCpu, bus *Bus) (*VBios, error) {
	b := &VBios{
		vcpu:   v,
		bus:    bus,
		image:  NewImage(),
		status: models.StatusDiff{Color: v.Config.Color},
	}
	if err := v.AddTrap(b.receive); err != nil {
		return nil, errors.Wrap(err, "registering trap handler")
	}
	if err := v.AddMemRead(b.ReadWord); err != nil {
		return nil, errors.Wrap(err, "registering memory handler")
	}
	return b, nil
}

// TraceTo records every intercepted call to tw.
func (b *VBios) TraceTo(tw *trace.TraceWriter) {
	b.trace = tw
}

func (b *VBios) Image() *Image {
	return b.image
}

// Intercepts counts the traps that fell into the firmware window.
func (b *VBios) Intercepts() uint64 {
	return atomic.LoadUint64(&b.intercepts)
}

func (b *VBios) receive(ev *cpu.TrapEvent) (bool, error) {
	if ev.Cpu == nil {
		return false, nil
	}
	res, err := b.Step(ev.Kind, *ev.Cpu)
	if err != nil {
		return false, err
	}
	*ev.Cpu = res.Cpu
	ev.MtrOut |= res.MtrOut
	return res.Claimed, nil
}

// Step handles one trap against st and returns the state to continue with.
//
// An unclaimed call still comes back redirected to the IRET trampoline.
func (b *VBios) Step(kind cpu.TrapKind, st cpu.State) (Result, error) {
	res := Result{Cpu: st}
	if kind != cpu.TRAP_SINGLE_STEP || st.PM() && !st.V86() {
		return res, nil
	}
	linear := st.Linear(&st.CS, st.EIP)
	if !inRange(uint64(linear), BiosBase, MaxVector) {
		return res, nil
	}
	atomic.AddUint64(&b.intercepts, 1)

	vector := Vector(linear - BiosBase)
	if vector == ResetVector {
		if err := b.initIVT(); err != nil {
			return res, err
		}
	}
	caller := fmt.Sprintf("%04x:%04x", st.CS.Sel, st.EIP)
	redirect(&res.Cpu)

	msg := &Message{Vcpu: b.vcpu, Cpu: &res.Cpu, Vector: vector}
	if b.vcpu.Config.Verbose {
		b.status.Mark(&res.Cpu)
	}
	var claimed bool
	if vector == ResetVector {
		claimed = b.bus.SendFifo(msg)
	} else {
		claimed = b.bus.Send(msg)
	}
	b.report(msg, caller, claimed)
	if !claimed {
		if vector == ResetVector {
			return res, errors.Wrapf(ErrNoResetHandler, "%s", b.vcpu)
		}
		return res, nil
	}

	// the handler's flags have to reach the frame IRET pops
	if err := b.patchFlags(&res.Cpu); err != nil {
		return res, err
	}
	res.MtrOut = msg.MtrOut
	res.Claimed = true
	return res, nil
}

// initIVT points every real-mode interrupt at its own offset in the BIOS segment.
func (b *VBios) initIVT() error {
	for i := 0; i < 256; i++ {
		if err := b.vcpu.WriteWord(uint64(i*4), farPtr(BiosBase>>4, uint16(i))); err != nil {
			return errors.Wrap(err, "initializing real-mode ivt")
		}
	}
	return nil
}

// redirect sends the CPU to the last byte of the reset area.
// Offset 0xffff of segment 0xf000 is BiosBase + 0xfff0 + 15, the IRET of the Image.
func redirect(st *cpu.State) {
	st.CS.Sel = BiosBase >> 4
	st.CS.Base = BiosBase
	st.EIP = 0xffff
}

func (b *VBios) patchFlags(st *cpu.State) error {
	addr := uint64(st.Linear(&st.SS, st.ESP+4))
	flags, err := b.vcpu.ReadWord(addr)
	if err != nil {
		return errors.Wrapf(err, "reading iret frame at %#x", addr)
	}
	flags = flags&^0xffff | st.EFL&0xffff
	return errors.Wrapf(b.vcpu.WriteWord(addr, flags), "writing iret frame at %#x", addr)
}

// ReadWord serves reads of the two aliases of the reset area from the Image.
func (b *VBios) ReadWord(phys uint64, val *uint32) bool {
	off, ok := shadowOffset(phys)
	if !ok {
		return false
	}
	*val = b.image.Word(off)
	return true
}

func (b *VBios) report(msg *Message, caller string, claimed bool) {
	if b.trace != nil {
		rec := &trace.Record{
			Vcpu:    uint32(b.vcpu.ID),
			Vector:  uint16(msg.Vector),
			Claimed: claimed,
			EAX:     msg.Cpu.EAX,
			EFL:     msg.Cpu.EFL,
			Mtd:     uint32(msg.MtrOut),
		}
		if err := b.trace.Pack(rec); err != nil {
			b.vcpu.Logf("trace: %v", err)
		}
	}
	if !b.vcpu.Config.Verbose {
		return
	}
	outcome := "unclaimed"
	if claimed {
		outcome = "claimed"
	}
	if b.vcpu.Config.Color {
		color := "red"
		if claimed {
			color = "green"
		}
		outcome = ansi.Color(outcome, color)
	}
	b.vcpu.Logf("bios %s from %s %s %s", vectorName(msg.Vector), caller, outcome, b.status.String(msg.Cpu))
}
