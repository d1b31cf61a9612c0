package bios

import (
	"github.com/vmmkit/vbios/go/models/cpu"
	"github.com/vmmkit/vbios/go/vcpu"
)

// Vector numbers a firmware entry point: INT n for n < 0x100, ResetVector and up otherwise.
type Vector uint32

// Func is the BIOS function number a caller passes in AH.
type Func uint8

// Message asks the firmware services to handle one intercepted call.
// Handlers may change Cpu and report the register groups they touched in MtrOut.
type Message struct {
	Vcpu   *vcpu.VCpu
	Cpu    *cpu.State
	Vector Vector
	MtrOut cpu.Mtd
}

type Handler interface {
	HandleBios(msg *Message) bool
}

type HandlerFunc func(msg *Message) bool

func (f HandlerFunc) HandleBios(msg *Message) bool {
	return f(msg)
}

// Bus connects the bridge to the firmware services.
type Bus struct {
	handlers []Handler
}

func (b *Bus) Add(h Handler) {
	b.handlers = append(b.handlers, h)
}

func (b *Bus) Count() int {
	return len(b.handlers)
}

// Send offers msg to the handlers until one claims it.
// The most recently added handler goes first, so later handlers can override earlier ones.
func (b *Bus) Send(msg *Message) bool {
	for i := len(b.handlers) - 1; i >= 0; i-- {
		if b.handlers[i].HandleBios(msg) {
			return true
		}
	}
	return false
}

// SendFifo delivers msg to every handler in the order they were added.
// It reports whether any of them claimed it.
func (b *Bus) SendFifo(msg *Message) bool {
	claimed := false
	for _, h := range b.handlers {
		if h.HandleBios(msg) {
			claimed = true
		}
	}
	return claimed
}
