package cpu

import (
	"github.com/pkg/errors"
)

type Hook interface{}

// TrapEvent is raised by an executor on the vcpu it runs. Handlers may modify
// Cpu in place and report the register groups they touched in MtrOut.
type TrapEvent struct {
	Kind   TrapKind
	Cpu    *State
	MtrOut Mtd
}

type TrapFunc func(ev *TrapEvent) (bool, error)

// ReadFunc claims the aligned 32-bit word at addr by filling val and returning true.
type ReadFunc func(addr uint64, val *uint32) bool

type hookInfo struct {
	htype int
}

func (h *hookInfo) Type() int {
	return h.htype
}

type hinfo interface {
	Type() int
}

type trapHook struct {
	hookInfo
	cb TrapFunc
}

type readHook struct {
	hookInfo
	cb ReadFunc
}

// Hooks keeps device handlers in registration order.
type Hooks struct {
	trap []*trapHook
	read []*readHook
}

// creates &Hooks{}, optionally attaching to a *Mem instance
func NewHooks(mem *Mem) *Hooks {
	h := &Hooks{}
	if mem != nil {
		// mem will consult read hooks before its backing store
		mem.hooks = h
	}
	return h
}

func (h *Hooks) HookAdd(htype int, cb interface{}) (Hook, error) {
	info := hookInfo{htype}
	var hook Hook
	switch htype {
	case HOOK_TRAP:
		fn, ok := cb.(func(*TrapEvent) (bool, error))
		if !ok {
			if fn, ok = cb.(TrapFunc); !ok {
				return nil, errors.Errorf("bad trap hook callback: %T", cb)
			}
		}
		hh := &trapHook{info, fn}
		h.trap, hook = append(h.trap, hh), hh

	case HOOK_MEM_READ:
		fn, ok := cb.(func(uint64, *uint32) bool)
		if !ok {
			if fn, ok = cb.(ReadFunc); !ok {
				return nil, errors.Errorf("bad memory hook callback: %T", cb)
			}
		}
		hh := &readHook{info, fn}
		h.read, hook = append(h.read, hh), hh

	default:
		return nil, errors.Errorf("unknown hook type: %d", htype)
	}
	return hook, nil
}

func (h *Hooks) HookDel(hh Hook) error {
	info, ok := hh.(hinfo)
	if !ok {
		return errors.Errorf("not a hook: %T", hh)
	}
	switch info.Type() {
	case HOOK_TRAP:
		var tmp []*trapHook
		for _, v := range h.trap {
			if v != hh {
				tmp = append(tmp, v)
			}
		}
		h.trap = tmp
	case HOOK_MEM_READ:
		var tmp []*readHook
		for _, v := range h.read {
			if v != hh {
				tmp = append(tmp, v)
			}
		}
		h.read = tmp
	}
	return nil
}

// OnTrap offers ev to each trap hook until one claims it.
// An error from a hook is fatal for the executor and stops the walk.
func (h *Hooks) OnTrap(ev *TrapEvent) (bool, error) {
	for _, v := range h.trap {
		if ok, err := v.cb(ev); err != nil {
			return false, err
		} else if ok {
			return true, nil
		}
	}
	return false, nil
}

func (h *Hooks) OnRead(addr uint64, val *uint32) bool {
	for _, v := range h.read {
		if v.cb(addr, val) {
			return true
		}
	}
	return false
}

func (h *Hooks) hasRead() bool {
	return len(h.read) > 0
}
