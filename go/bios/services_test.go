package bios

import (
	"reflect"
	"testing"

	"github.com/vmmkit/vbios/go/models/cpu"
	"github.com/vmmkit/vbios/go/vcpu"
)

type testServices struct {
	resets int
	calls  []Func
}

func (s *testServices) Reset(v *vcpu.VCpu) {
	s.resets++
}

func (s *testServices) Int10(fn Func, st *cpu.State) {
	s.calls = append(s.calls, fn)
	if fn == 0x0e {
		st.SetAL(0)
	}
}

func (s *testServices) Int16(fn Func, msg *Message) bool {
	if fn != 0 {
		return false
	}
	msg.Cpu.EAX = 0x1e61
	msg.MtrOut |= cpu.MTD_GPR_ACDB
	return true
}

func (s *testServices) Int1A(vec Vector, st *cpu.State) bool {
	st.EDX = uint32(vec)
	return true
}

// not a service
func (s *testServices) Interrupt() {}

func TestServicesTable(t *testing.T) {
	svc, err := NewServices(&testServices{})
	if err != nil {
		t.Fatal(err)
	}
	want := []Vector{0x10, 0x16, 0x1a, ResetVector}
	if vecs := svc.Vectors(); !reflect.DeepEqual(vecs, want) {
		t.Fatalf("vectors = %#x, want %#x", vecs, want)
	}
}

func TestServicesDispatch(t *testing.T) {
	impl := &testServices{}
	svc, err := NewServices(impl)
	if err != nil {
		t.Fatal(err)
	}
	v := vcpu.New(0, nil, nil)
	st := &cpu.State{EAX: 0x0e41}
	if !svc.HandleBios(&Message{Vcpu: v, Cpu: st, Vector: 0x10}) {
		t.Fatal("Int10 did not claim")
	}
	if len(impl.calls) != 1 || impl.calls[0] != 0x0e || st.EAX != 0x0e00 {
		t.Fatalf("bad Int10 call: %v eax=%#x", impl.calls, st.EAX)
	}

	st.EAX = 0x0100
	if svc.HandleBios(&Message{Cpu: st, Vector: 0x16}) {
		t.Fatal("Int16 claimed ah=1")
	}
	msg := &Message{Cpu: st, Vector: 0x16}
	st.EAX = 0
	if !svc.HandleBios(msg) || st.EAX != 0x1e61 || msg.MtrOut != cpu.MTD_GPR_ACDB {
		t.Fatalf("bad Int16 call: eax=%#x mtd=%#x", st.EAX, msg.MtrOut)
	}

	if !svc.HandleBios(&Message{Cpu: st, Vector: 0x1a}) || st.EDX != 0x1a {
		t.Fatalf("bad Int1A call: edx=%#x", st.EDX)
	}
	if svc.HandleBios(&Message{Cpu: st, Vector: 0x13}) {
		t.Fatal("unserved vector was claimed")
	}
	if !svc.HandleBios(&Message{Vcpu: v, Cpu: st, Vector: ResetVector}) || impl.resets != 1 {
		t.Fatal("Reset was not called")
	}
}

type badParam struct{}

func (badParam) Int10(n int) {}

type badReturn struct{}

func (badReturn) Int10() int { return 0 }

type noServices struct{}

func (noServices) Interrupt() {}

func TestServicesInvalid(t *testing.T) {
	for _, provider := range []interface{}{badParam{}, badReturn{}, noServices{}} {
		if _, err := NewServices(provider); err == nil {
			t.Errorf("%T: expected an error", provider)
		}
	}
}

func TestVectorName(t *testing.T) {
	tests := map[Vector]string{0x10: "Int10", 0x1a: "Int1A", ResetVector: "Reset", 0x180: "Entry180"}
	for vec, want := range tests {
		if name := vectorName(vec); name != want {
			t.Errorf("vectorName(%#x) = %q, want %q", vec, name, want)
		}
		if vec > ResetVector {
			continue
		}
		if got, ok := methodVector(want); !ok || got != vec {
			t.Errorf("methodVector(%q) = %#x, %v", want, got, ok)
		}
	}
}
