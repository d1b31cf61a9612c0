package bios

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/lunixbochs/argjoy"
	"github.com/pkg/errors"

	"github.com/vmmkit/vbios/go/models/cpu"
	"github.com/vmmkit/vbios/go/vcpu"
)

var (
	messageType = reflect.TypeOf(&Message{})
	stateType   = reflect.TypeOf(&cpu.State{})
	vcpuType    = reflect.TypeOf(&vcpu.VCpu{})
	funcType    = reflect.TypeOf(Func(0))
	vectorType  = reflect.TypeOf(Vector(0))
	boolType    = reflect.TypeOf(false)
)

type service struct {
	Name   string
	Method reflect.Value
	In     []reflect.Type
	Claim  bool
}

// Services is a Handler built from the methods of a provider value.
//
// A method named Reset serves ResetVector and IntXX serves INT 0xXX. Its
// parameters are filled from the message: *Message, *cpu.State, *vcpu.VCpu,
// Func (the caller's AH) and Vector. A method returning bool decides whether
// the call is claimed, a method returning nothing always claims it.
type Services struct {
	Argjoy   argjoy.Argjoy
	provider interface{}
	table    map[Vector]*service
}

func vectorName(vec Vector) string {
	switch {
	case vec == ResetVector:
		return "Reset"
	case vec < 0x100:
		return fmt.Sprintf("Int%02X", uint32(vec))
	default:
		return fmt.Sprintf("Entry%03X", uint32(vec))
	}
}

func methodVector(name string) (Vector, bool) {
	if name == "Reset" {
		return ResetVector, true
	}
	if len(name) != 5 || !strings.HasPrefix(name, "Int") {
		return 0, false
	}
	n, err := strconv.ParseUint(name[3:], 16, 8)
	if err != nil {
		return 0, false
	}
	return Vector(n), true
}

func NewServices(provider interface{}) (*Services, error) {
	s := &Services{provider: provider, table: make(map[Vector]*service)}
	instance := reflect.ValueOf(provider)
	typ := instance.Type()
	for i := 0; i < typ.NumMethod(); i++ {
		method := typ.Method(i)
		vec, ok := methodVector(method.Name)
		if !ok {
			continue
		}
		fn := instance.Method(i)
		ft := fn.Type()
		svc := &service{Name: method.Name, Method: fn, In: make([]reflect.Type, ft.NumIn())}
		for j := range svc.In {
			in := ft.In(j)
			switch in {
			case messageType, stateType, vcpuType, funcType, vectorType:
			default:
				return nil, errors.Errorf("%T.%s: cannot inject parameter of type %s", provider, method.Name, in)
			}
			svc.In[j] = in
		}
		switch {
		case ft.NumOut() == 0:
		case ft.NumOut() == 1 && ft.Out(0) == boolType:
			svc.Claim = true
		default:
			return nil, errors.Errorf("%T.%s: must return nothing or bool", provider, method.Name)
		}
		s.table[vec] = svc
	}
	if len(s.table) == 0 {
		return nil, errors.Errorf("%T has no bios service methods", provider)
	}
	s.Argjoy.Register(s.argCodec)
	return s, nil
}

func (s *Services) argCodec(arg interface{}, vals []interface{}) error {
	if msg, ok := vals[0].(*Message); ok {
		switch v := arg.(type) {
		case **Message:
			*v = msg
		case **cpu.State:
			*v = msg.Cpu
		case **vcpu.VCpu:
			*v = msg.Vcpu
		case *Func:
			*v = Func(msg.Cpu.AH())
		case *Vector:
			*v = msg.Vector
		default:
			return argjoy.NoMatch
		}
		return nil
	}
	return argjoy.NoMatch
}

// Vectors lists the served vectors in ascending order.
func (s *Services) Vectors() []Vector {
	vecs := make([]Vector, 0, len(s.table))
	for vec := range s.table {
		vecs = append(vecs, vec)
	}
	sort.Slice(vecs, func(i, j int) bool { return vecs[i] < vecs[j] })
	return vecs
}

// HandleBios calls the method serving msg.Vector. Will panic() if the arguments cannot be built.
func (s *Services) HandleBios(msg *Message) bool {
	svc, ok := s.table[msg.Vector]
	if !ok {
		return false
	}
	args := make([]interface{}, len(svc.In))
	for i := range args {
		args[i] = msg
	}
	in, err := s.Argjoy.Convert(svc.In, false, args)
	if err != nil {
		panic(fmt.Sprintf("calling %T.%s(): %s", s.provider, svc.Name, err))
	}
	out := svc.Method.Call(in)
	if svc.Claim {
		return out[0].Bool()
	}
	return true
}
