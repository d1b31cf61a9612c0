package vcpu

import (
	"encoding/binary"
	"fmt"

	"github.com/vmmkit/vbios/go/models"
	"github.com/vmmkit/vbios/go/models/cpu"
)

// VCpu is what devices attach to: the trap hooks its executor raises and the
// physical memory bus it reads and writes through.
type VCpu struct {
	ID     int
	Config *models.Config
	Mem    *cpu.Mem
	Hooks  *cpu.Hooks
}

// New creates a vcpu with a 32-bit little-endian physical address space.
// A nil backing store gets a fresh cpu.MemSim.
func New(id int, config *models.Config, store cpu.Backing) *VCpu {
	if store == nil {
		store = &cpu.MemSim{}
	}
	mem := cpu.NewMemBacked(32, binary.LittleEndian, store)
	return &VCpu{
		ID:     id,
		Config: config.Init(),
		Mem:    mem,
		Hooks:  cpu.NewHooks(mem),
	}
}

func (v *VCpu) String() string {
	return fmt.Sprintf("vcpu%d", v.ID)
}

// Trap sends ev to the attached devices. The first device to claim it wins.
func (v *VCpu) Trap(ev *cpu.TrapEvent) (bool, error) {
	return v.Hooks.OnTrap(ev)
}

func (v *VCpu) AddTrap(cb cpu.TrapFunc) error {
	_, err := v.Hooks.HookAdd(cpu.HOOK_TRAP, cb)
	return err
}

func (v *VCpu) AddMemRead(cb cpu.ReadFunc) error {
	_, err := v.Hooks.HookAdd(cpu.HOOK_MEM_READ, cb)
	return err
}

func (v *VCpu) ReadWord(addr uint64) (uint32, error) {
	n, err := v.Mem.ReadUint(addr, 4, 0)
	return uint32(n), err
}

func (v *VCpu) WriteWord(addr uint64, val uint32) error {
	return v.Mem.WriteUint(addr, 4, 0, uint64(val))
}

func (v *VCpu) Logf(format string, args ...interface{}) {
	if v.Config.Verbose {
		fmt.Fprintf(v.Config.Output, "[%s] "+format+"\n", append([]interface{}{v}, args...)...)
	}
}
