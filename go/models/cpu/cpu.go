package cpu

// Backing stores guest physical memory behind the device hooks on a Mem.
// MemSim is the pure Go store; executors with their own memory implement it too.
type Backing interface {
	Read(addr uint64, p []byte, prot int) error
	Write(addr uint64, p []byte, prot int) error
}

