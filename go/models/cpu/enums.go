package cpu

// hook types accepted by Hooks.HookAdd
const (
	// trap raised by an executor (see TRAP_*)
	HOOK_TRAP = 1

	// claim 32-bit aligned physical memory reads
	HOOK_MEM_READ = 1024
)

// TrapKind is the reason an executor stopped to ask its devices.
type TrapKind int

const (
	// an instruction boundary was reached
	TRAP_SINGLE_STEP TrapKind = iota + 1
	TRAP_HLT
	TRAP_IOIN
	TRAP_IOOUT
	TRAP_CPUID
	TRAP_TRIPLE
	TRAP_INIT
)

var trapNames = map[TrapKind]string{
	TRAP_SINGLE_STEP: "single_step",
	TRAP_HLT:         "hlt",
	TRAP_IOIN:        "ioin",
	TRAP_IOOUT:       "ioout",
	TRAP_CPUID:       "cpuid",
	TRAP_TRIPLE:      "triple",
	TRAP_INIT:        "init",
}

func (k TrapKind) String() string {
	if name, ok := trapNames[k]; ok {
		return name
	}
	return "unknown"
}

// EFLAGS bits
const (
	EFL_CF  = 1 << 0
	EFL_1   = 1 << 1
	EFL_PF  = 1 << 2
	EFL_AF  = 1 << 4
	EFL_ZF  = 1 << 6
	EFL_SF  = 1 << 7
	EFL_TF  = 1 << 8
	EFL_IF  = 1 << 9
	EFL_DF  = 1 << 10
	EFL_OF  = 1 << 11
	EFL_VM  = 1 << 17
	EFL_AC  = 1 << 18
	EFL_ID  = 1 << 21
	EFL_X86 = 0xffff
)

const (
	CR0_PE = 1 << 0
	CR0_PG = 1 << 31
)

// Mtd marks register groups a device modified while handling a trap.
type Mtd uint32

const (
	MTD_GPR_ACDB Mtd = 1 << iota
	MTD_GPR_BSD
	MTD_RSP
	MTD_RIP_LEN
	MTD_RFLAGS
	MTD_DS_ES
	MTD_FS_GS
	MTD_CS_SS
	MTD_TR
	MTD_LDTR
	MTD_GDTR
	MTD_IDTR
	MTD_CR
	MTD_DR
	MTD_SYSENTER
	MTD_QUAL
	MTD_CTRL
	MTD_INJ
	MTD_STATE
	MTD_TSC

	MTD_ALL Mtd = 1<<20 - 1
)

// these errors are reported through MemError.Enum
const (
	MEM_READ_UNMAPPED  = 19
	MEM_WRITE_UNMAPPED = 20
	MEM_FETCH_UNMAPPED = 21
	MEM_WRITE_PROT     = 12
	MEM_READ_PROT      = 13
	MEM_FETCH_PROT     = 14
)

// these constants are used for memory protections
const (
	PROT_NONE  = 0
	PROT_READ  = 1
	PROT_WRITE = 2
	PROT_EXEC  = 4
	PROT_ALL   = 7
)
