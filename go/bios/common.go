package bios

const (
	// physical base of the synthetic firmware segment
	BiosBase = 0xf0000

	// vectors 0x00-0xff are INT n, everything up to MaxVector is a firmware internal entry point
	ResetVector = 0x100
	MaxVector   = 0x400
)

func inRange(addr, base, size uint64) bool {
	return addr >= base && addr-base < size
}

// farPtr encodes seg:off the way the IVT stores it.
func farPtr(seg, off uint16) uint32 {
	return uint32(seg)<<16 | uint32(off)
}
