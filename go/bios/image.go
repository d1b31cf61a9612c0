package bios

import (
	"bytes"
	"encoding/binary"
	"strings"

	"github.com/lunixbochs/struc"
)

const (
	opJmpFar = 0xea
	opNop    = 0x90
	opIret   = 0xcf
)

// Image is the code the guest finds in the last 16 bytes below 1M and below 4G:
// a far jump to the reset vector, padding, and the IRET every intercepted call returns through.
type Image [16]byte

type resetStub struct {
	Jmp  uint8  `struc:"uint8"`
	Off  uint16 `struc:"uint16,little"`
	Seg  uint16 `struc:"uint16,little"`
	Pad  string `struc:"[10]byte"`
	Iret uint8  `struc:"uint8"`
}

func NewImage() *Image {
	stub := &resetStub{
		Jmp:  opJmpFar,
		Off:  ResetVector,
		Seg:  BiosBase >> 4,
		Pad:  strings.Repeat("\x90", 10),
		Iret: opIret,
	}
	var buf bytes.Buffer
	if err := struc.Pack(&buf, stub); err != nil {
		panic("packing reset stub: " + err.Error())
	}
	var img Image
	copy(img[:], buf.Bytes())
	return &img
}

// Word returns the little-endian word at byte offset off (a multiple of 4).
func (img *Image) Word(off int) uint32 {
	return binary.LittleEndian.Uint32(img[off&0xc:])
}

// shadowOffset maps an address inside either alias of the reset area to its offset in the Image.
func shadowOffset(phys uint64) (int, bool) {
	if inRange(phys, 0xfffffff0, 0x10) || inRange(phys, BiosBase+0xfff0, 0x10) {
		return int(phys & 0xc), true
	}
	return 0, false
}
