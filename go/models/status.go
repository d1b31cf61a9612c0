package models

import (
	"fmt"
	"strings"

	"github.com/mgutz/ansi"

	"github.com/vmmkit/vbios/go/models/cpu"
)

var chSame = ansi.ColorCode("default:default")
var chNew = ansi.ColorCode("default+bu:default")

type ChangeMask struct {
	Old, New string
	Changed  bool
}

type Change struct {
	Old, New uint64
	Name     string
}

func (c *Change) Changed() bool {
	return c.Old != c.New
}

// Mask splits the hex renderings of the old and new value into runs of equal and differing digits.
func (c *Change) Mask(digits int) []ChangeMask {
	hexFmt := fmt.Sprintf("%%0%dx", digits)
	s1, s2 := fmt.Sprintf(hexFmt, c.New), fmt.Sprintf(hexFmt, c.Old)
	pos := 0
	matching := true
	masks := make([]ChangeMask, 0, len(s1))
	for i := range s1 {
		if (s1[i] == s2[i]) != matching {
			if i > pos {
				masks = append(masks, ChangeMask{
					New:     s1[pos:i],
					Old:     s2[pos:i],
					Changed: !matching,
				})
				pos = i
			}
			matching = !matching
		}
	}
	if pos < len(s1) {
		masks = append(masks, ChangeMask{
			New:     s1[pos:],
			Old:     s2[pos:],
			Changed: !matching,
		})
	}
	return masks
}

func (c *Change) String(digits int, color bool) string {
	hexFmt := fmt.Sprintf("%%0%dx", digits)
	if !color {
		return fmt.Sprintf("%s=%s->"+hexFmt, c.Name, fmt.Sprintf(hexFmt, c.Old), c.New)
	}
	out := []string{c.Name, "="}
	for _, mask := range c.Mask(digits) {
		col := chSame
		if mask.Changed {
			col = chNew
		}
		out = append(out, col+mask.New)
	}
	out = append(out, ansi.Reset)
	return strings.Join(out, "")
}

// StatusDiff remembers the last register dump it saw.
type StatusDiff struct {
	Color   bool
	oldRegs []cpu.RegVal
}

// Changes returns the registers that differ from the previous call's state.
// The first call compares against the zero state.
func (s *StatusDiff) Changes(st *cpu.State) []*Change {
	regs := st.RegDump()
	var cs []*Change
	for i, reg := range regs {
		var old uint64
		if s.oldRegs != nil {
			old = s.oldRegs[i].Val
		}
		if c := (&Change{Old: old, New: reg.Val, Name: reg.Name}); c.Changed() {
			cs = append(cs, c)
		}
	}
	s.oldRegs = regs
	return cs
}

// Mark records st as the baseline for the next Changes call.
func (s *StatusDiff) Mark(st *cpu.State) {
	s.oldRegs = st.RegDump()
}

func (s *StatusDiff) String(st *cpu.State) string {
	cs := s.Changes(st)
	out := make([]string, len(cs))
	for i, c := range cs {
		digits := 8
		if strings.HasSuffix(c.Name, "s") && len(c.Name) == 2 {
			digits = 4
		}
		out[i] = c.String(digits, s.Color)
	}
	return strings.Join(out, " ")
}
