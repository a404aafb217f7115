// Package codegen lowers Koopa IR to RV32 assembly with a stack-only
// value allocator.
package codegen

import (
	"github.com/lidianzhong/nanocc/pkg/ir"
)

// FrameInfo assigns a stack slot to every value that needs one and
// fixes the frame layout before emission: outgoing call arguments at
// the bottom, then value slots, then the saved ra on top, rounded up
// to 16 bytes.
type FrameInfo struct {
	offsets map[ir.Value]int
	current int
	total   int
	hasCall bool
	maxArgs int
}

// PlanFrame computes the frame layout for a function definition.
func PlanFrame(f *ir.Function) *FrameInfo {
	fi := &FrameInfo{offsets: make(map[ir.Value]int)}

	for _, bb := range f.Blocks {
		for _, inst := range bb.Insts {
			if inst.Op() == ir.OpCall {
				fi.hasCall = true
				if n := inst.NumOperands() - 1; n > fi.maxArgs {
					fi.maxArgs = n
				}
			}
		}
	}

	if fi.maxArgs > 8 {
		fi.current = (fi.maxArgs - 8) * 4
	}

	for _, arg := range f.Args {
		fi.allocSlot(arg, 4)
	}
	for _, bb := range f.Blocks {
		for _, param := range bb.Params {
			fi.allocSlot(param, 4)
		}
		for _, inst := range bb.Insts {
			if inst.Type().IsVoid() {
				continue
			}
			if inst.Op() == ir.OpAlloc {
				// The slot holds the allocated object itself.
				fi.allocSlot(inst, inst.Type().Pointee().SizeOf())
			} else {
				fi.allocSlot(inst, 4)
			}
		}
	}

	raSize := 0
	if fi.hasCall {
		raSize = 4
	}
	fi.total = (fi.current + raSize + 15) &^ 15
	return fi
}

func (fi *FrameInfo) allocSlot(v ir.Value, size int) {
	fi.offsets[v] = fi.current
	fi.current += size
}

// Offset returns the slot offset of a planned value.
func (fi *FrameInfo) Offset(v ir.Value) int {
	off, ok := fi.offsets[v]
	if !ok {
		panic("codegen: value has no stack slot")
	}
	return off
}

// HasSlot reports whether a slot was planned for the value.
func (fi *FrameInfo) HasSlot(v ir.Value) bool {
	_, ok := fi.offsets[v]
	return ok
}

// StackSize is the total frame size in bytes.
func (fi *FrameInfo) StackSize() int { return fi.total }

// HasCall reports whether the function contains any call.
func (fi *FrameInfo) HasCall() bool { return fi.hasCall }

// MaxCallArgs is the largest argument count over all calls.
func (fi *FrameInfo) MaxCallArgs() int { return fi.maxArgs }
