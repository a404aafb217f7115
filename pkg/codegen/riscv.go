package codegen

import (
	"fmt"
	"strings"

	"github.com/lidianzhong/nanocc/pkg/ir"
)

// Generate emits RV32 assembly for the whole module.
func Generate(m *ir.Module) string {
	var sb strings.Builder

	emitDataSection(&sb, m)
	sb.WriteString("  .text\n")

	for _, f := range m.Funcs {
		if f.IsDecl() {
			continue
		}
		fg := &funcGen{out: &sb, fn: f, frame: PlanFrame(f)}
		fg.emitFunction()
	}

	return sb.String()
}

// Data section

func emitDataSection(sb *strings.Builder, m *ir.Module) {
	if len(m.Globals) == 0 {
		return
	}
	sb.WriteString("  .data\n")
	for _, g := range m.Globals {
		fmt.Fprintf(sb, "  .globl %s\n", g.Name())
		fmt.Fprintf(sb, "%s:\n", g.Name())
		emitInitializer(sb, g.Init)
	}
	sb.WriteString("\n")
}

func emitInitializer(sb *strings.Builder, init ir.Value) {
	switch c := init.(type) {
	case *ir.ConstantZero:
		fmt.Fprintf(sb, "  .zero %d\n", c.Type().SizeOf())
	case *ir.ConstantInt:
		fmt.Fprintf(sb, "  .word %d\n", c.Value)
	case *ir.ConstantArray:
		for _, elem := range c.Elems {
			emitInitializer(sb, elem)
		}
	default:
		panic("codegen: unexpected global initializer")
	}
}

// Function emission

type funcGen struct {
	out     *strings.Builder
	fn      *ir.Function
	frame   *FrameInfo
	brCount int
}

func (fg *funcGen) emitFunction() {
	fmt.Fprintf(fg.out, "  .globl %s\n", fg.fn.Name())
	fmt.Fprintf(fg.out, "%s:\n", fg.fn.Name())

	fg.emitPrologue()

	for _, bb := range fg.fn.Blocks {
		fg.emitBlock(bb)
	}

	fg.emitEpilogue()
}

// blockLabel prefixes block names with the function name; assembly
// labels are file-scoped while block names are only function-unique.
func (fg *funcGen) blockLabel(bb *ir.BasicBlock) string {
	return fg.fn.Name() + "_" + bb.Name()
}

func (fg *funcGen) epilogueLabel() string {
	return fg.fn.Name() + "_epilogue"
}

// imm12 reports whether the offset fits the I-type immediate.
func imm12(off int) bool { return off >= -2048 && off <= 2047 }

// safeLoad emits lw of an sp-relative slot, going through t6 when the
// offset does not fit a 12-bit immediate. t6 never holds operand data.
func (fg *funcGen) safeLoad(reg string, off int) {
	if imm12(off) {
		fmt.Fprintf(fg.out, "  lw %s, %d(sp)\n", reg, off)
		return
	}
	fmt.Fprintf(fg.out, "  li t6, %d\n", off)
	fg.out.WriteString("  add t6, sp, t6\n")
	fmt.Fprintf(fg.out, "  lw %s, 0(t6)\n", reg)
}

func (fg *funcGen) safeStore(reg string, off int) {
	if imm12(off) {
		fmt.Fprintf(fg.out, "  sw %s, %d(sp)\n", reg, off)
		return
	}
	fmt.Fprintf(fg.out, "  li t6, %d\n", off)
	fg.out.WriteString("  add t6, sp, t6\n")
	fmt.Fprintf(fg.out, "  sw %s, 0(t6)\n", reg)
}

// safeAddr materializes sp + off into reg.
func (fg *funcGen) safeAddr(reg string, off int) {
	if imm12(off) {
		fmt.Fprintf(fg.out, "  addi %s, sp, %d\n", reg, off)
		return
	}
	fmt.Fprintf(fg.out, "  li t6, %d\n", off)
	fmt.Fprintf(fg.out, "  add %s, sp, t6\n", reg)
}

// loadOperand places a value operand in reg: constants via li, alloca
// results as their slot address, everything else from its spill slot.
func (fg *funcGen) loadOperand(reg string, v ir.Value) {
	switch val := v.(type) {
	case *ir.ConstantInt:
		fmt.Fprintf(fg.out, "  li %s, %d\n", reg, val.Value)
	case *ir.GlobalVariable:
		fmt.Fprintf(fg.out, "  la %s, %s\n", reg, val.Name())
	case *ir.Instruction:
		if val.Op() == ir.OpAlloc {
			fg.safeAddr(reg, fg.frame.Offset(val))
			return
		}
		fg.safeLoad(reg, fg.frame.Offset(val))
	default:
		fg.safeLoad(reg, fg.frame.Offset(v))
	}
}

func (fg *funcGen) emitPrologue() {
	size := fg.frame.StackSize()
	if size > 0 {
		if imm12(-size) {
			fmt.Fprintf(fg.out, "  addi sp, sp, %d\n", -size)
		} else {
			fmt.Fprintf(fg.out, "  li t0, %d\n", -size)
			fg.out.WriteString("  add sp, sp, t0\n")
		}
	}

	if fg.frame.HasCall() {
		fg.safeStore("ra", size-4)
	}

	// Incoming arguments: the first eight arrive in a0..a7, the rest
	// live in the caller's overflow area above our frame.
	for i, arg := range fg.fn.Args {
		off := fg.frame.Offset(arg)
		if i < 8 {
			fg.safeStore(fmt.Sprintf("a%d", i), off)
		} else {
			fg.safeLoad("t0", size+(i-8)*4)
			fg.safeStore("t0", off)
		}
	}
}

func (fg *funcGen) emitEpilogue() {
	fmt.Fprintf(fg.out, "%s:\n", fg.epilogueLabel())

	size := fg.frame.StackSize()
	if fg.frame.HasCall() {
		fg.safeLoad("ra", size-4)
	}
	if size > 0 {
		if imm12(size) {
			fmt.Fprintf(fg.out, "  addi sp, sp, %d\n", size)
		} else {
			fmt.Fprintf(fg.out, "  li t0, %d\n", size)
			fg.out.WriteString("  add sp, sp, t0\n")
		}
	}
	fg.out.WriteString("  ret\n")
}

func (fg *funcGen) emitBlock(bb *ir.BasicBlock) {
	// The entry block falls through from the prologue and is never a
	// branch target, so it needs no label.
	if bb != fg.fn.Blocks[0] {
		fmt.Fprintf(fg.out, "%s:\n", fg.blockLabel(bb))
	}
	for _, inst := range bb.Insts {
		fg.emitInst(inst)
	}
}

func (fg *funcGen) emitInst(inst *ir.Instruction) {
	switch inst.Op() {
	case ir.OpAlloc:
		// No code; the slot address is sp + offset.
	case ir.OpLoad:
		fg.loadOperand("t0", inst.Operand(0))
		fg.out.WriteString("  lw t0, 0(t0)\n")
		fg.safeStore("t0", fg.frame.Offset(inst))
	case ir.OpStore:
		fg.loadOperand("t0", inst.Operand(0))
		fg.loadOperand("t1", inst.Operand(1))
		fg.out.WriteString("  sw t0, 0(t1)\n")
	case ir.OpGetElemPtr:
		elemSize := inst.Operand(0).Type().Pointee().Elem().SizeOf()
		fg.emitPointerStep(inst, elemSize)
	case ir.OpGetPtr:
		elemSize := inst.Operand(0).Type().Pointee().SizeOf()
		fg.emitPointerStep(inst, elemSize)
	case ir.OpBr:
		fg.emitBranch(inst)
	case ir.OpJump:
		target := inst.Targets[0]
		fg.emitBlockArgs(target)
		fmt.Fprintf(fg.out, "  j %s\n", fg.blockLabel(target.Block))
	case ir.OpRet:
		if inst.NumOperands() > 0 {
			fg.loadOperand("a0", inst.Operand(0))
		}
		fmt.Fprintf(fg.out, "  j %s\n", fg.epilogueLabel())
	case ir.OpCall:
		fg.emitCall(inst)
	default:
		fg.emitBinary(inst)
	}
}

func (fg *funcGen) emitBinary(inst *ir.Instruction) {
	fg.loadOperand("t0", inst.Operand(0))
	fg.loadOperand("t1", inst.Operand(1))

	switch inst.Op() {
	case ir.OpAdd:
		fg.out.WriteString("  add t0, t0, t1\n")
	case ir.OpSub:
		fg.out.WriteString("  sub t0, t0, t1\n")
	case ir.OpMul:
		fg.out.WriteString("  mul t0, t0, t1\n")
	case ir.OpDiv:
		fg.out.WriteString("  div t0, t0, t1\n")
	case ir.OpMod:
		fg.out.WriteString("  rem t0, t0, t1\n")
	case ir.OpAnd:
		fg.out.WriteString("  and t0, t0, t1\n")
	case ir.OpOr:
		fg.out.WriteString("  or t0, t0, t1\n")
	case ir.OpLt:
		fg.out.WriteString("  slt t0, t0, t1\n")
	case ir.OpGt:
		fg.out.WriteString("  sgt t0, t0, t1\n")
	case ir.OpLe:
		fg.out.WriteString("  sgt t0, t0, t1\n")
		fg.out.WriteString("  xori t0, t0, 1\n")
	case ir.OpGe:
		fg.out.WriteString("  slt t0, t0, t1\n")
		fg.out.WriteString("  xori t0, t0, 1\n")
	case ir.OpEq:
		fg.out.WriteString("  sub t0, t0, t1\n")
		fg.out.WriteString("  seqz t0, t0\n")
	case ir.OpNe:
		fg.out.WriteString("  sub t0, t0, t1\n")
		fg.out.WriteString("  snez t0, t0\n")
	default:
		panic(fmt.Sprintf("codegen: unexpected opcode %v", inst.Op()))
	}

	fg.safeStore("t0", fg.frame.Offset(inst))
}

// emitPointerStep lowers get_elem_ptr/get_ptr: base + index*elemSize.
// The scaled index is computed first so t0 stays free for the base.
func (fg *funcGen) emitPointerStep(inst *ir.Instruction, elemSize int) {
	index := inst.Operand(1)
	if c, ok := index.(*ir.ConstantInt); ok {
		fmt.Fprintf(fg.out, "  li t1, %d\n", int(c.Value)*elemSize)
	} else {
		fg.loadOperand("t1", index)
		fmt.Fprintf(fg.out, "  li t0, %d\n", elemSize)
		fg.out.WriteString("  mul t1, t1, t0\n")
	}

	fg.loadOperand("t0", inst.Operand(0))
	fg.out.WriteString("  add t0, t0, t1\n")
	fg.safeStore("t0", fg.frame.Offset(inst))
}

// emitBranch lowers br with per-edge block-argument transfers. The
// false edge gets a local trampoline label so its transfers only run
// when the condition is false.
func (fg *funcGen) emitBranch(inst *ir.Instruction) {
	thenT, elseT := inst.Targets[0], inst.Targets[1]
	falseLabel := fmt.Sprintf("%s_args%d", fg.blockLabel(elseT.Block), fg.brCount)
	fg.brCount++

	fg.loadOperand("t0", inst.Operand(0))
	fmt.Fprintf(fg.out, "  beqz t0, %s\n", falseLabel)

	fg.emitBlockArgs(thenT)
	fmt.Fprintf(fg.out, "  j %s\n", fg.blockLabel(thenT.Block))

	fmt.Fprintf(fg.out, "%s:\n", falseLabel)
	fg.emitBlockArgs(elseT)
	fmt.Fprintf(fg.out, "  j %s\n", fg.blockLabel(elseT.Block))
}

// emitBlockArgs realizes SSA join: each actual argument is stored to
// the corresponding block parameter's slot on the incoming edge.
func (fg *funcGen) emitBlockArgs(target *ir.BranchTarget) {
	for i, arg := range target.Args {
		param := target.Block.Params[i]
		fg.loadOperand("t1", arg)
		fg.safeStore("t1", fg.frame.Offset(param))
	}
}

func (fg *funcGen) emitCall(inst *ir.Instruction) {
	callee := inst.Operand(0).(*ir.Function)

	for i := 1; i < inst.NumOperands(); i++ {
		fg.loadOperand("t0", inst.Operand(i))
		argIdx := i - 1
		if argIdx < 8 {
			fmt.Fprintf(fg.out, "  mv a%d, t0\n", argIdx)
		} else {
			fg.safeStore("t0", (argIdx-8)*4)
		}
	}

	fmt.Fprintf(fg.out, "  call %s\n", callee.Name())

	if !inst.Type().IsVoid() {
		fg.safeStore("a0", fg.frame.Offset(inst))
	}
}
