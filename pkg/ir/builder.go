package ir

import "fmt"

// Builder appends instructions at an insertion point and performs
// local constant folding and type inference.
type Builder struct {
	mod *Module
	bb  *BasicBlock
}

func NewBuilder(mod *Module) *Builder {
	return &Builder{mod: mod}
}

func (b *Builder) Module() *Module               { return b.mod }
func (b *Builder) InsertBlock() *BasicBlock      { return b.bb }
func (b *Builder) SetInsertPoint(bb *BasicBlock) { b.bb = bb }

func (b *Builder) insert(inst *Instruction) *Instruction {
	if b.bb == nil {
		panic("ir: builder has no insertion block")
	}
	b.bb.Append(inst)
	return inst
}

// FoldBinary evaluates op over two constant operands with 32-bit
// two's-complement semantics; div/mod by zero yield 0.
func FoldBinary(op Opcode, lval, rval int32) int32 {
	b2i := func(b bool) int32 {
		if b {
			return 1
		}
		return 0
	}
	switch op {
	case OpAdd:
		return lval + rval
	case OpSub:
		return lval - rval
	case OpMul:
		return lval * rval
	case OpDiv:
		switch rval {
		case 0:
			return 0
		case -1:
			return -lval
		default:
			return lval / rval
		}
	case OpMod:
		switch rval {
		case 0:
			return 0
		case -1:
			return 0
		default:
			return lval % rval
		}
	case OpLt:
		return b2i(lval < rval)
	case OpLe:
		return b2i(lval <= rval)
	case OpGt:
		return b2i(lval > rval)
	case OpGe:
		return b2i(lval >= rval)
	case OpEq:
		return b2i(lval == rval)
	case OpNe:
		return b2i(lval != rval)
	case OpAnd:
		return lval & rval
	case OpOr:
		return lval | rval
	default:
		panic(fmt.Sprintf("ir: FoldBinary on %s", op))
	}
}

// CreateBinaryOp emits an arithmetic, comparison or word-logical
// instruction, folding when both operands are constant integers.
func (b *Builder) CreateBinaryOp(op Opcode, lhs, rhs Value) Value {
	if cl, ok := lhs.(*ConstantInt); ok {
		if cr, ok := rhs.(*ConstantInt); ok {
			return b.mod.ConstInt(FoldBinary(op, cl.Value, cr.Value))
		}
	}

	resTy := lhs.Type()
	if op >= OpLt && op <= OpNe {
		resTy = b.mod.Int32Ty()
	}

	inst := newInstr(resTy, op, 2)
	inst.setOperand(0, lhs)
	inst.setOperand(1, rhs)
	return b.insert(inst)
}

// CreateAlloca reserves a stack object of the given type; the result
// is a pointer to it.
func (b *Builder) CreateAlloca(ty *Type) *Instruction {
	inst := newInstr(b.mod.PointerTy(ty), OpAlloc, 0)
	return b.insert(inst)
}

func (b *Builder) CreateLoad(ptr Value) *Instruction {
	ptrTy := ptr.Type()
	if !ptrTy.IsPointer() {
		panic("ir: load operand must be a pointer")
	}
	inst := newInstr(ptrTy.Pointee(), OpLoad, 1)
	inst.setOperand(0, ptr)
	return b.insert(inst)
}

func (b *Builder) CreateStore(value, ptr Value) *Instruction {
	if !ptr.Type().IsPointer() || ptr.Type().Pointee() != value.Type() {
		panic(fmt.Sprintf("ir: store of %s through %s", value.Type(), ptr.Type()))
	}
	inst := newInstr(b.mod.VoidTy(), OpStore, 2)
	inst.setOperand(0, value)
	inst.setOperand(1, ptr)
	return b.insert(inst)
}

// CreateGetElemPtr steps into an array: given a pointer to [T, n] and
// an index, it yields a pointer to T.
func (b *Builder) CreateGetElemPtr(ptr, index Value) *Instruction {
	ptrTy := ptr.Type()
	if !ptrTy.IsPointer() || !ptrTy.Pointee().IsArray() {
		panic(fmt.Sprintf("ir: get_elem_ptr base must point to an array, got %s", ptrTy))
	}
	resTy := b.mod.PointerTy(ptrTy.Pointee().Elem())
	inst := newInstr(resTy, OpGetElemPtr, 2)
	inst.setOperand(0, ptr)
	inst.setOperand(1, index)
	return b.insert(inst)
}

// CreateGetPtr advances a pointer by index elements of its pointee;
// the result keeps the pointer's type.
func (b *Builder) CreateGetPtr(ptr, index Value) *Instruction {
	ptrTy := ptr.Type()
	if !ptrTy.IsPointer() {
		panic("ir: get_ptr base must be a pointer")
	}
	inst := newInstr(ptrTy, OpGetPtr, 2)
	inst.setOperand(0, ptr)
	inst.setOperand(1, index)
	return b.insert(inst)
}

func (b *Builder) CreateCondBr(cond Value, thenT, elseT *BranchTarget) *Instruction {
	if !cond.Type().IsInt32() {
		panic("ir: branch condition must be i32")
	}
	inst := newInstr(b.mod.VoidTy(), OpBr, 1)
	inst.setOperand(0, cond)
	inst.Targets = []*BranchTarget{thenT, elseT}
	return b.insert(inst)
}

func (b *Builder) CreateJump(target *BranchTarget) *Instruction {
	inst := newInstr(b.mod.VoidTy(), OpJump, 0)
	inst.Targets = []*BranchTarget{target}
	return b.insert(inst)
}

func (b *Builder) CreateRet(value Value) *Instruction {
	inst := newInstr(b.mod.VoidTy(), OpRet, 1)
	inst.setOperand(0, value)
	return b.insert(inst)
}

func (b *Builder) CreateRetVoid() *Instruction {
	inst := newInstr(b.mod.VoidTy(), OpRet, 0)
	return b.insert(inst)
}

// CreateCall emits a call. The result is the instruction itself, whose
// type is the callee's return type (void for void functions).
func (b *Builder) CreateCall(fn *Function, args []Value) *Instruction {
	fnTy := fn.Type()
	params := fnTy.ParamTypes()
	if len(args) != len(params) {
		panic(fmt.Sprintf("ir: call to @%s with %d arguments, want %d", fn.Name(), len(args), len(params)))
	}
	for i, a := range args {
		if a.Type() != params[i] {
			panic(fmt.Sprintf("ir: call to @%s argument %d has type %s, want %s", fn.Name(), i, a.Type(), params[i]))
		}
	}
	inst := newInstr(fnTy.ReturnType(), OpCall, len(args)+1)
	inst.setOperand(0, fn)
	for i, a := range args {
		inst.setOperand(i+1, a)
	}
	return b.insert(inst)
}
