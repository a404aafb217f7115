// Package ir implements the Koopa intermediate representation: a typed,
// SSA-like IR that joins values at control-flow merges with basic-block
// parameters instead of PHI nodes.
package ir

import (
	"fmt"
)

type Opcode int

const (
	OpAdd Opcode = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpLt
	OpLe
	OpGt
	OpGe
	OpEq
	OpNe
	OpAnd
	OpOr
	OpAlloc
	OpLoad
	OpStore
	OpGetElemPtr
	OpGetPtr
	OpBr
	OpJump
	OpRet
	OpCall
)

var opcodeNames = map[Opcode]string{
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpMod: "mod",
	OpLt: "lt", OpLe: "le", OpGt: "gt", OpGe: "ge", OpEq: "eq", OpNe: "ne",
	OpAnd: "and", OpOr: "or",
	OpAlloc: "alloc", OpLoad: "load", OpStore: "store",
	OpGetElemPtr: "get_elem_ptr", OpGetPtr: "get_ptr",
	OpBr: "br", OpJump: "jump", OpRet: "ret", OpCall: "call",
}

func (op Opcode) String() string { return opcodeNames[op] }

// Value is anything an instruction may reference: constants, globals,
// functions, arguments, block parameters, blocks and instructions.
type Value interface {
	Type() *Type
	Uses() []*Use
	addUse(u *Use)
}

// Use is one operand cell: it records both the referenced value and
// the instruction holding the reference, for def-use walks.
type Use struct {
	User *Instruction
	Val  Value
}

type valueBase struct {
	ty   *Type
	uses []*Use
}

func (v *valueBase) Type() *Type   { return v.ty }
func (v *valueBase) Uses() []*Use  { return v.uses }
func (v *valueBase) addUse(u *Use) { v.uses = append(v.uses, u) }

// --- Constants ---

type ConstantInt struct {
	valueBase
	Value int32
}

// ConstantZero is the zero initializer for a whole aggregate (or scalar).
type ConstantZero struct {
	valueBase
}

// ConstantArray is only used inside global initializers.
type ConstantArray struct {
	valueBase
	Elems []Value
}

func (m *Module) ConstInt(v int32) *ConstantInt {
	return &ConstantInt{valueBase: valueBase{ty: m.Int32Ty()}, Value: v}
}

func (m *Module) ConstZero(ty *Type) *ConstantZero {
	return &ConstantZero{valueBase: valueBase{ty: ty}}
}

func (m *Module) ConstArray(ty *Type, elems []Value) *ConstantArray {
	if !ty.IsArray() {
		panic("ir: ConstArray requires an array type")
	}
	if len(elems) != ty.ArrayLen() {
		panic(fmt.Sprintf("ir: ConstArray element count %d does not match [%s]", len(elems), ty))
	}
	return &ConstantArray{valueBase: valueBase{ty: ty}, Elems: elems}
}

// --- Module ---

type Module struct {
	types   *typeInterner
	Globals []*GlobalVariable
	Funcs   []*Function
	names   map[string]bool
}

func NewModule() *Module {
	return &Module{types: newTypeInterner(), names: make(map[string]bool)}
}

func (m *Module) claimName(name string) {
	if m.names[name] {
		panic(fmt.Sprintf("ir: duplicate module-level name %q", name))
	}
	m.names[name] = true
}

// FindFunc returns the module's function with the given name, or nil.
func (m *Module) FindFunc(name string) *Function {
	for _, f := range m.Funcs {
		if f.name == name {
			return f
		}
	}
	return nil
}

// FindGlobal returns the module's global with the given name, or nil.
func (m *Module) FindGlobal(name string) *GlobalVariable {
	for _, g := range m.Globals {
		if g.name == name {
			return g
		}
	}
	return nil
}

// --- GlobalVariable ---

type GlobalVariable struct {
	valueBase
	name    string
	Init    Value
	IsConst bool
}

func (g *GlobalVariable) Name() string { return g.name }

// ValueType returns the type of the stored object (the global itself
// is a pointer to it).
func (g *GlobalVariable) ValueType() *Type { return g.ty.Pointee() }

// NewGlobal creates a global holding a value of type ty; the global's
// own type is pointer-to-ty.
func (m *Module) NewGlobal(name string, ty *Type, init Value, isConst bool) *GlobalVariable {
	m.claimName(name)
	if init == nil {
		panic("ir: global requires an initializer")
	}
	g := &GlobalVariable{
		valueBase: valueBase{ty: m.PointerTy(ty)},
		name:      name,
		Init:      init,
		IsConst:   isConst,
	}
	m.Globals = append(m.Globals, g)
	return g
}

// --- Function ---

type Linkage int

const (
	ExternalLinkage Linkage = iota
	InternalLinkage
)

type Function struct {
	valueBase
	name       string
	Linkage    Linkage
	Args       []*Argument
	Blocks     []*BasicBlock
	Parent     *Module
	blockNames map[string]bool
}

func (f *Function) Name() string { return f.name }

// IsDecl reports whether this function is a declaration (no body).
func (f *Function) IsDecl() bool { return len(f.Blocks) == 0 }

func (m *Module) NewFunction(name string, ty *Type, linkage Linkage) *Function {
	if !ty.IsFunction() {
		panic("ir: NewFunction requires a function type")
	}
	m.claimName(name)
	f := &Function{
		valueBase:  valueBase{ty: ty},
		name:       name,
		Linkage:    linkage,
		Parent:     m,
		blockNames: make(map[string]bool),
	}
	for i, pt := range ty.ParamTypes() {
		f.Args = append(f.Args, &Argument{
			valueBase: valueBase{ty: pt},
			Parent:    f,
			Index:     i,
		})
	}
	m.Funcs = append(m.Funcs, f)
	return f
}

type Argument struct {
	valueBase
	name   string
	Parent *Function
	Index  int
}

func (a *Argument) Name() string        { return a.name }
func (a *Argument) SetName(name string) { a.name = name }

// --- BasicBlock ---

type BasicBlock struct {
	valueBase
	name   string
	Parent *Function
	Params []*BlockParam
	Insts  []*Instruction
}

func (b *BasicBlock) Name() string { return b.name }

// NewBlock creates a block with a function-unique name. The block is
// not attached; callers add it with AddBlock once its position in the
// emission order is known.
func (f *Function) NewBlock(name string) *BasicBlock {
	unique := name
	for n := 1; f.blockNames[unique]; n++ {
		unique = fmt.Sprintf("%s_%d", name, n)
	}
	f.blockNames[unique] = true
	return &BasicBlock{
		valueBase: valueBase{ty: f.Parent.LabelTy()},
		name:      unique,
		Parent:    f,
	}
}

// AddBlock appends the block to the function's emission order.
func (f *Function) AddBlock(b *BasicBlock) {
	f.Blocks = append(f.Blocks, b)
}

// BlockParam is a typed formal parameter of a basic block; it realizes
// SSA value join at control-flow merges.
type BlockParam struct {
	valueBase
	name   string
	Parent *BasicBlock
	Index  int
}

func (p *BlockParam) Name() string { return p.name }

func (b *BasicBlock) AddParam(ty *Type, name string) *BlockParam {
	p := &BlockParam{
		valueBase: valueBase{ty: ty},
		name:      name,
		Parent:    b,
		Index:     len(b.Params),
	}
	b.Params = append(b.Params, p)
	return p
}

func (b *BasicBlock) Append(inst *Instruction) {
	b.Insts = append(b.Insts, inst)
	inst.Parent = b
}

// Terminated reports whether the block already ends in br/jump/ret.
func (b *BasicBlock) Terminated() bool {
	if len(b.Insts) == 0 {
		return false
	}
	return b.Insts[len(b.Insts)-1].IsTerminator()
}

// --- Instruction ---

// BranchTarget pairs a destination block with the actual arguments for
// the destination's block parameters.
type BranchTarget struct {
	Block *BasicBlock
	Args  []Value
}

func NewTarget(b *BasicBlock, args ...Value) *BranchTarget {
	if len(args) != len(b.Params) {
		panic(fmt.Sprintf("ir: block %%%s takes %d arguments, got %d", b.name, len(b.Params), len(args)))
	}
	for i, a := range args {
		if a.Type() != b.Params[i].Type() {
			panic(fmt.Sprintf("ir: block %%%s argument %d has type %s, want %s", b.name, i, a.Type(), b.Params[i].Type()))
		}
	}
	return &BranchTarget{Block: b, Args: args}
}

type Instruction struct {
	valueBase
	op       Opcode
	operands []*Use
	Parent   *BasicBlock
	// Targets holds [then, else] for br and [target] for jump.
	Targets []*BranchTarget
}

// newInstr builds an unattached instruction with nOperands empty slots.
func newInstr(ty *Type, op Opcode, nOperands int) *Instruction {
	return &Instruction{
		valueBase: valueBase{ty: ty},
		op:        op,
		operands:  make([]*Use, nOperands),
	}
}

func (i *Instruction) Op() Opcode       { return i.op }
func (i *Instruction) NumOperands() int { return len(i.operands) }

func (i *Instruction) Operand(n int) Value {
	return i.operands[n].Val
}

func (i *Instruction) setOperand(n int, v Value) {
	u := &Use{User: i, Val: v}
	i.operands[n] = u
	v.addUse(u)
}

func (i *Instruction) IsTerminator() bool {
	return i.op == OpBr || i.op == OpJump || i.op == OpRet
}
