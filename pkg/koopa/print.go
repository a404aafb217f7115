// Package koopa implements the textual form of the IR: a canonical
// printer and a round-trip parser.
package koopa

import (
	"fmt"
	"strings"

	"github.com/lidianzhong/nanocc/pkg/ir"
)

// opNames maps opcodes to their spelling in the text form.
var opNames = map[ir.Opcode]string{
	ir.OpAdd: "add", ir.OpSub: "sub", ir.OpMul: "mul", ir.OpDiv: "div", ir.OpMod: "mod",
	ir.OpLt: "lt", ir.OpLe: "le", ir.OpGt: "gt", ir.OpGe: "ge", ir.OpEq: "eq", ir.OpNe: "ne",
	ir.OpAnd: "and", ir.OpOr: "or",
}

type printer struct {
	sb    strings.Builder
	names map[ir.Value]string
}

// Print renders the module in the canonical text form.
func Print(m *ir.Module) string {
	p := &printer{names: make(map[ir.Value]string)}

	for _, g := range m.Globals {
		fmt.Fprintf(&p.sb, "global @%s = alloc %s, %s\n", g.Name(), g.ValueType(), p.initString(g.Init))
	}
	if len(m.Globals) > 0 {
		p.sb.WriteString("\n")
	}

	for _, f := range m.Funcs {
		if f.IsDecl() {
			p.printDecl(f)
		}
	}

	for _, f := range m.Funcs {
		if !f.IsDecl() {
			p.sb.WriteString("\n")
			p.printFunc(f)
		}
	}

	return p.sb.String()
}

func (p *printer) initString(init ir.Value) string {
	switch c := init.(type) {
	case *ir.ConstantInt:
		return fmt.Sprintf("%d", c.Value)
	case *ir.ConstantZero:
		return "zeroinit"
	case *ir.ConstantArray:
		parts := make([]string, len(c.Elems))
		for i, e := range c.Elems {
			parts[i] = p.initString(e)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		panic("koopa: unexpected initializer value")
	}
}

func (p *printer) printDecl(f *ir.Function) {
	fmt.Fprintf(&p.sb, "decl @%s(", f.Name())
	for i, pt := range f.Type().ParamTypes() {
		if i > 0 {
			p.sb.WriteString(", ")
		}
		p.sb.WriteString(pt.String())
	}
	p.sb.WriteString(")")
	if ret := f.Type().ReturnType(); !ret.IsVoid() {
		fmt.Fprintf(&p.sb, ": %s", ret)
	}
	p.sb.WriteString("\n")
}

// assignNames gives every named value its source name and every
// nameless argument, block parameter and non-void instruction a %N
// slot; named values do not consume slot numbers.
func (p *printer) assignNames(f *ir.Function) {
	slot := 0
	next := func() string {
		n := fmt.Sprintf("%d", slot)
		slot++
		return n
	}

	for _, arg := range f.Args {
		if arg.Name() != "" {
			p.names[arg] = arg.Name()
		} else {
			p.names[arg] = next()
		}
	}
	for _, bb := range f.Blocks {
		for _, param := range bb.Params {
			if param.Name() != "" {
				p.names[param] = param.Name()
			} else {
				p.names[param] = next()
			}
		}
		for _, inst := range bb.Insts {
			if !inst.Type().IsVoid() {
				p.names[inst] = next()
			}
		}
	}
}

func (p *printer) valueString(v ir.Value) string {
	switch c := v.(type) {
	case *ir.ConstantInt:
		return fmt.Sprintf("%d", c.Value)
	case *ir.GlobalVariable:
		return "@" + c.Name()
	case *ir.Function:
		return "@" + c.Name()
	case *ir.BasicBlock:
		return "%" + c.Name()
	default:
		name, ok := p.names[v]
		if !ok {
			panic("koopa: value has no printed name")
		}
		return "%" + name
	}
}

func (p *printer) targetString(t *ir.BranchTarget) string {
	var sb strings.Builder
	sb.WriteString("%" + t.Block.Name())
	if len(t.Args) > 0 {
		sb.WriteString("(")
		for i, a := range t.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.valueString(a))
		}
		sb.WriteString(")")
	}
	return sb.String()
}

func (p *printer) printFunc(f *ir.Function) {
	p.assignNames(f)

	fmt.Fprintf(&p.sb, "fun @%s(", f.Name())
	for i, arg := range f.Args {
		if i > 0 {
			p.sb.WriteString(", ")
		}
		fmt.Fprintf(&p.sb, "%s: %s", p.valueString(arg), arg.Type())
	}
	p.sb.WriteString(")")
	if ret := f.Type().ReturnType(); !ret.IsVoid() {
		fmt.Fprintf(&p.sb, ": %s", ret)
	}
	p.sb.WriteString(" {\n")

	for _, bb := range f.Blocks {
		fmt.Fprintf(&p.sb, "%%%s", bb.Name())
		if len(bb.Params) > 0 {
			p.sb.WriteString("(")
			for i, param := range bb.Params {
				if i > 0 {
					p.sb.WriteString(", ")
				}
				fmt.Fprintf(&p.sb, "%s: %s", p.valueString(param), param.Type())
			}
			p.sb.WriteString(")")
		}
		p.sb.WriteString(":\n")
		for _, inst := range bb.Insts {
			p.printInst(inst)
		}
	}

	p.sb.WriteString("}\n")
}

func (p *printer) printInst(inst *ir.Instruction) {
	p.sb.WriteString("  ")
	switch inst.Op() {
	case ir.OpAlloc:
		fmt.Fprintf(&p.sb, "%s = alloc %s", p.valueString(inst), inst.Type().Pointee())
	case ir.OpLoad:
		fmt.Fprintf(&p.sb, "%s = load %s", p.valueString(inst), p.valueString(inst.Operand(0)))
	case ir.OpStore:
		fmt.Fprintf(&p.sb, "store %s, %s", p.valueString(inst.Operand(0)), p.valueString(inst.Operand(1)))
	case ir.OpGetElemPtr:
		fmt.Fprintf(&p.sb, "%s = getelemptr %s, %s",
			p.valueString(inst), p.valueString(inst.Operand(0)), p.valueString(inst.Operand(1)))
	case ir.OpGetPtr:
		fmt.Fprintf(&p.sb, "%s = getptr %s, %s",
			p.valueString(inst), p.valueString(inst.Operand(0)), p.valueString(inst.Operand(1)))
	case ir.OpBr:
		fmt.Fprintf(&p.sb, "br %s, %s, %s",
			p.valueString(inst.Operand(0)), p.targetString(inst.Targets[0]), p.targetString(inst.Targets[1]))
	case ir.OpJump:
		fmt.Fprintf(&p.sb, "jump %s", p.targetString(inst.Targets[0]))
	case ir.OpRet:
		if inst.NumOperands() > 0 {
			fmt.Fprintf(&p.sb, "ret %s", p.valueString(inst.Operand(0)))
		} else {
			p.sb.WriteString("ret")
		}
	case ir.OpCall:
		if !inst.Type().IsVoid() {
			fmt.Fprintf(&p.sb, "%s = ", p.valueString(inst))
		}
		fmt.Fprintf(&p.sb, "call %s(", p.valueString(inst.Operand(0)))
		for i := 1; i < inst.NumOperands(); i++ {
			if i > 1 {
				p.sb.WriteString(", ")
			}
			p.sb.WriteString(p.valueString(inst.Operand(i)))
		}
		p.sb.WriteString(")")
	default:
		name, ok := opNames[inst.Op()]
		if !ok {
			panic(fmt.Sprintf("koopa: unexpected opcode %v", inst.Op()))
		}
		fmt.Fprintf(&p.sb, "%s = %s %s, %s",
			p.valueString(inst), name, p.valueString(inst.Operand(0)), p.valueString(inst.Operand(1)))
	}
	p.sb.WriteString("\n")
}
