package koopa

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lidianzhong/nanocc/pkg/ir"
)

// Parse reads the textual form back into a module. It accepts every
// program Print produces; identity between values is re-established
// through a per-function slot table.
func Parse(text string) (m *ir.Module, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("koopa: %v", r)
		}
	}()

	p := &moduleParser{
		mod:   ir.NewModule(),
		lines: strings.Split(text, "\n"),
	}
	if err := p.run(); err != nil {
		return nil, err
	}
	return p.mod, nil
}

type moduleParser struct {
	mod   *ir.Module
	lines []string
	pos   int
}

func (p *moduleParser) run() error {
	for p.pos < len(p.lines) {
		line := strings.TrimSpace(p.lines[p.pos])
		switch {
		case line == "":
			p.pos++
		case strings.HasPrefix(line, "global "):
			if err := p.parseGlobal(line); err != nil {
				return err
			}
			p.pos++
		case strings.HasPrefix(line, "decl "):
			if err := p.parseDecl(line); err != nil {
				return err
			}
			p.pos++
		case strings.HasPrefix(line, "fun "):
			if err := p.parseFunc(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("koopa: line %d: unexpected %q", p.pos+1, line)
		}
	}
	return nil
}

// line scanner

type lineScanner struct {
	src  string
	pos  int
	line int
}

func newLineScanner(src string, line int) *lineScanner {
	return &lineScanner{src: src, line: line}
}

func (s *lineScanner) errf(format string, args ...interface{}) error {
	return fmt.Errorf("koopa: line %d: %s", s.line, fmt.Sprintf(format, args...))
}

func (s *lineScanner) skipSpace() {
	for s.pos < len(s.src) && (s.src[s.pos] == ' ' || s.src[s.pos] == '\t') {
		s.pos++
	}
}

func (s *lineScanner) atEnd() bool {
	s.skipSpace()
	return s.pos >= len(s.src)
}

func (s *lineScanner) peekByte() byte {
	s.skipSpace()
	if s.pos >= len(s.src) {
		return 0
	}
	return s.src[s.pos]
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// word reads an identifier-like run.
func (s *lineScanner) word() (string, error) {
	s.skipSpace()
	start := s.pos
	for s.pos < len(s.src) && isWordByte(s.src[s.pos]) {
		s.pos++
	}
	if s.pos == start {
		return "", s.errf("expected a word at column %d", s.pos+1)
	}
	return s.src[start:s.pos], nil
}

func (s *lineScanner) expect(c byte) error {
	s.skipSpace()
	if s.pos >= len(s.src) || s.src[s.pos] != c {
		return s.errf("expected '%c'", c)
	}
	s.pos++
	return nil
}

func (s *lineScanner) accept(c byte) bool {
	s.skipSpace()
	if s.pos < len(s.src) && s.src[s.pos] == c {
		s.pos++
		return true
	}
	return false
}

func (s *lineScanner) number() (int32, error) {
	s.skipSpace()
	start := s.pos
	if s.pos < len(s.src) && s.src[s.pos] == '-' {
		s.pos++
	}
	for s.pos < len(s.src) && s.src[s.pos] >= '0' && s.src[s.pos] <= '9' {
		s.pos++
	}
	if s.pos == start || (s.pos == start+1 && s.src[start] == '-') {
		return 0, s.errf("expected a number")
	}
	n, err := strconv.ParseInt(s.src[start:s.pos], 10, 64)
	if err != nil {
		return 0, s.errf("bad number %q", s.src[start:s.pos])
	}
	return int32(n), nil
}

// parseType reads i32, *T or [T, N].
func (p *moduleParser) parseType(s *lineScanner) (*ir.Type, error) {
	switch s.peekByte() {
	case '*':
		s.pos++
		inner, err := p.parseType(s)
		if err != nil {
			return nil, err
		}
		return p.mod.PointerTy(inner), nil
	case '[':
		s.pos++
		elem, err := p.parseType(s)
		if err != nil {
			return nil, err
		}
		if err := s.expect(','); err != nil {
			return nil, err
		}
		n, err := s.number()
		if err != nil {
			return nil, err
		}
		if err := s.expect(']'); err != nil {
			return nil, err
		}
		return p.mod.ArrayTy(elem, int(n)), nil
	default:
		w, err := s.word()
		if err != nil {
			return nil, err
		}
		switch w {
		case "i32":
			return p.mod.Int32Ty(), nil
		case "void":
			return p.mod.VoidTy(), nil
		default:
			return nil, s.errf("unknown type %q", w)
		}
	}
}

// parseInit reads an initializer against the expected type.
func (p *moduleParser) parseInit(s *lineScanner, ty *ir.Type) (ir.Value, error) {
	if s.peekByte() == '{' {
		s.pos++
		if !ty.IsArray() {
			return nil, s.errf("aggregate initializer for non-array type %s", ty)
		}
		var elems []ir.Value
		for {
			elem, err := p.parseInit(s, ty.Elem())
			if err != nil {
				return nil, err
			}
			elems = append(elems, elem)
			if !s.accept(',') {
				break
			}
		}
		if err := s.expect('}'); err != nil {
			return nil, err
		}
		return p.mod.ConstArray(ty, elems), nil
	}
	if s.peekByte() == 'z' {
		w, err := s.word()
		if err != nil {
			return nil, err
		}
		if w != "zeroinit" {
			return nil, s.errf("unknown initializer %q", w)
		}
		return p.mod.ConstZero(ty), nil
	}
	n, err := s.number()
	if err != nil {
		return nil, err
	}
	return p.mod.ConstInt(n), nil
}

func (p *moduleParser) parseGlobal(line string) error {
	s := newLineScanner(line, p.pos+1)
	s.pos = len("global")
	if err := s.expect('@'); err != nil {
		return err
	}
	name, err := s.word()
	if err != nil {
		return err
	}
	if err := s.expect('='); err != nil {
		return err
	}
	w, err := s.word()
	if err != nil {
		return err
	}
	if w != "alloc" {
		return s.errf("expected 'alloc' in global definition")
	}
	ty, err := p.parseType(s)
	if err != nil {
		return err
	}
	if err := s.expect(','); err != nil {
		return err
	}
	init, err := p.parseInit(s, ty)
	if err != nil {
		return err
	}
	p.mod.NewGlobal(name, ty, init, false)
	return nil
}

func (p *moduleParser) parseDecl(line string) error {
	s := newLineScanner(line, p.pos+1)
	s.pos = len("decl")
	if err := s.expect('@'); err != nil {
		return err
	}
	name, err := s.word()
	if err != nil {
		return err
	}
	if err := s.expect('('); err != nil {
		return err
	}
	var params []*ir.Type
	if s.peekByte() != ')' {
		for {
			ty, err := p.parseType(s)
			if err != nil {
				return err
			}
			params = append(params, ty)
			if !s.accept(',') {
				break
			}
		}
	}
	if err := s.expect(')'); err != nil {
		return err
	}
	ret := p.mod.VoidTy()
	if s.accept(':') {
		if ret, err = p.parseType(s); err != nil {
			return err
		}
	}
	p.mod.NewFunction(name, p.mod.FunctionTy(ret, params), ir.ExternalLinkage)
	return nil
}

// parseFunc reads a function definition. Block headers are collected
// in a first pass so branches may target blocks defined later.
func (p *moduleParser) parseFunc() error {
	headLine := strings.TrimSpace(p.lines[p.pos])
	s := newLineScanner(headLine, p.pos+1)
	s.pos = len("fun")
	if err := s.expect('@'); err != nil {
		return err
	}
	name, err := s.word()
	if err != nil {
		return err
	}
	if err := s.expect('('); err != nil {
		return err
	}

	var paramNames []string
	var paramTypes []*ir.Type
	if s.peekByte() != ')' {
		for {
			if err := s.expect('%'); err != nil {
				return err
			}
			pname, err := s.word()
			if err != nil {
				return err
			}
			if err := s.expect(':'); err != nil {
				return err
			}
			ty, err := p.parseType(s)
			if err != nil {
				return err
			}
			paramNames = append(paramNames, pname)
			paramTypes = append(paramTypes, ty)
			if !s.accept(',') {
				break
			}
		}
	}
	if err := s.expect(')'); err != nil {
		return err
	}
	ret := p.mod.VoidTy()
	if s.accept(':') {
		if ret, err = p.parseType(s); err != nil {
			return err
		}
	}
	if err := s.expect('{'); err != nil {
		return err
	}

	f := p.mod.NewFunction(name, p.mod.FunctionTy(ret, paramTypes), ir.InternalLinkage)
	locals := make(map[string]ir.Value)
	for i, arg := range f.Args {
		arg.SetName(paramNames[i])
		locals[paramNames[i]] = arg
	}

	// First pass: block headers.
	blocks := make(map[string]*ir.BasicBlock)
	end := -1
	for i := p.pos + 1; i < len(p.lines); i++ {
		line := strings.TrimSpace(p.lines[i])
		if line == "}" {
			end = i
			break
		}
		if !strings.HasPrefix(line, "%") || !strings.HasSuffix(line, ":") {
			continue
		}
		hs := newLineScanner(line, i+1)
		hs.pos = 1
		bname, err := hs.word()
		if err != nil {
			return err
		}
		bb := f.NewBlock(bname)
		if bb.Name() != bname {
			return hs.errf("duplicate block name %%%s", bname)
		}
		f.AddBlock(bb)
		blocks[bname] = bb
		if hs.accept('(') {
			for {
				if err := hs.expect('%'); err != nil {
					return err
				}
				pname, err := hs.word()
				if err != nil {
					return err
				}
				if err := hs.expect(':'); err != nil {
					return err
				}
				ty, err := p.parseType(hs)
				if err != nil {
					return err
				}
				param := bb.AddParam(ty, "")
				locals[pname] = param
				if !hs.accept(',') {
					break
				}
			}
			if err := hs.expect(')'); err != nil {
				return err
			}
		}
	}
	if end < 0 {
		return fmt.Errorf("koopa: line %d: unterminated function body", p.pos+1)
	}

	// Second pass: instructions.
	b := ir.NewBuilder(p.mod)
	for i := p.pos + 1; i < end; i++ {
		line := strings.TrimSpace(p.lines[i])
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "%") && strings.HasSuffix(line, ":") {
			hs := newLineScanner(line, i+1)
			hs.pos = 1
			bname, _ := hs.word()
			b.SetInsertPoint(blocks[bname])
			continue
		}
		if err := p.parseInst(line, i+1, b, blocks, locals); err != nil {
			return err
		}
	}

	p.pos = end + 1
	return nil
}

// parseRef reads a value reference: a number, @global or %local.
func (p *moduleParser) parseRef(s *lineScanner, locals map[string]ir.Value) (ir.Value, error) {
	switch s.peekByte() {
	case '@':
		s.pos++
		name, err := s.word()
		if err != nil {
			return nil, err
		}
		if f := p.mod.FindFunc(name); f != nil {
			return f, nil
		}
		if g := p.mod.FindGlobal(name); g != nil {
			return g, nil
		}
		return nil, s.errf("undefined global @%s", name)
	case '%':
		s.pos++
		name, err := s.word()
		if err != nil {
			return nil, err
		}
		v, ok := locals[name]
		if !ok {
			return nil, s.errf("undefined local %%%s", name)
		}
		return v, nil
	default:
		n, err := s.number()
		if err != nil {
			return nil, err
		}
		return p.mod.ConstInt(n), nil
	}
}

func (p *moduleParser) parseTarget(s *lineScanner, blocks map[string]*ir.BasicBlock, locals map[string]ir.Value) (*ir.BranchTarget, error) {
	if err := s.expect('%'); err != nil {
		return nil, err
	}
	name, err := s.word()
	if err != nil {
		return nil, err
	}
	bb, ok := blocks[name]
	if !ok {
		return nil, s.errf("undefined block %%%s", name)
	}
	var args []ir.Value
	if s.accept('(') {
		for {
			arg, err := p.parseRef(s, locals)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if !s.accept(',') {
				break
			}
		}
		if err := s.expect(')'); err != nil {
			return nil, err
		}
	}
	return ir.NewTarget(bb, args...), nil
}

var textOpcodes = map[string]ir.Opcode{
	"add": ir.OpAdd, "sub": ir.OpSub, "mul": ir.OpMul, "div": ir.OpDiv, "mod": ir.OpMod,
	"lt": ir.OpLt, "le": ir.OpLe, "gt": ir.OpGt, "ge": ir.OpGe, "eq": ir.OpEq, "ne": ir.OpNe,
	"and": ir.OpAnd, "or": ir.OpOr,
}

func (p *moduleParser) parseInst(line string, lineNo int, b *ir.Builder, blocks map[string]*ir.BasicBlock, locals map[string]ir.Value) error {
	s := newLineScanner(line, lineNo)

	var resultName string
	if s.peekByte() == '%' {
		s.pos++
		name, err := s.word()
		if err != nil {
			return err
		}
		resultName = name
		if err := s.expect('='); err != nil {
			return err
		}
	}

	op, err := s.word()
	if err != nil {
		return err
	}

	var result ir.Value
	switch op {
	case "alloc":
		ty, err := p.parseType(s)
		if err != nil {
			return err
		}
		result = b.CreateAlloca(ty)
	case "load":
		src, err := p.parseRef(s, locals)
		if err != nil {
			return err
		}
		result = b.CreateLoad(src)
	case "store":
		val, err := p.parseRef(s, locals)
		if err != nil {
			return err
		}
		if err := s.expect(','); err != nil {
			return err
		}
		dest, err := p.parseRef(s, locals)
		if err != nil {
			return err
		}
		b.CreateStore(val, dest)
	case "getelemptr":
		base, err := p.parseRef(s, locals)
		if err != nil {
			return err
		}
		if err := s.expect(','); err != nil {
			return err
		}
		idx, err := p.parseRef(s, locals)
		if err != nil {
			return err
		}
		result = b.CreateGetElemPtr(base, idx)
	case "getptr":
		base, err := p.parseRef(s, locals)
		if err != nil {
			return err
		}
		if err := s.expect(','); err != nil {
			return err
		}
		idx, err := p.parseRef(s, locals)
		if err != nil {
			return err
		}
		result = b.CreateGetPtr(base, idx)
	case "br":
		cond, err := p.parseRef(s, locals)
		if err != nil {
			return err
		}
		if err := s.expect(','); err != nil {
			return err
		}
		thenT, err := p.parseTarget(s, blocks, locals)
		if err != nil {
			return err
		}
		if err := s.expect(','); err != nil {
			return err
		}
		elseT, err := p.parseTarget(s, blocks, locals)
		if err != nil {
			return err
		}
		b.CreateCondBr(cond, thenT, elseT)
	case "jump":
		target, err := p.parseTarget(s, blocks, locals)
		if err != nil {
			return err
		}
		b.CreateJump(target)
	case "ret":
		if s.atEnd() {
			b.CreateRetVoid()
		} else {
			val, err := p.parseRef(s, locals)
			if err != nil {
				return err
			}
			b.CreateRet(val)
		}
	case "call":
		callee, err := p.parseRef(s, locals)
		if err != nil {
			return err
		}
		fn, ok := callee.(*ir.Function)
		if !ok {
			return s.errf("call target is not a function")
		}
		if err := s.expect('('); err != nil {
			return err
		}
		var args []ir.Value
		if s.peekByte() != ')' {
			for {
				arg, err := p.parseRef(s, locals)
				if err != nil {
					return err
				}
				args = append(args, arg)
				if !s.accept(',') {
					break
				}
			}
		}
		if err := s.expect(')'); err != nil {
			return err
		}
		result = b.CreateCall(fn, args)
	default:
		opcode, ok := textOpcodes[op]
		if !ok {
			return s.errf("unknown instruction %q", op)
		}
		lhs, err := p.parseRef(s, locals)
		if err != nil {
			return err
		}
		if err := s.expect(','); err != nil {
			return err
		}
		rhs, err := p.parseRef(s, locals)
		if err != nil {
			return err
		}
		result = b.CreateBinaryOp(opcode, lhs, rhs)
	}

	if resultName != "" {
		if result == nil {
			return s.errf("instruction %q produces no result", op)
		}
		locals[resultName] = result
	}
	return nil
}
