package irgen

import (
	"github.com/lidianzhong/nanocc/pkg/ast"
	"github.com/lidianzhong/nanocc/pkg/ir"
	"github.com/lidianzhong/nanocc/pkg/token"
	"github.com/lidianzhong/nanocc/pkg/util"
)

var binaryOpcodes = map[token.Type]ir.Opcode{
	token.Plus:  ir.OpAdd,
	token.Minus: ir.OpSub,
	token.Star:  ir.OpMul,
	token.Slash: ir.OpDiv,
	token.Rem:   ir.OpMod,
	token.Lt:    ir.OpLt,
	token.Lte:   ir.OpLe,
	token.Gt:    ir.OpGt,
	token.Gte:   ir.OpGe,
	token.EqEq:  ir.OpEq,
	token.Neq:   ir.OpNe,
}

// evalRVal evaluates an expression for its value.
func (g *Generator) evalRVal(node *ast.Node) ir.Value {
	switch node.Kind {
	case ast.Number:
		return g.mod.ConstInt(node.Data.(ast.NumberNode).Value)
	case ast.LVal:
		return g.evalLValAsRVal(node)
	case ast.Unary:
		return g.evalUnary(node)
	case ast.Binary:
		return g.evalBinary(node)
	case ast.FuncCall:
		return g.evalCall(node)
	default:
		panic("irgen: unexpected expression kind")
	}
}

func (g *Generator) evalLValAsRVal(node *ast.Node) ir.Value {
	d := node.Data.(ast.LValNode)
	val := g.lookup(d.Name)
	if val == nil {
		util.Error(node.Tok, "Undefined name '%s'.", d.Name)
	}

	// A scalar constant reads as its folded value.
	if c, ok := val.(*ir.ConstantInt); ok {
		if len(d.Indices) > 0 {
			util.Error(node.Tok, "'%s' is not an array.", d.Name)
		}
		return c
	}

	ptr := g.evalLVal(node)

	// Array-to-pointer decay: reading an array l-value yields a
	// pointer to its first element.
	if ptr.Type().Pointee().IsArray() {
		return g.b.CreateGetElemPtr(ptr, g.mod.ConstInt(0))
	}
	return g.b.CreateLoad(ptr)
}

// evalLVal computes the address of an l-value. The returned value is a
// pointer to the selected element, or to a sub-array prefix when fewer
// indices were given than the array's rank.
func (g *Generator) evalLVal(node *ast.Node) ir.Value {
	d := node.Data.(ast.LValNode)
	val := g.lookup(d.Name)
	if val == nil {
		util.Error(node.Tok, "Undefined name '%s'.", d.Name)
	}

	switch val.(type) {
	case *ir.ConstantInt:
		util.Error(node.Tok, "Cannot assign to constant '%s'.", d.Name)
	case *ir.Function:
		util.Error(node.Tok, "'%s' is a function, not a variable.", d.Name)
	}

	if len(d.Indices) == 0 {
		return val
	}

	// A decayed array parameter's slot holds a pointer: the first
	// index loads it and advances with get_ptr, the rest step into
	// the array with get_elem_ptr.
	isPtrParam := val.Type().Pointee().IsPointer()

	ptr := val
	for i, idxNode := range d.Indices {
		idx := g.evalRVal(idxNode)
		if i == 0 && isPtrParam {
			ptr = g.b.CreateLoad(ptr)
			ptr = g.b.CreateGetPtr(ptr, idx)
		} else {
			if !ptr.Type().Pointee().IsArray() {
				util.Error(idxNode.Tok, "Too many indices for '%s'.", d.Name)
			}
			ptr = g.b.CreateGetElemPtr(ptr, idx)
		}
	}
	return ptr
}

func (g *Generator) evalUnary(node *ast.Node) ir.Value {
	d := node.Data.(ast.UnaryNode)
	val := g.evalRVal(d.Exp)
	switch d.Op {
	case token.Plus:
		return val
	case token.Minus:
		return g.b.CreateBinaryOp(ir.OpSub, g.mod.ConstInt(0), val)
	case token.Not:
		return g.b.CreateBinaryOp(ir.OpEq, val, g.mod.ConstInt(0))
	default:
		panic("irgen: unexpected unary operator")
	}
}

func (g *Generator) evalBinary(node *ast.Node) ir.Value {
	d := node.Data.(ast.BinaryNode)

	if d.Op == token.AndAnd {
		return g.evalLogicalAnd(d)
	}
	if d.Op == token.OrOr {
		return g.evalLogicalOr(d)
	}

	lhs := g.evalRVal(d.Lhs)
	rhs := g.evalRVal(d.Rhs)
	op, ok := binaryOpcodes[d.Op]
	if !ok {
		panic("irgen: unexpected binary operator")
	}
	return g.b.CreateBinaryOp(op, lhs, rhs)
}

// evalLogicalAnd lowers `a && b` with a block parameter carrying the
// result into the join block, keeping the IR PHI-free yet SSA.
func (g *Generator) evalLogicalAnd(d ast.BinaryNode) ir.Value {
	lhs := g.evalRVal(d.Lhs)

	// When the left side folds, the right side decides the value (or
	// the whole expression is 0 and the right side is never lowered).
	if cl, ok := lhs.(*ir.ConstantInt); ok {
		if cl.Value == 0 {
			return g.mod.ConstInt(0)
		}
		rhs := g.evalRVal(d.Rhs)
		return g.b.CreateBinaryOp(ir.OpNe, rhs, g.mod.ConstInt(0))
	}

	f := g.curFunc
	rhsBB := f.NewBlock("and_rhs")
	endBB := f.NewBlock("and_end")
	result := endBB.AddParam(g.mod.Int32Ty(), "")

	g.b.CreateCondBr(lhs, ir.NewTarget(rhsBB), ir.NewTarget(endBB, g.mod.ConstInt(0)))

	f.AddBlock(rhsBB)
	g.b.SetInsertPoint(rhsBB)
	rhs := g.evalRVal(d.Rhs)
	rhsBool := g.b.CreateBinaryOp(ir.OpNe, rhs, g.mod.ConstInt(0))
	g.b.CreateJump(ir.NewTarget(endBB, rhsBool))

	f.AddBlock(endBB)
	g.b.SetInsertPoint(endBB)
	return result
}

func (g *Generator) evalLogicalOr(d ast.BinaryNode) ir.Value {
	lhs := g.evalRVal(d.Lhs)

	if cl, ok := lhs.(*ir.ConstantInt); ok {
		if cl.Value != 0 {
			return g.mod.ConstInt(1)
		}
		rhs := g.evalRVal(d.Rhs)
		return g.b.CreateBinaryOp(ir.OpNe, rhs, g.mod.ConstInt(0))
	}

	f := g.curFunc
	rhsBB := f.NewBlock("or_rhs")
	endBB := f.NewBlock("or_end")
	result := endBB.AddParam(g.mod.Int32Ty(), "")

	g.b.CreateCondBr(lhs, ir.NewTarget(endBB, g.mod.ConstInt(1)), ir.NewTarget(rhsBB))

	f.AddBlock(rhsBB)
	g.b.SetInsertPoint(rhsBB)
	rhs := g.evalRVal(d.Rhs)
	rhsBool := g.b.CreateBinaryOp(ir.OpNe, rhs, g.mod.ConstInt(0))
	g.b.CreateJump(ir.NewTarget(endBB, rhsBool))

	f.AddBlock(endBB)
	g.b.SetInsertPoint(endBB)
	return result
}

func (g *Generator) evalCall(node *ast.Node) ir.Value {
	d := node.Data.(ast.FuncCallNode)
	val := g.lookup(d.Name)
	if val == nil {
		util.Error(node.Tok, "Undefined function '%s'.", d.Name)
	}
	fn, ok := val.(*ir.Function)
	if !ok {
		util.Error(node.Tok, "'%s' is not a function.", d.Name)
	}
	params := fn.Type().ParamTypes()
	if len(d.Args) != len(params) {
		util.Error(node.Tok, "'%s' expects %d argument(s), got %d.", d.Name, len(params), len(d.Args))
	}
	var args []ir.Value
	for i, argNode := range d.Args {
		arg := g.evalRVal(argNode)
		if arg.Type() != params[i] {
			util.Error(argNode.Tok, "Argument %d to '%s' has type %s, expected %s.",
				i+1, d.Name, arg.Type(), params[i])
		}
		args = append(args, arg)
	}
	return g.b.CreateCall(fn, args)
}

// Constant expressions

// evalConstExpr evaluates an expression that must be known at compile
// time; anything else is a fatal diagnostic.
func (g *Generator) evalConstExpr(node *ast.Node) int32 {
	switch node.Kind {
	case ast.Number:
		return node.Data.(ast.NumberNode).Value
	case ast.Binary:
		d := node.Data.(ast.BinaryNode)
		lhs := g.evalConstExpr(d.Lhs)
		switch d.Op {
		case token.AndAnd:
			if lhs == 0 {
				return 0
			}
			return boolToInt(g.evalConstExpr(d.Rhs) != 0)
		case token.OrOr:
			if lhs != 0 {
				return 1
			}
			return boolToInt(g.evalConstExpr(d.Rhs) != 0)
		}
		rhs := g.evalConstExpr(d.Rhs)
		op, ok := binaryOpcodes[d.Op]
		if !ok {
			panic("irgen: unexpected binary operator in constant expression")
		}
		return ir.FoldBinary(op, lhs, rhs)
	case ast.Unary:
		d := node.Data.(ast.UnaryNode)
		val := g.evalConstExpr(d.Exp)
		switch d.Op {
		case token.Plus:
			return val
		case token.Minus:
			return -val
		case token.Not:
			return boolToInt(val == 0)
		}
		panic("irgen: unexpected unary operator in constant expression")
	case ast.LVal:
		return g.evalConstLVal(node)
	case ast.FuncCall:
		util.Error(node.Tok, "Function call in a constant expression.")
	}
	util.Error(node.Tok, "Expression is not constant.")
	return 0
}

func boolToInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// evalConstLVal resolves a named constant scalar or walks a global
// initializer along the index chain.
func (g *Generator) evalConstLVal(node *ast.Node) int32 {
	d := node.Data.(ast.LValNode)
	val := g.lookup(d.Name)
	if val == nil {
		util.Error(node.Tok, "Undefined name '%s'.", d.Name)
	}

	if c, ok := val.(*ir.ConstantInt); ok {
		return c.Value
	}

	gv, ok := val.(*ir.GlobalVariable)
	if !ok {
		util.Error(node.Tok, "'%s' is not usable in a constant expression.", d.Name)
	}

	curr := gv.Init
	for _, idxNode := range d.Indices {
		idx := g.evalConstExpr(idxNode)
		switch c := curr.(type) {
		case *ir.ConstantArray:
			if int(idx) < 0 || int(idx) >= len(c.Elems) {
				util.Error(idxNode.Tok, "Constant index %d is out of bounds.", idx)
			}
			curr = c.Elems[idx]
		case *ir.ConstantZero:
			return 0
		default:
			util.Error(idxNode.Tok, "Too many indices for '%s'.", d.Name)
		}
	}

	switch c := curr.(type) {
	case *ir.ConstantInt:
		return c.Value
	case *ir.ConstantZero:
		return 0
	}
	util.Error(node.Tok, "'%s' does not name an integer constant.", d.Name)
	return 0
}

// Initializer flattening

// arrayDims unrolls [d1][d2]...[dk] from an array type, outermost first.
func arrayDims(ty *ir.Type) []int {
	var dims []int
	for ty.IsArray() {
		dims = append(dims, ty.ArrayLen())
		ty = ty.Elem()
	}
	return dims
}

// flattenInit produces exactly total values in row-major order. A
// nested brace list starting at flat position p covers the largest
// aligned suffix region that divides p; each list's unfilled tail is
// padded with zero.
func (g *Generator) flattenInit(init *ast.Node, dims []int, eval func(*ast.Node) ir.Value, zero func() ir.Value) []ir.Value {
	total := 1
	for _, d := range dims {
		total *= d
	}

	// suffix[j] = dims[j] * ... * dims[k-1]
	suffix := make([]int, len(dims))
	prod := 1
	for j := len(dims) - 1; j >= 0; j-- {
		prod *= dims[j]
		suffix[j] = prod
	}

	var out []ir.Value

	var fill func(node *ast.Node, region int)
	fill = func(node *ast.Node, region int) {
		d := node.Data.(ast.InitValNode)
		start := len(out)

		if d.Expr != nil {
			out = append(out, eval(d.Expr))
			return
		}

		for _, child := range d.List {
			if len(out)-start >= region {
				util.Error(child.Tok, "Too many initializers.")
			}
			cd := child.Data.(ast.InitValNode)
			if cd.Expr != nil {
				out = append(out, eval(cd.Expr))
				continue
			}
			// A nested list consumes the largest aligned sub-array
			// at the current position.
			p := len(out)
			sub := 1
			for _, s := range suffix[1:] {
				if s < region && p%s == 0 {
					sub = s
					break
				}
			}
			fill(child, sub)
		}

		for len(out)-start < region {
			out = append(out, zero())
		}
	}

	fill(init, total)
	for len(out) < total {
		out = append(out, zero())
	}
	if len(out) > total {
		util.Error(init.Tok, "Too many initializers.")
	}
	return out
}

// buildGlobalInit flattens a global initializer to constants and
// reconstructs the nested ConstantArray matching the type tree.
func (g *Generator) buildGlobalInit(init *ast.Node, ty *ir.Type) ir.Value {
	dims := arrayDims(ty)
	flat := g.flattenInit(init, dims,
		func(exp *ast.Node) ir.Value { return g.mod.ConstInt(g.evalConstExpr(exp)) },
		func() ir.Value { return g.mod.ConstInt(0) },
	)

	pos := 0
	var build func(currType *ir.Type) ir.Value
	build = func(currType *ir.Type) ir.Value {
		if currType.IsInt32() {
			v := flat[pos]
			pos++
			return v
		}
		elems := make([]ir.Value, 0, currType.ArrayLen())
		for i := 0; i < currType.ArrayLen(); i++ {
			elems = append(elems, build(currType.Elem()))
		}
		return g.mod.ConstArray(currType, elems)
	}
	return build(ty)
}

// initLocalArray stores the flattened initializer element-by-element
// through get_elem_ptr chains with constant indices.
func (g *Generator) initLocalArray(init *ast.Node, baseAddr ir.Value, ty *ir.Type) {
	dims := arrayDims(ty)
	flat := g.flattenInit(init, dims,
		func(exp *ast.Node) ir.Value { return g.evalRVal(exp) },
		func() ir.Value { return g.mod.ConstInt(0) },
	)

	idx := make([]int, len(dims))
	for _, val := range flat {
		ptr := baseAddr
		for _, i := range idx {
			ptr = g.b.CreateGetElemPtr(ptr, g.mod.ConstInt(int32(i)))
		}
		g.b.CreateStore(val, ptr)

		for d := len(dims) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < dims[d] {
				break
			}
			idx[d] = 0
		}
	}
}
