// Package irgen lowers the SysY AST to Koopa IR.
package irgen

import (
	"github.com/lidianzhong/nanocc/pkg/ast"
	"github.com/lidianzhong/nanocc/pkg/config"
	"github.com/lidianzhong/nanocc/pkg/ir"
	"github.com/lidianzhong/nanocc/pkg/token"
	"github.com/lidianzhong/nanocc/pkg/util"
)

type Generator struct {
	mod *ir.Module
	b   *ir.Builder
	cfg *config.Config

	// scopes is the symbol-table stack; scopes[0] is the module scope.
	scopes  []map[string]ir.Value
	curFunc *ir.Function

	breakTargets    []*ir.BasicBlock
	continueTargets []*ir.BasicBlock
}

func NewGenerator(cfg *config.Config) *Generator {
	mod := ir.NewModule()
	g := &Generator{
		mod:    mod,
		b:      ir.NewBuilder(mod),
		cfg:    cfg,
		scopes: []map[string]ir.Value{make(map[string]ir.Value)},
	}
	g.registerLibFunctions()
	return g
}

// Generate lowers a CompUnit and returns the finished module.
func Generate(root *ast.Node, cfg *config.Config) *ir.Module {
	g := NewGenerator(cfg)
	g.genCompUnit(root)
	return g.mod
}

// Symbol table

func (g *Generator) enterScope() {
	g.scopes = append(g.scopes, make(map[string]ir.Value))
}

func (g *Generator) exitScope() {
	g.scopes = g.scopes[:len(g.scopes)-1]
}

func (g *Generator) isGlobalScope() bool { return len(g.scopes) == 1 }

func (g *Generator) define(tok token.Token, name string, val ir.Value) {
	top := g.scopes[len(g.scopes)-1]
	if _, exists := top[name]; exists {
		util.Error(tok, "Redefinition of '%s'.", name)
	}
	top[name] = val
}

func (g *Generator) lookup(name string) ir.Value {
	for i := len(g.scopes) - 1; i >= 0; i-- {
		if val, ok := g.scopes[i][name]; ok {
			return val
		}
	}
	return nil
}

// Library functions

func (g *Generator) registerLibFunctions() {
	i32 := g.mod.Int32Ty()
	voidTy := g.mod.VoidTy()
	ptrI32 := g.mod.PointerTy(i32)

	addLibFunc := func(name string, ret *ir.Type, params ...*ir.Type) {
		ft := g.mod.FunctionTy(ret, params)
		f := g.mod.NewFunction(name, ft, ir.ExternalLinkage)
		g.scopes[0][name] = f
	}

	addLibFunc("getint", i32)
	addLibFunc("getch", i32)
	addLibFunc("getarray", i32, ptrI32)
	addLibFunc("putint", voidTy, i32)
	addLibFunc("putch", voidTy, i32)
	addLibFunc("putarray", voidTy, i32, ptrI32)
	addLibFunc("starttime", voidTy)
	addLibFunc("stoptime", voidTy)
}

// Top level

func (g *Generator) genCompUnit(node *ast.Node) {
	d := node.Data.(ast.CompUnitNode)
	for _, item := range d.Items {
		switch item.Kind {
		case ast.FuncDef:
			g.genFuncDef(item)
		case ast.ConstDecl:
			g.genConstDecl(item)
		case ast.VarDecl:
			g.genVarDecl(item)
		default:
			panic("irgen: unexpected global item")
		}
	}
}

func (g *Generator) genFuncDef(node *ast.Node) {
	d := node.Data.(ast.FuncDefNode)

	retType := g.mod.Int32Ty()
	if d.RetType == "void" {
		retType = g.mod.VoidTy()
	}

	// A "*int" parameter with inner dims d1..dk becomes
	// *[...[i32, dk]..., d1]: dimensions are applied innermost-first.
	var paramTypes []*ir.Type
	for _, p := range d.Params {
		pd := p.Data.(ast.FuncFParamNode)
		paramType := g.mod.Int32Ty()
		if pd.BType == "*int" {
			for i := len(pd.Dims) - 1; i >= 0; i-- {
				dim := g.evalConstExpr(pd.Dims[i])
				paramType = g.mod.ArrayTy(paramType, int(dim))
			}
			paramType = g.mod.PointerTy(paramType)
		}
		paramTypes = append(paramTypes, paramType)
	}

	ft := g.mod.FunctionTy(retType, paramTypes)
	if g.mod.FindFunc(d.Name) != nil || g.mod.FindGlobal(d.Name) != nil {
		util.Error(node.Tok, "Redefinition of '%s'.", d.Name)
	}
	f := g.mod.NewFunction(d.Name, ft, ir.InternalLinkage)
	g.define(node.Tok, d.Name, f)
	g.curFunc = f

	entry := f.NewBlock("entry")
	f.AddBlock(entry)
	g.b.SetInsertPoint(entry)

	g.enterScope() // parameter scope

	for i, arg := range f.Args {
		pd := d.Params[i].Data.(ast.FuncFParamNode)
		arg.SetName(pd.Name)
		slot := g.b.CreateAlloca(paramTypes[i])
		g.b.CreateStore(arg, slot)
		g.define(d.Params[i].Tok, pd.Name, slot)
	}

	g.genBlock(d.Body)

	if !g.b.InsertBlock().Terminated() {
		if retType.IsVoid() {
			g.b.CreateRetVoid()
		} else {
			g.b.CreateRet(g.mod.ConstInt(0))
		}
	}

	g.exitScope()
	g.curFunc = nil
}

// Statements

func (g *Generator) genBlock(node *ast.Node) {
	d := node.Data.(ast.BlockNode)
	g.enterScope()
	for _, item := range d.Items {
		if g.b.InsertBlock().Terminated() {
			if g.cfg != nil && g.cfg.IsWarningEnabled(config.WarnUnreachableCode) {
				util.Warnf(item.Tok, "unreachable-code", "Unreachable code.")
			}
			break
		}
		g.genBlockItem(item)
	}
	g.exitScope()
}

func (g *Generator) genBlockItem(node *ast.Node) {
	switch node.Kind {
	case ast.ConstDecl:
		g.genConstDecl(node)
	case ast.VarDecl:
		g.genVarDecl(node)
	default:
		g.genStmt(node)
	}
}

func (g *Generator) genStmt(node *ast.Node) {
	switch node.Kind {
	case ast.Block:
		g.genBlock(node)
	case ast.Assign:
		g.genAssign(node)
	case ast.ExpStmt:
		d := node.Data.(ast.ExpStmtNode)
		if d.Exp != nil {
			g.evalRVal(d.Exp)
			if d.Exp.Kind != ast.FuncCall && g.cfg != nil && g.cfg.IsWarningEnabled(config.WarnUnusedValue) {
				util.Warnf(node.Tok, "unused-value", "Expression result is unused.")
			}
		}
	case ast.If:
		g.genIf(node)
	case ast.While:
		g.genWhile(node)
	case ast.Break:
		if len(g.breakTargets) == 0 {
			util.Error(node.Tok, "'break' outside of a loop.")
		}
		g.b.CreateJump(ir.NewTarget(g.breakTargets[len(g.breakTargets)-1]))
	case ast.Continue:
		if len(g.continueTargets) == 0 {
			util.Error(node.Tok, "'continue' outside of a loop.")
		}
		g.b.CreateJump(ir.NewTarget(g.continueTargets[len(g.continueTargets)-1]))
	case ast.Return:
		g.genReturn(node)
	default:
		panic("irgen: unexpected statement kind")
	}
}

func (g *Generator) genAssign(node *ast.Node) {
	d := node.Data.(ast.AssignNode)
	lval := g.evalLVal(d.LVal)
	rval := g.evalRVal(d.Exp)
	g.b.CreateStore(rval, lval)
}

func (g *Generator) genReturn(node *ast.Node) {
	d := node.Data.(ast.ReturnNode)
	retType := g.curFunc.Type().ReturnType()
	if d.Exp != nil {
		if retType.IsVoid() {
			util.Error(node.Tok, "Return with a value in a void function.")
		}
		g.b.CreateRet(g.evalRVal(d.Exp))
	} else {
		if !retType.IsVoid() {
			util.Error(node.Tok, "Return without a value in a non-void function.")
		}
		g.b.CreateRetVoid()
	}
}

// genIf lowers if/else. Blocks are attached to the function only once
// their content is about to be filled, so blocks appear in emission order.
func (g *Generator) genIf(node *ast.Node) {
	d := node.Data.(ast.IfNode)
	cond := g.evalRVal(d.Cond)

	f := g.curFunc
	thenBB := f.NewBlock("then")
	var elseBB *ir.BasicBlock
	if d.Else != nil {
		elseBB = f.NewBlock("else")
	}
	mergeBB := f.NewBlock("if_end")

	if d.Else != nil {
		g.b.CreateCondBr(cond, ir.NewTarget(thenBB), ir.NewTarget(elseBB))
	} else {
		g.b.CreateCondBr(cond, ir.NewTarget(thenBB), ir.NewTarget(mergeBB))
	}

	f.AddBlock(thenBB)
	g.b.SetInsertPoint(thenBB)
	g.genStmt(d.Then)
	if !g.b.InsertBlock().Terminated() {
		g.b.CreateJump(ir.NewTarget(mergeBB))
	}

	if d.Else != nil {
		f.AddBlock(elseBB)
		g.b.SetInsertPoint(elseBB)
		g.genStmt(d.Else)
		if !g.b.InsertBlock().Terminated() {
			g.b.CreateJump(ir.NewTarget(mergeBB))
		}
	}

	f.AddBlock(mergeBB)
	g.b.SetInsertPoint(mergeBB)
}

func (g *Generator) genWhile(node *ast.Node) {
	d := node.Data.(ast.WhileNode)
	f := g.curFunc
	condBB := f.NewBlock("while_cond")
	bodyBB := f.NewBlock("while_body")
	endBB := f.NewBlock("while_end")

	g.b.CreateJump(ir.NewTarget(condBB))

	f.AddBlock(condBB)
	g.b.SetInsertPoint(condBB)
	cond := g.evalRVal(d.Cond)
	g.b.CreateCondBr(cond, ir.NewTarget(bodyBB), ir.NewTarget(endBB))

	f.AddBlock(bodyBB)
	g.b.SetInsertPoint(bodyBB)

	g.breakTargets = append(g.breakTargets, endBB)
	g.continueTargets = append(g.continueTargets, condBB)

	g.genStmt(d.Body)

	g.breakTargets = g.breakTargets[:len(g.breakTargets)-1]
	g.continueTargets = g.continueTargets[:len(g.continueTargets)-1]

	if !g.b.InsertBlock().Terminated() {
		g.b.CreateJump(ir.NewTarget(condBB))
	}

	f.AddBlock(endBB)
	g.b.SetInsertPoint(endBB)
}

// Declarations

func (g *Generator) genConstDecl(node *ast.Node) {
	d := node.Data.(ast.ConstDeclNode)
	for _, def := range d.Defs {
		g.genConstDef(def)
	}
}

func (g *Generator) genVarDecl(node *ast.Node) {
	d := node.Data.(ast.VarDeclNode)
	for _, def := range d.Defs {
		g.genVarDef(def)
	}
}

// declType folds the dimension expressions into the declared type;
// dims apply innermost-last, so they are walked in reverse.
func (g *Generator) declType(dims []*ast.Node) *ir.Type {
	ty := g.mod.Int32Ty()
	for i := len(dims) - 1; i >= 0; i-- {
		dim := g.evalConstExpr(dims[i])
		if dim <= 0 {
			util.Error(dims[i].Tok, "Array dimension must be positive.")
		}
		ty = g.mod.ArrayTy(ty, int(dim))
	}
	return ty
}

func (g *Generator) genConstDef(node *ast.Node) {
	d := node.Data.(ast.ConstDefNode)
	finalType := g.declType(d.Dims)

	if len(d.Dims) == 0 {
		// Scalar constants live purely in the symbol table.
		val := g.evalConstInit(node.Tok, d.Init)
		g.define(node.Tok, d.Name, g.mod.ConstInt(val))
		return
	}

	if g.isGlobalScope() {
		if g.mod.FindFunc(d.Name) != nil || g.mod.FindGlobal(d.Name) != nil {
			util.Error(node.Tok, "Redefinition of '%s'.", d.Name)
		}
		init := g.buildGlobalInit(d.Init, finalType)
		gv := g.mod.NewGlobal(d.Name, finalType, init, true)
		g.define(node.Tok, d.Name, gv)
		return
	}

	slot := g.b.CreateAlloca(finalType)
	g.define(node.Tok, d.Name, slot)
	if d.Init != nil {
		g.initLocalArray(d.Init, slot, finalType)
	}
}

func (g *Generator) genVarDef(node *ast.Node) {
	d := node.Data.(ast.VarDefNode)
	finalType := g.declType(d.Dims)

	if g.isGlobalScope() {
		var init ir.Value
		if len(d.Dims) > 0 {
			if d.Init != nil {
				init = g.buildGlobalInit(d.Init, finalType)
			} else {
				init = g.mod.ConstZero(finalType)
			}
		} else {
			if d.Init != nil {
				init = g.mod.ConstInt(g.evalConstInit(node.Tok, d.Init))
			} else {
				init = g.mod.ConstInt(0)
			}
		}
		if g.mod.FindFunc(d.Name) != nil || g.mod.FindGlobal(d.Name) != nil {
			util.Error(node.Tok, "Redefinition of '%s'.", d.Name)
		}
		gv := g.mod.NewGlobal(d.Name, finalType, init, false)
		g.define(node.Tok, d.Name, gv)
		return
	}

	slot := g.b.CreateAlloca(finalType)
	g.define(node.Tok, d.Name, slot)

	if len(d.Dims) > 0 {
		if d.Init != nil {
			g.initLocalArray(d.Init, slot, finalType)
		}
	} else if d.Init != nil {
		initData := d.Init.Data.(ast.InitValNode)
		if initData.Expr == nil {
			util.Error(d.Init.Tok, "Braced initializer for a scalar variable.")
		}
		g.b.CreateStore(g.evalRVal(initData.Expr), slot)
	}
}

// evalConstInit evaluates a scalar initializer in a constant context.
func (g *Generator) evalConstInit(tok token.Token, init *ast.Node) int32 {
	if init == nil {
		return 0
	}
	d := init.Data.(ast.InitValNode)
	if d.Expr == nil {
		util.Error(init.Tok, "Braced initializer for a scalar.")
	}
	return g.evalConstExpr(d.Expr)
}
