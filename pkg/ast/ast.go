// Package ast defines the types used to represent the Abstract Syntax Tree (AST)
package ast

import (
	"github.com/lidianzhong/nanocc/pkg/token"
)

// Kind defines the kind of a node in the AST
type Kind int

// Node kinds enum
const (
	// Expressions
	Number Kind = iota
	LVal
	Unary
	Binary
	FuncCall

	// Statements
	Assign
	ExpStmt
	If
	While
	Break
	Continue
	Return
	Block

	// Declarations
	ConstDecl
	ConstDef
	VarDecl
	VarDef
	InitVal
	FuncDef
	FuncFParam
	CompUnit
)

// Node represents a node in the Abstract Syntax Tree
type Node struct {
	Kind   Kind
	Tok    token.Token
	Parent *Node
	Data   interface{}
}

// --- Node Data Structs ---
type NumberNode struct{ Value int32 }
type LValNode struct {
	Name    string
	Indices []*Node
}
type UnaryNode struct {
	Op  token.Type
	Exp *Node
}
type BinaryNode struct {
	Op       token.Type
	Lhs, Rhs *Node
}
type FuncCallNode struct {
	Name string
	Args []*Node
}
type AssignNode struct{ LVal, Exp *Node }
type ExpStmtNode struct{ Exp *Node } // Exp may be nil for an empty statement
type IfNode struct{ Cond, Then, Else *Node }
type WhileNode struct{ Cond, Body *Node }
type BreakNode struct{}
type ContinueNode struct{}
type ReturnNode struct{ Exp *Node }
type BlockNode struct{ Items []*Node }

// InitVal is either a single expression (Expr != nil) or a brace list.
type InitValNode struct {
	Expr *Node
	List []*Node
}

// ConstDefNode and VarDefNode share one shape; the node kind tells them apart.
type ConstDefNode struct {
	Name string
	Dims []*Node
	Init *Node // InitVal, required for const
}
type VarDefNode struct {
	Name string
	Dims []*Node
	Init *Node // InitVal, optional
}
type ConstDeclNode struct{ Defs []*Node }
type VarDeclNode struct{ Defs []*Node }

// FuncFParamNode: BType is "int" for a scalar parameter or "*int" for a
// decayed array parameter, whose Dims are the inner dimensions.
type FuncFParamNode struct {
	BType string
	Name  string
	Dims  []*Node
}
type FuncDefNode struct {
	RetType string // "int" or "void"
	Name    string
	Params  []*Node
	Body    *Node
}
type CompUnitNode struct{ Items []*Node }

// --- Node Constructors ---

func newNode(tok token.Token, kind Kind, data interface{}, children ...*Node) *Node {
	node := &Node{Kind: kind, Tok: tok, Data: data}
	for _, child := range children {
		if child != nil {
			child.Parent = node
		}
	}
	return node
}

func NewNumber(tok token.Token, value int32) *Node {
	return newNode(tok, Number, NumberNode{Value: value})
}
func NewLVal(tok token.Token, name string, indices []*Node) *Node {
	node := newNode(tok, LVal, LValNode{Name: name, Indices: indices})
	for _, idx := range indices {
		idx.Parent = node
	}
	return node
}
func NewUnary(tok token.Token, op token.Type, exp *Node) *Node {
	return newNode(tok, Unary, UnaryNode{Op: op, Exp: exp}, exp)
}
func NewBinary(tok token.Token, op token.Type, lhs, rhs *Node) *Node {
	return newNode(tok, Binary, BinaryNode{Op: op, Lhs: lhs, Rhs: rhs}, lhs, rhs)
}
func NewFuncCall(tok token.Token, name string, args []*Node) *Node {
	node := newNode(tok, FuncCall, FuncCallNode{Name: name, Args: args})
	for _, arg := range args {
		arg.Parent = node
	}
	return node
}
func NewAssign(tok token.Token, lval, exp *Node) *Node {
	return newNode(tok, Assign, AssignNode{LVal: lval, Exp: exp}, lval, exp)
}
func NewExpStmt(tok token.Token, exp *Node) *Node {
	return newNode(tok, ExpStmt, ExpStmtNode{Exp: exp}, exp)
}
func NewIf(tok token.Token, cond, then, els *Node) *Node {
	return newNode(tok, If, IfNode{Cond: cond, Then: then, Else: els}, cond, then, els)
}
func NewWhile(tok token.Token, cond, body *Node) *Node {
	return newNode(tok, While, WhileNode{Cond: cond, Body: body}, cond, body)
}
func NewBreak(tok token.Token) *Node {
	return newNode(tok, Break, BreakNode{})
}
func NewContinue(tok token.Token) *Node {
	return newNode(tok, Continue, ContinueNode{})
}
func NewReturn(tok token.Token, exp *Node) *Node {
	return newNode(tok, Return, ReturnNode{Exp: exp}, exp)
}
func NewBlock(tok token.Token, items []*Node) *Node {
	node := newNode(tok, Block, BlockNode{Items: items})
	for _, item := range items {
		if item != nil {
			item.Parent = node
		}
	}
	return node
}
func NewInitVal(tok token.Token, expr *Node, list []*Node) *Node {
	node := newNode(tok, InitVal, InitValNode{Expr: expr, List: list}, expr)
	for _, child := range list {
		child.Parent = node
	}
	return node
}
func NewConstDef(tok token.Token, name string, dims []*Node, init *Node) *Node {
	node := newNode(tok, ConstDef, ConstDefNode{Name: name, Dims: dims, Init: init}, init)
	for _, d := range dims {
		d.Parent = node
	}
	return node
}
func NewVarDef(tok token.Token, name string, dims []*Node, init *Node) *Node {
	node := newNode(tok, VarDef, VarDefNode{Name: name, Dims: dims, Init: init}, init)
	for _, d := range dims {
		d.Parent = node
	}
	return node
}
func NewConstDecl(tok token.Token, defs []*Node) *Node {
	node := newNode(tok, ConstDecl, ConstDeclNode{Defs: defs})
	for _, d := range defs {
		d.Parent = node
	}
	return node
}
func NewVarDecl(tok token.Token, defs []*Node) *Node {
	node := newNode(tok, VarDecl, VarDeclNode{Defs: defs})
	for _, d := range defs {
		d.Parent = node
	}
	return node
}
func NewFuncFParam(tok token.Token, btype, name string, dims []*Node) *Node {
	node := newNode(tok, FuncFParam, FuncFParamNode{BType: btype, Name: name, Dims: dims})
	for _, d := range dims {
		d.Parent = node
	}
	return node
}
func NewFuncDef(tok token.Token, retType, name string, params []*Node, body *Node) *Node {
	node := newNode(tok, FuncDef, FuncDefNode{RetType: retType, Name: name, Params: params, Body: body}, body)
	for _, p := range params {
		p.Parent = node
	}
	return node
}
func NewCompUnit(tok token.Token, items []*Node) *Node {
	node := newNode(tok, CompUnit, CompUnitNode{Items: items})
	for _, item := range items {
		item.Parent = node
	}
	return node
}
