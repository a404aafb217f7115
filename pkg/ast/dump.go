package ast

import (
	"fmt"
	"strings"

	"github.com/lidianzhong/nanocc/pkg/token"
)

// Dump renders the tree as an indented outline, one node per line.
func Dump(node *Node) string {
	var sb strings.Builder
	dumpNode(&sb, node, 0)
	return sb.String()
}

func indent(sb *strings.Builder, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
}

func opString(op token.Type) string {
	switch op {
	case token.Plus:
		return "+"
	case token.Minus:
		return "-"
	case token.Star:
		return "*"
	case token.Slash:
		return "/"
	case token.Rem:
		return "%"
	case token.Lt:
		return "<"
	case token.Gt:
		return ">"
	case token.Lte:
		return "<="
	case token.Gte:
		return ">="
	case token.EqEq:
		return "=="
	case token.Neq:
		return "!="
	case token.AndAnd:
		return "&&"
	case token.OrOr:
		return "||"
	case token.Not:
		return "!"
	default:
		return "?"
	}
}

func dumpNode(sb *strings.Builder, node *Node, depth int) {
	if node == nil {
		return
	}
	indent(sb, depth)
	switch d := node.Data.(type) {
	case CompUnitNode:
		sb.WriteString("CompUnit\n")
		for _, item := range d.Items {
			dumpNode(sb, item, depth+1)
		}
	case FuncDefNode:
		fmt.Fprintf(sb, "FuncDef %s %s\n", d.RetType, d.Name)
		for _, p := range d.Params {
			dumpNode(sb, p, depth+1)
		}
		dumpNode(sb, d.Body, depth+1)
	case FuncFParamNode:
		fmt.Fprintf(sb, "FuncFParam %s %s dims=%d\n", d.BType, d.Name, len(d.Dims))
		for _, dim := range d.Dims {
			dumpNode(sb, dim, depth+1)
		}
	case BlockNode:
		sb.WriteString("Block\n")
		for _, item := range d.Items {
			dumpNode(sb, item, depth+1)
		}
	case ConstDeclNode:
		sb.WriteString("ConstDecl\n")
		for _, def := range d.Defs {
			dumpNode(sb, def, depth+1)
		}
	case VarDeclNode:
		sb.WriteString("VarDecl\n")
		for _, def := range d.Defs {
			dumpNode(sb, def, depth+1)
		}
	case ConstDefNode:
		fmt.Fprintf(sb, "ConstDef %s dims=%d\n", d.Name, len(d.Dims))
		for _, dim := range d.Dims {
			dumpNode(sb, dim, depth+1)
		}
		dumpNode(sb, d.Init, depth+1)
	case VarDefNode:
		fmt.Fprintf(sb, "VarDef %s dims=%d\n", d.Name, len(d.Dims))
		for _, dim := range d.Dims {
			dumpNode(sb, dim, depth+1)
		}
		dumpNode(sb, d.Init, depth+1)
	case InitValNode:
		if d.Expr != nil {
			sb.WriteString("InitVal\n")
			dumpNode(sb, d.Expr, depth+1)
		} else {
			fmt.Fprintf(sb, "InitVal list=%d\n", len(d.List))
			for _, child := range d.List {
				dumpNode(sb, child, depth+1)
			}
		}
	case AssignNode:
		sb.WriteString("Assign\n")
		dumpNode(sb, d.LVal, depth+1)
		dumpNode(sb, d.Exp, depth+1)
	case ExpStmtNode:
		sb.WriteString("ExpStmt\n")
		dumpNode(sb, d.Exp, depth+1)
	case IfNode:
		sb.WriteString("If\n")
		dumpNode(sb, d.Cond, depth+1)
		dumpNode(sb, d.Then, depth+1)
		dumpNode(sb, d.Else, depth+1)
	case WhileNode:
		sb.WriteString("While\n")
		dumpNode(sb, d.Cond, depth+1)
		dumpNode(sb, d.Body, depth+1)
	case BreakNode:
		sb.WriteString("Break\n")
	case ContinueNode:
		sb.WriteString("Continue\n")
	case ReturnNode:
		sb.WriteString("Return\n")
		dumpNode(sb, d.Exp, depth+1)
	case LValNode:
		fmt.Fprintf(sb, "LVal %s\n", d.Name)
		for _, idx := range d.Indices {
			dumpNode(sb, idx, depth+1)
		}
	case NumberNode:
		fmt.Fprintf(sb, "Number %d\n", d.Value)
	case UnaryNode:
		fmt.Fprintf(sb, "Unary %s\n", opString(d.Op))
		dumpNode(sb, d.Exp, depth+1)
	case BinaryNode:
		fmt.Fprintf(sb, "Binary %s\n", opString(d.Op))
		dumpNode(sb, d.Lhs, depth+1)
		dumpNode(sb, d.Rhs, depth+1)
	case FuncCallNode:
		fmt.Fprintf(sb, "FuncCall %s\n", d.Name)
		for _, arg := range d.Args {
			dumpNode(sb, arg, depth+1)
		}
	default:
		sb.WriteString("?\n")
	}
}
