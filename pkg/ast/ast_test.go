package ast

import (
	"strings"
	"testing"

	"github.com/lidianzhong/nanocc/pkg/token"
)

func TestDump(t *testing.T) {
	tok := token.Token{}
	body := NewBlock(tok, []*Node{
		NewReturn(tok, NewBinary(tok, token.Plus,
			NewNumber(tok, 1),
			NewLVal(tok, "x", nil))),
	})
	fn := NewFuncDef(tok, "int", "f", []*Node{
		NewFuncFParam(tok, "int", "x", nil),
	}, body)
	root := NewCompUnit(tok, []*Node{fn})

	out := Dump(root)
	for _, want := range []string{
		"CompUnit",
		"FuncDef int f",
		"FuncFParam int x dims=0",
		"Return",
		"Binary +",
		"Number 1",
		"LVal x",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in dump:\n%s", want, out)
		}
	}
}

func TestParentLinks(t *testing.T) {
	tok := token.Token{}
	lhs := NewNumber(tok, 1)
	rhs := NewNumber(tok, 2)
	bin := NewBinary(tok, token.Plus, lhs, rhs)

	if lhs.Parent != bin || rhs.Parent != bin {
		t.Errorf("children do not point back to the binary node")
	}

	arg := NewNumber(tok, 3)
	call := NewFuncCall(tok, "f", []*Node{arg})
	if arg.Parent != call {
		t.Errorf("call argument does not point back to the call node")
	}
}
