package parser

import (
	"testing"

	"github.com/lidianzhong/nanocc/pkg/ast"
	"github.com/lidianzhong/nanocc/pkg/lexer"
	"github.com/lidianzhong/nanocc/pkg/token"
)

func parse(t *testing.T, src string) *ast.Node {
	t.Helper()
	tokens := lexer.Tokenize([]rune(src), 0)
	return NewParser(tokens).Parse()
}

func TestParseFuncDef(t *testing.T) {
	root := parse(t, `int main() { return 0; }`)
	d := root.Data.(ast.CompUnitNode)
	if len(d.Items) != 1 {
		t.Fatalf("expected 1 top-level item, got %d", len(d.Items))
	}
	fd := d.Items[0].Data.(ast.FuncDefNode)
	if fd.RetType != "int" || fd.Name != "main" || len(fd.Params) != 0 {
		t.Errorf("unexpected function header: %+v", fd)
	}
	body := fd.Body.Data.(ast.BlockNode)
	if len(body.Items) != 1 || body.Items[0].Kind != ast.Return {
		t.Errorf("expected a single return statement")
	}
}

func TestParseGlobalVsFunction(t *testing.T) {
	root := parse(t, `
int g = 1;
int f() { return g; }
`)
	d := root.Data.(ast.CompUnitNode)
	if len(d.Items) != 2 {
		t.Fatalf("expected 2 top-level items, got %d", len(d.Items))
	}
	if d.Items[0].Kind != ast.VarDecl {
		t.Errorf("item 0 should be a variable declaration")
	}
	if d.Items[1].Kind != ast.FuncDef {
		t.Errorf("item 1 should be a function definition")
	}
}

func TestParseMultiVarDecl(t *testing.T) {
	root := parse(t, `int a, b[2], c = 3;`)
	d := root.Data.(ast.CompUnitNode)
	decl := d.Items[0].Data.(ast.VarDeclNode)
	if len(decl.Defs) != 3 {
		t.Fatalf("expected 3 definitions, got %d", len(decl.Defs))
	}

	b := decl.Defs[1].Data.(ast.VarDefNode)
	if b.Name != "b" || len(b.Dims) != 1 || b.Init != nil {
		t.Errorf("unexpected def b: %+v", b)
	}
	c := decl.Defs[2].Data.(ast.VarDefNode)
	if c.Name != "c" || c.Init == nil {
		t.Errorf("unexpected def c: %+v", c)
	}
}

func TestParsePrecedence(t *testing.T) {
	// 1 + 2 * 3 parses as 1 + (2 * 3)
	root := parse(t, `int f() { return 1 + 2 * 3; }`)
	fd := root.Data.(ast.CompUnitNode).Items[0].Data.(ast.FuncDefNode)
	ret := fd.Body.Data.(ast.BlockNode).Items[0].Data.(ast.ReturnNode)

	add := ret.Exp.Data.(ast.BinaryNode)
	if add.Op != token.Plus {
		t.Fatalf("root operator is %v, want +", add.Op)
	}
	mul := add.Rhs.Data.(ast.BinaryNode)
	if mul.Op != token.Star {
		t.Errorf("right operand operator is %v, want *", mul.Op)
	}
}

func TestParseLogicalPrecedence(t *testing.T) {
	// a || b && c parses as a || (b && c)
	root := parse(t, `int f(int a, int b, int c) { return a || b && c; }`)
	fd := root.Data.(ast.CompUnitNode).Items[0].Data.(ast.FuncDefNode)
	ret := fd.Body.Data.(ast.BlockNode).Items[0].Data.(ast.ReturnNode)

	or := ret.Exp.Data.(ast.BinaryNode)
	if or.Op != token.OrOr {
		t.Fatalf("root operator is %v, want ||", or.Op)
	}
	and := or.Rhs.Data.(ast.BinaryNode)
	if and.Op != token.AndAnd {
		t.Errorf("right operand operator is %v, want &&", and.Op)
	}
}

func TestParseArrayParam(t *testing.T) {
	root := parse(t, `int sum(int a[][3], int n) { return 0; }`)
	fd := root.Data.(ast.CompUnitNode).Items[0].Data.(ast.FuncDefNode)
	if len(fd.Params) != 2 {
		t.Fatalf("expected 2 parameters, got %d", len(fd.Params))
	}

	p0 := fd.Params[0].Data.(ast.FuncFParamNode)
	if p0.BType != "*int" || len(p0.Dims) != 1 {
		t.Errorf("parameter a: btype=%s dims=%d, want *int with 1 inner dim", p0.BType, len(p0.Dims))
	}
	p1 := fd.Params[1].Data.(ast.FuncFParamNode)
	if p1.BType != "int" || len(p1.Dims) != 0 {
		t.Errorf("parameter n: btype=%s dims=%d, want scalar int", p1.BType, len(p1.Dims))
	}
}

func TestParseNestedInit(t *testing.T) {
	root := parse(t, `int a[2][3] = {{1}, {2, 3}};`)
	def := root.Data.(ast.CompUnitNode).Items[0].Data.(ast.VarDeclNode).Defs[0].Data.(ast.VarDefNode)
	init := def.Init.Data.(ast.InitValNode)
	if init.Expr != nil || len(init.List) != 2 {
		t.Fatalf("expected a 2-element brace list")
	}
	inner := init.List[1].Data.(ast.InitValNode)
	if inner.Expr != nil || len(inner.List) != 2 {
		t.Errorf("expected nested 2-element brace list")
	}
}

func TestParseControlFlow(t *testing.T) {
	root := parse(t, `
int f(int n) {
  int s = 0;
  while (n > 0) {
    if (n % 2 == 0) { s = s + n; } else s = s - 1;
    n = n - 1;
    if (s > 100) break;
  }
  return s;
}
`)
	fd := root.Data.(ast.CompUnitNode).Items[0].Data.(ast.FuncDefNode)
	items := fd.Body.Data.(ast.BlockNode).Items
	if items[1].Kind != ast.While {
		t.Fatalf("expected a while statement")
	}
	body := items[1].Data.(ast.WhileNode).Body.Data.(ast.BlockNode)
	if body.Items[0].Kind != ast.If {
		t.Errorf("expected an if statement in the loop body")
	}
	ifStmt := body.Items[0].Data.(ast.IfNode)
	if ifStmt.Else == nil {
		t.Errorf("expected an else branch")
	}
}

func TestParseEmptyAndExprStatements(t *testing.T) {
	root := parse(t, `
void f() {
  ;
  getch();
}
`)
	fd := root.Data.(ast.CompUnitNode).Items[0].Data.(ast.FuncDefNode)
	items := fd.Body.Data.(ast.BlockNode).Items
	if len(items) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(items))
	}
	empty := items[0].Data.(ast.ExpStmtNode)
	if empty.Exp != nil {
		t.Errorf("expected an empty statement")
	}
	call := items[1].Data.(ast.ExpStmtNode)
	if call.Exp == nil || call.Exp.Kind != ast.FuncCall {
		t.Errorf("expected a call statement")
	}
}
