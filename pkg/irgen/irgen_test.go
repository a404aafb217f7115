package irgen

import (
	"strings"
	"testing"

	"github.com/lidianzhong/nanocc/pkg/config"
	"github.com/lidianzhong/nanocc/pkg/ir"
	"github.com/lidianzhong/nanocc/pkg/koopa"
	"github.com/lidianzhong/nanocc/pkg/lexer"
	"github.com/lidianzhong/nanocc/pkg/parser"
)

func lower(t *testing.T, src string) *ir.Module {
	t.Helper()
	tokens := lexer.Tokenize([]rune(src), 0)
	root := parser.NewParser(tokens).Parse()
	return Generate(root, config.NewConfig())
}

func lowerText(t *testing.T, src string) string {
	t.Helper()
	return koopa.Print(lower(t, src))
}

// funcBody extracts the printed body of one function.
func funcBody(t *testing.T, text, name string) string {
	t.Helper()
	marker := "fun @" + name + "("
	start := strings.Index(text, marker)
	if start < 0 {
		t.Fatalf("function @%s not printed:\n%s", name, text)
	}
	end := strings.Index(text[start:], "\n}")
	if end < 0 {
		t.Fatalf("function @%s has no closing brace", name)
	}
	return text[start : start+end+1]
}

func TestIdentityReturn(t *testing.T) {
	text := lowerText(t, `int main() { return 42; }`)
	body := funcBody(t, text, "main")

	if !strings.Contains(body, "fun @main(): i32 {") {
		t.Errorf("unexpected function header:\n%s", body)
	}
	if !strings.Contains(body, "%entry:") || !strings.Contains(body, "ret 42") {
		t.Errorf("expected entry block with ret 42:\n%s", body)
	}
}

func TestLibFunctionDecls(t *testing.T) {
	text := lowerText(t, `int main() { return 0; }`)

	decls := []string{
		"decl @getint(): i32",
		"decl @getch(): i32",
		"decl @getarray(*i32): i32",
		"decl @putint(i32)",
		"decl @putch(i32)",
		"decl @putarray(i32, *i32)",
		"decl @starttime()",
		"decl @stoptime()",
	}
	for _, d := range decls {
		if !strings.Contains(text, d) {
			t.Errorf("missing library declaration %q", d)
		}
	}
}

func TestScopedShadowing(t *testing.T) {
	text := lowerText(t, `int main() { int x = 1; { int x = 2; return x; } }`)
	body := funcBody(t, text, "main")

	if got := strings.Count(body, "= alloc i32"); got != 2 {
		t.Fatalf("expected 2 allocas, got %d:\n%s", got, body)
	}
	// The inner x is stored 2 and is the one loaded for the return.
	if !strings.Contains(body, "store 2, %1") {
		t.Errorf("inner variable not initialized to 2:\n%s", body)
	}
	if !strings.Contains(body, "%2 = load %1") || !strings.Contains(body, "ret %2") {
		t.Errorf("return does not read the inner variable:\n%s", body)
	}
}

func TestShortCircuitFoldedLhs(t *testing.T) {
	// With a constant left side the right side is never lowered, so
	// the division by zero cannot appear anywhere.
	text := lowerText(t, `int f() { return 0 && (1 / 0); }`)
	body := funcBody(t, text, "f")

	if strings.Contains(body, "div") {
		t.Errorf("division leaked into the lowered body:\n%s", body)
	}
	if !strings.Contains(body, "ret 0") {
		t.Errorf("expected ret 0:\n%s", body)
	}
}

func TestShortCircuitAndBlocks(t *testing.T) {
	text := lowerText(t, `int f(int a) { return a && (1 / a); }`)
	body := funcBody(t, text, "f")

	if !strings.Contains(body, "%and_rhs:") {
		t.Fatalf("missing and_rhs block:\n%s", body)
	}
	if !strings.Contains(body, "(%") || !strings.Contains(body, ": i32):") {
		t.Errorf("join block should declare an i32 parameter:\n%s", body)
	}

	// The division must live in the rhs block only.
	rhsStart := strings.Index(body, "%and_rhs:")
	divPos := strings.Index(body, "div")
	if divPos < rhsStart {
		t.Errorf("division emitted before the rhs block:\n%s", body)
	}

	// The false edge passes 0 to the join block.
	if !strings.Contains(body, "%and_end(0)") {
		t.Errorf("false edge should carry 0 to the join block:\n%s", body)
	}
}

func TestShortCircuitOrBlocks(t *testing.T) {
	text := lowerText(t, `int f(int a, int b) { return a || b; }`)
	body := funcBody(t, text, "f")

	if !strings.Contains(body, "%or_rhs:") {
		t.Fatalf("missing or_rhs block:\n%s", body)
	}
	// The true edge passes 1 to the join block.
	if !strings.Contains(body, "%or_end(1)") {
		t.Errorf("true edge should carry 1 to the join block:\n%s", body)
	}
}

func TestGlobalArrayPartialFill(t *testing.T) {
	text := lowerText(t, `int a[2][3] = {{1}, {2, 3}};
int main() { return 0; }`)

	if !strings.Contains(text, "global @a = alloc [[i32, 3], 2], {{1, 0, 0}, {2, 3, 0}}") {
		t.Errorf("unexpected flattened initializer:\n%s", text)
	}
}

func TestGlobalScalarAndZeroInit(t *testing.T) {
	text := lowerText(t, `int g = 5;
int h;
int arr[4];
int main() { return 0; }`)

	if !strings.Contains(text, "global @g = alloc i32, 5") {
		t.Errorf("scalar initializer not folded:\n%s", text)
	}
	if !strings.Contains(text, "global @h = alloc i32, 0") {
		t.Errorf("missing default zero for scalar:\n%s", text)
	}
	if !strings.Contains(text, "global @arr = alloc [i32, 4], zeroinit") {
		t.Errorf("uninitialized array should print zeroinit:\n%s", text)
	}
}

func TestGlobalConstIndexFolds(t *testing.T) {
	// Reading a global const array element in a constant context walks
	// the initializer.
	text := lowerText(t, `const int a[2][3] = {{1}, {2, 3}};
int b[a[1][1]];
int main() { const int c = a[0][0]; return c; }`)

	if !strings.Contains(text, "global @b = alloc [i32, 3], zeroinit") {
		t.Errorf("dimension a[1][1]=3 did not fold:\n%s", text)
	}
	if !strings.Contains(funcBody(t, text, "main"), "ret 1") {
		t.Errorf("a[0][0] did not fold to 1 in a constant context:\n%s", text)
	}
}

func TestLocalArrayInit(t *testing.T) {
	text := lowerText(t, `int main() { int a[2][2] = {{1}, 2}; return a[1][0]; }`)
	body := funcBody(t, text, "main")

	if !strings.Contains(body, "= alloc [[i32, 2], 2]") {
		t.Fatalf("missing array alloca:\n%s", body)
	}
	// Four elements, each stored through a two-level gep chain.
	if got := strings.Count(body, "store "); got != 4 {
		t.Errorf("expected 4 element stores, got %d:\n%s", got, body)
	}
	// Flattened to [1, 0, 2, 0].
	if !strings.Contains(body, "store 1,") || !strings.Contains(body, "store 2,") {
		t.Errorf("explicit values not stored:\n%s", body)
	}
	if got := strings.Count(body, "store 0,"); got != 2 {
		t.Errorf("expected 2 zero padding stores, got %d:\n%s", got, body)
	}
}

func TestDecayedParamIndexing(t *testing.T) {
	text := lowerText(t, `
int sum(int a[][3], int n) {
  int s = 0;
  int i = 0;
  while (i < n) { s = s + a[i][2]; i = i + 1; }
  return s;
}`)
	body := funcBody(t, text, "sum")

	if !strings.Contains(body, "fun @sum(%a: *[i32, 3], %n: i32): i32 {") {
		t.Fatalf("parameter did not decay to *[i32, 3]:\n%s", body)
	}

	// First index: load the pointer and advance with getptr; second
	// index steps into the row with getelemptr.
	getptrPos := strings.Index(body, "getptr")
	gepPos := strings.Index(body, "getelemptr")
	if getptrPos < 0 || gepPos < 0 {
		t.Fatalf("missing getptr/getelemptr pair:\n%s", body)
	}
	if gepPos < getptrPos {
		t.Errorf("getelemptr before getptr for a[i][2]:\n%s", body)
	}
}

func TestArrayDecayOnCall(t *testing.T) {
	text := lowerText(t, `
int a[10];
int main() { return getarray(a); }`)
	body := funcBody(t, text, "main")

	if !strings.Contains(body, "getelemptr @a, 0") {
		t.Errorf("argument did not decay via getelemptr 0:\n%s", body)
	}
	if !strings.Contains(body, "call @getarray(") {
		t.Errorf("missing call:\n%s", body)
	}
}

func TestImplicitReturns(t *testing.T) {
	text := lowerText(t, `
int f() { }
void g() { }
int main() { return f(); }`)

	if !strings.Contains(funcBody(t, text, "f"), "ret 0") {
		t.Errorf("empty i32 function should ret 0:\n%s", text)
	}
	gBody := funcBody(t, text, "g")
	if !strings.Contains(gBody, "  ret\n") {
		t.Errorf("empty void function should ret:\n%s", gBody)
	}
}

func TestWhileLowering(t *testing.T) {
	text := lowerText(t, `
int main() {
  int i = 0;
  while (i < 10) {
    if (i == 5) break;
    i = i + 1;
  }
  return i;
}`)
	body := funcBody(t, text, "main")

	for _, block := range []string{"%while_cond:", "%while_body:", "%while_end:"} {
		if !strings.Contains(body, block) {
			t.Errorf("missing block %s:\n%s", block, body)
		}
	}
	if !strings.Contains(body, "jump %while_cond") {
		t.Errorf("missing back edge to the condition:\n%s", body)
	}
	// break jumps to while_end.
	if !strings.Contains(body, "jump %while_end") {
		t.Errorf("break should jump to while_end:\n%s", body)
	}
}

func TestConstScalarIsFolded(t *testing.T) {
	text := lowerText(t, `int main() { const int c = 6; return c * 7; }`)
	body := funcBody(t, text, "main")

	if strings.Contains(body, "alloc") {
		t.Errorf("local scalar const should not allocate:\n%s", body)
	}
	if !strings.Contains(body, "ret 42") {
		t.Errorf("c * 7 should fold to 42:\n%s", body)
	}
}

func TestNestedLoopsBreakContinue(t *testing.T) {
	text := lowerText(t, `
int main() {
  int i = 0;
  int s = 0;
  while (i < 3) {
    int j = 0;
    while (j < 3) {
      j = j + 1;
      if (j == 2) continue;
      s = s + j;
    }
    i = i + 1;
  }
  return s;
}`)
	body := funcBody(t, text, "main")

	// Inner blocks are uniqued against the outer ones.
	for _, block := range []string{"%while_cond:", "%while_cond_1:", "%while_end:", "%while_end_1:"} {
		if !strings.Contains(body, block) {
			t.Errorf("missing block %s:\n%s", block, body)
		}
	}
	// continue in the inner loop jumps to the inner condition.
	if !strings.Contains(body, "jump %while_cond_1") {
		t.Errorf("continue should target the inner loop condition:\n%s", body)
	}
}

func TestUnaryLowering(t *testing.T) {
	text := lowerText(t, `int f(int x) { return -x + !x + +x; }`)
	body := funcBody(t, text, "f")

	// -x lowers to 0 - x, !x to x == 0.
	if !strings.Contains(body, "sub 0,") {
		t.Errorf("negation should lower to sub from 0:\n%s", body)
	}
	if !strings.Contains(body, "eq") {
		t.Errorf("logical not should lower to eq 0:\n%s", body)
	}
}

func TestGlobalConstFlag(t *testing.T) {
	mod := lower(t, `const int a[2] = {1, 2};
int b[2];
int main() { return 0; }`)

	ga := mod.FindGlobal("a")
	gb := mod.FindGlobal("b")
	if ga == nil || gb == nil {
		t.Fatalf("globals not created")
	}
	if !ga.IsConst {
		t.Errorf("const array global should be marked constant")
	}
	if gb.IsConst {
		t.Errorf("plain global should not be marked constant")
	}
}
