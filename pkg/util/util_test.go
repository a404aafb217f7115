package util

import (
	"testing"

	"github.com/lidianzhong/nanocc/pkg/token"
)

func TestErrorInvokesExit(t *testing.T) {
	oldExit := ExitFunc
	defer func() { ExitFunc = oldExit }()

	code := -1
	ExitFunc = func(c int) { code = c }

	SetSourceFiles([]SourceFileRecord{{Name: "t.sy", Content: []rune("int x$;\n")}})
	defer SetSourceFiles(nil)

	Error(token.Token{FileIndex: 0, Line: 1, Column: 6, Len: 1}, "Unexpected character: '%c'", '$')
	if code != 1 {
		t.Errorf("Error exited with %d, want 1", code)
	}
}

func TestLocationFallback(t *testing.T) {
	SetSourceFiles(nil)
	name, line, col := findFileAndLine(token.Token{FileIndex: 3, Line: 7, Column: 2})
	if name != "unknown" || line != 7 || col != 2 {
		t.Errorf("got %s:%d:%d, want unknown:7:2", name, line, col)
	}
}
