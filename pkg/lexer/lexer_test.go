package lexer

import (
	"testing"

	"github.com/lidianzhong/nanocc/pkg/token"
)

func scanTypes(input string) []token.Type {
	tokens := Tokenize([]rune(input), 0)
	types := make([]token.Type, len(tokens))
	for i, tok := range tokens {
		types[i] = tok.Type
	}
	return types
}

func TestLexerBasicTokens(t *testing.T) {
	input := `+ - * / % = == != < <= > >= && || ! ( ) { } [ ] , ;`

	expected := []token.Type{
		token.Plus, token.Minus, token.Star, token.Slash, token.Rem,
		token.Assign, token.EqEq, token.Neq,
		token.Lt, token.Lte, token.Gt, token.Gte,
		token.AndAnd, token.OrOr, token.Not,
		token.LParen, token.RParen, token.LBrace, token.RBrace,
		token.LBracket, token.RBracket,
		token.Comma, token.Semi,
		token.EOF,
	}

	got := scanTypes(input)
	if len(got) != len(expected) {
		t.Fatalf("token count mismatch: got %d, want %d", len(got), len(expected))
	}
	for i, typ := range got {
		if typ != expected[i] {
			t.Errorf("token[%d] type mismatch: got %v, want %v", i, typ, expected[i])
		}
	}
}

func TestLexerKeywords(t *testing.T) {
	input := `int void const if else while break continue return`

	expected := []token.Type{
		token.Int, token.Void, token.Const,
		token.If, token.Else, token.While,
		token.Break, token.Continue, token.Return,
		token.EOF,
	}

	got := scanTypes(input)
	if len(got) != len(expected) {
		t.Fatalf("token count mismatch: got %d, want %d", len(got), len(expected))
	}
	for i, typ := range got {
		if typ != expected[i] {
			t.Errorf("token[%d] type mismatch: got %v, want %v", i, typ, expected[i])
		}
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"0", "0"},
		{"42", "42"},
		{"2147483647", "2147483647"},
		{"0x10", "16"},
		{"0XFF", "255"},
		{"017", "15"},
		{"010", "8"},
	}

	for _, tt := range tests {
		tokens := Tokenize([]rune(tt.input), 0)
		if len(tokens) != 2 || tokens[0].Type != token.Number {
			t.Fatalf("%q: expected a single number token", tt.input)
		}
		if tokens[0].Value != tt.want {
			t.Errorf("%q: got value %s, want %s", tt.input, tokens[0].Value, tt.want)
		}
	}
}

func TestLexerIdentifiers(t *testing.T) {
	input := `main _tmp x1 whileLoop`
	tokens := Tokenize([]rune(input), 0)

	wantNames := []string{"main", "_tmp", "x1", "whileLoop"}
	if len(tokens) != len(wantNames)+1 {
		t.Fatalf("token count mismatch: got %d, want %d", len(tokens), len(wantNames)+1)
	}
	for i, name := range wantNames {
		if tokens[i].Type != token.Ident {
			t.Errorf("token[%d] is not an identifier", i)
		}
		if tokens[i].Value != name {
			t.Errorf("token[%d] value mismatch: got %s, want %s", i, tokens[i].Value, name)
		}
	}
}

func TestLexerComments(t *testing.T) {
	input := "1 // line comment\n/* block\ncomment */ 2"
	tokens := Tokenize([]rune(input), 0)

	if len(tokens) != 3 {
		t.Fatalf("token count mismatch: got %d, want 3", len(tokens))
	}
	if tokens[0].Value != "1" || tokens[1].Value != "2" {
		t.Errorf("comments not skipped: got %q, %q", tokens[0].Value, tokens[1].Value)
	}
}

func TestLexerPositions(t *testing.T) {
	input := "int\n  x;"
	tokens := Tokenize([]rune(input), 0)

	if tokens[0].Line != 1 || tokens[0].Column != 1 {
		t.Errorf("token[0] at %d:%d, want 1:1", tokens[0].Line, tokens[0].Column)
	}
	if tokens[1].Line != 2 || tokens[1].Column != 3 {
		t.Errorf("token[1] at %d:%d, want 2:3", tokens[1].Line, tokens[1].Column)
	}
}
