package token

type Type int

const (
	EOF Type = iota
	Ident
	Number
	Int
	Void
	Const
	If
	Else
	While
	Break
	Continue
	Return
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	Semi
	Comma
	Assign
	Plus
	Minus
	Star
	Slash
	Rem
	Lt
	Gt
	Lte
	Gte
	EqEq
	Neq
	AndAnd
	OrOr
	Not
)

var KeywordMap = map[string]Type{
	"int":      Int,
	"void":     Void,
	"const":    Const,
	"if":       If,
	"else":     Else,
	"while":    While,
	"break":    Break,
	"continue": Continue,
	"return":   Return,
}

// Reverse mapping from Type to the keyword string
var TypeStrings = make(map[Type]string)

func init() {
	for str, typ := range KeywordMap {
		TypeStrings[typ] = str
	}
}

type Token struct {
	Type      Type
	Value     string
	FileIndex int
	Line      int
	Column    int
	Len       int
}
