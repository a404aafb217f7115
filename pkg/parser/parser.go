package parser

import (
	"strconv"

	"github.com/lidianzhong/nanocc/pkg/ast"
	"github.com/lidianzhong/nanocc/pkg/token"
	"github.com/lidianzhong/nanocc/pkg/util"
)

// Parser holds the state for the parsing process
type Parser struct {
	tokens   []token.Token
	pos      int
	current  token.Token
	previous token.Token
}

// NewParser creates and initializes a new Parser from a token stream
func NewParser(tokens []token.Token) *Parser {
	p := &Parser{tokens: tokens, pos: 0}
	if len(tokens) > 0 {
		p.current = p.tokens[0]
	}
	return p
}

// Parse consumes the whole token stream and returns the CompUnit root.
func (p *Parser) Parse() *ast.Node {
	startTok := p.current
	var items []*ast.Node
	for !p.check(token.EOF) {
		items = append(items, p.parseGlobalItem())
	}
	return ast.NewCompUnit(startTok, items)
}

// Parser helpers
func (p *Parser) advance() {
	if p.pos < len(p.tokens) {
		p.previous = p.current
		p.pos++
		if p.pos < len(p.tokens) {
			p.current = p.tokens[p.pos]
		}
	}
}

func (p *Parser) peek() token.Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) peekAt(n int) token.Token {
	if p.pos+n < len(p.tokens) {
		return p.tokens[p.pos+n]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) check(tokType token.Type) bool {
	return p.current.Type == tokType
}

func (p *Parser) match(tokType token.Type) bool {
	if !p.check(tokType) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) expect(tokType token.Type, message string) {
	if p.check(tokType) {
		p.advance()
		return
	}
	util.Error(p.current, message)
}

// Declarations

// parseGlobalItem handles a top-level FuncDef, ConstDecl or VarDecl.
// 'int f(' opens a function; 'int x' opens a variable declaration.
func (p *Parser) parseGlobalItem() *ast.Node {
	if p.check(token.Const) {
		return p.parseConstDecl()
	}
	if p.check(token.Void) || (p.check(token.Int) && p.peek().Type == token.Ident && p.peekAt(2).Type == token.LParen) {
		return p.parseFuncDef()
	}
	if p.check(token.Int) {
		return p.parseVarDecl()
	}
	util.Error(p.current, "Expected a declaration or function definition.")
	return nil
}

func (p *Parser) parseConstDecl() *ast.Node {
	tok := p.current
	p.expect(token.Const, "Expected 'const'.")
	p.expect(token.Int, "Expected 'int' after 'const'.")
	var defs []*ast.Node
	for {
		defs = append(defs, p.parseConstDef())
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.Semi, "Expected ';' after constant declaration.")
	return ast.NewConstDecl(tok, defs)
}

func (p *Parser) parseConstDef() *ast.Node {
	tok := p.current
	p.expect(token.Ident, "Expected identifier in constant definition.")
	name := p.previous.Value
	dims := p.parseDims()
	p.expect(token.Assign, "Expected '=' in constant definition.")
	init := p.parseInitVal()
	return ast.NewConstDef(tok, name, dims, init)
}

func (p *Parser) parseVarDecl() *ast.Node {
	tok := p.current
	p.expect(token.Int, "Expected 'int'.")
	var defs []*ast.Node
	for {
		defs = append(defs, p.parseVarDef())
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.Semi, "Expected ';' after variable declaration.")
	return ast.NewVarDecl(tok, defs)
}

func (p *Parser) parseVarDef() *ast.Node {
	tok := p.current
	p.expect(token.Ident, "Expected identifier in variable definition.")
	name := p.previous.Value
	dims := p.parseDims()
	var init *ast.Node
	if p.match(token.Assign) {
		init = p.parseInitVal()
	}
	return ast.NewVarDef(tok, name, dims, init)
}

func (p *Parser) parseDims() []*ast.Node {
	var dims []*ast.Node
	for p.match(token.LBracket) {
		dims = append(dims, p.parseExpr())
		p.expect(token.RBracket, "Expected ']' after array dimension.")
	}
	return dims
}

func (p *Parser) parseInitVal() *ast.Node {
	tok := p.current
	if p.match(token.LBrace) {
		var list []*ast.Node
		if !p.check(token.RBrace) {
			for {
				list = append(list, p.parseInitVal())
				if !p.match(token.Comma) {
					break
				}
			}
		}
		p.expect(token.RBrace, "Expected '}' after initializer list.")
		return ast.NewInitVal(tok, nil, list)
	}
	return ast.NewInitVal(tok, p.parseExpr(), nil)
}

// Functions

func (p *Parser) parseFuncDef() *ast.Node {
	tok := p.current
	retType := "int"
	if p.match(token.Void) {
		retType = "void"
	} else {
		p.expect(token.Int, "Expected return type.")
	}
	p.expect(token.Ident, "Expected function name.")
	name := p.previous.Value
	p.expect(token.LParen, "Expected '(' after function name.")

	var params []*ast.Node
	if !p.check(token.RParen) {
		for {
			params = append(params, p.parseFuncFParam())
			if !p.match(token.Comma) {
				break
			}
		}
	}
	p.expect(token.RParen, "Expected ')' after parameter list.")
	body := p.parseBlock()
	return ast.NewFuncDef(tok, retType, name, params, body)
}

// parseFuncFParam: 'int x' is a scalar; 'int x[]' or 'int x[][e]...'
// decays to a pointer whose inner dimensions are the bracketed ones.
func (p *Parser) parseFuncFParam() *ast.Node {
	tok := p.current
	p.expect(token.Int, "Expected 'int' in parameter.")
	p.expect(token.Ident, "Expected parameter name.")
	name := p.previous.Value

	btype := "int"
	var dims []*ast.Node
	if p.match(token.LBracket) {
		p.expect(token.RBracket, "Expected ']' in array parameter.")
		btype = "*int"
		for p.match(token.LBracket) {
			dims = append(dims, p.parseExpr())
			p.expect(token.RBracket, "Expected ']' after array dimension.")
		}
	}
	return ast.NewFuncFParam(tok, btype, name, dims)
}

// Statements

func (p *Parser) parseBlock() *ast.Node {
	tok := p.current
	p.expect(token.LBrace, "Expected '{'.")
	var items []*ast.Node
	for !p.check(token.RBrace) && !p.check(token.EOF) {
		items = append(items, p.parseBlockItem())
	}
	p.expect(token.RBrace, "Expected '}'.")
	return ast.NewBlock(tok, items)
}

func (p *Parser) parseBlockItem() *ast.Node {
	if p.check(token.Const) {
		return p.parseConstDecl()
	}
	if p.check(token.Int) {
		return p.parseVarDecl()
	}
	return p.parseStmt()
}

func (p *Parser) parseStmt() *ast.Node {
	tok := p.current
	switch {
	case p.check(token.LBrace):
		return p.parseBlock()
	case p.match(token.If):
		p.expect(token.LParen, "Expected '(' after 'if'.")
		cond := p.parseExpr()
		p.expect(token.RParen, "Expected ')' after condition.")
		then := p.parseStmt()
		var els *ast.Node
		if p.match(token.Else) {
			els = p.parseStmt()
		}
		return ast.NewIf(tok, cond, then, els)
	case p.match(token.While):
		p.expect(token.LParen, "Expected '(' after 'while'.")
		cond := p.parseExpr()
		p.expect(token.RParen, "Expected ')' after condition.")
		body := p.parseStmt()
		return ast.NewWhile(tok, cond, body)
	case p.match(token.Break):
		p.expect(token.Semi, "Expected ';' after 'break'.")
		return ast.NewBreak(tok)
	case p.match(token.Continue):
		p.expect(token.Semi, "Expected ';' after 'continue'.")
		return ast.NewContinue(tok)
	case p.match(token.Return):
		var exp *ast.Node
		if !p.check(token.Semi) {
			exp = p.parseExpr()
		}
		p.expect(token.Semi, "Expected ';' after return statement.")
		return ast.NewReturn(tok, exp)
	case p.match(token.Semi):
		return ast.NewExpStmt(tok, nil)
	}

	exp := p.parseExpr()
	if p.match(token.Assign) {
		if exp.Kind != ast.LVal {
			util.Error(tok, "Left side of assignment is not assignable.")
		}
		rhs := p.parseExpr()
		p.expect(token.Semi, "Expected ';' after assignment.")
		return ast.NewAssign(tok, exp, rhs)
	}
	p.expect(token.Semi, "Expected ';' after expression statement.")
	return ast.NewExpStmt(tok, exp)
}

// Expression Parsing
func getBinaryOpPrecedence(op token.Type) int {
	switch op {
	case token.Star, token.Slash, token.Rem:
		return 13
	case token.Plus, token.Minus:
		return 12
	case token.Lt, token.Gt, token.Lte, token.Gte:
		return 10
	case token.EqEq, token.Neq:
		return 9
	case token.AndAnd:
		return 5
	case token.OrOr:
		return 4
	default:
		return -1
	}
}

func (p *Parser) parseExpr() *ast.Node {
	return p.parseBinaryExpr(0)
}

func (p *Parser) parseBinaryExpr(minPrec int) *ast.Node {
	lhs := p.parseUnaryExpr()
	for {
		prec := getBinaryOpPrecedence(p.current.Type)
		if prec < minPrec {
			return lhs
		}
		opTok := p.current
		p.advance()
		rhs := p.parseBinaryExpr(prec + 1)
		lhs = ast.NewBinary(opTok, opTok.Type, lhs, rhs)
	}
}

func (p *Parser) parseUnaryExpr() *ast.Node {
	tok := p.current
	if p.match(token.Plus) || p.match(token.Minus) || p.match(token.Not) {
		op := p.previous.Type
		operand := p.parseUnaryExpr()
		return ast.NewUnary(tok, op, operand)
	}
	return p.parsePrimaryExpr()
}

func (p *Parser) parsePrimaryExpr() *ast.Node {
	tok := p.current
	if p.match(token.Number) {
		val, _ := strconv.ParseInt(p.previous.Value, 10, 64)
		return ast.NewNumber(tok, int32(val))
	}
	if p.match(token.Ident) {
		name := p.previous.Value
		if p.match(token.LParen) {
			var args []*ast.Node
			if !p.check(token.RParen) {
				for {
					args = append(args, p.parseExpr())
					if !p.match(token.Comma) {
						break
					}
				}
			}
			p.expect(token.RParen, "Expected ')' after function arguments.")
			return ast.NewFuncCall(tok, name, args)
		}
		var indices []*ast.Node
		for p.match(token.LBracket) {
			indices = append(indices, p.parseExpr())
			p.expect(token.RBracket, "Expected ']' after array index.")
		}
		return ast.NewLVal(tok, name, indices)
	}
	if p.match(token.LParen) {
		expr := p.parseExpr()
		p.expect(token.RParen, "Expected ')' after expression.")
		return expr
	}
	util.Error(tok, "Expected an expression.")
	return nil
}
