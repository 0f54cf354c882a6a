// Package parser implements the recursive-descent parser for the full
// expression/pattern/declaration grammar, including pipeline and `?`
// desugaring performed at parse time.
package parser

import (
	"github.com/mauludsadiq/fard/internal/ferr"
	"github.com/mauludsadiq/fard/internal/lang/ast"
	"github.com/mauludsadiq/fard/internal/lang/lexer"
)

// Tokenize runs the lexer to completion, returning every token including
// the trailing EOF.
func Tokenize(file string, src []byte) ([]lexer.Token, error) {
	lx := lexer.New(file, src)
	var out []lexer.Token
	for {
		tok, err := lx.Next()
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
		if tok.Kind == lexer.EOF {
			return out, nil
		}
	}
}

// Parser walks a pre-tokenized stream. Pre-tokenizing (rather than the
// mark/reset byte-cursor lookahead used elsewhere in the lineage) lets
// lambda-vs-parenthesized-expression disambiguation scan forward over
// token indices instead of re-lexing.
type Parser struct {
	toks []lexer.Token
	pos  int
	file string
}

func New(file string, toks []lexer.Token) *Parser {
	return &Parser{toks: toks, pos: 0, file: file}
}

func ParseModule(file string, src []byte) (*ast.Module, error) {
	toks, err := Tokenize(file, src)
	if err != nil {
		return nil, err
	}
	p := New(file, toks)
	return p.parseModule()
}

func (p *Parser) peek() lexer.Token  { return p.toks[p.pos] }
func (p *Parser) peekAt(k int) lexer.Token {
	i := p.pos + k
	if i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[i]
}
func (p *Parser) is(k lexer.Kind) bool { return p.peek().Kind == k }
func (p *Parser) advance() lexer.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) errf(format string, args ...any) error {
	sp := p.peek().Span
	return ferr.New(ferr.ErrParse, format, args...).WithSpan(ferr.Span{
		File: sp.File, ByteStart: sp.ByteStart, ByteEnd: sp.ByteEnd, Line: sp.Line, Col: sp.Col,
	})
}

func (p *Parser) expect(k lexer.Kind) (lexer.Token, error) {
	if !p.is(k) {
		return lexer.Token{}, p.errf("unexpected token (want kind %d, got %d %q)", k, p.peek().Kind, p.peek().Text)
	}
	return p.advance(), nil
}

func (p *Parser) expectIdent() (string, error) {
	t, err := p.expect(lexer.Ident)
	if err != nil {
		return "", err
	}
	return t.Text, nil
}

func (p *Parser) parseDottedName() ([]string, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	parts := []string{name}
	for p.is(lexer.Dot) {
		p.advance()
		n, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		parts = append(parts, n)
	}
	return parts, nil
}

func (p *Parser) parseModule() (*ast.Module, error) {
	if _, err := p.expect(lexer.KwModule); err != nil {
		return nil, err
	}
	name, err := p.parseDottedName()
	if err != nil {
		return nil, err
	}
	m := &ast.Module{Name: name}
	for !p.is(lexer.EOF) {
		switch p.peek().Kind {
		case lexer.KwImport:
			if err := p.parseImport(m); err != nil {
				return nil, err
			}
		case lexer.KwArtifact:
			p.advance()
			n, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.Colon); err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.KwRun); err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.LParen); err != nil {
				return nil, err
			}
			rid, err := p.expect(lexer.Text)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.RParen); err != nil {
				return nil, err
			}
			m.Artifacts = append(m.Artifacts, ast.ArtifactDecl{Name: n, RunID: rid.Text})
		case lexer.KwEffect:
			e, err := p.parseEffectDecl()
			if err != nil {
				return nil, err
			}
			m.Effects = append(m.Effects, e)
		case lexer.KwPub, lexer.KwType, lexer.KwFn:
			isPub := false
			if p.is(lexer.KwPub) {
				p.advance()
				isPub = true
			}
			if p.is(lexer.KwType) {
				t, err := p.parseTypeDecl(isPub)
				if err != nil {
					return nil, err
				}
				m.Types = append(m.Types, t)
			} else if p.is(lexer.KwFn) {
				f, err := p.parseFnDecl(isPub)
				if err != nil {
					return nil, err
				}
				m.Fns = append(m.Fns, f)
			} else {
				return nil, p.errf("expected type or fn after pub")
			}
		default:
			return nil, p.errf("unexpected top-level token")
		}
	}
	return m, nil
}

func (p *Parser) parseImport(m *ast.Module) error {
	p.advance() // 'import'
	// fact import: import name: Run("sha256:...")
	if p.is(lexer.Ident) && p.peekAt(1).Kind == lexer.Colon {
		name := p.advance().Text
		p.advance() // colon
		if _, err := p.expect(lexer.KwRun); err != nil {
			return err
		}
		if _, err := p.expect(lexer.LParen); err != nil {
			return err
		}
		rid, err := p.expect(lexer.Text)
		if err != nil {
			return err
		}
		if _, err := p.expect(lexer.RParen); err != nil {
			return err
		}
		m.FactImports = append(m.FactImports, ast.FactImport{Name: name, RunID: rid.Text})
		return nil
	}
	// literal-path import: import "<path>" as alias
	if p.is(lexer.Text) {
		path := p.advance().Text
		alias := ""
		if p.is(lexer.KwAs) {
			p.advance()
			a, err := p.expectIdent()
			if err != nil {
				return err
			}
			alias = a
		}
		m.Imports = append(m.Imports, ast.Import{Path: []string{path}, Alias: alias})
		return nil
	}
	// dotted module path with optional alias
	path, err := p.parseDottedName()
	if err != nil {
		return err
	}
	alias := ""
	if p.is(lexer.KwAs) {
		p.advance()
		a, err := p.expectIdent()
		if err != nil {
			return err
		}
		alias = a
	}
	m.Imports = append(m.Imports, ast.Import{Path: path, Alias: alias})
	return nil
}

func (p *Parser) parseEffectDecl() (ast.EffectDecl, error) {
	p.advance() // 'effect'
	name, err := p.expectIdent()
	if err != nil {
		return ast.EffectDecl{}, err
	}
	params, err := p.parseParamList()
	if err != nil {
		return ast.EffectDecl{}, err
	}
	if _, err := p.expect(lexer.Colon); err != nil {
		return ast.EffectDecl{}, err
	}
	ret, err := p.parseType()
	if err != nil {
		return ast.EffectDecl{}, err
	}
	return ast.EffectDecl{Name: name, Params: params, Ret: ret}, nil
}

func (p *Parser) parseParamList() ([]ast.Param, error) {
	if _, err := p.expect(lexer.LParen); err != nil {
		return nil, err
	}
	var params []ast.Param
	for !p.is(lexer.RParen) {
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.Colon); err != nil {
			return nil, err
		}
		ty, err := p.parseType()
		if err != nil {
			return nil, err
		}
		params = append(params, ast.Param{Name: name, Type: ty})
		if p.is(lexer.Comma) {
			p.advance()
		} else {
			break
		}
	}
	if _, err := p.expect(lexer.RParen); err != nil {
		return nil, err
	}
	return params, nil
}

func (p *Parser) parseType() (ast.Type, error) {
	switch p.peek().Kind {
	case lexer.KwUnit:
		p.advance()
		return ast.TUnit{}, nil
	case lexer.Ident:
		name := p.advance().Text
		switch name {
		case "bool":
			return ast.TBool{}, nil
		case "int":
			return ast.TInt{}, nil
		case "bytes":
			return ast.TBytes{}, nil
		case "text":
			return ast.TText{}, nil
		case "Value":
			return ast.TValue{}, nil
		case "List":
			if _, err := p.expect(lexer.Lt); err != nil {
				return nil, err
			}
			elem, err := p.parseType()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.Gt); err != nil {
				return nil, err
			}
			return ast.TList{Elem: elem}, nil
		case "Map":
			if _, err := p.expect(lexer.Lt); err != nil {
				return nil, err
			}
			k, err := p.parseType()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.Comma); err != nil {
				return nil, err
			}
			v, err := p.parseType()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.Gt); err != nil {
				return nil, err
			}
			return ast.TMap{Key: k, Val: v}, nil
		default:
			var args []ast.Type
			if p.is(lexer.Lt) {
				p.advance()
				for !p.is(lexer.Gt) {
					a, err := p.parseType()
					if err != nil {
						return nil, err
					}
					args = append(args, a)
					if p.is(lexer.Comma) {
						p.advance()
					} else {
						break
					}
				}
				if _, err := p.expect(lexer.Gt); err != nil {
					return nil, err
				}
			}
			return ast.TNamed{Name: name, Args: args}, nil
		}
	}
	return nil, p.errf("expected type")
}

func (p *Parser) parseTypeDecl(isPub bool) (ast.TypeDecl, error) {
	p.advance() // 'type'
	name, err := p.expectIdent()
	if err != nil {
		return ast.TypeDecl{}, err
	}
	var typeParams []string
	if p.is(lexer.Lt) {
		p.advance()
		for !p.is(lexer.Gt) {
			n, err := p.expectIdent()
			if err != nil {
				return ast.TypeDecl{}, err
			}
			typeParams = append(typeParams, n)
			if p.is(lexer.Comma) {
				p.advance()
			} else {
				break
			}
		}
		if _, err := p.expect(lexer.Gt); err != nil {
			return ast.TypeDecl{}, err
		}
	}
	if _, err := p.expect(lexer.Eq); err != nil {
		return ast.TypeDecl{}, err
	}
	var body ast.TypeBody
	if p.is(lexer.LBrace) {
		fields, err := p.parseFieldList()
		if err != nil {
			return ast.TypeDecl{}, err
		}
		body = ast.RecordBody{Fields: fields}
	} else {
		var variants []ast.Variant
		for p.is(lexer.Pipe) {
			p.advance()
			vn, err := p.expectIdent()
			if err != nil {
				return ast.TypeDecl{}, err
			}
			var fields []ast.Field
			if p.is(lexer.LParen) {
				p.advance()
				for !p.is(lexer.RParen) {
					fn, err := p.expectIdent()
					if err != nil {
						return ast.TypeDecl{}, err
					}
					if _, err := p.expect(lexer.Colon); err != nil {
						return ast.TypeDecl{}, err
					}
					ft, err := p.parseType()
					if err != nil {
						return ast.TypeDecl{}, err
					}
					fields = append(fields, ast.Field{Name: fn, Type: ft})
					if p.is(lexer.Comma) {
						p.advance()
					} else {
						break
					}
				}
				if _, err := p.expect(lexer.RParen); err != nil {
					return ast.TypeDecl{}, err
				}
			}
			variants = append(variants, ast.Variant{Name: vn, Fields: fields})
		}
		body = ast.SumBody{Variants: variants}
	}
	return ast.TypeDecl{Name: name, Params: typeParams, IsPub: isPub, Body: body}, nil
}

func (p *Parser) parseFieldList() ([]ast.Field, error) {
	if _, err := p.expect(lexer.LBrace); err != nil {
		return nil, err
	}
	var fields []ast.Field
	for !p.is(lexer.RBrace) {
		n, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.Colon); err != nil {
			return nil, err
		}
		ty, err := p.parseType()
		if err != nil {
			return nil, err
		}
		fields = append(fields, ast.Field{Name: n, Type: ty})
		if p.is(lexer.Comma) {
			p.advance()
		} else {
			break
		}
	}
	if _, err := p.expect(lexer.RBrace); err != nil {
		return nil, err
	}
	return fields, nil
}

func (p *Parser) parseFnDecl(isPub bool) (ast.FnDecl, error) {
	startSpan := p.peek().Span
	p.advance() // 'fn'
	name, err := p.expectIdent()
	if err != nil {
		return ast.FnDecl{}, err
	}
	params, err := p.parseParamList()
	if err != nil {
		return ast.FnDecl{}, err
	}
	var ret ast.Type
	if p.is(lexer.Colon) {
		p.advance()
		ret, err = p.parseType()
		if err != nil {
			return ast.FnDecl{}, err
		}
	}
	var uses []string
	if p.is(lexer.KwUses) {
		p.advance()
		if _, err := p.expect(lexer.LBrack); err != nil {
			return ast.FnDecl{}, err
		}
		for !p.is(lexer.RBrack) {
			u, err := p.expectIdent()
			if err != nil {
				return ast.FnDecl{}, err
			}
			uses = append(uses, u)
			if p.is(lexer.Comma) {
				p.advance()
			} else {
				break
			}
		}
		if _, err := p.expect(lexer.RBrack); err != nil {
			return ast.FnDecl{}, err
		}
	}
	body, err := p.parseBlock()
	if err != nil {
		return ast.FnDecl{}, err
	}
	return ast.FnDecl{
		Name: name, Params: params, Ret: ret, Uses: uses, Body: body, IsPub: isPub,
		Span: ast.Span{File: p.file, ByteStart: startSpan.ByteStart, Line: startSpan.Line, Col: startSpan.Col},
	}, nil
}

func (p *Parser) parseBlock() (ast.Block, error) {
	if _, err := p.expect(lexer.LBrace); err != nil {
		return ast.Block{}, err
	}
	var stmts []ast.Stmt
	var tail ast.Expr
	for !p.is(lexer.RBrace) {
		if p.is(lexer.KwLet) {
			p.advance()
			name, err := p.expectIdent()
			if err != nil {
				return ast.Block{}, err
			}
			if _, err := p.expect(lexer.Eq); err != nil {
				return ast.Block{}, err
			}
			e, err := p.parseExpr()
			if err != nil {
				return ast.Block{}, err
			}
			stmts = append(stmts, ast.LetStmt{Name: name, Expr: e})
			if p.is(lexer.Colon) { // tolerate a stray separator-less style; no-op
			}
			continue
		}
		e, err := p.parseExpr()
		if err != nil {
			return ast.Block{}, err
		}
		if p.is(lexer.RBrace) {
			tail = e
			break
		}
		stmts = append(stmts, ast.ExprStmt{Expr: e})
	}
	if _, err := p.expect(lexer.RBrace); err != nil {
		return ast.Block{}, err
	}
	return ast.Block{Stmts: stmts, Tail: tail}, nil
}

// ---- expressions ----

func (p *Parser) parseExpr() (ast.Expr, error) { return p.parsePipe() }

func (p *Parser) parsePipe() (ast.Expr, error) {
	lhs, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.is(lexer.Question) {
		sp := p.advance().Span
		lhs = ast.ETry{Inner: lhs, Span: sp}
	}
	for p.is(lexer.PipeGreater) {
		p.advance()
		rhs, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		lhs, err = desugarPipe(lhs, rhs)
		if err != nil {
			return nil, err
		}
		if p.is(lexer.Question) {
			sp := p.advance().Span
			lhs = ast.ETry{Inner: lhs, Span: sp}
		}
	}
	return lhs, nil
}

// desugarPipe implements the four pipeline-desugar rules of §4.3.2.
func desugarPipe(lhs, rhs ast.Expr) (ast.Expr, error) {
	switch f := rhs.(type) {
	case ast.EIdent:
		return ast.ECall{Fn: f.Name, Args: []ast.Expr{lhs}}, nil
	case ast.ECall:
		newArgs := append([]ast.Expr{lhs}, f.Args...)
		return ast.ECall{Fn: f.Fn, Args: newArgs}, nil
	case ast.ECallExpr:
		newArgs := append([]ast.Expr{lhs}, f.Args...)
		return ast.ECallExpr{Fn: f.Fn, Args: newArgs}, nil
	case ast.ELambda:
		return ast.ECallExpr{Fn: f, Args: []ast.Expr{lhs}}, nil
	case ast.EField:
		if base, ok := f.Base.(ast.EIdent); ok {
			return ast.ECall{Fn: base.Name + "." + f.Field, Args: []ast.Expr{lhs}}, nil
		}
		return nil, ferr.New(ferr.ErrParse, "|> right-hand side field access must be on a simple identifier")
	default:
		return ast.ECallExpr{Fn: rhs, Args: []ast.Expr{lhs}}, nil
	}
}

func (p *Parser) parseOr() (ast.Expr, error) {
	lhs, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.is(lexer.OrOr) {
		p.advance()
		rhs, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		lhs = ast.EBinOp{Op: ast.OpOr, Lhs: lhs, Rhs: rhs}
	}
	return lhs, nil
}

func (p *Parser) parseAnd() (ast.Expr, error) {
	lhs, err := p.parseCmp()
	if err != nil {
		return nil, err
	}
	for p.is(lexer.AndAnd) {
		p.advance()
		rhs, err := p.parseCmp()
		if err != nil {
			return nil, err
		}
		lhs = ast.EBinOp{Op: ast.OpAnd, Lhs: lhs, Rhs: rhs}
	}
	return lhs, nil
}

func (p *Parser) parseCmp() (ast.Expr, error) {
	lhs, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	var op ast.BinOp
	hasOp := true
	switch p.peek().Kind {
	case lexer.EqEq:
		op = ast.OpEq
	case lexer.Le:
		op = ast.OpLe
	case lexer.Ge:
		op = ast.OpGe
	case lexer.Lt:
		op = ast.OpLt
	case lexer.Gt:
		op = ast.OpGt
	default:
		hasOp = false
	}
	if !hasOp {
		return lhs, nil
	}
	p.advance()
	rhs, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	return ast.EBinOp{Op: op, Lhs: lhs, Rhs: rhs}, nil
}

func (p *Parser) parseAdd() (ast.Expr, error) {
	lhs, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for {
		var op ast.BinOp
		switch p.peek().Kind {
		case lexer.Plus:
			op = ast.OpAdd
		case lexer.Minus:
			op = ast.OpSub
		case lexer.PlusPlus:
			op = ast.OpConcat
		default:
			return lhs, nil
		}
		p.advance()
		rhs, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		lhs = ast.EBinOp{Op: op, Lhs: lhs, Rhs: rhs}
	}
}

func (p *Parser) parseMul() (ast.Expr, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op ast.BinOp
		switch p.peek().Kind {
		case lexer.Star:
			op = ast.OpMul
		case lexer.Slash:
			op = ast.OpDiv
		case lexer.Percent:
			op = ast.OpMod
		default:
			return lhs, nil
		}
		p.advance()
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		lhs = ast.EBinOp{Op: op, Lhs: lhs, Rhs: rhs}
	}
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	if p.is(lexer.Minus) {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.EUnaryMinus{Operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (ast.Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().Kind {
		case lexer.Dot:
			p.advance()
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			if p.is(lexer.LParen) {
				args, err := p.parseArgs()
				if err != nil {
					return nil, err
				}
				if base, ok := e.(ast.EIdent); ok {
					e = ast.ECall{Fn: base.Name + "." + name, Args: args}
				} else {
					e = ast.ECallExpr{Fn: ast.EField{Base: e, Field: name}, Args: args}
				}
			} else {
				e = ast.EField{Base: e, Field: name}
			}
		case lexer.LParen:
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			if base, ok := e.(ast.EIdent); ok {
				e = ast.ECall{Fn: base.Name, Args: args}
			} else {
				e = ast.ECallExpr{Fn: e, Args: args}
			}
		case lexer.Question:
			sp := p.advance().Span
			e = ast.ETry{Inner: e, Span: sp}
		default:
			return e, nil
		}
	}
}

func (p *Parser) parseArgs() ([]ast.Expr, error) {
	if _, err := p.expect(lexer.LParen); err != nil {
		return nil, err
	}
	var args []ast.Expr
	for !p.is(lexer.RParen) {
		a, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if p.is(lexer.Comma) {
			p.advance()
		} else {
			break
		}
	}
	if _, err := p.expect(lexer.RParen); err != nil {
		return nil, err
	}
	return args, nil
}

// looksLikeLambdaParams scans forward from a '(' token to its matching ')'
// and reports whether it is followed by '=>', i.e. the parenthesized group
// is a lambda parameter list rather than a parenthesized expression.
func (p *Parser) looksLikeLambdaParams() bool {
	depth := 0
	i := p.pos
	for i < len(p.toks) {
		switch p.toks[i].Kind {
		case lexer.LParen:
			depth++
		case lexer.RParen:
			depth--
			if depth == 0 {
				return i+1 < len(p.toks) && p.toks[i+1].Kind == lexer.FatArrow
			}
		case lexer.EOF:
			return false
		}
		i++
	}
	return false
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	switch p.peek().Kind {
	case lexer.KwUnit:
		p.advance()
		return ast.EUnit{}, nil
	case lexer.KwTrue:
		p.advance()
		return ast.EBool{V: true}, nil
	case lexer.KwFalse:
		p.advance()
		return ast.EBool{V: false}, nil
	case lexer.Int:
		t := p.advance()
		return ast.EInt{Lit: t.Text}, nil
	case lexer.Text:
		t := p.advance()
		return ast.EText{V: t.Text}, nil
	case lexer.BytesHex:
		t := p.advance()
		return ast.EBytesHex{Hex: t.Text}, nil
	case lexer.Ident:
		t := p.advance()
		return ast.EIdent{Name: t.Text}, nil
	case lexer.LBrack:
		return p.parseListLit()
	case lexer.LBrace:
		return p.parseRecordLit()
	case lexer.KwIf:
		return p.parseIfExpr()
	case lexer.KwMatch:
		return p.parseMatchExpr()
	case lexer.KwFn:
		return p.parseFnLambda()
	case lexer.LParen:
		if p.looksLikeLambdaParams() {
			return p.parseParenLambda()
		}
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RParen); err != nil {
			return nil, err
		}
		return e, nil
	}
	return nil, p.errf("expected expression")
}

func (p *Parser) parseListLit() (ast.Expr, error) {
	p.advance() // '['
	var elems []ast.Expr
	for !p.is(lexer.RBrack) {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		if p.is(lexer.Comma) {
			p.advance()
		} else {
			break
		}
	}
	if _, err := p.expect(lexer.RBrack); err != nil {
		return nil, err
	}
	return ast.EListLit{Elems: elems}, nil
}

func (p *Parser) parseRecordLit() (ast.Expr, error) {
	p.advance() // '{'
	var fields []ast.RecordLitField
	for !p.is(lexer.RBrace) {
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.Colon); err != nil {
			return nil, err
		}
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		fields = append(fields, ast.RecordLitField{Name: name, Val: v})
		if p.is(lexer.Comma) {
			p.advance()
		} else {
			break
		}
	}
	if _, err := p.expect(lexer.RBrace); err != nil {
		return nil, err
	}
	return ast.ERecordLit{Fields: fields}, nil
}

func (p *Parser) parseIfExpr() (ast.Expr, error) {
	p.advance() // 'if'
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	var thenB, elseB ast.Block
	if p.is(lexer.KwThen) {
		p.advance()
		te, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		thenB = ast.Block{Tail: te}
		if _, err := p.expect(lexer.KwElse); err != nil {
			return nil, err
		}
		ee, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elseB = ast.Block{Tail: ee}
	} else {
		thenB, err = p.parseBlock()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.KwElse); err != nil {
			return nil, err
		}
		if p.is(lexer.KwIf) {
			ie, err := p.parseIfExpr()
			if err != nil {
				return nil, err
			}
			elseB = ast.Block{Tail: ie}
		} else {
			elseB, err = p.parseBlock()
			if err != nil {
				return nil, err
			}
		}
	}
	return ast.EIf{Cond: cond, Then: thenB, Else: elseB}, nil
}

func (p *Parser) parseMatchExpr() (ast.Expr, error) {
	p.advance() // 'match'
	scrut, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LBrace); err != nil {
		return nil, err
	}
	var arms []ast.MatchArm
	for !p.is(lexer.RBrace) {
		pat, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		var guard ast.Expr
		if p.is(lexer.KwIf) {
			p.advance()
			guard, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(lexer.FatArrow); err != nil {
			return nil, err
		}
		body, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		arms = append(arms, ast.MatchArm{Pattern: pat, Guard: guard, Body: body})
		if p.is(lexer.Comma) {
			p.advance()
		} else {
			break
		}
	}
	if _, err := p.expect(lexer.RBrace); err != nil {
		return nil, err
	}
	return ast.EMatch{Scrutinee: scrut, Arms: arms}, nil
}

func (p *Parser) parseFnLambda() (ast.Expr, error) {
	p.advance() // 'fn'
	if _, err := p.expect(lexer.LParen); err != nil {
		return nil, err
	}
	var params []string
	for !p.is(lexer.RParen) {
		n, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		params = append(params, n)
		if p.is(lexer.Comma) {
			p.advance()
		} else {
			break
		}
	}
	if _, err := p.expect(lexer.RParen); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return ast.ELambda{Params: params, Body: ast.EBlock{Block: body}}, nil
}

func (p *Parser) parseParenLambda() (ast.Expr, error) {
	p.advance() // '('
	var params []string
	for !p.is(lexer.RParen) {
		n, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		params = append(params, n)
		if p.is(lexer.Comma) {
			p.advance()
		} else {
			break
		}
	}
	if _, err := p.expect(lexer.RParen); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.FatArrow); err != nil {
		return nil, err
	}
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return ast.ELambda{Params: params, Body: body}, nil
}

// ---- patterns ----

func (p *Parser) parsePattern() (ast.Pattern, error) {
	switch p.peek().Kind {
	case lexer.Underscore:
		p.advance()
		return ast.PWildcard{}, nil
	case lexer.KwUnit:
		p.advance()
		return ast.PLit{Value: ast.EUnit{}}, nil
	case lexer.KwTrue:
		p.advance()
		return ast.PLit{Value: ast.EBool{V: true}}, nil
	case lexer.KwFalse:
		p.advance()
		return ast.PLit{Value: ast.EBool{V: false}}, nil
	case lexer.Int:
		t := p.advance()
		return ast.PLit{Value: ast.EInt{Lit: t.Text}}, nil
	case lexer.Text:
		t := p.advance()
		return ast.PLit{Value: ast.EText{V: t.Text}}, nil
	case lexer.BytesHex:
		t := p.advance()
		return ast.PLit{Value: ast.EBytesHex{Hex: t.Text}}, nil
	case lexer.LBrack:
		return p.parseListPattern()
	case lexer.LBrace:
		return p.parseRecordPattern()
	case lexer.Ident:
		name := p.peek().Text
		if (name == "ok" || name == "err") && p.peekAt(1).Kind == lexer.LParen {
			p.advance()
			p.advance() // '('
			inner, err := p.parsePattern()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.RParen); err != nil {
				return nil, err
			}
			if name == "ok" {
				return ast.POk{Inner: inner}, nil
			}
			return ast.PErr{Inner: inner}, nil
		}
		p.advance()
		return ast.PIdent{Name: name}, nil
	}
	return nil, p.errf("expected pattern")
}

func (p *Parser) parseListPattern() (ast.Pattern, error) {
	p.advance() // '['
	var elems []ast.Pattern
	var rest *string
	for !p.is(lexer.RBrack) {
		if p.is(lexer.DotDotDot) {
			p.advance()
			n, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			rest = &n
			break
		}
		e, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		if p.is(lexer.Comma) {
			p.advance()
		} else {
			break
		}
	}
	if _, err := p.expect(lexer.RBrack); err != nil {
		return nil, err
	}
	return ast.PList{Elems: elems, Rest: rest}, nil
}

func (p *Parser) parseRecordPattern() (ast.Pattern, error) {
	p.advance() // '{'
	var fields []ast.PatField
	for !p.is(lexer.RBrace) {
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.Colon); err != nil {
			return nil, err
		}
		pat, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		fields = append(fields, ast.PatField{Name: name, Pat: pat})
		if p.is(lexer.Comma) {
			p.advance()
		} else {
			break
		}
	}
	if _, err := p.expect(lexer.RBrace); err != nil {
		return nil, err
	}
	return ast.PRecord{Fields: fields}, nil
}
