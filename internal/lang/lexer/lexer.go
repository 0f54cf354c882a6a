// Package lexer tokenizes fard module source bytes.
package lexer

import (
	"fmt"

	"github.com/mauludsadiq/fard/internal/ferr"
	"github.com/mauludsadiq/fard/internal/lang/ast"
)

type Kind int

const (
	EOF Kind = iota
	Ident
	Text
	BytesHex
	Int

	KwModule
	KwImport
	KwAs
	KwPub
	KwType
	KwEffect
	KwFn
	KwArtifact
	KwUses
	KwRun
	KwLet
	KwIn
	KwIf
	KwThen
	KwElse
	KwMatch
	KwTrue
	KwFalse
	KwUnit

	LParen
	RParen
	LBrace
	RBrace
	LBrack
	RBrack
	Lt
	Gt
	Colon
	Comma
	Dot
	Eq
	Pipe
	Underscore
	DotDotDot

	Plus
	Minus
	Star
	Slash
	Percent
	PlusPlus

	EqEq
	Le
	Ge
	AndAnd
	OrOr
	PipeGreater
	FatArrow
	Question
)

var keywords = map[string]Kind{
	"module": KwModule, "import": KwImport, "as": KwAs, "pub": KwPub,
	"type": KwType, "effect": KwEffect, "fn": KwFn, "artifact": KwArtifact,
	"uses": KwUses, "Run": KwRun, "let": KwLet, "in": KwIn, "if": KwIf,
	"then": KwThen, "else": KwElse, "match": KwMatch, "true": KwTrue,
	"false": KwFalse, "unit": KwUnit,
}

type Token struct {
	Kind Kind
	Text string // identifier name, decoded text/bytes-hex/int literal payload
	Span ast.Span
}

type Lexer struct {
	file string
	s    []byte
	i    int
	line int
	col  int
}

func New(file string, src []byte) *Lexer {
	return &Lexer{file: file, s: src, i: 0, line: 1, col: 1}
}

func (lx *Lexer) peekByte() (byte, bool) {
	if lx.i >= len(lx.s) {
		return 0, false
	}
	return lx.s[lx.i], true
}

func (lx *Lexer) at(off int) (byte, bool) {
	j := lx.i + off
	if j >= len(lx.s) {
		return 0, false
	}
	return lx.s[j], true
}

func (lx *Lexer) bump() byte {
	b := lx.s[lx.i]
	lx.i++
	if b == '\n' {
		lx.line++
		lx.col = 1
	} else {
		lx.col++
	}
	return b
}

func (lx *Lexer) span(start, startLine, startCol int) ast.Span {
	return ast.Span{File: lx.file, ByteStart: start, ByteEnd: lx.i, Line: startLine, Col: startCol}
}

func (lx *Lexer) skipWSAndComments() {
	for {
		for {
			b, ok := lx.peekByte()
			if !ok || !(b == ' ' || b == '\t' || b == '\r' || b == '\n') {
				break
			}
			lx.bump()
		}
		b, ok := lx.peekByte()
		if !ok {
			return
		}
		if b == '/' {
			if n, ok2 := lx.at(1); ok2 && n == '/' {
				for {
					b, ok := lx.peekByte()
					if !ok || b == '\n' {
						break
					}
					lx.bump()
				}
				continue
			}
		}
		if b == '#' {
			for {
				b, ok := lx.peekByte()
				if !ok || b == '\n' {
					break
				}
				lx.bump()
			}
			continue
		}
		return
	}
}

func isIdentStart(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_'
}
func isIdentCont(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}
func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func (lx *Lexer) parseErr(start, startLine, startCol int, format string, args ...any) error {
	sp := lx.span(start, startLine, startCol)
	return ferr.New(ferr.ErrParse, format, args...).WithSpan(ferr.Span{
		File: sp.File, ByteStart: sp.ByteStart, ByteEnd: sp.ByteEnd, Line: sp.Line, Col: sp.Col,
	})
}

// Next returns the next token, or an *ferr.Error (class ERROR_PARSE) on a
// lexical error.
func (lx *Lexer) Next() (Token, error) {
	lx.skipWSAndComments()
	start, startLine, startCol := lx.i, lx.line, lx.col
	b, ok := lx.peekByte()
	if !ok {
		return Token{Kind: EOF, Span: lx.span(start, startLine, startCol)}, nil
	}

	mk := func(k Kind) (Token, error) {
		return Token{Kind: k, Span: lx.span(start, startLine, startCol)}, nil
	}

	switch {
	case b == '<':
		lx.bump()
		if n, ok := lx.peekByte(); ok && n == '=' {
			lx.bump()
			return mk(Le)
		}
		return mk(Lt)
	case b == '>':
		lx.bump()
		if n, ok := lx.peekByte(); ok && n == '=' {
			lx.bump()
			return mk(Ge)
		}
		return mk(Gt)
	case b == '+':
		lx.bump()
		if n, ok := lx.peekByte(); ok && n == '+' {
			lx.bump()
			return mk(PlusPlus)
		}
		return mk(Plus)
	case b == '-':
		lx.bump()
		return mk(Minus)
	case b == '*':
		lx.bump()
		return mk(Star)
	case b == '/':
		lx.bump()
		return mk(Slash)
	case b == '%':
		lx.bump()
		return mk(Percent)
	case b == '=':
		lx.bump()
		if n, ok := lx.peekByte(); ok {
			if n == '=' {
				lx.bump()
				return mk(EqEq)
			}
			if n == '>' {
				lx.bump()
				return mk(FatArrow)
			}
		}
		return mk(Eq)
	case b == '&':
		lx.bump()
		if n, ok := lx.peekByte(); ok && n == '&' {
			lx.bump()
			return mk(AndAnd)
		}
		return Token{}, lx.parseErr(start, startLine, startCol, "expected &&")
	case b == '|':
		lx.bump()
		if n, ok := lx.peekByte(); ok {
			if n == '|' {
				lx.bump()
				return mk(OrOr)
			}
			if n == '>' {
				lx.bump()
				return mk(PipeGreater)
			}
		}
		return mk(Pipe)
	case b == '?':
		lx.bump()
		return mk(Question)
	case b == '(':
		lx.bump()
		return mk(LParen)
	case b == ')':
		lx.bump()
		return mk(RParen)
	case b == '{':
		lx.bump()
		return mk(LBrace)
	case b == '}':
		lx.bump()
		return mk(RBrace)
	case b == '[':
		lx.bump()
		return mk(LBrack)
	case b == ']':
		lx.bump()
		return mk(RBrack)
	case b == ':':
		lx.bump()
		return mk(Colon)
	case b == ',':
		lx.bump()
		return mk(Comma)
	case b == '.':
		lx.bump()
		if n, ok := lx.peekByte(); ok && n == '.' {
			if n2, ok2 := lx.at(1); ok2 && n2 == '.' {
				lx.bump()
				lx.bump()
				return mk(DotDotDot)
			}
		}
		return mk(Dot)
	case b == '"':
		s, err := lx.lexText()
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: Text, Text: s, Span: lx.span(start, startLine, startCol)}, nil
	case b >= '0' && b <= '9':
		s, err := lx.lexInt()
		if err != nil {
			return Token{}, err
		}
		if len(s) > 1 && s[0] == '0' {
			return Token{}, lx.parseErr(start, startLine, startCol, "integer literal %q has a leading zero", s)
		}
		return Token{Kind: Int, Text: s, Span: lx.span(start, startLine, startCol)}, nil
	case b == 'b':
		if n, ok := lx.at(1); ok && n == '"' {
			s, err := lx.lexBytesHex()
			if err != nil {
				return Token{}, err
			}
			return Token{Kind: BytesHex, Text: s, Span: lx.span(start, startLine, startCol)}, nil
		}
		fallthrough
	case isIdentStart(b):
		id := lx.lexIdent()
		if id == "_" {
			return mk(Underscore)
		}
		if kw, isKw := keywords[id]; isKw {
			return mk(kw)
		}
		return Token{Kind: Ident, Text: id, Span: lx.span(start, startLine, startCol)}, nil
	}
	return Token{}, lx.parseErr(start, startLine, startCol, "unexpected byte %q", b)
}

func (lx *Lexer) lexIdent() string {
	start := lx.i
	for {
		b, ok := lx.peekByte()
		if !ok || !isIdentCont(b) {
			break
		}
		lx.bump()
	}
	return string(lx.s[start:lx.i])
}

func (lx *Lexer) lexInt() (string, error) {
	start := lx.i
	for {
		b, ok := lx.peekByte()
		if !ok || !isDigit(b) {
			break
		}
		lx.bump()
	}
	return string(lx.s[start:lx.i]), nil
}

func (lx *Lexer) lexText() (string, error) {
	startLine, startCol, startOff := lx.line, lx.col, lx.i
	lx.bump() // opening quote
	var out []byte
	for {
		b, ok := lx.peekByte()
		if !ok {
			return "", lx.parseErr(startOff, startLine, startCol, "unterminated string")
		}
		lx.bump()
		if b == '"' {
			return string(out), nil
		}
		if b == '\\' {
			e, ok := lx.peekByte()
			if !ok {
				return "", lx.parseErr(startOff, startLine, startCol, "bad escape")
			}
			lx.bump()
			switch e {
			case '"':
				out = append(out, '"')
			case '\\':
				out = append(out, '\\')
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case 'u':
				r, err := lx.lexUnicodeEscape()
				if err != nil {
					return "", lx.parseErr(startOff, startLine, startCol, "%v", err)
				}
				out = append(out, r...)
			default:
				return "", lx.parseErr(startOff, startLine, startCol, "unsupported escape \\%c", e)
			}
			continue
		}
		out = append(out, b)
	}
}

func (lx *Lexer) lexUnicodeEscape() ([]byte, error) {
	var r rune
	for i := 0; i < 4; i++ {
		b, ok := lx.peekByte()
		if !ok {
			return nil, fmt.Errorf("unterminated \\u escape")
		}
		lx.bump()
		var d rune
		switch {
		case b >= '0' && b <= '9':
			d = rune(b - '0')
		case b >= 'a' && b <= 'f':
			d = rune(b-'a') + 10
		case b >= 'A' && b <= 'F':
			d = rune(b-'A') + 10
		default:
			return nil, fmt.Errorf("bad hex digit in \\u escape")
		}
		r = r*16 + d
	}
	return []byte(string(r)), nil
}

func (lx *Lexer) lexBytesHex() (string, error) {
	startLine, startCol, startOff := lx.line, lx.col, lx.i
	lx.bump() // 'b'
	q, ok := lx.peekByte()
	if !ok || q != '"' {
		return "", lx.parseErr(startOff, startLine, startCol, "expected b\"")
	}
	lx.bump()
	start := lx.i
	for {
		b, ok := lx.peekByte()
		if !ok {
			return "", lx.parseErr(startOff, startLine, startCol, "unterminated bytes literal")
		}
		if b == '"' {
			s := string(lx.s[start:lx.i])
			lx.bump()
			return s, nil
		}
		lx.bump()
	}
}
