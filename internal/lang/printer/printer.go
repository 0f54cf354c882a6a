// Package printer renders a parsed module back to its canonical textual
// form. The canonical print is what gets hashed into a source CID: two
// modules that parse to the same AST must print identically, and the
// printer must be whitespace- and ordering-deterministic.
package printer

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/mauludsadiq/fard/internal/digest"
	"github.com/mauludsadiq/fard/internal/lang/ast"
)

// SourceCID is the content-addressed identity of m's canonical print.
func SourceCID(m *ast.Module) string {
	return digest.CID(Print(m))
}

// Print renders m in canonical form.
func Print(m *ast.Module) []byte {
	var buf bytes.Buffer
	buf.WriteString("module ")
	buf.WriteString(strings.Join(m.Name, "."))
	buf.WriteString("\n")

	for _, im := range m.Imports {
		buf.WriteString("import ")
		buf.WriteString(strings.Join(im.Path, "."))
		if im.Alias != "" {
			buf.WriteString(" as ")
			buf.WriteString(im.Alias)
		}
		buf.WriteString("\n")
	}
	for _, fi := range m.FactImports {
		fmt.Fprintf(&buf, "import %s: Run(%s)\n", fi.Name, printText(fi.RunID))
	}
	for _, ad := range m.Artifacts {
		fmt.Fprintf(&buf, "artifact %s: Run(%s)\n", ad.Name, printText(ad.RunID))
	}
	for _, ed := range m.Effects {
		buf.WriteString("effect ")
		buf.WriteString(ed.Name)
		printParams(&buf, ed.Params)
		buf.WriteString(": ")
		printType(&buf, ed.Ret)
		buf.WriteString("\n")
	}
	for _, td := range m.Types {
		printTypeDecl(&buf, td)
	}
	for _, fd := range m.Fns {
		printFnDecl(&buf, fd)
	}
	return buf.Bytes()
}

func printText(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func printParams(buf *bytes.Buffer, params []ast.Param) {
	buf.WriteString("(")
	for i, p := range params {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(p.Name)
		buf.WriteString(": ")
		printType(buf, p.Type)
	}
	buf.WriteString(")")
}

func printType(buf *bytes.Buffer, t ast.Type) {
	switch x := t.(type) {
	case ast.TUnit:
		buf.WriteString("unit")
	case ast.TBool:
		buf.WriteString("bool")
	case ast.TInt:
		buf.WriteString("int")
	case ast.TBytes:
		buf.WriteString("bytes")
	case ast.TText:
		buf.WriteString("text")
	case ast.TValue:
		buf.WriteString("Value")
	case ast.TList:
		buf.WriteString("List<")
		printType(buf, x.Elem)
		buf.WriteString(">")
	case ast.TMap:
		buf.WriteString("Map<")
		printType(buf, x.Key)
		buf.WriteString(", ")
		printType(buf, x.Val)
		buf.WriteString(">")
	case ast.TNamed:
		buf.WriteString(x.Name)
		if len(x.Args) > 0 {
			buf.WriteString("<")
			for i, a := range x.Args {
				if i > 0 {
					buf.WriteString(", ")
				}
				printType(buf, a)
			}
			buf.WriteString(">")
		}
	case nil:
		// omitted return type
	}
}

func printTypeDecl(buf *bytes.Buffer, td ast.TypeDecl) {
	if td.IsPub {
		buf.WriteString("pub ")
	}
	buf.WriteString("type ")
	buf.WriteString(td.Name)
	if len(td.Params) > 0 {
		buf.WriteString("<")
		buf.WriteString(strings.Join(td.Params, ", "))
		buf.WriteString(">")
	}
	buf.WriteString(" = ")
	switch b := td.Body.(type) {
	case ast.RecordBody:
		buf.WriteString("{")
		for i, f := range b.Fields {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(f.Name)
			buf.WriteString(": ")
			printType(buf, f.Type)
		}
		buf.WriteString("}")
	case ast.SumBody:
		for _, v := range b.Variants {
			buf.WriteString("| ")
			buf.WriteString(v.Name)
			if len(v.Fields) > 0 {
				buf.WriteString("(")
				for i, f := range v.Fields {
					if i > 0 {
						buf.WriteString(", ")
					}
					buf.WriteString(f.Name)
					buf.WriteString(": ")
					printType(buf, f.Type)
				}
				buf.WriteString(")")
			}
		}
	}
	buf.WriteString("\n")
}

func printFnDecl(buf *bytes.Buffer, fd ast.FnDecl) {
	if fd.IsPub {
		buf.WriteString("pub ")
	}
	buf.WriteString("fn ")
	buf.WriteString(fd.Name)
	printParams(buf, fd.Params)
	if fd.Ret != nil {
		buf.WriteString(": ")
		printType(buf, fd.Ret)
	}
	if len(fd.Uses) > 0 {
		uses := append([]string(nil), fd.Uses...)
		sort.Strings(uses)
		buf.WriteString(" uses[")
		buf.WriteString(strings.Join(uses, ", "))
		buf.WriteString("]")
	}
	buf.WriteString(" ")
	printBlock(buf, fd.Body)
	buf.WriteString("\n")
}

func printBlock(buf *bytes.Buffer, b ast.Block) {
	buf.WriteString("{ ")
	for _, st := range b.Stmts {
		switch s := st.(type) {
		case ast.LetStmt:
			buf.WriteString("let ")
			buf.WriteString(s.Name)
			buf.WriteString(" = ")
			printExpr(buf, s.Expr)
			buf.WriteString("; ")
		case ast.ExprStmt:
			printExpr(buf, s.Expr)
			buf.WriteString("; ")
		}
	}
	if b.Tail != nil {
		printExpr(buf, b.Tail)
	} else {
		buf.WriteString("unit")
	}
	buf.WriteString(" }")
}

func printExpr(buf *bytes.Buffer, e ast.Expr) {
	switch x := e.(type) {
	case ast.EUnit:
		buf.WriteString("unit")
	case ast.EBool:
		if x.V {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case ast.EInt:
		buf.WriteString(x.Lit)
	case ast.EText:
		buf.WriteString(printText(x.V))
	case ast.EBytesHex:
		buf.WriteString(`b"`)
		buf.WriteString(x.Hex)
		buf.WriteString(`"`)
	case ast.EIdent:
		buf.WriteString(x.Name)
	case ast.ECall:
		buf.WriteString(x.Fn)
		printArgs(buf, x.Args)
	case ast.ECallExpr:
		printExpr(buf, x.Fn)
		printArgs(buf, x.Args)
	case ast.EField:
		printExpr(buf, x.Base)
		buf.WriteString(".")
		buf.WriteString(x.Field)
	case ast.EIf:
		buf.WriteString("if ")
		printExpr(buf, x.Cond)
		buf.WriteString(" ")
		printBlock(buf, x.Then)
		buf.WriteString(" else ")
		printBlock(buf, x.Else)
	case ast.EMatch:
		buf.WriteString("match ")
		printExpr(buf, x.Scrutinee)
		buf.WriteString(" { ")
		for i, arm := range x.Arms {
			if i > 0 {
				buf.WriteString(", ")
			}
			printPattern(buf, arm.Pattern)
			if arm.Guard != nil {
				buf.WriteString(" if ")
				printExpr(buf, arm.Guard)
			}
			buf.WriteString(" => ")
			printExpr(buf, arm.Body)
		}
		buf.WriteString(" }")
	case ast.ELambda:
		buf.WriteString("(")
		buf.WriteString(strings.Join(x.Params, ", "))
		buf.WriteString(") => ")
		printExpr(buf, x.Body)
	case ast.ERecordLit:
		buf.WriteString("{ ")
		for i, f := range x.Fields {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(f.Name)
			buf.WriteString(": ")
			printExpr(buf, f.Val)
		}
		buf.WriteString(" }")
	case ast.EListLit:
		buf.WriteString("[")
		for i, el := range x.Elems {
			if i > 0 {
				buf.WriteString(", ")
			}
			printExpr(buf, el)
		}
		buf.WriteString("]")
	case ast.EBinOp:
		buf.WriteString("(")
		printExpr(buf, x.Lhs)
		buf.WriteString(" ")
		buf.WriteString(binOpStr(x.Op))
		buf.WriteString(" ")
		printExpr(buf, x.Rhs)
		buf.WriteString(")")
	case ast.EUnaryMinus:
		buf.WriteString("-")
		printExpr(buf, x.Operand)
	case ast.ETry:
		printExpr(buf, x.Inner)
		buf.WriteString("?")
	case ast.EBlock:
		printBlock(buf, x.Block)
	}
}

func printArgs(buf *bytes.Buffer, args []ast.Expr) {
	buf.WriteString("(")
	for i, a := range args {
		if i > 0 {
			buf.WriteString(", ")
		}
		printExpr(buf, a)
	}
	buf.WriteString(")")
}

func printPattern(buf *bytes.Buffer, p ast.Pattern) {
	switch x := p.(type) {
	case ast.PLit:
		printExpr(buf, x.Value)
	case ast.PIdent:
		buf.WriteString(x.Name)
	case ast.PWildcard:
		buf.WriteString("_")
	case ast.PList:
		buf.WriteString("[")
		for i, el := range x.Elems {
			if i > 0 {
				buf.WriteString(", ")
			}
			printPattern(buf, el)
		}
		if x.Rest != nil {
			if len(x.Elems) > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString("...")
			buf.WriteString(*x.Rest)
		}
		buf.WriteString("]")
	case ast.PRecord:
		buf.WriteString("{ ")
		for i, f := range x.Fields {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(f.Name)
			buf.WriteString(": ")
			printPattern(buf, f.Pat)
		}
		buf.WriteString(" }")
	case ast.POk:
		buf.WriteString("ok(")
		printPattern(buf, x.Inner)
		buf.WriteString(")")
	case ast.PErr:
		buf.WriteString("err(")
		printPattern(buf, x.Inner)
		buf.WriteString(")")
	}
}

func binOpStr(op ast.BinOp) string {
	switch op {
	case ast.OpAdd:
		return "+"
	case ast.OpSub:
		return "-"
	case ast.OpMul:
		return "*"
	case ast.OpDiv:
		return "/"
	case ast.OpMod:
		return "%"
	case ast.OpConcat:
		return "++"
	case ast.OpEq:
		return "=="
	case ast.OpLt:
		return "<"
	case ast.OpGt:
		return ">"
	case ast.OpLe:
		return "<="
	case ast.OpGe:
		return ">="
	case ast.OpAnd:
		return "&&"
	case ast.OpOr:
		return "||"
	}
	return "?"
}
