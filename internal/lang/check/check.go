// Package check performs the semantic pass over a parsed module: effect-use
// enforcement (a direct call to a declared effect is allowed only inside a
// function that lists it in its `uses` clause; calls into other functions
// are not followed), plus rejection of duplicate fn names and of `uses`
// entries naming undeclared effects. Unknown identifiers are not rejected.
package check

import (
	"fmt"

	"github.com/mauludsadiq/fard/internal/ferr"
	"github.com/mauludsadiq/fard/internal/lang/ast"
)

// Checked is the result of a successful check: the module, its fns indexed
// by name, and the set of declared effect names.
type Checked struct {
	Module    *ast.Module
	FnByName  map[string]*ast.FnDecl
	EffectSet map[string]bool
}

// Check validates a module and returns its resolved declarations, or the
// first classified error encountered.
func Check(m *ast.Module) (*Checked, error) {
	c := &Checked{
		Module:    m,
		FnByName:  map[string]*ast.FnDecl{},
		EffectSet: map[string]bool{},
	}
	for _, e := range m.Effects {
		c.EffectSet[e.Name] = true
	}
	for i := range m.Fns {
		f := &m.Fns[i]
		if _, dup := c.FnByName[f.Name]; dup {
			return nil, ferr.New(ferr.ErrEval, "duplicate fn declaration %q", f.Name)
		}
		c.FnByName[f.Name] = f
	}
	for _, f := range m.Fns {
		used := map[string]struct{}{}
		for _, u := range f.Uses {
			if !c.EffectSet[u] {
				return nil, ferr.New(ferr.ErrEffectNotAllowed,
					"fn %q declares use of undefined effect %q", f.Name, u).WithSpan(ferr.Span{
					File: f.Span.File, ByteStart: f.Span.ByteStart, Line: f.Span.Line, Col: f.Span.Col,
				})
			}
			used[u] = struct{}{}
		}
		if err := c.checkBlock(f.Name, used, f.Body); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Checked) checkBlock(fnName string, uses map[string]struct{}, b ast.Block) error {
	for _, st := range b.Stmts {
		var e ast.Expr
		switch s := st.(type) {
		case ast.LetStmt:
			e = s.Expr
		case ast.ExprStmt:
			e = s.Expr
		}
		if err := c.checkExpr(fnName, uses, e); err != nil {
			return err
		}
	}
	if b.Tail != nil {
		return c.checkExpr(fnName, uses, b.Tail)
	}
	return nil
}

// checkExpr walks the expression tree, flagging any call to a name that is
// an effect the enclosing fn did not declare via `uses`.
func (c *Checked) checkExpr(fnName string, uses map[string]struct{}, e ast.Expr) error {
	switch x := e.(type) {
	case ast.ECall:
		if c.EffectSet[x.Fn] {
			if _, ok := uses[x.Fn]; !ok {
				return ferr.New(ferr.ErrEffectNotAllowed,
					"fn %q invokes effect %q without declaring it in uses[...]", fnName, x.Fn)
			}
		}
		for _, a := range x.Args {
			if err := c.checkExpr(fnName, uses, a); err != nil {
				return err
			}
		}
	case ast.ECallExpr:
		if err := c.checkExpr(fnName, uses, x.Fn); err != nil {
			return err
		}
		for _, a := range x.Args {
			if err := c.checkExpr(fnName, uses, a); err != nil {
				return err
			}
		}
	case ast.EField:
		return c.checkExpr(fnName, uses, x.Base)
	case ast.EIf:
		if err := c.checkExpr(fnName, uses, x.Cond); err != nil {
			return err
		}
		if err := c.checkBlock(fnName, uses, x.Then); err != nil {
			return err
		}
		return c.checkBlock(fnName, uses, x.Else)
	case ast.EMatch:
		if err := c.checkExpr(fnName, uses, x.Scrutinee); err != nil {
			return err
		}
		for _, arm := range x.Arms {
			if arm.Guard != nil {
				if err := c.checkExpr(fnName, uses, arm.Guard); err != nil {
					return err
				}
			}
			if err := c.checkExpr(fnName, uses, arm.Body); err != nil {
				return err
			}
		}
	case ast.ELambda:
		return c.checkExpr(fnName, uses, x.Body)
	case ast.ERecordLit:
		for _, f := range x.Fields {
			if err := c.checkExpr(fnName, uses, f.Val); err != nil {
				return err
			}
		}
	case ast.EListLit:
		for _, el := range x.Elems {
			if err := c.checkExpr(fnName, uses, el); err != nil {
				return err
			}
		}
	case ast.EBinOp:
		if err := c.checkExpr(fnName, uses, x.Lhs); err != nil {
			return err
		}
		return c.checkExpr(fnName, uses, x.Rhs)
	case ast.EUnaryMinus:
		return c.checkExpr(fnName, uses, x.Operand)
	case ast.ETry:
		return c.checkExpr(fnName, uses, x.Inner)
	case ast.EBlock:
		return c.checkBlock(fnName, uses, x.Block)
	}
	return nil
}

// String is a debug helper, not used on any golden path.
func (c *Checked) String() string {
	return fmt.Sprintf("Checked{fns=%d, effects=%d}", len(c.FnByName), len(c.EffectSet))
}
