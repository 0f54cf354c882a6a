// Package eval implements the single-threaded tree-walking evaluator: a
// lexically scoped Env, checked i64-range arithmetic (via valuecore),
// pattern matching, `?` short-circuit on Result-shaped values, and effect
// dispatch through the EffectHandler interface.
//
// Runtime values are either a valuecore.Value (the closed, digestible
// universe) or a *Closure (a lambda, which is callable but never
// serializable and therefore deliberately outside valuecore.Value's closed
// tag set). Both flow through evaluation as plain `any`; asValue narrows
// back to valuecore.Value at every boundary that requires one (arithmetic,
// record construction, effect requests, fn returns).
package eval

import (
	"encoding/hex"
	"math/big"

	"github.com/mauludsadiq/fard/internal/ferr"
	"github.com/mauludsadiq/fard/internal/lang/ast"
	"github.com/mauludsadiq/fard/internal/lang/check"
	"github.com/mauludsadiq/fard/internal/valuecore"
)

// EffectHandler performs the side effect named by kind given a request
// Value, returning the effect's result Value. Implementations are supplied
// by the bundle runner (replaying recorded facts) or by a live runner.
type EffectHandler interface {
	Invoke(kind string, req valuecore.Value) (valuecore.Value, error)
}

// Closure is a runtime lambda value: a captured Env plus its AST body.
// It is callable but, unlike valuecore.Value, never content-addressed.
type Closure struct {
	Params []string
	Body   ast.Expr
	Env    *Env
}

// Env is a lexically scoped variable binding frame. A binding holds either
// a valuecore.Value or a *Closure.
type Env struct {
	vars   map[string]any
	parent *Env
}

func NewEnv(parent *Env) *Env {
	return &Env{vars: map[string]any{}, parent: parent}
}

func (e *Env) Get(name string) (any, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (e *Env) Set(name string, v any) { e.vars[name] = v }

func asValue(v any) (valuecore.Value, bool) {
	vv, ok := v.(valuecore.Value)
	return vv, ok
}

// Evaluator runs module fns against an EffectHandler.
type Evaluator struct {
	checked  *check.Checked
	handler  EffectHandler
	builtins map[string]Builtin
}

func New(checked *check.Checked, handler EffectHandler) *Evaluator {
	return &Evaluator{checked: checked, handler: handler, builtins: defaultBuiltins()}
}

// Call invokes the module fn named name with args already evaluated to
// Values, returning its result. A Result-shaped `?` propagation that
// escapes the fn body becomes that fn's ordinary return value.
func (ev *Evaluator) Call(name string, args []valuecore.Value) (valuecore.Value, error) {
	fn, ok := ev.checked.FnByName[name]
	if !ok {
		return nil, ferr.New(ferr.ErrEval, "call to undefined fn %q", name)
	}
	if len(args) != len(fn.Params) {
		return nil, ferr.New(ferr.ErrEval, "fn %q expects %d args, got %d", name, len(fn.Params), len(args))
	}
	env := NewEnv(nil)
	for i, p := range fn.Params {
		env.Set(p.Name, args[i])
	}
	v, err := ev.evalBlock(env, fn.Body)
	if pe, ok := err.(*propagate); ok {
		return pe.val, nil
	}
	if err != nil {
		return nil, err
	}
	rv, ok := asValue(v)
	if !ok {
		return nil, ferr.New(ferr.ErrEval, "fn %q returned a non-value (likely a bare lambda)", name)
	}
	return rv, nil
}

// propagate is the internal control-flow carrier for `?`: it unwinds up to
// the nearest enclosing fn call, which absorbs it as its own return value.
type propagate struct{ val valuecore.Value }

func (p *propagate) Error() string { return "propagate (internal control flow, not a user-visible error)" }

func resultTag(v valuecore.Value) (string, valuecore.Value, bool) {
	r, ok := v.(*valuecore.Record)
	if !ok || r.Len() != 2 {
		return "", nil, false
	}
	tagV, ok1 := r.Get("tag")
	valV, ok2 := r.Get("value")
	if !ok1 || !ok2 {
		return "", nil, false
	}
	t, ok := tagV.(valuecore.Text)
	if !ok {
		return "", nil, false
	}
	if string(t) != "ok" && string(t) != "err" {
		return "", nil, false
	}
	return string(t), valV, true
}

func makeResult(tag string, v valuecore.Value) valuecore.Value {
	return valuecore.NewRecord([]valuecore.KV{
		{Key: "tag", Val: valuecore.Text(tag)},
		{Key: "value", Val: v},
	})
}

func (ev *Evaluator) evalBlock(env *Env, b ast.Block) (any, error) {
	child := NewEnv(env)
	for _, st := range b.Stmts {
		switch s := st.(type) {
		case ast.LetStmt:
			v, err := ev.evalExpr(child, s.Expr)
			if err != nil {
				return nil, err
			}
			// Each let opens a fresh frame, so a closure built earlier in
			// the block keeps the bindings it captured.
			child = NewEnv(child)
			child.Set(s.Name, v)
		case ast.ExprStmt:
			if _, err := ev.evalExpr(child, s.Expr); err != nil {
				return nil, err
			}
		}
	}
	if b.Tail == nil {
		return valuecore.Unit{}, nil
	}
	return ev.evalExpr(child, b.Tail)
}

func (ev *Evaluator) evalExpr(env *Env, e ast.Expr) (any, error) {
	switch x := e.(type) {
	case ast.EUnit:
		return valuecore.Unit{}, nil
	case ast.EBool:
		return valuecore.Bool(x.V), nil
	case ast.EInt:
		n, ok := new(big.Int).SetString(x.Lit, 10)
		if !ok {
			return nil, ferr.New(ferr.ErrEval, "malformed int literal %q", x.Lit)
		}
		return valuecore.NewIntFromBig(n), nil
	case ast.EText:
		return valuecore.Text(x.V), nil
	case ast.EBytesHex:
		b, err := hex.DecodeString(x.Hex)
		if err != nil {
			return nil, ferr.New(ferr.ErrEval, "malformed bytes literal: %v", err)
		}
		return valuecore.Bytes(b), nil
	case ast.EIdent:
		if v, ok := env.Get(x.Name); ok {
			return v, nil
		}
		return nil, ferr.New(ferr.ErrEval, "unbound identifier %q", x.Name)
	case ast.EBlock:
		return ev.evalBlock(env, x.Block)
	case ast.EUnaryMinus:
		v, err := ev.evalExpr(env, x.Operand)
		if err != nil {
			return nil, err
		}
		vv, _ := asValue(v)
		i, ok := vv.(valuecore.Int)
		if !ok {
			return nil, ferr.New(ferr.ErrBadArg, "unary - requires int")
		}
		n, err := valuecore.INeg(i)
		if err != nil {
			return nil, err
		}
		return n, nil
	case ast.EBinOp:
		return ev.evalBinOp(env, x)
	case ast.EIf:
		c, err := ev.evalExpr(env, x.Cond)
		if err != nil {
			return nil, err
		}
		cv, _ := asValue(c)
		b, ok := cv.(valuecore.Bool)
		if !ok {
			return nil, ferr.New(ferr.ErrBadArg, "if condition must be bool")
		}
		if bool(b) {
			return ev.evalBlock(env, x.Then)
		}
		return ev.evalBlock(env, x.Else)
	case ast.EMatch:
		return ev.evalMatch(env, x)
	case ast.ELambda:
		return ev.makeClosure(env, x), nil
	case ast.ERecordLit:
		pairs := make([]valuecore.KV, 0, len(x.Fields))
		for _, f := range x.Fields {
			v, err := ev.evalExpr(env, f.Val)
			if err != nil {
				return nil, err
			}
			vv, ok := asValue(v)
			if !ok {
				return nil, ferr.New(ferr.ErrBadArg, "record field %q is not a value", f.Name)
			}
			pairs = append(pairs, valuecore.KV{Key: f.Name, Val: vv})
		}
		return valuecore.NewRecord(pairs), nil
	case ast.EListLit:
		out := make(valuecore.List, 0, len(x.Elems))
		for _, el := range x.Elems {
			v, err := ev.evalExpr(env, el)
			if err != nil {
				return nil, err
			}
			vv, ok := asValue(v)
			if !ok {
				return nil, ferr.New(ferr.ErrBadArg, "list element is not a value")
			}
			out = append(out, vv)
		}
		return out, nil
	case ast.EField:
		base, err := ev.evalExpr(env, x.Base)
		if err != nil {
			return nil, err
		}
		bv, _ := asValue(base)
		r, ok := bv.(*valuecore.Record)
		if !ok {
			return nil, ferr.New(ferr.ErrBadArg, "field access %q on non-record value", x.Field)
		}
		v, ok := r.Get(x.Field)
		if !ok {
			return nil, ferr.New(ferr.ErrBadArg, "record has no field %q", x.Field)
		}
		return v, nil
	case ast.ETry:
		v, err := ev.evalExpr(env, x.Inner)
		if err != nil {
			return nil, err
		}
		vv, ok := asValue(v)
		var tag string
		var inner valuecore.Value
		if ok {
			tag, inner, ok = resultTag(vv)
		}
		if !ok {
			return nil, ferr.New(ferr.QMarkExpectResult, "`?` requires a Result-shaped value").WithSpan(ferr.Span{
				File: x.Span.File, ByteStart: x.Span.ByteStart, Line: x.Span.Line, Col: x.Span.Col,
			})
		}
		if tag == "err" {
			return nil, &propagate{val: makeResult("err", inner)}
		}
		return inner, nil
	case ast.ECall:
		return ev.evalCall(env, x.Fn, x.Args)
	case ast.ECallExpr:
		fnV, err := ev.evalExpr(env, x.Fn)
		if err != nil {
			return nil, err
		}
		cl, ok := fnV.(*Closure)
		if !ok {
			return nil, ferr.New(ferr.ErrBadArg, "attempted to call a non-function value")
		}
		args := make([]any, 0, len(x.Args))
		for _, a := range x.Args {
			v, err := ev.evalExpr(env, a)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
		return ev.applyClosure(cl, args)
	}
	return nil, ferr.New(ferr.ErrEval, "unhandled expression node %T", e)
}

func (ev *Evaluator) evalBinOp(env *Env, x ast.EBinOp) (any, error) {
	if x.Op == ast.OpAnd || x.Op == ast.OpOr {
		lv, err := ev.evalExpr(env, x.Lhs)
		if err != nil {
			return nil, err
		}
		lvv, _ := asValue(lv)
		lb, ok := lvv.(valuecore.Bool)
		if !ok {
			return nil, ferr.New(ferr.ErrBadArg, "&&/|| requires bool operands")
		}
		if x.Op == ast.OpAnd && !bool(lb) {
			return valuecore.Bool(false), nil
		}
		if x.Op == ast.OpOr && bool(lb) {
			return valuecore.Bool(true), nil
		}
		rv, err := ev.evalExpr(env, x.Rhs)
		if err != nil {
			return nil, err
		}
		rvv, _ := asValue(rv)
		rb, ok := rvv.(valuecore.Bool)
		if !ok {
			return nil, ferr.New(ferr.ErrBadArg, "&&/|| requires bool operands")
		}
		return rb, nil
	}

	lv, err := ev.evalExpr(env, x.Lhs)
	if err != nil {
		return nil, err
	}
	rv, err := ev.evalExpr(env, x.Rhs)
	if err != nil {
		return nil, err
	}
	lvv, lok := asValue(lv)
	rvv, rok := asValue(rv)
	if !lok || !rok {
		return nil, ferr.New(ferr.ErrBadArg, "binary operator requires value operands")
	}

	switch x.Op {
	case ast.OpEq:
		return valuecore.Bool(valuecore.CanonEq(lvv, rvv)), nil
	case ast.OpLt, ast.OpGt, ast.OpLe, ast.OpGe:
		li, ok1 := lvv.(valuecore.Int)
		ri, ok2 := rvv.(valuecore.Int)
		if !ok1 || !ok2 {
			return nil, ferr.New(ferr.ErrBadArg, "comparison operators require int operands")
		}
		c := li.V.Cmp(ri.V)
		switch x.Op {
		case ast.OpLt:
			return valuecore.Bool(c < 0), nil
		case ast.OpGt:
			return valuecore.Bool(c > 0), nil
		case ast.OpLe:
			return valuecore.Bool(c <= 0), nil
		default:
			return valuecore.Bool(c >= 0), nil
		}
	case ast.OpConcat:
		switch lt := lvv.(type) {
		case valuecore.Text:
			rt, ok := rvv.(valuecore.Text)
			if !ok {
				return nil, ferr.New(ferr.ErrBadArg, "++ on text requires text operands")
			}
			return valuecore.Text(string(lt) + string(rt)), nil
		case valuecore.Bytes:
			rt, ok := rvv.(valuecore.Bytes)
			if !ok {
				return nil, ferr.New(ferr.ErrBadArg, "++ on bytes requires bytes operands")
			}
			out := make(valuecore.Bytes, 0, len(lt)+len(rt))
			out = append(out, lt...)
			out = append(out, rt...)
			return out, nil
		case valuecore.List:
			rt, ok := rvv.(valuecore.List)
			if !ok {
				return nil, ferr.New(ferr.ErrBadArg, "++ on list requires list operands")
			}
			out := make(valuecore.List, 0, len(lt)+len(rt))
			out = append(out, lt...)
			out = append(out, rt...)
			return out, nil
		default:
			return nil, ferr.New(ferr.ErrBadArg, "++ requires text, bytes, or list operands")
		}
	default:
		if x.Op == ast.OpAdd {
			if lt, ok := lvv.(valuecore.Text); ok {
				if rt, ok := rvv.(valuecore.Text); ok {
					return valuecore.Text(string(lt) + string(rt)), nil
				}
			}
		}
		li, ok1 := lvv.(valuecore.Int)
		ri, ok2 := rvv.(valuecore.Int)
		if !ok1 || !ok2 {
			return nil, ferr.New(ferr.ErrBadArg, "arithmetic operators require int operands")
		}
		switch x.Op {
		case ast.OpAdd:
			return valuecore.IAdd(li, ri)
		case ast.OpSub:
			return valuecore.ISub(li, ri)
		case ast.OpMul:
			return valuecore.IMul(li, ri)
		case ast.OpDiv:
			return valuecore.IDiv(li, ri)
		case ast.OpMod:
			return valuecore.IRem(li, ri)
		}
	}
	return nil, ferr.New(ferr.ErrEval, "unhandled binop")
}

func (ev *Evaluator) evalMatch(env *Env, x ast.EMatch) (any, error) {
	scrut, err := ev.evalExpr(env, x.Scrutinee)
	if err != nil {
		return nil, err
	}
	scrutV, ok := asValue(scrut)
	if !ok {
		return nil, ferr.New(ferr.ErrBadArg, "match scrutinee is not a value")
	}
	for _, arm := range x.Arms {
		bind := NewEnv(env)
		if !ev.matchPattern(bind, arm.Pattern, scrutV) {
			continue
		}
		if arm.Guard != nil {
			gv, err := ev.evalExpr(bind, arm.Guard)
			if err != nil {
				return nil, err
			}
			gvv, _ := asValue(gv)
			gb, ok := gvv.(valuecore.Bool)
			if !ok {
				return nil, ferr.New(ferr.ErrRuntime, "match guard not bool")
			}
			if !bool(gb) {
				continue
			}
		}
		return ev.evalExpr(bind, arm.Body)
	}
	return nil, ferr.New(ferr.ErrMatchNoArm, "no match arm matched the scrutinee")
}

func (ev *Evaluator) matchPattern(env *Env, pat ast.Pattern, v valuecore.Value) bool {
	switch p := pat.(type) {
	case ast.PWildcard:
		return true
	case ast.PIdent:
		env.Set(p.Name, v)
		return true
	case ast.PLit:
		lit, err := ev.evalExpr(env, p.Value)
		if err != nil {
			return false
		}
		litV, ok := asValue(lit)
		if !ok {
			return false
		}
		return valuecore.CanonEq(litV, v)
	case ast.PList:
		lst, ok := v.(valuecore.List)
		if !ok {
			return false
		}
		if p.Rest == nil {
			if len(lst) != len(p.Elems) {
				return false
			}
		} else if len(lst) < len(p.Elems) {
			return false
		}
		for i, ep := range p.Elems {
			if !ev.matchPattern(env, ep, lst[i]) {
				return false
			}
		}
		if p.Rest != nil {
			env.Set(*p.Rest, append(valuecore.List{}, lst[len(p.Elems):]...))
		}
		return true
	case ast.PRecord:
		r, ok := v.(*valuecore.Record)
		if !ok {
			return false
		}
		for _, f := range p.Fields {
			fv, ok := r.Get(f.Name)
			if !ok {
				return false
			}
			if !ev.matchPattern(env, f.Pat, fv) {
				return false
			}
		}
		return true
	case ast.POk:
		tag, inner, ok := resultTag(v)
		if !ok || tag != "ok" {
			return false
		}
		return ev.matchPattern(env, p.Inner, inner)
	case ast.PErr:
		tag, inner, ok := resultTag(v)
		if !ok || tag != "err" {
			return false
		}
		return ev.matchPattern(env, p.Inner, inner)
	}
	return false
}

func (ev *Evaluator) makeClosure(env *Env, x ast.ELambda) *Closure {
	return &Closure{Params: x.Params, Body: x.Body, Env: env}
}

func (ev *Evaluator) applyClosure(cl *Closure, args []any) (any, error) {
	if len(args) != len(cl.Params) {
		return nil, ferr.New(ferr.ErrEval, "lambda expects %d args, got %d", len(cl.Params), len(args))
	}
	call := NewEnv(cl.Env)
	for i, p := range cl.Params {
		call.Set(p, args[i])
	}
	v, err := ev.evalExpr(call, cl.Body)
	if pe, ok := err.(*propagate); ok {
		return pe.val, nil
	}
	return v, err
}

func (ev *Evaluator) evalCall(env *Env, fn string, argExprs []ast.Expr) (any, error) {
	args := make([]any, 0, len(argExprs))
	for _, a := range argExprs {
		v, err := ev.evalExpr(env, a)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	if ev.checked.EffectSet[fn] {
		if ev.handler == nil {
			return nil, ferr.New(ferr.ErrEffect, "effect %q invoked with no handler bound", fn)
		}
		valArgs, err := valuesOnly(args)
		if err != nil {
			return nil, err
		}
		var req valuecore.Value = valuecore.Unit{}
		if len(valArgs) == 1 {
			req = valArgs[0]
		} else if len(valArgs) > 1 {
			req = valuecore.List(valArgs)
		}
		return ev.handler.Invoke(fn, req)
	}

	if b, ok := ev.builtins[fn]; ok {
		if len(args) < b.ArityMin {
			return nil, ferr.New(ferr.ErrBadArg, "builtin %q requires at least %d args", fn, b.ArityMin)
		}
		valArgs, err := valuesOnly(args)
		if err != nil {
			return nil, err
		}
		return b.Fn(valArgs)
	}

	if _, ok := ev.checked.FnByName[fn]; ok {
		valArgs, err := valuesOnly(args)
		if err != nil {
			return nil, err
		}
		return ev.Call(fn, valArgs)
	}

	if v, ok := env.Get(fn); ok {
		if cl, ok := v.(*Closure); ok {
			return ev.applyClosure(cl, args)
		}
	}

	return nil, ferr.New(ferr.ErrEval, "call to undefined name %q", fn)
}

func valuesOnly(args []any) ([]valuecore.Value, error) {
	out := make([]valuecore.Value, len(args))
	for i, a := range args {
		v, ok := asValue(a)
		if !ok {
			return nil, ferr.New(ferr.ErrBadArg, "argument %d is a function, not a value", i)
		}
		out[i] = v
	}
	return out, nil
}
