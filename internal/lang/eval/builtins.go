package eval

import (
	"github.com/mauludsadiq/fard/internal/canonjson"
	"github.com/mauludsadiq/fard/internal/ferr"
	"github.com/mauludsadiq/fard/internal/valuecore"
)

// Builtin is one dispatch-table entry: the minimum argument count and the
// implementation. Builtins never block and never invoke effects directly
// (effects are reached only via the checked uses[...] / EffectHandler
// path), so they are safe to call from a pure evaluation context.
type Builtin struct {
	ArityMin int
	Fn       func(args []valuecore.Value) (valuecore.Value, error)
}

func okResult(v valuecore.Value) valuecore.Value { return makeResult("ok", v) }
func errv(v valuecore.Value) valuecore.Value { return makeResult("err", v) }

func defaultBuiltins() map[string]Builtin {
	b := map[string]Builtin{}

	// result namespace
	b["result.ok"] = Builtin{1, func(a []valuecore.Value) (valuecore.Value, error) { return okResult(a[0]), nil }}
	b["result.err"] = Builtin{1, func(a []valuecore.Value) (valuecore.Value, error) { return errv(a[0]), nil }}
	b["result.is_ok"] = Builtin{1, func(a []valuecore.Value) (valuecore.Value, error) {
		tag, _, isRes := resultTag(a[0])
		return valuecore.Bool(isRes && tag == "ok"), nil
	}}
	b["result.is_err"] = Builtin{1, func(a []valuecore.Value) (valuecore.Value, error) {
		tag, _, isRes := resultTag(a[0])
		return valuecore.Bool(isRes && tag == "err"), nil
	}}
	b["result.unwrap_or"] = Builtin{2, func(a []valuecore.Value) (valuecore.Value, error) {
		tag, inner, isRes := resultTag(a[0])
		if isRes && tag == "ok" {
			return inner, nil
		}
		return a[1], nil
	}}

	// option namespace: represented the same way as result, with tag
	// "some"/"none" instead of "ok"/"err", and the "none" arm's value
	// field held as Unit.
	b["option.some"] = Builtin{1, func(a []valuecore.Value) (valuecore.Value, error) {
		return valuecore.NewRecord([]valuecore.KV{{Key: "tag", Val: valuecore.Text("some")}, {Key: "value", Val: a[0]}}), nil
	}}
	b["option.none"] = Builtin{0, func(a []valuecore.Value) (valuecore.Value, error) {
		return valuecore.NewRecord([]valuecore.KV{{Key: "tag", Val: valuecore.Text("none")}, {Key: "value", Val: valuecore.Unit{}}}), nil
	}}
	b["option.is_some"] = Builtin{1, func(a []valuecore.Value) (valuecore.Value, error) {
		r, isRec := a[0].(*valuecore.Record)
		if !isRec {
			return valuecore.Bool(false), nil
		}
		t, ok := r.Get("tag")
		return valuecore.Bool(ok && t == valuecore.Text("some")), nil
	}}
	b["option.unwrap_or"] = Builtin{2, func(a []valuecore.Value) (valuecore.Value, error) {
		r, isRec := a[0].(*valuecore.Record)
		if isRec {
			if t, ok := r.Get("tag"); ok && t == valuecore.Text("some") {
				if v, ok := r.Get("value"); ok {
					return v, nil
				}
			}
		}
		return a[1], nil
	}}

	// int namespace
	b["int.add"] = Builtin{2, arith(valuecore.IAdd)}
	b["int.sub"] = Builtin{2, arith(valuecore.ISub)}
	b["int.mul"] = Builtin{2, arith(valuecore.IMul)}
	b["int.div"] = Builtin{2, arith(valuecore.IDiv)}
	b["int.rem"] = Builtin{2, arith(valuecore.IRem)}
	b["int.neg"] = Builtin{1, func(a []valuecore.Value) (valuecore.Value, error) {
		i, ok := a[0].(valuecore.Int)
		if !ok {
			return nil, ferr.New(ferr.ErrBadArg, "int.neg requires an int")
		}
		return valuecore.INeg(i)
	}}
	b["int.to_text"] = Builtin{1, func(a []valuecore.Value) (valuecore.Value, error) {
		i, ok := a[0].(valuecore.Int)
		if !ok {
			return nil, ferr.New(ferr.ErrBadArg, "int.to_text requires an int")
		}
		return valuecore.Text(i.V.String()), nil
	}}

	// str namespace (Text operations)
	b["str.len"] = Builtin{1, func(a []valuecore.Value) (valuecore.Value, error) {
		t, ok := a[0].(valuecore.Text)
		if !ok {
			return nil, ferr.New(ferr.ErrBadArg, "str.len requires text")
		}
		return valuecore.NewInt(int64(len([]rune(string(t))))), nil
	}}
	b["str.to_bytes"] = Builtin{1, func(a []valuecore.Value) (valuecore.Value, error) {
		t, ok := a[0].(valuecore.Text)
		if !ok {
			return nil, ferr.New(ferr.ErrBadArg, "str.to_bytes requires text")
		}
		return valuecore.Bytes([]byte(string(t))), nil
	}}
	b["str.concat"] = Builtin{2, func(a []valuecore.Value) (valuecore.Value, error) {
		l, ok1 := a[0].(valuecore.Text)
		r, ok2 := a[1].(valuecore.Text)
		if !ok1 || !ok2 {
			return nil, ferr.New(ferr.ErrBadArg, "str.concat requires text operands")
		}
		return valuecore.Text(string(l) + string(r)), nil
	}}

	// list namespace
	b["list.len"] = Builtin{1, func(a []valuecore.Value) (valuecore.Value, error) {
		l, ok := a[0].(valuecore.List)
		if !ok {
			return nil, ferr.New(ferr.ErrBadArg, "list.len requires a list")
		}
		return valuecore.NewInt(int64(len(l))), nil
	}}
	b["list.get"] = Builtin{2, func(a []valuecore.Value) (valuecore.Value, error) {
		l, ok := a[0].(valuecore.List)
		if !ok {
			return nil, ferr.New(ferr.ErrBadArg, "list.get requires a list")
		}
		idx, ok := a[1].(valuecore.Int)
		if !ok || !idx.V.IsInt64() {
			return nil, ferr.New(ferr.ErrBadArg, "list.get requires an int index")
		}
		i := idx.V.Int64()
		if i < 0 || i >= int64(len(l)) {
			return errv(valuecore.NewRecord([]valuecore.KV{{Key: "reason", Val: valuecore.Text("out_of_range")}})), nil
		}
		return okResult(l[i]), nil
	}}
	b["list.push"] = Builtin{2, func(a []valuecore.Value) (valuecore.Value, error) {
		l, ok := a[0].(valuecore.List)
		if !ok {
			return nil, ferr.New(ferr.ErrBadArg, "list.push requires a list")
		}
		out := append(append(valuecore.List{}, l...), a[1])
		return out, nil
	}}
	b["list.reverse"] = Builtin{1, func(a []valuecore.Value) (valuecore.Value, error) {
		l, ok := a[0].(valuecore.List)
		if !ok {
			return nil, ferr.New(ferr.ErrBadArg, "list.reverse requires a list")
		}
		out := make(valuecore.List, len(l))
		for i, v := range l {
			out[len(l)-1-i] = v
		}
		return out, nil
	}}

	// record namespace
	b["record.keys"] = Builtin{1, func(a []valuecore.Value) (valuecore.Value, error) {
		r, ok := a[0].(*valuecore.Record)
		if !ok {
			return nil, ferr.New(ferr.ErrBadArg, "record.keys requires a record")
		}
		keys := r.Keys()
		out := make(valuecore.List, len(keys))
		for i, k := range keys {
			out[i] = valuecore.Text(k)
		}
		return out, nil
	}}
	b["record.len"] = Builtin{1, func(a []valuecore.Value) (valuecore.Value, error) {
		r, ok := a[0].(*valuecore.Record)
		if !ok {
			return nil, ferr.New(ferr.ErrBadArg, "record.len requires a record")
		}
		return valuecore.NewInt(int64(r.Len())), nil
	}}
	b["record.get"] = Builtin{2, func(a []valuecore.Value) (valuecore.Value, error) {
		r, ok := a[0].(*valuecore.Record)
		if !ok {
			return nil, ferr.New(ferr.ErrBadArg, "record.get requires a record")
		}
		k, ok := a[1].(valuecore.Text)
		if !ok {
			return nil, ferr.New(ferr.ErrBadArg, "record.get requires a text key")
		}
		v, present := r.Get(string(k))
		if !present {
			return errv(valuecore.NewRecord([]valuecore.KV{{Key: "reason", Val: valuecore.Text("missing_key")}})), nil
		}
		return okResult(v), nil
	}}

	// json namespace: the closed Value ENC/DECODE codec (not the manifest
	// canonjson serializer, per the spec's two-serializer separation).
	b["json.encode"] = Builtin{1, func(a []valuecore.Value) (valuecore.Value, error) {
		return valuecore.Text(valuecore.Enc(a[0])), nil
	}}
	b["json.decode"] = Builtin{1, func(a []valuecore.Value) (valuecore.Value, error) {
		t, ok := a[0].(valuecore.Text)
		if !ok {
			return nil, ferr.New(ferr.ErrBadArg, "json.decode requires text")
		}
		v, err := valuecore.Dec([]byte(string(t)))
		if err != nil {
			return errv(valuecore.NewRecord([]valuecore.KV{{Key: "reason", Val: valuecore.Text(err.Error())}})), nil
		}
		return okResult(v), nil
	}}
	b["json.manifest_encode"] = Builtin{1, func(a []valuecore.Value) (valuecore.Value, error) {
		doc, err := toManifestDoc(a[0])
		if err != nil {
			return nil, err
		}
		out, err := canonjson.Marshal(doc)
		if err != nil {
			return errv(valuecore.NewRecord([]valuecore.KV{{Key: "reason", Val: valuecore.Text(err.Error())}})), nil
		}
		return okResult(valuecore.Text(out)), nil
	}}

	return b
}


func arith(f func(a, b valuecore.Int) (valuecore.Int, error)) func([]valuecore.Value) (valuecore.Value, error) {
	return func(a []valuecore.Value) (valuecore.Value, error) {
		x, ok1 := a[0].(valuecore.Int)
		y, ok2 := a[1].(valuecore.Int)
		if !ok1 || !ok2 {
			return nil, ferr.New(ferr.ErrBadArg, "int builtin requires int operands")
		}
		r, err := f(x, y)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

// toManifestDoc converts a Value tree into the plain any-tree canonjson
// expects (map[string]any / []any / string / int64 / bool / nil), used by
// external manifest builtins. Record keys carry straight through since
// valuecore.Record is already sorted and duplicate-free.
func toManifestDoc(v valuecore.Value) (any, error) {
	switch x := v.(type) {
	case valuecore.Unit:
		return nil, nil
	case valuecore.Bool:
		return bool(x), nil
	case valuecore.Int:
		if !x.V.IsInt64() {
			return nil, ferr.New(ferr.ErrBadArg, "manifest_encode: int exceeds int64 range")
		}
		return x.V.Int64(), nil
	case valuecore.Text:
		return string(x), nil
	case valuecore.Bytes:
		return string(x), nil
	case valuecore.List:
		out := make([]any, len(x))
		for i, e := range x {
			d, err := toManifestDoc(e)
			if err != nil {
				return nil, err
			}
			out[i] = d
		}
		return out, nil
	case *valuecore.Record:
		out := map[string]any{}
		for _, kv := range x.Entries() {
			d, err := toManifestDoc(kv.Val)
			if err != nil {
				return nil, err
			}
			out[kv.Key] = d
		}
		return out, nil
	case valuecore.Err:
		return map[string]any{"code": x.Code, "data": mustManifestDoc(x.Data)}, nil
	}
	return nil, ferr.New(ferr.ErrBadArg, "manifest_encode: unsupported value tag")
}

func mustManifestDoc(v valuecore.Value) any {
	d, err := toManifestDoc(v)
	if err != nil {
		return nil
	}
	return d
}
