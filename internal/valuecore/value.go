// Package valuecore implements the closed Value universe that every digest
// in the pipeline is computed over: encode, decode, canonical comparison,
// and checked integer arithmetic.
package valuecore

import (
	"math/big"
	"sort"

	"github.com/mauludsadiq/fard/internal/ferr"
)

// Tag is one of the eight fixed value tags. No open extension is permitted.
type Tag string

const (
	TagUnit   Tag = "unit"
	TagBool   Tag = "bool"
	TagInt    Tag = "int"
	TagBytes  Tag = "bytes"
	TagText   Tag = "text"
	TagList   Tag = "list"
	TagRecord Tag = "record"
	TagErr    Tag = "err"
)

// rank fixes the total order across tags for canon_cmp.
var rank = map[Tag]int{
	TagUnit: 0, TagBool: 1, TagInt: 2, TagBytes: 3,
	TagText: 4, TagList: 5, TagRecord: 6, TagErr: 7,
}

// Value is implemented by exactly the eight concrete tag types below. The
// set is closed; callers must not define new implementations.
type Value interface {
	Tag() Tag
	value()
}

type Unit struct{}

func (Unit) Tag() Tag { return TagUnit }
func (Unit) value()   {}

type Bool bool

func (Bool) Tag() Tag { return TagBool }
func (Bool) value()   {}

// Int is an arbitrary-precision signed integer, per the spec's explicit
// "implementor may choose unbounded" option (see DESIGN.md).
type Int struct{ V *big.Int }

func (Int) Tag() Tag { return TagInt }
func (Int) value()   {}

// NewInt wraps an int64 as an Int value.
func NewInt(n int64) Int { return Int{V: big.NewInt(n)} }

// NewIntFromBig wraps an existing *big.Int. The Int takes ownership; callers
// must not mutate n afterwards.
func NewIntFromBig(n *big.Int) Int { return Int{V: n} }

type Bytes []byte

func (Bytes) Tag() Tag { return TagBytes }
func (Bytes) value()   {}

type Text string

func (Text) Tag() Tag { return TagText }
func (Text) value()   {}

type List []Value

func (List) Tag() Tag { return TagList }
func (List) value()   {}

// Record is a sorted, duplicate-free mapping from Text key to Value.
// Construct via NewRecord; the zero value is an empty record.
type Record struct {
	keys []string
	vals []Value
}

func (*Record) Tag() Tag { return TagRecord }
func (*Record) value()   {}

// Len returns the number of entries.
func (r *Record) Len() int { return len(r.keys) }

// Keys returns the sorted key slice. Callers must not mutate it.
func (r *Record) Keys() []string { return r.keys }

// Get returns the value for key and whether it was present.
func (r *Record) Get(key string) (Value, bool) {
	i := sort.SearchStrings(r.keys, key)
	if i < len(r.keys) && r.keys[i] == key {
		return r.vals[i], true
	}
	return nil, false
}

// Entries returns the sorted (key, value) pairs.
func (r *Record) Entries() []KV {
	out := make([]KV, len(r.keys))
	for i := range r.keys {
		out[i] = KV{Key: r.keys[i], Val: r.vals[i]}
	}
	return out
}

// KV is a single record field used as constructor input.
type KV struct {
	Key string
	Val Value
}

// NewRecord is the total record constructor. Duplicate keys (checked in
// source order) do not produce a Go error: they yield an Err Value
// naming the first offending key, per the spec's "total constructor" rule.
func NewRecord(pairs []KV) Value {
	seen := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		if seen[p.Key] {
			return NewErr(string(ferr.ErrDupKey), NewRecordChecked([]KV{
				{Key: "key", Val: Text(p.Key)},
				{Key: "value", Val: Unit{}},
			}))
		}
		seen[p.Key] = true
	}
	return NewRecordChecked(pairs)
}

// NewRecordChecked builds a Record directly from pairs already known to
// have unique keys (e.g. the decoder's post-dup-check path). It still
// performs the sort.
func NewRecordChecked(pairs []KV) *Record {
	cp := make([]KV, len(pairs))
	copy(cp, pairs)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Key < cp[j].Key })
	r := &Record{keys: make([]string, len(cp)), vals: make([]Value, len(cp))}
	for i, p := range cp {
		r.keys[i] = p.Key
		r.vals[i] = p.Val
	}
	return r
}

// Err is a record-shaped failure value: a non-empty code and structured
// diagnostic data.
type Err struct {
	Code string
	Data Value
}

func (Err) Tag() Tag { return TagErr }
func (Err) value()   {}

// NewErr constructs an Err value. code must be non-empty; callers that can
// only produce an empty code at runtime should route it through dec's
// DECODE_BAD_ERR path instead of calling this constructor.
func NewErr(code string, data Value) Value {
	return Err{Code: code, Data: data}
}

// CanonEq reports whether a and b are canonically equal.
func CanonEq(a, b Value) bool { return CanonCmp(a, b) == 0 }

// CanonCmp is the total order over Values: first by tag rank, then
// recursively within a tag. Records are compared pointwise over their
// (already sorted) entries.
func CanonCmp(a, b Value) int {
	ta, tb := a.Tag(), b.Tag()
	if ta != tb {
		ra, rb := rank[ta], rank[tb]
		switch {
		case ra < rb:
			return -1
		case ra > rb:
			return 1
		default:
			return 0
		}
	}
	switch av := a.(type) {
	case Unit:
		return 0
	case Bool:
		bv := b.(Bool)
		if av == bv {
			return 0
		}
		if !bool(av) && bool(bv) {
			return -1
		}
		return 1
	case Int:
		return av.V.Cmp(b.(Int).V)
	case Bytes:
		return compareBytes(av, b.(Bytes))
	case Text:
		bv := b.(Text)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case List:
		bv := b.(List)
		n := len(av)
		if len(bv) < n {
			n = len(bv)
		}
		for i := 0; i < n; i++ {
			if c := CanonCmp(av[i], bv[i]); c != 0 {
				return c
			}
		}
		switch {
		case len(av) < len(bv):
			return -1
		case len(av) > len(bv):
			return 1
		default:
			return 0
		}
	case *Record:
		bv := b.(*Record)
		n := av.Len()
		if bv.Len() < n {
			n = bv.Len()
		}
		for i := 0; i < n; i++ {
			if av.keys[i] != bv.keys[i] {
				if av.keys[i] < bv.keys[i] {
					return -1
				}
				return 1
			}
			if c := CanonCmp(av.vals[i], bv.vals[i]); c != 0 {
				return c
			}
		}
		switch {
		case av.Len() < bv.Len():
			return -1
		case av.Len() > bv.Len():
			return 1
		default:
			return 0
		}
	case Err:
		bv := b.(Err)
		if av.Code != bv.Code {
			if av.Code < bv.Code {
				return -1
			}
			return 1
		}
		return CanonCmp(av.Data, bv.Data)
	}
	return 0
}

func compareBytes(a, b Bytes) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
