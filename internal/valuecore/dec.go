package valuecore

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"math/big"

	"github.com/mauludsadiq/fard/internal/ferr"
)

// jnode is an intermediate JSON tree that preserves object key order and
// rejects JSON shapes the canonical value grammar never produces (numbers,
// null), built by walking encoding/json's low-level Token stream rather
// than hand-rolling a tokenizer: the canonical value grammar is narrow
// enough (objects, arrays, strings, bools only) that the stdlib tokenizer's
// UTF-8/escape handling can be reused directly (see DESIGN.md).
type jnode struct {
	isObj  bool
	isArr  bool
	isStr  bool
	isBool bool
	str    string
	b      bool
	arr    []jnode
	obj    []jpair
}

type jpair struct {
	key string
	val jnode
}

func parseCanonicalJSON(data []byte) (jnode, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	n, err := parseJNode(dec)
	if err != nil {
		return jnode{}, ferr.Wrap(ferr.DecodeBadJSON, err, "invalid json")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return jnode{}, ferr.New(ferr.DecodeBadJSON, "trailing content after value")
	}
	return n, nil
}

func parseJNode(dec *json.Decoder) (jnode, error) {
	tok, err := dec.Token()
	if err != nil {
		return jnode{}, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			var pairs []jpair
			seen := map[string]bool{}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return jnode{}, err
				}
				key, ok := kt.(string)
				if !ok {
					return jnode{}, errors.New("object key not a string")
				}
				if seen[key] {
					return jnode{}, errors.New("duplicate object key " + key)
				}
				seen[key] = true
				val, err := parseJNode(dec)
				if err != nil {
					return jnode{}, err
				}
				pairs = append(pairs, jpair{key: key, val: val})
			}
			if _, err := dec.Token(); err != nil {
				return jnode{}, err
			}
			return jnode{isObj: true, obj: pairs}, nil
		case '[':
			var items []jnode
			for dec.More() {
				v, err := parseJNode(dec)
				if err != nil {
					return jnode{}, err
				}
				items = append(items, v)
			}
			if _, err := dec.Token(); err != nil {
				return jnode{}, err
			}
			return jnode{isArr: true, arr: items}, nil
		default:
			return jnode{}, errors.New("unexpected delimiter")
		}
	case bool:
		return jnode{isBool: true, b: t}, nil
	case string:
		return jnode{isStr: true, str: t}, nil
	case nil:
		return jnode{}, errors.New("null is not a valid canonical value token")
	default:
		return jnode{}, errors.New("numbers are not valid canonical value tokens")
	}
}

// Dec is the partial inverse of Enc. It fails with a *ferr.Error whose
// Class is one of the DECODE_* codes on any shape drift.
func Dec(b []byte) (Value, error) {
	n, err := parseCanonicalJSON(b)
	if err != nil {
		return nil, err
	}
	return decodeNode(n)
}

func decodeNode(n jnode) (Value, error) {
	if !n.isObj {
		return nil, ferr.New(ferr.DecodeNotObject, "expected a json object")
	}
	tIdx := -1
	for i, p := range n.obj {
		if p.key == "t" {
			if tIdx != -1 {
				return nil, ferr.New(ferr.DecodeExtraKeys, "duplicate \"t\" key")
			}
			tIdx = i
		}
	}
	if tIdx == -1 {
		return nil, ferr.New(ferr.DecodeMissingT, "missing \"t\" key")
	}
	if !n.obj[tIdx].val.isStr {
		return nil, ferr.New(ferr.DecodeMissingT, "\"t\" must be a string")
	}
	tag := Tag(n.obj[tIdx].val.str)

	if tag == TagUnit {
		if len(n.obj) != 1 {
			return nil, ferr.New(ferr.DecodeExtraKeys, "unit value must have exactly one key")
		}
		return Unit{}, nil
	}

	if len(n.obj) != 2 {
		return nil, ferr.New(ferr.DecodeBadKeys, "value object must have exactly {t,v} keys")
	}
	var vNode jnode
	found := false
	for _, p := range n.obj {
		switch p.key {
		case "t":
		case "v":
			vNode = p.val
			found = true
		default:
			return nil, ferr.New(ferr.DecodeBadKeys, "unexpected key %q", p.key)
		}
	}
	if !found {
		return nil, ferr.New(ferr.DecodeBadKeys, "missing \"v\" key")
	}

	switch tag {
	case TagBool:
		if !vNode.isBool {
			return nil, ferr.New(ferr.DecodeBadBool, "bool value must be a json boolean")
		}
		return Bool(vNode.b), nil

	case TagInt:
		if !vNode.isStr {
			return nil, ferr.New(ferr.DecodeBadInt, "int value must be a json string")
		}
		if !isCanonicalIntString(vNode.str) {
			return nil, ferr.New(ferr.DecodeBadInt, "non-canonical int string %q", vNode.str)
		}
		z, ok := new(big.Int).SetString(vNode.str, 10)
		if !ok {
			return nil, ferr.New(ferr.DecodeBadInt, "unparsable int string %q", vNode.str)
		}
		return Int{V: z}, nil

	case TagBytes:
		if !vNode.isStr {
			return nil, ferr.New(ferr.DecodeBadHex, "bytes value must be a json string")
		}
		if !isLowerHex(vNode.str) {
			return nil, ferr.New(ferr.DecodeBadHex, "non-canonical hex %q", vNode.str)
		}
		raw, err := hex.DecodeString(vNode.str)
		if err != nil {
			return nil, ferr.Wrap(ferr.DecodeBadHex, err, "bad hex")
		}
		return Bytes(raw), nil

	case TagText:
		if !vNode.isStr {
			return nil, ferr.New(ferr.DecodeBadText, "text value must be a json string")
		}
		return Text(vNode.str), nil

	case TagList:
		if !vNode.isArr {
			return nil, ferr.New(ferr.DecodeBadList, "list value must be a json array")
		}
		out := make(List, len(vNode.arr))
		for i, item := range vNode.arr {
			v, err := decodeNode(item)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case TagRecord:
		if !vNode.isArr {
			return nil, ferr.New(ferr.DecodeBadRecord, "record value must be a json array")
		}
		pairs := make([]KV, 0, len(vNode.arr))
		seen := map[string]bool{}
		for _, item := range vNode.arr {
			if !item.isArr || len(item.arr) != 2 {
				return nil, ferr.New(ferr.DecodeBadRecord, "record entry must be a [key,value] pair")
			}
			keyNode, valNode := item.arr[0], item.arr[1]
			if !keyNode.isStr {
				return nil, ferr.New(ferr.DecodeBadRecord, "record key must be a string")
			}
			if seen[keyNode.str] {
				return nil, ferr.New(ferr.DecodeDupKey, "duplicate record key %q", keyNode.str)
			}
			seen[keyNode.str] = true
			v, err := decodeNode(valNode)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, KV{Key: keyNode.str, Val: v})
		}
		return NewRecordChecked(pairs), nil

	case TagErr:
		if !vNode.isObj || len(vNode.obj) != 2 {
			return nil, ferr.New(ferr.DecodeBadErr, "err value must be a {code,data} object")
		}
		var code string
		var codeFound, dataFound bool
		var dataNode jnode
		for _, p := range vNode.obj {
			switch p.key {
			case "code":
				if !p.val.isStr {
					return nil, ferr.New(ferr.DecodeBadErr, "err code must be a string")
				}
				code = p.val.str
				codeFound = true
			case "data":
				dataNode = p.val
				dataFound = true
			default:
				return nil, ferr.New(ferr.DecodeBadErr, "unexpected err key %q", p.key)
			}
		}
		if !codeFound || !dataFound {
			return nil, ferr.New(ferr.DecodeBadErr, "err value missing code or data")
		}
		if code == "" {
			return nil, ferr.New(ferr.DecodeBadErr, "err code must be non-empty")
		}
		data, err := decodeNode(dataNode)
		if err != nil {
			return nil, err
		}
		return Err{Code: code, Data: data}, nil

	default:
		return nil, ferr.New(ferr.DecodeUnknownT, "unknown tag %q", tag)
	}
}

func isCanonicalIntString(s string) bool {
	if s == "" {
		return false
	}
	i := 0
	if s[0] == '-' {
		i = 1
		if i >= len(s) {
			return false
		}
	}
	if s[i] == '0' {
		return i == len(s)-1
	}
	any := false
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
		any = true
	}
	return any
}

func isLowerHex(s string) bool {
	if len(s)%2 != 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}
