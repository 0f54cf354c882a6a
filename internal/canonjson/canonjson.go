// Package canonjson implements the second, simpler canonical JSON form used
// for external manifests (digests.json, module_graph.json, bundle
// checksums) where a full Value tree is overkill. It is a deliberately
// separate serializer from internal/valuecore's Text escaping: the two are
// allowed to diverge (manifest keys are sorted by UTF-8 byte order, as
// Value record keys also are, but the grammars serve different file
// formats) and must never be merged into one code path.
package canonjson

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"unicode/utf8"

	"github.com/mauludsadiq/fard/internal/ferr"
)

// Marshal produces the canonical byte encoding of v: object keys sorted by
// UTF-8 byte order (the spec's deliberate divergence from RFC 8785's
// UTF-16 code-unit order), no floats in canonical positions, integers
// emitted as JSON numbers, no whitespace.
func Marshal(v any) ([]byte, error) {
	var buf []byte
	buf, err := marshalInto(buf, v, 0)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

const maxDepth = 1000

func marshalInto(buf []byte, v any, depth int) ([]byte, error) {
	if depth > maxDepth {
		return nil, ferr.New(ferr.ErrInternal, "canonjson: nesting depth exceeds %d", maxDepth)
	}
	switch x := v.(type) {
	case nil:
		return append(buf, "null"...), nil
	case bool:
		if x {
			return append(buf, "true"...), nil
		}
		return append(buf, "false"...), nil
	case string:
		return marshalString(buf, x), nil
	case int:
		return strconv.AppendInt(buf, int64(x), 10), nil
	case int64:
		return strconv.AppendInt(buf, x, 10), nil
	case uint64:
		return strconv.AppendUint(buf, x, 10), nil
	case float64:
		// Canonical positions forbid nondeterministic floats; an integral
		// float64 (e.g. decoded via encoding/json) is accepted as an
		// integer, anything else is rejected.
		if math.Trunc(x) != x || math.IsInf(x, 0) || math.IsNaN(x) {
			return nil, ferr.New(ferr.ErrInternal, "canonjson: non-integer float %v is forbidden in canonical positions", x)
		}
		return strconv.AppendInt(buf, int64(x), 10), nil
	case []any:
		buf = append(buf, '[')
		for i, e := range x {
			if i > 0 {
				buf = append(buf, ',')
			}
			var err error
			buf, err = marshalInto(buf, e, depth+1)
			if err != nil {
				return nil, err
			}
		}
		return append(buf, ']'), nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys) // Go string comparison is UTF-8 byte order.
		buf = append(buf, '{')
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = marshalString(buf, k)
			buf = append(buf, ':')
			var err error
			buf, err = marshalInto(buf, x[k], depth+1)
			if err != nil {
				return nil, err
			}
		}
		return append(buf, '}'), nil
	default:
		return nil, ferr.New(ferr.ErrInternal, "canonjson: unsupported value of type %T", v)
	}
}

const hexDigits = "0123456789abcdef"

// marshalString escapes s with the same rule as Value Text (§4.1): named
// escapes for \b\t\n\f\r\"\\, \u00XX for other controls < 0x20, everything
// else verbatim UTF-8.
func marshalString(buf []byte, s string) []byte {
	if !utf8.ValidString(s) {
		s = strconv.QuoteToASCII(s) // defensive: never expected on canonical inputs
		return append(buf, []byte(s)...)
	}
	buf = append(buf, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			buf = append(buf, '\\', '"')
		case '\\':
			buf = append(buf, '\\', '\\')
		case '\n':
			buf = append(buf, '\\', 'n')
		case '\r':
			buf = append(buf, '\\', 'r')
		case '\t':
			buf = append(buf, '\\', 't')
		case '\b':
			buf = append(buf, '\\', 'b')
		case '\f':
			buf = append(buf, '\\', 'f')
		default:
			if c < 0x20 {
				buf = append(buf, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xf])
			} else {
				buf = append(buf, c)
			}
		}
	}
	return append(buf, '"')
}

// MarshalWithTrailingNewline is a convenience for file formats that
// explicitly require a single trailing newline (§4.2: "iff the file format
// requires it").
func MarshalWithTrailingNewline(v any) ([]byte, error) {
	b, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// ErrString renders an error for embedding into a manifest field; never
// panics, so it is safe to use in error-path manifest construction.
func ErrString(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%v", err)
}
