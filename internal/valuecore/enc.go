package valuecore

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// Enc emits the canonical byte encoding of v. Enc is total and streams
// directly into a byte buffer to avoid intermediate allocation per the
// recommended encoder hot path.
func Enc(v Value) []byte {
	var buf bytes.Buffer
	encInto(&buf, v)
	return buf.Bytes()
}

func encInto(buf *bytes.Buffer, v Value) {
	switch x := v.(type) {
	case Unit:
		buf.WriteString(`{"t":"unit"}`)
	case Bool:
		if x {
			buf.WriteString(`{"t":"bool","v":true}`)
		} else {
			buf.WriteString(`{"t":"bool","v":false}`)
		}
	case Int:
		buf.WriteString(`{"t":"int","v":"`)
		buf.WriteString(x.V.String())
		buf.WriteString(`"}`)
	case Bytes:
		buf.WriteString(`{"t":"bytes","v":"`)
		buf.WriteString(hex.EncodeToString(x))
		buf.WriteString(`"}`)
	case Text:
		buf.WriteString(`{"t":"text","v":`)
		encString(buf, string(x))
		buf.WriteString(`}`)
	case List:
		buf.WriteString(`{"t":"list","v":[`)
		for i, e := range x {
			if i > 0 {
				buf.WriteByte(',')
			}
			encInto(buf, e)
		}
		buf.WriteString(`]}`)
	case *Record:
		buf.WriteString(`{"t":"record","v":[`)
		for i, k := range x.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteByte('[')
			encString(buf, k)
			buf.WriteByte(',')
			encInto(buf, x.vals[i])
			buf.WriteByte(']')
		}
		buf.WriteString(`]}`)
	case Err:
		buf.WriteString(`{"t":"err","v":{"code":`)
		encString(buf, x.Code)
		buf.WriteString(`,"data":`)
		encInto(buf, x.Data)
		buf.WriteString(`}}`)
	default:
		panic(fmt.Sprintf("valuecore: unreachable value tag %T", v))
	}
}

const hexDigits = "0123456789abcdef"

// encString writes a JSON-quoted string using the spec's escape set:
// \" \\ \n \r \t \b \f, \u00XX for any code point < 0x20, all other bytes
// emitted verbatim as UTF-8.
func encString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			if c < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hexDigits[c>>4])
				buf.WriteByte(hexDigits[c&0xf])
			} else {
				buf.WriteByte(c)
			}
		}
	}
	buf.WriteByte('"')
}
