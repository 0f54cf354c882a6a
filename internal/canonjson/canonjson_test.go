package canonjson

import (
	"encoding/json"
	"testing"

	cyberphone "github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
)

func TestMarshalSortsKeysByUTF8ByteOrder(t *testing.T) {
	v := map[string]any{"b": 1, "a": 2, "aa": 3}
	got, err := Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"a":2,"aa":3,"b":1}`
	if string(got) != want {
		t.Fatalf("Marshal = %s, want %s", got, want)
	}
}

func TestMarshalStringEscaping(t *testing.T) {
	got, err := Marshal("a\"b\\c\n\x01")
	if err != nil {
		t.Fatal(err)
	}
	want := `"a\"b\\c\n"`
	if string(got) != want {
		t.Fatalf("Marshal(string) = %s, want %s", got, want)
	}
}

func TestMarshalRejectsNonIntegerFloat(t *testing.T) {
	if _, err := Marshal(map[string]any{"x": 1.5}); err == nil {
		t.Fatal("expected error for non-integer float")
	}
}

// On ASCII-only object keys, UTF-8 byte order and UTF-16 code-unit order
// coincide, so our manifest serializer and the reference RFC 8785
// implementation must agree byte-for-byte. This is the one narrow slice
// where a differential check against the upstream library is meaningful
// (see SPEC_FULL.md §4.2 on why the two sort orders are not merged).
func TestDifferentialAgreesWithCyberphoneOnASCIIKeys(t *testing.T) {
	doc := map[string]any{
		"zeta":  1,
		"alpha": []any{1, 2, 3},
		"mid":   map[string]any{"b": "two", "a": "one"},
		"flag":  true,
		"empty": map[string]any{},
		"neg":   -42,
		"text":  "hello \"world\"\nline2",
	}
	ours, err := Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	theirs, err := cyberphone.Transform(raw)
	if err != nil {
		t.Fatalf("cyberphone.Transform: %v", err)
	}
	if string(ours) != string(theirs) {
		t.Fatalf("canonjson/cyberphone differ on ASCII-key document:\nours:   %s\ntheirs: %s", ours, theirs)
	}
}
