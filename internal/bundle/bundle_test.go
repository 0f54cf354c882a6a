package bundle

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mauludsadiq/fard/internal/ferr"
)

func writeBundle(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		full := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func sourceFileName(src string) (string, string) {
	sum := sha256.Sum256([]byte(src))
	h := hex.EncodeToString(sum[:])
	return h, h + ".src"
}

func TestLoadVector0MinimalBundle(t *testing.T) {
	dir := t.TempDir()
	srcHex, srcFile := sourceFileName("module main\nfn main(x: Value) { x }\n")
	writeBundle(t, dir, map[string]string{
		"program.json": `{"t":"record","v":[["entry",{"t":"text","v":"main"}],["mods",{"t":"list","v":[{"t":"record","v":[["name",{"t":"text","v":"main"}],["source",{"t":"text","v":"` + srcHex + `"}]]}]}]]}`,
		"input.json":   `{"t":"unit"}`,
		"effects.json": `{"t":"list","v":[]}`,
		"sources/" + srcFile: "module main\nfn main(x: Value) { x }\n",
	})

	b, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b.ModGraph.Entry != "main" {
		t.Fatalf("entry = %q, want main", b.ModGraph.Entry)
	}

	w, err := b.Run(nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(w.RunID()) != len("sha256:")+64 {
		t.Fatalf("bad RunID shape: %s", w.RunID())
	}
}

func TestLoadMissingFactOutranksOtherErrors(t *testing.T) {
	dir := t.TempDir()
	srcHex, srcFile := sourceFileName("module main\nfn main(x: Value) { x }\n")
	writeBundle(t, dir, map[string]string{
		"program.json": `{"t":"record","v":[["entry",{"t":"text","v":"main"}],["mods",{"t":"list","v":[{"t":"record","v":[["name",{"t":"text","v":"main"}],["source",{"t":"text","v":"` + srcHex + `"}]]}]}]]}`,
		"input.json":   `{"t":"unit"}`,
		"effects.json": `{"t":"list","v":[]}`,
		"imports.json": `{"t":"list","v":[{"t":"text","v":"sha256:` + srcHex + `"}]}`,
		"sources/" + srcFile: "module main\nfn main(x: Value) { x }\n",
		// An unrelated, malformed fact file: a bundle error of its own that
		// the missing import fact must outrank.
		"facts/" + strings.Repeat("0", 64) + ".json": "not json",
	})

	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected ERROR_MISSING_FACT")
	}
	fe, ok := err.(*ferr.Error)
	if !ok || fe.Class != ferr.ErrMissingFact {
		t.Fatalf("got %v, want ERROR_MISSING_FACT", err)
	}
}

func TestLoadRejectsBadSourceHash(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, map[string]string{
		"program.json":         `{"t":"record","v":[["entry",{"t":"text","v":"main"}],["mods",{"t":"list","v":[]}]]}`,
		"input.json":           `{"t":"unit"}`,
		"effects.json":         `{"t":"list","v":[]}`,
		"sources/" + "deadbeef.src": "not matching content",
	})

	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected ERROR_BAD_SOURCE")
	}
	fe, ok := err.(*ferr.Error)
	if !ok || fe.Class != ferr.ErrBadSource {
		t.Fatalf("got %v, want ERROR_BAD_SOURCE", err)
	}
}
