package main

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
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

func TestRunIdentityFunctionBundle(t *testing.T) {
	dir := t.TempDir()
	src := "module main\nfn main(x: Value) { x }\n"
	srcHex, srcFile := sourceFileName(src)
	writeBundle(t, dir, map[string]string{
		"program.json":       `{"t":"record","v":[["entry",{"t":"text","v":"main"}],["mods",{"t":"list","v":[{"t":"record","v":[["name",{"t":"text","v":"main"}],["source",{"t":"text","v":"` + srcHex + `"}]]}]}]]}`,
		"input.json":         `{"t":"int","v":"42"}`,
		"effects.json":       `{"t":"list","v":[]}`,
		"sources/" + srcFile: src,
	})

	var stdout, stderr bytes.Buffer
	code := run([]string{dir}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	if !strings.HasPrefix(stdout.String(), `{"t":"record"`) {
		t.Fatalf("expected canonical witness record bytes, got %q", stdout.String())
	}
}

func TestRunWrongArgCount(t *testing.T) {
	var stderr bytes.Buffer
	code := run([]string{}, nil, &stderr)
	if code == 0 {
		t.Fatal("expected failure for missing bundle dir argument")
	}
}
