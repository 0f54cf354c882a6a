package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/mauludsadiq/fard/internal/canonjson"
	"github.com/mauludsadiq/fard/internal/digest"
)

func TestVerifyTraceCLIWritesPassMarker(t *testing.T) {
	dir := t.TempDir()
	graphCID := digest.CID([]byte("graph"))
	line, err := canonjson.Marshal(map[string]any{"t": "module_graph", "cid": graphCID})
	if err != nil {
		t.Fatal(err)
	}
	mustWrite(t, dir, "trace.ndjson", append(line, '\n'))
	mustWrite(t, dir, "digests.json", []byte(`{"ok":true}`))
	mustWrite(t, dir, "result.json", []byte(`{}`))

	var stderr bytes.Buffer
	code := run([]string{"trace", "--out", dir}, &stderr)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "PASS_TRACE.txt")); err != nil {
		t.Fatalf("expected PASS_TRACE.txt: %v", err)
	}
}

func TestVerifyUnknownKindFails(t *testing.T) {
	var stderr bytes.Buffer
	code := run([]string{"bogus", "--out", t.TempDir()}, &stderr)
	if code == 0 {
		t.Fatal("expected failure for unknown kind")
	}
}

func mustWrite(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatal(err)
	}
}
