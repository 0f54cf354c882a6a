package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestCompileMinimalModule(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "main.fard")
	if err := os.WriteFile(srcPath, []byte("module main\nfn main(x: Value) { x }\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	outDir := filepath.Join(dir, "out")

	var stdout, stderr bytes.Buffer
	code := run([]string{"--src", srcPath, "--out", outDir}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	if stdout.Len() == 0 {
		t.Fatal("expected source CID on stdout")
	}

	for _, name := range []string{"program.json", "input.json", "imports.json", "effects.json", "module_graph.json"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestCompileRejectsModuleWithoutMain(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "main.fard")
	if err := os.WriteFile(srcPath, []byte("module main\nfn helper(x: Value) { x }\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	outDir := filepath.Join(dir, "out")

	var stdout, stderr bytes.Buffer
	code := run([]string{"--src", srcPath, "--out", outDir}, &stdout, &stderr)
	if code == 0 {
		t.Fatal("expected failure: no fn named main")
	}
}
