package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/mauludsadiq/fard/internal/digest"
)

func TestPutThenGetRoundTrips(t *testing.T) {
	registryDir := t.TempDir()
	workDir := t.TempDir()
	env := map[string]string{"FARD_REGISTRY_DIR": registryDir}

	srcFile := filepath.Join(workDir, "payload.bin")
	if err := os.WriteFile(srcFile, []byte("hello registry"), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	code := run([]string{"put", srcFile}, env, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("put exit %d: %s", code, stderr.String())
	}
	runID := firstLine(stdout.String())
	if runID != digest.CID([]byte("hello registry")) {
		t.Fatalf("got RunID %q", runID)
	}

	outFile := filepath.Join(workDir, "out.bin")
	stdout.Reset()
	stderr.Reset()
	code = run([]string{"get", runID, "--out", outFile}, env, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("get exit %d: %s", code, stderr.String())
	}
	data, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello registry" {
		t.Fatalf("got %q", data)
	}
}

func TestGetMissingEntryFails(t *testing.T) {
	env := map[string]string{"FARD_REGISTRY_DIR": t.TempDir()}
	missingRunID := digest.CID([]byte("nothing stored under this"))
	var stdout, stderr bytes.Buffer
	code := run([]string{"get", missingRunID, "--out", filepath.Join(t.TempDir(), "x")}, env, &stdout, &stderr)
	if code == 0 {
		t.Fatal("expected ERROR_MISSING_FACT for an absent registry entry")
	}
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' {
			return s[:i]
		}
	}
	return s
}
