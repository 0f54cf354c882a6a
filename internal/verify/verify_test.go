package verify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mauludsadiq/fard/internal/canonjson"
	"github.com/mauludsadiq/fard/internal/digest"
)

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	full := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestVerifyTracePassesMinimalOKTrace(t *testing.T) {
	dir := t.TempDir()
	graphCID := digest.CID([]byte("graph"))
	line := map[string]any{"t": "module_graph", "cid": graphCID}
	lineBytes, err := canonjson.Marshal(line)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "trace.ndjson", append(lineBytes, '\n'))
	writeFile(t, dir, "digests.json", []byte(`{"ok":true}`))
	writeFile(t, dir, "result.json", []byte(`{}`))

	r, err := VerifyTrace(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !r.OK {
		t.Fatalf("expected pass, got %s", r.Code)
	}
}

func TestVerifyTraceRejectsMissingModuleGraph(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "trace.ndjson", []byte(""))
	writeFile(t, dir, "digests.json", []byte(`{"ok":true}`))
	writeFile(t, dir, "result.json", []byte(`{}`))

	r, err := VerifyTrace(dir)
	if err != nil {
		t.Fatal(err)
	}
	if r.OK {
		t.Fatal("expected failure: no module_graph event")
	}
	if r.Code != "M2_MODULE_GRAPH_NOT_ONCE" {
		t.Fatalf("got code %s", r.Code)
	}
}

func TestVerifyTraceRejectsErrorNotLast(t *testing.T) {
	dir := t.TempDir()
	graphCID := digest.CID([]byte("graph"))
	errLine, _ := canonjson.Marshal(map[string]any{"t": "error", "code": "X", "message": "m"})
	graphLine, _ := canonjson.Marshal(map[string]any{"t": "module_graph", "cid": graphCID})
	content := string(errLine) + "\n" + string(graphLine) + "\n"
	writeFile(t, dir, "trace.ndjson", []byte(content))
	writeFile(t, dir, "digests.json", []byte(`{"ok":false}`))
	writeFile(t, dir, "error.json", []byte(`{}`))

	r, err := VerifyTrace(dir)
	if err != nil {
		t.Fatal(err)
	}
	if r.OK || r.Code != "M2_ERROR_NOT_LAST" {
		t.Fatalf("got ok=%v code=%s, want M2_ERROR_NOT_LAST", r.OK, r.Code)
	}
}

func TestVerifyBundleDetectsFileHashMismatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "trace.ndjson", []byte("x"))
	writeFile(t, dir, "module_graph.json", []byte("y"))
	writeFile(t, dir, "result.json", []byte("z"))

	digests := map[string]any{
		"files": map[string]any{
			"trace.ndjson":      digest.CID([]byte("x")),
			"module_graph.json": digest.CID([]byte("WRONG")),
			"result.json":       digest.CID([]byte("z")),
		},
		"ok":                    true,
		"preimage_sha256":       digest.CID([]byte("whatever")),
		"runtime_version":       "v1",
		"trace_format_version":  "v1",
		"stdlib_root_digest":    digest.CID([]byte("stdlib")),
	}
	raw, err := canonjson.Marshal(digests)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "digests.json", raw)

	r, err := VerifyBundle(dir)
	if err != nil {
		t.Fatal(err)
	}
	if r.OK || r.Code != "M5_FILE_HASH_MISMATCH module_graph.json" {
		t.Fatalf("got ok=%v code=%s", r.OK, r.Code)
	}
}

func TestVerifyArtifactRejectsMissingBytes(t *testing.T) {
	dir := t.TempDir()
	nodeCID := digest.CID([]byte("node"))
	graph := map[string]any{
		"v": "0.1.0",
		"nodes": []any{
			map[string]any{"cid": nodeCID, "name": "n", "role": "out"},
		},
		"edges": []any{},
	}
	canon, err := canonjson.Marshal(graph)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "artifact_graph.json", append(canon, '\n'))
	digests := map[string]any{"files": map[string]any{"artifact_graph.json": digest.CID(append(canon, '\n'))}}
	raw, err := canonjson.Marshal(digests)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "digests.json", raw)

	r, err := VerifyArtifact(dir)
	if err != nil {
		t.Fatal(err)
	}
	if r.OK || r.Code != "M3_MISSING_ARTIFACT_BYTES" {
		t.Fatalf("got ok=%v code=%s", r.OK, r.Code)
	}
}
