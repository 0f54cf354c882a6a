// Package verify re-checks a run/bundle's already-emitted output, rather
// than producing it: recomputed digests, closed-keyset schema checks, and
// the trace.ndjson event-closure rules. Grounded on the closed-keyset
// "expect_only_keys"/"expect_str" validation shape and the digest-coverage
// "exactly the actual output set" rule applied throughout the bundle's
// verification stages, generalized here into one Go package covering the
// three CLI-facing kinds.
package verify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mauludsadiq/fard/internal/canonjson"
	"github.com/mauludsadiq/fard/internal/digest"
)

// Kind names one of the three verification surfaces.
type Kind string

const (
	KindTrace    Kind = "trace"
	KindArtifact Kind = "artifact"
	KindBundle   Kind = "bundle"
)

// Result is the outcome of one verification pass, enough to drive the
// PASS_<KIND>.txt / FAIL_<KIND>.txt + stderr ERROR_* CLI contract.
type Result struct {
	Kind Kind
	OK   bool
	Code string // ERROR_* code when !OK, empty when OK
}

func fail(kind Kind, format string, args ...any) (*Result, error) {
	return &Result{Kind: kind, OK: false, Code: fmt.Sprintf(format, args...)}, nil
}

func pass(kind Kind) (*Result, error) {
	return &Result{Kind: kind, OK: true}, nil
}

func isSHA256(s string) bool { return digest.IsCID(s) }

func readDigestsJSON(dir string) (map[string]any, []byte, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "digests.json"))
	if err != nil {
		return nil, nil, err
	}
	var v map[string]any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, nil, err
	}
	return v, raw, nil
}

func expectOnlyKeys(obj map[string]any, allowed ...string) (string, bool) {
	allow := map[string]bool{}
	for _, a := range allowed {
		allow[a] = true
	}
	for k := range obj {
		if !allow[k] {
			return k, false
		}
	}
	return "", true
}

func expectStr(obj map[string]any, key string) (string, bool) {
	v, ok := obj[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func expectBool(obj map[string]any, key string) (bool, bool) {
	v, ok := obj[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func expectObj(obj map[string]any, key string) (map[string]any, bool) {
	v, ok := obj[key]
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

// VerifyTrace re-checks a run directory's trace.ndjson event stream: fixed
// kind set, closed per-kind keyset, module_resolve forms a contiguous
// prefix, module_graph appears exactly once, error appears at most once
// and last, and result.json/error.json presence matches digests.json's
// ok flag.
func VerifyTrace(dir string) (*Result, error) {
	digests, _, err := readDigestsJSON(dir)
	if err != nil {
		return fail(KindTrace, "M2_MISSING_digests.json")
	}
	ok, got := expectBool(digests, "ok")
	if !got {
		return fail(KindTrace, "M2_DIGESTS_MISSING_ok")
	}

	traceBytes, err := os.ReadFile(filepath.Join(dir, "trace.ndjson"))
	if err != nil {
		return fail(KindTrace, "M2_MISSING_trace.ndjson")
	}
	traceStr := string(traceBytes)

	allowedT := map[string]bool{
		"module_resolve": true, "module_graph": true,
		"artifact_in": true, "artifact_out": true, "error": true,
	}

	sawNonModuleResolve := false
	moduleGraphCount := 0
	errorCount := 0
	lastT := ""

	lines := strings.Split(traceStr, "\n")
	for idx, raw := range lines {
		if raw == "" {
			if idx == len(lines)-1 {
				break
			}
			return fail(KindTrace, "M2_EMPTY_LINE")
		}
		if strings.HasSuffix(raw, " ") || strings.HasSuffix(raw, "\t") || strings.Contains(raw, "\r") {
			return fail(KindTrace, "M2_TRAILING_SPACE_OR_CR")
		}

		var v map[string]any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return fail(KindTrace, "M2_TRACE_LINE_PARSE_FAIL")
		}

		t, ok := expectStr(v, "t")
		if !ok {
			return fail(KindTrace, "M2_EXPECT_STRING t")
		}
		if !allowedT[t] {
			return fail(KindTrace, "M2_BAD_EVENT_TAG %s", t)
		}

		canon, err := canonLine(v)
		if err != nil {
			return fail(KindTrace, "%s", err)
		}
		if canon != raw {
			return fail(KindTrace, "M2_CANON_MISMATCH")
		}

		switch t {
		case "module_resolve":
			if k, ok := expectOnlyKeys(v, "cid", "kind", "name", "t"); !ok {
				return fail(KindTrace, "M2_EXTRA_KEY %s", k)
			}
			cid, ok := expectStr(v, "cid")
			if !ok || !isSHA256(cid) {
				return fail(KindTrace, "M2_BAD_CID")
			}
			kind, ok := expectStr(v, "kind")
			if !ok {
				return fail(KindTrace, "M2_EXPECT_STRING kind")
			}
			if _, ok := expectStr(v, "name"); !ok {
				return fail(KindTrace, "M2_EXPECT_STRING name")
			}
			if kind != "std" && kind != "rel" && kind != "abs" && kind != "vendor" {
				return fail(KindTrace, "M2_BAD_KIND")
			}
			if sawNonModuleResolve {
				return fail(KindTrace, "M2_ORDER_MODULE_RESOLVE_PREFIX")
			}
		case "module_graph":
			if k, ok := expectOnlyKeys(v, "cid", "t"); !ok {
				return fail(KindTrace, "M2_EXTRA_KEY %s", k)
			}
			cid, ok := expectStr(v, "cid")
			if !ok || !isSHA256(cid) {
				return fail(KindTrace, "M2_BAD_CID")
			}
			moduleGraphCount++
			sawNonModuleResolve = true
		case "artifact_in", "artifact_out":
			if k, ok := expectOnlyKeys(v, "cid", "name", "t"); !ok {
				return fail(KindTrace, "M2_EXTRA_KEY %s", k)
			}
			cid, ok := expectStr(v, "cid")
			if !ok || !isSHA256(cid) {
				return fail(KindTrace, "M2_BAD_CID")
			}
			if _, ok := expectStr(v, "name"); !ok {
				return fail(KindTrace, "M2_EXPECT_STRING name")
			}
			sawNonModuleResolve = true
		case "error":
			if k, ok := expectOnlyKeys(v, "code", "message", "t"); !ok {
				return fail(KindTrace, "M2_EXTRA_KEY %s", k)
			}
			if _, ok := expectStr(v, "code"); !ok {
				return fail(KindTrace, "M2_EXPECT_STRING code")
			}
			if _, ok := expectStr(v, "message"); !ok {
				return fail(KindTrace, "M2_EXPECT_STRING message")
			}
			errorCount++
			sawNonModuleResolve = true
		}
		lastT = t
	}

	if moduleGraphCount != 1 {
		return fail(KindTrace, "M2_MODULE_GRAPH_NOT_ONCE")
	}
	if errorCount > 0 {
		if errorCount != 1 {
			return fail(KindTrace, "M2_ERROR_NOT_ONCE")
		}
		if lastT != "error" {
			return fail(KindTrace, "M2_ERROR_NOT_LAST")
		}
	}

	_, hasResult := os.Stat(filepath.Join(dir, "result.json"))
	_, hasError := os.Stat(filepath.Join(dir, "error.json"))
	resultExists := hasResult == nil
	errorExists := hasError == nil

	if ok {
		if errorCount != 0 {
			return fail(KindTrace, "M2_OK_MUST_HAVE_NO_ERROR_EVENT")
		}
		if !resultExists {
			return fail(KindTrace, "M2_OK_MUST_HAVE_result.json")
		}
		if errorExists {
			return fail(KindTrace, "M2_OK_MUST_NOT_HAVE_error.json")
		}
	} else {
		if errorCount != 1 {
			return fail(KindTrace, "M2_FAIL_MUST_HAVE_ONE_ERROR_EVENT")
		}
		if resultExists {
			return fail(KindTrace, "M2_FAIL_MUST_NOT_HAVE_result.json")
		}
		if !errorExists {
			return fail(KindTrace, "M2_FAIL_MUST_HAVE_error.json")
		}
	}

	return pass(KindTrace)
}

// VerifyArtifact re-checks a run directory's artifact_graph.json: digest
// coverage, canonical-form byte equality, closed nodes/edges keyset, and
// that every referenced artifact CID has bytes on disk.
func VerifyArtifact(dir string) (*Result, error) {
	digests, _, err := readDigestsJSON(dir)
	if err != nil {
		return fail(KindArtifact, "M3_MISSING_digests.json")
	}
	files, ok := expectObj(digests, "files")
	if !ok {
		return fail(KindArtifact, "M3_DIGESTS_MISSING_files")
	}
	if _, ok := files["artifact_graph.json"]; !ok {
		return fail(KindArtifact, "M3_DIGESTS_MISSING_artifact_graph")
	}

	graphBytes, err := os.ReadFile(filepath.Join(dir, "artifact_graph.json"))
	if err != nil {
		return fail(KindArtifact, "M3_MISSING_artifact_graph.json")
	}
	graphStr := string(graphBytes)
	if strings.Contains(graphStr, "\r") {
		return fail(KindArtifact, "M3_GRAPH_HAS_CR")
	}
	if strings.HasSuffix(graphStr, " ") || strings.HasSuffix(graphStr, "\t") {
		return fail(KindArtifact, "M3_GRAPH_TRAILING_SPACE")
	}
	if !strings.HasSuffix(graphStr, "\n") {
		return fail(KindArtifact, "M3_GRAPH_MISSING_FINAL_NL")
	}
	if strings.HasSuffix(graphStr, "\n\n") {
		return fail(KindArtifact, "M3_GRAPH_EXTRA_FINAL_NL")
	}
	trimmed := strings.TrimSuffix(graphStr, "\n")

	var graphAny any
	if err := json.Unmarshal(graphBytes, &graphAny); err != nil {
		return fail(KindArtifact, "M3_GRAPH_PARSE_FAIL")
	}
	canon, err := canonjson.Marshal(graphAny)
	if err != nil {
		return fail(KindArtifact, "M3_CANON_FAIL")
	}
	if string(canon) != trimmed {
		return fail(KindArtifact, "M3_GRAPH_CANON_MISMATCH")
	}

	gobj, ok := graphAny.(map[string]any)
	if !ok {
		return fail(KindArtifact, "M3_GRAPH_NOT_OBJECT")
	}
	if k, ok := expectOnlyKeys(gobj, "edges", "nodes", "v"); !ok {
		return fail(KindArtifact, "M3_EXTRA_KEY %s", k)
	}
	vver, ok := expectStr(gobj, "v")
	if !ok || vver != "0.1.0" {
		return fail(KindArtifact, "M3_GRAPH_BAD_v")
	}
	nodesAny, ok := gobj["nodes"].([]any)
	if !ok {
		return fail(KindArtifact, "M3_GRAPH_MISSING_nodes")
	}
	edgesAny, ok := gobj["edges"].([]any)
	if !ok {
		return fail(KindArtifact, "M3_GRAPH_MISSING_edges")
	}

	nodeCIDs := map[string]bool{}
	for _, n := range nodesAny {
		no, ok := n.(map[string]any)
		if !ok {
			return fail(KindArtifact, "M3_NODE_NOT_OBJECT")
		}
		if k, ok := expectOnlyKeys(no, "cid", "name", "role"); !ok {
			return fail(KindArtifact, "M3_EXTRA_KEY %s", k)
		}
		cid, ok := expectStr(no, "cid")
		if !ok || !isSHA256(cid) {
			return fail(KindArtifact, "M3_NODE_BAD_CID")
		}
		if _, ok := expectStr(no, "name"); !ok {
			return fail(KindArtifact, "M3_EXPECT_STRING name")
		}
		role, ok := expectStr(no, "role")
		if !ok || (role != "in" && role != "out") {
			return fail(KindArtifact, "M3_NODE_BAD_ROLE")
		}
		if nodeCIDs[cid] {
			return fail(KindArtifact, "M3_NODE_DUP_CID")
		}
		nodeCIDs[cid] = true
	}

	for _, e := range edgesAny {
		eo, ok := e.(map[string]any)
		if !ok {
			return fail(KindArtifact, "M3_EDGE_NOT_OBJECT")
		}
		if k, ok := expectOnlyKeys(eo, "from", "kind", "to"); !ok {
			return fail(KindArtifact, "M3_EXTRA_KEY %s", k)
		}
		from, ok1 := expectStr(eo, "from")
		to, ok2 := expectStr(eo, "to")
		kind, ok3 := expectStr(eo, "kind")
		if !ok1 || !ok2 || !ok3 {
			return fail(KindArtifact, "M3_EDGE_MISSING_FIELD")
		}
		if kind != "used_by" {
			return fail(KindArtifact, "M3_EDGE_BAD_KIND")
		}
		if !nodeCIDs[from] {
			return fail(KindArtifact, "M3_EDGE_FROM_UNKNOWN")
		}
		if !nodeCIDs[to] {
			return fail(KindArtifact, "M3_EDGE_TO_UNKNOWN")
		}
	}

	for cid := range nodeCIDs {
		hex, err := digest.ParseCID(cid)
		if err != nil {
			return fail(KindArtifact, "M3_BAD_CID")
		}
		p := filepath.Join(dir, "artifacts", hex+".bin")
		if _, err := os.Stat(p); err != nil {
			return fail(KindArtifact, "M3_MISSING_ARTIFACT_BYTES")
		}
	}

	return pass(KindArtifact)
}

// VerifyBundle re-checks a run directory's digests.json against the
// actual files present: exact coverage (no missing, no extras), per-file
// hash match, and a recomputed preimage_sha256 over the frozen
// {files,ok,runtime_version,stdlib_root_digest,trace_format_version}
// surface.
func VerifyBundle(dir string) (*Result, error) {
	digests, _, err := readDigestsJSON(dir)
	if err != nil {
		return fail(KindBundle, "M5_MISSING_digests.json")
	}
	if k, ok := expectOnlyKeys(digests, "files", "ok", "preimage_sha256", "runtime_version", "trace_format_version", "stdlib_root_digest"); !ok {
		return fail(KindBundle, "M5_EXTRA_KEY %s", k)
	}
	ok, got := expectBool(digests, "ok")
	if !got {
		return fail(KindBundle, "M5_EXPECT_BOOL ok")
	}
	runtimeVersion, got := expectStr(digests, "runtime_version")
	if !got {
		return fail(KindBundle, "M5_EXPECT_STRING runtime_version")
	}
	traceFormatVersion, got := expectStr(digests, "trace_format_version")
	if !got {
		return fail(KindBundle, "M5_EXPECT_STRING trace_format_version")
	}
	stdlibRootDigest, got := expectStr(digests, "stdlib_root_digest")
	if !got {
		return fail(KindBundle, "M5_EXPECT_STRING stdlib_root_digest")
	}
	preimageSHA256, got := expectStr(digests, "preimage_sha256")
	if !got || !isSHA256(preimageSHA256) {
		return fail(KindBundle, "M5_BAD_preimage_sha256")
	}
	filesObj, got := expectObj(digests, "files")
	if !got {
		return fail(KindBundle, "M5_EXPECT_OBJECT files")
	}

	traceExists := exists(filepath.Join(dir, "trace.ndjson"))
	modgExists := exists(filepath.Join(dir, "module_graph.json"))
	resExists := exists(filepath.Join(dir, "result.json"))
	errExists := exists(filepath.Join(dir, "error.json"))
	agExists := exists(filepath.Join(dir, "artifact_graph.json"))

	if !traceExists {
		return fail(KindBundle, "M5_MISSING_FILE trace.ndjson")
	}
	if !modgExists {
		return fail(KindBundle, "M5_MISSING_FILE module_graph.json")
	}
	if ok {
		if !resExists {
			return fail(KindBundle, "M5_OK_MISSING_result.json")
		}
		if errExists {
			return fail(KindBundle, "M5_OK_FORBIDS_error.json")
		}
	} else {
		if !errExists {
			return fail(KindBundle, "M5_ERR_MISSING_error.json")
		}
		if resExists {
			return fail(KindBundle, "M5_ERR_FORBIDS_result.json")
		}
	}

	expected := map[string]bool{"trace.ndjson": true, "module_graph.json": true}
	if ok {
		expected["result.json"] = true
	} else {
		expected["error.json"] = true
	}
	if agExists {
		expected["artifact_graph.json"] = true
	}

	for k := range expected {
		if _, ok := filesObj[k]; !ok {
			return fail(KindBundle, "M5_DIGESTS_MISSING_FILE %s", k)
		}
	}
	for k := range filesObj {
		if !expected[k] {
			return fail(KindBundle, "M5_DIGESTS_EXTRA_FILE %s", k)
		}
	}

	preFiles := map[string]string{}
	for name := range expected {
		cidAny, ok := filesObj[name]
		if !ok {
			return fail(KindBundle, "M5_EXPECT_CID %s", name)
		}
		cid, ok := cidAny.(string)
		if !ok || !isSHA256(cid) {
			return fail(KindBundle, "M5_BAD_FILE_CID %s", name)
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fail(KindBundle, "M5_MISSING_FILE %s", name)
		}
		if digest.CID(data) != cid {
			return fail(KindBundle, "M5_FILE_HASH_MISMATCH %s", name)
		}
		preFiles[name] = cid
	}

	preimage := map[string]any{
		"files":                 preFiles,
		"ok":                    ok,
		"runtime_version":       runtimeVersion,
		"stdlib_root_digest":    stdlibRootDigest,
		"trace_format_version":  traceFormatVersion,
	}
	canon, err := canonjson.Marshal(preimage)
	if err != nil {
		return fail(KindBundle, "M5_CANON_FAIL")
	}
	if digest.CID(canon) != preimageSHA256 {
		return fail(KindBundle, "M5_PREIMAGE_HASH_MISMATCH")
	}

	return pass(KindBundle)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// canonLine re-encodes v (already decoded from one trace.ndjson line) via
// canonjson and returns that canonical form for the caller to compare with
// the original line; used only to mirror the line-level
// canonical-form check, not to re-derive v's structure.
func canonLine(v map[string]any) (string, error) {
	out, err := canonjson.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// WriteResult writes PASS_<KIND>.txt or FAIL_<KIND>.txt into dir per the
// CLI contract; callers additionally print an ERROR_* line to stderr when
// !r.OK.
func WriteResult(dir string, r *Result) error {
	name := fmt.Sprintf("PASS_%s.txt", strings.ToUpper(string(r.Kind)))
	content := "PASS\n"
	if !r.OK {
		name = fmt.Sprintf("FAIL_%s.txt", strings.ToUpper(string(r.Kind)))
		content = r.Code + "\n"
	}
	return os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644)
}
