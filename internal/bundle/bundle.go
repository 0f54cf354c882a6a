// Package bundle loads a run bundle directory, verifies its content
// integrity (source hashes, fact digests, import closure), and drives the
// witness-building pipeline. The load/verify order mirrors the
// strict-decode idiom of reading a JSON document, rejecting unknown
// fields, and rejecting trailing content before any semantic validation
// runs.
package bundle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mauludsadiq/fard/internal/digest"
	"github.com/mauludsadiq/fard/internal/ferr"
	"github.com/mauludsadiq/fard/internal/lang/eval"
	"github.com/mauludsadiq/fard/internal/valuecore"
	"github.com/mauludsadiq/fard/internal/witness"
)

// Bundle is a loaded, verified (through step 6) bundle ready for witness
// assembly.
type Bundle struct {
	Dir      string
	Program  valuecore.Value
	Input    valuecore.Value
	Effects  []witness.BundleEffect
	Imports  []witness.ImportUse
	Facts    map[string]valuecore.Value
	Sources  map[string][]byte // hex digest -> source bytes
	ModGraph witness.ProgramIdentity
}

// Load performs steps 1-6 of §4.6: source hash verification, program/
// input/effects decode, imports read+sort+dedupe, facts digest
// verification, and Gate-3 precedence (a missing fact outranks fact-file
// and source-reference errors; errors from steps 1-3, which include a
// malformed effects.json or imports.json, are reported first).
func Load(dir string) (*Bundle, error) {
	// Step 1: every sources/*.src filename hex must equal sha256(bytes).
	sources, err := loadSources(dir)
	if err != nil {
		return nil, err
	}

	// Step 2: decode program.json / input.json / effects.json.
	programRaw, err := readJSONFile(filepath.Join(dir, "program.json"))
	if err != nil {
		return nil, ferr.Wrap(ferr.ErrBadBundle, err, "reading program.json")
	}
	program, err := valuecore.Dec(programRaw)
	if err != nil {
		return nil, ferr.Wrap(ferr.ErrBadBundle, err, "decoding program.json")
	}
	inputRaw, err := readJSONFile(filepath.Join(dir, "input.json"))
	if err != nil {
		return nil, ferr.Wrap(ferr.ErrBadBundle, err, "reading input.json")
	}
	input, err := valuecore.Dec(inputRaw)
	if err != nil {
		return nil, ferr.Wrap(ferr.ErrBadBundle, err, "decoding input.json")
	}
	effectsRaw, err := readJSONFile(filepath.Join(dir, "effects.json"))
	if err != nil {
		return nil, ferr.Wrap(ferr.ErrBadBundle, err, "reading effects.json")
	}
	effects, err := decodeEffects(effectsRaw)
	if err != nil {
		return nil, err
	}

	// Step 3: imports.json is optional; absent means [].
	var imports []witness.ImportUse
	importsPath := filepath.Join(dir, "imports.json")
	if _, statErr := os.Stat(importsPath); statErr == nil {
		importsRaw, err := readJSONFile(importsPath)
		if err != nil {
			return nil, ferr.Wrap(ferr.ErrBadBundle, err, "reading imports.json")
		}
		imports, err = decodeImports(importsRaw)
		if err != nil {
			return nil, err
		}
	}
	sortDedupeImports(&imports)

	// Gate-3 presence check against facts/ file names, made before step 4
	// reads any fact file so a missing fact outranks a malformed one.
	for _, im := range imports {
		hexName := strings.TrimPrefix(im.RunID, "sha256:")
		if _, err := os.Stat(filepath.Join(dir, "facts", hexName+".json")); err != nil {
			return nil, ferr.New(ferr.ErrMissingFact, "import %s has no corresponding facts/ entry", im.RunID)
		}
	}

	// Step 4: facts/*.json, keyed by RunID = "sha256:" + filename hex.
	facts, err := loadFacts(dir)
	if err != nil {
		return nil, err
	}

	// Step 5 (Gate-3 precedence): every import RunID must have a fact.
	// Together with the presence check above, this outranks every error
	// raised from step 4 on, so it runs before step 6's source-reference
	// check even though step 6 is logically "earlier" in program validation.
	for _, im := range imports {
		if _, ok := facts[im.RunID]; !ok {
			return nil, ferr.New(ferr.ErrMissingFact, "import %s has no corresponding facts/ entry", im.RunID)
		}
	}

	// Step 6: every program.mods[*].source must exist in sources/.
	modGraph, err := programIdentity(program)
	if err != nil {
		return nil, err
	}
	for _, m := range modGraph.Mods {
		if _, ok := sources[m.Source]; !ok {
			return nil, ferr.New(ferr.ErrBadSource, "module %q references missing source %s", m.Name, m.Source)
		}
	}

	return &Bundle{
		Dir: dir, Program: program, Input: input, Effects: effects,
		Imports: imports, Facts: facts, Sources: sources, ModGraph: modGraph,
	}, nil
}

// Run drives step 7-8: vector-0 mode (result=Unit, trace.cid=Unit) when
// ev is nil, otherwise calls the program's entry fn through ev with Input
// as its single argument; effects go to whatever handler ev was built with.
func (b *Bundle) Run(ev *eval.Evaluator) (*witness.Witness, error) {
	result := valuecore.Value(valuecore.Unit{})
	traceCID := valuecore.Value(valuecore.Unit{})

	if ev != nil {
		r, err := ev.Call(b.ModGraph.Entry, []valuecore.Value{b.Input})
		if err != nil {
			return nil, err
		}
		result = r
	}

	return witness.Build(b.ModGraph, b.Input, b.Effects, b.Imports, b.Facts, result, traceCID)
}

// ReplayHandler implements eval.EffectHandler by replaying a bundle's
// recorded effects.json: each Invoke call must match one recorded
// (kind, req) pair exactly (by VDig equality on req), in recorded order,
// since effect order within a run is evaluator-request order and is not
// itself witness-observable.
type ReplayHandler struct {
	effects []witness.BundleEffect
	next    int
}

// NewReplayHandler builds a ReplayHandler over a bundle's recorded
// effects, consumed strictly in order.
func NewReplayHandler(effects []witness.BundleEffect) *ReplayHandler {
	return &ReplayHandler{effects: effects}
}

func (h *ReplayHandler) Invoke(kind string, req valuecore.Value) (valuecore.Value, error) {
	if h.next >= len(h.effects) {
		return nil, ferr.New(ferr.ErrEffect, "effect %s requested with no recorded effects remaining", kind)
	}
	e := h.effects[h.next]
	if e.Kind != kind || valuecore.VDig(e.Req) != valuecore.VDig(req) {
		return nil, ferr.New(ferr.ErrEffect, "effect %s does not match next recorded effect %s", kind, e.Kind)
	}
	h.next++
	return e.Value, nil
}

func readJSONFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := ensureSingleJSONDocument(data); err != nil {
		return nil, err
	}
	return data, nil
}

// ensureSingleJSONDocument rejects trailing bytes after the first JSON
// value, mirroring the strict single-document decode idiom used
// throughout the surrounding config-loading code.
func ensureSingleJSONDocument(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return fmt.Errorf("unexpected trailing json content")
		}
		return fmt.Errorf("decode trailing json token: %w", err)
	}
	return nil
}

func loadSources(dir string) (map[string][]byte, error) {
	out := map[string][]byte{}
	srcDir := filepath.Join(dir, "sources")
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, ferr.Wrap(ferr.ErrBadBundle, err, "reading sources directory")
	}
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".src") {
			continue
		}
		hexName := strings.TrimSuffix(ent.Name(), ".src")
		data, err := os.ReadFile(filepath.Join(srcDir, ent.Name()))
		if err != nil {
			return nil, ferr.Wrap(ferr.ErrBadBundle, err, "reading source %s", ent.Name())
		}
		if digest.Hex(data) != hexName {
			return nil, ferr.New(ferr.ErrBadSource, "sources/%s: filename hex does not match sha256(bytes)", ent.Name())
		}
		out[hexName] = data
	}
	return out, nil
}

func loadFacts(dir string) (map[string]valuecore.Value, error) {
	out := map[string]valuecore.Value{}
	factsDir := filepath.Join(dir, "facts")
	entries, err := os.ReadDir(factsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, ferr.Wrap(ferr.ErrBadBundle, err, "reading facts directory")
	}
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".json") {
			continue
		}
		hexName := strings.TrimSuffix(ent.Name(), ".json")
		raw, err := readJSONFile(filepath.Join(factsDir, ent.Name()))
		if err != nil {
			return nil, ferr.Wrap(ferr.ErrBadBundle, err, "reading fact %s", ent.Name())
		}
		v, err := valuecore.Dec(raw)
		if err != nil {
			return nil, ferr.Wrap(ferr.ErrBadBundle, err, "decoding fact %s", ent.Name())
		}
		runID := "sha256:" + hexName
		if valuecore.VDig(v) != runID {
			return nil, ferr.New(ferr.ErrBadBundle, "facts/%s: vdig(value) does not equal sha256:%s", ent.Name(), hexName)
		}
		out[runID] = v
	}
	return out, nil
}

func decodeEffects(raw []byte) ([]witness.BundleEffect, error) {
	v, err := valuecore.Dec(raw)
	if err != nil {
		return nil, ferr.Wrap(ferr.ErrBadBundle, err, "decoding effects.json")
	}
	lst, ok := v.(valuecore.List)
	if !ok {
		return nil, ferr.New(ferr.ErrBadBundle, "effects.json must decode to a list")
	}
	out := make([]witness.BundleEffect, 0, len(lst))
	for _, el := range lst {
		r, ok := el.(*valuecore.Record)
		if !ok {
			return nil, ferr.New(ferr.ErrBadBundle, "effects.json entries must be records")
		}
		kind, ok1 := r.Get("kind")
		req, ok2 := r.Get("req")
		val, ok3 := r.Get("value")
		kt, ok4 := kind.(valuecore.Text)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return nil, ferr.New(ferr.ErrBadBundle, "effects.json entry missing kind/req/value")
		}
		out = append(out, witness.BundleEffect{Kind: string(kt), Req: req, Value: val})
	}
	return out, nil
}

func decodeImports(raw []byte) ([]witness.ImportUse, error) {
	v, err := valuecore.Dec(raw)
	if err != nil {
		return nil, ferr.Wrap(ferr.ErrBadBundle, err, "decoding imports.json")
	}
	lst, ok := v.(valuecore.List)
	if !ok {
		return nil, ferr.New(ferr.ErrBadBundle, "imports.json must decode to a list")
	}
	out := make([]witness.ImportUse, 0, len(lst))
	for _, el := range lst {
		t, ok := el.(valuecore.Text)
		if !ok {
			return nil, ferr.New(ferr.ErrBadBundle, "imports.json entries must be text RunIDs")
		}
		out = append(out, witness.ImportUse{RunID: string(t)})
	}
	return out, nil
}

func sortDedupeImports(imports *[]witness.ImportUse) {
	sort.Slice(*imports, func(i, j int) bool { return (*imports)[i].RunID < (*imports)[j].RunID })
	out := (*imports)[:0]
	var prev string
	first := true
	for _, im := range *imports {
		if !first && im.RunID == prev {
			continue
		}
		out = append(out, im)
		prev = im.RunID
		first = false
	}
	*imports = out
}

func programIdentity(program valuecore.Value) (witness.ProgramIdentity, error) {
	r, ok := program.(*valuecore.Record)
	if !ok {
		return witness.ProgramIdentity{}, ferr.New(ferr.ErrBadBundle, "program.json must decode to a record")
	}
	entryV, ok := r.Get("entry")
	entry, ok2 := entryV.(valuecore.Text)
	if !ok || !ok2 {
		return witness.ProgramIdentity{}, ferr.New(ferr.ErrBadBundle, "program.json missing text field \"entry\"")
	}
	modsV, ok := r.Get("mods")
	mods, ok2 := modsV.(valuecore.List)
	if !ok || !ok2 {
		return witness.ProgramIdentity{}, ferr.New(ferr.ErrBadBundle, "program.json missing list field \"mods\"")
	}
	out := make([]witness.ModEntry, 0, len(mods))
	for _, m := range mods {
		mr, ok := m.(*valuecore.Record)
		if !ok {
			return witness.ProgramIdentity{}, ferr.New(ferr.ErrBadBundle, "program.json mods entries must be records")
		}
		nameV, ok1 := mr.Get("name")
		srcV, ok2 := mr.Get("source")
		name, ok3 := nameV.(valuecore.Text)
		src, ok4 := srcV.(valuecore.Text)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return witness.ProgramIdentity{}, ferr.New(ferr.ErrBadBundle, "program.json mods entry missing name/source")
		}
		out = append(out, witness.ModEntry{Name: string(name), Source: string(src)})
	}
	return witness.ProgramIdentity{Entry: string(entry), Mods: out}, nil
}
