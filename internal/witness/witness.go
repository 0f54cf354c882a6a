// Package witness assembles the seven-field witness Record and computes
// its RunID. Build is pure: no I/O, no clock, no randomness.
package witness

import (
	"bytes"
	"sort"

	"github.com/mauludsadiq/fard/internal/valuecore"
)

// BundleEffect is an effect observation as recorded in a bundle's
// effects.json, before sorting/digesting into witness shape.
type BundleEffect struct {
	Kind  string
	Req   valuecore.Value
	Value valuecore.Value
}

// ImportUse names a prior run this program's evaluation depended on.
type ImportUse struct {
	RunID string
}

// ModEntry is one module in the program identity's module graph.
type ModEntry struct {
	Name   string
	Source string // hex digest of the module's canonical source bytes
}

// ProgramIdentity is the program field of the witness.
type ProgramIdentity struct {
	Entry string
	Mods  []ModEntry
}

// Witness is the fully assembled, not-yet-encoded witness.
type Witness struct {
	Rec *valuecore.Record
}

// Build assembles the seven-field witness record per §4.5: effects sorted
// by UTF8(kind)||0x00||ENC(req), imports resolved against facts and sorted
// by RunID byte order (deduped), then Value-encoded and digested.
func Build(
	program ProgramIdentity,
	input valuecore.Value,
	effectsIn []BundleEffect,
	importsIn []ImportUse,
	facts map[string]valuecore.Value,
	result valuecore.Value,
	traceCID valuecore.Value,
) (*Witness, error) {
	effects := make([]valuecore.Value, len(effectsIn))
	sortedIn := append([]BundleEffect{}, effectsIn...)
	sort.Slice(sortedIn, func(i, j int) bool {
		return effectSortKey(sortedIn[i]) < effectSortKey(sortedIn[j])
	})
	for i, e := range sortedIn {
		effects[i] = valuecore.NewRecord([]valuecore.KV{
			{Key: "kind", Val: valuecore.Text(e.Kind)},
			{Key: "req", Val: e.Req},
			{Key: "sat", Val: valuecore.Text(valuecore.VDig(e.Value))},
		})
	}

	seen := map[string]bool{}
	var imports []valuecore.Value
	sortedImports := append([]ImportUse{}, importsIn...)
	sort.Slice(sortedImports, func(i, j int) bool { return sortedImports[i].RunID < sortedImports[j].RunID })
	for _, im := range sortedImports {
		if seen[im.RunID] {
			continue
		}
		seen[im.RunID] = true
		factVal, ok := facts[im.RunID]
		if !ok {
			continue // caller (bundle runner) enforces ERROR_MISSING_FACT before Build is invoked
		}
		imports = append(imports, valuecore.NewRecord([]valuecore.KV{
			{Key: "run", Val: valuecore.Text(im.RunID)},
			{Key: "result", Val: valuecore.Text(valuecore.VDig(factVal))},
		}))
	}

	mods := make([]valuecore.Value, len(program.Mods))
	for i, m := range program.Mods {
		mods[i] = valuecore.NewRecord([]valuecore.KV{
			{Key: "name", Val: valuecore.Text(m.Name)},
			{Key: "source", Val: valuecore.Text(m.Source)},
		})
	}
	programRec := valuecore.NewRecord([]valuecore.KV{
		{Key: "entry", Val: valuecore.Text(program.Entry)},
		{Key: "mods", Val: valuecore.List(mods)},
	})

	trace := valuecore.NewRecord([]valuecore.KV{
		{Key: "cid", Val: traceCID},
	})

	rec := valuecore.NewRecord([]valuecore.KV{
		{Key: "effects", Val: valuecore.List(effects)},
		{Key: "imports", Val: valuecore.List(imports)},
		{Key: "input", Val: input},
		{Key: "kind", Val: valuecore.Text("run")},
		{Key: "program", Val: programRec},
		{Key: "result", Val: result},
		{Key: "trace", Val: trace},
	})

	r, ok := rec.(*valuecore.Record)
	if !ok {
		// NewRecord can only fail into an Err value on duplicate keys; the
		// seven keys above are distinct literals, so this path is dead
		// code kept only because NewRecord's return type is Value.
		return nil, nil
	}
	return &Witness{Rec: r}, nil
}

func effectSortKey(e BundleEffect) string {
	var buf bytes.Buffer
	buf.WriteString(e.Kind)
	buf.WriteByte(0x00)
	buf.Write(valuecore.Enc(e.Req))
	return buf.String()
}

// Bytes is the canonical ENC() of the witness.
func (w *Witness) Bytes() []byte { return valuecore.Enc(w.Rec) }

// RunID is "sha256:" + hex(sha256(Bytes())).
func (w *Witness) RunID() string { return valuecore.VDig(w.Rec) }
