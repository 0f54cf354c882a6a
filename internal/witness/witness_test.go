package witness

import (
	"strings"
	"testing"

	"github.com/mauludsadiq/fard/internal/valuecore"
)

func vector0Program() ProgramIdentity {
	return ProgramIdentity{
		Entry: "main",
		Mods:  []ModEntry{{Name: "main", Source: strings.Repeat("0", 64)}},
	}
}

// TestVector0Deterministic exercises the minimal "vector 0" shape: no
// effects, no imports, Unit input/result/trace. Build must be a pure
// function of its arguments: two identical calls produce byte-identical
// witnesses and the same RunID.
func TestVector0Deterministic(t *testing.T) {
	build := func() (*Witness, error) {
		return Build(vector0Program(), valuecore.Unit{}, nil, nil, nil, valuecore.Unit{}, valuecore.Unit{})
	}
	w1, err := build()
	if err != nil {
		t.Fatal(err)
	}
	w2, err := build()
	if err != nil {
		t.Fatal(err)
	}
	if string(w1.Bytes()) != string(w2.Bytes()) {
		t.Fatalf("Build is not deterministic:\n%s\n%s", w1.Bytes(), w2.Bytes())
	}
	if w1.RunID() != w2.RunID() {
		t.Fatalf("RunID mismatch across identical builds: %s vs %s", w1.RunID(), w2.RunID())
	}
	if !strings.HasPrefix(w1.RunID(), "sha256:") || len(w1.RunID()) != len("sha256:")+64 {
		t.Fatalf("RunID has unexpected shape: %s", w1.RunID())
	}
}

func TestWitnessHasSevenSortedTopLevelKeys(t *testing.T) {
	w, err := Build(vector0Program(), valuecore.Unit{}, nil, nil, nil, valuecore.Unit{}, valuecore.Unit{})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"effects", "imports", "input", "kind", "program", "result", "trace"}
	got := w.Rec.Keys()
	if len(got) != len(want) {
		t.Fatalf("got %d top-level keys, want %d: %v", len(got), len(want), got)
	}
	for i, k := range want {
		if got[i] != k {
			t.Fatalf("key[%d] = %q, want %q (keys must come out UTF-8-sorted)", i, got[i], k)
		}
	}
}

func TestEffectsSortedByKindThenEncodedReq(t *testing.T) {
	effects := []BundleEffect{
		{Kind: "write", Req: valuecore.Text("b"), Value: valuecore.Unit{}},
		{Kind: "read", Req: valuecore.Text("a"), Value: valuecore.Unit{}},
		{Kind: "read", Req: valuecore.Text("z"), Value: valuecore.Unit{}},
	}
	w, err := Build(vector0Program(), valuecore.Unit{}, effects, nil, nil, valuecore.Unit{}, valuecore.Unit{})
	if err != nil {
		t.Fatal(err)
	}
	effList, ok := func() (valuecore.List, bool) {
		v, _ := w.Rec.Get("effects")
		l, ok := v.(valuecore.List)
		return l, ok
	}()
	if !ok || len(effList) != 3 {
		t.Fatalf("expected 3 effects, got %v", effList)
	}
	var kinds []string
	var reqs []string
	for _, e := range effList {
		r := e.(*valuecore.Record)
		k, _ := r.Get("kind")
		req, _ := r.Get("req")
		kinds = append(kinds, string(k.(valuecore.Text)))
		reqs = append(reqs, string(req.(valuecore.Text)))
	}
	if kinds[0] != "read" || kinds[1] != "read" || kinds[2] != "write" {
		t.Fatalf("effects not sorted by kind first: %v", kinds)
	}
	if reqs[0] != "a" || reqs[1] != "z" {
		t.Fatalf("same-kind effects not sorted by encoded req: %v", reqs)
	}
}

func TestImportsDedupedAndSortedByRunID(t *testing.T) {
	facts := map[string]valuecore.Value{
		"sha256:bb": valuecore.Text("fact-b"),
		"sha256:aa": valuecore.Text("fact-a"),
	}
	imports := []ImportUse{{RunID: "sha256:bb"}, {RunID: "sha256:aa"}, {RunID: "sha256:aa"}}
	w, err := Build(vector0Program(), valuecore.Unit{}, nil, imports, facts, valuecore.Unit{}, valuecore.Unit{})
	if err != nil {
		t.Fatal(err)
	}
	v, _ := w.Rec.Get("imports")
	lst := v.(valuecore.List)
	if len(lst) != 2 {
		t.Fatalf("expected imports deduped to 2 entries, got %d", len(lst))
	}
	first := lst[0].(*valuecore.Record)
	run, _ := first.Get("run")
	if string(run.(valuecore.Text)) != "sha256:aa" {
		t.Fatalf("imports not sorted by RunID byte order: first = %v", run)
	}
}
