// Command abirun loads a run bundle directory and drives its evaluation,
// writing the resulting witness bytes to stdout with no trailing newline.
//
// Usage:
//
//	abirun <bundle-dir>
//
// Exit codes:
//
//	0  success, witness bytes written to stdout
//	2  bundle load/verify failure or evaluation failure
//	10 internal error
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mauludsadiq/fard/internal/bundle"
	"github.com/mauludsadiq/fard/internal/ferr"
	"github.com/mauludsadiq/fard/internal/lang/check"
	"github.com/mauludsadiq/fard/internal/lang/eval"
	"github.com/mauludsadiq/fard/internal/lang/parser"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "usage: abirun <bundle-dir>")
		return ferr.ErrUsage.ExitCode()
	}
	dir := args[0]

	b, err := bundle.Load(dir)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitCodeOf(err)
	}

	ev, err := buildEvaluator(b)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitCodeOf(err)
	}

	w, err := b.Run(ev)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitCodeOf(err)
	}

	if _, err := stdout.Write(w.Bytes()); err != nil {
		fmt.Fprintf(stderr, "error: writing witness: %v\n", err)
		return ferr.ErrInternal.ExitCode()
	}
	return 0
}

// buildEvaluator parses and checks every module named in the bundle's
// program identity, then builds an Evaluator over whichever module
// declares the program's entry fn, replaying the bundle's recorded
// effects in order. Cross-module linking is not yet implemented: a
// program's entry fn must live in one of its own declared modules.
func buildEvaluator(b *bundle.Bundle) (*eval.Evaluator, error) {
	var lastErr error
	for _, m := range b.ModGraph.Mods {
		src, ok := b.Sources[m.Source]
		if !ok {
			return nil, ferr.New(ferr.ErrBadSource, "module %q has no source bytes", m.Name)
		}
		mod, err := parser.ParseModule(m.Name, src)
		if err != nil {
			lastErr = err
			continue
		}
		checked, err := check.Check(mod)
		if err != nil {
			lastErr = err
			continue
		}
		if _, ok := checked.FnByName[b.ModGraph.Entry]; ok {
			handler := bundle.NewReplayHandler(b.Effects)
			return eval.New(checked, handler), nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ferr.New(ferr.ErrBadBundle, "program.json entry %q not found in any module", b.ModGraph.Entry)
}

func exitCodeOf(err error) int {
	if fe, ok := err.(*ferr.Error); ok {
		return fe.Class.ExitCode()
	}
	return ferr.ErrInternal.ExitCode()
}
