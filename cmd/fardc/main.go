// Command fardc compiles a single source file into a minimal run bundle
// directory: the canonical source under sources/, an empty-input/
// empty-effects/empty-imports program shell, and a module_graph.json
// manifest. It prints the module's source CID followed by a newline to
// stdout.
//
// Usage:
//
//	fardc --src <file> --out <dir>
//
// Exit codes:
//
//	0  success
//	2  parse/check failure
//	10 internal error
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mauludsadiq/fard/internal/canonjson"
	"github.com/mauludsadiq/fard/internal/digest"
	"github.com/mauludsadiq/fard/internal/ferr"
	"github.com/mauludsadiq/fard/internal/lang/check"
	"github.com/mauludsadiq/fard/internal/lang/parser"
	"github.com/mauludsadiq/fard/internal/lang/printer"
	"github.com/mauludsadiq/fard/internal/valuecore"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	srcPath, outDir, err := parseFlags(args)
	if err != nil {
		fmt.Fprintf(stderr, "usage: fardc --src <file> --out <dir>\n%v\n", err)
		return ferr.ErrUsage.ExitCode()
	}

	src, err := os.ReadFile(srcPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: reading %s: %v\n", srcPath, err)
		return ferr.ErrInternal.ExitCode()
	}

	mod, err := parser.ParseModule(srcPath, src)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitCodeOf(err)
	}
	checked, err := check.Check(mod)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitCodeOf(err)
	}
	if _, ok := checked.FnByName["main"]; !ok {
		fmt.Fprintln(stderr, "error: module has no fn named \"main\" to use as entry")
		return ferr.ErrUsage.ExitCode()
	}

	canonicalSrc := printer.Print(mod)
	cid := printer.SourceCID(mod)
	srcHex := digest.Hex(canonicalSrc)
	modName := strings.Join(mod.Name, ".")

	if err := writeBundleShell(outDir, modName, srcHex, canonicalSrc, cid); err != nil {
		fmt.Fprintf(stderr, "error: writing bundle shell: %v\n", err)
		return ferr.ErrInternal.ExitCode()
	}

	fmt.Fprintln(stdout, cid)
	return 0
}

func parseFlags(args []string) (src, out string, err error) {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--src":
			if i+1 >= len(args) {
				return "", "", fmt.Errorf("--src requires a value")
			}
			src = args[i+1]
			i++
		case "--out":
			if i+1 >= len(args) {
				return "", "", fmt.Errorf("--out requires a value")
			}
			out = args[i+1]
			i++
		}
	}
	if src == "" || out == "" {
		return "", "", fmt.Errorf("both --src and --out are required")
	}
	return src, out, nil
}

func writeBundleShell(outDir, modName, srcHex string, canonicalSrc []byte, cid string) error {
	if err := os.MkdirAll(filepath.Join(outDir, "sources"), 0o755); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(outDir, "facts"), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(outDir, "sources", srcHex+".src"), canonicalSrc, 0o644); err != nil {
		return err
	}

	program := valuecore.NewRecord([]valuecore.KV{
		{Key: "entry", Val: valuecore.Text("main")},
		{Key: "mods", Val: valuecore.List{valuecore.NewRecord([]valuecore.KV{
			{Key: "name", Val: valuecore.Text(modName)},
			{Key: "source", Val: valuecore.Text(srcHex)},
		})}},
	})
	if err := os.WriteFile(filepath.Join(outDir, "program.json"), valuecore.Enc(program), 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(outDir, "input.json"), valuecore.Enc(valuecore.Unit{}), 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(outDir, "imports.json"), valuecore.Enc(valuecore.List{}), 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(outDir, "effects.json"), valuecore.Enc(valuecore.List{}), 0o644); err != nil {
		return err
	}

	graph := map[string]any{
		"cid": cid,
		"mods": []any{
			map[string]any{"name": modName, "source": srcHex},
		},
	}
	graphBytes, err := canonjson.Marshal(graph)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outDir, "module_graph.json"), append(graphBytes, '\n'), 0o644)
}

func exitCodeOf(err error) int {
	if fe, ok := err.(*ferr.Error); ok {
		return fe.Class.ExitCode()
	}
	return ferr.ErrInternal.ExitCode()
}
