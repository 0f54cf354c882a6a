// Command fardreg is the CLI surface over the content-addressed registry
// store: a Go-native stand-in for original_source's fardlock/fardpkg
// binaries, which the distilled spec named only as a "Registry Store
// (collaborator)" without a CLI shape.
//
// Usage:
//
//	fardreg put <file>
//	    Store file's bytes, print the computed RunID.
//	fardreg get <runid> --out <file>
//	    Copy the registry entry for runid to file.
//
// Exit codes:
//
//	0  success
//	2  ERROR_MISSING_FACT (get of an absent entry) or bad usage
//	10 internal error
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mauludsadiq/fard/internal/digest"
	"github.com/mauludsadiq/fard/internal/fardcfg"
	"github.com/mauludsadiq/fard/internal/ferr"
	"github.com/mauludsadiq/fard/internal/registry"
)

func main() {
	os.Exit(run(os.Args[1:], envMap(), os.Stdout, os.Stderr))
}

func envMap() map[string]string {
	env := map[string]string{}
	if v := os.Getenv("FARD_REGISTRY_DIR"); v != "" {
		env["FARD_REGISTRY_DIR"] = v
	}
	if v := os.Getenv("FARD_LOG_LEVEL"); v != "" {
		env["FARD_LOG_LEVEL"] = v
	}
	return env
}

func run(args []string, env map[string]string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "usage: fardreg <put|get> ...")
		return ferr.ErrUsage.ExitCode()
	}

	cfg, err := fardcfg.Load(env, args)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return ferr.ErrUsage.ExitCode()
	}
	store, err := registry.Open(cfg.RegistryDir)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitCodeOf(err)
	}

	switch args[0] {
	case "put":
		return cmdPut(args[1:], store, stdout, stderr)
	case "get":
		return cmdGet(args[1:], store, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", args[0])
		return ferr.ErrUsage.ExitCode()
	}
}

func cmdPut(args []string, store *registry.Store, stdout, stderr io.Writer) int {
	positional := stripFlags(args)
	if len(positional) != 1 {
		fmt.Fprintln(stderr, "usage: fardreg put <file>")
		return ferr.ErrUsage.ExitCode()
	}
	data, err := os.ReadFile(positional[0])
	if err != nil {
		fmt.Fprintf(stderr, "error: reading %s: %v\n", positional[0], err)
		return ferr.ErrInternal.ExitCode()
	}
	runID := digest.CID(data)
	if err := store.Put(runID, data); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitCodeOf(err)
	}
	fmt.Fprintln(stdout, runID)
	return 0
}

func cmdGet(args []string, store *registry.Store, stderr io.Writer) int {
	var out string
	var positional []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--out" {
			if i+1 >= len(args) {
				fmt.Fprintln(stderr, "usage: fardreg get <runid> --out <file>")
				return ferr.ErrUsage.ExitCode()
			}
			out = args[i+1]
			i++
			continue
		}
		if args[i] == "--registry-dir" || args[i] == "--log-level" {
			i++
			continue
		}
		positional = append(positional, args[i])
	}
	if len(positional) != 1 || out == "" {
		fmt.Fprintln(stderr, "usage: fardreg get <runid> --out <file>")
		return ferr.ErrUsage.ExitCode()
	}
	data, err := store.Get(positional[0])
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitCodeOf(err)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		fmt.Fprintf(stderr, "error: writing %s: %v\n", out, err)
		return ferr.ErrInternal.ExitCode()
	}
	return 0
}

func stripFlags(args []string) []string {
	var out []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--registry-dir" || args[i] == "--log-level" {
			i++
			continue
		}
		out = append(out, args[i])
	}
	return out
}

func exitCodeOf(err error) int {
	if fe, ok := err.(*ferr.Error); ok {
		return fe.Class.ExitCode()
	}
	return ferr.ErrInternal.ExitCode()
}
