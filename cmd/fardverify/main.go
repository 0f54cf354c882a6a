// Command fardverify re-checks an already-produced run/bundle output
// directory against one of three verification kinds, writing
// PASS_<KIND>.txt or FAIL_<KIND>.txt into that directory and an ERROR_*
// line to stderr on failure.
//
// Usage:
//
//	fardverify <trace|artifact|bundle> --out <dir>
//
// Exit codes:
//
//	0  PASS
//	2  FAIL (verification ran, found a defect)
//	10 internal error (could not run verification at all)
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mauludsadiq/fard/internal/ferr"
	"github.com/mauludsadiq/fard/internal/verify"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "usage: fardverify <trace|artifact|bundle> --out <dir>")
		return ferr.ErrUsage.ExitCode()
	}
	kind := verify.Kind(args[0])
	if kind != verify.KindTrace && kind != verify.KindArtifact && kind != verify.KindBundle {
		fmt.Fprintf(stderr, "error: unknown verification kind %q\n", args[0])
		return ferr.ErrUsage.ExitCode()
	}

	dir, err := parseOutFlag(args[1:])
	if err != nil {
		fmt.Fprintf(stderr, "usage: fardverify %s --out <dir>\n%v\n", kind, err)
		return ferr.ErrUsage.ExitCode()
	}

	var result *verify.Result
	switch kind {
	case verify.KindTrace:
		result, err = verify.VerifyTrace(dir)
	case verify.KindArtifact:
		result, err = verify.VerifyArtifact(dir)
	case verify.KindBundle:
		result, err = verify.VerifyBundle(dir)
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return ferr.ErrInternal.ExitCode()
	}

	if err := verify.WriteResult(dir, result); err != nil {
		fmt.Fprintf(stderr, "error: writing result marker: %v\n", err)
		return ferr.ErrInternal.ExitCode()
	}

	if !result.OK {
		fmt.Fprintf(stderr, "%s\n", result.Code)
		return ferr.ErrBadBundle.ExitCode()
	}
	return 0
}

func parseOutFlag(args []string) (string, error) {
	for i := 0; i < len(args); i++ {
		if args[i] == "--out" {
			if i+1 >= len(args) {
				return "", fmt.Errorf("--out requires a value")
			}
			return args[i+1], nil
		}
	}
	return "", fmt.Errorf("--out is required")
}
