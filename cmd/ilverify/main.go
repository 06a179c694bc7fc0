// Command ilverify is a diagnostic driver over JSON method fixtures
// (internal/fixture): it is not a metadata loader or a bytecode
// acquisition tool (§13 Non-goals) — it exists to run the verifier
// against a hand-authored fixture and print the result.
//
// Usage:
//
//	ilverify verify --fixture method.json [--collect-all] [--format text|json|color]
//	ilverify dump-cfg --fixture method.json
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args))
}

// run is the actual entry point, returning an exit code. It accepts the
// full os.Args slice (argv[0] included, as cli.App.Run expects) so it
// can be tested in isolation without touching the process exit path.
func run(args []string) int {
	app := &cli.App{
		Name:                 "ilverify",
		Usage:                "verify CIL method bodies against the ECMA-335 type-safety rules",
		Version:              fmt.Sprintf("%s (commit %s)", version, commit),
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			verifyCommand(),
			dumpCFGCommand(),
		},
		// The default ExitErrHandler calls os.Exit directly, which would
		// kill the test binary; resolve the exit code ourselves instead.
		ExitErrHandler: func(*cli.Context, error) {},
	}

	err := app.Run(args)
	if err == nil {
		return 0
	}
	if coder, ok := err.(cli.ExitCoder); ok {
		if msg := coder.Error(); msg != "" {
			fmt.Fprintf(os.Stderr, "ilverify: %s\n", msg)
		}
		return coder.ExitCode()
	}
	fmt.Fprintf(os.Stderr, "ilverify: %v\n", err)
	return 1
}
