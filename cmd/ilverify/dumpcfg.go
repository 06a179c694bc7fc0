package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/DouglasDwyer/JitIlVerification/internal/cil"
	"github.com/DouglasDwyer/JitIlVerification/internal/diag"
	"github.com/DouglasDwyer/JitIlVerification/internal/fixture"
)

func dumpCFGCommand() *cli.Command {
	return &cli.Command{
		Name:  "dump-cfg",
		Usage: "print the discovered basic-block graph for a fixture's method, without running the dataflow pass",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "fixture", Required: true, Usage: "path to a fixture JSON document"},
		},
		Action: runDumpCFG,
	}
}

func runDumpCFG(c *cli.Context) error {
	log := diag.Default().Module("dump-cfg")

	u, err := fixture.Load(c.String("fixture"))
	if err != nil {
		log.Error("failed to load fixture", "error", err)
		return cli.Exit(err, 2)
	}

	regions, err := cil.BuildRegionTable(u.ExceptionRegions(u.Method))
	if err != nil {
		return cli.Exit(err, 1)
	}
	graph, err := cil.BuildCFG(u.ILBytes(u.Method), regions)
	if err != nil {
		return cli.Exit(err, 1)
	}

	fmt.Fprintf(c.App.Writer, "method %s: %d block(s)\n", u.Method.String(), len(graph.Order))
	for _, start := range graph.Order {
		blk := graph.Blocks[start]
		fmt.Fprintf(c.App.Writer, "  block 0x%x-0x%x", blk.Start, blk.End)
		if blk.TryStart {
			fmt.Fprint(c.App.Writer, " [try]")
		}
		if blk.HandlerStart {
			fmt.Fprint(c.App.Writer, " [handler]")
		}
		if blk.FilterStart {
			fmt.Fprint(c.App.Writer, " [filter]")
		}
		fmt.Fprintf(c.App.Writer, " -> %v\n", hexOffsets(blk.Successors))
	}
	return nil
}

func hexOffsets(offs []int) []string {
	out := make([]string, len(offs))
	for i, o := range offs {
		out[i] = fmt.Sprintf("0x%x", o)
	}
	return out
}
