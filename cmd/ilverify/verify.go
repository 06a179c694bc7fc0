package main

import (
	"github.com/urfave/cli/v2"

	"github.com/DouglasDwyer/JitIlVerification/internal/cil"
	"github.com/DouglasDwyer/JitIlVerification/internal/diag"
	"github.com/DouglasDwyer/JitIlVerification/internal/fixture"
)

func verifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "run the abstract interpreter over a fixture's method under test",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "fixture", Required: true, Usage: "path to a fixture JSON document"},
			&cli.BoolFlag{Name: "collect-all", Usage: "report every diagnostic instead of stopping at the first"},
			&cli.StringFlag{Name: "format", Value: "text", Usage: "output format: text, json, color"},
		},
		Action: runVerify,
	}
}

func runVerify(c *cli.Context) error {
	log := diag.Default().Module("verify")

	u, err := fixture.Load(c.String("fixture"))
	if err != nil {
		log.Error("failed to load fixture", "error", err)
		return cli.Exit(err, 2)
	}
	log.Info("fixture loaded", "method", u.Method.String())

	var findings []diag.Finding
	var verifyErr error

	if c.Bool("collect-all") {
		reporter := cil.NewCollectingReporter()
		verifyErr = cil.VerifyMethod(u, u, u, u.Method, u.DeclaringType, reporter)
		for _, e := range reporter.Errors() {
			findings = append(findings, toFinding(e))
		}
	} else {
		reporter := cil.NewFailFastReporter()
		verifyErr = cil.VerifyMethod(u, u, u, u.Method, u.DeclaringType, reporter)
		// An unreachable-block report is informational and does not make
		// Verify return an error, so it is not shown in fail-fast mode.
		if reporter.First != nil && reporter.First.Kind != cil.ErrUnreachableBlock {
			findings = append(findings, toFinding(reporter.First))
		}
	}
	if verifyErr != nil && len(findings) == 0 {
		// A construction-time failure (malformed region table or CFG)
		// never reached the reporter, but is still worth printing.
		findings = append(findings, diag.Finding{Severity: diag.SeverityReject, Detail: verifyErr.Error()})
	}

	formatter := diag.FormatterForName(c.String("format"))
	c.App.Writer.Write([]byte(formatter.Format(u.Method.String(), findings) + "\n"))

	for _, f := range findings {
		if f.Severity == diag.SeverityReject {
			return cli.Exit("", 1)
		}
	}
	return nil
}

func toFinding(e *cil.VerifierError) diag.Finding {
	sev := diag.SeverityReject
	if e.Kind == cil.ErrUnreachableBlock {
		sev = diag.SeverityInfo
	}
	detail := ""
	if len(e.Args) > 0 {
		detail = e.Error()
	}
	return diag.Finding{
		Severity: sev,
		Offset:   e.Offset,
		Kind:     e.Kind.String(),
		Detail:   detail,
	}
}
