package cil

import (
	"fmt"
	"sort"

	"github.com/cockroachdb/errors"
)

// ErrorKind is one member of the closed verifier error enumeration of
// §4.G / §7. It is never extended at runtime — every failure the core
// can detect maps to exactly one kind.
type ErrorKind int

const (
	// Structural (§7.1): bytecode reader, block discovery, prefix misuse.
	ErrEndOfMethodInsideInstruction ErrorKind = iota
	ErrInvalidOpcode
	ErrInvalidBranchTarget
	ErrInvalidPrefix
	ErrPrefixConsecutive
	ErrFallthroughAtEndOfMethod
	ErrMidInstructionBlock

	// Stack (§7.2): underflow, overflow, kind mismatch, merge failure.
	ErrStackUnderflow
	ErrStackOverflow
	ErrStackUnexpected
	ErrMergeFailure
	ErrUninitStack
	ErrExpectedNumericType
	ErrExpectedIntegerType
	ErrExpectedByRef
	ErrExpectedObjRef
	ErrExpectedValueType

	// Semantic (§7.3): visibility, abstractness, non-verifiable opcode usage.
	ErrMethodAccess
	ErrFieldAccess
	ErrInstructionCannotBeVerified
	ErrAbstractInstantiation
	ErrTailCallNotFollowedByRet
	ErrConservativeReject

	// Region (§7.4): bad try/handler nesting, illegal leave, orphan handlers.
	ErrBranchOutOfTry
	ErrLeave
	ErrRethrow
	ErrEndFilter
	ErrEndFinally
	ErrInvalidRegionNesting

	// Informative (§12 supplement): never rejects a method on its own.
	ErrUnreachableBlock
)

var errorKindNames = map[ErrorKind]string{
	ErrEndOfMethodInsideInstruction: "EndOfMethodInsideInstruction",
	ErrInvalidOpcode:                "InvalidOpcode",
	ErrInvalidBranchTarget:          "InvalidBranchTarget",
	ErrInvalidPrefix:                "InvalidPrefix",
	ErrPrefixConsecutive:            "PrefixConsecutive",
	ErrFallthroughAtEndOfMethod:     "FallthroughAtEndOfMethod",
	ErrMidInstructionBlock:          "MidInstructionBlock",
	ErrStackUnderflow:               "StackUnderflow",
	ErrStackOverflow:                "StackOverflow",
	ErrStackUnexpected:              "StackUnexpected",
	ErrMergeFailure:                 "MergeFailure",
	ErrUninitStack:                  "UninitStack",
	ErrExpectedNumericType:          "ExpectedNumericType",
	ErrExpectedIntegerType:          "ExpectedIntegerType",
	ErrExpectedByRef:                "ExpectedByRef",
	ErrExpectedObjRef:               "ExpectedObjRef",
	ErrExpectedValueType:            "ExpectedValueType",
	ErrMethodAccess:                 "MethodAccess",
	ErrFieldAccess:                  "FieldAccess",
	ErrInstructionCannotBeVerified:  "InstructionCannotBeVerified",
	ErrAbstractInstantiation:        "AbstractInstantiation",
	ErrTailCallNotFollowedByRet:     "TailCallNotFollowedByRet",
	ErrConservativeReject:           "ConservativeReject",
	ErrBranchOutOfTry:               "BranchOutOfTry",
	ErrLeave:                        "Leave",
	ErrRethrow:                      "Rethrow",
	ErrEndFilter:                    "EndFilter",
	ErrEndFinally:                   "EndFinally",
	ErrInvalidRegionNesting:         "InvalidRegionNesting",
	ErrUnreachableBlock:             "UnreachableBlock",
}

func (k ErrorKind) String() string {
	if s, ok := errorKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// kindSentinel is a package-level sentinel per kind, used only as an
// errors.Is() match target — never returned directly.
var kindSentinel = func() map[ErrorKind]error {
	m := make(map[ErrorKind]error, len(errorKindNames))
	for k, name := range errorKindNames {
		m[k] = errors.New("cil: " + name)
	}
	return m
}()

// VerifierError is a single verifier diagnostic: its kind, the IL
// offset at which it was detected, and an ordered argument list
// (offsets, type identities, method identities, expected-vs-actual
// pairs — §4.G) suitable for host-side stringification.
type VerifierError struct {
	Kind   ErrorKind
	Offset int
	Args   []any
	cause  error
}

// Error renders a VerifierError as "<Kind> at offset <n>: <args...>".
func (e *VerifierError) Error() string {
	if len(e.Args) == 0 {
		return fmt.Sprintf("%s at offset 0x%x", e.Kind, e.Offset)
	}
	return fmt.Sprintf("%s at offset 0x%x: %v", e.Kind, e.Offset, e.Args)
}

// Unwrap exposes the kind sentinel so errors.Is(err, someKindSentinel)
// and the package-level Is helper both work.
func (e *VerifierError) Unwrap() error { return e.cause }

// Is reports whether target is the sentinel for e's kind, letting
// callers write errors.Is(err, cil.KindSentinel(cil.ErrStackUnderflow)).
func (e *VerifierError) Is(target error) bool {
	return errors.Is(e.cause, target)
}

// KindSentinel returns the comparable sentinel error for a kind, for use
// with errors.Is.
func KindSentinel(k ErrorKind) error { return kindSentinel[k] }

// newVerifierError builds a VerifierError wrapping the kind's sentinel
// via cockroachdb/errors, attaching args as safe structured details so
// they survive redaction when logged by a host that scrubs PII.
func newVerifierError(kind ErrorKind, offset int, args ...any) *VerifierError {
	cause := errors.WithSafeDetails(kindSentinel[kind], "%s", kind.String())
	return &VerifierError{Kind: kind, Offset: offset, Args: args, cause: cause}
}

func newStructuralError(kind ErrorKind, offset int) *VerifierError {
	return newVerifierError(kind, offset)
}

func newStructuralErrorArgs(kind ErrorKind, offset int, args ...any) *VerifierError {
	return newVerifierError(kind, offset, args...)
}

// Reporter receives every verifier error the abstract interpreter
// detects. §4.G / §7: the default policy is fail-fast (abort the
// worklist on the first error); a diagnostic tool mode collects all of
// them instead.
type Reporter interface {
	// Report records a single diagnostic. It returns an error to abort
	// the verification pass immediately (fail-fast reporters always do
	// this); a nil return lets the worklist keep draining.
	Report(err *VerifierError) error
}

// FailFastReporter aborts verification at the first error, returning it
// as-is. It is the default reporter for the runtime integration (§4.G).
type FailFastReporter struct {
	First *VerifierError
}

// NewFailFastReporter returns a reporter that stops at the first error.
func NewFailFastReporter() *FailFastReporter { return &FailFastReporter{} }

func (r *FailFastReporter) Report(err *VerifierError) error {
	if r.First == nil {
		r.First = err
	}
	return err
}

// CollectingReporter records every error without aborting. Used by
// diagnostic tooling (§4.G "collect-all" policy). Errors() returns them
// sorted by (offset, kind) for deterministic output (§12 supplement).
type CollectingReporter struct {
	errs []*VerifierError
}

// NewCollectingReporter returns a reporter that never aborts the worklist.
func NewCollectingReporter() *CollectingReporter { return &CollectingReporter{} }

func (r *CollectingReporter) Report(err *VerifierError) error {
	r.errs = append(r.errs, err)
	return nil
}

// Errors returns all recorded diagnostics sorted by (offset, kind).
func (r *CollectingReporter) Errors() []*VerifierError {
	out := make([]*VerifierError, len(r.errs))
	copy(out, r.errs)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Offset != out[j].Offset {
			return out[i].Offset < out[j].Offset
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// Empty reports whether no errors were recorded (method verified).
func (r *CollectingReporter) Empty() bool { return len(r.errs) == 0 }
