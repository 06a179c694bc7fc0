package cil_test

// End-to-end scenarios over hand-authored fixture documents (internal/cil/testdata),
// driven through the same three-collaborator entry point cmd/ilverify uses.
// Lives as an external (_test) package because the fixture package itself
// imports internal/cil — a package-internal test file here could not import
// it without an illegal cycle.

import (
	"testing"

	"github.com/DouglasDwyer/JitIlVerification/internal/cil"
	"github.com/DouglasDwyer/JitIlVerification/internal/fixture"
)

func loadAndVerify(t *testing.T, path string) error {
	t.Helper()
	u, err := fixture.Load(path)
	if err != nil {
		t.Fatalf("fixture.Load(%s): %v", path, err)
	}
	return cil.VerifyMethod(u, u, u, u.Method, u.DeclaringType, nil)
}

func TestScenarioTrivialReturnOk(t *testing.T) {
	if err := loadAndVerify(t, "testdata/trivial_return.json"); err != nil {
		t.Fatalf("expected Ok, got %v", err)
	}
}

func TestScenarioStackUnderflowRejected(t *testing.T) {
	err := loadAndVerify(t, "testdata/stack_underflow.json")
	verr, ok := err.(*cil.VerifierError)
	if !ok {
		t.Fatalf("expected *VerifierError, got %v (%T)", err, err)
	}
	if verr.Kind != cil.ErrStackUnderflow {
		t.Fatalf("expected ErrStackUnderflow, got %v", verr.Kind)
	}
}

func TestScenarioKindMismatchRejected(t *testing.T) {
	err := loadAndVerify(t, "testdata/kind_mismatch.json")
	verr, ok := err.(*cil.VerifierError)
	if !ok {
		t.Fatalf("expected *VerifierError, got %v (%T)", err, err)
	}
	if verr.Kind != cil.ErrExpectedNumericType {
		t.Fatalf("expected ErrExpectedNumericType, got %v", verr.Kind)
	}
}

func TestScenarioMergeToCommonBaseOk(t *testing.T) {
	if err := loadAndVerify(t, "testdata/merge_to_common_base.json"); err != nil {
		t.Fatalf("expected Dog/Cat to merge to Animal cleanly, got %v", err)
	}
}

func TestScenarioLeaveDoesNotEscapeTryRejected(t *testing.T) {
	err := loadAndVerify(t, "testdata/leave_does_not_escape_try.json")
	verr, ok := err.(*cil.VerifierError)
	if !ok {
		t.Fatalf("expected *VerifierError, got %v (%T)", err, err)
	}
	if verr.Kind != cil.ErrLeave {
		t.Fatalf("expected ErrLeave (a leave must actually escape its try), got %v", verr.Kind)
	}
}

func TestScenarioFieldVisibilityViolationRejected(t *testing.T) {
	err := loadAndVerify(t, "testdata/field_visibility_violation.json")
	verr, ok := err.(*cil.VerifierError)
	if !ok {
		t.Fatalf("expected *VerifierError, got %v (%T)", err, err)
	}
	if verr.Kind != cil.ErrFieldAccess {
		t.Fatalf("expected ErrFieldAccess for a private field touched from an unrelated type, got %v", verr.Kind)
	}
}

func TestScenarioMethodVisibilityViolationRejected(t *testing.T) {
	err := loadAndVerify(t, "testdata/method_visibility_violation.json")
	verr, ok := err.(*cil.VerifierError)
	if !ok {
		t.Fatalf("expected *VerifierError, got %v (%T)", err, err)
	}
	if verr.Kind != cil.ErrMethodAccess {
		t.Fatalf("expected ErrMethodAccess for a private method called from an unrelated type, got %v", verr.Kind)
	}
}

func TestScenarioIllegalLeaveTargetRejected(t *testing.T) {
	err := loadAndVerify(t, "testdata/illegal_leave_target.json")
	verr, ok := err.(*cil.VerifierError)
	if !ok {
		t.Fatalf("expected *VerifierError, got %v (%T)", err, err)
	}
	if verr.Kind != cil.ErrBranchOutOfTry {
		t.Fatalf("expected ErrBranchOutOfTry, got %v", verr.Kind)
	}
}
