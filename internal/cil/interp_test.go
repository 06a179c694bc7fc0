package cil

import (
	"errors"
	"testing"
)

// fakeMethod is a minimal MethodIdentity for interpreter tests: just a
// comparable, named handle with no backing metadata.
type fakeMethod struct{ name string }

func (m *fakeMethod) String() string { return m.name }

// fakeBC is a minimal BytecodeService serving a single method body; the
// MethodIdentity argument is ignored since each test builds one method
// context at a time.
type fakeBC struct {
	il         []byte
	locals     []TypeIdentity
	regions    []RawExceptionRegion
	vararg     bool
	localsInit bool
}

func (b *fakeBC) ILBytes(MethodIdentity) []byte                        { return b.il }
func (b *fakeBC) Locals(MethodIdentity) []TypeIdentity                 { return b.locals }
func (b *fakeBC) ExceptionRegions(MethodIdentity) []RawExceptionRegion { return b.regions }
func (b *fakeBC) IsVararg(MethodIdentity) bool                         { return b.vararg }
func (b *fakeBC) LocalsInitialized(MethodIdentity) bool                { return b.localsInit }

var errResolverUnused = errors.New("interp_test: resolver should not be consulted")

// fakeResolver is a Resolver that is never expected to be called by the
// token-free programs these tests assemble.
type fakeResolver struct{}

func (fakeResolver) ResolveMethod(Token) (MethodIdentity, error) { return nil, errResolverUnused }
func (fakeResolver) ResolveField(Token) (FieldIdentity, error)   { return nil, errResolverUnused }
func (fakeResolver) ResolveType(Token) (TypeIdentity, error)     { return nil, errResolverUnused }
func (fakeResolver) ResolveSignature(Token) (Signature, error) {
	return Signature{}, errResolverUnused
}
func (fakeResolver) ResolveString(Token) error { return errResolverUnused }

// methodAttrs layers per-method IsStatic/ReturnType answers on top of
// fakeTS's fixed type hierarchy, the same override-by-embedding pattern
// as wellKnownOverride in lattice_test.go.
type methodAttrs struct {
	*fakeTS
	statics map[MethodIdentity]bool
	returns map[MethodIdentity]TypeIdentity
}

func (m *methodAttrs) IsStatic(method MethodIdentity) bool           { return m.statics[method] }
func (m *methodAttrs) ReturnType(method MethodIdentity) TypeIdentity { return m.returns[method] }

func newStaticVoidTS(method MethodIdentity) *methodAttrs {
	return &methodAttrs{
		fakeTS:  newFakeTS(),
		statics: map[MethodIdentity]bool{method: true},
		returns: map[MethodIdentity]TypeIdentity{method: nil},
	}
}

func TestVerifyTrivialStaticVoidOk(t *testing.T) {
	il, err := Assemble([]AsmInstr{{Mnemonic: "nop"}, {Mnemonic: "ret"}})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	method := &fakeMethod{name: "M"}
	ts := newStaticVoidTS(method)
	bc := &fakeBC{il: il, localsInit: true}

	if err := VerifyMethod(ts, bc, fakeResolver{}, method, ts.object, nil); err != nil {
		t.Fatalf("expected Ok, got %v", err)
	}
}

func TestVerifyStackUnderflowRejected(t *testing.T) {
	il, err := Assemble([]AsmInstr{{Mnemonic: "pop"}, {Mnemonic: "ret"}})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	method := &fakeMethod{name: "Bad"}
	ts := newStaticVoidTS(method)
	bc := &fakeBC{il: il, localsInit: true}

	err = VerifyMethod(ts, bc, fakeResolver{}, method, ts.object, nil)
	verr, ok := err.(*VerifierError)
	if !ok {
		t.Fatalf("expected *VerifierError, got %v (%T)", err, err)
	}
	if verr.Kind != ErrStackUnderflow {
		t.Fatalf("expected ErrStackUnderflow, got %v", verr.Kind)
	}
}

func TestVerifyMergeAtJoinPointOk(t *testing.T) {
	instrs := []AsmInstr{
		{Mnemonic: "ldc.i4.0"},
		{Mnemonic: "brfalse.s", BrLabel: "else"},
		{Mnemonic: "ldc.i4.1"},
		{Mnemonic: "br.s", BrLabel: "end"},
		{Label: "else", Mnemonic: "ldc.i4.2"},
		{Label: "end", Mnemonic: "pop"},
		{Mnemonic: "ret"},
	}
	il, err := Assemble(instrs)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	method := &fakeMethod{name: "Merge"}
	ts := newStaticVoidTS(method)
	bc := &fakeBC{il: il, localsInit: true}

	if err := VerifyMethod(ts, bc, fakeResolver{}, method, ts.object, nil); err != nil {
		t.Fatalf("expected the two Int32 branches to merge cleanly, got %v", err)
	}
}

func TestVerifyUninitializedLocalRejected(t *testing.T) {
	il, err := Assemble([]AsmInstr{{Mnemonic: "ldloc.0"}, {Mnemonic: "pop"}, {Mnemonic: "ret"}})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	method := &fakeMethod{name: "ReadsBeforeStore"}
	ts := newStaticVoidTS(method)
	int32Type := &fakeType{name: "Int32", kind: KindInt32}
	bc := &fakeBC{il: il, locals: []TypeIdentity{int32Type}, localsInit: false}

	err = VerifyMethod(ts, bc, fakeResolver{}, method, ts.object, nil)
	verr, ok := err.(*VerifierError)
	if !ok {
		t.Fatalf("expected *VerifierError, got %v (%T)", err, err)
	}
	if verr.Kind != ErrUninitStack {
		t.Fatalf("expected ErrUninitStack, got %v", verr.Kind)
	}
}

func TestVerifyUnalignedPrefixOnNonMemoryOpcodeRejected(t *testing.T) {
	il, err := Assemble([]AsmInstr{{Mnemonic: "unaligned.", IntImm: 1}, {Mnemonic: "add"}, {Mnemonic: "ret"}})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	method := &fakeMethod{name: "BadUnaligned"}
	ts := newStaticVoidTS(method)
	bc := &fakeBC{il: il, localsInit: true}

	err = VerifyMethod(ts, bc, fakeResolver{}, method, ts.object, nil)
	verr, ok := err.(*VerifierError)
	if !ok {
		t.Fatalf("expected *VerifierError, got %v (%T)", err, err)
	}
	if verr.Kind != ErrInvalidPrefix {
		t.Fatalf("expected ErrInvalidPrefix for unaligned. before a non-memory opcode, got %v", verr.Kind)
	}
}

func TestVerifyNoPrefixOnNonWhitelistedOpcodeRejected(t *testing.T) {
	il, err := Assemble([]AsmInstr{{Mnemonic: "no.", IntImm: 1}, {Mnemonic: "add"}, {Mnemonic: "ret"}})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	method := &fakeMethod{name: "BadNo"}
	ts := newStaticVoidTS(method)
	bc := &fakeBC{il: il, localsInit: true}

	err = VerifyMethod(ts, bc, fakeResolver{}, method, ts.object, nil)
	verr, ok := err.(*VerifierError)
	if !ok {
		t.Fatalf("expected *VerifierError, got %v (%T)", err, err)
	}
	if verr.Kind != ErrInvalidPrefix {
		t.Fatalf("expected ErrInvalidPrefix for no. before a non-whitelisted opcode, got %v", verr.Kind)
	}
}

func TestVerifyReadonlyPrefixOnNonLdelemaRejected(t *testing.T) {
	il, err := Assemble([]AsmInstr{{Mnemonic: "readonly."}, {Mnemonic: "ret"}})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	method := &fakeMethod{name: "BadReadonly"}
	ts := newStaticVoidTS(method)
	bc := &fakeBC{il: il, localsInit: true}

	err = VerifyMethod(ts, bc, fakeResolver{}, method, ts.object, nil)
	verr, ok := err.(*VerifierError)
	if !ok {
		t.Fatalf("expected *VerifierError, got %v (%T)", err, err)
	}
	if verr.Kind != ErrInvalidPrefix {
		t.Fatalf("expected ErrInvalidPrefix for readonly. before anything but ldelema, got %v", verr.Kind)
	}
}

func TestVerifyTailPrefixOnNonCallRejected(t *testing.T) {
	il, err := Assemble([]AsmInstr{{Mnemonic: "tail."}, {Mnemonic: "ret"}})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	method := &fakeMethod{name: "BadTail"}
	ts := newStaticVoidTS(method)
	bc := &fakeBC{il: il, localsInit: true}

	err = VerifyMethod(ts, bc, fakeResolver{}, method, ts.object, nil)
	verr, ok := err.(*VerifierError)
	if !ok {
		t.Fatalf("expected *VerifierError, got %v (%T)", err, err)
	}
	if verr.Kind != ErrInvalidPrefix {
		t.Fatalf("expected ErrInvalidPrefix for tail. before a non-call opcode, got %v", verr.Kind)
	}
}

// methodTokenResolver resolves a single method token to a fixed
// MethodIdentity; everything else is unreachable for these tests.
type methodTokenResolver struct {
	tok    Token
	method MethodIdentity
}

func (r methodTokenResolver) ResolveMethod(tok Token) (MethodIdentity, error) {
	if tok == r.tok {
		return r.method, nil
	}
	return nil, errResolverUnused
}
func (r methodTokenResolver) ResolveField(Token) (FieldIdentity, error) {
	return nil, errResolverUnused
}
func (r methodTokenResolver) ResolveType(Token) (TypeIdentity, error) { return nil, errResolverUnused }
func (r methodTokenResolver) ResolveSignature(Token) (Signature, error) {
	return Signature{}, errResolverUnused
}
func (r methodTokenResolver) ResolveString(Token) error { return errResolverUnused }

func TestVerifyTailCallReturnTypeMismatchRejected(t *testing.T) {
	caller := &fakeMethod{name: "Caller"}
	callee := &fakeMethod{name: "Callee"}
	base := newFakeTS()
	ts := &methodAttrs{
		fakeTS:  base,
		statics: map[MethodIdentity]bool{caller: true, callee: true},
		returns: map[MethodIdentity]TypeIdentity{caller: base.animal, callee: base.dog},
	}

	il, err := Assemble([]AsmInstr{
		{Mnemonic: "tail."}, {Mnemonic: "call", Tok: 1},
		{Mnemonic: "ret"},
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	bc := &fakeBC{il: il, localsInit: true}
	resolver := methodTokenResolver{tok: 1, method: callee}

	err = VerifyMethod(ts, bc, resolver, caller, ts.object, nil)
	verr, ok := err.(*VerifierError)
	if !ok {
		t.Fatalf("expected *VerifierError, got %v (%T)", err, err)
	}
	if verr.Kind != ErrStackUnexpected {
		t.Fatalf("expected ErrStackUnexpected for a tail call whose return type does not match the caller's, got %v", verr.Kind)
	}
}

func TestVerifyTailCallInsideTryRejected(t *testing.T) {
	caller := &fakeMethod{name: "CallerInTry"}
	callee := &fakeMethod{name: "CalleeInTry"}
	base := newFakeTS()
	ts := &methodAttrs{
		fakeTS:  base,
		statics: map[MethodIdentity]bool{caller: true, callee: true},
		returns: map[MethodIdentity]TypeIdentity{caller: nil, callee: nil},
	}

	instrs := []AsmInstr{
		{Label: "try", Mnemonic: "tail."},
		{Mnemonic: "call", Tok: 1},
		{Mnemonic: "ret"},
		{Label: "tryend", Mnemonic: "nop"},
		{Label: "handler", Mnemonic: "pop"},
		{Mnemonic: "leave.s", BrLabel: "end"},
		{Label: "end", Mnemonic: "ret"},
	}
	il, err := Assemble(instrs)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	labels, err := LabelOffsets(instrs)
	if err != nil {
		t.Fatalf("LabelOffsets: %v", err)
	}
	regions := []RawExceptionRegion{{
		Kind: RegionCatch, TryOffset: labels["try"], TryLength: labels["tryend"] - labels["try"],
		HandlerOffset: labels["handler"], HandlerLength: labels["end"] - labels["handler"],
		CaughtType: base.exception,
	}}
	bc := &fakeBC{il: il, localsInit: true, regions: regions}
	resolver := methodTokenResolver{tok: 1, method: callee}

	err = VerifyMethod(ts, bc, resolver, caller, ts.object, nil)
	verr, ok := err.(*VerifierError)
	if !ok {
		t.Fatalf("expected *VerifierError, got %v (%T)", err, err)
	}
	if verr.Kind != ErrInstructionCannotBeVerified {
		t.Fatalf("expected ErrInstructionCannotBeVerified for a tail call inside a protected try, got %v", verr.Kind)
	}
}

func TestVerifyCollectingReporterGathersAllErrors(t *testing.T) {
	il, err := Assemble([]AsmInstr{{Mnemonic: "pop"}, {Mnemonic: "pop"}, {Mnemonic: "ret"}})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	method := &fakeMethod{name: "DoubleUnderflow"}
	ts := newStaticVoidTS(method)
	bc := &fakeBC{il: il, localsInit: true}

	reporter := NewCollectingReporter()
	if err := VerifyMethod(ts, bc, fakeResolver{}, method, ts.object, reporter); err != nil {
		t.Fatalf("collecting reporter should never abort Verify, got %v", err)
	}
	if reporter.Empty() {
		t.Fatal("expected at least one collected error")
	}
	for _, e := range reporter.Errors() {
		if e.Kind != ErrStackUnderflow {
			t.Fatalf("expected only ErrStackUnderflow, got %v", e.Kind)
		}
	}
}
