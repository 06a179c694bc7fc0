package cil

// This file specifies the two external collaborators the verifier
// consumes (§6): the type-system oracle and the bytecode service. Per
// §1, their *implementations* are out of scope — the core depends only
// on these interfaces, the same way the teacher's core/vm.EVM depends
// on a StateDB interface rather than a concrete state-trie
// implementation (core/vm/interpreter.go).

// TypeIdentity names a type as the oracle understands it. Concrete
// implementations must be comparable (pointers or value types usable
// with ==), since the verifier compares slot type identities directly.
type TypeIdentity interface {
	// String renders a diagnostic-friendly type name.
	String() string
}

// MethodIdentity names a method (possibly a generic instantiation) as
// the oracle understands it. Concrete implementations must be comparable.
type MethodIdentity interface {
	String() string
}

// FieldIdentity names a field as the oracle understands it. Concrete
// implementations must be comparable.
type FieldIdentity interface {
	String() string
}

// TypeKind is the oracle's classification of a type (§6).
type TypeKind int

const (
	KindBool TypeKind = iota
	KindChar
	KindSByte
	KindByte
	KindInt16
	KindUInt16
	KindInt32
	KindUInt32
	KindInt64
	KindUInt64
	KindIntPtr
	KindUIntPtr
	KindSingle
	KindDouble
	KindEnum
	KindPointer
	KindFunctionPointer
	KindByRefType
	KindArray
	KindClass
	KindInterface
	KindValueType
	KindGenericParameter
	KindObject
	KindString
)

// Visibility is the accessibility of a method or field, coarse enough
// for the verifier's access checks (§4.E "Object model", §7.3).
type Visibility int

const (
	VisibilityPublic Visibility = iota
	VisibilityFamily            // protected
	VisibilityAssembly          // internal
	VisibilityFamilyOrAssembly
	VisibilityFamilyAndAssembly
	VisibilityPrivate
)

// WellKnownName identifies one of the handful of framework types the
// verifier must be able to name directly (e.g. to seed a filter
// handler's entry stack with the exception base type) (§6 wellKnown).
type WellKnownName int

const (
	WellKnownSByte WellKnownName = iota
	WellKnownInt16
	WellKnownInt32
	WellKnownInt64
	WellKnownIntPtr
	WellKnownObject
	WellKnownArray
	WellKnownString
	WellKnownException // exception base type, used to seed filter handlers
)

// TypeSystem is the reflective oracle the verifier queries (§6). It
// answers questions from metadata alone — no runtime/JIT-only
// capability is required, so both an offline (disk metadata) and an
// online (live runtime) backend can implement it.
type TypeSystem interface {
	Kind(t TypeIdentity) TypeKind
	ElementType(t TypeIdentity) TypeIdentity // array/by-ref/pointer element
	ArrayRank(t TypeIdentity) int
	IsSZArray(t TypeIdentity) bool
	EnumUnderlying(t TypeIdentity) TypeIdentity

	BaseType(t TypeIdentity) TypeIdentity    // nil at the top of the chain
	Interfaces(t TypeIdentity) []TypeIdentity // direct, not transitive
	IsAssignableTo(src, dst TypeIdentity) bool // full transitive assignability

	WellKnown(name WellKnownName) TypeIdentity

	Parameters(m MethodIdentity) []TypeIdentity // excludes implicit `this`
	ReturnType(m MethodIdentity) TypeIdentity   // nil for void
	IsStatic(m MethodIdentity) bool
	DeclaringType(m MethodIdentity) TypeIdentity
	IsAbstract(m MethodIdentity) bool
	IsVirtual(m MethodIdentity) bool
	MethodVisibility(m MethodIdentity) Visibility

	FieldType(f FieldIdentity) TypeIdentity
	IsStaticField(f FieldIdentity) bool
	DeclaringTypeOfField(f FieldIdentity) TypeIdentity
	FieldVisibility(f FieldIdentity) Visibility
}

// ExceptionRegionKind is the kind of a protected region (§3, §4.F).
type ExceptionRegionKind int

const (
	RegionCatch ExceptionRegionKind = iota
	RegionFilter
	RegionFinally
	RegionFault
)

// RawExceptionRegion is one exception-handling region exactly as the
// bytecode service reports it (§3): offsets/lengths in IL bytes, plus
// the caught type for `catch` regions.
type RawExceptionRegion struct {
	Kind          ExceptionRegionKind
	TryOffset     int
	TryLength     int
	HandlerOffset int
	HandlerLength int
	FilterOffset  int          // only meaningful when Kind == RegionFilter
	CaughtType    TypeIdentity // only meaningful when Kind == RegionCatch
}

// Signature is the resolved shape of a `calli` call site: the argument
// types in call order (excluding an implicit `this`, since calli never
// has one) and whether it expects an instance receiver on the stack
// underneath the arguments.
type Signature struct {
	HasThis    bool
	Parameters []TypeIdentity
	ReturnType TypeIdentity // nil for void
}

// Resolver maps the raw metadata tokens embedded in the IL stream to
// the identities the verifier reasons about (§6). Like TypeSystem and
// BytecodeService, Resolver is a pure oracle over static metadata — no
// implementation ships with this package.
type Resolver interface {
	ResolveMethod(tok Token) (MethodIdentity, error)
	ResolveField(tok Token) (FieldIdentity, error)
	ResolveType(tok Token) (TypeIdentity, error)
	ResolveSignature(tok Token) (Signature, error) // calli call-site signature
	ResolveString(tok Token) error                 // validates the token names a user string
}

// BytecodeService provides the raw material for one method body (§6):
// the IL byte stream, its local-variable types, its exception regions,
// and whether it accepts a variable argument list.
type BytecodeService interface {
	ILBytes(m MethodIdentity) []byte
	Locals(m MethodIdentity) []TypeIdentity
	ExceptionRegions(m MethodIdentity) []RawExceptionRegion
	IsVararg(m MethodIdentity) bool

	// LocalsInitialized reports the method header's init-locals flag. If
	// false, every local starts definitely-unassigned and reading one
	// before a store on every predecessor path is ErrUninitStack (§4.E).
	LocalsInitialized(m MethodIdentity) bool
}
