package cil

// This file implements §4.C: the three ECMA-335 I.8.7 type normal forms
// (reduced, verification, intermediate), stack-slot merge (the lattice
// join used at block-entry reconciliation), assignability, and the
// relaxed binary-comparability used by the equality/comparison opcodes.
//
// Grounded on core/vm/stack_validation.go's table-driven constraint
// style: a small set of pure functions over the opcode/type space
// rather than an object hierarchy, per §9 "Merge computation style".

// ReducedType applies the ECMA-335 reduction: Byte→SByte, UInt16→Int16,
// UInt32→Int32, UInt64→Int64, UIntPtr→IntPtr, enum→reduced(underlying);
// identity otherwise.
func ReducedType(ts TypeSystem, t TypeIdentity) TypeIdentity {
	if t == nil {
		return nil
	}
	switch ts.Kind(t) {
	case KindByte:
		return ts.WellKnown(WellKnownSByte)
	case KindUInt16:
		return ts.WellKnown(WellKnownInt16)
	case KindUInt32:
		return ts.WellKnown(WellKnownInt32)
	case KindUInt64:
		return ts.WellKnown(WellKnownInt64)
	case KindUIntPtr:
		return ts.WellKnown(WellKnownIntPtr)
	case KindEnum:
		return ReducedType(ts, ts.EnumUnderlying(t))
	default:
		return t
	}
}

// VerificationType applies §4.C's verification mapping: by-ref types
// recurse into their element; otherwise Bool→SByte, Char→Int16, else
// the reduced type. Bool/Char are matched against the *original* kind
// before ReducedType runs; since reduction (unsigned → signed) never
// produces or consumes Bool or Char, the order does not change the
// result (§9's open question).
func VerificationType(ts TypeSystem, t TypeIdentity) TypeIdentity {
	if t == nil {
		return nil
	}
	if ts.Kind(t) == KindByRefType {
		return VerificationType(ts, ts.ElementType(t)) // caller re-wraps as ByRef; see SlotForType
	}
	switch ts.Kind(t) {
	case KindBool:
		return ts.WellKnown(WellKnownSByte)
	case KindChar:
		return ts.WellKnown(WellKnownInt16)
	default:
		return ReducedType(ts, t)
	}
}

// IntermediateType applies §4.C's intermediate mapping on top of the
// verification type: {SByte,Int16,Int32}→Int32. Single and Double are
// returned as their own verification type and are not mapped to
// Double; both become the same Float slot kind in SlotForType.
func IntermediateType(ts TypeSystem, t TypeIdentity) TypeIdentity {
	v := VerificationType(ts, t)
	if v == nil {
		return nil
	}
	switch ts.Kind(v) {
	case KindSByte, KindInt16, KindInt32:
		return ts.WellKnown(WellKnownInt32)
	default:
		// Single/Double both collapse to the native float kind at the
		// Slot level (see SlotForType); no wellknown identity is needed
		// since kind, not type identity, carries that distinction here.
		return v
	}
}

// mergeObjectReferences implements §4.C rule 3: the MergeObjectReferences
// sub-algorithm for two non-null ObjRef slots of distinct types.
func mergeObjectReferences(ts TypeSystem, a, b TypeIdentity) TypeIdentity {
	if a == b {
		return a
	}

	aArr, bArr := ts.Kind(a) == KindArray, ts.Kind(b) == KindArray
	if aArr && bArr {
		if ts.ArrayRank(a) != ts.ArrayRank(b) {
			return ts.WellKnown(WellKnownArray)
		}
		if ts.IsSZArray(a) != ts.IsSZArray(b) && ts.ArrayRank(a) > 1 {
			return ts.WellKnown(WellKnownArray)
		}
		elem := mergeTypeIdentities(ts, ts.ElementType(a), ts.ElementType(b))
		if elem == nil {
			return ts.WellKnown(WellKnownArray)
		}
		// The merged array carries the merged element type; since this
		// core does not synthesize new array type identities, callers
		// needing the rebuilt array type must resolve it through the
		// oracle. Absent that capability we fall back to Array when the
		// element types differ, and to the shared identity when they
		// don't (common case: merging `T[]` with itself under different
		// paths already returned early above).
		if elem == ts.ElementType(a) && elem == ts.ElementType(b) {
			return a
		}
		return ts.WellKnown(WellKnownArray)
	}

	if ts.Kind(a) == KindGenericParameter {
		if ts.IsAssignableTo(b, a) {
			return a
		}
		return ts.WellKnown(WellKnownObject)
	}
	if ts.Kind(b) == KindGenericParameter {
		if ts.IsAssignableTo(a, b) {
			return b
		}
		return ts.WellKnown(WellKnownObject)
	}

	aIface, bIface := ts.Kind(a) == KindInterface, ts.Kind(b) == KindInterface
	if aIface && bIface {
		if shared := firstSharedInterface(ts, a, b); shared != nil {
			return shared
		}
		return ts.WellKnown(WellKnownObject)
	}
	if aIface != bIface {
		class, iface := a, b
		if aIface {
			class, iface = b, a
		}
		if classImplements(ts, class, iface) {
			return iface
		}
		if shared := firstSharedInterfaceClosure(ts, class, iface); shared != nil {
			return shared
		}
		return ts.WellKnown(WellKnownObject)
	}

	// class vs class: least common ancestor in the base-type chain.
	return leastCommonAncestor(ts, a, b)
}

func classImplements(ts TypeSystem, class, iface TypeIdentity) bool {
	for t := class; t != nil; t = ts.BaseType(t) {
		for _, i := range ts.Interfaces(t) {
			if i == iface {
				return true
			}
		}
	}
	return false
}

func interfaceClosure(ts TypeSystem, t TypeIdentity) []TypeIdentity {
	seen := map[TypeIdentity]bool{}
	var out []TypeIdentity
	var walk func(TypeIdentity)
	walk = func(x TypeIdentity) {
		for _, i := range ts.Interfaces(x) {
			if !seen[i] {
				seen[i] = true
				out = append(out, i)
				walk(i)
			}
		}
	}
	for x := t; x != nil; x = ts.BaseType(x) {
		walk(x)
	}
	if ts.Kind(t) == KindInterface {
		if !seen[t] {
			out = append([]TypeIdentity{t}, out...)
		}
		walk(t)
	}
	return out
}

func firstSharedInterface(ts TypeSystem, a, b TypeIdentity) TypeIdentity {
	closureB := interfaceClosure(ts, b)
	bSet := map[TypeIdentity]bool{b: true}
	for _, i := range closureB {
		bSet[i] = true
	}
	closureA := append([]TypeIdentity{a}, interfaceClosure(ts, a)...)
	for _, i := range closureA {
		if bSet[i] {
			return i
		}
	}
	return nil
}

func firstSharedInterfaceClosure(ts TypeSystem, class, iface TypeIdentity) TypeIdentity {
	classIfaces := interfaceClosure(ts, class)
	ifaceIfaces := append([]TypeIdentity{iface}, interfaceClosure(ts, iface)...)
	ifaceSet := map[TypeIdentity]bool{}
	for _, i := range ifaceIfaces {
		ifaceSet[i] = true
	}
	for _, i := range classIfaces {
		if ifaceSet[i] {
			return i
		}
	}
	return nil
}

func baseChain(ts TypeSystem, t TypeIdentity) []TypeIdentity {
	var chain []TypeIdentity
	for x := t; x != nil; x = ts.BaseType(x) {
		chain = append(chain, x)
	}
	return chain
}

func leastCommonAncestor(ts TypeSystem, a, b TypeIdentity) TypeIdentity {
	chainB := baseChain(ts, b)
	bSet := map[TypeIdentity]bool{}
	for _, t := range chainB {
		bSet[t] = true
	}
	for _, t := range baseChain(ts, a) {
		if bSet[t] {
			return t
		}
	}
	return ts.WellKnown(WellKnownObject)
}

// mergeTypeIdentities merges two raw type identities (used recursively
// for array element types), returning nil if they cannot be reconciled
// into a single identity without losing information.
func mergeTypeIdentities(ts TypeSystem, a, b TypeIdentity) TypeIdentity {
	if a == b {
		return a
	}
	return nil
}

// Merge computes the lattice join of two stack slots (§4.C). It returns
// the merged slot and true on success, or the zero Slot and false if
// the two slots do not merge (a verification failure at the caller).
func Merge(ts TypeSystem, a, b Slot) (Slot, bool) {
	// Rule 1: identical kind+type merge to themselves; read-only is sticky.
	if a.Kind == b.Kind && a.Type == b.Type && a.Method == b.Method {
		if a.Kind == KindByRef {
			return ByRefSlot(a.Type, a.ReadOnly || b.ReadOnly, a.PermanentHome && b.PermanentHome), true
		}
		return Slot{Kind: a.Kind, Type: a.Type, Method: a.Method}, true
	}

	// Rule 2: null ObjRef merges with any ObjRef.
	if a.Kind == KindObjRef && b.Kind == KindObjRef {
		if a.IsNullRef() {
			return b, true
		}
		if b.IsNullRef() {
			return a, true
		}
		merged := mergeObjectReferences(ts, a.Type, b.Type)
		return ObjRefSlot(merged), true
	}

	// Rule 4 (everything else): cross-kind merges fail, including
	// ByRef/ValueType/numeric mismatches, which the lattice treats as
	// verification failures rather than silently widening.
	return Slot{}, false
}

// AssignableTo reports whether src may be used wherever dst is expected
// (§4.C "Assignability", used at stores, returns, calls).
func AssignableTo(ts TypeSystem, src, dst Slot) bool {
	switch dst.Kind {
	case KindObjRef:
		if src.Kind != KindObjRef {
			return false
		}
		if src.IsNullRef() {
			return true
		}
		if dst.IsNullRef() {
			return false
		}
		return ts.IsAssignableTo(src.Type, dst.Type)
	case KindByRef:
		if src.Kind != KindByRef {
			return false
		}
		if src.Type == dst.Type {
			return true
		}
		return dst.ReadOnly && src.Type == dst.Type
	case KindInt32:
		return src.Kind == KindInt32
	case KindNativeInt:
		return src.Kind == KindNativeInt || src.Kind == KindInt32
	case KindInt64:
		return src.Kind == KindInt64
	case KindFloat:
		return src.Kind == KindFloat
	case KindStackValueType:
		if src.Kind != KindStackValueType {
			return false
		}
		if src.Type == dst.Type {
			return true
		}
		return ReducedType(ts, src.Type) == ReducedType(ts, dst.Type)
	default:
		return false
	}
}

// BinaryComparable reports whether a and b may be compared by the given
// opcode (beq/bne.un/ceq/cgt.un/etc, §4.C), a relaxation of
// AssignableTo that additionally allows the null-compare and native-int
// idioms the ECMA spec calls out.
func BinaryComparable(op OpCode, a, b Slot) bool {
	switch {
	case a.Kind == KindObjRef && b.Kind == KindObjRef:
		switch op {
		case Beq, BeqS, BneUn, BneUnS, Ceq, CgtUn:
			return true
		default:
			return false
		}
	case a.Kind == KindByRef && b.Kind == KindByRef:
		return true
	case a.Kind == KindByRef && b.Kind == KindNativeInt, a.Kind == KindNativeInt && b.Kind == KindByRef:
		return op == Ceq || op == Beq || op == BeqS || op == BneUn || op == BneUnS
	case a.Kind == KindNativeInt && b.Kind == KindInt32, a.Kind == KindInt32 && b.Kind == KindNativeInt:
		return true
	case a.Kind == b.Kind:
		return a.Kind == KindInt32 || a.Kind == KindInt64 || a.Kind == KindNativeInt || a.Kind == KindFloat
	default:
		return false
	}
}
