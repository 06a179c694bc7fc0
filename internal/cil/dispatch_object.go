package cil

// Object-model and field handlers (§4.E "Object model", "Fields").

func popCallArgs(mc *MethodContext, in Instruction, st EvalStack, m MethodIdentity, virtualCall bool, pfx *prefixState) (EvalStack, error) {
	params := mc.TS.Parameters(m)
	rest, args, err := st.PopN(in.Offset, len(params))
	if err != nil {
		return nil, err
	}
	for i, p := range params {
		if !AssignableTo(mc.TS, args[i], SlotForType(mc.TS, p)) {
			return nil, newStructuralErrorArgs(ErrStackUnexpected, in.Offset, i)
		}
	}

	if mc.TS.IsStatic(m) {
		return rest, nil
	}

	declType := mc.TS.DeclaringType(m)
	rest, this, err := rest.Pop(in.Offset)
	if err != nil {
		return nil, err
	}

	// Open question (generic parameter as `this`, §9): an unconstrained
	// call through a ByRef to a generic parameter is rejected outright.
	if this.Kind == KindByRef && mc.TS.Kind(this.Type) == KindGenericParameter && !pfx.hasConstrained {
		return nil, newStructuralError(ErrConservativeReject, in.Offset)
	}
	if !thisAssignable(mc.TS, this, declType, virtualCall, pfx) {
		return nil, newStructuralError(ErrExpectedObjRef, in.Offset)
	}
	if !mc.TS.IsVirtual(m) && virtualCall && !pfx.hasConstrained && mc.TS.Kind(declType) != KindClass && mc.TS.Kind(declType) != KindInterface {
		return nil, newStructuralError(ErrConservativeReject, in.Offset)
	}

	return rest, nil
}

// accessibleFrom reports whether a member declared on declType with the
// given visibility can be touched by code declared on callerType (§4.E
// "Object model", §7.3). The oracle has no notion of assembly identity
// (every fixture universe is implicitly one assembly), so Assembly and
// FamilyOrAssembly degrade to the assembly half being trivially
// satisfied; FamilyAndAssembly degrades to the family check alone.
func accessibleFrom(ts TypeSystem, callerType, declType TypeIdentity, vis Visibility) bool {
	switch vis {
	case VisibilityPublic, VisibilityAssembly, VisibilityFamilyOrAssembly:
		return true
	case VisibilityPrivate:
		return callerType == declType
	default: // VisibilityFamily, VisibilityFamilyAndAssembly
		return callerType == declType || ts.IsAssignableTo(callerType, declType)
	}
}

// thisAssignable checks the popped `this` slot against the method's
// declaring type, honoring an active `constrained.T` prefix: per §4.E,
// the prefix rewrites the requirement from an ObjRef/value-type ByRef
// to a ByRef of T regardless of what callvirt's own declaring type is.
func thisAssignable(ts TypeSystem, this Slot, declType TypeIdentity, virtualCall bool, pfx *prefixState) bool {
	if virtualCall && pfx.hasConstrained {
		return this.Kind == KindByRef && (this.Type == pfx.constrained || ts.IsAssignableTo(this.Type, pfx.constrained))
	}
	switch this.Kind {
	case KindObjRef:
		return this.IsNullRef() || ts.IsAssignableTo(this.Type, declType)
	case KindByRef:
		return this.Type == declType || ts.IsAssignableTo(this.Type, declType)
	default:
		return false
	}
}

func callCommon(mc *MethodContext, in Instruction, st EvalStack, virtualCall bool, pfx *prefixState) (EvalStack, error) {
	if pfx.hasConstrained && !virtualCall {
		return nil, newStructuralError(ErrInvalidPrefix, in.Offset)
	}
	m, err := mc.Resolver.ResolveMethod(in.Tok)
	if err != nil {
		return nil, newStructuralErrorArgs(ErrInstructionCannotBeVerified, in.Offset, err)
	}
	if !accessibleFrom(mc.TS, mc.DeclaringType, mc.TS.DeclaringType(m), mc.TS.MethodVisibility(m)) {
		return nil, newStructuralError(ErrMethodAccess, in.Offset)
	}
	rest, err := popCallArgs(mc, in, st, m, virtualCall, pfx)
	if err != nil {
		return nil, err
	}
	ret := mc.TS.ReturnType(m)
	if ret == nil {
		return rest, nil
	}
	return rest.Push(SlotForType(mc.TS, ret)), nil
}

func opCall(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	return callCommon(mc, in, st, false, pfx)
}

func opCallvirt(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	return callCommon(mc, in, st, true, pfx)
}

func opCalli(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	sig, err := mc.Resolver.ResolveSignature(in.Tok)
	if err != nil {
		return nil, newStructuralErrorArgs(ErrInstructionCannotBeVerified, in.Offset, err)
	}
	rest, fn, err := st.Pop(in.Offset)
	if err != nil {
		return nil, err
	}
	if fn.Kind != KindNativeInt {
		return nil, newStructuralError(ErrExpectedByRef, in.Offset)
	}
	rest, args, err := rest.PopN(in.Offset, len(sig.Parameters))
	if err != nil {
		return nil, err
	}
	for i, p := range sig.Parameters {
		if !AssignableTo(mc.TS, args[i], SlotForType(mc.TS, p)) {
			return nil, newStructuralErrorArgs(ErrStackUnexpected, in.Offset, i)
		}
	}
	if sig.HasThis {
		rest2, _, err := rest.Pop(in.Offset)
		if err != nil {
			return nil, err
		}
		rest = rest2
	}
	if sig.ReturnType == nil {
		return rest, nil
	}
	return rest.Push(SlotForType(mc.TS, sig.ReturnType)), nil
}

func opNewobj(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	m, err := mc.Resolver.ResolveMethod(in.Tok)
	if err != nil {
		return nil, newStructuralErrorArgs(ErrInstructionCannotBeVerified, in.Offset, err)
	}
	declType := mc.TS.DeclaringType(m)
	if mc.TS.IsAbstract(declType) {
		return nil, newStructuralError(ErrAbstractInstantiation, in.Offset)
	}
	if !accessibleFrom(mc.TS, mc.DeclaringType, declType, mc.TS.MethodVisibility(m)) {
		return nil, newStructuralError(ErrMethodAccess, in.Offset)
	}
	params := mc.TS.Parameters(m)
	rest, args, err := st.PopN(in.Offset, len(params))
	if err != nil {
		return nil, err
	}
	for i, p := range params {
		if !AssignableTo(mc.TS, args[i], SlotForType(mc.TS, p)) {
			return nil, newStructuralErrorArgs(ErrStackUnexpected, in.Offset, i)
		}
	}
	if mc.TS.Kind(declType) == KindValueType {
		return rest.Push(ValueTypeSlot(declType)), nil
	}
	return rest.Push(ObjRefSlot(declType)), nil
}

func opRet(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	ret := mc.TS.ReturnType(mc.Method)
	if ret == nil {
		if len(st) != 0 {
			return nil, newStructuralError(ErrStackUnexpected, in.Offset)
		}
		return st, nil
	}
	rest, v, err := st.Pop(in.Offset)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, newStructuralError(ErrStackUnexpected, in.Offset)
	}
	if !AssignableTo(mc.TS, v, SlotForType(mc.TS, ret)) {
		return nil, newStructuralError(ErrStackUnexpected, in.Offset)
	}
	return rest, nil
}

func opJmp(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	if len(st) != 0 {
		return nil, newStructuralError(ErrStackUnexpected, in.Offset)
	}
	if _, err := mc.Resolver.ResolveMethod(in.Tok); err != nil {
		return nil, newStructuralErrorArgs(ErrInstructionCannotBeVerified, in.Offset, err)
	}
	return st, nil
}

func opLdfld(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	f, err := mc.Resolver.ResolveField(in.Tok)
	if err != nil {
		return nil, newStructuralErrorArgs(ErrFieldAccess, in.Offset, err)
	}
	if mc.TS.IsStaticField(f) {
		return nil, newStructuralError(ErrFieldAccess, in.Offset)
	}
	if !accessibleFrom(mc.TS, mc.DeclaringType, mc.TS.DeclaringTypeOfField(f), mc.TS.FieldVisibility(f)) {
		return nil, newStructuralError(ErrFieldAccess, in.Offset)
	}
	rest, this, err := st.Pop(in.Offset)
	if err != nil {
		return nil, err
	}
	if !thisAssignable(mc.TS, this, mc.TS.DeclaringTypeOfField(f), false, &prefixState{}) {
		return nil, newStructuralError(ErrFieldAccess, in.Offset)
	}
	return rest.Push(SlotForType(mc.TS, mc.TS.FieldType(f))), nil
}

func opLdflda(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	f, err := mc.Resolver.ResolveField(in.Tok)
	if err != nil {
		return nil, newStructuralErrorArgs(ErrFieldAccess, in.Offset, err)
	}
	if mc.TS.IsStaticField(f) {
		return nil, newStructuralError(ErrFieldAccess, in.Offset)
	}
	if !accessibleFrom(mc.TS, mc.DeclaringType, mc.TS.DeclaringTypeOfField(f), mc.TS.FieldVisibility(f)) {
		return nil, newStructuralError(ErrFieldAccess, in.Offset)
	}
	rest, this, err := st.Pop(in.Offset)
	if err != nil {
		return nil, err
	}
	if !thisAssignable(mc.TS, this, mc.TS.DeclaringTypeOfField(f), false, &prefixState{}) {
		return nil, newStructuralError(ErrFieldAccess, in.Offset)
	}
	// A ByRef derived from a boxed (ObjRef) `this` has permanent-home; one
	// derived from a ValueType slot on the stack does not (§4.E "Fields").
	permanent := this.Kind == KindObjRef || (this.Kind == KindByRef && this.PermanentHome)
	return rest.Push(ByRefSlot(mc.TS.FieldType(f), false, permanent)), nil
}

func opStfld(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	f, err := mc.Resolver.ResolveField(in.Tok)
	if err != nil {
		return nil, newStructuralErrorArgs(ErrFieldAccess, in.Offset, err)
	}
	if mc.TS.IsStaticField(f) {
		return nil, newStructuralError(ErrFieldAccess, in.Offset)
	}
	if !accessibleFrom(mc.TS, mc.DeclaringType, mc.TS.DeclaringTypeOfField(f), mc.TS.FieldVisibility(f)) {
		return nil, newStructuralError(ErrFieldAccess, in.Offset)
	}
	rest, ops, err := st.PopN(in.Offset, 2)
	if err != nil {
		return nil, err
	}
	this, val := ops[0], ops[1]
	if !thisAssignable(mc.TS, this, mc.TS.DeclaringTypeOfField(f), false, &prefixState{}) {
		return nil, newStructuralError(ErrFieldAccess, in.Offset)
	}
	if !AssignableTo(mc.TS, val, SlotForType(mc.TS, mc.TS.FieldType(f))) {
		return nil, newStructuralError(ErrStackUnexpected, in.Offset)
	}
	return rest, nil
}

func opLdsfld(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	f, err := mc.Resolver.ResolveField(in.Tok)
	if err != nil {
		return nil, newStructuralErrorArgs(ErrFieldAccess, in.Offset, err)
	}
	if !mc.TS.IsStaticField(f) {
		return nil, newStructuralError(ErrFieldAccess, in.Offset)
	}
	if !accessibleFrom(mc.TS, mc.DeclaringType, mc.TS.DeclaringTypeOfField(f), mc.TS.FieldVisibility(f)) {
		return nil, newStructuralError(ErrFieldAccess, in.Offset)
	}
	return st.Push(SlotForType(mc.TS, mc.TS.FieldType(f))), nil
}

func opLdsflda(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	f, err := mc.Resolver.ResolveField(in.Tok)
	if err != nil {
		return nil, newStructuralErrorArgs(ErrFieldAccess, in.Offset, err)
	}
	if !mc.TS.IsStaticField(f) {
		return nil, newStructuralError(ErrFieldAccess, in.Offset)
	}
	if !accessibleFrom(mc.TS, mc.DeclaringType, mc.TS.DeclaringTypeOfField(f), mc.TS.FieldVisibility(f)) {
		return nil, newStructuralError(ErrFieldAccess, in.Offset)
	}
	return st.Push(ByRefSlot(mc.TS.FieldType(f), false, true)), nil
}

func opStsfld(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	f, err := mc.Resolver.ResolveField(in.Tok)
	if err != nil {
		return nil, newStructuralErrorArgs(ErrFieldAccess, in.Offset, err)
	}
	if !mc.TS.IsStaticField(f) {
		return nil, newStructuralError(ErrFieldAccess, in.Offset)
	}
	if !accessibleFrom(mc.TS, mc.DeclaringType, mc.TS.DeclaringTypeOfField(f), mc.TS.FieldVisibility(f)) {
		return nil, newStructuralError(ErrFieldAccess, in.Offset)
	}
	rest, val, err := st.Pop(in.Offset)
	if err != nil {
		return nil, err
	}
	if !AssignableTo(mc.TS, val, SlotForType(mc.TS, mc.TS.FieldType(f))) {
		return nil, newStructuralError(ErrStackUnexpected, in.Offset)
	}
	return rest, nil
}
