package cil

// Indirection, typed-object, and box/unbox handlers (§4.E "Indirection",
// "Boxing/unboxing").

// ldindKind returns the expected ByRef element kind and the stack kind
// `ldind.T`/`stind.T` push/require for the primitive T baked into the
// opcode itself (no token operand).
func ldindKind(op OpCode) StackKind {
	switch op {
	case LdindI1, LdindU1, LdindI2, LdindU2, LdindI4, LdindU4,
		StindI1, StindI2, StindI4:
		return KindInt32
	case LdindI8, StindI8:
		return KindInt64
	case LdindI, StindI:
		return KindNativeInt
	case LdindR4, StindR4, LdindR8, StindR8:
		return KindFloat
	case LdindRef, StindRef:
		return KindObjRef
	default:
		return KindUnknown
	}
}

func opLdind(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	rest, addr, err := st.Pop(in.Offset)
	if err != nil {
		return nil, err
	}
	if addr.Kind != KindByRef && addr.Kind != KindNativeInt {
		return nil, newStructuralError(ErrExpectedByRef, in.Offset)
	}
	want := ldindKind(in.Opcode)
	if addr.Kind == KindByRef {
		got := VerificationKindOf(mc.TS, addr.Type)
		if got != want {
			return nil, newStructuralError(ErrStackUnexpected, in.Offset)
		}
	}
	if want == KindObjRef {
		return rest.Push(ObjRefSlot(addr.Type)), nil
	}
	return rest.Push(Slot{Kind: want}), nil
}

func opStind(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	rest, ops, err := st.PopN(in.Offset, 2)
	if err != nil {
		return nil, err
	}
	addr, val := ops[0], ops[1]
	if addr.Kind != KindByRef && addr.Kind != KindNativeInt {
		return nil, newStructuralError(ErrExpectedByRef, in.Offset)
	}
	if addr.Kind == KindByRef && addr.ReadOnly {
		return nil, newStructuralError(ErrStackUnexpected, in.Offset)
	}
	want := ldindKind(in.Opcode)
	if val.Kind != want {
		return nil, newStructuralError(ErrStackUnexpected, in.Offset)
	}
	return rest, nil
}

// VerificationKindOf is a small convenience over VerificationType that
// returns only the resulting stack kind, used where the caller needs a
// kind comparison rather than a full type identity (e.g. ldind.T).
func VerificationKindOf(ts TypeSystem, t TypeIdentity) StackKind {
	return SlotForType(ts, VerificationType(ts, t)).Kind
}

func opCpblk(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	rest, ops, err := st.PopN(in.Offset, 3)
	if err != nil {
		return nil, err
	}
	dst, src, size := ops[0], ops[1], ops[2]
	if (dst.Kind != KindByRef && dst.Kind != KindNativeInt) || (src.Kind != KindByRef && src.Kind != KindNativeInt) {
		return nil, newStructuralError(ErrExpectedByRef, in.Offset)
	}
	if !isIntegerKind(size.Kind) {
		return nil, newStructuralError(ErrExpectedIntegerType, in.Offset)
	}
	return rest, nil
}

func opInitblk(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	rest, ops, err := st.PopN(in.Offset, 3)
	if err != nil {
		return nil, err
	}
	dst, val, size := ops[0], ops[1], ops[2]
	if dst.Kind != KindByRef && dst.Kind != KindNativeInt {
		return nil, newStructuralError(ErrExpectedByRef, in.Offset)
	}
	if val.Kind != KindInt32 {
		return nil, newStructuralError(ErrExpectedIntegerType, in.Offset)
	}
	if !isIntegerKind(size.Kind) {
		return nil, newStructuralError(ErrExpectedIntegerType, in.Offset)
	}
	return rest, nil
}

// opLocalloc requires an empty stack apart from its size operand, and
// is forbidden inside any protected region (§4.E "Pointer/runtime").
func opLocalloc(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	if len(st) != 1 {
		return nil, newStructuralError(ErrStackUnexpected, in.Offset)
	}
	if _, ok := mc.Regions.EnclosingTry(in.Offset); ok {
		return nil, newStructuralError(ErrInstructionCannotBeVerified, in.Offset)
	}
	if _, ok := mc.Regions.EnclosingHandler(in.Offset); ok {
		return nil, newStructuralError(ErrInstructionCannotBeVerified, in.Offset)
	}
	rest, size, err := st.Pop(in.Offset)
	if err != nil {
		return nil, err
	}
	if !isIntegerKind(size.Kind) {
		return nil, newStructuralError(ErrExpectedIntegerType, in.Offset)
	}
	return rest.Push(NativeIntSlot()), nil
}

func opCpobj(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	t, err := mc.Resolver.ResolveType(in.Tok)
	if err != nil {
		return nil, newStructuralErrorArgs(ErrInstructionCannotBeVerified, in.Offset, err)
	}
	rest, ops, err := st.PopN(in.Offset, 2)
	if err != nil {
		return nil, err
	}
	dst, src := ops[0], ops[1]
	if dst.Kind != KindByRef || src.Kind != KindByRef {
		return nil, newStructuralError(ErrExpectedByRef, in.Offset)
	}
	if dst.Type != t && ReducedType(mc.TS, dst.Type) != ReducedType(mc.TS, t) {
		return nil, newStructuralError(ErrStackUnexpected, in.Offset)
	}
	if src.Type != t && ReducedType(mc.TS, src.Type) != ReducedType(mc.TS, t) {
		return nil, newStructuralError(ErrStackUnexpected, in.Offset)
	}
	return rest, nil
}

func opLdobj(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	t, err := mc.Resolver.ResolveType(in.Tok)
	if err != nil {
		return nil, newStructuralErrorArgs(ErrInstructionCannotBeVerified, in.Offset, err)
	}
	rest, addr, err := st.Pop(in.Offset)
	if err != nil {
		return nil, err
	}
	if addr.Kind != KindByRef {
		return nil, newStructuralError(ErrExpectedByRef, in.Offset)
	}
	return rest.Push(SlotForType(mc.TS, t)), nil
}

func opStobj(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	t, err := mc.Resolver.ResolveType(in.Tok)
	if err != nil {
		return nil, newStructuralErrorArgs(ErrInstructionCannotBeVerified, in.Offset, err)
	}
	rest, ops, err := st.PopN(in.Offset, 2)
	if err != nil {
		return nil, err
	}
	addr, val := ops[0], ops[1]
	if addr.Kind != KindByRef || addr.ReadOnly {
		return nil, newStructuralError(ErrExpectedByRef, in.Offset)
	}
	if !AssignableTo(mc.TS, val, SlotForType(mc.TS, t)) {
		return nil, newStructuralError(ErrStackUnexpected, in.Offset)
	}
	return rest, nil
}

func opInitobj(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	rest, addr, err := st.Pop(in.Offset)
	if err != nil {
		return nil, err
	}
	if addr.Kind != KindByRef {
		return nil, newStructuralError(ErrExpectedByRef, in.Offset)
	}
	return rest, nil
}

func opBox(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	t, err := mc.Resolver.ResolveType(in.Tok)
	if err != nil {
		return nil, newStructuralErrorArgs(ErrInstructionCannotBeVerified, in.Offset, err)
	}
	rest, v, err := st.Pop(in.Offset)
	if err != nil {
		return nil, err
	}
	target := SlotForType(mc.TS, t)
	if !AssignableTo(mc.TS, v, target) {
		return nil, newStructuralError(ErrExpectedValueType, in.Offset)
	}
	return rest.Push(ObjRefSlot(t)), nil
}

func opUnbox(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	t, err := mc.Resolver.ResolveType(in.Tok)
	if err != nil {
		return nil, newStructuralErrorArgs(ErrInstructionCannotBeVerified, in.Offset, err)
	}
	rest, v, err := st.Pop(in.Offset)
	if err != nil {
		return nil, err
	}
	if v.Kind != KindObjRef {
		return nil, newStructuralError(ErrExpectedObjRef, in.Offset)
	}
	return rest.Push(ByRefSlot(t, false, true)), nil
}

func opUnboxAny(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	t, err := mc.Resolver.ResolveType(in.Tok)
	if err != nil {
		return nil, newStructuralErrorArgs(ErrInstructionCannotBeVerified, in.Offset, err)
	}
	rest, v, err := st.Pop(in.Offset)
	if err != nil {
		return nil, err
	}
	if v.Kind != KindObjRef {
		return nil, newStructuralError(ErrExpectedObjRef, in.Offset)
	}
	return rest.Push(SlotForType(mc.TS, t)), nil
}

func opCastclass(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	t, err := mc.Resolver.ResolveType(in.Tok)
	if err != nil {
		return nil, newStructuralErrorArgs(ErrInstructionCannotBeVerified, in.Offset, err)
	}
	rest, v, err := st.Pop(in.Offset)
	if err != nil {
		return nil, err
	}
	if v.Kind != KindObjRef {
		return nil, newStructuralError(ErrExpectedObjRef, in.Offset)
	}
	return rest.Push(ObjRefSlot(t)), nil
}

func opIsinst(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	t, err := mc.Resolver.ResolveType(in.Tok)
	if err != nil {
		return nil, newStructuralErrorArgs(ErrInstructionCannotBeVerified, in.Offset, err)
	}
	rest, v, err := st.Pop(in.Offset)
	if err != nil {
		return nil, err
	}
	if v.Kind != KindObjRef {
		return nil, newStructuralError(ErrExpectedObjRef, in.Offset)
	}
	return rest.Push(ObjRefSlot(t)), nil
}

func opMkrefany(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	_, err := mc.Resolver.ResolveType(in.Tok)
	if err != nil {
		return nil, newStructuralErrorArgs(ErrInstructionCannotBeVerified, in.Offset, err)
	}
	rest, addr, err := st.Pop(in.Offset)
	if err != nil {
		return nil, err
	}
	if addr.Kind != KindByRef {
		return nil, newStructuralError(ErrExpectedByRef, in.Offset)
	}
	return rest.Push(ValueTypeSlot(nil)), nil
}

func opRefanyval(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	t, err := mc.Resolver.ResolveType(in.Tok)
	if err != nil {
		return nil, newStructuralErrorArgs(ErrInstructionCannotBeVerified, in.Offset, err)
	}
	rest, v, err := st.Pop(in.Offset)
	if err != nil {
		return nil, err
	}
	if v.Kind != KindStackValueType {
		return nil, newStructuralError(ErrExpectedValueType, in.Offset)
	}
	return rest.Push(ByRefSlot(t, false, false)), nil
}

func opRefanytype(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	rest, v, err := st.Pop(in.Offset)
	if err != nil {
		return nil, err
	}
	if v.Kind != KindStackValueType {
		return nil, newStructuralError(ErrExpectedValueType, in.Offset)
	}
	return rest.Push(Slot{Kind: KindNativeInt}), nil
}

func opLdtoken(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	return st.Push(ObjRefSlot(mc.TS.WellKnown(WellKnownObject))), nil
}

func opSizeof(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	if _, err := mc.Resolver.ResolveType(in.Tok); err != nil {
		return nil, newStructuralErrorArgs(ErrInstructionCannotBeVerified, in.Offset, err)
	}
	return st.Push(Int32Slot()), nil
}
