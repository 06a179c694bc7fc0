package cil

// Array handlers (§4.E "Arrays").

// primitiveElemKind returns the expected stack kind for the primitive
// element variant baked into an `ldelem.T`/`stelem.T` opcode.
func primitiveElemKind(op OpCode) StackKind {
	switch op {
	case LdelemI1, LdelemU1, LdelemI2, LdelemU2, LdelemI4, LdelemU4,
		StelemI1, StelemI2, StelemI4:
		return KindInt32
	case LdelemI8, StelemI8:
		return KindInt64
	case LdelemI, StelemI:
		return KindNativeInt
	case LdelemR4, StelemR4, LdelemR8, StelemR8:
		return KindFloat
	case LdelemRef, StelemRef:
		return KindObjRef
	default:
		return KindUnknown
	}
}

func arrayIndexable(arr Slot) bool {
	return arr.Kind == KindObjRef && !arr.IsNullRef()
}

func opNewarr(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	t, err := mc.Resolver.ResolveType(in.Tok)
	if err != nil {
		return nil, newStructuralErrorArgs(ErrInstructionCannotBeVerified, in.Offset, err)
	}
	rest, n, err := st.Pop(in.Offset)
	if err != nil {
		return nil, err
	}
	if n.Kind != KindInt32 && n.Kind != KindNativeInt {
		return nil, newStructuralError(ErrExpectedIntegerType, in.Offset)
	}
	return rest.Push(ObjRefSlot(t)), nil
}

func opLdlen(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	rest, arr, err := st.Pop(in.Offset)
	if err != nil {
		return nil, err
	}
	if !arrayIndexable(arr) {
		return nil, newStructuralError(ErrExpectedObjRef, in.Offset)
	}
	return rest.Push(NativeIntSlot()), nil
}

func opLdelema(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	t, err := mc.Resolver.ResolveType(in.Tok)
	if err != nil {
		return nil, newStructuralErrorArgs(ErrInstructionCannotBeVerified, in.Offset, err)
	}
	rest, ops, err := st.PopN(in.Offset, 2)
	if err != nil {
		return nil, err
	}
	arr, idx := ops[0], ops[1]
	if !arrayIndexable(arr) {
		return nil, newStructuralError(ErrExpectedObjRef, in.Offset)
	}
	if idx.Kind != KindInt32 && idx.Kind != KindNativeInt {
		return nil, newStructuralError(ErrExpectedIntegerType, in.Offset)
	}
	return rest.Push(ByRefSlot(t, pfx.readonly, false)), nil
}

func opLdelemPrim(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	rest, ops, err := st.PopN(in.Offset, 2)
	if err != nil {
		return nil, err
	}
	arr, idx := ops[0], ops[1]
	if !arrayIndexable(arr) {
		return nil, newStructuralError(ErrExpectedObjRef, in.Offset)
	}
	if idx.Kind != KindInt32 && idx.Kind != KindNativeInt {
		return nil, newStructuralError(ErrExpectedIntegerType, in.Offset)
	}
	want := primitiveElemKind(in.Opcode)
	if want == KindObjRef {
		return rest.Push(ObjRefSlot(arr.Type)), nil
	}
	return rest.Push(Slot{Kind: want}), nil
}

func opLdelemAny(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	t, err := mc.Resolver.ResolveType(in.Tok)
	if err != nil {
		return nil, newStructuralErrorArgs(ErrInstructionCannotBeVerified, in.Offset, err)
	}
	rest, ops, err := st.PopN(in.Offset, 2)
	if err != nil {
		return nil, err
	}
	arr, idx := ops[0], ops[1]
	if !arrayIndexable(arr) {
		return nil, newStructuralError(ErrExpectedObjRef, in.Offset)
	}
	if idx.Kind != KindInt32 && idx.Kind != KindNativeInt {
		return nil, newStructuralError(ErrExpectedIntegerType, in.Offset)
	}
	return rest.Push(SlotForType(mc.TS, t)), nil
}

func opStelemPrim(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	rest, ops, err := st.PopN(in.Offset, 3)
	if err != nil {
		return nil, err
	}
	arr, idx, val := ops[0], ops[1], ops[2]
	if !arrayIndexable(arr) {
		return nil, newStructuralError(ErrExpectedObjRef, in.Offset)
	}
	if idx.Kind != KindInt32 && idx.Kind != KindNativeInt {
		return nil, newStructuralError(ErrExpectedIntegerType, in.Offset)
	}
	want := primitiveElemKind(in.Opcode)
	if val.Kind != want {
		return nil, newStructuralError(ErrStackUnexpected, in.Offset)
	}
	return rest, nil
}

func opStelemAny(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	t, err := mc.Resolver.ResolveType(in.Tok)
	if err != nil {
		return nil, newStructuralErrorArgs(ErrInstructionCannotBeVerified, in.Offset, err)
	}
	rest, ops, err := st.PopN(in.Offset, 3)
	if err != nil {
		return nil, err
	}
	arr, idx, val := ops[0], ops[1], ops[2]
	if !arrayIndexable(arr) {
		return nil, newStructuralError(ErrExpectedObjRef, in.Offset)
	}
	if idx.Kind != KindInt32 && idx.Kind != KindNativeInt {
		return nil, newStructuralError(ErrExpectedIntegerType, in.Offset)
	}
	if !AssignableTo(mc.TS, val, SlotForType(mc.TS, t)) {
		return nil, newStructuralError(ErrStackUnexpected, in.Offset)
	}
	return rest, nil
}
