package cil

// Arithmetic, comparison, and conversion handlers (§4.E "Arithmetic" /
// "Conversions"), grounded on ECMA-335 III.1.5's binary-numeric-operator
// compatibility table: the verifier enumerates the permitted operand
// kind pairs and their result kind rather than modelling the runtime
// numeric promotion rules in full.

func isNumericKind(k StackKind) bool {
	switch k {
	case KindInt32, KindInt64, KindNativeInt, KindFloat:
		return true
	default:
		return false
	}
}

func isIntegerKind(k StackKind) bool {
	switch k {
	case KindInt32, KindInt64, KindNativeInt:
		return true
	default:
		return false
	}
}

// binaryNumericResult implements ECMA III.1.5's table: {Int32,Int32}->Int32,
// {Int64,Int64}->Int64, {NativeInt,NativeInt}->NativeInt, {Float,Float}->Float,
// and the two mixed Int32/NativeInt combinations widen to NativeInt.
// ByRef participates only in add/sub (handled by the caller, since only
// those two opcodes permit it); every other pairing is rejected.
func binaryNumericResult(a, b StackKind) (StackKind, bool) {
	if a == b && isNumericKind(a) {
		return a, true
	}
	if (a == KindInt32 && b == KindNativeInt) || (a == KindNativeInt && b == KindInt32) {
		return KindNativeInt, true
	}
	return KindUnknown, false
}

func opBinaryNumeric(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	rest, ops, err := st.PopN(in.Offset, 2)
	if err != nil {
		return nil, err
	}
	a, b := ops[0], ops[1]

	// add/sub additionally allow ByRef±Int32/NativeInt->ByRef and
	// ByRef-ByRef->NativeInt (pointer arithmetic), per III.1.5's table 3.
	if (in.Opcode == Add || in.Opcode == Sub) && (a.Kind == KindByRef || b.Kind == KindByRef) {
		switch {
		case a.Kind == KindByRef && isIntegerKind(b.Kind) && b.Kind != KindInt64:
			return rest.Push(ByRefSlot(a.Type, a.ReadOnly, a.PermanentHome)), nil
		case in.Opcode == Add && b.Kind == KindByRef && isIntegerKind(a.Kind) && a.Kind != KindInt64:
			return rest.Push(ByRefSlot(b.Type, b.ReadOnly, b.PermanentHome)), nil
		case in.Opcode == Sub && a.Kind == KindByRef && b.Kind == KindByRef:
			return rest.Push(NativeIntSlot()), nil
		default:
			return nil, newStructuralError(ErrExpectedNumericType, in.Offset)
		}
	}

	result, ok := binaryNumericResult(a.Kind, b.Kind)
	if !ok {
		return nil, newStructuralError(ErrExpectedNumericType, in.Offset)
	}
	return rest.Push(Slot{Kind: result}), nil
}

// opBinaryNumericUnsignedOnly handles div.un/rem.un/add.ovf.un/etc,
// which additionally disallow Float operands (unsigned arithmetic is
// integer-only).
func opBinaryNumericUnsignedOnly(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	rest, ops, err := st.PopN(in.Offset, 2)
	if err != nil {
		return nil, err
	}
	a, b := ops[0], ops[1]
	if a.Kind == KindFloat || b.Kind == KindFloat {
		return nil, newStructuralError(ErrExpectedIntegerType, in.Offset)
	}
	result, ok := binaryNumericResult(a.Kind, b.Kind)
	if !ok {
		return nil, newStructuralError(ErrExpectedIntegerType, in.Offset)
	}
	return rest.Push(Slot{Kind: result}), nil
}

// opBinaryInteger handles and/or/xor: integer-only, same result rule as
// binaryNumericResult minus Float.
func opBinaryInteger(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	rest, ops, err := st.PopN(in.Offset, 2)
	if err != nil {
		return nil, err
	}
	a, b := ops[0], ops[1]
	if !isIntegerKind(a.Kind) || !isIntegerKind(b.Kind) {
		return nil, newStructuralError(ErrExpectedIntegerType, in.Offset)
	}
	result, ok := binaryNumericResult(a.Kind, b.Kind)
	if !ok {
		return nil, newStructuralError(ErrExpectedIntegerType, in.Offset)
	}
	return rest.Push(Slot{Kind: result}), nil
}

// opShift handles shl/shr/shr.un: an integer count (Int32 or NativeInt)
// and an integer value; result kind is the value's kind.
func opShift(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	rest, ops, err := st.PopN(in.Offset, 2)
	if err != nil {
		return nil, err
	}
	value, count := ops[0], ops[1]
	if !isIntegerKind(value.Kind) {
		return nil, newStructuralError(ErrExpectedIntegerType, in.Offset)
	}
	if count.Kind != KindInt32 && count.Kind != KindNativeInt {
		return nil, newStructuralError(ErrExpectedIntegerType, in.Offset)
	}
	return rest.Push(Slot{Kind: value.Kind}), nil
}

// opUnaryNumeric handles neg: preserves kind.
func opUnaryNumeric(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	rest, v, err := st.Pop(in.Offset)
	if err != nil {
		return nil, err
	}
	if !isNumericKind(v.Kind) {
		return nil, newStructuralError(ErrExpectedNumericType, in.Offset)
	}
	return rest.Push(Slot{Kind: v.Kind}), nil
}

// opUnaryInteger handles not: preserves kind, integer-only.
func opUnaryInteger(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	rest, v, err := st.Pop(in.Offset)
	if err != nil {
		return nil, err
	}
	if !isIntegerKind(v.Kind) {
		return nil, newStructuralError(ErrExpectedIntegerType, in.Offset)
	}
	return rest.Push(Slot{Kind: v.Kind}), nil
}

// opCompareEq handles ceq, which additionally permits the ObjRef/ByRef
// comparability relaxations (§4.C BinaryComparable).
func opCompareEq(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	return opCompareWith(mc, in, st, Ceq)
}

// opCompare handles cgt/cgt.un/clt/clt.un. Each passes its own opcode
// to BinaryComparable, so its relaxations differ from ceq's: an ObjRef
// pair is accepted only by cgt.un, and the ByRef/NativeInt pairings only
// by the equality opcodes.
func opCompare(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	return opCompareWith(mc, in, st, in.Opcode)
}

func opCompareWith(mc *MethodContext, in Instruction, st EvalStack, op OpCode) (EvalStack, error) {
	rest, ops, err := st.PopN(in.Offset, 2)
	if err != nil {
		return nil, err
	}
	a, b := ops[0], ops[1]
	if !BinaryComparable(op, a, b) {
		return nil, newStructuralError(ErrStackUnexpected, in.Offset)
	}
	return rest.Push(Int32Slot()), nil
}

// opConv handles conv.{i1,i2,i4,i8,u1,u2,u4,u8}[.un] and their .ovf
// variants: numeric or NativeInt input, Int32 or Int64 result per the
// target width (§4.B mapping of the destination type; the verifier
// does not simulate overflow, only stack-kind shape).
func opConv(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	rest, v, err := st.Pop(in.Offset)
	if err != nil {
		return nil, err
	}
	if !isNumericKind(v.Kind) {
		return nil, newStructuralError(ErrExpectedNumericType, in.Offset)
	}
	if is64BitConv(in.Opcode) {
		return rest.Push(Int64Slot()), nil
	}
	return rest.Push(Int32Slot()), nil
}

func is64BitConv(op OpCode) bool {
	switch op {
	case ConvI8, ConvU8, ConvOvfI8, ConvOvfU8, ConvOvfI8Un, ConvOvfU8Un:
		return true
	default:
		return false
	}
}

// opConvFloat handles conv.r4/conv.r8/conv.r.un: numeric input, Float result.
func opConvFloat(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	rest, v, err := st.Pop(in.Offset)
	if err != nil {
		return nil, err
	}
	if !isNumericKind(v.Kind) {
		return nil, newStructuralError(ErrExpectedNumericType, in.Offset)
	}
	return rest.Push(FloatSlot()), nil
}

// opConvNative handles conv.i/conv.u[.ovf][.un]: numeric input, NativeInt result.
func opConvNative(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	rest, v, err := st.Pop(in.Offset)
	if err != nil {
		return nil, err
	}
	if !isNumericKind(v.Kind) {
		return nil, newStructuralError(ErrExpectedNumericType, in.Offset)
	}
	return rest.Push(NativeIntSlot()), nil
}

// opCkfinite pops and pushes a Float, leaving the value in place for
// the runtime's NaN/infinity check; no type-shape change.
func opCkfinite(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	rest, v, err := st.Pop(in.Offset)
	if err != nil {
		return nil, err
	}
	if v.Kind != KindFloat {
		return nil, newStructuralError(ErrExpectedNumericType, in.Offset)
	}
	return rest.Push(v), nil
}
