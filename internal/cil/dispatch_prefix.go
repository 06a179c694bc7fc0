package cil

// Pointer/runtime-handle opcodes and the instruction-prefix family
// (§4.E "Prefixes"). Prefixes never touch the stack themselves; they
// set a one-shot flag on pfx that dispatch() clears after the next
// non-prefix instruction runs.

func opArglist(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	if !mc.Bytecode.IsVararg(mc.Method) {
		return nil, newStructuralError(ErrInstructionCannotBeVerified, in.Offset)
	}
	return st.Push(NativeIntSlot()), nil
}

func opLdftn(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	m, err := mc.Resolver.ResolveMethod(in.Tok)
	if err != nil {
		return nil, newStructuralErrorArgs(ErrInstructionCannotBeVerified, in.Offset, err)
	}
	return st.Push(MethodPointerSlot(m)), nil
}

func opLdvirtftn(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	m, err := mc.Resolver.ResolveMethod(in.Tok)
	if err != nil {
		return nil, newStructuralErrorArgs(ErrInstructionCannotBeVerified, in.Offset, err)
	}
	rest, this, err := st.Pop(in.Offset)
	if err != nil {
		return nil, err
	}
	if !thisAssignable(mc.TS, this, mc.TS.DeclaringType(m), true, pfx) {
		return nil, newStructuralError(ErrExpectedObjRef, in.Offset)
	}
	return rest.Push(MethodPointerSlot(m)), nil
}

func opPrefixUnaligned(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	if pfx.unaligned {
		return nil, newStructuralError(ErrPrefixConsecutive, in.Offset)
	}
	pfx.unaligned = true
	return st, nil
}

func opPrefixVolatile(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	if pfx.volatile {
		return nil, newStructuralError(ErrPrefixConsecutive, in.Offset)
	}
	pfx.volatile = true
	return st, nil
}

func opPrefixTail(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	if pfx.tail {
		return nil, newStructuralError(ErrPrefixConsecutive, in.Offset)
	}
	pfx.tail = true
	return st, nil
}

func opPrefixConstrained(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	if pfx.hasConstrained {
		return nil, newStructuralError(ErrPrefixConsecutive, in.Offset)
	}
	t, err := mc.Resolver.ResolveType(in.Tok)
	if err != nil {
		return nil, newStructuralErrorArgs(ErrInstructionCannotBeVerified, in.Offset, err)
	}
	pfx.hasConstrained = true
	pfx.constrained = t
	return st, nil
}

// opPrefixNo handles the `no.` prefix (skip one or more of the
// typecheck/rangecheck/nullcheck runtime checks on the next
// instruction). It carries no type information; a repeated `no.` is
// ErrPrefixConsecutive, and checkPrefixSuccessor rejects it ahead of
// any opcode outside isNoCheckOpcode's list.
func opPrefixNo(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	if pfx.no {
		return nil, newStructuralError(ErrPrefixConsecutive, in.Offset)
	}
	pfx.no = true
	return st, nil
}

func opPrefixReadonly(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	if pfx.readonly {
		return nil, newStructuralError(ErrPrefixConsecutive, in.Offset)
	}
	pfx.readonly = true
	return st, nil
}
