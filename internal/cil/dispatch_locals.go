package cil

// opNop handles `nop` and `break`: no stack effect.
func opNop(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	return st, nil
}

func makeLdarg(idx int) opHandler {
	return func(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
		return ldargAt(mc, in, st, idx)
	}
}

func opLdargVar(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	return ldargAt(mc, in, st, int(in.VarIndex))
}

func ldargAt(mc *MethodContext, in Instruction, st EvalStack, idx int) (EvalStack, error) {
	if idx < 0 || idx >= len(mc.Params) {
		return nil, newStructuralErrorArgs(ErrStackUnexpected, in.Offset, idx)
	}
	return st.Push(mc.Params[idx]), nil
}

func opLdargaVar(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	idx := int(in.VarIndex)
	if idx < 0 || idx >= len(mc.Params) {
		return nil, newStructuralErrorArgs(ErrStackUnexpected, in.Offset, idx)
	}
	return st.Push(ByRefSlot(mc.Params[idx].Type, false, true)), nil
}

func opStargVar(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	idx := int(in.VarIndex)
	if idx < 0 || idx >= len(mc.Params) {
		return nil, newStructuralErrorArgs(ErrStackUnexpected, in.Offset, idx)
	}
	rest, v, err := st.Pop(in.Offset)
	if err != nil {
		return nil, err
	}
	if !AssignableTo(mc.TS, v, mc.Params[idx]) {
		return nil, newStructuralErrorArgs(ErrStackUnexpected, in.Offset, idx)
	}
	return rest, nil
}

func makeLdloc(idx int) opHandler {
	return func(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
		return ldlocAt(mc, in, st, idx)
	}
}

func opLdlocVar(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	return ldlocAt(mc, in, st, int(in.VarIndex))
}

func ldlocAt(mc *MethodContext, in Instruction, st EvalStack, idx int) (EvalStack, error) {
	if idx < 0 || idx >= len(mc.Locals) {
		return nil, newStructuralErrorArgs(ErrStackUnexpected, in.Offset, idx)
	}
	return st.Push(mc.Locals[idx]), nil
}

func opLdlocaVar(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	idx := int(in.VarIndex)
	if idx < 0 || idx >= len(mc.Locals) {
		return nil, newStructuralErrorArgs(ErrStackUnexpected, in.Offset, idx)
	}
	return st.Push(ByRefSlot(mc.Locals[idx].Type, false, false)), nil
}

func makeStloc(idx int) opHandler {
	return func(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
		return stlocAt(mc, in, st, idx)
	}
}

func opStlocVar(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	return stlocAt(mc, in, st, int(in.VarIndex))
}

func stlocAt(mc *MethodContext, in Instruction, st EvalStack, idx int) (EvalStack, error) {
	if idx < 0 || idx >= len(mc.Locals) {
		return nil, newStructuralErrorArgs(ErrStackUnexpected, in.Offset, idx)
	}
	rest, v, err := st.Pop(in.Offset)
	if err != nil {
		return nil, err
	}
	if !AssignableTo(mc.TS, v, mc.Locals[idx]) {
		return nil, newStructuralErrorArgs(ErrStackUnexpected, in.Offset, idx)
	}
	return rest, nil
}

func opLdnull(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	return st.Push(NullRefSlot()), nil
}

func opLdcI4(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	return st.Push(Int32Slot()), nil
}

func opLdcI8(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	return st.Push(Int64Slot()), nil
}

func opLdcR(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	return st.Push(FloatSlot()), nil
}

func opLdstr(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	if err := mc.Resolver.ResolveString(in.Tok); err != nil {
		return nil, newStructuralErrorArgs(ErrInstructionCannotBeVerified, in.Offset, err)
	}
	return st.Push(ObjRefSlot(mc.TS.WellKnown(WellKnownString))), nil
}

func opDup(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	top, err := st.Peek(in.Offset)
	if err != nil {
		return nil, err
	}
	return st.Push(top), nil
}

func opPop(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	rest, _, err := st.Pop(in.Offset)
	return rest, err
}
