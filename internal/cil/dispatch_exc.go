package cil

// Exception-control handlers (§4.E "Exception control", grounded on the
// region legality rules in region.go / §4.F).

func opThrow(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	rest, v, err := st.Pop(in.Offset)
	if err != nil {
		return nil, err
	}
	if v.Kind != KindObjRef {
		return nil, newStructuralError(ErrExpectedObjRef, in.Offset)
	}
	return rest, nil
}

func opRethrow(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	if !RethrowAllowed(mc.Regions, in.Offset) {
		return nil, newStructuralError(ErrRethrow, in.Offset)
	}
	return st, nil
}

func opEndfinally(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	if !EndfinallyAllowed(mc.Regions, in.Offset) {
		return nil, newStructuralError(ErrEndFinally, in.Offset)
	}
	if len(st) != 0 {
		return nil, newStructuralError(ErrEndFinally, in.Offset)
	}
	return st, nil
}

func opEndfilter(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	if !EndfilterAllowed(mc.Regions, in.Offset) {
		return nil, newStructuralError(ErrEndFilter, in.Offset)
	}
	want := EndfilterStack()
	if len(st) != 1 || st[0].Kind != want[0].Kind {
		return nil, newStructuralError(ErrEndFilter, in.Offset)
	}
	return nil, nil
}

func opLeave(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error) {
	if err := LeaveTarget(mc.Regions, in.Offset, in.BrTarget); err != nil {
		return nil, err
	}
	return nil, nil
}
