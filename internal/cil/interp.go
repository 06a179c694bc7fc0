package cil

// This file implements §4.E: the abstract interpreter proper. It owns
// MethodContext (the immutable per-method state the dispatch table
// reads) and the worklist loop that drains the control-flow graph,
// merging stack states at every block with more than one predecessor.
//
// Grounded on core/vm/eof_validator.go's second (dataflow) pass: a
// worklist of block offsets, a per-block recorded (min,max) entry
// state, and a fixed point reached by re-enqueuing a block whenever its
// recorded entry state widens. Here the recorded state is a typed stack
// plus a local definite-assignment mask instead of an (min,max) stack
// height pair, since CIL verification needs full type information, not
// just height bounds.

// MethodContext carries the immutable facts about the method under
// verification (§3): its parameter and local slot shapes, its region
// table, and the collaborators the dispatch table queries.
type MethodContext struct {
	TS            TypeSystem
	Bytecode      BytecodeService
	Resolver      Resolver
	Method        MethodIdentity
	DeclaringType TypeIdentity

	Params []Slot // index 0 is the implicit `this` for an instance method
	Locals []Slot

	LocalsInit bool // method header's init-locals flag

	Regions *RegionTable
	CFG     *CFG

	Reporter Reporter

	isInstanceCtor bool // Method is a constructor on a non-value type (affects `this` assignability until base ctor called)
}

// NewMethodContext builds the immutable per-method context from the
// oracle and bytecode service (§6).
func NewMethodContext(ts TypeSystem, bc BytecodeService, resolver Resolver, method MethodIdentity, declaringType TypeIdentity, reporter Reporter) (*MethodContext, error) {
	il := bc.ILBytes(method)

	regions, err := BuildRegionTable(bc.ExceptionRegions(method))
	if err != nil {
		return nil, err
	}

	cfg, err := BuildCFG(il, regions)
	if err != nil {
		return nil, err
	}

	var params []Slot
	if !ts.IsStatic(method) {
		params = append(params, SlotForType(ts, declaringType))
	}
	for _, pt := range ts.Parameters(method) {
		params = append(params, SlotForType(ts, pt))
	}

	locals := make([]Slot, 0, len(bc.Locals(method)))
	for _, lt := range bc.Locals(method) {
		locals = append(locals, SlotForType(ts, lt))
	}

	return &MethodContext{
		TS:            ts,
		Bytecode:      bc,
		Resolver:      resolver,
		Method:        method,
		DeclaringType: declaringType,
		Params:        params,
		Locals:        locals,
		LocalsInit:    bc.LocalsInitialized(method),
		Regions:       regions,
		CFG:           cfg,
		Reporter:      reporter,
	}, nil
}

// frameState is the dataflow fact attached to a block's entry: the
// typed stack plus which locals are definitely assigned on every path
// reaching this point.
type frameState struct {
	stack     EvalStack
	localInit []bool
}

func (f frameState) clone() frameState {
	return frameState{stack: f.stack.Clone(), localInit: append([]bool(nil), f.localInit...)}
}

// mergeLocalInit ANDs two definite-assignment masks (a local is
// definitely assigned at a join point only if it was assigned on every
// incoming path).
func mergeLocalInit(a, b []bool) []bool {
	out := make([]bool, len(a))
	for i := range a {
		out[i] = a[i] && b[i]
	}
	return out
}

// mergeFrames merges two frame states reaching the same block, per
// §4.E's "merge-and-widen at join points": stacks merge slot-wise via
// Merge, locals merge via AND. A stack-height mismatch or a slot merge
// failure is ErrMergeFailure.
func mergeFrames(ts TypeSystem, offset int, a, b frameState) (frameState, error) {
	if len(a.stack) != len(b.stack) {
		return frameState{}, newStructuralError(ErrMergeFailure, offset)
	}
	merged := make(EvalStack, len(a.stack))
	for i := range a.stack {
		m, ok := Merge(ts, a.stack[i], b.stack[i])
		if !ok {
			return frameState{}, newStructuralError(ErrMergeFailure, offset)
		}
		merged[i] = m
	}
	return frameState{stack: merged, localInit: mergeLocalInit(a.localInit, b.localInit)}, nil
}

// Verify runs the abstract interpreter over the whole method and
// reports every violation it finds to mc.Reporter (§6 Verify entry
// point; the fail-fast/collect-all choice lives entirely in the
// Reporter implementation, not here).
func Verify(mc *MethodContext) error {
	entry := frameState{
		stack:     nil,
		localInit: make([]bool, len(mc.Locals)),
	}
	if mc.LocalsInit {
		for i := range entry.localInit {
			entry.localInit[i] = true
		}
	}

	states := map[int]frameState{mc.CFG.EntryAt: entry}
	type anchor struct {
		offset int
		stack  []Slot
	}
	for _, r := range mc.Regions.Regions() {
		anchors := []anchor{{r.HandlerOffset, EntryStack(mc.TS, r, r.Kind == RegionFilter)}}
		if r.Kind == RegionFilter {
			anchors = append(anchors, anchor{r.FilterOffset, EntryStack(mc.TS, r, true)})
		}
		for _, a := range anchors {
			if a.offset == mc.CFG.EntryAt {
				continue
			}
			seed := frameState{stack: a.stack, localInit: entry.localInit}
			if existing, ok := states[a.offset]; ok {
				merged, err := mergeFrames(mc.TS, a.offset, existing, seed)
				if err != nil {
					if rerr := mc.Reporter.Report(err.(*VerifierError)); rerr != nil {
						return rerr
					}
					continue
				}
				states[a.offset] = merged
			} else {
				states[a.offset] = seed
			}
		}
	}

	visited := map[int]bool{}
	queue := []int{}
	for start := range states {
		queue = append(queue, start)
	}

	reachable := map[int]bool{}

	for len(queue) > 0 {
		start := queue[0]
		queue = queue[1:]

		blk, ok := mc.CFG.Blocks[start]
		if !ok {
			continue
		}
		reachable[start] = true
		in := states[start]

		out, fallOff, err := interpretBlock(mc, blk, in)
		if err != nil {
			if verr, ok := err.(*VerifierError); ok {
				if rerr := mc.Reporter.Report(verr); rerr != nil {
					return rerr
				}
				continue
			}
			return err
		}

		for _, succ := range blk.Successors {
			next := out
			if succ == fallOff {
				// fallthrough/branch successor inherits the post-block stack as-is
			}
			if existing, ok := states[succ]; ok {
				merged, merr := mergeFrames(mc.TS, succ, existing, next)
				if merr != nil {
					if rerr := mc.Reporter.Report(merr.(*VerifierError)); rerr != nil {
						return rerr
					}
					continue
				}
				if merged.stack.Equal(existing.stack) && boolsEqual(merged.localInit, existing.localInit) {
					continue
				}
				states[succ] = merged
			} else {
				states[succ] = next
			}
			if !visited[succ] {
				visited[succ] = true
			}
			queue = append(queue, succ)
		}
	}

	for _, start := range mc.CFG.Order {
		if !reachable[start] {
			if blk := mc.CFG.Blocks[start]; blk != nil && len(blk.Instructions) > 0 {
				mc.Reporter.Report(newStructuralError(ErrUnreachableBlock, blk.Start))
			}
		}
	}

	return nil
}

func boolsEqual(a, b []bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// interpretBlock runs every instruction in blk starting from in,
// returning the stack state after the final instruction and the offset
// of the fallthrough successor (if any, else -1).
func interpretBlock(mc *MethodContext, blk *Block, in frameState) (frameState, int, error) {
	st := in.clone()
	var pfx prefixState

	for i, instr := range blk.Instructions {
		isLast := i == len(blk.Instructions)-1
		wasTail := pfx.tail && isCallFamily(instr.Opcode)

		next, err := dispatch(mc, instr, st, &pfx)
		if err != nil {
			return frameState{}, -1, err
		}
		st = next

		if wasTail {
			if i+1 >= len(blk.Instructions) || blk.Instructions[i+1].Opcode != Ret {
				return frameState{}, -1, newStructuralError(ErrTailCallNotFollowedByRet, instr.Offset)
			}
			if _, ok := mc.Regions.EnclosingTry(instr.Offset); ok {
				return frameState{}, -1, newStructuralError(ErrInstructionCannotBeVerified, instr.Offset)
			}
			if _, ok := mc.Regions.EnclosingHandler(instr.Offset); ok {
				return frameState{}, -1, newStructuralError(ErrInstructionCannotBeVerified, instr.Offset)
			}
			calleeRet, err := tailCallReturnType(mc, instr)
			if err != nil {
				return frameState{}, -1, newStructuralErrorArgs(ErrInstructionCannotBeVerified, instr.Offset, err)
			}
			if calleeRet != mc.TS.ReturnType(mc.Method) {
				return frameState{}, -1, newStructuralError(ErrStackUnexpected, instr.Offset)
			}
		}

		if isLast && pfx.active() {
			return frameState{}, -1, newStructuralError(ErrInvalidPrefix, instr.Offset)
		}
	}

	fallOff := -1
	if len(blk.Instructions) > 0 {
		last := blk.Instructions[len(blk.Instructions)-1]
		if !isUnconditionalBranch(last.Opcode) && !isTerminator(last.Opcode) && last.Opcode != Switch {
			fallOff = last.NextOffset()
		}
	}

	return st, fallOff, nil
}

// prefixState tracks the one-shot instruction-prefix flags (§4.E
// "prefix handling"): unaligned./volatile./tail./no./constrained./
// readonly. apply to exactly the next instruction and are rejected if
// stacked illegally (two of the same prefix back to back) or left
// dangling at a block boundary.
type prefixState struct {
	unaligned      bool
	volatile       bool
	tail           bool
	no             bool
	readonly       bool
	constrained    TypeIdentity
	hasConstrained bool
}

func (p *prefixState) active() bool {
	return p.unaligned || p.volatile || p.tail || p.no || p.readonly || p.hasConstrained
}

func (p *prefixState) clear() {
	*p = prefixState{}
}

// tailCallReturnType resolves the return type a tail. call/callvirt/calli
// targets, the same way callCommon/opCalli resolve it when actually
// dispatching the instruction.
func tailCallReturnType(mc *MethodContext, instr Instruction) (TypeIdentity, error) {
	if instr.Opcode == Calli {
		sig, err := mc.Resolver.ResolveSignature(instr.Tok)
		if err != nil {
			return nil, err
		}
		return sig.ReturnType, nil
	}
	m, err := mc.Resolver.ResolveMethod(instr.Tok)
	if err != nil {
		return nil, err
	}
	return mc.TS.ReturnType(m), nil
}

func isCallFamily(op OpCode) bool {
	switch op {
	case Call, Callvirt, Calli:
		return true
	default:
		return false
	}
}
