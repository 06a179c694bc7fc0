package cil

import "sort"

// This file implements §4.D: a single pre-pass over the decoded
// instruction stream that partitions it into basic blocks and records
// each block's successors, without yet reasoning about stack contents.
//
// Grounded on core/vm/eof_validator.go's first pass (collecting jump
// destinations before the second, dataflow, pass ever runs) — block
// discovery and abstract interpretation are kept as two separate
// passes here for the same reason.

// Block is a maximal straight-line run of instructions: no instruction
// except the last branches, and no instruction except the first is a
// branch/switch target or an exception-region anchor (§4.D).
type Block struct {
	Start int // IL offset of the first instruction
	End   int // IL offset one past the last instruction

	Instructions []Instruction

	Successors []int // block Start offsets reachable by fallthrough/branch/switch

	TryStart     bool // this offset begins one or more try regions
	HandlerStart bool // this offset begins a catch/finally/fault handler
	FilterStart  bool // this offset begins a filter clause
}

// CFG is the discovered control-flow graph for one method body: blocks
// keyed by their start offset, plus the ordered list of start offsets
// for deterministic worklist seeding.
type CFG struct {
	Blocks    map[int]*Block
	Order     []int // block start offsets, ascending
	EntryAt   int   // always 0
}

// BuildCFG decodes the entire IL stream, partitions it into basic
// blocks, and wires up each block's successor list (§4.D). It fails
// with ErrInvalidBranchTarget if any branch, switch target, or
// fallthrough would land outside the IL or mid-instruction, and with
// ErrFallthroughAtEndOfMethod if the method body ends without a
// terminating instruction (ret/throw/rethrow/endfinally/endfilter/an
// unconditional branch).
func BuildCFG(il []byte, regions *RegionTable) (*CFG, error) {
	r := NewReader(il)

	leaders := map[int]bool{0: true}
	instrAt := map[int]Instruction{}
	offsets := []int{}

	for pos := 0; pos < r.Len(); {
		in, err := r.ReadAt(pos)
		if err != nil {
			return nil, err
		}
		instrAt[pos] = in
		offsets = append(offsets, pos)
		pos = in.NextOffset()
	}

	validOffset := func(o int) bool {
		_, ok := instrAt[o]
		return ok
	}

	for _, pos := range offsets {
		in := instrAt[pos]
		switch {
		case isUnconditionalBranch(in.Opcode):
			if !validOffset(in.BrTarget) {
				return nil, newStructuralErrorArgs(ErrInvalidBranchTarget, pos, in.BrTarget)
			}
			leaders[in.BrTarget] = true
		case isConditionalBranch(in.Opcode):
			if !validOffset(in.BrTarget) {
				return nil, newStructuralErrorArgs(ErrInvalidBranchTarget, pos, in.BrTarget)
			}
			leaders[in.BrTarget] = true
			if in.NextOffset() >= r.Len() {
				return nil, newStructuralError(ErrFallthroughAtEndOfMethod, pos)
			}
			leaders[in.NextOffset()] = true
		case in.Opcode == Switch:
			for _, t := range in.SwitchTargets {
				if !validOffset(t) {
					return nil, newStructuralErrorArgs(ErrInvalidBranchTarget, pos, t)
				}
				leaders[t] = true
			}
			if in.NextOffset() >= r.Len() {
				return nil, newStructuralError(ErrFallthroughAtEndOfMethod, pos)
			}
			leaders[in.NextOffset()] = true
		}
	}

	if regions != nil {
		for _, reg := range regions.Regions() {
			for _, o := range []int{reg.TryOffset, reg.HandlerOffset} {
				if !validOffset(o) {
					return nil, newStructuralError(ErrInvalidRegionNesting, o)
				}
				leaders[o] = true
			}
			if reg.Kind == RegionFilter {
				if !validOffset(reg.FilterOffset) {
					return nil, newStructuralError(ErrInvalidRegionNesting, reg.FilterOffset)
				}
				leaders[reg.FilterOffset] = true
			}
		}
	}

	order := make([]int, 0, len(leaders))
	for o := range leaders {
		order = append(order, o)
	}
	sort.Ints(order)

	blocks := make(map[int]*Block, len(order))
	for i, start := range order {
		end := r.Len()
		if i+1 < len(order) {
			end = order[i+1]
		}
		blk := &Block{Start: start, End: end}
		for pos := start; pos < end; {
			in, ok := instrAt[pos]
			if !ok {
				return nil, newStructuralError(ErrMidInstructionBlock, pos)
			}
			blk.Instructions = append(blk.Instructions, in)
			pos = in.NextOffset()
		}
		blocks[start] = blk
	}

	for _, start := range order {
		blk := blocks[start]
		if len(blk.Instructions) == 0 {
			continue
		}
		last := blk.Instructions[len(blk.Instructions)-1]
		switch {
		case isUnconditionalBranch(last.Opcode):
			blk.Successors = []int{last.BrTarget}
		case isConditionalBranch(last.Opcode):
			blk.Successors = []int{last.BrTarget, last.NextOffset()}
		case last.Opcode == Switch:
			succ := append([]int{}, last.SwitchTargets...)
			succ = append(succ, last.NextOffset())
			blk.Successors = succ
		case isTerminator(last.Opcode):
			blk.Successors = nil
		default:
			if last.NextOffset() >= r.Len() {
				return nil, newStructuralError(ErrFallthroughAtEndOfMethod, last.Offset)
			}
			blk.Successors = []int{last.NextOffset()}
		}
	}

	if regions != nil {
		for _, reg := range regions.Regions() {
			if b, ok := blocks[reg.TryOffset]; ok {
				b.TryStart = true
			}
			if b, ok := blocks[reg.HandlerOffset]; ok {
				b.HandlerStart = true
			}
			if reg.Kind == RegionFilter {
				if b, ok := blocks[reg.FilterOffset]; ok {
					b.FilterStart = true
				}
			}
		}
	}

	return &CFG{Blocks: blocks, Order: order, EntryAt: 0}, nil
}

func isUnconditionalBranch(op OpCode) bool {
	switch op {
	case Br, BrS, Leave, LeaveS:
		return true
	default:
		return false
	}
}

func isConditionalBranch(op OpCode) bool {
	switch op {
	case Brtrue, BrtrueS, Brfalse, BrfalseS,
		Beq, BeqS, BneUn, BneUnS,
		Bgt, BgtS, BgtUn, BgtUnS,
		Bge, BgeS, BgeUn, BgeUnS,
		Blt, BltS, BltUn, BltUnS,
		Ble, BleS, BleUn, BleUnS:
		return true
	default:
		return false
	}
}

func isTerminator(op OpCode) bool {
	switch op {
	case Ret, Throw, Rethrow, Endfinally, Endfilter, Jmp:
		return true
	default:
		return false
	}
}
