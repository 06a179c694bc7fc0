package cil

import "sort"

// This file implements §4.F: the exception-handling region model. A
// region table is built once per method from the raw regions the
// bytecode service reports, validated for legal nesting, and then
// consulted by the interpreter to seed handler-entry stacks and to
// police `leave`/`endfinally`/`endfilter`/`rethrow` placement.
//
// Grounded on core/vm/eof_validator.go's container validation pass: a
// flat list of intervals checked once for well-formed nesting before
// the dataflow pass ever runs, rather than re-derived on every visit.

// Region is one validated protected region, carrying the same fields as
// RawExceptionRegion plus its index in try-order (used as a stable
// identity for "which region is this leave targeting/escaping").
type Region struct {
	Index int
	Kind  ExceptionRegionKind

	TryOffset, TryLength         int
	HandlerOffset, HandlerLength int
	FilterOffset                 int
	CaughtType                   TypeIdentity
}

func (r Region) tryEnd() int     { return r.TryOffset + r.TryLength }
func (r Region) handlerEnd() int { return r.HandlerOffset + r.HandlerLength }

// ContainsOffset reports whether offset falls inside this region's try block.
func (r Region) ContainsOffset(offset int) bool {
	return offset >= r.TryOffset && offset < r.tryEnd()
}

// HandlerContainsOffset reports whether offset falls inside this
// region's handler (catch/filter-handler/finally/fault) block.
func (r Region) HandlerContainsOffset(offset int) bool {
	return offset >= r.HandlerOffset && offset < r.handlerEnd()
}

// RegionTable is the validated, try-nesting-ordered set of protected
// regions for one method body.
type RegionTable struct {
	regions []Region
}

// BuildRegionTable validates raw exception regions and returns a
// RegionTable, or a *VerifierError with ErrInvalidRegionNesting if the
// regions are not well-nested (§4.F "Disjointness and nesting").
func BuildRegionTable(raw []RawExceptionRegion) (*RegionTable, error) {
	regions := make([]Region, len(raw))
	for i, r := range raw {
		regions[i] = Region{
			Index:         i,
			Kind:          r.Kind,
			TryOffset:     r.TryOffset,
			TryLength:     r.TryLength,
			HandlerOffset: r.HandlerOffset,
			HandlerLength: r.HandlerLength,
			FilterOffset:  r.FilterOffset,
			CaughtType:    r.CaughtType,
		}
	}

	for _, r := range regions {
		if r.TryLength <= 0 || r.HandlerLength <= 0 {
			return nil, newStructuralError(ErrInvalidRegionNesting, r.TryOffset)
		}
		if r.TryOffset < r.handlerEnd() && r.HandlerOffset < r.tryEnd() {
			return nil, newStructuralError(ErrInvalidRegionNesting, r.HandlerOffset)
		}
	}

	for i, a := range regions {
		for j, b := range regions {
			if i == j {
				continue
			}
			if !intervalsCompatible(a.TryOffset, a.tryEnd(), b.TryOffset, b.tryEnd()) {
				return nil, newStructuralError(ErrInvalidRegionNesting, a.TryOffset)
			}
			if !intervalsCompatible(a.HandlerOffset, a.handlerEnd(), b.HandlerOffset, b.handlerEnd()) {
				return nil, newStructuralError(ErrInvalidRegionNesting, a.HandlerOffset)
			}
			// A handler may not overlap its own try, nor any other
			// region's try, except by full containment of the other
			// region (a handler may itself be protected by an outer try).
			if !intervalsCompatible(a.HandlerOffset, a.handlerEnd(), b.TryOffset, b.tryEnd()) {
				return nil, newStructuralError(ErrInvalidRegionNesting, a.HandlerOffset)
			}
		}
	}

	sort.Slice(regions, func(i, j int) bool {
		if regions[i].TryOffset != regions[j].TryOffset {
			return regions[i].TryOffset < regions[j].TryOffset
		}
		return regions[i].tryEnd() > regions[j].tryEnd()
	})
	for i := range regions {
		regions[i].Index = i
	}

	return &RegionTable{regions: regions}, nil
}

// intervalsCompatible reports whether [a0,a1) and [b0,b1) are either
// disjoint or one contains the other (equal bounds count as
// containment) — the only two relations
// §4.F's nesting rule allows.
func intervalsCompatible(a0, a1, b0, b1 int) bool {
	disjoint := a1 <= b0 || b1 <= a0
	aContainsB := a0 <= b0 && b1 <= a1
	bContainsA := b0 <= a0 && a1 <= b1
	return disjoint || aContainsB || bContainsA
}

// Regions returns all validated regions in try-order (outer before
// inner at equal start offsets).
func (t *RegionTable) Regions() []Region { return t.regions }

// EnclosingTry returns the innermost region whose try block contains
// offset, or (Region{}, false) if offset is not protected.
func (t *RegionTable) EnclosingTry(offset int) (Region, bool) {
	best := Region{}
	found := false
	for _, r := range t.regions {
		if r.ContainsOffset(offset) {
			if !found || r.TryLength < best.TryLength {
				best, found = r, true
			}
		}
	}
	return best, found
}

// EnclosingHandler returns the region whose handler block contains
// offset, or (Region{}, false) if offset is not inside any handler.
func (t *RegionTable) EnclosingHandler(offset int) (Region, bool) {
	for _, r := range t.regions {
		if r.HandlerContainsOffset(offset) {
			return r, true
		}
	}
	return Region{}, false
}

// InFilter reports whether offset lies in region r's filter clause
// (only meaningful for RegionFilter regions: the filter body runs from
// FilterOffset up to HandlerOffset).
func (r Region) InFilter(offset int) bool {
	return r.Kind == RegionFilter && offset >= r.FilterOffset && offset < r.HandlerOffset
}

// EntryStack computes the stack the interpreter must seed a handler
// (or filter) entry block with (§4.F "Handler-entry stack seeding"):
// catch seeds a single ObjRef of the caught type; filter seeds a single
// ObjRef of the exception base type at the filter's own entry, and
// (separately, via EndfilterStack) Int32 at its endfilter; finally and
// fault seed an empty stack.
func EntryStack(ts TypeSystem, r Region, atFilterEntry bool) []Slot {
	switch r.Kind {
	case RegionCatch:
		return []Slot{ObjRefSlot(r.CaughtType)}
	case RegionFilter:
		if atFilterEntry {
			return []Slot{ObjRefSlot(ts.WellKnown(WellKnownException))}
		}
		return []Slot{ObjRefSlot(r.CaughtType)}
	default: // RegionFinally, RegionFault
		return nil
	}
}

// EndfilterStack is the single-slot stack `endfilter` must observe
// (§4.F, §4.E): exactly one Int32 (the filter's boolean verdict).
func EndfilterStack() []Slot { return []Slot{Int32Slot()} }

// LeaveTarget validates a `leave` instruction's source offset and
// target offset against the region table, returning
// ErrLeave/ErrBranchOutOfTry if the leave is structurally illegal
// (§4.F "leave target legality"):
//   - leave may not appear inside a filter or fault handler at all;
//   - leave must actually escape the try or handler it is lexically
//     inside: its target may not be an offset still inside that same
//     enclosing try (for a leave from a try) or that same enclosing
//     handler (for a leave from a catch/filter handler);
//   - leave may not target a location inside the try/handler it is
//     currently escaping more deeply than stepping out one level at a
//     time — in practice this core requires the target not be inside
//     any region more deeply nested than the ones containing source.
func LeaveTarget(t *RegionTable, source, target int) error {
	if r, ok := t.EnclosingHandler(source); ok && r.Kind == RegionFault {
		return newStructuralError(ErrLeave, source)
	}
	for _, r := range t.regions {
		if r.InFilter(source) {
			return newStructuralError(ErrLeave, source)
		}
	}
	if r, ok := t.EnclosingTry(source); ok && r.ContainsOffset(target) {
		return newStructuralError(ErrLeave, source)
	}
	if r, ok := t.EnclosingHandler(source); ok && r.HandlerContainsOffset(target) {
		return newStructuralError(ErrLeave, source)
	}
	for _, r := range t.regions {
		if r.ContainsOffset(target) && !r.ContainsOffset(source) {
			return newStructuralError(ErrBranchOutOfTry, source)
		}
	}
	return nil
}

// RethrowAllowed reports whether a `rethrow` at offset is lexically
// inside a catch handler (§4.F "rethrow"), the only place it is legal.
func RethrowAllowed(t *RegionTable, offset int) bool {
	r, ok := t.EnclosingHandler(offset)
	return ok && r.Kind == RegionCatch
}

// EndfinallyAllowed reports whether `endfinally` at offset is lexically
// inside a finally or fault handler.
func EndfinallyAllowed(t *RegionTable, offset int) bool {
	r, ok := t.EnclosingHandler(offset)
	return ok && (r.Kind == RegionFinally || r.Kind == RegionFault)
}

// EndfilterAllowed reports whether `endfilter` at offset is lexically
// inside a filter's filter clause (not its handler).
func EndfilterAllowed(t *RegionTable, offset int) bool {
	r, ok := t.EnclosingHandler(offset)
	if ok && r.Kind == RegionFilter && r.InFilter(offset) {
		return true
	}
	for _, r := range t.regions {
		if r.Kind == RegionFilter && r.InFilter(offset) {
			return true
		}
	}
	return false
}
