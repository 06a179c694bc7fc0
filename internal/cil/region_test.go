package cil

import "testing"

func TestBuildRegionTableRejectsOverlappingTry(t *testing.T) {
	_, err := BuildRegionTable([]RawExceptionRegion{
		{Kind: RegionCatch, TryOffset: 0, TryLength: 10, HandlerOffset: 20, HandlerLength: 5},
		{Kind: RegionCatch, TryOffset: 5, TryLength: 10, HandlerOffset: 30, HandlerLength: 5},
	})
	if err == nil {
		t.Fatal("expected error for overlapping (non-nested) try regions")
	}
}

func TestBuildRegionTableAllowsProperNesting(t *testing.T) {
	rt, err := BuildRegionTable([]RawExceptionRegion{
		{Kind: RegionCatch, TryOffset: 0, TryLength: 20, HandlerOffset: 20, HandlerLength: 5},
		{Kind: RegionCatch, TryOffset: 2, TryLength: 10, HandlerOffset: 30, HandlerLength: 5},
	})
	if err != nil {
		t.Fatalf("expected nested try regions to be accepted: %v", err)
	}
	if len(rt.Regions()) != 2 {
		t.Fatalf("expected 2 regions, got %d", len(rt.Regions()))
	}
}

func TestBuildRegionTableRejectsZeroLength(t *testing.T) {
	_, err := BuildRegionTable([]RawExceptionRegion{
		{Kind: RegionCatch, TryOffset: 0, TryLength: 0, HandlerOffset: 10, HandlerLength: 5},
	})
	if err == nil {
		t.Fatal("expected error for zero-length try region")
	}
}

func TestEnclosingTryPrefersInnermost(t *testing.T) {
	rt, err := BuildRegionTable([]RawExceptionRegion{
		{Kind: RegionCatch, TryOffset: 0, TryLength: 20, HandlerOffset: 20, HandlerLength: 5},
		{Kind: RegionCatch, TryOffset: 2, TryLength: 10, HandlerOffset: 30, HandlerLength: 5},
	})
	if err != nil {
		t.Fatalf("BuildRegionTable: %v", err)
	}
	r, ok := rt.EnclosingTry(5)
	if !ok || r.TryOffset != 2 {
		t.Fatalf("expected innermost region (TryOffset=2), got %+v, %v", r, ok)
	}
}

func TestLeaveTargetRejectsEscapeIntoDeeperRegion(t *testing.T) {
	rt, err := BuildRegionTable([]RawExceptionRegion{
		{Kind: RegionCatch, TryOffset: 0, TryLength: 5, HandlerOffset: 5, HandlerLength: 5},
	})
	if err != nil {
		t.Fatalf("BuildRegionTable: %v", err)
	}
	// leave from outside the region's try, jumping into the middle of it.
	if err := LeaveTarget(rt, 100, 2); err == nil {
		t.Fatal("expected error for a leave landing inside an unrelated try block")
	}
}

func TestLeaveTargetRejectsLeaveThatDoesNotEscapeItsOwnTry(t *testing.T) {
	rt, err := BuildRegionTable([]RawExceptionRegion{
		{Kind: RegionCatch, TryOffset: 0, TryLength: 5, HandlerOffset: 5, HandlerLength: 5},
	})
	if err != nil {
		t.Fatalf("BuildRegionTable: %v", err)
	}
	// leave from inside the try to another offset still inside that same
	// try: the try is never actually escaped.
	if err := LeaveTarget(rt, 2, 3); err == nil {
		t.Fatal("expected error for a leave whose target stays inside its own try")
	}
}

func TestLeaveTargetRejectsLeaveThatDoesNotEscapeItsOwnHandler(t *testing.T) {
	rt, err := BuildRegionTable([]RawExceptionRegion{
		{Kind: RegionCatch, TryOffset: 0, TryLength: 5, HandlerOffset: 5, HandlerLength: 5},
	})
	if err != nil {
		t.Fatalf("BuildRegionTable: %v", err)
	}
	// leave from inside the catch handler to another offset still inside
	// that same handler.
	if err := LeaveTarget(rt, 6, 7); err == nil {
		t.Fatal("expected error for a leave whose target stays inside its own handler")
	}
}

func TestLeaveTargetAllowsLeavingOwnTry(t *testing.T) {
	rt, err := BuildRegionTable([]RawExceptionRegion{
		{Kind: RegionCatch, TryOffset: 0, TryLength: 5, HandlerOffset: 5, HandlerLength: 5},
	})
	if err != nil {
		t.Fatalf("BuildRegionTable: %v", err)
	}
	if err := LeaveTarget(rt, 2, 20); err != nil {
		t.Fatalf("expected ordinary leave out of the try to be legal: %v", err)
	}
}

func TestRethrowAllowedOnlyInCatch(t *testing.T) {
	rt, err := BuildRegionTable([]RawExceptionRegion{
		{Kind: RegionCatch, TryOffset: 0, TryLength: 5, HandlerOffset: 5, HandlerLength: 5},
		{Kind: RegionFinally, TryOffset: 20, TryLength: 5, HandlerOffset: 25, HandlerLength: 5},
	})
	if err != nil {
		t.Fatalf("BuildRegionTable: %v", err)
	}
	if !RethrowAllowed(rt, 6) {
		t.Fatal("expected rethrow to be allowed inside a catch handler")
	}
	if RethrowAllowed(rt, 26) {
		t.Fatal("expected rethrow to be rejected inside a finally handler")
	}
}

func TestEndfinallyAllowedInFinallyAndFault(t *testing.T) {
	rt, err := BuildRegionTable([]RawExceptionRegion{
		{Kind: RegionFault, TryOffset: 0, TryLength: 5, HandlerOffset: 5, HandlerLength: 5},
	})
	if err != nil {
		t.Fatalf("BuildRegionTable: %v", err)
	}
	if !EndfinallyAllowed(rt, 6) {
		t.Fatal("expected endfinally to be allowed inside a fault handler")
	}
	if EndfinallyAllowed(rt, 2) {
		t.Fatal("expected endfinally to be rejected inside the protected try")
	}
}

func TestEntryStackForCatchAndFilter(t *testing.T) {
	ts := newFakeTS()
	catch := Region{Kind: RegionCatch, CaughtType: ts.dog}
	stack := EntryStack(ts, catch, false)
	if len(stack) != 1 || stack[0].Type != ts.dog {
		t.Fatalf("unexpected catch entry stack: %v", stack)
	}

	filter := Region{Kind: RegionFilter, CaughtType: ts.dog}
	atEntry := EntryStack(ts, filter, true)
	if len(atEntry) != 1 || atEntry[0].Type != ts.exception {
		t.Fatalf("expected filter entry to seed the exception base type, got %v", atEntry)
	}
	atHandler := EntryStack(ts, filter, false)
	if len(atHandler) != 1 || atHandler[0].Type != ts.dog {
		t.Fatalf("expected filter's catch-side entry to seed the caught type, got %v", atHandler)
	}
}
