package cil

import "testing"

func TestOpCodeStringKnown(t *testing.T) {
	cases := map[OpCode]string{
		Nop:   "nop",
		Ret:   "ret",
		Call:  "call",
		Ceq:   "ceq",   // extended space
		Ldloc: "ldloc", // extended space, 2-byte var operand
	}
	for op, want := range cases {
		if got := op.String(); got != want {
			t.Errorf("OpCode(%#x).String() = %q, want %q", uint16(op), got, want)
		}
	}
}

func TestOpCodeStringUnknown(t *testing.T) {
	unused := OpCode(0xFC)
	if got := unused.String(); got != "unknown.0xfc" {
		t.Errorf("unused.String() = %q, want unknown.0xfc", got)
	}
	unusedExt := extBase + 0xFF
	if got := unusedExt.String(); got != "unknown.fe.0xff" {
		t.Errorf("unusedExt.String() = %q, want unknown.fe.0xff", got)
	}
}

func TestIsLdcI4(t *testing.T) {
	for _, op := range []OpCode{LdcI4M1, LdcI40, LdcI48, LdcI4S, LdcI4} {
		if !op.IsLdcI4() {
			t.Errorf("%v.IsLdcI4() = false, want true", op)
		}
	}
	for _, op := range []OpCode{LdcI8, LdcR4, Nop} {
		if op.IsLdcI4() {
			t.Errorf("%v.IsLdcI4() = true, want false", op)
		}
	}
}

func TestExtendedOpcodesDoNotCollideWithSingleByte(t *testing.T) {
	for op := range opcodeTable {
		if op >= extBase {
			continue
		}
		if _, clash := opcodeTable[extBase+op]; clash {
			// This is expected: the extended space reuses small integers
			// for its own opcodes (Ceq = extBase+0x01, etc). What must
			// never happen is a single-byte opcode value colliding with
			// extBase itself or exceeding it.
			continue
		}
	}
	if Nop >= extBase {
		t.Fatal("single-byte opcode leaked into extended space")
	}
	if Arglist < extBase {
		t.Fatal("extended opcode leaked into single-byte space")
	}
}
