package cil

import "testing"

func TestReaderDecodesNoOperand(t *testing.T) {
	r := NewReader([]byte{byte(Nop), byte(Ret)})
	in, err := r.ReadAt(0)
	if err != nil {
		t.Fatalf("ReadAt(0): %v", err)
	}
	if in.Opcode != Nop || in.Length != 1 || in.NextOffset() != 1 {
		t.Fatalf("unexpected decode: %+v", in)
	}
	in, err = r.ReadAt(1)
	if err != nil {
		t.Fatalf("ReadAt(1): %v", err)
	}
	if in.Opcode != Ret {
		t.Fatalf("expected Ret, got %v", in.Opcode)
	}
}

func TestReaderDecodesExtendedOpcode(t *testing.T) {
	r := NewReader([]byte{byte(PrefixByte), byte(Ceq - extBase)})
	in, err := r.ReadAt(0)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if in.Opcode != Ceq || in.Length != 2 {
		t.Fatalf("unexpected decode: %+v", in)
	}
}

func TestReaderDecodesShortBranchTarget(t *testing.T) {
	// br.s +2, at offset 0: opcode(1) + operand(1) = length 2, target = 2+2 = 4
	r := NewReader([]byte{byte(BrS), 0x02, byte(Nop), byte(Nop), byte(Ret)})
	in, err := r.ReadAt(0)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if in.BrTarget != 4 {
		t.Fatalf("expected BrTarget 4, got %d", in.BrTarget)
	}
}

func TestReaderDecodesVarOperand(t *testing.T) {
	// ldarg (extended), 2-byte var index, little-endian.
	r := NewReader([]byte{byte(PrefixByte), byte(Ldarg - extBase), 0x07, 0x00})
	in, err := r.ReadAt(0)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if in.VarIndex != 7 {
		t.Fatalf("expected VarIndex 7, got %d", in.VarIndex)
	}
}

func TestReaderDecodesSwitch(t *testing.T) {
	// switch with 2 targets, relative to the offset after the whole table.
	// layout: [switch(1)][count=2(4)][target0(4)][target1(4)] -> base = 13
	il := []byte{
		byte(Switch),
		0x02, 0x00, 0x00, 0x00, // count = 2
		0x00, 0x00, 0x00, 0x00, // target0 rel = 0 -> base+0 = 13
		0x01, 0x00, 0x00, 0x00, // target1 rel = 1 -> base+1 = 14
		byte(Ret),
		byte(Nop),
	}
	r := NewReader(il)
	in, err := r.ReadAt(0)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if len(in.SwitchTargets) != 2 || in.SwitchTargets[0] != 13 || in.SwitchTargets[1] != 14 {
		t.Fatalf("unexpected switch targets: %v", in.SwitchTargets)
	}
	if in.Length != 13 {
		t.Fatalf("expected length 13, got %d", in.Length)
	}
}

func TestReaderRejectsTruncatedOperand(t *testing.T) {
	r := NewReader([]byte{byte(LdcI4S)}) // needs one more byte
	if _, err := r.ReadAt(0); err == nil {
		t.Fatal("expected error for truncated operand")
	}
}

func TestReaderRejectsUnknownOpcode(t *testing.T) {
	r := NewReader([]byte{0xF0}) // unassigned single-byte opcode
	if _, err := r.ReadAt(0); err == nil {
		t.Fatal("expected error for unknown opcode")
	}
}

func TestReaderRejectsTruncatedExtendedPrefix(t *testing.T) {
	r := NewReader([]byte{byte(PrefixByte)}) // 0xFE with nothing following
	if _, err := r.ReadAt(0); err == nil {
		t.Fatal("expected error for truncated extended prefix")
	}
}

func TestReaderRejectsOutOfRangeOffset(t *testing.T) {
	r := NewReader([]byte{byte(Nop)})
	if _, err := r.ReadAt(5); err == nil {
		t.Fatal("expected error for out-of-range offset")
	}
}
