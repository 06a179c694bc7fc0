package cil

import "testing"

func TestAssembleRoundTripsThroughReader(t *testing.T) {
	instrs := []AsmInstr{
		{Label: "start", Mnemonic: "ldc.i4.0"},
		{Mnemonic: "brfalse.s", BrLabel: "end"},
		{Mnemonic: "ldc.i4.1"},
		{Mnemonic: "pop"},
		{Label: "end", Mnemonic: "ret"},
	}
	il, err := Assemble(instrs)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	r := NewReader(il)
	var decoded []OpCode
	for pos := 0; pos < r.Len(); {
		in, err := r.ReadAt(pos)
		if err != nil {
			t.Fatalf("ReadAt(%d): %v", pos, err)
		}
		decoded = append(decoded, in.Opcode)
		pos = in.NextOffset()
	}
	want := []OpCode{LdcI40, BrfalseS, LdcI41, Pop, Ret}
	if len(decoded) != len(want) {
		t.Fatalf("decoded %v, want %v", decoded, want)
	}
	for i := range want {
		if decoded[i] != want[i] {
			t.Fatalf("decoded[%d] = %v, want %v", i, decoded[i], want[i])
		}
	}

	labels, err := LabelOffsets(instrs)
	if err != nil {
		t.Fatalf("LabelOffsets: %v", err)
	}
	r2 := NewReader(il)
	brfalse, err := r2.ReadAt(labels["start"] + 1) // opcode after ldc.i4.0
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if brfalse.BrTarget != labels["end"] {
		t.Fatalf("brfalse target = %d, want %d (label %q)", brfalse.BrTarget, labels["end"], "end")
	}
}

func TestAssembleUnknownMnemonic(t *testing.T) {
	_, err := Assemble([]AsmInstr{{Mnemonic: "not.a.real.opcode"}})
	if err == nil {
		t.Fatal("expected error for unknown mnemonic")
	}
}

func TestAssembleUnresolvedLabel(t *testing.T) {
	_, err := Assemble([]AsmInstr{{Mnemonic: "br.s", BrLabel: "nowhere"}, {Mnemonic: "ret"}})
	if err == nil {
		t.Fatal("expected error for unresolved branch label")
	}
}

func TestAssembleSwitchLabels(t *testing.T) {
	instrs := []AsmInstr{
		{Mnemonic: "switch", SwitchLabels: []string{"a", "b"}},
		{Label: "a", Mnemonic: "ret"},
		{Label: "b", Mnemonic: "ret"},
	}
	il, err := Assemble(instrs)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	r := NewReader(il)
	in, err := r.ReadAt(0)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	labels, _ := LabelOffsets(instrs)
	if len(in.SwitchTargets) != 2 || in.SwitchTargets[0] != labels["a"] || in.SwitchTargets[1] != labels["b"] {
		t.Fatalf("unexpected switch targets %v, want [%d %d]", in.SwitchTargets, labels["a"], labels["b"])
	}
}
