package cil

import (
	"encoding/binary"
	"math"
)

// This file is test/fixture support, not part of the verifier proper:
// an assembler that turns a label-addressed instruction list into the
// IL byte stream the reader consumes, the way the teacher builds raw
// bytecode fixtures inline in core/vm/*_test.go rather than hand-coding
// byte offsets.

// AsmInstr is one assembly-level instruction. Mnemonic must match one
// of opcodeTable's names (e.g. "ldarg.0", "call", "br.s"). Label, if
// set, records this instruction's own offset for other instructions'
// BrLabel/SwitchLabels to target.
type AsmInstr struct {
	Mnemonic     string
	Label        string
	IntImm       int64
	FloatImm     float64
	VarIndex     uint16
	Tok          Token
	BrLabel      string
	SwitchLabels []string
}

var mnemonicToOp map[string]OpCode

func init() {
	mnemonicToOp = make(map[string]OpCode, len(opcodeTable))
	for op, info := range opcodeTable {
		mnemonicToOp[info.name] = op
	}
}

func operandSize(kind OperandKind, numSwitchTargets int) int {
	switch kind {
	case OperandNone:
		return 0
	case OperandShortVar, OperandShortI, OperandShortBrTarget:
		return 1
	case OperandVar:
		return 2
	case OperandShortR, OperandBrTarget, OperandI, OperandToken:
		return 4
	case OperandI8, OperandR:
		return 8
	case OperandSwitch:
		return 4 + 4*numSwitchTargets
	default:
		return 0
	}
}

func opcodeByteLen(op OpCode) int {
	if op >= extBase {
		return 2
	}
	return 1
}

// LabelOffsets computes each instruction's IL offset without encoding
// any bytes, keyed by its own Label field (entries with no Label are
// omitted). Fixture loaders use this to translate a region's
// label-addressed try/handler bounds into the raw offsets
// cil.RawExceptionRegion needs, independent of Assemble's own encode pass.
func LabelOffsets(instrs []AsmInstr) (map[string]int, error) {
	labels, _, _, err := planLayout(instrs)
	return labels, err
}

func planLayout(instrs []AsmInstr) (map[string]int, []int, []OpCode, error) {
	labels := make(map[string]int, len(instrs))
	offsets := make([]int, len(instrs))
	ops := make([]OpCode, len(instrs))

	pos := 0
	for i, in := range instrs {
		op, ok := mnemonicToOp[in.Mnemonic]
		if !ok {
			return nil, nil, nil, errUnknownMnemonic(in.Mnemonic)
		}
		ops[i] = op
		offsets[i] = pos
		if in.Label != "" {
			labels[in.Label] = pos
		}
		info := opcodeTable[op]
		pos += opcodeByteLen(op) + operandSize(info.operand, len(in.SwitchLabels))
	}
	return labels, offsets, ops, nil
}

// Assemble encodes instrs into an IL byte stream, resolving BrLabel and
// SwitchLabels against the offsets recorded by each instruction's own
// Label. Returns an error if a mnemonic is unrecognized or a label is
// referenced but never defined.
func Assemble(instrs []AsmInstr) ([]byte, error) {
	labels, offsets, ops, err := planLayout(instrs)
	if err != nil {
		return nil, err
	}
	pos := 0
	if len(instrs) > 0 {
		last := ops[len(ops)-1]
		pos = offsets[len(offsets)-1] + opcodeByteLen(last) + operandSize(opcodeTable[last].operand, len(instrs[len(instrs)-1].SwitchLabels))
	}

	il := make([]byte, pos)
	pos = 0
	for i, in := range instrs {
		op := ops[i]
		info := opcodeTable[op]

		if op >= extBase {
			il[pos] = byte(PrefixByte)
			il[pos+1] = byte(op - extBase)
			pos += 2
		} else {
			il[pos] = byte(op)
			pos++
		}

		switch info.operand {
		case OperandNone:
		case OperandShortVar:
			il[pos] = byte(in.VarIndex)
			pos++
		case OperandShortI:
			il[pos] = byte(int8(in.IntImm))
			pos++
		case OperandVar:
			binary.LittleEndian.PutUint16(il[pos:], in.VarIndex)
			pos += 2
		case OperandShortBrTarget:
			target, err := resolveLabel(labels, in.BrLabel)
			if err != nil {
				return nil, err
			}
			rel := int64(target) - int64(pos+1)
			il[pos] = byte(int8(rel))
			pos++
		case OperandBrTarget:
			target, err := resolveLabel(labels, in.BrLabel)
			if err != nil {
				return nil, err
			}
			rel := int32(int64(target) - int64(pos+4))
			binary.LittleEndian.PutUint32(il[pos:], uint32(rel))
			pos += 4
		case OperandShortR:
			binary.LittleEndian.PutUint32(il[pos:], math.Float32bits(float32(in.FloatImm)))
			pos += 4
		case OperandI:
			binary.LittleEndian.PutUint32(il[pos:], uint32(int32(in.IntImm)))
			pos += 4
		case OperandI8:
			binary.LittleEndian.PutUint64(il[pos:], uint64(in.IntImm))
			pos += 8
		case OperandR:
			binary.LittleEndian.PutUint64(il[pos:], math.Float64bits(in.FloatImm))
			pos += 8
		case OperandToken:
			binary.LittleEndian.PutUint32(il[pos:], uint32(in.Tok))
			pos += 4
		case OperandSwitch:
			binary.LittleEndian.PutUint32(il[pos:], uint32(len(in.SwitchLabels)))
			pos += 4
			base := pos + 4*len(in.SwitchLabels)
			for _, lbl := range in.SwitchLabels {
				target, err := resolveLabel(labels, lbl)
				if err != nil {
					return nil, err
				}
				rel := int32(int64(target) - int64(base))
				binary.LittleEndian.PutUint32(il[pos:], uint32(rel))
				pos += 4
			}
		}
	}

	return il, nil
}

func resolveLabel(labels map[string]int, name string) (int, error) {
	off, ok := labels[name]
	if !ok {
		return 0, errUnknownLabel(name)
	}
	return off, nil
}

type errUnknownMnemonic string

func (e errUnknownMnemonic) Error() string { return "cil: unknown mnemonic " + string(e) }

type errUnknownLabel string

func (e errUnknownLabel) Error() string { return "cil: unresolved branch label " + string(e) }
