package cil

import (
	"encoding/binary"
	"math"
)

// Token is a raw metadata token as it appears inline in the IL stream.
// The type-system oracle resolves it; the reader never interprets it.
type Token uint32

// Instruction is one decoded IL instruction: its opcode, the offset it
// starts at, its total length (opcode + operand bytes), and its decoded
// operand (the zero value of the field that doesn't apply to this
// opcode's OperandKind is left unset).
type Instruction struct {
	Opcode    OpCode
	Offset    int
	Length    int
	VarIndex  uint16 // OperandShortVar, OperandVar
	IntImm    int64  // OperandShortI, OperandI, OperandI8
	FloatImm  float64 // OperandShortR, OperandR
	BrTarget  int    // OperandShortBrTarget, OperandBrTarget: absolute IL offset
	Tok       Token  // OperandToken
	SwitchTargets []int // OperandSwitch: absolute IL offsets
}

// NextOffset is the IL offset immediately following this instruction.
func (in Instruction) NextOffset() int { return in.Offset + in.Length }

// Reader decodes a little-endian IL byte stream one instruction at a
// time (§4.A). It carries no state beyond the byte slice: the caller
// (the basic-block discovery and interpreter passes) tracks position.
type Reader struct {
	il []byte
}

// NewReader wraps an IL byte slice for sequential decode.
func NewReader(il []byte) *Reader { return &Reader{il: il} }

// Len returns the total length of the IL stream in bytes.
func (r *Reader) Len() int { return len(r.il) }

// ReadAt decodes the single instruction starting at offset. It fails
// with ErrEndOfMethodInsideInstruction if the opcode or any of its
// operand bytes would read past the end of the IL.
func (r *Reader) ReadAt(offset int) (Instruction, error) {
	if offset < 0 || offset >= len(r.il) {
		return Instruction{}, newStructuralError(ErrEndOfMethodInsideInstruction, offset)
	}

	pos := offset
	b := r.il[pos]
	pos++

	op := OpCode(b)
	if b == byte(PrefixByte) {
		if pos >= len(r.il) {
			return Instruction{}, newStructuralError(ErrEndOfMethodInsideInstruction, offset)
		}
		op = extBase + OpCode(r.il[pos])
		pos++
	}

	info, ok := opcodeTable[op]
	if !ok {
		return Instruction{}, newStructuralErrorArgs(ErrInvalidOpcode, offset, op)
	}

	in := Instruction{Opcode: op, Offset: offset}

	need := func(n int) ([]byte, error) {
		if pos+n > len(r.il) {
			return nil, newStructuralError(ErrEndOfMethodInsideInstruction, offset)
		}
		b := r.il[pos : pos+n]
		pos += n
		return b, nil
	}

	switch info.operand {
	case OperandNone:
		// no operand bytes
	case OperandShortVar:
		b, err := need(1)
		if err != nil {
			return Instruction{}, err
		}
		in.VarIndex = uint16(b[0])
	case OperandShortI:
		b, err := need(1)
		if err != nil {
			return Instruction{}, err
		}
		in.IntImm = int64(int8(b[0]))
	case OperandVar:
		b, err := need(2)
		if err != nil {
			return Instruction{}, err
		}
		in.VarIndex = binary.LittleEndian.Uint16(b)
	case OperandShortBrTarget:
		b, err := need(1)
		if err != nil {
			return Instruction{}, err
		}
		rel := int64(int8(b[0]))
		in.BrTarget = int(int64(pos) + rel)
	case OperandBrTarget:
		b, err := need(4)
		if err != nil {
			return Instruction{}, err
		}
		rel := int64(int32(binary.LittleEndian.Uint32(b)))
		in.BrTarget = int(int64(pos) + rel)
	case OperandShortR:
		b, err := need(4)
		if err != nil {
			return Instruction{}, err
		}
		bits := binary.LittleEndian.Uint32(b)
		in.FloatImm = float64(math.Float32frombits(bits))
	case OperandI:
		b, err := need(4)
		if err != nil {
			return Instruction{}, err
		}
		in.IntImm = int64(int32(binary.LittleEndian.Uint32(b)))
	case OperandI8:
		b, err := need(8)
		if err != nil {
			return Instruction{}, err
		}
		in.IntImm = int64(binary.LittleEndian.Uint64(b))
	case OperandR:
		b, err := need(8)
		if err != nil {
			return Instruction{}, err
		}
		bits := binary.LittleEndian.Uint64(b)
		in.FloatImm = math.Float64frombits(bits)
	case OperandToken:
		b, err := need(4)
		if err != nil {
			return Instruction{}, err
		}
		in.Tok = Token(binary.LittleEndian.Uint32(b))
	case OperandSwitch:
		cb, err := need(4)
		if err != nil {
			return Instruction{}, err
		}
		count := binary.LittleEndian.Uint32(cb)
		targets := make([]int, 0, count)
		// Switch targets are relative to the offset following the whole
		// table, not the opcode+count pair.
		for i := uint32(0); i < count; i++ {
			tb, err := need(4)
			if err != nil {
				return Instruction{}, err
			}
			targets = append(targets, int(int32(binary.LittleEndian.Uint32(tb))))
		}
		base := pos
		for i := range targets {
			targets[i] += base
		}
		in.SwitchTargets = targets
	}

	in.Length = pos - offset
	return in, nil
}
