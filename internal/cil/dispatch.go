package cil

// This file implements the opcode dispatch table for §4.E: for each
// instruction, an opHandler pops its required operands off the typed
// stack, checks their kinds/types, and pushes its results (or reports
// a stack/semantic error). Families that share the same stack
// transformation (the `ldc.i4.*` forms, the binary numeric ops, the
// integer `conv.*` variants) are wired to one
// shared handler rather than duplicated per opcode, the way the
// teacher's jump table wires multiple PUSH1..PUSH32 variants to one
// opPush closure family (core/vm/instructions.go, core/vm/jump_table.go).

// opHandler executes one instruction against the stack entering it,
// returning the stack leaving it.
type opHandler func(mc *MethodContext, in Instruction, st EvalStack, pfx *prefixState) (EvalStack, error)

var dispatchTable map[OpCode]opHandler

func init() {
	dispatchTable = map[OpCode]opHandler{
		Nop: opNop, Break: opNop,

		Ldarg0: makeLdarg(0), Ldarg1: makeLdarg(1), Ldarg2: makeLdarg(2), Ldarg3: makeLdarg(3),
		LdargS: opLdargVar, Ldarg: opLdargVar,
		LdargaS: opLdargaVar, Ldarga: opLdargaVar,
		StargS: opStargVar, Starg: opStargVar,

		Ldloc0: makeLdloc(0), Ldloc1: makeLdloc(1), Ldloc2: makeLdloc(2), Ldloc3: makeLdloc(3),
		LdlocS: opLdlocVar, Ldloc: opLdlocVar,
		LdlocaS: opLdlocaVar, Ldloca: opLdlocaVar,
		Stloc0: makeStloc(0), Stloc1: makeStloc(1), Stloc2: makeStloc(2), Stloc3: makeStloc(3),
		StlocS: opStlocVar, Stloc: opStlocVar,

		Ldnull:  opLdnull,
		LdcI4M1: opLdcI4, LdcI40: opLdcI4, LdcI41: opLdcI4, LdcI42: opLdcI4, LdcI43: opLdcI4,
		LdcI44: opLdcI4, LdcI45: opLdcI4, LdcI46: opLdcI4, LdcI47: opLdcI4, LdcI48: opLdcI4,
		LdcI4S: opLdcI4, LdcI4: opLdcI4,
		LdcI8: opLdcI8, LdcR4: opLdcR, LdcR8: opLdcR,
		Ldstr: opLdstr,

		Dup: opDup, Pop: opPop,

		Call: opCall, Calli: opCalli, Callvirt: opCallvirt, Newobj: opNewobj,
		Ret: opRet, Jmp: opJmp,

		Add: opBinaryNumeric, Sub: opBinaryNumeric, Mul: opBinaryNumeric,
		Div: opBinaryNumeric, DivUn: opBinaryNumericUnsignedOnly,
		Rem: opBinaryNumeric, RemUn: opBinaryNumericUnsignedOnly,
		AddOvf: opBinaryNumeric, AddOvfUn: opBinaryNumericUnsignedOnly,
		SubOvf: opBinaryNumeric, SubOvfUn: opBinaryNumericUnsignedOnly,
		MulOvf: opBinaryNumeric, MulOvfUn: opBinaryNumericUnsignedOnly,
		And: opBinaryInteger, Or: opBinaryInteger, Xor: opBinaryInteger,
		Shl: opShift, Shr: opShift, ShrUn: opShift,
		Neg: opUnaryNumeric, Not: opUnaryInteger,

		Ceq: opCompareEq, Cgt: opCompare, CgtUn: opCompare, Clt: opCompare, CltUn: opCompare,

		ConvI1: opConv, ConvI2: opConv, ConvI4: opConv, ConvI8: opConv,
		ConvU1: opConv, ConvU2: opConv, ConvU4: opConv, ConvU8: opConv,
		ConvR4: opConvFloat, ConvR8: opConvFloat, ConvRUn: opConvFloat,
		ConvI: opConvNative, ConvU: opConvNative,
		ConvOvfI1: opConv, ConvOvfI2: opConv, ConvOvfI4: opConv, ConvOvfI8: opConv,
		ConvOvfU1: opConv, ConvOvfU2: opConv, ConvOvfU4: opConv, ConvOvfU8: opConv,
		ConvOvfI: opConvNative, ConvOvfU: opConvNative,
		ConvOvfI1Un: opConv, ConvOvfI2Un: opConv, ConvOvfI4Un: opConv, ConvOvfI8Un: opConv,
		ConvOvfU1Un: opConv, ConvOvfU2Un: opConv, ConvOvfU4Un: opConv, ConvOvfU8Un: opConv,
		ConvOvfIUn: opConvNative, ConvOvfUUn: opConvNative,
		Ckfinite: opCkfinite,

		LdindI1: opLdind, LdindU1: opLdind, LdindI2: opLdind, LdindU2: opLdind,
		LdindI4: opLdind, LdindU4: opLdind, LdindI8: opLdind, LdindI: opLdind,
		LdindR4: opLdind, LdindR8: opLdind, LdindRef: opLdind,
		StindRef: opStind, StindI1: opStind, StindI2: opStind, StindI4: opStind,
		StindI8: opStind, StindR4: opStind, StindR8: opStind, StindI: opStind,
		Cpblk: opCpblk, Initblk: opInitblk, Localloc: opLocalloc,

		Cpobj: opCpobj, Ldobj: opLdobj, Stobj: opStobj, Initobj: opInitobj,
		Box: opBox, Unbox: opUnbox, UnboxAny: opUnboxAny,
		Castclass: opCastclass, Isinst: opIsinst,
		Mkrefany: opMkrefany, Refanyval: opRefanyval, Refanytype: opRefanytype,
		Ldtoken: opLdtoken, Sizeof: opSizeof,

		Ldfld: opLdfld, Ldflda: opLdflda, Stfld: opStfld,
		Ldsfld: opLdsfld, Ldsflda: opLdsflda, Stsfld: opStsfld,

		Newarr: opNewarr, Ldlen: opLdlen, Ldelema: opLdelema,
		LdelemI1: opLdelemPrim, LdelemU1: opLdelemPrim, LdelemI2: opLdelemPrim,
		LdelemU2: opLdelemPrim, LdelemI4: opLdelemPrim, LdelemU4: opLdelemPrim,
		LdelemI8: opLdelemPrim, LdelemI: opLdelemPrim, LdelemR4: opLdelemPrim,
		LdelemR8: opLdelemPrim, LdelemRef: opLdelemPrim, Ldelem: opLdelemAny,
		StelemI: opStelemPrim, StelemI1: opStelemPrim, StelemI2: opStelemPrim,
		StelemI4: opStelemPrim, StelemI8: opStelemPrim, StelemR4: opStelemPrim,
		StelemR8: opStelemPrim, StelemRef: opStelemPrim, Stelem: opStelemAny,

		Throw: opThrow, Rethrow: opRethrow, Endfinally: opEndfinally, Endfilter: opEndfilter,
		Leave: opLeave, LeaveS: opLeave,

		Arglist: opArglist, Ldftn: opLdftn, Ldvirtftn: opLdvirtftn,

		UnalignedFix: opPrefixUnaligned, VolatileFix: opPrefixVolatile,
		TailFix: opPrefixTail, ConstrainedFix: opPrefixConstrained, NoFix: opPrefixNo,
		ReadonlyFix: opPrefixReadonly,
	}
}

// dispatch looks up and runs the instruction's handler, rejecting
// opcodes the verifier intentionally never supports with
// ErrInstructionCannotBeVerified (§7.3, §4.E "unverifiable opcodes").
func dispatch(mc *MethodContext, in Instruction, st frameState, pfx *prefixState) (frameState, error) {
	h, ok := dispatchTable[in.Opcode]
	if !ok {
		return frameState{}, newStructuralErrorArgs(ErrInstructionCannotBeVerified, in.Offset, in.Opcode.String())
	}

	if pfx.active() && !isPrefixOpcode(in.Opcode) {
		if err := checkPrefixSuccessor(pfx, in); err != nil {
			return frameState{}, err
		}
	}

	stack, err := h(mc, in, st.stack, pfx)
	if err != nil {
		return frameState{}, err
	}

	localInit := st.localInit
	switch in.Opcode {
	case Stloc0, Stloc1, Stloc2, Stloc3, StlocS, Stloc:
		idx := stlocIndex(in)
		if idx < 0 || idx >= len(localInit) {
			return frameState{}, newStructuralErrorArgs(ErrStackUnexpected, in.Offset, idx)
		}
		localInit = append([]bool(nil), localInit...)
		localInit[idx] = true
	case Ldloc0, Ldloc1, Ldloc2, Ldloc3, LdlocS, Ldloc, LdlocaS, Ldloca:
		idx := ldlocIndex(in)
		if idx < 0 || idx >= len(localInit) {
			return frameState{}, newStructuralErrorArgs(ErrStackUnexpected, in.Offset, idx)
		}
		if !mc.LocalsInit && !localInit[idx] && in.Opcode != LdlocaS && in.Opcode != Ldloca {
			return frameState{}, newStructuralError(ErrUninitStack, in.Offset)
		}
	}

	if !isPrefixOpcode(in.Opcode) {
		pfx.clear()
	}

	return frameState{stack: stack, localInit: localInit}, nil
}

func isPrefixOpcode(op OpCode) bool {
	switch op {
	case UnalignedFix, VolatileFix, TailFix, ConstrainedFix, NoFix, ReadonlyFix:
		return true
	default:
		return false
	}
}

// checkPrefixSuccessor enforces each active prefix flag's whitelisted
// set of successor opcodes (§4.E "Prefixes"): a flag still active on an
// opcode outside its whitelist is ErrInvalidPrefix, rather than being
// silently discarded once the instruction runs.
func checkPrefixSuccessor(pfx *prefixState, in Instruction) error {
	if (pfx.unaligned || pfx.volatile) && !isAlignableMemoryOpcode(in.Opcode) {
		return newStructuralError(ErrInvalidPrefix, in.Offset)
	}
	if pfx.no && !isNoCheckOpcode(in.Opcode) {
		return newStructuralError(ErrInvalidPrefix, in.Offset)
	}
	if pfx.readonly && in.Opcode != Ldelema {
		return newStructuralError(ErrInvalidPrefix, in.Offset)
	}
	if pfx.hasConstrained && in.Opcode != Callvirt {
		return newStructuralError(ErrInvalidPrefix, in.Offset)
	}
	if pfx.tail && !isCallFamily(in.Opcode) {
		return newStructuralError(ErrInvalidPrefix, in.Offset)
	}
	return nil
}

// isAlignableMemoryOpcode is unaligned./volatile.'s whitelist: the
// indirect load/store family plus the field and block-memory opcodes
// that go through an address rather than a managed reference directly.
func isAlignableMemoryOpcode(op OpCode) bool {
	switch op {
	case LdindI1, LdindU1, LdindI2, LdindU2, LdindI4, LdindU4, LdindI8, LdindI, LdindR4, LdindR8, LdindRef,
		StindRef, StindI1, StindI2, StindI4, StindI8, StindR4, StindR8, StindI,
		Ldfld, Stfld, Initblk, Cpblk:
		return true
	default:
		return false
	}
}

// isNoCheckOpcode is no.'s whitelist: the opcodes that normally perform
// a typecheck, rangecheck, or nullcheck the prefix asks to skip.
func isNoCheckOpcode(op OpCode) bool {
	switch op {
	case Ldelema,
		LdelemI1, LdelemU1, LdelemI2, LdelemU2, LdelemI4, LdelemU4, LdelemI8, LdelemI, LdelemR4, LdelemR8, LdelemRef, Ldelem,
		StelemI, StelemI1, StelemI2, StelemI4, StelemI8, StelemR4, StelemR8, StelemRef, Stelem,
		Castclass, Ldfld, Stfld, Ldsfld, Stsfld:
		return true
	default:
		return false
	}
}

func stlocIndex(in Instruction) int {
	switch in.Opcode {
	case Stloc0:
		return 0
	case Stloc1:
		return 1
	case Stloc2:
		return 2
	case Stloc3:
		return 3
	default:
		return int(in.VarIndex)
	}
}

func ldlocIndex(in Instruction) int {
	switch in.Opcode {
	case Ldloc0:
		return 0
	case Ldloc1:
		return 1
	case Ldloc2:
		return 2
	case Ldloc3:
		return 3
	default:
		return int(in.VarIndex)
	}
}
