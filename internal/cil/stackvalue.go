package cil

// StackKind is the tag of a stack slot's discriminated union (§3, §9:
// "Tagged-variant modelling" — a sum type with attached data and an
// orthogonal flag bitset, not a class hierarchy).
type StackKind int

const (
	KindUnknown StackKind = iota
	KindInt32
	KindInt64
	KindNativeInt
	KindFloat
	KindObjRef
	KindByRef
	KindStackValueType
)

func (k StackKind) String() string {
	switch k {
	case KindInt32:
		return "Int32"
	case KindInt64:
		return "Int64"
	case KindNativeInt:
		return "NativeInt"
	case KindFloat:
		return "Float"
	case KindObjRef:
		return "ObjRef"
	case KindByRef:
		return "ByRef"
	case KindStackValueType:
		return "ValueType"
	default:
		return "Unknown"
	}
}

// Slot is one value on the evaluation stack: a kind, an optional
// attached type identity, and a small flag set (§3). Flags never affect
// the kind tag — they are orthogonal, per §9.
type Slot struct {
	Kind StackKind
	Type TypeIdentity // nil for a null ObjRef; the pointee for ByRef

	ReadOnly      bool // ByRef only: written via the `readonly.` prefix
	PermanentHome bool // ByRef only: storage outlives the current frame
	ThisPointer   bool // any kind: this slot originated from an implicit `this`

	Method MethodIdentity // NativeInt only: attached method identity (ldftn/ldvirtftn)
}

// IsNullRef reports whether s is the null object reference (ObjRef with
// no attached type identity, §3).
func (s Slot) IsNullRef() bool { return s.Kind == KindObjRef && s.Type == nil }

// Equal reports whether two slots are identical in kind, type identity,
// and all flags (§3 "Equality compares kind, type identity, and all
// flags").
func (s Slot) Equal(o Slot) bool {
	return s.Kind == o.Kind &&
		s.Type == o.Type &&
		s.ReadOnly == o.ReadOnly &&
		s.PermanentHome == o.PermanentHome &&
		s.ThisPointer == o.ThisPointer &&
		s.Method == o.Method
}

// Int32Slot, Int64Slot, FloatSlot, NativeIntSlot are constructors for
// the kinds that never carry a type identity.
func Int32Slot() Slot     { return Slot{Kind: KindInt32} }
func Int64Slot() Slot     { return Slot{Kind: KindInt64} }
func FloatSlot() Slot     { return Slot{Kind: KindFloat} }
func NativeIntSlot() Slot { return Slot{Kind: KindNativeInt} }

// NullRefSlot is the null object reference.
func NullRefSlot() Slot { return Slot{Kind: KindObjRef} }

// ObjRefSlot is an object reference to t.
func ObjRefSlot(t TypeIdentity) Slot { return Slot{Kind: KindObjRef, Type: t} }

// ByRefSlot is a managed pointer to t.
func ByRefSlot(t TypeIdentity, readOnly, permanentHome bool) Slot {
	return Slot{Kind: KindByRef, Type: t, ReadOnly: readOnly, PermanentHome: permanentHome}
}

// ValueTypeSlot is a value type (or unconstrained generic parameter) t
// living directly on the stack.
func ValueTypeSlot(t TypeIdentity) Slot { return Slot{Kind: KindStackValueType, Type: t} }

// MethodPointerSlot is a NativeInt carrying a method identity
// (ldftn/ldvirtftn, §3 "A method pointer is a NativeInt with an
// attached method identity").
func MethodPointerSlot(m MethodIdentity) Slot { return Slot{Kind: KindNativeInt, Method: m} }

// SlotForType constructs the initial stack slot for a value of the
// given raw type, per the §4.B mapping table.
func SlotForType(ts TypeSystem, t TypeIdentity) Slot {
	if t == nil {
		return NullRefSlot()
	}
	switch ts.Kind(t) {
	case KindBool, KindChar, KindSByte, KindByte, KindInt16, KindUInt16, KindInt32, KindUInt32:
		return Int32Slot()
	case KindInt64, KindUInt64:
		return Int64Slot()
	case KindSingle, KindDouble:
		return FloatSlot()
	case KindIntPtr, KindUIntPtr, KindPointer, KindFunctionPointer:
		return NativeIntSlot()
	case KindByRefType:
		elem := ts.ElementType(t)
		return ByRefSlot(elem, false, false)
	case KindValueType, KindGenericParameter:
		return ValueTypeSlot(t)
	case KindEnum:
		return SlotForType(ts, ts.EnumUnderlying(t))
	default:
		return ObjRefSlot(t)
	}
}
