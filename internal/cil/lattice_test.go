package cil

import "testing"

// fakeType is a minimal TypeIdentity for lattice tests: a class hierarchy
// with single inheritance and direct (non-transitive) interfaces.
type fakeType struct {
	name       string
	kind       TypeKind
	base       *fakeType
	interfaces []*fakeType
	elem       *fakeType
	rank       int
	szArray    bool
}

func (t *fakeType) String() string { return t.name }

// fakeTS implements TypeSystem over a small fixed hierarchy:
//
//	Object <- Animal <- Dog
//	Object <- Animal <- Cat
//	IPet, IFeline (Cat implements both; Dog implements IPet only)
type fakeTS struct {
	object, animal, dog, cat, iPet, iFeline, exception *fakeType
}

func newFakeTS() *fakeTS {
	object := &fakeType{name: "Object", kind: KindObject}
	iPet := &fakeType{name: "IPet", kind: KindInterface}
	iFeline := &fakeType{name: "IFeline", kind: KindInterface, interfaces: []*fakeType{iPet}}
	animal := &fakeType{name: "Animal", kind: KindClass, base: object}
	dog := &fakeType{name: "Dog", kind: KindClass, base: animal, interfaces: []*fakeType{iPet}}
	cat := &fakeType{name: "Cat", kind: KindClass, base: animal, interfaces: []*fakeType{iFeline}}
	exception := &fakeType{name: "Exception", kind: KindClass, base: object}
	return &fakeTS{object: object, animal: animal, dog: dog, cat: cat, iPet: iPet, iFeline: iFeline, exception: exception}
}

func (f *fakeTS) Kind(t TypeIdentity) TypeKind { return t.(*fakeType).kind }
func (f *fakeTS) ElementType(t TypeIdentity) TypeIdentity {
	e := t.(*fakeType).elem
	if e == nil {
		return nil
	}
	return e
}
func (f *fakeTS) ArrayRank(t TypeIdentity) int        { return t.(*fakeType).rank }
func (f *fakeTS) IsSZArray(t TypeIdentity) bool        { return t.(*fakeType).szArray }
func (f *fakeTS) EnumUnderlying(t TypeIdentity) TypeIdentity { return nil }
func (f *fakeTS) BaseType(t TypeIdentity) TypeIdentity {
	b := t.(*fakeType).base
	if b == nil {
		return nil
	}
	return b
}
func (f *fakeTS) Interfaces(t TypeIdentity) []TypeIdentity {
	ifaces := t.(*fakeType).interfaces
	out := make([]TypeIdentity, len(ifaces))
	for i, iface := range ifaces {
		out[i] = iface
	}
	return out
}
func (f *fakeTS) IsAssignableTo(src, dst TypeIdentity) bool {
	for t := src; t != nil; t = f.BaseType(t) {
		if t == dst {
			return true
		}
		for _, i := range f.Interfaces(t) {
			if i == dst {
				return true
			}
		}
	}
	return false
}
func (f *fakeTS) WellKnown(name WellKnownName) TypeIdentity {
	switch name {
	case WellKnownObject:
		return f.object
	case WellKnownException:
		return f.exception
	default:
		return nil
	}
}
func (f *fakeTS) Parameters(m MethodIdentity) []TypeIdentity        { return nil }
func (f *fakeTS) ReturnType(m MethodIdentity) TypeIdentity          { return nil }
func (f *fakeTS) IsStatic(m MethodIdentity) bool                    { return false }
func (f *fakeTS) DeclaringType(m MethodIdentity) TypeIdentity        { return nil }
func (f *fakeTS) IsAbstract(m MethodIdentity) bool                  { return false }
func (f *fakeTS) IsVirtual(m MethodIdentity) bool                   { return false }
func (f *fakeTS) MethodVisibility(m MethodIdentity) Visibility       { return VisibilityPublic }
func (f *fakeTS) FieldType(field FieldIdentity) TypeIdentity         { return nil }
func (f *fakeTS) IsStaticField(field FieldIdentity) bool             { return false }
func (f *fakeTS) DeclaringTypeOfField(field FieldIdentity) TypeIdentity { return nil }
func (f *fakeTS) FieldVisibility(field FieldIdentity) Visibility     { return VisibilityPublic }

func TestMergeIdenticalObjRef(t *testing.T) {
	ts := newFakeTS()
	a := ObjRefSlot(ts.dog)
	b := ObjRefSlot(ts.dog)
	merged, ok := Merge(ts, a, b)
	if !ok || merged.Type != ts.dog {
		t.Fatalf("Merge(dog,dog) = %+v, %v", merged, ok)
	}
}

func TestMergeDistinctClassesToCommonBase(t *testing.T) {
	ts := newFakeTS()
	merged, ok := Merge(ts, ObjRefSlot(ts.dog), ObjRefSlot(ts.cat))
	if !ok {
		t.Fatal("expected Dog/Cat to merge")
	}
	if merged.Type != ts.animal {
		t.Fatalf("Merge(Dog,Cat) = %v, want Animal", merged.Type)
	}
}

func TestMergeNullRefWithAnyObjRef(t *testing.T) {
	ts := newFakeTS()
	merged, ok := Merge(ts, NullRefSlot(), ObjRefSlot(ts.dog))
	if !ok || merged.Type != ts.dog {
		t.Fatalf("Merge(null,Dog) = %+v, %v", merged, ok)
	}
}

func TestMergeInterfaceAndImplementor(t *testing.T) {
	ts := newFakeTS()
	merged, ok := Merge(ts, ObjRefSlot(ts.iPet), ObjRefSlot(ts.dog))
	if !ok || merged.Type != ts.iPet {
		t.Fatalf("Merge(IPet,Dog) = %+v, %v, want IPet", merged, ok)
	}
}

func TestMergeCrossKindFails(t *testing.T) {
	ts := newFakeTS()
	if _, ok := Merge(ts, Int32Slot(), ObjRefSlot(ts.dog)); ok {
		t.Fatal("expected Int32/ObjRef merge to fail")
	}
	if _, ok := Merge(ts, Int32Slot(), Int64Slot()); ok {
		t.Fatal("expected Int32/Int64 merge to fail")
	}
}

func TestAssignableToObjRef(t *testing.T) {
	ts := newFakeTS()
	if !AssignableTo(ts, ObjRefSlot(ts.dog), ObjRefSlot(ts.animal)) {
		t.Fatal("expected Dog assignable to Animal")
	}
	if AssignableTo(ts, ObjRefSlot(ts.animal), ObjRefSlot(ts.dog)) {
		t.Fatal("expected Animal not assignable to Dog")
	}
	if !AssignableTo(ts, NullRefSlot(), ObjRefSlot(ts.dog)) {
		t.Fatal("expected null assignable to any ObjRef")
	}
}

func TestAssignableToByRefReadOnly(t *testing.T) {
	ts := newFakeTS()
	src := ByRefSlot(ts.dog, false, false)
	dst := ByRefSlot(ts.dog, true, false)
	if !AssignableTo(ts, src, dst) {
		t.Fatal("expected matching-type ByRef assignable regardless of readonly")
	}
	other := ByRefSlot(ts.cat, false, false)
	if AssignableTo(ts, other, dst) {
		t.Fatal("expected mismatched-type ByRef not assignable")
	}
}

func TestBinaryComparableNativeIntAndByRef(t *testing.T) {
	if !BinaryComparable(Ceq, NativeIntSlot(), ByRefSlot(nil, false, false)) {
		t.Fatal("expected NativeInt/ByRef comparable under ceq")
	}
	if BinaryComparable(Cgt, NativeIntSlot(), ByRefSlot(nil, false, false)) {
		t.Fatal("expected NativeInt/ByRef not comparable under cgt")
	}
}

func TestBinaryComparableObjRefEquality(t *testing.T) {
	ts := newFakeTS()
	a, b := ObjRefSlot(ts.dog), ObjRefSlot(ts.cat)
	if !BinaryComparable(Ceq, a, b) {
		t.Fatal("expected unrelated ObjRefs comparable under ceq")
	}
	if BinaryComparable(Cgt, a, b) {
		t.Fatal("expected ObjRefs not comparable under cgt")
	}
}

func TestReducedTypeUnsignedToSigned(t *testing.T) {
	ts := newFakeTS()
	byteT := &fakeType{name: "Byte", kind: KindByte}
	sbyteWK := &fakeType{name: "SByte", kind: KindSByte}
	ts2 := &wellKnownOverride{fakeTS: ts, sbyte: sbyteWK}
	if got := ReducedType(ts2, byteT); got != sbyteWK {
		t.Fatalf("ReducedType(Byte) = %v, want SByte", got)
	}
}

// wellKnownOverride extends fakeTS to answer WellKnownSByte, needed only
// by TestReducedTypeUnsignedToSigned.
type wellKnownOverride struct {
	*fakeTS
	sbyte TypeIdentity
}

func (w *wellKnownOverride) WellKnown(name WellKnownName) TypeIdentity {
	if name == WellKnownSByte {
		return w.sbyte
	}
	return w.fakeTS.WellKnown(name)
}
