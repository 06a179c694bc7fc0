package fixture

import (
	"fmt"

	"github.com/DouglasDwyer/JitIlVerification/internal/cil"
)

// Universe implements cil.TypeSystem.

func (u *Universe) Kind(t cil.TypeIdentity) cil.TypeKind {
	return t.(*TypeDef).kind
}

func (u *Universe) ElementType(t cil.TypeIdentity) cil.TypeIdentity {
	e := t.(*TypeDef).element
	if e == nil {
		return nil
	}
	return e
}

func (u *Universe) ArrayRank(t cil.TypeIdentity) int {
	r := t.(*TypeDef).Rank
	if r == 0 {
		return 1
	}
	return r
}

func (u *Universe) IsSZArray(t cil.TypeIdentity) bool {
	return t.(*TypeDef).SZArray
}

func (u *Universe) EnumUnderlying(t cil.TypeIdentity) cil.TypeIdentity {
	e := t.(*TypeDef).enumUnderlying
	if e == nil {
		return nil
	}
	return e
}

func (u *Universe) BaseType(t cil.TypeIdentity) cil.TypeIdentity {
	b := t.(*TypeDef).base
	if b == nil {
		return nil
	}
	return b
}

func (u *Universe) Interfaces(t cil.TypeIdentity) []cil.TypeIdentity {
	return identitySlice(t.(*TypeDef).interfaces, func(i *TypeDef) cil.TypeIdentity { return i })
}

// IsAssignableTo walks src's base chain and interface set transitively
// looking for dst, the way a reflection-backed oracle would compute
// full nominal assignability.
func (u *Universe) IsAssignableTo(src, dst cil.TypeIdentity) bool {
	if src == nil || dst == nil {
		return src == dst
	}
	s := src.(*TypeDef)
	d := dst.(*TypeDef)
	if s == d {
		return true
	}
	for b := s.base; b != nil; b = b.base {
		if b == d {
			return true
		}
		for _, it := range b.interfaces {
			if interfaceImplements(it, d) {
				return true
			}
		}
	}
	for _, it := range s.interfaces {
		if interfaceImplements(it, d) {
			return true
		}
	}
	return false
}

func interfaceImplements(i, target *TypeDef) bool {
	if i == target {
		return true
	}
	for _, parent := range i.interfaces {
		if interfaceImplements(parent, target) {
			return true
		}
	}
	return false
}

func (u *Universe) WellKnown(name cil.WellKnownName) cil.TypeIdentity {
	t, ok := u.wellKnown[name]
	if !ok {
		return nil
	}
	return t
}

func (u *Universe) Parameters(m cil.MethodIdentity) []cil.TypeIdentity {
	return identitySlice(m.(*MethodDef).parameters, func(t *TypeDef) cil.TypeIdentity { return t })
}

func (u *Universe) ReturnType(m cil.MethodIdentity) cil.TypeIdentity {
	rt := m.(*MethodDef).returnType
	if rt == nil {
		return nil
	}
	return rt
}

func (u *Universe) IsStatic(m cil.MethodIdentity) bool { return m.(*MethodDef).Static }

func (u *Universe) DeclaringType(m cil.MethodIdentity) cil.TypeIdentity {
	return m.(*MethodDef).declaringType
}

func (u *Universe) IsAbstract(m cil.MethodIdentity) bool { return m.(*MethodDef).Abstract }
func (u *Universe) IsVirtual(m cil.MethodIdentity) bool  { return m.(*MethodDef).Virtual }

func (u *Universe) MethodVisibility(m cil.MethodIdentity) cil.Visibility {
	return visibilityOrDefault(m.(*MethodDef).Visibility)
}

func (u *Universe) FieldType(f cil.FieldIdentity) cil.TypeIdentity {
	return f.(*FieldDef).typ
}

func (u *Universe) IsStaticField(f cil.FieldIdentity) bool { return f.(*FieldDef).Static }

func (u *Universe) DeclaringTypeOfField(f cil.FieldIdentity) cil.TypeIdentity {
	return f.(*FieldDef).declaringType
}

func (u *Universe) FieldVisibility(f cil.FieldIdentity) cil.Visibility {
	return visibilityOrDefault(f.(*FieldDef).Visibility)
}

func visibilityOrDefault(name string) cil.Visibility {
	if name == "" {
		return cil.VisibilityPublic
	}
	return visibilityNames[name]
}

// Universe implements cil.BytecodeService for its Method field (the
// fixture document names exactly one method under test).

func (u *Universe) ILBytes(m cil.MethodIdentity) []byte {
	return m.(*MethodDef).il
}

func (u *Universe) Locals(m cil.MethodIdentity) []cil.TypeIdentity {
	return identitySlice(m.(*MethodDef).locals, func(t *TypeDef) cil.TypeIdentity { return t })
}

func (u *Universe) ExceptionRegions(m cil.MethodIdentity) []cil.RawExceptionRegion {
	md := m.(*MethodDef)
	out := make([]cil.RawExceptionRegion, 0, len(md.Regions))
	for _, r := range md.Regions {
		region, err := u.resolveRegion(md, r)
		if err != nil {
			// A malformed fixture region is a fixture-authoring bug, not a
			// runtime condition BuildRegionTable should have to explain;
			// surface it loudly rather than silently dropping the region.
			panic(err)
		}
		out = append(out, region)
	}
	return out
}

func (u *Universe) resolveRegion(m *MethodDef, r RegionDef) (cil.RawExceptionRegion, error) {
	labelOffset, err := cil.LabelOffsets(m.Instructions)
	if err != nil {
		return cil.RawExceptionRegion{}, err
	}
	off := func(label string) (int, error) {
		o, ok := labelOffset[label]
		if !ok {
			return 0, fmt.Errorf("fixture: region: unresolved label %q", label)
		}
		return o, nil
	}

	var kind cil.ExceptionRegionKind
	switch r.Kind {
	case "catch":
		kind = cil.RegionCatch
	case "filter":
		kind = cil.RegionFilter
	case "finally":
		kind = cil.RegionFinally
	case "fault":
		kind = cil.RegionFault
	default:
		return cil.RawExceptionRegion{}, fmt.Errorf("fixture: region: unknown kind %q", r.Kind)
	}

	tryStart, err := off(r.TryStart)
	if err != nil {
		return cil.RawExceptionRegion{}, err
	}
	tryEnd, err := off(r.TryEnd)
	if err != nil {
		return cil.RawExceptionRegion{}, err
	}
	handlerStart, err := off(r.HandlerStart)
	if err != nil {
		return cil.RawExceptionRegion{}, err
	}
	handlerEnd, err := off(r.HandlerEnd)
	if err != nil {
		return cil.RawExceptionRegion{}, err
	}

	region := cil.RawExceptionRegion{
		Kind:          kind,
		TryOffset:     tryStart,
		TryLength:     tryEnd - tryStart,
		HandlerOffset: handlerStart,
		HandlerLength: handlerEnd - handlerStart,
	}
	if r.FilterStart != "" {
		filterStart, err := off(r.FilterStart)
		if err != nil {
			return cil.RawExceptionRegion{}, err
		}
		region.FilterOffset = filterStart
	}
	if r.CaughtType != "" {
		t, ok := u.types[r.CaughtType]
		if !ok {
			return cil.RawExceptionRegion{}, fmt.Errorf("fixture: region: unknown caught type %q", r.CaughtType)
		}
		region.CaughtType = t
	}
	return region, nil
}

func (u *Universe) IsVararg(m cil.MethodIdentity) bool { return m.(*MethodDef).Vararg }

func (u *Universe) LocalsInitialized(m cil.MethodIdentity) bool {
	return m.(*MethodDef).LocalsInitialized
}
