// Package fixture is a JSON-described, in-memory implementation of
// cil.TypeSystem, cil.BytecodeService, and cil.Resolver. It exists only
// to drive end-to-end scenarios (§8) and cmd/ilverify's fixture-based
// commands: per §1/§13 the real oracle and bytecode-acquisition
// implementations are out of scope, so tests and the CLI need a small
// stand-in universe instead, the way core/vm's tests build a fake
// StateDB rather than a real trie-backed one.
package fixture

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/DouglasDwyer/JitIlVerification/internal/cil"
)

// TypeDef is one type in the fixture universe. Pointer identity makes
// it directly usable as a cil.TypeIdentity (comparable, has String()).
type TypeDef struct {
	Name               string   `json:"name"`
	Kind               string   `json:"kind"`
	Base               string   `json:"base,omitempty"`
	Interfaces         []string `json:"interfaces,omitempty"`
	Element             string  `json:"element,omitempty"`
	Rank               int      `json:"rank,omitempty"`
	SZArray            bool     `json:"szArray,omitempty"`
	EnumUnderlying     string   `json:"enumUnderlying,omitempty"`

	kind           cil.TypeKind
	base           *TypeDef
	interfaces     []*TypeDef
	element        *TypeDef
	enumUnderlying *TypeDef
}

func (t *TypeDef) String() string { return t.Name }

// MethodDef is one method in the fixture universe, doubling as the IL
// body description when it is the method under verification.
type MethodDef struct {
	Name          string   `json:"name"`
	DeclaringType string   `json:"declaringType"`
	Parameters    []string `json:"parameters,omitempty"`
	ReturnType    string   `json:"returnType,omitempty"`
	Static        bool     `json:"static,omitempty"`
	Abstract      bool     `json:"abstract,omitempty"`
	Virtual       bool     `json:"virtual,omitempty"`
	Visibility    string   `json:"visibility,omitempty"`

	Locals            []string            `json:"locals,omitempty"`
	LocalsInitialized bool                `json:"localsInitialized,omitempty"`
	Vararg            bool                `json:"vararg,omitempty"`
	Instructions      []cil.AsmInstr      `json:"instructions,omitempty"`
	Regions           []RegionDef         `json:"regions,omitempty"`

	declaringType *TypeDef
	parameters    []*TypeDef
	returnType    *TypeDef
	locals        []*TypeDef
	il            []byte
}

func (m *MethodDef) String() string { return m.Name }

// FieldDef is one field in the fixture universe.
type FieldDef struct {
	Name          string `json:"name"`
	DeclaringType string `json:"declaringType"`
	Type          string `json:"type"`
	Static        bool   `json:"static,omitempty"`
	Visibility    string `json:"visibility,omitempty"`

	declaringType *TypeDef
	typ           *TypeDef
}

func (f *FieldDef) String() string { return f.Name }

// RegionDef mirrors cil.RawExceptionRegion with offsets expressed as
// instruction labels instead of raw byte offsets.
type RegionDef struct {
	Kind          string `json:"kind"`
	TryStart      string `json:"tryStart"`
	TryEnd        string `json:"tryEnd"`
	HandlerStart  string `json:"handlerStart"`
	HandlerEnd    string `json:"handlerEnd"`
	FilterStart   string `json:"filterStart,omitempty"`
	CaughtType    string `json:"caughtType,omitempty"`
}

// Signature is a named calli call-site signature, addressed by token name.
type Signature struct {
	HasThis    bool     `json:"hasThis,omitempty"`
	Parameters []string `json:"parameters,omitempty"`
	ReturnType string   `json:"returnType,omitempty"`
}

// Document is the top-level JSON fixture shape: a type/method/field
// universe, a token table binding arbitrary token values to named
// entities, and the single method under test.
type Document struct {
	Types      []*TypeDef           `json:"types"`
	Methods    []*MethodDef         `json:"methods"`
	Fields     []*FieldDef          `json:"fields"`
	WellKnown  map[string]string    `json:"wellKnown"`
	Tokens     map[string]string    `json:"tokens"`     // token value (decimal string) -> "method:Name" / "field:Name" / "type:Name" / "string"
	Signatures map[string]Signature `json:"signatures"` // token value (decimal string) -> calli signature
	Method     string               `json:"method"`     // name of the method under test
}

var typeKindNames = map[string]cil.TypeKind{
	"Bool": cil.KindBool, "Char": cil.KindChar, "SByte": cil.KindSByte, "Byte": cil.KindByte,
	"Int16": cil.KindInt16, "UInt16": cil.KindUInt16, "Int32": cil.KindInt32, "UInt32": cil.KindUInt32,
	"Int64": cil.KindInt64, "UInt64": cil.KindUInt64, "IntPtr": cil.KindIntPtr, "UIntPtr": cil.KindUIntPtr,
	"Single": cil.KindSingle, "Double": cil.KindDouble, "Enum": cil.KindEnum, "Pointer": cil.KindPointer,
	"FunctionPointer": cil.KindFunctionPointer, "ByRefType": cil.KindByRefType, "Array": cil.KindArray,
	"Class": cil.KindClass, "Interface": cil.KindInterface, "ValueType": cil.KindValueType,
	"GenericParameter": cil.KindGenericParameter, "Object": cil.KindObject, "String": cil.KindString,
}

var visibilityNames = map[string]cil.Visibility{
	"Public": cil.VisibilityPublic, "Family": cil.VisibilityFamily, "Assembly": cil.VisibilityAssembly,
	"FamilyOrAssembly": cil.VisibilityFamilyOrAssembly, "FamilyAndAssembly": cil.VisibilityFamilyAndAssembly,
	"Private": cil.VisibilityPrivate,
}

var wellKnownNames = map[string]cil.WellKnownName{
	"SByte": cil.WellKnownSByte, "Int16": cil.WellKnownInt16, "Int32": cil.WellKnownInt32,
	"Int64": cil.WellKnownInt64, "IntPtr": cil.WellKnownIntPtr, "Object": cil.WellKnownObject,
	"Array": cil.WellKnownArray, "String": cil.WellKnownString, "Exception": cil.WellKnownException,
}

// Universe is the resolved fixture: every type/method/field cross-
// reference has been turned from a name into a pointer, and the method
// under test's IL has been assembled from its instruction list.
type Universe struct {
	types   map[string]*TypeDef
	methods map[string]*MethodDef
	fields  map[string]*FieldDef

	wellKnown map[cil.WellKnownName]*TypeDef

	tokenMethod map[cil.Token]*MethodDef
	tokenField  map[cil.Token]*FieldDef
	tokenType   map[cil.Token]*TypeDef
	tokenString map[cil.Token]bool
	tokenSig    map[cil.Token]cil.Signature

	Method        *MethodDef
	DeclaringType *TypeDef
}

// Load reads and resolves a fixture document from path.
func Load(path string) (*Universe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("fixture: parse %s: %w", path, err)
	}
	return Build(&doc)
}

// Build resolves a parsed Document into a Universe.
func Build(doc *Document) (*Universe, error) {
	u := &Universe{
		types:       make(map[string]*TypeDef, len(doc.Types)),
		methods:     make(map[string]*MethodDef, len(doc.Methods)),
		fields:      make(map[string]*FieldDef, len(doc.Fields)),
		wellKnown:   make(map[cil.WellKnownName]*TypeDef),
		tokenMethod: make(map[cil.Token]*MethodDef),
		tokenField:  make(map[cil.Token]*FieldDef),
		tokenType:   make(map[cil.Token]*TypeDef),
		tokenString: make(map[cil.Token]bool),
		tokenSig:    make(map[cil.Token]cil.Signature),
	}

	for _, t := range doc.Types {
		kind, ok := typeKindNames[t.Kind]
		if !ok {
			return nil, fmt.Errorf("fixture: type %q: unknown kind %q", t.Name, t.Kind)
		}
		t.kind = kind
		u.types[t.Name] = t
	}
	for _, t := range doc.Types {
		if t.Base != "" {
			base, ok := u.types[t.Base]
			if !ok {
				return nil, fmt.Errorf("fixture: type %q: unknown base %q", t.Name, t.Base)
			}
			t.base = base
		}
		for _, iname := range t.Interfaces {
			it, ok := u.types[iname]
			if !ok {
				return nil, fmt.Errorf("fixture: type %q: unknown interface %q", t.Name, iname)
			}
			t.interfaces = append(t.interfaces, it)
		}
		if t.Element != "" {
			et, ok := u.types[t.Element]
			if !ok {
				return nil, fmt.Errorf("fixture: type %q: unknown element %q", t.Name, t.Element)
			}
			t.element = et
		}
		if t.EnumUnderlying != "" {
			et, ok := u.types[t.EnumUnderlying]
			if !ok {
				return nil, fmt.Errorf("fixture: type %q: unknown enum underlying %q", t.Name, t.EnumUnderlying)
			}
			t.enumUnderlying = et
		}
	}

	for name, tname := range doc.WellKnown {
		wk, ok := wellKnownNames[name]
		if !ok {
			return nil, fmt.Errorf("fixture: unknown well-known name %q", name)
		}
		t, ok := u.types[tname]
		if !ok {
			return nil, fmt.Errorf("fixture: wellKnown %q: unknown type %q", name, tname)
		}
		u.wellKnown[wk] = t
	}

	for _, f := range doc.Fields {
		u.fields[f.Name] = f
	}
	for _, f := range doc.Fields {
		dt, ok := u.types[f.DeclaringType]
		if !ok {
			return nil, fmt.Errorf("fixture: field %q: unknown declaring type %q", f.Name, f.DeclaringType)
		}
		f.declaringType = dt
		if f.Type != "" {
			ft, ok := u.types[f.Type]
			if !ok {
				return nil, fmt.Errorf("fixture: field %q: unknown type %q", f.Name, f.Type)
			}
			f.typ = ft
		}
	}

	for _, m := range doc.Methods {
		u.methods[m.Name] = m
	}
	for _, m := range doc.Methods {
		if err := u.resolveMethod(m); err != nil {
			return nil, err
		}
	}

	for tokStr, target := range doc.Tokens {
		tok, err := parseToken(tokStr)
		if err != nil {
			return nil, err
		}
		if err := u.bindToken(tok, target); err != nil {
			return nil, err
		}
	}
	for tokStr, sig := range doc.Signatures {
		tok, err := parseToken(tokStr)
		if err != nil {
			return nil, err
		}
		resolved := cil.Signature{HasThis: sig.HasThis, ReturnType: nil}
		for _, p := range sig.Parameters {
			pt, ok := u.types[p]
			if !ok {
				return nil, fmt.Errorf("fixture: signature %s: unknown parameter type %q", tokStr, p)
			}
			resolved.Parameters = append(resolved.Parameters, pt)
		}
		if sig.ReturnType != "" {
			rt, ok := u.types[sig.ReturnType]
			if !ok {
				return nil, fmt.Errorf("fixture: signature %s: unknown return type %q", tokStr, sig.ReturnType)
			}
			resolved.ReturnType = rt
		}
		u.tokenSig[tok] = resolved
	}

	m, ok := u.methods[doc.Method]
	if !ok {
		return nil, fmt.Errorf("fixture: method under test %q not found", doc.Method)
	}
	u.Method = m
	u.DeclaringType = m.declaringType

	return u, nil
}

func (u *Universe) resolveMethod(m *MethodDef) error {
	dt, ok := u.types[m.DeclaringType]
	if !ok {
		return fmt.Errorf("fixture: method %q: unknown declaring type %q", m.Name, m.DeclaringType)
	}
	m.declaringType = dt
	for _, p := range m.Parameters {
		pt, ok := u.types[p]
		if !ok {
			return fmt.Errorf("fixture: method %q: unknown parameter type %q", m.Name, p)
		}
		m.parameters = append(m.parameters, pt)
	}
	if m.ReturnType != "" {
		rt, ok := u.types[m.ReturnType]
		if !ok {
			return fmt.Errorf("fixture: method %q: unknown return type %q", m.Name, m.ReturnType)
		}
		m.returnType = rt
	}
	for _, l := range m.Locals {
		lt, ok := u.types[l]
		if !ok {
			return fmt.Errorf("fixture: method %q: unknown local type %q", m.Name, l)
		}
		m.locals = append(m.locals, lt)
	}

	if len(m.Instructions) > 0 {
		il, err := cil.Assemble(m.Instructions)
		if err != nil {
			return fmt.Errorf("fixture: method %q: %w", m.Name, err)
		}
		m.il = il
	}

	return nil
}

func parseToken(s string) (cil.Token, error) {
	var v uint32
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		return 0, fmt.Errorf("fixture: invalid token %q: %w", s, err)
	}
	return cil.Token(v), nil
}

func (u *Universe) bindToken(tok cil.Token, target string) error {
	kind, name, ok := strings.Cut(target, ":")
	if !ok {
		if target == "string" {
			u.tokenString[tok] = true
			return nil
		}
		return fmt.Errorf("fixture: invalid token target %q", target)
	}
	switch kind {
	case "method":
		m, ok := u.methods[name]
		if !ok {
			return fmt.Errorf("fixture: token target: unknown method %q", name)
		}
		u.tokenMethod[tok] = m
	case "field":
		f, ok := u.fields[name]
		if !ok {
			return fmt.Errorf("fixture: token target: unknown field %q", name)
		}
		u.tokenField[tok] = f
	case "type":
		t, ok := u.types[name]
		if !ok {
			return fmt.Errorf("fixture: token target: unknown type %q", name)
		}
		u.tokenType[tok] = t
	case "string":
		u.tokenString[tok] = true
	default:
		return fmt.Errorf("fixture: unknown token target kind %q", kind)
	}
	return nil
}

func identitySlice[T any, I any](in []T, conv func(T) I) []I {
	out := make([]I, len(in))
	for i, v := range in {
		out[i] = conv(v)
	}
	return out
}
