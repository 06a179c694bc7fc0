package fixture

import (
	"fmt"

	"github.com/DouglasDwyer/JitIlVerification/internal/cil"
)

// Universe implements cil.Resolver by looking tokens up in the token
// tables bindToken populated during Build.

func (u *Universe) ResolveMethod(tok cil.Token) (cil.MethodIdentity, error) {
	m, ok := u.tokenMethod[tok]
	if !ok {
		return nil, fmt.Errorf("fixture: unresolved method token %d", tok)
	}
	return m, nil
}

func (u *Universe) ResolveField(tok cil.Token) (cil.FieldIdentity, error) {
	f, ok := u.tokenField[tok]
	if !ok {
		return nil, fmt.Errorf("fixture: unresolved field token %d", tok)
	}
	return f, nil
}

func (u *Universe) ResolveType(tok cil.Token) (cil.TypeIdentity, error) {
	t, ok := u.tokenType[tok]
	if !ok {
		return nil, fmt.Errorf("fixture: unresolved type token %d", tok)
	}
	return t, nil
}

func (u *Universe) ResolveSignature(tok cil.Token) (cil.Signature, error) {
	sig, ok := u.tokenSig[tok]
	if !ok {
		return cil.Signature{}, fmt.Errorf("fixture: unresolved calli signature token %d", tok)
	}
	return sig, nil
}

func (u *Universe) ResolveString(tok cil.Token) error {
	if !u.tokenString[tok] {
		return fmt.Errorf("fixture: unresolved string token %d", tok)
	}
	return nil
}
