package attr

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/chazu/typehints/hint"
)

// appendSlot writes a {u1 kind, u2 index} pair. These layouts have no room
// for an outer-class index.
func appendSlot(buf []byte, t hint.SlotType) ([]byte, error) {
	if t.Outer != 0 {
		return nil, fmt.Errorf("%w: outer index %d cannot be encoded in a kind/index pair", ErrMalformed, t.Outer)
	}
	buf = append(buf, byte(t.Kind))
	return binary.BigEndian.AppendUint16(buf, t.Index), nil
}

func readSlot(p *payload) (hint.SlotType, error) {
	kind, err := p.u1("kind")
	if err != nil {
		return hint.SlotType{}, err
	}
	index, err := p.u2("index")
	if err != nil {
		return hint.SlotType{}, err
	}
	return hint.SlotType{Kind: hint.SlotKind(kind), Index: index}, nil
}

// MethodParameterType records one type per declared parameter. Positions
// are significant, so a parameter without a hint is written as kind 0,
// index 0 and reads back as hint.NoHint.
//
//	u2 n, {u1 kind, u2 index}×n
type MethodParameterType struct {
	Params []hint.OptSlot
}

func (MethodParameterType) Name() string { return NameMethodParameterType }

func (a MethodParameterType) MarshalBinary() ([]byte, error) {
	buf, err := appendCount(make([]byte, 0, 2+3*len(a.Params)), len(a.Params), "parameters")
	if err != nil {
		return nil, err
	}
	for i, opt := range a.Params {
		t, ok := opt.Get()
		if !ok {
			buf = append(buf, 0, 0, 0)
			continue
		}
		if t.Kind == 0 {
			return nil, fmt.Errorf("%w: parameter %d has kind 0", ErrMalformed, i)
		}
		if buf, err = appendSlot(buf, t); err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i, err)
		}
	}
	return buf, nil
}

func (a *MethodParameterType) UnmarshalBinary(data []byte) error {
	p := &payload{data: data}
	n, err := p.count("parameters", 3)
	if err != nil {
		return err
	}
	params := make([]hint.OptSlot, n)
	for i := range params {
		t, _ := readSlot(p)
		switch {
		case t.Kind != 0:
			params[i] = hint.Some(t)
		case t.Index != 0:
			return fmt.Errorf("%w: parameter %d has no kind but index %d", ErrMalformed, i, t.Index)
		default:
			params[i] = hint.NoHint
		}
	}
	if err := p.done(); err != nil {
		return err
	}
	a.Params = params
	return nil
}

func (a MethodParameterType) String() string {
	parts := make([]string, len(a.Params))
	for i, opt := range a.Params {
		parts[i] = opt.String()
	}
	return "MethodParameterType[" + strings.Join(parts, ", ") + "]"
}

// FieldType records the generic type of a field.
//
//	u1 kind, u2 index
type FieldType struct {
	Type hint.SlotType
}

func (FieldType) Name() string { return NameFieldType }

func (a FieldType) MarshalBinary() ([]byte, error) {
	return appendSlot(make([]byte, 0, 3), a.Type)
}

func (a *FieldType) UnmarshalBinary(data []byte) error {
	p := &payload{data: data}
	t, err := readSlot(p)
	if err != nil {
		return err
	}
	if err := p.done(); err != nil {
		return err
	}
	a.Type = t
	return nil
}

func (a FieldType) String() string { return "FieldType{" + a.Type.String() + "}" }

// MethodReturnType records the generic return type of a method.
//
//	u1 kind, u2 index
type MethodReturnType struct {
	Type hint.SlotType
}

func (MethodReturnType) Name() string { return NameMethodReturnType }

func (a MethodReturnType) MarshalBinary() ([]byte, error) {
	return appendSlot(make([]byte, 0, 3), a.Type)
}

func (a *MethodReturnType) UnmarshalBinary(data []byte) error {
	p := &payload{data: data}
	t, err := readSlot(p)
	if err != nil {
		return err
	}
	if err := p.done(); err != nil {
		return err
	}
	a.Type = t
	return nil
}

func (a MethodReturnType) String() string { return "MethodReturnType{" + a.Type.String() + "}" }

func unmarshalCount(data []byte) (uint16, error) {
	p := &payload{data: data}
	n, err := p.u2("count")
	if err != nil {
		return 0, err
	}
	return n, p.done()
}

// ClassTypeParameterCount is the number of type parameters a class
// declares.
//
//	u2 count
type ClassTypeParameterCount struct {
	Count uint16
}

func (ClassTypeParameterCount) Name() string { return NameClassTypeParameterCount }

func (a ClassTypeParameterCount) MarshalBinary() ([]byte, error) {
	return binary.BigEndian.AppendUint16(nil, a.Count), nil
}

func (a *ClassTypeParameterCount) UnmarshalBinary(data []byte) error {
	n, err := unmarshalCount(data)
	if err != nil {
		return err
	}
	a.Count = n
	return nil
}

func (a ClassTypeParameterCount) String() string {
	return fmt.Sprintf("ClassTypeParameterCount{%d}", a.Count)
}

// MethodTypeParameterCount is the number of type parameters a method
// declares.
//
//	u2 count
type MethodTypeParameterCount struct {
	Count uint16
}

func (MethodTypeParameterCount) Name() string { return NameMethodTypeParameterCount }

func (a MethodTypeParameterCount) MarshalBinary() ([]byte, error) {
	return binary.BigEndian.AppendUint16(nil, a.Count), nil
}

func (a *MethodTypeParameterCount) UnmarshalBinary(data []byte) error {
	n, err := unmarshalCount(data)
	if err != nil {
		return err
	}
	a.Count = n
	return nil
}

func (a MethodTypeParameterCount) String() string {
	return fmt.Sprintf("MethodTypeParameterCount{%d}", a.Count)
}

// TypeParamFieldDesc is the descriptor of the synthetic fields that carry
// a class's type parameters.
const TypeParamFieldDesc = "B"

// FieldResolver finds existing Fieldref entries in a constant pool.
type FieldResolver interface {
	LookupFieldref(owner, name, desc string) (uint16, bool)
}

// MemberResolver resolves member references back to names.
type MemberResolver interface {
	MemberRef(index uint16) (owner, name, desc string, err error)
}

// ClassTypeParamList points at the fields that hold a class's type
// parameters, one Fieldref per parameter in declaration order.
//
//	u2 n, u2 fieldRef×n
type ClassTypeParamList struct {
	FieldRefs []uint16
}

// NewClassTypeParamList resolves the type-parameter fields of owner. Each
// field must already have a Fieldref in the pool.
func NewClassTypeParamList(pool FieldResolver, owner string, fieldNames []string) (*ClassTypeParamList, error) {
	refs := make([]uint16, len(fieldNames))
	for i, name := range fieldNames {
		idx, ok := pool.LookupFieldref(owner, name, TypeParamFieldDesc)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s:%s", ErrNotInPool, owner, name, TypeParamFieldDesc)
		}
		refs[i] = idx
	}
	return &ClassTypeParamList{FieldRefs: refs}, nil
}

func (ClassTypeParamList) Name() string { return NameClassTypeParamList }

func (a ClassTypeParamList) MarshalBinary() ([]byte, error) {
	buf, err := appendCount(make([]byte, 0, 2+2*len(a.FieldRefs)), len(a.FieldRefs), "type parameter fields")
	if err != nil {
		return nil, err
	}
	for _, ref := range a.FieldRefs {
		buf = binary.BigEndian.AppendUint16(buf, ref)
	}
	return buf, nil
}

func (a *ClassTypeParamList) UnmarshalBinary(data []byte) error {
	p := &payload{data: data}
	n, err := p.count("type parameter fields", 2)
	if err != nil {
		return err
	}
	refs := make([]uint16, n)
	for i := range refs {
		refs[i], _ = p.u2("field ref")
	}
	if err := p.done(); err != nil {
		return err
	}
	a.FieldRefs = refs
	return nil
}

// FieldNames resolves the referenced fields back to their names.
func (a ClassTypeParamList) FieldNames(pool MemberResolver) ([]string, error) {
	names := make([]string, len(a.FieldRefs))
	for i, ref := range a.FieldRefs {
		_, name, _, err := pool.MemberRef(ref)
		if err != nil {
			return nil, err
		}
		names[i] = name
	}
	return names, nil
}

func (a ClassTypeParamList) String() string {
	return fmt.Sprintf("ClassTypeParamList%v", a.FieldRefs)
}
