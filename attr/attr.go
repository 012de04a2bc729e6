// Package attr implements the type-hint class-file attributes.
//
// Every attribute type has a Name, a MarshalBinary producing the payload
// (without the name index and length framing, which the class writer adds)
// and an UnmarshalBinary accepting that payload. All integers are
// big-endian. Codecs check only the wire shape: counts, lengths and
// trailing bytes. They never check what an index refers to.
package attr

import (
	"errors"
	"fmt"
	"sort"
)

// Attribute names as they appear in the constant pool.
const (
	NameInvokeReturnType         = "InvokeReturnType"
	NameInstructionTypeArguments = "InstructionTypeArguments"
	NameMethodParameterType      = "MethodParameterType"
	NameFieldType                = "FieldType"
	NameMethodReturnType         = "MethodReturnType"
	NameClassTypeParameterCount  = "ClassTypeParameterCount"
	NameMethodTypeParameterCount = "MethodTypeParameterCount"
	NameClassTypeParamList       = "ClassTypeParamList"
	NameExtraBoxUnbox            = "ExtraBoxUnbox"
	NameBCNewTypeArgs            = "BCNewTypeArgs"
)

var (
	ErrUnknownAttribute = errors.New("unknown attribute")
	ErrTooMany          = errors.New("too many entries for a u2 count")
	ErrTruncated        = errors.New("unexpected end of attribute")
	ErrTrailingData     = errors.New("trailing data after attribute")
	ErrMalformed        = errors.New("malformed attribute")
	ErrNotInPool        = errors.New("field reference not in constant pool")
)

// Attribute is an encodable class-file attribute.
type Attribute interface {
	Name() string
	MarshalBinary() ([]byte, error)
}

// Decoder is an Attribute that can be filled from its payload.
type Decoder interface {
	Attribute
	UnmarshalBinary(data []byte) error
}

var registry = map[string]func() Decoder{
	NameInvokeReturnType:         func() Decoder { return new(InvokeReturnType) },
	NameInstructionTypeArguments: func() Decoder { return new(InstructionTypeArguments) },
	NameMethodParameterType:      func() Decoder { return new(MethodParameterType) },
	NameFieldType:                func() Decoder { return new(FieldType) },
	NameMethodReturnType:         func() Decoder { return new(MethodReturnType) },
	NameClassTypeParameterCount:  func() Decoder { return new(ClassTypeParameterCount) },
	NameMethodTypeParameterCount: func() Decoder { return new(MethodTypeParameterCount) },
	NameClassTypeParamList:       func() Decoder { return new(ClassTypeParamList) },
	NameExtraBoxUnbox:            func() Decoder { return new(ExtraBoxUnbox) },
	NameBCNewTypeArgs:            func() Decoder { return new(BCNewTypeArgs) },
}

// Known reports whether name is one of the type-hint attributes.
func Known(name string) bool {
	_, ok := registry[name]
	return ok
}

// Names returns the type-hint attribute names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Decode decodes the payload of the named attribute.
func Decode(name string, data []byte) (Decoder, error) {
	newAttr, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
	}
	a := newAttr()
	if err := a.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return a, nil
}
