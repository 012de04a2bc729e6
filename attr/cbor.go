package attr

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/typehints/hint"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("attr: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Record is the CBOR form of one attribute. Raw is the class-file payload
// and is authoritative; Value is a readable view of the decoded fields.
// Owner optionally names the declaration carrying the attribute.
type Record struct {
	Owner string `cbor:"owner,omitempty"`
	Name  string `cbor:"name"`
	Raw   []byte `cbor:"raw"`
	Value any    `cbor:"value,omitempty"`
}

// NewRecord encodes a into its record form.
func NewRecord(a Attribute) (*Record, error) {
	raw, err := a.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return &Record{Name: a.Name(), Raw: raw, Value: view(a)}, nil
}

// Attribute decodes the record's payload.
func (r *Record) Attribute() (Decoder, error) {
	return Decode(r.Name, r.Raw)
}

// MarshalCBOR serializes an attribute to canonical CBOR.
func MarshalCBOR(a Attribute) ([]byte, error) {
	rec, err := NewRecord(a)
	if err != nil {
		return nil, err
	}
	return MarshalRecords([]*Record{rec})
}

// MarshalRecords serializes a list of records to canonical CBOR.
func MarshalRecords(recs []*Record) ([]byte, error) {
	return cborEncMode.Marshal(recs)
}

// UnmarshalRecords deserializes records written by MarshalRecords.
func UnmarshalRecords(data []byte) ([]*Record, error) {
	var recs []*Record
	if err := cbor.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("attr: unmarshal records: %w", err)
	}
	return recs, nil
}

// view converts a to a method-free struct so CBOR encodes its fields
// instead of calling MarshalBinary. Absent parameter hints become nil.
func view(a Attribute) any {
	if rv := reflect.ValueOf(a); rv.Kind() == reflect.Pointer && !rv.IsNil() {
		a = rv.Elem().Interface().(Attribute)
	}
	switch v := a.(type) {
	case InvokeReturnType:
		return struct{ Hints []hint.SlotHint }(v)
	case InstructionTypeArguments:
		return struct{ Hints []hint.ArgHint }(v)
	case MethodParameterType:
		return paramView(v)
	case FieldType:
		return struct{ Type hint.SlotType }(v)
	case MethodReturnType:
		return struct{ Type hint.SlotType }(v)
	case ClassTypeParameterCount:
		return struct{ Count uint16 }(v)
	case MethodTypeParameterCount:
		return struct{ Count uint16 }(v)
	case ClassTypeParamList:
		return struct{ FieldRefs []uint16 }(v)
	case ExtraBoxUnbox:
		return struct{ Offsets []uint16 }(v)
	case BCNewTypeArgs:
		return struct{ Entries []NewTypeArgs }(v)
	}
	return nil
}

func paramView(a MethodParameterType) []*hint.SlotType {
	out := make([]*hint.SlotType, len(a.Params))
	for i, opt := range a.Params {
		if t, ok := opt.Get(); ok {
			out[i] = &t
		}
	}
	return out
}
