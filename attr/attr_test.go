package attr

import (
	"bytes"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/chazu/typehints/hint"
)

// samples pairs each attribute with its exact payload.
func samples() []struct {
	attr Decoder
	want []byte
} {
	return []struct {
		attr Decoder
		want []byte
	}{
		{
			&InvokeReturnType{Hints: []hint.SlotHint{
				{Offset: 1, Type: hint.SlotType{Kind: hint.SlotClass, Index: 7}},
				{Offset: 0x0102, Type: hint.SlotType{Kind: hint.SlotClassArray, Outer: 3, Index: 0xBEEF}},
			}},
			[]byte{0, 2, 0, 1, 'K', 0, 0, 0, 7, 0x01, 0x02, 'k', 0, 3, 0xBE, 0xEF},
		},
		{
			&InstructionTypeArguments{Hints: []hint.ArgHint{
				{Offset: 4, Types: []hint.ArgType{hint.Int, hint.ClassArg(9)}},
				{Offset: 12, Types: []hint.ArgType{}},
			}},
			[]byte{0, 2, 0, 4, 0, 2, 'I', 0, 0, 'K', 0, 9, 0, 12, 0, 0},
		},
		{
			&MethodParameterType{Params: []hint.OptSlot{
				hint.Some(hint.SlotType{Kind: hint.SlotMethod, Index: 2}),
				hint.NoHint,
			}},
			[]byte{0, 2, 'M', 0, 2, 0, 0, 0},
		},
		{&FieldType{Type: hint.SlotType{Kind: hint.SlotClass, Index: 5}}, []byte{'K', 0, 5}},
		{&MethodReturnType{Type: hint.SlotType{Kind: hint.SlotMethodArray, Index: 1}}, []byte{'m', 0, 1}},
		{&ClassTypeParameterCount{Count: 2}, []byte{0, 2}},
		{&MethodTypeParameterCount{Count: 0x0100}, []byte{1, 0}},
		{&ClassTypeParamList{FieldRefs: []uint16{10, 11}}, []byte{0, 2, 0, 10, 0, 11}},
		{&ExtraBoxUnbox{Offsets: []uint16{3, 300}}, []byte{0, 2, 0, 3, 0x01, 0x2C}},
		{
			&BCNewTypeArgs{Entries: []NewTypeArgs{
				{Offset: 8, Locals: []uint16{1, 2}},
				{Offset: 20, Locals: []uint16{}},
			}},
			[]byte{0, 2, 0, 8, 0, 2, 0, 1, 0, 2, 0, 20, 0, 0},
		},
	}
}

func TestEncode(t *testing.T) {
	for _, tt := range samples() {
		got, err := tt.attr.MarshalBinary()
		if err != nil {
			t.Errorf("%s: MarshalBinary: %v", tt.attr.Name(), err)
			continue
		}
		if !bytes.Equal(got, tt.want) {
			t.Errorf("%s: encoded % X, want % X", tt.attr.Name(), got, tt.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, tt := range samples() {
		name := tt.attr.Name()
		data, err := tt.attr.MarshalBinary()
		if err != nil {
			t.Fatalf("%s: MarshalBinary: %v", name, err)
		}
		got, err := Decode(name, data)
		if err != nil {
			t.Errorf("%s: Decode: %v", name, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.attr) {
			t.Errorf("%s: decoded %v, want %v", name, got, tt.attr)
		}
		again, err := got.MarshalBinary()
		if err != nil || !bytes.Equal(again, data) {
			t.Errorf("%s: re-encoded % X (%v), want % X", name, again, err, data)
		}
	}
}

func TestEveryNameRegistered(t *testing.T) {
	seen := map[string]bool{}
	for _, tt := range samples() {
		seen[tt.attr.Name()] = true
	}
	names := Names()
	if len(names) != len(seen) {
		t.Errorf("registry has %d names, samples cover %d", len(names), len(seen))
	}
	for _, n := range names {
		if !seen[n] {
			t.Errorf("no sample for %s", n)
		}
		if !Known(n) {
			t.Errorf("Known(%q) = false", n)
		}
	}
}

func TestClassTypeParameterCountDecodesOwnType(t *testing.T) {
	a, err := Decode(NameClassTypeParameterCount, []byte{0, 3})
	if err != nil {
		t.Fatal(err)
	}
	c, ok := a.(*ClassTypeParameterCount)
	if !ok {
		t.Fatalf("decoded %T, want *ClassTypeParameterCount", a)
	}
	if c.Count != 3 || c.Name() != NameClassTypeParameterCount {
		t.Errorf("decoded %v", c)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"Signature", nil, ErrUnknownAttribute},
		{NameInvokeReturnType, nil, ErrTruncated},
		{NameInvokeReturnType, []byte{0, 1, 0, 1, 'K', 0, 0, 0}, ErrTruncated},
		{NameInvokeReturnType, []byte{0, 0, 9}, ErrTrailingData},
		{NameInstructionTypeArguments, []byte{0, 1, 0, 4, 0, 2, 'I', 0, 0}, ErrTruncated},
		{NameMethodParameterType, []byte{0, 1, 0, 0, 5}, ErrMalformed},
		{NameFieldType, []byte{'K', 0}, ErrTruncated},
		{NameMethodReturnType, []byte{'K', 0, 1, 0}, ErrTrailingData},
		{NameClassTypeParameterCount, []byte{0}, ErrTruncated},
		{NameMethodTypeParameterCount, []byte{0, 1, 2}, ErrTrailingData},
		{NameClassTypeParamList, []byte{0xFF, 0xFF}, ErrTruncated},
		{NameExtraBoxUnbox, []byte{0, 1, 0}, ErrTruncated},
		{NameBCNewTypeArgs, []byte{0, 1, 0, 8, 0, 3, 0, 1}, ErrTruncated},
	}
	for _, tt := range tests {
		if _, err := Decode(tt.name, tt.data); !errors.Is(err, tt.want) {
			t.Errorf("%s % X: err = %v, want %v", tt.name, tt.data, err, tt.want)
		}
	}
}

func TestDecodeLeavesTargetOnError(t *testing.T) {
	a := ExtraBoxUnbox{Offsets: []uint16{1}}
	if err := a.UnmarshalBinary([]byte{0, 1, 0, 2, 0}); err == nil {
		t.Fatal("expected error")
	}
	if len(a.Offsets) != 1 || a.Offsets[0] != 1 {
		t.Errorf("target modified on error: %v", a.Offsets)
	}
}

func TestEncodeTooMany(t *testing.T) {
	big := make([]uint16, math.MaxUint16+1)
	tests := []Attribute{
		ExtraBoxUnbox{Offsets: big},
		ClassTypeParamList{FieldRefs: big},
		InvokeReturnType{Hints: make([]hint.SlotHint, math.MaxUint16+1)},
		InstructionTypeArguments{Hints: []hint.ArgHint{{Types: make([]hint.ArgType, math.MaxUint16+1)}}},
		BCNewTypeArgs{Entries: []NewTypeArgs{{Locals: big}}},
		MethodParameterType{Params: make([]hint.OptSlot, math.MaxUint16+1)},
	}
	for _, a := range tests {
		if _, err := a.MarshalBinary(); !errors.Is(err, ErrTooMany) {
			t.Errorf("%s: err = %v, want ErrTooMany", a.Name(), err)
		}
	}
}

func TestEncodeRejectsUnrepresentable(t *testing.T) {
	tests := []Attribute{
		FieldType{Type: hint.SlotType{Kind: hint.SlotClassArray, Outer: 1, Index: 2}},
		MethodParameterType{Params: []hint.OptSlot{hint.Some(hint.SlotType{Index: 4})}},
	}
	for _, a := range tests {
		if _, err := a.MarshalBinary(); !errors.Is(err, ErrMalformed) {
			t.Errorf("%s: err = %v, want ErrMalformed", a.Name(), err)
		}
	}
}

type fakePool map[string]uint16

func (p fakePool) LookupFieldref(owner, name, desc string) (uint16, bool) {
	idx, ok := p[owner+"."+name+":"+desc]
	return idx, ok
}

func (p fakePool) MemberRef(index uint16) (string, string, string, error) {
	for k, v := range p {
		if v == index {
			var owner, name string
			for i := 0; i < len(k); i++ {
				if k[i] == '.' {
					owner, name = k[:i], k[i+1:len(k)-2]
					break
				}
			}
			return owner, name, "B", nil
		}
	}
	return "", "", "", errors.New("no such entry")
}

func TestNewClassTypeParamList(t *testing.T) {
	pool := fakePool{"demo/Box.T:B": 21, "demo/Box.U:B": 22}
	a, err := NewClassTypeParamList(pool, "demo/Box", []string{"U", "T"})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a.FieldRefs, []uint16{22, 21}) {
		t.Errorf("FieldRefs = %v", a.FieldRefs)
	}
	names, err := a.FieldNames(pool)
	if err != nil || !reflect.DeepEqual(names, []string{"U", "T"}) {
		t.Errorf("FieldNames = %v, %v", names, err)
	}

	if _, err := NewClassTypeParamList(pool, "demo/Box", []string{"T", "V"}); !errors.Is(err, ErrNotInPool) {
		t.Errorf("err = %v, want ErrNotInPool", err)
	}
}

func TestCBORRecords(t *testing.T) {
	var recs []*Record
	for _, tt := range samples() {
		rec, err := NewRecord(tt.attr)
		if err != nil {
			t.Fatalf("%s: %v", tt.attr.Name(), err)
		}
		recs = append(recs, rec)
	}
	data, err := MarshalRecords(recs)
	if err != nil {
		t.Fatalf("MarshalRecords: %v", err)
	}
	again, err := MarshalRecords(recs)
	if err != nil || !bytes.Equal(data, again) {
		t.Error("canonical encoding is not deterministic")
	}

	back, err := UnmarshalRecords(data)
	if err != nil {
		t.Fatalf("UnmarshalRecords: %v", err)
	}
	if len(back) != len(recs) {
		t.Fatalf("got %d records, want %d", len(back), len(recs))
	}
	for i, rec := range back {
		a, err := rec.Attribute()
		if err != nil {
			t.Errorf("record %d: %v", i, err)
			continue
		}
		if !reflect.DeepEqual(a, samples()[i].attr) {
			t.Errorf("record %d = %v, want %v", i, a, samples()[i].attr)
		}
	}
}

func FuzzDecode(f *testing.F) {
	for _, tt := range samples() {
		f.Add(tt.attr.Name(), tt.want)
	}
	f.Fuzz(func(t *testing.T, name string, data []byte) {
		a, err := Decode(name, data)
		if err != nil {
			return
		}
		again, err := a.MarshalBinary()
		if err != nil {
			t.Fatalf("%s: decoded % X but cannot re-encode: %v", name, data, err)
		}
		if !bytes.Equal(again, data) {
			t.Fatalf("%s: re-encoded % X, want % X", name, again, data)
		}
	})
}
