package classfile

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

type payload struct {
	name string
	data []byte
}

func (p payload) Name() string                   { return p.name }
func (p payload) MarshalBinary() ([]byte, error) { return p.data, nil }

type failing struct{}

func (failing) Name() string                   { return "Broken" }
func (failing) MarshalBinary() ([]byte, error) { return nil, errors.New("boom") }

func buildBoxClass(t testing.TB) *Class {
	t.Helper()
	c := NewClass(AccPublic|AccSuper, "demo/Box", "java/lang/Object")
	c.Interfaces = []string{"java/io/Serializable"}
	f := c.AddField(AccPrivate, "value", "Ljava/lang/Object;")
	f.AddAttribute(payload{"FieldType", []byte{'K', 0, 3}})

	m := c.AddMethod(AccPublic, "get", "()Ljava/lang/Object;")
	b := NewBuilder()
	b.Line(7)
	b.EmitVar(OpAload, 0)
	b.EmitRef(OpGetfield, c.Pool.AddFieldref("demo/Box", "value", "Ljava/lang/Object;"))
	b.Emit(OpAreturn)
	m.Code = b.Finish()
	m.MaxStack, m.MaxLocals = 1, 1
	m.AddAttribute(payload{"InvokeReturnType", []byte{0, 0}})

	c.AddMethod(AccPublic|AccAbstract, "size", "()I")
	c.AddAttribute(payload{"ClassTypeParameterCount", []byte{0, 1}})
	return c
}

func TestClassRoundTrip(t *testing.T) {
	data, err := buildBoxClass(t).MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	cf, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cf.Name != "demo/Box" || cf.Super != "java/lang/Object" {
		t.Errorf("class = %s extends %s", cf.Name, cf.Super)
	}
	if cf.Major != DefaultMajor || cf.Minor != DefaultMinor {
		t.Errorf("version = %d.%d", cf.Major, cf.Minor)
	}
	if len(cf.Interfaces) != 1 || cf.Interfaces[0] != "java/io/Serializable" {
		t.Errorf("interfaces = %v", cf.Interfaces)
	}
	if len(cf.Fields) != 1 || len(cf.Methods) != 2 {
		t.Fatalf("fields=%d methods=%d", len(cf.Fields), len(cf.Methods))
	}
	if a, ok := cf.Fields[0].Attribute("FieldType"); !ok || !bytes.Equal(a.Data, []byte{'K', 0, 3}) {
		t.Errorf("FieldType = %v, %v", a, ok)
	}
	if len(cf.Attributes) != 1 || cf.Attributes[0].AttrName != "ClassTypeParameterCount" {
		t.Errorf("class attributes = %v", cf.Attributes)
	}

	get := cf.Methods[0]
	if get.Name != "get" || get.Desc != "()Ljava/lang/Object;" {
		t.Errorf("method = %s%s", get.Name, get.Desc)
	}
	if len(get.Attributes) != 2 || get.Attributes[0].AttrName != "Code" || get.Attributes[1].AttrName != "InvokeReturnType" {
		t.Errorf("method attributes = %v", get.Attributes)
	}
	code, err := get.Code(cf.Pool)
	if err != nil || code == nil {
		t.Fatalf("Code = %v, %v", code, err)
	}
	if code.MaxStack != 1 || code.MaxLocals != 1 {
		t.Errorf("max stack/locals = %d/%d", code.MaxStack, code.MaxLocals)
	}
	if len(code.Code) != 5 || code.Code[0] != byte(OpAload0) || code.Code[4] != byte(OpAreturn) {
		t.Errorf("code = % X", code.Code)
	}
	if len(code.Attributes) != 1 || code.Attributes[0].AttrName != "LineNumberTable" {
		t.Errorf("code attributes = %v", code.Attributes)
	}

	if c, err := cf.Methods[1].Code(cf.Pool); c != nil || err != nil {
		t.Errorf("abstract method Code = %v, %v", c, err)
	}
}

func TestClassMarshalAttributeError(t *testing.T) {
	c := NewClass(AccPublic, "demo/Broken", "java/lang/Object")
	c.AddAttribute(failing{})
	if _, err := c.MarshalBinary(); err == nil || !strings.Contains(err.Error(), "Broken") {
		t.Errorf("err = %v, want attribute failure", err)
	}
}

func TestClassMarshalAssemblyError(t *testing.T) {
	c := NewClass(AccPublic, "demo/Broken", "java/lang/Object")
	m := c.AddMethod(AccPublic, "bad", "()V")
	b := NewBuilder()
	b.Emit(OpWide)
	m.Code = b.Finish()
	if _, err := c.MarshalBinary(); !errors.Is(err, ErrWideOpcode) {
		t.Errorf("err = %v, want ErrWideOpcode", err)
	}
}

func TestParseErrors(t *testing.T) {
	good, err := buildBoxClass(t).MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrTruncatedClass},
		{"bad magic", []byte{0xCA, 0xFE, 0xD0, 0x0D, 0, 0, 0, 52}, ErrNotClassFile},
		{"truncated", good[:len(good)-3], ErrTruncatedClass},
		{"trailing", append(append([]byte{}, good...), 0), ErrMalformedClass},
	}
	for _, tt := range tests {
		if _, err := Parse(tt.data); !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestDecodeCode(t *testing.T) {
	p := NewConstantPool()
	ref := p.AddMethodref("demo/Box", "get", "()Ljava/lang/Object;")
	b := NewBuilder()
	dflt := b.NewLabel()
	b.EmitVar(OpAload, 0)
	b.EmitRef(OpInvokevirtual, ref)
	b.EmitVar(OpIload, 300)
	b.EmitIinc(2, 500)
	b.EmitLookupSwitch(dflt, []int32{3}, []Label{dflt})
	b.Mark(dflt)
	b.Emit(OpReturn)
	a := assemble(t, b)

	got, err := DecodeCode(a.Code, p)
	if err != nil {
		t.Fatalf("DecodeCode: %v", err)
	}
	wantOffsets := []int{0, 1, 4, 8, 14, 32}
	if len(got) != len(wantOffsets) {
		t.Fatalf("decoded %d instructions, want %d: %+v", len(got), len(wantOffsets), got)
	}
	for i, d := range got {
		if d.Offset != wantOffsets[i] {
			t.Errorf("insn %d offset = %d, want %d", i, d.Offset, wantOffsets[i])
		}
	}
	if !strings.Contains(got[1].Text, "demo/Box.get") {
		t.Errorf("invokevirtual text = %q", got[1].Text)
	}
	if !got[2].Wide || got[2].Op != OpIload {
		t.Errorf("wide load decoded as %+v", got[2])
	}
}

func TestDecodeCodeTruncated(t *testing.T) {
	if _, err := DecodeCode([]byte{byte(OpSipush), 1}, nil); !errors.Is(err, ErrTruncatedClass) {
		t.Errorf("err = %v, want ErrTruncatedClass", err)
	}
	if _, err := DecodeCode([]byte{0xFE}, nil); !errors.Is(err, ErrUnknownOpcode) {
		t.Errorf("err = %v, want ErrUnknownOpcode", err)
	}
}

// FuzzParse checks that the reader never panics on arbitrary input.
func FuzzParse(f *testing.F) {
	good, err := buildBoxClass(f).MarshalBinary()
	if err != nil {
		f.Fatal(err)
	}
	f.Add(good)
	f.Add([]byte{0xCA, 0xFE, 0xBA, 0xBE})
	f.Fuzz(func(t *testing.T, data []byte) {
		cf, err := Parse(data)
		if err != nil {
			return
		}
		for _, m := range cf.Methods {
			if code, err := m.Code(cf.Pool); err == nil && code != nil {
				DecodeCode(code.Code, cf.Pool)
			}
		}
	})
}
