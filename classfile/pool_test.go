package classfile

import (
	"errors"
	"testing"
)

func TestPoolDeduplicates(t *testing.T) {
	p := NewConstantPool()
	a := p.AddFieldref("demo/Box", "value", "Ljava/lang/Object;")
	b := p.AddFieldref("demo/Box", "value", "Ljava/lang/Object;")
	if a != b {
		t.Errorf("same Fieldref got indices %d and %d", a, b)
	}
	if p.AddUtf8("demo/Box") != p.AddUtf8("demo/Box") {
		t.Error("Utf8 not deduplicated")
	}
	if p.AddInteger(0x3F800000) == p.AddFloat(1) {
		t.Error("Integer and Float with equal bits must not share an entry")
	}
}

func TestPoolWideEntries(t *testing.T) {
	p := NewConstantPool()
	l := p.AddLong(42)
	next := p.AddUtf8("x")
	if next != l+2 {
		t.Errorf("entry after long = %d, want %d", next, l+2)
	}
	if _, ok := p.Entry(l + 1); ok {
		t.Error("slot after a long must be unusable")
	}
	d := p.AddDouble(1.5)
	if p.Count() != int(d)+2 {
		t.Errorf("Count = %d, want %d", p.Count(), d+2)
	}
}

func TestPoolLookup(t *testing.T) {
	p := NewConstantPool()
	if _, ok := p.LookupFieldref("demo/Box", "value", "I"); ok {
		t.Error("lookup on empty pool should fail")
	}
	idx := p.AddFieldref("demo/Box", "value", "I")
	got, ok := p.LookupFieldref("demo/Box", "value", "I")
	if !ok || got != idx {
		t.Errorf("LookupFieldref = %d, %v; want %d, true", got, ok, idx)
	}
	if _, ok := p.LookupFieldref("demo/Box", "other", "I"); ok {
		t.Error("lookup of an absent field should fail")
	}
	if _, ok := p.LookupMethodref("demo/Box", "value", "I"); ok {
		t.Error("a Fieldref must not satisfy a Methodref lookup")
	}
	before := p.Count()
	p.LookupFieldref("demo/Other", "value", "I")
	if p.Count() != before {
		t.Error("lookup must not add entries")
	}

	owner, name, desc, err := p.MemberRef(idx)
	if err != nil || owner != "demo/Box" || name != "value" || desc != "I" {
		t.Errorf("MemberRef = %q %q %q %v", owner, name, desc, err)
	}
	if s := p.Describe(idx); s != "demo/Box.value:I" {
		t.Errorf("Describe = %q", s)
	}
}

func TestPoolRoundTrip(t *testing.T) {
	p := NewConstantPool()
	p.AddUtf8("plain")
	p.AddUtf8("nul\x00and é and \U0001F600")
	p.AddInteger(-7)
	p.AddFloat(2.5)
	p.AddLong(-1)
	p.AddDouble(3.25)
	p.AddString("hello")
	p.AddMethodref("demo/Box", "get", "()Ljava/lang/Object;")
	p.AddInterfaceMethodref("java/util/List", "size", "()I")
	p.AddMethodType("()V")

	data := p.appendTo(nil)
	q, pos, err := readPool(data, 0)
	if err != nil {
		t.Fatalf("readPool: %v", err)
	}
	if pos != len(data) {
		t.Errorf("consumed %d of %d bytes", pos, len(data))
	}
	if q.Count() != p.Count() {
		t.Fatalf("Count = %d, want %d", q.Count(), p.Count())
	}
	for i := 1; i < p.Count(); i++ {
		want, wok := p.Entry(uint16(i))
		got, gok := q.Entry(uint16(i))
		if wok != gok || want != got {
			t.Errorf("entry %d = %+v, want %+v", i, got, want)
		}
	}
}

func TestModifiedUTF8(t *testing.T) {
	enc := encodeModifiedUTF8("a\x00b")
	want := []byte{'a', 0xC0, 0x80, 'b'}
	if string(enc) != string(want) {
		t.Errorf("encode = % X, want % X", enc, want)
	}
	// supplementary characters become two three-byte surrogates
	if n := len(encodeModifiedUTF8("\U0001F600")); n != 6 {
		t.Errorf("supplementary length = %d, want 6", n)
	}
}

func TestReadPoolErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrTruncatedClass},
		{"missing entry", []byte{0, 2}, ErrTruncatedClass},
		{"bad tag", []byte{0, 2, 2}, ErrMalformedClass},
		{"short utf8", []byte{0, 2, 1, 0, 5, 'a'}, ErrTruncatedClass},
		{"short long", []byte{0, 3, 5, 0, 0, 0}, ErrTruncatedClass},
	}
	for _, tt := range tests {
		_, _, err := readPool(tt.data, 0)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
}
