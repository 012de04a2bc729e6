package classfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf16"
	"unicode/utf8"
)

// ConstantTag identifies the kind of a constant-pool entry.
type ConstantTag uint8

const (
	TagUtf8               ConstantTag = 1
	TagInteger            ConstantTag = 3
	TagFloat              ConstantTag = 4
	TagLong               ConstantTag = 5
	TagDouble             ConstantTag = 6
	TagClass              ConstantTag = 7
	TagString             ConstantTag = 8
	TagFieldref           ConstantTag = 9
	TagMethodref          ConstantTag = 10
	TagInterfaceMethodref ConstantTag = 11
	TagNameAndType        ConstantTag = 12
	TagMethodHandle       ConstantTag = 15
	TagMethodType         ConstantTag = 16
	TagDynamic            ConstantTag = 17
	TagInvokeDynamic      ConstantTag = 18
	TagModule             ConstantTag = 19
	TagPackage            ConstantTag = 20
)

// ErrPoolOverflow is reported when a pool would exceed 65535 slots.
var ErrPoolOverflow = errors.New("constant pool overflow")

// Constant is one constant-pool entry. Str holds Utf8 text; Bits holds the
// raw bits of numeric entries; Ref1/Ref2 hold the indices of reference
// entries in the order the class-file format lists them.
type Constant struct {
	Tag     ConstantTag
	Str     string
	Bits    uint64
	Ref1    uint16
	Ref2    uint16
	RefKind uint8
}

// slots returns how many pool indices the entry occupies.
func (c Constant) slots() int {
	if c.Tag == TagLong || c.Tag == TagDouble {
		return 2
	}
	return 1
}

// ConstantPool assigns indices to constants. Identical constants share an
// index. Index 0 is never used.
type ConstantPool struct {
	entries []Constant // entries[i] is pool index i; index 0 and the slot after long/double stay zero
	index   map[Constant]uint16
	err     error
}

// NewConstantPool creates an empty pool.
func NewConstantPool() *ConstantPool {
	return &ConstantPool{
		entries: make([]Constant, 1, 64),
		index:   make(map[Constant]uint16),
	}
}

// Count returns the constant_pool_count value: one more than the highest
// index in use.
func (p *ConstantPool) Count() int {
	return len(p.entries)
}

// Err returns the first overflow error, if any.
func (p *ConstantPool) Err() error {
	return p.err
}

// Entry returns the constant at index, or false for unused indices.
func (p *ConstantPool) Entry(index uint16) (Constant, bool) {
	if index == 0 || int(index) >= len(p.entries) {
		return Constant{}, false
	}
	c := p.entries[index]
	if c.Tag == 0 {
		return Constant{}, false
	}
	return c, true
}

func (p *ConstantPool) add(c Constant) uint16 {
	if idx, ok := p.index[c]; ok {
		return idx
	}
	if len(p.entries)+c.slots() > math.MaxUint16+1 {
		if p.err == nil {
			p.err = fmt.Errorf("%w: adding %v", ErrPoolOverflow, c.Tag)
		}
		return 0
	}
	idx := uint16(len(p.entries))
	p.entries = append(p.entries, c)
	if c.slots() == 2 {
		p.entries = append(p.entries, Constant{})
	}
	p.index[c] = idx
	return idx
}

// AddUtf8 adds a Utf8 entry.
func (p *ConstantPool) AddUtf8(s string) uint16 {
	return p.add(Constant{Tag: TagUtf8, Str: s})
}

// AddInteger adds an Integer entry.
func (p *ConstantPool) AddInteger(v int32) uint16 {
	return p.add(Constant{Tag: TagInteger, Bits: uint64(uint32(v))})
}

// AddFloat adds a Float entry.
func (p *ConstantPool) AddFloat(v float32) uint16 {
	return p.add(Constant{Tag: TagFloat, Bits: uint64(math.Float32bits(v))})
}

// AddLong adds a Long entry, which occupies two indices.
func (p *ConstantPool) AddLong(v int64) uint16 {
	return p.add(Constant{Tag: TagLong, Bits: uint64(v)})
}

// AddDouble adds a Double entry, which occupies two indices.
func (p *ConstantPool) AddDouble(v float64) uint16 {
	return p.add(Constant{Tag: TagDouble, Bits: math.Float64bits(v)})
}

// AddString adds a String entry.
func (p *ConstantPool) AddString(s string) uint16 {
	return p.add(Constant{Tag: TagString, Ref1: p.AddUtf8(s)})
}

// AddClass adds a Class entry for an internal name such as java/lang/Object.
func (p *ConstantPool) AddClass(internalName string) uint16 {
	return p.add(Constant{Tag: TagClass, Ref1: p.AddUtf8(internalName)})
}

// AddNameAndType adds a NameAndType entry.
func (p *ConstantPool) AddNameAndType(name, desc string) uint16 {
	return p.add(Constant{Tag: TagNameAndType, Ref1: p.AddUtf8(name), Ref2: p.AddUtf8(desc)})
}

// AddFieldref adds a Fieldref entry.
func (p *ConstantPool) AddFieldref(owner, name, desc string) uint16 {
	return p.add(Constant{Tag: TagFieldref, Ref1: p.AddClass(owner), Ref2: p.AddNameAndType(name, desc)})
}

// AddMethodref adds a Methodref entry.
func (p *ConstantPool) AddMethodref(owner, name, desc string) uint16 {
	return p.add(Constant{Tag: TagMethodref, Ref1: p.AddClass(owner), Ref2: p.AddNameAndType(name, desc)})
}

// AddInterfaceMethodref adds an InterfaceMethodref entry.
func (p *ConstantPool) AddInterfaceMethodref(owner, name, desc string) uint16 {
	return p.add(Constant{Tag: TagInterfaceMethodref, Ref1: p.AddClass(owner), Ref2: p.AddNameAndType(name, desc)})
}

// AddMethodType adds a MethodType entry.
func (p *ConstantPool) AddMethodType(desc string) uint16 {
	return p.add(Constant{Tag: TagMethodType, Ref1: p.AddUtf8(desc)})
}

func (p *ConstantPool) lookup(c Constant) (uint16, bool) {
	idx, ok := p.index[c]
	return idx, ok
}

// LookupUtf8 returns the index of an existing Utf8 entry.
func (p *ConstantPool) LookupUtf8(s string) (uint16, bool) {
	return p.lookup(Constant{Tag: TagUtf8, Str: s})
}

// LookupClass returns the index of an existing Class entry.
func (p *ConstantPool) LookupClass(internalName string) (uint16, bool) {
	name, ok := p.LookupUtf8(internalName)
	if !ok {
		return 0, false
	}
	return p.lookup(Constant{Tag: TagClass, Ref1: name})
}

func (p *ConstantPool) lookupMember(tag ConstantTag, owner, name, desc string) (uint16, bool) {
	cls, ok := p.LookupClass(owner)
	if !ok {
		return 0, false
	}
	n, ok := p.LookupUtf8(name)
	if !ok {
		return 0, false
	}
	d, ok := p.LookupUtf8(desc)
	if !ok {
		return 0, false
	}
	nat, ok := p.lookup(Constant{Tag: TagNameAndType, Ref1: n, Ref2: d})
	if !ok {
		return 0, false
	}
	return p.lookup(Constant{Tag: tag, Ref1: cls, Ref2: nat})
}

// LookupFieldref returns the index of an existing Fieldref entry without
// adding one.
func (p *ConstantPool) LookupFieldref(owner, name, desc string) (uint16, bool) {
	return p.lookupMember(TagFieldref, owner, name, desc)
}

// LookupMethodref returns the index of an existing Methodref entry without
// adding one.
func (p *ConstantPool) LookupMethodref(owner, name, desc string) (uint16, bool) {
	return p.lookupMember(TagMethodref, owner, name, desc)
}

// Utf8 returns the text of the Utf8 entry at index.
func (p *ConstantPool) Utf8(index uint16) (string, error) {
	c, ok := p.Entry(index)
	if !ok || c.Tag != TagUtf8 {
		return "", fmt.Errorf("constant %d is not a Utf8 entry", index)
	}
	return c.Str, nil
}

// ClassName returns the internal name of the Class entry at index.
func (p *ConstantPool) ClassName(index uint16) (string, error) {
	c, ok := p.Entry(index)
	if !ok || c.Tag != TagClass {
		return "", fmt.Errorf("constant %d is not a Class entry", index)
	}
	return p.Utf8(c.Ref1)
}

// MemberRef resolves a Fieldref/Methodref/InterfaceMethodref entry to its
// owner, name and descriptor.
func (p *ConstantPool) MemberRef(index uint16) (owner, name, desc string, err error) {
	c, ok := p.Entry(index)
	if !ok || (c.Tag != TagFieldref && c.Tag != TagMethodref && c.Tag != TagInterfaceMethodref) {
		return "", "", "", fmt.Errorf("constant %d is not a member reference", index)
	}
	if owner, err = p.ClassName(c.Ref1); err != nil {
		return "", "", "", err
	}
	nat, ok := p.Entry(c.Ref2)
	if !ok || nat.Tag != TagNameAndType {
		return "", "", "", fmt.Errorf("constant %d is not a NameAndType entry", c.Ref2)
	}
	if name, err = p.Utf8(nat.Ref1); err != nil {
		return "", "", "", err
	}
	if desc, err = p.Utf8(nat.Ref2); err != nil {
		return "", "", "", err
	}
	return owner, name, desc, nil
}

// Describe renders the entry at index for diagnostics.
func (p *ConstantPool) Describe(index uint16) string {
	c, ok := p.Entry(index)
	if !ok {
		return fmt.Sprintf("#%d?", index)
	}
	switch c.Tag {
	case TagUtf8:
		return c.Str
	case TagClass:
		if s, err := p.ClassName(index); err == nil {
			return s
		}
	case TagFieldref, TagMethodref, TagInterfaceMethodref:
		if owner, name, desc, err := p.MemberRef(index); err == nil {
			return owner + "." + name + ":" + desc
		}
	}
	return fmt.Sprintf("#%d", index)
}

// appendTo writes constant_pool_count and the entries.
func (p *ConstantPool) appendTo(buf []byte) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(p.entries)))
	for i := 1; i < len(p.entries); i++ {
		c := p.entries[i]
		if c.Tag == 0 {
			continue // second slot of a long/double
		}
		buf = append(buf, byte(c.Tag))
		switch c.Tag {
		case TagUtf8:
			enc := encodeModifiedUTF8(c.Str)
			buf = binary.BigEndian.AppendUint16(buf, uint16(len(enc)))
			buf = append(buf, enc...)
		case TagInteger, TagFloat:
			buf = binary.BigEndian.AppendUint32(buf, uint32(c.Bits))
		case TagLong, TagDouble:
			buf = binary.BigEndian.AppendUint64(buf, c.Bits)
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			buf = binary.BigEndian.AppendUint16(buf, c.Ref1)
		case TagMethodHandle:
			buf = append(buf, c.RefKind)
			buf = binary.BigEndian.AppendUint16(buf, c.Ref1)
		default:
			buf = binary.BigEndian.AppendUint16(buf, c.Ref1)
			buf = binary.BigEndian.AppendUint16(buf, c.Ref2)
		}
	}
	return buf
}

// readPool parses a constant pool starting at data[pos:] and returns the
// position after it.
func readPool(data []byte, pos int) (*ConstantPool, int, error) {
	if pos+2 > len(data) {
		return nil, pos, fmt.Errorf("%w reading constant pool count", ErrTruncatedClass)
	}
	count := int(binary.BigEndian.Uint16(data[pos:]))
	pos += 2
	p := NewConstantPool()
	for i := 1; i < count; i++ {
		if pos >= len(data) {
			return nil, pos, fmt.Errorf("%w reading constant %d", ErrTruncatedClass, i)
		}
		c := Constant{Tag: ConstantTag(data[pos])}
		pos++
		need := 0
		switch c.Tag {
		case TagUtf8:
			if pos+2 > len(data) {
				return nil, pos, fmt.Errorf("%w reading constant %d length", ErrTruncatedClass, i)
			}
			n := int(binary.BigEndian.Uint16(data[pos:]))
			pos += 2
			if pos+n > len(data) {
				return nil, pos, fmt.Errorf("%w reading constant %d text", ErrTruncatedClass, i)
			}
			c.Str = decodeModifiedUTF8(data[pos : pos+n])
			pos += n
		case TagInteger, TagFloat:
			need = 4
		case TagLong, TagDouble:
			need = 8
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			need = 2
		case TagMethodHandle:
			need = 3
		case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType, TagDynamic, TagInvokeDynamic:
			need = 4
		default:
			return nil, pos, fmt.Errorf("%w: unknown constant tag %d at index %d", ErrMalformedClass, c.Tag, i)
		}
		if pos+need > len(data) {
			return nil, pos, fmt.Errorf("%w reading constant %d", ErrTruncatedClass, i)
		}
		switch c.Tag {
		case TagInteger, TagFloat:
			c.Bits = uint64(binary.BigEndian.Uint32(data[pos:]))
		case TagLong, TagDouble:
			c.Bits = binary.BigEndian.Uint64(data[pos:])
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			c.Ref1 = binary.BigEndian.Uint16(data[pos:])
		case TagMethodHandle:
			c.RefKind = data[pos]
			c.Ref1 = binary.BigEndian.Uint16(data[pos+1:])
		case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType, TagDynamic, TagInvokeDynamic:
			c.Ref1 = binary.BigEndian.Uint16(data[pos:])
			c.Ref2 = binary.BigEndian.Uint16(data[pos+2:])
		}
		pos += need

		p.entries = append(p.entries, c)
		if _, dup := p.index[c]; !dup {
			p.index[c] = uint16(i)
		}
		if c.slots() == 2 {
			p.entries = append(p.entries, Constant{})
			i++
		}
	}
	return p, pos, nil
}

// encodeModifiedUTF8 encodes s in the class-file variant of UTF-8: NUL is
// written as two bytes and supplementary characters as surrogate pairs.
func encodeModifiedUTF8(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		switch {
		case r != 0 && r < 0x80:
			out = append(out, byte(r))
		case r < 0x800:
			out = append(out, 0xC0|byte(r>>6), 0x80|byte(r&0x3F))
		case r < 0x10000:
			out = append(out, 0xE0|byte(r>>12), 0x80|byte((r>>6)&0x3F), 0x80|byte(r&0x3F))
		default:
			hi, lo := utf16.EncodeRune(r)
			for _, u := range []rune{hi, lo} {
				out = append(out, 0xE0|byte(u>>12), 0x80|byte((u>>6)&0x3F), 0x80|byte(u&0x3F))
			}
		}
	}
	return out
}

func decodeModifiedUTF8(b []byte) string {
	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xE0 == 0xC0 && i+1 < len(b):
			units = append(units, uint16(c&0x1F)<<6|uint16(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0 && i+2 < len(b):
			units = append(units, uint16(c&0x0F)<<12|uint16(b[i+1]&0x3F)<<6|uint16(b[i+2]&0x3F))
			i += 3
		default:
			units = append(units, utf8.RuneError)
			i++
		}
	}
	return string(utf16.Decode(units))
}
