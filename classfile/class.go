package classfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Magic is the first four bytes of every class file.
const Magic = 0xCAFEBABE

// Default class-file version (Java 8).
const (
	DefaultMajor = 52
	DefaultMinor = 0
)

// AccessFlags holds class, field and method access bits.
type AccessFlags uint16

const (
	AccPublic       AccessFlags = 0x0001
	AccPrivate      AccessFlags = 0x0002
	AccProtected    AccessFlags = 0x0004
	AccStatic       AccessFlags = 0x0008
	AccFinal        AccessFlags = 0x0010
	AccSuper        AccessFlags = 0x0020
	AccSynchronized AccessFlags = 0x0020
	AccVolatile     AccessFlags = 0x0040
	AccBridge       AccessFlags = 0x0040
	AccTransient    AccessFlags = 0x0080
	AccVarargs      AccessFlags = 0x0080
	AccNative       AccessFlags = 0x0100
	AccInterface    AccessFlags = 0x0200
	AccAbstract     AccessFlags = 0x0400
	AccStrict       AccessFlags = 0x0800
	AccSynthetic    AccessFlags = 0x1000
	AccAnnotation   AccessFlags = 0x2000
	AccEnum         AccessFlags = 0x4000
)

var ErrTooManyMembers = errors.New("too many members")

// Class is a class under construction. Its pool is shared by every member,
// so attribute payloads built against Pool stay valid when the class is
// written.
type Class struct {
	Major, Minor uint16
	Access       AccessFlags
	Name         string
	Super        string
	Interfaces   []string
	Pool         *ConstantPool
	Fields       []*Field
	Methods      []*Method
	Attributes   AttributeList
}

// NewClass creates a class with the default version and an empty pool.
// The class and superclass entries are added to the pool immediately.
func NewClass(access AccessFlags, name, super string) *Class {
	c := &Class{
		Major:  DefaultMajor,
		Minor:  DefaultMinor,
		Access: access,
		Name:   name,
		Super:  super,
		Pool:   NewConstantPool(),
	}
	c.Pool.AddClass(name)
	if super != "" {
		c.Pool.AddClass(super)
	}
	return c
}

func (c *Class) AddAttribute(a Attribute) {
	c.Attributes.AddAttribute(a)
}

// AddField declares a field. Its Fieldref is added to the pool so that
// attributes can refer to it.
func (c *Class) AddField(access AccessFlags, name, desc string) *Field {
	f := &Field{Access: access, Name: name, Desc: desc}
	c.Fields = append(c.Fields, f)
	c.Pool.AddFieldref(c.Name, name, desc)
	return f
}

// AddMethod declares a method. Its body, if any, is set through Code.
func (c *Class) AddMethod(access AccessFlags, name, desc string) *Method {
	m := &Method{Access: access, Name: name, Desc: desc}
	c.Methods = append(c.Methods, m)
	return m
}

// Field is a field declaration.
type Field struct {
	Access     AccessFlags
	Name       string
	Desc       string
	Attributes AttributeList
}

func (f *Field) AddAttribute(a Attribute) {
	f.Attributes.AddAttribute(a)
}

// Method is a method declaration with an optional body.
type Method struct {
	Access     AccessFlags
	Name       string
	Desc       string
	Code       *InsnList
	MaxStack   uint16
	MaxLocals  uint16
	Attributes AttributeList
}

func (m *Method) AddAttribute(a Attribute) {
	m.Attributes.AddAttribute(a)
}

// MarshalBinary writes the class file. Method bodies are assembled here;
// a body that fails to assemble fails the whole class.
func (c *Class) MarshalBinary() ([]byte, error) {
	if len(c.Fields) > math.MaxUint16 || len(c.Methods) > math.MaxUint16 || len(c.Interfaces) > math.MaxUint16 {
		return nil, ErrTooManyMembers
	}
	p := c.Pool
	thisIdx := p.AddClass(c.Name)
	var superIdx uint16
	if c.Super != "" {
		superIdx = p.AddClass(c.Super)
	}

	// Everything after the pool is encoded first so the pool holds every
	// entry it references.
	var body []byte
	body = binary.BigEndian.AppendUint16(body, uint16(c.Access))
	body = binary.BigEndian.AppendUint16(body, thisIdx)
	body = binary.BigEndian.AppendUint16(body, superIdx)
	body = binary.BigEndian.AppendUint16(body, uint16(len(c.Interfaces)))
	for _, iface := range c.Interfaces {
		body = binary.BigEndian.AppendUint16(body, p.AddClass(iface))
	}

	body = binary.BigEndian.AppendUint16(body, uint16(len(c.Fields)))
	for _, f := range c.Fields {
		var err error
		body = binary.BigEndian.AppendUint16(body, uint16(f.Access))
		body = binary.BigEndian.AppendUint16(body, p.AddUtf8(f.Name))
		body = binary.BigEndian.AppendUint16(body, p.AddUtf8(f.Desc))
		if body, err = appendAttributes(body, p, f.Attributes); err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
	}

	body = binary.BigEndian.AppendUint16(body, uint16(len(c.Methods)))
	for _, m := range c.Methods {
		var err error
		body = binary.BigEndian.AppendUint16(body, uint16(m.Access))
		body = binary.BigEndian.AppendUint16(body, p.AddUtf8(m.Name))
		body = binary.BigEndian.AppendUint16(body, p.AddUtf8(m.Desc))
		attrs := m.Attributes
		if m.Code != nil {
			code, err := m.codeAttribute(p)
			if err != nil {
				return nil, fmt.Errorf("method %s%s: %w", m.Name, m.Desc, err)
			}
			attrs = append(AttributeList{code}, attrs...)
		}
		if body, err = appendAttributes(body, p, attrs); err != nil {
			return nil, fmt.Errorf("method %s%s: %w", m.Name, m.Desc, err)
		}
	}

	body, err := appendAttributes(body, p, c.Attributes)
	if err != nil {
		return nil, fmt.Errorf("class %s: %w", c.Name, err)
	}
	if err := p.Err(); err != nil {
		return nil, err
	}

	out := make([]byte, 0, 10+len(body)+p.Count()*8)
	out = binary.BigEndian.AppendUint32(out, Magic)
	out = binary.BigEndian.AppendUint16(out, c.Minor)
	out = binary.BigEndian.AppendUint16(out, c.Major)
	out = p.appendTo(out)
	out = append(out, body...)
	log.Debugf("wrote class %s: %d bytes, %d pool entries", c.Name, len(out), p.Count()-1)
	return out, nil
}

func (m *Method) codeAttribute(p *ConstantPool) (Attribute, error) {
	asm, err := Assemble(m.Code)
	if err != nil {
		return nil, err
	}
	var nested AttributeList
	if len(asm.Lines) > 0 {
		nested = append(nested, lineNumberTable(asm.Lines))
	}

	var data []byte
	data = binary.BigEndian.AppendUint16(data, m.MaxStack)
	data = binary.BigEndian.AppendUint16(data, m.MaxLocals)
	data = binary.BigEndian.AppendUint32(data, uint32(len(asm.Code)))
	data = append(data, asm.Code...)
	data = binary.BigEndian.AppendUint16(data, 0) // exception_table_length
	if data, err = appendAttributes(data, p, nested); err != nil {
		return nil, err
	}
	return RawAttribute{AttrName: "Code", Data: data}, nil
}

type lineNumberTable []LineNumber

func (lineNumberTable) Name() string { return "LineNumberTable" }

func (t lineNumberTable) MarshalBinary() ([]byte, error) {
	if len(t) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d line numbers", ErrTooManyMembers, len(t))
	}
	buf := binary.BigEndian.AppendUint16(make([]byte, 0, 2+4*len(t)), uint16(len(t)))
	for _, ln := range t {
		buf = binary.BigEndian.AppendUint16(buf, ln.StartPC)
		buf = binary.BigEndian.AppendUint16(buf, ln.Line)
	}
	return buf, nil
}

// appendAttributes writes attributes_count followed by each attribute
// framed as u2 name_index, u4 length, payload.
func appendAttributes(buf []byte, p *ConstantPool, attrs AttributeList) ([]byte, error) {
	if len(attrs) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d attributes", ErrTooManyMembers, len(attrs))
	}
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(attrs)))
	for _, a := range attrs {
		data, err := a.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", a.Name(), err)
		}
		if uint64(len(data)) > math.MaxUint32 {
			return nil, fmt.Errorf("attribute %s: payload too large", a.Name())
		}
		buf = binary.BigEndian.AppendUint16(buf, p.AddUtf8(a.Name()))
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
		buf = append(buf, data...)
	}
	return buf, nil
}
