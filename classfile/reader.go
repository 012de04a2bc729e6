package classfile

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrNotClassFile   = errors.New("not a class file")
	ErrTruncatedClass = errors.New("unexpected end of class file")
	ErrMalformedClass = errors.New("malformed class file")
)

// ClassFile is a parsed class file. Attributes are left undecoded.
type ClassFile struct {
	Minor, Major uint16
	Pool         *ConstantPool
	Access       AccessFlags
	Name         string
	Super        string
	Interfaces   []string
	Fields       []MemberInfo
	Methods      []MemberInfo
	Attributes   []RawAttribute
}

// MemberInfo is a parsed field or method.
type MemberInfo struct {
	Access     AccessFlags
	Name       string
	Desc       string
	Attributes []RawAttribute
}

// Attribute returns the first attribute with the given name.
func (m MemberInfo) Attribute(name string) (RawAttribute, bool) {
	for _, a := range m.Attributes {
		if a.AttrName == name {
			return a, true
		}
	}
	return RawAttribute{}, false
}

// CodeInfo is a parsed Code attribute.
type CodeInfo struct {
	MaxStack   uint16
	MaxLocals  uint16
	Code       []byte
	Attributes []RawAttribute
}

// Code parses the member's Code attribute. It returns nil for members
// without a body.
func (m MemberInfo) Code(pool *ConstantPool) (*CodeInfo, error) {
	raw, ok := m.Attribute("Code")
	if !ok {
		return nil, nil
	}
	r := &reader{data: raw.Data}
	ci := &CodeInfo{}
	var err error
	if ci.MaxStack, err = r.u2("max_stack"); err != nil {
		return nil, err
	}
	if ci.MaxLocals, err = r.u2("max_locals"); err != nil {
		return nil, err
	}
	n, err := r.u4("code_length")
	if err != nil {
		return nil, err
	}
	if ci.Code, err = r.bytes(int(n), "code"); err != nil {
		return nil, err
	}
	handlers, err := r.u2("exception_table_length")
	if err != nil {
		return nil, err
	}
	if _, err = r.bytes(int(handlers)*8, "exception_table"); err != nil {
		return nil, err
	}
	if ci.Attributes, err = r.attributes(pool); err != nil {
		return nil, err
	}
	return ci, nil
}

// Parse reads a class file.
func Parse(data []byte) (*ClassFile, error) {
	r := &reader{data: data}
	magic, err := r.u4("magic")
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, fmt.Errorf("%w: magic 0x%08X", ErrNotClassFile, magic)
	}
	cf := &ClassFile{}
	if cf.Minor, err = r.u2("minor_version"); err != nil {
		return nil, err
	}
	if cf.Major, err = r.u2("major_version"); err != nil {
		return nil, err
	}
	if cf.Pool, r.pos, err = readPool(data, r.pos); err != nil {
		return nil, err
	}

	access, err := r.u2("access_flags")
	if err != nil {
		return nil, err
	}
	cf.Access = AccessFlags(access)
	if cf.Name, err = r.class(cf.Pool, "this_class"); err != nil {
		return nil, err
	}
	super, err := r.u2("super_class")
	if err != nil {
		return nil, err
	}
	if super != 0 {
		if cf.Super, err = cf.Pool.ClassName(super); err != nil {
			return nil, fmt.Errorf("%w: super_class: %v", ErrMalformedClass, err)
		}
	}

	count, err := r.u2("interfaces_count")
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(count); i++ {
		name, err := r.class(cf.Pool, "interface")
		if err != nil {
			return nil, err
		}
		cf.Interfaces = append(cf.Interfaces, name)
	}

	if cf.Fields, err = r.members(cf.Pool, "field"); err != nil {
		return nil, err
	}
	if cf.Methods, err = r.members(cf.Pool, "method"); err != nil {
		return nil, err
	}
	if cf.Attributes, err = r.attributes(cf.Pool); err != nil {
		return nil, err
	}
	if r.pos != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedClass, len(data)-r.pos)
	}
	log.Debugf("parsed class %s: %d fields, %d methods", cf.Name, len(cf.Fields), len(cf.Methods))
	return cf, nil
}

type reader struct {
	data []byte
	pos  int
}

func (r *reader) u2(what string) (uint16, error) {
	if r.pos+2 > len(r.data) {
		return 0, fmt.Errorf("%w reading %s", ErrTruncatedClass, what)
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u4(what string) (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, fmt.Errorf("%w reading %s", ErrTruncatedClass, what)
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) bytes(n int, what string) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, fmt.Errorf("%w reading %s", ErrTruncatedClass, what)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) utf8(pool *ConstantPool, what string) (string, error) {
	idx, err := r.u2(what)
	if err != nil {
		return "", err
	}
	s, err := pool.Utf8(idx)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrMalformedClass, what, err)
	}
	return s, nil
}

func (r *reader) class(pool *ConstantPool, what string) (string, error) {
	idx, err := r.u2(what)
	if err != nil {
		return "", err
	}
	s, err := pool.ClassName(idx)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrMalformedClass, what, err)
	}
	return s, nil
}

func (r *reader) members(pool *ConstantPool, what string) ([]MemberInfo, error) {
	count, err := r.u2(what + "s_count")
	if err != nil {
		return nil, err
	}
	out := make([]MemberInfo, 0, count)
	for i := 0; i < int(count); i++ {
		var m MemberInfo
		access, err := r.u2(what + " access_flags")
		if err != nil {
			return nil, err
		}
		m.Access = AccessFlags(access)
		if m.Name, err = r.utf8(pool, what+" name"); err != nil {
			return nil, err
		}
		if m.Desc, err = r.utf8(pool, what+" descriptor"); err != nil {
			return nil, err
		}
		if m.Attributes, err = r.attributes(pool); err != nil {
			return nil, fmt.Errorf("%s %s: %w", what, m.Name, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *reader) attributes(pool *ConstantPool) ([]RawAttribute, error) {
	count, err := r.u2("attributes_count")
	if err != nil {
		return nil, err
	}
	out := make([]RawAttribute, 0, count)
	for i := 0; i < int(count); i++ {
		name, err := r.utf8(pool, "attribute name")
		if err != nil {
			return nil, err
		}
		n, err := r.u4("attribute length")
		if err != nil {
			return nil, err
		}
		data, err := r.bytes(int(n), "attribute "+name)
		if err != nil {
			return nil, err
		}
		out = append(out, RawAttribute{AttrName: name, Data: data})
	}
	return out, nil
}
