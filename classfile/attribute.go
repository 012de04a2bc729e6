package classfile

import "fmt"

// Attribute is a named class-file attribute whose payload can be encoded.
// The framing (name index and length) is written by the class writer.
type Attribute interface {
	Name() string
	MarshalBinary() ([]byte, error)
}

// AttributeSink accepts attributes for a class, field or method.
type AttributeSink interface {
	AddAttribute(a Attribute)
}

// RawAttribute is an attribute kept as undecoded bytes.
type RawAttribute struct {
	AttrName string
	Data     []byte
}

func (r RawAttribute) Name() string { return r.AttrName }

func (r RawAttribute) MarshalBinary() ([]byte, error) {
	return r.Data, nil
}

func (r RawAttribute) String() string {
	return fmt.Sprintf("%s[%d bytes]", r.AttrName, len(r.Data))
}

// AttributeList is an ordered attribute collection. It implements
// AttributeSink.
type AttributeList []Attribute

func (l *AttributeList) AddAttribute(a Attribute) {
	*l = append(*l, a)
}

// Find returns the first attribute with the given name.
func (l AttributeList) Find(name string) (Attribute, bool) {
	for _, a := range l {
		if a.Name() == name {
			return a, true
		}
	}
	return nil, false
}
