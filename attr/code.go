package attr

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/chazu/typehints/hint"
)

// InvokeReturnType records the result-slot type of instructions, keyed by
// bytecode offset.
//
//	u2 n, {u2 offset, u1 kind, u2 outer, u2 index}×n
type InvokeReturnType struct {
	Hints []hint.SlotHint
}

func (InvokeReturnType) Name() string { return NameInvokeReturnType }

func (a InvokeReturnType) MarshalBinary() ([]byte, error) {
	buf, err := appendCount(make([]byte, 0, 2+7*len(a.Hints)), len(a.Hints), "return-type hints")
	if err != nil {
		return nil, err
	}
	for _, h := range a.Hints {
		buf = binary.BigEndian.AppendUint16(buf, h.Offset)
		buf = append(buf, byte(h.Type.Kind))
		buf = binary.BigEndian.AppendUint16(buf, h.Type.Outer)
		buf = binary.BigEndian.AppendUint16(buf, h.Type.Index)
	}
	return buf, nil
}

func (a *InvokeReturnType) UnmarshalBinary(data []byte) error {
	p := &payload{data: data}
	n, err := p.count("return-type hints", 7)
	if err != nil {
		return err
	}
	hints := make([]hint.SlotHint, n)
	for i := range hints {
		// count already checked that all n records fit
		hints[i].Offset, _ = p.u2("offset")
		kind, _ := p.u1("kind")
		hints[i].Type.Kind = hint.SlotKind(kind)
		hints[i].Type.Outer, _ = p.u2("outer")
		hints[i].Type.Index, _ = p.u2("index")
	}
	if err := p.done(); err != nil {
		return err
	}
	a.Hints = hints
	return nil
}

func (a InvokeReturnType) String() string {
	var b strings.Builder
	b.WriteString("InvokeReturnType{")
	for i, h := range a.Hints {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(h.String())
	}
	b.WriteByte('}')
	return b.String()
}

// InstructionTypeArguments records the ordered operand types of
// instructions, keyed by bytecode offset. A hint may carry no types.
//
//	u2 n, {u2 offset, u2 m, {u1 kind, u2 index}×m}×n
type InstructionTypeArguments struct {
	Hints []hint.ArgHint
}

func (InstructionTypeArguments) Name() string { return NameInstructionTypeArguments }

func (a InstructionTypeArguments) MarshalBinary() ([]byte, error) {
	buf, err := appendCount(make([]byte, 0, 2+4*len(a.Hints)), len(a.Hints), "argument hints")
	if err != nil {
		return nil, err
	}
	for _, h := range a.Hints {
		buf = binary.BigEndian.AppendUint16(buf, h.Offset)
		if buf, err = appendCount(buf, len(h.Types), "argument types"); err != nil {
			return nil, fmt.Errorf("offset %d: %w", h.Offset, err)
		}
		for _, t := range h.Types {
			buf = append(buf, byte(t.Kind))
			buf = binary.BigEndian.AppendUint16(buf, t.Index)
		}
	}
	return buf, nil
}

func (a *InstructionTypeArguments) UnmarshalBinary(data []byte) error {
	p := &payload{data: data}
	n, err := p.count("argument hints", 4)
	if err != nil {
		return err
	}
	hints := make([]hint.ArgHint, n)
	for i := range hints {
		if hints[i].Offset, err = p.u2("offset"); err != nil {
			return err
		}
		m, err := p.count("argument types", 3)
		if err != nil {
			return fmt.Errorf("hint %d: %w", i, err)
		}
		types := make([]hint.ArgType, m)
		for j := range types {
			kind, _ := p.u1("kind")
			types[j].Kind = hint.ArgKind(kind)
			types[j].Index, _ = p.u2("index")
		}
		hints[i].Types = types
	}
	if err := p.done(); err != nil {
		return err
	}
	a.Hints = hints
	return nil
}

func (a InstructionTypeArguments) String() string {
	var b strings.Builder
	b.WriteString("InstructionTypeArguments{")
	for i, h := range a.Hints {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(h.String())
	}
	b.WriteByte('}')
	return b.String()
}

// ExtraBoxUnbox lists offsets of instructions that box or unbox a value
// only because of erasure.
//
//	u2 n, u2 offset×n
type ExtraBoxUnbox struct {
	Offsets []uint16
}

func (ExtraBoxUnbox) Name() string { return NameExtraBoxUnbox }

func (a ExtraBoxUnbox) MarshalBinary() ([]byte, error) {
	buf, err := appendCount(make([]byte, 0, 2+2*len(a.Offsets)), len(a.Offsets), "offsets")
	if err != nil {
		return nil, err
	}
	for _, off := range a.Offsets {
		buf = binary.BigEndian.AppendUint16(buf, off)
	}
	return buf, nil
}

func (a *ExtraBoxUnbox) UnmarshalBinary(data []byte) error {
	p := &payload{data: data}
	n, err := p.count("offsets", 2)
	if err != nil {
		return err
	}
	offs := make([]uint16, n)
	for i := range offs {
		offs[i], _ = p.u2("offset")
	}
	if err := p.done(); err != nil {
		return err
	}
	a.Offsets = offs
	return nil
}

func (a ExtraBoxUnbox) String() string {
	return fmt.Sprintf("ExtraBoxUnbox%v", a.Offsets)
}

// NewTypeArgs names the locals holding the runtime type arguments of the
// object construction at Offset.
type NewTypeArgs struct {
	Offset uint16
	Locals []uint16
}

// BCNewTypeArgs records, per construction site, which locals carry its
// type arguments.
//
//	u2 n, {u2 offset, u2 m, u2 local×m}×n
type BCNewTypeArgs struct {
	Entries []NewTypeArgs
}

func (BCNewTypeArgs) Name() string { return NameBCNewTypeArgs }

func (a BCNewTypeArgs) MarshalBinary() ([]byte, error) {
	buf, err := appendCount(make([]byte, 0, 2+4*len(a.Entries)), len(a.Entries), "construction sites")
	if err != nil {
		return nil, err
	}
	for _, e := range a.Entries {
		buf = binary.BigEndian.AppendUint16(buf, e.Offset)
		if buf, err = appendCount(buf, len(e.Locals), "locals"); err != nil {
			return nil, fmt.Errorf("offset %d: %w", e.Offset, err)
		}
		for _, l := range e.Locals {
			buf = binary.BigEndian.AppendUint16(buf, l)
		}
	}
	return buf, nil
}

func (a *BCNewTypeArgs) UnmarshalBinary(data []byte) error {
	p := &payload{data: data}
	n, err := p.count("construction sites", 4)
	if err != nil {
		return err
	}
	entries := make([]NewTypeArgs, n)
	for i := range entries {
		if entries[i].Offset, err = p.u2("offset"); err != nil {
			return err
		}
		m, err := p.count("locals", 2)
		if err != nil {
			return fmt.Errorf("site %d: %w", i, err)
		}
		locals := make([]uint16, m)
		for j := range locals {
			locals[j], _ = p.u2("local")
		}
		entries[i].Locals = locals
	}
	if err := p.done(); err != nil {
		return err
	}
	a.Entries = entries
	return nil
}

func (a BCNewTypeArgs) String() string {
	var b strings.Builder
	b.WriteString("BCNewTypeArgs{")
	for i, e := range a.Entries {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "@%d locals=%v", e.Offset, e.Locals)
	}
	b.WriteByte('}')
	return b.String()
}
