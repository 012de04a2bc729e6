package methodgen

import (
	"fmt"

	"github.com/chazu/typehints/classfile"
	"github.com/chazu/typehints/hint"
)

// Method emits the body of one class method and records hints for the
// instructions that carry them. Instructions without hints are emitted
// through the embedded Builder.
type Method struct {
	*classfile.Builder
	Hints *Recorder

	target *classfile.Method
}

// NewMethod declares a method on c and returns its emitter.
func NewMethod(c *classfile.Class, access classfile.AccessFlags, name, desc string) *Method {
	return Wrap(c.AddMethod(access, name, desc))
}

// Wrap returns an emitter for an already declared method.
func Wrap(m *classfile.Method) *Method {
	return &Method{
		Builder: classfile.NewBuilder(),
		Hints:   NewRecorder(),
		target:  m,
	}
}

// Target returns the method being generated.
func (m *Method) Target() *classfile.Method {
	return m.target
}

// TypeInsn emits new, anewarray, checkcast or instanceof. The type
// arguments are recorded only for new, and only when there are some.
func (m *Method) TypeInsn(op classfile.Opcode, classIndex uint16, typeArgs []hint.ArgType) classfile.InsnID {
	id := m.EmitRef(op, classIndex)
	if op == classfile.OpNew && len(typeArgs) > 0 {
		m.Hints.RecordArgumentHints(id, typeArgs)
	}
	return id
}

// Invoke emits invokevirtual, invokespecial, invokestatic or invokedynamic
// and records the type of the returned value.
func (m *Method) Invoke(op classfile.Opcode, methodIndex uint16, ret hint.OptSlot) classfile.InsnID {
	var id classfile.InsnID
	if op == classfile.OpInvokedynamic {
		id = m.EmitInvokeDynamic(methodIndex)
	} else {
		id = m.EmitRef(op, methodIndex)
	}
	m.Hints.RecordSlotHint(id, ret)
	return id
}

// InvokeInterface emits invokeinterface and records the type of the
// returned value.
func (m *Method) InvokeInterface(methodIndex uint16, count uint8, ret hint.OptSlot) classfile.InsnID {
	id := m.EmitInvokeInterface(methodIndex, count)
	m.Hints.RecordSlotHint(id, ret)
	return id
}

// InvokeArgs emits an invoke whose type arguments are explicit at the call
// site, recording both the return type and the argument types.
func (m *Method) InvokeArgs(op classfile.Opcode, methodIndex uint16, ret hint.OptSlot, typeArgs []hint.ArgType) classfile.InsnID {
	id := m.Invoke(op, methodIndex, ret)
	m.Hints.RecordArgumentHints(id, typeArgs)
	return id
}

// Finish freezes the body, attaches the hint attributes and installs the
// body on the method. On error the method is left without a body.
func (m *Method) Finish(maxStack, maxLocals uint16) error {
	code := m.Builder.Finish()
	if err := m.Hints.Materialize(code, m.target); err != nil {
		return fmt.Errorf("method %s%s: %w", m.target.Name, m.target.Desc, err)
	}
	m.target.Code = code
	m.target.MaxStack = maxStack
	m.target.MaxLocals = maxLocals
	return nil
}
