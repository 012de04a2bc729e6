package classfile

// Builder appends symbolic instructions to a method body. Every Emit method
// returns the handle of the new instruction.
type Builder struct {
	list *InsnList
}

// NewBuilder creates a builder over an empty body.
func NewBuilder() *Builder {
	return &Builder{list: &InsnList{insns: make([]Insn, 0, 32)}}
}

// List returns the body under construction.
func (b *Builder) List() *InsnList {
	return b.list
}

// Finish freezes the body. Emitting afterwards panics.
func (b *Builder) Finish() *InsnList {
	b.list.frozen = true
	return b.list
}

// Emit appends an instruction without operands.
func (b *Builder) Emit(op Opcode) InsnID {
	return b.list.add(Insn{Op: op})
}

// EmitInt appends bipush, sipush or newarray with its immediate operand.
func (b *Builder) EmitInt(op Opcode, operand int32) InsnID {
	return b.list.add(Insn{Op: op, Operand: operand})
}

// EmitVar appends a load, store or ret with an explicit local index.
func (b *Builder) EmitVar(op Opcode, index int) InsnID {
	return b.list.add(Insn{Op: op, Var: index})
}

// EmitIinc appends an iinc instruction.
func (b *Builder) EmitIinc(index, incr int) InsnID {
	return b.list.add(Insn{Op: OpIinc, Var: index, Incr: incr})
}

// EmitLdc appends an ldc of the pool constant at index. The kind decides
// whether the assembler writes ldc, ldc_w or ldc2_w.
func (b *Builder) EmitLdc(kind ConstKind, index uint16) InsnID {
	return b.list.add(Insn{Op: OpLdc, Const: kind, Index: index})
}

// EmitRef appends an instruction with a u2 constant-pool operand (field and
// method access, new, anewarray, checkcast, instanceof, ldc_w, ldc2_w).
func (b *Builder) EmitRef(op Opcode, index uint16) InsnID {
	return b.list.add(Insn{Op: op, Index: index})
}

// EmitInvokeInterface appends invokeinterface with its argument-slot count.
func (b *Builder) EmitInvokeInterface(index uint16, count uint8) InsnID {
	return b.list.add(Insn{Op: OpInvokeinterface, Index: index, Count: count})
}

// EmitInvokeDynamic appends invokedynamic.
func (b *Builder) EmitInvokeDynamic(index uint16) InsnID {
	return b.list.add(Insn{Op: OpInvokedynamic, Index: index})
}

// EmitMultiANewArray appends multianewarray.
func (b *Builder) EmitMultiANewArray(index uint16, dims uint8) InsnID {
	return b.list.add(Insn{Op: OpMultianewarray, Index: index, Count: dims})
}

// NewLabel creates an unbound label.
func (b *Builder) NewLabel() Label {
	l := Label(b.list.labels)
	b.list.labels++
	return l
}

// Mark binds a label to the current position.
func (b *Builder) Mark(l Label) InsnID {
	return b.list.add(Insn{Kind: KindLabel, Label: l})
}

// Line records a source line marker at the current position.
func (b *Builder) Line(line int) InsnID {
	return b.list.add(Insn{Kind: KindLine, Line: line})
}

// EmitJump appends a branch to a label.
func (b *Builder) EmitJump(op Opcode, target Label) InsnID {
	return b.list.add(Insn{Op: op, Target: target})
}

// EmitTableSwitch appends a tableswitch covering low..high. targets must
// hold high-low+1 labels.
func (b *Builder) EmitTableSwitch(low, high int32, dflt Label, targets ...Label) InsnID {
	return b.list.add(Insn{Op: OpTableswitch, Low: low, High: high, Default: dflt, Targets: targets})
}

// EmitLookupSwitch appends a lookupswitch. keys and targets pair up by
// position; keys should be ascending.
func (b *Builder) EmitLookupSwitch(dflt Label, keys []int32, targets []Label) InsnID {
	return b.list.add(Insn{Op: OpLookupswitch, Keys: keys, Default: dflt, Targets: targets})
}
