// Package offsets computes the byte offset each instruction of a method
// body will occupy once assembled, before assembly happens.
//
// The length of every instruction is derived from a fixed per-opcode
// length class. Variable-length forms (switches, locals, constants and
// increments) are sized the way the assembler encodes them: a generic load
// or store of local 4 through 255 is two bytes (opcode and u1 index), never
// three. Opcodes outside the table, an explicit wide prefix, and operands the
// assembler would refuse are contract violations.
package offsets

import (
	"errors"
	"fmt"
	"math"

	"github.com/tliron/commonlog"

	"github.com/chazu/typehints/classfile"
)

var log = commonlog.GetLogger("typehints.offsets")

var (
	ErrUnknownOpcode = errors.New("opcode has no length class")
	ErrWidePrefix    = errors.New("explicit wide prefix is not supported")
	ErrCodeTooLarge  = errors.New("offset exceeds code array limit")
)

// MaxOffset is the largest byte offset addressable by a u2.
const MaxOffset = math.MaxUint16

// Code is a finalized method body in emission order.
type Code interface {
	Len() int
	At(id classfile.InsnID) *classfile.Insn
}

type lengthClass uint8

const (
	classInvalid lengthClass = iota
	classFixed1
	classFixed2
	classFixed3
	classFixed4
	classFixed5
	classTableSwitch
	classLookupSwitch
	classVar
	classLdc
	classIinc
	classWide
)

var lengthClasses [256]lengthClass

func init() {
	set := func(c lengthClass, from, to classfile.Opcode) {
		for op := int(from); op <= int(to); op++ {
			lengthClasses[op] = c
		}
	}
	one := func(c lengthClass, ops ...classfile.Opcode) {
		for _, op := range ops {
			lengthClasses[op] = c
		}
	}

	set(classFixed1, classfile.OpNop, classfile.OpDconst1)
	set(classFixed1, classfile.OpIload0, classfile.OpSaload)
	set(classFixed1, classfile.OpIstore0, classfile.OpLxor)
	set(classFixed1, classfile.OpI2l, classfile.OpDcmpg)
	set(classFixed1, classfile.OpIreturn, classfile.OpReturn)
	one(classFixed1, classfile.OpArraylength, classfile.OpAthrow, classfile.OpMonitorenter, classfile.OpMonitorexit)

	one(classFixed2, classfile.OpRet, classfile.OpBipush, classfile.OpNewarray)

	set(classFixed3, classfile.OpIfeq, classfile.OpJsr)
	set(classFixed3, classfile.OpGetstatic, classfile.OpInvokestatic)
	set(classFixed3, classfile.OpAsmIfeq, classfile.OpAsmIfnonnull)
	one(classFixed3, classfile.OpIfnull, classfile.OpIfnonnull, classfile.OpSipush, classfile.OpLdcW,
		classfile.OpLdc2W, classfile.OpNew, classfile.OpAnewarray, classfile.OpCheckcast, classfile.OpInstanceof)

	one(classFixed4, classfile.OpMultianewarray)

	one(classFixed5, classfile.OpGotoW, classfile.OpJsrW, classfile.OpAsmGotoW,
		classfile.OpInvokeinterface, classfile.OpInvokedynamic)

	one(classTableSwitch, classfile.OpTableswitch)
	one(classLookupSwitch, classfile.OpLookupswitch)
	set(classVar, classfile.OpIload, classfile.OpAload)
	set(classVar, classfile.OpIstore, classfile.OpAstore)
	one(classLdc, classfile.OpLdc)
	one(classIinc, classfile.OpIinc)
	one(classWide, classfile.OpWide)
}

// Length returns the encoded length of a real instruction placed at
// offset. Operands the assembler would reject are rejected here with the
// same classfile errors, so a resolved map always matches the written code.
func Length(in *classfile.Insn, offset int) (int, error) {
	switch lengthClasses[in.Op] {
	case classFixed1:
		return 1, nil
	case classFixed2:
		return 2, nil
	case classFixed3:
		return 3, nil
	case classFixed4:
		return 4, nil
	case classFixed5:
		return 5, nil
	case classTableSwitch:
		if in.High < in.Low || int64(len(in.Targets)) != int64(in.High)-int64(in.Low)+1 {
			return 0, fmt.Errorf("%w: %d..%d with %d targets at offset %d",
				classfile.ErrSwitchShape, in.Low, in.High, len(in.Targets), offset)
		}
		// opcode plus padding, then default, low, high and the jump table
		return 4 - (offset & 3) + 12 + 4*len(in.Targets), nil
	case classLookupSwitch:
		if len(in.Keys) != len(in.Targets) {
			return 0, fmt.Errorf("%w: %d keys, %d targets at offset %d",
				classfile.ErrSwitchShape, len(in.Keys), len(in.Targets), offset)
		}
		return 4 - (offset & 3) + 8 + 8*len(in.Keys), nil
	case classVar:
		switch {
		case in.Var < 0 || in.Var > math.MaxUint16:
			return 0, fmt.Errorf("%w: local %d at offset %d", classfile.ErrOperandRange, in.Var, offset)
		case in.Var <= 3:
			return 1, nil
		case in.Var <= math.MaxUint8:
			return 2, nil
		default:
			return 4, nil
		}
	case classLdc:
		if in.Const.IsWide() || in.Index > math.MaxUint8 {
			return 3, nil
		}
		return 2, nil
	case classIinc:
		if in.Var < 0 || in.Var > math.MaxUint16 || in.Incr < math.MinInt16 || in.Incr > math.MaxInt16 {
			return 0, fmt.Errorf("%w: iinc %d %d at offset %d", classfile.ErrOperandRange, in.Var, in.Incr, offset)
		}
		if in.Var > math.MaxUint8 || in.Incr < math.MinInt8 || in.Incr > math.MaxInt8 {
			return 6, nil
		}
		return 3, nil
	case classWide:
		return 0, fmt.Errorf("%w at offset %d", ErrWidePrefix, offset)
	}
	return 0, fmt.Errorf("%w: %s (0x%02X) at offset %d", ErrUnknownOpcode, in.Op, byte(in.Op), offset)
}

// OffsetMap maps instruction handles to byte offsets. It is filled once;
// later builds are no-ops.
type OffsetMap struct {
	offsets map[classfile.InsnID]uint16
	order   []classfile.InsnID
	size    int
	built   bool
}

// Resolve builds a new map for code.
func Resolve(code Code) (*OffsetMap, error) {
	m := &OffsetMap{}
	if err := m.Build(code); err != nil {
		return nil, err
	}
	return m, nil
}

// Build walks the real instructions of code in order and records the
// offset of each. Pseudo-instructions get no entry. If the map is already
// built, Build does nothing. On error the map is left empty and unbuilt.
func (m *OffsetMap) Build(code Code) error {
	if m.built {
		return nil
	}
	offsets := make(map[classfile.InsnID]uint16, code.Len())
	order := make([]classfile.InsnID, 0, code.Len())
	cur := 0
	for i := 0; i < code.Len(); i++ {
		id := classfile.InsnID(i)
		in := code.At(id)
		if in.Kind.IsPseudo() {
			continue
		}
		n, err := Length(in, cur)
		if err != nil {
			return fmt.Errorf("instruction %d: %w", i, err)
		}
		if cur+n > MaxOffset {
			return fmt.Errorf("%w: instruction %d ends at %d", ErrCodeTooLarge, i, cur+n)
		}
		offsets[id] = uint16(cur)
		order = append(order, id)
		cur += n
	}
	m.offsets, m.order, m.size, m.built = offsets, order, cur, true
	log.Debugf("resolved %d instruction offsets, code length %d", len(order), cur)
	return nil
}

// Built reports whether Build has succeeded.
func (m *OffsetMap) Built() bool { return m.built }

// Lookup returns the offset of an instruction.
func (m *OffsetMap) Lookup(id classfile.InsnID) (uint16, bool) {
	off, ok := m.offsets[id]
	return off, ok
}

// Len returns the number of resolved instructions.
func (m *OffsetMap) Len() int { return len(m.order) }

// CodeLength returns the total length of the code array.
func (m *OffsetMap) CodeLength() int { return m.size }

// IDs returns the resolved handles in emission order.
func (m *OffsetMap) IDs() []classfile.InsnID {
	return append([]classfile.InsnID(nil), m.order...)
}
