package classfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("typehints.classfile")

var (
	ErrUnknownOpcode = errors.New("unknown opcode")
	ErrWideOpcode    = errors.New("explicit wide prefix")
	ErrUnboundLabel  = errors.New("label never marked")
	ErrBranchRange   = errors.New("branch offset out of range")
	ErrOperandRange  = errors.New("operand out of range")
	ErrCodeTooLarge  = errors.New("code array too large")
	ErrSwitchShape   = errors.New("switch targets do not match keys")
)

// MaxCodeLength is the largest code array a method may have.
const MaxCodeLength = math.MaxUint16

// LineNumber is one LineNumberTable row.
type LineNumber struct {
	StartPC uint16
	Line    uint16
}

// Assembly is the encoded form of an instruction list.
type Assembly struct {
	Code []byte
	// Positions maps each InsnID to the byte offset it was written at.
	// Pseudo-instructions map to the offset of the next real instruction.
	Positions []int
	Lines     []LineNumber
}

type fixup struct {
	from  int // offset of the branching instruction
	at    int // offset of the operand to patch
	label Label
	wide  bool
}

// Assemble encodes an instruction list into a code array. Local-variable
// and constant instructions take the shortest form their operands allow;
// switches are padded to four-byte alignment.
func Assemble(list *InsnList) (*Assembly, error) {
	a := &Assembly{
		Code:      make([]byte, 0, list.Len()*2),
		Positions: make([]int, list.Len()),
	}
	labels := make([]int, list.LabelCount())
	for i := range labels {
		labels[i] = -1
	}
	var fixups []fixup

	for i := 0; i < list.Len(); i++ {
		in := list.At(InsnID(i))
		pc := len(a.Code)
		a.Positions[i] = pc

		switch in.Kind {
		case KindLabel:
			if int(in.Label) >= len(labels) {
				return nil, fmt.Errorf("%w: L%d", ErrUnboundLabel, in.Label)
			}
			labels[in.Label] = pc
			continue
		case KindLine:
			if pc <= MaxCodeLength && in.Line >= 0 && in.Line <= math.MaxUint16 {
				a.Lines = append(a.Lines, LineNumber{StartPC: uint16(pc), Line: uint16(in.Line)})
			}
			continue
		}

		code, fx, err := encode(a.Code, in, pc)
		if err != nil {
			return nil, fmt.Errorf("instruction %d (%s) at %d: %w", i, in, pc, err)
		}
		a.Code = code
		fixups = append(fixups, fx...)
	}

	if len(a.Code) > MaxCodeLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrCodeTooLarge, len(a.Code))
	}

	for _, f := range fixups {
		if int(f.label) >= len(labels) || labels[f.label] < 0 {
			return nil, fmt.Errorf("%w: L%d", ErrUnboundLabel, f.label)
		}
		delta := labels[f.label] - f.from
		if f.wide {
			binary.BigEndian.PutUint32(a.Code[f.at:], uint32(int32(delta)))
			continue
		}
		if delta < math.MinInt16 || delta > math.MaxInt16 {
			return nil, fmt.Errorf("%w: %d from %d", ErrBranchRange, delta, f.from)
		}
		binary.BigEndian.PutUint16(a.Code[f.at:], uint16(int16(delta)))
	}

	log.Debugf("assembled %d instructions into %d bytes", list.Len(), len(a.Code))
	return a, nil
}

func encode(buf []byte, in *Insn, pc int) ([]byte, []fixup, error) {
	op := in.Op
	switch op.Form() {
	case FormNone:
		return append(buf, byte(op)), nil, nil

	case FormByte:
		switch op {
		case OpRet:
			if in.Var < 0 || in.Var > math.MaxUint8 {
				return nil, nil, fmt.Errorf("%w: ret local %d", ErrOperandRange, in.Var)
			}
			return append(buf, byte(op), byte(in.Var)), nil, nil
		case OpBipush:
			if in.Operand < math.MinInt8 || in.Operand > math.MaxInt8 {
				return nil, nil, fmt.Errorf("%w: bipush %d", ErrOperandRange, in.Operand)
			}
			return append(buf, byte(op), byte(int8(in.Operand))), nil, nil
		default:
			if in.Operand < 0 || in.Operand > math.MaxUint8 {
				return nil, nil, fmt.Errorf("%w: %s %d", ErrOperandRange, op, in.Operand)
			}
			return append(buf, byte(op), byte(in.Operand)), nil, nil
		}

	case FormShort:
		if in.Operand < math.MinInt16 || in.Operand > math.MaxInt16 {
			return nil, nil, fmt.Errorf("%w: sipush %d", ErrOperandRange, in.Operand)
		}
		buf = append(buf, byte(op))
		return binary.BigEndian.AppendUint16(buf, uint16(int16(in.Operand))), nil, nil

	case FormLdc:
		switch {
		case in.Const.IsWide():
			buf = append(buf, byte(OpLdc2W))
			return binary.BigEndian.AppendUint16(buf, in.Index), nil, nil
		case in.Index > math.MaxUint8:
			buf = append(buf, byte(OpLdcW))
			return binary.BigEndian.AppendUint16(buf, in.Index), nil, nil
		default:
			return append(buf, byte(OpLdc), byte(in.Index)), nil, nil
		}

	case FormPoolRef:
		buf = append(buf, byte(op))
		return binary.BigEndian.AppendUint16(buf, in.Index), nil, nil

	case FormVar:
		switch {
		case in.Var < 0 || in.Var > math.MaxUint16:
			return nil, nil, fmt.Errorf("%w: local %d", ErrOperandRange, in.Var)
		case in.Var <= 3:
			short, _ := ShortVarForm(op, in.Var)
			return append(buf, byte(short)), nil, nil
		case in.Var <= math.MaxUint8:
			return append(buf, byte(op), byte(in.Var)), nil, nil
		default:
			buf = append(buf, byte(OpWide), byte(op))
			return binary.BigEndian.AppendUint16(buf, uint16(in.Var)), nil, nil
		}

	case FormIinc:
		if in.Var < 0 || in.Var > math.MaxUint16 || in.Incr < math.MinInt16 || in.Incr > math.MaxInt16 {
			return nil, nil, fmt.Errorf("%w: iinc %d %d", ErrOperandRange, in.Var, in.Incr)
		}
		if in.Var <= math.MaxUint8 && in.Incr >= math.MinInt8 && in.Incr <= math.MaxInt8 {
			return append(buf, byte(op), byte(in.Var), byte(int8(in.Incr))), nil, nil
		}
		buf = append(buf, byte(OpWide), byte(op))
		buf = binary.BigEndian.AppendUint16(buf, uint16(in.Var))
		return binary.BigEndian.AppendUint16(buf, uint16(int16(in.Incr))), nil, nil

	case FormBranch:
		buf = append(buf, byte(op), 0, 0)
		return buf, []fixup{{from: pc, at: pc + 1, label: in.Target}}, nil

	case FormBranchWide:
		buf = append(buf, byte(op), 0, 0, 0, 0)
		return buf, []fixup{{from: pc, at: pc + 1, label: in.Target, wide: true}}, nil

	case FormTableSwitch:
		if in.High < in.Low || int64(len(in.Targets)) != int64(in.High)-int64(in.Low)+1 {
			return nil, nil, fmt.Errorf("%w: %d..%d with %d targets", ErrSwitchShape, in.Low, in.High, len(in.Targets))
		}
		buf = appendSwitchHeader(buf, op)
		fx := []fixup{{from: pc, at: len(buf), label: in.Default, wide: true}}
		buf = binary.BigEndian.AppendUint32(buf, 0)
		buf = binary.BigEndian.AppendUint32(buf, uint32(in.Low))
		buf = binary.BigEndian.AppendUint32(buf, uint32(in.High))
		for _, t := range in.Targets {
			fx = append(fx, fixup{from: pc, at: len(buf), label: t, wide: true})
			buf = binary.BigEndian.AppendUint32(buf, 0)
		}
		return buf, fx, nil

	case FormLookupSwitch:
		if len(in.Keys) != len(in.Targets) {
			return nil, nil, fmt.Errorf("%w: %d keys, %d targets", ErrSwitchShape, len(in.Keys), len(in.Targets))
		}
		buf = appendSwitchHeader(buf, op)
		fx := []fixup{{from: pc, at: len(buf), label: in.Default, wide: true}}
		buf = binary.BigEndian.AppendUint32(buf, 0)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(in.Keys)))
		for i, k := range in.Keys {
			buf = binary.BigEndian.AppendUint32(buf, uint32(k))
			fx = append(fx, fixup{from: pc, at: len(buf), label: in.Targets[i], wide: true})
			buf = binary.BigEndian.AppendUint32(buf, 0)
		}
		return buf, fx, nil

	case FormInvokeInterface:
		buf = append(buf, byte(op))
		buf = binary.BigEndian.AppendUint16(buf, in.Index)
		return append(buf, in.Count, 0), nil, nil

	case FormInvokeDynamic:
		buf = append(buf, byte(op))
		buf = binary.BigEndian.AppendUint16(buf, in.Index)
		return append(buf, 0, 0), nil, nil

	case FormMultiANewArray:
		buf = append(buf, byte(op))
		buf = binary.BigEndian.AppendUint16(buf, in.Index)
		return append(buf, in.Count), nil, nil

	case FormWide:
		return nil, nil, ErrWideOpcode
	}
	return nil, nil, fmt.Errorf("%w: 0x%02X", ErrUnknownOpcode, byte(op))
}

// appendSwitchHeader writes the opcode and the zero padding that aligns the
// operands to a multiple of four from the start of the code array. buf
// must end at the switch's own offset.
func appendSwitchHeader(buf []byte, op Opcode) []byte {
	buf = append(buf, byte(op))
	for len(buf)%4 != 0 {
		buf = append(buf, 0)
	}
	return buf
}
