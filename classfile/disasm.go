package classfile

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Decoded is one instruction read back from a code array.
type Decoded struct {
	Offset int
	Op     Opcode
	Wide   bool // prefixed by wide
	Length int
	Text   string
}

// DecodeCode splits a code array into instructions. Operands are rendered
// into Text; pool indices are resolved through pool when it is non-nil.
func DecodeCode(code []byte, pool *ConstantPool) ([]Decoded, error) {
	var out []Decoded
	for pc := 0; pc < len(code); {
		d, err := decodeAt(code, pc, pool)
		if err != nil {
			return out, err
		}
		out = append(out, d)
		pc += d.Length
	}
	return out, nil
}

func decodeAt(code []byte, pc int, pool *ConstantPool) (Decoded, error) {
	op := Opcode(code[pc])
	d := Decoded{Offset: pc, Op: op}
	need := func(n int) error {
		if pc+n > len(code) {
			return fmt.Errorf("%w: %s at %d", ErrTruncatedClass, op, pc)
		}
		return nil
	}
	u2 := func(at int) uint16 { return binary.BigEndian.Uint16(code[at:]) }
	s4 := func(at int) int32 { return int32(binary.BigEndian.Uint32(code[at:])) }
	ref := func(idx uint16) string {
		if pool == nil {
			return fmt.Sprintf("#%d", idx)
		}
		return fmt.Sprintf("#%d // %s", idx, pool.Describe(idx))
	}

	switch op.Form() {
	case FormNone:
		d.Length = 1
		d.Text = op.String()

	case FormByte:
		d.Length = 2
		if err := need(2); err != nil {
			return d, err
		}
		v := int(code[pc+1])
		if op == OpBipush {
			v = int(int8(code[pc+1]))
		}
		d.Text = fmt.Sprintf("%s %d", op, v)

	case FormShort:
		d.Length = 3
		if err := need(3); err != nil {
			return d, err
		}
		d.Text = fmt.Sprintf("%s %d", op, int16(u2(pc+1)))

	case FormLdc:
		d.Length = 2
		if err := need(2); err != nil {
			return d, err
		}
		d.Text = fmt.Sprintf("%s %s", op, ref(uint16(code[pc+1])))

	case FormVar:
		d.Length = 2
		if err := need(2); err != nil {
			return d, err
		}
		d.Text = fmt.Sprintf("%s %d", op, code[pc+1])

	case FormIinc:
		d.Length = 3
		if err := need(3); err != nil {
			return d, err
		}
		d.Text = fmt.Sprintf("%s %d %d", op, code[pc+1], int8(code[pc+2]))

	case FormPoolRef, FormInvokeInterface, FormInvokeDynamic, FormMultiANewArray:
		switch op.Form() {
		case FormPoolRef:
			d.Length = 3
		case FormMultiANewArray:
			d.Length = 4
		default:
			d.Length = 5
		}
		if err := need(d.Length); err != nil {
			return d, err
		}
		d.Text = fmt.Sprintf("%s %s", op, ref(u2(pc+1)))
		if op.Form() == FormMultiANewArray {
			d.Text += fmt.Sprintf(" dims=%d", code[pc+3])
		}

	case FormBranch:
		d.Length = 3
		if err := need(3); err != nil {
			return d, err
		}
		d.Text = fmt.Sprintf("%s %d", op, pc+int(int16(u2(pc+1))))

	case FormBranchWide:
		d.Length = 5
		if err := need(5); err != nil {
			return d, err
		}
		d.Text = fmt.Sprintf("%s %d", op, pc+int(s4(pc+1)))

	case FormTableSwitch, FormLookupSwitch:
		base := (pc + 4) &^ 3
		if err := need(base - pc + 8); err != nil {
			return d, err
		}
		dflt := pc + int(s4(base))
		var b strings.Builder
		fmt.Fprintf(&b, "%s default=%d", op, dflt)
		if op == OpTableswitch {
			if err := need(base - pc + 12); err != nil {
				return d, err
			}
			low, high := s4(base+4), s4(base+8)
			n := int(high) - int(low) + 1
			if n < 0 || n > len(code) {
				return d, fmt.Errorf("%w: tableswitch %d..%d at %d", ErrMalformedClass, low, high, pc)
			}
			d.Length = base - pc + 12 + 4*n
			if err := need(d.Length); err != nil {
				return d, err
			}
			for i := 0; i < n; i++ {
				fmt.Fprintf(&b, " %d:%d", int(low)+i, pc+int(s4(base+12+4*i)))
			}
		} else {
			n := int(s4(base + 4))
			if n < 0 || n > len(code) {
				return d, fmt.Errorf("%w: lookupswitch with %d pairs at %d", ErrMalformedClass, n, pc)
			}
			d.Length = base - pc + 8 + 8*n
			if err := need(d.Length); err != nil {
				return d, err
			}
			for i := 0; i < n; i++ {
				at := base + 8 + 8*i
				fmt.Fprintf(&b, " %d:%d", s4(at), pc+int(s4(at+4)))
			}
		}
		d.Text = b.String()

	case FormWide:
		if err := need(2); err != nil {
			return d, err
		}
		inner := Opcode(code[pc+1])
		d.Wide = true
		d.Op = inner
		switch inner.Form() {
		case FormVar:
			d.Length = 4
			if err := need(4); err != nil {
				return d, err
			}
			d.Text = fmt.Sprintf("wide %s %d", inner, u2(pc+2))
		case FormIinc:
			d.Length = 6
			if err := need(6); err != nil {
				return d, err
			}
			d.Text = fmt.Sprintf("wide %s %d %d", inner, u2(pc+2), int16(u2(pc+4)))
		default:
			if inner == OpRet {
				d.Length = 4
				if err := need(4); err != nil {
					return d, err
				}
				d.Text = fmt.Sprintf("wide ret %d", u2(pc+2))
				break
			}
			return d, fmt.Errorf("%w: wide %s at %d", ErrMalformedClass, inner, pc)
		}

	default:
		return d, fmt.Errorf("%w: 0x%02X at %d", ErrUnknownOpcode, byte(op), pc)
	}
	return d, nil
}
