package classfile

import "fmt"

// InsnID is a stable handle to an instruction in an InsnList. Handles are
// assigned in emission order and stay valid after the list is frozen, so
// metadata can be keyed by instruction before any byte offset is known.
type InsnID int

// InsnKind distinguishes real instructions from pseudo-instructions.
type InsnKind uint8

const (
	KindReal  InsnKind = iota // encoded into the code array
	KindLabel                 // branch target marker, occupies no bytes
	KindLine                  // source line marker, occupies no bytes
)

// IsPseudo reports whether instructions of this kind occupy no bytes.
func (k InsnKind) IsPseudo() bool {
	return k != KindReal
}

// Label names a branch target. Labels are created by a Builder and bound to
// a position with Builder.Mark.
type Label int

// ConstKind is the kind of constant loaded by ldc.
type ConstKind uint8

const (
	ConstInt ConstKind = iota
	ConstFloat
	ConstLong
	ConstDouble
	ConstString
	ConstClass
	ConstMethodType
	ConstMethodHandle
	ConstDynamic
)

// IsWide reports whether the constant is a 64-bit numeric, which always
// loads through ldc2_w.
func (k ConstKind) IsWide() bool {
	return k == ConstLong || k == ConstDouble
}

func (k ConstKind) String() string {
	switch k {
	case ConstInt:
		return "int"
	case ConstFloat:
		return "float"
	case ConstLong:
		return "long"
	case ConstDouble:
		return "double"
	case ConstString:
		return "string"
	case ConstClass:
		return "class"
	case ConstMethodType:
		return "methodtype"
	case ConstMethodHandle:
		return "methodhandle"
	case ConstDynamic:
		return "dynamic"
	default:
		return fmt.Sprintf("ConstKind(%d)", k)
	}
}

// Insn is one symbolic instruction. Only the fields relevant to Op's form
// are meaningful.
type Insn struct {
	Kind InsnKind
	Op   Opcode

	Var     int       // local index (FormVar, FormIinc, ret)
	Incr    int       // iinc increment
	Operand int32     // bipush/sipush immediate, newarray type code
	Index   uint16    // constant-pool index
	Const   ConstKind // ldc constant kind
	Count   uint8     // invokeinterface count, multianewarray dimensions

	Target  Label   // branch target
	Default Label   // switch default
	Low     int32   // tableswitch lower bound
	High    int32   // tableswitch upper bound
	Keys    []int32 // lookupswitch keys
	Targets []Label // switch targets

	Label Label // bound label (KindLabel)
	Line  int   // source line (KindLine)
}

func (in *Insn) String() string {
	switch in.Kind {
	case KindLabel:
		return fmt.Sprintf("L%d:", in.Label)
	case KindLine:
		return fmt.Sprintf("line %d", in.Line)
	}
	switch in.Op.Form() {
	case FormByte, FormShort:
		if in.Op == OpRet {
			return fmt.Sprintf("%s %d", in.Op, in.Var)
		}
		return fmt.Sprintf("%s %d", in.Op, in.Operand)
	case FormVar:
		return fmt.Sprintf("%s %d", in.Op, in.Var)
	case FormIinc:
		return fmt.Sprintf("%s %d %d", in.Op, in.Var, in.Incr)
	case FormLdc:
		return fmt.Sprintf("%s #%d (%s)", in.Op, in.Index, in.Const)
	case FormPoolRef, FormInvokeDynamic:
		return fmt.Sprintf("%s #%d", in.Op, in.Index)
	case FormInvokeInterface, FormMultiANewArray:
		return fmt.Sprintf("%s #%d %d", in.Op, in.Index, in.Count)
	case FormBranch, FormBranchWide:
		return fmt.Sprintf("%s L%d", in.Op, in.Target)
	case FormTableSwitch:
		return fmt.Sprintf("%s %d..%d", in.Op, in.Low, in.High)
	case FormLookupSwitch:
		return fmt.Sprintf("%s %v", in.Op, in.Keys)
	}
	return in.Op.String()
}

// InsnList is the instruction arena of one method body.
type InsnList struct {
	insns  []Insn
	labels int
	frozen bool
}

// Len returns the number of instructions, pseudo-instructions included.
func (l *InsnList) Len() int {
	return len(l.insns)
}

// At returns the instruction for a handle. It panics on a handle that was
// not issued by this list.
func (l *InsnList) At(id InsnID) *Insn {
	return &l.insns[id]
}

// Frozen reports whether the body has been finalized.
func (l *InsnList) Frozen() bool {
	return l.frozen
}

// LabelCount returns the number of labels created for this body.
func (l *InsnList) LabelCount() int {
	return l.labels
}

func (l *InsnList) add(in Insn) InsnID {
	if l.frozen {
		panic("classfile: emit into a finalized method body")
	}
	l.insns = append(l.insns, in)
	return InsnID(len(l.insns) - 1)
}
