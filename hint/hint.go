// Package hint defines the tagged values that describe a type recovered
// from erased generic code, and the containers pairing them with bytecode
// offsets.
//
// Two tag families exist:
//
//   - ArgType describes one typed operand of an instruction (for example a
//     type argument of an object construction). Its kind is drawn from the
//     instruction-argument alphabet: the JVM primitive descriptors, a plain
//     reference, or a constant-pool class (K) or method (M) entry.
//
//   - SlotType describes the value left in a result slot (for example the
//     inferred return type of a call). Its kind is K or M, or the array
//     forms k and m, and it may carry an outer-class index.
//
// The "no hint" case is an explicit absent OptSlot, never a magic kind.
package hint

import "fmt"

// ArgKind is the one-byte kind of an ArgType.
type ArgKind byte

const (
	ArgByte      ArgKind = 'B'
	ArgChar      ArgKind = 'C'
	ArgDouble    ArgKind = 'D'
	ArgFloat     ArgKind = 'F'
	ArgInt       ArgKind = 'I'
	ArgLong      ArgKind = 'J'
	ArgShort     ArgKind = 'S'
	ArgBoolean   ArgKind = 'Z'
	ArgReference ArgKind = 'L'
	ArgClass     ArgKind = 'K' // index is a constant-pool class entry
	ArgMethod    ArgKind = 'M' // index is a constant-pool method entry
)

// IsPrimitive reports whether the kind names a JVM primitive type.
func (k ArgKind) IsPrimitive() bool {
	switch k {
	case ArgByte, ArgChar, ArgDouble, ArgFloat, ArgInt, ArgLong, ArgShort, ArgBoolean:
		return true
	}
	return false
}

// IsPoolRef reports whether the kind's index points into the constant pool.
func (k ArgKind) IsPoolRef() bool {
	return k == ArgClass || k == ArgMethod
}

func (k ArgKind) String() string {
	if k < 0x20 || k > 0x7e {
		return fmt.Sprintf("ArgKind(%d)", byte(k))
	}
	return string(rune(k))
}

// ArgType is a single instruction-argument type tag.
type ArgType struct {
	Kind  ArgKind
	Index uint16
}

// Predeclared primitive argument types. Primitive kinds always carry index 0.
var (
	Byte      = ArgType{Kind: ArgByte}
	Char      = ArgType{Kind: ArgChar}
	Double    = ArgType{Kind: ArgDouble}
	Float     = ArgType{Kind: ArgFloat}
	Int       = ArgType{Kind: ArgInt}
	Long      = ArgType{Kind: ArgLong}
	Short     = ArgType{Kind: ArgShort}
	Boolean   = ArgType{Kind: ArgBoolean}
	Reference = ArgType{Kind: ArgReference}
)

// ClassArg returns a K-kind argument type referring to pool entry index.
func ClassArg(index uint16) ArgType {
	return ArgType{Kind: ArgClass, Index: index}
}

// MethodArg returns an M-kind argument type referring to pool entry index.
func MethodArg(index uint16) ArgType {
	return ArgType{Kind: ArgMethod, Index: index}
}

func (a ArgType) String() string {
	if a.Kind.IsPoolRef() {
		return fmt.Sprintf("%s#%d", a.Kind, a.Index)
	}
	return a.Kind.String()
}

// SlotKind is the one-byte kind of a SlotType.
type SlotKind byte

const (
	SlotClass       SlotKind = 'K'
	SlotMethod      SlotKind = 'M'
	SlotClassArray  SlotKind = 'k'
	SlotMethodArray SlotKind = 'm'
)

// IsArray reports whether the kind is one of the array forms.
func (k SlotKind) IsArray() bool {
	return k == SlotClassArray || k == SlotMethodArray
}

func (k SlotKind) String() string {
	if k < 0x20 || k > 0x7e {
		return fmt.Sprintf("SlotKind(%d)", byte(k))
	}
	return string(rune(k))
}

// SlotType is a single-slot type tag. Outer is the outer-class index used
// by array and nested kinds; it is 0 when unused.
type SlotType struct {
	Kind  SlotKind
	Outer uint16
	Index uint16
}

func (s SlotType) String() string {
	if s.Outer != 0 {
		return fmt.Sprintf("%s#%d(outer=%d)", s.Kind, s.Index, s.Outer)
	}
	return fmt.Sprintf("%s#%d", s.Kind, s.Index)
}

// OptSlot is a SlotType that may be absent.
type OptSlot struct {
	slot  SlotType
	valid bool
}

// NoHint is the absent slot hint.
var NoHint = OptSlot{}

// Some wraps a present slot type.
func Some(t SlotType) OptSlot {
	return OptSlot{slot: t, valid: true}
}

// Get returns the slot type and whether it is present.
func (o OptSlot) Get() (SlotType, bool) {
	return o.slot, o.valid
}

// IsNoHint reports whether the value is absent.
func (o OptSlot) IsNoHint() bool {
	return !o.valid
}

func (o OptSlot) String() string {
	if !o.valid {
		return "NO_HINT"
	}
	return o.slot.String()
}

// ArgHint pairs an instruction's bytecode offset with the ordered types of
// its typed operands.
type ArgHint struct {
	Offset uint16
	Types  []ArgType
}

// SlotHint pairs an instruction's bytecode offset with the type of its
// result slot.
type SlotHint struct {
	Offset uint16
	Type   SlotType
}

func (h SlotHint) String() string {
	return fmt.Sprintf("@%d %s", h.Offset, h.Type)
}

func (h ArgHint) String() string {
	return fmt.Sprintf("@%d %v", h.Offset, h.Types)
}
