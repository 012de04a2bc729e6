// Package methodgen attaches type hints to a method as it is generated.
//
// Hints are recorded against instruction handles while the body is still
// being emitted, when no byte offsets exist yet. Once the body is final,
// Materialize resolves the offsets in one pass and converts the recorded
// hints into InvokeReturnType and InstructionTypeArguments attributes.
//
// A Recorder belongs to exactly one method body and is not safe for
// concurrent use.
package methodgen

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/typehints/attr"
	"github.com/chazu/typehints/classfile"
	"github.com/chazu/typehints/hint"
	"github.com/chazu/typehints/offsets"
)

var log = commonlog.GetLogger("typehints.methodgen")

// ErrUnresolvedInstruction is returned when a hinted instruction has no
// offset after resolution, which means the hint was recorded against an
// instruction that is not part of the body.
var ErrUnresolvedInstruction = errors.New("hinted instruction has no offset")

type slotEntry struct {
	id   classfile.InsnID
	slot hint.OptSlot
}

type argEntry struct {
	id    classfile.InsnID
	types []hint.ArgType
}

// Recorder accumulates hints for one method body. Both collections keep
// insertion order; recording the same instruction again replaces its value
// in place.
type Recorder struct {
	slots   []slotEntry
	slotPos map[classfile.InsnID]int
	args    []argEntry
	argPos  map[classfile.InsnID]int

	offsets      offsets.OffsetMap
	materialized bool
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		slotPos: make(map[classfile.InsnID]int),
		argPos:  make(map[classfile.InsnID]int),
	}
}

func (r *Recorder) checkOpen() {
	if r.materialized {
		panic("methodgen: hint recorded after attributes were materialized")
	}
}

// RecordSlotHint records the result-slot type of an instruction.
// hint.NoHint is accepted and dropped at materialization.
func (r *Recorder) RecordSlotHint(id classfile.InsnID, t hint.OptSlot) {
	r.checkOpen()
	if i, ok := r.slotPos[id]; ok {
		r.slots[i].slot = t
		return
	}
	r.slotPos[id] = len(r.slots)
	r.slots = append(r.slots, slotEntry{id: id, slot: t})
}

// RecordArgumentHints records the ordered operand types of an instruction.
// An empty list is kept and materializes as a hint with no types.
func (r *Recorder) RecordArgumentHints(id classfile.InsnID, types []hint.ArgType) {
	r.checkOpen()
	types = append([]hint.ArgType{}, types...)
	if i, ok := r.argPos[id]; ok {
		r.args[i].types = types
		return
	}
	r.argPos[id] = len(r.args)
	r.args = append(r.args, argEntry{id: id, types: types})
}

// Empty reports whether nothing has been recorded.
func (r *Recorder) Empty() bool {
	return len(r.slots) == 0 && len(r.args) == 0
}

// Len returns the number of recorded slot hints and argument hints.
func (r *Recorder) Len() (slots, args int) {
	return len(r.slots), len(r.args)
}

// offsetMap returns the map built by Materialize. Only Materialize may build
// it, so hints always land on offsets of the body they were attached with.
func (r *Recorder) offsetMap() *offsets.OffsetMap {
	return &r.offsets
}

// Materialize resolves offsets for code and attaches the hint attributes to
// sink. Each attribute is attached only if it has at least one record. With
// nothing recorded it does nothing, not even resolution. Calling it again
// after success attaches nothing. On error nothing is attached.
func (r *Recorder) Materialize(code offsets.Code, sink classfile.AttributeSink) error {
	if r.materialized || r.Empty() {
		return nil
	}
	if err := r.offsets.Build(code); err != nil {
		return err
	}
	r.dump(code)

	var ret attr.InvokeReturnType
	for _, e := range r.slots {
		t, ok := e.slot.Get()
		if !ok {
			continue
		}
		off, ok := r.offsets.Lookup(e.id)
		if !ok {
			return fmt.Errorf("%w: slot hint on instruction %d", ErrUnresolvedInstruction, e.id)
		}
		ret.Hints = append(ret.Hints, hint.SlotHint{Offset: off, Type: t})
	}

	var args attr.InstructionTypeArguments
	for _, e := range r.args {
		off, ok := r.offsets.Lookup(e.id)
		if !ok {
			return fmt.Errorf("%w: argument hints on instruction %d", ErrUnresolvedInstruction, e.id)
		}
		args.Hints = append(args.Hints, hint.ArgHint{Offset: off, Types: e.types})
	}

	if len(ret.Hints) > 0 {
		log.Debugf("attaching %s", ret)
		sink.AddAttribute(ret)
	}
	if len(args.Hints) > 0 {
		log.Debugf("attaching %s", args)
		sink.AddAttribute(args)
	}
	r.materialized = true
	return nil
}

func (r *Recorder) dump(code offsets.Code) {
	if !log.AllowLevel(commonlog.Debug) {
		return
	}
	for _, id := range r.offsets.IDs() {
		off, _ := r.offsets.Lookup(id)
		log.Debugf("%5d: %s", off, code.At(id))
	}
	for _, e := range r.slots {
		log.Debugf("slot hint %d -> %s", e.id, e.slot)
	}
	for _, e := range r.args {
		log.Debugf("argument hints %d -> %v", e.id, e.types)
	}
}
