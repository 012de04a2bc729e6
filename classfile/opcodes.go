package classfile

import "fmt"

// Opcode is a JVM instruction opcode. Values above jsr_w are the internal
// long-branch placeholders a bytecode writer uses while it resizes a method
// body; they never appear in a finished class file.
type Opcode uint8

// Standard JVM opcodes.
const (
	OpNop             Opcode = 0
	OpAconstNull      Opcode = 1
	OpIconstM1        Opcode = 2
	OpIconst0         Opcode = 3
	OpIconst1         Opcode = 4
	OpIconst2         Opcode = 5
	OpIconst3         Opcode = 6
	OpIconst4         Opcode = 7
	OpIconst5         Opcode = 8
	OpLconst0         Opcode = 9
	OpLconst1         Opcode = 10
	OpFconst0         Opcode = 11
	OpFconst1         Opcode = 12
	OpFconst2         Opcode = 13
	OpDconst0         Opcode = 14
	OpDconst1         Opcode = 15
	OpBipush          Opcode = 16
	OpSipush          Opcode = 17
	OpLdc             Opcode = 18
	OpLdcW            Opcode = 19
	OpLdc2W           Opcode = 20
	OpIload           Opcode = 21
	OpLload           Opcode = 22
	OpFload           Opcode = 23
	OpDload           Opcode = 24
	OpAload           Opcode = 25
	OpIload0          Opcode = 26
	OpIload1          Opcode = 27
	OpIload2          Opcode = 28
	OpIload3          Opcode = 29
	OpLload0          Opcode = 30
	OpLload1          Opcode = 31
	OpLload2          Opcode = 32
	OpLload3          Opcode = 33
	OpFload0          Opcode = 34
	OpFload1          Opcode = 35
	OpFload2          Opcode = 36
	OpFload3          Opcode = 37
	OpDload0          Opcode = 38
	OpDload1          Opcode = 39
	OpDload2          Opcode = 40
	OpDload3          Opcode = 41
	OpAload0          Opcode = 42
	OpAload1          Opcode = 43
	OpAload2          Opcode = 44
	OpAload3          Opcode = 45
	OpIaload          Opcode = 46
	OpLaload          Opcode = 47
	OpFaload          Opcode = 48
	OpDaload          Opcode = 49
	OpAaload          Opcode = 50
	OpBaload          Opcode = 51
	OpCaload          Opcode = 52
	OpSaload          Opcode = 53
	OpIstore          Opcode = 54
	OpLstore          Opcode = 55
	OpFstore          Opcode = 56
	OpDstore          Opcode = 57
	OpAstore          Opcode = 58
	OpIstore0         Opcode = 59
	OpIstore1         Opcode = 60
	OpIstore2         Opcode = 61
	OpIstore3         Opcode = 62
	OpLstore0         Opcode = 63
	OpLstore1         Opcode = 64
	OpLstore2         Opcode = 65
	OpLstore3         Opcode = 66
	OpFstore0         Opcode = 67
	OpFstore1         Opcode = 68
	OpFstore2         Opcode = 69
	OpFstore3         Opcode = 70
	OpDstore0         Opcode = 71
	OpDstore1         Opcode = 72
	OpDstore2         Opcode = 73
	OpDstore3         Opcode = 74
	OpAstore0         Opcode = 75
	OpAstore1         Opcode = 76
	OpAstore2         Opcode = 77
	OpAstore3         Opcode = 78
	OpIastore         Opcode = 79
	OpLastore         Opcode = 80
	OpFastore         Opcode = 81
	OpDastore         Opcode = 82
	OpAastore         Opcode = 83
	OpBastore         Opcode = 84
	OpCastore         Opcode = 85
	OpSastore         Opcode = 86
	OpPop             Opcode = 87
	OpPop2            Opcode = 88
	OpDup             Opcode = 89
	OpDupX1           Opcode = 90
	OpDupX2           Opcode = 91
	OpDup2            Opcode = 92
	OpDup2X1          Opcode = 93
	OpDup2X2          Opcode = 94
	OpSwap            Opcode = 95
	OpIadd            Opcode = 96
	OpLadd            Opcode = 97
	OpFadd            Opcode = 98
	OpDadd            Opcode = 99
	OpIsub            Opcode = 100
	OpLsub            Opcode = 101
	OpFsub            Opcode = 102
	OpDsub            Opcode = 103
	OpImul            Opcode = 104
	OpLmul            Opcode = 105
	OpFmul            Opcode = 106
	OpDmul            Opcode = 107
	OpIdiv            Opcode = 108
	OpLdiv            Opcode = 109
	OpFdiv            Opcode = 110
	OpDdiv            Opcode = 111
	OpIrem            Opcode = 112
	OpLrem            Opcode = 113
	OpFrem            Opcode = 114
	OpDrem            Opcode = 115
	OpIneg            Opcode = 116
	OpLneg            Opcode = 117
	OpFneg            Opcode = 118
	OpDneg            Opcode = 119
	OpIshl            Opcode = 120
	OpLshl            Opcode = 121
	OpIshr            Opcode = 122
	OpLshr            Opcode = 123
	OpIushr           Opcode = 124
	OpLushr           Opcode = 125
	OpIand            Opcode = 126
	OpLand            Opcode = 127
	OpIor             Opcode = 128
	OpLor             Opcode = 129
	OpIxor            Opcode = 130
	OpLxor            Opcode = 131
	OpIinc            Opcode = 132
	OpI2l             Opcode = 133
	OpI2f             Opcode = 134
	OpI2d             Opcode = 135
	OpL2i             Opcode = 136
	OpL2f             Opcode = 137
	OpL2d             Opcode = 138
	OpF2i             Opcode = 139
	OpF2l             Opcode = 140
	OpF2d             Opcode = 141
	OpD2i             Opcode = 142
	OpD2l             Opcode = 143
	OpD2f             Opcode = 144
	OpI2b             Opcode = 145
	OpI2c             Opcode = 146
	OpI2s             Opcode = 147
	OpLcmp            Opcode = 148
	OpFcmpl           Opcode = 149
	OpFcmpg           Opcode = 150
	OpDcmpl           Opcode = 151
	OpDcmpg           Opcode = 152
	OpIfeq            Opcode = 153
	OpIfne            Opcode = 154
	OpIflt            Opcode = 155
	OpIfge            Opcode = 156
	OpIfgt            Opcode = 157
	OpIfle            Opcode = 158
	OpIfIcmpeq        Opcode = 159
	OpIfIcmpne        Opcode = 160
	OpIfIcmplt        Opcode = 161
	OpIfIcmpge        Opcode = 162
	OpIfIcmpgt        Opcode = 163
	OpIfIcmple        Opcode = 164
	OpIfAcmpeq        Opcode = 165
	OpIfAcmpne        Opcode = 166
	OpGoto            Opcode = 167
	OpJsr             Opcode = 168
	OpRet             Opcode = 169
	OpTableswitch     Opcode = 170
	OpLookupswitch    Opcode = 171
	OpIreturn         Opcode = 172
	OpLreturn         Opcode = 173
	OpFreturn         Opcode = 174
	OpDreturn         Opcode = 175
	OpAreturn         Opcode = 176
	OpReturn          Opcode = 177
	OpGetstatic       Opcode = 178
	OpPutstatic       Opcode = 179
	OpGetfield        Opcode = 180
	OpPutfield        Opcode = 181
	OpInvokevirtual   Opcode = 182
	OpInvokespecial   Opcode = 183
	OpInvokestatic    Opcode = 184
	OpInvokeinterface Opcode = 185
	OpInvokedynamic   Opcode = 186
	OpNew             Opcode = 187
	OpNewarray        Opcode = 188
	OpAnewarray       Opcode = 189
	OpArraylength     Opcode = 190
	OpAthrow          Opcode = 191
	OpCheckcast       Opcode = 192
	OpInstanceof      Opcode = 193
	OpMonitorenter    Opcode = 194
	OpMonitorexit     Opcode = 195
	OpWide            Opcode = 196
	OpMultianewarray  Opcode = 197
	OpIfnull          Opcode = 198
	OpIfnonnull       Opcode = 199
	OpGotoW           Opcode = 200
	OpJsrW            Opcode = 201
)

// Internal long-branch placeholders. ASM_IFEQ..ASM_JSR sit 49 above their
// standard forms, ASM_IFNULL and ASM_IFNONNULL sit 20 above theirs.
const (
	OpAsmIfeq      Opcode = 202
	OpAsmIfne      Opcode = 203
	OpAsmIflt      Opcode = 204
	OpAsmIfge      Opcode = 205
	OpAsmIfgt      Opcode = 206
	OpAsmIfle      Opcode = 207
	OpAsmIfIcmpeq  Opcode = 208
	OpAsmIfIcmpne  Opcode = 209
	OpAsmIfIcmplt  Opcode = 210
	OpAsmIfIcmpge  Opcode = 211
	OpAsmIfIcmpgt  Opcode = 212
	OpAsmIfIcmple  Opcode = 213
	OpAsmIfAcmpeq  Opcode = 214
	OpAsmIfAcmpne  Opcode = 215
	OpAsmGoto      Opcode = 216
	OpAsmJsr       Opcode = 217
	OpAsmIfnull    Opcode = 218
	OpAsmIfnonnull Opcode = 219
	OpAsmGotoW     Opcode = 220
)

// Form describes the operand layout that follows an opcode byte.
type Form uint8

const (
	FormUnknown         Form = iota // not in the table
	FormNone                        // no operands
	FormByte                        // u1 or s1 immediate
	FormShort                       // s2 immediate
	FormLdc                         // u1 pool index, widened to ldc_w/ldc2_w when needed
	FormPoolRef                     // u2 pool index
	FormVar                         // local index; short form below 4, wide form above 255
	FormIinc                        // local index and increment
	FormBranch                      // s2 branch offset
	FormBranchWide                  // s4 branch offset
	FormTableSwitch                 // padded jump table
	FormLookupSwitch                // padded match/offset pairs
	FormInvokeInterface             // u2 index, u1 count, u1 zero
	FormInvokeDynamic               // u2 index, u2 zero
	FormMultiANewArray              // u2 index, u1 dimensions
	FormWide                        // explicit wide prefix
)

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name string
	Form Form
}

// opcodeTable maps opcodes to their metadata.
var opcodeTable = map[Opcode]OpcodeInfo{
	OpNop:             {"nop", FormNone},
	OpAconstNull:      {"aconst_null", FormNone},
	OpIconstM1:        {"iconst_m1", FormNone},
	OpIconst0:         {"iconst_0", FormNone},
	OpIconst1:         {"iconst_1", FormNone},
	OpIconst2:         {"iconst_2", FormNone},
	OpIconst3:         {"iconst_3", FormNone},
	OpIconst4:         {"iconst_4", FormNone},
	OpIconst5:         {"iconst_5", FormNone},
	OpLconst0:         {"lconst_0", FormNone},
	OpLconst1:         {"lconst_1", FormNone},
	OpFconst0:         {"fconst_0", FormNone},
	OpFconst1:         {"fconst_1", FormNone},
	OpFconst2:         {"fconst_2", FormNone},
	OpDconst0:         {"dconst_0", FormNone},
	OpDconst1:         {"dconst_1", FormNone},
	OpBipush:          {"bipush", FormByte},
	OpSipush:          {"sipush", FormShort},
	OpLdc:             {"ldc", FormLdc},
	OpLdcW:            {"ldc_w", FormPoolRef},
	OpLdc2W:           {"ldc2_w", FormPoolRef},
	OpIload:           {"iload", FormVar},
	OpLload:           {"lload", FormVar},
	OpFload:           {"fload", FormVar},
	OpDload:           {"dload", FormVar},
	OpAload:           {"aload", FormVar},
	OpIload0:          {"iload_0", FormNone},
	OpIload1:          {"iload_1", FormNone},
	OpIload2:          {"iload_2", FormNone},
	OpIload3:          {"iload_3", FormNone},
	OpLload0:          {"lload_0", FormNone},
	OpLload1:          {"lload_1", FormNone},
	OpLload2:          {"lload_2", FormNone},
	OpLload3:          {"lload_3", FormNone},
	OpFload0:          {"fload_0", FormNone},
	OpFload1:          {"fload_1", FormNone},
	OpFload2:          {"fload_2", FormNone},
	OpFload3:          {"fload_3", FormNone},
	OpDload0:          {"dload_0", FormNone},
	OpDload1:          {"dload_1", FormNone},
	OpDload2:          {"dload_2", FormNone},
	OpDload3:          {"dload_3", FormNone},
	OpAload0:          {"aload_0", FormNone},
	OpAload1:          {"aload_1", FormNone},
	OpAload2:          {"aload_2", FormNone},
	OpAload3:          {"aload_3", FormNone},
	OpIaload:          {"iaload", FormNone},
	OpLaload:          {"laload", FormNone},
	OpFaload:          {"faload", FormNone},
	OpDaload:          {"daload", FormNone},
	OpAaload:          {"aaload", FormNone},
	OpBaload:          {"baload", FormNone},
	OpCaload:          {"caload", FormNone},
	OpSaload:          {"saload", FormNone},
	OpIstore:          {"istore", FormVar},
	OpLstore:          {"lstore", FormVar},
	OpFstore:          {"fstore", FormVar},
	OpDstore:          {"dstore", FormVar},
	OpAstore:          {"astore", FormVar},
	OpIstore0:         {"istore_0", FormNone},
	OpIstore1:         {"istore_1", FormNone},
	OpIstore2:         {"istore_2", FormNone},
	OpIstore3:         {"istore_3", FormNone},
	OpLstore0:         {"lstore_0", FormNone},
	OpLstore1:         {"lstore_1", FormNone},
	OpLstore2:         {"lstore_2", FormNone},
	OpLstore3:         {"lstore_3", FormNone},
	OpFstore0:         {"fstore_0", FormNone},
	OpFstore1:         {"fstore_1", FormNone},
	OpFstore2:         {"fstore_2", FormNone},
	OpFstore3:         {"fstore_3", FormNone},
	OpDstore0:         {"dstore_0", FormNone},
	OpDstore1:         {"dstore_1", FormNone},
	OpDstore2:         {"dstore_2", FormNone},
	OpDstore3:         {"dstore_3", FormNone},
	OpAstore0:         {"astore_0", FormNone},
	OpAstore1:         {"astore_1", FormNone},
	OpAstore2:         {"astore_2", FormNone},
	OpAstore3:         {"astore_3", FormNone},
	OpIastore:         {"iastore", FormNone},
	OpLastore:         {"lastore", FormNone},
	OpFastore:         {"fastore", FormNone},
	OpDastore:         {"dastore", FormNone},
	OpAastore:         {"aastore", FormNone},
	OpBastore:         {"bastore", FormNone},
	OpCastore:         {"castore", FormNone},
	OpSastore:         {"sastore", FormNone},
	OpPop:             {"pop", FormNone},
	OpPop2:            {"pop2", FormNone},
	OpDup:             {"dup", FormNone},
	OpDupX1:           {"dup_x1", FormNone},
	OpDupX2:           {"dup_x2", FormNone},
	OpDup2:            {"dup2", FormNone},
	OpDup2X1:          {"dup2_x1", FormNone},
	OpDup2X2:          {"dup2_x2", FormNone},
	OpSwap:            {"swap", FormNone},
	OpIadd:            {"iadd", FormNone},
	OpLadd:            {"ladd", FormNone},
	OpFadd:            {"fadd", FormNone},
	OpDadd:            {"dadd", FormNone},
	OpIsub:            {"isub", FormNone},
	OpLsub:            {"lsub", FormNone},
	OpFsub:            {"fsub", FormNone},
	OpDsub:            {"dsub", FormNone},
	OpImul:            {"imul", FormNone},
	OpLmul:            {"lmul", FormNone},
	OpFmul:            {"fmul", FormNone},
	OpDmul:            {"dmul", FormNone},
	OpIdiv:            {"idiv", FormNone},
	OpLdiv:            {"ldiv", FormNone},
	OpFdiv:            {"fdiv", FormNone},
	OpDdiv:            {"ddiv", FormNone},
	OpIrem:            {"irem", FormNone},
	OpLrem:            {"lrem", FormNone},
	OpFrem:            {"frem", FormNone},
	OpDrem:            {"drem", FormNone},
	OpIneg:            {"ineg", FormNone},
	OpLneg:            {"lneg", FormNone},
	OpFneg:            {"fneg", FormNone},
	OpDneg:            {"dneg", FormNone},
	OpIshl:            {"ishl", FormNone},
	OpLshl:            {"lshl", FormNone},
	OpIshr:            {"ishr", FormNone},
	OpLshr:            {"lshr", FormNone},
	OpIushr:           {"iushr", FormNone},
	OpLushr:           {"lushr", FormNone},
	OpIand:            {"iand", FormNone},
	OpLand:            {"land", FormNone},
	OpIor:             {"ior", FormNone},
	OpLor:             {"lor", FormNone},
	OpIxor:            {"ixor", FormNone},
	OpLxor:            {"lxor", FormNone},
	OpIinc:            {"iinc", FormIinc},
	OpI2l:             {"i2l", FormNone},
	OpI2f:             {"i2f", FormNone},
	OpI2d:             {"i2d", FormNone},
	OpL2i:             {"l2i", FormNone},
	OpL2f:             {"l2f", FormNone},
	OpL2d:             {"l2d", FormNone},
	OpF2i:             {"f2i", FormNone},
	OpF2l:             {"f2l", FormNone},
	OpF2d:             {"f2d", FormNone},
	OpD2i:             {"d2i", FormNone},
	OpD2l:             {"d2l", FormNone},
	OpD2f:             {"d2f", FormNone},
	OpI2b:             {"i2b", FormNone},
	OpI2c:             {"i2c", FormNone},
	OpI2s:             {"i2s", FormNone},
	OpLcmp:            {"lcmp", FormNone},
	OpFcmpl:           {"fcmpl", FormNone},
	OpFcmpg:           {"fcmpg", FormNone},
	OpDcmpl:           {"dcmpl", FormNone},
	OpDcmpg:           {"dcmpg", FormNone},
	OpIfeq:            {"ifeq", FormBranch},
	OpIfne:            {"ifne", FormBranch},
	OpIflt:            {"iflt", FormBranch},
	OpIfge:            {"ifge", FormBranch},
	OpIfgt:            {"ifgt", FormBranch},
	OpIfle:            {"ifle", FormBranch},
	OpIfIcmpeq:        {"if_icmpeq", FormBranch},
	OpIfIcmpne:        {"if_icmpne", FormBranch},
	OpIfIcmplt:        {"if_icmplt", FormBranch},
	OpIfIcmpge:        {"if_icmpge", FormBranch},
	OpIfIcmpgt:        {"if_icmpgt", FormBranch},
	OpIfIcmple:        {"if_icmple", FormBranch},
	OpIfAcmpeq:        {"if_acmpeq", FormBranch},
	OpIfAcmpne:        {"if_acmpne", FormBranch},
	OpGoto:            {"goto", FormBranch},
	OpJsr:             {"jsr", FormBranch},
	OpRet:             {"ret", FormByte},
	OpTableswitch:     {"tableswitch", FormTableSwitch},
	OpLookupswitch:    {"lookupswitch", FormLookupSwitch},
	OpIreturn:         {"ireturn", FormNone},
	OpLreturn:         {"lreturn", FormNone},
	OpFreturn:         {"freturn", FormNone},
	OpDreturn:         {"dreturn", FormNone},
	OpAreturn:         {"areturn", FormNone},
	OpReturn:          {"return", FormNone},
	OpGetstatic:       {"getstatic", FormPoolRef},
	OpPutstatic:       {"putstatic", FormPoolRef},
	OpGetfield:        {"getfield", FormPoolRef},
	OpPutfield:        {"putfield", FormPoolRef},
	OpInvokevirtual:   {"invokevirtual", FormPoolRef},
	OpInvokespecial:   {"invokespecial", FormPoolRef},
	OpInvokestatic:    {"invokestatic", FormPoolRef},
	OpInvokeinterface: {"invokeinterface", FormInvokeInterface},
	OpInvokedynamic:   {"invokedynamic", FormInvokeDynamic},
	OpNew:             {"new", FormPoolRef},
	OpNewarray:        {"newarray", FormByte},
	OpAnewarray:       {"anewarray", FormPoolRef},
	OpArraylength:     {"arraylength", FormNone},
	OpAthrow:          {"athrow", FormNone},
	OpCheckcast:       {"checkcast", FormPoolRef},
	OpInstanceof:      {"instanceof", FormPoolRef},
	OpMonitorenter:    {"monitorenter", FormNone},
	OpMonitorexit:     {"monitorexit", FormNone},
	OpWide:            {"wide", FormWide},
	OpMultianewarray:  {"multianewarray", FormMultiANewArray},
	OpIfnull:          {"ifnull", FormBranch},
	OpIfnonnull:       {"ifnonnull", FormBranch},
	OpGotoW:           {"goto_w", FormBranchWide},
	OpJsrW:            {"jsr_w", FormBranchWide},
	OpAsmIfeq:         {"asm_ifeq", FormBranch},
	OpAsmIfne:         {"asm_ifne", FormBranch},
	OpAsmIflt:         {"asm_iflt", FormBranch},
	OpAsmIfge:         {"asm_ifge", FormBranch},
	OpAsmIfgt:         {"asm_ifgt", FormBranch},
	OpAsmIfle:         {"asm_ifle", FormBranch},
	OpAsmIfIcmpeq:     {"asm_if_icmpeq", FormBranch},
	OpAsmIfIcmpne:     {"asm_if_icmpne", FormBranch},
	OpAsmIfIcmplt:     {"asm_if_icmplt", FormBranch},
	OpAsmIfIcmpge:     {"asm_if_icmpge", FormBranch},
	OpAsmIfIcmpgt:     {"asm_if_icmpgt", FormBranch},
	OpAsmIfIcmple:     {"asm_if_icmple", FormBranch},
	OpAsmIfAcmpeq:     {"asm_if_acmpeq", FormBranch},
	OpAsmIfAcmpne:     {"asm_if_acmpne", FormBranch},
	OpAsmGoto:         {"asm_goto", FormBranch},
	OpAsmJsr:          {"asm_jsr", FormBranch},
	OpAsmIfnull:       {"asm_ifnull", FormBranch},
	OpAsmIfnonnull:    {"asm_ifnonnull", FormBranch},
	OpAsmGotoW:        {"asm_goto_w", FormBranchWide},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op)), Form: FormUnknown}
}

// Known reports whether the opcode has an entry in the table.
func (op Opcode) Known() bool {
	_, ok := opcodeTable[op]
	return ok
}

// Form returns the operand layout of the opcode.
func (op Opcode) Form() Form {
	return op.Info().Form
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Info().Name
}

// IsPlaceholder reports whether the opcode is an internal long-branch
// placeholder rather than a standard JVM opcode.
func (op Opcode) IsPlaceholder() bool {
	return op >= OpAsmIfeq && op <= OpAsmGotoW
}

// ShortVarForm returns the one-byte xload_n/xstore_n opcode for a generic
// load or store of a local index in 0..3.
func ShortVarForm(op Opcode, index int) (Opcode, bool) {
	if index < 0 || index > 3 {
		return 0, false
	}
	switch {
	case op >= OpIload && op <= OpAload:
		return OpIload0 + Opcode(int(op-OpIload)*4+index), true
	case op >= OpIstore && op <= OpAstore:
		return OpIstore0 + Opcode(int(op-OpIstore)*4+index), true
	}
	return 0, false
}
