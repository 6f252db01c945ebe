// Copyright The llvm-crash-analyzer Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mir defines the machine-level intermediate representation the crash
// analysis works on. A Function holds the decompiled body of one function from
// the crashed binary together with the register snapshot captured at crash
// time; Blocks and Instructions are borrowed, read-only views produced by the
// instruction-set-specific layer (see the x86 package).
package mir

import "strings"

// RegNum identifies a machine register. The numbering is owned by the
// instruction-set layer that produced the operand; the analysis only ever
// compares numbers for equality.
type RegNum uint16

// OperandKind discriminates the three operand shapes the analysis models.
type OperandKind int

const (
	// OpReg is a plain register operand.
	OpReg OperandKind = iota
	// OpImm is an immediate constant encoded in the instruction.
	OpImm
	// OpMem is a memory reference of the form [base+disp].
	OpMem
)

// Operand is one operand of a machine instruction. Operands are created by
// the decoder and owned by their parent instruction; the analysis never
// mutates them.
type Operand struct {
	Kind OperandKind

	// Reg is the register for OpReg operands and the base register for
	// OpMem operands. Zero for immediates.
	Reg RegNum

	// Imm is the constant value for OpImm operands.
	Imm int64

	// Disp is the addressing displacement for OpMem operands.
	Disp int64

	regName string
	parent  *Instruction
}

// NewRegOperand returns a register operand. The name is the architecture
// assembly name and is normalized to lower case.
func NewRegOperand(reg RegNum, name string) *Operand {
	return &Operand{Kind: OpReg, Reg: reg, regName: strings.ToLower(name)}
}

// NewImmOperand returns an immediate operand.
func NewImmOperand(value int64) *Operand {
	return &Operand{Kind: OpImm, Imm: value}
}

// NewMemOperand returns a memory-reference operand with the given base
// register and displacement.
func NewMemOperand(base RegNum, name string, disp int64) *Operand {
	return &Operand{Kind: OpMem, Reg: base, Disp: disp, regName: strings.ToLower(name)}
}

// IsImm reports whether the operand is an immediate constant.
func (o *Operand) IsImm() bool { return o.Kind == OpImm }

// IsMem reports whether the operand is a memory reference.
func (o *Operand) IsMem() bool { return o.Kind == OpMem }

// RegName returns the lower-case assembly name of the operand's register
// (the base register for memory operands), or "" for immediates.
func (o *Operand) RegName() string { return o.regName }

// Parent returns the instruction this operand belongs to.
func (o *Operand) Parent() *Instruction { return o.parent }

// DebugLoc is the source position attached to an instruction when the binary
// carried debug metadata for it.
type DebugLoc struct {
	File string
	Line int
}

// InstrFlags mark properties of an instruction that the walkers query.
type InstrFlags uint8

const (
	// FlagCrashStart marks the instruction the fault was raised at. In
	// caller frames it marks the instruction execution stopped at.
	FlagCrashStart InstrFlags = 1 << iota
	// FlagCall marks call instructions.
	FlagCall
	// FlagBranch marks jump instructions, conditional or not.
	FlagBranch
)

// Instruction is a single decoded machine instruction.
type Instruction struct {
	// PC is the virtual address the instruction was decoded at.
	PC uint64

	// Mnemonic is the lower-case opcode name, e.g. "mov".
	Mnemonic string

	// Text is the full rendered assembly text of the instruction.
	Text string

	// Operands lists the instruction's operands in encoding order.
	Operands []*Operand

	// Loc is the source position for the instruction, nil when the binary
	// was built without debug info.
	Loc *DebugLoc

	Flags InstrFlags

	parent *Block
}

// IsCrashStart reports whether this is the flagged crash-originating
// instruction of its frame.
func (i *Instruction) IsCrashStart() bool { return i.Flags&FlagCrashStart != 0 }

// IsCall reports whether the instruction is a call.
func (i *Instruction) IsCall() bool { return i.Flags&FlagCall != 0 }

// IsBranch reports whether the instruction is a branch.
func (i *Instruction) IsBranch() bool { return i.Flags&FlagBranch != 0 }

// Parent returns the enclosing block.
func (i *Instruction) Parent() *Block { return i.parent }

// Function returns the enclosing function, or nil for a detached instruction.
func (i *Instruction) Function() *Function {
	if i.parent == nil {
		return nil
	}
	return i.parent.parent
}

// Block is a straight-line sequence of instructions. The walkers iterate
// blocks and instructions in reverse storage order.
type Block struct {
	Instrs []*Instruction

	parent *Function
}

// Append adds an instruction at the end of the block and records the
// parent links on the instruction and its operands.
func (b *Block) Append(i *Instruction) {
	i.parent = b
	for _, op := range i.Operands {
		op.parent = i
	}
	b.Instrs = append(b.Instrs, i)
}

// Parent returns the enclosing function.
func (b *Block) Parent() *Function { return b.parent }

// InstrInfo is the instruction-set-specific layer the walkers consult. It
// owns the knowledge of which operands an instruction writes and reads and
// which instructions delimit a stack frame.
type InstrInfo interface {
	// DestAndSrc extracts the destination/source operand pair of an
	// instruction, or nil when the instruction has no modeled pair.
	DestAndSrc(i *Instruction) *DestSourcePair

	// IsPushPop reports whether the instruction pushes to or pops from the
	// stack, marking a frame prologue or epilogue boundary.
	IsPushPop(i *Instruction) bool
}

// DestSourcePair is the transient per-instruction operand view handed to the
// taint engine: a destination, a source and an optional second source for
// three-operand forms. Offsets are present only for memory operands.
type DestSourcePair struct {
	Destination *Operand
	Source      *Operand
	Source2     *Operand

	DestOffset *int64
	SrcOffset  *int64
	Src2Offset *int64
}

// Function is the instruction-level representation of one function from the
// crashed binary, together with the crash-time register snapshot it was
// captured under.
type Function struct {
	// Name is the function's symbol name.
	Name string

	// Blocks holds the function body in storage order.
	Blocks []*Block

	// Info is the instruction-set layer that decoded this function.
	Info InstrInfo

	regs map[string]string
}

// NewFunction returns an empty function. The regs map is the crash-context
// register snapshot, keyed by lower-case assembly register name with hex
// text values; it may be nil when no context was captured.
func NewFunction(name string, info InstrInfo, regs map[string]string) *Function {
	normalized := make(map[string]string, len(regs))
	for reg, value := range regs {
		normalized[strings.ToLower(reg)] = value
	}
	return &Function{Name: name, Info: info, regs: normalized}
}

// NewBlock appends a fresh empty block to the function and returns it.
func (f *Function) NewBlock() *Block {
	b := &Block{parent: f}
	f.Blocks = append(f.Blocks, b)
	return b
}

// RegValue returns the captured hex text value of the named register from
// the crash context, or "" when no value is available. The lookup is
// case-insensitive.
func (f *Function) RegValue(name string) string {
	return f.regs[strings.ToLower(name)]
}
