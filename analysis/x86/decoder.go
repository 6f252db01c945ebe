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

package x86

import (
	"fmt"
	"strings"

	"golang.org/x/arch/x86/x86asm"

	"github.com/bharsesh/llvm-crash-analyzer/analysis/mir"
)

// DecodeParams describes one function body to decode.
type DecodeParams struct {
	// Name is the function's symbol name.
	Name string

	// Code holds the function's machine code bytes.
	Code []byte

	// EntryPC is the virtual address of Code[0].
	EntryPC uint64

	// CrashPC is the address of the instruction execution stopped at in
	// this frame. The matching instruction is flagged as the crash start.
	CrashPC uint64

	// Registers is the crash-context register snapshot.
	Registers map[string]string

	// Lines maps instruction addresses to source positions, when the
	// binary carried debug info.
	Lines map[uint64]mir.DebugLoc
}

// DecodeFunction lowers a raw code region into a mir.Function with a single
// block holding the decoded instructions in program order.
func DecodeFunction(p DecodeParams) (*mir.Function, error) {
	fn := mir.NewFunction(p.Name, InstrInfo{}, p.Registers)
	block := fn.NewBlock()

	pc := p.EntryPC
	code := p.Code
	for len(code) > 0 {
		inst, err := x86asm.Decode(code, 64)
		if err != nil {
			return nil, fmt.Errorf("could not decode instruction at %#x in %s: %w", pc, p.Name, err)
		}
		block.Append(lowerInst(inst, pc, p))
		pc += uint64(inst.Len)
		code = code[inst.Len:]
	}
	return fn, nil
}

func lowerInst(inst x86asm.Inst, pc uint64, p DecodeParams) *mir.Instruction {
	mnemonic := strings.ToLower(inst.Op.String())
	mi := &mir.Instruction{
		PC:       pc,
		Mnemonic: mnemonic,
		Text:     x86asm.IntelSyntax(inst, pc, nil),
		Flags:    classify(mnemonic),
	}
	if pc == p.CrashPC {
		mi.Flags |= mir.FlagCrashStart
	}
	if loc, ok := p.Lines[pc]; ok {
		mi.Loc = &mir.DebugLoc{File: loc.File, Line: loc.Line}
	}
	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		if op := lowerArg(arg); op != nil {
			mi.Operands = append(mi.Operands, op)
		}
	}
	return mi
}

func classify(mnemonic string) mir.InstrFlags {
	switch {
	case mnemonic == "call" || mnemonic == "lcall":
		return mir.FlagCall
	case strings.HasPrefix(mnemonic, "j") || strings.HasPrefix(mnemonic, "loop"):
		return mir.FlagBranch
	default:
		return 0
	}
}

func lowerArg(arg x86asm.Arg) *mir.Operand {
	switch a := arg.(type) {
	case x86asm.Reg:
		return mir.NewRegOperand(mir.RegNum(a), a.String())
	case x86asm.Imm:
		return mir.NewImmOperand(int64(a))
	case x86asm.Mem:
		// Scaled-index addressing is reduced to the base register; the
		// index contribution is not modeled.
		return mir.NewMemOperand(mir.RegNum(a.Base), a.Base.String(), a.Disp)
	default:
		// Rel branch targets carry no dataflow.
		return nil
	}
}
