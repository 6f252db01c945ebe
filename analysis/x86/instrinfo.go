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

// Package x86 is the instruction-set-specific layer for 64-bit x86: a decoder
// that lowers raw code bytes into the mir representation, and the InstrInfo
// implementation that extracts destination/source operand pairs from it.
package x86

import (
	"strings"

	"github.com/bharsesh/llvm-crash-analyzer/analysis/mir"
)

// InstrInfo implements mir.InstrInfo for 64-bit x86.
type InstrInfo struct{}

var _ mir.InstrInfo = InstrInfo{}

// dataOps are the two/three-operand instructions for which the first operand
// is written and the remaining operands are read. Condition-code effects are
// not modeled.
var dataOps = map[string]bool{
	"mov":    true,
	"movsx":  true,
	"movsxd": true,
	"movzx":  true,
	"lea":    true,
	"add":    true,
	"adc":    true,
	"sub":    true,
	"sbb":    true,
	"and":    true,
	"or":     true,
	"xor":    true,
	"shl":    true,
	"shr":    true,
	"sar":    true,
	"rol":    true,
	"ror":    true,
	"imul":   true,
	"xchg":   true,
}

// unaryOps read and write their single operand.
var unaryOps = map[string]bool{
	"inc": true,
	"dec": true,
	"neg": true,
	"not": true,
}

// IsPushPop reports whether the instruction pushes to or pops from the stack.
// The push/pop of the frame pointer delimits the prologue and epilogue of a
// frame, which is where the backward walk of a frame stops.
func (InstrInfo) IsPushPop(i *mir.Instruction) bool {
	return strings.HasPrefix(i.Mnemonic, "push") || strings.HasPrefix(i.Mnemonic, "pop")
}

// DestAndSrc extracts the destination and up to two source operands of an
// instruction. It returns nil for instructions that do not write a modeled
// operand (compares, returns, branches, string ops, ...).
func (InstrInfo) DestAndSrc(i *mir.Instruction) *mir.DestSourcePair {
	switch {
	case dataOps[i.Mnemonic] || strings.HasPrefix(i.Mnemonic, "cmov"):
		if len(i.Operands) < 2 {
			return nil
		}
		ds := &mir.DestSourcePair{
			Destination: i.Operands[0],
			Source:      i.Operands[1],
		}
		ds.DestOffset = memOffset(ds.Destination)
		ds.SrcOffset = memOffset(ds.Source)
		if len(i.Operands) > 2 {
			ds.Source2 = i.Operands[2]
			ds.Src2Offset = memOffset(ds.Source2)
		}
		return ds
	case unaryOps[i.Mnemonic]:
		if len(i.Operands) < 1 {
			return nil
		}
		// Read-modify-write: the operand explains its own prior value.
		ds := &mir.DestSourcePair{
			Destination: i.Operands[0],
			Source:      i.Operands[0],
		}
		ds.DestOffset = memOffset(ds.Destination)
		ds.SrcOffset = memOffset(ds.Source)
		return ds
	default:
		return nil
	}
}

func memOffset(op *mir.Operand) *int64 {
	if op == nil || !op.IsMem() {
		return nil
	}
	disp := op.Disp
	return &disp
}
