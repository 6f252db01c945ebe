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
	"encoding/hex"
	"testing"

	"github.com/bharsesh/llvm-crash-analyzer/analysis/mir"
)

// A small leaf function:
//
//	401000: 55                    push rbp
//	401001: 48 89 e5              mov rbp, rsp
//	401004: 48 c7 c0 00 00 00 00  mov rax, 0
//	40100b: 48 8b 18              mov rbx, [rax]
//	40100e: 5d                    pop rbp
//	40100f: c3                    ret
const leafCode = "554889e548c7c000000000488b185dc3"

func decodeLeaf(t *testing.T, crashPC uint64) *mir.Function {
	t.Helper()
	code, err := hex.DecodeString(leafCode)
	if err != nil {
		t.Fatalf("bad test encoding: %v", err)
	}
	fn, err := DecodeFunction(DecodeParams{
		Name:    "leaf",
		Code:    code,
		EntryPC: 0x401000,
		CrashPC: crashPC,
		Lines:   map[uint64]mir.DebugLoc{0x401004: {File: "leaf.c", Line: 5}},
	})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return fn
}

func TestDecodeFunction(t *testing.T) {
	fn := decodeLeaf(t, 0x40100b)
	if len(fn.Blocks) != 1 {
		t.Fatalf("expected a single block, got %d", len(fn.Blocks))
	}
	instrs := fn.Blocks[0].Instrs
	if len(instrs) != 6 {
		t.Fatalf("expected 6 instructions, got %d", len(instrs))
	}

	wantMnemonics := []string{"push", "mov", "mov", "mov", "pop", "ret"}
	wantPCs := []uint64{0x401000, 0x401001, 0x401004, 0x40100b, 0x40100e, 0x40100f}
	for i, mi := range instrs {
		if mi.Mnemonic != wantMnemonics[i] {
			t.Errorf("instr %d: mnemonic %q, want %q", i, mi.Mnemonic, wantMnemonics[i])
		}
		if mi.PC != wantPCs[i] {
			t.Errorf("instr %d: pc %#x, want %#x", i, mi.PC, wantPCs[i])
		}
		if mi.Text == "" {
			t.Errorf("instr %d: empty rendered text", i)
		}
		if mi.Parent() == nil || mi.Function() != fn {
			t.Errorf("instr %d: parent links not wired", i)
		}
	}

	if !instrs[3].IsCrashStart() {
		t.Errorf("instruction at the crash pc must be flagged")
	}
	if instrs[2].IsCrashStart() {
		t.Errorf("only the crash pc instruction may be flagged")
	}
	if instrs[2].Loc == nil || instrs[2].Loc.Line != 5 {
		t.Errorf("line table entry not attached: %+v", instrs[2].Loc)
	}
	if instrs[3].Loc != nil {
		t.Errorf("no line table entry expected at %#x", instrs[3].PC)
	}
}

func TestInstrInfoPushPop(t *testing.T) {
	fn := decodeLeaf(t, 0x40100b)
	instrs := fn.Blocks[0].Instrs
	info := InstrInfo{}
	if !info.IsPushPop(instrs[0]) || !info.IsPushPop(instrs[4]) {
		t.Errorf("push/pop not recognized")
	}
	if info.IsPushPop(instrs[2]) || info.IsPushPop(instrs[5]) {
		t.Errorf("mov/ret misclassified as push/pop")
	}
}

func TestDestAndSrcImmediate(t *testing.T) {
	fn := decodeLeaf(t, 0x40100b)
	// mov rax, 0
	ds := InstrInfo{}.DestAndSrc(fn.Blocks[0].Instrs[2])
	if ds == nil {
		t.Fatalf("expected a dest/src pair for mov rax, 0")
	}
	if ds.Destination == nil || ds.Destination.IsMem() || ds.Destination.RegName() != "rax" {
		t.Errorf("unexpected destination: %+v", ds.Destination)
	}
	if ds.Source == nil || !ds.Source.IsImm() || ds.Source.Imm != 0 {
		t.Errorf("unexpected source: %+v", ds.Source)
	}
	if ds.DestOffset != nil || ds.SrcOffset != nil {
		t.Errorf("register/immediate operands must have no offsets")
	}
}

func TestDestAndSrcMemoryLoad(t *testing.T) {
	fn := decodeLeaf(t, 0x40100b)
	// mov rbx, [rax]
	ds := InstrInfo{}.DestAndSrc(fn.Blocks[0].Instrs[3])
	if ds == nil {
		t.Fatalf("expected a dest/src pair for mov rbx, [rax]")
	}
	if ds.Destination.RegName() != "rbx" {
		t.Errorf("destination is %q, want rbx", ds.Destination.RegName())
	}
	if ds.Source == nil || !ds.Source.IsMem() || ds.Source.RegName() != "rax" {
		t.Errorf("unexpected source: %+v", ds.Source)
	}
	if ds.SrcOffset == nil || *ds.SrcOffset != 0 {
		t.Errorf("memory source must carry its displacement as offset")
	}
}

func TestDestAndSrcNone(t *testing.T) {
	fn := decodeLeaf(t, 0x40100b)
	info := InstrInfo{}
	// ret and push have no modeled pair.
	if ds := info.DestAndSrc(fn.Blocks[0].Instrs[5]); ds != nil {
		t.Errorf("ret should have no dest/src pair, got %+v", ds)
	}
	if ds := info.DestAndSrc(fn.Blocks[0].Instrs[0]); ds != nil {
		t.Errorf("push should have no dest/src pair, got %+v", ds)
	}
}

func TestClassifyCallsAndBranches(t *testing.T) {
	// e8 00 00 00 00   call rel32
	// eb 00            jmp short
	// 74 00            je short
	// 90               nop
	code, err := hex.DecodeString("e800000000eb00740090")
	if err != nil {
		t.Fatalf("bad test encoding: %v", err)
	}
	fn, err := DecodeFunction(DecodeParams{Name: "ctrl", Code: code, EntryPC: 0x400000})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	instrs := fn.Blocks[0].Instrs
	if len(instrs) != 4 {
		t.Fatalf("expected 4 instructions, got %d", len(instrs))
	}
	if !instrs[0].IsCall() {
		t.Errorf("call not classified")
	}
	if !instrs[1].IsBranch() || !instrs[2].IsBranch() {
		t.Errorf("jumps not classified as branches")
	}
	if instrs[3].IsCall() || instrs[3].IsBranch() {
		t.Errorf("nop misclassified")
	}
}

func TestDecodeBadBytes(t *testing.T) {
	_, err := DecodeFunction(DecodeParams{Name: "bad", Code: []byte{0x48}, EntryPC: 0x400000})
	if err == nil {
		t.Fatalf("expected a decode error for a truncated instruction")
	}
}

func TestDecodeStackStore(t *testing.T) {
	// 48 89 45 f8   mov [rbp-8], rax
	code, err := hex.DecodeString("488945f8")
	if err != nil {
		t.Fatalf("bad test encoding: %v", err)
	}
	fn, err := DecodeFunction(DecodeParams{Name: "store", Code: code, EntryPC: 0x400000})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	ds := InstrInfo{}.DestAndSrc(fn.Blocks[0].Instrs[0])
	if ds == nil {
		t.Fatalf("expected a dest/src pair")
	}
	if !ds.Destination.IsMem() || ds.Destination.RegName() != "rbp" {
		t.Errorf("unexpected destination: %+v", ds.Destination)
	}
	if ds.DestOffset == nil || *ds.DestOffset != -8 {
		t.Errorf("expected destination offset -8, got %v", ds.DestOffset)
	}
}
