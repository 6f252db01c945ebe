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

package taint

import (
	"errors"
	"io"
	"testing"

	"github.com/bharsesh/llvm-crash-analyzer/analysis/config"
	"github.com/bharsesh/llvm-crash-analyzer/analysis/mir"
	"github.com/bharsesh/llvm-crash-analyzer/analysis/x86"
)

// Register numbers for hand-built operands. The analysis only compares the
// numbers, so any consistent assignment works.
const (
	regRAX mir.RegNum = iota + 1
	regRBX
	regRCX
	regRDX
	regRSP
	regRBP
)

var regNames = map[mir.RegNum]string{
	regRAX: "rax",
	regRBX: "rbx",
	regRCX: "rcx",
	regRDX: "rdx",
	regRSP: "rsp",
	regRBP: "rbp",
}

func regOp(r mir.RegNum) *mir.Operand { return mir.NewRegOperand(r, regNames[r]) }

func immOp(v int64) *mir.Operand { return mir.NewImmOperand(v) }

func memOp(base mir.RegNum, disp int64) *mir.Operand {
	return mir.NewMemOperand(base, regNames[base], disp)
}

func ins(mnemonic string, flags mir.InstrFlags, ops ...*mir.Operand) *mir.Instruction {
	return &mir.Instruction{Mnemonic: mnemonic, Text: mnemonic, Operands: ops, Flags: flags}
}

func buildFunc(name string, regs map[string]string, instrs ...*mir.Instruction) *mir.Function {
	fn := mir.NewFunction(name, x86.InstrInfo{}, regs)
	blk := fn.NewBlock()
	for _, mi := range instrs {
		blk.Append(mi)
	}
	return fn
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.NewDefault()
	logger := config.NewLogGroup(cfg)
	logger.SetAllOutput(io.Discard)
	return NewEngine(cfg, logger)
}

func concreteTaint(addr uint64) TaintInfo {
	off := int64(0)
	return TaintInfo{
		Op:                    memOp(regRSP, 0),
		Offset:                &off,
		IsConcreteMemory:      true,
		ConcreteMemoryAddress: addr,
	}
}

func regTaint(r mir.RegNum) TaintInfo {
	return TaintInfo{Op: regOp(r)}
}

func checkEquivalence(t *testing.T, a, b, c TaintInfo) {
	t.Helper()
	for _, ti := range []TaintInfo{a, b, c} {
		if !ti.Equal(ti) {
			t.Errorf("%s should equal itself", ti)
		}
	}
	if a.Equal(b) != b.Equal(a) {
		t.Errorf("equality of %s and %s is not symmetric", a, b)
	}
	if a.Equal(b) && b.Equal(c) && !a.Equal(c) {
		t.Errorf("equality of %s, %s, %s is not transitive", a, b, c)
	}
}

func TestTaintInfoEqualConcreteMemory(t *testing.T) {
	a := concreteTaint(0x7ffee008)
	b := concreteTaint(0x7ffee008)
	c := concreteTaint(0x7ffee008)
	checkEquivalence(t, a, b, c)
	if !a.Equal(b) {
		t.Errorf("same resolved address should be equal")
	}
	if a.Equal(concreteTaint(0x7ffee010)) {
		t.Errorf("different resolved addresses should not be equal")
	}
}

func TestTaintInfoEqualRegisters(t *testing.T) {
	a := regTaint(regRAX)
	b := regTaint(regRAX)
	c := regTaint(regRAX)
	checkEquivalence(t, a, b, c)
	if a.Equal(regTaint(regRBX)) {
		t.Errorf("different registers should not be equal")
	}
}

func TestTaintInfoEqualOffsetIgnoredForRegisters(t *testing.T) {
	// Two unresolved accesses through the same base register are the same
	// location, whatever the offsets.
	off8, off16 := int64(8), int64(16)
	a := TaintInfo{Op: memOp(regRAX, 8), Offset: &off8}
	b := TaintInfo{Op: memOp(regRAX, 16), Offset: &off16}
	if !a.Equal(b) {
		t.Errorf("unresolved locations with the same base register should be equal")
	}
}

func TestTaintInfoEqualConcreteVsRegister(t *testing.T) {
	if concreteTaint(0x1000).Equal(regTaint(regRSP)) {
		t.Errorf("a resolved memory location should not equal a register location")
	}
}

func TestAddSkipsImmediateAndNil(t *testing.T) {
	e := newTestEngine(t)
	e.addToTaintList(TaintInfo{Op: immOp(42)})
	e.addToTaintList(TaintInfo{})
	if !e.Empty() {
		t.Errorf("taint list should stay empty after adding imm and nil operands")
	}
}

func TestRemoveNotTracked(t *testing.T) {
	e := newTestEngine(t)
	e.addToTaintList(regTaint(regRAX))
	err := e.removeFromTaintList(regTaint(regRBX))
	if !errors.Is(err, ErrNotTracked) {
		t.Fatalf("expected ErrNotTracked, got %v", err)
	}
	if err := e.removeFromTaintList(regTaint(regRAX)); err != nil {
		t.Fatalf("removing a member should succeed, got %v", err)
	}
	if !e.Empty() {
		t.Errorf("taint list should be empty after removal")
	}
}

func TestIsTaintedSentinel(t *testing.T) {
	e := newTestEngine(t)
	if got := e.isTainted(regTaint(regRAX)); got.Op != nil {
		t.Errorf("lookup in an empty list should return the nil-operand sentinel, got %s", got)
	}
	e.addToTaintList(regTaint(regRAX))
	if got := e.isTainted(regTaint(regRAX)); got.Op == nil {
		t.Errorf("lookup should find the tracked register")
	}
}

func TestCalculateMemAddrStackPointer(t *testing.T) {
	e := newTestEngine(t)
	mi := ins("mov", 0, memOp(regRSP, 8), regOp(regRAX))
	buildFunc("f", map[string]string{"rsp": "7ffee000"}, mi)

	off := int64(8)
	ti := e.newTaint(mi.Operands[0], &off)
	if !ti.IsConcreteMemory {
		t.Fatalf("rsp-based location should resolve to a concrete address")
	}
	if ti.ConcreteMemoryAddress != 0x7ffee008 {
		t.Errorf("expected address 0x7ffee008, got %#x", ti.ConcreteMemoryAddress)
	}
}

func TestCalculateMemAddrHexPrefix(t *testing.T) {
	e := newTestEngine(t)
	mi := ins("mov", 0, memOp(regRBP, -16), regOp(regRAX))
	buildFunc("f", map[string]string{"rbp": "0x7ffee100"}, mi)

	off := int64(-16)
	ti := e.newTaint(mi.Operands[0], &off)
	if !ti.IsConcreteMemory {
		t.Fatalf("rbp-based location should resolve to a concrete address")
	}
	if ti.ConcreteMemoryAddress != 0x7ffee0f0 {
		t.Errorf("expected address 0x7ffee0f0, got %#x", ti.ConcreteMemoryAddress)
	}
}

func TestCalculateMemAddrNonAnchorRegister(t *testing.T) {
	e := newTestEngine(t)
	mi := ins("mov", 0, regOp(regRBX), memOp(regRAX, 0))
	buildFunc("f", map[string]string{"rax": "1000"}, mi)

	off := int64(0)
	ti := e.newTaint(mi.Operands[1], &off)
	if ti.IsConcreteMemory {
		t.Errorf("a non-anchor base register must not resolve, even with a captured value")
	}
}

func TestCalculateMemAddrMissingValue(t *testing.T) {
	e := newTestEngine(t)
	mi := ins("mov", 0, regOp(regRBX), memOp(regRSP, 8))
	buildFunc("f", nil, mi)

	off := int64(8)
	ti := e.newTaint(mi.Operands[1], &off)
	if ti.IsConcreteMemory {
		t.Errorf("a register with no captured value must not resolve")
	}
}
