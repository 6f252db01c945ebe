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
	"fmt"
	"strconv"
	"strings"

	"github.com/bharsesh/llvm-crash-analyzer/analysis/config"
	"github.com/bharsesh/llvm-crash-analyzer/analysis/mir"
	"github.com/bharsesh/llvm-crash-analyzer/internal/funcutil"
)

// ErrNotTracked reports the removal of a location that is not in the taint
// list. Callers remove only after a successful lookup, so hitting this is a
// logic defect in the analysis; it aborts the current run.
var ErrNotTracked = errors.New("operand not in taint list")

// TaintInfo identifies one tracked location: either a register operand or a
// memory cell. The operand is borrowed from the enclosing function's
// instruction stream and never owned.
type TaintInfo struct {
	// Op is the backing operand. A nil Op is the "not found" sentinel
	// returned by lookups.
	Op *mir.Operand

	// Offset is the addressing offset, present only for memory operands.
	Offset *int64

	// IsConcreteMemory is true when the location was resolved to a real
	// address from the crash context.
	IsConcreteMemory bool

	// ConcreteMemoryAddress is the resolved address, valid only when
	// IsConcreteMemory is true.
	ConcreteMemoryAddress uint64
}

// IsTaintMemAddr reports whether the location is a resolved memory address.
func (t TaintInfo) IsTaintMemAddr() bool { return t.IsConcreteMemory }

// Equal implements location identity: resolved memory locations compare by
// address, everything else compares by base register number. The addressing
// offset is deliberately not part of the key for unresolved locations, so a
// base register stays tracked across accesses with differing offsets.
func (t TaintInfo) Equal(other TaintInfo) bool {
	if t.IsTaintMemAddr() != other.IsTaintMemAddr() {
		return false
	}

	// For mem taint ops, compare the actual addresses.
	if t.IsTaintMemAddr() && other.IsTaintMemAddr() {
		return t.ConcreteMemoryAddress == other.ConcreteMemoryAddress
	}

	if t.Op == nil || other.Op == nil {
		return t.Op == other.Op
	}

	// For the reg operands compare the reg numbers.
	return t.Op.Reg == other.Op.Reg
}

func (t TaintInfo) String() string {
	switch {
	case t.Op == nil:
		return "<none>"
	case t.IsConcreteMemory:
		return fmt.Sprintf("mem addr %#x", t.ConcreteMemoryAddress)
	case t.Op.IsImm():
		return fmt.Sprintf("imm %d", t.Op.Imm)
	case t.Offset != nil:
		return fmt.Sprintf("[%s%+d]", t.Op.RegName(), *t.Offset)
	default:
		return t.Op.RegName()
	}
}

// Engine performs the backward taint analysis for a single crash. It owns the
// taint list for the whole run; the list is shared across frame walks so that
// taint flows from a callee frame into its caller.
type Engine struct {
	cfg *config.Config
	log *config.LogGroup

	taintList []TaintInfo
	blames    []*Report
}

// NewEngine returns an engine for one crash analysis run.
func NewEngine(cfg *config.Config, logger *config.LogGroup) *Engine {
	return &Engine{cfg: cfg, log: logger}
}

// Empty reports whether no tainted location is left to track.
func (e *Engine) Empty() bool { return len(e.taintList) == 0 }

// newTaint builds the taint location for one operand and resolves its memory
// address when the operand has an addressing offset.
func (e *Engine) newTaint(op *mir.Operand, offset *int64) TaintInfo {
	ti := TaintInfo{Op: op, Offset: offset}
	if ti.Offset != nil {
		e.calculateMemAddr(&ti)
	}
	return ti
}

// calculateMemAddr resolves a register+offset location to a concrete address
// using the register values captured in the crash context. Only the frame
// anchor registers (rsp/rbp by default) are trusted to still hold their
// crash-time values; for any other base register, or when no value was
// captured, the location stays unresolved and the analysis falls back to
// register-identity comparison.
func (e *Engine) calculateMemAddr(ti *TaintInfo) {
	if ti.Op == nil || ti.Op.IsImm() || ti.Offset == nil {
		return
	}

	ti.IsConcreteMemory = true
	regName := ti.Op.RegName()
	regValue := ""
	if mi := ti.Op.Parent(); mi != nil {
		if fn := mi.Function(); fn != nil {
			regValue = fn.RegValue(regName)
		}
	}

	if regValue == "" || !e.cfg.IsFrameAnchor(regName) {
		ti.IsConcreteMemory = false
		return
	}

	addr, err := strconv.ParseUint(strings.TrimPrefix(regValue, "0x"), 16, 64)
	if err != nil {
		e.log.Warnf("unparsable crash-context value %q for register %s", regValue, regName)
		ti.IsConcreteMemory = false
		return
	}

	ti.ConcreteMemoryAddress = addr + uint64(*ti.Offset)
}

// addToTaintList appends the location to the taint list. Immediate constants
// cannot carry taint and null operands have nothing to track, so both are
// ignored.
func (e *Engine) addToTaintList(ti TaintInfo) {
	if ti.Op == nil {
		return
	}
	if !ti.Op.IsImm() {
		e.taintList = append(e.taintList, ti)
	}
}

// removeFromTaintList removes the first list member equal to ti. Returns
// ErrNotTracked when no member matches.
func (e *Engine) removeFromTaintList(ti TaintInfo) error {
	for i := range e.taintList {
		if !e.taintList[i].Equal(ti) {
			continue
		}
		e.taintList = append(e.taintList[:i], e.taintList[i+1:]...)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNotTracked, ti)
}

// isTainted returns the first list member equal to ti, or the nil-operand
// sentinel when the location is not tracked.
func (e *Engine) isTainted(ti TaintInfo) TaintInfo {
	for _, t := range e.taintList {
		if t.Equal(ti) {
			return t
		}
	}
	return TaintInfo{}
}

func (e *Engine) dumpTaintList() {
	if e.Empty() {
		e.log.Debugf("taint list is empty")
		return
	}
	e.log.Debugf("----- taint list begin -----")
	funcutil.Iter(e.taintList, func(t TaintInfo) {
		e.log.Debugf("  %s", t)
	})
	e.log.Debugf("------ taint list end ------")
}

func (e *Engine) dumpDestSrc(ds *mir.DestSourcePair) {
	if ds.Destination != nil {
		e.log.Debugf("dest: %s", operandString(ds.Destination, ds.DestOffset))
	}
	if ds.Source != nil {
		e.log.Debugf("src:  %s", operandString(ds.Source, ds.SrcOffset))
	}
	if ds.Source2 != nil {
		e.log.Debugf("src2: %s", operandString(ds.Source2, ds.Src2Offset))
	}
}

func operandString(op *mir.Operand, offset *int64) string {
	switch {
	case op.IsImm():
		return fmt.Sprintf("imm %d", op.Imm)
	case offset != nil:
		return fmt.Sprintf("[%s%+d]", op.RegName(), *offset)
	default:
		return op.RegName()
	}
}
