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
	"github.com/bharsesh/llvm-crash-analyzer/analysis/mir"
)

// Verdict is the outcome of propagating taint through one instruction.
type Verdict int

const (
	// Continue - the walk proceeds to the previous instruction.
	Continue Verdict = iota

	// TerminatedBlame - the instruction loads a constant into a tainted
	// location; it is the root cause.
	TerminatedBlame

	// TerminatedEmpty - nothing is left to track, the walk must stop.
	TerminatedEmpty
)

func (v Verdict) String() string {
	switch v {
	case Continue:
		return "continue"
	case TerminatedBlame:
		return "terminated-blame"
	case TerminatedEmpty:
		return "terminated-empty"
	default:
		return "unknown"
	}
}

// Start seeds the analysis at the crash instruction. The destination is
// tainted only when it is a memory operand: at the crash point the bad value
// was read or dereferenced, not produced into a fresh register. Both sources
// are tainted unconditionally. When the taint list is already populated the
// walk has crossed into a caller frame and Start keeps propagating instead
// of re-seeding.
func (e *Engine) Start(ds *mir.DestSourcePair) error {
	srcTi := e.newTaint(ds.Source, ds.SrcOffset)
	destTi := e.newTaint(ds.Destination, ds.DestOffset)
	src2Ti := e.newTaint(ds.Source2, ds.Src2Offset)

	if e.Empty() {
		if destTi.Op != nil && destTi.Offset != nil {
			e.addToTaintList(destTi)
		}
		if srcTi.Op != nil {
			e.addToTaintList(srcTi)
		}
		if src2Ti.Op != nil {
			e.addToTaintList(src2Ti)
		}
		e.dumpTaintList()
		return nil
	}

	if destTi.Op != nil {
		_, err := e.Propagate(ds)
		return err
	}
	return nil
}

// Propagate applies the backward dataflow rule for one instruction: a tainted
// destination's current value is explained by the instruction's source, so
// taint moves from the destination to the source. When that source is an
// immediate constant, the bad value was baked into the instruction stream and
// the instruction is the blame instruction.
//
// The returned error is non-nil only on an internal invariant violation,
// which aborts the analysis run.
func (e *Engine) Propagate(ds *mir.DestSourcePair) (Verdict, error) {
	// This can happen only due to lack of info/data for some taints.
	if e.Empty() {
		e.log.Debugf("no taint to propagate")
		return TerminatedEmpty, nil
	}

	srcTi := e.newTaint(ds.Source, ds.SrcOffset)
	destTi := e.newTaint(ds.Destination, ds.DestOffset)

	if destTi.Op == nil {
		return Continue, nil
	}

	taint := e.isTainted(destTi)
	if taint.Op == nil {
		// The instruction does not touch any tracked location.
		return Continue, nil
	}

	if ds.Source != nil && ds.Source.IsImm() {
		// Dest is tainted and src is a constant operand: the end of
		// the taint chain.
		if err := e.removeFromTaintList(destTi); err != nil {
			return Continue, err
		}
		report := e.newReport(ds)
		e.blames = append(e.blames, report)
		e.log.Debugf("blame instruction found in %s", report.Function)
		return TerminatedBlame, nil
	}

	e.addToTaintList(srcTi)
	if err := e.removeFromTaintList(destTi); err != nil {
		return Continue, err
	}
	e.dumpTaintList()
	return Continue, nil
}

func (e *Engine) newReport(ds *mir.DestSourcePair) *Report {
	mi := ds.Destination.Parent()
	r := &Report{Instr: mi}
	if mi != nil {
		r.Loc = mi.Loc
		if fn := mi.Function(); fn != nil {
			r.Function = fn.Name
		}
	}
	return r
}
