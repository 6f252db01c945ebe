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
	"fmt"

	"github.com/bharsesh/llvm-crash-analyzer/analysis/config"
	"github.com/bharsesh/llvm-crash-analyzer/analysis/mir"
	"github.com/bharsesh/llvm-crash-analyzer/analysis/regtrack"
)

// BlameFunction is one frame of the captured call stack: the function's name
// and its instruction-level representation. A nil Fn means the function could
// not be decompiled.
type BlameFunction struct {
	Name string
	Fn   *mir.Function
}

// BlameModule is the captured call stack, innermost (crash site) frame first.
type BlameModule []BlameFunction

// Analyze runs the backward taint analysis over the blame module and returns
// the verdict. The error is non-nil only when the analysis aborted on an
// internal invariant violation.
func Analyze(cfg *config.Config, logger *config.LogGroup, bm BlameModule) (Result, error) {
	return NewEngine(cfg, logger).Run(bm)
}

// Run walks the call-stack frames innermost first, sharing the engine's taint
// list across frames so taint flows from a callee into its caller.
func (e *Engine) Run(bm BlameModule) (Result, error) {
	analysisStarted := false
	result := false

	for _, bf := range bm {
		// Skip the runtime startup frames (e.g. _start, __libc_start_main)
		// until the first application frame.
		if !analysisStarted && e.cfg.IsStartupFrame(bf.Name) {
			e.log.Debugf("skip startup frame %s", bf.Name)
			continue
		}
		analysisStarted = true

		// A frame we could not decompile: the walk cannot soundly
		// continue past it.
		if bf.Fn == nil {
			e.log.Warnf("missing decompiled frame for %s, stopping the analysis", bf.Name)
			return e.result(result), nil
		}

		e.log.Debugf("analyzing frame %s", bf.Name)
		done, err := e.runOnBlameFunction(bf.Fn)
		if err != nil {
			return e.result(false), fmt.Errorf("analysis aborted in %s: %w", bf.Name, err)
		}
		if done {
			result = true
			if e.Empty() {
				return e.result(true), nil
			}
		}
	}

	// Success as soon as a single frame terminated; full resolution would
	// also require the taint list to be empty here.
	return e.result(result), nil
}

func (e *Engine) result(ok bool) Result {
	return Result{Ok: ok, Blames: e.blames}
}

// runOnBlameFunction walks one frame's instructions backward, starting from
// the flagged crash instruction. It returns true when the taint walk
// terminated inside this frame, and false when the frame was exhausted with
// taint still outstanding, in which case the caller's frame is next.
func (e *Engine) runOnBlameFunction(fn *mir.Function) (bool, error) {
	// Forward pass tracking register definitions. Its output is not
	// consumed by the backward walk yet; combining the two would let the
	// analysis reconstruct addresses for non-anchor base registers.
	fwd := regtrack.Run(fn)
	e.log.Tracef("forward pass found definitions for %d register(s) in %s", fwd.NumDefs(), fn.Name)

	crashSequenceStarted := false
	info := fn.Info

	for bi := len(fn.Blocks) - 1; bi >= 0; bi-- {
		blk := fn.Blocks[bi]
		for ii := len(blk.Instrs) - 1; ii >= 0; ii-- {
			mi := blk.Instrs[ii]

			if mi.IsCrashStart() && !crashSequenceStarted {
				e.log.Tracef("crash start: %#x: %s", mi.PC, mi.Text)
				ds := info.DestAndSrc(mi)
				if ds == nil {
					// Keep searching; should not happen for a
					// flagged instruction.
					e.log.Debugf("crash instruction doesn't have blame operands")
					continue
				}
				crashSequenceStarted = true
				e.dumpDestSrc(ds)
				if err := e.Start(ds); err != nil {
					return false, err
				}
				continue
			}

			if !crashSequenceStarted {
				continue
			}

			// A call could modify a tainted operand; calls and
			// branches are not modeled yet.
			if mi.IsCall() || mi.IsBranch() {
				continue
			}

			e.log.Tracef("%#x: %s", mi.PC, mi.Text)

			// A stack push/pop marks the frame's prologue: the end
			// of this frame's walk.
			if info.IsPushPop(mi) {
				return false, nil
			}

			ds := info.DestAndSrc(mi)
			if ds == nil {
				e.log.Debugf("no dest/src pair for %q", mi.Text)
				continue
			}
			e.dumpDestSrc(ds)

			verdict, err := e.Propagate(ds)
			if err != nil {
				return false, err
			}
			switch verdict {
			case TerminatedBlame:
				return true, nil
			case TerminatedEmpty:
				e.log.Debugf("taint terminated, no blame found")
				return true, nil
			}
		}
	}

	return false, nil
}
