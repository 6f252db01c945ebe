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

// Package regtrack runs a forward pass over one function recording, per
// register, the instruction that last defined it. The backward taint walk
// runs it per frame but does not consume its output yet; the intended use is
// reconstructing concrete memory addresses for base registers the crash
// context alone cannot resolve.
package regtrack

import (
	"strings"

	"github.com/bharsesh/llvm-crash-analyzer/analysis/mir"
	"github.com/bharsesh/llvm-crash-analyzer/internal/funcutil"
)

// Result holds the last definition point of each register written in the
// function, keyed by lower-case register name.
type Result struct {
	defs map[string]*mir.Instruction
}

// Run walks the function in forward program order and records the last
// instruction that defined each register. Memory destinations are ignored.
func Run(fn *mir.Function) Result {
	r := Result{defs: map[string]*mir.Instruction{}}
	if fn == nil || fn.Info == nil {
		return r
	}
	for _, blk := range fn.Blocks {
		for _, mi := range blk.Instrs {
			ds := fn.Info.DestAndSrc(mi)
			if ds == nil || ds.Destination == nil || ds.Destination.IsMem() {
				continue
			}
			r.defs[ds.Destination.RegName()] = mi
		}
	}
	return r
}

// LastDef returns the instruction that last defined the named register, if
// any. The lookup is case-insensitive.
func (r Result) LastDef(reg string) funcutil.Optional[*mir.Instruction] {
	if mi, ok := r.defs[strings.ToLower(reg)]; ok {
		return funcutil.Some(mi)
	}
	return funcutil.None[*mir.Instruction]()
}

// NumDefs returns the number of registers with a recorded definition.
func (r Result) NumDefs() int { return len(r.defs) }

// Registers returns the names of all defined registers in increasing order.
func (r Result) Registers() []string {
	return funcutil.SortedKeys(r.defs)
}
