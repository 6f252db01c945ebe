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
	"strings"

	"github.com/bharsesh/llvm-crash-analyzer/analysis/mir"
	"github.com/bharsesh/llvm-crash-analyzer/internal/formatutil"
)

// Report describes one blame instruction: the root-cause origin of the bad
// value that crashed the process.
type Report struct {
	// Function is the name of the function the blame instruction is in.
	Function string

	// Loc is the source position of the blame instruction, nil when the
	// binary carries no debug info for it.
	Loc *mir.DebugLoc

	// Instr is the blame instruction itself.
	Instr *mir.Instruction
}

func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Blame function is %s\n", formatutil.Green(r.Function))
	if r.Loc != nil {
		fmt.Fprintf(&b, "At line %d, from file %s\n", r.Loc.Line, r.Loc.File)
		return b.String()
	}
	b.WriteString(formatutil.Yellow("WARNING: Please compile with -g to get full line info.") + "\n")
	if r.Instr != nil {
		fmt.Fprintf(&b, "Blame instruction is %s\n", formatutil.Sanitize(r.Instr.Text))
	}
	return b.String()
}

// Result is the outcome of one crash analysis run.
type Result struct {
	// Ok is the success flag of the walk. It mirrors the per-frame
	// termination verdicts; a run can be Ok with no blame found when the
	// taint list emptied without hitting a constant-sourced instruction.
	Ok bool

	// Blames lists the blame instructions found, in discovery order.
	Blames []*Report
}

// Found reports whether the analysis pinpointed at least one blame
// instruction.
func (r Result) Found() bool { return len(r.Blames) > 0 }

// Report renders the user-facing verdict.
func (r Result) Report() string {
	if !r.Found() {
		return formatutil.Red("The analysis could not pinpoint a cause of the crash.")
	}
	return r.Blames[0].String()
}
