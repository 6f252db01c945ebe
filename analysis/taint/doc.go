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

/*
Package taint implements the backward taint analysis that pinpoints the
instruction responsible for a crash. The main entry point is [Analyze], which
takes the captured call stack as a [BlameModule] and walks it innermost frame
first.

Within a frame, instructions are visited in reverse storage order starting at
the flagged crash instruction. The [Engine] tracks tainted locations - values
causally connected to the crash whose origin is not yet known - and moves
taint backward from each instruction's destination to its source. The walk
terminates with blame when a tainted location is defined from an immediate
constant: the bad value was baked into the instruction stream at that point.

The taint list is shared across frames, so an unresolved location in the
crashing frame keeps being tracked through the callers on the captured stack.
The walk across a frame is a reverse-linear approximation of reverse control
flow; it is exact for the straight-line epilogue sequences the crash walk
mostly covers.
*/
package taint
