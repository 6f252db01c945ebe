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

// Package snapshot reads captured crash snapshots: the register state of the
// crashed process plus the machine code of every function on the call stack,
// as extracted from the core file and the binary. A snapshot file is the
// input of the crash analyzer.
package snapshot

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bharsesh/llvm-crash-analyzer/analysis/mir"
	"github.com/bharsesh/llvm-crash-analyzer/analysis/taint"
	"github.com/bharsesh/llvm-crash-analyzer/analysis/x86"
)

// Snapshot is the on-disk crash capture.
type Snapshot struct {
	// Registers maps register assembly names to the hex text of their
	// captured values.
	Registers map[string]string `yaml:"registers"`

	// Frames is the captured call stack, innermost frame first.
	Frames []Frame `yaml:"frames"`
}

// Frame is one call-stack frame of the capture.
type Frame struct {
	// Name is the function's symbol name.
	Name string `yaml:"name"`

	// Code is the hex dump of the function's machine code. An empty Code
	// marks a function that could not be extracted from the binary.
	Code string `yaml:"code"`

	// EntryPC is the address of the first byte of Code.
	EntryPC uint64 `yaml:"entry-pc"`

	// CrashPC is the address execution stopped at in this frame: the
	// faulting instruction in the innermost frame, the stopped call site
	// in the callers.
	CrashPC uint64 `yaml:"crash-pc"`

	// Lines is the per-instruction source line table, present when the
	// binary carried debug info.
	Lines []LineEntry `yaml:"lines"`
}

// LineEntry maps one instruction address to its source position.
type LineEntry struct {
	PC   uint64 `yaml:"pc"`
	File string `yaml:"file"`
	Line int    `yaml:"line"`
}

// Load reads and parses a snapshot file.
func Load(filename string) (*Snapshot, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read snapshot file: %w", err)
	}
	return Parse(b)
}

// Parse parses the yaml content of a snapshot file.
func Parse(b []byte) (*Snapshot, error) {
	s := &Snapshot{}
	if err := yaml.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("could not unmarshal snapshot: %w", err)
	}
	if len(s.Frames) == 0 {
		return nil, fmt.Errorf("snapshot has no call-stack frames")
	}
	return s, nil
}

// BlameModule decodes every captured frame and assembles the blame sequence
// the taint analysis walks. Frames without code become gap frames with no
// function representation.
func (s *Snapshot) BlameModule() (taint.BlameModule, error) {
	var bm taint.BlameModule
	for _, fr := range s.Frames {
		if strings.TrimSpace(fr.Code) == "" {
			bm = append(bm, taint.BlameFunction{Name: fr.Name})
			continue
		}
		code, err := decodeHexDump(fr.Code)
		if err != nil {
			return nil, fmt.Errorf("frame %s: %w", fr.Name, err)
		}
		lines := make(map[uint64]mir.DebugLoc, len(fr.Lines))
		for _, le := range fr.Lines {
			lines[le.PC] = mir.DebugLoc{File: le.File, Line: le.Line}
		}
		fn, err := x86.DecodeFunction(x86.DecodeParams{
			Name:      fr.Name,
			Code:      code,
			EntryPC:   fr.EntryPC,
			CrashPC:   fr.CrashPC,
			Registers: s.Registers,
			Lines:     lines,
		})
		if err != nil {
			return nil, fmt.Errorf("frame %s: %w", fr.Name, err)
		}
		bm = append(bm, taint.BlameFunction{Name: fr.Name, Fn: fn})
	}
	return bm, nil
}

func decodeHexDump(s string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\t' {
			return -1
		}
		return r
	}, s)
	code, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid code hex dump: %w", err)
	}
	return code, nil
}
