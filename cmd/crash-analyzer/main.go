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

package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/bharsesh/llvm-crash-analyzer/analysis/config"
	"github.com/bharsesh/llvm-crash-analyzer/analysis/snapshot"
	"github.com/bharsesh/llvm-crash-analyzer/analysis/taint"
	"github.com/bharsesh/llvm-crash-analyzer/internal/formatutil"
)

var (
	configPath = flag.String("config", "", "Config file path for the crash analysis")
	verbose    = flag.Bool("v", false, "Debug-level logging")
)

const usage = ` Find the instruction that introduced the bad value behind a crash.
Usage:
    crash-analyzer [options] <snapshot file>
Examples:
% crash-analyzer -config config.yaml crash.yaml
The snapshot file holds the captured register state and the machine code of
the call-stack frames of the crashed process.
`

func main() {
	flag.Parse()

	if flag.NArg() != 1 {
		_, _ = fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg := config.NewDefault()
	if *configPath != "" {
		config.SetGlobalConfig(*configPath)
		loaded, err := config.LoadGlobal()
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not load config %s: %v\n", *configPath, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *verbose && cfg.LogLevel < int(config.DebugLevel) {
		cfg.LogLevel = int(config.DebugLevel)
	}
	logger := config.NewLogGroup(cfg)

	logger.Infof(formatutil.Faint("Reading crash snapshot") + "\n")
	snap, err := snapshot.Load(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load snapshot: %v\n", err)
		os.Exit(1)
	}
	bm, err := snap.BlameModule()
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not decode snapshot: %v\n", err)
		os.Exit(1)
	}

	start := time.Now()
	result, err := taint.Analyze(cfg, logger, bm)
	duration := time.Since(start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "analysis failed: %v\n", err)
		os.Exit(1)
	}
	logger.Infof("Analysis took %3.4f s\n", duration.Seconds())

	fmt.Println(result.Report())
	if !result.Found() {
		os.Exit(1)
	}
}
