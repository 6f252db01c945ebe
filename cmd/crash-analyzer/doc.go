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
The crash-analyzer tool runs backward taint analysis on the captured snapshot
of a crashed process and reports the instruction that first introduced the
bad value behind the crash.

Usage:

	crash-analyzer [flags] crash.yaml

The flags are:

	-config path      a path to the configuration file tuning frame skipping and logging

	-v=false          debug-level logging, overrides the config file log level if set
*/
package main
