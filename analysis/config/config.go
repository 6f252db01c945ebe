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

package config

import (
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bharsesh/llvm-crash-analyzer/internal/funcutil"
)

var (
	// The global config file
	configFile string
)

// SetGlobalConfig sets the global config filename
func SetGlobalConfig(filename string) {
	configFile = filename
}

// LoadGlobal loads the config file that has been set by SetGlobalConfig
func LoadGlobal() (*Config, error) {
	return Load(configFile)
}

// Config tunes a crash analysis run. If some field is not defined in the
// config file, it keeps its default from NewDefault.
type Config struct {
	Options `yaml:",inline"`

	sourceFile string
}

// Options are the user-tunable settings of the analysis.
type Options struct {
	// StartupPrefixes lists the symbol-name prefixes of runtime startup
	// frames, which are skipped before the analysis starts. The default
	// covers _start and __libc_start_main.
	StartupPrefixes []string `yaml:"startup-prefixes"`

	// FrameAnchorRegisters lists the registers trusted for reconstructing
	// concrete memory addresses from the crash context. Only the stack and
	// frame pointers are stable enough for that by default; other base
	// registers may have been clobbered before the capture.
	FrameAnchorRegisters []string `yaml:"frame-anchor-registers"`

	// LogLevel controls the verbosity of the tool.
	LogLevel int `yaml:"log-level"`

	// SilenceWarn suppresses warnings.
	SilenceWarn bool `yaml:"silence-warn"`
}

// NewDefault returns the default config.
func NewDefault() *Config {
	return &Config{
		sourceFile: "",
		Options: Options{
			StartupPrefixes:      []string{"_"},
			FrameAnchorRegisters: []string{"rsp", "rbp"},
			LogLevel:             int(InfoLevel),
			SilenceWarn:          false,
		},
	}
}

// Load reads a configuration from a file
func Load(filename string) (*Config, error) {
	cfg := NewDefault()
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file: %w", err)
	}

	cfg.sourceFile = filename

	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if cfg.LogLevel == 0 {
		cfg.LogLevel = int(InfoLevel)
	}

	if len(cfg.StartupPrefixes) == 0 {
		cfg.StartupPrefixes = []string{"_"}
	}
	if len(cfg.FrameAnchorRegisters) == 0 {
		cfg.FrameAnchorRegisters = []string{"rsp", "rbp"}
	}
	funcutil.MapInPlace(cfg.FrameAnchorRegisters, strings.ToLower)

	return cfg, nil
}

// RelPath returns filename path relative to the config source file
func (c Config) RelPath(filename string) string {
	return path.Join(path.Dir(c.sourceFile), filename)
}

// IsStartupFrame returns true if the frame name matches one of the runtime
// startup prefixes and should be skipped before the analysis starts.
func (c Config) IsStartupFrame(name string) bool {
	return funcutil.Exists(c.StartupPrefixes, func(p string) bool {
		return strings.HasPrefix(name, p)
	})
}

// IsFrameAnchor returns true if the named register is trusted for concrete
// address reconstruction. The check is case-insensitive.
func (c Config) IsFrameAnchor(reg string) bool {
	reg = strings.ToLower(reg)
	return funcutil.Contains(c.FrameAnchorRegisters, reg)
}

// Verbose returns true is the configuration verbosity setting is larger than Info (i.e. Debug or Trace)
func (c Config) Verbose() bool {
	return c.LogLevel >= int(DebugLevel)
}
