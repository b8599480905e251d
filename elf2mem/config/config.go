// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config provides basic infrastructure to set configuration settings
// for elf2mem. Each setting that can be changed from the command line must
// have a corresponding flag, registered in RegisterFlags, and a field in
// Config tagged with the flag name.
package config

import (
	"fmt"
	"path/filepath"
)

// Default artifact names.
const (
	DefaultPageList = "tlb.mem"
	DefaultMemory   = "memory.mem"
)

// Config holds configuration that is not part of the input image.
type Config struct {
	// OutDir is the directory the artifacts are written to.
	OutDir string `flag:"out-dir"`

	// PageList is the name of the page list artifact.
	PageList string `flag:"page-list"`

	// Memory is the name of the memory dump artifact.
	Memory string `flag:"memory"`

	// IntelHex is the name of the Intel HEX artifact. Empty disables it.
	IntelHex string `flag:"ihex"`

	// ConfigFile is a TOML file with values for flags not set on the command
	// line.
	ConfigFile string `flag:"config"`

	// Debug indicates that debug logging should be enabled.
	Debug bool `flag:"debug"`

	// LogFilename is the filename to log to, if not empty. Logs go to stderr
	// otherwise.
	LogFilename string `flag:"log"`

	// LogFormat is the log format: text or json.
	LogFormat string `flag:"log-format"`
}

func (c *Config) validate() error {
	if c.OutDir == "" {
		return fmt.Errorf("out-dir must not be empty")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format %q, must be text or json", c.LogFormat)
	}
	names := map[string]string{}
	for _, a := range []struct{ flag, name string }{
		{"page-list", c.PageList},
		{"memory", c.Memory},
		{"ihex", c.IntelHex},
	} {
		if a.name == "" {
			if a.flag == "ihex" {
				continue
			}
			return fmt.Errorf("%s must not be empty", a.flag)
		}
		if filepath.Base(a.name) != a.name {
			return fmt.Errorf("%s %q must be a file name, not a path", a.flag, a.name)
		}
		if other, ok := names[a.name]; ok {
			return fmt.Errorf("%s and %s both name %q", other, a.flag, a.name)
		}
		names[a.name] = a.flag
	}
	return nil
}

// Artifacts returns the names of the artifacts to write, in writing order.
func (c *Config) Artifacts() []string {
	names := []string{c.PageList, c.Memory}
	if c.IntelHex != "" {
		names = append(names, c.IntelHex)
	}
	return names
}
