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

package config

import (
	"flag"
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
)

// file is the layout of a configuration file. Keys of the elf2mem table are
// flag names, values are converted to strings and parsed by the flag.
type file struct {
	Elf2mem map[string]any `toml:"elf2mem"`
}

// loadFile loads a configuration file.
func loadFile(path string) (*file, error) {
	var f file
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, err
	}
	// Keys of the elf2mem table are checked against the flag set later.
	var unknown []string
	for _, key := range md.Undecoded() {
		if len(key) > 0 && key[0] != "elf2mem" {
			unknown = append(unknown, key.String())
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown keys %v", unknown)
	}
	return &f, nil
}

// ApplyFile sets the flags named in the configuration file at path. Flags
// already set on the command line keep their value.
func ApplyFile(flagSet *flag.FlagSet, path string) error {
	f, err := loadFile(path)
	if err != nil {
		return fmt.Errorf("loading config file %q: %w", path, err)
	}

	set := map[string]bool{}
	flagSet.Visit(func(fl *flag.Flag) {
		set[fl.Name] = true
	})

	// Apply in a stable order so errors are reproducible.
	names := make([]string, 0, len(f.Elf2mem))
	for name := range f.Elf2mem {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if name == "config" {
			return fmt.Errorf("config file %q: %q cannot be set from a config file", path, name)
		}
		if flagSet.Lookup(name) == nil {
			return fmt.Errorf("config file %q: unknown flag %q", path, name)
		}
		if set[name] {
			continue
		}
		value := fmt.Sprint(f.Elf2mem[name])
		if err := flagSet.Set(name, value); err != nil {
			return fmt.Errorf("config file %q: error setting flag %s=%q: %w", path, name, value, err)
		}
	}
	return nil
}
