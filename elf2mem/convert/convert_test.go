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

package convert

import (
	"errors"
	"flag"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/elf2mem/elf2mem/config"
	"gvisor.dev/elf2mem/pkg/artifact"
	"gvisor.dev/elf2mem/pkg/elfimage"
	"gvisor.dev/elf2mem/pkg/elfimage/elftest"
)

func testConfig(t *testing.T, args ...string) *config.Config {
	t.Helper()
	testFlags := flag.NewFlagSet("test", flag.ContinueOnError)
	config.RegisterFlags(testFlags)
	if err := testFlags.Parse(append([]string{"-out-dir=" + t.TempDir()}, args...)); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	conf, err := config.NewFromFlags(testFlags)
	if err != nil {
		t.Fatalf("NewFromFlags: %v", err)
	}
	return conf
}

func counting(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i + 1)
	}
	return b
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var names []string
	for _, e := range ents {
		names = append(names, e.Name())
	}
	return names
}

func TestRun(t *testing.T) {
	path := elftest.WriteFile(t, 0x80000004, elftest.Load(0x80000000, counting(0x10)))
	conf := testConfig(t)

	res, err := Run(conf, path)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{filepath.Join(conf.OutDir, "tlb.mem"), filepath.Join(conf.OutDir, "memory.mem")}
	if diff := cmp.Diff(want, res.Artifacts); diff != "" {
		t.Errorf("Artifacts mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"memory.mem", "tlb.mem"}, listDir(t, conf.OutDir)); diff != "" {
		t.Errorf("output directory mismatch (-want +got):\n%s", diff)
	}

	pages, err := os.ReadFile(want[0])
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got, want := string(pages), "80000\n7ffff\nbfc00\n"; got != want {
		t.Errorf("tlb.mem = %q, want %q", got, want)
	}

	mem, err := os.ReadFile(want[1])
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(string(mem), "\n")
	if got, want := lines[0], "01020304 05060708 090a0b0c 0d0e0f10"; got != want {
		t.Errorf("first memory line = %q, want %q", got, want)
	}
	if got, want := lines[0x2000/16], "3c1d8000 3c1e8000 37de0004 03c00008"; got != want {
		t.Errorf("reset vector line = %q, want %q", got, want)
	}
	if got, want := len(mem), 3*0x1000/4*9; got != want {
		t.Errorf("memory.mem is %d bytes, want %d", got, want)
	}
}

func TestRunIntelHex(t *testing.T) {
	path := elftest.WriteFile(t, 0x80000000, elftest.Load(0x80000000, counting(4)))
	conf := testConfig(t, "-ihex=memory.hex", "-page-list=pages.txt")

	if _, err := Run(conf, path); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff([]string{"memory.hex", "memory.mem", "pages.txt"}, listDir(t, conf.OutDir)); diff != "" {
		t.Errorf("output directory mismatch (-want +got):\n%s", diff)
	}
	hex, err := os.ReadFile(filepath.Join(conf.OutDir, "memory.hex"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.HasPrefix(string(hex), ":") {
		t.Errorf("memory.hex does not start with a record: %q", hex)
	}
}

func TestRunInputErrors(t *testing.T) {
	notELF := filepath.Join(t.TempDir(), "notelf")
	if err := os.WriteFile(notELF, []byte("#!/bin/sh\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	for _, tc := range []struct {
		name string
		path string
		want error
	}{
		{name: "missing", path: filepath.Join(t.TempDir(), "missing.elf"), want: fs.ErrNotExist},
		{name: "not elf", path: notELF, want: elfimage.ErrNotELF},
		{name: "no segments", path: elftest.WriteFile(t, 0x80000000), want: elfimage.ErrNoLoadableSegment},
	} {
		t.Run(tc.name, func(t *testing.T) {
			conf := testConfig(t)
			_, err := Run(conf, tc.path)
			var ie *InputError
			if !errors.As(err, &ie) {
				t.Fatalf("Run: got %v, want *InputError", err)
			}
			if ie.Path != tc.path {
				t.Errorf("InputError.Path = %q, want %q", ie.Path, tc.path)
			}
			if !errors.Is(err, tc.want) {
				t.Errorf("Run: got %v, want %v", err, tc.want)
			}
			if names := listDir(t, conf.OutDir); len(names) != 0 {
				t.Errorf("files written on input error: %v", names)
			}
		})
	}
}

func TestRunWriteError(t *testing.T) {
	path := elftest.WriteFile(t, 0x80000000, elftest.Load(0x80000000, counting(4)))
	conf := testConfig(t)
	// A directory in place of the memory artifact cannot be opened for
	// writing.
	if err := os.Mkdir(filepath.Join(conf.OutDir, "memory.mem"), 0755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	_, err := Run(conf, path)
	var we *artifact.WriteError
	if !errors.As(err, &we) {
		t.Fatalf("Run: got %v, want *artifact.WriteError", err)
	}
	if want := filepath.Join(conf.OutDir, "memory.mem"); we.Path != want {
		t.Errorf("WriteError.Path = %q, want %q", we.Path, want)
	}
}

func TestLoad(t *testing.T) {
	path := elftest.WriteFile(t, 0x80000000, elftest.BSS(0x80000000, counting(4), 0x2000))
	img, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got, want := img.Table.PageNumbers(), []uint32{0x80000, 0x80001, 0x7ffff, 0xbfc00}; !cmp.Equal(got, want) {
		t.Errorf("PageNumbers() = %x, want %x", got, want)
	}
}
