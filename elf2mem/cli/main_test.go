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

package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gvisor.dev/elf2mem/elf2mem/convert"
	"gvisor.dev/elf2mem/pkg/artifact"
	"gvisor.dev/elf2mem/pkg/elfimage/elftest"
	"gvisor.dev/elf2mem/pkg/memimage"
	"gvisor.dev/elf2mem/pkg/pagetable"
)

func program(t *testing.T) string {
	t.Helper()
	data := make([]byte, 0x10)
	for i := range data {
		data[i] = byte(i + 1)
	}
	return elftest.WriteFile(t, 0x80000004, elftest.Load(0x80000000, data))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestRunSuccess(t *testing.T) {
	out := t.TempDir()
	var stderr bytes.Buffer
	if code := Run([]string{"-out-dir", out, program(t)}, &stderr); code != ExitSuccess {
		t.Fatalf("Run returned %d, stderr:\n%s", code, stderr.String())
	}
	pages, err := os.ReadFile(filepath.Join(out, "tlb.mem"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got, want := string(pages), "80000\n7ffff\nbfc00\n"; got != want {
		t.Errorf("tlb.mem = %q, want %q", got, want)
	}
	if !exists(filepath.Join(out, "memory.mem")) {
		t.Errorf("memory.mem not written")
	}
}

func TestRunUsage(t *testing.T) {
	for _, tc := range []struct {
		name string
		args []string
		code int
	}{
		{name: "no args", args: nil, code: ExitUsage},
		{name: "two args", args: []string{"a.elf", "b.elf"}, code: ExitUsage},
		{name: "unknown flag", args: []string{"-bogus", "a.elf"}, code: ExitUsage},
		{name: "invalid config", args: []string{"-log-format=xml", "a.elf"}, code: ExitUsage},
		{name: "help", args: []string{"-help"}, code: ExitSuccess},
	} {
		t.Run(tc.name, func(t *testing.T) {
			out := t.TempDir()
			var stderr bytes.Buffer
			code := Run(append([]string{"-out-dir=" + out}, tc.args...), &stderr)
			if code != tc.code {
				t.Errorf("Run returned %d, want %d", code, tc.code)
			}
			if !strings.Contains(stderr.String(), "usage: elf2mem") {
				t.Errorf("usage not printed, stderr:\n%s", stderr.String())
			}
			if exists(filepath.Join(out, "tlb.mem")) || exists(filepath.Join(out, "memory.mem")) {
				t.Errorf("artifacts written on usage error")
			}
		})
	}
}

func TestRunMissingInput(t *testing.T) {
	out := t.TempDir()
	missing := filepath.Join(t.TempDir(), "missing.elf")
	var stderr bytes.Buffer
	if code := Run([]string{"-out-dir", out, missing}, &stderr); code != ExitInput {
		t.Errorf("Run returned %d, want %d", code, ExitInput)
	}
	if !strings.Contains(stderr.String(), missing) {
		t.Errorf("diagnostic does not name %q:\n%s", missing, stderr.String())
	}
	if exists(filepath.Join(out, "tlb.mem")) || exists(filepath.Join(out, "memory.mem")) {
		t.Errorf("artifacts written on input error")
	}
}

func TestRunOutputError(t *testing.T) {
	out := t.TempDir()
	if err := os.Mkdir(filepath.Join(out, "tlb.mem"), 0755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	var stderr bytes.Buffer
	if code := Run([]string{"-out-dir", out, program(t)}, &stderr); code != ExitOutput {
		t.Errorf("Run returned %d, want %d, stderr:\n%s", code, ExitOutput, stderr.String())
	}
}

func TestRunConfigFile(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	conf := filepath.Join(dir, "elf2mem.toml")
	contents := fmt.Sprintf("[elf2mem]\nout-dir = %q\npage-list = \"pages.txt\"\nihex = \"memory.hex\"\n", out)
	if err := os.WriteFile(conf, []byte(contents), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	var stderr bytes.Buffer
	if code := Run([]string{"-config", conf, "-memory=mem.txt", program(t)}, &stderr); code != ExitSuccess {
		t.Fatalf("Run returned %d, stderr:\n%s", code, stderr.String())
	}
	for _, name := range []string{"pages.txt", "mem.txt", "memory.hex"} {
		if !exists(filepath.Join(out, name)) {
			t.Errorf("%s not written", name)
		}
	}

	bad := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(bad, []byte("[elf2mem]\nbogus = true\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if code := Run([]string{"-config", bad, program(t)}, &stderr); code != ExitUsage {
		t.Errorf("Run with a bad config file returned %d, want %d", code, ExitUsage)
	}
}

func TestRunLogFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "logs", "elf2mem.log")
	var stderr bytes.Buffer
	args := []string{"-out-dir", filepath.Join(dir, "out"), "-debug", "-log", logPath, "-log-format=json", program(t)}
	if code := Run(args, &stderr); code != ExitSuccess {
		t.Fatalf("Run returned %d, stderr:\n%s", code, stderr.String())
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	for _, want := range []string{`"level":"debug"`, "host page size", "Converted"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("log file does not contain %q:\n%s", want, data)
		}
	}
}

func TestExitCode(t *testing.T) {
	for _, tc := range []struct {
		err  error
		code int
	}{
		{err: &convert.InputError{Path: "a.elf", Err: os.ErrNotExist}, code: ExitInput},
		{err: &artifact.WriteError{Path: "tlb.mem", Err: os.ErrPermission}, code: ExitOutput},
		{err: &memimage.TranslationFault{Region: "reset", Err: &pagetable.PageFault{Addr: 0xbfc00000}}, code: ExitInternal},
		{err: errors.New("unexpected"), code: ExitInternal},
	} {
		if got := exitCode(tc.err); got != tc.code {
			t.Errorf("exitCode(%v) = %d, want %d", tc.err, got, tc.code)
		}
	}
}
