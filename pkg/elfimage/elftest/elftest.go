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

// Package elftest builds small ELF32 big-endian MIPS executables for tests.
package elftest

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

const (
	ehdrSize = 52
	phdrSize = 32
)

// Segment describes one program header of the generated file.
type Segment struct {
	Type    elf.ProgType
	Vaddr   uint32
	MemSize uint32
	Data    []byte
	Flags   elf.ProgFlag
}

// Load returns a PT_LOAD segment with MemSize equal to len(data).
func Load(vaddr uint32, data []byte) Segment {
	return Segment{
		Type:    elf.PT_LOAD,
		Vaddr:   vaddr,
		MemSize: uint32(len(data)),
		Data:    data,
		Flags:   elf.PF_R | elf.PF_X,
	}
}

// BSS returns a PT_LOAD segment with file contents data followed by zero
// bytes up to memSize.
func BSS(vaddr uint32, data []byte, memSize uint32) Segment {
	return Segment{
		Type:    elf.PT_LOAD,
		Vaddr:   vaddr,
		MemSize: memSize,
		Data:    data,
		Flags:   elf.PF_R | elf.PF_W,
	}
}

// Build returns the bytes of an executable with the given entry point and
// program headers. Segment contents are laid out after the headers. The file
// has no section headers.
func Build(entry uint32, segs ...Segment) []byte {
	phoff := uint32(ehdrSize)
	off := phoff + uint32(len(segs))*phdrSize

	hdr := elf.Header32{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_MIPS),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     entry,
		Phoff:     phoff,
		Ehsize:    ehdrSize,
		Phentsize: phdrSize,
		Phnum:     uint16(len(segs)),
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2MSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, &hdr)
	for _, s := range segs {
		p := elf.Prog32{
			Type:   uint32(s.Type),
			Off:    off,
			Vaddr:  s.Vaddr,
			Paddr:  s.Vaddr,
			Filesz: uint32(len(s.Data)),
			Memsz:  s.MemSize,
			Flags:  uint32(s.Flags),
			Align:  4,
		}
		binary.Write(&buf, binary.BigEndian, &p)
		off += uint32(len(s.Data))
	}
	for _, s := range segs {
		buf.Write(s.Data)
	}
	return buf.Bytes()
}

// WriteFile writes an executable built by Build into a temporary directory
// and returns its path.
func WriteFile(t testing.TB, entry uint32, segs ...Segment) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prog.elf")
	if err := os.WriteFile(path, Build(entry, segs...), 0644); err != nil {
		t.Fatalf("error writing %q: %v", path, err)
	}
	return path
}
