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

// Package elfimage reads the loadable image of an ELF executable: its PT_LOAD
// segments and its entry point, expressed as 32-bit target addresses.
package elfimage

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gvisor.dev/elf2mem/pkg/targetarch"
)

var (
	// ErrNotELF is returned when the input does not parse as ELF.
	ErrNotELF = errors.New("not an ELF file")

	// ErrNoLoadableSegment is returned when the input has no PT_LOAD
	// segment with a non-zero memory size.
	ErrNoLoadableSegment = errors.New("no loadable segment")

	// ErrEntryOutOfRange is returned when the entry point does not fit the
	// 32-bit target address space.
	ErrEntryOutOfRange = errors.New("entry point outside the 32-bit address space")

	// ErrFileSizeExceedsMemSize is returned when a segment has more file
	// bytes than memory bytes.
	ErrFileSizeExceedsMemSize = errors.New("file size exceeds memory size")

	// ErrAddressOverflow is returned when a segment does not fit the 32-bit
	// target address space.
	ErrAddressOverflow = errors.New("segment outside the 32-bit address space")
)

// SegmentError describes a malformed PT_LOAD segment.
type SegmentError struct {
	// Index is the index of the program header.
	Index int

	// Vaddr is the virtual address recorded in the program header.
	Vaddr uint64

	// Err is the underlying error.
	Err error
}

// Error implements error.Error.
func (e *SegmentError) Error() string {
	return fmt.Sprintf("program header %d (vaddr %#x): %v", e.Index, e.Vaddr, e.Err)
}

// Unwrap returns the underlying error.
func (e *SegmentError) Unwrap() error {
	return e.Err
}

// Segment is one loadable segment of the image.
type Segment struct {
	// Vaddr is the virtual address of the first byte of the segment.
	Vaddr targetarch.Addr

	// MemSize is the number of bytes the segment occupies in memory.
	MemSize uint32

	// FileSize is the number of bytes backed by file contents.
	//
	// Invariant: FileSize <= MemSize.
	FileSize uint32

	// Data holds FileSize bytes of file contents. The remaining
	// MemSize-FileSize bytes are zero.
	Data []byte

	// Flags holds the ELF segment permission flags.
	Flags elf.ProgFlag
}

// Range returns the virtual range the segment occupies in memory.
func (s *Segment) Range() targetarch.AddrRange {
	return targetarch.RangeOf(s.Vaddr, uint64(s.MemSize))
}

// String implements fmt.Stringer.String.
func (s *Segment) String() string {
	return fmt.Sprintf("%v filesz=%#x %v", s.Range(), s.FileSize, s.Flags)
}

// Image is the loadable content of an executable.
type Image struct {
	// Entry is the program entry address.
	Entry targetarch.Addr

	// Machine is the ELF machine type of the image.
	Machine elf.Machine

	// Segments are the PT_LOAD segments in program header order.
	Segments []Segment
}

// Open reads the image of the ELF file at path.
//
// Errors from opening the file are returned unchanged so callers can test
// them with errors.Is(err, fs.ErrNotExist).
func Open(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read reads an ELF image from r.
func Read(r io.ReaderAt) (*Image, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		var fe *elf.FormatError
		if errors.As(err, &fe) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %v", ErrNotELF, err)
		}
		return nil, err
	}
	defer f.Close()

	if f.Entry >= targetarch.AddressSpaceSize {
		return nil, fmt.Errorf("%w: %#x", ErrEntryOutOfRange, f.Entry)
	}
	img := &Image{
		Entry:   targetarch.Addr(f.Entry),
		Machine: f.Machine,
	}
	for i, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD || prog.Memsz == 0 {
			continue
		}
		seg, err := readSegment(prog)
		if err != nil {
			return nil, &SegmentError{Index: i, Vaddr: prog.Vaddr, Err: err}
		}
		img.Segments = append(img.Segments, seg)
	}
	if len(img.Segments) == 0 {
		return nil, ErrNoLoadableSegment
	}
	return img, nil
}

func readSegment(prog *elf.Prog) (Segment, error) {
	if prog.Filesz > prog.Memsz {
		return Segment{}, fmt.Errorf("%w: filesz %#x, memsz %#x", ErrFileSizeExceedsMemSize, prog.Filesz, prog.Memsz)
	}
	if prog.Vaddr >= targetarch.AddressSpaceSize || prog.Memsz > math.MaxUint32 || prog.Memsz > targetarch.AddressSpaceSize-prog.Vaddr {
		return Segment{}, fmt.Errorf("%w: memsz %#x", ErrAddressOverflow, prog.Memsz)
	}
	data := make([]byte, prog.Filesz)
	if _, err := io.ReadFull(prog.Open(), data); err != nil {
		return Segment{}, fmt.Errorf("reading %#x file bytes: %w", prog.Filesz, err)
	}
	return Segment{
		Vaddr:    targetarch.Addr(prog.Vaddr),
		MemSize:  uint32(prog.Memsz),
		FileSize: uint32(prog.Filesz),
		Data:     data,
		Flags:    prog.Flags,
	}, nil
}
