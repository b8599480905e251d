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

// Package memimage builds the physical memory image of a program for the
// memory simulator.
//
// Building happens in two passes. The registration pass walks every virtual
// range the program needs (its loadable segments, the stack and the reset
// vector) and registers each page in a pagetable.PageTable. The
// materialization pass then allocates physical memory for exactly the
// registered pages and copies segment contents and the patched boot routine
// into it.
package memimage

import (
	"fmt"
	"time"

	"gvisor.dev/elf2mem/pkg/elfimage"
	"gvisor.dev/elf2mem/pkg/log"
	"gvisor.dev/elf2mem/pkg/pagetable"
	"gvisor.dev/elf2mem/pkg/targetarch"
)

// Region names used for the fixed ranges.
const (
	StackRegion = "stack"
	ResetRegion = "reset"
)

// Region is a named virtual range that the image must map.
type Region struct {
	Name  string
	Range targetarch.AddrRange
}

// TranslationFault is returned when materialization finds an address that the
// registration pass did not map. It indicates a bug in the registration pass
// and is never caused by the input.
type TranslationFault struct {
	// Region is the region being copied.
	Region string

	// Err is the underlying page fault.
	Err *pagetable.PageFault
}

// Error implements error.Error.
func (f *TranslationFault) Error() string {
	return fmt.Sprintf("internal error: %s not covered by the page table: %v", f.Region, f.Err)
}

// Unwrap returns the underlying page fault.
func (f *TranslationFault) Unwrap() error {
	return f.Err
}

// Builder populates a page table with every page touched by a program and
// materializes its physical memory.
type Builder struct {
	table    *pagetable.PageTable
	segments []elfimage.Segment
	entry    targetarch.Addr
	regions  []Region

	// trace logs individual page registrations.
	trace log.Logger
}

// NewBuilder returns a Builder for the given segments and entry address.
func NewBuilder(segments []elfimage.Segment, entry targetarch.Addr) *Builder {
	return &Builder{
		table:    pagetable.New(),
		segments: segments,
		entry:    entry,
		trace:    log.NewRateLimited(log.Log(), 10*time.Millisecond, 64),
	}
}

// Table returns the builder's page table.
func (b *Builder) Table() *pagetable.PageTable {
	return b.table
}

// Regions returns the regions registered so far, in registration order.
func (b *Builder) Regions() []Region {
	return append([]Region(nil), b.regions...)
}

// segmentRegion names the i-th segment.
func segmentRegion(i int) string {
	return fmt.Sprintf("segment %d", i)
}

// Register registers, in order, the pages of every segment, of the stack and
// of the reset vector. The first region to touch a page claims the next
// physical page; later regions sharing the page reuse it.
//
// Register may be called more than once; pages already present are skipped
// and the region list is rebuilt.
func (b *Builder) Register() {
	b.regions = b.regions[:0]
	for i := range b.segments {
		b.register(segmentRegion(i), b.segments[i].Range())
	}
	b.register(StackRegion, targetarch.StackRange())
	b.register(ResetRegion, targetarch.ResetRange())
	log.Debugf("Registered %d pages (%#x bytes of physical memory)", b.table.PageCount(), b.table.MemorySize())
}

func (b *Builder) register(name string, ar targetarch.AddrRange) {
	b.regions = append(b.regions, Region{Name: name, Range: ar})
	ar.ForEachPage(func(page targetarch.Addr) {
		if b.table.Add(page) {
			b.trace.Debugf("%s: page %v -> physical page %d", name, page, b.table.PageCount()-1)
		}
	})
}

// Materialize allocates physical memory for every registered page and fills
// it with the segment contents and the boot routine patched with the entry
// address. Bytes not covered by file contents are zero.
//
// Materialize returns a *TranslationFault if an address to be written was
// not registered, and an error if a segment's FileSize exceeds its Data or
// MemSize.
func (b *Builder) Materialize() (*Image, error) {
	img := &Image{
		Table:   b.table,
		Memory:  make([]byte, b.table.MemorySize()),
		Entry:   b.entry,
		Regions: b.Regions(),
	}
	for i := range b.segments {
		seg := &b.segments[i]
		if int(seg.FileSize) > len(seg.Data) || seg.FileSize > seg.MemSize {
			return nil, fmt.Errorf("%s: file size %#x exceeds data length %#x or memory size %#x", segmentRegion(i), seg.FileSize, len(seg.Data), seg.MemSize)
		}
		if err := img.copyIn(segmentRegion(i), seg.Vaddr, seg.Data[:seg.FileSize]); err != nil {
			return nil, err
		}
	}
	if err := img.copyIn(ResetRegion, targetarch.ResetVector, targetarch.PatchEntry(b.entry)); err != nil {
		return nil, err
	}
	return img, nil
}

// Build registers and materializes the image of prog.
func Build(prog *elfimage.Image) (*Image, error) {
	b := NewBuilder(prog.Segments, prog.Entry)
	b.Register()
	return b.Materialize()
}
