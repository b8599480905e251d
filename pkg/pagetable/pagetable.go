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

// Package pagetable implements the static virtual-to-physical page mapping
// handed to the memory simulator.
//
// Physical pages are allocated densely in first-touch order: the n-th page
// added is backed by physical page n. The table only grows.
package pagetable

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/google/btree"
	"gvisor.dev/elf2mem/pkg/targetarch"
)

// btreeDegree is the degree of the lookup index.
const btreeDegree = 8

// Entry maps one virtual page to one physical page.
type Entry struct {
	// Virtual is the page-aligned virtual base address.
	Virtual targetarch.Addr

	// Physical is the page-aligned physical base address.
	Physical targetarch.Addr
}

// Contains returns true if addr falls within the virtual page of e.
func (e Entry) Contains(addr targetarch.Addr) bool {
	return addr.RoundDown() == e.Virtual
}

// PageNumber returns the virtual page number of e.
func (e Entry) PageNumber() uint32 {
	return e.Virtual.PageNumber()
}

// String implements fmt.Stringer.String.
func (e Entry) String() string {
	return fmt.Sprintf("%x->%x", uint32(e.Virtual), uint32(e.Physical))
}

// PageFault is returned by Translate when no page contains the address.
type PageFault struct {
	Addr targetarch.Addr
}

// Error implements error.Error.
func (f *PageFault) Error() string {
	return fmt.Sprintf("page fault: no page maps virtual address %v", f.Addr)
}

// PageTable is a growable virtual-to-physical page mapping.
//
// PageTable is not safe for concurrent use. A table is populated once by a
// single builder and is read-only afterwards.
type PageTable struct {
	// entries holds the mappings in insertion order. Invariant:
	// entries[i].Physical == i * PageSize.
	entries []Entry

	// index orders the same entries by virtual base for lookup.
	index *btree.BTreeG[Entry]
}

func lessVirtual(a, b Entry) bool {
	return a.Virtual < b.Virtual
}

// New returns an empty PageTable.
func New() *PageTable {
	return &PageTable{
		index: btree.NewG(btreeDegree, lessVirtual),
	}
}

// lookup returns the entry whose page contains addr.
func (p *PageTable) lookup(addr targetarch.Addr) (Entry, bool) {
	return p.index.Get(Entry{Virtual: addr.RoundDown()})
}

// Has returns true if some registered page contains addr.
func (p *PageTable) Has(addr targetarch.Addr) bool {
	_, ok := p.lookup(addr)
	return ok
}

// Add registers the page containing addr, backing it with the next free
// physical page. It returns true if a page was added, or false if the page
// was already registered, in which case the table is unchanged.
func (p *PageTable) Add(addr targetarch.Addr) bool {
	if p.Has(addr) {
		return false
	}
	e := Entry{
		Virtual:  addr.RoundDown(),
		Physical: targetarch.Addr(len(p.entries) * targetarch.PageSize),
	}
	p.entries = append(p.entries, e)
	p.index.ReplaceOrInsert(e)
	return true
}

// AddRange registers every page overlapping ar that is not yet present and
// returns the number of pages added.
func (p *PageTable) AddRange(ar targetarch.AddrRange) int {
	added := 0
	ar.ForEachPage(func(page targetarch.Addr) {
		if p.Add(page) {
			added++
		}
	})
	return added
}

// Covers returns true if every page overlapping ar is registered.
func (p *PageTable) Covers(ar targetarch.AddrRange) bool {
	covered := true
	ar.ForEachPage(func(page targetarch.Addr) {
		if !p.Has(page) {
			covered = false
		}
	})
	return covered
}

// Translate returns the physical address backing the virtual address addr.
// It returns a *PageFault if no registered page contains addr.
func (p *PageTable) Translate(addr targetarch.Addr) (targetarch.Addr, error) {
	e, ok := p.lookup(addr)
	if !ok {
		return 0, &PageFault{Addr: addr}
	}
	return (addr & targetarch.PageOffsetMask) | e.Physical, nil
}

// PageCount returns the number of registered pages.
func (p *PageTable) PageCount() int {
	return len(p.entries)
}

// MemorySize returns the number of bytes of physical memory the table maps.
func (p *PageTable) MemorySize() int {
	return len(p.entries) * targetarch.PageSize
}

// Entries returns a copy of the mappings in physical allocation order.
func (p *PageTable) Entries() []Entry {
	return append([]Entry(nil), p.entries...)
}

// PageNumbers returns the virtual page number of every entry in physical
// allocation order.
func (p *PageTable) PageNumbers() []uint32 {
	vpns := make([]uint32, len(p.entries))
	for i, e := range p.entries {
		vpns[i] = e.PageNumber()
	}
	return vpns
}

// WriteTo writes the page list consumed by the simulator: one virtual page
// number per line in lowercase hexadecimal, without prefix or padding, in
// physical allocation order.
//
// WriteTo implements io.WriterTo.
func (p *PageTable) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var (
		n   int64
		buf []byte
	)
	for _, vpn := range p.PageNumbers() {
		buf = strconv.AppendUint(buf[:0], uint64(vpn), 16)
		buf = append(buf, '\n')
		m, err := bw.Write(buf)
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

// WriteMappingTo writes a human readable "virtual->physical" listing of the
// table, one entry per line.
func (p *PageTable) WriteMappingTo(w io.Writer) error {
	for _, e := range p.entries {
		if _, err := fmt.Fprintln(w, e); err != nil {
			return err
		}
	}
	return nil
}
