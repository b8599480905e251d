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

// Package targetarch describes the simulated target: its 32-bit address
// space, page geometry and the fixed boot convention used to enter a program.
package targetarch

import "fmt"

const (
	// PageShift is the binary log of the target page size.
	PageShift = 12

	// PageSize is the target page size.
	PageSize = 1 << PageShift

	// PageOffsetMask selects the offset of an address within its page.
	PageOffsetMask = PageSize - 1

	// AddressSpaceSize is the size of the 32-bit target address space.
	AddressSpaceSize = uint64(1) << 32
)

// Addr represents a target virtual or physical address.
type Addr uint32

// String implements fmt.Stringer.String.
func (v Addr) String() string {
	return fmt.Sprintf("%#x", uint32(v))
}

// RoundDown returns the address rounded down to the nearest page boundary.
func (v Addr) RoundDown() Addr {
	return v & ^Addr(PageOffsetMask)
}

// RoundUp returns the address rounded up to the nearest page boundary. ok is
// true iff rounding up did not wrap around.
func (v Addr) RoundUp() (addr Addr, ok bool) {
	addr = Addr(v + PageSize - 1).RoundDown()
	ok = addr >= v
	return
}

// PageOffset returns the offset of v into the current page.
func (v Addr) PageOffset() uint32 {
	return uint32(v & PageOffsetMask)
}

// IsPageAligned returns true if v.PageOffset() == 0.
func (v Addr) IsPageAligned() bool {
	return v.PageOffset() == 0
}

// PageNumber returns the page number containing v.
func (v Addr) PageNumber() uint32 {
	return uint32(v) >> PageShift
}

// AddrRange is a range of target addresses [Start, End).
//
// End is 64 bits wide so that a range may end exactly at the top of the
// 32-bit address space.
type AddrRange struct {
	Start Addr
	End   uint64
}

// RangeOf returns the range [start, start+length).
func RangeOf(start Addr, length uint64) AddrRange {
	return AddrRange{Start: start, End: uint64(start) + length}
}

// Length returns the length of the range.
func (ar AddrRange) Length() uint64 {
	return ar.End - uint64(ar.Start)
}

// WellFormed returns true if ar.Start <= ar.End and the range does not extend
// past the end of the address space.
func (ar AddrRange) WellFormed() bool {
	return uint64(ar.Start) <= ar.End && ar.End <= AddressSpaceSize
}

// Contains returns true if ar contains addr.
func (ar AddrRange) Contains(addr Addr) bool {
	return ar.Start <= addr && uint64(addr) < ar.End
}

// String implements fmt.Stringer.String.
func (ar AddrRange) String() string {
	return fmt.Sprintf("[%#x, %#x)", uint32(ar.Start), ar.End)
}

// ForEachPage calls fn with the base of every page that overlaps ar, in
// ascending order. An empty range visits no pages.
func (ar AddrRange) ForEachPage(fn func(page Addr)) {
	if uint64(ar.Start) >= ar.End {
		return
	}
	for a := uint64(ar.Start.RoundDown()); a < ar.End && a < AddressSpaceSize; a += PageSize {
		fn(Addr(a))
	}
}

// PageCount returns the number of pages that overlap ar.
func (ar AddrRange) PageCount() int {
	n := 0
	ar.ForEachPage(func(Addr) { n++ })
	return n
}
