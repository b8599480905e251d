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

package targetarch

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRoundDown(t *testing.T) {
	for _, tc := range []struct {
		addr Addr
		want Addr
	}{
		{0, 0},
		{1, 0},
		{0xfff, 0},
		{0x1000, 0x1000},
		{0x80000004, 0x80000000},
		{0xffffffff, 0xfffff000},
	} {
		if got := tc.addr.RoundDown(); got != tc.want {
			t.Errorf("%v.RoundDown() = %v, want %v", tc.addr, got, tc.want)
		}
	}
}

func TestRoundUp(t *testing.T) {
	if got, ok := Addr(0x1001).RoundUp(); !ok || got != 0x2000 {
		t.Errorf("RoundUp(0x1001) = %v, %t, want 0x2000, true", got, ok)
	}
	if _, ok := Addr(0xfffff001).RoundUp(); ok {
		t.Errorf("RoundUp(0xfffff001) did not report wrap-around")
	}
}

func TestPageNumber(t *testing.T) {
	if got, want := Addr(0x80000fff).PageNumber(), uint32(0x80000); got != want {
		t.Errorf("PageNumber() = %#x, want %#x", got, want)
	}
	if got, want := ResetVector.PageNumber(), uint32(0xbfc00); got != want {
		t.Errorf("PageNumber() = %#x, want %#x", got, want)
	}
}

func TestForEachPage(t *testing.T) {
	for _, tc := range []struct {
		name string
		ar   AddrRange
		want []Addr
	}{
		{
			name: "empty",
			ar:   RangeOf(0x80000000, 0),
		},
		{
			name: "empty unaligned",
			ar:   RangeOf(0x80000800, 0),
		},
		{
			name: "inverted",
			ar:   AddrRange{Start: 0x80002000, End: 0x80001000},
		},
		{
			name: "single byte",
			ar:   RangeOf(0x80000123, 1),
			want: []Addr{0x80000000},
		},
		{
			name: "unaligned start crossing a boundary",
			ar:   RangeOf(0x80000ff0, 0x20),
			want: []Addr{0x80000000, 0x80001000},
		},
		{
			name: "exact pages",
			ar:   RangeOf(0x1000, 0x2000),
			want: []Addr{0x1000, 0x2000},
		},
		{
			name: "end of address space",
			ar:   RangeOf(0xffffe000, 0x2000),
			want: []Addr{0xffffe000, 0xfffff000},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var got []Addr
			tc.ar.ForEachPage(func(a Addr) { got = append(got, a) })
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("ForEachPage mismatch (-want +got):\n%s", diff)
			}
			if n := tc.ar.PageCount(); n != len(tc.want) {
				t.Errorf("PageCount() = %d, want %d", n, len(tc.want))
			}
		})
	}
}

func TestAddrRange(t *testing.T) {
	ar := RangeOf(0x1000, 0x10)
	if !ar.Contains(0x100f) || ar.Contains(0x1010) || ar.Contains(0xfff) {
		t.Errorf("%v: wrong containment", ar)
	}
	if ar.Length() != 0x10 {
		t.Errorf("%v: Length() = %#x", ar, ar.Length())
	}
	if !RangeOf(0xfffff000, 0x1000).WellFormed() {
		t.Errorf("range ending at the top of the address space should be well formed")
	}
	if RangeOf(0xfffff000, 0x1001).WellFormed() {
		t.Errorf("range past the top of the address space should not be well formed")
	}
}

func TestPatchEntry(t *testing.T) {
	const entry = Addr(0x80001000)
	got := PatchEntry(entry)
	want := []byte{
		0x3c, 0x1d, 0x80, 0x00,
		0x3c, 0x1e, 0x80, 0x00,
		0x37, 0xde, 0x10, 0x00,
		0x03, 0xc0, 0x00, 0x08,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("PatchEntry(%v) mismatch (-want +got):\n%s", entry, diff)
	}

	// Bytes outside the patch slots are untouched.
	tmpl := BootRoutine()
	patched := map[int]bool{}
	for _, off := range EntryPatchOffsets {
		patched[off] = true
	}
	for i := range tmpl {
		if !patched[i] && got[i] != tmpl[i] {
			t.Errorf("byte %d changed: got %#x, template %#x", i, got[i], tmpl[i])
		}
	}
}

func TestPatchEntryOrsOntoTemplate(t *testing.T) {
	got := PatchEntry(0xffffffff)
	for _, off := range EntryPatchOffsets {
		if got[off] != 0xff {
			t.Errorf("byte %d = %#x, want 0xff", off, got[off])
		}
	}
}

func TestPatchEntryDoesNotMutateTemplate(t *testing.T) {
	before := BootRoutine()
	PatchEntry(0x12345678)
	PatchEntry(0x9abcdef0)
	if diff := cmp.Diff(before, BootRoutine()); diff != "" {
		t.Errorf("template changed after patching (-before +after):\n%s", diff)
	}
	// Patching is a pure function of the entry address.
	if diff := cmp.Diff(PatchEntry(0x80000004), PatchEntry(0x80000004)); diff != "" {
		t.Errorf("repeated patch differs:\n%s", diff)
	}
}

func TestTargetRanges(t *testing.T) {
	if got, want := StackRange(), (AddrRange{Start: 0x7ffff000, End: 0x80000000}); got != want {
		t.Errorf("StackRange() = %v, want %v", got, want)
	}
	if got, want := ResetRange(), (AddrRange{Start: 0xbfc00000, End: 0xbfc00010}); got != want {
		t.Errorf("ResetRange() = %v, want %v", got, want)
	}
}
