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

// The simulated processor is a 32-bit big-endian MIPS core. On reset it
// fetches from ResetVector, where the boot routine loads the stack pointer,
// builds the program entry address in $fp and jumps to it.
const (
	// ResetVector is where the processor starts executing after reset.
	ResetVector Addr = 0xbfc00000

	// StackSize is the size of the stack region reserved below StackTop.
	StackSize = 0x1000

	// StackTop is the initial stack pointer loaded by the boot routine
	// ("lui $sp, 0x8000"). The stack grows down from here. Older converters
	// used 0x8000000, which does not match the boot routine and maps VPN
	// 7fff instead of 7ffff.
	StackTop Addr = 0x80000000

	// StackStart is the lowest address of the stack region.
	StackStart Addr = StackTop - StackSize
)

// bootRoutine is the boot routine template. It must never be modified; use
// BootRoutine or PatchEntry to obtain a copy.
var bootRoutine = [...]byte{
	0x3c, 0x1d, 0x80, 0x00, // lui $sp, 0x8000
	0x3c, 0x1e, 0x00, 0x00, // lui $fp, <entry[31:16]>
	0x37, 0xde, 0x00, 0x00, // ori $fp, $fp, <entry[15:0]>
	0x03, 0xc0, 0x00, 0x08, // jr $fp
}

// BootRoutineSize is the size of the boot routine in bytes.
const BootRoutineSize = len(bootRoutine)

// EntryPatchOffsets are the offsets in the boot routine that receive the
// entry address bytes, most significant first.
var EntryPatchOffsets = [4]int{6, 7, 10, 11}

// BootRoutine returns a copy of the unpatched boot routine template.
func BootRoutine() []byte {
	b := make([]byte, BootRoutineSize)
	copy(b, bootRoutine[:])
	return b
}

// PatchEntry returns a fresh copy of the boot routine with entry OR'd into
// the immediate fields of the lui/ori pair. The template is left untouched.
func PatchEntry(entry Addr) []byte {
	b := BootRoutine()
	for i, off := range EntryPatchOffsets {
		shift := uint(24 - 8*i)
		b[off] |= byte(uint32(entry) >> shift)
	}
	return b
}

// ResetRange returns the range occupied by the boot routine.
func ResetRange() AddrRange {
	return RangeOf(ResetVector, uint64(BootRoutineSize))
}

// StackRange returns the range reserved for the stack.
func StackRange() AddrRange {
	return RangeOf(StackStart, StackSize)
}

func init() {
	if PageSize&(PageSize-1) != 0 {
		panic("target page size must be a power of two")
	}
	if !StackRange().WellFormed() || !ResetRange().WellFormed() {
		panic("target stack or reset ranges exceed the address space")
	}
}
