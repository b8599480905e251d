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

package memimage

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/marcinbor85/gohex"
	"gvisor.dev/elf2mem/pkg/targetarch"
)

const (
	// wordSize is the number of bytes rendered as one hex word.
	wordSize = 4

	// wordsPerLine is the number of words on each line of the memory dump.
	wordsPerLine = 4

	// lineBytes is the number of memory bytes rendered per line.
	lineBytes = wordSize * wordsPerLine

	// intelHexLineLength is the number of data bytes per Intel HEX record.
	intelHexLineLength = 16
)

// WritePageList writes the page list artifact: one lowercase hex virtual page
// number per line, in physical page order.
func (img *Image) WritePageList(w io.Writer) error {
	_, err := img.Table.WriteTo(w)
	return err
}

// WriteMemory writes the memory artifact. Every 4 bytes of memory, in
// physical address order, are rendered as an 8 digit lowercase hex word.
// Words are separated by a space, and every 4th word is followed by a
// newline instead.
func (img *Image) WriteMemory(w io.Writer) error {
	return writeMemory(w, img.Memory)
}

func writeMemory(w io.Writer, mem []byte) error {
	if len(mem)%wordSize != 0 {
		return fmt.Errorf("memory size %#x is not a multiple of the word size", len(mem))
	}
	bw := bufio.NewWriterSize(w, 64*1024)
	var word [2*wordSize + 1]byte
	for i := 0; i < len(mem); i += wordSize {
		hex.Encode(word[:2*wordSize], mem[i:i+wordSize])
		if (i+wordSize)%lineBytes == 0 {
			word[2*wordSize] = '\n'
		} else {
			word[2*wordSize] = ' '
		}
		if _, err := bw.Write(word[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteIntelHex writes the physical memory in Intel HEX format. The start
// address record holds the physical address of the reset vector.
func (img *Image) WriteIntelHex(w io.Writer) error {
	reset, err := img.Table.Translate(targetarch.ResetVector)
	if err != nil {
		return err
	}
	mem := gohex.NewMemory()
	mem.SetStartAddress(uint32(reset))
	if err := mem.AddBinary(0, img.Memory); err != nil {
		return fmt.Errorf("building Intel HEX image: %w", err)
	}
	return mem.DumpIntelHex(w, intelHexLineLength)
}
