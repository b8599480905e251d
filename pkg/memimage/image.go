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
	"errors"

	"gvisor.dev/elf2mem/pkg/pagetable"
	"gvisor.dev/elf2mem/pkg/targetarch"
)

// Image is the materialized physical memory of a program.
type Image struct {
	// Table maps virtual pages to physical pages of Memory.
	Table *pagetable.PageTable

	// Memory is the physical memory. Its length is
	// Table.PageCount() * targetarch.PageSize.
	Memory []byte

	// Entry is the program entry address.
	Entry targetarch.Addr

	// Regions are the virtual ranges the image maps.
	Regions []Region
}

// Translate returns the physical address of the virtual address addr.
func (img *Image) Translate(addr targetarch.Addr) (targetarch.Addr, error) {
	return img.Table.Translate(addr)
}

// ReadVirtual returns a copy of n bytes of memory starting at the virtual
// address addr. The bytes may span several pages.
func (img *Image) ReadVirtual(addr targetarch.Addr, n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		phys, err := img.Table.Translate(addr)
		if err != nil {
			return nil, err
		}
		chunk := min(n-len(out), targetarch.PageSize-int(addr.PageOffset()))
		out = append(out, img.Memory[phys:int(phys)+chunk]...)
		addr += targetarch.Addr(chunk)
	}
	return out, nil
}

// copyIn writes data at the virtual address addr, one page at a time, so
// that data crossing into a page registered out of order still lands in the
// right physical page.
func (img *Image) copyIn(region string, addr targetarch.Addr, data []byte) error {
	for len(data) > 0 {
		phys, err := img.Table.Translate(addr)
		if err != nil {
			var pf *pagetable.PageFault
			if errors.As(err, &pf) {
				return &TranslationFault{Region: region, Err: pf}
			}
			return err
		}
		n := copy(img.Memory[phys:int(phys)+targetarch.PageSize-int(addr.PageOffset())], data)
		data = data[n:]
		addr += targetarch.Addr(n)
	}
	return nil
}
