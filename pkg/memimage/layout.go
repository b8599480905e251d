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
	"fmt"

	"gvisor.dev/elf2mem/pkg/targetarch"
)

// PageLayout describes one page table entry.
type PageLayout struct {
	VPN      string `json:"vpn" yaml:"vpn"`
	Virtual  string `json:"virtual" yaml:"virtual"`
	Physical string `json:"physical" yaml:"physical"`
}

// RegionLayout describes one registered region.
type RegionLayout struct {
	Name  string `json:"name" yaml:"name"`
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
	Pages int    `json:"pages" yaml:"pages"`
}

// Layout is a serializable summary of an image.
type Layout struct {
	PageSize   int            `json:"page_size" yaml:"page_size"`
	Entry      string         `json:"entry" yaml:"entry"`
	MemorySize int            `json:"memory_size" yaml:"memory_size"`
	Pages      []PageLayout   `json:"pages" yaml:"pages"`
	Regions    []RegionLayout `json:"regions" yaml:"regions"`
}

func hexAddr(v uint64) string {
	return fmt.Sprintf("0x%08x", v)
}

// Layout returns the layout summary of img.
func (img *Image) Layout() *Layout {
	l := &Layout{
		PageSize:   targetarch.PageSize,
		Entry:      hexAddr(uint64(img.Entry)),
		MemorySize: len(img.Memory),
	}
	for _, e := range img.Table.Entries() {
		l.Pages = append(l.Pages, PageLayout{
			VPN:      fmt.Sprintf("%x", e.PageNumber()),
			Virtual:  hexAddr(uint64(e.Virtual)),
			Physical: hexAddr(uint64(e.Physical)),
		})
	}
	for _, r := range img.Regions {
		l.Regions = append(l.Regions, RegionLayout{
			Name:  r.Name,
			Start: hexAddr(uint64(r.Range.Start)),
			End:   hexAddr(r.Range.End),
			Pages: r.Range.PageCount(),
		})
	}
	return l
}
