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

// Package convert turns an executable image into the memory simulator
// artifacts.
package convert

import (
	"fmt"
	"io"

	"gvisor.dev/elf2mem/elf2mem/config"
	"gvisor.dev/elf2mem/pkg/artifact"
	"gvisor.dev/elf2mem/pkg/elfimage"
	"gvisor.dev/elf2mem/pkg/log"
	"gvisor.dev/elf2mem/pkg/memimage"
)

// InputError is returned when the input image is missing or cannot be
// parsed. No artifact is written when it is returned.
type InputError struct {
	// Path is the input path.
	Path string
	// Err is the underlying error.
	Err error
}

// Error implements error.Error.
func (e *InputError) Error() string {
	return fmt.Sprintf("reading %q: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *InputError) Unwrap() error {
	return e.Err
}

// Result describes a successful conversion.
type Result struct {
	// Image is the materialized image.
	Image *memimage.Image
	// Artifacts are the paths of the written artifacts, in writing order.
	Artifacts []string
}

// Load reads the image at path and builds its memory image without writing
// anything.
//
// It returns an *InputError if the image cannot be read, or a
// *memimage.TranslationFault if building fails.
func Load(path string) (*memimage.Image, error) {
	prog, err := elfimage.Open(path)
	if err != nil {
		return nil, &InputError{Path: path, Err: err}
	}
	log.Debugf("Read %q: entry %v, %d loadable segments", path, prog.Entry, len(prog.Segments))
	for i := range prog.Segments {
		log.Debugf("Segment %d: %v", i, &prog.Segments[i])
	}
	return memimage.Build(prog)
}

// Run converts the image at path and writes the artifacts named by conf into
// conf.OutDir.
//
// Errors are an *InputError, a *memimage.TranslationFault or an
// *artifact.WriteError. Artifacts written before a write error are left in
// place.
func Run(conf *config.Config, path string) (*Result, error) {
	img, err := Load(path)
	if err != nil {
		return nil, err
	}

	dir, err := artifact.NewDir(conf.OutDir)
	if err != nil {
		return nil, err
	}
	unlock, err := dir.Lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	writers := map[string]func(io.Writer) error{
		conf.PageList: img.WritePageList,
		conf.Memory:   img.WriteMemory,
	}
	if conf.IntelHex != "" {
		writers[conf.IntelHex] = img.WriteIntelHex
	}

	res := &Result{Image: img}
	for _, name := range conf.Artifacts() {
		if err := dir.WriteFile(name, writers[name]); err != nil {
			return nil, err
		}
		res.Artifacts = append(res.Artifacts, dir.Join(name))
	}
	log.Infof("Converted %q: %d pages, %#x bytes of memory, entry %v", path, img.Table.PageCount(), len(img.Memory), img.Entry)
	return res, nil
}
