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

package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/google/subcommands"
	yaml "gopkg.in/yaml.v2"
	"gvisor.dev/elf2mem/elf2mem/convert"
	"gvisor.dev/elf2mem/pkg/log"
	"gvisor.dev/elf2mem/pkg/memimage"
)

// Layout implements subcommands.Command for the "layout" command.
type Layout struct {
	format string
}

// Name implements subcommands.Command.
func (*Layout) Name() string {
	return "layout"
}

// Synopsis implements subcommands.Command.
func (*Layout) Synopsis() string {
	return "prints the page mapping and regions of an executable"
}

// Usage implements subcommands.Command.
func (*Layout) Usage() string {
	return `layout [flags] <elf_file> - prints the page mapping without writing artifacts.
`
}

// SetFlags implements subcommands.Command.
func (l *Layout) SetFlags(f *flag.FlagSet) {
	f.StringVar(&l.format, "format", "text", "output format: text, yaml or json.")
}

// Execute implements subcommands.Command.Execute.
func (l *Layout) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	var write func(io.Writer, *memimage.Image) error
	switch l.format {
	case "text":
		write = writeText
	case "yaml":
		write = writeYAML
	case "json":
		write = writeJSON
	default:
		log.Warningf("invalid format %q, must be text, yaml or json", l.format)
		return subcommands.ExitUsageError
	}

	img, err := convert.Load(f.Arg(0))
	if err != nil {
		log.Warningf("%v", err)
		return subcommands.ExitFailure
	}
	if err := write(output(args), img); err != nil {
		log.Warningf("error writing layout: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func writeText(w io.Writer, img *memimage.Image) error {
	fmt.Fprintf(w, "entry %v\n", img.Entry)
	fmt.Fprintf(w, "%d pages, %#x bytes\n", img.Table.PageCount(), len(img.Memory))
	if err := img.Table.WriteMappingTo(w); err != nil {
		return err
	}
	for _, r := range img.Regions {
		if _, err := fmt.Fprintf(w, "%s %v\n", r.Name, r.Range); err != nil {
			return err
		}
	}
	return nil
}

func writeYAML(w io.Writer, img *memimage.Image) error {
	b, err := yaml.Marshal(img.Layout())
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

func writeJSON(w io.Writer, img *memimage.Image) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(img.Layout())
}
