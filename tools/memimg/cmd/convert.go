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
	"flag"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"
	"gvisor.dev/elf2mem/elf2mem/config"
	"gvisor.dev/elf2mem/elf2mem/convert"
	"gvisor.dev/elf2mem/pkg/log"
)

// Convert implements subcommands.Command for the "convert" command.
type Convert struct {
	jobs int
}

// Name implements subcommands.Command.
func (*Convert) Name() string {
	return "convert"
}

// Synopsis implements subcommands.Command.
func (*Convert) Synopsis() string {
	return "converts executables into page list and memory dump artifacts"
}

// Usage implements subcommands.Command.
func (*Convert) Usage() string {
	return `convert [flags] <elf_file>... - converts each executable.

With more than one input, the artifacts of each input are written to
<out-dir>/<input base name>/.
`
}

// SetFlags implements subcommands.Command.
func (c *Convert) SetFlags(f *flag.FlagSet) {
	config.RegisterFlags(f)
	f.IntVar(&c.jobs, "j", runtime.NumCPU(), "number of conversions to run in parallel.")
}

// Execute implements subcommands.Command.Execute.
func (c *Convert) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() == 0 || c.jobs < 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	if path := f.Lookup("config").Value.String(); path != "" {
		if err := config.ApplyFile(f, path); err != nil {
			log.Warningf("%v", err)
			return subcommands.ExitUsageError
		}
	}
	conf, err := config.NewFromFlags(f)
	if err != nil {
		log.Warningf("%v", err)
		return subcommands.ExitUsageError
	}
	if conf.Debug {
		log.SetLevel(log.Debug)
	}

	confs, err := perInputConfigs(conf, f.Args())
	if err != nil {
		log.Warningf("%v", err)
		return subcommands.ExitUsageError
	}

	out := output(args)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.jobs)
	results := make([]*convert.Result, len(confs))
	for i, input := range f.Args() {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := convert.Run(confs[i], input)
			if err != nil {
				log.Warningf("%v", err)
				return err
			}
			results[i] = res
			return nil
		})
	}
	err = g.Wait()
	for i, res := range results {
		if res == nil {
			continue
		}
		fmt.Fprintf(out, "%s: %d pages", f.Arg(i), res.Image.Table.PageCount())
		for _, a := range res.Artifacts {
			fmt.Fprintf(out, " %s", a)
		}
		fmt.Fprintln(out)
	}
	if err != nil {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// perInputConfigs returns the configuration of each input. A single input
// writes into conf.OutDir directly.
func perInputConfigs(conf *config.Config, inputs []string) ([]*config.Config, error) {
	if len(inputs) == 1 {
		return []*config.Config{conf}, nil
	}
	seen := map[string]string{}
	confs := make([]*config.Config, 0, len(inputs))
	for _, input := range inputs {
		base := filepath.Base(input)
		if other, ok := seen[base]; ok {
			return nil, fmt.Errorf("inputs %q and %q have the same base name", other, input)
		}
		seen[base] = input
		c := *conf
		c.OutDir = filepath.Join(conf.OutDir, base)
		confs = append(confs, &c)
	}
	return confs, nil
}
