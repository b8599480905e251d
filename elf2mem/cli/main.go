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

// Package cli is the main entrypoint for elf2mem.
package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
	"gvisor.dev/elf2mem/elf2mem/config"
	"gvisor.dev/elf2mem/elf2mem/convert"
	"gvisor.dev/elf2mem/pkg/artifact"
	"gvisor.dev/elf2mem/pkg/log"
)

// Exit codes.
const (
	ExitSuccess = 0
	// ExitUsage is returned for a bad command line or configuration.
	ExitUsage = 1
	// ExitInput is returned when the input image is missing or invalid.
	ExitInput = 2
	// ExitOutput is returned when an artifact cannot be written.
	ExitOutput = 3
	// ExitInternal is returned when the image builder faults.
	ExitInternal = 4
)

const usage = `usage: elf2mem [flags] <elf_file>

Converts a MIPS executable into the page list and memory dump loaded by the
memory simulator.

Flags:
`

// Main is the main entrypoint.
func Main() {
	os.Exit(Run(os.Args[1:], os.Stderr))
}

// Run runs elf2mem with the given arguments, excluding the program name, and
// returns the process exit code. Usage and diagnostics are written to stderr.
func Run(args []string, stderr io.Writer) int {
	flagSet := flag.NewFlagSet("elf2mem", flag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.Usage = func() {
		fmt.Fprint(stderr, usage)
		flagSet.PrintDefaults()
	}
	config.RegisterFlags(flagSet)

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		return ExitUsage
	}
	if flagSet.NArg() != 1 {
		fmt.Fprintf(stderr, "expected exactly one input file, got %d\n", flagSet.NArg())
		flagSet.Usage()
		return ExitUsage
	}
	input := flagSet.Arg(0)

	if path := flagSet.Lookup("config").Value.String(); path != "" {
		if err := config.ApplyFile(flagSet, path); err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return ExitUsage
		}
	}
	conf, err := config.NewFromFlags(flagSet)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		flagSet.Usage()
		return ExitUsage
	}

	// Restore the default target for whatever runs next in this process.
	defer log.SetTarget(log.DefaultEmitter(os.Stderr))
	defer log.SetLevel(log.Info)
	logFile, err := setupLogging(conf, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return ExitOutput
	}
	if logFile != nil {
		defer logFile.Close()
	}

	log.Debugf("%s, %s, host page size %#x, PID %d", runtime.Version(), runtime.GOARCH, unix.Getpagesize(), os.Getpid())
	log.Debugf("Args: %v", args)
	log.Debugf("Config: %v", conf.ToFlags())

	if _, err := convert.Run(conf, input); err != nil {
		log.Warningf("%v", err)
		return exitCode(err)
	}
	return ExitSuccess
}

// setupLogging points the logger at stderr and, if configured, a log file.
// It returns the log file, which the caller must close.
func setupLogging(conf *config.Config, stderr io.Writer) (*os.File, error) {
	if conf.Debug {
		log.SetLevel(log.Debug)
	}

	var emitters log.MultiEmitter
	e, err := log.NewEmitter(conf.LogFormat, stderr)
	if err != nil {
		return nil, err
	}
	emitters = append(emitters, e)

	f, err := log.OpenFile(conf.LogFilename)
	if err != nil {
		return nil, err
	}
	if f != nil {
		e, err := log.NewEmitter(conf.LogFormat, f)
		if err != nil {
			f.Close()
			return nil, err
		}
		emitters = append(emitters, e)
	}

	if len(emitters) == 1 {
		log.SetTarget(emitters[0])
	} else {
		log.SetTarget(&emitters)
	}
	return f, nil
}

// exitCode maps a conversion error to the process exit code.
func exitCode(err error) int {
	var (
		inputErr *convert.InputError
		writeErr *artifact.WriteError
	)
	switch {
	case errors.As(err, &inputErr):
		return ExitInput
	case errors.As(err, &writeErr):
		return ExitOutput
	}
	// *memimage.TranslationFault and anything unexpected.
	return ExitInternal
}
