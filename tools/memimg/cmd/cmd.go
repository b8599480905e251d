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

// Package cmd holds implementations of the memimg commands.
package cmd

import (
	"io"
	"os"
)

// output returns the writer passed as the first Execute argument, or
// os.Stdout.
func output(args []any) io.Writer {
	if len(args) > 0 {
		if w, ok := args[0].(io.Writer); ok {
			return w
		}
	}
	return os.Stdout
}
