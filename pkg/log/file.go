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

package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// OpenFile opens the log file at path for appending, creating it and its
// parent directory if needed. An empty path returns a nil file.
func OpenFile(path string) (*os.File, error) {
	if len(path) == 0 {
		return nil, nil
	}

	// Create parent directory if it doesn't exist.
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0775); err != nil {
		return nil, fmt.Errorf("error creating dir %q: %v", dir, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0664)
	if err != nil {
		return nil, fmt.Errorf("error opening file %q: %v", path, err)
	}
	return f, nil
}

// NewEmitter returns an emitter writing to w in the given format: "text"
// (glog style) or "json".
func NewEmitter(format string, w io.Writer) (Emitter, error) {
	switch format {
	case "text":
		return GoogleEmitter{&Writer{Next: w}}, nil
	case "json":
		return JSONEmitter{&Writer{Next: w}}, nil
	}
	return nil, fmt.Errorf("invalid log format %q, must be 'text' or 'json'", format)
}
