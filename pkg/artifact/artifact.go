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

// Package artifact writes output files into an output directory.
package artifact

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"
)

// lockDir holds the advisory lock files of output directories. It is a
// variable so tests can point it elsewhere.
var lockDir = os.TempDir()

// WriteError is returned when an artifact cannot be created or written.
type WriteError struct {
	// Path is the artifact path.
	Path string
	// Err is the underlying error.
	Err error
}

// Error implements error.Error.
func (e *WriteError) Error() string {
	return fmt.Sprintf("writing %q: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *WriteError) Unwrap() error {
	return e.Err
}

// Dir is an output directory.
type Dir struct {
	path string
}

// NewDir returns the output directory at path, creating it if needed.
func NewDir(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, &WriteError{Path: path, Err: err}
	}
	return &Dir{path: path}, nil
}

// Path returns the directory path.
func (d *Dir) Path() string {
	return d.path
}

// Join returns the path of the artifact name inside d.
func (d *Dir) Join(name string) string {
	return filepath.Join(d.path, name)
}

// LockPath returns the path of the advisory lock file of d. Lock files live
// outside the output directory so only artifacts are left in it.
func (d *Dir) LockPath() (string, error) {
	abs, err := filepath.Abs(d.path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(abs))
	return filepath.Join(lockDir, "elf2mem-"+hex.EncodeToString(sum[:8])+".lock"), nil
}

// Lock takes the advisory lock of the directory and returns the function
// releasing it. It blocks while another process holds the lock.
func (d *Dir) Lock() (func() error, error) {
	f, err := d.LockPath()
	if err != nil {
		return nil, &WriteError{Path: d.path, Err: err}
	}
	l := flock.NewFlock(f)
	if err := l.Lock(); err != nil {
		return nil, &WriteError{Path: f, Err: fmt.Errorf("acquiring lock: %w", err)}
	}
	return l.Unlock, nil
}

// WriteFile creates or truncates the artifact name and fills it with write.
// The contents are buffered and flushed before the file is closed. A file
// that fails midway is left behind partially written.
func (d *Dir) WriteFile(name string, write func(w io.Writer) error) error {
	path := d.Join(name)
	if err := writeFile(path, write); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

func writeFile(path string, write func(w io.Writer) error) error {
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_CREAT|unix.O_TRUNC|unix.O_CLOEXEC, 0644)
	if err != nil {
		return &os.PathError{Op: "open", Path: path, Err: err}
	}
	f := os.NewFile(uintptr(fd), path)
	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
