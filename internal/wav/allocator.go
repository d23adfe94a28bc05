// SPDX-License-Identifier: MIT
package wav

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// DefaultBaseName is the file name prefix used by the recorder.
const DefaultBaseName = "recording"

// maxProbe bounds the name search so a pathological directory cannot spin
// the writer forever.
const maxProbe = 1 << 20

var ErrNoFreeName = errors.New("no free file name")

// dirLocks serialises allocate-and-create per directory.
var dirLocks sync.Map // map[string]*sync.Mutex

// Allocator finds collision-free names of the form <Base><n>.wav in Dir,
// probing n = 0, 1, 2, ... and picking the first one that does not exist.
type Allocator struct {
	Dir  string
	Base string
}

func NewAllocator(dir, base string) *Allocator {
	if dir == "" {
		dir = "."
	}
	if base == "" {
		base = DefaultBaseName
	}
	return &Allocator{Dir: dir, Base: base}
}

func (a *Allocator) path(i int) string {
	return filepath.Join(a.Dir, a.Base+strconv.Itoa(i)+".wav")
}

// Next returns the path of the lowest-numbered name that does not exist yet.
// Nothing is created, so two callers may get the same answer; use Create
// when the file is going to be written.
func (a *Allocator) Next() (string, error) {
	for i := 0; i < maxProbe; i++ {
		p := a.path(i)
		_, err := os.Lstat(p)
		if errors.Is(err, fs.ErrNotExist) {
			return p, nil
		}
		if err != nil {
			return "", &IOError{Op: "stat", Path: p, Err: err}
		}
	}
	return "", fmt.Errorf("%w in %s", ErrNoFreeName, a.Dir)
}

// Create allocates a name and creates the file exclusively. Allocators in
// this process that share a directory take turns, and O_EXCL keeps other
// processes from being handed the same file.
func (a *Allocator) Create() (*os.File, error) {
	mu := a.lock()
	mu.Lock()
	defer mu.Unlock()

	for i := 0; i < maxProbe; i++ {
		p := a.path(i)
		f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		return nil, &IOError{Op: "create", Path: p, Err: err}
	}
	return nil, fmt.Errorf("%w in %s", ErrNoFreeName, a.Dir)
}

func (a *Allocator) lock() *sync.Mutex {
	key, err := filepath.Abs(a.Dir)
	if err != nil {
		key = filepath.Clean(a.Dir)
	}
	mu, _ := dirLocks.LoadOrStore(key, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
