// Package fsutil provides filesystem abstractions for testability.
package fsutil

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileSystem abstracts the filesystem operations used by the recorders.
// Use OSFileSystem for production; MemoryFileSystem for testing.
type FileSystem interface {
	// Create creates or truncates the named file for writing.
	Create(name string) (io.WriteCloser, error)

	// OpenAppend opens the named file for appending, creating it if needed.
	OpenAppend(name string) (io.WriteCloser, error)

	// ReadFile reads the named file and returns its contents.
	ReadFile(name string) ([]byte, error)

	// MkdirAll creates a directory and all necessary parents.
	MkdirAll(path string, perm os.FileMode) error

	// Exists checks if a file or directory exists.
	Exists(name string) bool

	// Truncate changes the size of the named file.
	Truncate(name string, size int64) error
}

// OSFileSystem implements FileSystem using the os package.
type OSFileSystem struct{}

// Create creates the named file.
func (OSFileSystem) Create(name string) (io.WriteCloser, error) {
	return os.Create(name)
}

// OpenAppend opens the named file in append mode.
func (OSFileSystem) OpenAppend(name string) (io.WriteCloser, error) {
	return os.OpenFile(name, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
}

// ReadFile reads the named file.
func (OSFileSystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// MkdirAll creates a directory path.
func (OSFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// Exists checks if a file exists.
func (OSFileSystem) Exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// Truncate changes the size of the named file.
func (OSFileSystem) Truncate(name string, size int64) error {
	return os.Truncate(name, size)
}

// MemoryFileSystem provides an in-memory filesystem for testing.
// Writes are visible to ReadFile as soon as Write returns.
type MemoryFileSystem struct {
	mu     sync.RWMutex
	files  map[string][]byte
	dirs   map[string]bool
	opens  int
	writes int

	// OpenErr, when non-nil, is returned by Create and OpenAppend.
	OpenErr error
	// WriteErr, when non-nil, makes every Write store only the first half
	// of its buffer and then fail with WriteErr.
	WriteErr error
}

// NewMemoryFileSystem creates a new in-memory filesystem.
func NewMemoryFileSystem() *MemoryFileSystem {
	return &MemoryFileSystem{
		files: make(map[string][]byte),
		dirs:  make(map[string]bool),
	}
}

// Create creates or truncates a file.
func (m *MemoryFileSystem) Create(name string) (io.WriteCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.OpenErr != nil {
		return nil, &fs.PathError{Op: "create", Path: name, Err: m.OpenErr}
	}
	name = filepath.Clean(name)
	m.files[name] = []byte{}
	m.opens++
	return &memFileWriter{fs: m, name: name}, nil
}

// OpenAppend opens a file for appending.
func (m *MemoryFileSystem) OpenAppend(name string) (io.WriteCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.OpenErr != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: m.OpenErr}
	}
	name = filepath.Clean(name)
	if _, ok := m.files[name]; !ok {
		m.files[name] = []byte{}
	}
	m.opens++
	return &memFileWriter{fs: m, name: name}, nil
}

// Opens returns how many times a file has been opened for writing.
func (m *MemoryFileSystem) Opens() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.opens
}

// Writes returns how many Write calls have reached any file.
func (m *MemoryFileSystem) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// ReadFile reads a file's contents.
func (m *MemoryFileSystem) ReadFile(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name = filepath.Clean(name)
	data, ok := m.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}

	result := make([]byte, len(data))
	copy(result, data)
	return result, nil
}

// MkdirAll creates directories.
func (m *MemoryFileSystem) MkdirAll(path string, perm os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = filepath.Clean(path)
	m.dirs[path] = true

	for p := filepath.Dir(path); p != "." && p != "/" && p != path; p = filepath.Dir(p) {
		m.dirs[p] = true
	}

	return nil
}

// Exists checks if a file or directory exists.
func (m *MemoryFileSystem) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name = filepath.Clean(name)
	if _, ok := m.files[name]; ok {
		return true
	}
	return m.dirs[name]
}

// Truncate cuts or zero-extends a file to size bytes.
func (m *MemoryFileSystem) Truncate(name string, size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name = filepath.Clean(name)
	data, ok := m.files[name]
	if !ok {
		return &fs.PathError{Op: "truncate", Path: name, Err: fs.ErrNotExist}
	}
	if size < 0 {
		return &fs.PathError{Op: "truncate", Path: name, Err: fs.ErrInvalid}
	}
	if int64(len(data)) >= size {
		m.files[name] = data[:size:size]
	} else {
		m.files[name] = append(data, make([]byte, size-int64(len(data)))...)
	}
	return nil
}

// memFileWriter appends straight into the backing map.
type memFileWriter struct {
	fs     *MemoryFileSystem
	name   string
	closed bool
}

func (f *memFileWriter) Write(p []byte) (int, error) {
	if f.closed {
		return 0, fs.ErrClosed
	}
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	f.fs.writes++
	if f.fs.WriteErr != nil {
		n := len(p) / 2
		f.fs.files[f.name] = append(f.fs.files[f.name], p[:n]...)
		return n, f.fs.WriteErr
	}
	f.fs.files[f.name] = append(f.fs.files[f.name], p...)
	return len(p), nil
}

func (f *memFileWriter) Close() error {
	if f.closed {
		return fs.ErrClosed
	}
	f.closed = true
	return nil
}
