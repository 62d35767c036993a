package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DirProvider writes exports into a directory. Files are written to a
// temporary name and moved into place on Close, so readers never see
// partial images.
type DirProvider struct {
	Dir string

	// Overwrite replaces an existing file with the same name. Otherwise a
	// numeric suffix is added ("my_photo-1.png").
	Overwrite bool

	// Confirm, if set, is asked before each write; returning false declines.
	Confirm func(name string) bool
}

func (d *DirProvider) RequestDestination(ctx context.Context, suggestedName, _ string) (Sink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := filepath.Base(suggestedName)
	if d.Confirm != nil && !d.Confirm(name) {
		return nil, ErrUserCancelled
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	final := filepath.Join(d.Dir, name)
	sink := &fileSink{final: final, want: final, overwrite: d.Overwrite}
	if !d.Overwrite {
		i, err := freeSuffix(final)
		if err != nil {
			return nil, err
		}
		sink.next = i
		sink.final = suffixed(final, i)
	}

	tmp, err := os.CreateTemp(d.Dir, ".filtercam-*.part")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	sink.tmp = tmp
	return sink, nil
}

const maxSuffix = 10000

// suffixed returns path with "-i" before the extension; 0 leaves it unchanged.
func suffixed(path string, i int) string {
	if i == 0 {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(path, ext), i, ext)
}

// freeSuffix returns the first suffix index whose name does not exist yet.
// Another writer may take it before commit.
func freeSuffix(path string) (int, error) {
	for i := 0; i < maxSuffix; i++ {
		if _, err := os.Stat(suffixed(path, i)); errors.Is(err, fs.ErrNotExist) {
			return i, nil
		} else if err != nil {
			return 0, err
		}
	}
	return 0, fmt.Errorf("no free file name for %s", path)
}

// linkFree hard-links tmp to the first free suffixed name starting at index
// from. Link fails on an existing target, so concurrent commits never
// replace each other.
func linkFree(tmp, path string, from int) (string, error) {
	for i := from; i < maxSuffix; i++ {
		candidate := suffixed(path, i)
		err := os.Link(tmp, candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("no free file name for %s", path)
}

type fileSink struct {
	tmp       *os.File
	final     string
	want      string
	next      int
	overwrite bool
	done      bool
}

// Path returns the destination path the sink commits to. After Close it is
// the name actually written, which may carry a later suffix than requested.
func (s *fileSink) Path() string { return s.final }

func (s *fileSink) Write(p []byte) (int, error) {
	return s.tmp.Write(p)
}

func (s *fileSink) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	if err := s.tmp.Sync(); err != nil {
		s.tmp.Close()
		os.Remove(s.tmp.Name())
		return err
	}
	if err := s.tmp.Close(); err != nil {
		os.Remove(s.tmp.Name())
		return err
	}
	if s.overwrite {
		if err := os.Rename(s.tmp.Name(), s.final); err != nil {
			os.Remove(s.tmp.Name())
			return err
		}
		return nil
	}
	final, err := linkFree(s.tmp.Name(), s.want, s.next)
	os.Remove(s.tmp.Name())
	if err != nil {
		return err
	}
	s.final = final
	return nil
}

func (s *fileSink) Abort() error {
	if s.done {
		return nil
	}
	s.done = true
	s.tmp.Close()
	return os.Remove(s.tmp.Name())
}

// MemoryProvider keeps committed exports in memory. It backs the HTTP
// download endpoint and tests.
type MemoryProvider struct {
	// Cancel makes every request decline.
	Cancel bool
	// FailWrite, if set, is returned by every sink Write.
	FailWrite error

	mu    sync.Mutex
	files map[string][]byte
	mimes map[string]string
}

func (m *MemoryProvider) RequestDestination(ctx context.Context, suggestedName, mimeType string) (Sink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Cancel {
		return nil, ErrUserCancelled
	}
	return &memSink{owner: m, name: suggestedName, mime: mimeType}, nil
}

// File returns a committed export and its MIME type.
func (m *MemoryProvider) File(name string) ([]byte, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[name]
	return data, m.mimes[name], ok
}

// Len returns the number of committed exports.
func (m *MemoryProvider) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

func (m *MemoryProvider) commit(name, mime string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files == nil {
		m.files = make(map[string][]byte)
		m.mimes = make(map[string]string)
	}
	m.files[name] = data
	m.mimes[name] = mime
}

type memSink struct {
	owner *MemoryProvider
	name  string
	mime  string
	buf   bytes.Buffer
	done  bool
}

func (s *memSink) Write(p []byte) (int, error) {
	if s.owner.FailWrite != nil {
		return 0, s.owner.FailWrite
	}
	return s.buf.Write(p)
}

func (s *memSink) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	s.owner.commit(s.name, s.mime, bytes.Clone(s.buf.Bytes()))
	return nil
}

func (s *memSink) Abort() error {
	s.done = true
	s.buf.Reset()
	return nil
}
