package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// flatFileExt marks files owned by the flat-file variant.
const flatFileExt = ".json"

// FlatFilePath returns the document file the flat-file variant uses for the
// given target path.
func FlatFilePath(targetPath string) string {
	if strings.HasSuffix(targetPath, flatFileExt) {
		return targetPath
	}
	return strings.TrimSuffix(targetPath, filepath.Ext(targetPath)) + flatFileExt
}

// flatFile is the last-resort JSON document store. It keeps every record in
// memory and rewrites the whole file after each mutation. No query language;
// callers scan All.
type flatFile struct {
	path string

	mu      sync.Mutex
	records map[string]string
	closed  bool
}

type flatFileDocument struct {
	Records map[string]string `json:"records"`
}

// newFlatFile opens (or creates) the flat-file variant for targetPath.
func newFlatFile(targetPath string) (*flatFile, error) {
	f := &flatFile{
		path:    FlatFilePath(targetPath),
		records: make(map[string]string),
	}

	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}

	var doc flatFileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.path, err)
	}
	if doc.Records != nil {
		f.records = doc.Records
	}
	return f, nil
}

func (f *flatFile) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	v, ok := f.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	return []byte(v), nil
}

func (f *flatFile) Put(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	f.records[key] = string(value)
	return f.flushLocked()
}

func (f *flatFile) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if _, ok := f.records[key]; !ok {
		return nil
	}
	delete(f.records, key)
	return f.flushLocked()
}

func (f *flatFile) All(ctx context.Context) (map[string][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	out := make(map[string][]byte, len(f.records))
	for k, v := range f.records {
		out[k] = []byte(v)
	}
	return out, nil
}

// Close marks the store closed. The file is already current, so there is
// nothing to flush.
func (f *flatFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// flushLocked rewrites the whole document atomically (temp file + rename).
func (f *flatFile) flushLocked() error {
	data, err := json.MarshalIndent(flatFileDocument{Records: f.records}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", f.path, err)
	}
	return writeFileAtomic(f.path, data)
}

// writeFileAtomic writes data to path via a temp file in the same directory
// and a rename, so readers never observe a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
