package vector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Snapshot file names inside the index directory.
const (
	memorySnapshotFile = "memory-index.json"
	taskSnapshotFile   = "task-index.json"
)

// Persistence serializes the two index collections to durable snapshot
// files. Load runs once at startup; Save runs after every mutation. Each
// save rewrites the complete snapshot, never a delta.
type Persistence struct {
	memoryPath string
	taskPath   string
}

// NewPersistence returns persistence rooted at dir, creating it if needed.
func NewPersistence(dir string) (*Persistence, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	return &Persistence{
		memoryPath: filepath.Join(dir, memorySnapshotFile),
		taskPath:   filepath.Join(dir, taskSnapshotFile),
	}, nil
}

// Load reads both snapshots. A missing file means that collection starts
// empty; only parse and I/O failures are errors.
func (p *Persistence) Load() (memories, tasks map[string]Entry, err error) {
	memories, err = loadSnapshot(p.memoryPath)
	if err != nil {
		return nil, nil, err
	}
	tasks, err = loadSnapshot(p.taskPath)
	if err != nil {
		return nil, nil, err
	}
	return memories, tasks, nil
}

// Save writes both collections in full.
func (p *Persistence) Save(memories, tasks map[string]Entry) error {
	if err := saveSnapshot(p.memoryPath, memories); err != nil {
		return err
	}
	return saveSnapshot(p.taskPath, tasks)
}

func loadSnapshot(path string) (map[string]Entry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return make(map[string]Entry), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	entries := make(map[string]Entry)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return entries, nil
}

func saveSnapshot(path string, entries map[string]Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// writeFileAtomic writes data via a temp file and rename so a crashed save
// never leaves a truncated snapshot behind.
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
