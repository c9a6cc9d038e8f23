// Package service coordinates the record store and the vector index: every
// record write lands in the selected storage backend first, then mirrors
// into the index with a matched call. The two stay independent structures;
// nothing here makes the pair atomic.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/endlessblink/Like-I-Said-memory-mcp-server-sub006/internal/records"
	"github.com/endlessblink/Like-I-Said-memory-mcp-server-sub006/internal/storage"
	"github.com/endlessblink/Like-I-Said-memory-mcp-server-sub006/internal/vector"
)

// Record key prefixes inside the storage backend.
const (
	memoryKeyPrefix = "memory:"
	taskKeyPrefix   = "task:"
)

// Config holds everything needed to bring the service up.
type Config struct {
	// StoragePath is the target path handed to the backend selector.
	StoragePath string

	// ForceVariant pins a single storage variant (empty = fallback chain).
	ForceVariant storage.Variant

	// IndexDir is where vector snapshots live. Empty keeps the index
	// in-memory only.
	IndexDir string

	// EmbedDims sizes the default hashing embedder. Ignored when Embedder
	// is set.
	EmbedDims int

	// Embedder overrides the default hashing embedder.
	Embedder vector.Embedder
}

// Service owns the live storage handle and the vector index.
type Service struct {
	selector *storage.Selector
	handle   *storage.Handle
	index    *vector.Index
}

// New initializes storage through the fallback chain and loads the vector
// index. Storage exhaustion is the only fatal condition; a broken embedder
// just leaves the index degraded.
func New(cfg Config) (*Service, error) {
	selector := storage.NewSelector()
	handle, err := selector.Initialize(cfg.StoragePath, storage.Options{
		ForceVariant: cfg.ForceVariant,
	})
	if err != nil {
		return nil, err
	}

	embedder := cfg.Embedder
	if embedder == nil {
		embedder = vector.NewHashing(cfg.EmbedDims)
	}

	var persist *vector.Persistence
	if cfg.IndexDir != "" {
		persist, err = vector.NewPersistence(cfg.IndexDir)
		if err != nil {
			selector.Close()
			return nil, err
		}
	}

	return &Service{
		selector: selector,
		handle:   handle,
		index:    vector.NewIndex(embedder, persist),
	}, nil
}

// Variant returns the discriminant of the live storage backend.
func (s *Service) Variant() storage.Variant { return s.handle.Variant() }

// IndexStatus returns the vector index's observable state.
func (s *Service) IndexStatus() vector.Status { return s.index.Status() }

// SaveMemory persists a memory and upserts it into the index. A missing id
// is filled in; timestamps are maintained here.
func (s *Service) SaveMemory(ctx context.Context, m records.Memory) (records.Memory, error) {
	now := time.Now().UTC()
	if m.ID == "" {
		m.ID = records.NewID()
		m.CreatedAt = now
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	if err := s.putRecord(ctx, memoryKeyPrefix+m.ID, m); err != nil {
		return records.Memory{}, err
	}
	if err := s.index.UpdateMemory(ctx, m); err != nil {
		return records.Memory{}, err
	}
	return m, nil
}

// SaveTask persists a task and upserts it into the index.
func (s *Service) SaveTask(ctx context.Context, t records.Task) (records.Task, error) {
	now := time.Now().UTC()
	if t.ID == "" {
		t.ID = records.NewID()
		t.CreatedAt = now
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	if err := s.putRecord(ctx, taskKeyPrefix+t.ID, t); err != nil {
		return records.Task{}, err
	}
	if err := s.index.UpdateTask(ctx, t); err != nil {
		return records.Task{}, err
	}
	return t, nil
}

// GetMemory fetches a memory by exact id.
func (s *Service) GetMemory(ctx context.Context, id string) (records.Memory, error) {
	var m records.Memory
	err := s.getRecord(ctx, memoryKeyPrefix+id, &m)
	return m, err
}

// GetTask fetches a task by exact id.
func (s *Service) GetTask(ctx context.Context, id string) (records.Task, error) {
	var t records.Task
	err := s.getRecord(ctx, taskKeyPrefix+id, &t)
	return t, err
}

// DeleteMemory removes a memory from storage and from the index.
func (s *Service) DeleteMemory(ctx context.Context, id string) error {
	if err := s.handle.Delete(ctx, memoryKeyPrefix+id); err != nil {
		return err
	}
	s.index.DeleteMemory(id)
	return nil
}

// DeleteTask removes a task from storage and from the index.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	if err := s.handle.Delete(ctx, taskKeyPrefix+id); err != nil {
		return err
	}
	s.index.DeleteTask(id)
	return nil
}

// ListMemories returns every stored memory, newest first. This is a full
// scan so it works identically on the query-less flat-file variant.
func (s *Service) ListMemories(ctx context.Context) ([]records.Memory, error) {
	all, err := s.handle.All(ctx)
	if err != nil {
		return nil, err
	}
	var memories []records.Memory
	for key, value := range all {
		if !strings.HasPrefix(key, memoryKeyPrefix) {
			continue
		}
		var m records.Memory
		if err := json.Unmarshal(value, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		memories = append(memories, m)
	}
	sort.Slice(memories, func(i, j int) bool {
		if !memories[i].UpdatedAt.Equal(memories[j].UpdatedAt) {
			return memories[i].UpdatedAt.After(memories[j].UpdatedAt)
		}
		return memories[i].ID < memories[j].ID
	})
	return memories, nil
}

// ListTasks returns every stored task, newest first.
func (s *Service) ListTasks(ctx context.Context) ([]records.Task, error) {
	all, err := s.handle.All(ctx)
	if err != nil {
		return nil, err
	}
	var tasks []records.Task
	for key, value := range all {
		if !strings.HasPrefix(key, taskKeyPrefix) {
			continue
		}
		var t records.Task
		if err := json.Unmarshal(value, &t); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].UpdatedAt.Equal(tasks[j].UpdatedAt) {
			return tasks[i].UpdatedAt.After(tasks[j].UpdatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
	return tasks, nil
}

// Search runs a similarity query over the index.
func (s *Service) Search(ctx context.Context, query string, kind vector.Kind, limit int) ([]vector.SearchResult, error) {
	return s.index.SearchSimilar(ctx, query, kind, limit)
}

// RelevantMemories returns memories relevant to the given task.
func (s *Service) RelevantMemories(ctx context.Context, t records.Task, limit int) ([]vector.RelevantMemory, error) {
	return s.index.FindRelevantMemories(ctx, t, limit)
}

// Reindex rebuilds the vector index from everything in storage.
func (s *Service) Reindex(ctx context.Context) error {
	memories, err := s.ListMemories(ctx)
	if err != nil {
		return err
	}
	tasks, err := s.ListTasks(ctx)
	if err != nil {
		return err
	}
	return s.index.Rebuild(ctx, memories, tasks)
}

// Close releases the storage backend. Idempotent.
func (s *Service) Close() error {
	return s.selector.Close()
}

func (s *Service) putRecord(ctx context.Context, key string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.handle.Put(ctx, key, data)
}

func (s *Service) getRecord(ctx context.Context, key string, into any) error {
	data, err := s.handle.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
