package vector

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/endlessblink/Like-I-Said-memory-mcp-server-sub006/internal/records"
)

// Kind selects which collection a search runs over.
type Kind string

const (
	KindMemory Kind = "memory"
	KindTask   Kind = "task"

	// KindAny searches the union of both collections.
	KindAny Kind = ""
)

// Relevance cutoff and same-project boost used by FindRelevantMemories.
const (
	relevanceCutoff = 0.7
	projectBoost    = 0.8
)

// Entry is one indexed record.
type Entry struct {
	ID        string            `json:"id"`
	Embedding []float32         `json:"embedding"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Content   string            `json:"content"`
}

// SearchResult is one ranked hit. Score is a cosine distance: 0 is
// identical, larger is less similar.
type SearchResult struct {
	ID       string
	Kind     Kind
	Score    float32
	Content  string
	Metadata map[string]string
}

// RelevantMemory is a memory matched to a task. Relevance is 1 - distance,
// so higher is better.
type RelevantMemory struct {
	ID        string
	Relevance float32
	Metadata  map[string]string
}

// Status reports the observable index state.
type Status struct {
	Degraded bool
	Embedder string
	Memories int
	Tasks    int
}

// Index holds the two record collections and answers nearest-neighbor
// queries by brute-force cosine scan. All operations are safe for one
// coordinating caller at a time; a mutex guards the delete-then-add update
// path against concurrent readers.
type Index struct {
	mu       sync.Mutex
	embedder Embedder
	persist  *Persistence // nil means in-memory only
	memories map[string]Entry
	tasks    map[string]Entry
	degraded bool
}

// NewIndex builds an index over the given embedder, loading any existing
// snapshots from persist (which may be nil for an ephemeral index).
//
// The embedder is probed once here. If it is missing or fails the probe the
// index comes up degraded: every mutation is a no-op and every search
// returns nothing, rather than erroring on each call. Degradation is
// visible through Status.
func NewIndex(embedder Embedder, persist *Persistence) *Index {
	idx := &Index{
		embedder: embedder,
		persist:  persist,
		memories: make(map[string]Entry),
		tasks:    make(map[string]Entry),
	}

	if embedder == nil {
		idx.degraded = true
		log.Printf("vector index: no embedder configured, running degraded")
	} else if _, err := embedder.Embed(context.Background(), "startup probe"); err != nil {
		idx.degraded = true
		log.Printf("vector index: embedder %s unavailable, running degraded: %v", embedder.Name(), err)
	}

	if persist != nil {
		memories, tasks, err := persist.Load()
		if err != nil {
			log.Printf("vector index: loading snapshots: %v (starting empty)", err)
		} else {
			idx.memories = memories
			idx.tasks = tasks
		}
	}
	return idx
}

// Status returns the current observable state.
func (idx *Index) Status() Status {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	st := Status{
		Degraded: idx.degraded,
		Memories: len(idx.memories),
		Tasks:    len(idx.tasks),
	}
	if idx.embedder != nil {
		st.Embedder = idx.embedder.Name()
	}
	return st
}

// AddMemory indexes a memory record.
func (idx *Index) AddMemory(ctx context.Context, m records.Memory) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.degraded {
		return nil
	}
	return idx.addMemoryLocked(ctx, m)
}

// AddTask indexes a task record.
func (idx *Index) AddTask(ctx context.Context, t records.Task) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.degraded {
		return nil
	}
	return idx.addTaskLocked(ctx, t)
}

// UpdateMemory refreshes a memory's entry. Defined as delete-then-add, so a
// stale embedding never coexists with the new one under the same id.
func (idx *Index) UpdateMemory(ctx context.Context, m records.Memory) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.degraded {
		return nil
	}
	delete(idx.memories, m.ID)
	return idx.addMemoryLocked(ctx, m)
}

// UpdateTask refreshes a task's entry via delete-then-add.
func (idx *Index) UpdateTask(ctx context.Context, t records.Task) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.degraded {
		return nil
	}
	delete(idx.tasks, t.ID)
	return idx.addTaskLocked(ctx, t)
}

// DeleteMemory removes a memory from the index. Unknown ids are ignored.
func (idx *Index) DeleteMemory(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.degraded {
		return
	}
	delete(idx.memories, id)
	idx.saveLocked()
}

// DeleteTask removes a task from the index. Unknown ids are ignored.
func (idx *Index) DeleteTask(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.degraded {
		return
	}
	delete(idx.tasks, id)
	idx.saveLocked()
}

// Rebuild clears both collections and re-indexes every supplied record in
// the order given. Used for full re-indexing after corruption or a schema
// change; it is not incremental.
func (idx *Index) Rebuild(ctx context.Context, memories []records.Memory, tasks []records.Task) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.degraded {
		return nil
	}

	idx.memories = make(map[string]Entry, len(memories))
	idx.tasks = make(map[string]Entry, len(tasks))

	for _, m := range memories {
		vec, err := idx.embedder.Embed(ctx, m.EmbeddingText())
		if err != nil {
			return fmt.Errorf("vector index: rebuild memory %s: %w", m.ID, err)
		}
		idx.memories[m.ID] = memoryEntry(m, vec)
	}
	for _, t := range tasks {
		vec, err := idx.embedder.Embed(ctx, t.EmbeddingText())
		if err != nil {
			return fmt.Errorf("vector index: rebuild task %s: %w", t.ID, err)
		}
		idx.tasks[t.ID] = taskEntry(t, vec)
	}

	idx.saveLocked()
	return nil
}

// SearchSimilar ranks entries by cosine distance from the query text. Kind
// restricts the candidate set to one collection; any other value searches
// both. Results come back best-first, truncated to limit.
func (idx *Index) SearchSimilar(ctx context.Context, query string, kind Kind, limit int) ([]SearchResult, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.degraded {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	queryVec, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vector index: embed query: %w", err)
	}

	var results []SearchResult
	if kind != KindTask {
		results = appendScored(results, idx.memories, KindMemory, queryVec)
	}
	if kind != KindMemory {
		results = appendScored(results, idx.tasks, KindTask, queryVec)
	}

	sortByScore(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// FindRelevantMemories returns memories relevant to the task, boosting
// same-project matches and dropping anything past the relevance cutoff.
func (idx *Index) FindRelevantMemories(ctx context.Context, t records.Task, limit int) ([]RelevantMemory, error) {
	if limit <= 0 {
		limit = 10
	}

	results, err := idx.SearchSimilar(ctx, t.QueryText(), KindMemory, limit*2)
	if err != nil {
		return nil, err
	}

	// Same-project results move up: distance shrinks by the boost factor.
	if t.Project != "" {
		for i, r := range results {
			if r.Metadata["project"] == t.Project {
				results[i].Score = r.Score * projectBoost
			}
		}
		sortByScore(results)
	}

	var relevant []RelevantMemory
	for _, r := range results {
		if r.Score >= relevanceCutoff {
			continue
		}
		relevant = append(relevant, RelevantMemory{
			ID:        r.ID,
			Relevance: 1 - r.Score,
			Metadata:  r.Metadata,
		})
		if len(relevant) == limit {
			break
		}
	}
	return relevant, nil
}

func (idx *Index) addMemoryLocked(ctx context.Context, m records.Memory) error {
	vec, err := idx.embedder.Embed(ctx, m.EmbeddingText())
	if err != nil {
		return fmt.Errorf("vector index: embed memory %s: %w", m.ID, err)
	}
	idx.memories[m.ID] = memoryEntry(m, vec)
	idx.saveLocked()
	return nil
}

func (idx *Index) addTaskLocked(ctx context.Context, t records.Task) error {
	vec, err := idx.embedder.Embed(ctx, t.EmbeddingText())
	if err != nil {
		return fmt.Errorf("vector index: embed task %s: %w", t.ID, err)
	}
	idx.tasks[t.ID] = taskEntry(t, vec)
	idx.saveLocked()
	return nil
}

// saveLocked flushes both snapshots. A failed save is logged, never
// propagated: the in-memory state stays authoritative and unsaved changes
// are lost on restart.
func (idx *Index) saveLocked() {
	if idx.persist == nil {
		return
	}
	if err := idx.persist.Save(idx.memories, idx.tasks); err != nil {
		log.Printf("vector index: snapshot save failed: %v", err)
	}
}

func memoryEntry(m records.Memory, vec []float32) Entry {
	meta := map[string]string{"type": "memory"}
	if m.Category != "" {
		meta["category"] = m.Category
	}
	if m.Project != "" {
		meta["project"] = m.Project
	}
	if len(m.Tags) > 0 {
		meta["tags"] = strings.Join(m.Tags, ",")
	}
	return Entry{ID: m.ID, Embedding: vec, Metadata: meta, Content: m.Content}
}

func taskEntry(t records.Task, vec []float32) Entry {
	meta := map[string]string{"type": "task"}
	if t.Category != "" {
		meta["category"] = t.Category
	}
	if t.Project != "" {
		meta["project"] = t.Project
	}
	if t.Status != "" {
		meta["status"] = t.Status
	}
	if len(t.Tags) > 0 {
		meta["tags"] = strings.Join(t.Tags, ",")
	}
	return Entry{ID: t.ID, Embedding: vec, Metadata: meta, Content: t.Title}
}

func appendScored(dst []SearchResult, entries map[string]Entry, kind Kind, queryVec []float32) []SearchResult {
	for _, e := range entries {
		dst = append(dst, SearchResult{
			ID:       e.ID,
			Kind:     kind,
			Score:    CosineDistance(queryVec, e.Embedding),
			Content:  e.Content,
			Metadata: e.Metadata,
		})
	}
	return dst
}

// sortByScore orders ascending by distance, breaking ties by id so map
// iteration order never leaks into results.
func sortByScore(results []SearchResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score < results[j].Score
		}
		return results[i].ID < results[j].ID
	})
}
