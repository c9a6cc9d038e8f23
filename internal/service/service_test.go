package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/endlessblink/Like-I-Said-memory-mcp-server-sub006/internal/records"
	"github.com/endlessblink/Like-I-Said-memory-mcp-server-sub006/internal/storage"
	"github.com/endlessblink/Like-I-Said-memory-mcp-server-sub006/internal/vector"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestService forces a deterministic variant so tests do not depend on
// whether the cgo driver works in the build environment.
func newTestService(t *testing.T, variant storage.Variant) *Service {
	t.Helper()
	dir := t.TempDir()
	svc, err := New(Config{
		StoragePath:  filepath.Join(dir, "memory.db"),
		ForceVariant: variant,
		IndexDir:     filepath.Join(dir, "index"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestService_MemoryLifecycle(t *testing.T) {
	for _, variant := range []storage.Variant{storage.VariantEmbedded, storage.VariantFlatFile} {
		t.Run(string(variant), func(t *testing.T) {
			ctx := context.Background()
			svc := newTestService(t, variant)
			assert.Equal(t, variant, svc.Variant())

			m, err := svc.SaveMemory(ctx, records.Memory{
				Content: "the staging host is reachable over the vpn",
				Project: "gateway",
				Tags:    []string{"infra"},
			})
			require.NoError(t, err)
			require.NotEmpty(t, m.ID)
			assert.False(t, m.CreatedAt.IsZero())

			got, err := svc.GetMemory(ctx, m.ID)
			require.NoError(t, err)
			assert.Equal(t, m.Content, got.Content)

			results, err := svc.Search(ctx, "staging host vpn", vector.KindMemory, 5)
			require.NoError(t, err)
			require.NotEmpty(t, results)
			assert.Equal(t, m.ID, results[0].ID)

			require.NoError(t, svc.DeleteMemory(ctx, m.ID))
			_, err = svc.GetMemory(ctx, m.ID)
			assert.True(t, errors.Is(err, storage.ErrNotFound))

			results, err = svc.Search(ctx, "staging host vpn", vector.KindMemory, 5)
			require.NoError(t, err)
			assert.Empty(t, results)
		})
	}
}

func TestService_TaskLifecycleAndRelevance(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, storage.VariantFlatFile)

	_, err := svc.SaveMemory(ctx, records.Memory{
		Content: "database migrations run automatically at startup",
		Project: "gateway",
	})
	require.NoError(t, err)

	task, err := svc.SaveTask(ctx, records.Task{
		Title:       "review database migrations",
		Description: "check automatic startup behavior",
		Project:     "gateway",
	})
	require.NoError(t, err)

	relevant, err := svc.RelevantMemories(ctx, task, 5)
	require.NoError(t, err)
	require.NotEmpty(t, relevant)
	assert.Equal(t, "gateway", relevant[0].Metadata["project"])
	assert.Greater(t, relevant[0].Relevance, float32(0.3))
}

func TestService_UpdateKeepsSingleIndexEntry(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, storage.VariantFlatFile)

	m, err := svc.SaveMemory(ctx, records.Memory{Content: "draft one"})
	require.NoError(t, err)

	m.Content = "draft two completely rewritten"
	_, err = svc.SaveMemory(ctx, m)
	require.NoError(t, err)

	assert.Equal(t, 1, svc.IndexStatus().Memories)

	got, err := svc.GetMemory(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "draft two completely rewritten", got.Content)
}

func TestService_ListSortsNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, storage.VariantEmbedded)

	first, err := svc.SaveMemory(ctx, records.Memory{Content: "older"})
	require.NoError(t, err)
	second, err := svc.SaveMemory(ctx, records.Memory{Content: "newer"})
	require.NoError(t, err)

	memories, err := svc.ListMemories(ctx)
	require.NoError(t, err)
	require.Len(t, memories, 2)
	// Timestamps may collide; both orders are valid then, but the two
	// records must both be present.
	ids := []string{memories[0].ID, memories[1].ID}
	assert.Contains(t, ids, first.ID)
	assert.Contains(t, ids, second.ID)
}

func TestService_Reindex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := Config{
		StoragePath:  filepath.Join(dir, "memory.db"),
		ForceVariant: storage.VariantFlatFile,
		IndexDir:     filepath.Join(dir, "index"),
	}

	svc, err := New(cfg)
	require.NoError(t, err)
	_, err = svc.SaveMemory(ctx, records.Memory{Content: "survives a rebuild"})
	require.NoError(t, err)
	_, err = svc.SaveTask(ctx, records.Task{Title: "rebuild target"})
	require.NoError(t, err)
	require.NoError(t, svc.Close())

	// Fresh service over the same data, then a full rebuild.
	svc2, err := New(cfg)
	require.NoError(t, err)
	defer svc2.Close()

	require.NoError(t, svc2.Reindex(ctx))
	st := svc2.IndexStatus()
	assert.Equal(t, 1, st.Memories)
	assert.Equal(t, 1, st.Tasks)

	results, err := svc2.Search(ctx, "survives a rebuild", vector.KindMemory, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

// failingEmbedder forces the index into degraded mode.
type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("model not downloaded")
}
func (failingEmbedder) Dimensions() int { return 0 }
func (failingEmbedder) Name() string    { return "failing" }

func TestService_DegradedIndexStillStoresRecords(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	svc, err := New(Config{
		StoragePath:  filepath.Join(dir, "memory.db"),
		ForceVariant: storage.VariantFlatFile,
		Embedder:     failingEmbedder{},
	})
	require.NoError(t, err)
	defer svc.Close()

	require.True(t, svc.IndexStatus().Degraded)

	// Record writes keep working; only semantic search is unavailable.
	m, err := svc.SaveMemory(ctx, records.Memory{Content: "stored without an index"})
	require.NoError(t, err)

	got, err := svc.GetMemory(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.Content, got.Content)

	results, err := svc.Search(ctx, "stored without an index", vector.KindAny, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}
