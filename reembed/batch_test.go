package reembed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/assetfind/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEmbedder for testing
type mockEmbedder struct {
	embedTextFunc  func(ctx context.Context, text string) ([]float32, error)
	embedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)
}

func (m *mockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if m.embedTextFunc != nil {
		return m.embedTextFunc(ctx, text)
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *mockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if m.embedTextsFunc != nil {
		return m.embedTextsFunc(ctx, texts)
	}
	// Default: return unnormalized vectors for each text
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = []float32{1.0, 2.0, 2.0} // magnitude = 3.0
	}
	return result, nil
}

// mockVectorWriter records upserted asset IDs.
type mockVectorWriter struct {
	mu       sync.Mutex
	upserted []uuid.UUID
	err      error
}

func (w *mockVectorWriter) UpsertVectors(ctx context.Context, assets ...*core.Asset) error {
	if w.err != nil {
		return w.err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, a := range assets {
		w.upserted = append(w.upserted, a.ID)
	}
	return nil
}

func (w *mockVectorWriter) DeleteVectors(ctx context.Context, ids ...uuid.UUID) error {
	return nil
}

func magnitudeSquared(v []float32) float32 {
	var m float32
	for _, x := range v {
		m += x * x
	}
	return m
}

func TestBatchProcessor_Process(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	added := seedAssets(t, repo, 2)

	writer := &mockVectorWriter{}
	processor := NewBatchProcessor(repo, writer, &mockEmbedder{}, 3, 10*time.Millisecond)

	_, err := processor.Process(ctx, added)
	require.NoError(t, err)

	updated, err := repo.GetAssets(ctx, added[0].ID, added[1].ID)
	require.NoError(t, err)
	require.Len(t, updated, 2)

	for _, asset := range updated {
		require.NotEmpty(t, asset.Embedding, "should have embedding")
		assert.InDelta(t, 1.0, magnitudeSquared(asset.Embedding), 0.01, "vector should be normalized")
	}
	assert.Equal(t, []uuid.UUID{added[0].ID, added[1].ID}, writer.upserted)
}

func TestBatchProcessor_EmbeddingText(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	added, err := repo.AddAssets(ctx, &core.Asset{
		OriginalName: "talk.mp4",
		MimeType:     "video/mp4",
		AIData:       core.AIData{Tags: []string{"keynote"}, Transcript: "hello"},
	})
	require.NoError(t, err)

	var got []string
	embedder := &mockEmbedder{
		embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			got = texts
			return [][]float32{{1, 0}}, nil
		},
	}
	processor := NewBatchProcessor(repo, nil, embedder, 1, time.Millisecond)
	_, err = processor.Process(ctx, added)
	require.NoError(t, err)
	assert.Equal(t, []string{"talk.mp4 keynote hello"}, got)
}

func TestBatchProcessor_EmptyBatch(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	processor := NewBatchProcessor(repo, nil, &mockEmbedder{}, 3, 10*time.Millisecond)

	stats, err := processor.Process(context.Background(), []*core.Asset{})
	require.NoError(t, err, "empty batch should not error")
	assert.Equal(t, BatchStats{}, stats)
}

func TestBatchProcessor_EmbeddingError(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	added := seedAssets(t, repo, 1)

	attempts := 0
	embedder := &mockEmbedder{
		embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			attempts++
			return nil, errors.New("embedding error")
		},
	}
	processor := NewBatchProcessor(repo, nil, embedder, 3, time.Millisecond)

	_, err := processor.Process(ctx, added)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding error")
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, attempts)
}

func TestBatchProcessor_Retry(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	added := seedAssets(t, repo, 1)

	attempts := 0
	embedder := &mockEmbedder{
		embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			attempts++
			if attempts < 2 {
				return nil, errors.New("temporary error")
			}
			result := make([][]float32, len(texts))
			for i := range texts {
				result[i] = []float32{1.0, 0.0, 0.0}
			}
			return result, nil
		},
	}
	processor := NewBatchProcessor(repo, nil, embedder, 3, 10*time.Millisecond)

	stats, err := processor.Process(ctx, added)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts, "should retry on failure")
	assert.Equal(t, BatchStats{Embedded: 1, Attempts: 2, Dimensions: 3}, stats)

	updated, err := repo.GetAsset(ctx, added[0].ID)
	require.NoError(t, err)
	require.NotEmpty(t, updated.Embedding)
}

func TestBatchProcessor_CountMismatch(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	added := seedAssets(t, repo, 2)
	embedder := &mockEmbedder{
		embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			return [][]float32{{1, 0}}, nil
		},
	}
	processor := NewBatchProcessor(repo, nil, embedder, 1, time.Millisecond)

	_, err := processor.Process(context.Background(), added)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding count mismatch")
}

func TestBatchProcessor_VectorSyncError(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	added := seedAssets(t, repo, 1)
	writer := &mockVectorWriter{err: errors.New("index unavailable")}
	processor := NewBatchProcessor(repo, writer, &mockEmbedder{}, 1, time.Millisecond)

	_, err := processor.Process(context.Background(), added)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to sync vectors")

	// The primary store is updated before the sync is attempted
	updated, err := repo.GetAsset(context.Background(), added[0].ID)
	require.NoError(t, err)
	assert.True(t, updated.HasEmbedding())
}

func TestBatchProcessor_ContextCancellation(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	added := seedAssets(t, repo, 1)

	embedder := &mockEmbedder{
		embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			cancel() // Cancel during embedding
			return nil, errors.New("error")
		},
	}
	processor := NewBatchProcessor(repo, nil, embedder, 3, 10*time.Millisecond)

	_, err := processor.Process(ctx, added)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBatchProcessor_VectorNormalization(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	added := seedAssets(t, repo, 1)

	embedder := &mockEmbedder{
		embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			// Vector (3, 4) has magnitude 5
			return [][]float32{{3.0, 4.0}}, nil
		},
	}
	processor := NewBatchProcessor(repo, nil, embedder, 3, 10*time.Millisecond)

	_, err := processor.Process(ctx, added)
	require.NoError(t, err)

	updated, err := repo.GetAsset(ctx, added[0].ID)
	require.NoError(t, err)

	vec := updated.Embedding
	require.Len(t, vec, 2)
	assert.InDelta(t, 0.6, vec[0], 0.001)
	assert.InDelta(t, 0.8, vec[1], 0.001)
	assert.InDelta(t, 1.0, magnitudeSquared(vec), 0.001)
}

func TestBatchProcessor_ResetsDimensionsOnce(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	old, err := repo.AddAssets(ctx,
		&core.Asset{OriginalName: "a.jpg", MimeType: "image/jpeg", Embedding: []float32{1, 0, 0}},
		&core.Asset{OriginalName: "b.jpg", MimeType: "image/jpeg", Embedding: []float32{0, 1, 0}},
	)
	require.NoError(t, err)

	embedder := &mockEmbedder{
		embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			result := make([][]float32, len(texts))
			for i := range texts {
				result[i] = []float32{0, 0, 0, 2}
			}
			return result, nil
		},
	}
	writer := &resettingVectorWriter{}
	processor := NewBatchProcessor(repo, writer, embedder, 1, time.Millisecond)

	stats, err := processor.Process(ctx, old[:1])
	require.NoError(t, err)
	assert.True(t, stats.Cleared)
	assert.Equal(t, 4, stats.Dimensions)
	assert.Equal(t, []int{4}, writer.resets)

	untouched, err := repo.GetAsset(ctx, old[1].ID)
	require.NoError(t, err)
	assert.False(t, untouched.HasEmbedding(), "embeddings of the old dimensionality are discarded")

	stats, err = processor.Process(ctx, []*core.Asset{untouched})
	require.NoError(t, err)
	assert.False(t, stats.Cleared)
	assert.Equal(t, []int{4}, writer.resets, "dimensions are reset only for the first batch")

	for _, id := range []uuid.UUID{old[0].ID, old[1].ID} {
		got, err := repo.GetAsset(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []float32{0, 0, 0, 1}, got.Embedding)
	}
}

type resettingVectorWriter struct {
	mockVectorWriter
	resets []int
}

func (w *resettingVectorWriter) ResetDimensions(ctx context.Context, dims int) (bool, error) {
	w.resets = append(w.resets, dims)
	return false, nil
}
