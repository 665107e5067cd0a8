package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/assetfind/ai/mock"
	"github.com/poiesic/assetfind/core"
	"github.com/poiesic/assetfind/storage"
	"github.com/poiesic/assetfind/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupRepo(t *testing.T) *badger.AssetRepository {
	t.Helper()
	repo, backend, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})
	return repo
}

// fixedEmbedder returns vec for every query.
func fixedEmbedder(vec []float32) *mock.MockEmbedder {
	m := mock.NewMockEmbedder()
	m.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return vec, nil
	}
	return m
}

// failingRepository fails candidate and recent retrieval.
type failingRepository struct {
	storage.AssetRepository
	err error
}

func (f *failingRepository) FindCandidates(context.Context, storage.CandidateQuery) ([]*core.Asset, error) {
	return nil, f.err
}

func (f *failingRepository) RecentAssets(context.Context, core.Filters, int) ([]*core.Asset, error) {
	return nil, f.err
}

// failingIndex fails every vector query.
type failingIndex struct {
	err   error
	calls int
}

func (f *failingIndex) FindNearest(context.Context, storage.VectorQuery) ([]storage.Neighbor, error) {
	f.calls++
	return nil, f.err
}

// recordingMonitor captures monitor callbacks.
type recordingMonitor struct {
	noopMonitor
	tokens        []string
	candidates    int
	scored        []ScoredAsset
	fallback      bool
	failedStages  []string
	finished      []*core.Asset
	finishedCalls int
}

func (m *recordingMonitor) AfterTokenize(tokens []string)     { m.tokens = tokens }
func (m *recordingMonitor) AfterCandidateRetrieval(count int) { m.candidates = count }
func (m *recordingMonitor) AfterScoring(ranked []ScoredAsset) { m.scored = ranked }
func (m *recordingMonitor) FallbackTriggered(string)          { m.fallback = true }
func (m *recordingMonitor) FallbackFailed(stage string, _ error) {
	m.failedStages = append(m.failedStages, stage)
}
func (m *recordingMonitor) Finish(results []*core.Asset) {
	m.finished = results
	m.finishedCalls++
}

func names(assets []*core.Asset) []string {
	out := make([]string, len(assets))
	for i, a := range assets {
		out[i] = a.OriginalName
	}
	return out
}

func TestNewSearcher(t *testing.T) {
	repo := setupRepo(t)
	embedder := mock.NewMockEmbedder()

	t.Run("valid configuration", func(t *testing.T) {
		searcher, err := NewSearcher(repo, repo, embedder)
		require.NoError(t, err)
		assert.NotNil(t, searcher)
		assert.Equal(t, DefaultMaxResults, searcher.maxResults)
	})

	t.Run("with options", func(t *testing.T) {
		searcher, err := NewSearcher(repo, repo, embedder,
			WithLogger(slog.Default()),
			WithEmbedTimeout(time.Second),
			WithVectorTimeout(2*time.Second),
			WithMaxResults(10),
		)
		require.NoError(t, err)
		assert.Equal(t, time.Second, searcher.embedTimeout)
		assert.Equal(t, 2*time.Second, searcher.vectorTimeout)
		assert.Equal(t, 10, searcher.maxResults)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		searcher, err := NewSearcher(repo, repo, embedder, WithLogger(nil))
		require.NoError(t, err)
		assert.NotNil(t, searcher.logger)
	})

	t.Run("invalid options", func(t *testing.T) {
		_, err := NewSearcher(repo, repo, embedder, WithMaxResults(0))
		assert.ErrorIs(t, err, ErrInvalidOption)
		_, err = NewSearcher(repo, repo, embedder, WithEmbedTimeout(-time.Second))
		assert.ErrorIs(t, err, ErrInvalidOption)
		_, err = NewSearcher(repo, repo, embedder, WithVectorTimeout(-time.Second))
		assert.ErrorIs(t, err, ErrInvalidOption)
	})

	t.Run("nil dependencies", func(t *testing.T) {
		_, err := NewSearcher(nil, repo, embedder)
		assert.Equal(t, ErrAssetRepositoryRequired, err)
		_, err = NewSearcher(repo, nil, embedder)
		assert.Equal(t, ErrVectorIndexRequired, err)
		_, err = NewSearcher(repo, repo, nil)
		assert.Equal(t, ErrEmbedderRequired, err)
	})
}

func TestSearch_EmptyQueryReturnsRecent(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < RecentLimit+10; i++ {
		mime := "image/jpeg"
		if i%2 == 1 {
			mime = "video/mp4"
		}
		_, err := repo.AddAssets(ctx, &core.Asset{
			OriginalName: fmt.Sprintf("asset-%02d", i),
			MimeType:     mime,
			CreatedAt:    now.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	embedder := mock.NewMockEmbedder()
	searcher, err := NewSearcher(repo, repo, embedder)
	require.NoError(t, err)

	for _, query := range []string{"", "   ", "a to"} {
		t.Run(fmt.Sprintf("query %q", query), func(t *testing.T) {
			monitor := &recordingMonitor{}
			results, err := searcher.SearchWithMonitor(ctx, query, core.Filters{}, monitor)
			require.NoError(t, err)
			require.Len(t, results, RecentLimit)
			for i := 1; i < len(results); i++ {
				assert.True(t, results[i-1].CreatedAt.After(results[i].CreatedAt))
			}
			assert.Equal(t, "asset-59", results[0].OriginalName)
			assert.Nil(t, monitor.scored, "scoring must be skipped")
			assert.False(t, monitor.fallback)
		})
	}

	t.Run("filters apply", func(t *testing.T) {
		results, err := searcher.Search(ctx, "", core.Filters{Type: core.MediaTypeVideo})
		require.NoError(t, err)
		require.Len(t, results, 30)
		for _, a := range results {
			assert.Equal(t, core.MediaTypeVideo, a.MediaType())
		}
	})

	assert.Zero(t, embedder.CallCount())
}

func TestSearch_Ranking(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	_, err := repo.AddAssets(ctx,
		&core.Asset{OriginalName: "IMG_0001.jpg", MimeType: "image/jpeg",
			AIData: core.AIData{Tags: []string{"car"}}},
		&core.Asset{OriginalName: "red-car-beach.jpg", MimeType: "image/jpeg"},
		&core.Asset{OriginalName: "IMG_0002.jpg", MimeType: "image/jpeg",
			AIData: core.AIData{Description: "a beach with a red car"}},
		&core.Asset{OriginalName: "mountain.jpg", MimeType: "image/jpeg",
			AIData: core.AIData{Tags: []string{"snow"}}},
		&core.Asset{OriginalName: "car-ad.mp4", MimeType: "video/mp4"},
	)
	require.NoError(t, err)

	embedder := fixedEmbedder([]float32{1, 0, 0})
	searcher, err := NewSearcher(repo, repo, embedder)
	require.NoError(t, err)

	t.Run("best matches first", func(t *testing.T) {
		monitor := &recordingMonitor{}
		results, err := searcher.SearchWithMonitor(ctx, "Red Car Beach", core.Filters{}, monitor)
		require.NoError(t, err)

		assert.Equal(t, []string{"red-car-beach.jpg", "IMG_0002.jpg", "car-ad.mp4", "IMG_0001.jpg"}, names(results))
		assert.NotContains(t, names(results), "mountain.jpg")
		assert.Equal(t, []string{"red", "car", "beach"}, monitor.tokens)
		assert.Equal(t, 4, monitor.candidates)
		require.Len(t, monitor.scored, 4)
		assert.Equal(t, 1, monitor.finishedCalls)
		assert.Equal(t, results, monitor.finished)
	})

	t.Run("type filter", func(t *testing.T) {
		results, err := searcher.Search(ctx, "car", core.Filters{Type: core.MediaTypeVideo})
		require.NoError(t, err)
		assert.Equal(t, []string{"car-ad.mp4"}, names(results))
	})

	t.Run("no match is an empty list", func(t *testing.T) {
		results, err := searcher.Search(ctx, "zebra", core.Filters{})
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestSearch_MaxResults(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	for i := 0; i < 8; i++ {
		_, err := repo.AddAssets(ctx, &core.Asset{OriginalName: fmt.Sprintf("cat-%d.jpg", i), MimeType: "image/jpeg"})
		require.NoError(t, err)
	}

	searcher, err := NewSearcher(repo, repo, mock.NewMockEmbedder(), WithMaxResults(3))
	require.NoError(t, err)

	results, err := searcher.Search(ctx, "cat", core.Filters{})
	require.NoError(t, err)
	assert.Len(t, results, 3)

	t.Run("capped results do not trigger fallback", func(t *testing.T) {
		embedder := fixedEmbedder([]float32{1, 0})
		searcher, err := NewSearcher(repo, repo, embedder, WithMaxResults(3))
		require.NoError(t, err)

		monitor := &recordingMonitor{}
		results, err := searcher.SearchWithMonitor(ctx, "cat", core.Filters{}, monitor)
		require.NoError(t, err)
		assert.Len(t, results, 3)
		assert.False(t, monitor.fallback)
		assert.Equal(t, 0, embedder.CallCount(), "eight scored results are enough")
	})

	t.Run("fallback tail is capped", func(t *testing.T) {
		repo := setupRepo(t)
		_, err := repo.AddAssets(ctx, &core.Asset{OriginalName: "cat.jpg", MimeType: "image/jpeg"})
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			_, err := repo.AddAssets(ctx, &core.Asset{
				OriginalName: fmt.Sprintf("dog-%d.jpg", i),
				MimeType:     "image/jpeg",
				Embedding:    []float32{1, 0},
			})
			require.NoError(t, err)
		}

		searcher, err := NewSearcher(repo, repo, fixedEmbedder([]float32{1, 0}), WithMaxResults(3))
		require.NoError(t, err)

		results, err := searcher.Search(ctx, "cat", core.Filters{})
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "cat.jpg", results[0].OriginalName)
	})
}

func TestSearch_FallbackBoundary(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, n int) *badger.AssetRepository {
		repo := setupRepo(t)
		for i := 0; i < n; i++ {
			_, err := repo.AddAssets(ctx, &core.Asset{OriginalName: fmt.Sprintf("cat-%d.jpg", i), MimeType: "image/jpeg"})
			require.NoError(t, err)
		}
		return repo
	}

	t.Run("four results trigger fallback", func(t *testing.T) {
		repo := seed(t, 4)
		embedder := fixedEmbedder([]float32{1, 0})
		searcher, err := NewSearcher(repo, repo, embedder)
		require.NoError(t, err)

		monitor := &recordingMonitor{}
		results, err := searcher.SearchWithMonitor(ctx, "cat", core.Filters{}, monitor)
		require.NoError(t, err)
		assert.Len(t, results, 4)
		assert.True(t, monitor.fallback)
		assert.Equal(t, 1, embedder.CallCount())
	})

	t.Run("five results do not trigger fallback", func(t *testing.T) {
		repo := seed(t, 5)
		embedder := fixedEmbedder([]float32{1, 0})
		searcher, err := NewSearcher(repo, repo, embedder)
		require.NoError(t, err)

		monitor := &recordingMonitor{}
		results, err := searcher.SearchWithMonitor(ctx, "cat", core.Filters{}, monitor)
		require.NoError(t, err)
		assert.Len(t, results, 5)
		assert.False(t, monitor.fallback)
		assert.Zero(t, embedder.CallCount())
	})

	t.Run("two character query does not trigger fallback", func(t *testing.T) {
		repo := setupRepo(t)
		embedder := fixedEmbedder([]float32{1, 0})
		searcher, err := NewSearcher(repo, repo, embedder)
		require.NoError(t, err)

		results, err := searcher.Search(ctx, "ab", core.Filters{})
		require.NoError(t, err)
		assert.Empty(t, results)
		assert.Zero(t, embedder.CallCount())
	})
}

func TestShouldFallback(t *testing.T) {
	tests := []struct {
		ranked int
		query  string
		want   bool
	}{
		{0, "cat", true},
		{4, "cat", true},
		{5, "cat", false},
		{0, "ab", false},
		{0, "  ab  ", false},
		{0, "éèà", true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%q", tt.ranked, tt.query), func(t *testing.T) {
			assert.Equal(t, tt.want, shouldFallback(tt.ranked, tt.query))
		})
	}
}

func TestSearch_FallbackAppendsNeighbours(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	lexical := &core.Asset{OriginalName: "sunset.jpg", MimeType: "image/jpeg",
		AIData: core.AIData{Colors: []string{"orange"}}, Embedding: []float32{1, 0, 0}}
	closest := &core.Asset{OriginalName: "IMG_1.jpg", MimeType: "image/jpeg",
		AIData: core.AIData{Colors: []string{"orange"}}, Embedding: []float32{0.99, 0.01, 0}}
	video := &core.Asset{OriginalName: "clip.mp4", MimeType: "video/mp4",
		AIData: core.AIData{Colors: []string{"dark orange"}}, Embedding: []float32{0.9, 0.1, 0}}
	wrongColor := &core.Asset{OriginalName: "IMG_2.jpg", MimeType: "image/jpeg",
		AIData: core.AIData{Colors: []string{"blue"}}, Embedding: []float32{1, 0, 0}}
	far := &core.Asset{OriginalName: "IMG_3.jpg", MimeType: "image/jpeg",
		AIData: core.AIData{Colors: []string{"orange"}}, Embedding: []float32{0, 1, 0}}
	noVector := &core.Asset{OriginalName: "IMG_4.jpg", MimeType: "image/jpeg",
		AIData: core.AIData{Colors: []string{"orange"}}}

	_, err := repo.AddAssets(ctx, lexical, closest, video, wrongColor, far, noVector)
	require.NoError(t, err)

	embedder := fixedEmbedder([]float32{1, 0, 0})
	searcher, err := NewSearcher(repo, repo, embedder)
	require.NoError(t, err)

	results, err := searcher.Search(ctx, "sunset", core.Filters{Type: core.MediaTypeImage, Color: "orange"})
	require.NoError(t, err)

	// Lexical result first, then neighbours by distance. The fallback
	// applies the color filter but not the type filter.
	assert.Equal(t, []string{"sunset.jpg", "IMG_1.jpg", "clip.mp4"}, names(results))
	assert.Equal(t, 1, embedder.CallCount())
}

func TestSearch_FallbackFailureIsolation(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	_, err := repo.AddAssets(ctx,
		&core.Asset{OriginalName: "cat.jpg", MimeType: "image/jpeg", Embedding: []float32{1, 0}},
		&core.Asset{OriginalName: "IMG_9.jpg", MimeType: "image/jpeg", Embedding: []float32{1, 0}},
	)
	require.NoError(t, err)

	t.Run("embedding error", func(t *testing.T) {
		embedder := mock.NewMockEmbedder()
		embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
			return nil, errors.New("embedding service unavailable")
		}
		searcher, err := NewSearcher(repo, repo, embedder)
		require.NoError(t, err)

		monitor := &recordingMonitor{}
		results, err := searcher.SearchWithMonitor(ctx, "cat", core.Filters{}, monitor)
		require.NoError(t, err)
		assert.Equal(t, []string{"cat.jpg"}, names(results))
		assert.Equal(t, []string{"embed"}, monitor.failedStages)
	})

	t.Run("embedding timeout", func(t *testing.T) {
		embedder := mock.NewMockEmbedder()
		embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		searcher, err := NewSearcher(repo, repo, embedder, WithEmbedTimeout(10*time.Millisecond))
		require.NoError(t, err)

		monitor := &recordingMonitor{}
		results, err := searcher.SearchWithMonitor(ctx, "cat", core.Filters{}, monitor)
		require.NoError(t, err)
		assert.Equal(t, []string{"cat.jpg"}, names(results))
		assert.Equal(t, []string{"embed"}, monitor.failedStages)
	})

	t.Run("empty embedding", func(t *testing.T) {
		searcher, err := NewSearcher(repo, repo, fixedEmbedder(nil))
		require.NoError(t, err)

		monitor := &recordingMonitor{}
		results, err := searcher.SearchWithMonitor(ctx, "cat", core.Filters{}, monitor)
		require.NoError(t, err)
		assert.Equal(t, []string{"cat.jpg"}, names(results))
		assert.Equal(t, []string{"embed"}, monitor.failedStages)
	})

	t.Run("vector index error", func(t *testing.T) {
		index := &failingIndex{err: errors.New("index offline")}
		searcher, err := NewSearcher(repo, index, fixedEmbedder([]float32{1, 0}))
		require.NoError(t, err)

		monitor := &recordingMonitor{}
		results, err := searcher.SearchWithMonitor(ctx, "cat", core.Filters{}, monitor)
		require.NoError(t, err)
		assert.Equal(t, []string{"cat.jpg"}, names(results))
		assert.Equal(t, []string{"vector"}, monitor.failedStages)
		assert.Equal(t, 1, index.calls)
	})
}

func TestSearch_CandidateFailureIsFatal(t *testing.T) {
	repo := setupRepo(t)
	storeErr := errors.New("store unavailable")
	failing := &failingRepository{AssetRepository: repo, err: storeErr}

	searcher, err := NewSearcher(failing, repo, mock.NewMockEmbedder())
	require.NoError(t, err)

	_, err = searcher.Search(context.Background(), "cat", core.Filters{})
	assert.ErrorIs(t, err, storeErr)

	_, err = searcher.Search(context.Background(), "", core.Filters{})
	assert.ErrorIs(t, err, storeErr)
}

func TestRelated(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	source := &core.Asset{OriginalName: "source.jpg", MimeType: "image/jpeg", Embedding: []float32{1, 0, 0}}
	twin := &core.Asset{OriginalName: "twin.jpg", MimeType: "image/jpeg", Embedding: []float32{1, 0, 0}}
	near := &core.Asset{OriginalName: "near.jpg", MimeType: "image/jpeg", Embedding: []float32{0.9, 0.2, 0}}
	far := &core.Asset{OriginalName: "far.jpg", MimeType: "image/jpeg", Embedding: []float32{0, 0, 1}}
	pending := &core.Asset{OriginalName: "pending.jpg", MimeType: "image/jpeg"}

	_, err := repo.AddAssets(ctx, source, twin, near, far, pending)
	require.NoError(t, err)

	searcher, err := NewSearcher(repo, repo, mock.NewMockEmbedder())
	require.NoError(t, err)

	t.Run("nearest neighbours without self", func(t *testing.T) {
		results, err := searcher.Related(ctx, source.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"twin.jpg", "near.jpg"}, names(results))
		for _, a := range results {
			assert.NotEqual(t, source.ID, a.ID)
		}
	})

	t.Run("asset without embedding", func(t *testing.T) {
		results, err := searcher.Related(ctx, pending.ID)
		require.NoError(t, err)
		assert.NotNil(t, results)
		assert.Empty(t, results)
	})

	t.Run("unknown asset", func(t *testing.T) {
		_, err := searcher.Related(ctx, uuid.New())
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("vector errors propagate", func(t *testing.T) {
		indexErr := errors.New("index offline")
		s, err := NewSearcher(repo, &failingIndex{err: indexErr}, mock.NewMockEmbedder())
		require.NoError(t, err)

		_, err = s.Related(ctx, source.ID)
		assert.ErrorIs(t, err, indexErr)
	})
}

func TestSearch_Tracing(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	_, err := repo.AddAssets(ctx, &core.Asset{OriginalName: "cat.jpg", MimeType: "image/jpeg"})
	require.NoError(t, err)

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(ctx)

	searcher, err := NewSearcher(repo, repo, fixedEmbedder([]float32{1, 0}), WithTracerProvider(tp))
	require.NoError(t, err)

	_, err = searcher.Search(ctx, "cat", core.Filters{})
	require.NoError(t, err)

	var spans []string
	for _, s := range recorder.Ended() {
		spans = append(spans, s.Name())
	}
	assert.ElementsMatch(t, []string{"search.tokenize", "search.candidates", "search.score", "search.fallback", "search"}, spans)
}

func TestLogMonitor(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	_, err := repo.AddAssets(ctx, &core.Asset{OriginalName: "cat.jpg", MimeType: "image/jpeg"})
	require.NoError(t, err)

	searcher, err := NewSearcher(repo, repo, fixedEmbedder([]float32{1, 0}))
	require.NoError(t, err)

	results, err := searcher.SearchWithMonitor(ctx, "cat", core.Filters{}, NewLogMonitor(nil))
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
