package search

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/assetfind/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name   string
		asset  *core.Asset
		phrase string
		tokens []string
		want   int
	}{
		{
			name:   "phrase in filename with full coverage",
			asset:  &core.Asset{OriginalName: "Red Car.jpg"},
			phrase: "red car",
			tokens: []string{"red", "car"},
			want:   100 + 20 + 20 + 200,
		},
		{
			name:   "phrase equals tag",
			asset:  &core.Asset{OriginalName: "x.jpg", AIData: core.AIData{Tags: []string{"Sports Car"}}},
			phrase: "sports car",
			tokens: []string{"sports", "sport", "car"},
			want:   80 + 15*3 + 200,
		},
		{
			name:   "phrase in description",
			asset:  &core.Asset{OriginalName: "x.jpg", AIData: core.AIData{Description: "A red car parked"}},
			phrase: "red car",
			tokens: []string{"red", "car"},
			want:   50 + 5 + 5 + 200,
		},
		{
			name:   "description and transcript count once per token",
			asset:  &core.Asset{OriginalName: "x.mp4", AIData: core.AIData{Description: "cat", Transcript: "cat"}},
			phrase: "zebra cat",
			tokens: []string{"zebra", "cat"},
			want:   5,
		},
		{
			name:   "all tokens in description only",
			asset:  &core.Asset{OriginalName: "IMG_1.jpg", AIData: core.AIData{Description: "beach with a red car"}},
			phrase: "red car beach",
			tokens: []string{"red", "car", "beach"},
			want:   3*5 + 200,
		},
		{
			name:   "one of three tokens in filename",
			asset:  &core.Asset{OriginalName: "car.jpg"},
			phrase: "red car beach",
			tokens: []string{"red", "car", "beach"},
			want:   20,
		},
		{
			name:   "partial coverage above seventy percent",
			asset:  &core.Asset{OriginalName: "one-two-three.jpg"},
			phrase: "one two three four",
			tokens: []string{"one", "two", "three", "four"},
			want:   3*20 + 50,
		},
		{
			name:   "no overlap",
			asset:  &core.Asset{OriginalName: "mountain.jpg", AIData: core.AIData{Tags: []string{"snow"}}},
			phrase: "red car",
			tokens: []string{"red", "car"},
			want:   0,
		},
		{
			name:   "empty phrase and tokens",
			asset:  &core.Asset{OriginalName: "anything.jpg"},
			phrase: "",
			tokens: nil,
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.asset, tt.phrase, tt.tokens))
		})
	}
}

func TestRank(t *testing.T) {
	t.Run("exact filename match ranks above tag-only match", func(t *testing.T) {
		byName := &core.Asset{ID: uuid.New(), OriginalName: "red-car-beach.jpg"}
		byTag := &core.Asset{ID: uuid.New(), OriginalName: "IMG_0001.jpg", AIData: core.AIData{Tags: []string{"car"}}}

		query := "red car beach"
		ranked := Rank([]*core.Asset{byTag, byName}, query, Tokenize(query))
		require.Len(t, ranked, 2)
		assert.Equal(t, byName, ranked[0].Asset)
		assert.Equal(t, byTag, ranked[1].Asset)
		assert.Greater(t, ranked[0].Score, ranked[1].Score)
	})

	t.Run("full coverage beats a single filename token", func(t *testing.T) {
		covered := &core.Asset{ID: uuid.New(), OriginalName: "IMG_1.jpg",
			AIData: core.AIData{Description: "beach with a red car"}}
		partial := &core.Asset{ID: uuid.New(), OriginalName: "car.jpg"}

		ranked := Rank([]*core.Asset{partial, covered}, "red car beach", []string{"red", "car", "beach"})
		require.Len(t, ranked, 2)
		assert.Equal(t, covered, ranked[0].Asset)
		assert.Equal(t, 215, ranked[0].Score)
		assert.Equal(t, 20, ranked[1].Score)
	})

	t.Run("zero score candidates are dropped", func(t *testing.T) {
		hit := &core.Asset{ID: uuid.New(), OriginalName: "car.jpg"}
		miss := &core.Asset{ID: uuid.New(), OriginalName: "mountain.jpg"}

		ranked := Rank([]*core.Asset{miss, nil, hit}, "car", []string{"car"})
		require.Len(t, ranked, 1)
		assert.Equal(t, hit, ranked[0].Asset)
	})

	t.Run("ties order newest first then by id", func(t *testing.T) {
		now := time.Now().UTC()
		older := &core.Asset{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), OriginalName: "car.jpg", CreatedAt: now.Add(-time.Hour)}
		newer := &core.Asset{ID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), OriginalName: "car.jpg", CreatedAt: now}
		sameA := &core.Asset{ID: uuid.MustParse("00000000-0000-0000-0000-00000000000a"), OriginalName: "car.jpg", CreatedAt: now.Add(-2 * time.Hour)}
		sameB := &core.Asset{ID: uuid.MustParse("00000000-0000-0000-0000-00000000000b"), OriginalName: "car.jpg", CreatedAt: now.Add(-2 * time.Hour)}

		ranked := Rank([]*core.Asset{sameB, older, sameA, newer}, "car", []string{"car"})
		require.Len(t, ranked, 4)
		assert.Equal(t, newer, ranked[0].Asset)
		assert.Equal(t, older, ranked[1].Asset)
		assert.Equal(t, sameA, ranked[2].Asset)
		assert.Equal(t, sameB, ranked[3].Asset)
	})

	t.Run("empty candidates", func(t *testing.T) {
		assert.Empty(t, Rank(nil, "car", []string{"car"}))
	})
}
