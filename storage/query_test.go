package storage

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCandidateQuery(t *testing.T) {
	q := CandidateQuery{Tokens: []string{"car", "beach"}, Limit: 200}
	assert.NoError(t, q.Validate())

	assert.True(t, q.MatchText("Red-Car.jpg"))
	assert.True(t, q.MatchText("photo.png", "sunny BEACH day"))
	assert.False(t, q.MatchText("mountain.jpg", "snow"))

	assert.True(t, errors.Is(CandidateQuery{Limit: 5}.Validate(), ErrInvalidQuery))
	assert.True(t, errors.Is(CandidateQuery{Tokens: []string{"x"}}.Validate(), ErrInvalidQuery))
}

func TestVectorQuery_Validate(t *testing.T) {
	valid := VectorQuery{Vector: []float32{1, 0}, MaxDistance: 0.4, Limit: 10}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name  string
		query VectorQuery
	}{
		{"empty vector", VectorQuery{MaxDistance: 0.4, Limit: 10}},
		{"zero limit", VectorQuery{Vector: []float32{1}, MaxDistance: 0.4}},
		{"zero distance", VectorQuery{Vector: []float32{1}, Limit: 10}},
		{"distance above 2", VectorQuery{Vector: []float32{1}, MaxDistance: 2.5, Limit: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(tt.query.Validate(), ErrInvalidQuery))
		})
	}
}

func TestVectorQuery_Excludes(t *testing.T) {
	id := uuid.New()
	q := VectorQuery{ExcludeIDs: []uuid.UUID{id}}
	assert.True(t, q.Excludes(id))
	assert.False(t, q.Excludes(uuid.New()))
}
