package openai

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/poiesic/assetfind/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeModel returns canned responses in order.
type fakeModel struct {
	responses []string
	err       error
	calls     int
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	resp := f.responses[min(f.calls, len(f.responses)-1)]
	f.calls++
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: resp}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

func newTestTagger(model llms.Model) *Tagger {
	return &Tagger{client: model, maxTags: 3, logger: slog.Default()}
}

func TestTaggerAnnotate(t *testing.T) {
	ctx := context.Background()

	t.Run("parses and cleans response", func(t *testing.T) {
		model := &fakeModel{responses: []string{"```json\n" + `{"tags":["Car","beach","car","  Sunset  Sky ","extra"],` +
			`"description":"  A car. ","colors":["Grey","red","chartreuse","red"]}` + "\n```"}}
		ann, err := newTestTagger(model).Annotate(ctx, "car.jpg", "a car")
		require.NoError(t, err)

		assert.Equal(t, []string{"car", "beach", "sunset sky"}, ann.Tags)
		assert.Equal(t, "A car.", ann.Description)
		assert.Equal(t, []string{"gray", "red"}, ann.Colors)
	})

	t.Run("retries malformed json", func(t *testing.T) {
		model := &fakeModel{responses: []string{
			`{"tags": [`,
			`{"tags":["dog"],"description":"","colors":[]}`,
		}}
		ann, err := newTestTagger(model).Annotate(ctx, "dog.png", "")
		require.NoError(t, err)
		assert.Equal(t, []string{"dog"}, ann.Tags)
		assert.Equal(t, 2, model.calls)
	})

	t.Run("gives up after three attempts", func(t *testing.T) {
		model := &fakeModel{responses: []string{"not json"}}
		_, err := newTestTagger(model).Annotate(ctx, "x.png", "")
		require.Error(t, err)
		assert.Equal(t, 3, model.calls)
	})

	t.Run("model error propagates", func(t *testing.T) {
		boom := errors.New("unavailable")
		_, err := newTestTagger(&fakeModel{err: boom}).Annotate(ctx, "x.png", "")
		assert.ErrorIs(t, err, boom)
	})
}

func TestBuildSystemPrompt(t *testing.T) {
	prompt := buildSystemPrompt(7)
	assert.Contains(t, prompt, "at most 7 tags")
	for _, c := range ai.Colors {
		assert.Contains(t, prompt, c)
	}
	assert.Equal(t, "filename: a.jpg\ntext: hello", buildUserPrompt("a.jpg", "hello"))
}

func TestTextUtils(t *testing.T) {
	assert.Equal(t, "a b c", scrubString("  a\n\tb   c "))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence(`{"a":1}`))
}

func TestDecodeAnnotation(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     annotation
	}{
		{
			name:     "well formed",
			response: `{"tags":["car"],"description":"A car","colors":["red"]}`,
			want:     annotation{Tags: []string{"car"}, Description: "A car", Colors: []string{"red"}},
		},
		{
			name:     "missing opening quote",
			response: `{"tags":["a"], description":"x"}`,
			want:     annotation{Tags: []string{"a"}, Description: "x"},
		},
		{
			name:     "bare keys and trailing commas",
			response: "```json\n{tags: [\"dog\", \"park\",], Colors: [\"green\"],}\n```",
			want:     annotation{Tags: []string{"dog", "park"}, Colors: []string{"green"}},
		},
		{
			name:     "synonyms and comma separated lists",
			response: `{"keywords":"beach, sunset ,","caption":["Sun","over sea"],"colours":"Orange, blue"}`,
			want:     annotation{Tags: []string{"beach", "sunset"}, Description: "Sun over sea", Colors: []string{"Orange", "blue"}},
		},
		{
			name:     "tags and keywords merge in key order",
			response: `{"tags":["b"],"keywords":["a"]}`,
			want:     annotation{Tags: []string{"a", "b"}},
		},
		{
			name:     "non string list entries dropped",
			response: `{"tags":["car",3,null,"road"],"extra":{"x":1}}`,
			want:     annotation{Tags: []string{"car", "road"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeAnnotation(tt.response)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("unrepairable", func(t *testing.T) {
		for _, response := range []string{`{"tags": [`, "not json", `["car"]`} {
			_, err := decodeAnnotation(response)
			assert.Error(t, err, response)
		}
	})
}

func TestNewLimiter(t *testing.T) {
	ctx := context.Background()
	unlimited := newLimiter(0)
	for i := 0; i < 100; i++ {
		require.NoError(t, unlimited.Wait(ctx))
	}

	limited := newLimiter(2.5)
	assert.Equal(t, 3, limited.Burst())
}
