package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rcliao/turn-memory/internal/model"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Vector
		expected float64
	}{
		{"identical", Vector{1, 0, 0}, Vector{1, 0, 0}, 1.0},
		{"orthogonal", Vector{1, 0, 0}, Vector{0, 1, 0}, 0.0},
		{"opposite", Vector{1, 0, 0}, Vector{-1, 0, 0}, -1.0},
		{"similar", Vector{1, 1, 0}, Vector{1, 0, 0}, 0.7071},
		{"empty", Vector{}, Vector{}, 0.0},
		{"different lengths", Vector{1, 0}, Vector{1, 0, 0}, 0.0},
		{"zero vector", Vector{0, 0, 0}, Vector{1, 0, 0}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.expected) > 0.001 {
				t.Errorf("CosineSimilarity(%v, %v) = %f, want %f", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func TestNew(t *testing.T) {
	e, err := New(Settings{})
	if err != nil || e != nil {
		t.Fatalf("disabled provider: got %v, %v", e, err)
	}
	if _, err := New(Settings{Provider: "carrier-pigeon"}); err == nil {
		t.Error("expected error for unknown provider")
	}
	e, err = New(Settings{Provider: "ollama", URL: "http://example.invalid"})
	if err != nil {
		t.Fatal(err)
	}
	if e.Dims() != 768 {
		t.Errorf("ollama dims = %d, want 768", e.Dims())
	}
}

func TestOllamaEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "all-minilm" || req.Prompt != "속초 여행" {
			t.Errorf("unexpected request %+v", req)
		}
		json.NewEncoder(w).Encode(ollamaResponse{Embedding: []float32{0.1, 0.2}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "all-minilm")
	v, err := e.Embed(context.Background(), "속초 여행")
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 2 || e.Dims() != 384 {
		t.Errorf("got %v (dims %d)", v, e.Dims())
	}
}

func TestOpenAIEmbedderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	if _, err := NewOpenAIEmbedder(srv.URL, "wrong", "", 0).Embed(context.Background(), "x"); err == nil {
		t.Error("expected status error")
	}
	_, err := NewOpenAIEmbedder(srv.URL, "sk-test", "", 0).Embed(context.Background(), "x")
	if !errors.Is(err, ErrEmptyEmbedding) {
		t.Errorf("err = %v, want ErrEmptyEmbedding", err)
	}
}

type fakeEmbedder struct {
	vectors map[string]Vector
	calls   int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) (Vector, error) {
	f.calls++
	v, ok := f.vectors[text]
	if !ok {
		return nil, errors.New("no vector for " + text)
	}
	return v, nil
}

func (f *fakeEmbedder) Dims() int { return 2 }

func TestComparer(t *testing.T) {
	f := &fakeEmbedder{vectors: map[string]Vector{
		"바다 보러 갈래": {1, 0},
		"여행 속초":    {1, 1},
		"회의 일정":    {-1, 0},
	}}
	c, err := NewComparer(f, 0)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	current := model.Record{RawInput: "바다 보러 갈래"}

	sim, err := c.Compare(ctx, current, model.Record{MainTopic: "여행", Keywords: []string{"속초"}})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(sim-0.7071) > 0.001 {
		t.Errorf("similarity = %f, want ~0.7071", sim)
	}

	sim, err = c.Compare(ctx, current, model.Record{RawInput: "회의 일정"})
	if err != nil || sim != 0 {
		t.Errorf("opposite vectors: got %f, %v; want 0", sim, err)
	}

	// current was embedded once and then served from cache
	if f.calls != 3 {
		t.Errorf("embedder calls = %d, want 3", f.calls)
	}

	if _, err := c.Compare(ctx, current, model.Record{MainTopic: model.UnknownTopic}); err == nil {
		t.Error("expected error for a record with no text")
	}
}
