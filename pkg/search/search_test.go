package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDedupKeepsFirstSeenOrder(t *testing.T) {
	in := []Product{
		{ID: "3", Name: "soap"},
		{ID: "1", Name: "bleach"},
		{ID: "3", Name: "soap duplicate"},
		{ID: "2", Name: "sponge"},
		{ID: "1", Name: "bleach duplicate"},
	}
	got := Dedup(in)

	want := []string{"3", "1", "2"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("got[%d].ID = %q, want %q", i, got[i].ID, id)
		}
	}
	if got[0].Name != "soap" {
		t.Errorf("first occurrence not kept: %q", got[0].Name)
	}
	if len(in) != 5 {
		t.Error("input modified")
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct{ in, want int }{
		{-3, 1}, {0, 1}, {1, 1}, {20, 20}, {100, 100}, {101, 100},
	}
	for _, tt := range tests {
		if got := ClampLimit(tt.in); got != tt.want {
			t.Errorf("ClampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestProductJSONUsesCatalogKeys(t *testing.T) {
	data, err := json.Marshal(Product{ID: "7", Name: "Soap", UnitsPerPackage: "12", BrandName: "Acme"})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"id", "name", "units_per_package", "brand_name"} {
		if _, ok := m[k]; !ok {
			t.Errorf("missing key %q in %s", k, data)
		}
	}
	if _, ok := m["score"]; ok {
		t.Errorf("zero score should be omitted: %s", data)
	}
}

func TestOpenAIEmbedder(t *testing.T) {
	var gotModel, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		_ = json.Unmarshal(body, &req)
		gotModel, _ = req["model"].(string)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"object":"list","model":"text-embedding-3-large","data":[{"object":"embedding","index":0,"embedding":[0.5,-0.25,1]}],"usage":{"prompt_tokens":2,"total_tokens":2}}`)
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder(OpenAIEmbedderConfig{BaseURL: srv.URL + "/v1", APIKey: "sk-test"})
	if err != nil {
		t.Fatal(err)
	}
	vec, err := e.Embed(context.Background(), "soap")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.5 || vec[1] != -0.25 || vec[2] != 1 {
		t.Errorf("vec = %v", vec)
	}
	if gotModel != DefaultEmbeddingModel {
		t.Errorf("model = %q, want %q", gotModel, DefaultEmbeddingModel)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestNewOpenAIEmbedderRequiresKey(t *testing.T) {
	if _, err := NewOpenAIEmbedder(OpenAIEmbedderConfig{}); err == nil {
		t.Fatal("expected error without api key")
	}
}
