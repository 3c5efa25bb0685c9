package vectorindex

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-pdfchat/pkg/apperror"
)

func TestParseMetric(t *testing.T) {
	tests := []struct {
		in      string
		want    Metric
		wantErr bool
	}{
		{"", MetricCosine, false},
		{"Cosine", MetricCosine, false},
		{"dot", MetricDot, false},
		{"l2", MetricEuclidean, false},
		{"manhattan", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMetric(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestMemoryStore_Similarity(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		metric Metric
	}{
		{MetricCosine},
		{MetricDot},
		{MetricEuclidean},
	}

	for _, tt := range tests {
		t.Run(string(tt.metric), func(t *testing.T) {
			s := NewMemoryStore()
			spec := IndexSpec{Name: "i", Dimension: 2, Metric: tt.metric}
			require.NoError(t, s.CreateIndex(ctx, spec))
			assert.ErrorIs(t, s.CreateIndex(ctx, spec), apperror.ErrIndexConflict)

			require.NoError(t, s.Upsert(ctx, spec, "ns", []Record{
				{ID: "far", Vector: []float32{0, 1}, Text: "far"},
				{ID: "near", Vector: []float32{1, 0.1}, Text: "near"},
			}))
			require.NoError(t, s.Upsert(ctx, spec, "other", []Record{{ID: "x", Vector: []float32{1, 0}, Text: "other"}}))

			got, err := s.Query(ctx, spec, "ns", []float32{1, 0}, 5)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "near", got[0].ID)
			assert.Greater(t, got[0].Score, got[1].Score)
		})
	}
}

func TestMemoryStore_RejectsWrongDimension(t *testing.T) {
	s := NewMemoryStore()
	spec := IndexSpec{Name: "i", Dimension: 3}
	require.NoError(t, s.CreateIndex(context.Background(), spec))

	err := s.Upsert(context.Background(), spec, "ns", []Record{{ID: "a", Vector: []float32{1}}})
	assert.Error(t, err)
}

func TestMemoryStore_UpsertReplacesByID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	spec := IndexSpec{Name: "i", Dimension: 2}
	require.NoError(t, s.CreateIndex(ctx, spec))

	require.NoError(t, s.Upsert(ctx, spec, "ns", []Record{
		{ID: "a", Vector: []float32{1, 0}, Text: "first a"},
		{ID: "b", Vector: []float32{0, 1}, Text: "b"},
	}))
	require.NoError(t, s.Upsert(ctx, spec, "ns", []Record{
		{ID: "a", Vector: []float32{1, 0}, Text: "second a"},
		{ID: "c", Vector: []float32{1, 1}, Text: "c"},
	}))

	assert.Equal(t, 3, s.Count("i", "ns"))
	got, err := s.Query(ctx, spec, "ns", []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "second a", got[0].Text)
}

func TestMemoryStore_DropNamespace(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	spec := IndexSpec{Name: "i", Dimension: 2}
	require.NoError(t, s.CreateIndex(ctx, spec))
	require.NoError(t, s.Upsert(ctx, spec, "old", []Record{{ID: "a", Vector: []float32{1, 0}}}))
	require.NoError(t, s.Upsert(ctx, spec, "new", []Record{{ID: "b", Vector: []float32{0, 1}}}))

	require.NoError(t, s.DropNamespace(ctx, spec, "old"))
	require.NoError(t, s.DropNamespace(ctx, spec, "never-existed"))

	assert.Zero(t, s.Count("i", "old"))
	assert.Equal(t, 1, s.Count("i", "new"))
	got, err := s.Query(ctx, spec, "old", []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQdrantStore(t *testing.T) {
	var (
		created   bool
		upserted  []map[string]any
		searchReq map[string]any
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("api-key"))
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/langchain-demo":
			if created {
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"status":{"error":"Wrong input: Collection ` + "`langchain-demo`" + ` already exists!"}}`))
				return
			}
			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			vectors := body["vectors"].(map[string]any)
			assert.Equal(t, float64(3), vectors["size"])
			assert.Equal(t, "Cosine", vectors["distance"])
			created = true
			_, _ = w.Write([]byte(`{"result":true,"status":"ok"}`))
		case r.Method == http.MethodPut && r.URL.Path == "/collections/langchain-demo/index":
			_, _ = w.Write([]byte(`{"result":{"status":"completed"},"status":"ok"}`))
		case r.Method == http.MethodPut && r.URL.Path == "/collections/langchain-demo/points":
			var body struct {
				Points []map[string]any `json:"points"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			upserted = append(upserted, body.Points...)
			_, _ = w.Write([]byte(`{"result":{"status":"completed"},"status":"ok"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/collections/langchain-demo/points/search":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&searchReq))
			_, _ = w.Write([]byte(`{"result":[
				{"id":"7b7b1d2e-0000-4000-8000-000000000001","score":0.91,"payload":{"text":"best","namespace":"ns1"}},
				{"id":"7b7b1d2e-0000-4000-8000-000000000002","score":0.42,"payload":{"text":"second","namespace":"ns1"}}
			],"status":"ok"}`))
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	s := NewQdrantStore(QdrantConfig{URL: srv.URL + "/", APIKey: "secret"})
	spec := IndexSpec{Name: "langchain-demo", Dimension: 3, Metric: MetricCosine}

	require.NoError(t, s.CreateIndex(ctx, spec))
	assert.ErrorIs(t, s.CreateIndex(ctx, spec), apperror.ErrIndexConflict)

	require.NoError(t, s.Upsert(ctx, spec, "ns1", []Record{{ID: "7b7b1d2e-0000-4000-8000-000000000001", Vector: []float32{1, 0, 0}, Text: "best", Seq: 0}}))
	require.Len(t, upserted, 1)
	assert.Equal(t, "ns1", upserted[0]["payload"].(map[string]any)["namespace"])

	matches, err := s.Query(ctx, spec, "ns1", []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "best", matches[0].Text)
	assert.Equal(t, 0.91, matches[0].Score)
	assert.Equal(t, float64(2), searchReq["limit"])
	assert.NotNil(t, searchReq["filter"])
}

func TestQdrantStore_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":{"error":"overloaded"}}`))
	}))
	defer srv.Close()

	_, err := NewQdrantStore(QdrantConfig{URL: srv.URL}).Query(context.Background(), IndexSpec{Name: "x"}, "ns", []float32{1}, 1)

	var ext *apperror.ExternalServiceError
	require.True(t, errors.As(err, &ext))
	assert.True(t, ext.Transient)
	assert.Contains(t, ext.Error(), "overloaded")
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "langchain_demo", TableName("langchain-demo"))
	assert.Equal(t, "idx_2024_docs", TableName("2024 Docs"))
	assert.Equal(t, "idx_", TableName("---"))
}

func TestScoreConversions(t *testing.T) {
	assert.InDelta(t, 0.75, scoreFromDistance(MetricCosine, 0.25), 1e-9)
	assert.InDelta(t, 3.0, scoreFromDistance(MetricDot, -3), 1e-9)
	assert.InDelta(t, 0.5, scoreFromDistance(MetricEuclidean, 1), 1e-9)
	assert.InDelta(t, 0.5, redisScore(MetricEuclidean, 1), 1e-9)
	assert.InDelta(t, 0.9, redisScore(MetricCosine, 0.1), 1e-9)
}

func TestParseSearchReply(t *testing.T) {
	reply := []interface{}{
		int64(2),
		"langchain-demo:a",
		[]interface{}{"content", "hello", "score", "0.1"},
		"langchain-demo:b",
		[]interface{}{"content", "world", "score", "0.3"},
	}

	rows, err := parseSearchReply(reply)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "langchain-demo:a", rows[0].key)
	assert.Equal(t, "world", rows[1].fields["content"])

	_, err = parseSearchReply(map[string]interface{}{})
	assert.Error(t, err)
}

func TestEncodeFloat32(t *testing.T) {
	buf := encodeFloat32([]float32{1, -2})
	assert.Len(t, buf, 8)
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f}, buf[:4])
	assert.Equal(t, "abc", tagValue("a-b-c"))
}
