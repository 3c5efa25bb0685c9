package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ai-pdfchat/pkg/apperror"
)

const qdrantService = "qdrant"

// QdrantStore is a minimal REST client to Qdrant. One collection per index;
// namespaces are a payload field filtered on at query time.
type QdrantStore struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

var _ Store = (*QdrantStore)(nil)

type QdrantConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

func NewQdrantStore(cfg QdrantConfig) *QdrantStore {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &QdrantStore{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *QdrantStore) Name() string { return qdrantService }

func qdrantDistance(m Metric) string {
	switch m {
	case MetricDot:
		return "Dot"
	case MetricEuclidean:
		return "Euclid"
	default:
		return "Cosine"
	}
}

func (s *QdrantStore) collectionURL(name string, suffix string) string {
	return s.baseURL + "/collections/" + url.PathEscape(name) + suffix
}

func (s *QdrantStore) CreateIndex(ctx context.Context, spec IndexSpec) error {
	if spec.Dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", spec.Dimension)
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     spec.Dimension,
			"distance": qdrantDistance(spec.Metric),
		},
	}

	status, payload, err := s.do(ctx, http.MethodPut, s.collectionURL(spec.Name, ""), body)
	if err != nil {
		return err
	}
	if status == http.StatusConflict || (status == http.StatusBadRequest && strings.Contains(string(payload), "already exists")) {
		return apperror.ErrIndexConflict
	}
	if status >= 300 {
		return s.statusError(status, payload)
	}

	// payload index so namespace filters stay cheap on large collections
	fieldBody := map[string]any{"field_name": "namespace", "field_schema": "keyword"}
	status, payload, err = s.do(ctx, http.MethodPut, s.collectionURL(spec.Name, "/index?wait=true"), fieldBody)
	if err != nil {
		return err
	}
	if status >= 300 {
		return s.statusError(status, payload)
	}
	return nil
}

func (s *QdrantStore) Upsert(ctx context.Context, spec IndexSpec, namespace string, records []Record) error {
	points := make([]map[string]any, len(records))
	for i, r := range records {
		points[i] = map[string]any{
			"id":     r.ID,
			"vector": r.Vector,
			"payload": map[string]any{
				"namespace": namespace,
				"text":      r.Text,
				"seq":       r.Seq,
			},
		}
	}

	status, payload, err := s.do(ctx, http.MethodPut, s.collectionURL(spec.Name, "/points?wait=true"), map[string]any{"points": points})
	if err != nil {
		return err
	}
	if status >= 300 {
		return s.statusError(status, payload)
	}
	return nil
}

func (s *QdrantStore) Query(ctx context.Context, spec IndexSpec, namespace string, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		k = 4
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "namespace", "match": map[string]any{"value": namespace}},
			},
		},
	}

	status, payload, err := s.do(ctx, http.MethodPost, s.collectionURL(spec.Name, "/points/search"), req)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, s.statusError(status, payload)
	}

	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("decode qdrant search: %w", err)
	}

	matches := make([]Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		m := Match{ID: fmt.Sprint(r.ID), Score: r.Score}
		if v, ok := r.Payload["text"].(string); ok {
			m.Text = v
		}
		// Qdrant ranks Euclid by ascending distance and reports the distance
		if spec.Metric == MetricEuclidean {
			m.Score = 1 / (1 + r.Score)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func (s *QdrantStore) do(ctx context.Context, method, endpoint string, body any) (int, []byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(data))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, apperror.NewExternalServiceError(qdrantService, 0, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, apperror.NewExternalServiceError(qdrantService, 0, err)
	}
	return resp.StatusCode, payload, nil
}

func (s *QdrantStore) statusError(status int, payload []byte) error {
	var body struct {
		Status struct {
			Error string `json:"error"`
		} `json:"status"`
	}
	msg := strings.TrimSpace(string(payload))
	if json.Unmarshal(payload, &body) == nil && body.Status.Error != "" {
		msg = body.Status.Error
	}
	return apperror.NewExternalServiceError(qdrantService, status, errors.New(msg))
}
