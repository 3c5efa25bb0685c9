package vectorindex

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"ai-pdfchat/pkg/apperror"
)

const redisService = "redis"

// RedisStore stores chunks as hashes indexed by RediSearch (Redis Stack).
// Raw FT.* commands are parsed in their RESP2 shape, so the client must be
// created with Protocol 2 (see NewRedisClient).
type RedisStore struct {
	rdb *redis.Client
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// NewRedisClient parses redisURL and falls back to password when the URL
// carries none.
func NewRedisClient(redisURL, password string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opt.Password == "" {
		opt.Password = password
	}
	opt.Protocol = 2
	return redis.NewClient(opt), nil
}

func (s *RedisStore) Name() string { return redisService }

func redisDistance(m Metric) string {
	switch m {
	case MetricDot:
		return "IP"
	case MetricEuclidean:
		return "L2"
	default:
		return "COSINE"
	}
}

func keyPrefix(index string) string {
	return index + ":"
}

// tagValue keeps namespaces inside the TAG grammar.
func tagValue(namespace string) string {
	return strings.ReplaceAll(namespace, "-", "")
}

func (s *RedisStore) CreateIndex(ctx context.Context, spec IndexSpec) error {
	if spec.Dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", spec.Dimension)
	}

	err := s.rdb.Do(ctx,
		"FT.CREATE", spec.Name,
		"ON", "HASH",
		"PREFIX", "1", keyPrefix(spec.Name),
		"SCHEMA",
		"namespace", "TAG",
		"content", "TEXT",
		"seq", "NUMERIC",
		"embedding", "VECTOR", "HNSW", "6",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(spec.Dimension),
		"DISTANCE_METRIC", redisDistance(spec.Metric),
	).Err()
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "index already exists") {
			return apperror.ErrIndexConflict
		}
		return apperror.NewExternalServiceError(redisService, 0, err)
	}
	return nil
}

func (s *RedisStore) Upsert(ctx context.Context, spec IndexSpec, namespace string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	pipe := s.rdb.Pipeline()
	for _, r := range records {
		pipe.HSet(ctx, keyPrefix(spec.Name)+r.ID,
			"namespace", tagValue(namespace),
			"content", r.Text,
			"seq", r.Seq,
			"embedding", encodeFloat32(r.Vector),
		)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return apperror.NewExternalServiceError(redisService, 0, err)
	}
	return nil
}

func (s *RedisStore) Query(ctx context.Context, spec IndexSpec, namespace string, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		k = 4
	}

	query := fmt.Sprintf("(@namespace:{%s})=>[KNN %d @embedding $vec AS score]", tagValue(namespace), k)
	res, err := s.rdb.Do(ctx,
		"FT.SEARCH", spec.Name, query,
		"PARAMS", "2", "vec", encodeFloat32(vector),
		"SORTBY", "score",
		"RETURN", "2", "content", "score",
		"LIMIT", "0", strconv.Itoa(k),
		"DIALECT", "2",
	).Result()
	if err != nil {
		return nil, apperror.NewExternalServiceError(redisService, 0, err)
	}

	rows, err := parseSearchReply(res)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(rows))
	prefix := keyPrefix(spec.Name)
	for _, row := range rows {
		dist, _ := strconv.ParseFloat(row.fields["score"], 64)
		matches = append(matches, Match{
			ID:    strings.TrimPrefix(row.key, prefix),
			Text:  row.fields["content"],
			Score: redisScore(spec.Metric, dist),
		})
	}
	return matches, nil
}

// redisScore converts a RediSearch vector distance to a higher-is-better score.
func redisScore(m Metric, d float64) float64 {
	switch m {
	case MetricEuclidean:
		return 1 / (1 + math.Sqrt(d)) // L2 is reported squared
	default:
		return 1 - d // COSINE and IP both report 1 - similarity
	}
}

type searchRow struct {
	key    string
	fields map[string]string
}

// parseSearchReply reads [total, key, [field, value, ...], key, [...], ...].
func parseSearchReply(res interface{}) ([]searchRow, error) {
	arr, ok := res.([]interface{})
	if !ok || len(arr) == 0 {
		return nil, fmt.Errorf("unexpected FT.SEARCH reply %T", res)
	}

	var rows []searchRow
	for i := 1; i+1 < len(arr); i += 2 {
		key := fmt.Sprint(arr[i])
		raw, ok := arr[i+1].([]interface{})
		if !ok {
			return nil, fmt.Errorf("unexpected FT.SEARCH document %T", arr[i+1])
		}
		fields := make(map[string]string, len(raw)/2)
		for j := 0; j+1 < len(raw); j += 2 {
			fields[fmt.Sprint(raw[j])] = fmt.Sprint(raw[j+1])
		}
		rows = append(rows, searchRow{key: key, fields: fields})
	}
	return rows, nil
}

func encodeFloat32(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
