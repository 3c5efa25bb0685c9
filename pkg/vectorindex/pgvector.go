package vectorindex

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"ai-pdfchat/internal/model"
	"ai-pdfchat/pkg/apperror"
)

const pgvectorService = "pgvector"

var unsafeIdent = regexp.MustCompile(`[^a-z0-9_]+`)

// PGVectorStore keeps each index in its own table with a vector(dim) column.
type PGVectorStore struct {
	db        *gorm.DB
	batchSize int
}

var _ Store = (*PGVectorStore)(nil)

func NewPGVectorStore(db *gorm.DB) *PGVectorStore {
	return &PGVectorStore{db: db, batchSize: 100}
}

func (s *PGVectorStore) Name() string { return pgvectorService }

// TableName maps an index name such as "langchain-demo" to a safe identifier.
func TableName(index string) string {
	name := unsafeIdent.ReplaceAllString(strings.ToLower(index), "_")
	name = strings.Trim(name, "_")
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		name = "idx_" + name
	}
	return name
}

func distanceOperator(m Metric) string {
	switch m {
	case MetricDot:
		return "<#>"
	case MetricEuclidean:
		return "<->"
	default:
		return "<=>"
	}
}

func (s *PGVectorStore) CreateIndex(ctx context.Context, spec IndexSpec) error {
	if spec.Dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", spec.Dimension)
	}
	table := TableName(spec.Name)
	db := s.db.WithContext(ctx)

	if db.Migrator().HasTable(table) {
		return apperror.ErrIndexConflict
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
			return fmt.Errorf("enable pgvector: %w", err)
		}
		ddl := fmt.Sprintf(`CREATE TABLE %s (
			id uuid PRIMARY KEY,
			namespace text NOT NULL,
			content text NOT NULL,
			metadata jsonb,
			embedding vector(%d) NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, table, spec.Dimension)
		if err := tx.Exec(ddl).Error; err != nil {
			if strings.Contains(err.Error(), "already exists") {
				return apperror.ErrIndexConflict
			}
			return fmt.Errorf("create index table: %w", err)
		}
		if err := tx.Exec(fmt.Sprintf("CREATE INDEX %s_namespace_idx ON %s (namespace)", table, table)).Error; err != nil {
			return fmt.Errorf("create namespace index: %w", err)
		}
		return nil
	})
}

func (s *PGVectorStore) Upsert(ctx context.Context, spec IndexSpec, namespace string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([]*model.ChunkEmbedding, len(records))
	for i, r := range records {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			id = uuid.New()
		}
		rows[i] = &model.ChunkEmbedding{
			Id:        id,
			Namespace: namespace,
			Content:   r.Text,
			Metadata:  datatypes.JSONMap{"seq": r.Seq},
			Embedding: pgvector.NewVector(r.Vector),
		}
	}

	err := s.db.WithContext(ctx).Table(TableName(spec.Name)).CreateInBatches(rows, s.batchSize).Error
	if err != nil {
		return apperror.NewExternalServiceError(pgvectorService, 0, err)
	}
	return nil
}

func (s *PGVectorStore) Query(ctx context.Context, spec IndexSpec, namespace string, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		k = 4
	}

	var rows []struct {
		Id       uuid.UUID
		Content  string
		Distance float64
	}

	err := s.db.WithContext(ctx).
		Table(TableName(spec.Name)).
		Select(fmt.Sprintf("id, content, embedding %s ? AS distance", distanceOperator(spec.Metric)), pgvector.NewVector(vector)).
		Where("namespace = ?", namespace).
		Order("distance").
		Limit(k).
		Scan(&rows).Error
	if err != nil {
		return nil, apperror.NewExternalServiceError(pgvectorService, 0, err)
	}

	matches := make([]Match, len(rows))
	for i, r := range rows {
		matches[i] = Match{ID: r.Id.String(), Text: r.Content, Score: scoreFromDistance(spec.Metric, r.Distance)}
	}
	return matches, nil
}

// scoreFromDistance turns a pgvector distance into a higher-is-better score.
func scoreFromDistance(m Metric, d float64) float64 {
	switch m {
	case MetricDot:
		return -d // <#> is the negative inner product
	case MetricEuclidean:
		return 1 / (1 + d)
	default:
		return 1 - d
	}
}
