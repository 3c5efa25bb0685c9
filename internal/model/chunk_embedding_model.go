package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// ChunkEmbedding is one row of a pgvector-backed index. The table name is the
// index name, so it is always used through db.Table.
type ChunkEmbedding struct {
	Id        uuid.UUID         `gorm:"type:uuid;primaryKey"`
	Namespace string            `gorm:"type:text;not null;index"`
	Content   string            `gorm:"type:text;not null"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb"`
	Embedding pgvector.Vector   `gorm:"not null"`
	CreatedAt time.Time         `gorm:"autoCreateTime"`
}
