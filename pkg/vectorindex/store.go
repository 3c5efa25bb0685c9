// Package vectorindex builds a searchable index over embedded text chunks on
// top of a pluggable vector store backend.
package vectorindex

import (
	"context"
	"fmt"
	"strings"
)

type Metric string

const (
	MetricCosine    Metric = "cosine"
	MetricDot       Metric = "dot"
	MetricEuclidean Metric = "euclidean"
)

func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cosine":
		return MetricCosine, nil
	case "dot", "dotproduct", "ip":
		return MetricDot, nil
	case "euclidean", "l2", "euclid":
		return MetricEuclidean, nil
	default:
		return "", fmt.Errorf("unknown similarity metric %q", s)
	}
}

// IndexSpec names a remote index and fixes its shape.
type IndexSpec struct {
	Name      string
	Dimension int
	Metric    Metric
}

type Record struct {
	ID     string
	Vector []float32
	Text   string
	Seq    int // position of the chunk in its batch
}

// Match is one retrieved chunk. Higher Score means more similar for every metric.
type Match struct {
	ID    string
	Text  string
	Score float64
}

// Store is the contract a vector database backend fulfils.
//
// Namespaces partition one index: Upsert writes into a namespace and Query
// only sees records of the namespace it is given.
type Store interface {
	// CreateIndex returns apperror.ErrIndexConflict when spec.Name already exists.
	CreateIndex(ctx context.Context, spec IndexSpec) error
	Upsert(ctx context.Context, spec IndexSpec, namespace string, records []Record) error
	// Query returns at most k matches ranked by descending Score.
	Query(ctx context.Context, spec IndexSpec, namespace string, vector []float32, k int) ([]Match, error)
	Name() string
}

// NamespaceDropper is implemented by stores that can discard a namespace once
// nothing queries it anymore.
type NamespaceDropper interface {
	DropNamespace(ctx context.Context, spec IndexSpec, namespace string) error
}
