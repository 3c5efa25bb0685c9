package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"ai-pdfchat/pkg/apperror"
)

// MemoryStore is a brute-force in-process store. Useful for local runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	indexes map[string]*memoryIndex
}

type memoryIndex struct {
	spec       IndexSpec
	namespaces map[string]*memoryNamespace
}

type memoryNamespace struct {
	records []Record
	byID    map[string]int
}

var (
	_ Store            = (*MemoryStore)(nil)
	_ NamespaceDropper = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{indexes: make(map[string]*memoryIndex)}
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) CreateIndex(ctx context.Context, spec IndexSpec) error {
	if spec.Dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", spec.Dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.indexes[spec.Name]; ok {
		return apperror.ErrIndexConflict
	}
	s.indexes[spec.Name] = &memoryIndex{spec: spec, namespaces: make(map[string]*memoryNamespace)}
	return nil
}

func (s *MemoryStore) Upsert(ctx context.Context, spec IndexSpec, namespace string, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indexes[spec.Name]
	if !ok {
		return fmt.Errorf("index %q does not exist", spec.Name)
	}
	for _, r := range records {
		if len(r.Vector) != idx.spec.Dimension {
			return fmt.Errorf("vector dimension %d does not match index dimension %d", len(r.Vector), idx.spec.Dimension)
		}
	}

	ns, ok := idx.namespaces[namespace]
	if !ok {
		ns = &memoryNamespace{byID: make(map[string]int, len(records))}
		idx.namespaces[namespace] = ns
	}
	for _, r := range records {
		if i, ok := ns.byID[r.ID]; ok {
			ns.records[i] = r
			continue
		}
		ns.byID[r.ID] = len(ns.records)
		ns.records = append(ns.records, r)
	}
	return nil
}

// DropNamespace forgets every record of namespace. Dropping an unknown
// namespace is a no-op.
func (s *MemoryStore) DropNamespace(ctx context.Context, spec IndexSpec, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, ok := s.indexes[spec.Name]; ok {
		delete(idx.namespaces, namespace)
	}
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, spec IndexSpec, namespace string, vector []float32, k int) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.indexes[spec.Name]
	if !ok {
		return nil, fmt.Errorf("index %q does not exist", spec.Name)
	}

	var records []Record
	if ns, ok := idx.namespaces[namespace]; ok {
		records = ns.records
	}
	matches := make([]Match, 0, len(records))
	for _, r := range records {
		matches = append(matches, Match{ID: r.ID, Text: r.Text, Score: similarity(idx.spec.Metric, r.Vector, vector)})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Count returns the number of records in a namespace.
func (s *MemoryStore) Count(index, namespace string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx, ok := s.indexes[index]; ok {
		if ns, ok := idx.namespaces[namespace]; ok {
			return len(ns.records)
		}
	}
	return 0
}

func similarity(metric Metric, a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	switch metric {
	case MetricDot:
		var dot float64
		for i := 0; i < n; i++ {
			dot += float64(a[i]) * float64(b[i])
		}
		return dot
	case MetricEuclidean:
		var sum float64
		for i := 0; i < n; i++ {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return 1 / (1 + math.Sqrt(sum))
	default:
		var dot, na, nb float64
		for i := 0; i < n; i++ {
			dot += float64(a[i]) * float64(b[i])
			na += float64(a[i]) * float64(a[i])
			nb += float64(b[i]) * float64(b[i])
		}
		if na == 0 || nb == 0 {
			return 0
		}
		return dot / (math.Sqrt(na) * math.Sqrt(nb))
	}
}
