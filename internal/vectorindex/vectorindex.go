// Package vectorindex defines the contract every vector store backend
// implements: collection provisioning, batched upserts and top-k cosine
// queries over points carrying a {text, source} payload.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCollectionNotFound = errors.New("collection not found")
	ErrDimensionMismatch  = errors.New("vector dimension mismatch")
	ErrUnsupportedMetric  = errors.New("unsupported similarity metric")
)

type Metric string

const MetricCosine Metric = "cosine"

// ParseMetric accepts "cosine" in any case.
func ParseMetric(s string) (Metric, error) {
	if strings.EqualFold(strings.TrimSpace(s), string(MetricCosine)) {
		return MetricCosine, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedMetric, s)
}

// CollectionSpec fixes the shape of every vector stored in a collection.
type CollectionSpec struct {
	Dimensions int
	Metric     Metric
}

func (s CollectionSpec) Validate() error {
	if s.Dimensions <= 0 {
		return fmt.Errorf("invalid dimensions: %d", s.Dimensions)
	}
	if s.Metric != MetricCosine {
		return fmt.Errorf("%w: %q", ErrUnsupportedMetric, s.Metric)
	}
	return nil
}

type Payload struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

type Point struct {
	ID      uint64
	Vector  []float32
	Payload Payload
}

// Hit is a query match. Score is the cosine similarity.
type Hit struct {
	ID      string
	Score   float64
	Payload Payload
}

type UpdateStatus string

const (
	// StatusCompleted means every upserted point is queryable.
	StatusCompleted UpdateStatus = "completed"
	// StatusAcknowledged means the write was accepted but may not be applied yet.
	StatusAcknowledged UpdateStatus = "acknowledged"
)

// Client is implemented by chromemdb, db (pgvector) and qdrantdb.
type Client interface {
	// EnsureCollection creates name when absent. With recreate it drops and
	// recreates the collection unconditionally.
	EnsureCollection(ctx context.Context, name string, spec CollectionSpec, recreate bool) error
	// Upsert writes points, replacing points with the same id.
	Upsert(ctx context.Context, collection string, points []Point, wait bool) (UpdateStatus, error)
	// Query returns at most topK hits ordered by descending similarity.
	Query(ctx context.Context, collection string, vector []float32, topK int) ([]Hit, error)
	Close() error
}

// Pruner is implemented by backends that can delete every point whose id is
// not in keep. An empty keep empties the collection.
type Pruner interface {
	Prune(ctx context.Context, collection string, keep []uint64) error
}

// CheckDimensions returns ErrDimensionMismatch for the first point whose
// vector length differs from dims.
func CheckDimensions(points []Point, dims int) error {
	for _, p := range points {
		if len(p.Vector) != dims {
			return fmt.Errorf("%w: point %d has %d dimensions, collection expects %d", ErrDimensionMismatch, p.ID, len(p.Vector), dims)
		}
	}
	return nil
}
