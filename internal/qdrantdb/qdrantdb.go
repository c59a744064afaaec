// Package qdrantdb stores collections in a Qdrant server over gRPC.
package qdrantdb

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"docqa/internal/config"
	"docqa/internal/vectorindex"

	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog/log"
)

const (
	textKey   = "text"
	sourceKey = "source"
)

var (
	_ vectorindex.Client = (*Storage)(nil)
	_ vectorindex.Pruner = (*Storage)(nil)
)

type Storage struct {
	client  *qdrant.Client
	timeout time.Duration
}

func NewStorage(cfg *config.QdrantConfig) (*Storage, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Storage{client: client, timeout: cfg.Timeout}, nil
}

func (s *Storage) EnsureCollection(ctx context.Context, name string, spec vectorindex.CollectionSpec, recreate bool) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", name, err)
	}

	if exists && !recreate {
		info, err := s.client.GetCollectionInfo(ctx, name)
		if err != nil {
			return fmt.Errorf("inspect collection %s: %w", name, err)
		}
		if size := vectorSize(info); size != uint64(spec.Dimensions) {
			return fmt.Errorf("%w: collection %s has %d dimensions, want %d", vectorindex.ErrDimensionMismatch, name, size, spec.Dimensions)
		}
		log.Info().Str("collection", name).Msg("Collection already exists")
		return nil
	}
	if exists {
		log.Info().Str("collection", name).Msg("Recreating collection")
		if err := s.client.DeleteCollection(ctx, name); err != nil {
			return fmt.Errorf("drop collection %s: %w", name, err)
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(spec.Dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	log.Info().Str("collection", name).Int("dimensions", spec.Dimensions).Msg("Collection created")
	return nil
}

// Upsert sends every point in one request. With wait the server applies
// the write before answering and reports completed.
func (s *Storage) Upsert(ctx context.Context, collection string, points []vectorindex.Point, wait bool) (vectorindex.UpdateStatus, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         toPoints(points),
	})
	if err != nil {
		return "", fmt.Errorf("upsert into %s: %w", collection, err)
	}
	return toStatus(res.GetStatus()), nil
}

func (s *Storage) Query(ctx context.Context, collection string, vector []float32, topK int) ([]vectorindex.Hit, error) {
	if topK <= 0 {
		return nil, nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	limit := uint64(topK)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	return toHits(points), nil
}

// Prune deletes every point whose id is not in keep and waits for the
// deletion to be applied.
func (s *Storage) Prune(ctx context.Context, collection string, keep []uint64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	wait := true
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         qdrant.NewPointsSelectorFilter(pruneFilter(keep)),
	})
	if err != nil {
		return fmt.Errorf("prune %s: %w", collection, err)
	}
	return nil
}

func (s *Storage) Close() error {
	return s.client.Close()
}

func (s *Storage) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func toPoints(points []vectorindex.Point) []*qdrant.PointStruct {
	out := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		out[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				textKey:   p.Payload.Text,
				sourceKey: p.Payload.Source,
			}),
		}
	}
	return out
}

func toHits(points []*qdrant.ScoredPoint) []vectorindex.Hit {
	hits := make([]vectorindex.Hit, 0, len(points))
	for _, p := range points {
		payload := p.GetPayload()
		hits = append(hits, vectorindex.Hit{
			ID:    pointID(p.GetId()),
			Score: float64(p.GetScore()),
			Payload: vectorindex.Payload{
				Text:   payload[textKey].GetStringValue(),
				Source: payload[sourceKey].GetStringValue(),
			},
		})
	}
	return hits
}

func pointID(id *qdrant.PointId) string {
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

// pruneFilter matches every point outside keep. With nothing to keep it
// matches the whole collection.
func pruneFilter(keep []uint64) *qdrant.Filter {
	if len(keep) == 0 {
		return &qdrant.Filter{}
	}
	ids := make([]*qdrant.PointId, len(keep))
	for i, id := range keep {
		ids[i] = qdrant.NewIDNum(id)
	}
	return &qdrant.Filter{MustNot: []*qdrant.Condition{qdrant.NewHasID(ids...)}}
}

// vectorSize is the size of the collection's single unnamed vector.
func vectorSize(info *qdrant.CollectionInfo) uint64 {
	return info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
}

func toStatus(s qdrant.UpdateStatus) vectorindex.UpdateStatus {
	if s == qdrant.UpdateStatus_Completed {
		return vectorindex.StatusCompleted
	}
	return vectorindex.StatusAcknowledged
}
