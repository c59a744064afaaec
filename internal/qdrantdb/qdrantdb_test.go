package qdrantdb

import (
	"testing"

	"docqa/internal/vectorindex"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToPoints(t *testing.T) {
	points := toPoints([]vectorindex.Point{
		{ID: 4, Vector: []float32{0.1, 0.2}, Payload: vectorindex.Payload{Text: "chunk", Source: "a.md"}},
	})

	require.Len(t, points, 1)
	assert.Equal(t, uint64(4), points[0].GetId().GetNum())
	assert.Equal(t, "chunk", points[0].GetPayload()[textKey].GetStringValue())
	assert.Equal(t, "a.md", points[0].GetPayload()[sourceKey].GetStringValue())
}

func TestToHits(t *testing.T) {
	hits := toHits([]*qdrant.ScoredPoint{
		{
			Id:    qdrant.NewIDNum(2),
			Score: 0.5,
			Payload: qdrant.NewValueMap(map[string]any{
				textKey:   "hello",
				sourceKey: "b.md",
			}),
		},
		{Id: qdrant.NewID("8a6e0804-2bd0-4672-b79d-d97027f9071a"), Score: 0.25},
	})

	require.Len(t, hits, 2)
	assert.Equal(t, vectorindex.Hit{
		ID:      "2",
		Score:   0.5,
		Payload: vectorindex.Payload{Text: "hello", Source: "b.md"},
	}, hits[0])
	assert.Equal(t, "8a6e0804-2bd0-4672-b79d-d97027f9071a", hits[1].ID)
	assert.Empty(t, hits[1].Payload.Text)
}

func TestToStatus(t *testing.T) {
	assert.Equal(t, vectorindex.StatusCompleted, toStatus(qdrant.UpdateStatus_Completed))
	assert.Equal(t, vectorindex.StatusAcknowledged, toStatus(qdrant.UpdateStatus_Acknowledged))
}

func TestPruneFilter(t *testing.T) {
	all := pruneFilter(nil)
	assert.Empty(t, all.GetMust())
	assert.Empty(t, all.GetMustNot())

	f := pruneFilter([]uint64{0, 3})
	require.Len(t, f.GetMustNot(), 1)
	ids := f.GetMustNot()[0].GetHasId().GetHasId()
	require.Len(t, ids, 2)
	assert.Equal(t, uint64(0), ids[0].GetNum())
	assert.Equal(t, uint64(3), ids[1].GetNum())
}

func TestVectorSize(t *testing.T) {
	info := &qdrant.CollectionInfo{
		Config: &qdrant.CollectionConfig{
			Params: &qdrant.CollectionParams{
				VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{Size: 768, Distance: qdrant.Distance_Cosine}),
			},
		},
	}
	assert.Equal(t, uint64(768), vectorSize(info))
	assert.Zero(t, vectorSize(&qdrant.CollectionInfo{}))
}
