package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"docqa/internal/helper"
	"docqa/internal/vectorindex"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
)

const sourceKey = "source"

var (
	_ vectorindex.Client = (*VectorDBManager)(nil)
	_ vectorindex.Pruner = (*VectorDBManager)(nil)
)

// errNoEmbedding is returned if chromem ever tries to embed on its own;
// every document and query carries a precomputed vector.
var errNoEmbedding = errors.New("chromemdb: embeddings must be supplied by the caller")

func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedding
}

// VectorDBManager encapsulates the chromem-go database operations
type VectorDBManager struct {
	db            *chromem.DB
	dbPath        string
	compress      bool
	encryptionKey string

	mu   sync.RWMutex
	dims map[string]int
}

// NewVectorDBManager opens a persistent database under dbPath, or an
// in-memory one when inMemory is set.
func NewVectorDBManager(dbPath string, inMemory, compress bool, encryptionKey string) (*VectorDBManager, error) {
	var db *chromem.DB
	if inMemory {
		db = chromem.NewDB()
	} else {
		if err := helper.CreateFolder(dbPath); err != nil {
			return nil, err
		}
		var err error
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	return &VectorDBManager{
		db:            db,
		dbPath:        dbPath,
		compress:      compress,
		encryptionKey: encryptionKey,
		dims:          make(map[string]int),
	}, nil
}

func (m *VectorDBManager) EnsureCollection(ctx context.Context, name string, spec vectorindex.CollectionSpec, recreate bool) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	if recreate {
		log.Info().Str("collection", name).Msg("Recreating collection")
		if err := m.db.DeleteCollection(name); err != nil {
			return fmt.Errorf("failed to drop collection: %w", err)
		}
	} else if c := m.db.GetCollection(name, noEmbedding); c != nil {
		if err := m.checkStoredDims(ctx, c, spec.Dimensions); err != nil {
			return err
		}
		log.Info().Str("collection", name).Int("documents", c.Count()).Msg("Collection already exists")
		m.setDims(name, spec.Dimensions)
		return nil
	}

	metadata := map[string]string{
		"dimensions": strconv.Itoa(spec.Dimensions),
		"metric":     string(spec.Metric),
	}
	if _, err := m.db.CreateCollection(name, metadata, noEmbedding); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	m.setDims(name, spec.Dimensions)
	log.Info().Str("collection", name).Int("dimensions", spec.Dimensions).Msg("Collection created")
	return nil
}

// Upsert adds the points as chromem documents. Writes are synchronous, so
// the status is always completed on success.
func (m *VectorDBManager) Upsert(ctx context.Context, collection string, points []vectorindex.Point, wait bool) (vectorindex.UpdateStatus, error) {
	c, err := m.collection(collection)
	if err != nil {
		return "", err
	}
	if len(points) == 0 {
		return vectorindex.StatusCompleted, nil
	}
	if dims, ok := m.getDims(collection); ok {
		if err := vectorindex.CheckDimensions(points, dims); err != nil {
			return "", err
		}
	}

	docs := make([]chromem.Document, len(points))
	for i, p := range points {
		docs[i] = chromem.Document{
			ID:        strconv.FormatUint(p.ID, 10),
			Content:   p.Payload.Text,
			Metadata:  map[string]string{sourceKey: p.Payload.Source},
			Embedding: p.Vector,
		}
	}
	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return "", fmt.Errorf("failed to add documents: %w", err)
	}
	return vectorindex.StatusCompleted, nil
}

func (m *VectorDBManager) Query(ctx context.Context, collection string, vector []float32, topK int) ([]vectorindex.Hit, error) {
	if len(vector) == 0 {
		return nil, errors.New("query embedding must be provided")
	}
	c, err := m.collection(collection)
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults larger than the collection
	n := min(topK, c.Count())
	if n <= 0 {
		return nil, nil
	}

	results, err := c.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	hits := make([]vectorindex.Hit, len(results))
	for i, r := range results {
		hits[i] = vectorindex.Hit{
			ID:    r.ID,
			Score: float64(r.Similarity),
			Payload: vectorindex.Payload{
				Text:   r.Content,
				Source: r.Metadata[sourceKey],
			},
		}
	}
	return hits, nil
}

// Prune deletes every document whose id is not in keep.
func (m *VectorDBManager) Prune(ctx context.Context, collection string, keep []uint64) error {
	c, err := m.collection(collection)
	if err != nil {
		return err
	}
	ids, err := m.documentIDs(ctx, c)
	if err != nil {
		return err
	}

	kept := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		kept[strconv.FormatUint(id, 10)] = struct{}{}
	}
	var stale []string
	for _, id := range ids {
		if _, ok := kept[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	if err := c.Delete(ctx, nil, nil, stale...); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	log.Info().Str("collection", collection).Int("deleted", len(stale)).Msg("Pruned stale points")
	return nil
}

// documentIDs lists every document in c. chromem has no listing call, so
// this ranks the whole collection against a probe vector.
func (m *VectorDBManager) documentIDs(ctx context.Context, c *chromem.Collection) ([]string, error) {
	n := c.Count()
	if n == 0 {
		return nil, nil
	}
	dims, ok := m.getDims(c.Name)
	if !ok {
		return nil, fmt.Errorf("unknown dimensions for collection %s", c.Name)
	}
	results, err := c.QueryEmbedding(ctx, probeVector(dims), n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids, nil
}

// checkStoredDims fails with ErrDimensionMismatch when c already holds
// vectors of another size than dims. The size recorded at creation is not
// readable back from chromem, so non-empty collections are probed with a
// query of the expected size.
func (m *VectorDBManager) checkStoredDims(ctx context.Context, c *chromem.Collection, dims int) error {
	if known, ok := m.getDims(c.Name); ok {
		if known != dims {
			return fmt.Errorf("%w: collection %s has %d dimensions, want %d", vectorindex.ErrDimensionMismatch, c.Name, known, dims)
		}
		return nil
	}
	if c.Count() == 0 {
		return nil
	}
	if _, err := c.QueryEmbedding(ctx, probeVector(dims), 1, nil, nil); err != nil {
		return fmt.Errorf("%w: collection %s does not hold %d-dimensional vectors: %v", vectorindex.ErrDimensionMismatch, c.Name, dims, err)
	}
	return nil
}

func probeVector(dims int) []float32 {
	v := make([]float32, dims)
	for i := range v {
		v[i] = 1
	}
	return v
}

// Count returns the number of documents stored in collection.
func (m *VectorDBManager) Count(collection string) (int, error) {
	c, err := m.collection(collection)
	if err != nil {
		return 0, err
	}
	return c.Count(), nil
}

// chromem has nothing to release; persistent writes happen on every add.
func (m *VectorDBManager) Close() error {
	return nil
}

// Export writes collection to filePath, encrypted when an encryption key is set.
func (m *VectorDBManager) Export(ctx context.Context, collection, filePath string) error {
	if filePath == "" {
		return errors.New("export file path is required")
	}
	if _, err := m.collection(collection); err != nil {
		return err
	}

	log.Debug().Str("collection", collection).Str("file", filePath).Bool("compress", m.compress).Msg("Exporting collection")
	if err := m.db.ExportToFile(filePath, m.compress, m.encryptionKey, collection); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import loads collection from a file written by Export.
func (m *VectorDBManager) Import(ctx context.Context, collection, filePath string) error {
	if filePath == "" {
		return errors.New("import file path is required")
	}

	log.Debug().Str("collection", collection).Str("file", filePath).Msg("Importing collection")
	if err := m.db.ImportFromFile(filePath, m.encryptionKey, collection); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	m.forgetDims(collection)
	return nil
}

func (m *VectorDBManager) collection(name string) (*chromem.Collection, error) {
	c := m.db.GetCollection(name, noEmbedding)
	if c == nil {
		return nil, fmt.Errorf("%w: %s", vectorindex.ErrCollectionNotFound, name)
	}
	return c, nil
}

func (m *VectorDBManager) setDims(name string, dims int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dims[name] = dims
}

func (m *VectorDBManager) getDims(name string) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.dims[name]
	return d, ok
}

func (m *VectorDBManager) forgetDims(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.dims, name)
}
