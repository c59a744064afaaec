package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"docqa/internal/config"
	"docqa/internal/vectorindex"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

const undefinedTable = "42P01"

// Document is one row of a collection table. Every collection is its own
// table with this shape.
type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            int64           `bun:"id,pk"`
	Content       string          `bun:"content,notnull"`
	Source        string          `bun:"source,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
}

type scoredDocument struct {
	ID      int64   `bun:"id"`
	Content string  `bun:"content"`
	Source  string  `bun:"source"`
	Score   float64 `bun:"score"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens a pool with the configured driver. Nothing is dialed
// until the first query.
func ConnectDB(cfg *config.PGVectorConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case "", "pgdriver":
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
		if cfg.Password != "" {
			opts = append(opts, pgdriver.WithPassword(cfg.Password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	case "pq":
		return sql.Open("postgres", cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown postgres driver: %s", cfg.Driver)
	}
}

var (
	_ vectorindex.Client = (*PGVectorStore)(nil)
	_ vectorindex.Pruner = (*PGVectorStore)(nil)
)

// PGVectorStore keeps each collection in a Postgres table with a pgvector
// column and answers queries with the cosine distance operator.
type PGVectorStore struct {
	db *bun.DB
}

func NewPGVectorStore(db *bun.DB) *PGVectorStore {
	return &PGVectorStore{db: db}
}

// Open connects with cfg and wraps the pool in a store.
func Open(cfg *config.PGVectorConfig) (*PGVectorStore, error) {
	sqldb, err := ConnectDB(cfg)
	if err != nil {
		return nil, err
	}
	return NewPGVectorStore(NewDB(sqldb, cfg.Debug)), nil
}

func (s *PGVectorStore) EnsureCollection(ctx context.Context, name string, spec vectorindex.CollectionSpec, recreate bool) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("enable pgvector: %w", err)
	}

	if recreate {
		log.Info().Str("collection", name).Msg("Recreating collection")
		if err := s.dropCollection(ctx, name); err != nil {
			return err
		}
	} else {
		dims, exists, err := s.collectionDimensions(ctx, name)
		if err != nil {
			return err
		}
		if exists {
			if dims != spec.Dimensions {
				return fmt.Errorf("%w: collection %s has %d dimensions, want %d", vectorindex.ErrDimensionMismatch, name, dims, spec.Dimensions)
			}
			log.Info().Str("collection", name).Msg("Collection already exists")
			return nil
		}
	}

	if _, err := s.db.ExecContext(ctx,
		"CREATE TABLE IF NOT EXISTS ? (id bigint PRIMARY KEY, content text NOT NULL, source text NOT NULL, embedding vector(?) NOT NULL)",
		bun.Ident(name), spec.Dimensions,
	); err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	if _, err := s.db.ExecContext(ctx,
		"CREATE INDEX IF NOT EXISTS ? ON ? USING hnsw (embedding vector_cosine_ops)",
		bun.Ident(name+"_embedding_idx"), bun.Ident(name),
	); err != nil {
		return fmt.Errorf("create index for %s: %w", name, err)
	}

	log.Info().Str("collection", name).Int("dimensions", spec.Dimensions).Msg("Collection created")
	return nil
}

// Upsert inserts all points in one statement. Postgres commits before
// returning, so a successful write is always completed.
func (s *PGVectorStore) Upsert(ctx context.Context, collection string, points []vectorindex.Point, wait bool) (vectorindex.UpdateStatus, error) {
	if len(points) == 0 {
		return vectorindex.StatusCompleted, nil
	}

	dims, exists, err := s.collectionDimensions(ctx, collection)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("%w: %s", vectorindex.ErrCollectionNotFound, collection)
	}
	if err := vectorindex.CheckDimensions(points, dims); err != nil {
		return "", err
	}

	docs := toDocuments(points)
	_, err = s.db.NewInsert().
		Model(&docs).
		ModelTableExpr("?", bun.Ident(collection)).
		On("CONFLICT (id) DO UPDATE").
		Set("content = EXCLUDED.content").
		Set("source = EXCLUDED.source").
		Set("embedding = EXCLUDED.embedding").
		Exec(ctx)
	if err != nil {
		return "", fmt.Errorf("store documents: %w", err)
	}
	return vectorindex.StatusCompleted, nil
}

func (s *PGVectorStore) Query(ctx context.Context, collection string, vector []float32, topK int) ([]vectorindex.Hit, error) {
	if topK <= 0 {
		return nil, nil
	}

	query := pgvector.NewVector(vector)
	var rows []scoredDocument
	err := s.db.NewRaw(
		"SELECT id, content, source, 1 - (embedding <=> ?) AS score FROM ? ORDER BY embedding <=> ? LIMIT ?",
		query, bun.Ident(collection), query, topK,
	).Scan(ctx, &rows)
	if err != nil {
		if isUndefinedTable(err) {
			return nil, fmt.Errorf("%w: %s", vectorindex.ErrCollectionNotFound, collection)
		}
		return nil, fmt.Errorf("search documents: %w", err)
	}

	return toHits(rows), nil
}

// Prune deletes every row whose id is not in keep.
func (s *PGVectorStore) Prune(ctx context.Context, collection string, keep []uint64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM ? WHERE NOT (id = ANY(?))",
		bun.Ident(collection), pgdialect.Array(toRowIDs(keep)),
	)
	if err != nil {
		if isUndefinedTable(err) {
			return fmt.Errorf("%w: %s", vectorindex.ErrCollectionNotFound, collection)
		}
		return fmt.Errorf("prune %s: %w", collection, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		log.Info().Str("collection", collection).Int64("deleted", n).Msg("Pruned stale points")
	}
	return nil
}

func (s *PGVectorStore) Close() error {
	return s.db.Close()
}

func (s *PGVectorStore) dropCollection(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS ?", bun.Ident(name)); err != nil {
		return fmt.Errorf("drop collection %s: %w", name, err)
	}
	return nil
}

// collectionDimensions reads the declared vector(n) size of the embedding
// column. For the vector type, atttypmod holds n.
func (s *PGVectorStore) collectionDimensions(ctx context.Context, name string) (int, bool, error) {
	var dims int
	err := s.db.NewRaw(
		"SELECT a.atttypmod FROM pg_attribute a WHERE a.attrelid = to_regclass(?) AND a.attname = 'embedding'",
		pq.QuoteIdentifier(name),
	).Scan(ctx, &dims)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("inspect collection %s: %w", name, err)
	}
	return dims, true, nil
}

func toDocuments(points []vectorindex.Point) []Document {
	docs := make([]Document, len(points))
	for i, p := range points {
		docs[i] = Document{
			ID:        int64(p.ID),
			Content:   p.Payload.Text,
			Source:    p.Payload.Source,
			Embedding: pgvector.NewVector(p.Vector),
		}
	}
	return docs
}

func toHits(rows []scoredDocument) []vectorindex.Hit {
	hits := make([]vectorindex.Hit, len(rows))
	for i, r := range rows {
		hits[i] = vectorindex.Hit{
			ID:      fmt.Sprint(r.ID),
			Score:   r.Score,
			Payload: vectorindex.Payload{Text: r.Content, Source: r.Source},
		}
	}
	return hits
}

func isUndefinedTable(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == undefinedTable
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == undefinedTable
	}
	return false
}

func toRowIDs(ids []uint64) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
