// Package ingest loads a document folder into the vector index: load,
// chunk, embed under a rate limit, then one batched upsert.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docqa/internal/embedding"
	"docqa/internal/helper"
	"docqa/internal/models"
	"docqa/internal/parser"
	"docqa/internal/throttle"
	"docqa/internal/vectorindex"

	"github.com/rs/zerolog/log"
)

const progressEvery = 10

var (
	ErrUpsertIncomplete = errors.New("upsert did not complete")
	ErrPruneUnsupported = errors.New("vector index cannot prune points")
)

type Status string

const (
	StatusCompleted       Status = "completed"
	StatusNothingToIngest Status = "nothing_to_ingest"
	StatusNoDocuments     Status = "no_documents"
)

// DocumentLoader is satisfied by *parser.Loader.
type DocumentLoader interface {
	Load(root string) ([]models.Document, error)
	Matches(path string) bool
}

type Config struct {
	Collection   string
	Spec         vectorindex.CollectionSpec
	ChunkSize    int
	ChunkOverlap int
}

type Options struct {
	Path     string
	Recreate bool
	// Prune deletes points this run did not write, once its upsert has
	// completed. A run that embeds nothing leaves the collection untouched.
	Prune bool
}

type Report struct {
	RunID     string        `json:"run_id"`
	Status    Status        `json:"status"`
	Documents int           `json:"documents"`
	Chunks    int           `json:"chunks"`
	Embedded  int           `json:"embedded"`
	Skipped   int           `json:"skipped"`
	Pruned    bool          `json:"pruned"`
	Duration  time.Duration `json:"duration"`
}

type Ingestor struct {
	index    vectorindex.Client
	embedder embedding.Provider
	limiter  throttle.Limiter
	loader   DocumentLoader
	cfg      Config
}

func NewIngestor(index vectorindex.Client, embedder embedding.Provider, limiter throttle.Limiter, loader DocumentLoader, cfg Config) *Ingestor {
	return &Ingestor{
		index:    index,
		embedder: embedder,
		limiter:  limiter,
		loader:   loader,
		cfg:      cfg,
	}
}

// Run ingests every matching document under opts.Path. Point ids are the
// chunk positions within this run, so running again over the same files
// overwrites the same points.
func (in *Ingestor) Run(ctx context.Context, opts Options) (Report, error) {
	start := time.Now()
	runID, err := helper.GenerateUUID()
	if err != nil {
		return Report{}, err
	}
	report := Report{RunID: runID}
	logger := log.With().Str("run_id", runID).Str("collection", in.cfg.Collection).Logger()

	if err := in.index.EnsureCollection(ctx, in.cfg.Collection, in.cfg.Spec, opts.Recreate); err != nil {
		return report, fmt.Errorf("provision collection %s: %w", in.cfg.Collection, err)
	}

	docs, err := in.loader.Load(opts.Path)
	if err != nil {
		return report, fmt.Errorf("load documents from %s: %w", opts.Path, err)
	}
	report.Documents = len(docs)
	if len(docs) == 0 {
		logger.Warn().Str("path", opts.Path).Msg("No documents found")
		report.Status = StatusNoDocuments
		if opts.Prune {
			if err := in.prune(ctx, nil); err != nil {
				return report, err
			}
			report.Pruned = true
		}
		report.Duration = time.Since(start)
		return report, nil
	}

	chunks := parser.SplitDocuments(docs, in.cfg.ChunkSize, in.cfg.ChunkOverlap)
	report.Chunks = len(chunks)

	points := make([]vectorindex.Point, 0, len(chunks))
	for i, chunk := range chunks {
		if i > 0 && in.limiter != nil {
			if err := in.limiter.Wait(ctx); err != nil {
				return report, fmt.Errorf("wait for embedding rate limit: %w", err)
			}
		}

		vec := in.embedder.Embed(ctx, chunk.Text)
		if len(vec) == 0 {
			logger.Warn().Int("chunk", i).Str("source", chunk.Source).Msg("Skipping chunk without embedding")
			report.Skipped++
		} else {
			points = append(points, vectorindex.Point{
				ID:      uint64(i),
				Vector:  vec,
				Payload: vectorindex.Payload{Text: chunk.Text, Source: chunk.Source},
			})
		}

		if (i+1)%progressEvery == 0 {
			logger.Info().Msgf("Processed %d/%d chunks", i+1, len(chunks))
		}
	}
	report.Embedded = len(points)

	if len(points) == 0 {
		logger.Error().Int("chunks", len(chunks)).Msg("No embeddings produced, nothing to ingest")
		report.Status = StatusNothingToIngest
		report.Duration = time.Since(start)
		return report, nil
	}

	logger.Info().Int("points", len(points)).Msg("Uploading points")
	status, err := in.index.Upsert(ctx, in.cfg.Collection, points, true)
	if err != nil {
		return report, fmt.Errorf("upsert into %s: %w", in.cfg.Collection, err)
	}
	if status != vectorindex.StatusCompleted {
		return report, fmt.Errorf("%w: status %s", ErrUpsertIncomplete, status)
	}

	if opts.Prune {
		keep := make([]uint64, len(points))
		for i, p := range points {
			keep[i] = p.ID
		}
		if err := in.prune(ctx, keep); err != nil {
			return report, err
		}
		report.Pruned = true
	}

	report.Status = StatusCompleted
	report.Duration = time.Since(start)
	logger.Info().
		Int("documents", report.Documents).
		Int("embedded", report.Embedded).
		Int("skipped", report.Skipped).
		Dur("duration", report.Duration).
		Msg("Ingestion complete")
	return report, nil
}

func (in *Ingestor) prune(ctx context.Context, keep []uint64) error {
	pruner, ok := in.index.(vectorindex.Pruner)
	if !ok {
		return ErrPruneUnsupported
	}
	if err := pruner.Prune(ctx, in.cfg.Collection, keep); err != nil {
		return fmt.Errorf("prune %s: %w", in.cfg.Collection, err)
	}
	return nil
}
