// Package indexer runs ingestion: load a data directory, split it into chunks, give
// each chunk a deterministic ID, and add the new ones to a collection.
package indexer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/ragindex/internal/chunkid"
	"github.com/hyperjump/ragindex/internal/collection"
	"github.com/hyperjump/ragindex/internal/models"
	"github.com/hyperjump/ragindex/internal/splitter"
	"github.com/hyperjump/ragindex/pkg/utils"
)

// Loader turns a directory into page-level documents in a stable order.
type Loader interface {
	LoadDirectory(ctx context.Context, dir string) ([]models.Document, error)
}

// Opener hands out connected collection handles.
type Opener interface {
	Open(ctx context.Context, name string) (*collection.Collection, error)
}

// Ingestor runs one ingestion at a time per call. It holds no per-run state, so one
// Ingestor serves concurrent runs against different collections.
type Ingestor struct {
	loader  Loader
	opener  Opener
	dataDir string
	overlay models.Permissions
	logger  *zap.Logger
}

// IngestorOption configures an Ingestor.
type IngestorOption func(*Ingestor)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) IngestorOption {
	return func(in *Ingestor) { in.logger = l }
}

// WithPermissions replaces the permission flags stamped on every ingested chunk.
func WithPermissions(p models.Permissions) IngestorOption {
	return func(in *Ingestor) {
		if p != nil {
			in.overlay = p
		}
	}
}

// NewIngestor returns an Ingestor reading from dataDir.
func NewIngestor(loader Loader, opener Opener, dataDir string, opts ...IngestorOption) *Ingestor {
	in := &Ingestor{
		loader:  loader,
		opener:  opener,
		dataDir: dataDir,
		overlay: models.DefaultIngestPermissions(),
	}
	for _, opt := range opts {
		opt(in)
	}
	in.logger = utils.OrNop(in.logger)
	return in
}

// DataDir returns the directory ingestion reads from.
func (in *Ingestor) DataDir() string {
	return in.dataDir
}

// Run executes task synchronously and leaves it in done or failed.
func (in *Ingestor) Run(ctx context.Context, task *Task) (err error) {
	snap := task.Snapshot()
	log := in.logger.With(zap.String("task_id", snap.ID), zap.String("collection", snap.Collection))
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ingestion panicked: %v", r)
		}
		task.finish(err)
		final := task.Snapshot()
		if err != nil {
			log.Error("ingestion failed",
				zap.String("state", string(final.State)),
				zap.Int64("duration_ms", final.DurationMS),
				zap.Error(err))
			return
		}
		log.Info("ingestion finished",
			zap.Int("added", final.Added),
			zap.Int("skipped", final.Skipped),
			zap.Int("batches", final.Batches),
			zap.String("message", final.Message),
			zap.Int64("duration_ms", final.DurationMS))
	}()

	split, err := splitter.New(snap.ChunkSize, snap.ChunkOverlap)
	if err != nil {
		return err
	}

	in.enter(task, log, models.StateLoading)
	docs, err := in.loader.LoadDirectory(ctx, in.dataDir)
	if err != nil {
		return fmt.Errorf("load %s: %w", in.dataDir, err)
	}
	task.update(func(r *models.Ingestion) { r.Documents = len(docs) })

	in.enter(task, log, models.StateSplitting)
	chunks := split.SplitDocuments(docs)
	task.update(func(r *models.Ingestion) { r.Chunks = len(chunks) })
	log.Debug("split documents", zap.Int("documents", len(docs)), zap.Int("chunks", len(chunks)))

	in.enter(task, log, models.StateIdentifying)
	chunkid.Assign(chunks)

	in.enter(task, log, models.StateDiffing)
	coll, err := in.opener.Open(ctx, snap.Collection)
	if err != nil {
		return err
	}
	fresh, err := coll.Diff(ctx, chunks, in.overlay)
	if err != nil {
		return err
	}
	skipped := len(chunks) - len(fresh)

	in.enter(task, log, models.StateUpserting)
	res, err := coll.Upsert(ctx, fresh)
	task.update(func(r *models.Ingestion) {
		r.Added = res.Added
		r.Skipped = skipped + res.Skipped
		r.Batches = res.Batches
		r.Message = res.Message
	})
	return err
}

func (in *Ingestor) enter(task *Task, log *zap.Logger, state models.IngestionState) {
	task.transition(state)
	log.Debug("ingestion stage", zap.String("state", string(state)))
}
