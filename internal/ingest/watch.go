package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

type WatchOptions struct {
	Debounce time.Duration
	// OnRun, when set, receives the outcome of every run.
	OnRun func(Report, error)
}

// Watch ingests opts.Path once, then re-ingests it whenever matching files
// change. Events are coalesced until Debounce has passed without another
// one. Every run prunes the points it did not write so removed chunks do
// not linger. Re-runs never recreate the collection. opts.Path may be a
// directory tree or a single file. Watch returns nil when ctx is
// canceled.
func (in *Ingestor) Watch(ctx context.Context, opts Options, wopts WatchOptions) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	target, err := watchTarget(watcher, opts.Path)
	if err != nil {
		return err
	}

	opts.Prune = true
	in.runAndReport(ctx, opts, wopts.OnRun)
	rerun := Options{Path: opts.Path, Prune: true}

	debounce := wopts.Debounce
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	log.Info().Str("path", opts.Path).Dur("debounce", debounce).Msg("Watching for changes")
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("Watcher error")
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !in.relevant(watcher, event, target) {
				continue
			}
			log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Change detected")
			timer.Reset(debounce)
		case <-timer.C:
			in.runAndReport(ctx, rerun, wopts.OnRun)
		}
	}
}

func (in *Ingestor) runAndReport(ctx context.Context, opts Options, onRun func(Report, error)) {
	report, err := in.Run(ctx, opts)
	if err != nil {
		log.Error().Err(err).Str("path", opts.Path).Msg("Ingestion failed")
	}
	if onRun != nil {
		onRun(report, err)
	}
}

// relevant reports whether event should trigger a re-run. When target is
// set only events for that file count. Otherwise new directories are added
// to the watcher as a side effect.
func (in *Ingestor) relevant(watcher *fsnotify.Watcher, event fsnotify.Event, target string) bool {
	if target != "" && filepath.Clean(event.Name) != target {
		return false
	}
	if target == "" && event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := addTree(watcher, event.Name); err != nil {
				log.Warn().Err(err).Str("dir", event.Name).Msg("Cannot watch new directory")
			}
			return false
		}
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	return in.loader.Matches(event.Name)
}

// watchTarget registers path with watcher. A directory is watched with all
// its subdirectories and the returned target is empty. A file is watched
// through its parent directory, since editors often replace files on save,
// and the cleaned file path is returned as the target.
func watchTarget(watcher *fsnotify.Watcher, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", addTree(watcher, path)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return "", fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	return filepath.Clean(path), nil
}

func addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}
