package watcher

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/pathtrace/flowgraph/internal/discover"
)

const (
	baseInterval = 1 * time.Second
	maxInterval  = 30 * time.Second
)

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

// AnalyzeFunc is the callback run when the watched tree has changed.
type AnalyzeFunc func(ctx context.Context, rootPath string) error

// Watcher polls one source tree for file changes and re-runs the analysis
// when it sees any. The poll interval backs off while the tree is quiet
// and snaps back to the base interval after a change.
type Watcher struct {
	rootPath string
	opts     *discover.Options
	analyze  AnalyzeFunc

	snapshot map[string]fileSnapshot
	interval time.Duration
}

func New(rootPath string, opts *discover.Options, analyze AnalyzeFunc) *Watcher {
	return &Watcher{
		rootPath: rootPath,
		opts:     opts,
		analyze:  analyze,
		interval: baseInterval,
	}
}

// Run analyzes once, then blocks polling until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	snap, err := w.takeSnapshot(ctx)
	if err != nil {
		return err
	}
	w.snapshot = snap
	if err := w.analyze(ctx, w.rootPath); err != nil {
		return err
	}

	timer := time.NewTimer(w.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		changed, err := w.poll(ctx)
		if err != nil {
			slog.Warn("watch.poll.err", "err", err)
		}
		if changed {
			w.interval = baseInterval
			if err := w.analyze(ctx, w.rootPath); err != nil {
				slog.Error("watch.analyze.err", "err", err)
			}
		} else {
			w.interval = min(w.interval*2, maxInterval)
		}
		timer.Reset(w.interval)
	}
}

// poll re-snapshots the tree and reports whether anything was added,
// removed, or modified since the previous snapshot.
func (w *Watcher) poll(ctx context.Context) (bool, error) {
	snap, err := w.takeSnapshot(ctx)
	if err != nil {
		return false, err
	}
	changed := len(snap) != len(w.snapshot)
	if !changed {
		for path, cur := range snap {
			prev, ok := w.snapshot[path]
			if !ok || !prev.modTime.Equal(cur.modTime) || prev.size != cur.size {
				changed = true
				break
			}
		}
	}
	if changed {
		slog.Info("watch.changed", "files", len(snap))
	}
	w.snapshot = snap
	return changed, nil
}

func (w *Watcher) takeSnapshot(ctx context.Context) (map[string]fileSnapshot, error) {
	files, err := discover.Discover(ctx, w.rootPath, w.opts)
	if err != nil {
		return nil, err
	}
	snap := make(map[string]fileSnapshot, len(files))
	for _, f := range files {
		info, err := os.Stat(f.Path)
		if err != nil {
			continue
		}
		snap[f.RelPath] = fileSnapshot{modTime: info.ModTime(), size: info.Size()}
	}
	return snap, nil
}
