// Package watch observes workspace file changes during an agent run.
//
// The watcher is purely observational: it never blocks or vetoes anything.
// It publishes file.edited events as the run mutates the working directory
// and, at stop time, reports per-file line change counts against a snapshot
// taken at start.
package watch

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/agentrun-ai/agentrun/internal/event"
	"github.com/agentrun-ai/agentrun/internal/logging"
	"github.com/agentrun-ai/agentrun/pkg/types"
)

// maxSnapshotSize bounds the per-file content kept for diffing.
const maxSnapshotSize = 256 * 1024

// DefaultIgnores are glob patterns (relative to the work dir) that are never
// watched or diffed.
var DefaultIgnores = []string{
	".git/**",
	"node_modules/**",
	"vendor/**",
	"__pycache__/**",
	"*.lock",
}

// Watcher tracks changes under a working directory.
type Watcher struct {
	workDir string
	ignores []string
	bus     *event.Bus

	fsw    *fsnotify.Watcher
	stopCh chan struct{}
	doneCh chan struct{}

	mu        sync.Mutex
	snapshots map[string]string
	announced map[string]bool
	started   bool
}

// New creates a watcher for workDir. Extra ignore patterns extend the
// defaults. bus may be nil; diffs still work without event observers.
func New(workDir string, bus *event.Bus, extraIgnores ...string) (*Watcher, error) {
	abs, err := filepath.Abs(workDir)
	if err != nil {
		return nil, err
	}
	return &Watcher{
		workDir:   abs,
		ignores:   append(append([]string{}, DefaultIgnores...), extraIgnores...),
		bus:       bus,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
		snapshots: make(map[string]string),
		announced: make(map[string]bool),
	}, nil
}

// Start snapshots the tree and begins watching. Safe to call once.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw

	err = filepath.WalkDir(w.workDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if w.ignored(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		if content, ok := snapshotFile(path); ok {
			w.snapshots[path] = content
		}
		return nil
	})
	if err != nil {
		_ = fsw.Close()
		return err
	}

	w.started = true
	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	defer close(w.doneCh)
	log := logging.Component("watch")

	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Debug().Err(err).Msg("watch error")
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if w.ignored(ev.Name) {
		return
	}

	// New directories need explicit registration.
	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = w.fsw.Add(ev.Name)
			return
		}
	}

	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) &&
		!ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	first := !w.announced[ev.Name]
	w.announced[ev.Name] = true
	w.mu.Unlock()

	if first && w.bus != nil {
		w.bus.PublishSync(event.Event{
			Type: event.FileEdited,
			Data: event.FileEditedData{File: w.rel(ev.Name)},
		})
	}
}

// Stop ends watching and returns line-change summaries for every file that
// differs from the start snapshot, sorted by path.
func (w *Watcher) Stop() []types.FileDiff {
	if !w.started {
		return nil
	}
	close(w.stopCh)
	_ = w.fsw.Close()
	<-w.doneCh

	return w.diffs()
}

func (w *Watcher) diffs() []types.FileDiff {
	current := make(map[string]string)
	_ = filepath.WalkDir(w.workDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if w.ignored(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			if content, ok := snapshotFile(path); ok {
				current[path] = content
			}
		}
		return nil
	})

	var out []types.FileDiff
	for path, after := range current {
		before, existed := w.snapshots[path]
		if existed && before == after {
			continue
		}
		adds, dels := diffStats(before, after)
		if adds == 0 && dels == 0 {
			continue
		}
		out = append(out, types.FileDiff{File: w.rel(path), Additions: adds, Deletions: dels})
	}
	for path, before := range w.snapshots {
		if _, still := current[path]; !still {
			out = append(out, types.FileDiff{File: w.rel(path), Deletions: countLines(before)})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].File < out[j].File })
	return out
}

func (w *Watcher) ignored(path string) bool {
	rel := w.rel(path)
	if rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	for _, pattern := range w.ignores {
		if doublestar.MatchUnvalidated(pattern, rel) {
			return true
		}
	}
	return false
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.workDir, path)
	if err != nil {
		return path
	}
	return rel
}

// snapshotFile reads a file's content for diffing. Oversized and binary
// files are skipped.
func snapshotFile(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil || info.Size() > maxSnapshotSize {
		return "", false
	}
	data, err := os.ReadFile(path)
	if err != nil || bytes.IndexByte(data, 0) >= 0 {
		return "", false
	}
	return string(data), true
}

// diffStats counts added and deleted lines between two contents.
func diffStats(before, after string) (int, int) {
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineArray)

	additions, deletions := 0, 0
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			additions += countLines(d.Text)
		case diffmatchpatch.DiffDelete:
			deletions += countLines(d.Text)
		}
	}
	return additions, deletions
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}
