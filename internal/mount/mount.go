// Package mount owns the indexing unit for one repository: lock
// acquisition, the initial walk, the extractor pool, the live watcher
// and the debounced flush to .codeindex.
package mount

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/codeix/internal/codec"
	"github.com/standardbeagle/codeix/internal/debug"
	xerrors "github.com/standardbeagle/codeix/internal/errors"
	"github.com/standardbeagle/codeix/internal/extract"
	"github.com/standardbeagle/codeix/internal/hash"
	"github.com/standardbeagle/codeix/internal/ignore"
	"github.com/standardbeagle/codeix/internal/lang"
	"github.com/standardbeagle/codeix/internal/store"
	"github.com/standardbeagle/codeix/internal/types"
)

// maxFileSize skips files the extractors should never see.
const maxFileSize = 4 << 20

// closeGrace bounds shutdown draining before the final flush.
const closeGrace = 5 * time.Second

// Options configure one mount.
type Options struct {
	// Name overrides the manifest name (default: base of root).
	Name string
	// Watch starts the live file watcher after the initial walk.
	Watch bool
	// Workers sizes the extractor pool; 0 auto-detects.
	Workers int
	// Debounce delays the flush after the last change.
	Debounce time.Duration
	// Container marks a workspace root without its own repository: it
	// indexes nothing but can host child mounts.
	Container bool
	// OnProject is called when a nested repository appears (kind
	// ProjectAdded) or disappears (ProjectRemoved) under this mount.
	OnProject func(kind EventKind, absRoot string)
}

// Stats counts one build pass for the CLI summary.
type Stats struct {
	Indexed int
	Skipped int
	Failed  int
}

// Mount is a live handle on one indexed repository subtree.
type Mount struct {
	Root string

	opts    Options
	store   *store.Store
	matcher *ignore.Matcher

	lockFile *os.File
	readOnly bool

	watcher *watcher

	mu     sync.Mutex // guards dirty, timer, stats, dirs
	dirty  map[string]struct{}
	timer  *time.Timer
	stats  Stats
	dirs   []string // absolute directories seen by the walk
	closed bool
}

// Open acquires the mount: lock, prior state, initial walk, watcher.
// Lock contention degrades to a read-only mount that serves the
// on-disk state and never writes.
func Open(root string, opts Options) (*Mount, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if opts.Workers <= 0 {
		opts.Workers = min(runtime.NumCPU(), 8)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	if opts.Name == "" {
		opts.Name = filepath.Base(absRoot)
	}

	m := &Mount{
		Root:    absRoot,
		opts:    opts,
		matcher: ignore.NewMatcher(),
		dirty:   make(map[string]struct{}),
	}

	if m.store, err = store.Open(); err != nil {
		return nil, err
	}

	if !opts.Container {
		if err := m.acquireLock(); err != nil {
			m.store.Close()
			return nil, err
		}
	}

	// Prior on-disk state is the hash baseline for change detection,
	// and the whole answer set for a read-only mount.
	prior, err := codec.Load(absRoot)
	if err != nil {
		m.release()
		return nil, err
	}
	if prior != nil {
		if err := m.store.LoadIndex(prior); err != nil {
			m.release()
			return nil, err
		}
	}

	if opts.Container {
		// A container indexes nothing but still hosts the nested
		// repositories below it.
		m.discoverProjects(m.Root, "")
		return m, nil
	}
	if m.readOnly {
		return m, nil
	}

	if err := m.initialWalk(); err != nil {
		m.release()
		return nil, err
	}

	if opts.Watch {
		w, err := newWatcher(m)
		if err != nil {
			m.release()
			return nil, err
		}
		m.watcher = w
		w.start()
	}

	return m, nil
}

func (m *Mount) acquireLock() error {
	dir := codec.Dir(m.Root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, codec.LockName), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	if err := tryLock(f); err != nil {
		f.Close()
		m.readOnly = true
		debug.Warnf("lock contention on %s, serving read-only", m.Root)
		return nil
	}
	m.lockFile = f
	return nil
}

func (m *Mount) release() {
	if m.lockFile != nil {
		unlock(m.lockFile)
		m.lockFile.Close()
		m.lockFile = nil
	}
	m.store.Close()
}

// ReadOnly reports whether the mount lost the lock race.
func (m *Mount) ReadOnly() bool { return m.readOnly }

// Store exposes the search store for the query layer.
func (m *Mount) Store() *store.Store { return m.store }

// Stats returns the build counters.
func (m *Mount) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Manifest assembles the index.json object from live state.
func (m *Mount) Manifest() types.Manifest {
	langs, err := m.store.Languages()
	if err != nil {
		langs = nil
	}
	if langs == nil {
		langs = []string{}
	}
	return types.Manifest{
		Version:   types.SpecVersion,
		Name:      m.opts.Name,
		Root:      ".",
		Languages: langs,
	}
}

// Rel converts an absolute path under the mount to the slash-relative
// form used everywhere in the index.
func (m *Mount) Rel(abs string) (string, bool) {
	rel, err := filepath.Rel(m.Root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// ExcludeSubtree reserves rel for a child mount so this mount neither
// indexes nor watches it.
func (m *Mount) ExcludeSubtree(rel string) {
	m.matcher.AddExclusion(rel)
}

// initialWalk scans the tree, indexing changed files on the worker
// pool, and drops rows for files that vanished since the last run.
func (m *Mount) initialWalk() error {
	priorPaths, err := m.store.Paths()
	if err != nil {
		return err
	}
	seen := make(map[string]struct{})
	var seenMu sync.Mutex

	jobs := make(chan Event, 256)
	var g errgroup.Group
	for i := 0; i < m.opts.Workers; i++ {
		g.Go(func() error {
			for ev := range jobs {
				seenMu.Lock()
				seen[ev.Rel] = struct{}{}
				seenMu.Unlock()
				m.handleFileAdded(ev)
			}
			return nil
		})
	}

	m.walkDir(m.Root, "", func(ev Event) {
		jobs <- ev
	})
	close(jobs)
	if err := g.Wait(); err != nil {
		return err
	}

	for _, p := range priorPaths {
		if _, ok := seen[p]; !ok {
			m.handleEvent(Event{Kind: FileRemoved, Rel: p, Abs: filepath.Join(m.Root, filepath.FromSlash(p))})
		}
	}
	return nil
}

// walkDir descends without following symlinks, maintaining the ignore
// stack and emitting the unified events. Nested repositories emit
// ProjectAdded and are not descended into.
func (m *Mount) walkDir(abs, rel string, emit func(Event)) {
	m.matcher.PushDir(abs, rel)
	m.mu.Lock()
	m.dirs = append(m.dirs, abs)
	m.mu.Unlock()
	if m.watcher != nil {
		m.watcher.add(abs)
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		debug.Logf("walk: %s: %v", abs, err)
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		childRel := name
		if rel != "" {
			childRel = rel + "/" + name
		}
		childAbs := filepath.Join(abs, name)

		if entry.Type()&os.ModeSymlink != 0 {
			continue
		}

		if entry.IsDir() {
			if m.isChildProject(childAbs, childRel) {
				continue
			}
			if m.matcher.Ignored(childRel, true) {
				continue
			}
			m.walkDir(childAbs, childRel, emit)
			continue
		}

		if m.matcher.Ignored(childRel, false) {
			continue
		}
		emit(Event{Kind: FileAdded, Rel: childRel, Abs: childAbs})
	}
}

// discoverProjects walks a container mount looking only for nested
// repository boundaries.
func (m *Mount) discoverProjects(abs, rel string) {
	entries, err := os.ReadDir(abs)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() || entry.Type()&os.ModeSymlink != 0 {
			continue
		}
		name := entry.Name()
		if ignore.IsFixedSkip(name) {
			continue
		}
		childRel := name
		if rel != "" {
			childRel = rel + "/" + name
		}
		childAbs := filepath.Join(abs, name)
		if m.isChildProject(childAbs, childRel) {
			continue
		}
		m.discoverProjects(childAbs, childRel)
	}
}

// isChildProject detects a nested repository boundary, notifies the
// table and excludes the subtree from this mount.
func (m *Mount) isChildProject(absDir, relDir string) bool {
	if relDir == "" {
		return false
	}
	if _, err := os.Lstat(filepath.Join(absDir, ".git")); err != nil {
		return false
	}
	m.matcher.AddExclusion(relDir)
	if m.opts.OnProject != nil {
		m.opts.OnProject(ProjectAdded, absDir)
	}
	return true
}

// handleEvent is the single handler behind both the walk and the
// watcher.
func (m *Mount) handleEvent(ev Event) {
	debug.Logf("mount %s: %s %s", m.opts.Name, ev.Kind, ev.Rel)
	switch ev.Kind {
	case FileAdded:
		m.handleFileAdded(ev)
	case FileRemoved:
		if err := m.store.RemoveFile(ev.Rel); err == nil {
			m.markDirty(ev.Rel)
		}
	case DirAdded:
		if m.watcher != nil {
			m.watcher.add(ev.Abs)
		}
		m.walkDir(ev.Abs, ev.Rel, func(e Event) { m.handleEvent(e) })
	case DirRemoved:
		if m.watcher != nil {
			m.watcher.remove(ev.Abs)
		}
		if n, err := m.store.RemovePrefix(ev.Rel); err == nil && n > 0 {
			m.markDirty(ev.Rel)
		}
	case ProjectAdded, ProjectRemoved:
		if m.opts.OnProject != nil {
			m.opts.OnProject(ev.Kind, ev.Abs)
		}
	}
}

// handleFileAdded runs the per-file pipeline: read, hash, skip when
// unchanged, extract, replace rows.
func (m *Mount) handleFileAdded(ev Event) {
	data, err := os.ReadFile(ev.Abs)
	if err != nil {
		// IO failure: skip this cycle, the next event retries.
		debug.Logf("read %s: %v", ev.Rel, err)
		m.countFailed()
		return
	}
	if len(data) > maxFileSize || isBinary(data) {
		m.countSkipped()
		return
	}

	sum := hash.Sum(data)
	if prev, ok := m.store.FileHash(ev.Rel); ok && prev == sum {
		m.countSkipped()
		return
	}

	tag := lang.Detect(ev.Rel)
	rec := types.FileRecord{Path: ev.Rel, Hash: sum}
	if tag != "" {
		rec.Lang = &tag
	}

	res, err := extract.Extract(tag, data)
	if err != nil {
		// Parse failure: record the file with its hash and no rows so
		// the next successful parse replaces the empty entry.
		debug.Logf("parse %s: %v", ev.Rel,
			xerrors.NewIndexError(xerrors.ErrorTypeParse, "extract", ev.Rel, err))
		rec.Lines = extract.CountLines(data)
		if storeErr := m.store.ReplaceFile(rec, nil, nil, nil); storeErr == nil {
			m.markDirty(ev.Rel)
		}
		m.countFailed()
		return
	}

	rec.Lines = res.Lines
	rec.Title = res.Title
	rec.Description = res.Description
	for i := range res.Symbols {
		res.Symbols[i].File = ev.Rel
	}
	for i := range res.Texts {
		res.Texts[i].File = ev.Rel
	}
	for i := range res.Refs {
		res.Refs[i].File = ev.Rel
	}

	if err := m.store.ReplaceFile(rec, res.Symbols, res.Texts, res.Refs); err != nil {
		debug.Logf("store %s: %v", ev.Rel, err)
		m.countFailed()
		return
	}
	m.markDirty(ev.Rel)
	m.countIndexed()
}

func isBinary(data []byte) bool {
	probe := data
	if len(probe) > 8192 {
		probe = probe[:8192]
	}
	return bytes.IndexByte(probe, 0) >= 0
}

func (m *Mount) countIndexed() { m.mu.Lock(); m.stats.Indexed++; m.mu.Unlock() }
func (m *Mount) countSkipped() { m.mu.Lock(); m.stats.Skipped++; m.mu.Unlock() }
func (m *Mount) countFailed()  { m.mu.Lock(); m.stats.Failed++; m.mu.Unlock() }

// markDirty records a stale path and arms the debounce timer.
func (m *Mount) markDirty(rel string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readOnly || m.closed {
		return
	}
	m.dirty[rel] = struct{}{}
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.opts.Debounce, func() {
		if err := m.Flush(); err != nil {
			debug.Warnf("flush %s: %v", m.Root, err)
		}
	})
}

// DirtyCount returns the number of paths awaiting flush.
func (m *Mount) DirtyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.dirty)
}

// Flush writes the on-disk index when anything is stale. On failure
// the dirty set is retained and the next debounce tick retries.
func (m *Mount) Flush() error {
	if m.readOnly {
		return nil
	}

	m.mu.Lock()
	if len(m.dirty) == 0 {
		m.mu.Unlock()
		return nil
	}
	pending := m.dirty
	m.dirty = make(map[string]struct{})
	m.mu.Unlock()

	idx, err := m.store.Dump()
	if err == nil {
		idx.Manifest = m.Manifest()
		err = codec.Write(m.Root, idx)
	}
	if err != nil {
		// Merge the failed set back for retry.
		m.mu.Lock()
		for p := range pending {
			m.dirty[p] = struct{}{}
		}
		m.mu.Unlock()
		return xerrors.NewIndexError(xerrors.ErrorTypeIO, "flush", m.Root, err)
	}
	return nil
}

// Close stops the watcher, drains, flushes and releases the lock.
// Draining past the grace timeout persists the dirty set best-effort
// and returns.
func (m *Mount) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	if m.timer != nil {
		m.timer.Stop()
	}
	m.mu.Unlock()

	if m.watcher != nil {
		done := make(chan struct{})
		go func() {
			m.watcher.stop()
			close(done)
		}()
		grace := time.NewTimer(closeGrace)
		select {
		case <-done:
			grace.Stop()
		case <-grace.C:
			debug.Warnf("watcher drain timed out on %s", m.Root)
		case <-ctx.Done():
			grace.Stop()
		}
	}

	flushErr := m.Flush()

	m.release()
	return flushErr
}
