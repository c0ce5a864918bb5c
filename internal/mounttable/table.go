// Package mounttable manages the set of live mounts rooted at the
// launch directory: one mount per path, child mounts for nested
// repositories, and query routing across them.
package mounttable

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/standardbeagle/codeix/internal/debug"
	xerrors "github.com/standardbeagle/codeix/internal/errors"
	"github.com/standardbeagle/codeix/internal/mount"
)

// Options configure every mount the table opens.
type Options struct {
	Watch    bool
	Workers  int
	Debounce time.Duration
}

// Entry pairs a mount with its path relative to the workspace root
// ("." for the root mount).
type Entry struct {
	Rel   string
	Mount *mount.Mount
}

// Table owns the mounts. Parent mounts hold exclusion ranges for their
// children; the table holds the only references, so there are no
// back-pointers between mounts.
type Table struct {
	root string
	opts Options

	mu     sync.RWMutex
	mounts map[string]*mount.Mount // abs root -> mount
	opening map[string]struct{}    // abs roots reserved mid-open
}

// Open mounts the workspace. A root without .git becomes a container
// mount: zero indexed files, children still served.
func Open(workspaceRoot string, opts Options) (*Table, error) {
	root, err := filepath.Abs(workspaceRoot)
	if err != nil {
		return nil, err
	}

	t := &Table{
		root:    root,
		opts:    opts,
		mounts:  make(map[string]*mount.Mount),
		opening: make(map[string]struct{}),
	}

	container := true
	if _, err := os.Lstat(filepath.Join(root, ".git")); err == nil {
		container = false
	}

	rootMount, err := t.openMount(root, container)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.mounts[root] = rootMount
	t.mu.Unlock()

	return t, nil
}

func (t *Table) openMount(absRoot string, container bool) (*mount.Mount, error) {
	return mount.Open(absRoot, mount.Options{
		Watch:     t.opts.Watch,
		Workers:   t.opts.Workers,
		Debounce:  t.opts.Debounce,
		Container: container,
		OnProject: func(kind mount.EventKind, childRoot string) {
			switch kind {
			case mount.ProjectAdded:
				t.addMount(childRoot)
			case mount.ProjectRemoved:
				t.removeSubtree(childRoot)
			}
		},
	})
}

// addMount opens a child mount. The slot is reserved under the lock
// but the open itself runs outside it, because a child's walk can
// discover grandchildren and re-enter here.
func (t *Table) addMount(absRoot string) {
	t.mu.Lock()
	if _, exists := t.mounts[absRoot]; exists {
		t.mu.Unlock()
		return
	}
	if _, busy := t.opening[absRoot]; busy {
		t.mu.Unlock()
		return
	}
	t.opening[absRoot] = struct{}{}
	t.mu.Unlock()

	m, err := t.openMount(absRoot, false)

	t.mu.Lock()
	delete(t.opening, absRoot)
	if err != nil {
		t.mu.Unlock()
		debug.Warnf("mount %s: %v", absRoot, err)
		return
	}
	t.mounts[absRoot] = m
	t.mu.Unlock()
}

// removeSubtree tears down every mount under absRoot, including it.
func (t *Table) removeSubtree(absRoot string) {
	t.mu.Lock()
	var victims []*mount.Mount
	for root, m := range t.mounts {
		if root == absRoot || strings.HasPrefix(root, absRoot+string(filepath.Separator)) {
			victims = append(victims, m)
			delete(t.mounts, root)
		}
	}
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, m := range victims {
		if err := m.Close(ctx); err != nil {
			debug.Logf("close %s: %v", m.Root, err)
		}
	}
}

// Rel returns a mount's path relative to the workspace root.
func (t *Table) Rel(m *mount.Mount) string {
	rel, err := filepath.Rel(t.root, m.Root)
	if err != nil {
		return m.Root
	}
	return filepath.ToSlash(rel)
}

// Mounts lists entries sorted by relative path, the root mount first.
func (t *Table) Mounts() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entries := make([]Entry, 0, len(t.mounts))
	for _, m := range t.mounts {
		entries = append(entries, Entry{Rel: t.Rel(m), Mount: m})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Rel < entries[j].Rel })
	return entries
}

// Route resolves the optional project parameter: empty selects every
// mount, otherwise the single mount at that relative path.
func (t *Table) Route(project string) ([]Entry, error) {
	if project == "" {
		return t.Mounts(), nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	abs := t.root
	if project != "." {
		abs = filepath.Join(t.root, filepath.FromSlash(project))
	}
	if m, ok := t.mounts[abs]; ok {
		return []Entry{{Rel: t.Rel(m), Mount: m}}, nil
	}
	return nil, xerrors.NewQueryError(xerrors.ErrorTypeNotFound, "no mount at project %q", project)
}

// Root returns the workspace root path.
func (t *Table) Root() string { return t.root }

// FlushAll forces a synchronous flush on every writable mount.
func (t *Table) FlushAll() error {
	var firstErr error
	for _, e := range t.Mounts() {
		if err := e.Mount.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stats sums the build counters across mounts.
func (t *Table) Stats() mount.Stats {
	var total mount.Stats
	for _, e := range t.Mounts() {
		s := e.Mount.Stats()
		total.Indexed += s.Indexed
		total.Skipped += s.Skipped
		total.Failed += s.Failed
	}
	return total
}

// CloseAll tears everything down with a final flush per mount.
func (t *Table) CloseAll(ctx context.Context) error {
	t.mu.Lock()
	mounts := make([]*mount.Mount, 0, len(t.mounts))
	for _, m := range t.mounts {
		mounts = append(mounts, m)
	}
	t.mounts = make(map[string]*mount.Mount)
	t.mu.Unlock()

	var firstErr error
	for _, m := range mounts {
		if err := m.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
