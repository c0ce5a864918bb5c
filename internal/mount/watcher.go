package mount

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/codeix/internal/debug"
)

// watcher feeds filesystem notifications into the mount's unified
// event handler. One goroutine owns the loop; directory registration
// changes flow through it via DirAdded/DirRemoved.
type watcher struct {
	m      *Mount
	fw     *fsnotify.Watcher
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newWatcher(m *Mount) (*watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &watcher{m: m, fw: fw, ctx: ctx, cancel: cancel}, nil
}

// start registers every directory the walk visited and begins the
// event loop.
func (w *watcher) start() {
	w.m.mu.Lock()
	dirs := append([]string(nil), w.m.dirs...)
	w.m.mu.Unlock()
	for _, d := range dirs {
		w.add(d)
	}

	w.wg.Add(1)
	go w.loop()
}

func (w *watcher) add(abs string) {
	if err := w.fw.Add(abs); err != nil {
		debug.Logf("watch add %s: %v", abs, err)
	}
}

func (w *watcher) remove(abs string) {
	_ = w.fw.Remove(abs)
}

// stop cancels the loop and waits for it to drain.
func (w *watcher) stop() {
	w.cancel()
	_ = w.fw.Close()
	w.wg.Wait()
}

func (w *watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			debug.Logf("watcher: %v", err)
		}
	}
}

// handle translates one notification into a mount event. Removal of a
// path that could be file or directory is disambiguated against the
// store: tracked file first, subtree otherwise.
func (w *watcher) handle(ev fsnotify.Event) {
	m := w.m
	rel, ok := m.Rel(ev.Name)
	if !ok || rel == "." || rel == "" {
		return
	}

	removal := ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0

	// A repository stops being one when its .git vanishes.
	if filepath.Base(rel) == ".git" {
		if removal && filepath.Dir(rel) == "." {
			m.handleEvent(Event{Kind: ProjectRemoved, Rel: ".", Abs: m.Root})
		}
		return
	}

	if m.matcher.Excluded(rel) {
		if removal {
			// The child mount's root itself went away.
			m.handleEvent(Event{Kind: ProjectRemoved, Rel: rel, Abs: ev.Name})
		}
		return
	}

	info, statErr := os.Lstat(ev.Name)
	if statErr != nil {
		if !removal {
			return
		}
		if _, tracked := m.store.FileHash(rel); tracked {
			m.handleEvent(Event{Kind: FileRemoved, Rel: rel, Abs: ev.Name})
		} else {
			m.handleEvent(Event{Kind: DirRemoved, Rel: rel, Abs: ev.Name})
		}
		return
	}

	if info.Mode()&os.ModeSymlink != 0 {
		return
	}

	if info.IsDir() {
		if ev.Op&fsnotify.Create != 0 {
			if m.isChildProject(ev.Name, rel) {
				return
			}
			if m.matcher.Ignored(rel, true) {
				return
			}
			m.handleEvent(Event{Kind: DirAdded, Rel: rel, Abs: ev.Name})
		}
		return
	}

	if m.matcher.Ignored(rel, false) {
		return
	}
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
		m.handleEvent(Event{Kind: FileAdded, Rel: rel, Abs: ev.Name})
	}
}
