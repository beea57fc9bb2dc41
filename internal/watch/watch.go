// Package watch observes a directory tree during a protected tool call and
// collects the files created while the call ran, so the checkpoint store can
// record them for rollback deletion. Collection is best-effort: watcher
// failures degrade to an empty list, never to a failed call.
package watch

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"codesquad/internal/logging"
)

// skipDirs are never watched: state, VCS, and dependency trees.
var skipDirs = map[string]bool{
	".git":         true,
	".squad":       true,
	"node_modules": true,
}

// Watcher collects file-creation events under a root directory.
type Watcher struct {
	root    string
	fsw     *fsnotify.Watcher
	done    chan struct{}
	stopped sync.Once

	mu      sync.Mutex
	created map[string]bool
}

// New prepares a watcher over root. Call Start to begin collecting.
func New(root string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		root:    root,
		fsw:     fsw,
		done:    make(chan struct{}),
		created: make(map[string]bool),
	}, nil
}

// Start registers the directory tree and begins collecting create events.
func (w *Watcher) Start() error {
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if skipDirs[d.Name()] {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
	if err != nil {
		w.fsw.Close()
		return err
	}

	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create == 0 {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil {
				continue
			}
			if info.IsDir() {
				// New directories join the watch so files created inside
				// them are seen too.
				if !skipDirs[filepath.Base(event.Name)] {
					if werr := w.fsw.Add(event.Name); werr != nil {
						logging.ToolsDebug("watch: could not add %s: %v", event.Name, werr)
					}
				}
				continue
			}
			if w.excluded(event.Name) {
				continue
			}
			w.mu.Lock()
			w.created[event.Name] = true
			w.mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.ToolsDebug("watch: %v", err)

		case <-w.done:
			return
		}
	}
}

// excluded filters paths under skipped directories.
func (w *Watcher) excluded(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return true
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if skipDirs[part] {
			return true
		}
	}
	return false
}

// Stop ends collection and returns the files created since Start, sorted
// for deterministic processing.
func (w *Watcher) Stop() []string {
	w.stopped.Do(func() {
		close(w.done)
		w.fsw.Close()
	})

	w.mu.Lock()
	defer w.mu.Unlock()

	paths := make([]string, 0, len(w.created))
	for p := range w.created {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
