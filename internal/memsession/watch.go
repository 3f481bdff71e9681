package memsession

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/amem-mcp/amem-mcp/internal/logging"
)

// Watcher warns when a session's backing file changes on disk out from
// under an open Session. It is a diagnostic aid, not a correctness
// mechanism; concurrent cross-process opens of the same memory file
// remain undefined behavior.
type Watcher struct {
	fsw  *fsnotify.Watcher
	done chan struct{}
}

// WatchFile starts watching path's directory (fsnotify watches
// directories more reliably than individual files across editors'
// write-via-rename patterns) and logs a warning whenever path itself is
// written or removed by something other than this process's own Save.
func WatchFile(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{fsw: fsw, done: make(chan struct{})}
	go w.loop(path)
	return w, nil
}

func (w *Watcher) loop(path string) {
	base := filepath.Base(path)
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				logging.Component("memsession").Warn().Str("path", path).Str("op", event.Op.String()).
					Msg("memory file changed on disk outside this session")
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Component("memsession").Warn().Err(err).Str("path", path).Msg("file watcher error")
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
