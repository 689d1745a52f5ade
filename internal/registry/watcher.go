package registry

import (
	"log"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher hot-reloads a registry from its YAML definition file. Editors
// commonly replace files on save, so it watches the parent directory and
// filters events by file name.
type Watcher struct {
	registry *Registry
	path     string
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// NewWatcher creates a watcher that reloads registry from path on change.
func NewWatcher(registry *Registry, path string) *Watcher {
	return &Watcher{
		registry: registry,
		path:     path,
		done:     make(chan struct{}),
	}
}

// Start begins watching. Call Stop to clean up.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()
		return err
	}
	w.watcher = fsw

	go w.loop()
	log.Printf("registry: watching %s for type definition changes", w.path)
	return nil
}

// Stop shuts down the watcher. Calling Stop on a watcher that never
// started is a no-op.
func (w *Watcher) Stop() {
	if w.watcher == nil {
		return
	}
	_ = w.watcher.Close()
	<-w.done
}

func (w *Watcher) loop() {
	defer close(w.done)
	base := filepath.Base(w.path)

	for {
		select {
		case evt, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(evt.Name) != base {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("registry: watcher error: %v", err)
		}
	}
}

// reload applies the file, keeping the current table when the new content is
// invalid.
func (w *Watcher) reload() {
	if err := w.registry.ReloadFile(w.path); err != nil {
		// Transient truncation during editor saves is common; keep serving
		// the previous table.
		if strings.Contains(err.Error(), "defines no types") {
			return
		}
		log.Printf("registry: reload of %s failed, keeping previous definitions: %v", w.path, err)
		return
	}
	log.Printf("registry: reloaded type definitions from %s (%d types)", w.path, len(w.registry.Types()))
}
