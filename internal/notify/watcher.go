package notify

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Importer consumes one dropped transcript file.
type Importer interface {
	ImportFile(path string) error
}

// Watcher watches a drop directory and imports transcript files placed
// there. Imported files are removed; files that fail to parse are left in
// place so the problem can be inspected.
type Watcher struct {
	dir      string
	importer Importer
	sink     Sink
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// NewWatcher creates a watcher for dir. A nil sink drops activity events.
func NewWatcher(dir string, imp Importer, sink Sink) *Watcher {
	if sink == nil {
		sink = NopSink{}
	}
	return &Watcher{
		dir:      dir,
		importer: imp,
		sink:     sink,
		done:     make(chan struct{}),
	}
}

// Start begins watching. Files already present in the directory are imported
// first, then new ones as they appear. Call Stop to clean up.
func (w *Watcher) Start() error {
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return err
	}

	w.drainExisting()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		return err
	}
	w.watcher = fsw

	go w.loop()
	log.Printf("notify: watching %s for transcripts", w.dir)
	return nil
}

// Stop shuts down the watcher.
func (w *Watcher) Stop() {
	if w.watcher != nil {
		_ = w.watcher.Close()
	}
	<-w.done
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case evt, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if evt.Op&(fsnotify.Create|fsnotify.Rename) != 0 && isTranscript(evt.Name) {
				w.processFile(evt.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("notify: watcher error: %v", err)
		}
	}
}

func (w *Watcher) drainExisting() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() && isTranscript(entry.Name()) {
			w.processFile(filepath.Join(w.dir, entry.Name()))
		}
	}
}

func (w *Watcher) processFile(path string) {
	if err := w.importer.ImportFile(path); err != nil {
		log.Printf("notify: failed to import %s: %v", filepath.Base(path), err)
		return
	}
	_ = os.Remove(path)
	w.sink.Publish(NewEvent(EventTranscriptImport, "", filepath.Base(path)))
}

func isTranscript(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown", ".json":
		return true
	}
	return false
}
