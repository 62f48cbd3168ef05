package notify

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type stubImporter struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (s *stubImporter) ImportFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.paths = append(s.paths, path)
	return nil
}

func (s *stubImporter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.paths)
}

type chanSink struct{ events chan Event }

func (c *chanSink) Publish(evt Event) { c.events <- evt }

func TestWatcherImportsDroppedFile(t *testing.T) {
	dir := t.TempDir()
	imp := &stubImporter{}
	sink := &chanSink{events: make(chan Event, 4)}

	w := NewWatcher(dir, imp, sink)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	// Give fsnotify a moment to register
	time.Sleep(50 * time.Millisecond)

	path := filepath.Join(dir, "session.md")
	if err := os.WriteFile(path, []byte("用户: 你好\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	select {
	case evt := <-sink.events:
		if evt.Type != EventTranscriptImport {
			t.Errorf("expected %s, got %s", EventTranscriptImport, evt.Type)
		}
		if evt.Detail != "session.md" {
			t.Errorf("expected session.md, got %s", evt.Detail)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for import event")
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected imported file to be removed, stat err = %v", err)
	}
}

func TestWatcherDrainsExisting(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.md", "b.json", "ignored.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	imp := &stubImporter{}
	w := NewWatcher(dir, imp, nil)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if got := imp.count(); got != 2 {
		t.Errorf("expected 2 imports, got %d", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "ignored.txt")); err != nil {
		t.Errorf("non-transcript file should be left alone: %v", err)
	}
}

func TestWatcherLeavesFailedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	imp := &stubImporter{err: errors.New("parse error")}
	w := NewWatcher(dir, imp, nil)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("failed file should remain for inspection: %v", err)
	}
}
