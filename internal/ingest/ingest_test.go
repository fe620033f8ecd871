package ingest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/joseph-ayodele/invoice-pipeline/internal/async"
	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScanDirectory(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{
		"b.pdf", "a.PNG", "notes.txt", "sub/c.jpeg", ".hidden.pdf", ".cache/d.pdf", "sub/deeper/e.webp",
	} {
		touch(t, filepath.Join(root, name))
	}

	paths, stats, err := ScanDirectory(root, true)
	if err != nil {
		t.Fatalf("ScanDirectory() error = %v", err)
	}
	want := []string{
		filepath.Join(root, "a.PNG"),
		filepath.Join(root, "b.pdf"),
		filepath.Join(root, "sub", "c.jpeg"),
		filepath.Join(root, "sub", "deeper", "e.webp"),
	}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("paths = %v, want %v", paths, want)
	}
	if stats.Matched != 4 || stats.Skipped != 1 || stats.Scanned != 5 {
		t.Errorf("stats = %+v", stats)
	}

	all, _, err := ScanDirectory(root, false)
	if err != nil || len(all) != 6 {
		t.Errorf("ScanDirectory(skipHidden=false) = %v, %v", all, err)
	}

	if _, _, err := ScanDirectory(filepath.Join(root, "missing"), true); err == nil {
		t.Error("expected an error for a missing root")
	}
	if _, _, err := ScanDirectory("  ", true); err == nil {
		t.Error("expected an error for an empty root")
	}
}

func receive(t *testing.T, ch <-chan string, n int) []string {
	t.Helper()
	var got []string
	deadline := time.After(3 * time.Second)
	for len(got) < n {
		select {
		case p, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed after %v", got)
			}
			got = append(got, p)
		case <-deadline:
			t.Fatalf("timed out after %v", got)
		}
	}
	return got
}

func TestStartWatcher(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "existing.pdf")
	touch(t, existing)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{
		Roots: []string{root}, InitialScan: true, Debounce: 50 * time.Millisecond, Logger: quietLogger(),
	})
	if err != nil {
		t.Fatalf("StartWatcher() error = %v", err)
	}

	if got := receive(t, events, 1); got[0] != existing {
		t.Errorf("initial scan = %v", got)
	}

	touch(t, filepath.Join(root, "ignored.txt"))
	fresh := filepath.Join(root, "fresh.png")
	for i := 0; i < 3; i++ {
		touch(t, fresh)
	}
	if got := receive(t, events, 1); got[0] != fresh {
		t.Errorf("event = %v, want %s", got, fresh)
	}
	select {
	case p := <-events:
		t.Errorf("burst was not coalesced, extra event %s", p)
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	for range events {
	}
}

func TestStartWatcher_NoRoots(t *testing.T) {
	if _, _, err := StartWatcher(context.Background(), WatchConfig{Logger: quietLogger()}); err == nil {
		t.Error("expected an error without roots")
	}
}

type recordingSubmitter struct {
	mu     sync.Mutex
	jobs   []async.Job
	closed bool
}

func (s *recordingSubmitter) Enqueue(_ context.Context, job async.Job) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", common.ErrQueueClosed
	}
	s.jobs = append(s.jobs, job)
	return "id", nil
}

func TestFeed(t *testing.T) {
	paths := make(chan string, 3)
	paths <- "a.pdf"
	paths <- "b.pdf"
	close(paths)

	sub := &recordingSubmitter{}
	Feed(context.Background(), paths, sub, "Acme", quietLogger())
	if len(sub.jobs) != 2 || sub.jobs[1].Path != "b.pdf" || sub.jobs[0].VendorHint != "Acme" {
		t.Errorf("jobs = %+v", sub.jobs)
	}

	open := make(chan string, 1)
	open <- "c.pdf"
	closedQueue := &recordingSubmitter{closed: true}
	done := make(chan struct{})
	go func() {
		Feed(context.Background(), open, closedQueue, "", quietLogger())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("Feed did not stop on a closed queue")
	}
}
