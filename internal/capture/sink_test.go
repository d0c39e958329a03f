package capture

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestSink_TrySave(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.pdf")
	s := NewSink()

	if s.Saved() {
		t.Fatal("new sink reports saved")
	}
	if !s.TrySave([]byte("first"), dest) {
		t.Fatal("first TrySave failed")
	}
	if !s.Saved() || s.Path() != dest {
		t.Fatalf("after save: saved=%v path=%q", s.Saved(), s.Path())
	}

	// Losers must not overwrite the file or the path.
	other := filepath.Join(t.TempDir(), "other.pdf")
	if s.TrySave([]byte("second"), other) {
		t.Fatal("second TrySave succeeded")
	}
	if s.Path() != dest {
		t.Errorf("path changed to %q", s.Path())
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	if !bytes.Equal(data, []byte("first")) {
		t.Errorf("artifact content = %q, want %q", data, "first")
	}
	if _, err := os.Stat(other); !os.IsNotExist(err) {
		t.Error("losing TrySave wrote a file")
	}
}

func TestSink_CreatesDirectories(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "a", "b", "out.pdf")
	s := NewSink()
	if !s.TrySave([]byte("x"), dest) {
		t.Fatal("TrySave failed")
	}
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
}

func TestSink_FailedWriteLeavesUnsaved(t *testing.T) {
	// Destination directory path runs through a regular file, so the write
	// cannot succeed.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(blocker, "sub", "out.pdf")

	s := NewSink()
	if s.TrySave([]byte("x"), dest) {
		t.Fatal("TrySave succeeded through a file")
	}
	if s.Saved() {
		t.Error("failed write marked the sink saved")
	}

	// A later channel can still win.
	good := filepath.Join(t.TempDir(), "out.pdf")
	if !s.TrySave([]byte("x"), good) {
		t.Error("retry after failed write did not succeed")
	}
}

func TestSink_AtMostOnceUnderConcurrency(t *testing.T) {
	dir := t.TempDir()
	s := NewSink()

	const writers = 64
	var wg sync.WaitGroup
	wins := make(chan string, writers)

	for i := 0; i < writers; i++ {
		dest := filepath.Join(dir, fmt.Sprintf("out-%d.pdf", i))
		payload := []byte(fmt.Sprintf("payload-%d", i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.TrySave(payload, dest) {
				wins <- dest
			}
		}()
	}
	wg.Wait()
	close(wins)

	var winners []string
	for w := range wins {
		winners = append(winners, w)
	}
	if len(winners) != 1 {
		t.Fatalf("want exactly one winning writer, got %d", len(winners))
	}
	if s.Path() != winners[0] {
		t.Errorf("sink path %q does not match winning destination %q", s.Path(), winners[0])
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Errorf("want exactly one file on disk, got %d", len(files))
	}
}
