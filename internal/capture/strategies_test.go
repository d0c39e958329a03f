package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// chainOfSix builds a six-entry chain where only entry succeedAt (1-based)
// succeeds; every attempt is recorded.
func chainOfSix(succeedAt int, sink *Sink, dest string, attempts *[]int) []Strategy {
	var out []Strategy
	for i := 1; i <= 6; i++ {
		i := i
		out = append(out, Strategy{
			Name: fmt.Sprintf("strategy-%d", i),
			Run: func(ctx context.Context) (string, error) {
				*attempts = append(*attempts, i)
				if i == succeedAt {
					return claim(sink, []byte("doc"), dest)
				}
				return "", errors.New("unavailable")
			},
		})
	}
	return out
}

func TestRunChain_Ordering(t *testing.T) {
	for succeedAt := 1; succeedAt <= 6; succeedAt++ {
		sink := NewSink()
		dest := filepath.Join(t.TempDir(), "out.pdf")
		var attempts []int

		path := RunChain(context.Background(), sink, chainOfSix(succeedAt, sink, dest, &attempts), zap.NewNop())
		if path != dest {
			t.Fatalf("succeedAt=%d: path = %q, want %q", succeedAt, path, dest)
		}
		if len(attempts) != succeedAt {
			t.Fatalf("succeedAt=%d: attempted %v", succeedAt, attempts)
		}
		for i, a := range attempts {
			if a != i+1 {
				t.Errorf("succeedAt=%d: attempt %d was strategy %d", succeedAt, i, a)
			}
		}
	}
}

func TestRunChain_AllFail(t *testing.T) {
	sink := NewSink()
	dest := filepath.Join(t.TempDir(), "out.pdf")
	var attempts []int

	path := RunChain(context.Background(), sink, chainOfSix(0, sink, dest, &attempts), zap.NewNop())
	if path != "" {
		t.Errorf("path = %q, want empty", path)
	}
	if len(attempts) != 6 {
		t.Errorf("attempted %v, want all six", attempts)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("failing chain wrote a file")
	}
}

func TestRunChain_SkipsWhenSinkSaved(t *testing.T) {
	sink := NewSink()
	dest := filepath.Join(t.TempDir(), "out.pdf")
	if !sink.TrySave([]byte("already"), dest) {
		t.Fatal("priming sink failed")
	}

	ran := false
	path := RunChain(context.Background(), sink, []Strategy{{
		Name: "never",
		Run: func(ctx context.Context) (string, error) {
			ran = true
			return "", nil
		},
	}}, zap.NewNop())

	if ran {
		t.Error("strategy ran despite saved sink")
	}
	if path != dest {
		t.Errorf("path = %q, want %q", path, dest)
	}
}

func TestRunChain_StrategyTimeout(t *testing.T) {
	sink := NewSink()
	dest := filepath.Join(t.TempDir(), "out.pdf")

	start := time.Now()
	path := RunChain(context.Background(), sink, []Strategy{
		{
			Name:    "hangs",
			Timeout: 50 * time.Millisecond,
			Run: func(ctx context.Context) (string, error) {
				<-ctx.Done()
				return "", ctx.Err()
			},
		},
		{
			Name: "succeeds",
			Run: func(ctx context.Context) (string, error) {
				return claim(sink, []byte("doc"), dest)
			},
		},
	}, zap.NewNop())

	if path != dest {
		t.Fatalf("path = %q, want %q", path, dest)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("chain took %v; the timeout did not bite", elapsed)
	}
}

// A later strategy succeeding after an earlier one threw must leave exactly
// the later strategy's bytes at the destination.
func TestRunChain_FallbackWritesExactBytes(t *testing.T) {
	sink := NewSink()
	dest := filepath.Join(t.TempDir(), "out.pdf")
	payload := bytes.Repeat([]byte{0xAB}, 1200)

	path := RunChain(context.Background(), sink, []Strategy{
		{
			Name: "native-download",
			Run: func(ctx context.Context) (string, error) {
				return "", errors.New("download event never fired")
			},
		},
		{
			Name: "same-tab-response",
			Run: func(ctx context.Context) (string, error) {
				return claim(sink, payload, dest)
			},
		},
	}, zap.NewNop())

	if path != dest {
		t.Fatalf("path = %q, want %q", path, dest)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 1200 || !bytes.Equal(data, payload) {
		t.Errorf("artifact is %d bytes and differs from payload", len(data))
	}
}

// Passive capture firing concurrently with an active strategy: both complete,
// one file is written, and both channels observe the saved sink afterwards.
func TestRunChain_RacesPassiveCapture(t *testing.T) {
	sink := NewSink()
	dir := t.TempDir()
	activeDest := filepath.Join(dir, "active.pdf")
	passiveDest := filepath.Join(dir, "passive.pdf")

	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-release
		sink.TrySave([]byte("passive"), passiveDest)
	}()

	path := RunChain(context.Background(), sink, []Strategy{{
		Name: "active",
		Run: func(ctx context.Context) (string, error) {
			close(release)
			return claim(sink, []byte("active"), activeDest)
		},
	}}, zap.NewNop())
	wg.Wait()

	if !sink.Saved() {
		t.Fatal("no channel saved")
	}
	if path != sink.Path() {
		t.Errorf("chain path %q disagrees with sink path %q", path, sink.Path())
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Errorf("want exactly one file, got %d", len(files))
	}
}

func TestClaim_RaceLossReturnsWinningPath(t *testing.T) {
	sink := NewSink()
	won := filepath.Join(t.TempDir(), "won.pdf")
	lost := filepath.Join(t.TempDir(), "lost.pdf")

	if !sink.TrySave([]byte("winner"), won) {
		t.Fatal("priming sink failed")
	}
	path, err := claim(sink, []byte("loser"), lost)
	if err != nil {
		t.Fatalf("claim after race loss errored: %v", err)
	}
	if path != won {
		t.Errorf("claim returned %q, want winning path %q", path, won)
	}
	if _, err := os.Stat(lost); !os.IsNotExist(err) {
		t.Error("losing claim wrote a file")
	}
}

func TestViewStrategies_Order(t *testing.T) {
	got := ViewStrategies(nil, "out.pdf", "", NewSink(), zap.NewNop())
	want := []string{"native-download", "same-tab-response", "popup-fetch"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("strategy %d = %q, want %q", i, got[i].Name, name)
		}
		if got[i].Timeout != LongTimeout {
			t.Errorf("strategy %q timeout = %v, want %v", name, got[i].Timeout, LongTimeout)
		}
	}
}

func TestURLStrategies_Order(t *testing.T) {
	got := URLStrategies("https://x/doc.pdf", "out.pdf", "", NewSink())
	want := []string{"context-request", "force-anchor", "force-blob"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("strategy %d = %q, want %q", i, got[i].Name, name)
		}
	}
}
