package dmabuf

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"golang.org/x/sys/unix"
)

// newTestFD returns the read end of a fresh pipe. Ownership passes to the
// caller (normally straight into a Builder).
func newTestFD(t testing.TB) int {
	t.Helper()
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	if err := unix.Close(p[1]); err != nil {
		t.Fatalf("close pipe write end: %v", err)
	}
	return p[0]
}

// closeRecorder counts closes per descriptor while still closing them.
type closeRecorder struct {
	mu     sync.Mutex
	counts map[int]int
}

// recordCloses installs a closeRecorder for the duration of the test.
func recordCloses(t *testing.T) *closeRecorder {
	t.Helper()
	r := &closeRecorder{counts: make(map[int]int)}
	orig := closeFD
	closeFD = func(fd int) error {
		r.mu.Lock()
		r.counts[fd]++
		r.mu.Unlock()
		return orig(fd)
	}
	t.Cleanup(func() { closeFD = orig })
	return r
}

func (r *closeRecorder) count(fd int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[fd]
}

func (r *closeRecorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.counts {
		n += c
	}
	return n
}

// captureLogs routes debug-level logs to w for the duration of the test.
func captureLogs(t *testing.T, w io.Writer) {
	t.Helper()
	orig := Logger()
	SetLogger(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { SetLogger(orig) })
}

// buildTestBuffer builds a buffer with one plane per index.
func buildTestBuffer(t *testing.T, size Size, format Fourcc, indices ...uint32) *Dmabuf {
	t.Helper()
	b := NewBuilder(size, format, 0)
	for _, idx := range indices {
		if !b.AddPlane(newTestFD(t), idx, idx*64, 256, ModifierLinear) {
			t.Fatalf("AddPlane(%d) = false", idx)
		}
	}
	h := b.Build()
	if h == nil {
		t.Fatal("Build() = nil")
	}
	return h
}
