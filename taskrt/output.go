package taskrt

import (
	"bytes"
	"io"
	"sync"

	"github.com/fredrikaverpil/tasktree"
)

// bufferedOutput captures the output of one parallel branch.
// Flush writes it to the parent in one piece.
type bufferedOutput struct {
	parent *tasktree.Output
	mu     sync.Mutex
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newBufferedOutput(parent *tasktree.Output) *bufferedOutput {
	return &bufferedOutput{parent: parent}
}

// Output returns writers into the buffers, safe for concurrent use.
func (b *bufferedOutput) Output() *tasktree.Output {
	return &tasktree.Output{
		Stdout: &lockedWriter{mu: &b.mu, w: &b.stdout},
		Stderr: &lockedWriter{mu: &b.mu, w: &b.stderr},
	}
}

// Flush writes all buffered output to the parent output.
func (b *bufferedOutput) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, _ = io.Copy(b.parent.Stdout, &b.stdout)
	_, _ = io.Copy(b.parent.Stderr, &b.stderr)
}

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
