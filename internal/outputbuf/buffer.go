package outputbuf

import (
	"fmt"
	"strings"
	"sync"
)

// DefaultCapacity is the number of lines retained when no explicit capacity
// is configured.
const DefaultCapacity = 200

// Buffer is a fixed-capacity ring of output lines. When full, Append evicts
// the oldest line. All methods are safe for concurrent use: the reader
// goroutine appends while the supervisor formats errors from the same buffer.
type Buffer struct {
	mu    sync.Mutex
	lines []string
	head  int // index of the oldest line
	size  int
	total uint64 // lines ever appended, including evicted ones
}

// New returns an empty Buffer retaining at most capacity lines.
// Panics if capacity is not positive.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		panic(fmt.Sprintf("pglitenv: output buffer capacity must be greater than 0, got %d", capacity))
	}
	return &Buffer{lines: make([]string, capacity)}
}

// Append stores line, evicting the oldest line when the buffer is full.
func (b *Buffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total++
	if b.size < len(b.lines) {
		b.lines[(b.head+b.size)%len(b.lines)] = line
		b.size++
		return
	}
	b.lines[b.head] = line
	b.head = (b.head + 1) % len(b.lines)
}

// Lines returns a copy of the retained lines, oldest first.
func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, b.size)
	for i := range b.size {
		out[i] = b.lines[(b.head+i)%len(b.lines)]
	}
	return out
}

// Len reports the number of retained lines.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Cap reports the maximum number of retained lines.
func (b *Buffer) Cap() int {
	return len(b.lines)
}

// Dropped reports how many lines were evicted since the buffer was created.
func (b *Buffer) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total - uint64(b.size)
}

// Join returns the retained lines joined with sep.
func (b *Buffer) Join(sep string) string {
	return strings.Join(b.Lines(), sep)
}
