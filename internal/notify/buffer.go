package notify

import "sync"

// DefaultCapacity matches the five lines the status page shows.
const DefaultCapacity = 5

// LogBuffer keeps the most recent notification lines, newest first.
type LogBuffer struct {
	mu       sync.RWMutex
	lines    []string
	capacity int
}

func NewLogBuffer(capacity int) *LogBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &LogBuffer{
		lines:    make([]string, 0, capacity),
		capacity: capacity,
	}
}

// Add puts line at the front and evicts the oldest line on overflow.
func (b *LogBuffer) Add(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.lines) < b.capacity {
		b.lines = append(b.lines, "")
	}
	copy(b.lines[1:], b.lines[:len(b.lines)-1])
	b.lines[0] = line
}

func (b *LogBuffer) Snapshot() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

func (b *LogBuffer) Capacity() int {
	return b.capacity
}
