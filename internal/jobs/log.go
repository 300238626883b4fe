package jobs

import "sync"

// Log is the append-only, human-readable record of one job. Lines are
// never rewritten or dropped.
type Log struct {
	mu    sync.RWMutex
	lines []string
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{}
}

// Append adds one line. Multi-line text stays one entry.
func (l *Log) Append(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, line)
}

// Lines returns a copy of all entries in order.
func (l *Log) Lines() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.lines...)
}
