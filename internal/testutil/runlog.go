package testutil

import (
	"strings"
	"sync"
)

// MemoryLog is a runlog.Appender that keeps lines in memory.
type MemoryLog struct {
	mu    sync.Mutex
	lines []string
	Err   error
}

// Append implements runlog.Appender.
func (l *MemoryLog) Append(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return l.Err
	}
	l.lines = append(l.lines, line)
	return nil
}

// Lines returns the appended lines.
func (l *MemoryLog) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

// Contains reports whether any line contains substr.
func (l *MemoryLog) Contains(substr string) bool {
	for _, line := range l.Lines() {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}
