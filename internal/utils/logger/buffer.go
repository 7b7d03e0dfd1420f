package logger

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// LogEntry represents a single log entry in the buffer
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"msg"`
	Fields    map[string]interface{} `json:"-"`
}

// LogBuffer is a thread-safe ring buffer of recent log entries. It is an
// io.Writer for zap's JSON encoder, one entry per Write.
type LogBuffer struct {
	mu           sync.Mutex
	ringBuffer   []LogEntry
	maxSize      int
	currentIndex int
	wrapped      bool

	totalEntries uint64
	dropped      uint64
}

// NewLogBuffer creates a log buffer holding at most maxSize entries.
func NewLogBuffer(maxSize int) (*LogBuffer, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("log buffer size must be positive, got %d", maxSize)
	}
	return &LogBuffer{
		ringBuffer: make([]LogEntry, maxSize),
		maxSize:    maxSize,
	}, nil
}

// Add appends an entry, overwriting the oldest one when full.
func (lb *LogBuffer) Add(entry LogEntry) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if lb.wrapped {
		lb.dropped++
	}
	lb.ringBuffer[lb.currentIndex] = entry
	lb.currentIndex = (lb.currentIndex + 1) % lb.maxSize
	if lb.currentIndex == 0 {
		lb.wrapped = true
	}
	lb.totalEntries++
}

// Write decodes one JSON-encoded zap entry.
func (lb *LogBuffer) Write(p []byte) (int, error) {
	fields := make(map[string]interface{})
	if err := json.Unmarshal(p, &fields); err != nil {
		return 0, fmt.Errorf("decode log entry: %w", err)
	}

	entry := LogEntry{Timestamp: time.Now().UTC(), Fields: fields}
	if v, ok := fields["msg"].(string); ok {
		entry.Message = v
		delete(fields, "msg")
	}
	if v, ok := fields["level"].(string); ok {
		entry.Level = v
		delete(fields, "level")
	}
	if v, ok := fields["timestamp"].(string); ok {
		if ts, err := time.Parse("2006-01-02T15:04:05.000Z0700", v); err == nil {
			entry.Timestamp = ts
		}
		delete(fields, "timestamp")
	}

	lb.Add(entry)
	return len(p), nil
}

// Sync is a no-op; entries live in memory only.
func (lb *LogBuffer) Sync() error { return nil }

// GetRecentLogs returns up to limit most recent entries, oldest first.
// limit <= 0 returns everything buffered.
func (lb *LogBuffer) GetRecentLogs(limit int) []LogEntry {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	count := lb.currentIndex
	start := 0
	if lb.wrapped {
		count = lb.maxSize
		start = lb.currentIndex
	}
	if limit > 0 && limit < count {
		start += count - limit
		count = limit
	}

	logs := make([]LogEntry, 0, count)
	for i := 0; i < count; i++ {
		logs = append(logs, lb.ringBuffer[(start+i)%lb.maxSize])
	}
	return logs
}

// GetStats returns buffer statistics
func (lb *LogBuffer) GetStats() (total, dropped uint64) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.totalEntries, lb.dropped
}
