package logger

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLogBufferConcurrentAccess(t *testing.T) {
	buffer, err := NewLogBuffer(100)
	require.NoError(t, err)

	var wg sync.WaitGroup
	numGoroutines := 10
	logsPerGoroutine := 100

	wg.Add(numGoroutines + 1)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < logsPerGoroutine; j++ {
				buffer.Add(LogEntry{Level: "INFO", Message: fmt.Sprintf("goroutine %d, iteration %d", id, j)})
			}
		}(i)
	}
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			assert.LessOrEqual(t, len(buffer.GetRecentLogs(10)), 10)
		}
	}()
	wg.Wait()

	total, dropped := buffer.GetStats()
	assert.Equal(t, uint64(numGoroutines*logsPerGoroutine), total)
	assert.Equal(t, total-100, dropped)
	assert.Len(t, buffer.GetRecentLogs(0), 100)
}

func TestLogBufferRingBufferBehavior(t *testing.T) {
	buffer, err := NewLogBuffer(3)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		buffer.Add(LogEntry{Message: fmt.Sprintf("m%d", i)})
	}

	logs := buffer.GetRecentLogs(0)
	require.Len(t, logs, 3)
	assert.Equal(t, "m2", logs[0].Message)
	assert.Equal(t, "m4", logs[2].Message)

	last := buffer.GetRecentLogs(2)
	require.Len(t, last, 2)
	assert.Equal(t, "m3", last[0].Message)
	assert.Equal(t, "m4", last[1].Message)

	_, err = NewLogBuffer(0)
	assert.Error(t, err)
}

func TestLoggerWritesToBuffer(t *testing.T) {
	buffer, err := NewLogBuffer(10)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.LogFile = filepath.Join(t.TempDir(), "tui.log")
	cfg.Console = false
	cfg.Buffer = buffer

	l, err := New(cfg)
	require.NoError(t, err)
	l.WithComponent("tui").Warn("curve graduated", zap.String("symbol", "MEME"))

	logs := buffer.GetRecentLogs(0)
	require.Len(t, logs, 1)
	assert.Equal(t, "WARN", logs[0].Level)
	assert.Equal(t, "curve graduated", logs[0].Message)
	assert.Equal(t, "MEME", logs[0].Fields["symbol"])
	assert.Equal(t, "tui", logs[0].Fields["component"])
	assert.False(t, logs[0].Timestamp.IsZero())
}
