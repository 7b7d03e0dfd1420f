// internal/history/csv.go
package history

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CSVWriter is a thread-safe append-only CSV journal with periodic flush.
type CSVWriter struct {
	mu       sync.Mutex
	writer   *csv.Writer
	file     *os.File
	ticker   *time.Ticker
	done     chan struct{}
	logger   *zap.Logger
	filePath string

	writtenRecords uint64
	flushCount     uint64
}

// NewCSVWriter opens filePath for appending. header is written only when the
// file is empty.
func NewCSVWriter(filePath string, header []string, flushInterval time.Duration, logger *zap.Logger) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	w := &CSVWriter{
		writer:   csv.NewWriter(file),
		file:     file,
		ticker:   time.NewTicker(flushInterval),
		done:     make(chan struct{}),
		logger:   logger,
		filePath: filePath,
	}

	if stat.Size() == 0 && len(header) > 0 {
		// заголовок не считается записью
		if err := w.writer.Write(header); err != nil {
			w.ticker.Stop()
			file.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
		w.writer.Flush()
	}

	go w.periodicFlush()
	return w, nil
}

// Path returns the journal file path.
func (w *CSVWriter) Path() string { return w.filePath }

// WriteRecord appends one row.
func (w *CSVWriter) WriteRecord(record []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	w.writtenRecords++
	return nil
}

// Flush forces buffered rows to disk.
func (w *CSVWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

func (w *CSVWriter) flushLocked() error {
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	w.flushCount++
	return nil
}

func (w *CSVWriter) periodicFlush() {
	for {
		select {
		case <-w.ticker.C:
			if err := w.Flush(); err != nil {
				w.logger.Error("Periodic CSV flush failed",
					zap.String("file", w.filePath),
					zap.Error(err))
			}
		case <-w.done:
			return
		}
	}
}

// Close flushes and closes the file.
func (w *CSVWriter) Close() error {
	close(w.done)
	w.ticker.Stop()

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.flushLocked(); err != nil {
		return err
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	w.logger.Info("CSV journal closed",
		zap.String("file", w.filePath),
		zap.Uint64("writtenRecords", w.writtenRecords),
		zap.Uint64("flushCount", w.flushCount))
	return nil
}

// Stats returns the number of rows written and flushes performed.
func (w *CSVWriter) Stats() (records, flushes uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writtenRecords, w.flushCount
}
