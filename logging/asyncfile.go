package logging

import (
	"fmt"
	"os"
	"sync"
)

// Appender persists log lines. store.FileStore satisfies it.
type Appender interface {
	WriteFile(path string, data []byte) error
	AppendFile(path string, data []byte) error
}

// AsyncFile mirrors log output to a file without blocking the caller.
// The file is truncated when the AsyncFile is created.
type AsyncFile struct {
	path    string
	store   Appender
	queue   chan []byte
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewAsyncFile truncates path and starts the background writer.
func NewAsyncFile(path string, store Appender) (*AsyncFile, error) {
	if err := store.WriteFile(path, nil); err != nil {
		return nil, fmt.Errorf("failed to truncate log file %s: %w", path, err)
	}

	af := &AsyncFile{
		path:  path,
		store: store,
		queue: make(chan []byte, 100),
	}
	af.wg.Add(1)
	go af.processQueue()
	return af, nil
}

// Write queues p for writing. It implements io.Writer.
func (af *AsyncFile) Write(p []byte) (int, error) {
	af.mu.Lock()
	defer af.mu.Unlock()

	if af.stopped {
		return 0, fmt.Errorf("async file %s is closed", af.path)
	}

	// Handlers reuse their buffers once Write returns.
	data := make([]byte, len(p))
	copy(data, p)
	af.queue <- data
	return len(p), nil
}

func (af *AsyncFile) processQueue() {
	defer af.wg.Done()

	for data := range af.queue {
		if err := af.store.AppendFile(af.path, data); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing to log file %s: %v\n", af.path, err)
		}
	}
}

// Close drains pending writes.
func (af *AsyncFile) Close() error {
	af.mu.Lock()
	if !af.stopped {
		af.stopped = true
		close(af.queue)
	}
	af.mu.Unlock()

	af.wg.Wait()
	return nil
}
