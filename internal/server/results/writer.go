package results

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/lox/rpsmatch/internal/fileutil"
)

// testFilePrefix marks records from test sessions so analysis can skip them.
const testFilePrefix = "TEST_"

// maxConsecutiveFailures disables the writer after this many write errors in
// a row, on the assumption the output directory is gone or unwritable.
const maxConsecutiveFailures = 3

// Writer persists session records asynchronously. Enqueue never blocks the
// caller and write failures are logged, never surfaced to session handling.
type Writer struct {
	dir    string
	clock  quartz.Clock
	logger zerolog.Logger
	jobs   chan Record
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewWriter creates the output directory if needed and starts the background
// writer goroutine.
func NewWriter(dir string, logger zerolog.Logger, clock quartz.Clock) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating results directory: %w", err)
	}
	w := &Writer{
		dir:    dir,
		clock:  clock,
		logger: logger.With().Str("component", "results").Logger(),
		jobs:   make(chan Record, 64),
		done:   make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Enqueue hands a record to the background writer. Records arriving after
// Close, or when the queue is full, are dropped with a log entry rather than
// stalling the session.
func (w *Writer) Enqueue(rec Record) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		w.logger.Warn().Str("session_id", rec.SessionID).Msg("writer closed, dropping record")
		return
	}
	select {
	case w.jobs <- rec:
	default:
		w.logger.Error().Str("session_id", rec.SessionID).Msg("results queue full, dropping record")
	}
}

// Close flushes queued records and stops the writer.
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.jobs)
	w.mu.Unlock()
	<-w.done
}

func (w *Writer) run() {
	defer close(w.done)

	failures := 0
	disabled := false
	for rec := range w.jobs {
		if disabled {
			continue
		}
		if err := w.write(rec); err != nil {
			failures++
			w.logger.Error().Err(err).
				Str("session_id", rec.SessionID).
				Int("consecutive_failures", failures).
				Msg("failed to write session record")
			if failures >= maxConsecutiveFailures {
				disabled = true
				w.logger.Error().Msg("result writing disabled after repeated failures")
			}
			continue
		}
		failures = 0
	}
}

func (w *Writer) write(rec Record) error {
	rec.WrittenAt = w.clock.Now().UTC()

	name := rec.SessionID + ".json"
	if rec.IsTest {
		name = testFilePrefix + name
	}
	path := filepath.Join(w.dir, name)

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	w.logger.Info().
		Str("session_id", rec.SessionID).
		Str("path", path).
		Int("rounds", len(rec.Rounds)).
		Bool("istest", rec.IsTest).
		Msg("session record written")
	return nil
}
