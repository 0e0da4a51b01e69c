package events

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/boodschap/backend/internal/domain"
)

const defaultBuffer = 256

// DropCounter is told about every event lost to a full buffer
type DropCounter interface {
	EventDropped()
}

// LogSink writes events as structured log lines
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a sink on the given logger
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "events").Logger()}
}

// Emit logs the event at info level
func (s *LogSink) Emit(ctx context.Context, event domain.Event) {
	s.logger.Info().
		Str("event", event.Name).
		Str("session_id", event.SessionID).
		Interface("payload", event.Payload).
		Msg("analytics event")
}

// FileSink appends events as JSON lines from a single writer goroutine.
// Emit never blocks: when the buffer is full the event is dropped and counted.
type FileSink struct {
	mu      sync.RWMutex
	closed  bool
	queue   chan domain.Event
	done    chan struct{}
	out     io.WriteCloser
	dropped DropCounter
	logger  zerolog.Logger
}

// NewFileSink opens path for appending. buffer <= 0 uses the default size.
func NewFileSink(path string, buffer int, dropped DropCounter, logger zerolog.Logger) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return newFileSink(f, buffer, dropped, logger), nil
}

func newFileSink(out io.WriteCloser, buffer int, dropped DropCounter, logger zerolog.Logger) *FileSink {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	s := &FileSink{
		queue:   make(chan domain.Event, buffer),
		done:    make(chan struct{}),
		out:     out,
		dropped: dropped,
		logger:  logger.With().Str("component", "events").Logger(),
	}
	go s.run()
	return s
}

// Emit queues the event
func (s *FileSink) Emit(ctx context.Context, event domain.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.drop(event)
		return
	}
	select {
	case s.queue <- event:
	default:
		s.drop(event)
	}
}

func (s *FileSink) drop(event domain.Event) {
	if s.dropped != nil {
		s.dropped.EventDropped()
	}
	s.logger.Debug().Str("event", event.Name).Msg("event dropped")
}

func (s *FileSink) run() {
	defer close(s.done)

	w := bufio.NewWriter(s.out)
	enc := json.NewEncoder(w)
	for event := range s.queue {
		if err := enc.Encode(event); err != nil {
			s.logger.Error().Err(err).Str("event", event.Name).Msg("failed to encode event")
			continue
		}
		// flush once the burst is written
		if len(s.queue) == 0 {
			if err := w.Flush(); err != nil {
				s.logger.Error().Err(err).Msg("failed to write event log")
			}
		}
	}
	if err := w.Flush(); err != nil {
		s.logger.Error().Err(err).Msg("failed to write event log")
	}
}

// Close drains queued events and closes the file
func (s *FileSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	return s.out.Close()
}

// MultiSink fans an event out to several sinks
type MultiSink []domain.EventSink

// Emit forwards to every sink
func (m MultiSink) Emit(ctx context.Context, event domain.Event) {
	for _, sink := range m {
		sink.Emit(ctx, event)
	}
}
