package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// New builds the bot logger. The console shows warnings and above; the
// optional file receives JSON lines at the configured level.
func New(level, file string) (zerolog.Logger, io.Closer, error) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	lvl := ParseLevel(level)
	console := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}

	writers := []io.Writer{
		&zerolog.FilteredLevelWriter{
			Writer: zerolog.LevelWriterAdapter{Writer: console},
			Level:  zerolog.WarnLevel,
		},
	}

	var closer io.Closer = nopCloser{}
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, f)
		closer = f
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(lvl).With().Timestamp().Logger()
	return logger, closer, nil
}

// ParseLevel parses debug, info, warn or error. Unknown values mean info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// forwardQueueSize bounds the events waiting to be forwarded
const forwardQueueSize = 64

type forwardingKey struct{}

// AdminHook forwards warning and error events to the primary admin as chat text.
// Events are queued and sent in order by a single forwarder goroutine. Events
// logged with the send context (see Sender) are not forwarded again.
type AdminHook struct {
	mu      sync.RWMutex
	send    Sender
	queue   chan string
	stopped bool
	wg      sync.WaitGroup

	// logger records forwarding failures; it must not carry this hook
	logger zerolog.Logger
}

// Sender delivers forwarded text. Anything it logs should use ctx via Event.Ctx.
type Sender func(ctx context.Context, text string) error

// NewAdminHook creates a hook with no sender; nothing is forwarded until SetSender.
// logger receives forwarding failures.
func NewAdminHook(logger zerolog.Logger) *AdminHook {
	return &AdminHook{
		queue:  make(chan string, forwardQueueSize),
		logger: logger,
	}
}

// SetSender sets the function that delivers forwarded text
func (h *AdminHook) SetSender(send Sender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.send = send
}

// Start starts the forwarder goroutine
func (h *AdminHook) Start() {
	h.wg.Add(1)
	go h.loop()
}

// Stop stops accepting events and waits for the queued ones to be sent
func (h *AdminHook) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	close(h.queue)
	h.mu.Unlock()

	h.wg.Wait()
}

// Run implements zerolog.Hook
func (h *AdminHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	if level < zerolog.WarnLevel || level == zerolog.NoLevel || msg == "" {
		return
	}
	if IsForwarding(e.GetCtx()) {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.stopped || h.send == nil {
		return
	}

	select {
	case h.queue <- FormatForward(level, msg):
	default:
		h.logger.Warn().Str("event", msg).Msg("admin forward queue full, event dropped")
	}
}

func (h *AdminHook) loop() {
	defer h.wg.Done()

	ctx := context.WithValue(context.Background(), forwardingKey{}, true)
	for text := range h.queue {
		h.mu.RLock()
		send := h.send
		h.mu.RUnlock()
		if send == nil {
			continue
		}
		if err := send(ctx, text); err != nil {
			h.logger.Warn().Err(err).Msg("failed to forward log event to admin")
		}
	}
}

// IsForwarding reports whether ctx belongs to an admin forward in progress
func IsForwarding(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(forwardingKey{}).(bool)
	return v
}

// FormatForward formats a forwarded log line
func FormatForward(level zerolog.Level, msg string) string {
	return fmt.Sprintf("%s: %s", strings.ToUpper(level.String()), msg)
}
