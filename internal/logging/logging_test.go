package logging

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, expected %v", in, got, want)
		}
	}
}

// recordingSender collects forwarded text
type recordingSender struct {
	mu        sync.Mutex
	forwarded []string
	delay     time.Duration
}

func (r *recordingSender) send(ctx context.Context, text string) error {
	time.Sleep(r.delay)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forwarded = append(r.forwarded, text)
	return nil
}

func (r *recordingSender) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.forwarded...)
}

func TestAdminHook_ForwardsWarnings(t *testing.T) {
	rec := &recordingSender{}
	hook := NewAdminHook(zerolog.Nop())
	hook.SetSender(rec.send)
	hook.Start()

	logger := zerolog.New(&bytes.Buffer{}).Hook(hook)
	logger.Info().Msg("started")
	logger.Warn().Msg("all groups are full")
	logger.Error().Msg("uncaught error")
	hook.Stop()

	forwarded := rec.texts()
	if len(forwarded) != 2 {
		t.Fatalf("Expected 2 forwarded events, got %d: %v", len(forwarded), forwarded)
	}
	if forwarded[0] != "WARN: all groups are full" {
		t.Errorf("Unexpected forward %q", forwarded[0])
	}
	if forwarded[1] != "ERROR: uncaught error" {
		t.Errorf("Unexpected forward %q", forwarded[1])
	}
}

func TestAdminHook_ConcurrentEventsDuringSend(t *testing.T) {
	rec := &recordingSender{delay: 100 * time.Millisecond}
	hook := NewAdminHook(zerolog.Nop())
	hook.SetSender(rec.send)
	hook.Start()
	logger := zerolog.New(&bytes.Buffer{}).Hook(hook)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Warn().Msg("heartbeat failed")
	}()
	wg.Wait()

	// The first forward is still sleeping in the sender
	time.Sleep(20 * time.Millisecond)
	logger.Error().Msg("uncaught error in friends: boom")
	hook.Stop()

	forwarded := rec.texts()
	expected := []string{"WARN: heartbeat failed", "ERROR: uncaught error in friends: boom"}
	if strings.Join(forwarded, "|") != strings.Join(expected, "|") {
		t.Errorf("Expected %v, got %v", expected, forwarded)
	}
}

func TestAdminHook_NoRecursion(t *testing.T) {
	hook := NewAdminHook(zerolog.Nop())
	logger := zerolog.New(&bytes.Buffer{}).Hook(hook)

	var mu sync.Mutex
	calls := 0
	hook.SetSender(func(ctx context.Context, text string) error {
		mu.Lock()
		calls++
		mu.Unlock()
		// A sender that logs with its context must not loop
		logger.Error().Ctx(ctx).Msg("send failed")
		return nil
	})
	hook.Start()

	logger.Error().Msg("boom")
	hook.Stop()

	if calls != 1 {
		t.Errorf("Expected 1 send, got %d", calls)
	}
}

func TestAdminHook_SendFailureLogged(t *testing.T) {
	var buf bytes.Buffer
	hook := NewAdminHook(zerolog.New(&buf))
	hook.SetSender(func(ctx context.Context, text string) error {
		return errors.New("not logged in")
	})
	hook.Start()

	logger := zerolog.New(io.Discard).Hook(hook)
	logger.Warn().Msg("something")
	hook.Stop()

	if !strings.Contains(buf.String(), "not logged in") {
		t.Errorf("Expected send failure in fallback log, got %q", buf.String())
	}
}

func TestAdminHook_NoSender(t *testing.T) {
	hook := NewAdminHook(zerolog.Nop())
	hook.Start()
	logger := zerolog.New(&bytes.Buffer{}).Hook(hook)
	logger.Error().Msg("nobody listening")
	hook.Stop()

	// Events after Stop are ignored
	logger.Error().Msg("too late")
}

func TestNew_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "bot.log")

	logger, closer, err := New("debug", path)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Debug().Str("k", "v").Msg("hello")
	closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), `"message":"hello"`) {
		t.Errorf("Expected JSON line in log file, got %q", data)
	}
}
