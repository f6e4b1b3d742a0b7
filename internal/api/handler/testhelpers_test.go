package handler

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/iconidentify/tunegrab/internal/bot"
	"github.com/iconidentify/tunegrab/internal/worker"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeChecker struct {
	err error
}

func (f fakeChecker) Available() error { return f.err }

type fakePool struct {
	stats worker.Stats
}

func (f fakePool) Stats() worker.Stats { return f.stats }

type fakeDispatcher struct {
	mu  sync.Mutex
	got []bot.Inbound
	err error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, in bot.Inbound) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, in)
	return f.err
}
