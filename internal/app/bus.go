package app

import (
	"log/slog"
	"sync"
)

// bus is the change notification mechanism: subscribers are told that the
// local state changed, after the fact, with no payload. A panicking
// observer is logged and skipped so it cannot break the others.
type bus struct {
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[int]func()
	nextID int
}

func newBus(logger *slog.Logger) *bus {
	return &bus{logger: logger, subs: make(map[int]func())}
}

func (b *bus) subscribe(fn func()) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

func (b *bus) emit() {
	b.mu.Lock()
	fns := make([]func(), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		b.call(fn)
	}
}

func (b *bus) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("change subscriber panicked", "panic", r)
		}
	}()
	fn()
}
