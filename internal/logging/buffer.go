package logging

import (
	"context"
	"log/slog"
	"sync"

	"github.com/joshdurbin/linkregistry/internal/domain"
)

// DefaultBufferSize is the number of records kept by the log viewer
const DefaultBufferSize = 500

// Buffer is a bounded ring of recent log records
type Buffer struct {
	mu       sync.Mutex
	entries  []domain.LogEntry
	next     int
	full     bool
	capacity int
}

// NewBuffer creates a buffer holding at most capacity records
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &Buffer{
		entries:  make([]domain.LogEntry, capacity),
		capacity: capacity,
	}
}

// Handler wraps inner so that every record it accepts is also kept in the buffer
func (b *Buffer) Handler(inner slog.Handler) slog.Handler {
	return &bufferHandler{inner: inner, buf: b}
}

func (b *Buffer) add(entry domain.LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.next] = entry
	b.next = (b.next + 1) % b.capacity
	if b.next == 0 {
		b.full = true
	}
}

// Entries returns up to limit records at or above minLevel, newest first.
// limit <= 0 returns every matching record.
func (b *Buffer) Entries(minLevel slog.Level, limit int) []domain.LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := b.next
	if b.full {
		size = b.capacity
	}

	result := make([]domain.LogEntry, 0, size)
	for i := 0; i < size; i++ {
		idx := (b.next - 1 - i + b.capacity) % b.capacity
		entry := b.entries[idx]

		level, err := ParseLevel(entry.Level)
		if err == nil && level < minLevel {
			continue
		}

		result = append(result, entry)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result
}

// Len returns the number of records currently held
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.full {
		return b.capacity
	}
	return b.next
}

// Clear drops every record
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = make([]domain.LogEntry, b.capacity)
	b.next = 0
	b.full = false
}

type bufferHandler struct {
	inner  slog.Handler
	buf    *Buffer
	attrs  []slog.Attr
	prefix string
}

func (h *bufferHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *bufferHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make(map[string]string, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		flatten(attrs, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		flatten(attrs, h.prefix, a)
		return true
	})

	entry := domain.LogEntry{
		Time:    r.Time,
		Level:   r.Level.String(),
		Message: r.Message,
	}
	if len(attrs) > 0 {
		entry.Attrs = attrs
	}
	h.buf.add(entry)

	return h.inner.Handle(ctx, r)
}

func (h *bufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	qualified := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	qualified = append(qualified, h.attrs...)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		qualified = append(qualified, a)
	}

	return &bufferHandler{
		inner:  h.inner.WithAttrs(attrs),
		buf:    h.buf,
		attrs:  qualified,
		prefix: h.prefix,
	}
}

func (h *bufferHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &bufferHandler{
		inner:  h.inner.WithGroup(name),
		buf:    h.buf,
		attrs:  h.attrs,
		prefix: h.prefix + name + ".",
	}
}

// flatten writes a into dst, expanding groups into dotted keys
func flatten(dst map[string]string, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		groupPrefix := prefix
		if a.Key != "" {
			groupPrefix = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			flatten(dst, groupPrefix, ga)
		}
		return
	}

	dst[prefix+a.Key] = a.Value.String()
}
