package audio

import (
	"context"
	"io"
	"sync"
)

// Loopback is an in-memory medium: whatever is transmitted can be
// captured, after LeadIn samples of silence.  Capture returns io.EOF
// once everything transmitted so far has been read.
type Loopback struct {
	LeadIn int

	mu  sync.Mutex
	buf []int16
	pos int
}

func (l *Loopback) Transmit(ctx context.Context, samples []int16) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.buf) == 0 {
		l.buf = make([]int16, l.LeadIn, l.LeadIn+len(samples))
	}
	l.buf = append(l.buf, samples...)

	return nil
}

func (l *Loopback) Capture(ctx context.Context, buf []int16) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pos >= len(l.buf) {
		return 0, io.EOF
	}

	var n = copy(buf, l.buf[l.pos:])
	l.pos += n

	return n, nil
}

// Samples returns everything transmitted, lead-in included.
func (l *Loopback) Samples() []int16 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]int16(nil), l.buf...)
}
