package ultralink

/*------------------------------------------------------------------
 *
 * Purpose:   	Hold the shared secret outside the Go heap.
 *
 * Description:	The bytes live in an anonymous mmap region so the
 *		garbage collector never copies them.  We try to mlock
 *		the region against swap, but many desktop accounts
 *		have a tiny RLIMIT_MEMLOCK, so failure is only logged.
 *		Close zeroes the bytes before unmapping.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

var errSecretClosed = errors.New("shared secret closed")

type SharedSecret struct {
	mu     sync.Mutex
	data   []byte
	locked bool
	closed bool
}

// NewSharedSecret copies src into protected memory and zeroes src.
func NewSharedSecret(src []byte) (*SharedSecret, error) {
	if len(src) == 0 {
		return nil, fmt.Errorf("shared secret: empty")
	}

	var data, err = unix.Mmap(-1, 0, len(src), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("shared secret: mmap: %w", err)
	}

	var s = &SharedSecret{data: data}

	if err := unix.Mlock(data); err != nil {
		Logger().Debug("shared secret not locked in memory", "err", err)
	} else {
		s.locked = true
	}

	copy(s.data, src)
	clear(src)

	return s, nil
}

func (s *SharedSecret) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// Locked tells whether mlock succeeded.
func (s *SharedSecret) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked
}

// with calls fn with the secret bytes.  fn must not retain them.
func (s *SharedSecret) with(fn func(key []byte) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errSecretClosed
	}
	return fn(s.data)
}

// Close zeroes and releases the secret.  Calling it again does nothing.
func (s *SharedSecret) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	clear(s.data)

	var firstErr error
	if s.locked {
		if err := unix.Munlock(s.data); err != nil {
			firstErr = fmt.Errorf("shared secret: munlock: %w", err)
		}
	}
	if err := unix.Munmap(s.data); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("shared secret: munmap: %w", err)
	}

	s.data = nil
	return firstErr
}
