package ultralink

import (
	"errors"
	"fmt"
)

var (
	// Construction time.  Fatal to the instance being built.
	ErrInvalidParameters = errors.New("invalid link parameters")

	// Synchronization.  Recoverable: keep feeding samples or restart.
	ErrPreambleNotFound = errors.New("preamble not found")
	ErrMarkerNotFound   = errors.New("marker not found")

	// Input ended before the frame's announced bit count was received.
	ErrFrameTruncated = errors.New("frame truncated")

	// One or more FEC blocks could not be repaired.  Ask for retransmission.
	ErrFrameCorrupt  = errors.New("frame corrupt")
	ErrUncorrectable = errors.New("uncorrectable block")

	ErrPayloadTooLarge = errors.New("payload too large")

	// Session.
	ErrSessionNotReady   = errors.New("session not ready: no shared secret established")
	ErrKeyExchangeFailed = errors.New("key exchange failed")
	ErrAuthFailed        = errors.New("message authentication failed")
)

// FrameCorruptError reports how much of a frame could not be repaired.
// The payload is never returned alongside it.
type FrameCorruptError struct {
	FailedBlocks int  // Blocks that were uncorrectable.
	TotalBlocks  int  // Blocks examined, including the length header.
	Header       bool // The length header itself failed, or announced an impossible length.
}

func (e *FrameCorruptError) Error() string {
	if e.Header {
		return fmt.Sprintf("%s: bad length header", ErrFrameCorrupt)
	}
	return fmt.Sprintf("%s: %d of %d blocks uncorrectable", ErrFrameCorrupt, e.FailedBlocks, e.TotalBlocks)
}

func (e *FrameCorruptError) Is(target error) bool {
	return target == ErrFrameCorrupt
}
