package ultralink

/*------------------------------------------------------------------
 *
 * Purpose:   	Pairing and protected payload exchange between two
 *		devices over the acoustic link.
 *
 * Description:	The initiator draws a random secret and sends it as an
 *		ordinary modem frame.  The responder demodulates it and
 *		keeps it.
 *
 *		*** This exchange is NOT authenticated. ***
 *
 *		Anybody within earshot can record the key frame, and
 *		anybody louder than the initiator can substitute their
 *		own.  The fingerprint lets the two users compare keys
 *		by some other means, which is the only defence offered.
 *
 *		States only move forward:
 *
 *		Uninitialized -> AwaitingKey -> KeyEstablished
 *
 *		A later exchange replaces the secret but the session
 *		stays KeyEstablished.  A failed exchange leaves the
 *		state and any previous secret alone.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/zeebo/blake3"
)

const (
	DEFAULT_KEY_LENGTH = 32
	MIN_KEY_LENGTH     = 16

	keyCaptureChunk = 1024 // Samples per Capture call while waiting for a key frame.
)

type Role int

const (
	Initiator Role = iota
	Responder
)

func (r Role) String() string {
	switch r {
	case Initiator:
		return "initiator"
	case Responder:
		return "responder"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

func ParseRole(name string) (Role, error) {
	switch name {
	case "initiator":
		return Initiator, nil
	case "responder":
		return Responder, nil
	}
	return 0, fmt.Errorf("unknown role %q", name)
}

type SessionState int

const (
	Uninitialized SessionState = iota
	AwaitingKey
	KeyEstablished
)

func (s SessionState) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case AwaitingKey:
		return "AwaitingKey"
	case KeyEstablished:
		return "KeyEstablished"
	}
	return fmt.Sprintf("SessionState(%d)", int(s))
}

// Channel moves samples to and from the acoustic medium.
// Capture blocks until at least one sample is available, ctx is done,
// or the source ends (io.EOF).
type Channel interface {
	Transmit(ctx context.Context, samples []int16) error
	Capture(ctx context.Context, buf []int16) (int, error)
}

// Fingerprint is a short digest of the shared secret for comparing
// devices out of band.  It does not reveal the secret.
type Fingerprint [8]byte

func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

func fingerprintOf(key []byte) Fingerprint {
	var sum = blake3.Sum256(key)
	var f Fingerprint
	copy(f[:], sum[:])
	return f
}

type SessionOption func(*Session)

func WithKeyLength(n int) SessionOption {
	return func(s *Session) {
		s.key_length = n
	}
}

func WithCipher(k CipherKind) SessionOption {
	return func(s *Session) {
		s.cipher = k
	}
}

// WithRandom replaces crypto/rand for secrets and nonces.  Tests only.
func WithRandom(r io.Reader) SessionOption {
	return func(s *Session) {
		s.rand = r
	}
}

func WithSessionLogger(l *log.Logger) SessionOption {
	return func(s *Session) {
		s.logger = l
	}
}

type Session struct {
	role       Role
	params     *LinkParams
	mod        *Modulator
	key_length int
	cipher     CipherKind
	sealer     sealer
	rand       io.Reader
	logger     *log.Logger

	state       SessionState
	secret      *SharedSecret
	fingerprint Fingerprint
}

func NewSession(role Role, p *LinkParams, opts ...SessionOption) (*Session, error) {
	var s = &Session{
		role:       role,
		params:     p,
		mod:        NewModulator(p),
		key_length: DEFAULT_KEY_LENGTH,
		cipher:     CipherXOR,
		rand:       rand.Reader,
		state:      Uninitialized,
	}

	for _, opt := range opts {
		opt(s)
	}

	switch {
	case role != Initiator && role != Responder:
		return nil, fmt.Errorf("%w: role %d", ErrInvalidParameters, int(role))
	case s.key_length < MIN_KEY_LENGTH:
		return nil, fmt.Errorf("%w: key length %d is below %d", ErrInvalidParameters, s.key_length, MIN_KEY_LENGTH)
	case s.key_length > p.MaxPayload():
		return nil, fmt.Errorf("%w: key length %d exceeds max payload %d", ErrInvalidParameters, s.key_length, p.MaxPayload())
	case s.cipher != CipherXOR && s.cipher != CipherXChaCha20Poly1305:
		return nil, fmt.Errorf("%w: cipher %s", ErrInvalidParameters, s.cipher)
	}

	s.sealer = sealerFor(s.cipher)

	return s, nil
}

func (s *Session) Role() Role { return s.role }

// State never moves backwards.  It stays KeyEstablished after Close even
// though Send and Receive fail until the next exchange; see Ready.
func (s *Session) State() SessionState { return s.state }

// Ready tells whether a secret is held, so Send and Receive can work.
func (s *Session) Ready() bool { return s.secret != nil }

func (s *Session) Cipher() CipherKind       { return s.cipher }
func (s *Session) Fingerprint() Fingerprint { return s.fingerprint }
func (s *Session) Params() *LinkParams      { return s.params }

func (s *Session) log() *log.Logger {
	if s.logger != nil {
		return s.logger
	}
	return Logger()
}

func (s *Session) begin() {
	if s.state == Uninitialized {
		s.state = AwaitingKey
	}
}

func (s *Session) failed(cause error) error {
	s.log().Warn("key exchange failed", "role", s.role, "err", cause)
	return fmt.Errorf("%w: %w", ErrKeyExchangeFailed, cause)
}

// newKeyFrame draws a secret and modulates it.  Nothing is adopted yet.
func (s *Session) newKeyFrame() ([]byte, []int16, error) {
	var key = make([]byte, s.key_length)
	if _, err := io.ReadFull(s.rand, key); err != nil {
		return nil, nil, fmt.Errorf("generating secret: %w", err)
	}

	var samples, err = s.mod.Modulate(key)
	if err != nil {
		clear(key)
		return nil, nil, err
	}

	return key, samples, nil
}

// adopt takes ownership of key and zeroes the caller's copy.
func (s *Session) adopt(key []byte) (Fingerprint, error) {
	var fp = fingerprintOf(key)

	var secret, err = NewSharedSecret(key)
	if err != nil {
		return Fingerprint{}, err
	}

	if s.secret != nil {
		if err := s.secret.Close(); err != nil {
			s.log().Warn("releasing previous secret", "err", err)
		}
	}

	s.secret = secret
	s.fingerprint = fp
	s.state = KeyEstablished

	s.log().Info("key established", "role", s.role, "fingerprint", fp, "cipher", s.cipher, "authenticated", false)

	return fp, nil
}

/*------------------------------------------------------------------
 *
 * Name:        KeyFrame
 *
 * Purpose:     Initiator half of the exchange, for callers that do
 *		their own audio output.
 *
 * Returns:	Samples to play.  The secret in them is adopted now,
 *		so Send works immediately.
 *
 *----------------------------------------------------------------*/

func (s *Session) KeyFrame() ([]int16, error) {
	if s.role != Initiator {
		return nil, fmt.Errorf("%w: %s does not originate keys", ErrKeyExchangeFailed, s.role)
	}
	s.begin()

	var key, samples, err = s.newKeyFrame()
	if err != nil {
		return nil, s.failed(err)
	}

	if _, err := s.adopt(key); err != nil {
		return nil, s.failed(err)
	}

	return samples, nil
}

// AcceptKeyFrame is the responder half: payload is a frame delivered
// by a Receiver.  The slice is zeroed once adopted.
func (s *Session) AcceptKeyFrame(payload []byte) error {
	if s.role != Responder {
		return fmt.Errorf("%w: %s does not accept keys", ErrKeyExchangeFailed, s.role)
	}
	s.begin()

	if len(payload) != s.key_length {
		return s.failed(fmt.Errorf("key frame is %d bytes, want %d", len(payload), s.key_length))
	}

	if _, err := s.adopt(payload); err != nil {
		return s.failed(err)
	}
	return nil
}

/*------------------------------------------------------------------
 *
 * Name:        BeginKeyExchange
 *
 * Purpose:     Run one complete exchange over ch.
 *
 * Inputs:	ctx	- Bounds the whole exchange.  The responder
 *			  normally sets a deadline.
 *		ch	- Audio in and out.
 *
 * Returns:	Fingerprint of the new secret, or ErrKeyExchangeFailed
 *		wrapping the cause.  The secret itself is never handed
 *		out.  It stays in the session's locked memory and only
 *		Send, Receive and SendFrame use it.  Compare fingerprints
 *		with the other device instead.
 *
 * Description:	Initiator: transmit a fresh key frame, then adopt it.
 *
 *		Responder: capture into a private Receiver until the
 *		first frame outcome.  A corrupt frame ends the attempt;
 *		the caller retries.
 *
 *----------------------------------------------------------------*/

func (s *Session) BeginKeyExchange(ctx context.Context, ch Channel) (Fingerprint, error) {
	s.begin()

	if s.role == Initiator {
		var key, samples, err = s.newKeyFrame()
		if err != nil {
			return Fingerprint{}, s.failed(err)
		}

		if err := ch.Transmit(ctx, samples); err != nil {
			clear(key)
			return Fingerprint{}, s.failed(fmt.Errorf("transmit: %w", err))
		}

		var fp, aerr = s.adopt(key)
		if aerr != nil {
			return Fingerprint{}, s.failed(aerr)
		}
		return fp, nil
	}

	var rec = NewReceiver(s.params, WithReceiverLogger(s.log()))
	var buf = make([]int16, keyCaptureChunk)

	for {
		if err := ctx.Err(); err != nil {
			return Fingerprint{}, s.failed(err)
		}

		var n, cerr = ch.Capture(ctx, buf)

		for _, o := range rec.Feed(buf[:n]) {
			if o.Err != nil {
				return Fingerprint{}, s.failed(o.Err)
			}
			if err := s.AcceptKeyFrame(o.Payload); err != nil {
				return Fingerprint{}, err
			}
			return s.fingerprint, nil
		}

		if cerr != nil {
			return Fingerprint{}, s.failed(fmt.Errorf("capture: %w", cerr))
		}
	}
}

// Send protects plaintext with the shared secret.
func (s *Session) Send(plaintext []byte) ([]byte, error) {
	if s.secret == nil {
		return nil, ErrSessionNotReady
	}
	return s.sealer.seal(s.secret, plaintext, s.rand)
}

// Receive reverses Send.  With the authenticated cipher, any change to
// the ciphertext gives ErrAuthFailed.
func (s *Session) Receive(ciphertext []byte) ([]byte, error) {
	if s.secret == nil {
		return nil, ErrSessionNotReady
	}
	return s.sealer.open(s.secret, ciphertext)
}

// SendFrame is Send followed by Modulate.
func (s *Session) SendFrame(plaintext []byte) ([]int16, error) {
	var ct, err = s.Send(plaintext)
	if err != nil {
		return nil, err
	}
	return s.mod.Modulate(ct)
}

// Close zeroes the secret.  Send and Receive fail afterwards until
// another exchange succeeds.
func (s *Session) Close() error {
	if s.secret == nil {
		return nil
	}
	var err = s.secret.Close()
	s.secret = nil
	return err
}
