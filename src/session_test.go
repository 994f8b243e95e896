package ultralink

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// tape is a Channel that plays back whatever was transmitted into it.
type tape struct {
	lead_in int
	samples []int16
	pos     int
	fail    error
}

func (c *tape) Transmit(ctx context.Context, samples []int16) error {
	if c.samples == nil {
		c.samples = make([]int16, c.lead_in)
	}
	c.samples = append(c.samples, samples...)
	return ctx.Err()
}

func (c *tape) Capture(ctx context.Context, buf []int16) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if c.pos >= len(c.samples) {
		if c.fail != nil {
			return 0, c.fail
		}
		return 0, io.EOF
	}
	var n = copy(buf, c.samples[c.pos:])
	c.pos += n
	return n, nil
}

func seeded(seed uint64) io.Reader {
	var s [32]byte
	s[0] = byte(seed)
	s[1] = byte(seed >> 8)
	return rand.NewChaCha8(s)
}

func newPair(t require.TestingT, cipher CipherKind) (*Session, *Session) {
	var p = quickParams(t)

	var a, err = NewSession(Initiator, p, WithCipher(cipher), WithRandom(seeded(1)))
	require.NoError(t, err)
	b, err := NewSession(Responder, p, WithCipher(cipher), WithRandom(seeded(2)))
	require.NoError(t, err)

	return a, b
}

func pair(t require.TestingT, a *Session, b *Session) {
	var ch = &tape{lead_in: 1234}
	var ctx = context.Background()

	var fa, err = a.BeginKeyExchange(ctx, ch)
	require.NoError(t, err)
	fb, err := b.BeginKeyExchange(ctx, ch)
	require.NoError(t, err)

	assert.Equal(t, fa, fb)
}

func TestNewSessionRejects(t *testing.T) {
	var p = quickParams(t)

	for name, tc := range map[string]struct {
		role Role
		opts []SessionOption
	}{
		"role":           {Role(7), nil},
		"short key":      {Initiator, []SessionOption{WithKeyLength(MIN_KEY_LENGTH - 1)}},
		"key over frame": {Responder, []SessionOption{WithKeyLength(p.MaxPayload() + 1)}},
		"cipher":         {Initiator, []SessionOption{WithCipher(CipherKind(9))}},
	} {
		t.Run(name, func(t *testing.T) {
			var s, err = NewSession(tc.role, p, tc.opts...)
			assert.Nil(t, s)
			assert.ErrorIs(t, err, ErrInvalidParameters)
		})
	}
}

func TestSessionNotReady(t *testing.T) {
	var s, err = NewSession(Initiator, quickParams(t))
	require.NoError(t, err)

	assert.Equal(t, Uninitialized, s.State())
	assert.Equal(t, Fingerprint{}, s.Fingerprint())
	assert.False(t, s.Ready())

	var _, serr = s.Send([]byte("x"))
	assert.ErrorIs(t, serr, ErrSessionNotReady)
	var _, rerr = s.Receive([]byte("x"))
	assert.ErrorIs(t, rerr, ErrSessionNotReady)
	var _, ferr = s.SendFrame([]byte("x"))
	assert.ErrorIs(t, ferr, ErrSessionNotReady)

	assert.NoError(t, s.Close())
}

func TestPairing(t *testing.T) {
	for _, cipher := range []CipherKind{CipherXOR, CipherXChaCha20Poly1305} {
		t.Run(cipher.String(), func(t *testing.T) {
			var a, b = newPair(t, cipher)
			defer a.Close()
			defer b.Close()

			pair(t, a, b)

			assert.Equal(t, KeyEstablished, a.State())
			assert.Equal(t, KeyEstablished, b.State())
			assert.NotEqual(t, Fingerprint{}, a.Fingerprint())
			assert.Len(t, a.Fingerprint().String(), 16)

			rapid.Check(t, func(t *rapid.T) {
				var msg = rapid.SliceOfN(rapid.Byte(), 0, 200).Draw(t, "msg")

				var ct, err = a.Send(msg)
				require.NoError(t, err)
				pt, err := b.Receive(ct)
				require.NoError(t, err)
				assert.Equal(t, msg, pt)

				ct, err = b.Send(msg)
				require.NoError(t, err)
				pt, err = a.Receive(ct)
				require.NoError(t, err)
				assert.Equal(t, msg, pt)
			})
		})
	}
}

func TestSendFrameOverTheAir(t *testing.T) {
	var a, b = newPair(t, CipherXChaCha20Poly1305)
	pair(t, a, b)

	var samples, err = a.SendFrame([]byte("meet at the usual place"))
	require.NoError(t, err)

	var frame, derr = NewDemodulator(b.Params()).Demodulate(samples)
	require.NoError(t, derr)

	var pt, rerr = b.Receive(frame.Payload)
	require.NoError(t, rerr)
	assert.Equal(t, []byte("meet at the usual place"), pt)
}

func TestXORIsRepeatingKey(t *testing.T) {
	var a, b = newPair(t, CipherXOR)
	pair(t, a, b)

	var zeros = make([]byte, 2*DEFAULT_KEY_LENGTH)
	var ct, err = a.Send(zeros)
	require.NoError(t, err)

	assert.Len(t, ct, len(zeros))
	assert.Equal(t, ct[:DEFAULT_KEY_LENGTH], ct[DEFAULT_KEY_LENGTH:])
}

func TestAuthenticatedCipherRejectsTampering(t *testing.T) {
	var a, b = newPair(t, CipherXChaCha20Poly1305)
	pair(t, a, b)

	rapid.Check(t, func(t *rapid.T) {
		var msg = rapid.SliceOfN(rapid.Byte(), 1, 64).Draw(t, "msg")

		var ct, err = a.Send(msg)
		require.NoError(t, err)
		assert.Len(t, ct, 1+24+len(msg)+16)
		assert.Equal(t, SEALED_VERSION, ct[0])

		var i = rapid.IntRange(0, len(ct)-1).Draw(t, "index")
		var flip = rapid.ByteRange(1, 255).Draw(t, "flip")

		var bad = append([]byte(nil), ct...)
		bad[i] ^= flip

		var _, rerr = b.Receive(bad)
		assert.ErrorIs(t, rerr, ErrAuthFailed)
	})

	var _, err = b.Receive([]byte{SEALED_VERSION, 1, 2, 3})
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestCiphersDoNotInteroperate(t *testing.T) {
	var a, _ = newPair(t, CipherXOR)
	var _, b = newPair(t, CipherXChaCha20Poly1305)

	var key, err = a.KeyFrame()
	require.NoError(t, err)
	var frame, derr = NewDemodulator(b.Params()).Demodulate(key)
	require.NoError(t, derr)
	require.NoError(t, b.AcceptKeyFrame(frame.Payload))

	ct, err := a.Send(make([]byte, 40))
	require.NoError(t, err)
	var _, rerr = b.Receive(ct)
	assert.ErrorIs(t, rerr, ErrAuthFailed)
}

func TestKeyFrameHalves(t *testing.T) {
	var a, b = newPair(t, CipherXOR)

	var samples, err = a.KeyFrame()
	require.NoError(t, err)
	assert.Equal(t, KeyEstablished, a.State())

	var got = NewReceiver(b.Params()).Feed(samples)
	require.Len(t, got, 1)

	var payload = got[0].Payload
	require.NoError(t, b.AcceptKeyFrame(payload))
	assert.Equal(t, make([]byte, DEFAULT_KEY_LENGTH), payload, "accepted key is zeroed")

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestWrongRoleHalves(t *testing.T) {
	var a, b = newPair(t, CipherXOR)

	assert.ErrorIs(t, a.AcceptKeyFrame(make([]byte, DEFAULT_KEY_LENGTH)), ErrKeyExchangeFailed)
	var _, err = b.KeyFrame()
	assert.ErrorIs(t, err, ErrKeyExchangeFailed)
}

func TestAcceptKeyFrameWrongLength(t *testing.T) {
	var _, b = newPair(t, CipherXOR)

	var err = b.AcceptKeyFrame(make([]byte, DEFAULT_KEY_LENGTH-1))
	assert.ErrorIs(t, err, ErrKeyExchangeFailed)
	assert.Equal(t, AwaitingKey, b.State())

	var _, serr = b.Send([]byte("x"))
	assert.ErrorIs(t, serr, ErrSessionNotReady)
}

func TestResponderHearsNothing(t *testing.T) {
	var _, b = newPair(t, CipherXOR)

	var ch = &tape{samples: make([]int16, 5000)}
	var _, err = b.BeginKeyExchange(context.Background(), ch)

	assert.ErrorIs(t, err, ErrKeyExchangeFailed)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, AwaitingKey, b.State())
}

func TestResponderDeadline(t *testing.T) {
	var _, b = newPair(t, CipherXOR)

	var ctx, cancel = context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()

	var _, err = b.BeginKeyExchange(ctx, &tape{})
	assert.ErrorIs(t, err, ErrKeyExchangeFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResponderCorruptKeyFrame(t *testing.T) {
	var a, b = newPair(t, CipherXOR)
	var p = a.Params()

	var key = make([]byte, DEFAULT_KEY_LENGTH)
	var mod = NewModulator(p)
	var bits, err = mod.FrameBits(key)
	require.NoError(t, err)
	corruptBytes(p, bits, 1, p.ECCBlockSize())

	var ch = &tape{samples: mod.ModulateBits(bits)}
	var _, kerr = b.BeginKeyExchange(context.Background(), ch)

	assert.ErrorIs(t, kerr, ErrKeyExchangeFailed)
	assert.ErrorIs(t, kerr, ErrFrameCorrupt)
	assert.Equal(t, AwaitingKey, b.State())
}

func TestTransmitFailure(t *testing.T) {
	var a, _ = newPair(t, CipherXOR)

	var ctx, cancel = context.WithCancel(context.Background())
	cancel()

	var _, err = a.BeginKeyExchange(ctx, &tape{})
	assert.ErrorIs(t, err, ErrKeyExchangeFailed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, AwaitingKey, a.State())
}

func TestRekeySupersedes(t *testing.T) {
	var a, b = newPair(t, CipherXChaCha20Poly1305)

	pair(t, a, b)
	var first = a.Fingerprint()
	var old = a.secret

	var ct, err = a.Send([]byte("before"))
	require.NoError(t, err)

	pair(t, a, b)
	assert.Equal(t, KeyEstablished, a.State())
	assert.NotEqual(t, first, a.Fingerprint())

	var _, rerr = b.Receive(ct)
	assert.ErrorIs(t, rerr, ErrAuthFailed, "old traffic does not open under the new key")

	var werr = old.with(func([]byte) error { return nil })
	assert.ErrorIs(t, werr, errSecretClosed)
}

func TestCloseForgetsSecret(t *testing.T) {
	var a, b = newPair(t, CipherXOR)
	pair(t, a, b)
	assert.True(t, a.Ready())

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	var _, err = a.Send([]byte("x"))
	assert.ErrorIs(t, err, ErrSessionNotReady)
	assert.Equal(t, KeyEstablished, a.State())
	assert.False(t, a.Ready())
	assert.True(t, b.Ready())
}

func TestRoleAndStateNames(t *testing.T) {
	assert.Equal(t, "initiator", Initiator.String())
	assert.Equal(t, "responder", Responder.String())
	assert.Equal(t, "KeyEstablished", KeyEstablished.String())

	var r, err = ParseRole("responder")
	require.NoError(t, err)
	assert.Equal(t, Responder, r)

	_, err = ParseRole("observer")
	assert.Error(t, err)
}

func TestParseCipherKind(t *testing.T) {
	for name, want := range map[string]CipherKind{
		"":                  CipherXOR,
		"xor":               CipherXOR,
		"aead":              CipherXChaCha20Poly1305,
		"xchacha20poly1305": CipherXChaCha20Poly1305,
	} {
		var got, err = ParseCipherKind(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)

		round, err := ParseCipherKind(got.String())
		require.NoError(t, err)
		assert.Equal(t, got, round)
	}

	var _, err = ParseCipherKind("rot13")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidParameters))
}
