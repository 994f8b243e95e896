package ultralink

/*------------------------------------------------------------------
 *
 * Purpose:   	Payload protection once a secret is shared.
 *
 * Description:	Two choices.
 *
 *		CipherXOR	Repeating key XOR.  No integrity and the
 *				key stream repeats every key length bytes,
 *				so anyone holding two ciphertexts learns
 *				their XOR.  It is the default because it is
 *				what deployed peers speak.
 *
 *		CipherXChaCha20Poly1305
 *				Authenticated.  Key is HKDF-SHA256 of the
 *				shared secret.  Wire format:
 *
 *				version(1) nonce(24) ciphertext+tag
 *
 *				The version byte is also the associated data.
 *				Use this one when both ends support it.
 *
 *---------------------------------------------------------------*/

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

type CipherKind int

const (
	CipherXOR CipherKind = iota
	CipherXChaCha20Poly1305
)

func (k CipherKind) String() string {
	switch k {
	case CipherXOR:
		return "xor"
	case CipherXChaCha20Poly1305:
		return "xchacha20poly1305"
	}
	return fmt.Sprintf("CipherKind(%d)", int(k))
}

// ParseCipherKind accepts the names produced by String.
func ParseCipherKind(name string) (CipherKind, error) {
	switch name {
	case "", "xor":
		return CipherXOR, nil
	case "xchacha20poly1305", "aead":
		return CipherXChaCha20Poly1305, nil
	}
	return 0, fmt.Errorf("unknown cipher %q", name)
}

const SEALED_VERSION byte = 0x01

var hkdfInfoSession = []byte("ultralink.session.v1")

// sealer is implemented per CipherKind.
type sealer interface {
	seal(secret *SharedSecret, plaintext []byte, rand io.Reader) ([]byte, error)
	open(secret *SharedSecret, ciphertext []byte) ([]byte, error)
}

func sealerFor(k CipherKind) sealer {
	if k == CipherXChaCha20Poly1305 {
		return aeadSealer{}
	}
	return xorSealer{}
}

type xorSealer struct{}

func xorKeystream(dst []byte, src []byte, key []byte) {
	for i, b := range src {
		dst[i] = b ^ key[i%len(key)]
	}
}

func (xorSealer) seal(secret *SharedSecret, plaintext []byte, _ io.Reader) ([]byte, error) {
	var out = make([]byte, len(plaintext))
	var err = secret.with(func(key []byte) error {
		xorKeystream(out, plaintext, key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (x xorSealer) open(secret *SharedSecret, ciphertext []byte) ([]byte, error) {
	return x.seal(secret, ciphertext, nil)
}

type aeadSealer struct{}

// deriveKey runs HKDF-SHA256 over the shared secret.  The result is
// on the heap and the caller clears it.
func deriveKey(secret *SharedSecret) ([]byte, error) {
	var key = make([]byte, chacha20poly1305.KeySize)
	var err = secret.with(func(ikm []byte) error {
		var _, err = io.ReadFull(hkdf.New(sha256.New, ikm, nil, hkdfInfoSession), key)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("deriving session key: %w", err)
	}
	return key, nil
}

func (aeadSealer) seal(secret *SharedSecret, plaintext []byte, rand io.Reader) ([]byte, error) {
	var key, err = deriveKey(secret)
	if err != nil {
		return nil, err
	}
	defer clear(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}

	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(rand, nonce[:]); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	var out = make([]byte, 1+len(nonce), 1+len(nonce)+len(plaintext)+aead.Overhead())
	out[0] = SEALED_VERSION
	copy(out[1:], nonce[:])

	return aead.Seal(out, nonce[:], plaintext, []byte{SEALED_VERSION}), nil
}

func (aeadSealer) open(secret *SharedSecret, ciphertext []byte) ([]byte, error) {
	const header = 1 + chacha20poly1305.NonceSizeX

	if len(ciphertext) < header+chacha20poly1305.Overhead {
		return nil, fmt.Errorf("%w: %d bytes is too short", ErrAuthFailed, len(ciphertext))
	}
	if ciphertext[0] != SEALED_VERSION {
		return nil, fmt.Errorf("%w: version %#02x", ErrAuthFailed, ciphertext[0])
	}

	var key, err = deriveKey(secret)
	if err != nil {
		return nil, err
	}
	defer clear(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, ciphertext[1:header], ciphertext[header:], ciphertext[:1])
	if err != nil {
		return nil, ErrAuthFailed
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}
