package crypto

import (
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/sha3"
)

const (
	// SignatureSize is the fixed width of a link signature (Ed25519 r ‖ s).
	SignatureSize = ed25519.SignatureSize

	// KeySize is the symmetric key width shared by the AEAD, the stream
	// cipher and the MAC.
	KeySize = chacha20poly1305.KeySize

	// NonceSize is the AEAD/stream nonce width.
	NonceSize = chacha20poly1305.NonceSize

	// TagSize is the full Poly1305 tag width. Frame tags truncate this.
	TagSize = chacha20poly1305.Overhead
)

// Nonce domain separators. Every nonce carries exactly one of these in its
// final byte, so the deterministic MAC nonce can never collide with a frame
// encryption nonce under the same key.
const (
	domainFrame = 0x01
	domainMAC   = 0xff
)

// ErrAuthenticationFailure is returned when an AEAD tag or MAC does not
// verify. No plaintext is ever released alongside it.
var ErrAuthenticationFailure = errors.New("authentication failure")

// Digest computes the SHA3-256 digest that all link signatures and the
// superframe authentication frame are taken over.
func Digest(data []byte) [32]byte {
	return sha3.Sum256(data)
}

// Sign produces the 64-byte link signature over the SHA3-256 digest of data.
func Sign(data []byte, priv ed25519.PrivateKey) ([SignatureSize]byte, error) {
	var sig [SignatureSize]byte
	if len(priv) != ed25519.PrivateKeySize {
		return sig, fmt.Errorf("signing key must be %d bytes, got %d", ed25519.PrivateKeySize, len(priv))
	}
	d := Digest(data)
	copy(sig[:], ed25519.Sign(priv, d[:]))
	return sig, nil
}

// Verify checks a link signature over data. It never returns an error: any
// malformed input simply fails verification. Signatures of the wrong length
// are normalised to 64 bytes first (short ones zero-padded, long ones
// truncated) so a corrupted auth frame degrades to a clean false rather than
// a panic — such signatures cannot verify except by construction in tests.
func Verify(data, sig []byte, pub ed25519.PublicKey) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	normalised := make([]byte, SignatureSize)
	copy(normalised, sig)
	d := Digest(data)
	return ed25519.Verify(pub, d[:], normalised)
}

// Encrypt seals plaintext with ChaCha20-Poly1305, returning the ciphertext
// and the full 16-byte tag separately so framing code can place them
// independently.
func Encrypt(key, nonce, plaintext, additional []byte) ([]byte, [TagSize]byte, error) {
	var tag [TagSize]byte
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, tag, fmt.Errorf("creating cipher: %w", err)
	}
	if len(nonce) != NonceSize {
		return nil, tag, fmt.Errorf("nonce must be %d bytes, got %d", NonceSize, len(nonce))
	}

	sealed := aead.Seal(nil, nonce, plaintext, additional)
	ct := sealed[:len(plaintext)]
	copy(tag[:], sealed[len(plaintext):])
	return ct, tag, nil
}

// Decrypt opens a ciphertext/tag pair. On any tag mismatch it returns
// ErrAuthenticationFailure and no plaintext.
func Decrypt(key, nonce, ciphertext, additional []byte, tag [TagSize]byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", NonceSize, len(nonce))
	}

	sealed := make([]byte, 0, len(ciphertext)+TagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag[:]...)

	plaintext, err := aead.Open(nil, nonce, sealed, additional)
	if err != nil {
		return nil, ErrAuthenticationFailure
	}
	return plaintext, nil
}

// ComputeMAC produces the deterministic 16-byte integrity tag bound to data.
// It is the Poly1305 tag of an empty message with data as associated data,
// under a fixed MAC-domain nonce. Determinism is required here: both ends
// must derive the same tag from the same frame bytes with no shared state
// beyond the key. The MAC nonce's domain byte keeps it disjoint from every
// frame encryption nonce, so the fixed nonce never encrypts anything.
func ComputeMAC(data, key []byte) ([TagSize]byte, error) {
	var tag [TagSize]byte
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return tag, fmt.Errorf("creating cipher: %w", err)
	}

	var nonce [NonceSize]byte
	nonce[NonceSize-1] = domainMAC
	copy(tag[:], aead.Seal(nil, nonce[:], nil, data))
	return tag, nil
}

// NonceForFrame derives the per-frame encryption nonce from the frame's
// position in the stream: superframe counter, slot index, and the frame
// domain byte. Positions never repeat within a key's lifetime, so neither do
// nonces.
func NonceForFrame(superframe uint32, slot uint8) [NonceSize]byte {
	var nonce [NonceSize]byte
	binary.BigEndian.PutUint32(nonce[:4], superframe)
	nonce[4] = slot
	nonce[NonceSize-1] = domainFrame
	return nonce
}

// ApplyStream XORs data in place with the ChaCha20 keystream for the given
// nonce. The frame path uses this for confidentiality and binds integrity
// with a separate truncated MAC, because a payload slot cannot carry the full
// AEAD tag. Encryption and decryption are the same operation.
func ApplyStream(key []byte, nonce [NonceSize]byte, data []byte) error {
	c, err := chacha20.NewUnauthenticatedCipher(key, nonce[:])
	if err != nil {
		return fmt.Errorf("creating stream cipher: %w", err)
	}
	c.XORKeyStream(data, data)
	return nil
}
