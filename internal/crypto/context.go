package crypto

import (
	"crypto/ed25519"
	"fmt"
	"os"
)

// Context holds the key material active for a link. Any of the keys may be
// absent; the capability methods tell callers which operations the link can
// perform. Key rotation replaces the whole Context between frames rather
// than mutating one in place, so a Context is safe for concurrent readers.
type Context struct {
	signingKey ed25519.PrivateKey
	verifyKey  ed25519.PublicKey
	symmetric  []byte
}

// NewContext builds a Context from raw key material. Every key is optional
// (nil disables the corresponding capability), but present keys must have
// the exact expected width.
func NewContext(signingKey ed25519.PrivateKey, verifyKey ed25519.PublicKey, symmetric []byte) (*Context, error) {
	if signingKey != nil && len(signingKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("signing key must be %d bytes, got %d", ed25519.PrivateKeySize, len(signingKey))
	}
	if verifyKey != nil && len(verifyKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("verify key must be %d bytes, got %d", ed25519.PublicKeySize, len(verifyKey))
	}
	if symmetric != nil && len(symmetric) != KeySize {
		return nil, fmt.Errorf("symmetric key must be %d bytes, got %d", KeySize, len(symmetric))
	}

	ctx := &Context{
		signingKey: signingKey,
		verifyKey:  verifyKey,
		symmetric:  symmetric,
	}

	// A signing key implies its own public half for loopback verification
	// when no peer key was configured.
	if ctx.verifyKey == nil && ctx.signingKey != nil {
		ctx.verifyKey = signingKey.Public().(ed25519.PublicKey)
	}
	return ctx, nil
}

// CanSign reports whether the link can emit authentication frames.
func (c *Context) CanSign() bool { return c != nil && c.signingKey != nil }

// CanVerify reports whether received authentication frames can be checked.
func (c *Context) CanVerify() bool { return c != nil && c.verifyKey != nil }

// CanEncrypt reports whether the link has a symmetric key for encryption
// and frame MACs.
func (c *Context) CanEncrypt() bool { return c != nil && c.symmetric != nil }

// Sign signs data with the link's signing key.
func (c *Context) Sign(data []byte) ([SignatureSize]byte, error) {
	if !c.CanSign() {
		return [SignatureSize]byte{}, fmt.Errorf("no signing key configured")
	}
	return Sign(data, c.signingKey)
}

// Verify checks a signature against the link's verify key. Returns false
// when no verify key is configured.
func (c *Context) Verify(data, sig []byte) bool {
	if !c.CanVerify() {
		return false
	}
	return Verify(data, sig, c.verifyKey)
}

// SymmetricKey returns the link's symmetric key, or nil when encryption is
// not configured. Callers must not modify the returned slice.
func (c *Context) SymmetricKey() []byte {
	if c == nil {
		return nil
	}
	return c.symmetric
}

// LoadSigningKey reads an Ed25519 private key from a raw binary file: either
// the 32-byte seed or the full 64-byte private key.
func LoadSigningKey(path string) (ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading signing key: %w", err)
	}
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	default:
		return nil, fmt.Errorf("signing key file %s: expected %d or %d bytes, got %d",
			path, ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}
}

// LoadVerifyKey reads a 32-byte Ed25519 public key from a raw binary file.
func LoadVerifyKey(path string) (ed25519.PublicKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading verify key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("verify key file %s: expected %d bytes, got %d",
			path, ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// LoadSymmetricKey reads a 32-byte symmetric key from a raw binary file.
func LoadSymmetricKey(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading symmetric key: %w", err)
	}
	if len(raw) != KeySize {
		return nil, fmt.Errorf("symmetric key file %s: expected %d bytes, got %d",
			path, KeySize, len(raw))
	}
	return raw, nil
}
