package frame

import (
	"crypto/subtle"
	"encoding/binary"
	"fmt"

	"github.com/Supermagnum/gr-sleipnir-sub000/internal/crypto"
)

// Codec builds sealed payload frames for one link and opens received ones.
// Sealing covers two independent switches: the integrity tag is computed
// whenever the link has a symmetric key, and the body is additionally
// stream-ciphered when encryption is enabled. With no key at all, frames go
// out plaintext with a zero tag.
type Codec struct {
	callsign     [CallsignSize]byte
	callsignName string
	crypto       *crypto.Context
	encrypt      bool
}

// NewCodec validates the link callsign and binds the crypto context.
// Encryption requires a symmetric key; tagging alone degrades gracefully
// when the context has none.
func NewCodec(callsign string, ctx *crypto.Context, encrypt bool) (*Codec, error) {
	encoded, err := EncodeCallsign(callsign)
	if err != nil {
		return nil, err
	}
	if encrypt && !ctx.CanEncrypt() {
		return nil, fmt.Errorf("encryption enabled but no symmetric key configured")
	}
	return &Codec{
		callsign:     encoded,
		callsignName: DecodeCallsign(encoded),
		crypto:       ctx,
		encrypt:      encrypt,
	}, nil
}

// Callsign returns the validated link callsign.
func (c *Codec) Callsign() string { return c.callsignName }

// Encrypting reports whether bodies are stream-ciphered on the wire.
func (c *Codec) Encrypting() bool { return c.encrypt }

// Tagging reports whether frames carry a real integrity tag.
func (c *Codec) Tagging() bool { return c.crypto.CanEncrypt() }

// macTag computes the truncated frame tag: the deterministic MAC over the
// wire body plus the callsign and payload counter as bound side information.
// The callsign and counter never travel in the frame; both ends reconstruct
// them from link configuration and slot position.
func (c *Codec) macTag(body *[BodySize]byte, counter uint8) ([TagSize]byte, error) {
	var tag [TagSize]byte

	bound := make([]byte, 0, BodySize+CallsignSize+1)
	bound = append(bound, body[:]...)
	bound = append(bound, c.callsign[:]...)
	bound = append(bound, counter)

	full, err := crypto.ComputeMAC(bound, c.crypto.SymmetricKey())
	if err != nil {
		return tag, err
	}
	copy(tag[:], full[:TagSize])
	return tag, nil
}

// Seal prepares a body for the wire: stream-ciphers it in place when
// encryption is on, then tags the wire bytes (encrypt-then-MAC). Without a
// symmetric key the body is untouched and the tag is zero.
func (c *Codec) Seal(body *[BodySize]byte, pos Position) ([TagSize]byte, error) {
	if !c.crypto.CanEncrypt() {
		return [TagSize]byte{}, nil
	}
	if c.encrypt {
		nonce := crypto.NonceForFrame(pos.Superframe, pos.Slot)
		if err := crypto.ApplyStream(c.crypto.SymmetricKey(), nonce, body[:]); err != nil {
			return [TagSize]byte{}, err
		}
	}
	return c.macTag(body, pos.Counter)
}

// Open reverses Seal on a received frame: verifies the tag against the wire
// body, then decrypts in place. It reports whether the tag verified; on a
// mismatch the body is left sealed and must not be forwarded. Without a
// symmetric key every frame is accepted as-is.
func (c *Codec) Open(body *[BodySize]byte, tag [TagSize]byte, pos Position) (bool, error) {
	if !c.crypto.CanEncrypt() {
		return true, nil
	}

	expected, err := c.macTag(body, pos.Counter)
	if err != nil {
		return false, err
	}
	if subtle.ConstantTimeCompare(expected[:], tag[:]) != 1 {
		return false, nil
	}

	if c.encrypt {
		nonce := crypto.NonceForFrame(pos.Superframe, pos.Slot)
		if err := crypto.ApplyStream(c.crypto.SymmetricKey(), nonce, body[:]); err != nil {
			return false, err
		}
	}
	return true, nil
}

// sealFrame assembles body+tag into the 48-byte wire frame.
func (c *Codec) sealFrame(body [BodySize]byte, pos Position) ([]byte, error) {
	tag, err := c.Seal(&body, pos)
	if err != nil {
		return nil, err
	}
	out := make([]byte, PayloadFrameSize)
	copy(out[:BodySize], body[:])
	copy(out[BodySize:], tag[:])
	return out, nil
}

// BuildVoiceFrame seals one 40-byte codec payload into a voice frame.
func (c *Codec) BuildVoiceFrame(payload []byte, pos Position) ([]byte, error) {
	if len(payload) != BodySize {
		return nil, fmt.Errorf("%w: voice payload must be %d bytes, got %d", ErrMalformedInput, BodySize, len(payload))
	}
	var body [BodySize]byte
	copy(body[:], payload)
	return c.sealFrame(body, pos)
}

// BuildTelemetryFrame seals up to 39 bytes of telemetry content.
func (c *Codec) BuildTelemetryFrame(content []byte, pos Position) ([]byte, error) {
	return c.buildDataFrame(discTelemetry, content, pos)
}

// BuildTextFrame seals up to 39 bytes of text content.
func (c *Codec) BuildTextFrame(content []byte, pos Position) ([]byte, error) {
	return c.buildDataFrame(discText, content, pos)
}

func (c *Codec) buildDataFrame(disc byte, content []byte, pos Position) ([]byte, error) {
	if len(content) > ContentSize {
		return nil, fmt.Errorf("%w: data content must be at most %d bytes, got %d", ErrMalformedInput, ContentSize, len(content))
	}
	var body [BodySize]byte
	copy(body[:ContentSize], content)
	body[BodySize-1] = disc
	return c.sealFrame(body, pos)
}

// BuildSyncFrame seals an alignment frame carrying the fixed pattern and the
// superframe counter. The in-frame frame counter is always zero.
func (c *Codec) BuildSyncFrame(pos Position) ([]byte, error) {
	var body [BodySize]byte
	binary.BigEndian.PutUint64(body[:8], SyncPattern)
	binary.BigEndian.PutUint32(body[8:12], pos.Superframe)
	// body[12:16] stays zero: the frame counter field.
	return c.sealFrame(body, pos)
}

// BuildAuthFrame wraps a full link signature as the 64-byte slot-0 frame.
// Signatures are self-authenticating, so auth frames are never sealed.
func BuildAuthFrame(signature [AuthFrameSize]byte) []byte {
	out := make([]byte, AuthFrameSize)
	copy(out, signature[:])
	return out
}
