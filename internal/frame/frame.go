package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Wire layout constants.
const (
	// PayloadFrameSize is the width of every payload-slot frame.
	PayloadFrameSize = 48

	// BodySize is the sealed portion of a payload frame: voice payload, or
	// data content plus discriminator.
	BodySize = 40

	// TagSize is the truncated per-frame integrity tag width.
	TagSize = 8

	// ContentSize is the usable content width of telemetry and text frames;
	// the body's final byte is the type discriminator.
	ContentSize = BodySize - 1

	// AuthFrameSize is the slot-0 authentication frame width: one full
	// link signature, untruncated.
	AuthFrameSize = 64

	// CallsignSize is the fixed width of an encoded callsign.
	CallsignSize = 5

	// SyncPattern is the fixed alignment word carried by sync frames: the
	// CCSDS attached sync marker repeated to fill 64 bits.
	SyncPattern uint64 = 0x1ACFFC1D1ACFFC1D
)

// Type discriminators carried in the final body byte of data frames. Values
// are deliberately far from small integers so that voice codec bytes collide
// with them rarely; a collision still misparses (see ParseBody).
const (
	discTelemetry = 0xE1
	discText      = 0xE2
)

// ErrMalformedInput is wrapped by all parse failures in this package.
var ErrMalformedInput = errors.New("malformed frame")

// Kind identifies a frame variant.
type Kind uint8

const (
	KindVoice Kind = iota
	KindTelemetry
	KindText
	KindSync
	KindAuth
)

// String returns the kind's wire-log name.
func (k Kind) String() string {
	switch k {
	case KindVoice:
		return "voice"
	case KindTelemetry:
		return "telemetry"
	case KindText:
		return "text"
	case KindSync:
		return "sync"
	case KindAuth:
		return "auth"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// VoiceFrame is a 48-byte voice slot.
// Layout: [payload:40][tag:8]
type VoiceFrame struct {
	Payload [BodySize]byte
	Tag     [TagSize]byte
}

// DataFrame is a 48-byte telemetry or text slot.
// Layout: [content:39][type:1][tag:8]
type DataFrame struct {
	Kind    Kind // KindTelemetry or KindText
	Content []byte
	Tag     [TagSize]byte
}

// Text returns the content with wire zero-padding stripped. Telemetry
// content is binary and should be read from Content directly.
func (d *DataFrame) Text() string {
	end := len(d.Content)
	for end > 0 && d.Content[end-1] == 0 {
		end--
	}
	return string(d.Content[:end])
}

// SyncFrame is a 48-byte alignment slot.
// Layout: [pattern:u64BE][superframe:u32BE][frame:u32BE=0][reserved:32]
type SyncFrame struct {
	Pattern           uint64
	SuperframeCounter uint32
	FrameCounter      uint32
}

// AuthFrame is the 64-byte slot-0 signature over the superframe digest.
type AuthFrame struct {
	Signature [AuthFrameSize]byte
}

// Parsed is a fully parsed frame; exactly one variant field is set.
type Parsed struct {
	Kind  Kind
	Voice *VoiceFrame
	Data  *DataFrame
	Sync  *SyncFrame
	Auth  *AuthFrame
}

// Position locates a frame within the stream. Slot is the superframe slot
// index; Counter is the payload ordinal within the superframe, which is what
// the integrity tag binds.
type Position struct {
	Superframe uint32
	Slot       uint8
	Counter    uint8
}

// EncodeCallsign validates a callsign and packs it into the fixed 5-byte
// wire form: uppercase, space-padded on the right. Accepted characters are
// A-Z, 0-9 and '/'.
func EncodeCallsign(callsign string) ([CallsignSize]byte, error) {
	var out [CallsignSize]byte
	upper := strings.ToUpper(strings.TrimSpace(callsign))
	if len(upper) == 0 || len(upper) > CallsignSize {
		return out, fmt.Errorf("%w: callsign %q must be 1-%d characters", ErrMalformedInput, callsign, CallsignSize)
	}
	for _, r := range upper {
		valid := (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '/'
		if !valid {
			return out, fmt.Errorf("%w: callsign %q contains invalid character %q", ErrMalformedInput, callsign, r)
		}
	}
	copy(out[:], upper)
	for i := len(upper); i < CallsignSize; i++ {
		out[i] = ' '
	}
	return out, nil
}

// DecodeCallsign strips the wire padding back off.
func DecodeCallsign(encoded [CallsignSize]byte) string {
	return strings.TrimRight(string(encoded[:]), " ")
}

// SplitPayloadFrame separates a 48-byte payload frame into its sealed body
// and integrity tag, without interpreting either.
func SplitPayloadFrame(data []byte) (body [BodySize]byte, tag [TagSize]byte, err error) {
	if len(data) != PayloadFrameSize {
		err = fmt.Errorf("%w: payload frame must be %d bytes, got %d", ErrMalformedInput, PayloadFrameSize, len(data))
		return
	}
	copy(body[:], data[:BodySize])
	copy(tag[:], data[BodySize:])
	return
}

// ParseBody classifies a plaintext 40-byte body and returns the parsed
// variant, with the tag attached. Sync frames are recognised first by their
// alignment pattern; then the discriminator byte selects telemetry or text.
// Any other discriminator value is treated as voice: the discriminator
// shares the body with codec bytes, so a voice frame whose final payload
// byte collides with a data discriminator will misparse as data. Receivers
// that must not tolerate this should keep data traffic off the link.
func ParseBody(body [BodySize]byte, tag [TagSize]byte) *Parsed {
	if binary.BigEndian.Uint64(body[:8]) == SyncPattern {
		return &Parsed{
			Kind: KindSync,
			Sync: &SyncFrame{
				Pattern:           SyncPattern,
				SuperframeCounter: binary.BigEndian.Uint32(body[8:12]),
				FrameCounter:      binary.BigEndian.Uint32(body[12:16]),
			},
		}
	}

	switch body[BodySize-1] {
	case discTelemetry, discText:
		kind := KindTelemetry
		if body[BodySize-1] == discText {
			kind = KindText
		}
		content := make([]byte, ContentSize)
		copy(content, body[:ContentSize])
		return &Parsed{
			Kind: kind,
			Data: &DataFrame{Kind: kind, Content: content, Tag: tag},
		}
	}

	voice := &VoiceFrame{Tag: tag}
	copy(voice.Payload[:], body[:])
	return &Parsed{Kind: KindVoice, Voice: voice}
}

// ParseAuthFrame parses a 64-byte slot-0 frame.
func ParseAuthFrame(data []byte) (*Parsed, error) {
	if len(data) != AuthFrameSize {
		return nil, fmt.Errorf("%w: auth frame must be %d bytes, got %d", ErrMalformedInput, AuthFrameSize, len(data))
	}
	auth := &AuthFrame{}
	copy(auth.Signature[:], data)
	return &Parsed{Kind: KindAuth, Auth: auth}, nil
}

// ParseFrame parses a plaintext frame, dispatching on length: 64 bytes is an
// auth frame, 48 bytes a payload frame. Sealed frames must be opened by the
// Codec first.
func ParseFrame(data []byte) (*Parsed, error) {
	switch len(data) {
	case AuthFrameSize:
		return ParseAuthFrame(data)
	case PayloadFrameSize:
		body, tag, err := SplitPayloadFrame(data)
		if err != nil {
			return nil, err
		}
		return ParseBody(body, tag), nil
	default:
		return nil, fmt.Errorf("%w: frame must be %d or %d bytes, got %d",
			ErrMalformedInput, PayloadFrameSize, AuthFrameSize, len(data))
	}
}

// String returns a human-readable summary of the parsed frame.
func (p *Parsed) String() string {
	switch p.Kind {
	case KindSync:
		return fmt.Sprintf("Frame{sync, superframe:%d}", p.Sync.SuperframeCounter)
	case KindAuth:
		return "Frame{auth}"
	case KindTelemetry, KindText:
		return fmt.Sprintf("Frame{%s, content:%d bytes}", p.Kind, len(p.Data.Content))
	default:
		return "Frame{voice}"
	}
}
