package superframe

import (
	"fmt"

	"github.com/Supermagnum/gr-sleipnir-sub000/internal/crypto"
	"github.com/Supermagnum/gr-sleipnir-sub000/internal/frame"
	"github.com/Supermagnum/gr-sleipnir-sub000/internal/ldpc"
)

// PayloadFrames is the number of payload slots per superframe.
const PayloadFrames = 24

// syncPayloadIndex is the payload slot that a sync frame replaces.
const syncPayloadIndex = 1

// Config describes one link's framing behavior.
type Config struct {
	Callsign   string
	Recipients []string

	SigningEnabled    bool
	EncryptionEnabled bool

	// SyncFrameInterval emits a sync frame every N superframes while
	// signing is disabled; 0 disables sync frames.
	SyncFrameInterval uint32

	MaxIterations int
	Variant       ldpc.Variant
}

// RawFramePayload is one transmit-ready frame: the sealed wire bytes and the
// FEC-encoded bit stream to hand to the modulator.
type RawFramePayload struct {
	Slot  uint8
	Kind  frame.Kind
	Frame []byte  // sealed wire bytes (48, or 64 for auth)
	Bits  []uint8 // encoded codeword, one bit per element
}

// DecodedFrame reports one frame recovered from the soft-decision stream.
type DecodedFrame struct {
	Superframe uint32
	Slot       uint8
	Kind       frame.Kind

	Converged    bool
	Iterations   int
	ParityErrors int
	MeanLLR      float64

	TagValid bool
}

// ReceivedFrame is one payload slot of a completed superframe. Payload is
// nil when the frame's integrity tag failed: the content is never forwarded.
type ReceivedFrame struct {
	Counter  uint8
	Kind     frame.Kind
	Payload  []byte
	TagValid bool
}

// StatusRecord summarises a completed superframe for monitoring.
type StatusRecord struct {
	SignatureValid        bool     `json:"signature_valid"`
	Encrypted             bool     `json:"encrypted"`
	DecryptedSuccessfully bool     `json:"decrypted_successfully"`
	Sender                string   `json:"sender"`
	Recipients            []string `json:"recipients"`
	MessageType           string   `json:"message_type"`
	FrameCounter          uint32   `json:"frame_counter"`
	SuperframeCounter     uint32   `json:"superframe_counter"`
}

// SuperframeResult is a fully reassembled superframe.
type SuperframeResult struct {
	Status StatusRecord
	Frames []ReceivedFrame
}

// EngineStats exposes the engine's counters for the monitoring API.
type EngineStats struct {
	Slot              uint8  `json:"slot"`
	RxSuperframes     uint32 `json:"rx_superframes"`
	TxSuperframes     uint32 `json:"tx_superframes"`
	FramesDecoded     uint64 `json:"frames_decoded"`
	NonConverged      uint64 `json:"non_converged"`
	TagFailures       uint64 `json:"tag_failures"`
	BufferedLLRs      int    `json:"buffered_llrs"`
	QueuedTelemetry   int    `json:"queued_telemetry"`
	QueuedText        int    `json:"queued_text"`
	SignatureFailures uint64 `json:"signature_failures"`
}

// Engine is the per-link superframe state machine. All methods are
// synchronous and never block; see the package comment for the ownership
// rule.
type Engine struct {
	cfg    Config
	codec  *frame.Codec
	crypto *crypto.Context

	// FEC configurations. Either may be nil, in which case frames pass
	// through uncoded (hard-decision fallback on receive).
	voiceCode *ldpc.CodeEntry
	authCode  *ldpc.CodeEntry

	// TX state.
	txSuperframe   uint32
	telemetryQueue [][]byte
	textQueue      [][]byte

	// RX state.
	slot         uint8
	rxSuperframe uint32
	llrs         []float64
	current      *pendingSuperframe

	framesDecoded     uint64
	nonConverged      uint64
	tagFailures       uint64
	signatureFailures uint64
}

// pendingSuperframe accumulates one cycle's worth of decoded frames.
type pendingSuperframe struct {
	signature *[frame.AuthFrameSize]byte
	wire      [][]byte // sealed payload frames in counter order, for the digest
	frames    []ReceivedFrame
	kinds     map[frame.Kind]int
	tagOK     int
}

func newPendingSuperframe() *pendingSuperframe {
	return &pendingSuperframe{
		wire:   make([][]byte, 0, PayloadFrames),
		frames: make([]ReceivedFrame, 0, PayloadFrames),
		kinds:  make(map[frame.Kind]int),
	}
}

// NewEngine builds a link engine. The code entries may be nil for a degraded
// uncoded link; the crypto context decides signing and sealing capabilities
// and must be consistent with the config switches.
func NewEngine(cfg Config, voiceCode, authCode *ldpc.CodeEntry, cryptoCtx *crypto.Context) (*Engine, error) {
	if cfg.SigningEnabled && !cryptoCtx.CanSign() && !cryptoCtx.CanVerify() {
		return nil, fmt.Errorf("signing enabled but no signing or verify key configured")
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 25
	}
	if voiceCode != nil && voiceCode.G.K < frame.PayloadFrameSize*8 {
		return nil, fmt.Errorf("payload matrix k=%d cannot carry a %d-byte frame",
			voiceCode.G.K, frame.PayloadFrameSize)
	}
	if authCode != nil && authCode.G.K < frame.AuthFrameSize*8 {
		return nil, fmt.Errorf("auth matrix k=%d cannot carry a %d-byte frame",
			authCode.G.K, frame.AuthFrameSize)
	}

	codec, err := frame.NewCodec(cfg.Callsign, cryptoCtx, cfg.EncryptionEnabled)
	if err != nil {
		return nil, fmt.Errorf("building frame codec: %w", err)
	}

	return &Engine{
		cfg:       cfg,
		codec:     codec,
		crypto:    cryptoCtx,
		voiceCode: voiceCode,
		authCode:  authCode,
		current:   newPendingSuperframe(),
	}, nil
}

// CycleLength is the number of slots per superframe for this link: 25 with
// an authentication slot, 24 without.
func (e *Engine) CycleLength() int {
	if e.cfg.SigningEnabled {
		return PayloadFrames + 1
	}
	return PayloadFrames
}

// EnqueueTelemetry queues telemetry content for the next free payload slot.
// Telemetry outranks text, which outranks voice.
func (e *Engine) EnqueueTelemetry(content []byte) error {
	if len(content) > frame.ContentSize {
		return fmt.Errorf("%w: telemetry content must be at most %d bytes, got %d",
			frame.ErrMalformedInput, frame.ContentSize, len(content))
	}
	e.telemetryQueue = append(e.telemetryQueue, append([]byte{}, content...))
	return nil
}

// EnqueueText queues text content for the next free payload slot.
func (e *Engine) EnqueueText(content []byte) error {
	if len(content) > frame.ContentSize {
		return fmt.Errorf("%w: text content must be at most %d bytes, got %d",
			frame.ErrMalformedInput, frame.ContentSize, len(content))
	}
	e.textQueue = append(e.textQueue, append([]byte{}, content...))
	return nil
}

// payloadSlot maps a payload ordinal to its slot index in the cycle.
func (e *Engine) payloadSlot(counter int) uint8 {
	if e.cfg.SigningEnabled {
		return uint8(counter + 1)
	}
	return uint8(counter)
}

// Assemble builds one transmit superframe from exactly 24 voice payloads of
// 40 bytes each. Queued telemetry and text take over payload slots by
// priority; the corresponding voice payloads are displaced, not reordered.
// With signing enabled the first emitted frame is the authentication frame
// over the digest of all 24 sealed payload frames.
func (e *Engine) Assemble(voicePayloads [][]byte) ([]RawFramePayload, error) {
	if len(voicePayloads) != PayloadFrames {
		return nil, fmt.Errorf("need exactly %d voice payloads, got %d", PayloadFrames, len(voicePayloads))
	}

	sendSync := !e.cfg.SigningEnabled &&
		e.cfg.SyncFrameInterval > 0 &&
		e.txSuperframe%e.cfg.SyncFrameInterval == 0

	payloads := make([]RawFramePayload, 0, PayloadFrames+1)
	wire := make([][]byte, 0, PayloadFrames)

	for i := 0; i < PayloadFrames; i++ {
		pos := frame.Position{
			Superframe: e.txSuperframe,
			Slot:       e.payloadSlot(i),
			Counter:    uint8(i),
		}

		var (
			raw  []byte
			kind frame.Kind
			err  error
		)
		switch {
		case sendSync && i == syncPayloadIndex:
			raw, err = e.codec.BuildSyncFrame(pos)
			kind = frame.KindSync
		case len(e.telemetryQueue) > 0:
			raw, err = e.codec.BuildTelemetryFrame(e.telemetryQueue[0], pos)
			e.telemetryQueue = e.telemetryQueue[1:]
			kind = frame.KindTelemetry
		case len(e.textQueue) > 0:
			raw, err = e.codec.BuildTextFrame(e.textQueue[0], pos)
			e.textQueue = e.textQueue[1:]
			kind = frame.KindText
		default:
			raw, err = e.codec.BuildVoiceFrame(voicePayloads[i], pos)
			kind = frame.KindVoice
		}
		if err != nil {
			return nil, fmt.Errorf("building frame for payload slot %d: %w", i, err)
		}

		wire = append(wire, raw)
		payloads = append(payloads, RawFramePayload{Slot: pos.Slot, Kind: kind, Frame: raw})
	}

	out := make([]RawFramePayload, 0, len(payloads)+1)
	if e.cfg.SigningEnabled {
		var digestInput []byte
		for _, w := range wire {
			digestInput = append(digestInput, w...)
		}
		sig, err := e.crypto.Sign(digestInput)
		if err != nil {
			return nil, fmt.Errorf("signing superframe: %w", err)
		}
		authRaw := frame.BuildAuthFrame(sig)
		bits, err := encodeFrame(e.authCode, authRaw)
		if err != nil {
			return nil, fmt.Errorf("encoding auth frame: %w", err)
		}
		out = append(out, RawFramePayload{Slot: 0, Kind: frame.KindAuth, Frame: authRaw, Bits: bits})
	}

	for i := range payloads {
		bits, err := encodeFrame(e.voiceCode, payloads[i].Frame)
		if err != nil {
			return nil, fmt.Errorf("encoding payload slot %d: %w", i, err)
		}
		payloads[i].Bits = bits
		out = append(out, payloads[i])
	}

	e.txSuperframe++
	return out, nil
}

// encodeFrame runs one frame through its slot's FEC matrix, zero-padding the
// information bits up to the matrix's k. A nil entry passes the frame
// through uncoded.
func encodeFrame(entry *ldpc.CodeEntry, data []byte) ([]uint8, error) {
	bits := ldpc.BytesToBits(data)
	if entry == nil {
		return bits, nil
	}
	if len(bits) > entry.G.K {
		return nil, fmt.Errorf("frame of %d bits exceeds matrix capacity k=%d", len(bits), entry.G.K)
	}
	info := make([]uint8, entry.G.K)
	copy(info, bits)
	return entry.G.Encode(info)
}

// slotWidth returns the LLR count the current slot's frame occupies on the
// channel.
func (e *Engine) slotWidth() int {
	if e.cfg.SigningEnabled && e.slot == 0 {
		if e.authCode != nil {
			return e.authCode.H.N
		}
		return frame.AuthFrameSize * 8
	}
	if e.voiceCode != nil {
		return e.voiceCode.H.N
	}
	return frame.PayloadFrameSize * 8
}

// Push feeds a chunk of soft decisions into the receive state machine. It
// decodes as many complete frames as the accumulated buffer allows (possibly
// none), and returns every frame decoded plus every superframe completed by
// this chunk. It never blocks.
func (e *Engine) Push(llrs []float64) ([]DecodedFrame, []SuperframeResult) {
	e.llrs = append(e.llrs, llrs...)

	var decoded []DecodedFrame
	var completed []SuperframeResult

	for {
		width := e.slotWidth()
		if len(e.llrs) < width {
			return decoded, completed
		}

		frameLLRs := e.llrs[:width]
		df, result := e.consumeFrame(frameLLRs)
		e.llrs = e.llrs[width:]

		decoded = append(decoded, df)
		if result != nil {
			completed = append(completed, *result)
		}
	}
}

// consumeFrame decodes and files one frame, advancing the slot index. A
// non-nil result means this frame completed a superframe.
func (e *Engine) consumeFrame(llrs []float64) (DecodedFrame, *SuperframeResult) {
	authSlot := e.cfg.SigningEnabled && e.slot == 0

	entry := e.voiceCode
	wireSize := frame.PayloadFrameSize
	if authSlot {
		entry = e.authCode
		wireSize = frame.AuthFrameSize
	}

	raw, df := e.decodeFrame(entry, llrs, wireSize)
	df.Superframe = e.rxSuperframe
	df.Slot = e.slot
	e.framesDecoded++
	if !df.Converged && entry != nil {
		e.nonConverged++
	}

	if authSlot {
		df.Kind = frame.KindAuth
		df.TagValid = true
		var sig [frame.AuthFrameSize]byte
		copy(sig[:], raw)
		e.current.signature = &sig
	} else {
		e.filePayloadFrame(raw, &df)
	}

	return df, e.advanceSlot()
}

// decodeFrame turns one slot's LLRs into wire bytes: soft decode through the
// slot's matrix, or hard decisions when the link runs uncoded.
func (e *Engine) decodeFrame(entry *ldpc.CodeEntry, llrs []float64, wireSize int) ([]byte, DecodedFrame) {
	if entry == nil {
		bits := ldpc.HardDecide(llrs)
		raw := ldpc.BitsToBytes(bits[:wireSize*8])
		return raw, DecodedFrame{Converged: true}
	}

	result := ldpc.DecodeSoft(llrs, entry.H, e.cfg.MaxIterations, e.cfg.Variant)
	raw := ldpc.BitsToBytes(result.Info[:wireSize*8])
	return raw, DecodedFrame{
		Converged:    result.Converged,
		Iterations:   result.Iterations,
		ParityErrors: result.ParityErrors,
		MeanLLR:      result.MeanLLR,
	}
}

// filePayloadFrame opens and parses one payload frame into the pending
// superframe. Frames whose tag fails are recorded with a nil payload.
func (e *Engine) filePayloadFrame(raw []byte, df *DecodedFrame) {
	counter := uint8(len(e.current.frames))
	pos := frame.Position{Superframe: e.rxSuperframe, Slot: e.slot, Counter: counter}

	// The sealed wire bytes feed the superframe digest regardless of what
	// the frame turns out to contain.
	e.current.wire = append(e.current.wire, append([]byte{}, raw...))

	body, tag, err := frame.SplitPayloadFrame(raw)
	if err != nil {
		// Unreachable with fixed-width decode output, but file it as a
		// failed frame rather than panicking.
		e.current.frames = append(e.current.frames, ReceivedFrame{Counter: counter, Kind: frame.KindVoice})
		e.tagFailures++
		df.Kind = frame.KindVoice
		return
	}

	ok, err := e.codec.Open(&body, tag, pos)
	if err != nil || !ok {
		e.tagFailures++
		e.current.frames = append(e.current.frames, ReceivedFrame{Counter: counter, Kind: frame.KindVoice})
		df.Kind = frame.KindVoice
		return
	}

	parsed := frame.ParseBody(body, tag)
	df.Kind = parsed.Kind
	df.TagValid = true
	e.current.kinds[parsed.Kind]++
	e.current.tagOK++

	received := ReceivedFrame{Counter: counter, Kind: parsed.Kind, TagValid: true}
	switch parsed.Kind {
	case frame.KindSync:
		// Sync frames realign the receive counter mid-superframe; the
		// transmitter stamped every frame of this cycle with the same one.
		e.rxSuperframe = parsed.Sync.SuperframeCounter
	case frame.KindTelemetry, frame.KindText:
		received.Payload = parsed.Data.Content
	default:
		received.Payload = append([]byte{}, parsed.Voice.Payload[:]...)
	}
	e.current.frames = append(e.current.frames, received)
}

// advanceSlot steps the cycle and finalizes the superframe on wraparound.
func (e *Engine) advanceSlot() *SuperframeResult {
	e.slot++
	if int(e.slot) < e.CycleLength() {
		return nil
	}
	e.slot = 0

	result := e.finalize()
	e.current = newPendingSuperframe()
	e.rxSuperframe++
	return result
}

// finalize verifies the completed superframe and builds its status record.
func (e *Engine) finalize() *SuperframeResult {
	p := e.current

	signatureValid := false
	if e.cfg.SigningEnabled && p.signature != nil && e.crypto.CanVerify() {
		var digestInput []byte
		for _, w := range p.wire {
			digestInput = append(digestInput, w...)
		}
		signatureValid = e.crypto.Verify(digestInput, p.signature[:])
		if !signatureValid {
			e.signatureFailures++
		}
	}

	encrypted := e.cfg.EncryptionEnabled
	record := StatusRecord{
		SignatureValid:        signatureValid,
		Encrypted:             encrypted,
		DecryptedSuccessfully: encrypted && p.tagOK == len(p.frames),
		Sender:                e.codec.Callsign(),
		Recipients:            e.cfg.Recipients,
		MessageType:           dominantMessageType(p.kinds),
		FrameCounter:          uint32(len(p.frames)),
		SuperframeCounter:     e.rxSuperframe,
	}

	return &SuperframeResult{Status: record, Frames: p.frames}
}

// dominantMessageType names the superframe's content for the status record.
func dominantMessageType(kinds map[frame.Kind]int) string {
	hasData := kinds[frame.KindTelemetry] > 0 || kinds[frame.KindText] > 0
	hasVoice := kinds[frame.KindVoice] > 0

	switch {
	case hasData && hasVoice:
		return "mixed"
	case kinds[frame.KindTelemetry] > 0 && kinds[frame.KindText] > 0:
		return "mixed"
	case kinds[frame.KindTelemetry] > 0:
		return "telemetry"
	case kinds[frame.KindText] > 0:
		return "text"
	default:
		return "voice"
	}
}

// Stats returns a snapshot of the engine's counters.
func (e *Engine) Stats() EngineStats {
	return EngineStats{
		Slot:              e.slot,
		RxSuperframes:     e.rxSuperframe,
		TxSuperframes:     e.txSuperframe,
		FramesDecoded:     e.framesDecoded,
		NonConverged:      e.nonConverged,
		TagFailures:       e.tagFailures,
		BufferedLLRs:      len(e.llrs),
		QueuedTelemetry:   len(e.telemetryQueue),
		QueuedText:        len(e.textQueue),
		SignatureFailures: e.signatureFailures,
	}
}
