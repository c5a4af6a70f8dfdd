package superframe

import (
	"crypto/ed25519"
	"crypto/rand"
	mrand "math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Supermagnum/gr-sleipnir-sub000/internal/crypto"
	"github.com/Supermagnum/gr-sleipnir-sub000/internal/frame"
	"github.com/Supermagnum/gr-sleipnir-sub000/internal/ldpc"
)

// makeCodeEntry builds a synthetic full-rank code H = [Pᵗ | I_m]: every
// check owns one parity column and touches three pseudo-random information
// columns.
func makeCodeEntry(t *testing.T, n, m int, seed int64) *ldpc.CodeEntry {
	t.Helper()

	k := n - m
	rng := mrand.New(mrand.NewSource(seed))

	h := &ldpc.ParityCheckMatrix{
		Name:    "synthetic",
		N:       n,
		M:       m,
		ColRows: make([][]int, n),
		RowCols: make([][]int, m),
	}
	connect := func(row, col int) {
		for _, c := range h.RowCols[row] {
			if c == col {
				return
			}
		}
		h.RowCols[row] = append(h.RowCols[row], col)
		h.ColRows[col] = append(h.ColRows[col], row)
	}
	for i := 0; i < m; i++ {
		connect(i, k+i)
		for d := 0; d < 3; d++ {
			connect(i, rng.Intn(k))
		}
	}
	for j := 0; j < k; j++ {
		if len(h.ColRows[j]) == 0 {
			connect(j%m, j)
		}
	}

	entry, err := ldpc.NewStore().Register("synthetic", h)
	require.NoError(t, err)
	require.Zero(t, entry.G.RankDeficiency)
	return entry
}

// Matrices sized for the two slot types: payload frames need k ≥ 384 bits,
// auth frames k ≥ 512.
func testVoiceCode(t *testing.T) *ldpc.CodeEntry { return makeCodeEntry(t, 480, 96, 21) }
func testAuthCode(t *testing.T) *ldpc.CodeEntry  { return makeCodeEntry(t, 640, 128, 22) }

func zeroPayloads() [][]byte {
	out := make([][]byte, PayloadFrames)
	for i := range out {
		out[i] = make([]byte, frame.BodySize)
	}
	return out
}

func numberedPayloads() [][]byte {
	out := make([][]byte, PayloadFrames)
	for i := range out {
		out[i] = make([]byte, frame.BodySize)
		for j := range out[i] {
			out[i][j] = byte(i*16 + j%16)
		}
	}
	return out
}

func plainEngine(t *testing.T, cfg Config, voice, auth *ldpc.CodeEntry) *Engine {
	t.Helper()
	ctx, err := crypto.NewContext(nil, nil, nil)
	require.NoError(t, err)
	if cfg.Callsign == "" {
		cfg.Callsign = "W1AW"
	}
	e, err := NewEngine(cfg, voice, auth, ctx)
	require.NoError(t, err)
	return e
}

func keyedEngine(t *testing.T, cfg Config, voice, auth *ldpc.CodeEntry, key []byte, priv ed25519.PrivateKey) *Engine {
	t.Helper()
	ctx, err := crypto.NewContext(priv, nil, key)
	require.NoError(t, err)
	if cfg.Callsign == "" {
		cfg.Callsign = "W1AW"
	}
	e, err := NewEngine(cfg, voice, auth, ctx)
	require.NoError(t, err)
	return e
}

// llrStream concatenates the encoded bits of assembled frames into one
// ideal-channel soft-decision stream.
func llrStream(frames []RawFramePayload) []float64 {
	var bits []uint8
	for _, f := range frames {
		bits = append(bits, f.Bits...)
	}
	return ldpc.BitsToLLRs(bits, 8)
}

func TestAssembleWithoutSigning(t *testing.T) {
	e := plainEngine(t, Config{}, nil, nil)
	assert.Equal(t, PayloadFrames, e.CycleLength())

	frames, err := e.Assemble(numberedPayloads())
	require.NoError(t, err)
	require.Len(t, frames, PayloadFrames)

	for i, f := range frames {
		assert.Equal(t, uint8(i), f.Slot)
		assert.Equal(t, frame.KindVoice, f.Kind)
		assert.Len(t, f.Frame, frame.PayloadFrameSize)
		assert.Len(t, f.Bits, frame.PayloadFrameSize*8)
	}
	assert.Equal(t, uint32(1), e.Stats().TxSuperframes)
}

func TestAssembleWithSigning(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	e := keyedEngine(t, Config{SigningEnabled: true}, nil, nil, nil, priv)
	assert.Equal(t, PayloadFrames+1, e.CycleLength())

	frames, err := e.Assemble(numberedPayloads())
	require.NoError(t, err)
	require.Len(t, frames, PayloadFrames+1)

	assert.Equal(t, frame.KindAuth, frames[0].Kind)
	assert.Equal(t, uint8(0), frames[0].Slot)
	assert.Len(t, frames[0].Frame, frame.AuthFrameSize)

	for i := 1; i < len(frames); i++ {
		assert.Equal(t, uint8(i), frames[i].Slot)
		assert.Len(t, frames[i].Frame, frame.PayloadFrameSize)
	}
}

func TestAssembleSigningRequiresKey(t *testing.T) {
	ctx, err := crypto.NewContext(nil, nil, nil)
	require.NoError(t, err)
	_, err = NewEngine(Config{Callsign: "W1AW", SigningEnabled: true}, nil, nil, ctx)
	assert.Error(t, err)
}

func TestAssembleRejectsWrongPayloadCount(t *testing.T) {
	e := plainEngine(t, Config{}, nil, nil)
	_, err := e.Assemble(zeroPayloads()[:23])
	assert.ErrorContains(t, err, "exactly 24")
}

func TestAssembleSlotPriority(t *testing.T) {
	e := plainEngine(t, Config{}, nil, nil)
	require.NoError(t, e.EnqueueText([]byte("hello")))
	require.NoError(t, e.EnqueueTelemetry([]byte("vbat=12.6")))

	frames, err := e.Assemble(numberedPayloads())
	require.NoError(t, err)

	// Telemetry outranks the earlier-queued text.
	assert.Equal(t, frame.KindTelemetry, frames[0].Kind)
	assert.Equal(t, frame.KindText, frames[1].Kind)
	for i := 2; i < PayloadFrames; i++ {
		assert.Equal(t, frame.KindVoice, frames[i].Kind)
	}
}

func TestEnqueueRejectsOversizedContent(t *testing.T) {
	e := plainEngine(t, Config{}, nil, nil)
	assert.ErrorIs(t, e.EnqueueTelemetry(make([]byte, frame.ContentSize+1)), frame.ErrMalformedInput)
	assert.ErrorIs(t, e.EnqueueText(make([]byte, frame.ContentSize+1)), frame.ErrMalformedInput)
}

func TestAssembleSyncFrameInterval(t *testing.T) {
	e := plainEngine(t, Config{SyncFrameInterval: 2}, nil, nil)

	// Superframe 0: 0 % 2 == 0, sync replaces payload slot 1.
	frames, err := e.Assemble(numberedPayloads())
	require.NoError(t, err)
	assert.Equal(t, frame.KindSync, frames[1].Kind)

	// Superframe 1: no sync.
	frames, err = e.Assemble(numberedPayloads())
	require.NoError(t, err)
	assert.Equal(t, frame.KindVoice, frames[1].Kind)

	// Superframe 2: sync again.
	frames, err = e.Assemble(numberedPayloads())
	require.NoError(t, err)
	assert.Equal(t, frame.KindSync, frames[1].Kind)
}

func TestSyncSuppressedWhileSigning(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	e := keyedEngine(t, Config{SigningEnabled: true, SyncFrameInterval: 1}, nil, nil, nil, priv)
	frames, err := e.Assemble(numberedPayloads())
	require.NoError(t, err)
	for _, f := range frames[1:] {
		assert.NotEqual(t, frame.KindSync, f.Kind)
	}
}

// The canonical loopback: all-zero payloads, all-zero symmetric key, signing
// disabled. Frame tags must equal the truncated deterministic MAC, every
// codeword must satisfy its parity check, and a noiseless decode must return
// the payloads unchanged.
func TestEndToEndAllZeroLoopback(t *testing.T) {
	voice := testVoiceCode(t)
	key := make([]byte, crypto.KeySize)

	tx := keyedEngine(t, Config{}, voice, nil, key, nil)
	frames, err := tx.Assemble(zeroPayloads())
	require.NoError(t, err)
	require.Len(t, frames, PayloadFrames)

	callsign, err := frame.EncodeCallsign("W1AW")
	require.NoError(t, err)

	for i, f := range frames {
		bound := append(append(append([]byte{}, make([]byte, frame.BodySize)...), callsign[:]...), byte(i))
		mac, err := crypto.ComputeMAC(bound, key)
		require.NoError(t, err)
		assert.Equal(t, mac[:frame.TagSize], f.Frame[frame.BodySize:], "slot %d tag", i)

		assert.Zero(t, voice.H.Syndrome(f.Bits), "slot %d codeword", i)
	}

	rx := keyedEngine(t, Config{}, voice, nil, key, nil)
	decoded, completed := rx.Push(llrStream(frames))

	require.Len(t, decoded, PayloadFrames)
	for _, df := range decoded {
		assert.True(t, df.Converged)
		assert.True(t, df.TagValid)
	}

	require.Len(t, completed, 1)
	result := completed[0]
	assert.Equal(t, uint32(0), result.Status.SuperframeCounter)
	assert.False(t, result.Status.Encrypted)
	require.Len(t, result.Frames, PayloadFrames)
	for _, rf := range result.Frames {
		assert.Equal(t, frame.KindVoice, rf.Kind)
		assert.Equal(t, make([]byte, frame.BodySize), rf.Payload)
	}
}

func TestPushHandlesArbitraryChunking(t *testing.T) {
	voice := testVoiceCode(t)
	tx := plainEngine(t, Config{}, voice, nil)
	frames, err := tx.Assemble(numberedPayloads())
	require.NoError(t, err)
	stream := llrStream(frames)

	oneShot := plainEngine(t, Config{}, voice, nil)
	wantDecoded, wantCompleted := oneShot.Push(stream)
	require.Len(t, wantDecoded, PayloadFrames)
	require.Len(t, wantCompleted, 1)

	chunked := plainEngine(t, Config{}, voice, nil)
	var gotDecoded []DecodedFrame
	var gotCompleted []SuperframeResult

	// Chunk sizes deliberately misaligned with the 480-LLR slot width.
	sizes := []int{1, 7, 113, 479, 481, 3000}
	idx, s := 0, 0
	for idx < len(stream) {
		size := sizes[s%len(sizes)]
		s++
		if idx+size > len(stream) {
			size = len(stream) - idx
		}
		d, c := chunked.Push(stream[idx : idx+size])
		gotDecoded = append(gotDecoded, d...)
		gotCompleted = append(gotCompleted, c...)
		idx += size
	}

	assert.Equal(t, wantDecoded, gotDecoded)
	assert.Equal(t, wantCompleted, gotCompleted)
}

func TestPushReturnsNothingOnShortChunk(t *testing.T) {
	voice := testVoiceCode(t)
	rx := plainEngine(t, Config{}, voice, nil)

	decoded, completed := rx.Push(make([]float64, voice.H.N-1))
	assert.Empty(t, decoded)
	assert.Empty(t, completed)
	assert.Equal(t, voice.H.N-1, rx.Stats().BufferedLLRs)

	// One more LLR completes the first frame.
	decoded, _ = rx.Push(make([]float64, 1))
	assert.Len(t, decoded, 1)
	assert.Zero(t, rx.Stats().BufferedLLRs)
}

func TestSlotWrapIncrementsSuperframeCounter(t *testing.T) {
	tx := plainEngine(t, Config{}, nil, nil)
	rx := plainEngine(t, Config{}, nil, nil)

	for want := uint32(0); want < 3; want++ {
		frames, err := tx.Assemble(numberedPayloads())
		require.NoError(t, err)
		_, completed := rx.Push(llrStream(frames))
		require.Len(t, completed, 1)
		assert.Equal(t, want, completed[0].Status.SuperframeCounter)
		assert.Equal(t, uint8(0), rx.Stats().Slot)
	}
}

func TestSignedLoopbackVerifies(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	voice := testVoiceCode(t)
	auth := testAuthCode(t)

	tx := keyedEngine(t, Config{SigningEnabled: true}, voice, auth, nil, priv)
	frames, err := tx.Assemble(numberedPayloads())
	require.NoError(t, err)
	require.Len(t, frames, PayloadFrames+1)

	rx := keyedEngine(t, Config{SigningEnabled: true}, voice, auth, nil, priv)
	decoded, completed := rx.Push(llrStream(frames))
	require.Len(t, decoded, PayloadFrames+1)
	assert.Equal(t, frame.KindAuth, decoded[0].Kind)

	require.Len(t, completed, 1)
	assert.True(t, completed[0].Status.SignatureValid)
}

func TestSignatureFromWrongKeyFailsVerification(t *testing.T) {
	_, txKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	_, rxKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	tx := keyedEngine(t, Config{SigningEnabled: true}, nil, nil, nil, txKey)
	frames, err := tx.Assemble(numberedPayloads())
	require.NoError(t, err)

	rx := keyedEngine(t, Config{SigningEnabled: true}, nil, nil, nil, rxKey)
	_, completed := rx.Push(llrStream(frames))
	require.Len(t, completed, 1)
	assert.False(t, completed[0].Status.SignatureValid)
	assert.Equal(t, uint64(1), rx.Stats().SignatureFailures)
}

func TestEncryptedLoopback(t *testing.T) {
	key := make([]byte, crypto.KeySize)
	key[3] = 0x7E

	tx := keyedEngine(t, Config{EncryptionEnabled: true}, nil, nil, key, nil)
	payloads := numberedPayloads()
	frames, err := tx.Assemble(payloads)
	require.NoError(t, err)

	// Wire bodies must not leak plaintext.
	assert.NotEqual(t, payloads[0], frames[0].Frame[:frame.BodySize])

	rx := keyedEngine(t, Config{EncryptionEnabled: true}, nil, nil, key, nil)
	_, completed := rx.Push(llrStream(frames))
	require.Len(t, completed, 1)

	result := completed[0]
	assert.True(t, result.Status.Encrypted)
	assert.True(t, result.Status.DecryptedSuccessfully)
	for i, rf := range result.Frames {
		assert.Equal(t, payloads[i], rf.Payload, "payload %d", i)
	}
}

func TestTagFailureDropsPayload(t *testing.T) {
	key := make([]byte, crypto.KeySize)

	tx := keyedEngine(t, Config{EncryptionEnabled: true}, nil, nil, key, nil)
	frames, err := tx.Assemble(numberedPayloads())
	require.NoError(t, err)

	// Uncoded link: a flipped bit reaches the frame layer uncorrected.
	stream := llrStream(frames)
	stream[5] = -stream[5]

	rx := keyedEngine(t, Config{EncryptionEnabled: true}, nil, nil, key, nil)
	_, completed := rx.Push(stream)
	require.Len(t, completed, 1)

	result := completed[0]
	assert.False(t, result.Status.DecryptedSuccessfully)
	assert.Nil(t, result.Frames[0].Payload, "tampered frame must not forward its payload")
	assert.False(t, result.Frames[0].TagValid)
	for _, rf := range result.Frames[1:] {
		assert.True(t, rf.TagValid)
		assert.NotNil(t, rf.Payload)
	}
	assert.Equal(t, uint64(1), rx.Stats().TagFailures)
}

func TestSyncFrameRealignsReceiver(t *testing.T) {
	tx := plainEngine(t, Config{SyncFrameInterval: 1}, nil, nil)

	// Advance the transmitter two superframes ahead of a fresh receiver.
	var frames []RawFramePayload
	var err error
	for i := 0; i < 3; i++ {
		frames, err = tx.Assemble(numberedPayloads())
		require.NoError(t, err)
	}

	rx := plainEngine(t, Config{SyncFrameInterval: 1}, nil, nil)
	decoded, completed := rx.Push(llrStream(frames))
	require.Len(t, decoded, PayloadFrames)
	assert.Equal(t, frame.KindSync, decoded[syncPayloadIndex].Kind)

	require.Len(t, completed, 1)
	assert.Equal(t, uint32(2), completed[0].Status.SuperframeCounter)
}

func TestNewEngineRejectsUndersizedMatrices(t *testing.T) {
	ctx, err := crypto.NewContext(nil, nil, nil)
	require.NoError(t, err)

	small := makeCodeEntry(t, 96, 32, 5) // k=64, far below a 48-byte frame
	_, err = NewEngine(Config{Callsign: "W1AW"}, small, nil, ctx)
	assert.ErrorContains(t, err, "cannot carry")

	_, err = NewEngine(Config{Callsign: "W1AW"}, nil, small, ctx)
	assert.ErrorContains(t, err, "cannot carry")
}

func TestMessageTypeClassification(t *testing.T) {
	tx := plainEngine(t, Config{}, nil, nil)
	require.NoError(t, tx.EnqueueTelemetry([]byte("t")))

	frames, err := tx.Assemble(numberedPayloads())
	require.NoError(t, err)

	rx := plainEngine(t, Config{}, nil, nil)
	_, completed := rx.Push(llrStream(frames))
	require.Len(t, completed, 1)
	assert.Equal(t, "mixed", completed[0].Status.MessageType)
}
