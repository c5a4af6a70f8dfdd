package ldpc

// BytesToBits expands bytes into one bit per element, MSB first.
func BytesToBits(data []byte) []uint8 {
	out := make([]uint8, len(data)*8)
	for i, b := range data {
		for bit := 0; bit < 8; bit++ {
			out[i*8+bit] = (b >> uint(7-bit)) & 1
		}
	}
	return out
}

// BitsToBytes packs a bit vector into bytes, MSB first. The bit count must
// be a multiple of eight; trailing bits beyond the last full byte would be
// a framing bug, so they are not silently dropped.
func BitsToBytes(bits []uint8) []byte {
	out := make([]byte, len(bits)/8)
	for i := range out {
		var b byte
		for bit := 0; bit < 8; bit++ {
			b = b<<1 | (bits[i*8+bit] & 1)
		}
		out[i] = b
	}
	return out
}

// BitsToLLRs converts hard bits to ideally confident log-likelihood ratios
// under the positive-means-zero convention. Used for loopback tests and the
// uncoded fallback path.
func BitsToLLRs(bits []uint8, confidence float64) []float64 {
	out := make([]float64, len(bits))
	for i, b := range bits {
		if b&1 == 0 {
			out[i] = confidence
		} else {
			out[i] = -confidence
		}
	}
	return out
}

// HardDecide converts LLRs to hard bits: non-negative values decide zero.
func HardDecide(llrs []float64) []uint8 {
	out := make([]uint8, len(llrs))
	for i, l := range llrs {
		if l < 0 {
			out[i] = 1
		}
	}
	return out
}
