package ldpc

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Variant selects the check-node update rule used by DecodeSoft.
type Variant int

const (
	// SumProduct is the full tanh/atanh belief-propagation update.
	SumProduct Variant = iota
	// MinSum approximates the check update with a scaled minimum-magnitude
	// rule, trading a fraction of a dB of coding gain for much lower cost.
	MinSum
)

// minSumScale damps the min-sum approximation's overconfident magnitudes.
const minSumScale = 0.75

// llrClamp bounds message magnitudes so tanh/atanh stay numerically sane.
const llrClamp = 24.0

// DecodeResult carries the outcome of a soft decode. Decoding never fails:
// when the iteration budget runs out without a zero syndrome the best-effort
// hard decision observed so far is returned and Converged is false. Frame
// integrity must be established by the crypto layer, never inferred from
// convergence alone.
type DecodeResult struct {
	Info     []uint8 // Hard-decided information bits (first k positions)
	Codeword []uint8 // Full n-bit hard decision

	Converged    bool // True if the syndrome reached zero
	Iterations   int  // Iterations actually run
	ParityErrors int  // Unsatisfied checks of the returned decision

	// Channel-quality estimate over the input magnitudes: the mean and
	// standard deviation of |LLR|. Useful for link monitoring; plays no
	// part in the decode itself.
	MeanLLR   float64
	StdDevLLR float64
}

// DecodeSoft runs iterative belief propagation over the bipartite graph of
// H. Input LLRs follow the positive-means-zero convention; inputs shorter
// than n are zero-padded (no confidence), longer inputs are truncated.
func DecodeSoft(llrs []float64, h *ParityCheckMatrix, maxIter int, variant Variant) DecodeResult {
	n, m, k := h.N, h.M, h.K()

	channel := make([]float64, n)
	copy(channel, llrs)
	for i := range channel {
		channel[i] = clamp(channel[i])
	}

	mags := make([]float64, 0, len(llrs))
	for _, l := range llrs {
		mags = append(mags, math.Abs(l))
	}
	var meanLLR, stdLLR float64
	if len(mags) > 0 {
		meanLLR = stat.Mean(mags, nil)
		if len(mags) > 1 {
			stdLLR = stat.StdDev(mags, nil)
		}
	}

	// toVar[i][e] is the message from check i to its e-th variable;
	// indexed parallel to h.RowCols[i].
	toVar := make([][]float64, m)
	for i := range toVar {
		toVar[i] = make([]float64, len(h.RowCols[i]))
	}

	posterior := make([]float64, n)
	hard := make([]uint8, n)
	best := make([]uint8, n)
	bestErrors := m + 1
	iterations := 0

	for iter := 0; iter < maxIter; iter++ {
		iterations = iter + 1

		// Posterior per bit: channel LLR plus all incoming check messages.
		copy(posterior, channel)
		for i, cols := range h.RowCols {
			for e, j := range cols {
				posterior[j] += toVar[i][e]
			}
		}
		for j, p := range posterior {
			if p >= 0 {
				hard[j] = 0
			} else {
				hard[j] = 1
			}
		}

		errors := h.Syndrome(hard)
		if errors < bestErrors {
			bestErrors = errors
			copy(best, hard)
		}
		if errors == 0 {
			return finishDecode(best, k, true, iterations, 0, meanLLR, stdLLR)
		}

		// Check-node update. The variable-to-check message for each edge is
		// the posterior minus this check's own previous contribution.
		for i, cols := range h.RowCols {
			deg := len(cols)
			incoming := make([]float64, deg)
			for e, j := range cols {
				incoming[e] = clamp(posterior[j] - toVar[i][e])
			}

			switch variant {
			case MinSum:
				updateMinSum(incoming, toVar[i])
			default:
				updateSumProduct(incoming, toVar[i])
			}
		}
	}

	return finishDecode(best, k, false, iterations, bestErrors, meanLLR, stdLLR)
}

// updateSumProduct computes 2·atanh(Π tanh(in/2)) per edge, excluding each
// edge's own incoming message from its product.
func updateSumProduct(incoming, out []float64) {
	deg := len(incoming)
	tanhs := make([]float64, deg)
	for e, v := range incoming {
		tanhs[e] = math.Tanh(v / 2)
	}
	for e := 0; e < deg; e++ {
		prod := 1.0
		for o := 0; o < deg; o++ {
			if o != e {
				prod *= tanhs[o]
			}
		}
		out[e] = clamp(2 * atanh(prod))
	}
}

// updateMinSum approximates the check update with the scaled minimum of the
// other incoming magnitudes, carrying the product of their signs.
func updateMinSum(incoming, out []float64) {
	deg := len(incoming)
	for e := 0; e < deg; e++ {
		sign := 1.0
		minMag := math.Inf(1)
		for o := 0; o < deg; o++ {
			if o == e {
				continue
			}
			if incoming[o] < 0 {
				sign = -sign
			}
			if mag := math.Abs(incoming[o]); mag < minMag {
				minMag = mag
			}
		}
		if math.IsInf(minMag, 1) {
			minMag = 0
		}
		out[e] = clamp(sign * minSumScale * minMag)
	}
}

func finishDecode(codeword []uint8, k int, converged bool, iterations, parityErrors int, meanLLR, stdLLR float64) DecodeResult {
	cw := make([]uint8, len(codeword))
	copy(cw, codeword)
	return DecodeResult{
		Info:         cw[:k],
		Codeword:     cw,
		Converged:    converged,
		Iterations:   iterations,
		ParityErrors: parityErrors,
		MeanLLR:      meanLLR,
		StdDevLLR:    stdLLR,
	}
}

func atanh(x float64) float64 {
	// Guard the open interval; message clamping keeps |x| < 1 in normal
	// operation but exact ±1 can appear after rounding.
	const limit = 1 - 1e-12
	if x >= limit {
		x = limit
	} else if x <= -limit {
		x = -limit
	}
	return math.Atanh(x)
}

func clamp(v float64) float64 {
	if v > llrClamp {
		return llrClamp
	}
	if v < -llrClamp {
		return -llrClamp
	}
	return v
}
