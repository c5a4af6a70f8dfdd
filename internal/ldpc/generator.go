package ldpc

import (
	"errors"
	"fmt"
	"math/bits"
)

// ErrLengthMismatch is returned by Encode when the information vector does
// not match the generator's information length k.
var ErrLengthMismatch = errors.New("ldpc: information length mismatch")

// GeneratorMatrix holds a systematic generator G = [I_k | P] derived from a
// parity-check matrix. Only the parity part P is stored: codewords are
// formed as [info | info·P]. Rows of Pᵗ are kept as bitsets over the k
// information positions for fast encoding.
type GeneratorMatrix struct {
	N int // Codeword length
	K int // Information length
	M int // Parity length (n - k)

	// parity[i] is row i of Pᵗ restricted to the k information columns:
	// parity bit i = parity[i] · info (mod 2).
	parity [][]uint64

	// RankDeficiency counts parity columns for which Gaussian elimination
	// found no pivot. Zero for a full-rank systematic form; a non-zero
	// value means the matrix was processed best-effort and the affected
	// parity bits are always zero.
	RankDeficiency int
}

// Generator derives a systematic generator matrix from H by Gaussian
// elimination over GF(2), bringing the last m columns of H to the identity
// so that H = [Pᵗ | I_m] and G = [I_k | P]. Row swaps and row additions
// only; if some pivot cannot be found the construction proceeds best-effort
// and reports the deficiency through the RankDeficiency field. This is a
// pre-flight operation on static matrices, not a per-frame path.
func Generator(h *ParityCheckMatrix) (*GeneratorMatrix, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}

	n, m, k := h.N, h.M, h.K()
	words := (n + 63) / 64

	// Densify H.
	rows := make([][]uint64, m)
	for i := range rows {
		rows[i] = make([]uint64, words)
	}
	for j, colRows := range h.ColRows {
		for _, i := range colRows {
			rows[i][j/64] |= 1 << uint(j%64)
		}
	}

	deficient := 0
	for i := 0; i < m; i++ {
		pivotCol := k + i

		// Find a row at or below i with a one in the pivot column.
		pivot := -1
		for r := i; r < m; r++ {
			if bitAt(rows[r], pivotCol) {
				pivot = r
				break
			}
		}
		if pivot < 0 {
			// No usable pivot for this parity column. Leave the row as-is
			// and record the deficiency; the caller decides whether a
			// partial systematic form is acceptable.
			deficient++
			continue
		}
		rows[i], rows[pivot] = rows[pivot], rows[i]

		// Clear the pivot column from every other row.
		for r := 0; r < m; r++ {
			if r != i && bitAt(rows[r], pivotCol) {
				xorRow(rows[r], rows[i])
			}
		}
	}

	g := &GeneratorMatrix{
		N:              n,
		K:              k,
		M:              m,
		parity:         make([][]uint64, m),
		RankDeficiency: deficient,
	}

	infoWords := (k + 63) / 64
	for i := 0; i < m; i++ {
		row := make([]uint64, infoWords)
		for j := 0; j < k; j++ {
			if bitAt(rows[i], j) {
				row[j/64] |= 1 << uint(j%64)
			}
		}
		g.parity[i] = row
	}

	return g, nil
}

// Encode multiplies an information bit vector by G (mod 2), producing an
// n-bit systematic codeword [info | parity]. The result always satisfies
// H·cᵗ = 0 for the full-rank part of the matrix.
func (g *GeneratorMatrix) Encode(info []uint8) ([]uint8, error) {
	if len(info) != g.K {
		return nil, fmt.Errorf("%w: got %d bits, generator expects k=%d", ErrLengthMismatch, len(info), g.K)
	}

	infoWords := (g.K + 63) / 64
	packed := make([]uint64, infoWords)
	for j, b := range info {
		if b&1 != 0 {
			packed[j/64] |= 1 << uint(j%64)
		}
	}

	codeword := make([]uint8, g.N)
	copy(codeword, info)
	for i := 0; i < g.M; i++ {
		var acc uint64
		for w, pw := range g.parity[i] {
			acc ^= pw & packed[w]
		}
		codeword[g.K+i] = uint8(bits.OnesCount64(acc) & 1)
	}

	return codeword, nil
}

func bitAt(row []uint64, j int) bool {
	return row[j/64]&(1<<uint(j%64)) != 0
}

func xorRow(dst, src []uint64) {
	for w := range dst {
		dst[w] ^= src[w]
	}
}
