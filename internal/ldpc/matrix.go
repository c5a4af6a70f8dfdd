package ldpc

import (
	"fmt"
)

// ParityCheckMatrix represents a sparse m×n parity-check matrix H.
// It is stored as adjacency lists in both directions: the rows connected
// to each column (variable node) and the columns connected to each row
// (check node). Instances are built once by the alist parser and never
// mutated afterwards, so they are safe for concurrent readers.
type ParityCheckMatrix struct {
	Name string // Matrix name as registered in the Store

	N int // Codeword length (number of columns / variable nodes)
	M int // Number of parity checks (rows / check nodes)

	ColRows [][]int // ColRows[j] = rows connected to column j (0-based)
	RowCols [][]int // RowCols[i] = columns connected to row i (0-based)
}

// K returns the information length k = n - m.
func (h *ParityCheckMatrix) K() int {
	return h.N - h.M
}

// Validate checks the structural invariants of the matrix: consistent
// dimensions and at least one connection in every row and column.
func (h *ParityCheckMatrix) Validate() error {
	if h.N <= 0 || h.M <= 0 {
		return fmt.Errorf("matrix %q: invalid dimensions n=%d m=%d", h.Name, h.N, h.M)
	}

	if h.M >= h.N {
		return fmt.Errorf("matrix %q: parity count m=%d must be less than codeword length n=%d", h.Name, h.M, h.N)
	}

	if len(h.ColRows) != h.N {
		return fmt.Errorf("matrix %q: expected %d column lists, got %d", h.Name, h.N, len(h.ColRows))
	}

	if len(h.RowCols) != h.M {
		return fmt.Errorf("matrix %q: expected %d row lists, got %d", h.Name, h.M, len(h.RowCols))
	}

	for j, rows := range h.ColRows {
		if len(rows) == 0 {
			return fmt.Errorf("matrix %q: column %d has no connections", h.Name, j)
		}
		for _, i := range rows {
			if i < 0 || i >= h.M {
				return fmt.Errorf("matrix %q: column %d references row %d outside [0,%d)", h.Name, j, i, h.M)
			}
		}
	}

	for i, cols := range h.RowCols {
		if len(cols) == 0 {
			return fmt.Errorf("matrix %q: row %d has no connections", h.Name, i)
		}
		for _, j := range cols {
			if j < 0 || j >= h.N {
				return fmt.Errorf("matrix %q: row %d references column %d outside [0,%d)", h.Name, i, j, h.N)
			}
		}
	}

	return nil
}

// Syndrome computes H·c mod 2 for an n-bit codeword and returns the number
// of unsatisfied parity checks. A valid codeword yields zero.
func (h *ParityCheckMatrix) Syndrome(codeword []uint8) int {
	errors := 0
	for _, cols := range h.RowCols {
		var x uint8
		for _, j := range cols {
			x ^= codeword[j] & 1
		}
		if x != 0 {
			errors++
		}
	}
	return errors
}

// MaxColumnDegree returns the largest number of checks any variable node
// participates in.
func (h *ParityCheckMatrix) MaxColumnDegree() int {
	max := 0
	for _, rows := range h.ColRows {
		if len(rows) > max {
			max = len(rows)
		}
	}
	return max
}

// MaxRowDegree returns the largest number of variables any check node
// connects to.
func (h *ParityCheckMatrix) MaxRowDegree() int {
	max := 0
	for _, cols := range h.RowCols {
		if len(cols) > max {
			max = len(cols)
		}
	}
	return max
}
