package ldpc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ParseAlist reads a parity-check matrix in alist format:
//
//	line 1:          n m        (codeword length, parity-check count)
//	line 2:          max column degree, max row degree (informational)
//	next n lines:    1-indexed row connections for each column
//	next m lines:    1-indexed column connections for each row
//
// The matrix is built authoritatively from the column connections and
// cross-checked against the row connections; a mismatch between the two
// sections is a parse error. Zero entries are degree padding and ignored.
func ParseAlist(name string, r io.Reader) (*ParityCheckMatrix, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	header, err := nextFields(scanner)
	if err != nil {
		return nil, fmt.Errorf("alist %q: missing dimension line: %w", name, err)
	}
	if len(header) != 2 {
		return nil, fmt.Errorf("alist %q: dimension line must hold exactly n and m, got %d fields", name, len(header))
	}

	n, err := strconv.Atoi(header[0])
	if err != nil {
		return nil, fmt.Errorf("alist %q: bad codeword length %q: %w", name, header[0], err)
	}
	m, err := strconv.Atoi(header[1])
	if err != nil {
		return nil, fmt.Errorf("alist %q: bad parity-check count %q: %w", name, header[1], err)
	}
	if n <= 0 || m <= 0 || m >= n {
		return nil, fmt.Errorf("alist %q: invalid dimensions n=%d m=%d", name, n, m)
	}

	// Maximum degrees are informational only; the line must parse but its
	// values are not required for correctness.
	if _, err := nextFields(scanner); err != nil {
		return nil, fmt.Errorf("alist %q: missing degree line: %w", name, err)
	}

	h := &ParityCheckMatrix{
		Name:    name,
		N:       n,
		M:       m,
		ColRows: make([][]int, n),
		RowCols: make([][]int, m),
	}

	for j := 0; j < n; j++ {
		entries, err := nextFields(scanner)
		if err != nil {
			return nil, fmt.Errorf("alist %q: missing connection list for column %d: %w", name, j, err)
		}
		rows, err := parseConnections(entries, m)
		if err != nil {
			return nil, fmt.Errorf("alist %q: column %d: %w", name, j, err)
		}
		h.ColRows[j] = rows
	}

	// Derive the row adjacency from the authoritative column section.
	for j, rows := range h.ColRows {
		for _, i := range rows {
			h.RowCols[i] = append(h.RowCols[i], j)
		}
	}

	// Cross-check against the row section.
	for i := 0; i < m; i++ {
		entries, err := nextFields(scanner)
		if err != nil {
			return nil, fmt.Errorf("alist %q: missing connection list for row %d: %w", name, i, err)
		}
		cols, err := parseConnections(entries, n)
		if err != nil {
			return nil, fmt.Errorf("alist %q: row %d: %w", name, i, err)
		}
		if !sameConnections(h.RowCols[i], cols) {
			return nil, fmt.Errorf("alist %q: row %d connections disagree with column section", name, i)
		}
	}

	if err := h.Validate(); err != nil {
		return nil, err
	}

	return h, nil
}

// LoadAlistFile parses an alist file from disk. The matrix name is the path.
func LoadAlistFile(path string) (*ParityCheckMatrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open matrix file: %w", err)
	}
	defer f.Close()

	return ParseAlist(path, f)
}

// nextFields returns the whitespace-separated fields of the next non-empty line.
func nextFields(scanner *bufio.Scanner) ([]string, error) {
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) > 0 {
			return fields, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.ErrUnexpectedEOF
}

// parseConnections converts a list of 1-indexed connection entries to
// 0-based indices, dropping zero padding entries. A repeated index is a
// parse error: a duplicated edge is meaningless over GF(2) and would make
// the XOR-based syndrome disagree with the generator's densified rows.
func parseConnections(entries []string, limit int) ([]int, error) {
	out := make([]int, 0, len(entries))
	seen := make(map[int]bool, len(entries))
	for _, e := range entries {
		v, err := strconv.Atoi(e)
		if err != nil {
			return nil, fmt.Errorf("bad connection entry %q: %w", e, err)
		}
		if v == 0 {
			continue // degree padding
		}
		if v < 0 || v > limit {
			return nil, fmt.Errorf("connection %d outside [1,%d]", v, limit)
		}
		if seen[v] {
			return nil, fmt.Errorf("duplicate connection %d", v)
		}
		seen[v] = true
		out = append(out, v-1)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no connections")
	}
	return out, nil
}

// sameConnections reports whether two connection lists hold the same
// indices with the same multiplicities, regardless of order.
func sameConnections(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[int]int, len(a))
	for _, v := range a {
		counts[v]++
	}
	for _, v := range b {
		counts[v]--
		if counts[v] < 0 {
			return false
		}
	}
	return true
}
