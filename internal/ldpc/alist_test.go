package ldpc

import (
	"strings"
	"testing"
)

// hamming73 is the (7,4) Hamming code in alist form: 7 columns, 3 checks.
const hamming73 = `7 3
3 4
1
2
1 2
3
1 3
2 3
1 2 3
1 3 5 7
2 3 6 7
4 5 6 7
`

func TestParseAlist(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expectError bool
		errorMsg    string
	}{
		{
			name:  "valid hamming matrix",
			input: hamming73,
		},
		{
			name: "zero padding entries ignored",
			input: `7 3
3 4
1 0 0
2 0 0
1 2 0
3 0 0
1 3 0
2 3 0
1 2 3
1 3 5 7
2 3 6 7
4 5 6 7
`,
		},
		{
			name:        "missing dimension line",
			input:       "",
			expectError: true,
			errorMsg:    "missing dimension line",
		},
		{
			name:        "dimension line with wrong field count",
			input:       "7 3 9\n3 4\n",
			expectError: true,
			errorMsg:    "exactly n and m",
		},
		{
			name:        "parity count not below codeword length",
			input:       "3 3\n1 1\n",
			expectError: true,
			errorMsg:    "invalid dimensions",
		},
		{
			name: "row section disagrees with column section",
			input: `7 3
3 4
1
2
1 2
3
1 3
2 3
1 2 3
1 3 5 7
2 3 6 7
4 5 6 3
`,
			expectError: true,
			errorMsg:    "disagree",
		},
		{
			name: "duplicate connection in column section",
			input: `7 3
3 4
1
2
1 2 2
3
1 3
2 3
1 2 3
1 3 5 7
2 3 6 7
4 5 6 7
`,
			expectError: true,
			errorMsg:    "duplicate connection",
		},
		{
			name: "duplicate connection in row section",
			input: `7 3
3 4
1
2
1 2
3
1 3
2 3
1 2 3
1 3 5 7
2 3 6 7
4 5 6 6
`,
			expectError: true,
			errorMsg:    "duplicate connection",
		},
		{
			name: "connection out of range",
			input: `7 3
3 4
9
2
1 2
3
1 3
2 3
1 2 3
1 3 5 7
2 3 6 7
4 5 6 7
`,
			expectError: true,
			errorMsg:    "outside",
		},
		{
			name: "truncated column section",
			input: `7 3
3 4
1
2
`,
			expectError: true,
			errorMsg:    "missing connection list",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := ParseAlist(tt.name, strings.NewReader(tt.input))

			if tt.expectError {
				if err == nil {
					t.Fatalf("expected error containing %q, got none", tt.errorMsg)
				}
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Fatalf("expected error containing %q, got %q", tt.errorMsg, err.Error())
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if h.N != 7 || h.M != 3 || h.K() != 4 {
				t.Fatalf("wrong dimensions: n=%d m=%d k=%d", h.N, h.M, h.K())
			}
			if got := len(h.RowCols[2]); got != 4 {
				t.Fatalf("row 2 should hold 4 connections, got %d", got)
			}
		})
	}
}

func TestParseAlistRowAdjacencyMatchesColumns(t *testing.T) {
	h, err := ParseAlist("hamming", strings.NewReader(hamming73))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Every (row, column) connection must appear in both directions.
	for j, rows := range h.ColRows {
		for _, i := range rows {
			found := false
			for _, jj := range h.RowCols[i] {
				if jj == j {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("connection (row %d, col %d) missing from row adjacency", i, j)
			}
		}
	}
}

func TestSyndromeOnKnownCodewords(t *testing.T) {
	h, err := ParseAlist("hamming", strings.NewReader(hamming73))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The all-zero word is a codeword of every linear code.
	zero := make([]uint8, 7)
	if errs := h.Syndrome(zero); errs != 0 {
		t.Fatalf("all-zero word should satisfy every check, got %d errors", errs)
	}

	// A single one never satisfies a connected check.
	oneBit := make([]uint8, 7)
	oneBit[6] = 1
	if errs := h.Syndrome(oneBit); errs != 3 {
		t.Fatalf("weight-one word on a degree-3 column should fail 3 checks, got %d", errs)
	}
}
