// Package ldpc implements the LDPC forward-error-correction engine.
// It loads parity-check matrices from alist files, derives systematic
// generator matrices over GF(2), encodes information bits into codewords,
// and decodes soft-decision log-likelihood ratios with iterative belief
// propagation (sum-product or min-sum).
package ldpc
