// Package crypto provides the authentication and confidentiality primitives
// for the link layer: Ed25519 signatures over SHA3-256 digests for superframe
// authentication, ChaCha20-Poly1305 AEAD for full-message encryption, and a
// deterministic truncatable MAC for per-frame integrity tags.
//
// The package is policy-free: it never decides whether a failed check drops a
// frame or merely flags it. Callers hold a Context with whatever key material
// the link is configured with and consult its capability methods before each
// operation.
package crypto
