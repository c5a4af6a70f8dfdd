// Package superframe implements the link's one-second framing cycle: 24
// payload slots of 40 ms each, preceded by an authentication slot when
// signing is enabled.
//
// The transmit side assembles sealed frames from queued voice, telemetry and
// text, signs the superframe digest, and FEC-encodes each frame with the
// matrix appropriate to its slot. The receive side is a state machine fed an
// unbounded stream of soft decisions in arbitrarily sized chunks: it
// accumulates log-likelihood ratios, decodes one frame whenever a full slot's
// worth is buffered, and emits a completed superframe with its status record
// once every slot of the cycle has been filled.
//
// An Engine is single-owner and fully synchronous. Callers that share one
// across goroutines must serialise access themselves; the server layer does
// so per link.
package superframe
