// Package frame builds and parses the fixed-size link frames that fill
// superframe slots: voice, telemetry, text, sync and authentication.
//
// All payload-slot frames are 48 bytes: a 40-byte body followed by an 8-byte
// integrity tag. Voice bodies are raw codec output; telemetry and text bodies
// carry up to 39 content bytes plus a type discriminator in the final body
// byte. Authentication frames are 64 bytes (a full link signature) and only
// ever occupy slot 0. The Codec seals and opens bodies using the link's
// crypto context; parsing itself is pure byte work.
package frame
