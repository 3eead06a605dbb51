// Package security provides message-level integrity and replay protection.
//
// Signatures are HMAC-SHA256 over a canonical serialization of the envelope
// (minus the signature field) and content, so any post-signing mutation is
// detectable. Signing is deterministic: the same message and key always
// produce the same signature. Signatures authenticate and protect integrity
// only; they provide no confidentiality, which belongs to the transport.
//
// A message moves through trust states: unsigned after construction, signed
// after Sign writes the envelope signature, and verified or rejected by the
// receiver's Verify call.
package security
