// Package message defines the PULSE message model: the envelope metadata,
// the closed message type set, and the content payload.
//
// Constructors in this package do not validate semantics; they only populate
// the envelope (version, timestamp, message id, nonce) from the process
// clock and randomness sources. Use the root pulse package for the
// validate-on-construction entry point, or run a validate.Validator over a
// composed message explicitly.
package message
