// Package codec serializes PULSE messages for the wire.
//
// Three formats share one interface: JSON (human-readable text), Binary
// (MessagePack, roughly an order of magnitude smaller), and Compact (a
// reserved schema-aware layout). Every encoded stream starts with an
// explicit discriminant so decoders never sniff: JSON streams open with '{',
// binary streams with the 0xB1 tag byte, and 0xC1 is reserved for the
// compact layout. Requests to encode in the compact format degrade
// gracefully to binary until the layout is specified.
package codec
