// Package transport moves encoded messages between agents.
//
// The HTTP server accepts messages on POST /pulse/v1/message, runs them
// through decoding, signature verification, replay protection, and
// validation, then dispatches to a handler registered for the message's
// action concept. Responses go back in the same wire format the request
// arrived in. The client is the sending half: it signs, encodes, posts,
// retries on transient failures, and decodes the reply.
//
// A NATS request/reply variant lives in the natstransport subpackage for
// deployments that already run a message bus.
package transport
