// Package pulse is the entry point for the PULSE protocol engine: a
// vendor-neutral message protocol that lets autonomous agents exchange
// requests built from a fixed, versioned vocabulary of semantic concepts
// instead of free-form method names.
//
// The usual producer flow:
//
//	msg, err := pulse.New("ACT.QUERY.DATA",
//		pulse.WithTarget("ENT.DATA.TEXT"),
//		pulse.WithParameters(map[string]any{"query": "hello world"}),
//		pulse.WithSender("agent-a"),
//	)
//	// validate happened at construction
//	mgr, _ := security.NewManager(key)
//	mgr.Sign(msg)
//	wire, _ := codec.Encode(msg, codec.FormatBinary)
//
// and on receipt: codec.Decode, security verify + replay check, then
// validate again before handing the payload to application logic. Every
// operation in the core is a pure synchronous computation safe for
// concurrent use; the only mutation is the one-time signature write into an
// envelope the caller exclusively owns.
package pulse
