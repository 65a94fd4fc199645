// Package dygram provides a declarative state machine language and its
// execution engine.
//
// Machines are written in a compact text notation: nodes declared by dotted
// qualified names, typed attributes, annotations and a closed set of arrow
// relationships. The toolchain parses the notation into a canonical graph,
// merges repeated declarations, resolves references, validates the result and
// then executes it one node at a time, delegating every transition decision
// to an external decider (typically an LLM agent).
//
// End-users typically interact with the engine via the high-level Service
// facade exposed by the root package:
//
//	srv := dygram.New(dygram.WithDecider(myDecider))
//	rt := srv.Runtime()
//	machine, _ := rt.LoadMachine(ctx, "order-flow.dg")
//	run, wait, _ := rt.StartRun(ctx, machine, nil)
//	out, _ := wait(ctx, time.Minute)
//
// Runs own a private clone of the machine, so the self-modification tools
// (add_node, remove_node, modify_edge and the context accessors) rewrite the
// running instance without touching the compiled source.
//
// For more details see the README and individual sub-packages.
package dygram
