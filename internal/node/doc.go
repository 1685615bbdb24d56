// Package node implements the helix propagation engine.
//
// Three node kinds participate:
//   - Master owns one canonical data set and is its exclusive write gateway.
//   - Expression holds a derived view rebuilt from filtered change events
//     and routes proposed edits back through the nearest master.
//   - Composite is both at once, relaying upstream changes downstream with
//     its own sequence numbers, enabling chained topologies.
//
// ARCHITECTURE:
//
// Synchronous ordered delivery:
// A mutation fully completes its broadcast - including nested composite
// relays - before Mutate returns. Subscriptions are evaluated in
// registration order against the single freshly created event. Derived
// views therefore never observe a half-applied mutation or a stale sequence
// number: "mutate returns only after all subscribers are consistent" is an
// invariant, not an aspiration.
//
// Locking discipline:
// Each master (and composite, in its master role) serializes its mutation
// and subscription APIs behind one mutex - one mutation in flight at a time.
// Mutations to different masters are independent. Handlers run inside the
// mutating call and must not block on external work or call back into the
// node that is notifying them.
//
// Failure isolation:
// A subscriber whose projector or handler fails does not rob the remaining
// subscribers of their notifications. The mutation is already committed;
// the failures come back aggregated in a *DeliveryError, and the affected
// subscriber recovers by re-linking for a fresh snapshot.
//
// Edits flow the opposite direction: an expression's RequestEdit is
// forwarded through zero or more composite links until it reaches a true
// master's mutate path, which re-enters the forward propagation cycle. The
// originator receives the committed event as the return value and, when its
// own selector matches, again as an ordinary notification - the echo is
// part of the contract.
package node
