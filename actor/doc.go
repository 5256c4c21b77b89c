// Package actor is the core of an actor-model runtime: it turns user-defined
// message-handling objects into independently schedulable entities with
// location transparency, supervised failure recovery and pluggable execution
// policies.
//
// An actor is an addressable, single-threaded handler of asynchronous
// messages. The handle to it (a Ref) can be held safely by many sites, can
// point at a local or a remote actor, and survives restarts transparently
// from the holder's perspective. Three subsystems interact:
//
//   - The handle and lifecycle core: an identity-preserving reference that
//     multiplexes between local, remote and being-restarted states while
//     guaranteeing at-most-one-message-at-a-time execution of the mutable
//     actor instance. The per-mailbox processing token is the enforcement
//     mechanism.
//
//   - The dispatch layer: interchangeable scheduling strategies that own
//     mailboxes and drive message processing, from a dedicated goroutine per
//     actor down to cooperative multiplexing of many actors over few
//     workers with a bounded per-drain throughput.
//
//   - The supervision hierarchy: the link graph, failure propagation and
//     restart policy engine that turns an unhandled failure in one actor
//     into a bounded, policy-driven recovery of it and its dependents.
//
// Serialization, the wire transport for remote actors and the software
// transactional memory behind transactional mailboxes are external
// collaborators consumed through the MessageCodec, Transport and
// TransactionManager interfaces.
package actor
