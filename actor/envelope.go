package actor

// envelope is the unit flowing through mailboxes. It carries the payload, the
// optional sender handle, the optional reply promise (present iff the send was
// an ask), and the opaque transaction-set token the sender was running under.
// An envelope is created by the sender, owned by the mailbox until drained,
// and consumed exactly once.
type envelope struct {
	// payload is the user message.
	payload Message

	// sender is the handle of the sending actor, if the send carried one.
	sender Ref

	// promise completes the ask that produced this envelope. Nil for tell
	// operations.
	promise Promise[any]

	// txn is the opaque transaction-set token attached by the sender, or
	// nil when the send happened outside any transaction.
	txn TransactionSet
}

// completeErr completes the envelope's reply promise exceptionally, if one is
// attached. It is used on every non-delivery and failure path so an asking
// caller never hangs until its timeout when the outcome is already known.
func (e *envelope) completeErr(err error) {
	if e.promise != nil {
		e.promise.Complete(errResult(err))
	}
}
