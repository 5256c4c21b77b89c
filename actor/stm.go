package actor

// TransactionSet is the opaque transaction context attached to a message.
// The runtime never inspects it; it only threads the token from sender to
// receiver and tells the transaction collaborator to join, commit or abort.
type TransactionSet any

// TxnJoinMode selects how a handler joins the transaction set attached to the
// message it is processing.
type TxnJoinMode int

const (
	// TxnRequiresExisting joins the attached set and fails with
	// ErrDeadTransaction if there is none or it is no longer live.
	TxnRequiresExisting TxnJoinMode = iota

	// TxnRequires joins the attached set, creating a fresh one when the
	// message carried none.
	TxnRequires

	// TxnRequiresNew always creates and joins a fresh set.
	TxnRequiresNew
)

// TransactionManager is the interface consumed from the external software
// transactional memory collaborator. Transactional behavior is modeled only
// through this surface; the STM itself lives outside the runtime.
type TransactionManager interface {
	// Current returns the transaction set ambient to the calling
	// goroutine, or nil when there is none.
	Current() TransactionSet

	// New creates a fresh transaction set.
	New() TransactionSet

	// Clear drops the ambient transaction set of the calling goroutine.
	Clear()

	// Join makes the given set ambient per the join mode. A join against
	// an aborted set fails with ErrDeadTransaction.
	Join(ts TransactionSet, mode TxnJoinMode) error

	// Abort rolls the set back.
	Abort(ts TransactionSet)

	// Commit commits the set.
	Commit(ts TransactionSet)
}

// nopTxnManager is the default collaborator used when no STM is wired in:
// every operation is a no-op and no message ever carries a transaction set.
type nopTxnManager struct{}

func (nopTxnManager) Current() TransactionSet { return nil }

func (nopTxnManager) New() TransactionSet { return nil }

func (nopTxnManager) Clear() {}

func (nopTxnManager) Join(TransactionSet, TxnJoinMode) error { return nil }

func (nopTxnManager) Abort(TransactionSet) {}

func (nopTxnManager) Commit(TransactionSet) {}
