package remote

// TransferKind distinguishes upload from download lifecycle events.
type TransferKind int

const (
	TransferUpload TransferKind = iota
	TransferDownload
)

// Behavior is the tag a worker attaches to a transfer describing what
// the user expects once it finishes.
type Behavior string

const (
	// BehaviorOpen means the item should be previewed after download.
	BehaviorOpen Behavior = "open"

	// BehaviorSend means the item should be handed to the external
	// share mechanism after download.
	BehaviorSend Behavior = "send"

	// BehaviorForget means the transfer has no follow-up action.
	BehaviorForget Behavior = "forget"
)

// TransferEvent is emitted by upload/download workers. Delivery is
// at-least-once; consumers must be idempotent for duplicates.
type TransferEvent struct {
	Account string
	Kind    TransferKind

	// Path is the affected remote path.
	Path string

	// OldPath is set when the item was renamed while the upload was in
	// flight; the event then refers to Path under its new name.
	OldPath string

	// LinkedTo is set for transfers whose relevance is determined by an
	// ancestor directory rather than the exact path.
	LinkedTo string

	Success  bool
	Behavior Behavior

	// ShareTarget names the external share destination for
	// BehaviorSend transfers.
	ShareTarget string
}
