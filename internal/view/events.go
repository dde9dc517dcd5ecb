// Package view is the reconciliation core: a single dispatcher
// goroutine that merges sync lifecycle events, terminal operation
// results, and transfer lifecycle events into one consistent cached
// view, plus the coordinator that schedules debounced folder refreshes.
package view

import (
	"github.com/alexjbarnes/drivesync/internal/models"
	"github.com/alexjbarnes/drivesync/internal/remote"
)

// Event is the sealed union of everything the dispatcher consumes.
// Workers, the feed, and the UI shell post variants onto one serialized
// channel; the dispatcher matches over them exhaustively.
type Event interface {
	event()
}

// FullSyncStart marks the beginning of an account-wide sync pass.
type FullSyncStart struct {
	Account string
}

// FolderContentsSynced reports that one folder's metadata was refreshed
// against the server. ResultID references the one-shot payload in the
// result table; the dispatcher releases it after handling.
type FolderContentsSynced struct {
	Account    string
	FolderPath string
	ResultID   string
}

// SharesSynced reports that share metadata finished syncing.
type SharesSynced struct {
	Account  string
	ResultID string
}

// FullSyncEnd marks the end of an account-wide sync pass.
type FullSyncEnd struct {
	Account  string
	ResultID string
}

// OperationFinished carries the terminal result of one remote action.
type OperationFinished struct {
	Account string
	Kind    remote.OpKind
	Result  remote.OperationResult
}

// UploadFinished is posted by an upload worker when a transfer ends.
type UploadFinished struct {
	Transfer remote.TransferEvent
}

// DownloadStarted is posted by a download worker when a transfer begins.
type DownloadStarted struct {
	Transfer remote.TransferEvent
}

// DownloadFinished is posted by a download worker when a transfer ends.
type DownloadFinished struct {
	Transfer remote.TransferEvent
}

// CertificateAccepted signals that the user trusted the certificate
// that previously failed an operation, allowing a replay.
type CertificateAccepted struct {
	Account string
}

// TermsAccepted signals that the terms-of-service prompt was satisfied.
type TermsAccepted struct {
	Account string
}

// TransferCancelled signals that the user cancelled a transfer; any
// pending-intent marker referencing the item is cleared so a late
// duplicate "finished" event cannot act on stale intent.
type TransferCancelled struct {
	Account string
	ItemID  string
}

// ContentEvicted reports that a cached local copy disappeared from
// disk; the owning item's download state is downgraded to absent.
type ContentEvicted struct {
	Account     string
	ContentPath string
}

// ViewChanged reports user navigation: the directory being displayed
// and, when a detail or preview surface is open, the displayed item.
type ViewChanged struct {
	DirPath    string
	ItemPath   string
	ItemFolder bool
}

// PreviewIntent records that the user asked to preview an item that is
// not locally present yet.
type PreviewIntent struct {
	Item models.Item
}

// SendIntent records that the user asked to share an item that is not
// locally present yet.
type SendIntent struct {
	Item   models.Item
	Target string
}

// PlaybackStarted tracks which item the media player is playing, so a
// remove operation can stop it.
type PlaybackStarted struct {
	ItemID string
}

// FocusChanged reports whether the owning view holds foreground focus.
type FocusChanged struct {
	Focused bool
}

func (FullSyncStart) event()        {}
func (FolderContentsSynced) event() {}
func (SharesSynced) event()         {}
func (FullSyncEnd) event()          {}
func (OperationFinished) event()    {}
func (UploadFinished) event()       {}
func (DownloadStarted) event()      {}
func (DownloadFinished) event()     {}
func (CertificateAccepted) event()  {}
func (TermsAccepted) event()        {}
func (TransferCancelled) event()    {}
func (ContentEvicted) event()       {}
func (ViewChanged) event()          {}
func (PreviewIntent) event()        {}
func (SendIntent) event()           {}
func (PlaybackStarted) event()      {}
func (FocusChanged) event()         {}
