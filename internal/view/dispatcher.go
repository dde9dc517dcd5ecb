package view

import (
	"context"
	"log/slog"

	"github.com/alexjbarnes/drivesync/internal/cache"
	"github.com/alexjbarnes/drivesync/internal/models"
	"github.com/alexjbarnes/drivesync/internal/remote"
)

// eventChanSize bounds the dispatcher inbox. Workers posting faster
// than the dispatcher drains block rather than drop.
const eventChanSize = 64

// Dispatcher is the single consumer of the event channel. It owns all
// cache writes, the pending-intent markers, and the transient view
// state; strict serialization replaces locking for those.
type Dispatcher struct {
	cache      *cache.Cache
	ui         UISink
	coord      *Coordinator
	table      *remote.ResultTable
	state      *SyncState
	downloader TransferRequester
	logger     *slog.Logger

	events chan Event

	// Everything below is touched only from the Run goroutine (or from
	// tests driving handle directly).
	session        *Session
	view           viewState
	awaitingOpen   marker
	awaitingSend   marker
	tosShown       bool
}

// NewDispatcher creates a dispatcher. downloader may be nil when no
// worker pool is attached (tests, degraded mode).
func NewDispatcher(c *cache.Cache, ui UISink, coord *Coordinator, table *remote.ResultTable, state *SyncState, downloader TransferRequester, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		cache:      c,
		ui:         ui,
		coord:      coord,
		table:      table,
		state:      state,
		downloader: downloader,
		logger:     logger,
		events:     make(chan Event, eventChanSize),
	}
}

// SetSession installs the active session. Call before Run.
func (d *Dispatcher) SetSession(s *Session) {
	d.session = s
}

// Post places an event on the channel. Safe from any goroutine.
func (d *Dispatcher) Post(ev Event) {
	d.events <- ev
}

// Events exposes the channel for producers that select over it.
func (d *Dispatcher) Events() chan<- Event {
	return d.events
}

// Run consumes events until the context is cancelled. Reconciliation
// steps never run concurrently; each event is fully handled before the
// next is read.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev := <-d.events:
			d.handle(ev)
		}
	}
}

// handle applies one event. A recover guard makes sure a malformed
// event never terminates the loop: the panic is logged and the event's
// one-shot payload, if any, is released best-effort.
func (d *Dispatcher) handle(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event handler panicked", slog.Any("panic", r))
			d.releaseResult(resultIDOf(ev))
		}
	}()

	switch e := ev.(type) {
	case FullSyncStart:
		if d.sameAccount(e.Account) {
			d.setSyncing(true)
		}

	case FolderContentsSynced:
		d.handleFolderSynced(e.Account, e.FolderPath, e.ResultID)

	case SharesSynced:
		d.handleSyncOver(e.Account, e.ResultID)

	case FullSyncEnd:
		d.handleSyncOver(e.Account, e.ResultID)

	case OperationFinished:
		if d.sameAccount(e.Account) {
			d.handleOperation(e.Kind, e.Result)
		}

	case UploadFinished:
		d.handleUploadFinished(e.Transfer)

	case DownloadStarted:
		d.handleDownloadStarted(e.Transfer)

	case DownloadFinished:
		d.handleDownloadFinished(e.Transfer)

	case CertificateAccepted:
		if d.sameAccount(e.Account) {
			d.coord.ReplayUntrusted()
		}

	case TermsAccepted:
		if d.sameAccount(e.Account) {
			d.tosShown = false
		}

	case TransferCancelled:
		d.handleTransferCancelled(e.Account, e.ItemID)

	case ContentEvicted:
		d.handleContentEvicted(e.Account, e.ContentPath)

	case ViewChanged:
		d.view.dirPath = models.NormalizePath(e.DirPath)
		if e.ItemPath == "" {
			d.view.itemPath = d.view.dirPath
			d.view.itemFolder = true
		} else {
			d.view.itemPath = models.NormalizePath(e.ItemPath)
			d.view.itemFolder = e.ItemFolder
		}

		d.view.scrollLocked = false

	case PreviewIntent:
		d.handlePreviewIntent(e.Item)

	case SendIntent:
		d.handleSendIntent(e.Item, e.Target)

	case PlaybackStarted:
		d.view.playingItemID = e.ItemID

	case FocusChanged:
		d.coord.SetFocus(e.Focused)

	default:
		d.logger.Warn("unhandled event type", slog.Any("event", ev))
	}
}

// sameAccount reports whether the event belongs to the active session.
// Events for other accounts never mutate state or markers here.
func (d *Dispatcher) sameAccount(account string) bool {
	return d.session != nil && account == d.session.Account
}

// handleSyncOver terminates the overall sync pass: SyncState goes idle
// and the placeholder is recomputed. Any payload is released unread.
func (d *Dispatcher) handleSyncOver(account, resultID string) {
	d.releaseResult(resultID)

	if !d.sameAccount(account) {
		return
	}

	d.setSyncing(false)
	d.updatePlaceholder(account)
}

// handleFolderSynced applies a per-folder sync completion.
func (d *Dispatcher) handleFolderSynced(account, folderPath, resultID string) {
	if !d.sameAccount(account) {
		// Foreign payloads are still one-shot; release them.
		d.releaseResult(resultID)
		return
	}

	folderPath = models.NormalizePath(folderPath)

	// Re-resolve the displayed item and directory by path. The in-memory
	// references captured before this event may be stale.
	currentDir := d.resolvePath(account, d.view.dirPath)
	currentItem := d.resolvePath(account, d.view.itemPath)

	isRootSync := folderPath == models.RootPath

	switch {
	case currentDir == nil && isRootSync:
		// The authoritative root sync no longer knows the displayed
		// directory: it was removed server-side.
		d.handleRemovedFolder(account)

	case currentDir != nil:
		if currentItem == nil && !d.view.itemFolder {
			// The displayed file vanished; fall back to its directory.
			d.view.itemPath = currentDir.Path
			d.view.itemFolder = true
			d.view.scrollLocked = false
		}

		if folderPath == currentDir.Path {
			d.ui.ListingInvalidated(*currentDir)
		}

	default:
		// Displayed directory gone but the synced folder was elsewhere;
		// a later event (or the root sync) settles it.
	}

	if resultID != "" {
		if res := d.table.Retrieve(resultID); res != nil {
			d.applySyncResult(*res, folderPath)
		}
	}

	d.releaseResult(resultID)

	if fresh := d.resolvePath(account, folderPath); fresh != nil && fresh.Folder {
		d.coord.NoteFolderSynced(fresh.Path, fresh.ETag)
	}

	// A per-folder event inside a full sync leaves the pass running.
	d.setSyncing(true)
	d.updatePlaceholder(account)
}

// applySyncResult inspects the one-shot payload of a folder sync.
func (d *Dispatcher) applySyncResult(res remote.OperationResult, folderPath string) {
	if res.Success {
		return
	}

	d.applyRecovery(Classify(res), res, folderPath)
}

// applyRecovery turns a classification into its UI-visible effect.
func (d *Dispatcher) applyRecovery(action RecoveryAction, res remote.OperationResult, folderPath string) {
	switch action {
	case ActionRequestCredentials:
		d.ui.PromptCredentialsUpdate()

	case ActionPromptCertificateTrust:
		d.coord.NoteUntrusted(res, folderPath)
		d.ui.PromptCertificateTrust(res)

	case ActionNoticeMaintenance:
		d.ui.ShowTransientNotice(NoticeMaintenance, "")

	case ActionNoticeOffline:
		d.ui.ShowTransientNotice(NoticeOffline, "")

	case ActionNoticeHostUnreachable:
		d.ui.ShowTransientNotice(NoticeHostUnreachable, "")

	case ActionPromptTermsOfService:
		// Blocks further sync silently; shown at most once per session.
		if !d.tosShown {
			d.tosShown = true
			d.ui.PromptTermsOfService()
		}

	case ActionNone:
		// Caller surfaces a generic message independently.
	}
}

// handleRemovedFolder surfaces the removed-folder notice and forces
// navigation back to the account root.
func (d *Dispatcher) handleRemovedFolder(account string) {
	d.ui.ShowTransientNotice(NoticeFolderRemoved, d.view.dirPath)

	root := d.resolvePath(account, models.RootPath)
	if root == nil {
		d.logger.Error("account root missing from cache", slog.String("account", account))
		return
	}

	d.view.dirPath = root.Path
	d.view.itemPath = root.Path
	d.view.itemFolder = true
	d.view.scrollLocked = false

	d.ui.NavigateTo(*root)
	d.coord.RequestRefresh(root, false, false)
}

// setSyncing updates SyncState and emits at most one loading signal
// per transition.
func (d *Dispatcher) setSyncing(inProgress bool) {
	if d.state.Set(inProgress) {
		d.ui.LoadingStateChanged(inProgress)
	}
}

// updatePlaceholder recomputes what the listing surface shows: the
// loading placeholder wins while a sync is in progress, the empty
// placeholder only applies once idle with zero children, content
// otherwise. The empty placeholder locks scrolling.
func (d *Dispatcher) updatePlaceholder(account string) {
	if d.state.InProgress() {
		d.ui.EmptyStateChanged(PlaceholderLoading)
		return
	}

	dir := d.resolvePath(account, d.view.dirPath)
	if dir == nil {
		return
	}

	children, err := d.cache.Children(account, dir.ID)
	if err != nil {
		d.logger.Warn("listing children", slog.String("error", err.Error()))
		return
	}

	if len(children) == 0 {
		d.view.scrollLocked = true
		d.ui.EmptyStateChanged(PlaceholderEmpty)

		return
	}

	d.view.scrollLocked = false
	d.ui.EmptyStateChanged(PlaceholderContent)
}

// resolvePath is a nil-safe existing-item lookup by path.
func (d *Dispatcher) resolvePath(account, path string) *models.Item {
	if path == "" {
		return nil
	}

	it, err := d.cache.ItemByPath(account, path)
	if err != nil || it == nil || !it.Exists {
		return nil
	}

	return it
}

// releaseResult deletes a one-shot payload, swallowing problems: a
// stale id from a foreign serialization must not break reconciliation.
func (d *Dispatcher) releaseResult(id string) {
	if id == "" || d.table == nil {
		return
	}

	d.table.Delete(id)
}

// resultIDOf extracts the one-shot payload id carried by an event, if
// any, for best-effort cleanup after a handler panic.
func resultIDOf(ev Event) string {
	switch e := ev.(type) {
	case FolderContentsSynced:
		return e.ResultID
	case SharesSynced:
		return e.ResultID
	case FullSyncEnd:
		return e.ResultID
	default:
		return ""
	}
}
