package view

import (
	"log/slog"

	"github.com/alexjbarnes/drivesync/internal/models"
	"github.com/alexjbarnes/drivesync/internal/remote"
)

// Transfer routing correlates upload/download lifecycle events, which
// arrive with at-least-once delivery and no cross-kind ordering, with
// the displayed view and the pending-intent markers. Every decision
// re-resolves from the cache; duplicate events find the markers already
// cleared and do nothing.

// relevantTransfer reports whether a transfer event concerns the
// current view: same account, and its path is the displayed directory
// or a descendant, or its linked-to path is an ancestor of the
// displayed directory.
func (d *Dispatcher) relevantTransfer(t remote.TransferEvent) (*models.Item, bool) {
	if !d.sameAccount(t.Account) {
		return nil, false
	}

	currentDir := d.resolvePath(t.Account, d.view.dirPath)
	if currentDir == nil || t.Path == "" {
		return nil, false
	}

	if !models.IsWithin(currentDir.Path, t.Path) {
		return nil, false
	}

	if t.LinkedTo != "" && !models.IsAncestor(t.LinkedTo, currentDir.Path) {
		return currentDir, false
	}

	return currentDir, true
}

func (d *Dispatcher) handleUploadFinished(t remote.TransferEvent) {
	currentDir, relevant := d.relevantTransfer(t)

	if relevant {
		d.ui.ListingInvalidated(*currentDir)
	}

	if !d.sameAccount(t.Account) {
		return
	}

	renamedInUpload := t.OldPath != "" && d.view.itemPath == t.OldPath
	sameFile := d.view.itemPath == t.Path || renamedInUpload

	if !sameFile {
		return
	}

	account := t.Account

	if !t.Success {
		// Leave the item state as-is and surface the failure. Navigate
		// away only when the item no longer exists at all.
		d.ui.ShowTransientNotice(NoticeUploadFailed, t.Path)

		it := d.resolvePath(account, d.view.itemPath)
		if it == nil {
			if dir := d.resolvePath(account, d.view.dirPath); dir != nil {
				d.view.itemPath = dir.Path
				d.view.itemFolder = true
				d.view.scrollLocked = false
				d.ui.NavigateTo(*dir)
			}
		}

		return
	}

	uploaded := d.resolvePath(account, t.Path)
	if uploaded == nil {
		d.logger.Warn("uploaded item not cached", slog.String("path", t.Path))
		return
	}

	// Follow the item under its new name when a rename raced the upload.
	d.view.itemPath = uploaded.Path
	d.view.itemFolder = uploaded.Folder
	d.ui.DetailUpdated(*uploaded)

	if renamedInUpload {
		d.ui.ShowTransientNotice(NoticeRenamedDuringUpload, models.BaseName(uploaded.Path))
	}

	// Force the preview for freshly uploaded images and text files.
	switch {
	case models.IsImage(uploaded.MimeType):
		d.ui.PreviewRequested(*uploaded, models.PreviewImage)
	case models.IsText(uploaded.MimeType):
		d.ui.PreviewRequested(*uploaded, models.PreviewText)
	}
}

func (d *Dispatcher) handleDownloadStarted(t remote.TransferEvent) {
	_, relevant := d.relevantTransfer(t)
	if !relevant {
		return
	}

	// No cache mutation; only the progress indicator on a visible
	// detail view.
	if d.view.itemPath == t.Path {
		if it := d.resolvePath(t.Account, t.Path); it != nil {
			d.ui.DetailUpdated(*it)
		}
	}
}

func (d *Dispatcher) handleDownloadFinished(t remote.TransferEvent) {
	currentDir, relevant := d.relevantTransfer(t)

	if relevant {
		d.ui.ListingInvalidated(*currentDir)

		if d.view.itemPath == t.Path {
			if it := d.resolvePath(t.Account, t.Path); it != nil {
				d.ui.DetailUpdated(*it)
			}
		}
	}

	if !d.sameAccount(t.Account) {
		return
	}

	d.resolveSendMarker(t)
	d.resolvePreviewMarker(t)
}

// resolveSendMarker hands the awaited item to the external share
// mechanism once it is locally present and the event's behavior tag
// says send. The slot is cleared exactly once.
func (d *Dispatcher) resolveSendMarker(t remote.TransferEvent) {
	if d.awaitingSend.empty() || d.awaitingSend.account != t.Account {
		return
	}

	// Re-resolve by identifier, never the stale captured reference.
	it, err := d.cache.ItemByID(t.Account, d.awaitingSend.itemID)
	if err != nil || it == nil || !it.Exists {
		d.awaitingSend.clear()
		return
	}

	if !it.IsDown() || t.Behavior != remote.BehaviorSend {
		return
	}

	target := d.awaitingSend.target
	if target == "" {
		target = t.ShareTarget
	}

	d.awaitingSend.clear()
	d.ui.ShareRequested(*it, target)
}

// resolvePreviewMarker routes the awaited item to its preview surface
// once it is locally present. The slot is cleared exactly once; a
// duplicate event for the same identifier finds it empty.
func (d *Dispatcher) resolvePreviewMarker(t remote.TransferEvent) {
	if d.awaitingOpen.empty() || d.awaitingOpen.account != t.Account {
		return
	}

	it, err := d.cache.ItemByID(t.Account, d.awaitingOpen.itemID)
	if err != nil || it == nil || !it.Exists {
		d.awaitingOpen.clear()
		return
	}

	if !it.IsDown() {
		return
	}

	d.awaitingOpen.clear()
	d.ui.PreviewRequested(*it, models.PreviewKindFor(it))
}

func (d *Dispatcher) handlePreviewIntent(item models.Item) {
	if d.session == nil || item.Account != d.session.Account {
		return
	}

	d.awaitingOpen.set(item.Account, item.ID, "")

	if d.downloader != nil && !item.IsDown() {
		d.downloader.RequestDownload(item, remote.BehaviorOpen)
	}
}

func (d *Dispatcher) handleSendIntent(item models.Item, target string) {
	if d.session == nil || item.Account != d.session.Account {
		return
	}

	d.awaitingSend.set(item.Account, item.ID, target)

	if d.downloader != nil && !item.IsDown() {
		d.downloader.RequestDownload(item, remote.BehaviorSend)
	}
}

// handleTransferCancelled proactively clears any pending-intent marker
// referencing the item, so a late duplicate "finished" event cannot
// act on stale intent.
func (d *Dispatcher) handleTransferCancelled(account, itemID string) {
	if !d.sameAccount(account) {
		return
	}

	if d.awaitingOpen.account == account && d.awaitingOpen.itemID == itemID {
		d.awaitingOpen.clear()
	}

	if d.awaitingSend.account == account && d.awaitingSend.itemID == itemID {
		d.awaitingSend.clear()
	}
}

// handleContentEvicted downgrades the download state of whichever item
// owned the vanished local copy, keeping the "present implies cached
// content location" invariant true.
func (d *Dispatcher) handleContentEvicted(account, contentPath string) {
	if !d.sameAccount(account) {
		return
	}

	items, err := d.cache.All(account)
	if err != nil {
		d.logger.Warn("scanning for evicted content", slog.String("error", err.Error()))
		return
	}

	for _, it := range items {
		if it.ContentPath != contentPath {
			continue
		}

		it.Download = models.DownloadAbsent
		it.ContentPath = ""

		if err := d.cache.Replace(account, it); err != nil {
			d.logger.Warn("clearing evicted content state",
				slog.String("id", it.ID),
				slog.String("error", err.Error()),
			)
		}

		if d.view.itemPath == it.Path {
			d.ui.DetailUpdated(it)
		}

		return
	}
}
