package view

import (
	"log/slog"

	"github.com/alexjbarnes/drivesync/internal/models"
	"github.com/alexjbarnes/drivesync/internal/remote"
)

// handleOperation applies the terminal result of one remote action.
// The contract is uniform: apply on success, classify-and-report on
// failure. The account guard already ran.
func (d *Dispatcher) handleOperation(kind remote.OpKind, res remote.OperationResult) {
	switch kind {
	case remote.OpRemove:
		d.onRemoveFinished(res)
	case remote.OpRename:
		d.onRenameFinished(res)
	case remote.OpMove:
		d.onMoveFinished(res)
	case remote.OpCopy:
		d.onCopyFinished(res)
	case remote.OpCreateFolder:
		d.onCreateFolderFinished(res)
	case remote.OpRestoreVersion:
		d.onRestoreVersionFinished(res)
	case remote.OpSynchronizeFile:
		d.onSynchronizeFileFinished(res)
	default:
		d.logger.Warn("result for unknown operation kind", slog.String("kind", kind.String()))
	}
}

func (d *Dispatcher) onRemoveFinished(res remote.OperationResult) {
	if !res.Success {
		d.classifyAndReport(res, d.view.dirPath)
		return
	}

	removed := res.Item
	if removed == nil {
		d.logger.Warn("remove result without item payload")
		return
	}

	account := d.session.Account

	if d.view.playingItemID == removed.ID {
		d.ui.StopPlayback(removed.ID)
		d.view.playingItemID = ""
	}

	if err := d.cache.MarkMissing(account, removed.ID); err != nil {
		d.logger.Warn("marking removed item missing",
			slog.String("id", removed.ID),
			slog.String("error", err.Error()),
		)
	}

	parent, err := d.cache.ItemByID(account, removed.ParentID)
	if err != nil {
		d.logger.Warn("resolving removed item parent", slog.String("error", err.Error()))
	}

	// If the removed item was being displayed, fall back to its parent.
	if d.view.itemPath == removed.Path && !d.cache.Exists(account, removed.ID) {
		if parent != nil {
			d.view.itemPath = parent.Path
			d.view.itemFolder = parent.Folder
			d.view.scrollLocked = false
			d.ui.NavigateTo(*parent)
		}
	}

	if parent != nil && parent.Path == d.view.dirPath {
		d.ui.ListingInvalidated(*parent)
	}

	d.updatePlaceholder(account)
}

func (d *Dispatcher) onRenameFinished(res remote.OperationResult) {
	renamed := res.Item

	if !res.Success {
		folderPath := d.view.dirPath
		if renamed != nil {
			folderPath = models.ParentPath(renamed.Path)
		}

		d.classifyAndReport(res, folderPath)

		return
	}

	if renamed == nil {
		d.logger.Warn("rename result without item payload")
		return
	}

	account := d.session.Account

	// Update cached path/parent. Replace fixes the path index.
	if err := d.cache.Replace(account, *renamed); err != nil {
		d.logger.Warn("replacing renamed item",
			slog.String("id", renamed.ID),
			slog.String("error", err.Error()),
		)
	}

	// A detail or preview surface showing the old path follows the
	// rename in place: no navigation change.
	if d.view.itemPath == res.OldPath {
		d.view.itemPath = renamed.Path
		d.view.itemFolder = renamed.Folder
		d.ui.DetailUpdated(*renamed)
	}

	parent, err := d.cache.ItemByID(account, renamed.ParentID)
	if err != nil {
		d.logger.Warn("resolving renamed item parent", slog.String("error", err.Error()))
	}

	if parent != nil && parent.Path == d.view.dirPath {
		d.ui.ListingInvalidated(*parent)
	}
}

func (d *Dispatcher) onMoveFinished(res remote.OperationResult) {
	if !res.Success {
		// Moves surface the failure message only; no classification.
		d.ui.ShowTransientNotice(NoticeOperationFailed, res.Message)
		return
	}

	// Unconditionally refresh the destination folder. Simplest correct
	// strategy; avoids partial invalidation bugs.
	account := d.session.Account

	dest := d.resolvePath(account, res.TargetPath)
	if dest == nil {
		dest = d.resolvePath(account, d.view.dirPath)
	}

	if dest != nil {
		d.coord.RequestRefresh(dest, true, true)
	}
}

func (d *Dispatcher) onCopyFinished(res remote.OperationResult) {
	if !res.Success {
		d.ui.ShowTransientNotice(NoticeOperationFailed, res.Message)
		return
	}

	if res.TargetPath == d.view.dirPath {
		if dir := d.resolvePath(d.session.Account, d.view.dirPath); dir != nil {
			d.ui.ListingInvalidated(*dir)
		}
	}
}

func (d *Dispatcher) onCreateFolderFinished(res remote.OperationResult) {
	if !res.Success {
		if res.Code == remote.CodeFolderAlreadyExists {
			d.ui.ShowTransientNotice(NoticeFolderExists, "")
		} else {
			d.ui.ShowTransientNotice(NoticeOperationFailed, res.Message)
		}

		return
	}

	created := res.Item
	if created == nil {
		d.logger.Warn("create-folder result without item payload")
		return
	}

	account := d.session.Account

	if err := d.cache.Replace(account, *created); err != nil {
		d.logger.Warn("caching created folder", slog.String("error", err.Error()))
	}

	// Navigate into the new folder.
	d.view.dirPath = created.Path
	d.view.itemPath = created.Path
	d.view.itemFolder = true
	d.view.scrollLocked = false
	d.ui.NavigateTo(*created)
}

func (d *Dispatcher) onRestoreVersionFinished(res remote.OperationResult) {
	if !res.Success {
		d.ui.ShowTransientNotice(NoticeVersionRestoreError, res.Message)
		return
	}

	restored := res.Item
	if restored == nil {
		d.logger.Warn("restore-version result without item payload")
		return
	}

	account := d.session.Account

	// Re-resolve: the restore may race with other mutations.
	it, err := d.cache.ItemByID(account, restored.ID)
	if err != nil || it == nil {
		it = restored
	}

	// The restored version invalidates any cached local copy; drop it
	// and re-trigger content sync so the item comes back down fresh.
	if it.IsDown() {
		it.Download = models.DownloadAbsent
		it.ContentPath = ""

		if err := d.cache.Replace(account, *it); err != nil {
			d.logger.Warn("clearing restored item content state", slog.String("error", err.Error()))
		}

		if d.downloader != nil {
			d.downloader.RequestDownload(*it, remote.BehaviorForget)
		}
	}

	// Always refresh the parent, bypassing the change-token gate: the
	// restore changed content without necessarily changing the etag.
	parent, err := d.cache.ItemByID(account, it.ParentID)
	if err == nil && parent != nil {
		d.coord.RequestRefresh(parent, true, true)
	}

	d.ui.ShowTransientNotice(NoticeVersionRestored, it.Path)
}

func (d *Dispatcher) onSynchronizeFileFinished(res remote.OperationResult) {
	if !res.Success || !res.TransferRequested {
		return
	}

	synced := res.Item
	if synced == nil {
		return
	}

	account := d.session.Account

	if err := d.cache.Replace(account, *synced); err != nil {
		d.logger.Warn("caching synchronized item", slog.String("error", err.Error()))
	}

	if dir := d.resolvePath(account, d.view.dirPath); dir != nil {
		d.ui.ListingInvalidated(*dir)
	}

	if d.view.itemPath == synced.Path {
		d.ui.DetailUpdated(*synced)
	}
}

// classifyAndReport is the shared failure path for operations that
// classify: recovery actions run first, and results with no dedicated
// recovery get the generic failure notice.
func (d *Dispatcher) classifyAndReport(res remote.OperationResult, folderPath string) {
	action := Classify(res)
	d.applyRecovery(action, res, folderPath)

	if action == ActionNone {
		d.ui.ShowTransientNotice(NoticeOperationFailed, res.Message)
	}
}
