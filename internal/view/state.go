package view

import "sync/atomic"

// Session identifies the active account. A nil session means no user is
// signed in and refresh requests are no-ops.
type Session struct {
	Account string
}

// SyncState is the per-view "sync in progress" flag shared between the
// coordinator (which raises it before dispatching a refresh) and the
// dispatcher (which lowers it when lifecycle events say the sync is
// over). It drives loading-indicator visibility.
type SyncState struct {
	inProgress atomic.Bool
}

// NewSyncState returns an idle sync state.
func NewSyncState() *SyncState {
	return &SyncState{}
}

// Set updates the flag and reports whether the value changed, so
// callers emit at most one loading signal per transition.
func (s *SyncState) Set(inProgress bool) bool {
	return s.inProgress.Swap(inProgress) != inProgress
}

// InProgress reports whether a sync is currently running.
func (s *SyncState) InProgress() bool {
	return s.inProgress.Load()
}

// viewState is the transient description of what the UI is showing.
// Owned by the dispatcher goroutine; never persisted.
type viewState struct {
	// dirPath is the remote path of the displayed directory.
	dirPath string

	// itemPath is the remote path of the displayed single item (detail
	// or preview surface), or the directory path when only a listing is
	// shown.
	itemPath string

	// itemFolder records whether the displayed item was a folder when
	// captured; cache re-resolution cannot tell once the item is gone.
	itemFolder bool

	// scrollLocked prevents listing scroll while a placeholder is shown.
	scrollLocked bool

	// playingItemID is the item the media player is currently playing.
	playingItemID string
}

// marker is a single-slot pending-intent reference: the item the user
// is waiting to preview or send once its content is locally available.
type marker struct {
	account string
	itemID  string
	target  string
}

func (m *marker) set(account, itemID, target string) {
	m.account = account
	m.itemID = itemID
	m.target = target
}

func (m *marker) clear() {
	*m = marker{}
}

func (m *marker) empty() bool {
	return m.itemID == ""
}
