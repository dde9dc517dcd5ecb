package view

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alexjbarnes/drivesync/internal/cache"
	"github.com/alexjbarnes/drivesync/internal/models"
	"github.com/alexjbarnes/drivesync/internal/remote"
)

// DefaultDebounce is the delay before a refresh request fires. It
// absorbs bursts from configuration changes and dialog dismissals: a
// later request for the same folder supersedes an earlier one that has
// not fired yet.
const DefaultDebounce = 550 * time.Millisecond

// Refresher performs the remote metadata fetch for one folder. The
// concrete implementation lives in the remote-operation layer; results
// come back through the event channel, not the return value.
type Refresher interface {
	RefreshFolder(ctx context.Context, folder models.Item, ignoreETag bool) error
}

// untrustedResult remembers the last SSL-recoverable failure so the
// exact same folder sync can be reissued once the user trusts the
// certificate.
type untrustedResult struct {
	result     remote.OperationResult
	folderPath string
}

// Coordinator decides when a directory refresh actually reaches the
// remote layer. Requests are debounced per folder, dropped silently
// when the view has lost focus, gated on the server change token, and
// no-ops without an active session. Focus and folder state are
// re-validated at fire time, so a superseded or stale request simply
// never issues.
type Coordinator struct {
	ctx       context.Context
	refresher Refresher
	cache     *cache.Cache
	ui        UISink
	state     *SyncState
	logger    *slog.Logger
	debounce  time.Duration

	mu        sync.Mutex
	session   *Session
	focused   bool
	pending   map[string]*time.Timer
	lastETag  map[string]string
	untrusted *untrustedResult
}

// NewCoordinator creates a coordinator. ctx bounds the background
// refresh calls it spawns.
func NewCoordinator(ctx context.Context, refresher Refresher, c *cache.Cache, ui UISink, state *SyncState, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		ctx:       ctx,
		refresher: refresher,
		cache:     c,
		ui:        ui,
		state:     state,
		logger:    logger,
		debounce:  DefaultDebounce,
		focused:   true,
		pending:   make(map[string]*time.Timer),
		lastETag:  make(map[string]string),
	}
}

// SetDebounce overrides the debounce window. Zero keeps the default.
func (c *Coordinator) SetDebounce(d time.Duration) {
	if d > 0 {
		c.debounce = d
	}
}

// SetSession installs or clears the active session.
func (c *Coordinator) SetSession(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session = s
}

// SetFocus records whether the owning view holds foreground focus.
func (c *Coordinator) SetFocus(focused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.focused = focused
}

// RequestRefresh schedules a debounced refresh of folder. ignoreETag
// forces a refetch even when the server change token is unchanged;
// ignoreFocus bypasses the foreground guard. Returns immediately; the
// remote call happens on a background goroutine after the debounce
// window, and reconciliation happens when the resulting events arrive.
func (c *Coordinator) RequestRefresh(folder *models.Item, ignoreETag, ignoreFocus bool) {
	if folder == nil || !folder.Exists {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return
	}

	path := folder.Path
	account := c.session.Account

	// Supersede a pending request for the same folder.
	if t, ok := c.pending[path]; ok {
		t.Stop()
	}

	c.pending[path] = time.AfterFunc(c.debounce, func() {
		c.fire(account, path, ignoreETag, ignoreFocus)
	})
}

// fire runs when the debounce window elapses. All guards re-validate
// current state rather than trusting what RequestRefresh captured.
func (c *Coordinator) fire(account, path string, ignoreETag, ignoreFocus bool) {
	c.mu.Lock()

	delete(c.pending, path)

	if c.session == nil || c.session.Account != account {
		c.mu.Unlock()
		return
	}

	if !ignoreFocus && !c.focused {
		// Intentional drop, not a deferral: a refresh scheduled while
		// another window took focus is never retried.
		c.mu.Unlock()
		c.logger.Debug("dropping refresh, view not focused", slog.String("path", path))

		return
	}

	lastSynced := c.lastETag[path]
	c.mu.Unlock()

	folder, err := c.cache.ItemByPath(account, path)
	if err != nil || folder == nil || !folder.Exists || !folder.Folder {
		c.logger.Debug("dropping refresh, folder no longer cached", slog.String("path", path))
		return
	}

	if !ignoreETag && folder.ETag != "" && folder.ETag == lastSynced {
		c.logger.Debug("refresh skipped, etag unchanged",
			slog.String("path", path),
			slog.String("etag", folder.ETag),
		)

		return
	}

	if c.state.Set(true) {
		c.ui.LoadingStateChanged(true)
	}

	snapshot := *folder

	go func() {
		if err := c.refresher.RefreshFolder(c.ctx, snapshot, ignoreETag); err != nil {
			c.logger.Warn("folder refresh failed to start",
				slog.String("path", snapshot.Path),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// NoteFolderSynced records the change token observed when a folder
// refresh completed. The dispatcher calls this for every per-folder
// sync event; a later request with an unchanged token is a cache hit.
func (c *Coordinator) NoteFolderSynced(path, etag string) {
	if etag == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastETag[path] = etag
}

// NoteUntrusted caches an SSL-recoverable failure verbatim so the same
// folder sync can be replayed after the certificate is trusted.
func (c *Coordinator) NoteUntrusted(res remote.OperationResult, folderPath string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.untrusted = &untrustedResult{result: res, folderPath: folderPath}
}

// LastUntrusted returns the cached SSL-recoverable failure, or nil.
func (c *Coordinator) LastUntrusted() *remote.OperationResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.untrusted == nil {
		return nil
	}

	res := c.untrusted.result

	return &res
}

// ReplayUntrusted re-triggers a refresh of the folder whose sync failed
// with an untrusted certificate. Called when the user accepts the
// certificate out of band. The cached result is consumed.
func (c *Coordinator) ReplayUntrusted() {
	c.mu.Lock()

	if c.untrusted == nil || c.session == nil {
		c.mu.Unlock()
		return
	}

	path := c.untrusted.folderPath
	account := c.session.Account
	c.untrusted = nil
	c.mu.Unlock()

	folder, err := c.cache.ItemByPath(account, path)
	if err != nil || folder == nil {
		return
	}

	// Force the refetch: the failed sync never delivered a fresh token.
	c.RequestRefresh(folder, true, true)
}
