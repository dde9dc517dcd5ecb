package view

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alexjbarnes/drivesync/internal/cache"
	"github.com/alexjbarnes/drivesync/internal/models"
	"github.com/alexjbarnes/drivesync/internal/remote"
	"github.com/stretchr/testify/require"
)

const (
	testAccount  = "alice@cloud.example.com"
	otherAccount = "bob@cloud.example.com"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- fakeSink ---

type noticeCall struct {
	kind   NoticeKind
	detail string
}

type previewCall struct {
	item models.Item
	kind models.PreviewKind
}

type shareCall struct {
	item   models.Item
	target string
}

// fakeSink records every produced event. Coordinator timers call it
// from their own goroutine, so access is locked.
type fakeSink struct {
	mu sync.Mutex

	loading     []bool
	invalidated []models.Item
	navigated   []models.Item
	details     []models.Item
	notices     []noticeCall
	certPrompts []remote.OperationResult
	credPrompts int
	tosPrompts  int
	previews    []previewCall
	shares      []shareCall
	placeholder []Placeholder
	stopped     []string
}

func (s *fakeSink) LoadingStateChanged(inProgress bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = append(s.loading, inProgress)
}

func (s *fakeSink) ListingInvalidated(folder models.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = append(s.invalidated, folder)
}

func (s *fakeSink) NavigateTo(item models.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigated = append(s.navigated, item)
}

func (s *fakeSink) DetailUpdated(item models.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.details = append(s.details, item)
}

func (s *fakeSink) ShowTransientNotice(kind NoticeKind, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, noticeCall{kind: kind, detail: detail})
}

func (s *fakeSink) PromptCertificateTrust(result remote.OperationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.certPrompts = append(s.certPrompts, result)
}

func (s *fakeSink) PromptCredentialsUpdate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credPrompts++
}

func (s *fakeSink) PromptTermsOfService() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tosPrompts++
}

func (s *fakeSink) PreviewRequested(item models.Item, kind models.PreviewKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.previews = append(s.previews, previewCall{item: item, kind: kind})
}

func (s *fakeSink) ShareRequested(item models.Item, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shares = append(s.shares, shareCall{item: item, target: target})
}

func (s *fakeSink) EmptyStateChanged(state Placeholder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.placeholder = append(s.placeholder, state)
}

func (s *fakeSink) StopPlayback(itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = append(s.stopped, itemID)
}

func (s *fakeSink) lastPlaceholder() (Placeholder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.placeholder) == 0 {
		return 0, false
	}

	return s.placeholder[len(s.placeholder)-1], true
}

func (s *fakeSink) noticeKinds() []NoticeKind {
	s.mu.Lock()
	defer s.mu.Unlock()

	kinds := make([]NoticeKind, len(s.notices))
	for i, n := range s.notices {
		kinds[i] = n.kind
	}

	return kinds
}

// --- fakeRefresher / fakeDownloader ---

type refreshCall struct {
	folder     models.Item
	ignoreETag bool
}

type fakeRefresher struct {
	mu    sync.Mutex
	calls []refreshCall
}

func (r *fakeRefresher) RefreshFolder(_ context.Context, folder models.Item, ignoreETag bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, refreshCall{folder: folder, ignoreETag: ignoreETag})

	return nil
}

func (r *fakeRefresher) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.calls)
}

type downloadCall struct {
	item     models.Item
	behavior remote.Behavior
}

type fakeDownloader struct {
	mu    sync.Mutex
	calls []downloadCall
}

func (d *fakeDownloader) RequestDownload(item models.Item, behavior remote.Behavior) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, downloadCall{item: item, behavior: behavior})
}

// --- fixture ---

type fixture struct {
	d          *Dispatcher
	cache      *cache.Cache
	sink       *fakeSink
	coord      *Coordinator
	table      *remote.ResultTable
	state      *SyncState
	downloader *fakeDownloader
	refresher  *fakeRefresher
}

// newFixture wires a dispatcher over a real bbolt cache with the root
// folder seeded and the view showing it. The coordinator debounce is
// set far beyond the test lifetime so scheduled refreshes stay pending
// and can be asserted on without firing.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	require.NoError(t, c.InitAccount(testAccount))
	require.NoError(t, c.Replace(testAccount, models.Item{
		ID: "root", Account: testAccount, Path: models.RootPath, Folder: true, Exists: true,
	}))

	logger := quietLogger()
	sink := &fakeSink{}
	state := NewSyncState()
	refresher := &fakeRefresher{}

	coord := NewCoordinator(context.Background(), refresher, c, sink, state, logger)
	coord.SetDebounce(time.Hour)

	table := remote.NewResultTable(logger)
	downloader := &fakeDownloader{}

	d := NewDispatcher(c, sink, coord, table, state, downloader, logger)

	session := &Session{Account: testAccount}
	d.SetSession(session)
	coord.SetSession(session)

	d.handle(ViewChanged{DirPath: models.RootPath})

	return &fixture{
		d:          d,
		cache:      c,
		sink:       sink,
		coord:      coord,
		table:      table,
		state:      state,
		downloader: downloader,
		refresher:  refresher,
	}
}

func (f *fixture) putFolder(t *testing.T, id, path, parentID string) models.Item {
	t.Helper()

	it := models.Item{
		ID: id, Account: testAccount, Path: path, ParentID: parentID, Folder: true, Exists: true,
	}
	require.NoError(t, f.cache.Replace(testAccount, it))

	return it
}

func (f *fixture) putFile(t *testing.T, id, path, parentID string) models.Item {
	t.Helper()

	it := models.Item{
		ID: id, Account: testAccount, Path: path, ParentID: parentID, Exists: true,
	}
	require.NoError(t, f.cache.Replace(testAccount, it))

	return it
}

// pendingRefresh reports whether a debounced refresh is scheduled for
// the folder path.
func (f *fixture) pendingRefresh(path string) bool {
	f.coord.mu.Lock()
	defer f.coord.mu.Unlock()

	_, ok := f.coord.pending[path]

	return ok
}

// show points the view at a directory and optionally a displayed item.
func (f *fixture) show(dirPath, itemPath string, itemFolder bool) {
	f.d.handle(ViewChanged{DirPath: dirPath, ItemPath: itemPath, ItemFolder: itemFolder})
}
