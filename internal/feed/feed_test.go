package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	dserrors "github.com/alexjbarnes/drivesync/internal/errors"
	"github.com/alexjbarnes/drivesync/internal/remote"
	"github.com/alexjbarnes/drivesync/internal/view"
	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePoster collects the events a feed posts.
type fakePoster struct {
	mu     sync.Mutex
	events []view.Event
}

func (p *fakePoster) Post(ev view.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *fakePoster) all() []view.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]view.Event(nil), p.events...)
}

func newFeed(t *testing.T) (*Feed, *fakePoster, *remote.ResultTable) {
	t.Helper()

	sink := &fakePoster{}
	table := remote.NewResultTable(quietLogger())

	return New("ws://127.0.0.1:0/events", sink, table, quietLogger()), sink, table
}

// --- frame decoding ---

func TestHandleFrame_FullSyncStart(t *testing.T) {
	f, sink, _ := newFeed(t)

	f.handleFrame([]byte(`{"ev":"full_sync_start","account":"alice@cloud.example.com"}`))

	require.Len(t, sink.all(), 1)
	assert.Equal(t, view.FullSyncStart{Account: "alice@cloud.example.com"}, sink.all()[0])
}

func TestHandleFrame_FolderSyncedWithResultID(t *testing.T) {
	f, sink, table := newFeed(t)

	f.handleFrame([]byte(`{
		"ev": "folder_synced",
		"account": "alice@cloud.example.com",
		"folder": "/docs",
		"result_id": "r-42",
		"result": {"success": true, "code": "ok"}
	}`))

	require.Len(t, sink.all(), 1)
	ev, ok := sink.all()[0].(view.FolderContentsSynced)
	require.True(t, ok)
	assert.Equal(t, "/docs", ev.FolderPath)
	assert.Equal(t, "r-42", ev.ResultID)

	res := table.Retrieve("r-42")
	require.NotNil(t, res)
	assert.True(t, res.Success)
}

func TestHandleFrame_FolderSyncedMintsID(t *testing.T) {
	f, sink, table := newFeed(t)

	f.handleFrame([]byte(`{
		"ev": "folder_synced",
		"account": "alice@cloud.example.com",
		"folder": "/docs",
		"result": {"success": true, "code": "ok"}
	}`))

	require.Len(t, sink.all(), 1)
	ev := sink.all()[0].(view.FolderContentsSynced)
	require.NotEmpty(t, ev.ResultID, "feed mints an id when the worker omits one")

	res := table.Retrieve(ev.ResultID)
	require.NotNil(t, res)
	assert.True(t, res.Success)
}

func TestHandleFrame_FolderSyncedWithoutResult(t *testing.T) {
	f, sink, table := newFeed(t)

	f.handleFrame([]byte(`{"ev":"folder_synced","account":"alice@cloud.example.com","folder":"/docs"}`))

	require.Len(t, sink.all(), 1)
	assert.Empty(t, sink.all()[0].(view.FolderContentsSynced).ResultID)
	assert.Zero(t, table.Len())
}

func TestHandleFrame_SharesSynced(t *testing.T) {
	f, sink, _ := newFeed(t)

	f.handleFrame([]byte(`{"ev":"shares_synced","account":"alice@cloud.example.com"}`))

	require.Len(t, sink.all(), 1)
	assert.IsType(t, view.SharesSynced{}, sink.all()[0])
}

func TestHandleFrame_FullSyncEnd(t *testing.T) {
	f, sink, table := newFeed(t)

	f.handleFrame([]byte(`{
		"ev": "full_sync_end",
		"account": "alice@cloud.example.com",
		"result_id": "r-9",
		"result": {"success": false, "code": "maintenance_mode"}
	}`))

	require.Len(t, sink.all(), 1)
	ev := sink.all()[0].(view.FullSyncEnd)
	assert.Equal(t, "r-9", ev.ResultID)

	res := table.Retrieve("r-9")
	require.NotNil(t, res)
	assert.Equal(t, remote.CodeMaintenanceMode, res.Code)
}

func TestHandleFrame_OperationFinished(t *testing.T) {
	f, sink, _ := newFeed(t)

	f.handleFrame([]byte(`{
		"ev": "op_finished",
		"account": "alice@cloud.example.com",
		"op": "remove",
		"result": {"success": true, "code": "ok"}
	}`))

	require.Len(t, sink.all(), 1)
	ev, ok := sink.all()[0].(view.OperationFinished)
	require.True(t, ok)
	assert.Equal(t, remote.OpRemove, ev.Kind)
	assert.True(t, ev.Result.Success)
}

func TestHandleFrame_OperationUnknownKindIgnored(t *testing.T) {
	f, sink, _ := newFeed(t)

	f.handleFrame([]byte(`{
		"ev": "op_finished",
		"account": "alice@cloud.example.com",
		"op": "defragment",
		"result": {"success": true, "code": "ok"}
	}`))

	assert.Empty(t, sink.all())
}

func TestHandleFrame_OperationWithoutResultIgnored(t *testing.T) {
	f, sink, _ := newFeed(t)

	f.handleFrame([]byte(`{"ev":"op_finished","account":"alice@cloud.example.com","op":"rename"}`))

	assert.Empty(t, sink.all())
}

func TestHandleFrame_OperationUndecodableResultIgnored(t *testing.T) {
	f, sink, _ := newFeed(t)

	f.handleFrame([]byte(`{
		"ev": "op_finished",
		"account": "alice@cloud.example.com",
		"op": "rename",
		"result": {"code": "ok"}
	}`))

	assert.Empty(t, sink.all())
}

func TestHandleFrame_UploadNormalizesPaths(t *testing.T) {
	f, sink, _ := newFeed(t)

	f.handleFrame([]byte(`{
		"ev": "upload",
		"account": "alice@cloud.example.com",
		"path": "docs//report.txt/",
		"old_path": "docs/draft.txt",
		"success": true
	}`))

	require.Len(t, sink.all(), 1)
	ev, ok := sink.all()[0].(view.UploadFinished)
	require.True(t, ok)
	assert.Equal(t, remote.TransferUpload, ev.Transfer.Kind)
	assert.Equal(t, "/docs/report.txt", ev.Transfer.Path)
	assert.Equal(t, "/docs/draft.txt", ev.Transfer.OldPath)
	assert.True(t, ev.Transfer.Success)
}

func TestHandleFrame_UploadEmptyOptionalPathsStayEmpty(t *testing.T) {
	f, sink, _ := newFeed(t)

	f.handleFrame([]byte(`{
		"ev": "upload",
		"account": "alice@cloud.example.com",
		"path": "/docs/report.txt",
		"success": false
	}`))

	require.Len(t, sink.all(), 1)
	ev := sink.all()[0].(view.UploadFinished)
	assert.Empty(t, ev.Transfer.OldPath, "absent old_path must not normalize to the root")
	assert.Empty(t, ev.Transfer.LinkedTo)
}

func TestHandleFrame_DownloadStarted(t *testing.T) {
	f, sink, _ := newFeed(t)

	f.handleFrame([]byte(`{
		"ev": "download_started",
		"account": "alice@cloud.example.com",
		"path": "/docs/a.txt",
		"linked_to": "docs"
	}`))

	require.Len(t, sink.all(), 1)
	ev := sink.all()[0].(view.DownloadStarted)
	assert.Equal(t, remote.TransferDownload, ev.Transfer.Kind)
	assert.Equal(t, "/docs", ev.Transfer.LinkedTo)
}

func TestHandleFrame_DownloadFinishedCarriesBehavior(t *testing.T) {
	f, sink, _ := newFeed(t)

	f.handleFrame([]byte(`{
		"ev": "download_finished",
		"account": "alice@cloud.example.com",
		"path": "/docs/a.txt",
		"success": true,
		"behavior": "send",
		"share_target": "mail"
	}`))

	require.Len(t, sink.all(), 1)
	ev := sink.all()[0].(view.DownloadFinished)
	assert.Equal(t, remote.BehaviorSend, ev.Transfer.Behavior)
	assert.Equal(t, "mail", ev.Transfer.ShareTarget)
}

func TestHandleFrame_CertAccepted(t *testing.T) {
	f, sink, _ := newFeed(t)

	f.handleFrame([]byte(`{"ev":"cert_accepted","account":"alice@cloud.example.com"}`))

	require.Len(t, sink.all(), 1)
	assert.Equal(t, view.CertificateAccepted{Account: "alice@cloud.example.com"}, sink.all()[0])
}

func TestHandleFrame_TosAccepted(t *testing.T) {
	f, sink, _ := newFeed(t)

	f.handleFrame([]byte(`{"ev":"tos_accepted","account":"alice@cloud.example.com"}`))

	require.Len(t, sink.all(), 1)
	assert.IsType(t, view.TermsAccepted{}, sink.all()[0])
}

func TestHandleFrame_TransferCancelled(t *testing.T) {
	f, sink, _ := newFeed(t)

	f.handleFrame([]byte(`{"ev":"transfer_cancelled","account":"alice@cloud.example.com","item_id":"f1"}`))

	require.Len(t, sink.all(), 1)
	assert.Equal(t, view.TransferCancelled{
		Account: "alice@cloud.example.com",
		ItemID:  "f1",
	}, sink.all()[0])
}

func TestHandleFrame_UnknownFrameIgnored(t *testing.T) {
	f, sink, _ := newFeed(t)

	f.handleFrame([]byte(`{"ev":"worker_heartbeat","pid":1234}`))

	assert.Empty(t, sink.all())
}

func TestHandleFrame_InvalidJSONSkipped(t *testing.T) {
	f, sink, _ := newFeed(t)

	f.handleFrame([]byte(`{"ev": "full_sync_start`))

	assert.Empty(t, sink.all())
}

// --- run loop ---

func TestRun_ReadErrorWrapsFeedClosed(t *testing.T) {
	ctrl := gomock.NewController(t)
	f, sink, _ := newFeed(t)

	conn := NewMockConn(ctrl)
	conn.EXPECT().SetReadLimit(int64(maxFrameSize))
	gomock.InOrder(
		conn.EXPECT().Read(gomock.Any()).Return(
			websocket.MessageText,
			[]byte(`{"ev":"full_sync_start","account":"alice@cloud.example.com"}`),
			nil,
		),
		conn.EXPECT().Read(gomock.Any()).Return(websocket.MessageText, nil, errors.New("connection reset")),
	)
	conn.EXPECT().Close(websocket.StatusNormalClosure, gomock.Any()).Return(nil)

	f.conn = conn

	err := f.Run(t.Context())
	require.Error(t, err)
	assert.ErrorIs(t, err, dserrors.ErrFeedClosed)
	assert.Len(t, sink.all(), 1, "frames before the drop are still delivered")
}

func TestRun_ContextCancelReturnsCtxErr(t *testing.T) {
	ctrl := gomock.NewController(t)
	f, _, _ := newFeed(t)

	conn := NewMockConn(ctrl)
	conn.EXPECT().SetReadLimit(int64(maxFrameSize))
	conn.EXPECT().Read(gomock.Any()).DoAndReturn(
		func(ctx context.Context) (websocket.MessageType, []byte, error) {
			<-ctx.Done()
			return 0, nil, ctx.Err()
		},
	)
	conn.EXPECT().Close(websocket.StatusNormalClosure, gomock.Any()).Return(nil)

	f.conn = conn

	ctx, cancel := context.WithCancel(t.Context())

	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
}
