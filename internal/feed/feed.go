// Package feed listens to the worker bus: a WebSocket stream of JSON
// frames emitted by the sync, upload, and download worker processes.
// Frames are decoded into typed view events and posted onto the
// dispatcher channel; the feed never touches the cache itself.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	dserrors "github.com/alexjbarnes/drivesync/internal/errors"
	"github.com/alexjbarnes/drivesync/internal/models"
	"github.com/alexjbarnes/drivesync/internal/remote"
	"github.com/alexjbarnes/drivesync/internal/view"
	"github.com/coder/websocket"
	"github.com/tidwall/gjson"
)

// maxFrameSize bounds a single frame from the worker bus.
const maxFrameSize = 4 * 1024 * 1024

// Conn abstracts the WebSocket connection so the feed can be tested
// without a real bus. *websocket.Conn satisfies this interface.
type Conn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Close(code websocket.StatusCode, reason string) error
	SetReadLimit(n int64)
}

// Poster is the subset of the dispatcher the feed needs.
type Poster interface {
	Post(ev view.Event)
}

// Feed reads frames from the worker bus and posts typed events.
type Feed struct {
	url    string
	conn   Conn
	sink   Poster
	table  *remote.ResultTable
	logger *slog.Logger
}

// New creates a feed that dials url when Run is called.
func New(url string, sink Poster, table *remote.ResultTable, logger *slog.Logger) *Feed {
	return &Feed{
		url:    url,
		sink:   sink,
		table:  table,
		logger: logger,
	}
}

// Run dials the bus and consumes frames until the context is cancelled
// or the connection drops.
func (f *Feed) Run(ctx context.Context) error {
	if f.conn == nil {
		conn, _, err := websocket.Dial(ctx, f.url, nil)
		if err != nil {
			return fmt.Errorf("dialing worker bus: %w", err)
		}

		f.conn = conn
	}

	f.conn.SetReadLimit(maxFrameSize)

	defer func() {
		_ = f.conn.Close(websocket.StatusNormalClosure, "shutting down")
	}()

	f.logger.Info("event feed connected", slog.String("url", f.url))

	for {
		_, data, err := f.conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			return fmt.Errorf("%w: %w", dserrors.ErrFeedClosed, err)
		}

		f.handleFrame(data)
	}
}

// handleFrame decodes one frame. Unknown or malformed frames are
// logged and skipped; the bus carries traffic for receivers beyond
// this client.
func (f *Feed) handleFrame(data []byte) {
	if !gjson.ValidBytes(data) {
		f.logger.Warn("skipping invalid frame")
		return
	}

	root := gjson.ParseBytes(data)

	kind := root.Get("ev").Str
	account := root.Get("account").Str

	switch kind {
	case "full_sync_start":
		f.sink.Post(view.FullSyncStart{Account: account})

	case "folder_synced":
		f.sink.Post(view.FolderContentsSynced{
			Account:    account,
			FolderPath: root.Get("folder").Str,
			ResultID:   f.stashResult(root),
		})

	case "shares_synced":
		f.sink.Post(view.SharesSynced{
			Account:  account,
			ResultID: f.stashResult(root),
		})

	case "full_sync_end":
		f.sink.Post(view.FullSyncEnd{
			Account:  account,
			ResultID: f.stashResult(root),
		})

	case "op_finished":
		f.postOperation(account, root)

	case "upload", "download_started", "download_finished":
		f.postTransfer(kind, account, root)

	case "cert_accepted":
		f.sink.Post(view.CertificateAccepted{Account: account})

	case "tos_accepted":
		f.sink.Post(view.TermsAccepted{Account: account})

	case "transfer_cancelled":
		f.sink.Post(view.TransferCancelled{
			Account: account,
			ItemID:  root.Get("item_id").Str,
		})

	default:
		f.logger.Debug("ignoring frame", slog.String("ev", kind))
	}
}

// stashResult stores a frame's embedded result payload in the side
// table under the frame's id, minting one when the worker did not.
func (f *Feed) stashResult(root gjson.Result) string {
	result := root.Get("result")
	if !result.Exists() {
		return ""
	}

	id := root.Get("result_id").Str
	if id == "" {
		res, err := remote.DecodeResult([]byte(result.Raw))
		if err != nil {
			f.logger.Warn("skipping undecodable sync result", slog.String("error", err.Error()))
			return ""
		}

		return f.table.Put(res)
	}

	f.table.PutRaw(id, []byte(result.Raw))

	return id
}

func (f *Feed) postOperation(account string, root gjson.Result) {
	opKind, ok := remote.ParseOpKind(root.Get("op").Str)
	if !ok {
		f.logger.Warn("ignoring result for unknown operation", slog.String("op", root.Get("op").Str))
		return
	}

	result := root.Get("result")
	if !result.Exists() {
		f.logger.Warn("operation frame without result", slog.String("op", opKind.String()))
		return
	}

	res, err := remote.DecodeResult([]byte(result.Raw))
	if err != nil {
		f.logger.Warn("skipping undecodable operation result",
			slog.String("op", opKind.String()),
			slog.String("error", err.Error()),
		)

		return
	}

	f.sink.Post(view.OperationFinished{Account: account, Kind: opKind, Result: res})
}

// transferFrame is the wire shape shared by upload and download frames.
type transferFrame struct {
	Path        string `json:"path"`
	OldPath     string `json:"old_path"`
	LinkedTo    string `json:"linked_to"`
	Success     bool   `json:"success"`
	Behavior    string `json:"behavior"`
	ShareTarget string `json:"share_target"`
}

func (f *Feed) postTransfer(kind, account string, root gjson.Result) {
	var frame transferFrame
	if err := json.Unmarshal([]byte(root.Raw), &frame); err != nil {
		f.logger.Warn("skipping undecodable transfer frame", slog.String("error", err.Error()))
		return
	}

	t := remote.TransferEvent{
		Account:     account,
		Path:        models.NormalizePath(frame.Path),
		Success:     frame.Success,
		Behavior:    remote.Behavior(frame.Behavior),
		ShareTarget: frame.ShareTarget,
	}

	// Optional paths stay empty rather than normalizing to the root.
	if frame.OldPath != "" {
		t.OldPath = models.NormalizePath(frame.OldPath)
	}

	if frame.LinkedTo != "" {
		t.LinkedTo = models.NormalizePath(frame.LinkedTo)
	}

	switch kind {
	case "upload":
		t.Kind = remote.TransferUpload
		f.sink.Post(view.UploadFinished{Transfer: t})

	case "download_started":
		t.Kind = remote.TransferDownload
		f.sink.Post(view.DownloadStarted{Transfer: t})

	case "download_finished":
		t.Kind = remote.TransferDownload
		f.sink.Post(view.DownloadFinished{Transfer: t})
	}
}
