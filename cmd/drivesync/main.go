package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alexjbarnes/drivesync/internal/cache"
	"github.com/alexjbarnes/drivesync/internal/config"
	"github.com/alexjbarnes/drivesync/internal/content"
	"github.com/alexjbarnes/drivesync/internal/feed"
	"github.com/alexjbarnes/drivesync/internal/logging"
	"github.com/alexjbarnes/drivesync/internal/models"
	"github.com/alexjbarnes/drivesync/internal/remote"
	"github.com/alexjbarnes/drivesync/internal/view"
)

var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment)
	logger.Info("drivesync starting",
		slog.String("version", Version),
		slog.String("account", cfg.Account),
		slog.String("feed", cfg.FeedURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := cache.Open(cfg.CachePath)
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	defer store.Close()

	if err := store.InitAccount(cfg.Account); err != nil {
		return fmt.Errorf("initializing account buckets: %w", err)
	}

	if err := seedRoot(store, cfg.Account); err != nil {
		return fmt.Errorf("seeding root folder: %w", err)
	}

	worker := newWorkerClient(cfg.WorkerURL, cfg.Account, logger)

	table := remote.NewResultTable(logger)
	sink := view.NewLogSink(logger)
	syncState := view.NewSyncState()

	coord := view.NewCoordinator(ctx, worker, store, sink, syncState, logger)
	coord.SetDebounce(cfg.Debounce())

	dispatcher := view.NewDispatcher(store, sink, coord, table, syncState, worker, logger)

	session := &view.Session{Account: cfg.Account}
	dispatcher.SetSession(session)
	coord.SetSession(session)

	eventFeed := feed.New(cfg.FeedURL, dispatcher, table, logger)
	watcher := content.NewWatcher(cfg.ContentDir, cfg.Account, dispatcher, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return dispatcher.Run(gctx)
	})
	g.Go(func() error {
		return eventFeed.Run(gctx)
	})
	g.Go(func() error {
		return watcher.Watch(gctx)
	})

	// Open the root directory and kick off the initial refresh.
	dispatcher.Post(view.ViewChanged{DirPath: models.RootPath})

	if root, err := store.ItemByPath(cfg.Account, models.RootPath); err == nil && root != nil {
		coord.RequestRefresh(root, true, true)
	}

	return g.Wait()
}

// seedRoot makes sure the root folder has a cache record so the first
// refresh request has something to resolve.
func seedRoot(store *cache.Cache, account string) error {
	root, err := store.ItemByPath(account, models.RootPath)
	if err != nil {
		return err
	}

	if root != nil {
		return nil
	}

	return store.Replace(account, models.Item{
		ID:      "root",
		Account: account,
		Path:    models.RootPath,
		Folder:  true,
		Exists:  true,
	})
}

// workerClient posts commands to the worker service over HTTP. It backs
// both the coordinator's folder refreshes and the dispatcher's download
// requests; completion arrives asynchronously on the event feed.
type workerClient struct {
	baseURL string
	account string
	client  *http.Client
	logger  *slog.Logger
}

func newWorkerClient(baseURL, account string, logger *slog.Logger) *workerClient {
	return &workerClient{
		baseURL: baseURL,
		account: account,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

func (w *workerClient) post(ctx context.Context, command string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s command: %w", command, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/commands/"+command, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building %s request: %w", command, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting %s command: %w", command, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s command rejected: %s", command, resp.Status)
	}

	return nil
}

// RefreshFolder asks the worker service to synchronize one folder.
func (w *workerClient) RefreshFolder(ctx context.Context, folder models.Item, ignoreETag bool) error {
	return w.post(ctx, "refresh-folder", map[string]any{
		"account":     w.account,
		"path":        folder.Path,
		"item_id":     folder.ID,
		"ignore_etag": ignoreETag,
	})
}

// RequestDownload asks the worker service to fetch file content. The
// behavior tag rides along so the finished event can be routed.
func (w *workerClient) RequestDownload(item models.Item, behavior remote.Behavior) {
	err := w.post(context.Background(), "download", map[string]any{
		"account":  w.account,
		"item_id":  item.ID,
		"path":     item.Path,
		"behavior": string(behavior),
	})
	if err != nil {
		w.logger.Warn("download request failed",
			slog.String("path", item.Path),
			slog.String("error", err.Error()),
		)
	}
}
