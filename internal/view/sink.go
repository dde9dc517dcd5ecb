package view

import (
	"log/slog"

	"github.com/alexjbarnes/drivesync/internal/models"
	"github.com/alexjbarnes/drivesync/internal/remote"
)

// NoticeKind identifies a non-blocking transient notice.
type NoticeKind string

const (
	NoticeMaintenance         NoticeKind = "maintenance"
	NoticeOffline             NoticeKind = "offline"
	NoticeHostUnreachable     NoticeKind = "host-unreachable"
	NoticeFolderRemoved       NoticeKind = "folder-removed"
	NoticeFolderExists        NoticeKind = "folder-already-exists"
	NoticeOperationFailed     NoticeKind = "operation-failed"
	NoticeUploadFailed        NoticeKind = "upload-failed"
	NoticeVersionRestored     NoticeKind = "version-restored"
	NoticeVersionRestoreError NoticeKind = "version-restore-failed"
	NoticeRenamedDuringUpload NoticeKind = "renamed-during-upload"
)

// Placeholder is what the listing surface should show for the current
// directory. Loading wins while a sync is in progress; empty only once
// idle with zero children.
type Placeholder int

const (
	PlaceholderContent Placeholder = iota
	PlaceholderLoading
	PlaceholderEmpty
)

// UISink receives the UI-visible side effects of reconciliation. The
// rendering layer implements it; all calls happen on the dispatcher
// goroutine and must not block.
type UISink interface {
	LoadingStateChanged(inProgress bool)
	ListingInvalidated(folder models.Item)
	NavigateTo(item models.Item)
	DetailUpdated(item models.Item)
	ShowTransientNotice(kind NoticeKind, detail string)
	PromptCertificateTrust(result remote.OperationResult)
	PromptCredentialsUpdate()
	PromptTermsOfService()
	PreviewRequested(item models.Item, kind models.PreviewKind)
	ShareRequested(item models.Item, target string)
	EmptyStateChanged(state Placeholder)
	StopPlayback(itemID string)
}

// TransferRequester asks the worker pool to fetch fresh content for an
// item, e.g. after a version restore invalidated the local copy or when
// a preview intent needs a download.
type TransferRequester interface {
	RequestDownload(item models.Item, behavior remote.Behavior)
}

// LogSink is a UISink that logs every produced event. It backs the
// headless binary and doubles as a quiet default in tests.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink that writes produced events to the logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) LoadingStateChanged(inProgress bool) {
	s.logger.Debug("loading state changed", slog.Bool("in_progress", inProgress))
}

func (s *LogSink) ListingInvalidated(folder models.Item) {
	s.logger.Debug("listing invalidated", slog.String("path", folder.Path))
}

func (s *LogSink) NavigateTo(item models.Item) {
	s.logger.Info("navigate", slog.String("path", item.Path))
}

func (s *LogSink) DetailUpdated(item models.Item) {
	s.logger.Debug("detail updated", slog.String("path", item.Path))
}

func (s *LogSink) ShowTransientNotice(kind NoticeKind, detail string) {
	s.logger.Info("notice", slog.String("kind", string(kind)), slog.String("detail", detail))
}

func (s *LogSink) PromptCertificateTrust(result remote.OperationResult) {
	s.logger.Warn("certificate trust prompt", slog.String("code", result.Code.String()))
}

func (s *LogSink) PromptCredentialsUpdate() {
	s.logger.Warn("credentials update prompt")
}

func (s *LogSink) PromptTermsOfService() {
	s.logger.Warn("terms of service prompt")
}

func (s *LogSink) PreviewRequested(item models.Item, kind models.PreviewKind) {
	s.logger.Info("preview requested",
		slog.String("path", item.Path),
		slog.Int("kind", int(kind)),
	)
}

func (s *LogSink) ShareRequested(item models.Item, target string) {
	s.logger.Info("share requested", slog.String("path", item.Path), slog.String("target", target))
}

func (s *LogSink) EmptyStateChanged(state Placeholder) {
	s.logger.Debug("empty state changed", slog.Int("state", int(state)))
}

func (s *LogSink) StopPlayback(itemID string) {
	s.logger.Debug("stop playback", slog.String("item", itemID))
}
