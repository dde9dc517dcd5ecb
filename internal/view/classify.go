package view

import (
	"errors"

	dserrors "github.com/alexjbarnes/drivesync/internal/errors"
	"github.com/alexjbarnes/drivesync/internal/remote"
)

// RecoveryAction is what the dispatcher should do about a failed
// operation result.
type RecoveryAction int

const (
	// ActionNone means no dedicated recovery; the caller surfaces a
	// generic message independently.
	ActionNone RecoveryAction = iota

	// ActionRequestCredentials escalates to a credentials-refresh prompt.
	ActionRequestCredentials

	// ActionPromptCertificateTrust asks the user to trust the server
	// certificate; the triggering result is cached for replay.
	ActionPromptCertificateTrust

	// ActionNoticeMaintenance shows the maintenance-mode notice.
	ActionNoticeMaintenance

	// ActionNoticeOffline shows the offline notice.
	ActionNoticeOffline

	// ActionNoticeHostUnreachable shows the host-unreachable notice.
	ActionNoticeHostUnreachable

	// ActionPromptTermsOfService shows the terms-of-service prompt,
	// at most once per session.
	ActionPromptTermsOfService
)

// Classify maps a failed result to its recovery action. Pure and total
// over the closed code set: success results and unknown failure codes
// map to ActionNone. An embedded authentication error escalates to a
// credentials prompt regardless of code, matching servers that report
// expired sessions through the exception channel instead.
func Classify(res remote.OperationResult) RecoveryAction {
	if res.Success {
		return ActionNone
	}

	if res.Code == remote.CodeUnauthorized || errors.Is(res.Err, dserrors.ErrAuthentication) {
		return ActionRequestCredentials
	}

	switch res.Code {
	case remote.CodeSSLRecoverablePeerUnverified:
		return ActionPromptCertificateTrust
	case remote.CodeMaintenanceMode:
		return ActionNoticeMaintenance
	case remote.CodeNoNetworkConnection:
		return ActionNoticeOffline
	case remote.CodeHostNotAvailable:
		return ActionNoticeHostUnreachable
	case remote.CodeSigningTOSNeeded:
		return ActionPromptTermsOfService
	default:
		return ActionNone
	}
}
