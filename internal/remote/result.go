// Package remote holds the value types produced by the asynchronous
// remote-operation layer: typed operation results, transfer lifecycle
// events, and the one-shot side table that carries result payloads
// across the event channel. The remote client itself lives in the
// worker processes and is out of scope.
package remote

import (
	"encoding/json"
	"fmt"

	dserrors "github.com/alexjbarnes/drivesync/internal/errors"
	"github.com/alexjbarnes/drivesync/internal/models"
	"github.com/tidwall/gjson"
)

// ResultCode is the closed taxonomy of remote operation outcomes.
type ResultCode int

const (
	// CodeUnknown is any code this client does not recognize. Unknown
	// failure codes classify to no recovery action rather than failing.
	CodeUnknown ResultCode = iota

	// CodeOK is a successful operation.
	CodeOK

	// CodeUnauthorized means the server rejected the session credentials.
	CodeUnauthorized

	// CodeSSLRecoverablePeerUnverified means the server certificate is
	// untrusted but the user can choose to trust it.
	CodeSSLRecoverablePeerUnverified

	// CodeMaintenanceMode means the server is temporarily read-only.
	CodeMaintenanceMode

	// CodeNoNetworkConnection means the device is offline.
	CodeNoNetworkConnection

	// CodeHostNotAvailable means the server host did not respond.
	CodeHostNotAvailable

	// CodeSigningTOSNeeded means the account must accept the terms of
	// service before the server will sync.
	CodeSigningTOSNeeded

	// CodeFolderAlreadyExists means a create-folder target already exists.
	CodeFolderAlreadyExists

	// CodeFileNotFound means the operation target vanished server-side.
	CodeFileNotFound
)

var codeNames = map[ResultCode]string{
	CodeUnknown:                      "unknown",
	CodeOK:                           "ok",
	CodeUnauthorized:                 "unauthorized",
	CodeSSLRecoverablePeerUnverified: "ssl_recoverable_peer_unverified",
	CodeMaintenanceMode:              "maintenance_mode",
	CodeNoNetworkConnection:          "no_network_connection",
	CodeHostNotAvailable:             "host_not_available",
	CodeSigningTOSNeeded:             "signing_tos_needed",
	CodeFolderAlreadyExists:          "folder_already_exists",
	CodeFileNotFound:                 "file_not_found",
}

func (c ResultCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}

	return "unknown"
}

// ParseResultCode maps a wire string to a ResultCode. Unrecognized
// strings map to CodeUnknown.
func ParseResultCode(s string) ResultCode {
	for code, name := range codeNames {
		if name == s {
			return code
		}
	}

	return CodeUnknown
}

// OpKind tags a terminal operation result with the remote action that
// produced it. The dispatcher matches over it exhaustively, so adding a
// kind is a compile-visible extension.
type OpKind int

const (
	OpRemove OpKind = iota
	OpRename
	OpMove
	OpCopy
	OpCreateFolder
	OpRestoreVersion
	OpSynchronizeFile
)

var opNames = map[OpKind]string{
	OpRemove:          "remove",
	OpRename:          "rename",
	OpMove:            "move",
	OpCopy:            "copy",
	OpCreateFolder:    "create_folder",
	OpRestoreVersion:  "restore_version",
	OpSynchronizeFile: "synchronize_file",
}

func (k OpKind) String() string {
	if name, ok := opNames[k]; ok {
		return name
	}

	return fmt.Sprintf("op(%d)", int(k))
}

// ParseOpKind maps a wire string to an OpKind. The second return is
// false for unknown strings.
func ParseOpKind(s string) (OpKind, bool) {
	for kind, name := range opNames {
		if name == s {
			return kind, true
		}
	}

	return 0, false
}

// OperationResult is the uniform outcome of one asynchronous remote
// action. Success and Code are jointly consistent: a success result
// never carries a failure-class code. Use the constructors.
type OperationResult struct {
	Success bool
	Code    ResultCode
	Err     error
	Message string

	// Item is the operation payload: the removed/renamed/created/
	// restored item, when the operation has one.
	Item *models.Item

	// OldPath is the path before a rename or move.
	OldPath string

	// TargetPath is the destination directory of a move or copy.
	TargetPath string

	// TransferRequested reports whether a synchronize-file operation
	// actually scheduled a content transfer.
	TransferRequested bool
}

// Succeeded builds a success result carrying an optional payload item.
func Succeeded(item *models.Item) OperationResult {
	return OperationResult{Success: true, Code: CodeOK, Item: item}
}

// Failed builds a failure result. CodeOK is not a failure code and is
// downgraded to CodeUnknown to keep the flag/code invariant.
func Failed(code ResultCode, err error, message string) OperationResult {
	if code == CodeOK {
		code = CodeUnknown
	}

	return OperationResult{Success: false, Code: code, Err: err, Message: message}
}

// IsSSLRecoverable reports whether the failure can be retried after the
// user trusts the server certificate.
func (r OperationResult) IsSSLRecoverable() bool {
	return !r.Success && r.Code == CodeSSLRecoverablePeerUnverified
}

// DecodeResult parses a serialized result tolerantly. Payloads written
// by an older client version, or truncated in transit, yield an error
// instead of a panic; callers treat that as "no payload". The exception
// field carries failure classes that have no result code of their own,
// currently only "authentication".
func DecodeResult(data []byte) (OperationResult, error) {
	if !gjson.ValidBytes(data) {
		return OperationResult{}, fmt.Errorf("result payload is not valid JSON")
	}

	root := gjson.ParseBytes(data)

	success := root.Get("success")
	code := root.Get("code")

	if !success.Exists() || !code.Exists() {
		return OperationResult{}, fmt.Errorf("result payload missing success/code")
	}

	res := OperationResult{
		Success:           success.Bool(),
		Code:              ParseResultCode(code.String()),
		Message:           root.Get("message").String(),
		OldPath:           root.Get("old_path").String(),
		TargetPath:        root.Get("target_path").String(),
		TransferRequested: root.Get("transfer_requested").Bool(),
	}

	if res.Success && res.Code == CodeUnknown {
		res.Code = CodeOK
	}

	if exc := root.Get("exception").String(); exc != "" {
		if exc == "authentication" {
			res.Err = dserrors.ErrAuthentication
		} else {
			res.Err = fmt.Errorf("remote operation: %s", exc)
		}
	}

	if item := root.Get("item"); item.Exists() {
		var it models.Item
		if err := json.Unmarshal([]byte(item.Raw), &it); err != nil {
			return OperationResult{}, fmt.Errorf("decoding result item: %w", err)
		}

		it.Path = models.NormalizePath(it.Path)
		res.Item = &it
	}

	if res.OldPath != "" {
		res.OldPath = models.NormalizePath(res.OldPath)
	}

	if res.TargetPath != "" {
		res.TargetPath = models.NormalizePath(res.TargetPath)
	}

	return res, nil
}
