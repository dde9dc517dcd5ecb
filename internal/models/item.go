package models

// RootPath is the remote path of an account's root directory.
const RootPath = "/"

// DownloadState describes whether an item's content has a local copy.
type DownloadState int

const (
	// DownloadAbsent means no local copy of the content exists.
	DownloadAbsent DownloadState = iota

	// Downloading means a worker is currently fetching the content.
	Downloading

	// Downloaded means a local copy exists at ContentPath.
	Downloaded
)

// Item is a node in the remote hierarchy (file or folder) as cached
// locally. Identifiers are stable and account-scoped; remote paths are
// unique within an account.
type Item struct {
	ID          string        `json:"id"`
	Account     string        `json:"account"`
	Path        string        `json:"path"`
	ParentID    string        `json:"parent_id"`
	ETag        string        `json:"etag"`
	SyncTime    int64         `json:"synctime"`
	Download    DownloadState `json:"download"`
	ContentPath string        `json:"content_path"`
	MimeType    string        `json:"mimetype"`
	Folder      bool          `json:"folder"`
	Exists      bool          `json:"exists"`
}

// IsDown reports whether the item's content is fully present locally.
// A Downloaded state requires a non-empty cached content location.
func (it *Item) IsDown() bool {
	return it != nil && it.Download == Downloaded && it.ContentPath != ""
}

// IsRoot reports whether the item is an account root directory.
func (it *Item) IsRoot() bool {
	return it != nil && it.Path == RootPath
}
