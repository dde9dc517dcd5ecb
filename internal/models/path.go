package models

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizePath canonicalizes a remote path: backslashes become forward
// slashes, runs of slashes collapse, a leading slash is enforced, the
// trailing slash is trimmed (except for the root), and Unicode NFC
// normalization is applied. Call this on every path entering the system:
// feed frames, user navigation, and cache lookups.
func NormalizePath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")

	var b strings.Builder

	prevSlash := false

	for _, r := range path {
		if r == '/' {
			if prevSlash {
				continue
			}

			prevSlash = true
		} else {
			prevSlash = false
		}

		b.WriteRune(r)
	}

	path = b.String()

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}

	return norm.NFC.String(path)
}

// IsWithin reports whether path is dir itself or a descendant of it.
func IsWithin(dir, path string) bool {
	if dir == "" || path == "" {
		return false
	}

	if path == dir {
		return true
	}

	if dir == RootPath {
		return strings.HasPrefix(path, "/")
	}

	return strings.HasPrefix(path, dir+"/")
}

// IsAncestor reports whether ancestor is a strict-or-equal ancestor of dir.
func IsAncestor(ancestor, dir string) bool {
	return IsWithin(ancestor, dir)
}

// ParentPath returns the remote path of the parent directory. The root
// is its own parent.
func ParentPath(path string) string {
	if path == "" || path == RootPath {
		return RootPath
	}

	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return RootPath
	}

	return path[:idx]
}

// BaseName returns the last path segment.
func BaseName(path string) string {
	if path == RootPath || path == "" {
		return "/"
	}

	idx := strings.LastIndex(path, "/")

	return path[idx+1:]
}
