package model

import (
	"path"
	"strings"
	"time"
)

// ArchiveFolder is the per-user archive root, created at the top of each tree.
const ArchiveFolder = ".archive"

// Node is a file or folder as seen by the archiver. Path is relative to the
// owner's tree root and always starts with "/"; the root itself has Path "/".
type Node struct {
	ID         int64     `json:"id"`
	ParentID   int64     `json:"parent_id,omitempty"`
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	OwnerID    string    `json:"owner_id"`
	IsFolder   bool      `json:"is_folder"`
	ModTime    time.Time `json:"modified_at"`
	UploadTime time.Time `json:"uploaded_at,omitempty"`
	Deletable  bool      `json:"deletable"`
	Updatable  bool      `json:"updatable"`
	MimeType   string    `json:"mime_type,omitempty"`
	Size       int64     `json:"size"`
	ETag       string    `json:"etag,omitempty"`
}

func (n Node) IsRoot() bool {
	return n.Path == "/" || n.Path == ""
}

// Movable reports whether the current mount grants both move and delete.
func (n Node) Movable() bool {
	return n.Deletable && n.Updatable
}

// ParentPath returns the user-relative path of the containing folder.
func (n Node) ParentPath() string {
	if n.IsRoot() {
		return "/"
	}
	return path.Dir(n.Path)
}

// Depth is the number of path segments; top-level entries have depth 1.
func (n Node) Depth() int {
	return len(SplitPath(n.Path))
}

// InArchive reports whether the node is the archive root or lives under it.
func (n Node) InArchive() bool {
	return IsArchivePath(n.Path)
}

func IsArchivePath(p string) bool {
	segments := SplitPath(p)
	return len(segments) > 0 && segments[0] == ArchiveFolder
}

// SplitPath breaks a user-relative path into its non-empty segments.
func SplitPath(p string) []string {
	cleaned := path.Clean("/" + strings.TrimPrefix(p, "/"))
	if cleaned == "/" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(cleaned, "/"), "/")
}

// JoinPath joins segments under parent into a normalized user-relative path.
func JoinPath(parent string, elems ...string) string {
	return path.Clean("/" + path.Join(append([]string{parent}, elems...)...))
}
