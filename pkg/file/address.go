// Package file defines the logical file model of dittodocs: addresses,
// file types, metadata records and typed payloads, plus the pure path
// algebra used to map logical addresses onto the remote store.
//
// Nothing in this package performs I/O.
package file

import (
	"fmt"
	"strings"
)

// MetaSuffix is appended to a physical path to obtain its sidecar path.
const MetaSuffix = ".meta"

// Address identifies a logical file inside a document.
//
// Path is slash separated and relative to the document root; "" and "/"
// both denote the root. Addresses are values: every derivation returns a
// new Address.
type Address struct {
	DocumentID string `json:"document_id"`
	Path       string `json:"path"`
}

// String returns "document_id:path", for logging.
func (a Address) String() string {
	return a.DocumentID + ":" + a.Path
}

// Equal reports whether both addresses point at the same logical file.
func (a Address) Equal(b Address) bool {
	return a.DocumentID == b.DocumentID && normalizePath(a.Path) == normalizePath(b.Path)
}

// normalizePath drops leading slashes and collapses repeated slashes.
// A trailing slash is significant and preserved.
func normalizePath(p string) string {
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	return strings.TrimPrefix(p, "/")
}

// RootAddress returns the root address of a document.
func RootAddress(documentID string) Address {
	return Address{DocumentID: documentID, Path: ""}
}

// IsRoot reports whether a denotes the document root.
func (a Address) IsRoot() bool {
	return normalizePath(a.Path) == ""
}

// ChildAddress appends name to parent, inserting a separator only when
// parent does not already end with one.
func ChildAddress(parent Address, name string) Address {
	if parent.Path == "" || strings.HasSuffix(parent.Path, "/") {
		return Address{DocumentID: parent.DocumentID, Path: parent.Path + name}
	}
	return Address{DocumentID: parent.DocumentID, Path: parent.Path + "/" + name}
}

// ParentAddress strips the last path segment. The parent of the root is
// the root.
func ParentAddress(a Address) Address {
	p := strings.TrimRight(normalizePath(a.Path), "/")
	idx := strings.LastIndex(p, "/")
	if idx < 0 {
		return RootAddress(a.DocumentID)
	}
	return Address{DocumentID: a.DocumentID, Path: p[:idx]}
}

// EnsureDirPath guarantees a trailing slash on the address path.
func EnsureDirPath(a Address) Address {
	if strings.HasSuffix(a.Path, "/") {
		return a
	}
	return Address{DocumentID: a.DocumentID, Path: a.Path + "/"}
}

// IsDirAddress reports whether the address looks like a directory: the
// path ends in "/" or its final segment has no extension.
func IsDirAddress(a Address) bool {
	if strings.HasSuffix(a.Path, "/") {
		return true
	}
	return !strings.Contains(FileName(a), ".")
}

// FilePath returns the physical path of the address relative to the
// remote root: "{document_id}/{path}" with the leading slash removed.
func FilePath(a Address) string {
	return a.DocumentID + "/" + strings.TrimPrefix(a.Path, "/")
}

// SidecarPath returns the physical path of the metadata sidecar.
func SidecarPath(a Address) string {
	return FilePath(a) + MetaSuffix
}

// FileName returns the final path segment ("" for directory-form paths).
func FileName(a Address) string {
	idx := strings.LastIndex(a.Path, "/")
	if idx < 0 {
		return a.Path
	}
	return a.Path[idx+1:]
}

// IsHidden reports whether the address must stay invisible to every
// store operation: dotfiles, "__" prefixed names and sidecars.
func IsHidden(a Address) bool {
	if strings.HasSuffix(FilePath(a), MetaSuffix) {
		return true
	}
	return IsHiddenName(FileName(a))
}

// ValidatePath rejects addresses whose physical path would leave their
// document: a document id that is empty, "." or ".." or contains a
// separator, and any "." or ".." path segment.
func ValidatePath(a Address) error {
	switch {
	case a.DocumentID == "", a.DocumentID == ".", a.DocumentID == "..",
		strings.ContainsAny(a.DocumentID, `/\`):
		return NewError(ErrInvalidPath, fmt.Sprintf("invalid document id %q", a.DocumentID), "")
	}
	for _, segment := range strings.FieldsFunc(a.Path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if segment == "." || segment == ".." {
			return NewError(ErrInvalidPath, fmt.Sprintf("path %q leaves its document", a.Path), "")
		}
	}
	return nil
}

// IsHiddenName applies the hidden rule to a bare entry name.
func IsHiddenName(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "__") || strings.HasSuffix(name, MetaSuffix)
}
