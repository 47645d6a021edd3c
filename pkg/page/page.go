// Package page maps user-facing page addresses onto physical page files.
//
// Pages are addressed with directory-like logical paths ("guide",
// "docs/") but stored as discrete ".page" files, a directory's home page
// being "index.page". Resolve and Simplify are inverse operations so links
// built from stored pages round-trip.
package page

import (
	"strings"

	"github.com/marmos91/dittodocs/pkg/file"
)

const (
	// Suffix is the physical extension of page files.
	Suffix = ".page"

	// IndexName is the page file backing a directory address.
	IndexName = "index" + Suffix
)

// Resolve returns the physical page address for a logical one.
//
//   - "x.page" is returned unchanged
//   - "docs/" becomes "docs/index.page", the root "" becomes "index.page"
//   - "guide" becomes "guide.page"
//   - any other extension is not a page and is returned unchanged
func Resolve(a file.Address) file.Address {
	if strings.HasSuffix(a.Path, Suffix) {
		return a
	}
	if a.Path == "" || strings.HasSuffix(a.Path, "/") {
		return file.Address{DocumentID: a.DocumentID, Path: a.Path + IndexName}
	}
	if strings.Contains(file.FileName(a), ".") {
		return a
	}
	return file.Address{DocumentID: a.DocumentID, Path: a.Path + Suffix}
}

// Simplify returns the shortest logical address resolving to the same
// page: index pages collapse to their directory (trailing "/"), other
// pages lose their suffix.
func Simplify(a file.Address) file.Address {
	resolved := Resolve(a)
	name := file.FileName(resolved)

	if name == IndexName {
		return file.EnsureDirPath(file.ParentAddress(resolved))
	}
	if strings.HasSuffix(name, Suffix) {
		return file.ChildAddress(file.ParentAddress(resolved), strings.TrimSuffix(name, Suffix))
	}
	return resolved
}

// IsPage reports whether the address resolves to a page file.
func IsPage(a file.Address) bool {
	return strings.HasSuffix(Resolve(a).Path, Suffix)
}

// Href builds the browser link of a page, optionally to its editor.
func Href(a file.Address, edit bool) string {
	var b strings.Builder
	b.WriteString("/documents/d/")
	b.WriteString(a.DocumentID)
	if edit {
		b.WriteString("/edit/")
	} else {
		b.WriteString("/")
	}
	b.WriteString(strings.TrimPrefix(Simplify(a).Path, "/"))
	return b.String()
}
