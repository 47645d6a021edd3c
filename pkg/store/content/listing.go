package content

import (
	"sort"
	"strings"

	"github.com/marmos91/dittodocs/pkg/file"
	"github.com/marmos91/dittodocs/pkg/transport"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// VisibleChildren returns the names of the entries of directory dir that
// are not hidden, sorted with SortChildren.
//
// Hidden entries are dropped before sorting.
func VisibleChildren(dir file.Address, entries []transport.Entry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if file.IsHidden(file.ChildAddress(dir, e.Name)) {
			continue
		}
		names = append(names, e.Name)
	}
	SortChildren(names)
	return names
}

// SortChildren sorts directory entry names in place: names without an
// extension (subdirectories) come first, then each group is ordered with
// locale-aware collation.
func SortChildren(names []string) {
	// A Collator is not safe for concurrent use.
	c := collate.New(language.Und)

	sort.SliceStable(names, func(i, j int) bool {
		di, dj := hasExtension(names[i]), hasExtension(names[j])
		if di != dj {
			return !di
		}
		return c.CompareString(names[i], names[j]) < 0
	})
}

func hasExtension(name string) bool {
	return strings.Contains(name, ".")
}
