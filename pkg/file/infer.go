package file

import (
	"path"
	"strings"
)

// InferType guesses the type of an address whose sidecar is missing.
//
// This is a best-effort legacy compatibility rule, not a primary
// mechanism:
//   - a sidecar named exactly ".meta" (directory-form address) implies a
//     directory
//   - a sidecar named "name.<type>.meta" implies <type>
func InferType(a Address) (Type, bool) {
	name := path.Base("/" + SidecarPath(a))
	if name == MetaSuffix {
		return TypeDirectory, true
	}

	base := strings.TrimSuffix(name, MetaSuffix)
	dot := strings.LastIndex(base, ".")
	if dot <= 0 {
		return "", false
	}

	t := Type(base[dot+1:])
	if !t.Valid() {
		return "", false
	}
	return t, true
}
