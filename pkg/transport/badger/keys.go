package badger

// Database Key Namespace Design
// ==============================
//
// The logical tree is flattened into two prefixed namespaces:
//
// Data Type     Prefix   Key Format        Value
// =================================================================
// File          "f:"     f:<path>          modtime (8 bytes BE) + content
// Directory     "d:"     d:<path>          modtime (8 bytes BE)
//
// <path> is the cleaned transport path (no leading or trailing slash).
// The root directory "" is implicit and never stored.
//
// Listing a directory is a prefix scan over "f:<path>/" and "d:<path>/"
// keeping only immediate children. Removing a tree deletes every key under
// both prefixes in one write batch.

const (
	prefixFile = "f:"
	prefixDir  = "d:"
)

func keyFile(p string) []byte {
	return []byte(prefixFile + p)
}

func keyDir(p string) []byte {
	return []byte(prefixDir + p)
}

// childPrefix returns the scan prefix of everything below directory p in
// the given namespace.
func childPrefix(namespace, p string) []byte {
	if p == "" {
		return []byte(namespace)
	}
	return []byte(namespace + p + "/")
}
