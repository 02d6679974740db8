package mbhd

import "io"

// TargetEntry is a stored object as reported by Target.List.
type TargetEntry struct {
	Name string
	Size int64
}

// Target is a flat store of named backup files: a local directory, a
// mounted cloud folder or an object store.
type Target interface {
	// Name identifies the target in logs and the backup catalog.
	Name() string

	// Put stores size bytes read from r under name, replacing any
	// existing object. A short write is an error.
	Put(name string, r io.Reader, size int64) error

	// Get writes the object called name to w.
	Get(name string, w io.Writer) error

	// List returns every object in the target. Callers filter by name.
	List() ([]*TargetEntry, error)

	// Delete removes the object, overwriting it first where the medium
	// allows.
	Delete(name string) error

	// Location returns a human readable locator for name.
	Location(name string) string

	// ValidateSetup verifies that the target is reachable and writable.
	ValidateSetup() error
}
