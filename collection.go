package corehub

import (
	"github.com/corehub/sdk/internal/datastore"
)

// NamedCollection is the per-namespace key/value store backed by durable
// storage (spec §4.7/§6), re-exported so extensions can persist their own
// configuration without reaching into internal/.
type NamedCollection = datastore.Store

// OpenCollection opens (creating lazily on first write) the named
// collection rooted under dataRoot. Multiple calls for the same
// (dataRoot, name) pair each get their own handle onto the same file;
// callers sharing one store concurrently should keep a single handle
// rather than opening repeatedly.
func OpenCollection(dataRoot, name string) *NamedCollection {
	return datastore.Open(dataRoot, name)
}
