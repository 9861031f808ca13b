package ids

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SortableID is a lexicographically sortable, time-prefixed identifier
// used where components need a locally unique handle with no collision
// coordination (subscription ids, client instance ids) rather than the
// domain's UUIDv7 aggregate/event identifiers.
type SortableID string

// entropyMu serializes the shared math/rand source backing ULID
// generation, since NewSortableID may be called concurrently.
var (
	entropyMu  sync.Mutex
	entropySrc = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// NewSortableID generates a fresh ULID-based SortableID seeded from the
// current time.
func NewSortableID() SortableID {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(nowFunc()), entropySrc)
	return SortableID(id.String())
}

func (s SortableID) String() string { return string(s) }
