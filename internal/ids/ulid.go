// Package ids generates the identifiers used on the wire: correlation ids
// stamped onto outgoing requests and the per-process instance id that scopes
// consumer groups.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// CreateULID returns a time-sortable ULID encoded as a 26-character string.
// Monotonic entropy keeps ids strictly increasing within the process, so
// concurrent callers never collide.
func CreateULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return id.String()
}
